package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/storyloom/server/internal/config"
)

const tokenIssuer = "storyloom-server"

// Claims represents the JWT claims carried by an editor session token.
type Claims struct {
	jwt.RegisteredClaims

	SessionID string `json:"session_id"`
}

// JWTService handles session token operations.
type JWTService struct {
	secret []byte
	expiry time.Duration
}

// NewJWTService creates a new JWT service with configuration.
func NewJWTService(cfg *config.Config) *JWTService {
	return &JWTService{
		secret: []byte(cfg.Auth.JWTSecret),
		expiry: cfg.Auth.JWTExpiration,
	}
}

// GenerateSessionToken issues a token for a new editor session and returns
// the token with its session id.
func (s *JWTService) GenerateSessionToken() (string, string, error) {
	now := time.Now()
	sessionID := uuid.New().String()

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   sessionID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		SessionID: sessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, sessionID, nil
}

// ValidateSessionToken validates a session token and returns its claims.
func (s *JWTService) ValidateSessionToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Issuer != tokenIssuer {
		return nil, errors.New("invalid token issuer")
	}
	if claims.SessionID == "" {
		return nil, errors.New("token carries no session")
	}
	return claims, nil
}

// TokenExpiration returns the configured session token lifetime.
func (s *JWTService) TokenExpiration() time.Duration {
	return s.expiry
}

// ExtractToken pulls a session token from a request, checking the token
// query parameter first (the usual path for websocket upgrades) and the
// Authorization header second.
func ExtractToken(r *http.Request) (string, error) {
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1], nil
		}
	}

	return "", fmt.Errorf("missing authentication token")
}
