package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// LoginRequest is the payload for the shared-password login endpoint.
type LoginRequest struct {
	Password string `json:"password" validate:"required"`
}

// TokenResponse carries an issued session token back to the editor client.
type TokenResponse struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ErrorResponse is the JSON error body shared by the auth endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// AuthHandlers handles authentication HTTP endpoints
type AuthHandlers struct {
	jwtService      *JWTService
	passwordService *PasswordService
	validator       *validator.Validate
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(jwtService *JWTService, passwordService *PasswordService) *AuthHandlers {
	return &AuthHandlers{
		jwtService:      jwtService,
		passwordService: passwordService,
		validator:       validator.New(),
	}
}

// Login handles editor session login against the shared access password
// POST /api/login
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.sendValidationError(w, err)
		return
	}

	if !h.passwordService.VerifyAccessPassword(req.Password) {
		h.sendError(w, http.StatusUnauthorized, "InvalidCredentials", "Invalid access password")
		return
	}

	token, sessionID, err := h.jwtService.GenerateSessionToken()
	if err != nil {
		log.Printf("Error generating session token: %v", err)
		h.sendError(w, http.StatusInternalServerError, "InternalError", "Failed to generate token")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(TokenResponse{
		Token:     token,
		SessionID: sessionID,
		ExpiresAt: time.Now().Add(h.jwtService.TokenExpiration()),
	})
}

func (h *AuthHandlers) sendError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   code,
		Message: message,
		Code:    code,
	})
}

func (h *AuthHandlers) sendValidationError(w http.ResponseWriter, err error) {
	var validationErrors []string
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			validationErrors = append(validationErrors, fmt.Sprintf("%s: %s", fe.Field(), getValidationMessage(fe)))
		}
	}

	h.sendError(w, http.StatusBadRequest, "ValidationError", strings.Join(validationErrors, "; "))
}

func getValidationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
