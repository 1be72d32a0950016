package auth

import (
	"testing"
	"time"

	"github.com/storyloom/server/internal/config"
)

func TestHashAndVerifyPassword(t *testing.T) {
	svc := NewPasswordService(testAuthConfig())

	hash, err := svc.HashPassword("Str0ngPassword")
	if err != nil {
		t.Fatalf("hashing: %v", err)
	}
	if !svc.VerifyPassword("Str0ngPassword", hash) {
		t.Fatalf("correct password rejected")
	}
	if svc.VerifyPassword("WrongPassword1", hash) {
		t.Fatalf("wrong password accepted")
	}
}

func TestVerifyAccessPassword(t *testing.T) {
	svc := NewPasswordService(testAuthConfig())
	hash, err := svc.HashPassword("Acc3ssPassword")
	if err != nil {
		t.Fatalf("hashing: %v", err)
	}

	cfg := testAuthConfig()
	cfg.Auth.AccessPasswordHash = hash
	svc = NewPasswordService(cfg)

	if !svc.VerifyAccessPassword("Acc3ssPassword") {
		t.Fatalf("access password rejected")
	}
	if svc.VerifyAccessPassword("NotThePassw0rd") {
		t.Fatalf("wrong access password accepted")
	}
}

func TestValidatePasswordStrength(t *testing.T) {
	svc := NewPasswordService(&config.Config{
		Auth: config.AuthConfig{BCryptCost: 4, JWTExpiration: time.Hour},
	})

	cases := []struct {
		name     string
		password string
		valid    bool
	}{
		{"strong", "Str0ngPassword", true},
		{"too short", "Ab1x", false},
		{"no uppercase", "weakpassword1", false},
		{"no lowercase", "WEAKPASSWORD1", false},
		{"no number", "WeakPassword", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.ValidatePasswordStrength(tc.password)
			if tc.valid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.valid && err == nil {
				t.Fatalf("expected rejection")
			}
		})
	}
}

func TestHashPasswordWithZeroValueConfig(t *testing.T) {
	// The hash-generation path runs before configuration exists, so the
	// service must work from an empty Config with a sane default cost.
	service := NewPasswordService(&config.Config{})

	hash, err := service.HashPassword("Sw0rdfish42")
	if err != nil {
		t.Fatalf("hashing: %v", err)
	}
	if !service.VerifyPassword("Sw0rdfish42", hash) {
		t.Fatalf("hash does not verify")
	}
	if service.VerifyPassword("wrong", hash) {
		t.Fatalf("wrong password verified")
	}
}
