package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "000102030405060708090a0b0c0d0e0f"

func newTestAuth(t *testing.T, password string) *Auth {
	t.Helper()
	cfg := AdminConfig{JWTSecret: testSecret, TokenTTL: time.Hour}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		cfg.PasswordHash = string(hash)
	}
	a, err := NewAuth(cfg)
	if err != nil {
		t.Fatalf("NewAuth: %v", err)
	}
	return a
}

func TestAuthLogin(t *testing.T) {
	a := newTestAuth(t, "hunter2")
	if !a.Enabled() {
		t.Fatal("auth should be enabled")
	}

	token, err := a.Login("hunter2", "10.0.0.1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := a.ValidateToken(token); err != nil {
		t.Errorf("fresh token should validate: %v", err)
	}

	if _, err := a.Login("wrong", "10.0.0.1"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("wrong password should be ErrUnauthorized, got %v", err)
	}
}

func TestAuthDisabled(t *testing.T) {
	a := newTestAuth(t, "")
	if a.Enabled() {
		t.Fatal("auth without a hash should be disabled")
	}
	if _, err := a.Login("", "10.0.0.1"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("login should fail when disabled, got %v", err)
	}
}

func TestAuthRejectsBadTokens(t *testing.T) {
	a := newTestAuth(t, "hunter2")
	token, _ := a.Login("hunter2", "10.0.0.1")

	// flip the first signature character
	i := strings.LastIndex(token, ".") + 1
	c := byte('A')
	if token[i] == 'A' {
		c = 'B'
	}
	tampered := token[:i] + string(c) + token[i+1:]
	if err := a.ValidateToken(tampered); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("tampered token should fail, got %v", err)
	}

	other, err := NewAuth(AdminConfig{})
	if err != nil {
		t.Fatalf("NewAuth: %v", err)
	}
	if err := other.ValidateToken(token); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("token from another secret should fail, got %v", err)
	}

	userToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "someone",
		"role": "user",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, _ := userToken.SignedString(a.jwtSecret)
	if err := a.ValidateToken(signed); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("non-admin role should fail, got %v", err)
	}

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": adminRole,
		"exp":  time.Now().Add(-time.Minute).Unix(),
	})
	signed, _ = expired.SignedString(a.jwtSecret)
	if err := a.ValidateToken(signed); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expired token should fail, got %v", err)
	}
}

func TestAuthRateLimit(t *testing.T) {
	a := newTestAuth(t, "")
	for i := 0; i < maxLoginAttempts; i++ {
		_, err := a.Login("x", "10.0.0.9")
		if err == nil || strings.Contains(err.Error(), "too many") {
			t.Fatalf("attempt %d should fail without rate limiting, got %v", i, err)
		}
	}
	_, err := a.Login("x", "10.0.0.9")
	if !errors.Is(err, ErrUnauthorized) || !strings.Contains(err.Error(), "too many") {
		t.Errorf("expected rate limit, got %v", err)
	}
	// other addresses are unaffected
	if _, err := a.Login("x", "10.0.0.10"); strings.Contains(err.Error(), "too many") {
		t.Errorf("rate limit should be per address, got %v", err)
	}
}

func TestAuthBadSecret(t *testing.T) {
	if _, err := NewAuth(AdminConfig{JWTSecret: "abcd"}); !errors.Is(err, ErrValidation) {
		t.Errorf("short secret should be ErrValidation, got %v", err)
	}
	if _, err := NewAuth(AdminConfig{JWTSecret: "zz"}); !errors.Is(err, ErrValidation) {
		t.Errorf("non-hex secret should be ErrValidation, got %v", err)
	}
}
