package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost       = 12
	loginRateWindow  = 60 * time.Second
	maxLoginAttempts = 10
	adminRole        = "admin"
)

// Auth checks the admin password and issues admin tokens
type Auth struct {
	passHash  []byte
	jwtSecret []byte
	ttl       time.Duration

	// Rate limiting for login attempts (IP -> attempts)
	rateMu  sync.Mutex
	rateMap map[string]*rateEntry
}

type rateEntry struct {
	Count   int
	ResetAt time.Time
}

// NewAuth creates the admin authenticator. With no password hash
// configured every login fails.
func NewAuth(cfg AdminConfig) (*Auth, error) {
	secret, err := loadSecret(cfg.JWTSecret)
	if err != nil {
		return nil, err
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Auth{
		passHash:  []byte(cfg.PasswordHash),
		jwtSecret: secret,
		ttl:       ttl,
		rateMap:   make(map[string]*rateEntry),
	}, nil
}

// loadSecret decodes the configured hex secret, or generates a random one
// valid for this process only.
func loadSecret(h string) ([]byte, error) {
	if h != "" {
		b, err := hex.DecodeString(h)
		if err != nil || len(b) < 16 {
			return nil, fmt.Errorf("%w: jwt_secret must be at least 16 hex-encoded bytes", ErrValidation)
		}
		return b, nil
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate jwt secret: %w", err)
	}
	return secret, nil
}

// HashPassword returns the bcrypt hash to put in admin.password_hash
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (a *Auth) Enabled() bool {
	return len(a.passHash) > 0
}

// Login checks the admin password and returns a signed token
func (a *Auth) Login(password, ip string) (string, error) {
	if !a.checkRate(ip) {
		return "", fmt.Errorf("%w: too many login attempts, try again later", ErrUnauthorized)
	}
	if !a.Enabled() {
		return "", fmt.Errorf("%w: admin login disabled", ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword(a.passHash, []byte(password)); err != nil {
		return "", fmt.Errorf("%w: invalid password", ErrUnauthorized)
	}
	return a.generateToken()
}

// ValidateToken checks that tokenStr is a live admin token
func (a *Auth) ValidateToken(tokenStr string) error {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	if role, _ := claims["role"].(string); role != adminRole {
		return fmt.Errorf("%w: invalid token claims", ErrUnauthorized)
	}
	return nil
}

func (a *Auth) generateToken() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  adminRole,
		"role": adminRole,
		"exp":  now.Add(a.ttl).Unix(),
		"iat":  now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

func (a *Auth) checkRate(ip string) bool {
	a.rateMu.Lock()
	defer a.rateMu.Unlock()

	now := time.Now()
	entry, ok := a.rateMap[ip]
	if !ok || now.After(entry.ResetAt) {
		a.rateMap[ip] = &rateEntry{Count: 1, ResetAt: now.Add(loginRateWindow)}
		return true
	}
	entry.Count++
	return entry.Count <= maxLoginAttempts
}
