package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rongwang/banking-server/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// ScopeHost marks tokens that may call the host bridge routes
const ScopeHost = "host"

// ErrInvalidHostKey is returned when the host bridge presents a wrong key
var ErrInvalidHostKey = errors.New("invalid host key")

// IssueToken exchanges the host bridge's key for a token. With a caller id the
// token acts for that player; without one it is a host token.
func (s *DefaultService) IssueToken(ctx context.Context, req models.TokenRequest) (*models.TokenResponse, error) {
	if s.cfg.HostKeyHash == "" {
		return nil, ErrInvalidHostKey
	}

	// Verify key
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.HostKeyHash), []byte(req.Key)); err != nil {
		return nil, ErrInvalidHostKey
	}

	subject, scope := strings.TrimSpace(req.CallerID), ""
	if subject == "" {
		subject, scope = ScopeHost, ScopeHost
	}

	token, err := s.generateJWT(subject, scope)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &models.TokenResponse{
		Status:    "success",
		Token:     token,
		ExpiresIn: int(s.cfg.TokenDuration.Seconds()),
	}, nil
}

// Helper methods
func (s *DefaultService) generateJWT(subject, scope string) (string, error) {
	expirationTime := time.Now().Add(s.cfg.TokenDuration)

	claims := jwt.MapClaims{
		"sub": subject, // subject
		"exp": expirationTime.Unix(),
		"iat": time.Now().Unix(), // issued at
	}
	if scope != "" {
		claims["scope"] = scope
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}
