// Package service issues and validates the bearer tokens that guard the
// administrative endpoints.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RoleAdmin may trigger dataset refreshes.
const RoleAdmin = "admin"

const (
	issuer          = "salarios-minimos"
	defaultTokenTTL = 24 * time.Hour
)

var (
	// ErrMissingToken is returned for an empty bearer token.
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidToken covers malformed, expired and badly signed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrForbidden is returned when a valid token lacks the required role.
	ErrForbidden = errors.New("insufficient role")
)

// Claims are the JWT claims carried by an access token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager signs and validates HS256 access tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a manager. A non-positive ttl uses one day.
func NewTokenManager(secret []byte, ttl time.Duration) (*TokenManager, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenManager{secret: secret, ttl: ttl, now: time.Now}, nil
}

// Generate mints a token for subject with role.
func (m *TokenManager) Generate(subject, role string) (string, error) {
	now := m.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate parses token and checks signature, issuer and expiry.
func (m *TokenManager) Validate(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}

// AuthService authorises requests carrying a bearer token.
type AuthService struct {
	tokens *TokenManager
}

// NewAuthService constructs an AuthService.
func NewAuthService(tokens *TokenManager) *AuthService {
	return &AuthService{tokens: tokens}
}

// Authorize validates the Authorization header value and requires role.
func (s *AuthService) Authorize(_ context.Context, header, role string) (*Claims, error) {
	token, ok := strings.CutPrefix(strings.TrimSpace(header), "Bearer ")
	if !ok {
		return nil, ErrMissingToken
	}

	claims, err := s.tokens.Validate(strings.TrimSpace(token))
	if err != nil {
		return nil, err
	}
	if claims.Role != role {
		return nil, ErrForbidden
	}
	return claims, nil
}
