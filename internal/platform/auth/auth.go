// Package auth verifies the HS256 bearer tokens that guard admin endpoints
// and issues them for operators and tests.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// RoleAdmin is the role required for catalog writes.
const RoleAdmin = "admin"

const defaultRole = "user"

var (
	// ErrAuthNotConfigured is returned when no signing secret is set.
	ErrAuthNotConfigured = errors.New("jwt not configured")
	// ErrMissingToken is returned when the request carries no bearer token.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken is returned for malformed, badly signed or expired tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrForbidden is returned when a valid token lacks the admin role.
	ErrForbidden = errors.New("admin role required")
)

// Claims are the token claims this service reads.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator signs and verifies tokens with a shared secret.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// New creates an Authenticator. An empty secret yields one that rejects
// every request with ErrAuthNotConfigured.
func New(secret string, ttl time.Duration) *Authenticator {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Authenticator{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Configured reports whether a signing secret is set.
func (a *Authenticator) Configured() bool {
	return a != nil && len(a.secret) > 0
}

// IssueToken signs a token for subject with the given role.
func (a *Authenticator) IssueToken(subject, role string) (string, error) {
	if !a.Configured() {
		return "", ErrAuthNotConfigured
	}
	now := a.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Verify parses and validates a token string.
func (a *Authenticator) Verify(token string) (*Claims, error) {
	if !a.Configured() {
		return nil, ErrAuthNotConfigured
	}
	if token == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, fmt.Errorf("%w: token expired", ErrInvalidToken)
	}
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Role == "" {
		claims.Role = defaultRole
	}
	return claims, nil
}

// RequireAdmin verifies the Authorization header and checks for the admin role.
func (a *Authenticator) RequireAdmin(header string) (*Claims, error) {
	if !a.Configured() {
		return nil, ErrAuthNotConfigured
	}
	claims, err := a.Verify(BearerToken(header))
	if err != nil {
		return nil, err
	}
	if claims.Role != RoleAdmin {
		return claims, ErrForbidden
	}
	return claims, nil
}
