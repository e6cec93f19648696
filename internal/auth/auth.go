// Package auth verifies the bearer tokens the API accepts. Tokens are
// issued elsewhere; this service only checks the HMAC signature and pulls
// the user ID out of the subject claim. Admin endpoints use a separate
// static token.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sitetrust/scoring-engine/internal/config"
)

var (
	// ErrNoToken is returned when the Authorization header is missing or
	// not a bearer token.
	ErrNoToken = errors.New("auth: missing bearer token")

	// ErrInvalidToken is returned for tokens that fail signature or claim
	// validation.
	ErrInvalidToken = errors.New("auth: invalid token")
)

type contextKey string

const userIDKey contextKey = "auth.userID"

// Verifier validates user JWTs and the admin token.
type Verifier struct {
	secret     []byte
	adminToken string
}

// NewVerifier builds a verifier from the auth config.
func NewVerifier(cfg config.AuthConfig) *Verifier {
	return &Verifier{
		secret:     []byte(cfg.JWTSecret),
		adminToken: cfg.AdminToken,
	}
}

// VerifyToken checks the token signature and expiry and returns the user ID
// from the subject claim.
func (v *Verifier) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: no subject claim", ErrInvalidToken)
	}
	return sub, nil
}

// FromRequest extracts and verifies the bearer token on a request.
func (v *Verifier) FromRequest(r *http.Request) (string, error) {
	raw := bearerToken(r)
	if raw == "" {
		return "", ErrNoToken
	}
	return v.VerifyToken(raw)
}

// IsAdmin reports whether the request carries the admin token. The compare
// is constant-time; an empty configured token disables admin access
// entirely.
func (v *Verifier) IsAdmin(r *http.Request) bool {
	if v.adminToken == "" {
		return false
	}
	raw := bearerToken(r)
	if raw == "" {
		raw = r.Header.Get("X-Admin-Token")
	}
	return subtle.ConstantTimeCompare([]byte(raw), []byte(v.adminToken)) == 1
}

// WithUserID returns a context carrying the authenticated user ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the authenticated user ID from the context, empty when
// the request was not authenticated.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
