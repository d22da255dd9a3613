// internal/auth/middleware.go
// Token verification for HTTP routes and websocket upgrades.
// Token issuance lives in a separate auth service; this backend only
// accepts a verified, opaque user identifier.

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/pairlink/pairlink-backend/internal/common/utils"
)

type contextKey string

// ContextKeyUserID is the request context key carrying the verified user ID
const ContextKeyUserID contextKey = "userID"

// ErrNoToken is returned when a request carries no usable credential
var ErrNoToken = errors.New("missing or invalid authorization token")

// Middleware provides authentication middleware
type Middleware struct {
	jwtSecret string
}

// NewMiddleware creates a new auth middleware
func NewMiddleware(jwtSecret string) *Middleware {
	return &Middleware{jwtSecret: jwtSecret}
}

// Authenticate is the main middleware function that protects routes
// It verifies the JWT token and adds the user ID to the request context
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := m.VerifyRequest(r)
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, "Missing or invalid authorization token")
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyUserID, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// VerifyRequest extracts and validates the credential on a request and
// returns the verified user ID. Websocket upgrades may carry the token
// in a query parameter because browsers cannot set headers on them.
func (m *Middleware) VerifyRequest(r *http.Request) (string, error) {
	token := extractToken(r)
	if token == "" {
		return "", ErrNoToken
	}

	claims, err := utils.ValidateJWT(token, m.jwtSecret)
	if err != nil {
		return "", err
	}

	// Refresh tokens must not open connections
	if claims.Type != "" && claims.Type != "access" {
		return "", errors.New("invalid token type")
	}

	return claims.UserID, nil
}

// extractToken reads the JWT from the Authorization header ("Bearer <token>")
// or, failing that, from the "token" query parameter
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}

	return r.URL.Query().Get("token")
}

// GetUserIDFromContext extracts user ID from request context
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(ContextKeyUserID).(string)
	return userID, ok
}
