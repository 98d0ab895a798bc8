// Package admin guards operator endpoints behind a shared admin token.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"teamreg/pkg/requestcontext"
)

// HeaderAdminToken carries the operator token.
const HeaderAdminToken = "X-Admin-Token"

// Verifier checks a presented admin token.
type Verifier func(token string) bool

// PlainVerifier compares against a plaintext token in constant time.
func PlainVerifier(expected string) Verifier {
	return func(token string) bool {
		return subtle.ConstantTimeCompare([]byte(token), []byte(expected)) == 1
	}
}

// HashVerifier compares against a bcrypt hash of the token.
func HashVerifier(hash string) Verifier {
	return func(token string) bool {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
	}
}

// VerifierFor prefers the bcrypt hash when one is configured.
func VerifierFor(token, hash string) Verifier {
	if strings.TrimSpace(hash) != "" {
		return HashVerifier(hash)
	}
	return PlainVerifier(token)
}

func RequireAdminToken(verify Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(HeaderAdminToken)
			if token == "" || !verify(token) {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"admin token required"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
