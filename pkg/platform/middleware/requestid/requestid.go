// Package requestid assigns every request an ID, reusing a caller-supplied
// X-Request-ID when present.
package requestid

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"teamreg/pkg/requestcontext"
)

const Header = "X-Request-ID"

const maxLen = 128

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(Header))
		if id == "" || len(id) > maxLen {
			id = uuid.NewString()
		}
		w.Header().Set(Header, id)
		ctx := requestcontext.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
