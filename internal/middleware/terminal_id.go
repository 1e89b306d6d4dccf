package middleware

import (
	"context"
	"net/http"
	"strings"
)

const HeaderTerminalID = "X-Terminal-Id"

// RequireTerminalID rejects requests without X-Terminal-Id and stores the id
// in the request context. Mount it on terminal-scoped route groups only.
func RequireTerminalID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tid := strings.TrimSpace(r.Header.Get(HeaderTerminalID))
		if tid == "" {
			writeError(w, r, http.StatusBadRequest, "missing required header: "+HeaderTerminalID)
			return
		}
		ctx := context.WithValue(r.Context(), ctxTerminalID, tid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetTerminalID(ctx context.Context) string {
	return stringFrom(ctx, ctxTerminalID)
}
