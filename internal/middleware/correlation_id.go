package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/scoopcreamy/ninjapos/internal/events"
)

const HeaderCorrelationID = "X-Correlation-Id"

// CorrelationID reuses the caller's id or mints one, echoes it back and
// attaches it to the event metadata of anything published for the request.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid := r.Header.Get(HeaderCorrelationID)
		if cid == "" {
			cid = uuid.NewString()
		}

		w.Header().Set(HeaderCorrelationID, cid)

		ctx := context.WithValue(r.Context(), ctxCorrelationID, cid)
		ctx = events.WithMeta(ctx, events.EventMeta{CorrelationID: cid})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetCorrelationID(ctx context.Context) string {
	return stringFrom(ctx, ctxCorrelationID)
}
