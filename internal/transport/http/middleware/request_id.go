package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"paycore/internal/requestctx"
)

const RequestIDHeader = "X-Request-ID"

// RequestID reuses a caller supplied X-Request-ID or generates one, and
// echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(requestctx.WithRequestID(r.Context(), id)))
	})
}

func GetRequestID(ctx context.Context) string {
	return requestctx.RequestID(ctx)
}

// Organization stores the X-Organization-ID header in the request context.
func Organization(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if org := strings.TrimSpace(r.Header.Get(OrganizationHeader)); org != "" {
			r = r.WithContext(requestctx.WithOrganization(r.Context(), org))
		}
		next.ServeHTTP(w, r)
	})
}
