package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/fusionlab/fusionlab/internal/observability"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 128

// RequestID assigns each request an id and echoes it in the response. A
// chi-assigned id wins, then a well-formed X-Request-ID from the caller,
// then a fresh UUID. The id reaches error bodies and fusion pipeline logs
// through the request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := middleware.GetReqID(r.Context())
		if id == "" {
			id = acceptRequestID(r.Header.Get(RequestIDHeader))
		}
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(observability.WithRequestID(r.Context(), id)))
	})
}

// GetRequestID returns the id assigned by RequestID, falling back to chi's.
func GetRequestID(ctx context.Context) string {
	if id := observability.RequestID(ctx); id != "" {
		return id
	}
	return middleware.GetReqID(ctx)
}

// acceptRequestID keeps caller ids that are short and free of characters
// that would corrupt a log line or a response header.
func acceptRequestID(raw string) string {
	id := strings.TrimSpace(raw)
	if id == "" || len(id) > maxRequestIDLength {
		return ""
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case strings.ContainsRune("-_.:", c):
		default:
			return ""
		}
	}
	return id
}
