package ratelimit

import (
	"net/http"
	"strings"
)

// UnknownClient is the shared bucket for requests without identifying headers.
const UnknownClient = "unknown"

// ClientID derives the limiter key for a request from proxy headers.
func ClientID(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	return UnknownClient
}
