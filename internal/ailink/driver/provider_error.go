package driver

import (
	"fmt"
	"net/http"
)

// ExhaustedMessage is reported once every attempt of a retryable call has failed.
const ExhaustedMessage = "API request failed after multiple retries."

// ProviderError is returned when an outbound provider call fails.
//
// RawResponse holds the provider response body and must never include API keys.
type ProviderError struct {
	Provider    string
	StatusCode  int
	Message     string
	RawResponse []byte

	// Attempts is the number of HTTP attempts made before giving up.
	Attempts int
	// Exhausted is set when retries ran out; Err then holds the last attempt's error.
	Exhausted bool
	Err       error

	retryable bool
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}
	if e.Exhausted {
		return fmt.Sprintf("%s request failed after %d attempts: %s", e.Provider, e.Attempts, e.Message)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s request failed: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s request failed: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Retryable reports whether the failure is transient (rate limiting, server
// errors, network failures).
func (e *ProviderError) Retryable() bool {
	return e != nil && e.retryable
}

// IsRetryableStatus reports whether an HTTP status warrants another attempt.
func IsRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
