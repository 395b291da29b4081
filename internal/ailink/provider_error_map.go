package ailink

import (
	"context"
	"errors"
	"strings"

	"github.com/fusionlab/fusionlab/internal/ailink/driver"
)

// ProviderFailure is a log-friendly classification of an upstream error.
type ProviderFailure struct {
	Code     string
	Message  string
	Details  string
	Attempts int
}

// ClassifyProviderError maps transport errors onto stable failure codes.
func ClassifyProviderError(err error) *ProviderFailure {
	if err == nil {
		return nil
	}

	var perr *driver.ProviderError
	if !errors.As(err, &perr) || perr == nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &ProviderFailure{Code: "UPSTREAM_TIMEOUT", Message: "provider request timed out", Details: err.Error()}
		}
		return &ProviderFailure{Code: "UPSTREAM_ERROR", Message: "provider request failed", Details: err.Error()}
	}

	failure := &ProviderFailure{Details: strings.TrimSpace(perr.Message), Attempts: perr.Attempts}
	status := perr.StatusCode
	switch {
	case perr.Exhausted:
		failure.Code, failure.Message = "UPSTREAM_EXHAUSTED", "provider retries exhausted"
		if last := errors.Unwrap(perr); last != nil {
			failure.Details = last.Error()
		}
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		failure.Code, failure.Message = "UPSTREAM_TIMEOUT", "provider request timed out"
	case status == 401 || status == 403:
		failure.Code, failure.Message = "UPSTREAM_AUTH", "provider authentication failed"
	case status == 429:
		failure.Code, failure.Message = "UPSTREAM_RATE_LIMIT", "provider rate limited"
	case status >= 500 && status <= 599:
		failure.Code, failure.Message = "UPSTREAM_UNAVAILABLE", "provider unavailable"
	case status >= 400 && status <= 499:
		failure.Code, failure.Message = "UPSTREAM_BAD_REQUEST", "provider rejected request"
	default:
		failure.Code, failure.Message = "UPSTREAM_ERROR", "provider request failed"
	}
	return failure
}
