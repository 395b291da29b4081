package ailink

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fusionlab/fusionlab/internal/ailink/driver"
)

func TestClassifyProviderErrorStatusCodes(t *testing.T) {
	cases := []struct {
		name       string
		statusCode int
		wantCode   string
	}{
		{"auth", 401, "UPSTREAM_AUTH"},
		{"forbidden", 403, "UPSTREAM_AUTH"},
		{"rate", 429, "UPSTREAM_RATE_LIMIT"},
		{"bad", 400, "UPSTREAM_BAD_REQUEST"},
		{"unavail", 503, "UPSTREAM_UNAVAILABLE"},
		{"ok-but-bad-body", 200, "UPSTREAM_ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := &driver.ProviderError{Provider: "gemini", StatusCode: tc.statusCode, Message: "boom", Attempts: 1}
			mapped := ClassifyProviderError(err)
			require.NotNil(t, mapped)
			require.Equal(t, tc.wantCode, mapped.Code)
			require.Equal(t, "boom", mapped.Details)
		})
	}
}

func TestClassifyProviderErrorExhausted(t *testing.T) {
	last := &driver.ProviderError{Provider: "gemini", StatusCode: 503, Message: "overloaded"}
	err := &driver.ProviderError{Provider: "gemini", StatusCode: 503, Message: driver.ExhaustedMessage, Attempts: 5, Exhausted: true, Err: last}

	mapped := ClassifyProviderError(err)
	require.Equal(t, "UPSTREAM_EXHAUSTED", mapped.Code)
	require.Equal(t, 5, mapped.Attempts)
	require.Contains(t, mapped.Details, "overloaded")
}

func TestClassifyProviderErrorPlainErrors(t *testing.T) {
	require.Nil(t, ClassifyProviderError(nil))
	require.Equal(t, "UPSTREAM_TIMEOUT", ClassifyProviderError(context.DeadlineExceeded).Code)
	require.Equal(t, "UPSTREAM_ERROR", ClassifyProviderError(errors.New("boom")).Code)
}
