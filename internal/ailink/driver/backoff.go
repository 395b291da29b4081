package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/fusionlab/fusionlab/internal/metrics"
)

const defaultAttemptTimeout = 60 * time.Second

// BackoffClient posts JSON and retries transient failures with exponential delay.
//
// HTTP 429, any 5xx and network errors are retried. Any other non-2xx status
// fails immediately with the provider's error message.
type BackoffClient struct {
	Provider   string
	HTTPClient *http.Client
	// Timeout bounds each attempt, not the whole call.
	Timeout time.Duration
	Logger  *logging.Logger

	// Timer drives waits between attempts; nil uses a real timer.
	Timer backoff.Timer
}

// NewBackoffClient returns a client with defaults applied.
func NewBackoffClient(provider string, timeout time.Duration, logger *logging.Logger) *BackoffClient {
	return &BackoffClient{
		Provider: provider,
		Timeout:  timeout,
		Logger:   logger,
	}
}

// PostJSON sends payload to endpoint under the given retry policy.
func (c *BackoffClient) PostJSON(ctx context.Context, endpoint string, payload any, policy Policy) (json.RawMessage, error) {
	if c == nil {
		return nil, fmt.Errorf("backoff client not configured")
	}
	policy = policy.normalized()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	var (
		result   json.RawMessage
		attempts int
		lastErr  *ProviderError
	)

	operation := func() error {
		attempts++
		raw, perr := c.attempt(ctx, endpoint, body, attempts)
		if perr == nil {
			result = raw
			metrics.RecordUpstreamAttempt(c.provider(), "success")
			return nil
		}

		perr.Attempts = attempts
		lastErr = perr
		if !perr.Retryable() {
			metrics.RecordUpstreamAttempt(c.provider(), "failed")
			return backoff.Permanent(perr)
		}
		metrics.RecordUpstreamAttempt(c.provider(), "retryable")
		return perr
	}

	notify := func(err error, wait time.Duration) {
		status := 0
		if lastErr != nil {
			status = lastErr.StatusCode
		}
		metrics.RecordUpstreamRetry(c.provider(), status)
		if c.Logger != nil {
			c.Logger.Warn("Upstream request failed, retrying",
				zap.String("provider", c.provider()),
				zap.Int("attempt", attempts),
				zap.Int("max_attempts", policy.MaxRetries),
				zap.Int("status", status),
				zap.Duration("wait", wait),
				zap.Error(err))
		}
	}

	err = backoff.RetryNotifyWithTimer(operation, c.backOff(ctx, policy), notify, c.Timer)
	if err == nil {
		return result, nil
	}

	if lastErr == nil {
		return nil, &ProviderError{Provider: c.provider(), Message: err.Error(), Attempts: attempts, Err: err}
	}
	if !lastErr.Retryable() {
		return nil, lastErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, &ProviderError{Provider: c.provider(), Message: "request cancelled", Attempts: attempts, Err: errors.Join(ctxErr, lastErr)}
	}

	if c.Logger != nil {
		c.Logger.Error("Upstream retries exhausted",
			zap.String("provider", c.provider()),
			zap.Int("attempts", attempts),
			zap.Int("last_status", lastErr.StatusCode),
			zap.String("last_error", lastErr.Message))
	}
	return nil, &ProviderError{
		Provider:   c.provider(),
		StatusCode: lastErr.StatusCode,
		Message:    ExhaustedMessage,
		Attempts:   attempts,
		Exhausted:  true,
		Err:        lastErr,
	}
}

// backOff builds base, 2*base, 4*base, ... with no jitter and no elapsed-time cap.
// The wait after the final attempt is never taken.
func (c *BackoffClient) backOff(ctx context.Context, policy Policy) backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = policy.BaseDelay
	expo.Multiplier = 2
	expo.RandomizationFactor = 0
	expo.MaxInterval = policy.BaseDelay << uint(policy.MaxRetries)
	expo.MaxElapsedTime = 0
	expo.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(expo, uint64(policy.MaxRetries-1)), ctx)
}

func (c *BackoffClient) attempt(ctx context.Context, endpoint string, body []byte, n int) (json.RawMessage, *ProviderError) {
	start := time.Now()
	trace := TraceEntry{
		Driver:      c.provider(),
		Endpoint:    RedactURL(endpoint),
		Method:      http.MethodPost,
		Attempt:     n,
		RequestBody: json.RawMessage(body),
	}
	defer func() {
		trace.DurationMs = time.Since(start).Milliseconds()
		Trace(trace)
	}()

	attemptCtx, cancel := withTimeout(ctx, c.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		trace.Error = err.Error()
		return nil, &ProviderError{Provider: c.provider(), Message: fmt.Sprintf("build request: %v", err), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		err = unwrapURLError(err)
		trace.Error = err.Error()
		return nil, &ProviderError{Provider: c.provider(), Message: err.Error(), Err: err, retryable: ctx.Err() == nil}
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	respBody, err := io.ReadAll(resp.Body)
	trace.StatusCode = resp.StatusCode
	if err != nil {
		trace.Error = err.Error()
		return nil, &ProviderError{Provider: c.provider(), StatusCode: resp.StatusCode, Message: fmt.Sprintf("read response: %v", err), Err: err, retryable: ctx.Err() == nil}
	}
	if json.Valid(respBody) {
		trace.Response = json.RawMessage(respBody)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		perr := &ProviderError{
			Provider:    c.provider(),
			StatusCode:  resp.StatusCode,
			Message:     errorMessage(resp.StatusCode, respBody),
			RawResponse: respBody,
			retryable:   IsRetryableStatus(resp.StatusCode),
		}
		trace.Error = perr.Message
		return nil, perr
	}

	if !json.Valid(respBody) {
		trace.Error = "invalid JSON response"
		return nil, &ProviderError{Provider: c.provider(), StatusCode: resp.StatusCode, Message: "invalid JSON response", RawResponse: respBody}
	}

	return json.RawMessage(respBody), nil
}

// errorMessage prefers the provider's error.message and falls back to the status.
func errorMessage(status int, body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if msg := strings.TrimSpace(parsed.Error.Message); msg != "" {
			return msg
		}
	}
	return "HTTP error! status: " + strconv.Itoa(status)
}

// RedactURL removes credentials from query strings before they reach logs or traces.
func RedactURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	query := parsed.Query()
	if query.Has("key") {
		query.Set("key", "REDACTED")
		parsed.RawQuery = query.Encode()
	}
	return parsed.String()
}

// unwrapURLError drops the *url.Error wrapper, whose message embeds the full
// request URL including the API key.
func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return fmt.Errorf("%s %s: %w", urlErr.Op, RedactURL(urlErr.URL), urlErr.Err)
	}
	return err
}

func (c *BackoffClient) provider() string {
	if strings.TrimSpace(c.Provider) == "" {
		return "upstream"
	}
	return c.Provider
}

func (c *BackoffClient) timeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultAttemptTimeout
	}
	return c.Timeout
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
