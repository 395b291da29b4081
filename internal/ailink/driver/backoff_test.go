package driver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTimer fires immediately and remembers every requested wait.
type fakeTimer struct {
	waits []time.Duration
	c     chan time.Time
}

func (f *fakeTimer) Start(d time.Duration) {
	f.waits = append(f.waits, d)
	f.c = make(chan time.Time, 1)
	f.c <- time.Now()
}

func (f *fakeTimer) Stop() {}

func (f *fakeTimer) C() <-chan time.Time { return f.c }

func newTestClient(timer *fakeTimer) *BackoffClient {
	client := NewBackoffClient("gemini", time.Second, nil)
	client.Timer = timer
	return client
}

func statusSequence(t *testing.T, statuses []int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&calls, 1))
		status := statuses[len(statuses)-1]
		if n <= len(statuses) {
			status = statuses[n-1]
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = w.Write([]byte(body))
			return
		}
		_, _ = w.Write([]byte(`{"error":{"message":"upstream says no"}}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestPostJSONRetriesUntilSuccess(t *testing.T) {
	srv, calls := statusSequence(t, []int{503, 503, 503, 503, 200}, `{"ok":true}`)
	timer := &fakeTimer{}

	raw, err := newTestClient(timer).PostJSON(context.Background(), srv.URL, map[string]string{"q": "x"}, DefaultPolicy)
	require.NoError(t, err)

	assert.JSONEq(t, `{"ok":true}`, string(raw))
	assert.Equal(t, int32(5), atomic.LoadInt32(calls))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}, timer.waits)
}

func TestPostJSONExhaustsRetries(t *testing.T) {
	srv, calls := statusSequence(t, []int{503}, "")
	timer := &fakeTimer{}

	_, err := newTestClient(timer).PostJSON(context.Background(), srv.URL, struct{}{}, DefaultPolicy)
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.True(t, perr.Exhausted)
	assert.Equal(t, ExhaustedMessage, perr.Message)
	assert.Equal(t, 5, perr.Attempts)
	assert.Equal(t, int32(5), atomic.LoadInt32(calls))
	assert.Len(t, timer.waits, 4, "no wait follows the final attempt")

	var last *ProviderError
	require.True(t, errors.As(perr.Unwrap(), &last))
	assert.Equal(t, http.StatusServiceUnavailable, last.StatusCode)
	assert.Equal(t, "upstream says no", last.Message)
}

func TestPostJSONRetriesTooManyRequests(t *testing.T) {
	srv, calls := statusSequence(t, []int{429, 200}, `{"ok":1}`)
	timer := &fakeTimer{}

	_, err := newTestClient(timer).PostJSON(context.Background(), srv.URL, struct{}{}, Policy{MaxRetries: 3, BaseDelay: 250 * time.Millisecond})
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
	assert.Equal(t, []time.Duration{250 * time.Millisecond}, timer.waits)
}

func TestPostJSONClientErrorIsNotRetried(t *testing.T) {
	srv, calls := statusSequence(t, []int{400}, "")
	timer := &fakeTimer{}

	_, err := newTestClient(timer).PostJSON(context.Background(), srv.URL, struct{}{}, DefaultPolicy)
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.False(t, perr.Exhausted)
	assert.Equal(t, http.StatusBadRequest, perr.StatusCode)
	assert.Equal(t, "upstream says no", perr.Message)
	assert.Equal(t, 1, perr.Attempts)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Empty(t, timer.waits)
}

func TestPostJSONClientErrorWithoutMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(&fakeTimer{}).PostJSON(context.Background(), srv.URL, struct{}{}, DefaultPolicy)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "HTTP error! status: 404", perr.Message)
}

func TestPostJSONRetriesNetworkErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL + "/models/x:predict?key=secret"
	srv.Close()

	timer := &fakeTimer{}
	_, err := newTestClient(timer).PostJSON(context.Background(), endpoint, struct{}{}, Policy{MaxRetries: 3, BaseDelay: time.Second})

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.True(t, perr.Exhausted)
	assert.Equal(t, 3, perr.Attempts)
	assert.Equal(t, 0, perr.StatusCode)
	assert.NotContains(t, perr.Unwrap().Error(), "secret")
}

func TestPostJSONRejectsNonJSONSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>hello</html>"))
	}))
	defer srv.Close()

	_, err := newTestClient(&fakeTimer{}).PostJSON(context.Background(), srv.URL, struct{}{}, DefaultPolicy)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.False(t, perr.Retryable())
	assert.Equal(t, 1, perr.Attempts)
}

func TestPostJSONSendsPayload(t *testing.T) {
	var gotBody, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		gotType = r.Header.Get("Content-Type")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := newTestClient(&fakeTimer{}).PostJSON(context.Background(), srv.URL, map[string]int{"n": 1}, DefaultPolicy)
	require.NoError(t, err)

	assert.JSONEq(t, `{"n":1}`, gotBody)
	assert.Equal(t, "application/json", gotType)
}

func TestPolicyNormalization(t *testing.T) {
	p := Policy{}.normalized()
	assert.Equal(t, 1, p.MaxRetries)
	assert.Equal(t, time.Second, p.BaseDelay)
}

func TestRedactURL(t *testing.T) {
	redacted := RedactURL("https://example.test/v1beta/models/m:generateContent?key=abc123")
	assert.NotContains(t, redacted, "abc123")
	assert.Contains(t, redacted, "key=REDACTED")

	assert.Equal(t, "https://example.test/path", RedactURL("https://example.test/path"))
}

func TestTracingRecordsRedactedAttempts(t *testing.T) {
	srv, _ := statusSequence(t, []int{500, 200}, `{"ok":true}`)
	path := filepath.Join(t.TempDir(), "trace.ndjson")

	cleanup, err := EnableTracing(path)
	require.NoError(t, err)
	defer cleanup()

	_, err = newTestClient(&fakeTimer{}).PostJSON(context.Background(), srv.URL+"?key=topsecret", struct{}{}, DefaultPolicy)
	require.NoError(t, err)

	DisableTracing()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"attempt":1`)
	assert.Contains(t, lines[1], `"attempt":2`)
	assert.NotContains(t, string(data), "topsecret")
}

func TestPolicyBudget(t *testing.T) {
	assert.Equal(t, 5*10*time.Second+15*time.Second, DefaultPolicy.Budget(10*time.Second))
	assert.Equal(t, 5*defaultAttemptTimeout+15*time.Second, DefaultPolicy.Budget(0))
	assert.Equal(t, 3*time.Second, Policy{MaxRetries: 1}.Budget(3*time.Second))
	assert.Equal(t, 2*time.Second+250*time.Millisecond, Policy{MaxRetries: 2, BaseDelay: 250 * time.Millisecond}.Budget(time.Second))
}
