package integration

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusionlab/fusionlab/internal/ailink/driver"
	"github.com/fusionlab/fusionlab/internal/ailink/driver/gemini"
	"github.com/fusionlab/fusionlab/internal/counter"
	"github.com/fusionlab/fusionlab/internal/fusion"
	"github.com/fusionlab/fusionlab/internal/observability"
	"github.com/fusionlab/fusionlab/internal/server"
	"github.com/fusionlab/fusionlab/internal/server/handlers"
)

// cleanupMetrics tears down global telemetry state so each test starts clean.
// Lingering exporters can block later binds in sandboxes.
func cleanupMetrics(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		_ = observability.StopMetrics()
	})
}

// isPermissionError normalizes OS-specific permission errors so tests can
// skip when loopback sockets are blocked.
func isPermissionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EACCES) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{"permission denied", "operation not permitted", "not permitted"} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

func initMetricsOrSkip(t *testing.T) {
	t.Helper()
	if err := observability.InitMetrics("test", 0); err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping metrics tests due to sandbox permissions: %v", err)
		}
		require.NoError(t, err)
	}
	cleanupMetrics(t)
}

// fakeUpstream answers generateContent with a short description.
func fakeUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"A teapot that hums lullabies."}]}}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newTestServer binds to IPv4 loopback explicitly and skips when the sandbox
// refuses to open sockets.
func newTestServer(t *testing.T, metricsEnabled bool) (*httptest.Server, *http.Client) {
	t.Helper()

	upstream := fakeUpstream(t)
	client := gemini.NewClient(upstream.URL, "test-key", driver.NewBackoffClient("gemini", 5*time.Second, nil))
	svc, err := fusion.NewService(fusion.Options{Generator: client})
	require.NoError(t, err)

	srv := server.New(server.Options{
		Host:    "127.0.0.1",
		Fusion:  svc,
		Counter: counter.NewFileStore(filepath.Join(t.TempDir(), "fusion-count.json"), nil),
		Health:  true,
		Metrics: metricsEnabled,
	})

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping server setup: %v", err)
		}
		require.NoError(t, err)
	}

	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: srv.Handler()},
	}
	ts.Start()
	t.Cleanup(ts.Close)
	return ts, ts.Client()
}

func TestMetricsEndpoint_Integration(t *testing.T) {
	observability.InitCLILogger("test", false)
	observability.InitServerLogger("test", "info", "structured")

	initMetricsOrSkip(t)
	handlers.InitHealthManager("test")

	ts, client := newTestServer(t, true)

	const numRequests = 40
	const numWorkers = 8

	requestChan := make(chan int, numRequests)
	for i := 0; i < numRequests; i++ {
		requestChan <- i
	}
	close(requestChan)

	start := time.Now()

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			for reqNum := range requestChan {
				var (
					resp *http.Response
					err  error
				)
				switch reqNum % 4 {
				case 0:
					resp, err = client.Post(ts.URL+"/api/fusion-count", "application/json", nil)
				case 1:
					resp, err = client.Get(ts.URL + "/api/fusion-count")
				case 2:
					// Distinct forwarded clients keep every request inside its budget.
					req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/generate-description",
						strings.NewReader(`{"input1":"Teapot","input2":"Lullaby"}`))
					req.Header.Set("Content-Type", "application/json")
					req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", reqNum))
					resp, err = client.Do(req)
				default:
					resp, err = client.Get(ts.URL + "/health")
				}
				if err == nil {
					_ = resp.Body.Close()
				}
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	resp, err := client.Get(ts.URL + "/api/fusion-count")
	require.NoError(t, err)
	countBody, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":10}`, string(countBody), "concurrent increments are serialized")

	resp, err = client.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, readErr := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, readErr)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	metricsContent := string(body)
	assert.Contains(t, metricsContent, "test_http_requests_total")
	assert.Contains(t, metricsContent, "test_http_request_duration_ms")
	assert.Contains(t, metricsContent, "test_fusion_generations_total")
	assert.Contains(t, metricsContent, "test_fusion_count_increments_total")
	assert.True(t, elapsed < 10*time.Second, "load test should complete in reasonable time")
}

func TestMetricsEndpoint_PrometheusFormat(t *testing.T) {
	observability.InitCLILogger("test", false)
	observability.InitServerLogger("test", "info", "structured")

	initMetricsOrSkip(t)
	handlers.InitHealthManager("test")

	ts, client := newTestServer(t, true)

	resp, err := client.Get(ts.URL + "/api/fusion-count")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	contentType := resp.Header.Get("Content-Type")
	assert.True(t, strings.HasPrefix(contentType, "text/plain; version=0.0.4"),
		"expected Prometheus content type, got: %s", contentType)

	body, readErr := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, readErr)

	metricLines := 0
	for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
		if !strings.HasPrefix(line, "#") && strings.TrimSpace(line) != "" {
			metricLines++
		}
	}
	assert.Greater(t, metricLines, 0, "should have actual metric values")
}

func TestMetricsEndpoint_WithTelemetryDisabled(t *testing.T) {
	observability.InitCLILogger("test", false)
	observability.InitServerLogger("test", "info", "simple")

	originalExporter := observability.PrometheusExporter
	originalTelemetry := observability.TelemetrySystem
	observability.PrometheusExporter = nil
	observability.TelemetrySystem = nil
	t.Cleanup(func() {
		observability.PrometheusExporter = originalExporter
		observability.TelemetrySystem = originalTelemetry
	})

	handlers.InitHealthManager("test")
	ts, client := newTestServer(t, true)

	resp, err := client.Get(ts.URL + "/api/fusion-count")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsRouteAbsentWhenDisabled(t *testing.T) {
	handlers.InitHealthManager("test")
	ts, client := newTestServer(t, false)

	resp, err := client.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
