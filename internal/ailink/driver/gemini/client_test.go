package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusionlab/fusionlab/internal/ailink/driver"
)

type capturedRequest struct {
	Path  string
	Key   string
	Body  map[string]any
	Count int
}

func newTestServer(t *testing.T, status int, response string) (*Client, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Count++
		captured.Path = r.URL.Path
		captured.Key = r.URL.Query().Get("key")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &captured.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, "test-key", driver.NewBackoffClient("gemini", time.Second, nil))
	return client, captured
}

var fastPolicy = driver.Policy{MaxRetries: 1, BaseDelay: time.Millisecond}

func TestGenerateText(t *testing.T) {
	client, captured := newTestServer(t, http.StatusOK,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"  A spoon-shaped comet.  "}]}}]}`)

	text, err := client.GenerateText(context.Background(), "describe it", fastPolicy)
	require.NoError(t, err)

	assert.Equal(t, "A spoon-shaped comet.", text)
	assert.Equal(t, "/models/"+DefaultTextModel+":generateContent", captured.Path)
	assert.Equal(t, "test-key", captured.Key)

	contents := captured.Body["contents"].([]any)
	require.Len(t, contents, 1)
	first := contents[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
	parts := first["parts"].([]any)
	assert.Equal(t, "describe it", parts[0].(map[string]any)["text"])
	assert.NotContains(t, captured.Body, "generationConfig")
}

func TestGenerateTextMissingCandidates(t *testing.T) {
	client, _ := newTestServer(t, http.StatusOK, `{"candidates":[]}`)

	_, err := client.GenerateText(context.Background(), "x", fastPolicy)
	require.ErrorIs(t, err, ErrNoContent)
}

func TestGenerateTextEmptyParts(t *testing.T) {
	client, _ := newTestServer(t, http.StatusOK, `{"candidates":[{"content":{"parts":[]}}]}`)

	_, err := client.GenerateText(context.Background(), "x", fastPolicy)
	require.ErrorIs(t, err, ErrNoContent)
}

func TestGenerateJSON(t *testing.T) {
	client, captured := newTestServer(t, http.StatusOK,
		`{"candidates":[{"content":{"parts":[{"text":"{\"item1\":\"Teapot\",\"item2\":\"Volcano\"}"}]}}]}`)

	var out struct {
		Item1 string `json:"item1"`
		Item2 string `json:"item2"`
	}
	err := client.GenerateJSON(context.Background(), "suggest", ObjectSchema("item1", "item2"), &out, fastPolicy)
	require.NoError(t, err)

	assert.Equal(t, "Teapot", out.Item1)
	assert.Equal(t, "Volcano", out.Item2)

	cfg, ok := captured.Body["generationConfig"].(map[string]any)
	require.True(t, ok, "structured requests carry a generation config")
	assert.Equal(t, "application/json", cfg["responseMimeType"])
	schema := cfg["responseSchema"].(map[string]any)
	assert.Equal(t, "OBJECT", schema["type"])
	assert.ElementsMatch(t, []any{"item1", "item2"}, schema["required"])
}

func TestGenerateJSONInvalidText(t *testing.T) {
	client, _ := newTestServer(t, http.StatusOK,
		`{"candidates":[{"content":{"parts":[{"text":"Teapot and Volcano"}]}}]}`)

	var out map[string]string
	err := client.GenerateJSON(context.Background(), "suggest", ObjectSchema("item1"), &out, fastPolicy)
	require.ErrorIs(t, err, ErrNoContent)
}

func TestGenerateImage(t *testing.T) {
	client, captured := newTestServer(t, http.StatusOK,
		`{"predictions":[{"bytesBase64Encoded":"aGVsbG8=","mimeType":"image/png"}]}`)

	img, err := client.GenerateImage(context.Background(), "a fusion", fastPolicy)
	require.NoError(t, err)

	assert.Equal(t, "aGVsbG8=", img.Base64)
	assert.Equal(t, "image/png", img.MimeType)
	assert.Equal(t, "/models/"+DefaultImageModel+":predict", captured.Path)

	instances := captured.Body["instances"].([]any)
	assert.Equal(t, "a fusion", instances[0].(map[string]any)["prompt"])
	params := captured.Body["parameters"].(map[string]any)
	assert.Equal(t, float64(1), params["sampleCount"])
}

func TestGenerateImageMissingPayload(t *testing.T) {
	client, _ := newTestServer(t, http.StatusOK, `{"predictions":[{}]}`)

	_, err := client.GenerateImage(context.Background(), "a fusion", fastPolicy)
	require.ErrorIs(t, err, ErrNoContent)
}

func TestGenerateImageProviderError(t *testing.T) {
	client, captured := newTestServer(t, http.StatusBadRequest, `{"error":{"message":"prompt blocked"}}`)

	_, err := client.GenerateImage(context.Background(), "a fusion", driver.DefaultPolicy)

	var perr *driver.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "prompt blocked", perr.Message)
	assert.Equal(t, 1, captured.Count)
}

func TestClientRequiresAPIKey(t *testing.T) {
	client := NewClient("", "  ", driver.NewBackoffClient("gemini", 0, nil))

	assert.False(t, client.Configured())
	assert.Equal(t, DefaultBaseURL, client.BaseURL)

	_, err := client.GenerateText(context.Background(), "x", fastPolicy)
	require.ErrorIs(t, err, ErrNotConfigured)
}
