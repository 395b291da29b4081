// Package gemini speaks the Gemini and Imagen REST APIs through a retrying poster.
package gemini

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/fusionlab/fusionlab/internal/ailink/driver"
)

const (
	DefaultBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	DefaultTextModel  = "gemini-2.5-flash-preview-05-20"
	DefaultImageModel = "imagen-3.0-generate-002"

	providerName = "gemini"
)

var (
	// ErrNotConfigured is returned when no API key is available.
	ErrNotConfigured = errors.New("gemini api key is not configured")

	// ErrNoContent is returned when a successful response lacks the expected field.
	ErrNoContent = errors.New("gemini response missing content")
)

// Client calls Gemini models. Transport and retries are delegated to Poster.
type Client struct {
	BaseURL    string
	APIKey     string
	TextModel  string
	ImageModel string
	Poster     driver.Poster
}

// NewClient returns a client with defaults applied.
func NewClient(baseURL, apiKey string, poster driver.Poster) *Client {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		BaseURL:    base,
		APIKey:     strings.TrimSpace(apiKey),
		TextModel:  DefaultTextModel,
		ImageModel: DefaultImageModel,
		Poster:     poster,
	}
}

// Name returns the driver identifier.
func (c *Client) Name() string {
	return providerName
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c != nil && strings.TrimSpace(c.APIKey) != ""
}

func (c *Client) ready() error {
	if c == nil || c.Poster == nil {
		return fmt.Errorf("gemini client not configured")
	}
	if !c.Configured() {
		return ErrNotConfigured
	}
	return nil
}

// endpoint builds {base}/models/{model}:{method}?key={apiKey}.
func (c *Client) endpoint(model, method string) string {
	base := strings.TrimRight(c.BaseURL, "/")
	query := url.Values{}
	query.Set("key", c.APIKey)
	return fmt.Sprintf("%s/models/%s:%s?%s", base, url.PathEscape(model), method, query.Encode())
}

func (c *Client) textModel() string {
	if strings.TrimSpace(c.TextModel) == "" {
		return DefaultTextModel
	}
	return c.TextModel
}

func (c *Client) imageModel() string {
	if strings.TrimSpace(c.ImageModel) == "" {
		return DefaultImageModel
	}
	return c.ImageModel
}
