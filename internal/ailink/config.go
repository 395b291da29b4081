package ailink

import (
	"strings"
	"time"
)

// Config defines the generative provider settings.
type Config struct {
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	TextModel  string        `mapstructure:"text_model"`
	ImageModel string        `mapstructure:"image_model"`
	Timeout    time.Duration `mapstructure:"timeout"`

	// PromptsDir overrides the built-in prompt templates.
	PromptsDir string `mapstructure:"prompts_dir"`

	// TraceFile, when set, records every upstream attempt as NDJSON.
	TraceFile string `mapstructure:"trace_file"`
}

// HasCredential reports whether an API key is configured.
func (c Config) HasCredential() bool {
	return strings.TrimSpace(c.APIKey) != ""
}
