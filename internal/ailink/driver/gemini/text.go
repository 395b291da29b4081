package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/fusionlab/fusionlab/internal/ailink/driver"
)

type generateContentRequest struct {
	Contents         []*genai.Content        `json:"contents"`
	GenerationConfig *genai.GenerationConfig `json:"generationConfig,omitempty"`
}

// GenerateText sends a single user prompt and returns the first candidate's text.
func (c *Client) GenerateText(ctx context.Context, prompt string, policy driver.Policy) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}

	payload := generateContentRequest{
		Contents: []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
	}
	raw, err := c.Poster.PostJSON(ctx, c.endpoint(c.textModel(), "generateContent"), payload, policy)
	if err != nil {
		return "", err
	}

	text, err := firstCandidateText(raw)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// GenerateJSON asks for a structured reply constrained by schema and decodes it into out.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema, out any, policy driver.Policy) error {
	if err := c.ready(); err != nil {
		return err
	}

	payload := generateContentRequest{
		Contents: []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		GenerationConfig: &genai.GenerationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   schema,
		},
	}
	raw, err := c.Poster.PostJSON(ctx, c.endpoint(c.textModel(), "generateContent"), payload, policy)
	if err != nil {
		return err
	}

	text, err := firstCandidateText(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), out); err != nil {
		return fmt.Errorf("%w: structured reply is not valid JSON: %v", ErrNoContent, err)
	}
	return nil
}

// ObjectSchema describes an object whose listed properties are all required strings.
func ObjectSchema(properties ...string) *genai.Schema {
	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(properties)),
		Required:   properties,
	}
	for _, name := range properties {
		schema.Properties[name] = &genai.Schema{Type: genai.TypeString}
	}
	return schema
}

// firstCandidateText extracts candidates[0].content.parts[0].text.
func firstCandidateText(raw json.RawMessage) (string, error) {
	var resp genai.GenerateContentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrNoContent, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", fmt.Errorf("%w: no candidates", ErrNoContent)
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 || content.Parts[0] == nil {
		return "", fmt.Errorf("%w: candidate has no parts", ErrNoContent)
	}
	text := content.Parts[0].Text
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty text part", ErrNoContent)
	}
	return text, nil
}
