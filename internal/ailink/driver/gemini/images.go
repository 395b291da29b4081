package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fusionlab/fusionlab/internal/ailink/driver"
	"github.com/fusionlab/fusionlab/internal/ailink/encode"
)

type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters predictParameters `json:"parameters"`
}

type predictInstance struct {
	Prompt string `json:"prompt"`
}

type predictParameters struct {
	SampleCount int `json:"sampleCount"`
}

type predictResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
		MimeType           string `json:"mimeType,omitempty"`
	} `json:"predictions"`
}

// Image is a generated image as base64.
type Image struct {
	Base64   string
	MimeType string
}

// GenerateImage renders one image for prompt with the Imagen predict endpoint.
func (c *Client) GenerateImage(ctx context.Context, prompt string, policy driver.Policy) (*Image, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	payload := predictRequest{
		Instances:  []predictInstance{{Prompt: prompt}},
		Parameters: predictParameters{SampleCount: 1},
	}
	raw, err := c.Poster.PostJSON(ctx, c.endpoint(c.imageModel(), "predict"), payload, policy)
	if err != nil {
		return nil, err
	}

	var resp predictResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrNoContent, err)
	}
	if len(resp.Predictions) == 0 {
		return nil, fmt.Errorf("%w: no predictions", ErrNoContent)
	}

	data, err := encode.NormalizeImageBase64(resp.Predictions[0].BytesBase64Encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid image payload: %v", ErrNoContent, err)
	}

	mime := resp.Predictions[0].MimeType
	if mime == "" {
		mime = "image/png"
	}
	return &Image{Base64: data, MimeType: mime}, nil
}
