package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/fusionlab/fusionlab/internal/fusion"
	"github.com/fusionlab/fusionlab/internal/ratelimit"
)

// maxBodyBytes bounds request bodies; valid inputs are far smaller.
const maxBodyBytes = 64 << 10

// FusionService is the capability surface the fusion handlers call.
type FusionService interface {
	GenerateImage(ctx context.Context, clientID, input1, input2, theme string) (*fusion.ImageResult, error)
	GenerateDescription(ctx context.Context, clientID, input1, input2 string) (string, error)
	SuggestIdeas(ctx context.Context, clientID string) (*fusion.Suggestion, error)
}

type pairRequest struct {
	Input1 string `json:"input1"`
	Input2 string `json:"input2"`
	Theme  string `json:"theme,omitempty"`
}

// ImageResponse is the success body of POST /api/generate-image.
type ImageResponse struct {
	Success   bool   `json:"success"`
	ImageData string `json:"imageData"`
	Prompt    string `json:"prompt"`
}

// DescriptionResponse is the success body of POST /api/generate-description.
type DescriptionResponse struct {
	Success     bool   `json:"success"`
	Description string `json:"description"`
}

// SuggestionResponse is the success body of POST /api/suggest-ideas.
type SuggestionResponse struct {
	Success bool   `json:"success"`
	Item1   string `json:"item1"`
	Item2   string `json:"item2"`
}

// FusionHandlers serves the generation endpoints.
type FusionHandlers struct {
	Service FusionService
}

func NewFusionHandlers(service FusionService) *FusionHandlers {
	return &FusionHandlers{Service: service}
}

// GenerateImage handles POST /api/generate-image.
func (h *FusionHandlers) GenerateImage(w http.ResponseWriter, r *http.Request) {
	var req pairRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondWithError(w, r, fusion.InvalidBody(fusion.CapabilityImage, err))
		return
	}

	result, err := h.Service.GenerateImage(upstreamContext(r), ratelimit.ClientID(r), req.Input1, req.Input2, req.Theme)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ImageResponse{
		Success:   true,
		ImageData: result.ImageData,
		Prompt:    result.Prompt,
	})
}

// GenerateDescription handles POST /api/generate-description.
func (h *FusionHandlers) GenerateDescription(w http.ResponseWriter, r *http.Request) {
	var req pairRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondWithError(w, r, fusion.InvalidBody(fusion.CapabilityDescription, err))
		return
	}

	description, err := h.Service.GenerateDescription(upstreamContext(r), ratelimit.ClientID(r), req.Input1, req.Input2)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, DescriptionResponse{Success: true, Description: description})
}

// SuggestIdeas handles POST /api/suggest-ideas. The body is ignored.
func (h *FusionHandlers) SuggestIdeas(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		_, _ = io.Copy(io.Discard, http.MaxBytesReader(w, r.Body, maxBodyBytes))
	}

	suggestion, err := h.Service.SuggestIdeas(upstreamContext(r), ratelimit.ClientID(r))
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SuggestionResponse{
		Success: true,
		Item1:   suggestion.Item1,
		Item2:   suggestion.Item2,
	})
}

// upstreamContext keeps request values but not cancellation: a client that
// disconnects mid-generation does not abort the upstream call.
func upstreamContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("missing request body")
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}
