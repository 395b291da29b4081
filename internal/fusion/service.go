package fusion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/fusionlab/fusionlab/internal/ailink"
	"github.com/fusionlab/fusionlab/internal/ailink/driver"
	"github.com/fusionlab/fusionlab/internal/ailink/driver/gemini"
	"github.com/fusionlab/fusionlab/internal/ailink/prompt"
	"github.com/fusionlab/fusionlab/internal/metrics"
	"github.com/fusionlab/fusionlab/internal/observability"
	"github.com/fusionlab/fusionlab/internal/ratelimit"
)

// Generator is the upstream model surface the service needs.
type Generator interface {
	Configured() bool
	GenerateText(ctx context.Context, prompt string, policy driver.Policy) (string, error)
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema, out any, policy driver.Policy) error
	GenerateImage(ctx context.Context, prompt string, policy driver.Policy) (*gemini.Image, error)
}

// Options configures a Service. Zero values get defaults except Generator.
type Options struct {
	Generator Generator
	Limiter   ratelimit.Limiter
	Prompts   prompt.Registry
	Settings  map[Capability]Settings
	Logger    *logging.Logger
}

// Service runs the capability pipeline: credential check, validation, rate
// check, upstream call and extraction.
type Service struct {
	generator Generator
	limiter   ratelimit.Limiter
	prompts   prompt.Registry
	settings  map[Capability]Settings
	logger    *logging.Logger
}

// ImageResult is a generated image and the prompt that produced it.
type ImageResult struct {
	ImageData string
	MimeType  string
	Prompt    string
}

// Suggestion is a pair of items worth fusing.
type Suggestion struct {
	Item1 string
	Item2 string
}

// NewService validates options and applies defaults.
func NewService(opts Options) (*Service, error) {
	if opts.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}

	settings := MergeSettings(opts.Settings)

	prompts := opts.Prompts
	if prompts == nil {
		reg, err := prompt.DefaultRegistry()
		if err != nil {
			return nil, fmt.Errorf("load prompts: %w", err)
		}
		prompts = reg
	}
	for _, slug := range []string{prompt.SlugImage, prompt.SlugDescription, prompt.SlugSuggestion} {
		if _, err := prompts.Get(slug); err != nil {
			return nil, err
		}
	}

	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.NewMemoryLimiter(Limits(settings))
	}

	return &Service{
		generator: opts.Generator,
		limiter:   limiter,
		prompts:   prompts,
		settings:  settings,
		logger:    opts.Logger,
	}, nil
}

// Settings returns the effective settings for a capability.
func (s *Service) Settings(capability Capability) Settings {
	return s.settings[capability]
}

// Configured reports whether the upstream credential is present.
func (s *Service) Configured() bool {
	return s.generator.Configured()
}

// GenerateImage renders an image fusing input1 and input2, optionally themed.
func (s *Service) GenerateImage(ctx context.Context, clientID, input1, input2, theme string) (result *ImageResult, err error) {
	const capability = CapabilityImage
	start := time.Now()
	defer func() { s.record(capability, start, err) }()

	pair, err := s.begin(ctx, capability, clientID, input1, input2, theme)
	if err != nil {
		return nil, err
	}

	text, err := s.render(ctx, capability, prompt.SlugImage, map[string]string{
		"input1": pair.Input1,
		"input2": pair.Input2,
		"theme":  pair.Theme,
	})
	if err != nil {
		return nil, err
	}

	img, err := s.generator.GenerateImage(ctx, text, s.settings[capability].Policy())
	if err != nil {
		return nil, s.upstreamError(ctx, capability, err)
	}
	return &ImageResult{ImageData: img.Base64, MimeType: img.MimeType, Prompt: text}, nil
}

// GenerateDescription writes a short description of the fused object.
func (s *Service) GenerateDescription(ctx context.Context, clientID, input1, input2 string) (description string, err error) {
	const capability = CapabilityDescription
	start := time.Now()
	defer func() { s.record(capability, start, err) }()

	pair, err := s.begin(ctx, capability, clientID, input1, input2, "")
	if err != nil {
		return "", err
	}

	text, err := s.render(ctx, capability, prompt.SlugDescription, map[string]string{
		"input1": pair.Input1,
		"input2": pair.Input2,
	})
	if err != nil {
		return "", err
	}

	description, err = s.generator.GenerateText(ctx, text, s.settings[capability].Policy())
	if err != nil {
		return "", s.upstreamError(ctx, capability, err)
	}
	return description, nil
}

// SuggestIdeas asks the model for two contrasting items.
func (s *Service) SuggestIdeas(ctx context.Context, clientID string) (suggestion *Suggestion, err error) {
	const capability = CapabilitySuggestion
	start := time.Now()
	defer func() { s.record(capability, start, err) }()

	if err := s.checkCredential(capability); err != nil {
		return nil, err
	}
	if err := s.admit(ctx, capability, clientID); err != nil {
		return nil, err
	}

	p, err := s.prompts.Get(prompt.SlugSuggestion)
	if err != nil {
		return nil, s.internalError(ctx, capability, err)
	}
	text, err := p.Render(nil)
	if err != nil {
		return nil, s.internalError(ctx, capability, err)
	}

	fields := p.Config.ResponseFields
	if len(fields) == 0 {
		fields = []string{"item1", "item2"}
	}

	var reply map[string]any
	if err := s.generator.GenerateJSON(ctx, text, gemini.ObjectSchema(fields...), &reply, s.settings[capability].Policy()); err != nil {
		return nil, s.upstreamError(ctx, capability, err)
	}

	item1, ok1 := nonEmptyString(reply["item1"])
	item2, ok2 := nonEmptyString(reply["item2"])
	if !ok1 || !ok2 {
		return nil, s.upstreamError(ctx, capability, fmt.Errorf("%w: invalid suggestion format", gemini.ErrNoContent))
	}
	return &Suggestion{Item1: item1, Item2: item2}, nil
}

func (s *Service) begin(ctx context.Context, capability Capability, clientID, input1, input2, theme string) (Pair, error) {
	if err := s.checkCredential(capability); err != nil {
		return Pair{}, err
	}
	pair, err := ValidatePair(capability, input1, input2, theme)
	if err != nil {
		return Pair{}, err
	}
	if err := s.admit(ctx, capability, clientID); err != nil {
		return Pair{}, err
	}
	return pair, nil
}

func (s *Service) checkCredential(capability Capability) error {
	if s.generator.Configured() {
		return nil
	}
	return &Error{Kind: KindConfiguration, Capability: capability, Message: MsgConfiguration, Err: gemini.ErrNotConfigured}
}

// admit consults the limiter. Limiter backend failures admit the request.
func (s *Service) admit(ctx context.Context, capability Capability, clientID string) error {
	if strings.TrimSpace(clientID) == "" {
		clientID = ratelimit.UnknownClient
	}
	limited, err := s.limiter.IsRateLimited(ctx, string(capability), clientID)
	if err != nil {
		s.logWarn(ctx, "Rate limiter unavailable, admitting request",
			zap.String("capability", string(capability)),
			zap.Error(err))
		return nil
	}
	if limited {
		metrics.RecordRateLimited(string(capability))
		s.logInfo(ctx, "Rate limit exceeded",
			zap.String("capability", string(capability)),
			zap.String("client_id", clientID))
		return &Error{Kind: KindRateLimited, Capability: capability, Message: MsgRateLimited}
	}
	return nil
}

func (s *Service) render(ctx context.Context, capability Capability, slug string, vars map[string]string) (string, error) {
	p, err := s.prompts.Get(slug)
	if err != nil {
		return "", s.internalError(ctx, capability, err)
	}
	text, err := p.Render(vars)
	if err != nil {
		return "", s.internalError(ctx, capability, err)
	}
	return text, nil
}

func (s *Service) upstreamError(ctx context.Context, capability Capability, err error) error {
	kind := KindUpstreamTransport
	switch {
	case errors.Is(err, gemini.ErrNotConfigured):
		return &Error{Kind: KindConfiguration, Capability: capability, Message: MsgConfiguration, Err: err}
	case errors.Is(err, gemini.ErrNoContent):
		kind = KindUpstreamContent
	}

	fields := []zap.Field{
		zap.String("capability", string(capability)),
		zap.String("error_kind", kind.Code()),
	}
	if kind == KindUpstreamTransport {
		if failure := ailink.ClassifyProviderError(err); failure != nil {
			fields = append(fields,
				zap.String("provider_code", failure.Code),
				zap.String("provider_details", failure.Details),
				zap.Int("attempts", failure.Attempts))
		}
	} else {
		fields = append(fields, zap.Error(err))
	}
	s.logError(ctx, "Generation failed", fields...)

	return &Error{Kind: kind, Capability: capability, Message: GenerationFailedMessage(capability), Err: err}
}

func (s *Service) internalError(ctx context.Context, capability Capability, err error) error {
	s.logError(ctx, "Prompt rendering failed", zap.String("capability", string(capability)), zap.Error(err))
	return &Error{Kind: KindUpstreamContent, Capability: capability, Message: GenerationFailedMessage(capability), Err: err}
}

func (s *Service) record(capability Capability, start time.Time, err error) {
	metrics.RecordGeneration(string(capability), outcome(err), time.Since(start))
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	var ferr *Error
	if !errors.As(err, &ferr) {
		return "failed"
	}
	switch ferr.Kind {
	case KindValidation, KindBadRequestBody:
		return "rejected"
	case KindRateLimited:
		return "rate_limited"
	case KindConfiguration:
		return "misconfigured"
	default:
		return "failed"
	}
}

func nonEmptyString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func (s *Service) logInfo(ctx context.Context, msg string, fields ...zap.Field) {
	if s.logger != nil {
		s.logger.Info(msg, append(fields, observability.RequestFields(ctx)...)...)
	}
}

func (s *Service) logWarn(ctx context.Context, msg string, fields ...zap.Field) {
	if s.logger != nil {
		s.logger.Warn(msg, append(fields, observability.RequestFields(ctx)...)...)
	}
}

func (s *Service) logError(ctx context.Context, msg string, fields ...zap.Field) {
	if s.logger != nil {
		s.logger.Error(msg, append(fields, observability.RequestFields(ctx)...)...)
	}
}
