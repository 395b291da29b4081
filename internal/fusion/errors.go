package fusion

import (
	"fmt"
	"net/http"
)

// Kind classifies failures so the HTTP edge can pick a status and code.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindRateLimited
	KindConfiguration
	KindUpstreamTransport
	KindUpstreamContent
	KindBadRequestBody
)

// Public messages. Callers never see more detail than these.
const (
	MsgConfiguration    = "Server configuration error"
	MsgRateLimited      = "Too many requests. Please try again later."
	MsgInputsRequired   = "Both input1 and input2 are required"
	MsgInputTooLong     = "Input items must be less than 100 characters each"
	MsgThemeTooLong     = "Theme must be less than 50 characters"
	MsgInvalidBody      = "Invalid request body"
	msgGenerationFailed = "Failed to generate %s. Please try again."
)

// Code returns the stable error code for the kind.
func (k Kind) Code() string {
	switch k {
	case KindValidation, KindBadRequestBody:
		return "VALIDATION_FAILED"
	case KindRateLimited:
		return "RATE_LIMITED"
	case KindConfiguration:
		return "CONFIG_INVALID"
	case KindUpstreamTransport:
		return "UPSTREAM_FAILED"
	case KindUpstreamContent:
		return "GENERATION_FAILED"
	default:
		return "INTERNAL_ERROR"
	}
}

// Status returns the HTTP status for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindBadRequestBody:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified capability failure. Message is safe to return to
// callers; Err carries the internal cause for logs.
type Error struct {
	Kind       Kind
	Capability Capability
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// GenerationFailedMessage returns the public failure message for a capability.
func GenerationFailedMessage(capability Capability) string {
	return fmt.Sprintf(msgGenerationFailed, noun(capability))
}

// InvalidBody reports a request body that could not be decoded.
func InvalidBody(capability Capability, err error) *Error {
	return &Error{Kind: KindBadRequestBody, Capability: capability, Message: MsgInvalidBody, Err: err}
}

func noun(capability Capability) string {
	switch capability {
	case CapabilityImage:
		return "image"
	case CapabilityDescription:
		return "description"
	case CapabilitySuggestion:
		return "suggestions"
	default:
		return string(capability)
	}
}
