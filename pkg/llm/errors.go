package llm

import "errors"

var (
	// ErrModelCall is returned when a model invocation fails (network error,
	// non-2xx status, malformed provider response). Callers that configure a
	// fallback client retry once against it before surfacing the error.
	ErrModelCall = errors.New("model call failed")

	// ErrValidation is returned when a structured response cannot be decoded
	// into the requested shape, or decodes to a value outside its closed
	// enumeration. Never retried.
	ErrValidation = errors.New("structured response validation failed")
)
