package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeStructured decodes a model's JSON response text into out.
// Models frequently wrap JSON in markdown code fences or surrounding prose;
// the decoder strips fences and isolates the outermost JSON object before
// unmarshalling. Any decode failure wraps ErrValidation.
func DecodeStructured(text string, out any) error {
	cleaned := strings.TrimSpace(text)

	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
		cleaned = strings.TrimSpace(cleaned)
	}

	// Isolate the outermost object if the model added prose around it.
	if !strings.HasPrefix(cleaned, "{") {
		start := strings.Index(cleaned, "{")
		end := strings.LastIndex(cleaned, "}")
		if start >= 0 && end > start {
			cleaned = cleaned[start : end+1]
		}
	}

	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("%w: decoding %q: %v", ErrValidation, text, err)
	}

	if v, ok := out.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}

	return nil
}
