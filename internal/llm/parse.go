package llm

import (
	"encoding/json"
	"strings"

	"voice-intake/internal/lang"
)

// ParseExtraction decodes a JSON extraction reply. An empty detected language
// falls back to hint.
func ParseExtraction(content, hint string) (ExtractionResult, error) {
	var res ExtractionResult
	if err := json.Unmarshal([]byte(content), &res); err != nil {
		return ExtractionResult{}, Malformed("extraction json: %v", err)
	}
	if strings.TrimSpace(res.DocumentType) == "" {
		return ExtractionResult{}, Malformed("extraction missing document_type")
	}
	if strings.TrimSpace(res.DetectedLanguage) == "" {
		res.DetectedLanguage = hint
	}
	res.DetectedLanguage = lang.Normalize(res.DetectedLanguage)
	return res, nil
}

type interpretPayload struct {
	Value json.RawMessage `json:"value"`
}

// ParseInterpretation decodes {"value": ...}. Scalars are stringified; null or
// a missing key means nothing was understood.
func ParseInterpretation(content string) (Interpretation, error) {
	var payload interpretPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return Interpretation{}, Malformed("interpretation json: %v", err)
	}
	if len(payload.Value) == 0 {
		return NoValue(), nil
	}
	var values Values
	wrapped := append(append([]byte(`{"v":`), payload.Value...), '}')
	if err := json.Unmarshal(wrapped, &values); err != nil {
		return Interpretation{}, Malformed("interpretation value: %v", err)
	}
	return Value(values["v"]), nil
}
