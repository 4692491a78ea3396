// Package llm defines the two remote inference contracts the dialogue consumes:
// intent and field extraction from a free-form utterance, and field-scoped answer interpretation.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Extractor infers a document type and as many field values as possible from one utterance.
type Extractor interface {
	Extract(ctx context.Context, req ExtractionRequest) (ExtractionResult, error)
}

// Interpreter turns one answer into a normalized value for exactly one field.
type Interpreter interface {
	Interpret(ctx context.Context, req InterpretRequest) (Interpretation, error)
}

// Client serves both contracts.
type Client interface {
	Extractor
	Interpreter
}

// ExtractionRequest is the input to Extract. LanguageHint may be "auto".
type ExtractionRequest struct {
	Transcript   string
	LanguageHint string
}

// ExtractionResult is consumed once per session.
type ExtractionResult struct {
	DocumentType          string   `json:"document_type"`
	Confidence            float64  `json:"confidence"`
	DetectedLanguage      string   `json:"detected_language"`
	ExtractedFields       Values   `json:"extracted_fields"`
	MissingRequiredFields []string `json:"missing_required_fields"`
	SuggestedQuestions    []string `json:"suggested_questions,omitempty"`
}

// InterpretRequest asks for one field in the session language.
type InterpretRequest struct {
	Transcript string
	FieldName  string
	FieldHint  string
	Language   string
}

// Interpretation carries a normalized value, or Found=false when none could be extracted.
type Interpretation struct {
	Value string `json:"value"`
	Found bool   `json:"found"`
}

// Value builds a found interpretation. Blank values count as not found.
func Value(v string) Interpretation {
	v = strings.TrimSpace(v)
	return Interpretation{Value: v, Found: v != ""}
}

// NoValue is the explicit "nothing understood" result.
func NoValue() Interpretation {
	return Interpretation{}
}

// Values is a field map that tolerates non-string JSON scalars from model output.
// Numbers and booleans are stringified; null and nested values are dropped.
type Values map[string]string

func (v *Values) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Values, len(raw))
	for key, msg := range raw {
		if s, ok := scalarString(msg); ok {
			out[key] = s
		}
	}
	*v = out
	return nil
}

func scalarString(msg json.RawMessage) (string, bool) {
	var val interface{}
	if err := json.Unmarshal(msg, &val); err != nil {
		return "", false
	}
	switch t := val.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// ErrNotConfigured is returned by the placeholder client.
var ErrNotConfigured = errors.New("llm provider not configured")

// ErrMalformedResponse marks a response that could not be decoded into the contract.
var ErrMalformedResponse = errors.New("malformed llm response")

// Malformed wraps a decoding problem so callers can match ErrMalformedResponse.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}

// PlaceholderClient fails every call; used when no provider is configured.
type PlaceholderClient struct{}

// Extract returns ErrNotConfigured.
func (PlaceholderClient) Extract(ctx context.Context, req ExtractionRequest) (ExtractionResult, error) {
	_ = ctx
	_ = req
	return ExtractionResult{}, ErrNotConfigured
}

// Interpret returns ErrNotConfigured.
func (PlaceholderClient) Interpret(ctx context.Context, req InterpretRequest) (Interpretation, error) {
	_ = ctx
	_ = req
	return Interpretation{}, ErrNotConfigured
}

var _ Client = PlaceholderClient{}
