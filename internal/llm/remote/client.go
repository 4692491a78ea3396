// Package remote talks to an intake backend that already exposes
// /smart-form-detection and /translate-and-fill.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voice-intake/internal/lang"
	"voice-intake/internal/llm"
)

const (
	detectPath    = "/smart-form-detection"
	translatePath = "/translate-and-fill"
)

// Client implements llm.Client over the intake backend's JSON API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient builds a client for baseURL. token, when set, is sent as a bearer token.
func NewClient(baseURL, token string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("INTAKE_SERVICE_URL is required for the remote provider")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type detectRequest struct {
	SpeechText string `json:"speech_text"`
	Language   string `json:"language"`
}

type detectResponse struct {
	FormType              string     `json:"form_type"`
	Confidence            float64    `json:"confidence"`
	DetectedLanguage      string     `json:"detected_language"`
	ExtractedData         llm.Values `json:"extracted_data"`
	MissingRequiredFields []string   `json:"missing_required_fields"`
	SuggestedQuestions    []string   `json:"suggested_questions"`
	Error                 string     `json:"error"`
}

type translateRequest struct {
	Text           string `json:"text"`
	FieldName      string `json:"field_name"`
	FieldHelp      string `json:"field_help"`
	SourceLanguage string `json:"source_language"`
}

type translateResponse struct {
	TranslatedValue json.RawMessage `json:"translated_value"`
	Error           string          `json:"error"`
}

// Extract posts the transcript to /smart-form-detection.
func (c *Client) Extract(ctx context.Context, req llm.ExtractionRequest) (llm.ExtractionResult, error) {
	hint := strings.TrimSpace(req.LanguageHint)
	if hint == "" {
		hint = "auto"
	}
	var resp detectResponse
	if err := c.post(ctx, detectPath, detectRequest{SpeechText: req.Transcript, Language: hint}, &resp); err != nil {
		return llm.ExtractionResult{}, err
	}
	if resp.Error != "" {
		return llm.ExtractionResult{}, fmt.Errorf("remote extraction error: %s", resp.Error)
	}
	if strings.TrimSpace(resp.FormType) == "" {
		return llm.ExtractionResult{}, llm.Malformed("extraction missing form_type")
	}
	detected := resp.DetectedLanguage
	if strings.TrimSpace(detected) == "" {
		detected = req.LanguageHint
	}
	return llm.ExtractionResult{
		DocumentType:          resp.FormType,
		Confidence:            resp.Confidence,
		DetectedLanguage:      lang.Normalize(detected),
		ExtractedFields:       resp.ExtractedData,
		MissingRequiredFields: resp.MissingRequiredFields,
		SuggestedQuestions:    resp.SuggestedQuestions,
	}, nil
}

// Interpret posts one answer to /translate-and-fill. An empty translated_value means no value.
func (c *Client) Interpret(ctx context.Context, req llm.InterpretRequest) (llm.Interpretation, error) {
	body := translateRequest{
		Text:           req.Transcript,
		FieldName:      req.FieldName,
		FieldHelp:      req.FieldHint,
		SourceLanguage: lang.Normalize(req.Language),
	}
	var resp translateResponse
	if err := c.post(ctx, translatePath, body, &resp); err != nil {
		return llm.Interpretation{}, err
	}
	if len(resp.TranslatedValue) == 0 {
		return llm.NoValue(), nil
	}
	var values llm.Values
	wrapped := append(append([]byte(`{"v":`), resp.TranslatedValue...), '}')
	if err := json.Unmarshal(wrapped, &values); err != nil {
		return llm.Interpretation{}, llm.Malformed("translated_value: %v", err)
	}
	return llm.Value(values["v"]), nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return fmt.Errorf("remote request timeout: %w", err)
		}
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("remote http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return llm.Malformed("remote %s response: %v", path, err)
	}
	return nil
}

var _ llm.Client = (*Client)(nil)
