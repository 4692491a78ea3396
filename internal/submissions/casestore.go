package submissions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const casesPath = "/cases"

// CaseStore registers completed intakes with the case-management system.
type CaseStore interface {
	Register(ctx context.Context, req CaseRequest) (string, error)
}

// CaseRequest is the body posted to the case store. TrackingID carries a
// locally generated ID the store may adopt; it is empty on the first attempt.
type CaseRequest struct {
	TrackingID   string            `json:"trackingId,omitempty"`
	SessionID    string            `json:"sessionId"`
	DocumentType string            `json:"documentType"`
	Language     string            `json:"language"`
	FieldValues  map[string]string `json:"fieldValues"`
}

type caseResponse struct {
	TrackingID string `json:"trackingId"`
}

// HTTPCaseStore posts to {baseURL}/cases.
type HTTPCaseStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPCaseStore builds a client. A blank baseURL yields a store that always
// reports ErrStoreNotConfigured, which sends every handoff down the fallback path.
func NewHTTPCaseStore(baseURL, token string, timeout time.Duration) *HTTPCaseStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPCaseStore{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Register returns the store's authoritative tracking ID.
func (s *HTTPCaseStore) Register(ctx context.Context, in CaseRequest) (string, error) {
	if s.baseURL == "" {
		return "", ErrStoreNotConfigured
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+casesPath, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("case store http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out caseResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("case store response: %w", err)
	}
	id := strings.TrimSpace(out.TrackingID)
	if id == "" {
		return "", fmt.Errorf("case store response missing trackingId")
	}
	return id, nil
}

var _ CaseStore = (*HTTPCaseStore)(nil)
