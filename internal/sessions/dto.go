package sessions

import (
	"time"

	"voice-intake/internal/dialogue"
	"voice-intake/internal/questions"
)

type createRequest struct {
	Language string `json:"language"`
}

type transcriptRequest struct {
	Text string `json:"text"`
}

type captureErrorRequest struct {
	Message string `json:"message" binding:"required"`
}

type sessionResponse struct {
	ID            string              `json:"id"`
	Status        dialogue.Status     `json:"status"`
	DocumentType  string              `json:"documentType,omitempty"`
	Confidence    float64             `json:"confidence,omitempty"`
	Language      string              `json:"language,omitempty"`
	FieldValues   map[string]string   `json:"fieldValues"`
	Remaining     []string            `json:"remainingFields"`
	Prompt        *questions.Prompt   `json:"prompt,omitempty"`
	CurrentPrompt string              `json:"currentPrompt,omitempty"`
	Progress      int                 `json:"progress"`
	Turn          int                 `json:"turn"`
	Retryable     bool                `json:"retryable"`
	Abandoned     bool                `json:"abandoned"`
	LastError     string              `json:"lastError,omitempty"`
	Transcript    []dialogue.LogEntry `json:"transcript"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

func toResponse(s dialogue.Session) sessionResponse {
	resp := sessionResponse{
		ID:            s.ID,
		Status:        s.Status,
		DocumentType:  s.DocumentType,
		Confidence:    s.Confidence,
		Language:      s.Language,
		FieldValues:   s.FieldValues,
		Remaining:     s.Remaining(),
		CurrentPrompt: s.CurrentPrompt,
		Progress:      s.Progress(),
		Turn:          s.Turn,
		Retryable:     s.Retryable(),
		Abandoned:     s.Abandoned,
		LastError:     s.LastError,
		Transcript:    s.Transcript,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
	if resp.Remaining == nil {
		resp.Remaining = []string{}
	}
	if resp.Transcript == nil {
		resp.Transcript = []dialogue.LogEntry{}
	}
	if s.Prompt.Field != "" && s.Status != dialogue.StatusComplete {
		p := s.Prompt
		p.Text = s.CurrentPrompt
		resp.Prompt = &p
	}
	return resp
}
