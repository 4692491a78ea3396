package dialogue

import (
	"time"

	"voice-intake/internal/questions"
)

// Status is a dialogue session state.
type Status string

const (
	StatusIdle           Status = "idle"
	StatusCapturing      Status = "capturing"
	StatusExtracting     Status = "extracting"
	StatusAwaitingAnswer Status = "awaiting_answer"
	StatusInterpreting   Status = "interpreting"
	StatusComplete       Status = "complete"
	StatusFailed         Status = "failed"
)

// Busy reports whether a capture or remote call is in progress.
func (s Status) Busy() bool {
	return s == StatusCapturing || s == StatusExtracting || s == StatusInterpreting
}

// Speaker identifies who produced a transcript log entry.
type Speaker string

const (
	SpeakerUser   Speaker = "user"
	SpeakerSystem Speaker = "system"
)

// LogEntry is one line of the append-only transcript log.
type LogEntry struct {
	Turn    int       `json:"turn"`
	Speaker Speaker   `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// Session is the state of one document-intake attempt.
// Remaining fields are MissingFields[Cursor:]; filled ones stay in MissingFields for ordering.
type Session struct {
	ID                 string            `json:"id"`
	Status             Status            `json:"status"`
	DocumentType       string            `json:"document_type,omitempty"`
	Confidence         float64           `json:"confidence,omitempty"`
	Language           string            `json:"language,omitempty"`
	FieldValues        map[string]string `json:"field_values"`
	MissingFields      []string          `json:"missing_fields"`
	SuggestedQuestions []string          `json:"suggested_questions,omitempty"`
	Cursor             int               `json:"cursor"`
	Prompt             questions.Prompt  `json:"prompt"`
	CurrentPrompt      string            `json:"current_prompt,omitempty"`
	Transcript         []LogEntry        `json:"transcript"`
	Turn               int               `json:"turn"`
	PreCapture         Status            `json:"pre_capture,omitempty"`
	FailedIn           Status            `json:"failed_in,omitempty"`
	LastError          string            `json:"last_error,omitempty"`
	Abandoned          bool              `json:"abandoned"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// Remaining returns the fields still to be asked, in order.
func (s Session) Remaining() []string {
	if s.Cursor >= len(s.MissingFields) {
		return nil
	}
	out := make([]string, len(s.MissingFields)-s.Cursor)
	copy(out, s.MissingFields[s.Cursor:])
	return out
}

// Retryable reports whether StartCapture may resume a failed session.
func (s Session) Retryable() bool {
	return s.Status == StatusFailed && s.FailedIn == StatusInterpreting && !s.Abandoned
}

func (s Session) clone() Session {
	out := s
	if s.FieldValues != nil {
		out.FieldValues = make(map[string]string, len(s.FieldValues))
		for k, v := range s.FieldValues {
			out.FieldValues[k] = v
		}
	}
	out.MissingFields = append([]string(nil), s.MissingFields...)
	out.SuggestedQuestions = append([]string(nil), s.SuggestedQuestions...)
	out.Transcript = append([]LogEntry(nil), s.Transcript...)
	return out
}
