// Package dialogue runs the conversational field-completion state machine: one free-form
// utterance is classified and pre-filled by extraction, then each remaining required field
// is asked for in the session language until every one has an accepted value.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"voice-intake/internal/forms"
	"voice-intake/internal/lang"
	"voice-intake/internal/llm"
	"voice-intake/internal/questions"
	"voice-intake/internal/shared/metrics"
	"voice-intake/internal/shared/telemetry"
)

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Extractor   llm.Extractor
	Interpreter llm.Interpreter
	Catalog     *forms.Catalog
	Bank        *questions.Bank
	// LanguageHint is sent with the first utterance. Defaults to "auto".
	LanguageHint string
	Now          func() time.Time
}

// Pending describes the remote call a transcript started. Results must be delivered
// with the same Pending so late or foreign results can be recognised and discarded.
type Pending struct {
	Turn      int
	Field     string
	Extract   *llm.ExtractionRequest
	Interpret *llm.InterpretRequest
}

// Orchestrator owns one session. It is safe for concurrent use; remote calls run
// outside the lock and their results are matched back by turn.
type Orchestrator struct {
	mu   sync.Mutex
	s    Session
	deps Deps
}

// New creates an idle session.
func New(id string, deps Deps) *Orchestrator {
	if deps.Catalog == nil {
		deps.Catalog = forms.Default()
	}
	if deps.Bank == nil {
		deps.Bank = questions.Default()
	}
	if strings.TrimSpace(deps.LanguageHint) == "" {
		deps.LanguageHint = "auto"
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	now := deps.Now()
	return &Orchestrator{
		deps: deps,
		s: Session{
			ID:          id,
			Status:      StatusIdle,
			FieldValues: map[string]string{},
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
}

// Snapshot returns a deep copy of the session.
func (o *Orchestrator) Snapshot() Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.s.clone()
}

// ID returns the session identifier.
func (o *Orchestrator) ID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.s.ID
}

// Activity returns the status and last update time without copying the session.
func (o *Orchestrator) Activity() (Status, time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.s.Status, o.s.UpdatedAt
}

// Progress is the share of required fields already filled, 0-100. It is informational only.
func (o *Orchestrator) Progress() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.s.Progress()
}

// Progress is filled / (filled + remaining) as a percentage; 0 before extraction.
func (s Session) Progress() int {
	if s.Status == StatusComplete {
		return 100
	}
	if s.DocumentType == "" {
		return 0
	}
	filled := len(s.FieldValues)
	remaining := len(s.MissingFields) - s.Cursor
	if filled+remaining == 0 {
		return 100
	}
	return filled * 100 / (filled + remaining)
}

// StartCapture begins listening for an utterance. Only one capture or remote call may be
// active at a time; a rejected call leaves the session untouched.
func (o *Orchestrator) StartCapture() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.s.Abandoned {
		return ErrAbandoned
	}
	switch o.s.Status {
	case StatusIdle, StatusAwaitingAnswer:
	case StatusFailed:
		if !o.s.Retryable() {
			return ErrSessionFailed
		}
	default:
		return fmt.Errorf("%w: cannot start capture while %s", ErrPrecondition, o.s.Status)
	}
	o.s.PreCapture = o.s.Status
	o.setStatus(StatusCapturing)
	return nil
}

// StopCapture aborts the in-flight capture and restores the state before StartCapture.
func (o *Orchestrator) StopCapture() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.s.Abandoned {
		return ErrAbandoned
	}
	if o.s.Status != StatusCapturing {
		return fmt.Errorf("%w: no capture in progress", ErrPrecondition)
	}
	o.revertCapture()
	return nil
}

// OnCaptureError records a microphone or platform failure. The session returns to its
// pre-capture state so the user can try again.
func (o *Orchestrator) OnCaptureError(cause error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.s.Abandoned {
		return ErrAbandoned
	}
	if o.s.Status != StatusCapturing {
		return fmt.Errorf("%w: no capture in progress", ErrPrecondition)
	}
	msg := "capture failed"
	if cause != nil {
		msg = cause.Error()
	}
	o.s.LastError = msg
	o.revertCapture()
	telemetry.Warn("capture error", map[string]any{"session_id": o.s.ID, "error": msg})
	return nil
}

func (o *Orchestrator) revertCapture() {
	prev := o.s.PreCapture
	if prev == "" {
		prev = StatusIdle
	}
	o.s.PreCapture = ""
	o.setStatus(prev)
}

// Accept takes a finished transcript and moves the session into Extracting (first
// utterance) or Interpreting (answer to the current question). The returned Pending
// carries the request to send.
func (o *Orchestrator) Accept(text string) (Pending, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.s.Abandoned {
		return Pending{}, ErrAbandoned
	}
	if o.s.Status != StatusCapturing {
		return Pending{}, fmt.Errorf("%w: no capture in progress", ErrPrecondition)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		o.s.LastError = ErrEmptyTranscript.Error()
		o.revertCapture()
		return Pending{}, ErrEmptyTranscript
	}

	o.s.Turn++
	o.appendLog(SpeakerUser, text)
	pre := o.s.PreCapture
	o.s.PreCapture = ""
	o.s.FailedIn = ""

	if pre == StatusIdle {
		o.setStatus(StatusExtracting)
		metrics.IncSessionStarted()
		return Pending{
			Turn:    o.s.Turn,
			Extract: &llm.ExtractionRequest{Transcript: text, LanguageHint: o.deps.LanguageHint},
		}, nil
	}

	field := o.s.MissingFields[o.s.Cursor]
	o.setStatus(StatusInterpreting)
	return Pending{
		Turn:  o.s.Turn,
		Field: field,
		Interpret: &llm.InterpretRequest{
			Transcript: text,
			FieldName:  field,
			FieldHint:  o.deps.Catalog.Hint(o.s.DocumentType, field),
			Language:   o.s.Language,
		},
	}, nil
}

// OnTranscript accepts a transcript and runs the matching remote call to completion.
// Results that went stale while the call was in flight are dropped without error.
func (o *Orchestrator) OnTranscript(ctx context.Context, text string) error {
	p, err := o.Accept(text)
	if err != nil {
		return err
	}

	var deliverErr error
	if p.Extract != nil {
		res, callErr := o.deps.Extractor.Extract(ctx, *p.Extract)
		if callErr != nil {
			if deliverErr = o.OnServiceError(p, callErr); deliverErr == nil {
				return fmt.Errorf("%w: %v", ErrExtractionFailed, callErr)
			}
		} else {
			deliverErr = o.OnExtractionResult(p, res)
		}
	} else {
		res, callErr := o.deps.Interpreter.Interpret(ctx, *p.Interpret)
		if callErr != nil {
			if deliverErr = o.OnServiceError(p, callErr); deliverErr == nil {
				return fmt.Errorf("%w: %v", ErrInterpretationFailed, callErr)
			}
		} else {
			deliverErr = o.OnInterpretationResult(p, res)
		}
	}
	if errors.Is(deliverErr, ErrStaleTurn) {
		return nil
	}
	return deliverErr
}

// OnExtractionResult merges the extraction into the session and asks the first question,
// or completes the session when nothing is missing.
func (o *Orchestrator) OnExtractionResult(p Pending, res llm.ExtractionResult) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stale(p, StatusExtracting) {
		return ErrStaleTurn
	}

	checked, err := o.deps.Catalog.Check(res.DocumentType, res.ExtractedFields, res.MissingRequiredFields)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrMalformedExtraction, err)
		o.fail(wrapped)
		return wrapped
	}
	if len(checked.Dropped) > 0 {
		telemetry.Warn("extraction returned unknown fields", map[string]any{
			"session_id":    o.s.ID,
			"document_type": checked.DocumentType,
			"dropped":       checked.Dropped,
		})
	}

	o.s.DocumentType = checked.DocumentType
	o.s.Confidence = res.Confidence
	o.s.Language = lang.Normalize(res.DetectedLanguage)
	for k, v := range checked.Fields {
		o.s.FieldValues[k] = v
	}
	o.s.MissingFields = checked.Missing
	o.s.SuggestedQuestions = alignQuestions(res.MissingRequiredFields, res.SuggestedQuestions, checked.Missing)
	o.s.Cursor = 0
	o.s.LastError = ""

	telemetry.Info("extraction merged", map[string]any{
		"session_id":    o.s.ID,
		"document_type": o.s.DocumentType,
		"language":      o.s.Language,
		"extracted":     len(checked.Fields),
		"missing":       len(checked.Missing),
	})
	o.advance()
	return nil
}

// OnInterpretationResult stores the answer and moves to the next field. Without a value
// the cursor stays put and the same question is asked again.
func (o *Orchestrator) OnInterpretationResult(p Pending, res llm.Interpretation) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stale(p, StatusInterpreting) {
		return ErrStaleTurn
	}
	if p.Field != o.s.MissingFields[o.s.Cursor] {
		telemetry.Warn("discarding answer for another field", map[string]any{"session_id": o.s.ID, "turn": p.Turn, "field": p.Field})
		return ErrStaleTurn
	}

	value := strings.TrimSpace(res.Value)
	if !res.Found || value == "" {
		metrics.IncAnswerUnresolved()
		o.s.LastError = "answer not understood"
		o.s.CurrentPrompt = o.deps.Bank.Retry(o.s.Prompt.Text, o.s.Language)
		o.appendLog(SpeakerSystem, o.s.CurrentPrompt)
		o.setStatus(StatusAwaitingAnswer)
		return nil
	}

	o.s.FieldValues[p.Field] = value
	o.s.Cursor++
	o.s.LastError = ""
	o.advance()
	return nil
}

// OnServiceError records a failed or timed-out remote call. The session moves to Failed;
// a failure while interpreting can be retried with StartCapture.
func (o *Orchestrator) OnServiceError(p Pending, cause error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	want := StatusExtracting
	if p.Interpret != nil {
		want = StatusInterpreting
	}
	if o.stale(p, want) {
		return ErrStaleTurn
	}
	o.fail(cause)
	return nil
}

// Abandon ends the session on user request. Results still in flight are discarded.
func (o *Orchestrator) Abandon() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.s.Abandoned {
		return ErrAbandoned
	}
	o.s.Abandoned = true
	o.s.Turn++
	o.s.PreCapture = ""
	o.s.UpdatedAt = o.deps.Now()
	metrics.IncSessionAbandoned()
	telemetry.Info("session abandoned", map[string]any{"session_id": o.s.ID, "status": string(o.s.Status)})
	return nil
}

func (o *Orchestrator) stale(p Pending, want Status) bool {
	if o.s.Abandoned || o.s.Status != want || p.Turn != o.s.Turn {
		telemetry.Warn("discarding stale result", map[string]any{
			"session_id": o.s.ID,
			"turn":       p.Turn,
			"current":    o.s.Turn,
			"status":     string(o.s.Status),
		})
		return true
	}
	return false
}

// advance completes the session or presents the question at the cursor.
func (o *Orchestrator) advance() {
	if o.s.Cursor >= len(o.s.MissingFields) {
		o.s.Prompt = questions.Prompt{}
		o.s.CurrentPrompt = ""
		o.setStatus(StatusComplete)
		metrics.IncSessionCompleted()
		telemetry.Info("session complete", map[string]any{
			"session_id":    o.s.ID,
			"document_type": o.s.DocumentType,
			"fields":        len(o.s.FieldValues),
		})
		return
	}
	field := o.s.MissingFields[o.s.Cursor]
	o.s.Prompt = o.deps.Bank.Resolve(o.s.SuggestedQuestions, o.s.Cursor, field, o.s.Language)
	o.s.CurrentPrompt = o.s.Prompt.Text
	o.appendLog(SpeakerSystem, o.s.CurrentPrompt)
	o.setStatus(StatusAwaitingAnswer)
}

func (o *Orchestrator) fail(cause error) {
	o.s.FailedIn = o.s.Status
	o.s.LastError = cause.Error()
	o.setStatus(StatusFailed)
	metrics.IncSessionFailed()
	telemetry.Error("session failed", map[string]any{
		"session_id": o.s.ID,
		"failed_in":  string(o.s.FailedIn),
		"error":      cause,
	})
}

func (o *Orchestrator) setStatus(st Status) {
	o.s.Status = st
	o.s.UpdatedAt = o.deps.Now()
}

func (o *Orchestrator) appendLog(sp Speaker, text string) {
	o.s.Transcript = append(o.s.Transcript, LogEntry{Turn: o.s.Turn, Speaker: sp, Text: text, At: o.deps.Now()})
}

// alignQuestions keeps the service questions index-aligned with the cleaned missing list.
func alignQuestions(rawMissing, suggested, missing []string) []string {
	if len(suggested) == 0 || len(missing) == 0 {
		return nil
	}
	byField := make(map[string]string, len(missing))
	for i, name := range rawMissing {
		name = strings.TrimSpace(name)
		if _, seen := byField[name]; seen || i >= len(suggested) {
			continue
		}
		byField[name] = suggested[i]
	}
	out := make([]string, len(missing))
	for i, name := range missing {
		out[i] = byField[name]
	}
	return out
}
