package dialogue

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"voice-intake/internal/forms"
	"voice-intake/internal/llm"
	"voice-intake/internal/questions"
)

type fakeLLM struct {
	mu         sync.Mutex
	extract    llm.ExtractionResult
	extractErr error
	answers    []llm.Interpretation
	answerErrs []error
	extractReq []llm.ExtractionRequest
	interpReq  []llm.InterpretRequest
}

func (f *fakeLLM) Extract(ctx context.Context, req llm.ExtractionRequest) (llm.ExtractionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extractReq = append(f.extractReq, req)
	if f.extractErr != nil {
		return llm.ExtractionResult{}, f.extractErr
	}
	return f.extract, nil
}

func (f *fakeLLM) Interpret(ctx context.Context, req llm.InterpretRequest) (llm.Interpretation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.interpReq)
	f.interpReq = append(f.interpReq, req)
	if n < len(f.answerErrs) && f.answerErrs[n] != nil {
		return llm.Interpretation{}, f.answerErrs[n]
	}
	if n < len(f.answers) {
		return f.answers[n], nil
	}
	return llm.NoValue(), nil
}

func fixedClock() func() time.Time {
	t0 := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return func() time.Time { return t0 }
}

func newTestOrchestrator(f *fakeLLM) *Orchestrator {
	return New("sess-1", Deps{Extractor: f, Interpreter: f, Now: fixedClock()})
}

func ravisExtraction() llm.ExtractionResult {
	return llm.ExtractionResult{
		DocumentType:          "name_change",
		Confidence:            0.9,
		DetectedLanguage:      "hi",
		ExtractedFields:       llm.Values{"applicant_full_name": "Ravi"},
		MissingRequiredFields: []string{"new_name", "reason"},
	}
}

// checkInvariants verifies remaining fields and filled values never overlap,
// remaining fields are unique and the cursor never moves backwards.
func checkInvariants(t *testing.T, s Session, lastCursor *int) {
	t.Helper()
	seen := map[string]bool{}
	for _, f := range s.Remaining() {
		if _, filled := s.FieldValues[f]; filled {
			t.Fatalf("field %s is both filled and remaining", f)
		}
		if seen[f] {
			t.Fatalf("field %s appears twice in missing fields", f)
		}
		seen[f] = true
	}
	if s.Cursor < *lastCursor {
		t.Fatalf("cursor moved backwards: %d -> %d", *lastCursor, s.Cursor)
	}
	*lastCursor = s.Cursor
}

func turn(t *testing.T, o *Orchestrator, text string) {
	t.Helper()
	if err := o.StartCapture(); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	if err := o.OnTranscript(context.Background(), text); err != nil {
		t.Fatalf("OnTranscript(%q): %v", text, err)
	}
}

func TestEndToEndNameChangeInHindi(t *testing.T) {
	f := &fakeLLM{
		extract: ravisExtraction(),
		answers: []llm.Interpretation{llm.Value("Ravi Kumar"), llm.Value("Marriage")},
	}
	o := newTestOrchestrator(f)
	cursor := 0

	turn(t, o, "I want to change my name, I am Ravi")
	s := o.Snapshot()
	checkInvariants(t, s, &cursor)
	if s.Status != StatusAwaitingAnswer || s.DocumentType != "name_change" || s.Language != "hi" {
		t.Fatalf("after extraction: %+v", s)
	}
	if s.Prompt.Field != "new_name" || s.CurrentPrompt != "आप क्या नया नाम चाहते हैं?" {
		t.Fatalf("first prompt = %+v", s.Prompt)
	}
	if f.extractReq[0].LanguageHint != "auto" {
		t.Fatalf("language hint = %q", f.extractReq[0].LanguageHint)
	}

	turn(t, o, "रवि कुमार")
	s = o.Snapshot()
	checkInvariants(t, s, &cursor)
	if s.Cursor != 1 || s.Prompt.Field != "reason" || s.CurrentPrompt != "नाम बदलने का कारण क्या है?" {
		t.Fatalf("after first answer: cursor=%d prompt=%+v", s.Cursor, s.Prompt)
	}

	turn(t, o, "शादी के कारण")
	s = o.Snapshot()
	checkInvariants(t, s, &cursor)
	if s.Status != StatusComplete || s.Cursor != 2 {
		t.Fatalf("final: status=%s cursor=%d", s.Status, s.Cursor)
	}
	want := map[string]string{"applicant_full_name": "Ravi", "new_name": "Ravi Kumar", "reason": "Marriage"}
	if !reflect.DeepEqual(s.FieldValues, want) {
		t.Fatalf("field values = %v", s.FieldValues)
	}
	if o.Progress() != 100 {
		t.Fatalf("progress = %d", o.Progress())
	}

	if len(f.interpReq) != 2 {
		t.Fatalf("interpret calls = %d", len(f.interpReq))
	}
	for i, field := range []string{"new_name", "reason"} {
		req := f.interpReq[i]
		if req.FieldName != field || req.Language != "hi" || req.FieldHint == "" {
			t.Fatalf("interpret request %d = %+v", i, req)
		}
	}

	var speakers []Speaker
	for _, e := range s.Transcript {
		speakers = append(speakers, e.Speaker)
	}
	wantSpeakers := []Speaker{SpeakerUser, SpeakerSystem, SpeakerUser, SpeakerSystem, SpeakerUser}
	if !reflect.DeepEqual(speakers, wantSpeakers) {
		t.Fatalf("transcript speakers = %v", speakers)
	}
}

func TestNothingMissingCompletesStraightFromExtraction(t *testing.T) {
	f := &fakeLLM{extract: llm.ExtractionResult{
		DocumentType:     "affidavit_general",
		DetectedLanguage: "en",
		ExtractedFields:  llm.Values{"deponent_name": "Asha"},
	}}
	o := newTestOrchestrator(f)
	if err := o.StartCapture(); err != nil {
		t.Fatal(err)
	}
	p, err := o.Accept("I swear that I am Asha")
	if err != nil {
		t.Fatal(err)
	}
	if got := o.Snapshot().Status; got != StatusExtracting {
		t.Fatalf("status = %s, want extracting", got)
	}
	if err := o.OnExtractionResult(p, f.extract); err != nil {
		t.Fatal(err)
	}
	s := o.Snapshot()
	if s.Status != StatusComplete || s.CurrentPrompt != "" {
		t.Fatalf("status=%s prompt=%q", s.Status, s.CurrentPrompt)
	}
	for _, e := range s.Transcript {
		if e.Speaker == SpeakerSystem {
			t.Fatalf("no question should have been asked, got %q", e.Text)
		}
	}
}

func TestGenericFallbackWhenBankHasNoRow(t *testing.T) {
	catalog := forms.NewCatalog(forms.DocumentType{
		ID: "simple",
		Fields: []forms.FieldSpec{
			{Name: "name", Required: true},
			{Name: "address", Required: true},
		},
	})
	bank, err := questions.Parse([]byte("questions:\n  name:\n    hi: \"आपका नाम क्या है?\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	f := &fakeLLM{
		extract: llm.ExtractionResult{
			DocumentType:          "simple",
			DetectedLanguage:      "hi",
			MissingRequiredFields: []string{"name", "address"},
		},
		answers: []llm.Interpretation{llm.Value("Ravi")},
	}
	o := New("s", Deps{Extractor: f, Interpreter: f, Catalog: catalog, Bank: bank, Now: fixedClock()})

	turn(t, o, "मुझे एक फॉर्म चाहिए")
	if got := o.Snapshot().CurrentPrompt; got != "आपका नाम क्या है?" {
		t.Fatalf("first prompt = %q", got)
	}
	turn(t, o, "रवि")
	s := o.Snapshot()
	if s.CurrentPrompt != "Please provide your address" || s.Prompt.Source != questions.SourceGeneric {
		t.Fatalf("second prompt = %+v", s.Prompt)
	}
}

func TestFailedInterpretationKeepsCursorAndField(t *testing.T) {
	f := &fakeLLM{
		extract: ravisExtraction(),
		answers: []llm.Interpretation{llm.NoValue(), llm.Value("  ")},
	}
	o := newTestOrchestrator(f)
	turn(t, o, "I want to change my name, I am Ravi")
	base := o.Snapshot().Prompt.Text

	for i := 0; i < 2; i++ {
		turn(t, o, "umm")
		s := o.Snapshot()
		if s.Cursor != 0 || s.Status != StatusAwaitingAnswer {
			t.Fatalf("attempt %d: cursor=%d status=%s", i, s.Cursor, s.Status)
		}
		if s.Prompt.Field != "new_name" {
			t.Fatalf("attempt %d: prompt field = %s", i, s.Prompt.Field)
		}
		if !strings.HasSuffix(s.CurrentPrompt, base) || s.CurrentPrompt == base {
			t.Fatalf("attempt %d: prompt should be annotated, got %q", i, s.CurrentPrompt)
		}
		if _, ok := s.FieldValues["new_name"]; ok {
			t.Fatalf("attempt %d: new_name must not be filled", i)
		}
	}
}

func TestStartCaptureRejectedWhileExtractingLeavesStateIdentical(t *testing.T) {
	o := newTestOrchestrator(&fakeLLM{})
	if err := o.StartCapture(); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Accept("hello"); err != nil {
		t.Fatal(err)
	}
	before := o.Snapshot()
	if before.Status != StatusExtracting {
		t.Fatalf("status = %s", before.Status)
	}
	if err := o.StartCapture(); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("err = %v, want ErrPrecondition", err)
	}
	if after := o.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Fatalf("state changed:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestStartCaptureSingleFlight(t *testing.T) {
	tests := []struct {
		name  string
		setup func(o *Orchestrator)
	}{
		{name: "capturing", setup: func(o *Orchestrator) { _ = o.StartCapture() }},
		{name: "interpreting", setup: func(o *Orchestrator) {
			_ = o.StartCapture()
			_ = o.OnTranscript(context.Background(), "I want to change my name")
			_ = o.StartCapture()
			_, _ = o.Accept("Ravi Kumar")
		}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrchestrator(&fakeLLM{extract: ravisExtraction()})
			tt.setup(o)
			before := o.Snapshot()
			if err := o.StartCapture(); !errors.Is(err, ErrPrecondition) {
				t.Fatalf("err = %v", err)
			}
			if !reflect.DeepEqual(before, o.Snapshot()) {
				t.Fatal("rejected StartCapture mutated the session")
			}
		})
	}
}

func TestStopCaptureRestoresPreviousState(t *testing.T) {
	o := newTestOrchestrator(&fakeLLM{extract: ravisExtraction()})
	idle := o.Snapshot()
	if err := o.StartCapture(); err != nil {
		t.Fatal(err)
	}
	if err := o.StopCapture(); err != nil {
		t.Fatal(err)
	}
	if got := o.Snapshot(); !reflect.DeepEqual(idle, got) {
		t.Fatalf("stop from idle: %+v", got)
	}

	turn(t, o, "I want to change my name, I am Ravi")
	awaiting := o.Snapshot()
	if err := o.StartCapture(); err != nil {
		t.Fatal(err)
	}
	if err := o.StopCapture(); err != nil {
		t.Fatal(err)
	}
	if got := o.Snapshot(); !reflect.DeepEqual(awaiting, got) {
		t.Fatalf("stop from awaiting answer: %+v", got)
	}

	if err := o.StopCapture(); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("stop without capture err = %v", err)
	}
}

func TestCaptureErrorIsRecoverable(t *testing.T) {
	o := newTestOrchestrator(&fakeLLM{extract: ravisExtraction()})
	_ = o.StartCapture()
	if err := o.OnCaptureError(errors.New("microphone permission denied")); err != nil {
		t.Fatal(err)
	}
	s := o.Snapshot()
	if s.Status != StatusIdle || s.LastError != "microphone permission denied" {
		t.Fatalf("after capture error: %+v", s)
	}
	turn(t, o, "I want to change my name, I am Ravi")
	if o.Snapshot().Status != StatusAwaitingAnswer {
		t.Fatal("capture should work after a capture error")
	}
}

func TestEmptyTranscriptRevertsCapture(t *testing.T) {
	o := newTestOrchestrator(&fakeLLM{})
	_ = o.StartCapture()
	if err := o.OnTranscript(context.Background(), "   "); !errors.Is(err, ErrEmptyTranscript) {
		t.Fatalf("err = %v", err)
	}
	if s := o.Snapshot(); s.Status != StatusIdle || s.Turn != 0 || len(s.Transcript) != 0 {
		t.Fatalf("after empty transcript: %+v", s)
	}
}

func TestExtractionFailureIsTerminal(t *testing.T) {
	f := &fakeLLM{extractErr: errors.New("connection refused")}
	o := newTestOrchestrator(f)
	_ = o.StartCapture()
	err := o.OnTranscript(context.Background(), "I want to change my name")
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("err = %v", err)
	}
	s := o.Snapshot()
	if s.Status != StatusFailed || s.FailedIn != StatusExtracting || s.DocumentType != "" {
		t.Fatalf("after failure: %+v", s)
	}
	if err := o.StartCapture(); !errors.Is(err, ErrSessionFailed) {
		t.Fatalf("restart err = %v", err)
	}
}

func TestMalformedExtractionFails(t *testing.T) {
	tests := []struct {
		name string
		res  llm.ExtractionResult
	}{
		{name: "unknown document type", res: llm.ExtractionResult{DocumentType: "passport_renewal"}},
		{name: "unknown missing field", res: llm.ExtractionResult{DocumentType: "name_change", MissingRequiredFields: []string{"blood_group"}}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrchestrator(&fakeLLM{extract: tt.res})
			_ = o.StartCapture()
			if err := o.OnTranscript(context.Background(), "hello"); !errors.Is(err, ErrMalformedExtraction) {
				t.Fatalf("err = %v", err)
			}
			if s := o.Snapshot(); s.Status != StatusFailed || s.Retryable() {
				t.Fatalf("status = %s retryable=%v", s.Status, s.Retryable())
			}
		})
	}
}

func TestInterpretationFailureCanBeRetried(t *testing.T) {
	f := &fakeLLM{
		extract:    ravisExtraction(),
		answerErrs: []error{errors.New("remote http status 503: busy")},
		answers:    []llm.Interpretation{{}, llm.Value("Ravi Kumar")},
	}
	o := newTestOrchestrator(f)
	turn(t, o, "I want to change my name, I am Ravi")

	_ = o.StartCapture()
	if err := o.OnTranscript(context.Background(), "रवि कुमार"); !errors.Is(err, ErrInterpretationFailed) {
		t.Fatalf("err = %v", err)
	}
	s := o.Snapshot()
	if s.Status != StatusFailed || !s.Retryable() || s.Cursor != 0 || s.FieldValues["applicant_full_name"] != "Ravi" {
		t.Fatalf("after interpretation failure: %+v", s)
	}

	_ = o.StartCapture()
	if err := o.StopCapture(); err != nil {
		t.Fatal(err)
	}
	if o.Snapshot().Status != StatusFailed {
		t.Fatal("stop should restore the failed state")
	}

	turn(t, o, "रवि कुमार")
	s = o.Snapshot()
	if s.Status != StatusAwaitingAnswer || s.Cursor != 1 || s.FieldValues["new_name"] != "Ravi Kumar" || s.FailedIn != "" {
		t.Fatalf("after retry: %+v", s)
	}
}

func TestStaleResultsAreDiscarded(t *testing.T) {
	o := newTestOrchestrator(&fakeLLM{})
	_ = o.StartCapture()
	p, _ := o.Accept("I want to change my name, I am Ravi")
	if err := o.OnExtractionResult(p, ravisExtraction()); err != nil {
		t.Fatal(err)
	}

	_ = o.StartCapture()
	p2, _ := o.Accept("Ravi Kumar")
	before := o.Snapshot()

	wrongTurn := p2
	wrongTurn.Turn = p.Turn
	if err := o.OnInterpretationResult(wrongTurn, llm.Value("x")); !errors.Is(err, ErrStaleTurn) {
		t.Fatalf("wrong turn err = %v", err)
	}
	wrongField := p2
	wrongField.Field = "reason"
	if err := o.OnInterpretationResult(wrongField, llm.Value("x")); !errors.Is(err, ErrStaleTurn) {
		t.Fatalf("wrong field err = %v", err)
	}
	if err := o.OnExtractionResult(p2, ravisExtraction()); !errors.Is(err, ErrStaleTurn) {
		t.Fatalf("extraction during interpreting err = %v", err)
	}
	if !reflect.DeepEqual(before, o.Snapshot()) {
		t.Fatal("stale results mutated the session")
	}

	if err := o.OnInterpretationResult(p2, llm.Value("Ravi Kumar")); err != nil {
		t.Fatal(err)
	}
	if err := o.OnInterpretationResult(p2, llm.Value("Someone Else")); !errors.Is(err, ErrStaleTurn) {
		t.Fatalf("duplicate delivery err = %v", err)
	}
	if got := o.Snapshot().FieldValues["new_name"]; got != "Ravi Kumar" {
		t.Fatalf("new_name = %q", got)
	}
}

func TestAbandonDiscardsInFlightResult(t *testing.T) {
	o := newTestOrchestrator(&fakeLLM{})
	_ = o.StartCapture()
	p, _ := o.Accept("I want to change my name")
	if err := o.Abandon(); err != nil {
		t.Fatal(err)
	}
	if err := o.OnExtractionResult(p, ravisExtraction()); !errors.Is(err, ErrStaleTurn) {
		t.Fatalf("err = %v", err)
	}
	s := o.Snapshot()
	if !s.Abandoned || s.DocumentType != "" {
		t.Fatalf("after abandon: %+v", s)
	}
	if err := o.StartCapture(); !errors.Is(err, ErrAbandoned) {
		t.Fatalf("StartCapture err = %v", err)
	}
	if err := o.Abandon(); !errors.Is(err, ErrAbandoned) {
		t.Fatalf("second Abandon err = %v", err)
	}
}

func TestFailedResultAfterFailureIsDiscarded(t *testing.T) {
	o := newTestOrchestrator(&fakeLLM{})
	_ = o.StartCapture()
	p, _ := o.Accept("hello")
	if err := o.OnServiceError(p, errors.New("timeout")); err != nil {
		t.Fatal(err)
	}
	if err := o.OnExtractionResult(p, ravisExtraction()); !errors.Is(err, ErrStaleTurn) {
		t.Fatalf("err = %v", err)
	}
	if o.Snapshot().Status != StatusFailed {
		t.Fatal("late result must not revive a failed session")
	}
}

func TestExtractionCleansMissingAndAlignsQuestions(t *testing.T) {
	f := &fakeLLM{extract: llm.ExtractionResult{
		DocumentType:          "name_change",
		DetectedLanguage:      "hi-IN",
		ExtractedFields:       llm.Values{"applicant_full_name": "Ravi", "favourite_colour": "blue", "new_name": "Ravi Kumar"},
		MissingRequiredFields: []string{"new_name", "reason", "reason", "place"},
		SuggestedQuestions:    []string{"नया नाम?", "कारण बताइए?"},
	}}
	o := newTestOrchestrator(f)
	turn(t, o, "मेरा नाम रवि है, मुझे रवि कुमार बनना है")
	s := o.Snapshot()

	if !reflect.DeepEqual(s.MissingFields, []string{"reason", "place"}) {
		t.Fatalf("missing = %v", s.MissingFields)
	}
	if _, ok := s.FieldValues["favourite_colour"]; ok {
		t.Fatal("unknown field should be dropped")
	}
	if s.Language != "hi" {
		t.Fatalf("language = %q", s.Language)
	}
	if s.CurrentPrompt != "कारण बताइए?" || s.Prompt.Source != questions.SourceService {
		t.Fatalf("first prompt = %+v", s.Prompt)
	}
	if got := o.Progress(); got != 50 {
		t.Fatalf("progress = %d", got)
	}

	f.answers = []llm.Interpretation{llm.Value("Marriage")}
	turn(t, o, "शादी")
	s = o.Snapshot()
	if s.Prompt.Source != questions.SourceBank || s.CurrentPrompt != "आप कहाँ रहते हैं?" {
		t.Fatalf("second prompt = %+v", s.Prompt)
	}
}

func TestLanguageIsSticky(t *testing.T) {
	f := &fakeLLM{
		extract: llm.ExtractionResult{
			DocumentType:          "name_change",
			DetectedLanguage:      "ta",
			MissingRequiredFields: []string{"new_name", "reason"},
		},
		answers: []llm.Interpretation{llm.Value("Kavya"), llm.Value("Personal")},
	}
	o := newTestOrchestrator(f)
	turn(t, o, "என் பெயரை மாற்ற வேண்டும்")
	turn(t, o, "My new name is Kavya")
	turn(t, o, "personal reasons")
	for _, req := range f.interpReq {
		if req.Language != "ta" {
			t.Fatalf("interpret language = %q, want ta", req.Language)
		}
	}
	if o.Snapshot().Language != "ta" {
		t.Fatal("session language changed")
	}
}

func TestProgressBeforeExtraction(t *testing.T) {
	o := newTestOrchestrator(&fakeLLM{})
	if o.Progress() != 0 {
		t.Fatalf("progress = %d", o.Progress())
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	o := newTestOrchestrator(&fakeLLM{extract: ravisExtraction()})
	turn(t, o, "I want to change my name, I am Ravi")
	s := o.Snapshot()
	s.FieldValues["applicant_full_name"] = "Mallory"
	s.MissingFields[0] = "x"
	s.Transcript[0].Text = "x"
	again := o.Snapshot()
	if again.FieldValues["applicant_full_name"] != "Ravi" || again.MissingFields[0] != "new_name" || again.Transcript[0].Text == "x" {
		t.Fatal("snapshot shares memory with the session")
	}
}

func TestActivityTracksStatusAndUpdates(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	f := &fakeLLM{extract: ravisExtraction()}
	o := New("sess-7", Deps{Extractor: f, Interpreter: f, Now: func() time.Time { return now }})
	if o.ID() != "sess-7" {
		t.Fatalf("ID = %q", o.ID())
	}

	status, updated := o.Activity()
	if status != StatusIdle || !updated.Equal(now) {
		t.Fatalf("initial activity = %s %v", status, updated)
	}

	now = now.Add(time.Minute)
	if err := o.StartCapture(); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	status, updated = o.Activity()
	if status != StatusCapturing || !status.Busy() || !updated.Equal(now) {
		t.Fatalf("capturing activity = %s %v", status, updated)
	}

	now = now.Add(time.Minute)
	if err := o.OnTranscript(context.Background(), "I want to change my name, I am Ravi"); err != nil {
		t.Fatalf("OnTranscript: %v", err)
	}
	s := o.Snapshot()
	status, updated = o.Activity()
	if status != s.Status || !updated.Equal(s.UpdatedAt) || status != StatusAwaitingAnswer {
		t.Fatalf("activity %s %v disagrees with snapshot %s %v", status, updated, s.Status, s.UpdatedAt)
	}
}
