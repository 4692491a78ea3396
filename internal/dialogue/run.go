package dialogue

import (
	"context"
	"errors"

	"voice-intake/internal/shared/telemetry"
	"voice-intake/internal/speech"
)

const (
	maxCaptureErrors = 3
	maxServiceErrors = 2
)

// Run drives o with b until the session completes, fails for good, or ctx ends.
// Prompts are spoken in the session language after every merged turn.
func Run(ctx context.Context, o *Orchestrator, b speech.Boundary) (Session, error) {
	captureErrs, serviceErrs := 0, 0
	for {
		snap := o.Snapshot()
		if snap.Status == StatusComplete {
			return snap, nil
		}
		if err := ctx.Err(); err != nil {
			return snap, err
		}
		if err := o.StartCapture(); err != nil {
			return o.Snapshot(), err
		}

		text, err := b.Capture(ctx)
		if err != nil {
			if errors.Is(err, speech.ErrCancelled) || errors.Is(err, speech.ErrInputClosed) || ctx.Err() != nil {
				_ = o.StopCapture()
				return o.Snapshot(), err
			}
			_ = o.OnCaptureError(err)
			captureErrs++
			if captureErrs >= maxCaptureErrors {
				return o.Snapshot(), ErrTooManyCaptureErrors
			}
			continue
		}
		captureErrs = 0

		err = o.OnTranscript(ctx, text)
		switch {
		case err == nil:
			serviceErrs = 0
		case errors.Is(err, ErrEmptyTranscript):
			continue
		case errors.Is(err, ErrInterpretationFailed):
			serviceErrs++
			if serviceErrs >= maxServiceErrors {
				return o.Snapshot(), ErrTooManyServiceRetries
			}
			telemetry.Warn("retrying after interpretation failure", map[string]any{"session_id": o.Snapshot().ID, "error": err})
			continue
		default:
			return o.Snapshot(), err
		}

		snap = o.Snapshot()
		if snap.Status == StatusAwaitingAnswer {
			if err := b.Speak(ctx, snap.CurrentPrompt, snap.Language); err != nil && !errors.Is(err, speech.ErrCancelled) {
				return snap, err
			}
		}
	}
}

// Greet speaks the opening prompt before the first capture.
func Greet(ctx context.Context, b speech.Boundary, text, language string) error {
	if err := b.Speak(ctx, text, language); err != nil && !errors.Is(err, speech.ErrCancelled) {
		return err
	}
	return nil
}
