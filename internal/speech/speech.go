// Package speech is the thin capture/playback boundary. It carries no business logic.
package speech

import (
	"context"
	"errors"
)

var (
	// ErrCancelled is returned when a capture or playback is aborted.
	ErrCancelled = errors.New("speech cancelled")
	// ErrNoSpeech is returned when a capture ended without any words.
	ErrNoSpeech = errors.New("no speech detected")
	// ErrInputClosed is returned when the capture source has no more input.
	ErrInputClosed = errors.New("speech input closed")
)

// Boundary captures one utterance at a time and plays prompts.
type Boundary interface {
	// Capture blocks until one transcript is available, the capture is cancelled, or ctx ends.
	Capture(ctx context.Context) (string, error)
	// Speak plays text in the given language. It returns ErrCancelled if interrupted.
	Speak(ctx context.Context, text, language string) error
	// Cancel aborts any in-flight capture or playback.
	Cancel()
}
