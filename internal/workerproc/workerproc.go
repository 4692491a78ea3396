// Package workerproc decodes and dispatches submission queue messages for the
// reconcile worker.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"voice-intake/internal/queue"
	"voice-intake/internal/submissions"
)

// Reconciler registers provisional submissions with the case store.
type Reconciler interface {
	Reconcile(ctx context.Context, msg queue.Message) error
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a payload that is not a valid submission message.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrUnsupportedType indicates a well-formed message of a type the worker does not handle.
type ErrUnsupportedType struct {
	Type       string
	TrackingID string
}

func (e ErrUnsupportedType) Error() string { return "unsupported message type " + e.Type }

// ErrProcess indicates processing failed after successful parsing.
type ErrProcess struct {
	TrackingID string
	RequestID  string
	Err        error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "reconcile submission"
	}
	return "reconcile submission: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}
	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if msg.Type != queue.TypeSubmissionFinalized {
		return msg, meta, ErrUnsupportedType{Type: msg.Type, TrackingID: msg.TrackingID}
	}
	return msg, meta, nil
}

// Retryable reports whether a failed message should stay on the queue.
// Submissions that no longer exist are dropped.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var procErr ErrProcess
	if !errors.As(err, &procErr) {
		return false
	}
	return !errors.Is(procErr.Err, submissions.ErrNotFound)
}

// HandleMessage reconciles a decoded message.
func HandleMessage(ctx context.Context, r Reconciler, msg queue.Message) error {
	if r == nil {
		return errors.New("reconciler not configured")
	}
	if msg.Authoritative {
		return nil
	}
	ctx = submissions.WithRequestID(ctx, msg.RequestID)
	if err := r.Reconcile(ctx, msg); err != nil {
		return ErrProcess{TrackingID: msg.TrackingID, RequestID: msg.RequestID, Err: err}
	}
	return nil
}
