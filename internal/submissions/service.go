package submissions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"voice-intake/internal/dialogue"
	"voice-intake/internal/queue"
	"voice-intake/internal/shared/metrics"
	"voice-intake/internal/shared/storage/object"
	"voice-intake/internal/shared/telemetry"
)

const (
	defaultHandoffTimeout = 10 * time.Second
	defaultRetryDelay     = 300 * time.Millisecond
	archiveContentType    = "application/json"
)

// Service hands completed sessions to the case store and records the result.
// Store, Queue and Archive are optional; Repo is required.
type Service struct {
	Store      CaseStore
	Repo       Repo
	Queue      queue.Client
	Archive    object.ObjectStore
	Timeout    time.Duration
	RetryDelay time.Duration
	Now        func() time.Time

	inflight singleflight.Group
}

type requestIDKey struct{}

// WithRequestID attaches a request ID that is forwarded on the queue message.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Submit registers a completed session and returns its tracking ID. Submitting
// the same session again returns the original receipt.
func (s *Service) Submit(ctx context.Context, snap dialogue.Session) (Receipt, error) {
	if snap.Status != dialogue.StatusComplete || snap.Abandoned {
		return Receipt{}, ErrNotComplete
	}
	if s.Repo == nil {
		return Receipt{}, errors.New("missing dependencies")
	}
	v, err, _ := s.inflight.Do(snap.ID, func() (any, error) {
		return s.submit(ctx, snap)
	})
	if err != nil {
		return Receipt{}, err
	}
	return v.(Receipt), nil
}

func (s *Service) submit(ctx context.Context, snap dialogue.Session) (Receipt, error) {
	if prev, err := s.Repo.GetBySessionID(ctx, snap.ID); err == nil {
		return prev.receipt(), nil
	} else if !errors.Is(err, ErrNotFound) {
		return Receipt{}, err
	}

	now := s.now()
	sub := Submission{
		ID:           uuid.NewString(),
		SessionID:    snap.ID,
		DocumentType: snap.DocumentType,
		Language:     snap.Language,
		Confidence:   snap.Confidence,
		Turns:        snap.Turn,
		FieldValues:  copyValues(snap.FieldValues),
		SubmittedAt:  now,
	}

	trackingID, authoritative, err := s.register(ctx, sub)
	if err != nil {
		return Receipt{}, err
	}
	sub.TrackingID = trackingID
	sub.Authoritative = authoritative
	sub.ArchiveKey = s.archive(ctx, sub, snap.Transcript)

	if err := s.Repo.Create(ctx, sub); err != nil {
		return Receipt{}, fmt.Errorf("persist submission: %w", err)
	}
	s.notify(ctx, sub)
	metrics.IncSubmission()
	telemetry.Info("submission recorded", map[string]any{
		"session_id":    sub.SessionID,
		"tracking_id":   sub.TrackingID,
		"authoritative": sub.Authoritative,
		"document_type": sub.DocumentType,
	})
	return sub.receipt(), nil
}

// register asks the case store for an authoritative ID. If the first attempt
// fails, a local ID is generated and offered to the store once more within the
// handoff timeout; a late success replaces the local ID.
func (s *Service) register(ctx context.Context, sub Submission) (string, bool, error) {
	req := CaseRequest{
		SessionID:    sub.SessionID,
		DocumentType: sub.DocumentType,
		Language:     sub.Language,
		FieldValues:  copyValues(sub.FieldValues),
	}
	if s.Store == nil {
		return s.fallback(sub, errors.New("no case store"))
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultHandoffTimeout
	}
	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	id, err := s.Store.Register(hctx, req)
	if err == nil {
		return id, true, nil
	}
	local, authoritative, ferr := s.fallback(sub, err)
	if ferr != nil || errors.Is(err, ErrStoreNotConfigured) {
		return local, authoritative, ferr
	}

	delay := s.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-hctx.Done():
		return local, false, nil
	case <-timer.C:
	}

	req.TrackingID = local
	id, err = s.Store.Register(hctx, req)
	if err != nil {
		telemetry.Warn("case store retry failed", map[string]any{"session_id": sub.SessionID, "tracking_id": local, "error": err.Error()})
		return local, false, nil
	}
	telemetry.Info("case store recovered", map[string]any{"session_id": sub.SessionID, "tracking_id": id, "replaced": local})
	return id, true, nil
}

func (s *Service) fallback(sub Submission, cause error) (string, bool, error) {
	id, err := GenerateTrackingID(sub.SubmittedAt)
	if err != nil {
		return "", false, err
	}
	metrics.IncTrackingFallback()
	telemetry.Warn("case store unavailable, using local tracking id", map[string]any{
		"session_id":  sub.SessionID,
		"tracking_id": id,
		"error":       cause.Error(),
	})
	return id, false, nil
}

type archiveRecord struct {
	TrackingID    string              `json:"trackingId"`
	Authoritative bool                `json:"authoritative"`
	SessionID     string              `json:"sessionId"`
	DocumentType  string              `json:"documentType"`
	Language      string              `json:"language"`
	Confidence    float64             `json:"confidence"`
	FieldValues   map[string]string   `json:"fieldValues"`
	Transcript    []dialogue.LogEntry `json:"transcript"`
	SubmittedAt   time.Time           `json:"submittedAt"`
}

// archive writes the snapshot and transcript to object storage. Failures are
// logged and leave the archive key empty.
func (s *Service) archive(ctx context.Context, sub Submission, transcript []dialogue.LogEntry) string {
	if s.Archive == nil {
		return ""
	}
	key, err := ArchiveKey(sub.TrackingID, sub.SubmittedAt)
	if err != nil {
		telemetry.Warn("archive key rejected", map[string]any{"tracking_id": sub.TrackingID, "error": err.Error()})
		return ""
	}
	payload, err := json.Marshal(archiveRecord{
		TrackingID:    sub.TrackingID,
		Authoritative: sub.Authoritative,
		SessionID:     sub.SessionID,
		DocumentType:  sub.DocumentType,
		Language:      sub.Language,
		Confidence:    sub.Confidence,
		FieldValues:   sub.FieldValues,
		Transcript:    transcript,
		SubmittedAt:   sub.SubmittedAt,
	})
	if err != nil {
		telemetry.Warn("archive encode failed", map[string]any{"tracking_id": sub.TrackingID, "error": err.Error()})
		return ""
	}
	if _, err := s.Archive.SaveWithKey(ctx, key, archiveContentType, bytes.NewReader(payload)); err != nil {
		telemetry.Warn("archive write failed", map[string]any{"tracking_id": sub.TrackingID, "key": key, "error": err.Error()})
		return ""
	}
	return key
}

// ArchiveKey returns archive/YYYY/MM/DD/<trackingID>.json.
func ArchiveKey(trackingID string, at time.Time) (string, error) {
	at = at.UTC()
	return object.Key(
		"archive",
		at.Format("2006"),
		at.Format("01"),
		at.Format("02"),
		strings.TrimSpace(trackingID)+".json",
	)
}

func (s *Service) notify(ctx context.Context, sub Submission) {
	if s.Queue == nil {
		return
	}
	msg := queue.NewSubmissionFinalized(queue.Message{
		TrackingID:    sub.TrackingID,
		DocumentType:  sub.DocumentType,
		Language:      sub.Language,
		FieldCount:    len(sub.FieldValues),
		Authoritative: sub.Authoritative,
		ArchiveKey:    sub.ArchiveKey,
		RequestID:     requestIDFrom(ctx),
		FinalizedAt:   sub.SubmittedAt.Format(time.RFC3339),
	})
	if err := s.Queue.Send(ctx, msg); err != nil {
		telemetry.Warn("submission notification failed", map[string]any{"tracking_id": sub.TrackingID, "error": err.Error()})
	}
}

// Reconcile registers a provisional submission with the case store under its
// local tracking ID. Authoritative and already reconciled submissions are left
// alone. A returned error means the message should be retried.
func (s *Service) Reconcile(ctx context.Context, msg queue.Message) error {
	if msg.Authoritative {
		return nil
	}
	if s.Repo == nil {
		return errors.New("missing dependencies")
	}
	sub, err := s.Repo.GetByTrackingID(ctx, msg.TrackingID)
	if err != nil {
		return err
	}
	if sub.Authoritative || sub.ReconciledAt != nil {
		return nil
	}
	if s.Store == nil {
		return ErrStoreNotConfigured
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultHandoffTimeout
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ref, err := s.Store.Register(rctx, CaseRequest{
		TrackingID:   sub.TrackingID,
		SessionID:    sub.SessionID,
		DocumentType: sub.DocumentType,
		Language:     sub.Language,
		FieldValues:  copyValues(sub.FieldValues),
	})
	if err != nil {
		return fmt.Errorf("register provisional submission: %w", err)
	}
	if err := s.Repo.MarkReconciled(ctx, sub.TrackingID, ref, s.now()); err != nil {
		return fmt.Errorf("mark reconciled: %w", err)
	}
	metrics.IncReconciled()
	telemetry.Info("provisional submission reconciled", map[string]any{
		"tracking_id": sub.TrackingID,
		"case_ref":    ref,
		"request_id":  msg.RequestID,
	})
	return nil
}

// Track returns the persisted submission for trackingID.
func (s *Service) Track(ctx context.Context, trackingID string) (Submission, error) {
	trackingID = strings.TrimSpace(trackingID)
	if trackingID == "" || len(trackingID) > 128 {
		return Submission{}, ErrInvalidTrackingID
	}
	return s.Repo.GetByTrackingID(ctx, trackingID)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
