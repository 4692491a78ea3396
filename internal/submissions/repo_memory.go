package submissions

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu         sync.RWMutex
	byTracking map[string]Submission
	bySession  map[string]string // sessionID -> trackingID
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byTracking: make(map[string]Submission),
		bySession:  make(map[string]string),
	}
}

// Create stores sub. The field map is copied.
func (r *MemoryRepo) Create(ctx context.Context, sub Submission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sub.FieldValues = copyValues(sub.FieldValues)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byTracking[sub.TrackingID] = sub
	r.bySession[sub.SessionID] = sub.TrackingID
	return nil
}

// GetByTrackingID returns the submission with trackingID.
func (r *MemoryRepo) GetByTrackingID(ctx context.Context, trackingID string) (Submission, error) {
	if err := ctx.Err(); err != nil {
		return Submission{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.byTracking[trackingID]
	if !ok {
		return Submission{}, ErrNotFound
	}
	sub.FieldValues = copyValues(sub.FieldValues)
	return sub, nil
}

// GetBySessionID returns the submission created for sessionID.
func (r *MemoryRepo) GetBySessionID(ctx context.Context, sessionID string) (Submission, error) {
	if err := ctx.Err(); err != nil {
		return Submission{}, err
	}
	r.mu.RLock()
	trackingID, ok := r.bySession[sessionID]
	r.mu.RUnlock()
	if !ok {
		return Submission{}, ErrNotFound
	}
	return r.GetByTrackingID(ctx, trackingID)
}

// MarkReconciled records that a provisional submission reached the case store.
func (r *MemoryRepo) MarkReconciled(ctx context.Context, trackingID, caseRef string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.byTracking[trackingID]
	if !ok {
		return ErrNotFound
	}
	sub.CaseRef = caseRef
	sub.ReconciledAt = &at
	r.byTracking[trackingID] = sub
	return nil
}

func copyValues(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

var _ Repo = (*MemoryRepo)(nil)
