package submissions

import (
	"context"
	"time"
)

// Repo persists submissions.
type Repo interface {
	Create(ctx context.Context, sub Submission) error
	GetByTrackingID(ctx context.Context, trackingID string) (Submission, error)
	GetBySessionID(ctx context.Context, sessionID string) (Submission, error)
	MarkReconciled(ctx context.Context, trackingID, caseRef string, at time.Time) error
}
