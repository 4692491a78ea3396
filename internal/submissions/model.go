package submissions

import "time"

// Submission is the persisted record of one completed intake.
type Submission struct {
	ID            string            `json:"id"`
	TrackingID    string            `json:"trackingId"`
	SessionID     string            `json:"sessionId"`
	DocumentType  string            `json:"documentType"`
	Language      string            `json:"language"`
	Confidence    float64           `json:"confidence"`
	Turns         int               `json:"turns"`
	FieldValues   map[string]string `json:"fieldValues"`
	Authoritative bool              `json:"authoritative"`
	ArchiveKey    string            `json:"archiveKey,omitempty"`
	SubmittedAt   time.Time         `json:"submittedAt"`

	// CaseRef is the case store's own reference for a submission that was
	// registered after the fact under its local tracking ID.
	CaseRef      string     `json:"caseRef,omitempty"`
	ReconciledAt *time.Time `json:"reconciledAt,omitempty"`
}

// Receipt is what the caller gets back from a handoff.
type Receipt struct {
	TrackingID    string    `json:"trackingId"`
	Authoritative bool      `json:"authoritative"`
	SubmittedAt   time.Time `json:"submittedAt"`
	ArchiveKey    string    `json:"archiveKey,omitempty"`
}

func (s Submission) receipt() Receipt {
	return Receipt{
		TrackingID:    s.TrackingID,
		Authoritative: s.Authoritative,
		SubmittedAt:   s.SubmittedAt,
		ArchiveKey:    s.ArchiveKey,
	}
}
