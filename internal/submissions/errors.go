package submissions

import "errors"

var (
	// ErrNotFound indicates no submission exists for the tracking ID.
	ErrNotFound = errors.New("submission not found")

	// ErrNotComplete is returned when a session has not reached Complete.
	ErrNotComplete = errors.New("session is not complete")

	// ErrInvalidTrackingID indicates a blank or malformed tracking ID.
	ErrInvalidTrackingID = errors.New("invalid tracking id")

	// ErrStoreNotConfigured is returned by a case store client without a base URL.
	ErrStoreNotConfigured = errors.New("case store not configured")
)
