package dialogue

import "errors"

var (
	ErrPrecondition          = errors.New("operation not allowed in current state")
	ErrStaleTurn             = errors.New("stale turn result")
	ErrSessionFailed         = errors.New("session failed; start a new session")
	ErrAbandoned             = errors.New("session abandoned")
	ErrEmptyTranscript       = errors.New("empty transcript")
	ErrMalformedExtraction   = errors.New("malformed extraction result")
	ErrExtractionFailed      = errors.New("extraction failed")
	ErrInterpretationFailed  = errors.New("interpretation failed")
	ErrTooManyCaptureErrors  = errors.New("too many consecutive capture errors")
	ErrTooManyServiceRetries = errors.New("too many consecutive interpretation failures")
)
