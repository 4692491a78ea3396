package submissions

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	trackingPrefix = "TRK"
	trackingDate   = "20060102"
	base36         = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	suffixLen      = 8
)

var trackingPattern = regexp.MustCompile(`^TRK\d{8}-[A-Z0-9]{8}$`)

// GenerateTrackingID returns a local fallback ID: TRK + UTC date + "-" + 8 base-36 characters.
func GenerateTrackingID(now time.Time) (string, error) {
	suffix, err := randomBase36(suffixLen)
	if err != nil {
		return "", fmt.Errorf("generate tracking id: %w", err)
	}
	return trackingPrefix + now.UTC().Format(trackingDate) + "-" + suffix, nil
}

// IsValidTrackingID reports whether id has the local fallback format.
func IsValidTrackingID(id string) bool {
	if !trackingPattern.MatchString(id) {
		return false
	}
	_, err := time.Parse(trackingDate, id[len(trackingPrefix):len(trackingPrefix)+len(trackingDate)])
	return err == nil
}

// TrackingDate returns the UTC date embedded in a fallback tracking ID.
func TrackingDate(id string) (time.Time, error) {
	id = strings.TrimSpace(id)
	if !trackingPattern.MatchString(id) {
		return time.Time{}, ErrInvalidTrackingID
	}
	t, err := time.Parse(trackingDate, id[len(trackingPrefix):len(trackingPrefix)+len(trackingDate)])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidTrackingID, err)
	}
	return t, nil
}

// randomBase36 draws n unbiased characters; bytes >= 252 are rejected.
func randomBase36(n int) (string, error) {
	const limit = 252
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, base36[int(b)%len(base36)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
