package object

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// ObjectStore defines the contract for saving and retrieving objects by key.
type ObjectStore interface {
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (sizeBytes int64, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}

// ErrInvalidKey is returned for empty keys or keys that escape the store root.
var ErrInvalidKey = errors.New("invalid storage key")

// Key joins segments into a storage key. Separators inside a segment are replaced
// and traversal patterns are rejected.
func Key(segments ...string) (string, error) {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if strings.Contains(seg, "..") {
			return "", ErrInvalidKey
		}
		s := strings.TrimSpace(seg)
		s = strings.ReplaceAll(s, "/", "_")
		s = strings.ReplaceAll(s, "\\", "_")
		if s == "" {
			return "", ErrInvalidKey
		}
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		return "", ErrInvalidKey
	}
	return path.Join(parts...), nil
}
