// Package sessions keeps live dialogue sessions in memory and exposes them over HTTP.
package sessions

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"voice-intake/internal/dialogue"
	"voice-intake/internal/lang"
)

const defaultIdleTTL = 2 * time.Hour

// ErrNotFound is returned for unknown or expired session IDs.
var ErrNotFound = errors.New("session not found")

// Registry owns the live orchestrators. Sessions untouched for longer than the
// idle TTL are dropped on the next Create.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*dialogue.Orchestrator
	deps     dialogue.Deps
	ttl      time.Duration
	now      func() time.Time
}

// NewRegistry builds a registry creating sessions with deps. ttl <= 0 uses two hours.
func NewRegistry(deps dialogue.Deps, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = defaultIdleTTL
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Registry{
		sessions: make(map[string]*dialogue.Orchestrator),
		deps:     deps,
		ttl:      ttl,
		now:      now,
	}
}

// Create starts a new idle session. languageHint overrides the default extraction
// hint when it names a supported language.
func (r *Registry) Create(languageHint string) *dialogue.Orchestrator {
	deps := r.deps
	if hint := strings.TrimSpace(languageHint); hint != "" && lang.IsSupported(hint) {
		deps.LanguageHint = lang.Normalize(hint)
	}
	o := dialogue.New(uuid.NewString(), deps)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	r.sessions[o.ID()] = o
	return o
}

// Get returns the session with id.
func (r *Registry) Get(id string) (*dialogue.Orchestrator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.sessions[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

// Len reports how many sessions are held.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) sweepLocked() {
	cutoff := r.now().Add(-r.ttl)
	for id, o := range r.sessions {
		status, updated := o.Activity()
		if status.Busy() {
			continue
		}
		if updated.Before(cutoff) {
			delete(r.sessions, id)
		}
	}
}
