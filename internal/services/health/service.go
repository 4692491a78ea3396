package health

import (
	"context"
	"time"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Service reports dependency health for /health.
type Service struct {
	DB          Pinger
	Provider    string
	ObjectStore string
	Sessions    func() int
	Timeout     time.Duration
}

// Report is the /health payload.
type Report struct {
	OK          bool   `json:"ok"`
	Database    string `json:"database"`
	Provider    string `json:"provider"`
	ObjectStore string `json:"objectStore"`
	Sessions    int    `json:"sessions"`
}

// NewService constructs a health service. db may be nil when repositories are in memory.
func NewService(db Pinger, provider, objectStore string, sessions func() int) *Service {
	return &Service{
		DB:          db,
		Provider:    provider,
		ObjectStore: objectStore,
		Sessions:    sessions,
		Timeout:     2 * time.Second,
	}
}

// Status pings the database, if any, and summarizes the wiring.
func (s *Service) Status(ctx context.Context) Report {
	r := Report{
		OK:          true,
		Database:    "memory",
		Provider:    s.Provider,
		ObjectStore: s.ObjectStore,
	}
	if s.Sessions != nil {
		r.Sessions = s.Sessions()
	}
	if s.DB != nil {
		pingCtx, cancel := context.WithTimeout(ctx, s.Timeout)
		defer cancel()
		if err := s.DB.PingContext(pingCtx); err != nil {
			r.OK = false
			r.Database = "unreachable"
		} else {
			r.Database = "postgres"
		}
	}
	return r
}
