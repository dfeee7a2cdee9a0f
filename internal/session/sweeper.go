package session

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultSweepInterval is how often expired sessions are purged.
const DefaultSweepInterval = time.Hour

// Sweeper periodically deletes expired sessions. Verification never depends on
// it; it only keeps the sessions table from growing without bound.
type Sweeper struct {
	authority *Authority
	interval  time.Duration
}

// NewSweeper constructs a Sweeper; interval <= 0 selects DefaultSweepInterval.
func NewSweeper(authority *Authority, interval time.Duration) *Sweeper {
	if authority == nil {
		return nil
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{authority: authority, interval: interval}
}

// Start runs the sweep loop in the background until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	if s == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go s.run(ctx)
	log.Infof("session sweeper started (interval=%s)", s.interval)
}

func (s *Sweeper) run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	purged, err := s.authority.PurgeExpired(ctx)
	if err != nil {
		log.WithError(err).Warn("session sweeper: purge failed")
		return
	}
	if purged > 0 {
		log.Debugf("session sweeper: purged %d expired sessions", purged)
	}
}
