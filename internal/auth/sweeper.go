package auth

import (
	"context"
	"log"
	"time"

	"github.com/albocarride/server/internal/repo"
)

// Sweeper periodically deletes OTP records that expired more than retention ago
type Sweeper struct {
	otps      repo.OtpRepo
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

// NewSweeper creates a new sweeper
func NewSweeper(otps repo.OtpRepo, interval, retention time.Duration) *Sweeper {
	return &Sweeper{otps: otps, interval: interval, retention: retention, now: time.Now}
}

// Run sweeps once immediately and then every interval until ctx is done
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.Sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep deletes stale records once and returns how many were removed
func (s *Sweeper) Sweep(ctx context.Context) int64 {
	n, err := s.otps.DeleteStale(ctx, s.now().Add(-s.retention))
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("OTP sweep failed: %v", err)
		}
		return 0
	}
	if n > 0 {
		log.Printf("OTP sweep removed %d stale records", n)
	}
	return n
}
