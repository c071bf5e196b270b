package session

import (
	"context"
	"time"

	"exoai/internal"
)

// Purger removes expired sessions from a persistent store
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Janitor periodically purges expired sessions. The memory store expires
// entries on its own and needs no janitor.
type Janitor struct {
	purger   Purger
	interval time.Duration
	logger   *internal.Logger
}

// NewJanitor creates a janitor that runs every interval
func NewJanitor(purger Purger, interval time.Duration, logger *internal.Logger) *Janitor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Janitor{purger: purger, interval: interval, logger: logger.For("SessionJanitor")}
}

// Run purges once immediately and then on every tick until ctx is done
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.purge(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			j.purge(ctx)
		}
	}
}

func (j *Janitor) purge(ctx context.Context) {
	n, err := j.purger.PurgeExpired(ctx)
	if err != nil {
		j.logger.Warn("purge failed: %v", err)
		return
	}
	if n > 0 {
		j.logger.Info("purged %d expired sessions", n)
	}
}
