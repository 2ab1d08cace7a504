package janitor

import (
	"context"
	"time"

	"github.com/nkiryanov/sessionkeeper/internal/logger"
)

const (
	defaultInterval  = time.Hour
	defaultRetention = 24 * time.Hour // Keep expired tokens for a while to recognize late replays
)

type renewalTokenRepo interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type Config struct {
	Interval  time.Duration
	Retention time.Duration
	Now       func() time.Time
}

// Janitor periodically deletes renewal tokens expired long ago
type Janitor struct {
	interval  time.Duration
	retention time.Duration
	now       func() time.Time

	repo   renewalTokenRepo
	logger logger.Logger
}

func New(cfg Config, repo renewalTokenRepo, l logger.Logger) *Janitor {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaultRetention
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Janitor{
		interval:  cfg.Interval,
		retention: cfg.Retention,
		now:       cfg.Now,
		repo:      repo,
		logger:    l,
	}
}

// Run cleanup every interval until ctx is done
func (j *Janitor) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	j.logger.Debug("Starting janitor", "interval", j.interval, "retention", j.retention)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				j.logger.Debug("Janitor stopped by context")
				return
			case <-ticker.C:
				j.Sweep(ctx)
			}
		}
	}()

	return idleStopped
}

// Sweep deletes expired tokens once
func (j *Janitor) Sweep(ctx context.Context) int64 {
	before := j.now().Add(-j.retention)

	count, err := j.repo.DeleteExpired(ctx, before)
	if err != nil {
		j.logger.Error("Failed to delete expired renewal tokens", "error", err)
		return 0
	}
	if count > 0 {
		j.logger.Info("Expired renewal tokens deleted", "count", count, "before", before)
	}
	return count
}
