package activity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/nkiryanov/sessionkeeper/internal/apperrors"
	"github.com/nkiryanov/sessionkeeper/internal/logger"
)

const (
	defaultCountWorkers = 2   // Number of workers to write activity
	defaultQueueSize    = 256 // Touches waiting for a worker, the rest are dropped
	defaultRetries      = 3
	defaultRetryDelay   = 50 * time.Millisecond
)

type principalRepo interface {
	TouchActivity(ctx context.Context, email string, at time.Time) error
}

type touch struct {
	email string
	at    time.Time
}

type Config struct {
	CountWorkers int
	QueueSize    int
	Retries      uint64
	RetryDelay   time.Duration
}

// Toucher writes principal last activity in background
// Callers never wait for the store
type Toucher struct {
	countWorkers int
	retries      uint64
	retryDelay   time.Duration

	queue  chan touch
	repo   principalRepo
	logger logger.Logger
}

func New(cfg Config, repo principalRepo, l logger.Logger) *Toucher {
	if cfg.CountWorkers <= 0 {
		cfg.CountWorkers = defaultCountWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Retries == 0 {
		cfg.Retries = defaultRetries
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = defaultRetryDelay
	}

	return &Toucher{
		countWorkers: cfg.CountWorkers,
		retries:      cfg.Retries,
		retryDelay:   cfg.RetryDelay,
		queue:        make(chan touch, cfg.QueueSize),
		repo:         repo,
		logger:       l,
	}
}

// Schedule activity update. Drops the touch if the queue is full
func (t *Toucher) Schedule(email string, at time.Time) {
	select {
	case t.queue <- touch{email: email, at: at}:
	default:
		t.logger.Warn("Activity queue is full, touch dropped", "email", email)
	}
}

// Run workers until ctx is done
// Returned channel is closed when every worker stopped
func (t *Toucher) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})

	var wg sync.WaitGroup
	for range t.countWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t.worker(ctx)
		}()
	}

	go func() {
		defer close(idleStopped)
		wg.Wait()
		t.logger.Debug("Activity toucher stopped")
	}()

	return idleStopped
}

func (t *Toucher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case tc := <-t.queue:
			if err := t.touch(ctx, tc); err != nil && ctx.Err() == nil {
				t.logger.Error("Failed to touch principal activity", "email", tc.email, "error", err)
			}
		}
	}
}

func (t *Toucher) touch(ctx context.Context, tc touch) error {
	backoff := retry.WithMaxRetries(t.retries, retry.NewConstant(t.retryDelay))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := t.repo.TouchActivity(ctx, tc.email, tc.at)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, apperrors.ErrPrincipalNotFound):
			// Deleted in between, nothing to retry
			return err
		default:
			return retry.RetryableError(err)
		}
	})
}
