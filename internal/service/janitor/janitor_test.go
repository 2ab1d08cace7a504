package janitor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nkiryanov/sessionkeeper/internal/logger"
	"github.com/nkiryanov/sessionkeeper/internal/models"
	"github.com/nkiryanov/sessionkeeper/internal/repository/memory"
)

type countingRepo struct {
	calls atomic.Int32
	err   error
}

func (r *countingRepo) DeleteExpired(context.Context, time.Time) (int64, error) {
	r.calls.Add(1)
	return 0, r.err
}

func TestJanitor_Sweep(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	storage := memory.NewStorage()

	create := func(expiresAt time.Time) uuid.UUID {
		token, err := storage.RenewalToken().Create(t.Context(), models.RenewalToken{
			ID:        uuid.New(),
			ValueHash: uuid.NewString(),
			Subject:   "user@x.com",
			FamilyID:  uuid.New(),
			MaxUses:   10,
			IsActive:  true,
			ExpiresAt: expiresAt,
		})
		require.NoError(t, err)
		return token.ID
	}

	old := create(now.Add(-48 * time.Hour))
	recent := create(now.Add(-time.Hour))
	alive := create(now.Add(time.Hour))

	j := New(Config{Retention: 24 * time.Hour, Now: func() time.Time { return now }}, storage.RenewalToken(), logger.NewNoOpLogger())

	require.Equal(t, int64(1), j.Sweep(t.Context()))

	_, err := storage.RenewalToken().GetByID(t.Context(), old)
	require.Error(t, err, "token expired before retention must be deleted")
	_, err = storage.RenewalToken().GetByID(t.Context(), recent)
	require.NoError(t, err, "recently expired token is kept to detect replays")
	_, err = storage.RenewalToken().GetByID(t.Context(), alive)
	require.NoError(t, err)

	require.Equal(t, int64(0), j.Sweep(t.Context()))
}

func TestJanitor_Run(t *testing.T) {
	t.Run("sweep on every tick", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		repo := &countingRepo{}
		ctx, cancel := context.WithCancel(t.Context())
		stopped := New(Config{Interval: 5 * time.Millisecond}, repo, logger.NewNoOpLogger()).Run(ctx)

		require.Eventually(t, func() bool { return repo.calls.Load() >= 3 }, time.Second, time.Millisecond)

		cancel()
		<-stopped
	})

	t.Run("keep running on errors", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		repo := &countingRepo{err: errors.New("connection reset")}
		ctx, cancel := context.WithCancel(t.Context())
		stopped := New(Config{Interval: 5 * time.Millisecond}, repo, logger.NewNoOpLogger()).Run(ctx)

		require.Eventually(t, func() bool { return repo.calls.Load() >= 2 }, time.Second, time.Millisecond)

		cancel()
		<-stopped
	})
}
