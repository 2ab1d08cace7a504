package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/sessionkeeper/internal/apperrors"
	"github.com/nkiryanov/sessionkeeper/internal/models"
	"github.com/nkiryanov/sessionkeeper/internal/testutil"
)

func newTestPrincipal(email string) models.Principal {
	return models.Principal{
		ID:           uuid.New(),
		CreatedAt:    time.Now(),
		Email:        email,
		DisplayName:  "Test User",
		Role:         models.RoleUser,
		IsActive:     true,
		PasswordHash: "hashedpassword123",
	}
}

func Test_PrincipalRepo(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("create principal ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := PrincipalRepo{DB: tx}
			p := newTestPrincipal("user@x.com")

			got, err := r.Create(t.Context(), p)

			require.NoError(t, err)
			assert.Equal(t, p.ID, got.ID)
			assert.Equal(t, "user@x.com", got.Email)
			assert.Equal(t, "Test User", got.DisplayName)
			assert.Equal(t, models.RoleUser, got.Role)
			assert.True(t, got.IsActive)
			assert.Nil(t, got.LastActivityAt)
			assert.Equal(t, "hashedpassword123", got.PasswordHash)
			assert.WithinDuration(t, time.Now(), got.CreatedAt, time.Second, "CreatedAt should be recent")
		})
	})

	t.Run("create duplicate email fail", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := PrincipalRepo{DB: tx}
			_, err := r.Create(t.Context(), newTestPrincipal("dup@x.com"))
			require.NoError(t, err)

			_, err = r.Create(t.Context(), newTestPrincipal("dup@x.com"))

			require.Error(t, err, "Should fail on duplicate email")
			require.ErrorIs(t, err, apperrors.ErrPrincipalAlreadyExists)
		})
	})

	t.Run("get by email", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := PrincipalRepo{DB: tx}
			created, err := r.Create(t.Context(), newTestPrincipal("find@x.com"))
			require.NoError(t, err)

			got, err := r.GetByEmail(t.Context(), "find@x.com")

			require.NoError(t, err)
			assert.Equal(t, created.ID, got.ID)
			assert.Equal(t, created.PasswordHash, got.PasswordHash)
		})
	})

	t.Run("get by email not found", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := PrincipalRepo{DB: tx}

			_, err := r.GetByEmail(t.Context(), "nobody@x.com")

			require.ErrorIs(t, err, apperrors.ErrPrincipalNotFound)
		})
	})

	t.Run("set active", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := PrincipalRepo{DB: tx}
			_, err := r.Create(t.Context(), newTestPrincipal("flag@x.com"))
			require.NoError(t, err)

			err = r.SetActive(t.Context(), "flag@x.com", false)
			require.NoError(t, err)

			got, err := r.GetByEmail(t.Context(), "flag@x.com")
			require.NoError(t, err)
			require.False(t, got.IsActive)

			err = r.SetActive(t.Context(), "nobody@x.com", false)
			require.ErrorIs(t, err, apperrors.ErrPrincipalNotFound)
		})
	})

	t.Run("touch activity never moves back", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := PrincipalRepo{DB: tx}
			_, err := r.Create(t.Context(), newTestPrincipal("touch@x.com"))
			require.NoError(t, err)
			later := testutil.MustParseTime("2025-06-01 12:00:00Z")
			earlier := testutil.MustParseTime("2025-05-01 12:00:00Z")

			require.NoError(t, r.TouchActivity(t.Context(), "touch@x.com", later))
			require.NoError(t, r.TouchActivity(t.Context(), "touch@x.com", earlier))

			got, err := r.GetByEmail(t.Context(), "touch@x.com")
			require.NoError(t, err)
			require.NotNil(t, got.LastActivityAt)
			require.WithinDuration(t, later, *got.LastActivityAt, 0)
		})
	})
}

func Test_SecurityRepos(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("record failures inside window", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := LoginAttemptRepo{DB: tx}
			start := testutil.MustParseTime("2025-01-01 10:00:00Z")

			for i := 1; i <= 3; i++ {
				count, err := r.RecordFailure(t.Context(), "user@x.com", start.Add(time.Duration(i)*time.Minute), 15*time.Minute)
				require.NoError(t, err)
				require.Equal(t, i, count)
			}

			count, err := r.RecordFailure(t.Context(), "user@x.com", start.Add(time.Hour), 15*time.Minute)
			require.NoError(t, err)
			require.Equal(t, 1, count, "counter must restart when window passed")
		})
	})

	t.Run("reset failures", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := LoginAttemptRepo{DB: tx}
			now := time.Now()
			_, err := r.RecordFailure(t.Context(), "user@x.com", now, time.Minute)
			require.NoError(t, err)

			require.NoError(t, r.Reset(t.Context(), "user@x.com"))

			count, err := r.RecordFailure(t.Context(), "user@x.com", now, time.Minute)
			require.NoError(t, err)
			require.Equal(t, 1, count)
		})
	})

	t.Run("save security event", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := SecurityEventRepo{DB: tx}

			err := r.Save(t.Context(), models.SecurityEvent{
				ID:         "01J0000000000000000000TEST",
				Name:       "login_failed",
				Subject:    "user@x.com",
				Reason:     "invalid_credentials",
				Attributes: map[string]string{"device_id": "d-1"},
				CreatedAt:  time.Now(),
			})
			require.NoError(t, err)

			var name, deviceID string
			err = tx.QueryRow(t.Context(),
				"SELECT name, attributes->>'device_id' FROM security_events WHERE id = $1",
				"01J0000000000000000000TEST",
			).Scan(&name, &deviceID)
			require.NoError(t, err)
			require.Equal(t, "login_failed", name)
			require.Equal(t, "d-1", deviceID)
		})
	})
}
