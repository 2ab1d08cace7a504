package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/sessionkeeper/internal/apperrors"
	"github.com/nkiryanov/sessionkeeper/internal/models"
)

type RenewalTokenRepo struct {
	DB DBTX
}

const renewalTokenColumns = `id, value_hash, subject, family_id,
	device_id, ip_address, user_agent, device_type,
	used_count, max_uses, is_active, created_at, last_used_at, expires_at`

func rowToRenewalToken(row pgx.CollectableRow) (models.RenewalToken, error) {
	var t models.RenewalToken
	err := row.Scan(
		&t.ID, &t.ValueHash, &t.Subject, &t.FamilyID,
		&t.Device.DeviceID, &t.Device.IPAddress, &t.Device.UserAgent, &t.Device.DeviceType,
		&t.UsedCount, &t.MaxUses, &t.IsActive, &t.CreatedAt, &t.LastUsedAt, &t.ExpiresAt,
	)
	return t, err
}

// Collect exactly one token and translate 'no rows' to the given error
func collectToken(rows pgx.Rows, err error, notFound error) (models.RenewalToken, error) {
	if err != nil {
		return models.RenewalToken{}, fmt.Errorf("db error: %w", err)
	}

	token, err := pgx.CollectOneRow(rows, rowToRenewalToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", notFound)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

const createRenewalToken = `-- name: Create renewal token
INSERT INTO renewal_tokens (` + renewalTokenColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING ` + renewalTokenColumns

func (r *RenewalTokenRepo) Create(ctx context.Context, t models.RenewalToken) (models.RenewalToken, error) {
	// Depending on the driver unique violation is reported either by Query or while reading rows
	rows, err := r.DB.Query(ctx, createRenewalToken,
		t.ID, t.ValueHash, t.Subject, t.FamilyID,
		t.Device.DeviceID, t.Device.IPAddress, t.Device.UserAgent, t.Device.DeviceType,
		t.UsedCount, t.MaxUses, t.IsActive, t.CreatedAt, t.LastUsedAt, t.ExpiresAt,
	)
	if err != nil {
		return models.RenewalToken{}, createError(err)
	}

	saved, err := pgx.CollectOneRow(rows, rowToRenewalToken)
	if err != nil {
		return saved, createError(err)
	}

	// Plain value is never stored, so return it back as is
	saved.Value = t.Value
	return saved, nil
}

func createError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return fmt.Errorf("repo error: %w", apperrors.ErrRenewalTokenConflict)
	}
	return fmt.Errorf("db error: %w", err)
}

const getRenewalTokenByHash = `-- name: Get renewal token by value hash
SELECT ` + renewalTokenColumns + `
FROM renewal_tokens
WHERE value_hash = $1
`

// Return token even it is expired, revoked or exhausted
func (r *RenewalTokenRepo) GetByValueHash(ctx context.Context, valueHash string) (models.RenewalToken, error) {
	rows, err := r.DB.Query(ctx, getRenewalTokenByHash, valueHash)
	return collectToken(rows, err, apperrors.ErrRenewalTokenNotFound)
}

const getRenewalTokenByID = `-- name: Get renewal token by id
SELECT ` + renewalTokenColumns + `
FROM renewal_tokens
WHERE id = $1
`

func (r *RenewalTokenRepo) GetByID(ctx context.Context, id uuid.UUID) (models.RenewalToken, error) {
	rows, err := r.DB.Query(ctx, getRenewalTokenByID, id)
	return collectToken(rows, err, apperrors.ErrRenewalTokenNotFound)
}

const listActiveForSubject = `-- name: List active renewal tokens of the subject
SELECT ` + renewalTokenColumns + `
FROM renewal_tokens
WHERE subject = $1 AND is_active AND expires_at > $2
ORDER BY created_at DESC, id
`

func (r *RenewalTokenRepo) ListActiveForSubject(ctx context.Context, subject string, now time.Time) ([]models.RenewalToken, error) {
	rows, err := r.DB.Query(ctx, listActiveForSubject, subject, now)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	tokens, err := pgx.CollectRows(rows, rowToRenewalToken)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return tokens, nil
}

const incrementUsage = `-- name: Compare and increment renewal token usage
UPDATE renewal_tokens
SET used_count = used_count + 1, last_used_at = $3
WHERE id = $1
	AND used_count = $2
	AND used_count < max_uses
	AND is_active
	AND expires_at > $3
RETURNING ` + renewalTokenColumns

// Optimistic compare-and-swap keyed by the used count the caller has seen
// Concurrent writer blocks on the row lock and then sees the updated row, so only one wins
func (r *RenewalTokenRepo) IncrementUsage(ctx context.Context, id uuid.UUID, expectedUsed int, now time.Time) (models.RenewalToken, error) {
	rows, err := r.DB.Query(ctx, incrementUsage, id, expectedUsed, now)
	return collectToken(rows, err, apperrors.ErrUsageConflict)
}

const invalidateToken = `-- name: Invalidate renewal token
UPDATE renewal_tokens
SET is_active = FALSE
WHERE id = $1 AND is_active
`

func (r *RenewalTokenRepo) Invalidate(ctx context.Context, id uuid.UUID) (int64, error) {
	return r.exec(ctx, invalidateToken, id)
}

const invalidateFamily = `-- name: Invalidate every member of the family
UPDATE renewal_tokens
SET is_active = FALSE
WHERE family_id = $1 AND is_active
`

func (r *RenewalTokenRepo) InvalidateFamily(ctx context.Context, familyID uuid.UUID) (int64, error) {
	return r.exec(ctx, invalidateFamily, familyID)
}

const invalidateAllForSubject = `-- name: Invalidate all renewal tokens of the subject
UPDATE renewal_tokens
SET is_active = FALSE
WHERE subject = $1 AND is_active
`

func (r *RenewalTokenRepo) InvalidateAllForSubject(ctx context.Context, subject string) (int64, error) {
	return r.exec(ctx, invalidateAllForSubject, subject)
}

const deleteExpired = `-- name: Delete expired renewal tokens
DELETE FROM renewal_tokens
WHERE expires_at < $1
`

func (r *RenewalTokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	return r.exec(ctx, deleteExpired, before)
}

func (r *RenewalTokenRepo) exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := r.DB.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}
