package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/sessionkeeper/internal/apperrors"
	"github.com/nkiryanov/sessionkeeper/internal/models"
)

type PrincipalRepo struct {
	DB DBTX
}

const principalColumns = `id, created_at, email, display_name, role, is_active, last_activity_at, password_hash`

func rowToPrincipal(row pgx.CollectableRow) (models.Principal, error) {
	var p models.Principal
	err := row.Scan(&p.ID, &p.CreatedAt, &p.Email, &p.DisplayName, &p.Role, &p.IsActive, &p.LastActivityAt, &p.PasswordHash)
	return p, err
}

const createPrincipal = `-- name: CreatePrincipal
INSERT INTO principals (id, created_at, email, display_name, role, is_active, password_hash)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + principalColumns

func (r *PrincipalRepo) Create(ctx context.Context, p models.Principal) (models.Principal, error) {
	rows, _ := r.DB.Query(ctx, createPrincipal, p.ID, p.CreatedAt, p.Email, p.DisplayName, p.Role, p.IsActive, p.PasswordHash)
	principal, err := pgx.CollectOneRow(rows, rowToPrincipal)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
			return principal, fmt.Errorf("repo error: %w", apperrors.ErrPrincipalAlreadyExists)
		}
		return principal, fmt.Errorf("db error: %w", err)
	}

	return principal, nil
}

const getPrincipalByEmail = `-- name: GetPrincipalByEmail
SELECT ` + principalColumns + `
FROM principals
WHERE email = $1
`

func (r *PrincipalRepo) GetByEmail(ctx context.Context, email string) (models.Principal, error) {
	rows, _ := r.DB.Query(ctx, getPrincipalByEmail, email)
	principal, err := pgx.CollectOneRow(rows, rowToPrincipal)

	switch {
	case err == nil:
		return principal, nil
	case errors.Is(err, pgx.ErrNoRows):
		return principal, fmt.Errorf("repo error: %w", apperrors.ErrPrincipalNotFound)
	default:
		return principal, fmt.Errorf("db error: %w", err)
	}
}

const setPrincipalActive = `-- name: SetPrincipalActive
UPDATE principals
SET is_active = $2
WHERE email = $1
`

func (r *PrincipalRepo) SetActive(ctx context.Context, email string, isActive bool) error {
	tag, err := r.DB.Exec(ctx, setPrincipalActive, email, isActive)
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return fmt.Errorf("repo error: %w", apperrors.ErrPrincipalNotFound)
	default:
		return nil
	}
}

const touchPrincipalActivity = `-- name: TouchPrincipalActivity
UPDATE principals
SET last_activity_at = GREATEST(COALESCE(last_activity_at, $2), $2)
WHERE email = $1
`

func (r *PrincipalRepo) TouchActivity(ctx context.Context, email string, at time.Time) error {
	_, err := r.DB.Exec(ctx, touchPrincipalActivity, email, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
