package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/sessionkeeper/internal/models"
)

type LoginAttemptRepo struct {
	DB DBTX
}

const recordLoginFailure = `-- name: Record failed login
INSERT INTO login_failures AS lf (email, window_start, failures)
VALUES ($1, $2, 1)
ON CONFLICT (email) DO UPDATE
SET window_start = CASE WHEN lf.window_start + $3::interval <= $2 THEN $2 ELSE lf.window_start END,
	failures     = CASE WHEN lf.window_start + $3::interval <= $2 THEN 1 ELSE lf.failures + 1 END
RETURNING failures
`

// Counter is kept in one upsert so parallel failures never lose increments
func (r *LoginAttemptRepo) RecordFailure(ctx context.Context, email string, now time.Time, window time.Duration) (int, error) {
	rows, _ := r.DB.Query(ctx, recordLoginFailure, email, now, window)
	count, err := pgx.CollectOneRow(rows, pgx.RowTo[int])
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return count, nil
}

const resetLoginFailures = `-- name: Reset failed logins
DELETE FROM login_failures
WHERE email = $1
`

func (r *LoginAttemptRepo) Reset(ctx context.Context, email string) error {
	_, err := r.DB.Exec(ctx, resetLoginFailures, email)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

type SecurityEventRepo struct {
	DB DBTX
}

const saveSecurityEvent = `-- name: Save security event
INSERT INTO security_events (id, name, subject, ip_address, reason, attributes, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

func (r *SecurityEventRepo) Save(ctx context.Context, e models.SecurityEvent) error {
	attrs := e.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}

	_, err := r.DB.Exec(ctx, saveSecurityEvent, e.ID, e.Name, e.Subject, e.IPAddress, e.Reason, attrs, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
