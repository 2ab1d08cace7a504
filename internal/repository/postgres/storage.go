package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/sessionkeeper/internal/repository"
)

// Satisfied by *pgxpool.Pool, pgx.Tx and pgxmock
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Storage struct {
	db DBTX
}

func NewStorage(db DBTX) repository.Storage {
	return &Storage{db: db}
}

func (s *Storage) Principal() repository.PrincipalRepo {
	return &PrincipalRepo{DB: s.db}
}

func (s *Storage) RenewalToken() repository.RenewalTokenRepo {
	return &RenewalTokenRepo{DB: s.db}
}

func (s *Storage) LoginAttempt() repository.LoginAttemptRepo {
	return &LoginAttemptRepo{DB: s.db}
}

func (s *Storage) SecurityEvent() repository.SecurityEventRepo {
	return &SecurityEventRepo{DB: s.db}
}

// Run fn in transaction
// Nested calls open savepoints, because pgx.Tx.Begin does so
func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db tx error: %w", err)
	}

	defer func() {
		switch err {
		case nil:
			err = tx.Commit(ctx)
		default:
			_ = tx.Rollback(ctx)
		}
	}()

	err = fn(NewStorage(tx))

	return err
}
