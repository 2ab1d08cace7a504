package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/sessionkeeper/internal/models"
)

// Principal repository interface
type PrincipalRepo interface {
	// Create principal
	// If principal with the email exists already has to return apperrors.ErrPrincipalAlreadyExists
	Create(ctx context.Context, principal models.Principal) (models.Principal, error)

	// Get principal by email
	// If principal not found must return apperrors.ErrPrincipalNotFound
	GetByEmail(ctx context.Context, email string) (models.Principal, error)

	// Set principal active flag
	SetActive(ctx context.Context, email string, isActive bool) error

	// Update last activity time
	// Must not move last activity back in time
	TouchActivity(ctx context.Context, email string, at time.Time) error
}

// RenewalToken repository interface
// It is the only place where renewal tokens are mutated
type RenewalTokenRepo interface {
	// Save new token. Token value hash must be unique
	// If the hash is taken must return apperrors.ErrRenewalTokenConflict
	Create(ctx context.Context, token models.RenewalToken) (models.RenewalToken, error)

	// Return token even if it is expired, revoked or exhausted
	// If token not found must return apperrors.ErrRenewalTokenNotFound
	GetByValueHash(ctx context.Context, valueHash string) (models.RenewalToken, error)
	GetByID(ctx context.Context, id uuid.UUID) (models.RenewalToken, error)

	// Return active, not expired tokens of the subject, newest first
	ListActiveForSubject(ctx context.Context, subject string, now time.Time) ([]models.RenewalToken, error)

	// Compare-and-increment 'used_count'
	// Succeeds only if token is still valid at 'now' and its used count equals 'expectedUsed'
	// If the token changed concurrently or is not valid anymore must return apperrors.ErrUsageConflict
	IncrementUsage(ctx context.Context, id uuid.UUID, expectedUsed int, now time.Time) (models.RenewalToken, error)

	// Deactivate tokens. Deactivating inactive or missing tokens is not an error
	Invalidate(ctx context.Context, id uuid.UUID) (count int64, err error)
	InvalidateFamily(ctx context.Context, familyID uuid.UUID) (count int64, err error)
	InvalidateAllForSubject(ctx context.Context, subject string) (count int64, err error)

	// Delete tokens expired before the moment
	DeleteExpired(ctx context.Context, before time.Time) (count int64, err error)
}

// Failed login attempts counter
type LoginAttemptRepo interface {
	// Register failed attempt and return count of failures inside the current window
	// The window starts on the first failure and resets after it passed
	RecordFailure(ctx context.Context, email string, now time.Time, window time.Duration) (count int, err error)

	// Forget failures of the email (e.g. after successful login)
	Reset(ctx context.Context, email string) error
}

// Security events journal
type SecurityEventRepo interface {
	Save(ctx context.Context, event models.SecurityEvent) error
}

type Storage interface {
	Principal() PrincipalRepo
	RenewalToken() RenewalTokenRepo
	LoginAttempt() LoginAttemptRepo
	SecurityEvent() SecurityEventRepo

	// Run fn in transaction
	// Storage passed to fn must be used for all the queries inside transaction
	InTx(ctx context.Context, fn func(Storage) error) error
}
