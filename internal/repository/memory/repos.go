package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/sessionkeeper/internal/apperrors"
	"github.com/nkiryanov/sessionkeeper/internal/models"
)

type PrincipalRepo struct {
	st   *state
	inTx bool
}

func (r *PrincipalRepo) Create(_ context.Context, p models.Principal) (models.Principal, error) {
	defer r.st.lock(r.inTx)()

	if _, ok := r.st.data.principals[p.Email]; ok {
		return models.Principal{}, fmt.Errorf("repo error: %w", apperrors.ErrPrincipalAlreadyExists)
	}
	r.st.data.principals[p.Email] = p
	return p, nil
}

func (r *PrincipalRepo) GetByEmail(_ context.Context, email string) (models.Principal, error) {
	defer r.st.lock(r.inTx)()

	p, ok := r.st.data.principals[email]
	if !ok {
		return models.Principal{}, fmt.Errorf("repo error: %w", apperrors.ErrPrincipalNotFound)
	}
	return p, nil
}

func (r *PrincipalRepo) SetActive(_ context.Context, email string, isActive bool) error {
	defer r.st.lock(r.inTx)()

	p, ok := r.st.data.principals[email]
	if !ok {
		return fmt.Errorf("repo error: %w", apperrors.ErrPrincipalNotFound)
	}
	p.IsActive = isActive
	r.st.data.principals[email] = p
	return nil
}

func (r *PrincipalRepo) TouchActivity(_ context.Context, email string, at time.Time) error {
	defer r.st.lock(r.inTx)()

	p, ok := r.st.data.principals[email]
	if !ok {
		return fmt.Errorf("repo error: %w", apperrors.ErrPrincipalNotFound)
	}
	if p.LastActivityAt == nil || p.LastActivityAt.Before(at) {
		p.LastActivityAt = &at
	}
	r.st.data.principals[email] = p
	return nil
}

type RenewalTokenRepo struct {
	st   *state
	inTx bool
}

func (r *RenewalTokenRepo) Create(_ context.Context, t models.RenewalToken) (models.RenewalToken, error) {
	defer r.st.lock(r.inTx)()

	if _, ok := r.st.data.byHash[t.ValueHash]; ok {
		return models.RenewalToken{}, fmt.Errorf("repo error: %w", apperrors.ErrRenewalTokenConflict)
	}

	stored := t
	stored.Value = ""
	r.st.data.tokens[t.ID] = stored
	r.st.data.byHash[t.ValueHash] = t.ID

	return t, nil
}

func (r *RenewalTokenRepo) GetByValueHash(_ context.Context, valueHash string) (models.RenewalToken, error) {
	defer r.st.lock(r.inTx)()

	id, ok := r.st.data.byHash[valueHash]
	if !ok {
		return models.RenewalToken{}, fmt.Errorf("repo error: %w", apperrors.ErrRenewalTokenNotFound)
	}
	return r.st.data.tokens[id], nil
}

func (r *RenewalTokenRepo) GetByID(_ context.Context, id uuid.UUID) (models.RenewalToken, error) {
	defer r.st.lock(r.inTx)()

	t, ok := r.st.data.tokens[id]
	if !ok {
		return models.RenewalToken{}, fmt.Errorf("repo error: %w", apperrors.ErrRenewalTokenNotFound)
	}
	return t, nil
}

func (r *RenewalTokenRepo) ListActiveForSubject(_ context.Context, subject string, now time.Time) ([]models.RenewalToken, error) {
	defer r.st.lock(r.inTx)()

	var tokens []models.RenewalToken
	for _, t := range r.st.data.tokens {
		if t.Subject == subject && t.IsActive && now.Before(t.ExpiresAt) {
			tokens = append(tokens, t)
		}
	}

	slices.SortFunc(tokens, func(a, b models.RenewalToken) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})

	return tokens, nil
}

func (r *RenewalTokenRepo) IncrementUsage(_ context.Context, id uuid.UUID, expectedUsed int, now time.Time) (models.RenewalToken, error) {
	defer r.st.lock(r.inTx)()

	t, ok := r.st.data.tokens[id]
	if !ok || t.UsedCount != expectedUsed || !t.IsValid(now) {
		return models.RenewalToken{}, fmt.Errorf("repo error: %w", apperrors.ErrUsageConflict)
	}

	t.UsedCount++
	t.LastUsedAt = &now
	r.st.data.tokens[id] = t

	return t, nil
}

func (r *RenewalTokenRepo) Invalidate(_ context.Context, id uuid.UUID) (int64, error) {
	return r.invalidate(func(t models.RenewalToken) bool { return t.ID == id }), nil
}

func (r *RenewalTokenRepo) InvalidateFamily(_ context.Context, familyID uuid.UUID) (int64, error) {
	return r.invalidate(func(t models.RenewalToken) bool { return t.FamilyID == familyID }), nil
}

func (r *RenewalTokenRepo) InvalidateAllForSubject(_ context.Context, subject string) (int64, error) {
	return r.invalidate(func(t models.RenewalToken) bool { return t.Subject == subject }), nil
}

func (r *RenewalTokenRepo) invalidate(match func(models.RenewalToken) bool) int64 {
	defer r.st.lock(r.inTx)()

	var count int64
	for id, t := range r.st.data.tokens {
		if t.IsActive && match(t) {
			t.IsActive = false
			r.st.data.tokens[id] = t
			count++
		}
	}
	return count
}

func (r *RenewalTokenRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	defer r.st.lock(r.inTx)()

	var count int64
	for id, t := range r.st.data.tokens {
		if t.ExpiresAt.Before(before) {
			delete(r.st.data.tokens, id)
			delete(r.st.data.byHash, t.ValueHash)
			count++
		}
	}
	return count, nil
}

type LoginAttemptRepo struct {
	st   *state
	inTx bool
}

func (r *LoginAttemptRepo) RecordFailure(_ context.Context, email string, now time.Time, window time.Duration) (int, error) {
	defer r.st.lock(r.inTx)()

	f, ok := r.st.data.failures[email]
	if !ok || now.Sub(time.Unix(0, f.windowStart)) >= window {
		f = loginFailures{windowStart: now.UnixNano()}
	}
	f.count++
	r.st.data.failures[email] = f

	return f.count, nil
}

func (r *LoginAttemptRepo) Reset(_ context.Context, email string) error {
	defer r.st.lock(r.inTx)()

	delete(r.st.data.failures, email)
	return nil
}

type SecurityEventRepo struct {
	st   *state
	inTx bool
}

func (r *SecurityEventRepo) Save(_ context.Context, event models.SecurityEvent) error {
	defer r.st.lock(r.inTx)()

	r.st.data.events = append(r.st.data.events, event)
	return nil
}
