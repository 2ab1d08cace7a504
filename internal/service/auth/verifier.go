package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nkiryanov/sessionkeeper/internal/apperrors"
	"github.com/nkiryanov/sessionkeeper/internal/repository"
)

// Checks principal primary credentials
type CredentialVerifier interface {
	// Return true if the secret matches stored principal credentials
	// Mismatch and unknown principal are both reported as (false, nil)
	Verify(ctx context.Context, email string, secret string) (bool, error)
}

// Verifies password against the hash stored with the principal
type PasswordVerifier struct {
	principals repository.PrincipalRepo
	hasher     PasswordHasher

	dummyOnce sync.Once
	dummyHash string
}

func NewPasswordVerifier(principals repository.PrincipalRepo, hasher PasswordHasher) *PasswordVerifier {
	if hasher == nil {
		hasher = DefaultHasher
	}
	return &PasswordVerifier{principals: principals, hasher: hasher}
}

func (v *PasswordVerifier) Verify(ctx context.Context, email string, secret string) (bool, error) {
	principal, err := v.principals.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, apperrors.ErrPrincipalNotFound):
		// Spend the same time as for existing principal, so emails can't be enumerated by timing
		_ = v.hasher.Compare(v.dummy(), secret)
		return false, nil
	case err != nil:
		return false, fmt.Errorf("can't load principal. Err: %w", err)
	}

	return v.hasher.Compare(principal.PasswordHash, secret) == nil, nil
}

func (v *PasswordVerifier) dummy() string {
	v.dummyOnce.Do(func() {
		v.dummyHash, _ = v.hasher.Hash("dummy-password")
	})
	return v.dummyHash
}
