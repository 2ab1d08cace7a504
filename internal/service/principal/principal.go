package principal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/sessionkeeper/internal/apperrors"
	"github.com/nkiryanov/sessionkeeper/internal/models"
	"github.com/nkiryanov/sessionkeeper/internal/repository"
	"github.com/nkiryanov/sessionkeeper/internal/service/auth"
)

type PrincipalService struct {
	hasher     auth.PasswordHasher
	principals repository.PrincipalRepo
	now        func() time.Time
}

func NewService(hasher auth.PasswordHasher, principals repository.PrincipalRepo) *PrincipalService {
	if hasher == nil {
		hasher = auth.DefaultHasher
	}

	return &PrincipalService{
		hasher:     hasher,
		principals: principals,
		now:        time.Now,
	}
}

// Register active principal with 'user' role
// Email is stored lower cased, so logins are case insensitive
func (s *PrincipalService) Create(ctx context.Context, email string, password string, displayName string) (models.Principal, error) {
	if password == "" {
		return models.Principal{}, apperrors.ErrEmptyPassword
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.Principal{}, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	p, err := s.principals.Create(ctx, models.Principal{
		ID:           uuid.New(),
		CreatedAt:    s.now(),
		Email:        NormalizeEmail(email),
		DisplayName:  strings.TrimSpace(displayName),
		Role:         models.RoleUser,
		IsActive:     true,
		PasswordHash: hash,
	})
	if err != nil {
		return models.Principal{}, fmt.Errorf("can't create principal. Err: %w", err)
	}

	return p, nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
