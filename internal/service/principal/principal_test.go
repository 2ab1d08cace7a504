package principal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/sessionkeeper/internal/apperrors"
	"github.com/nkiryanov/sessionkeeper/internal/models"
	"github.com/nkiryanov/sessionkeeper/internal/repository/memory"
	"github.com/nkiryanov/sessionkeeper/internal/service/auth"
)

// Plain text hasher, bcrypt is too slow for table tests
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }

func (plainHasher) Compare(hashed string, password string) error {
	if hashed != "plain:"+password {
		return apperrors.ErrInvalidCredentials
	}
	return nil
}

func TestPrincipalService(t *testing.T) {
	newService := func() (*PrincipalService, *memory.Storage) {
		storage := memory.NewStorage()
		return NewService(plainHasher{}, storage.Principal()), storage
	}

	t.Run("create ok", func(t *testing.T) {
		s, storage := newService()

		p, err := s.Create(t.Context(), "  User@X.com ", "password123", " Test User ")

		require.NoError(t, err)
		require.NotEmpty(t, p.ID)
		require.Equal(t, "user@x.com", p.Email, "email should be normalized")
		require.Equal(t, "Test User", p.DisplayName)
		require.Equal(t, models.RoleUser, p.Role)
		require.True(t, p.IsActive)
		require.Nil(t, p.LastActivityAt)
		require.NotZero(t, p.CreatedAt)
		require.Equal(t, "plain:password123", p.PasswordHash, "password should be hashed")

		got, err := storage.Principal().GetByEmail(t.Context(), "user@x.com")
		require.NoError(t, err)
		require.Equal(t, p.ID, got.ID)
	})

	t.Run("empty password fail", func(t *testing.T) {
		s, _ := newService()

		_, err := s.Create(t.Context(), "user@x.com", "", "")

		require.ErrorIs(t, err, apperrors.ErrEmptyPassword)
	})

	t.Run("duplicate fail", func(t *testing.T) {
		s, _ := newService()
		_, err := s.Create(t.Context(), "user@x.com", "password123", "")
		require.NoError(t, err)

		_, err = s.Create(t.Context(), "User@x.com", "other", "")

		require.ErrorIs(t, err, apperrors.ErrPrincipalAlreadyExists)
	})

	t.Run("created principal passes password verification", func(t *testing.T) {
		storage := memory.NewStorage()
		s := NewService(nil, storage.Principal())
		_, err := s.Create(t.Context(), "user@x.com", "password123", "")
		require.NoError(t, err)

		verifier := auth.NewPasswordVerifier(storage.Principal(), nil)

		ok, err := verifier.Verify(t.Context(), "user@x.com", "password123")
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = verifier.Verify(t.Context(), "user@x.com", "wrong")
		require.NoError(t, err)
		require.False(t, ok)
	})
}
