package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/nkiryanov/sessionkeeper/internal/apperrors"
	"github.com/nkiryanov/sessionkeeper/internal/models"
	"github.com/nkiryanov/sessionkeeper/internal/service/audit"
)

// Login with primary credentials and open a new session for the device
func (s *Service) Login(ctx context.Context, email string, password string, device models.DeviceInfo) (models.LoginResult, error) {
	res, err := s.login(ctx, email, password, device)
	if err != nil {
		return models.LoginResult{}, s.internalError("login", err)
	}
	return res, nil
}

func (s *Service) login(ctx context.Context, email string, password string, device models.DeviceInfo) (models.LoginResult, error) {
	s.record(ctx, audit.LoginAttempt, email, device, "", nil)

	ok, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		return models.LoginResult{}, fmt.Errorf("credentials verification failed. Err: %w", err)
	}
	if !ok {
		s.record(ctx, audit.LoginFailed, email, device, audit.ReasonInvalidCredentials, nil)
		s.countFailure(ctx, email, device)
		return models.LoginResult{}, apperrors.ErrInvalidCredentials
	}

	principal, err := s.storage.Principal().GetByEmail(ctx, email)
	switch {
	case errors.Is(err, apperrors.ErrPrincipalNotFound):
		s.record(ctx, audit.LoginFailed, email, device, audit.ReasonPrincipalNotFound, nil)
		return models.LoginResult{}, apperrors.ErrPrincipalNotFound
	case err != nil:
		return models.LoginResult{}, fmt.Errorf("can't load principal. Err: %w", err)
	case !principal.IsActive:
		s.record(ctx, audit.LoginFailed, email, device, audit.ReasonPrincipalInactive, nil)
		return models.LoginResult{}, apperrors.ErrPrincipalInactive
	}

	access, err := s.tokens.Issue(principal)
	if err != nil {
		return models.LoginResult{}, err
	}

	// Access token is useless for the client without its renewal pair, so fail whole login
	renewal, err := s.createRenewalToken(ctx, s.storage, principal.Email, device, s.now())
	if err != nil {
		return models.LoginResult{}, err
	}

	if err := s.storage.LoginAttempt().Reset(ctx, principal.Email); err != nil {
		s.logger.Warn("can't reset failed logins", "email", principal.Email, "error", err)
	}

	s.record(ctx, audit.LoginSuccess, principal.Email, device, "", map[string]string{
		"family_id": renewal.FamilyID.String(),
	})

	return models.LoginResult{
		AccessToken:    access,
		AccessTokenTTL: s.tokens.AccessTTL(),
		RenewalToken:   models.IssuedToken{Value: renewal.Value, ExpiresAt: renewal.ExpiresAt},
		RenewalTTL:     s.renewalTTL,
		Device:         device,
	}, nil
}

// Count failed login and report suspicious activity once the limit reached
// Counter errors must not change login outcome
func (s *Service) countFailure(ctx context.Context, email string, device models.DeviceInfo) {
	count, err := s.storage.LoginAttempt().RecordFailure(ctx, email, s.now(), s.failedLoginWindow)
	if err != nil {
		s.logger.Warn("can't record failed login", "email", email, "error", err)
		return
	}

	if count >= s.failedLoginLimit {
		s.record(ctx, audit.SuspiciousActivity, email, device, audit.ReasonRepeatedInvalidCredentials, map[string]string{
			"attempts": strconv.Itoa(count),
		})
	}
}
