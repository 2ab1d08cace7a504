package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/nkiryanov/sessionkeeper/internal/apperrors"
	"github.com/nkiryanov/sessionkeeper/internal/models"
	"github.com/nkiryanov/sessionkeeper/internal/repository"
	"github.com/nkiryanov/sessionkeeper/internal/service/audit"
)

const reasonConcurrentUse = "concurrent_use"

// Renew issues a new access token for a valid renewal token
// The renewal token is rotated once its usage reaches the rotation threshold
func (s *Service) Renew(ctx context.Context, value string, device models.DeviceInfo) (models.RenewResult, error) {
	res, err := s.renew(ctx, value, device)
	if err != nil {
		return models.RenewResult{}, s.internalError("renew", err)
	}
	return res, nil
}

func (s *Service) renew(ctx context.Context, value string, device models.DeviceInfo) (models.RenewResult, error) {
	now := s.now()

	token, err := s.storage.RenewalToken().GetByValueHash(ctx, s.renewal.Hash(value))
	switch {
	case errors.Is(err, apperrors.ErrRenewalTokenNotFound):
		s.record(ctx, audit.RefreshFailed, "", device, audit.ReasonTokenNotFound, nil)
		return models.RenewResult{}, apperrors.ErrRenewalTokenNotFound
	case err != nil:
		return models.RenewResult{}, fmt.Errorf("can't load renewal token. Err: %w", err)
	}

	if err := s.ensureUsable(ctx, token, device, now, true); err != nil {
		return models.RenewResult{}, err
	}

	if err := s.renewal.CheckSignature(value); err != nil {
		s.logger.Warn("renewal token signature mismatch", "token_id", token.ID, "error", err)
		s.record(ctx, audit.RefreshFailed, token.Subject, device, audit.ReasonTokenMalformed, nil)
		return models.RenewResult{}, apperrors.ErrRenewalTokenMalformed
	}

	principal, err := s.storage.Principal().GetByEmail(ctx, token.Subject)
	switch {
	case errors.Is(err, apperrors.ErrPrincipalNotFound):
		s.record(ctx, audit.RefreshFailed, token.Subject, device, audit.ReasonPrincipalNotFound, nil)
		return models.RenewResult{}, apperrors.ErrPrincipalInvalid
	case err != nil:
		return models.RenewResult{}, fmt.Errorf("can't load principal. Err: %w", err)
	case !principal.IsActive:
		s.record(ctx, audit.RefreshFailed, token.Subject, device, audit.ReasonPrincipalInactive, nil)
		return models.RenewResult{}, apperrors.ErrPrincipalInvalid
	}

	access, err := s.tokens.Issue(principal)
	if err != nil {
		return models.RenewResult{}, err
	}

	var res models.RenewResult
	var used models.RenewalToken

	backoff := retry.WithMaxRetries(s.usageRetries, retry.NewConstant(s.usageRetryDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		res, used, err = s.applyUsage(ctx, token, device, now)
		if !errors.Is(err, apperrors.ErrUsageConflict) {
			return err
		}

		// Lost the race: continue with the fresh row while it is still usable
		fresh, err := s.storage.RenewalToken().GetByID(ctx, token.ID)
		if err != nil {
			return fmt.Errorf("can't reload renewal token. Err: %w", err)
		}
		if err := s.ensureUsable(ctx, fresh, device, now, false); err != nil {
			return err
		}
		token = fresh
		return retry.RetryableError(apperrors.ErrUsageConflict)
	})
	switch {
	case errors.Is(err, apperrors.ErrUsageConflict):
		s.record(ctx, audit.RefreshFailed, token.Subject, device, reasonConcurrentUse, nil)
		return models.RenewResult{}, apperrors.ErrRenewalTokenInvalid
	case err != nil:
		return models.RenewResult{}, err
	}

	res.AccessToken = access
	res.AccessTokenTTL = s.tokens.AccessTTL()

	s.record(ctx, audit.RefreshSuccess, used.Subject, device, "", map[string]string{
		"family_id":  used.FamilyID.String(),
		"used_count": strconv.Itoa(used.UsedCount),
		"max_uses":   strconv.Itoa(used.MaxUses),
	})
	if res.Rotated {
		s.record(ctx, audit.RefreshTokenRotated, used.Subject, device, "", map[string]string{
			"family_id": used.FamilyID.String(),
		})
	}

	return res, nil
}

// Increment usage and rotate in one transaction
// Returns apperrors.ErrUsageConflict if token was changed since it was read
func (s *Service) applyUsage(ctx context.Context, token models.RenewalToken, device models.DeviceInfo, now time.Time) (models.RenewResult, models.RenewalToken, error) {
	var res models.RenewResult
	var used models.RenewalToken

	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		var err error
		used, err = tx.RenewalToken().IncrementUsage(ctx, token.ID, token.UsedCount, now)
		if err != nil {
			return err
		}

		if !s.rotation.ShouldRotate(used.UsedCount, used.MaxUses) {
			return nil
		}

		if _, err := tx.RenewalToken().InvalidateFamily(ctx, used.FamilyID); err != nil {
			return err
		}

		replacement, err := s.createRenewalToken(ctx, tx, used.Subject, mergeDevice(device, used.Device), now)
		if err != nil {
			return err
		}

		res.RenewalToken = &models.IssuedToken{Value: replacement.Value, ExpiresAt: replacement.ExpiresAt}
		res.RenewalTTL = s.renewalTTL
		res.Rotated = true
		return nil
	})

	return res, used, err
}

// Fail with ErrRenewalTokenInvalid if the token can't be used anymore
// Use of a deactivated token is a replay and is reported as suspicious when alarm is set
func (s *Service) ensureUsable(ctx context.Context, token models.RenewalToken, device models.DeviceInfo, now time.Time, alarm bool) error {
	reason := token.InvalidReason(now)
	if reason == "" {
		return nil
	}

	s.logger.Info("renewal token is not valid", "token_id", token.ID, "reason", reason)
	s.record(ctx, audit.RefreshFailed, token.Subject, device, reason, nil)

	if alarm && reason == apperrors.ReasonRevoked {
		s.record(ctx, audit.SuspiciousActivity, token.Subject, device, audit.ReasonRenewalTokenReplay, map[string]string{
			"family_id": token.FamilyID.String(),
			"token_id":  token.ID.String(),
		})
	}

	return apperrors.ErrRenewalTokenInvalid
}

// Presented device info wins, missing fields are taken from the stored token
func mergeDevice(presented models.DeviceInfo, stored models.DeviceInfo) models.DeviceInfo {
	pick := func(a, b string) string {
		if a != "" {
			return a
		}
		return b
	}

	return models.DeviceInfo{
		DeviceID:   pick(presented.DeviceID, stored.DeviceID),
		IPAddress:  pick(presented.IPAddress, stored.IPAddress),
		UserAgent:  pick(presented.UserAgent, stored.UserAgent),
		DeviceType: pick(presented.DeviceType, stored.DeviceType),
	}
}
