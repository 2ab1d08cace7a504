package auth

import (
	"context"
	"errors"
	"strconv"

	"github.com/nkiryanov/sessionkeeper/internal/apperrors"
	"github.com/nkiryanov/sessionkeeper/internal/models"
	"github.com/nkiryanov/sessionkeeper/internal/service/audit"
)

// Logout is best effort cleanup and never fails
// Both tokens are optional and may be expired, malformed or unknown
func (s *Service) Logout(ctx context.Context, accessToken string, renewalValue string, invalidateAll bool, device models.DeviceInfo) models.LogoutResult {
	var res models.LogoutResult

	// Decoded subject is used for audit only
	// invalidateAll trusts it only when the signature is ours
	var subject, trustedSubject string
	if accessToken != "" {
		if claims, err := s.tokens.Decode(accessToken); err == nil {
			subject = claims.Subject
		}
		if _, err := s.tokens.Verify(accessToken); err == nil || errors.Is(err, apperrors.ErrTokenExpired) {
			trustedSubject = subject
		}
	}

	if renewalValue != "" {
		token, err := s.storage.RenewalToken().GetByValueHash(ctx, s.renewal.Hash(renewalValue))
		switch {
		case errors.Is(err, apperrors.ErrRenewalTokenNotFound):
			s.logger.Debug("logout with unknown renewal token")
		case err != nil:
			s.logger.Error("can't load renewal token on logout", "error", err)
		default:
			if subject != "" && subject != token.Subject {
				s.logger.Warn("logout renewal token owner differs from access token subject",
					"subject", subject, "owner", token.Subject)
			}
			count, err := s.storage.RenewalToken().Invalidate(ctx, token.ID)
			if err != nil {
				s.logger.Error("can't invalidate renewal token on logout", "token_id", token.ID, "error", err)
			}
			res.InvalidatedCount += count

			if subject == "" {
				subject = token.Subject
			}
			if trustedSubject == "" {
				trustedSubject = token.Subject
			}
		}
	}

	if invalidateAll {
		switch trustedSubject {
		case "":
			s.logger.Info("logout everywhere requested without trusted subject")
		default:
			count, err := s.storage.RenewalToken().InvalidateAllForSubject(ctx, trustedSubject)
			if err != nil {
				s.logger.Error("can't invalidate all renewal tokens on logout", "subject", trustedSubject, "error", err)
			}
			res.InvalidatedCount += count
		}
	}

	s.record(ctx, audit.Logout, subject, device, "", map[string]string{
		"invalidated":    strconv.FormatInt(res.InvalidatedCount, 10),
		"invalidate_all": strconv.FormatBool(invalidateAll),
	})

	return res
}
