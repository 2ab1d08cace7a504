package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/sessionkeeper/internal/apperrors"
	"github.com/nkiryanov/sessionkeeper/internal/models"
	"github.com/nkiryanov/sessionkeeper/internal/service/audit"
)

// Active sessions of the subject, newest first
func (s *Service) ListSessions(ctx context.Context, subject string) ([]models.SessionView, error) {
	tokens, err := s.storage.RenewalToken().ListActiveForSubject(ctx, subject, s.now())
	if err != nil {
		return nil, s.internalError("list sessions", err)
	}

	views := make([]models.SessionView, 0, len(tokens))
	for _, t := range tokens {
		views = append(views, models.NewSessionView(t))
	}
	return views, nil
}

// Close one session of the subject
// Closing already closed own session is not an error
func (s *Service) CloseSession(ctx context.Context, subject string, sessionID uuid.UUID) error {
	err := s.closeSession(ctx, subject, sessionID)
	if err != nil {
		return s.internalError("close session", err)
	}
	return nil
}

func (s *Service) closeSession(ctx context.Context, subject string, sessionID uuid.UUID) error {
	token, err := s.storage.RenewalToken().GetByID(ctx, sessionID)
	switch {
	case errors.Is(err, apperrors.ErrRenewalTokenNotFound):
		return apperrors.ErrSessionNotFound
	case err != nil:
		return fmt.Errorf("can't load renewal token. Err: %w", err)
	}

	if token.Subject != subject {
		s.record(ctx, audit.SuspiciousActivity, subject, models.DeviceInfo{}, audit.ReasonForeignSession, map[string]string{
			"session_id": sessionID.String(),
		})
		return apperrors.ErrForbidden
	}

	count, err := s.storage.RenewalToken().Invalidate(ctx, token.ID)
	if err != nil {
		return fmt.Errorf("can't invalidate renewal token. Err: %w", err)
	}

	if count > 0 {
		s.record(ctx, audit.SessionRevoked, subject, token.Device, "", map[string]string{
			"session_id": sessionID.String(),
		})
	}
	return nil
}
