package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nkiryanov/sessionkeeper/internal/apperrors"
	"github.com/nkiryanov/sessionkeeper/internal/models"
)

const bearerScheme = "Bearer"

// Extract token from 'Authorization' header value
// Missing header or other scheme is ErrNoToken, blank bearer value is ErrEmptyToken
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", apperrors.ErrNoToken
	}

	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !strings.EqualFold(scheme, bearerScheme) {
		return "", apperrors.ErrNoToken
	}
	token = strings.TrimSpace(token)
	if !found || token == "" {
		return "", apperrors.ErrEmptyToken
	}

	return token, nil
}

// Introspect validates access token and loads the principal fresh
// Role and active flag always come from the store, never from the claims
func (s *Service) Introspect(ctx context.Context, token string) (models.IntrospectResult, error) {
	res, err := s.introspect(ctx, token)
	if err != nil {
		return models.IntrospectResult{}, s.internalError("introspect", err)
	}
	return res, nil
}

func (s *Service) introspect(ctx context.Context, token string) (models.IntrospectResult, error) {
	if strings.TrimSpace(token) == "" {
		return models.IntrospectResult{}, apperrors.ErrEmptyToken
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		s.logger.Debug("access token rejected", "error", err)
		return models.IntrospectResult{}, err
	}

	if claims.Subject == "" || claims.Kind != models.TokenKindAccess {
		return models.IntrospectResult{}, apperrors.ErrInvalidTokenPayload
	}

	principal, err := s.storage.Principal().GetByEmail(ctx, claims.Subject)
	switch {
	case errors.Is(err, apperrors.ErrPrincipalNotFound):
		return models.IntrospectResult{}, apperrors.ErrPrincipalNotFound
	case err != nil:
		return models.IntrospectResult{}, fmt.Errorf("can't load principal. Err: %w", err)
	case !principal.IsActive:
		return models.IntrospectResult{}, apperrors.ErrPrincipalInactive
	}

	now := s.now()
	s.activity.Schedule(principal.Email, now)

	return models.IntrospectResult{
		Principal:   principal,
		Claims:      claims,
		ValidatedAt: now,
	}, nil
}
