package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/sessionkeeper/internal/handlers/middleware"
	"github.com/nkiryanov/sessionkeeper/internal/logger"
	"github.com/nkiryanov/sessionkeeper/internal/models"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

// Metrics handler is optional
func NewRouter(
	authService authService,
	principalService principalService,
	metrics http.Handler,
	logger logger.Logger,
) http.Handler {
	withAuth := middleware.AuthMiddleware(authService)

	apiauth := http.NewServeMux()

	apiauth.Handle("POST /register", handleRegister(authService, principalService, logger))
	apiauth.Handle("POST /login", handleLogin(authService, logger))
	apiauth.Handle("POST /renew", handleRenew(authService, logger))
	apiauth.Handle("POST /logout", handleLogout(authService))
	apiauth.Handle("GET /introspect", withAuth(handleIntrospect()))

	root := http.NewServeMux()
	root.Handle("/api/auth/", http.StripPrefix("/api/auth", apiauth))
	root.Handle("GET /api/sessions", withAuth(handleListSessions(authService, logger)))
	root.Handle("DELETE /api/sessions/{id}", withAuth(handleCloseSession(authService, logger)))
	if metrics != nil {
		root.Handle("GET /metrics", metrics)
	}

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type authService interface {
	// Login principal with email and password
	// Has to return apperrors.ErrInvalidCredentials if credentials don't match
	Login(ctx context.Context, email string, password string, device models.DeviceInfo) (models.LoginResult, error)

	// Issue new access token for renewal token
	// Invalid, unknown and malformed tokens have to be reported with apperrors taxonomy
	Renew(ctx context.Context, value string, device models.DeviceInfo) (models.RenewResult, error)

	// Validate access token and load principal
	Introspect(ctx context.Context, token string) (models.IntrospectResult, error)

	// Invalidate sessions, never fails
	Logout(ctx context.Context, accessToken string, renewalValue string, invalidateAll bool, device models.DeviceInfo) models.LogoutResult

	ListSessions(ctx context.Context, subject string) ([]models.SessionView, error)
	CloseSession(ctx context.Context, subject string, sessionID uuid.UUID) error
}

type principalService interface {
	// Has to return apperrors.ErrPrincipalAlreadyExists if email is taken
	Create(ctx context.Context, email string, password string, displayName string) (models.Principal, error)
}
