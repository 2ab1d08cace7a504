package middleware

import (
	"context"
	"net/http"

	"github.com/nkiryanov/sessionkeeper/internal/handlers/render"
	"github.com/nkiryanov/sessionkeeper/internal/handlers/userctx"
	"github.com/nkiryanov/sessionkeeper/internal/models"
	"github.com/nkiryanov/sessionkeeper/internal/service/auth"
)

type introspector interface {
	Introspect(ctx context.Context, token string) (models.IntrospectResult, error)
}

// Require valid bearer access token and put the principal to request context
func AuthMiddleware(s introspector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.BearerToken(r.Header.Get("Authorization"))
			if err != nil {
				render.AppError(w, err)
				return
			}

			res, err := s.Introspect(r.Context(), token)
			if err != nil {
				render.AppError(w, err)
				return
			}

			ctx := userctx.New(r.Context(), res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
