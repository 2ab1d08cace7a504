package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/sessionkeeper/internal/apperrors"
	"github.com/nkiryanov/sessionkeeper/internal/handlers/render"
	"github.com/nkiryanov/sessionkeeper/internal/handlers/userctx"
	"github.com/nkiryanov/sessionkeeper/internal/logger"
)

func handleListSessions(as authService, l logger.Logger) http.Handler {
	type session struct {
		ID         uuid.UUID  `json:"id"`
		DeviceID   string     `json:"device_id,omitempty"`
		DeviceType string     `json:"device_type,omitempty"`
		IPAddress  string     `json:"ip_address,omitempty"`
		UserAgent  string     `json:"user_agent,omitempty"`
		UsedCount  int        `json:"used_count"`
		MaxUses    int        `json:"max_uses"`
		CreatedAt  time.Time  `json:"created_at"`
		LastUsedAt *time.Time `json:"last_used_at,omitempty"`
		ExpiresAt  time.Time  `json:"expires_at"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, _ := userctx.FromContext(r.Context())

		views, err := as.ListSessions(r.Context(), res.Principal.Email)
		if err != nil {
			renderError(w, l, r, err)
			return
		}

		sessions := make([]session, 0, len(views))
		for _, v := range views {
			sessions = append(sessions, session{
				ID:         v.ID,
				DeviceID:   v.Device.DeviceID,
				DeviceType: v.Device.DeviceType,
				IPAddress:  v.Device.IPAddress,
				UserAgent:  v.Device.UserAgent,
				UsedCount:  v.UsedCount,
				MaxUses:    v.MaxUses,
				CreatedAt:  v.CreatedAt,
				LastUsedAt: v.LastUsedAt,
				ExpiresAt:  v.ExpiresAt,
			})
		}

		render.JSON(w, sessions)
	})
}

func handleCloseSession(as authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, _ := userctx.FromContext(r.Context())

		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			render.AppError(w, apperrors.ErrSessionNotFound)
			return
		}

		err = as.CloseSession(r.Context(), res.Principal.Email, id)
		if err != nil {
			renderError(w, l, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}
