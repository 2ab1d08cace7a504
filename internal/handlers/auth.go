package handlers

import (
	"net/http"
	"time"

	"github.com/nkiryanov/sessionkeeper/internal/handlers/render"
	"github.com/nkiryanov/sessionkeeper/internal/handlers/userctx"
	"github.com/nkiryanov/sessionkeeper/internal/logger"
	"github.com/nkiryanov/sessionkeeper/internal/models"
	"github.com/nkiryanov/sessionkeeper/internal/service/auth"
	"github.com/nkiryanov/sessionkeeper/internal/service/principal"
)

const tokenTypeBearer = "Bearer"

type loginResponse struct {
	TokenType             string    `json:"token_type"`
	AccessToken           string    `json:"access_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	ExpiresIn             int64     `json:"expires_in"`
	RenewalToken          string    `json:"renewal_token"`
	RenewalTokenExpiresAt time.Time `json:"renewal_token_expires_at"`
	RenewalExpiresIn      int64     `json:"renewal_expires_in"`
}

func newLoginResponse(res models.LoginResult) loginResponse {
	return loginResponse{
		TokenType:             tokenTypeBearer,
		AccessToken:           res.AccessToken.Value,
		AccessTokenExpiresAt:  res.AccessToken.ExpiresAt,
		ExpiresIn:             int64(res.AccessTokenTTL.Seconds()),
		RenewalToken:          res.RenewalToken.Value,
		RenewalTokenExpiresAt: res.RenewalToken.ExpiresAt,
		RenewalExpiresIn:      int64(res.RenewalTTL.Seconds()),
	}
}

// Render service error, unexpected ones are logged
func renderError(w http.ResponseWriter, l logger.Logger, r *http.Request, err error) {
	if render.StatusOf(err) >= http.StatusInternalServerError {
		l.Error("request failed", "uri", r.RequestURI, "error", err)
	}
	render.AppError(w, err)
}

func handleRegister(as authService, ps principalService, l logger.Logger) http.Handler {
	type request struct {
		Email       string `json:"email" validate:"required,email,max=254"`
		Password    string `json:"password" validate:"required,nonblank,min=8,max=256"`
		DisplayName string `json:"display_name" validate:"omitempty,max=100"`
		deviceRequest
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		p, err := ps.Create(r.Context(), data.Email, data.Password, data.DisplayName)
		if err != nil {
			renderError(w, l, r, err)
			return
		}

		res, err := as.Login(r.Context(), p.Email, data.Password, deviceFromRequest(r, data.deviceRequest))
		if err != nil {
			renderError(w, l, r, err)
			return
		}

		render.JSONWithStatus(w, newLoginResponse(res), http.StatusCreated)
	})
}

func handleLogin(as authService, l logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required,nonblank,max=254"`
		Password string `json:"password" validate:"required,max=256"`
		deviceRequest
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		email := principal.NormalizeEmail(data.Email)
		res, err := as.Login(r.Context(), email, data.Password, deviceFromRequest(r, data.deviceRequest))
		if err != nil {
			renderError(w, l, r, err)
			return
		}

		render.JSON(w, newLoginResponse(res))
	})
}

func handleRenew(as authService, l logger.Logger) http.Handler {
	type request struct {
		RenewalToken string `json:"renewal_token" validate:"required,max=512"`
		deviceRequest
	}
	type response struct {
		TokenType             string     `json:"token_type"`
		AccessToken           string     `json:"access_token"`
		AccessTokenExpiresAt  time.Time  `json:"access_token_expires_at"`
		ExpiresIn             int64      `json:"expires_in"`
		Rotated               bool       `json:"rotated"`
		RenewalToken          string     `json:"renewal_token,omitempty"`
		RenewalTokenExpiresAt *time.Time `json:"renewal_token_expires_at,omitempty"`
		RenewalExpiresIn      int64      `json:"renewal_expires_in,omitempty"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		res, err := as.Renew(r.Context(), data.RenewalToken, deviceFromRequest(r, data.deviceRequest))
		if err != nil {
			renderError(w, l, r, err)
			return
		}

		resp := response{
			TokenType:            tokenTypeBearer,
			AccessToken:          res.AccessToken.Value,
			AccessTokenExpiresAt: res.AccessToken.ExpiresAt,
			ExpiresIn:            int64(res.AccessTokenTTL.Seconds()),
			Rotated:              res.Rotated,
		}
		if res.RenewalToken != nil {
			resp.RenewalToken = res.RenewalToken.Value
			resp.RenewalTokenExpiresAt = &res.RenewalToken.ExpiresAt
			resp.RenewalExpiresIn = int64(res.RenewalTTL.Seconds())
		}

		render.JSON(w, resp)
	})
}

// Logout always succeeds, both tokens are optional
func handleLogout(as authService) http.Handler {
	type request struct {
		RenewalToken string `json:"renewal_token"`
		All          bool   `json:"all"`
		deviceRequest
	}
	type response struct {
		Invalidated int64 `json:"invalidated"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Unreadable body is the same as nothing presented
		data := render.DecodeLenient[request](r)

		// Broken or missing header only means there is no access token to decode
		access, _ := auth.BearerToken(r.Header.Get("Authorization"))

		res := as.Logout(r.Context(), access, data.RenewalToken, data.All, deviceFromRequest(r, data.deviceRequest))
		render.JSON(w, response{Invalidated: res.InvalidatedCount})
	})
}

// Must be wrapped with auth middleware
func handleIntrospect() http.Handler {
	type response struct {
		Subject     string     `json:"subject"`
		Role        string     `json:"role"`
		DisplayName string     `json:"display_name"`
		IsActive    bool       `json:"is_active"`
		TokenID     string     `json:"token_id"`
		ExpiresAt   time.Time  `json:"expires_at"`
		ValidatedAt time.Time  `json:"validated_at"`
		LastSeenAt  *time.Time `json:"last_seen_at,omitempty"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, _ := userctx.FromContext(r.Context())

		render.JSON(w, response{
			Subject:     res.Principal.Email,
			Role:        res.Principal.Role,
			DisplayName: res.Principal.DisplayName,
			IsActive:    res.Principal.IsActive,
			TokenID:     res.Claims.TokenID,
			ExpiresAt:   res.Claims.ExpiresAt,
			ValidatedAt: res.ValidatedAt,
			LastSeenAt:  res.Principal.LastActivityAt,
		})
	})
}
