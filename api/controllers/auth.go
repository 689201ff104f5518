package controllers

import (
	"net/http"
	"time"

	"github.com/threadline/threadline-backend/api/middleware"
	"github.com/threadline/threadline-backend/api/responses"
	"github.com/threadline/threadline-backend/api/validators"
	"github.com/threadline/threadline-backend/internal/authsvc"
	"github.com/threadline/threadline-backend/pkg/config"
	pkgerrors "github.com/threadline/threadline-backend/pkg/errors"
	"github.com/threadline/threadline-backend/pkg/logger"
)

const refreshTokenCookie = "refresh_token"

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required"`
	Phone    string `json:"phone"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// AuthRegister wires the registration endpoint into the HTTP layer.
func AuthRegister(svc *authsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body registerRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.Register(r.Context(), authsvc.RegisterInput{
			Email:    body.Email,
			Password: body.Password,
			Name:     body.Name,
			Phone:    body.Phone,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, user)
	}
}

// AuthLogin wires the login endpoint into the HTTP layer. The refresh
// token travels in an HttpOnly cookie, the access token in the body.
func AuthLogin(svc *authsvc.Service, jwtCfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body loginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), body.Email, body.Password)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		setRefreshCookie(w, result.RefreshToken, jwtCfg.RefreshTokenTTL())
		responses.WriteSuccess(w, map[string]any{
			"user":         result.User,
			"access_token": result.AccessToken,
		})
	}
}

// AuthRefresh rotates the refresh token and mints a new access token.
// The token is read from the cookie, with a JSON body as fallback for
// clients that cannot carry cookies.
func AuthRefresh(svc *authsvc.Service, jwtCfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := refreshTokenFromRequest(r)
		if raw == "" {
			err := pkgerrors.New(pkgerrors.CodeUnauthorized, "refresh token missing")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Refresh(r.Context(), raw)
		if err != nil {
			clearRefreshCookie(w)
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		setRefreshCookie(w, result.RefreshToken, jwtCfg.RefreshTokenTTL())
		responses.WriteSuccess(w, map[string]any{
			"user":         result.User,
			"access_token": result.AccessToken,
		})
	}
}

// AuthLogout revokes the presented refresh token and clears the cookie.
func AuthLogout(svc *authsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if raw := refreshTokenFromRequest(r); raw != "" {
			if err := svc.Logout(r.Context(), raw); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		clearRefreshCookie(w)
		responses.WriteSuccess(w, map[string]string{"status": "logged out"})
	}
}

// AuthMe returns the authenticated user's own record.
func AuthMe(svc *authsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := svc.Me(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}

func refreshTokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(refreshTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	var body refreshRequest
	if err := validators.DecodeJSONBody(r, &body); err == nil {
		return body.RefreshToken
	}
	return ""
}

// Cross-site frontends need SameSite=None, which in turn requires
// Secure.
func setRefreshCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

func clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}
