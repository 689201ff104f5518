package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/threadline/threadline-backend/api/responses"
	"github.com/threadline/threadline-backend/api/validators"
	"github.com/threadline/threadline-backend/internal/authsvc"
	"github.com/threadline/threadline-backend/pkg/logger"
	"github.com/threadline/threadline-backend/pkg/pagination"
)

type blockUserRequest struct {
	Reason string `json:"reason"`
}

// AdminListUsers returns a cursor page of identity records.
func AdminListUsers(svc *authsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListUsers(r.Context(), pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// AdminSetBlocked blocks or unblocks a user.
func AdminSetBlocked(svc *authsvc.Service, logg *logger.Logger, blocked bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := validators.ParseURLInt64(chi.URLParam(r, "userId"), "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var reason string
		if blocked {
			var body blockUserRequest
			if err := validators.DecodeJSONBody(r, &body); err == nil {
				reason = body.Reason
			}
		}

		user, err := svc.SetBlocked(r.Context(), userID, blocked, reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}

// AdminSetRole grants or revokes the admin role.
func AdminSetRole(svc *authsvc.Service, logg *logger.Logger, admin bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := validators.ParseURLInt64(chi.URLParam(r, "userId"), "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.SetAdmin(r.Context(), userID, admin)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}
