package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/threadline/threadline-backend/api/middleware"
	"github.com/threadline/threadline-backend/api/responses"
	"github.com/threadline/threadline-backend/api/validators"
	"github.com/threadline/threadline-backend/internal/usersvc"
	"github.com/threadline/threadline-backend/pkg/logger"
)

type addressRequest struct {
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required"`
	IsDefault  bool   `json:"is_default"`
}

func (b addressRequest) toInput() usersvc.AddressInput {
	return usersvc.AddressInput{
		Line1:      b.Line1,
		Line2:      b.Line2,
		City:       b.City,
		State:      b.State,
		PostalCode: b.PostalCode,
		Country:    b.Country,
		IsDefault:  b.IsDefault,
	}
}

// AddressCreate stores a new address for the caller.
func AddressCreate(svc *usersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body addressRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		address, err := svc.CreateAddress(r.Context(), middleware.UserIDFromContext(r.Context()), body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, address)
	}
}

// AddressList returns every address the caller owns, default first.
func AddressList(svc *usersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addresses, err := svc.ListAddresses(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, addresses)
	}
}

// AddressUpdate replaces one of the caller's addresses.
func AddressUpdate(svc *usersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addressID, err := validators.ParseURLInt64(chi.URLParam(r, "addressId"), "addressId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body addressRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		address, err := svc.UpdateAddress(r.Context(), middleware.UserIDFromContext(r.Context()), addressID, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, address)
	}
}

// AddressDelete removes one of the caller's addresses.
func AddressDelete(svc *usersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addressID, err := validators.ParseURLInt64(chi.URLParam(r, "addressId"), "addressId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteAddress(r.Context(), middleware.UserIDFromContext(r.Context()), addressID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
