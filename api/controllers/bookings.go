package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/chalets-backend/api/responses"
	"github.com/angelmondragon/chalets-backend/api/validators"
	"github.com/angelmondragon/chalets-backend/internal/availability"
	"github.com/angelmondragon/chalets-backend/internal/bookings"
	"github.com/angelmondragon/chalets-backend/pkg/db/models"
	"github.com/angelmondragon/chalets-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/chalets-backend/pkg/errors"
	"github.com/angelmondragon/chalets-backend/pkg/logger"
)

type createBookingRequest struct {
	ChaletID        string                `json:"chalet_id" validate:"required,uuid"`
	CustomerID      *string               `json:"customer_id" validate:"omitempty,uuid"`
	CheckIn         string                `json:"check_in" validate:"required"`
	CheckOut        string                `json:"check_out" validate:"required"`
	Guests          int                   `json:"guests" validate:"required,min=1"`
	Extras          []bookingExtraRequest `json:"extras" validate:"omitempty,dive"`
	SpecialRequests *string               `json:"special_requests"`
}

type bookingExtraRequest struct {
	Name     string          `json:"name" validate:"required"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity" validate:"required,min=1"`
}

type transitionBookingRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason"`
}

// BookingCreate reserves a chalet. opts carries the deployment's
// create-as-confirmed choice.
func BookingCreate(svc bookings.Service, opts bookings.CreateOptions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "booking service unavailable"))
			return
		}
		actor, err := principalFrom(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req createBookingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		stay, err := availability.ParseRange(strings.TrimSpace(req.CheckIn), strings.TrimSpace(req.CheckOut))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input := bookings.CreateInput{
			ChaletID:        uuid.MustParse(req.ChaletID),
			CheckIn:         stay.CheckIn,
			CheckOut:        stay.CheckOut,
			Guests:          req.Guests,
			SpecialRequests: req.SpecialRequests,
		}
		if req.CustomerID != nil {
			customerID := uuid.MustParse(*req.CustomerID)
			input.CustomerID = &customerID
		}
		for _, extra := range req.Extras {
			input.Extras = append(input.Extras, bookings.ExtraInput{
				Name:     extra.Name,
				Price:    extra.Price,
				Quantity: extra.Quantity,
			})
		}

		booking, err := svc.Create(ctx, actor, input, opts)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		writeBooking(w, r, logg, http.StatusCreated, booking)
	}
}

// BookingList returns the bookings visible to the caller.
func BookingList(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor, err := principalFrom(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		page, err := pageParams(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var filter bookings.ListFilter
		if filter.ChaletID, err = uuidQuery(r, "chalet_id"); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if filter.From, err = dateQuery(r, "from"); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if filter.To, err = dateQuery(r, "to"); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseBookingStatus(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			filter.Status = &status
		}

		result, err := svc.List(ctx, actor, filter, page)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		items, err := toBookingResponses(result.Items)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WritePage(w, items, result.Page, result.PerPage, result.Total)
	}
}

// BookingGet returns a booking with its extras and audit trail.
func BookingGet(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor, err := principalFrom(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		id, err := uuidParam(r, "id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		details, err := svc.Details(ctx, actor, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		out, err := toBookingDetailsResponse(details)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

func BookingGetByNumber(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor, err := principalFrom(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		number := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "number")))
		if number == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "booking number is required"))
			return
		}

		booking, err := svc.GetByNumber(ctx, actor, number)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		writeBooking(w, r, logg, http.StatusOK, booking)
	}
}

// BookingTransition moves a booking to the requested status.
func BookingTransition(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor, err := principalFrom(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		id, err := uuidParam(r, "id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req transitionBookingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		target, err := enums.ParseBookingStatus(req.Status)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
				WithDetails(map[string]string{"status": req.Status}))
			return
		}

		booking, err := svc.Transition(ctx, actor, id, target, req.Reason)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		writeBooking(w, r, logg, http.StatusOK, booking)
	}
}

func writeBooking(w http.ResponseWriter, r *http.Request, logg *logger.Logger, status int, booking *models.Booking) {
	if booking == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found"))
		return
	}
	out, err := toBookingResponse(*booking)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccessStatus(w, status, out)
}
