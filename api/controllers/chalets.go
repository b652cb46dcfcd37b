package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/chalets-backend/api/responses"
	"github.com/angelmondragon/chalets-backend/api/validators"
	"github.com/angelmondragon/chalets-backend/internal/availability"
	"github.com/angelmondragon/chalets-backend/internal/chalets"
	"github.com/angelmondragon/chalets-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/chalets-backend/pkg/errors"
	"github.com/angelmondragon/chalets-backend/pkg/logger"
)

type availabilityChecker interface {
	CheckAvailability(ctx context.Context, chaletID uuid.UUID, stay availability.Range) (bool, error)
}

type createChaletRequest struct {
	OwnerID      *string         `json:"owner_id" validate:"omitempty,uuid"`
	Name         string          `json:"name" validate:"required,max=200"`
	NightlyPrice decimal.Decimal `json:"nightly_price"`
	MaxGuests    int             `json:"max_guests" validate:"required,min=1"`
}

type updateChaletRequest struct {
	Name         *string          `json:"name" validate:"omitempty,max=200"`
	NightlyPrice *decimal.Decimal `json:"nightly_price"`
	MaxGuests    *int             `json:"max_guests" validate:"omitempty,min=1"`
	IsActive     *bool            `json:"is_active"`
}

// ChaletAvailability answers whether a chalet is free for [check_in, check_out).
func ChaletAvailability(svc availabilityChecker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		chaletID, err := uuidParam(r, "id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		q := r.URL.Query()
		stay, err := availability.ParseRange(strings.TrimSpace(q.Get("check_in")), strings.TrimSpace(q.Get("check_out")))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		free, err := svc.CheckAvailability(ctx, chaletID, stay)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, availabilityResponse{
			ChaletID:  chaletID,
			CheckIn:   stay.CheckIn.Format(dateLayout),
			CheckOut:  stay.CheckOut.Format(dateLayout),
			Available: free,
		})
	}
}

// ChaletList returns active listings, optionally for one owner.
func ChaletList(svc chalets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		page, err := pageParams(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		ownerID, err := uuidQuery(r, "owner_id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.List(ctx, chalets.ListFilter{OwnerID: ownerID, ActiveOnly: true}, page)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		items, err := mapInto[[]chaletResponse](result.Items)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WritePage(w, items, result.Page, result.PerPage, result.Total)
	}
}

func ChaletGet(svc chalets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := uuidParam(r, "id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		chalet, err := svc.Get(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		writeChalet(w, r, logg, http.StatusOK, chalet)
	}
}

// ChaletCreate registers a listing for the calling owner.
func ChaletCreate(svc chalets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor, err := principalFrom(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req createChaletRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input := chalets.CreateInput{
			Name:         req.Name,
			NightlyPrice: req.NightlyPrice,
			MaxGuests:    req.MaxGuests,
		}
		if req.OwnerID != nil {
			ownerID := uuid.MustParse(*req.OwnerID)
			input.OwnerID = &ownerID
		}

		chalet, err := svc.Create(ctx, actor, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		writeChalet(w, r, logg, http.StatusCreated, chalet)
	}
}

func ChaletUpdate(svc chalets.Service, logg *logger.Logger) http.HandlerFunc {
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

		var req updateChaletRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		chalet, err := svc.Update(ctx, actor, id, chalets.UpdateInput{
			Name:         req.Name,
			NightlyPrice: req.NightlyPrice,
			MaxGuests:    req.MaxGuests,
			IsActive:     req.IsActive,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		writeChalet(w, r, logg, http.StatusOK, chalet)
	}
}

// ChaletDeactivate hides a listing from search while keeping its history.
func ChaletDeactivate(svc chalets.Service, logg *logger.Logger) http.HandlerFunc {
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
		chalet, err := svc.Deactivate(ctx, actor, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		writeChalet(w, r, logg, http.StatusOK, chalet)
	}
}

// ChaletDelete soft-deletes a listing. Listings with active bookings answer
// with a conflict.
func ChaletDelete(svc chalets.Service, logg *logger.Logger) http.HandlerFunc {
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
		if err := svc.Delete(ctx, actor, id); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeChalet(w http.ResponseWriter, r *http.Request, logg *logger.Logger, status int, chalet *models.Chalet) {
	if chalet == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "chalet not found"))
		return
	}
	out, err := mapInto[chaletResponse](*chalet)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccessStatus(w, status, out)
}
