package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/chalets-backend/api/responses"
	"github.com/angelmondragon/chalets-backend/api/validators"
	"github.com/angelmondragon/chalets-backend/internal/reviews"
	"github.com/angelmondragon/chalets-backend/pkg/db/models"
	"github.com/angelmondragon/chalets-backend/pkg/logger"
)

type chaletReviewLister interface {
	ListForChalet(ctx context.Context, chaletID uuid.UUID) ([]models.Review, error)
}

type createReviewRequest struct {
	Rating  int     `json:"rating" validate:"required,min=1,max=5"`
	Comment *string `json:"comment" validate:"omitempty,max=1000"`
}

// ReviewCreate records the customer's review of a completed booking.
func ReviewCreate(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor, err := principalFrom(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		bookingID, err := uuidParam(r, "id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req createReviewRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		review, err := svc.Create(ctx, actor, bookingID, reviews.CreateInput{Rating: req.Rating, Comment: req.Comment})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		out, err := mapInto[reviewResponse](*review)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, out)
	}
}

func ReviewApprove(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor, err := principalFrom(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		reviewID, err := uuidParam(r, "id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		review, err := svc.Approve(ctx, actor, reviewID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		out, err := mapInto[reviewResponse](*review)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// ChaletReviews lists approved reviews for a chalet.
func ChaletReviews(svc chaletReviewLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		chaletID, err := uuidParam(r, "id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		items, err := svc.ListForChalet(ctx, chaletID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		out, err := mapInto[[]reviewResponse](items)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if out == nil {
			out = []reviewResponse{}
		}
		responses.WriteSuccess(w, out)
	}
}
