package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/chalets-backend/api/responses"
	"github.com/angelmondragon/chalets-backend/api/validators"
	"github.com/angelmondragon/chalets-backend/internal/refunds"
	"github.com/angelmondragon/chalets-backend/pkg/logger"
)

type refundRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Reason string           `json:"reason" validate:"required,max=500"`
}

type refundPolicyResponse struct {
	Tiers []refunds.Tier       `json:"tiers"`
	Quote *refundQuoteResponse `json:"quote,omitempty"`
}

// RefundCreate refunds a completed payment. Omitting amount refunds it in full.
func RefundCreate(svc refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor, err := principalFrom(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		paymentID, err := uuidParam(r, "id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req refundRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Refund(ctx, actor, paymentID, refunds.Input{Amount: req.Amount, Reason: req.Reason})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		out, err := mapInto[refundResponse](*result)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, out)
	}
}

func RefundHistory(svc refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor, err := principalFrom(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		paymentID, err := uuidParam(r, "id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		history, err := svc.ListRefunds(ctx, actor, paymentID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		out, err := mapInto[refundHistoryResponse](*history)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if out.Refunds == nil {
			out.Refunds = []refundEntryResponse{}
		}
		responses.WriteSuccess(w, out)
	}
}

// RefundPolicy publishes the advisory tiers. With ?payment_id it also quotes
// that payment for the caller.
func RefundPolicy(svc refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		out := refundPolicyResponse{Tiers: refunds.Policy()}

		paymentID, err := uuidQuery(r, "payment_id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if paymentID != nil {
			actor, err := principalFrom(r)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			quote, err := svc.Quote(ctx, actor, *paymentID)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			mapped, err := mapInto[refundQuoteResponse](*quote)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			out.Quote = &mapped
		}
		responses.WriteSuccess(w, out)
	}
}
