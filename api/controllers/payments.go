package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/chalets-backend/api/responses"
	"github.com/angelmondragon/chalets-backend/api/validators"
	"github.com/angelmondragon/chalets-backend/internal/payments"
	"github.com/angelmondragon/chalets-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/chalets-backend/pkg/errors"
	"github.com/angelmondragon/chalets-backend/pkg/logger"
)

// initiatePaymentRequest is flat; only the fields the chosen method needs are
// read.
type initiatePaymentRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	Method          string          `json:"method" validate:"required"`
	CardNumber      string          `json:"card_number"`
	CardHolderName  string          `json:"card_holder_name"`
	ExpiryMonth     int             `json:"expiry_month"`
	ExpiryYear      int             `json:"expiry_year"`
	CVC             string          `json:"cvc"`
	SourceID        string          `json:"source_id"`
	Reference       string          `json:"reference"`
	WalletReference string          `json:"wallet_reference"`
}

type initiatePaymentResponse struct {
	Payment     paymentResponse `json:"payment"`
	RedirectURL string          `json:"redirect_url,omitempty"`
}

// PaymentInitiate pays for the booking named in the path.
func PaymentInitiate(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
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

		var req initiatePaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		kind, err := enums.ParsePaymentMethod(strings.TrimSpace(req.Method))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method").
				WithDetails(map[string]string{"method": req.Method}))
			return
		}
		method, err := payments.BuildMethod(kind, payments.MethodFields{
			CardNumber:      req.CardNumber,
			CardHolderName:  req.CardHolderName,
			ExpiryMonth:     req.ExpiryMonth,
			ExpiryYear:      req.ExpiryYear,
			CVC:             req.CVC,
			SourceID:        req.SourceID,
			Reference:       req.Reference,
			WalletReference: req.WalletReference,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Initiate(ctx, actor, payments.InitiateInput{
			BookingID: bookingID,
			Amount:    req.Amount,
			Method:    method,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		payment, err := mapInto[paymentResponse](result.Payment)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, initiatePaymentResponse{
			Payment:     payment,
			RedirectURL: result.RedirectURL,
		})
	}
}

// PaymentList returns the payments visible to the caller.
func PaymentList(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
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

		var filter payments.ListFilter
		if filter.BookingID, err = uuidQuery(r, "booking_id"); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		q := r.URL.Query()
		if raw := strings.TrimSpace(q.Get("status")); raw != "" {
			status, err := enums.ParsePaymentStatus(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			filter.Status = &status
		}
		if raw := strings.TrimSpace(q.Get("method")); raw != "" {
			method, err := enums.ParsePaymentMethod(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid method"))
				return
			}
			filter.Method = &method
		}

		result, err := svc.List(ctx, actor, filter, page)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		items, err := mapInto[[]paymentResponse](result.Items)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if items == nil {
			items = []paymentResponse{}
		}
		responses.WritePage(w, items, result.Page, result.PerPage, result.Total)
	}
}

// PaymentGet returns one payment to its customer, the chalet owner or an admin.
func PaymentGet(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
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

		payment, err := svc.Get(ctx, actor, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		out, err := mapInto[paymentResponse](*payment)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

type paymentCallbackResponse struct {
	PaymentID uuid.UUID `json:"payment_id"`
	Status    string    `json:"status"`
}

// PaymentCallback is where the gateway sends the customer back after a
// redirect. It is unauthenticated, so it only reveals the payment status.
func PaymentCallback(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		payment, err := svc.Callback(ctx, strings.TrimSpace(r.URL.Query().Get("id")))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, paymentCallbackResponse{PaymentID: payment.ID, Status: string(payment.Status)})
	}
}
