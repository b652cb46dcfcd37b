package controllers

import (
	"context"
	"io"
	"net/http"

	"github.com/angelmondragon/chalets-backend/api/responses"
	"github.com/angelmondragon/chalets-backend/internal/webhooks"
	pkgerrors "github.com/angelmondragon/chalets-backend/pkg/errors"
	"github.com/angelmondragon/chalets-backend/pkg/logger"
)

const maxWebhookBodyBytes = 1 << 20

// WebhookProcessor verifies and applies a raw gateway callback.
type WebhookProcessor interface {
	Process(ctx context.Context, body []byte, signature string) (webhooks.Result, error)
}

// PaymentWebhook verifies and applies a gateway callback. The signature is
// computed over the raw body, so the body is read before any decoding.
func PaymentWebhook(processor WebhookProcessor, signatureHeader string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if processor == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook processor unavailable"))
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes+1))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read webhook body"))
			return
		}
		if len(body) > maxWebhookBodyBytes {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "webhook body too large"))
			return
		}

		result, err := processor.Process(ctx, body, r.Header.Get(signatureHeader))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if result.Retry {
			// A non-2xx answer makes the gateway redeliver later.
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found").
				WithDetails(map[string]string{"event_id": result.EventID}))
			return
		}
		responses.WriteSuccess(w, result)
	}
}
