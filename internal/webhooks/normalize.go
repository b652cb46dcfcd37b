package webhooks

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/chalets-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/chalets-backend/pkg/errors"
	"github.com/angelmondragon/chalets-backend/pkg/money"
)

// envelope covers both the gateway-neutral shape
// {"id","type","data":{"id","status",...}} and Square's
// {"event_id","type","data":{"object":{"payment"|"refund":{...}}}}.
type envelope struct {
	ID      string      `json:"id"`
	EventID string      `json:"event_id"`
	Type    string      `json:"type"`
	Data    payloadData `json:"data"`
}

type payloadData struct {
	ID       string         `json:"id"`
	Status   string         `json:"status"`
	Message  string         `json:"message"`
	Reason   string         `json:"reason"`
	RefundID string         `json:"refund_id"`
	Amount   *string        `json:"amount"`
	Metadata map[string]any `json:"metadata"`
	Object   struct {
		Payment *squarePayment `json:"payment"`
		Refund  *squareRefund  `json:"refund"`
	} `json:"object"`
}

type squarePayment struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type squareRefund struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	PaymentID   string `json:"payment_id"`
	Reason      string `json:"reason"`
	AmountMoney *struct {
		Amount int64 `json:"amount"`
	} `json:"amount_money"`
}

// Decode parses a verified webhook body into a normalized event. Events
// that map to nothing keep their raw type so the reconciler can ignore them.
func Decode(body []byte) (payments.WebhookEvent, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return payments.WebhookEvent{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook payload")
	}
	if strings.TrimSpace(env.Type) == "" {
		return payments.WebhookEvent{}, pkgerrors.New(pkgerrors.CodeValidation, "webhook type is required").
			WithDetails(map[string]string{"type": "is required"})
	}

	event := payments.WebhookEvent{
		ID:       firstNonEmpty(env.EventID, env.ID),
		Metadata: env.Data.Metadata,
	}
	data := env.Data
	switch {
	case data.Object.Payment != nil:
		event.ExternalID = data.Object.Payment.ID
		event.Type = squarePaymentType(env.Type, data.Object.Payment.Status)
	case data.Object.Refund != nil:
		refund := data.Object.Refund
		event.ExternalID = refund.PaymentID
		event.RefundID = refund.ID
		event.Reason = refund.Reason
		event.Type = squareRefundType(env.Type, refund.Status)
		if refund.AmountMoney != nil {
			amount := money.FromMinorUnits(refund.AmountMoney.Amount)
			event.Amount = &amount
		}
	default:
		event.ExternalID = data.ID
		event.Type = payments.WebhookEventType(strings.ToLower(strings.TrimSpace(env.Type)))
		event.Reason = firstNonEmpty(data.Reason, data.Message)
		event.RefundID = data.RefundID
		if data.Amount != nil {
			amount, err := decimal.NewFromString(*data.Amount)
			if err != nil {
				return payments.WebhookEvent{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook amount").
					WithDetails(map[string]string{"amount": "must be a decimal string"})
			}
			event.Amount = &amount
		}
	}
	event.ExternalID = strings.TrimSpace(event.ExternalID)
	if event.ID == "" {
		event.ID = string(event.Type) + ":" + event.ExternalID
	}
	return event, nil
}

func squarePaymentType(raw, status string) payments.WebhookEventType {
	if !strings.EqualFold(raw, "payment.updated") && !strings.EqualFold(raw, "payment.created") {
		return payments.WebhookEventType(raw)
	}
	switch strings.ToUpper(status) {
	case "COMPLETED":
		return payments.WebhookPaymentPaid
	case "FAILED", "CANCELED":
		return payments.WebhookPaymentFailed
	default:
		return payments.WebhookEventType(raw)
	}
}

func squareRefundType(raw, status string) payments.WebhookEventType {
	if (strings.EqualFold(raw, "refund.updated") || strings.EqualFold(raw, "refund.created")) && strings.EqualFold(status, "COMPLETED") {
		return payments.WebhookPaymentRefunded
	}
	return payments.WebhookEventType(raw)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
