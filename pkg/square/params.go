package square

import (
	"encoding/json"
	"fmt"
	"strings"

	sq "github.com/square/square-go-sdk"
)

// Square payment statuses.
const (
	StatusApproved  = "APPROVED"
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusCanceled  = "CANCELED"
	StatusFailed    = "FAILED"
	StatusRejected  = "REJECTED"
)

// PaymentCreateParams encapsulates the inputs for a Square payment.
type PaymentCreateParams struct {
	AmountMinor    int64
	Currency       string
	SourceID       string
	IdempotencyKey string
	Note           string
	ReferenceID    string
}

func (p PaymentCreateParams) toSquareRequest(locationID, idempotencyKey string) *sq.CreatePaymentRequest {
	autocomplete := true
	req := &sq.CreatePaymentRequest{
		IdempotencyKey: idempotencyKey,
		LocationID:     ptrString(locationID),
		SourceID:       p.SourceID,
		Autocomplete:   &autocomplete,
	}
	if p.AmountMinor > 0 {
		req.AmountMoney = moneyPtr(p.AmountMinor, p.Currency)
	}
	if trimmed := strings.TrimSpace(p.Note); trimmed != "" {
		req.Note = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.ReferenceID); trimmed != "" {
		req.ReferenceID = ptrString(trimmed)
	}
	return req
}

// RefundParams describes a refund against an existing Square payment.
type RefundParams struct {
	PaymentID      string
	AmountMinor    int64
	Currency       string
	Reason         string
	IdempotencyKey string
}

func (p RefundParams) toSquareRequest(idempotencyKey string) *sq.RefundPaymentRequest {
	req := &sq.RefundPaymentRequest{
		IdempotencyKey: idempotencyKey,
		AmountMoney:    moneyPtr(p.AmountMinor, p.Currency),
		PaymentID:      ptrString(p.PaymentID),
	}
	if trimmed := strings.TrimSpace(p.Reason); trimmed != "" {
		req.Reason = ptrString(trimmed)
	}
	return req
}

// PaymentResult is the subset of a Square payment the service persists.
type PaymentResult struct {
	ID          string
	Status      string
	ReceiptURL  string
	AmountMinor int64
	Currency    string
}

// RefundResult is the subset of a Square refund the service persists.
type RefundResult struct {
	ID          string
	Status      string
	AmountMinor int64
	Currency    string
}

type wireMoney struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type wirePayment struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	ReceiptURL  string     `json:"receipt_url"`
	AmountMoney *wireMoney `json:"amount_money"`
}

type wireRefund struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	AmountMoney *wireMoney `json:"amount_money"`
}

// decodePayment reads the SDK payment through its JSON form so the result
// does not depend on which fields the SDK models as pointers.
func decodePayment(payment *sq.Payment) (*PaymentResult, error) {
	if payment == nil {
		return nil, fmt.Errorf("square returned no payment")
	}
	raw, err := json.Marshal(payment)
	if err != nil {
		return nil, err
	}
	var wire wirePayment
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	if wire.ID == "" {
		return nil, fmt.Errorf("square payment missing id")
	}
	result := &PaymentResult{ID: wire.ID, Status: strings.ToUpper(wire.Status), ReceiptURL: wire.ReceiptURL}
	if wire.AmountMoney != nil {
		result.AmountMinor = wire.AmountMoney.Amount
		result.Currency = wire.AmountMoney.Currency
	}
	return result, nil
}

func decodeRefund(refund *sq.PaymentRefund) (*RefundResult, error) {
	if refund == nil {
		return nil, fmt.Errorf("square returned no refund")
	}
	raw, err := json.Marshal(refund)
	if err != nil {
		return nil, err
	}
	var wire wireRefund
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	if wire.ID == "" {
		return nil, fmt.Errorf("square refund missing id")
	}
	result := &RefundResult{ID: wire.ID, Status: strings.ToUpper(wire.Status)}
	if wire.AmountMoney != nil {
		result.AmountMinor = wire.AmountMoney.Amount
		result.Currency = wire.AmountMoney.Currency
	}
	return result, nil
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = "SAR"
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}
