package payments

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/chalets-backend/pkg/enums"
	"github.com/angelmondragon/chalets-backend/pkg/metrics"
	"github.com/angelmondragon/chalets-backend/pkg/square"
)

// Gateway is the hosted card processor. Amounts are in minor units.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (GatewayPayment, error)
	Lookup(ctx context.Context, externalID string) (GatewayPayment, error)
	Refund(ctx context.Context, req RefundRequest) (GatewayRefund, error)
}

type ChargeRequest struct {
	PaymentID     uuid.UUID
	AmountMinor   int64
	Currency      string
	SourceID      string
	BookingNumber string
}

// GatewayPayment is the gateway's view of a charge, with its status mapped
// onto the local status set.
type GatewayPayment struct {
	ExternalID  string
	Status      enums.PaymentStatus
	RawStatus   string
	RedirectURL string
}

type RefundRequest struct {
	RefundKey   string
	ExternalID  string
	AmountMinor int64
	Currency    string
	Reason      string
}

type GatewayRefund struct {
	RefundID    string
	Status      string
	AmountMinor int64
}

type squareAPI interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*square.PaymentResult, error)
	GetPayment(ctx context.Context, paymentID string) (*square.PaymentResult, error)
	RefundPayment(ctx context.Context, params square.RefundParams) (*square.RefundResult, error)
}

// SquareGateway adapts the Square client to Gateway and records latency.
type SquareGateway struct {
	client  squareAPI
	metrics *metrics.BookingMetrics
}

func NewSquareGateway(client squareAPI, m *metrics.BookingMetrics) *SquareGateway {
	return &SquareGateway{client: client, metrics: m}
}

func (g *SquareGateway) Charge(ctx context.Context, req ChargeRequest) (GatewayPayment, error) {
	start := time.Now()
	res, err := g.client.CreatePayment(ctx, square.PaymentCreateParams{
		AmountMinor:    req.AmountMinor,
		Currency:       req.Currency,
		SourceID:       req.SourceID,
		IdempotencyKey: "payment-" + req.PaymentID.String(),
		Note:           "Booking " + req.BookingNumber,
		ReferenceID:    req.PaymentID.String(),
	})
	g.metrics.ObserveGateway("charge", err, time.Since(start))
	if err != nil {
		return GatewayPayment{}, err
	}
	return fromSquarePayment(res), nil
}

func (g *SquareGateway) Lookup(ctx context.Context, externalID string) (GatewayPayment, error) {
	start := time.Now()
	res, err := g.client.GetPayment(ctx, externalID)
	g.metrics.ObserveGateway("lookup", err, time.Since(start))
	if err != nil {
		return GatewayPayment{}, err
	}
	return fromSquarePayment(res), nil
}

func (g *SquareGateway) Refund(ctx context.Context, req RefundRequest) (GatewayRefund, error) {
	start := time.Now()
	res, err := g.client.RefundPayment(ctx, square.RefundParams{
		PaymentID:      req.ExternalID,
		AmountMinor:    req.AmountMinor,
		Currency:       req.Currency,
		Reason:         req.Reason,
		IdempotencyKey: "refund-" + req.RefundKey,
	})
	g.metrics.ObserveGateway("refund", err, time.Since(start))
	if err != nil {
		return GatewayRefund{}, err
	}
	return GatewayRefund{RefundID: res.ID, Status: res.Status, AmountMinor: res.AmountMinor}, nil
}

func fromSquarePayment(res *square.PaymentResult) GatewayPayment {
	return GatewayPayment{
		ExternalID:  res.ID,
		Status:      MapSquareStatus(res.Status),
		RawStatus:   res.Status,
		RedirectURL: res.ReceiptURL,
	}
}

// MapSquareStatus maps a Square payment status onto the local status set.
func MapSquareStatus(status string) enums.PaymentStatus {
	switch status {
	case square.StatusCompleted:
		return enums.PaymentStatusCompleted
	case square.StatusFailed, square.StatusCanceled, square.StatusRejected:
		return enums.PaymentStatusFailed
	default:
		return enums.PaymentStatusPending
	}
}
