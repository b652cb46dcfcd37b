package webhooks

import (
	"context"
	"fmt"

	"github.com/angelmondragon/chalets-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/chalets-backend/pkg/errors"
	"github.com/angelmondragon/chalets-backend/pkg/logger"
	"github.com/angelmondragon/chalets-backend/pkg/metrics"
)

type applier interface {
	ApplyWebhook(ctx context.Context, event payments.WebhookEvent) (bool, error)
}

type guard interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// Result is what the HTTP layer reports back to the gateway.
type Result struct {
	EventID   string `json:"event_id,omitempty"`
	Processed bool   `json:"processed"`
	Duplicate bool   `json:"duplicate,omitempty"`
	// Retry is set when the event names a payment that is not visible yet.
	Retry     bool   `json:"retry,omitempty"`
}

type ProcessorParams struct {
	Verifier *Verifier
	Guard    guard
	Payments applier
	Metrics  *metrics.BookingMetrics
	Logger   *logger.Logger
}

// Processor runs a raw delivery through verification, decoding, the
// idempotency guard and the reconciler, in that order.
type Processor struct {
	verifier *Verifier
	guard    guard
	payments applier
	metrics  *metrics.BookingMetrics
	logg     *logger.Logger
}

func NewProcessor(params ProcessorParams) (*Processor, error) {
	if params.Verifier == nil {
		return nil, fmt.Errorf("webhook verifier required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Processor{
		verifier: params.Verifier,
		guard:    params.Guard,
		payments: params.Payments,
		metrics:  params.Metrics,
		logg:     logg,
	}, nil
}

func (p *Processor) Process(ctx context.Context, body []byte, signature string) (Result, error) {
	if err := p.verifier.Verify(body, signature); err != nil {
		p.metrics.Webhook("unknown", "rejected")
		p.logg.Warn(p.logg.WithField(ctx, "body_bytes", len(body)), "webhook signature rejected")
		return Result{}, err
	}

	event, err := Decode(body)
	if err != nil {
		p.metrics.Webhook("unknown", "rejected")
		return Result{}, err
	}
	logCtx := p.logg.WithFields(ctx, map[string]any{
		"webhook_event_id": event.ID,
		"webhook_type":     string(event.Type),
		"external_id":      event.ExternalID,
	})

	if p.guard != nil {
		seen, err := p.guard.Claim(ctx, event.ID)
		if err != nil {
			p.logg.Error(logCtx, "webhook idempotency claim failed", err)
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim webhook event")
		}
		if seen {
			p.metrics.Webhook(string(event.Type), "duplicate")
			p.logg.Info(logCtx, "webhook already received")
			return Result{EventID: event.ID, Processed: true, Duplicate: true}, nil
		}
	}

	processed, err := p.payments.ApplyWebhook(ctx, event)
	if err != nil {
		if p.guard != nil {
			if releaseErr := p.guard.Release(ctx, event.ID); releaseErr != nil {
				p.logg.Error(logCtx, "webhook idempotency release failed", releaseErr)
			}
		}
		return Result{}, err
	}
	if !processed && p.guard != nil {
		// Not found yet or ignored; let a retry through once the payment is visible.
		if releaseErr := p.guard.Release(ctx, event.ID); releaseErr != nil {
			p.logg.Error(logCtx, "webhook idempotency release failed", releaseErr)
		}
	}
	return Result{
		EventID:   event.ID,
		Processed: processed,
		Retry:     !processed && event.Type.Supported(),
	}, nil
}
