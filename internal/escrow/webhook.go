package escrow

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"ms-auction/internal/logger"
)

// WebhookError carries both a caller-safe message and the detailed cause
// for logs.
type WebhookError struct {
	StatusCode    int
	PublicError   string
	InternalError string
	OriginalErr   error
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

// WebhookProcessor verifies Stripe signatures and forwards normalized
// escrow events to the deposit coordinator.
type WebhookProcessor struct {
	secret  string
	handler CallbackHandler
	log     *logger.Logger
}

func NewWebhookProcessor(secret string, handler CallbackHandler, log *logger.Logger) *WebhookProcessor {
	return &WebhookProcessor{secret: secret, handler: handler, log: log}
}

// Process reads, verifies and dispatches one webhook delivery.
func (p *WebhookProcessor) Process(r *http.Request) error {
	if p.secret == "" {
		p.log.Error("WEBHOOK", "Stripe webhook secret is not configured")
		return &WebhookError{
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Webhook processing error",
			InternalError: "Stripe webhook secret is not configured",
		}
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		p.log.Error("WEBHOOK", fmt.Sprintf("Failed to read webhook payload: %v", err))
		return &WebhookError{
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook payload",
			InternalError: fmt.Sprintf("Failed to read webhook payload: %v", err),
			OriginalErr:   err,
		}
	}

	opts := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), p.secret, opts)
	if err != nil {
		p.log.Error("WEBHOOK", fmt.Sprintf("Webhook signature verification failed: %v", err))
		return &WebhookError{
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook signature",
			InternalError: fmt.Sprintf("Webhook signature verification failed: %v", err),
			OriginalErr:   err,
		}
	}

	p.log.Info("WEBHOOK", fmt.Sprintf("Processing Stripe webhook event: %s", event.Type))

	var kind EventKind
	switch event.Type {
	case "payment_intent.amount_capturable_updated":
		kind = EventHoldCreated
	case "payment_intent.succeeded":
		kind = EventCaptured
	case "payment_intent.canceled":
		kind = EventCancelled
	case "payment_intent.payment_failed":
		kind = EventFailed
	default:
		p.log.Info("WEBHOOK", fmt.Sprintf("Unhandled event type: %s", event.Type))
		return nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		p.log.Error("WEBHOOK", fmt.Sprintf("Failed to unmarshal payment intent: %v", err))
		return &WebhookError{
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid event data",
			InternalError: fmt.Sprintf("Failed to unmarshal payment intent: %v", err),
			OriginalErr:   err,
		}
	}

	escrowEvent := Event{
		Kind:      kind,
		HoldRef:   pi.ID,
		AuctionID: pi.Metadata["auction_id"],
		UserID:    pi.Metadata["user_id"],
		PaymentID: pi.Metadata["payment_id"],
		Amount:    pi.Amount,
	}
	if escrowEvent.AuctionID == "" {
		p.log.Error("WEBHOOK", "Payment intent has no auction_id in metadata")
		return &WebhookError{
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid payment intent data",
			InternalError: "Payment intent has no auction_id in metadata",
		}
	}

	if err := p.handler.HandleEscrowEvent(r.Context(), escrowEvent); err != nil {
		p.log.Error("WEBHOOK", fmt.Sprintf("Failed to handle %s for hold %s: %v", kind, pi.ID, err))
		return &WebhookError{
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Failed to process payment event",
			InternalError: fmt.Sprintf("Failed to handle %s for hold %s: %v", kind, pi.ID, err),
			OriginalErr:   err,
		}
	}

	p.log.Info("WEBHOOK", fmt.Sprintf("Successfully processed %s for hold %s", kind, pi.ID))
	return nil
}
