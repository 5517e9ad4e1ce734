package escrow

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"ms-auction/internal/fault"
	"ms-auction/internal/logger"
)

var ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")

// StripeGateway implements Gateway on Stripe payment intents with manual
// capture: funds are authorized when the payer confirms and move only on
// Capture.
type StripeGateway struct {
	client *client.API
	log    *logger.Logger
}

func NewStripeGateway(secretKey string, log *logger.Logger) (*StripeGateway, error) {
	if secretKey == "" {
		log.Error("STRIPE", "STRIPE_SECRET_KEY is not set")
		return nil, ErrStripeClientInitFailed
	}

	sc := client.New(secretKey, nil)
	log.Info("STRIPE", "Stripe client initialized successfully")
	return &StripeGateway{client: sc, log: log}, nil
}

func (g *StripeGateway) CreateHold(ctx context.Context, customerRef string, amount int64, currency string, md Metadata) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amount),
		Currency:      stripe.String(currency),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if customerRef != "" {
		params.Customer = stripe.String(customerRef)
	}
	for k, v := range md {
		params.AddMetadata(k, v)
	}

	pi, err := g.client.PaymentIntents.New(params)
	if err != nil {
		g.log.Error("STRIPE", fmt.Sprintf("Failed to create hold: %v", err))
		return "", fmt.Errorf("%w: create hold: %v", fault.ErrEscrowFailure, err)
	}

	g.log.LogEscrow("HOLD", pi.ID, fmt.Sprintf("authorization created for %d %s", amount, currency))
	return pi.ID, nil
}

// Capture finalizes a hold. Re-capturing an already captured intent is a
// no-op returning the captured amount.
func (g *StripeGateway) Capture(ctx context.Context, holdRef string) (int64, error) {
	getParams := &stripe.PaymentIntentParams{}
	getParams.Context = ctx
	pi, err := g.client.PaymentIntents.Get(holdRef, getParams)
	if err != nil {
		g.log.Error("STRIPE", fmt.Sprintf("Failed to fetch hold %s: %v", holdRef, err))
		return 0, fmt.Errorf("%w: fetch hold %s: %v", fault.ErrEscrowFailure, holdRef, err)
	}

	if pi.Status == stripe.PaymentIntentStatusSucceeded {
		g.log.LogEscrow("CAPTURE", holdRef, "already captured")
		return pi.AmountReceived, nil
	}

	captureParams := &stripe.PaymentIntentCaptureParams{}
	captureParams.Context = ctx
	pi, err = g.client.PaymentIntents.Capture(holdRef, captureParams)
	if err != nil {
		g.log.Error("STRIPE", fmt.Sprintf("Failed to capture hold %s: %v", holdRef, err))
		return 0, fmt.Errorf("%w: capture hold %s: %v", fault.ErrEscrowFailure, holdRef, err)
	}

	g.log.LogEscrow("CAPTURE", holdRef, fmt.Sprintf("captured %d", pi.AmountReceived))
	return pi.AmountReceived, nil
}

// Cancel releases a hold back to the payer. Cancelling an already
// cancelled intent is a no-op.
func (g *StripeGateway) Cancel(ctx context.Context, holdRef string) error {
	getParams := &stripe.PaymentIntentParams{}
	getParams.Context = ctx
	pi, err := g.client.PaymentIntents.Get(holdRef, getParams)
	if err != nil {
		g.log.Error("STRIPE", fmt.Sprintf("Failed to fetch hold %s: %v", holdRef, err))
		return fmt.Errorf("%w: fetch hold %s: %v", fault.ErrEscrowFailure, holdRef, err)
	}

	if pi.Status == stripe.PaymentIntentStatusCanceled {
		g.log.LogEscrow("CANCEL", holdRef, "already cancelled")
		return nil
	}

	cancelParams := &stripe.PaymentIntentCancelParams{}
	cancelParams.Context = ctx
	if _, err := g.client.PaymentIntents.Cancel(holdRef, cancelParams); err != nil {
		g.log.Error("STRIPE", fmt.Sprintf("Failed to cancel hold %s: %v", holdRef, err))
		return fmt.Errorf("%w: cancel hold %s: %v", fault.ErrEscrowFailure, holdRef, err)
	}

	g.log.LogEscrow("CANCEL", holdRef, "authorization released")
	return nil
}
