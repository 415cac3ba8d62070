package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"library-lending/internal/domain"
	"library-lending/internal/logger"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"
)

const serviceName = "stripe"

type StripeGateway struct {
	client  *paymentintent.Client
	timeout time.Duration
}

// NewStripeGateway talks to the Stripe API backend. A nil backend selects the
// default HTTP backend.
func NewStripeGateway(secretKey string, backend stripe.Backend, timeout time.Duration) (*StripeGateway, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("stripe: secret key is required")
	}
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	return &StripeGateway{
		client:  &paymentintent.Client{B: backend, Key: secretKey},
		timeout: timeout,
	}, nil
}

func (g *StripeGateway) CreateIntent(ctx context.Context, amountMinor int64, currency, description string, metadata map[string]string) (*Intent, error) {
	if amountMinor <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive, got %d", domain.ErrGatewayError, amountMinor)
	}
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	logger.ExternalServiceCall(serviceName, "CreatePaymentIntent", "amount", amountMinor, "currency", currency)
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(amountMinor),
		Currency:    stripe.String(currency),
		Description: stripe.String(description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	pi, err := g.client.New(params)
	err = callError(ctx, err)
	logger.ExternalServiceResult(serviceName, "CreatePaymentIntent", err)
	if err != nil {
		return nil, fmt.Errorf("%w: create intent: %w", domain.ErrGatewayError, err)
	}

	return toIntent(pi), nil
}

func (g *StripeGateway) Verify(ctx context.Context, ref string) (*Intent, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	logger.ExternalServiceCall(serviceName, "GetPaymentIntent", "intent_ref", ref)
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.client.Get(ref, params)
	err = callError(ctx, err)
	logger.ExternalServiceResult(serviceName, "GetPaymentIntent", err, "intent_ref", ref)
	if err != nil {
		return nil, fmt.Errorf("%w: verify intent %s: %w", domain.ErrGatewayError, ref, err)
	}
	intent := toIntent(pi)
	intent.ClientSecret = ""
	return intent, nil
}

func toIntent(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		Ref:          pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountMinor:  pi.Amount,
		Currency:     string(pi.Currency),
		Status:       mapIntentStatus(pi.Status),
		Metadata:     pi.Metadata,
	}
}

func (g *StripeGateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

// callError reports a deadline hit even when the backend returned a result.
func callError(ctx context.Context, err error) error {
	if err != nil {
		return err
	}
	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
		return ctxErr
	}
	return nil
}

func mapIntentStatus(status stripe.PaymentIntentStatus) IntentStatus {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return StatusFailed
	default:
		return StatusPending
	}
}
