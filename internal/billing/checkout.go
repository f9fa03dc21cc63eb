package billing

import (
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"

	"github.com/lego3072/rentready-ai/internal/config"
	svcerr "github.com/lego3072/rentready-ai/internal/errors"
)

// ProBilling selects the subscription billing interval.
type ProBilling string

const (
	ProBillingMonthly ProBilling = "monthly"
	ProBillingAnnual  ProBilling = "annual"
)

// Checkout creates Stripe checkout sessions for single-report purchases and
// pro subscriptions. The session-creation call is a struct field so tests can
// substitute a fake without touching the network.
type Checkout struct {
	cfg *config.Config

	createCheckoutSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// NewCheckout creates a checkout service bound to the live Stripe client.
func NewCheckout(cfg *config.Config) *Checkout {
	return &Checkout{
		cfg:                   cfg,
		createCheckoutSession: stripesession.New,
	}
}

// CreateSingleCheckout creates a one-time payment session for a single
// report and returns the hosted checkout URL.
func (c *Checkout) CreateSingleCheckout(fingerprint string) (string, error) {
	const op = "billing.CreateSingleCheckout"
	if strings.TrimSpace(c.cfg.StripePriceSingle) == "" {
		return "", svcerr.Unavailable(op, fmt.Errorf("single report price not configured"))
	}

	stripe.Key = c.cfg.StripeAPIKey
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(c.cfg.BaseURL + "?payment=success&type=single&session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(c.cfg.BaseURL + "?payment=cancelled"),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(c.cfg.StripePriceSingle),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"fingerprint": fingerprint,
			"type":        "single",
		},
	}
	return c.create(op, params)
}

// CreateProCheckout creates a subscription session for the pro plan. An
// unknown billing value falls back to monthly.
func (c *Checkout) CreateProCheckout(fingerprint string, billing ProBilling) (string, error) {
	const op = "billing.CreateProCheckout"

	priceID := c.cfg.StripePriceMonthly
	successType := "pro"
	if billing == ProBillingAnnual {
		priceID = c.cfg.StripePriceAnnual
		successType = "annual"
	}
	if strings.TrimSpace(priceID) == "" {
		return "", svcerr.Unavailable(op, fmt.Errorf("pro %s price not configured", billing))
	}

	stripe.Key = c.cfg.StripeAPIKey
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(c.cfg.BaseURL + "?payment=success&type=" + successType + "&session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(c.cfg.BaseURL + "?payment=cancelled"),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"fingerprint": fingerprint,
			"type":        "pro",
		},
	}
	return c.create(op, params)
}

func (c *Checkout) create(op string, params *stripe.CheckoutSessionParams) (string, error) {
	session, err := c.createCheckoutSession(params)
	if err != nil {
		return "", svcerr.Unavailable(op, fmt.Errorf("create checkout session: %w", err))
	}
	if session == nil || strings.TrimSpace(session.URL) == "" {
		return "", svcerr.Unavailable(op, fmt.Errorf("stripe returned empty checkout URL"))
	}
	return strings.TrimSpace(session.URL), nil
}
