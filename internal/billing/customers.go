package billing

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/subscription"
)

// ProLookupFunc checks the billing provider for an active pro subscription
// belonging to email. It returns the billing customer reference and true
// when one exists. Lookups are best-effort: any provider error reports no
// subscription rather than failing the caller.
type ProLookupFunc func(ctx context.Context, email string) (customerRef string, active bool)

// NewProLookup returns a ProLookupFunc backed by the live Stripe API. Used
// to self-heal accounts whose stored plan lost a purchase (a webhook missed
// during an outage, a database restore, a device swap before linking).
func NewProLookup(apiKey string) ProLookupFunc {
	return func(ctx context.Context, email string) (string, bool) {
		if apiKey == "" || email == "" {
			return "", false
		}
		stripe.Key = apiKey

		custParams := &stripe.CustomerListParams{Email: stripe.String(email)}
		custParams.Context = ctx
		custParams.Limit = stripe.Int64(3)
		it := customer.List(custParams)
		for it.Next() {
			c := it.Customer()
			subParams := &stripe.SubscriptionListParams{
				Customer: stripe.String(c.ID),
				Status:   stripe.String("active"),
			}
			subParams.Context = ctx
			subParams.Limit = stripe.Int64(1)
			sit := subscription.List(subParams)
			if sit.Next() {
				return c.ID, true
			}
			if err := sit.Err(); err != nil {
				log.Warn().Err(err).Str("email", email).Msg("subscription lookup failed")
				return "", false
			}
		}
		if err := it.Err(); err != nil {
			log.Warn().Err(err).Str("email", email).Msg("customer lookup failed")
		}
		return "", false
	}
}
