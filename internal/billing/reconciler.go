// Package billing integrates the Stripe payment provider: checkout session
// creation, the webhook receiver, and the redirect-time verifier. Both
// purchase-delivery channels funnel through the Reconciler, which guarantees
// that a payment event is credited exactly once no matter how many times or
// through which channel it arrives.
package billing

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	svcerr "github.com/lego3072/rentready-ai/internal/errors"
	"github.com/lego3072/rentready-ai/internal/metrics"
	"github.com/lego3072/rentready-ai/internal/store"
)

// Channel identifies which delivery path handed a payment event to the
// reconciler. Used only for logging and metrics; both channels apply the
// identical crediting sequence.
type Channel string

const (
	ChannelVerify  Channel = "verify"
	ChannelWebhook Channel = "webhook"
)

// Reconciler applies purchase and cancellation events to the entitlement
// store with exactly-once semantics. The store's unique event-id constraint
// decides the winner when the verify and webhook channels race; the loser
// commits nothing.
type Reconciler struct {
	store *store.Store
}

// NewReconciler creates a reconciler over the given store.
func NewReconciler(st *store.Store) *Reconciler {
	return &Reconciler{store: st}
}

// ApplyPurchase credits a purchase event for the user identified by
// fingerprint. The claim and the credit commit in a single transaction so a
// crash between them can never strand a claimed-but-uncredited event.
// Returns true iff this call won the claim; false means the event was
// already processed and no state changed.
func (r *Reconciler) ApplyPurchase(ctx context.Context, eventID, fingerprint string, kind store.PurchaseKind, customerRef string, channel Channel) (bool, error) {
	if eventID == "" {
		return false, svcerr.New(svcerr.KindBadRequest, "billing.ApplyPurchase", fmt.Errorf("empty event id"))
	}
	if !kind.Valid() {
		return false, svcerr.New(svcerr.KindBadRequest, "billing.ApplyPurchase", fmt.Errorf("unknown purchase kind %q", kind))
	}

	applied, err := r.store.ApplyPurchaseEvent(ctx, eventID, fingerprint, kind, customerRef)
	if err != nil {
		return false, svcerr.Unavailable("billing.ApplyPurchase", err)
	}
	if !applied {
		metrics.DuplicateClaimsTotal.WithLabelValues(string(channel)).Inc()
		log.Info().
			Str("event_id", eventID).
			Str("channel", string(channel)).
			Msg("purchase event already processed, skipping credit")
		return false, nil
	}

	metrics.PurchaseCreditsTotal.WithLabelValues(string(kind), string(channel)).Inc()
	log.Info().
		Str("event_id", eventID).
		Str("fingerprint", fingerprint).
		Str("kind", string(kind)).
		Str("channel", string(channel)).
		Msg("purchase credited")
	return true, nil
}

// ApplyCancellation downgrades every user and account carrying the given
// billing customer reference to the free plan. Cancellation is idempotent by
// nature (downgrading twice is a no-op), so it does not go through the
// processed-event log.
func (r *Reconciler) ApplyCancellation(ctx context.Context, customerRef string) error {
	if customerRef == "" {
		log.Warn().Msg("subscription cancellation without customer reference, ignoring")
		return nil
	}
	n, err := r.store.DowngradeByCustomerRef(ctx, customerRef)
	if err != nil {
		return svcerr.Unavailable("billing.ApplyCancellation", err)
	}
	log.Info().
		Str("customer_ref", customerRef).
		Int64("rows", n).
		Msg("subscription cancelled, plan downgraded")
	return nil
}
