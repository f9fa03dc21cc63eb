package billing

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"

	svcerr "github.com/lego3072/rentready-ai/internal/errors"
	"github.com/lego3072/rentready-ai/internal/store"
)

// VerifyResult reports the outcome of a redirect-time session verification.
type VerifyResult struct {
	Verified         bool   `json:"verified"`
	Type             string `json:"type,omitempty"`
	Reason           string `json:"reason,omitempty"`
	AlreadyProcessed bool   `json:"already_processed,omitempty"`
}

// Verifier is the verify-after-redirect purchase channel. The client lands
// back on the app with a session id in the URL and asks us to credit it
// without waiting for the webhook. Session retrieval is injected for tests.
type Verifier struct {
	apiKey     string
	reconciler *Reconciler

	getCheckoutSession func(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// NewVerifier creates a verifier bound to the live Stripe client.
func NewVerifier(apiKey string, reconciler *Reconciler) *Verifier {
	return &Verifier{
		apiKey:             apiKey,
		reconciler:         reconciler,
		getCheckoutSession: stripesession.Get,
	}
}

// Verify retrieves the checkout session, checks that it is paid and belongs
// to fingerprint, and credits it through the reconciler. A session already
// credited by the webhook channel reports success with AlreadyProcessed set
// and changes nothing.
func (v *Verifier) Verify(ctx context.Context, sessionID, fingerprint string) (*VerifyResult, error) {
	const op = "billing.Verify"
	if sessionID == "" {
		return nil, svcerr.New(svcerr.KindBadRequest, op, fmt.Errorf("missing session_id"))
	}

	stripe.Key = v.apiKey
	session, err := v.getCheckoutSession(sessionID, nil)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("checkout session retrieve failed")
		return nil, svcerr.New(svcerr.KindBadRequest, op, fmt.Errorf("invalid session"))
	}

	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return &VerifyResult{Verified: false, Reason: "payment not completed"}, nil
	}

	// The session must carry the caller's own fingerprint. A mismatch gets
	// the same opaque forbidden error regardless of whose session it is.
	if session.Metadata["fingerprint"] != fingerprint {
		return nil, svcerr.Forbidden(op)
	}

	kind := store.PurchaseKind(session.Metadata["type"])
	if !kind.Valid() {
		return nil, svcerr.New(svcerr.KindBadRequest, op, fmt.Errorf("unknown purchase type %q", session.Metadata["type"]))
	}

	customerRef := ""
	if session.Customer != nil {
		customerRef = session.Customer.ID
	}

	applied, err := v.reconciler.ApplyPurchase(ctx, sessionID, fingerprint, kind, customerRef, ChannelVerify)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{
		Verified:         true,
		Type:             string(kind),
		AlreadyProcessed: !applied,
	}, nil
}
