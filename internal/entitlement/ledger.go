// Package entitlement decides whether an identity may generate another
// report and maintains the per-identity usage counters.
package entitlement

import (
	"context"
	"time"

	svcerr "github.com/lego3072/rentready-ai/internal/errors"
	"github.com/lego3072/rentready-ai/internal/store"
	"github.com/rs/zerolog/log"
)

// FreeTrialMaxRooms caps the room count on the single free-trial report.
const FreeTrialMaxRooms = 4

// Reason explains an access decision.
type Reason string

const (
	ReasonPro            Reason = "pro"
	ReasonFreeTrial      Reason = "free_trial"
	ReasonSinglePurchase Reason = "single_purchase"
	ReasonLimitReached   Reason = "limit_reached"
)

// Decision is the verdict for one report-generation attempt.
type Decision struct {
	Allowed   bool   `json:"allowed"`
	Reason    Reason `json:"reason"`
	Remaining int    `json:"remaining,omitempty"`
	MaxRooms  int    `json:"max_rooms,omitempty"`
}

// Ledger reads and mutates entitlement records.
type Ledger struct {
	store *store.Store
}

// NewLedger creates a ledger over the given store.
func NewLedger(s *store.Store) *Ledger {
	return &Ledger{store: s}
}

// GetOrCreate returns the entitlement record for fingerprint, durably
// creating a zeroed free record on first contact.
//
// Reads fail open: if storage is unreachable the caller gets trial
// defaults rather than an error, trading a bounded abuse risk for
// availability. Writes elsewhere in this package fail closed.
func (l *Ledger) GetOrCreate(ctx context.Context, fingerprint string) *store.User {
	u, err := l.store.EnsureUser(ctx, fingerprint)
	if err == nil && u != nil {
		return u
	}
	if err != nil {
		log.Error().Err(err).Str("fingerprint", fingerprint).Msg("entitlement read failed, serving trial defaults")
	}
	now := time.Now().UTC()
	return &store.User{
		Fingerprint: fingerprint,
		Plan:        store.PlanFree,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CheckAccess turns an entitlement record into an allow/deny verdict.
// Pure function of the record; no side effects.
func CheckAccess(u *store.User) Decision {
	if u.Plan == store.PlanPro {
		return Decision{Allowed: true, Reason: ReasonPro}
	}

	// One free-trial report per identity, with a reduced room ceiling.
	// The trial remains coupled to reports_used == 0: consumption is never
	// decremented, so the coupling is sound.
	if u.ReportsUsed == 0 {
		return Decision{Allowed: true, Reason: ReasonFreeTrial, MaxRooms: FreeTrialMaxRooms}
	}

	// The -1 accounts for the free-trial report consumed before any
	// purchase was required.
	remaining := u.SingleReportsPurchased - (u.ReportsUsed - 1)
	if remaining > 0 {
		return Decision{Allowed: true, Reason: ReasonSinglePurchase, Remaining: remaining}
	}
	return Decision{Allowed: false, Reason: ReasonLimitReached}
}

// RecordConsumption atomically increments reports_used. Invoked by the
// report flow only after a report artifact has been durably produced, so a
// failed attempt is never charged.
func (l *Ledger) RecordConsumption(ctx context.Context, fingerprint string) error {
	if err := l.store.IncrementReportsUsed(ctx, fingerprint); err != nil {
		return svcerr.Unavailable("record_consumption", err)
	}
	return nil
}

// CreditSinglePurchase atomically increments single_reports_purchased.
func (l *Ledger) CreditSinglePurchase(ctx context.Context, fingerprint string) error {
	if err := l.store.IncrementSinglePurchases(ctx, fingerprint); err != nil {
		return svcerr.Unavailable("credit_single_purchase", err)
	}
	return nil
}

// SetPlan sets the identity's plan and optionally its billing customer
// reference. Callers use this only to upgrade or on explicit cancellation;
// it never downgrades as a side effect of an unrelated update.
func (l *Ledger) SetPlan(ctx context.Context, fingerprint string, plan store.Plan, customerRef string) error {
	if err := l.store.SetUserPlan(ctx, fingerprint, plan, customerRef); err != nil {
		return svcerr.Unavailable("set_plan", err)
	}
	return nil
}

// DowngradeByCustomerRef sets plan=free on every record carrying the given
// billing customer reference. Used by the cancellation path only;
// idempotent by nature.
func (l *Ledger) DowngradeByCustomerRef(ctx context.Context, customerRef string) (int64, error) {
	n, err := l.store.DowngradeByCustomerRef(ctx, customerRef)
	if err != nil {
		return n, svcerr.Unavailable("downgrade_by_customer_ref", err)
	}
	return n, nil
}
