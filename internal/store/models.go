package store

import "time"

// Plan is a subscription tier.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// MoreGenerous returns the higher of two plans. Merges never downgrade: a
// pro identity stays pro regardless of what the other side carries.
func (p Plan) MoreGenerous(other Plan) Plan {
	if p == PlanPro || other == PlanPro {
		return PlanPro
	}
	return PlanFree
}

// PurchaseKind is the tagged variant for purchase-completion events, parsed
// and validated once at the boundary.
type PurchaseKind string

const (
	PurchaseSingle PurchaseKind = "single"
	PurchasePro    PurchaseKind = "pro"
)

// Valid reports whether k is a known purchase kind.
func (k PurchaseKind) Valid() bool {
	return k == PurchaseSingle || k == PurchasePro
}

// User is the per-fingerprint entitlement record. Counters are monotonically
// non-decreasing; the row is created lazily on first contact and never
// deleted.
type User struct {
	Fingerprint            string    `json:"fingerprint"`
	Email                  string    `json:"email,omitempty"`
	Plan                   Plan      `json:"plan"`
	ReportsUsed            int       `json:"reports_used"`
	SingleReportsPurchased int       `json:"single_reports_purchased"`
	StripeCustomerID       string    `json:"stripe_customer_id,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// Account is an authenticated entity keyed by email.
type Account struct {
	Email            string    `json:"email"`
	PasswordHash     string    `json:"-"`
	Name             string    `json:"name,omitempty"`
	Company          string    `json:"company,omitempty"`
	Plan             Plan      `json:"plan"`
	StripeCustomerID string    `json:"stripe_customer_id,omitempty"`
	Fingerprint      string    `json:"fingerprint,omitempty"` // latest device seen
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Report is a generated condition report.
type Report struct {
	ID           string    `json:"id"`
	Fingerprint  string    `json:"fingerprint"`
	Email        string    `json:"email,omitempty"`
	ReportType   string    `json:"report_type"`
	PropertyInfo string    `json:"property_info"` // JSON object
	Rooms        string    `json:"rooms"`         // JSON array
	PDFPath      string    `json:"pdf_path"`
	CreatedAt    time.Time `json:"created_at"`
}

// ShareToken maps an opaque token to a report for link sharing.
type ShareToken struct {
	Token       string    `json:"token"`
	ReportID    string    `json:"report_id"`
	Fingerprint string    `json:"fingerprint"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProcessedEvent records a purchase-completion event that has been applied.
// Write-once: the row is the sole mechanism preventing double-crediting.
type ProcessedEvent struct {
	EventID     string       `json:"event_id"`
	Fingerprint string       `json:"fingerprint"`
	Kind        PurchaseKind `json:"purchase_kind"`
	ProcessedAt time.Time    `json:"processed_at"`
}
