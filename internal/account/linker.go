package account

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	svcerr "github.com/lego3072/rentready-ai/internal/errors"
	"github.com/lego3072/rentready-ai/internal/store"
)

// ProLookup checks the billing provider for an active pro subscription
// belonging to email. Nil disables self-healing.
type ProLookup func(ctx context.Context, email string) (customerRef string, active bool)

// Service links anonymous device fingerprints to email accounts and keeps
// the entitlement plan consistent across both.
type Service struct {
	store        *store.Store
	lookupProSub ProLookup
}

// NewService creates the account service. lookupProSub may be nil when
// billing is not configured.
func NewService(st *store.Store, lookupProSub ProLookup) *Service {
	return &Service{store: st, lookupProSub: lookupProSub}
}

// SignupRequest carries the signup form fields.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Session is what signup and login hand back to the client.
type Session struct {
	Success bool       `json:"success"`
	Email   string     `json:"email"`
	Name    string     `json:"name"`
	Company string     `json:"company,omitempty"`
	Plan    store.Plan `json:"plan"`
}

// Signup creates a new account and links the calling device to it. An
// existing user record for the fingerprint keeps its purchase history; the
// account inherits the more generous of the stored plan and whatever the
// billing provider reports for the email.
func (s *Service) Signup(ctx context.Context, fingerprint string, req SignupRequest) (*Session, error) {
	const op = "account.Signup"

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, svcerr.New(svcerr.KindBadRequest, op, fmt.Errorf("valid email required"))
	}
	if err := ValidatePassword(req.Password); err != nil {
		return nil, svcerr.New(svcerr.KindBadRequest, op, err)
	}

	existing, err := s.store.GetAccount(ctx, email)
	if err != nil {
		return nil, svcerr.Unavailable(op, err)
	}
	if existing != nil {
		return nil, svcerr.New(svcerr.KindConflict, op, fmt.Errorf("account already exists"))
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, svcerr.Unavailable(op, err)
	}

	// Preserve purchase history accumulated before the account existed.
	plan := store.PlanFree
	customerRef := ""
	if user, err := s.store.GetUser(ctx, fingerprint); err == nil && user != nil {
		plan = user.Plan
		customerRef = user.StripeCustomerID
	}

	if ref, active := s.checkProSubscription(ctx, email); active {
		plan = store.PlanPro
		customerRef = ref
	}

	acct := &store.Account{
		Email:            email,
		PasswordHash:     hash,
		Name:             strings.TrimSpace(req.Name),
		Plan:             plan,
		StripeCustomerID: customerRef,
		Fingerprint:      fingerprint,
	}
	if err := s.store.CreateAccount(ctx, acct); err != nil {
		// Lost a race with a concurrent signup for the same email.
		return nil, svcerr.New(svcerr.KindConflict, op, fmt.Errorf("account already exists"))
	}

	if err := s.store.LinkUserToAccount(ctx, fingerprint, email, plan, customerRef); err != nil {
		return nil, svcerr.Unavailable(op, err)
	}
	if err := s.store.LinkAccount(ctx, email, fingerprint); err != nil {
		return nil, svcerr.Unavailable(op, err)
	}

	log.Info().Str("email", email).Str("plan", string(plan)).Msg("account created")
	return &Session{Success: true, Email: email, Name: acct.Name, Plan: plan}, nil
}

// Login verifies credentials and links the calling device to the account.
// A credential stored under the legacy hash scheme is verified against it
// and transparently rewritten as bcrypt. The device's entitlement plan is
// merged by generosity: logging in can upgrade free to pro, never the
// reverse.
func (s *Service) Login(ctx context.Context, fingerprint, email, password string) (*Session, error) {
	const op = "account.Login"

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, svcerr.New(svcerr.KindBadRequest, op, fmt.Errorf("email and password required"))
	}

	acct, err := s.store.GetAccount(ctx, email)
	if err != nil {
		return nil, svcerr.Unavailable(op, err)
	}
	if acct == nil {
		// Same response for unknown email and wrong password.
		return nil, svcerr.Unauthorized(op)
	}

	if IsLegacyHash(acct.PasswordHash) {
		if !CheckLegacyHash(password, acct.PasswordHash) {
			return nil, svcerr.Unauthorized(op)
		}
		if newHash, err := HashPassword(password); err == nil {
			if err := s.store.UpdateAccountPassword(ctx, email, newHash); err != nil {
				log.Warn().Err(err).Str("email", email).Msg("legacy hash upgrade failed")
			} else {
				log.Info().Str("email", email).Msg("password hash upgraded to bcrypt")
			}
		}
	} else if !CheckPasswordHash(password, acct.PasswordHash) {
		return nil, svcerr.Unauthorized(op)
	}

	plan := acct.Plan
	customerRef := acct.StripeCustomerID
	if plan != store.PlanPro {
		if ref, active := s.checkProSubscription(ctx, email); active {
			plan = store.PlanPro
			customerRef = ref
			if err := s.store.UpdateAccountPlan(ctx, email, store.PlanPro, ref); err != nil {
				log.Warn().Err(err).Str("email", email).Msg("plan self-heal write failed")
			}
		}
	}

	if err := s.store.LinkUserToAccount(ctx, fingerprint, email, plan, customerRef); err != nil {
		return nil, svcerr.Unavailable(op, err)
	}
	if err := s.store.SetAccountFingerprint(ctx, email, fingerprint); err != nil {
		return nil, svcerr.Unavailable(op, err)
	}
	if err := s.store.LinkAccount(ctx, email, fingerprint); err != nil {
		return nil, svcerr.Unavailable(op, err)
	}

	log.Info().Str("email", email).Str("plan", string(plan)).Msg("login")
	return &Session{Success: true, Email: email, Name: acct.Name, Company: acct.Company, Plan: plan}, nil
}

// Profile is the account view for a device.
type Profile struct {
	LoggedIn               bool       `json:"logged_in"`
	Email                  string     `json:"email,omitempty"`
	Name                   string     `json:"name,omitempty"`
	Company                string     `json:"company,omitempty"`
	Plan                   store.Plan `json:"plan,omitempty"`
	ReportsGenerated       int        `json:"reports_generated,omitempty"`
	ReportsUsed            int        `json:"reports_used,omitempty"`
	SingleReportsPurchased int        `json:"single_reports_purchased,omitempty"`
	MemberSince            string     `json:"member_since,omitempty"`
	HasSubscription        bool       `json:"has_subscription,omitempty"`
}

// GetProfile resolves the account behind a device fingerprint: the directly
// linked account first, then the most recent link row. Report counts are
// aggregated across every device linked to the account.
func (s *Service) GetProfile(ctx context.Context, fingerprint string) (*Profile, error) {
	const op = "account.GetProfile"

	acct, err := s.store.GetAccountByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, svcerr.Unavailable(op, err)
	}
	if acct == nil {
		acct, err = s.store.GetNewestLinkedAccount(ctx, fingerprint)
		if err != nil {
			return nil, svcerr.Unavailable(op, err)
		}
	}
	if acct == nil {
		return &Profile{LoggedIn: false}, nil
	}

	reportCount, err := s.store.CountReportsForAccount(ctx, acct.Email, fingerprint)
	if err != nil {
		return nil, svcerr.Unavailable(op, err)
	}

	reportsUsed, singlePurchased := 0, 0
	if user, err := s.store.GetUser(ctx, fingerprint); err == nil && user != nil {
		reportsUsed = user.ReportsUsed
		singlePurchased = user.SingleReportsPurchased
	}

	return &Profile{
		LoggedIn:               true,
		Email:                  acct.Email,
		Name:                   acct.Name,
		Company:                acct.Company,
		Plan:                   acct.Plan,
		ReportsGenerated:       reportCount,
		ReportsUsed:            reportsUsed,
		SingleReportsPurchased: singlePurchased,
		MemberSince:            acct.CreatedAt.Format("January 2006"),
		HasSubscription:        acct.Plan == store.PlanPro,
	}, nil
}

// UpdateProfile sets the name and company of the account behind fingerprint.
func (s *Service) UpdateProfile(ctx context.Context, fingerprint, name, company string) error {
	const op = "account.UpdateProfile"
	if err := s.store.UpdateAccountProfile(ctx, fingerprint, strings.TrimSpace(name), strings.TrimSpace(company)); err != nil {
		return svcerr.Unavailable(op, err)
	}
	return nil
}

func (s *Service) checkProSubscription(ctx context.Context, email string) (string, bool) {
	if s.lookupProSub == nil {
		return "", false
	}
	return s.lookupProSub(ctx, email)
}
