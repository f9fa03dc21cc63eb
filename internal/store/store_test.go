package store

import (
	"context"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEnsureUserCreatesOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.EnsureUser(ctx, "fp1")
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if u.Plan != PlanFree || u.ReportsUsed != 0 || u.SingleReportsPurchased != 0 {
		t.Errorf("fresh user = %+v, want zeroed free record", u)
	}

	// Second contact returns the same row, not a divergent one.
	if err := s.IncrementReportsUsed(ctx, "fp1"); err != nil {
		t.Fatalf("IncrementReportsUsed: %v", err)
	}
	u2, err := s.EnsureUser(ctx, "fp1")
	if err != nil {
		t.Fatalf("EnsureUser second contact: %v", err)
	}
	if u2.ReportsUsed != 1 {
		t.Errorf("ReportsUsed = %d, want 1 (existing row preserved)", u2.ReportsUsed)
	}
}

func TestCountersAreAtomicIncrements(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.EnsureUser(ctx, "fp1"); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if err := s.IncrementSinglePurchases(ctx, "fp1"); err != nil {
			t.Fatalf("IncrementSinglePurchases: %v", err)
		}
	}
	u, _ := s.GetUser(ctx, "fp1")
	if u.SingleReportsPurchased != 3 {
		t.Errorf("SingleReportsPurchased = %d, want 3", u.SingleReportsPurchased)
	}
}

func TestIncrementUnknownUserFails(t *testing.T) {
	s := newTestStore(t)
	if err := s.IncrementReportsUsed(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error for unknown fingerprint")
	}
}

func TestClaimEventExactlyOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.ClaimEvent(ctx, "evt_1", "fp1", PurchaseSingle)
	if err != nil {
		t.Fatalf("ClaimEvent: %v", err)
	}
	if !first {
		t.Fatal("first claim must win")
	}
	second, err := s.ClaimEvent(ctx, "evt_1", "fp1", PurchaseSingle)
	if err != nil {
		t.Fatalf("ClaimEvent duplicate: %v", err)
	}
	if second {
		t.Fatal("duplicate claim must lose")
	}

	e, err := s.GetProcessedEvent(ctx, "evt_1")
	if err != nil || e == nil {
		t.Fatalf("GetProcessedEvent: %v, %v", e, err)
	}
	if e.Kind != PurchaseSingle || e.Fingerprint != "fp1" {
		t.Errorf("processed event = %+v", e)
	}
}

func TestClaimEventConcurrentSingleWinner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const callers = 16
	var wg sync.WaitGroup
	wins := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.ClaimEvent(ctx, "evt_race", "fp1", PurchasePro)
			if err != nil {
				t.Errorf("ClaimEvent: %v", err)
				return
			}
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	var winners int
	for ok := range wins {
		if ok {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
}

func TestLinkUserToAccountNeverDowngradesPro(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.EnsureUser(ctx, "fp-pro"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUserPlan(ctx, "fp-pro", PlanPro, "cus_1"); err != nil {
		t.Fatal(err)
	}

	// Merge in a free account: the row stays pro.
	if err := s.LinkUserToAccount(ctx, "fp-pro", "e@x.com", PlanFree, ""); err != nil {
		t.Fatalf("LinkUserToAccount: %v", err)
	}
	u, _ := s.GetUser(ctx, "fp-pro")
	if u.Plan != PlanPro {
		t.Errorf("plan = %q, merge must not downgrade pro", u.Plan)
	}
	if u.Email != "e@x.com" {
		t.Errorf("email = %q, want linked email", u.Email)
	}
	if u.StripeCustomerID != "cus_1" {
		t.Errorf("customer ref = %q, empty merge value must not clear it", u.StripeCustomerID)
	}

	// A fresh device merging in a pro account becomes pro.
	if err := s.LinkUserToAccount(ctx, "fp-new", "e@x.com", PlanPro, "cus_1"); err != nil {
		t.Fatal(err)
	}
	u2, _ := s.GetUser(ctx, "fp-new")
	if u2.Plan != PlanPro {
		t.Errorf("new device plan = %q, want pro", u2.Plan)
	}
}

func TestDowngradeByCustomerRef(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.EnsureUser(ctx, "fp1"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUserPlan(ctx, "fp1", PlanPro, "cus_9"); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateAccount(ctx, &Account{Email: "e@x.com", PasswordHash: "h", Plan: PlanPro, StripeCustomerID: "cus_9"}); err != nil {
		t.Fatal(err)
	}

	n, err := s.DowngradeByCustomerRef(ctx, "cus_9")
	if err != nil {
		t.Fatalf("DowngradeByCustomerRef: %v", err)
	}
	if n != 2 {
		t.Errorf("rows touched = %d, want 2", n)
	}
	u, _ := s.GetUser(ctx, "fp1")
	a, _ := s.GetAccount(ctx, "e@x.com")
	if u.Plan != PlanFree || a.Plan != PlanFree {
		t.Errorf("plans after cancel = %q / %q, want free/free", u.Plan, a.Plan)
	}

	// Re-applying is harmless.
	if _, err := s.DowngradeByCustomerRef(ctx, "cus_9"); err != nil {
		t.Fatalf("second downgrade: %v", err)
	}
}

func TestCreateAccountRejectsDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateAccount(ctx, &Account{Email: "dup@x.com", PasswordHash: "h"}); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateAccount(ctx, &Account{Email: "dup@x.com", PasswordHash: "h2"}); err == nil {
		t.Fatal("expected uniqueness violation for duplicate email")
	}
}

func TestAccountLinksAndAggregation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateAccount(ctx, &Account{Email: "e@x.com", PasswordHash: "h"}); err != nil {
		t.Fatal(err)
	}
	for _, fp := range []string{"dev1", "dev2"} {
		if err := s.LinkAccount(ctx, "e@x.com", fp); err != nil {
			t.Fatalf("LinkAccount(%s): %v", fp, err)
		}
	}
	// Duplicate link is a no-op.
	if err := s.LinkAccount(ctx, "e@x.com", "dev1"); err != nil {
		t.Fatal(err)
	}
	fps, err := s.LinkedFingerprints(ctx, "e@x.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(fps) != 2 {
		t.Errorf("linked fingerprints = %v, want 2", fps)
	}

	for i, fp := range []string{"dev1", "dev2", "dev3"} {
		r := &Report{ID: string(rune('a' + i)), Fingerprint: fp, ReportType: "Move-In"}
		if err := s.CreateReport(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	// dev3 is unlinked but is the requesting device.
	count, err := s.CountReportsForAccount(ctx, "e@x.com", "dev3")
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("aggregated report count = %d, want 3", count)
	}
}

func TestNewestLinkedAccountFallback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateAccount(ctx, &Account{Email: "old@x.com", PasswordHash: "h"}); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateAccount(ctx, &Account{Email: "new@x.com", PasswordHash: "h"}); err != nil {
		t.Fatal(err)
	}
	if err := s.LinkAccount(ctx, "old@x.com", "dev1"); err != nil {
		t.Fatal(err)
	}
	if err := s.LinkAccount(ctx, "new@x.com", "dev1"); err != nil {
		t.Fatal(err)
	}

	// No direct fingerprint link on either account.
	if a, _ := s.GetAccountByFingerprint(ctx, "dev1"); a != nil {
		t.Fatal("expected no direct link")
	}
	a, err := s.GetNewestLinkedAccount(ctx, "dev1")
	if err != nil || a == nil {
		t.Fatalf("GetNewestLinkedAccount: %v, %v", a, err)
	}
	if a.Email != "new@x.com" {
		t.Errorf("fallback picked %q, want newest link", a.Email)
	}
}

func TestShareTokenLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tok := &ShareToken{
		Token:       "tok1",
		ReportID:    "r1",
		Fingerprint: "fp1",
		ExpiresAt:   time.Now().Add(-time.Hour).UTC(),
	}
	if err := s.SaveShareToken(ctx, tok); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetShareToken(ctx, "tok1")
	if err != nil || got == nil {
		t.Fatalf("GetShareToken: %v, %v", got, err)
	}

	n, err := s.PurgeExpiredShareTokens(ctx, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}
	if got, _ := s.GetShareToken(ctx, "tok1"); got != nil {
		t.Error("token should be gone after purge")
	}
}

func TestPlanMoreGenerous(t *testing.T) {
	if PlanFree.MoreGenerous(PlanPro) != PlanPro {
		t.Error("free+pro should merge to pro")
	}
	if PlanPro.MoreGenerous(PlanFree) != PlanPro {
		t.Error("pro+free should merge to pro")
	}
	if PlanFree.MoreGenerous(PlanFree) != PlanFree {
		t.Error("free+free should stay free")
	}
}
