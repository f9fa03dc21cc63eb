// Package store persists entitlement records, accounts, reports, and the
// processed-payment-event log in SQLite. Every conditional-write guarantee
// the ledger and reconciler rely on (insert-if-absent, atomic increment) is
// enforced here by uniqueness constraints, not by process memory.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store provides CRUD operations backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the service database in dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	dbPath := filepath.Join(dir, "rentready.db")
	dsn := dbPath + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(30000)",
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
		},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		fingerprint              TEXT PRIMARY KEY,
		email                    TEXT NOT NULL DEFAULT '',
		plan                     TEXT NOT NULL DEFAULT 'free',
		reports_used             INTEGER NOT NULL DEFAULT 0,
		single_reports_purchased INTEGER NOT NULL DEFAULT 0,
		stripe_customer_id       TEXT NOT NULL DEFAULT '',
		created_at               INTEGER NOT NULL,
		updated_at               INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email) WHERE email != '';
	CREATE INDEX IF NOT EXISTS idx_users_stripe_customer_id ON users(stripe_customer_id);

	CREATE TABLE IF NOT EXISTS accounts (
		email              TEXT PRIMARY KEY,
		password_hash      TEXT NOT NULL,
		name               TEXT NOT NULL DEFAULT '',
		company            TEXT NOT NULL DEFAULT '',
		plan               TEXT NOT NULL DEFAULT 'free',
		stripe_customer_id TEXT NOT NULL DEFAULT '',
		fingerprint        TEXT NOT NULL DEFAULT '',
		created_at         INTEGER NOT NULL,
		updated_at         INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_accounts_fingerprint ON accounts(fingerprint);
	CREATE INDEX IF NOT EXISTS idx_accounts_stripe_customer_id ON accounts(stripe_customer_id);

	CREATE TABLE IF NOT EXISTS account_links (
		email       TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		created_at  INTEGER NOT NULL,
		UNIQUE(email, fingerprint)
	);
	CREATE INDEX IF NOT EXISTS idx_account_links_fingerprint ON account_links(fingerprint);

	CREATE TABLE IF NOT EXISTS processed_events (
		event_id      TEXT PRIMARY KEY,
		fingerprint   TEXT NOT NULL,
		purchase_kind TEXT NOT NULL,
		processed_at  INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS share_tokens (
		token       TEXT PRIMARY KEY,
		report_id   TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		expires_at  INTEGER NOT NULL,
		created_at  INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_share_tokens_expires ON share_tokens(expires_at);

	CREATE TABLE IF NOT EXISTS reports (
		id            TEXT PRIMARY KEY,
		fingerprint   TEXT NOT NULL,
		email         TEXT NOT NULL DEFAULT '',
		report_type   TEXT NOT NULL DEFAULT '',
		property_info TEXT NOT NULL DEFAULT '{}',
		rooms         TEXT NOT NULL DEFAULT '[]',
		pdf_path      TEXT NOT NULL DEFAULT '',
		created_at    INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_fingerprint ON reports(fingerprint);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init store schema: %w", err)
	}
	return nil
}

// Ping checks database connectivity (used for readiness probes).
func (s *Store) Ping() error {
	return s.db.Ping()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// --- Users (entitlement records) ---

// EnsureUser durably creates the entitlement record for fingerprint if it
// does not exist and returns the current row. Safe under concurrent first
// contact: the insert is conflict-ignored, so concurrent creators converge
// on a single row.
func (s *Store) EnsureUser(ctx context.Context, fingerprint string) (*User, error) {
	now := time.Now().UTC().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (fingerprint, created_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(fingerprint) DO NOTHING`,
		fingerprint, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	return s.GetUser(ctx, fingerprint)
}

// GetUser retrieves the entitlement record, or (nil, nil) if absent.
func (s *Store) GetUser(ctx context.Context, fingerprint string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT
		fingerprint, email, plan, reports_used, single_reports_purchased,
		stripe_customer_id, created_at, updated_at
		FROM users WHERE fingerprint = ?`, fingerprint)
	return scanUser(row)
}

// IncrementReportsUsed atomically bumps the consumption counter.
func (s *Store) IncrementReportsUsed(ctx context.Context, fingerprint string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET reports_used = reports_used + 1, updated_at = ?
		WHERE fingerprint = ?`,
		time.Now().UTC().Unix(), fingerprint,
	)
	if err != nil {
		return fmt.Errorf("increment reports used: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("increment reports used: user %q not found", fingerprint)
	}
	return nil
}

// IncrementSinglePurchases atomically bumps the purchased-report counter.
func (s *Store) IncrementSinglePurchases(ctx context.Context, fingerprint string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET single_reports_purchased = single_reports_purchased + 1, updated_at = ?
		WHERE fingerprint = ?`,
		time.Now().UTC().Unix(), fingerprint,
	)
	if err != nil {
		return fmt.Errorf("increment single purchases: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("increment single purchases: user %q not found", fingerprint)
	}
	return nil
}

// SetUserPlan sets the plan and, when customerRef is non-empty, the billing
// customer reference.
func (s *Store) SetUserPlan(ctx context.Context, fingerprint string, plan Plan, customerRef string) error {
	now := time.Now().UTC().Unix()
	var err error
	if customerRef != "" {
		_, err = s.db.ExecContext(ctx, `
			UPDATE users SET plan = ?, stripe_customer_id = ?, updated_at = ?
			WHERE fingerprint = ?`,
			string(plan), customerRef, now, fingerprint)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE users SET plan = ?, updated_at = ?
			WHERE fingerprint = ?`,
			string(plan), now, fingerprint)
	}
	if err != nil {
		return fmt.Errorf("set user plan: %w", err)
	}
	return nil
}

// LinkUserToAccount writes the account email onto the user row and merges
// the plan by maximum. The row is created if this device has never been
// seen before. A pro row is never moved to free here.
func (s *Store) LinkUserToAccount(ctx context.Context, fingerprint, email string, plan Plan, customerRef string) error {
	now := time.Now().UTC().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (fingerprint, email, plan, stripe_customer_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			email = excluded.email,
			plan = CASE WHEN users.plan = 'pro' THEN 'pro' ELSE excluded.plan END,
			stripe_customer_id = CASE WHEN excluded.stripe_customer_id != ''
				THEN excluded.stripe_customer_id ELSE users.stripe_customer_id END,
			updated_at = excluded.updated_at`,
		fingerprint, email, string(plan), customerRef, now, now,
	)
	if err != nil {
		return fmt.Errorf("link user to account: %w", err)
	}
	return nil
}

// DowngradeByCustomerRef sets plan=free on every user and account carrying
// the given billing customer reference. Idempotent; returns the number of
// rows touched across both tables.
func (s *Store) DowngradeByCustomerRef(ctx context.Context, customerRef string) (int64, error) {
	now := time.Now().UTC().Unix()
	var total int64
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET plan = 'free', updated_at = ?
		WHERE stripe_customer_id = ?`, now, customerRef)
	if err != nil {
		return 0, fmt.Errorf("downgrade users: %w", err)
	}
	n, _ := res.RowsAffected()
	total += n

	res, err = s.db.ExecContext(ctx, `
		UPDATE accounts SET plan = 'free', updated_at = ?
		WHERE stripe_customer_id = ?`, now, customerRef)
	if err != nil {
		return total, fmt.Errorf("downgrade accounts: %w", err)
	}
	n, _ = res.RowsAffected()
	return total + n, nil
}

// --- Processed payment events ---

// ClaimEvent attempts to durably record eventID as processed. Returns true
// iff this call inserted the row; concurrent and repeat claims on the same
// id observe the primary-key conflict and get false. Exactly one caller
// ever wins a given id.
func (s *Store) ClaimEvent(ctx context.Context, eventID, fingerprint string, kind PurchaseKind) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO processed_events (event_id, fingerprint, purchase_kind, processed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING`,
		eventID, fingerprint, string(kind), time.Now().UTC().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("claim event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim event rows: %w", err)
	}
	return n > 0, nil
}

// ApplyPurchaseEvent claims eventID and applies the matching credit in one
// transaction, so a crash can never strand a claimed-but-uncredited event.
// Returns true iff this call won the claim and applied the credit; a
// duplicate event id commits nothing and returns false.
func (s *Store) ApplyPurchaseEvent(ctx context.Context, eventID, fingerprint string, kind PurchaseKind, customerRef string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin apply purchase: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Unix()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO processed_events (event_id, fingerprint, purchase_kind, processed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING`,
		eventID, fingerprint, string(kind), now,
	)
	if err != nil {
		return false, fmt.Errorf("claim event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil // already applied; nothing to do
	}

	// First contact may arrive through a payment event.
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO users (fingerprint, created_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(fingerprint) DO NOTHING`,
		fingerprint, now, now,
	); err != nil {
		return false, fmt.Errorf("ensure user: %w", err)
	}

	switch kind {
	case PurchaseSingle:
		_, err = tx.ExecContext(ctx, `
			UPDATE users SET single_reports_purchased = single_reports_purchased + 1, updated_at = ?
			WHERE fingerprint = ?`, now, fingerprint)
	case PurchasePro:
		if customerRef != "" {
			_, err = tx.ExecContext(ctx, `
				UPDATE users SET plan = 'pro', stripe_customer_id = ?, updated_at = ?
				WHERE fingerprint = ?`, customerRef, now, fingerprint)
		} else {
			_, err = tx.ExecContext(ctx, `
				UPDATE users SET plan = 'pro', updated_at = ?
				WHERE fingerprint = ?`, now, fingerprint)
		}
	default:
		return false, fmt.Errorf("apply purchase: unknown kind %q", kind)
	}
	if err != nil {
		return false, fmt.Errorf("apply %s credit: %w", kind, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit apply purchase: %w", err)
	}
	return true, nil
}

// GetProcessedEvent returns the processed-event row, or (nil, nil) if the
// event has never been claimed.
func (s *Store) GetProcessedEvent(ctx context.Context, eventID string) (*ProcessedEvent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT event_id, fingerprint, purchase_kind, processed_at
		FROM processed_events WHERE event_id = ?`, eventID)
	var e ProcessedEvent
	var kind string
	var processedAt int64
	if err := row.Scan(&e.EventID, &e.Fingerprint, &kind, &processedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan processed event: %w", err)
	}
	e.Kind = PurchaseKind(kind)
	e.ProcessedAt = time.Unix(processedAt, 0).UTC()
	return &e, nil
}

// --- Accounts ---

// CreateAccount inserts a new account. The email uniqueness constraint
// rejects duplicates.
func (s *Store) CreateAccount(ctx context.Context, a *Account) error {
	if a == nil {
		return fmt.Errorf("account is nil")
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	if a.Plan == "" {
		a.Plan = PlanFree
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (email, password_hash, name, company, plan, stripe_customer_id, fingerprint, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Email, a.PasswordHash, a.Name, a.Company, string(a.Plan),
		a.StripeCustomerID, a.Fingerprint, a.CreatedAt.Unix(), a.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// GetAccount retrieves an account by email, or (nil, nil) if absent.
func (s *Store) GetAccount(ctx context.Context, email string) (*Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT
		email, password_hash, name, company, plan, stripe_customer_id, fingerprint, created_at, updated_at
		FROM accounts WHERE email = ?`, email)
	return scanAccount(row)
}

// GetAccountByFingerprint retrieves the account directly linked to a device.
func (s *Store) GetAccountByFingerprint(ctx context.Context, fingerprint string) (*Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT
		email, password_hash, name, company, plan, stripe_customer_id, fingerprint, created_at, updated_at
		FROM accounts WHERE fingerprint = ?`, fingerprint)
	return scanAccount(row)
}

// GetNewestLinkedAccount falls back to the most recently created link row
// for devices that logged in before the direct fingerprint column existed.
func (s *Store) GetNewestLinkedAccount(ctx context.Context, fingerprint string) (*Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT
		a.email, a.password_hash, a.name, a.company, a.plan, a.stripe_customer_id, a.fingerprint, a.created_at, a.updated_at
		FROM account_links l
		JOIN accounts a ON a.email = l.email
		WHERE l.fingerprint = ?
		ORDER BY l.created_at DESC, l.rowid DESC LIMIT 1`, fingerprint)
	return scanAccount(row)
}

// UpdateAccountPassword replaces the stored credential hash.
func (s *Store) UpdateAccountPassword(ctx context.Context, email, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET password_hash = ?, updated_at = ? WHERE email = ?`,
		passwordHash, time.Now().UTC().Unix(), email)
	if err != nil {
		return fmt.Errorf("update account password: %w", err)
	}
	return nil
}

// UpdateAccountPlan sets the account plan and billing customer reference.
func (s *Store) UpdateAccountPlan(ctx context.Context, email string, plan Plan, customerRef string) error {
	now := time.Now().UTC().Unix()
	var err error
	if customerRef != "" {
		_, err = s.db.ExecContext(ctx, `
			UPDATE accounts SET plan = ?, stripe_customer_id = ?, updated_at = ? WHERE email = ?`,
			string(plan), customerRef, now, email)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE accounts SET plan = ?, updated_at = ? WHERE email = ?`,
			string(plan), now, email)
	}
	if err != nil {
		return fmt.Errorf("update account plan: %w", err)
	}
	return nil
}

// SetAccountFingerprint points the account at the latest device seen.
func (s *Store) SetAccountFingerprint(ctx context.Context, email, fingerprint string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET fingerprint = ?, updated_at = ? WHERE email = ?`,
		fingerprint, time.Now().UTC().Unix(), email)
	if err != nil {
		return fmt.Errorf("set account fingerprint: %w", err)
	}
	return nil
}

// UpdateAccountProfile updates display attributes for the account linked to
// the given device.
func (s *Store) UpdateAccountProfile(ctx context.Context, fingerprint, name, company string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET name = ?, company = ?, updated_at = ? WHERE fingerprint = ?`,
		name, company, time.Now().UTC().Unix(), fingerprint)
	if err != nil {
		return fmt.Errorf("update account profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update account profile: no account for device")
	}
	return nil
}

// LinkAccount records an (email, fingerprint) pair, insert-if-absent.
func (s *Store) LinkAccount(ctx context.Context, email, fingerprint string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_links (email, fingerprint, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(email, fingerprint) DO NOTHING`,
		email, fingerprint, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("link account: %w", err)
	}
	return nil
}

// LinkedFingerprints returns every device fingerprint linked to an email.
func (s *Store) LinkedFingerprints(ctx context.Context, email string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT fingerprint FROM account_links WHERE email = ?`, email)
	if err != nil {
		return nil, fmt.Errorf("linked fingerprints: %w", err)
	}
	defer rows.Close()

	var fps []string
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("scan linked fingerprint: %w", err)
		}
		fps = append(fps, fp)
	}
	return fps, rows.Err()
}

// CountReportsForAccount counts reports across every device linked to the
// account email, plus the requesting device itself.
func (s *Store) CountReportsForAccount(ctx context.Context, email, fingerprint string) (int, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reports
		WHERE fingerprint IN (SELECT fingerprint FROM account_links WHERE email = ?)
		   OR fingerprint = ?`, email, fingerprint)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count reports for account: %w", err)
	}
	return count, nil
}

// --- Reports ---

// CreateReport persists a generated report; duplicate ids are ignored.
func (s *Store) CreateReport(ctx context.Context, r *Report) error {
	if r == nil {
		return fmt.Errorf("report is nil")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (id, fingerprint, email, report_type, property_info, rooms, pdf_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		r.ID, r.Fingerprint, r.Email, r.ReportType, r.PropertyInfo, r.Rooms, r.PDFPath, r.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

// GetReport retrieves a report by id, or (nil, nil) if absent.
func (s *Store) GetReport(ctx context.Context, id string) (*Report, error) {
	row := s.db.QueryRowContext(ctx, `SELECT
		id, fingerprint, email, report_type, property_info, rooms, pdf_path, created_at
		FROM reports WHERE id = ?`, id)
	var r Report
	var createdAt int64
	err := row.Scan(&r.ID, &r.Fingerprint, &r.Email, &r.ReportType, &r.PropertyInfo, &r.Rooms, &r.PDFPath, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}
	r.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &r, nil
}

// ListReports returns the most recent reports for a device, newest first.
func (s *Store) ListReports(ctx context.Context, fingerprint string, limit int) ([]*Report, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, fingerprint, email, report_type, property_info, rooms, pdf_path, created_at
		FROM reports WHERE fingerprint = ?
		ORDER BY created_at DESC LIMIT ?`, fingerprint, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []*Report
	for rows.Next() {
		var r Report
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.Fingerprint, &r.Email, &r.ReportType, &r.PropertyInfo, &r.Rooms, &r.PDFPath, &createdAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		r.CreatedAt = time.Unix(createdAt, 0).UTC()
		reports = append(reports, &r)
	}
	return reports, rows.Err()
}

// --- Share tokens ---

// SaveShareToken persists a share token; re-saving extends the expiry.
func (s *Store) SaveShareToken(ctx context.Context, t *ShareToken) error {
	if t == nil {
		return fmt.Errorf("share token is nil")
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO share_tokens (token, report_id, fingerprint, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(token) DO UPDATE SET expires_at = excluded.expires_at`,
		t.Token, t.ReportID, t.Fingerprint, t.ExpiresAt.Unix(), t.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save share token: %w", err)
	}
	return nil
}

// GetShareToken retrieves a share token, or (nil, nil) if absent.
func (s *Store) GetShareToken(ctx context.Context, token string) (*ShareToken, error) {
	row := s.db.QueryRowContext(ctx, `SELECT token, report_id, fingerprint, expires_at, created_at
		FROM share_tokens WHERE token = ?`, token)
	var t ShareToken
	var expiresAt, createdAt int64
	if err := row.Scan(&t.Token, &t.ReportID, &t.Fingerprint, &expiresAt, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan share token: %w", err)
	}
	t.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &t, nil
}

// DeleteShareToken removes a token (expiry or explicit revocation).
func (s *Store) DeleteShareToken(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM share_tokens WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete share token: %w", err)
	}
	return nil
}

// PurgeExpiredShareTokens deletes tokens past their expiry. Returns the
// number of rows removed.
func (s *Store) PurgeExpiredShareTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM share_tokens WHERE expires_at < ?`, now.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("purge share tokens: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// scanner is an interface satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*User, error) {
	var u User
	var plan string
	var createdAt, updatedAt int64

	err := s.Scan(
		&u.Fingerprint, &u.Email, &plan, &u.ReportsUsed, &u.SingleReportsPurchased,
		&u.StripeCustomerID, &createdAt, &updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	u.Plan = Plan(plan)
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	u.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &u, nil
}

func scanAccount(s scanner) (*Account, error) {
	var a Account
	var plan string
	var createdAt, updatedAt int64

	err := s.Scan(
		&a.Email, &a.PasswordHash, &a.Name, &a.Company, &plan,
		&a.StripeCustomerID, &a.Fingerprint, &createdAt, &updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	a.Plan = Plan(plan)
	a.CreatedAt = time.Unix(createdAt, 0).UTC()
	a.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &a, nil
}
