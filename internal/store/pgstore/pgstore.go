// Package pgstore implements store.Store on PostgreSQL using pgx.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/charterops/internal/booking"
	"github.com/JonMunkholm/charterops/internal/store"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

const uniqueViolation = "23505"

// Schema creates the leads table. Package lines and addons are stored as
// JSONB; money columns are NUMERIC(14,2).
const Schema = `
CREATE TABLE IF NOT EXISTS leads (
	id                           TEXT PRIMARY KEY,
	client_name                  TEXT NOT NULL DEFAULT '',
	client_email                 TEXT NOT NULL DEFAULT '',
	client_phone                 TEXT NOT NULL DEFAULT '',
	agent                        TEXT NOT NULL DEFAULT '',
	yacht                        TEXT NOT NULL DEFAULT '',
	owner_user_id                TEXT NOT NULL DEFAULT '',
	last_modified_by_user_id     TEXT NOT NULL DEFAULT '',
	status                       TEXT NOT NULL DEFAULT 'Unconfirmed',
	month                        TEXT NOT NULL DEFAULT '',
	type                         TEXT NOT NULL DEFAULT '',
	booking_ref_no               TEXT NOT NULL DEFAULT '',
	transaction_id               TEXT NOT NULL DEFAULT '',
	mode_of_payment              TEXT NOT NULL DEFAULT '',
	payment_confirmation_status  TEXT NOT NULL DEFAULT '',
	package_quantities           JSONB NOT NULL DEFAULT '[]',
	addons                       JSONB NOT NULL DEFAULT '[]',
	total_amount                 NUMERIC(14,2) NOT NULL DEFAULT 0,
	commission_percentage        NUMERIC(7,4) NOT NULL DEFAULT 0,
	commission_amount            NUMERIC(14,2) NOT NULL DEFAULT 0,
	net_amount                   NUMERIC(14,2) NOT NULL DEFAULT 0,
	paid_amount                  NUMERIC(14,2) NOT NULL DEFAULT 0,
	balance_amount               NUMERIC(14,2) NOT NULL DEFAULT 0,
	collected_at_check_in        NUMERIC(14,2) NOT NULL DEFAULT 0,
	notes                        TEXT NOT NULL DEFAULT '',
	source                       TEXT NOT NULL DEFAULT '',
	created_at                   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at                   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS leads_booking_ref_no_idx ON leads (booking_ref_no) WHERE booking_ref_no <> '';
CREATE INDEX IF NOT EXISTS leads_transaction_id_idx ON leads (transaction_id) WHERE transaction_id <> '';
`

const selectColumns = `id, client_name, client_email, client_phone, agent, yacht,
	owner_user_id, last_modified_by_user_id, status, month, type,
	booking_ref_no, transaction_id, mode_of_payment, payment_confirmation_status,
	package_quantities, addons,
	total_amount::text, commission_percentage::text, commission_amount::text,
	net_amount::text, paid_amount::text, balance_amount::text, collected_at_check_in::text,
	notes, source, created_at, updated_at`

const insertLead = `
INSERT INTO leads (
	id, client_name, client_email, client_phone, agent, yacht,
	owner_user_id, last_modified_by_user_id, status, month, type,
	booking_ref_no, transaction_id, mode_of_payment, payment_confirmation_status,
	package_quantities, addons,
	total_amount, commission_percentage, commission_amount,
	net_amount, paid_amount, balance_amount, collected_at_check_in,
	notes, source, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
	$16, $17,
	$18::numeric, $19::numeric, $20::numeric, $21::numeric, $22::numeric, $23::numeric, $24::numeric,
	$25, $26, $27, $28
)`

const upsertLead = insertLead + `
ON CONFLICT (id) DO UPDATE SET
	client_name = EXCLUDED.client_name,
	client_email = EXCLUDED.client_email,
	client_phone = EXCLUDED.client_phone,
	agent = EXCLUDED.agent,
	yacht = EXCLUDED.yacht,
	owner_user_id = EXCLUDED.owner_user_id,
	last_modified_by_user_id = EXCLUDED.last_modified_by_user_id,
	status = EXCLUDED.status,
	month = EXCLUDED.month,
	type = EXCLUDED.type,
	booking_ref_no = EXCLUDED.booking_ref_no,
	transaction_id = EXCLUDED.transaction_id,
	mode_of_payment = EXCLUDED.mode_of_payment,
	payment_confirmation_status = EXCLUDED.payment_confirmation_status,
	package_quantities = EXCLUDED.package_quantities,
	addons = EXCLUDED.addons,
	total_amount = EXCLUDED.total_amount,
	commission_percentage = EXCLUDED.commission_percentage,
	commission_amount = EXCLUDED.commission_amount,
	net_amount = EXCLUDED.net_amount,
	paid_amount = EXCLUDED.paid_amount,
	balance_amount = EXCLUDED.balance_amount,
	collected_at_check_in = EXCLUDED.collected_at_check_in,
	notes = EXCLUDED.notes,
	source = EXCLUDED.source,
	updated_at = EXCLUDED.updated_at`

const insertLeadOnce = insertLead + `
ON CONFLICT (id) DO NOTHING`

// Store is a PostgreSQL-backed lead store.
type Store struct {
	db DBTX
}

var (
	_ store.Store    = (*Store)(nil)
	_ store.Inserter = (*Store)(nil)
	_ store.IDLister = (*Store)(nil)
	_ store.Getter   = (*Store)(nil)
)

// New wraps a pool or transaction.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the leads table and its lookup indexes if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create leads schema: %w", err)
	}
	return nil
}

func (s *Store) FindBookingByRef(ctx context.Context, ref string) (*booking.Lead, error) {
	if ref == "" {
		return nil, nil
	}
	return s.findOne(ctx, "booking_ref_no", ref)
}

func (s *Store) FindBookingByTransID(ctx context.Context, transID string) (*booking.Lead, error) {
	if transID == "" {
		return nil, nil
	}
	return s.findOne(ctx, "transaction_id", transID)
}

func (s *Store) GetBooking(ctx context.Context, id string) (*booking.Lead, error) {
	return s.findOne(ctx, "id", id)
}

// findOne returns the lowest-id lead whose column equals value.
// column is always a package constant, never caller input.
func (s *Store) findOne(ctx context.Context, column, value string) (*booking.Lead, error) {
	q := fmt.Sprintf("SELECT %s FROM leads WHERE %s = $1 ORDER BY id LIMIT 1", selectColumns, column)
	lead, err := scanLead(s.db.QueryRow(ctx, q, value))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find lead by %s: %w", column, err)
	}
	return lead, nil
}

// UpsertBooking inserts or replaces the lead keyed by id.
func (s *Store) UpsertBooking(ctx context.Context, lead *booking.Lead) error {
	args, err := upsertArgs(lead)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, upsertLead, args...); err != nil {
		return fmt.Errorf("upsert lead %s: %w", lead.ID, err)
	}
	return nil
}

// InsertBooking creates the lead. An existing row with the same id is left
// alone and reported as store.ErrDuplicateID.
func (s *Store) InsertBooking(ctx context.Context, lead *booking.Lead) error {
	args, err := upsertArgs(lead)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, insertLeadOnce, args...)
	if isUniqueViolation(err) || (err == nil && tag.RowsAffected() == 0) {
		return fmt.Errorf("insert lead %s: %w", lead.ID, store.ErrDuplicateID)
	}
	if err != nil {
		return fmt.Errorf("insert lead %s: %w", lead.ID, err)
	}
	return nil
}

func (s *Store) ListIDs(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.Query(ctx, "SELECT id FROM leads WHERE starts_with(id, $1) ORDER BY id", prefix)
	if err != nil {
		return nil, fmt.Errorf("list lead ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list lead ids: %w", err)
	}
	return ids, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func upsertArgs(l *booking.Lead) ([]any, error) {
	packages := l.PackageQuantities
	if packages == nil {
		packages = []booking.PackageQuantity{}
	}
	pkgJSON, err := json.Marshal(packages)
	if err != nil {
		return nil, fmt.Errorf("encode package lines: %w", err)
	}
	addons := l.Addons
	if addons == nil {
		addons = []string{}
	}
	addonJSON, err := json.Marshal(addons)
	if err != nil {
		return nil, fmt.Errorf("encode addons: %w", err)
	}

	created, updated := l.CreatedAt, l.UpdatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	if updated.IsZero() {
		updated = created
	}

	return []any{
		l.ID, l.ClientName, l.ClientEmail, l.ClientPhone, l.Agent, l.Yacht,
		l.OwnerUserID, l.LastModifiedByUserID, string(l.Status), l.Month, l.Type,
		l.BookingRefNo, l.TransactionID, l.ModeOfPayment, l.PaymentConfirmationStatus,
		pkgJSON, addonJSON,
		l.TotalAmount.String(), l.CommissionPercentage.String(), l.CommissionAmount.String(),
		l.NetAmount.String(), l.PaidAmount.String(), l.BalanceAmount.String(), l.CollectedAtCheckIn.String(),
		l.Notes, l.Source, created, updated,
	}, nil
}

func scanLead(row pgx.Row) (*booking.Lead, error) {
	var (
		l                  booking.Lead
		status             string
		pkgJSON, addonJSON []byte
		amounts            [7]string
	)
	err := row.Scan(
		&l.ID, &l.ClientName, &l.ClientEmail, &l.ClientPhone, &l.Agent, &l.Yacht,
		&l.OwnerUserID, &l.LastModifiedByUserID, &status, &l.Month, &l.Type,
		&l.BookingRefNo, &l.TransactionID, &l.ModeOfPayment, &l.PaymentConfirmationStatus,
		&pkgJSON, &addonJSON,
		&amounts[0], &amounts[1], &amounts[2], &amounts[3], &amounts[4], &amounts[5], &amounts[6],
		&l.Notes, &l.Source, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Status = booking.Status(status)

	if err := json.Unmarshal(pkgJSON, &l.PackageQuantities); err != nil {
		return nil, fmt.Errorf("decode package lines for %s: %w", l.ID, err)
	}
	if err := json.Unmarshal(addonJSON, &l.Addons); err != nil {
		return nil, fmt.Errorf("decode addons for %s: %w", l.ID, err)
	}

	targets := []*decimal.Decimal{
		&l.TotalAmount, &l.CommissionPercentage, &l.CommissionAmount,
		&l.NetAmount, &l.PaidAmount, &l.BalanceAmount, &l.CollectedAtCheckIn,
	}
	for i, dst := range targets {
		d, err := decimal.NewFromString(amounts[i])
		if err != nil {
			return nil, fmt.Errorf("decode amount for %s: %w", l.ID, err)
		}
		*dst = d
	}
	return &l, nil
}
