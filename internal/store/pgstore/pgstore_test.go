package pgstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/charterops/internal/booking"
	"github.com/JonMunkholm/charterops/internal/store"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("x"), false},
		{"unique", &pgconn.PgError{Code: "23505"}, true},
		{"wrapped unique", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505"}), true},
		{"fk", &pgconn.PgError{Code: "23503"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

// execStub answers Exec with a fixed command tag or error.
type execStub struct {
	tag  string
	err  error
	sqls []string
}

func (e *execStub) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	e.sqls = append(e.sqls, sql)
	return pgconn.NewCommandTag(e.tag), e.err
}

func (e *execStub) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (e *execStub) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

func TestInsertBooking(t *testing.T) {
	tests := []struct {
		name    string
		tag     string
		err     error
		wantDup bool
		wantErr bool
	}{
		{"inserted", "INSERT 0 1", nil, false, false},
		{"id taken", "INSERT 0 0", nil, true, true},
		{"unique violation", "", &pgconn.PgError{Code: "23505"}, true, true},
		{"other error", "", errors.New("connection reset"), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &execStub{tag: tt.tag, err: tt.err}
			err := New(db).InsertBooking(context.Background(), &booking.Lead{ID: "DO-103"})

			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := errors.Is(err, store.ErrDuplicateID); got != tt.wantDup {
				t.Errorf("errors.Is(ErrDuplicateID) = %v, want %v (err %v)", got, tt.wantDup, err)
			}
			if len(db.sqls) != 1 || !strings.Contains(db.sqls[0], "DO NOTHING") || strings.Contains(db.sqls[0], "DO UPDATE") {
				t.Errorf("insert must not update an existing row: %v", db.sqls)
			}
		})
	}
}

func TestUpsertBooking_UpdatesOnConflict(t *testing.T) {
	db := &execStub{tag: "INSERT 0 1"}
	if err := New(db).UpsertBooking(context.Background(), &booking.Lead{ID: "DO-1"}); err != nil {
		t.Fatalf("UpsertBooking: %v", err)
	}
	if len(db.sqls) != 1 || !strings.Contains(db.sqls[0], "ON CONFLICT (id) DO UPDATE") {
		t.Errorf("sql = %v", db.sqls)
	}
}

func TestUpsertArgs_Defaults(t *testing.T) {
	args, err := upsertArgs(&booking.Lead{ID: "DO-001", TotalAmount: decimal.RequireFromString("12.50")})
	if err != nil {
		t.Fatalf("upsertArgs: %v", err)
	}
	if len(args) != 28 {
		t.Fatalf("len(args) = %d, want 28", len(args))
	}
	if got := string(args[15].([]byte)); got != "[]" {
		t.Errorf("package lines = %s, want []", got)
	}
	if got := args[17].(string); got != "12.5" {
		t.Errorf("total = %s, want 12.5", got)
	}
	if args[26].(time.Time).IsZero() {
		t.Error("created_at defaulted to zero")
	}
}

// TestStore_RoundTrip runs against a real database when TEST_DATABASE_URL is set.
func TestStore_RoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	s := New(pool)
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	id := fmt.Sprintf("TEST-%d", time.Now().UnixNano())
	t.Cleanup(func() { pool.Exec(context.Background(), "DELETE FROM leads WHERE id = $1", id) })

	lead := &booking.Lead{
		ID:           id,
		BookingRefNo: id + "-REF",
		Status:       booking.StatusConfirmed,
		PackageQuantities: []booking.PackageQuantity{
			{PackageName: booking.PackageAdult, Quantity: 2, Rate: decimal.NewFromInt(100)},
		},
		TotalAmount: decimal.NewFromInt(200),
		PaidAmount:  decimal.NewFromInt(50),
	}
	lead.Recalculate()
	if err := s.UpsertBooking(ctx, lead); err != nil {
		t.Fatalf("UpsertBooking: %v", err)
	}

	got, err := s.FindBookingByRef(ctx, id+"-REF")
	if err != nil || got == nil {
		t.Fatalf("FindBookingByRef = %v, %v", got, err)
	}
	if !got.BalanceAmount.Equal(decimal.NewFromInt(150)) {
		t.Errorf("balance = %s, want 150", got.BalanceAmount)
	}
	if len(got.PackageQuantities) != 1 || got.PackageQuantities[0].Quantity != 2 {
		t.Errorf("packages = %+v", got.PackageQuantities)
	}
}
