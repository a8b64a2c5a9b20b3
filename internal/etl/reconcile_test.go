package etl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/charterops/internal/booking"
	"github.com/JonMunkholm/charterops/internal/store"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestReconciler(st store.Store) *Reconciler {
	r := NewReconciler(st, NewWriteGate(time.Second), "DO-", nil)
	r.now = func() time.Time { return fixedNow }
	return r
}

func TestNextID(t *testing.T) {
	tests := []struct {
		name string
		ids  []string
		want string
	}{
		{"sequential", []string{"DO-100", "DO-101"}, "DO-102"},
		{"unordered", []string{"DO-7", "DO-12", "DO-3"}, "DO-13"},
		{"zero padded", []string{"DO-009", "DO-010"}, "DO-011"},
		{"ignores other prefixes", []string{"XX-900", "DO-5"}, "DO-6"},
		{"ignores non numeric", []string{"DO-ABC", "DO-", "DO-2a", "DO-4"}, "DO-5"},
		{"empty", nil, "DO-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextID("DO-", tt.ids); got != tt.want {
				t.Errorf("NextID(%v) = %q, want %q", tt.ids, got, tt.want)
			}
		})
	}
}

func TestMergeNotes(t *testing.T) {
	tests := []struct {
		existing, incoming, want string
	}{
		{"A", "B", "A\nB"},
		{"A", "", "A"},
		{"A", "   ", "A"},
		{"", "B", "B"},
		{"A", "A", "A\nA"},
		{"A\nB", "B", "A\nB\nB"},
		{"AB", "B", "AB\nB"},
	}
	for _, tt := range tests {
		if got := MergeNotes(tt.existing, tt.incoming); got != tt.want {
			t.Errorf("MergeNotes(%q, %q) = %q, want %q", tt.existing, tt.incoming, got, tt.want)
		}
	}
}

func TestMergeLead(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	existing := &booking.Lead{
		ID:                   "DO-100",
		ClientName:           "Maya",
		Agent:                "AG-1",
		Notes:                "A",
		Status:               booking.StatusUnconfirmed,
		TotalAmount:          decimal.NewFromInt(1000),
		CommissionPercentage: decimal.NewFromInt(10),
		CreatedAt:            created,
		UpdatedAt:            created,
	}
	existing.Recalculate()

	p := &booking.Patch{
		ID:          booking.String("DO-999"),
		Notes:       booking.String("B"),
		Status:      booking.StatusPtr(booking.StatusConfirmed),
		TotalAmount: booking.Decimal(decimal.NewFromInt(2000)),
		PaidAmount:  booking.Decimal(decimal.NewFromInt(500)),
	}
	merged := MergeLead(existing, p, fixedNow)

	if merged.ID != "DO-100" || !merged.CreatedAt.Equal(created) {
		t.Errorf("identity changed: id=%s created=%v", merged.ID, merged.CreatedAt)
	}
	if !merged.UpdatedAt.Equal(fixedNow) {
		t.Errorf("UpdatedAt = %v", merged.UpdatedAt)
	}
	if merged.Notes != "A\nB" {
		t.Errorf("Notes = %q", merged.Notes)
	}
	if merged.ClientName != "Maya" || merged.Agent != "AG-1" {
		t.Errorf("absent fields were overwritten: %+v", merged)
	}
	if merged.Status != booking.StatusConfirmed {
		t.Errorf("Status = %s", merged.Status)
	}
	if !merged.CommissionAmount.Equal(decimal.NewFromInt(200)) {
		t.Errorf("derived commission = %s, want 200", merged.CommissionAmount)
	}
	if !merged.BalanceAmount.Equal(decimal.NewFromInt(1300)) {
		t.Errorf("balance = %s, want 1300", merged.BalanceAmount)
	}
	if existing.Notes != "A" || existing.Status != booking.StatusUnconfirmed {
		t.Error("existing lead was mutated")
	}

	kept := MergeLead(existing, &booking.Patch{Notes: booking.String("")}, fixedNow)
	if kept.Notes != "A" {
		t.Errorf("empty incoming notes gave %q, want A", kept.Notes)
	}
}

func TestMergeLead_ExplicitCommissionKept(t *testing.T) {
	existing := &booking.Lead{
		ID:                   "DO-1",
		TotalAmount:          decimal.NewFromInt(1000),
		CommissionPercentage: decimal.NewFromInt(10),
		CommissionAmount:     decimal.NewFromInt(150),
	}
	existing.Recalculate()

	merged := MergeLead(existing, &booking.Patch{TotalAmount: booking.Decimal(decimal.NewFromInt(2000))}, fixedNow)
	if !merged.CommissionAmount.Equal(decimal.NewFromInt(150)) {
		t.Errorf("explicit commission = %s, want 150", merged.CommissionAmount)
	}
}

func TestReconciler_MatchPriority(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory(
		&booking.Lead{ID: "DO-100", BookingRefNo: "REF-1"},
		&booking.Lead{ID: "DO-101", TransactionID: "TX-9"},
	)
	r := newTestReconciler(st)

	rows := []booking.Patch{
		{BookingRefNo: booking.String("REF-1"), ClientName: booking.String("by ref")},
		{TransactionID: booking.String("TX-9"), ClientName: booking.String("by tx")},
		{BookingRefNo: booking.String("REF-NEW"), ClientName: booking.String("new")},
	}
	stats, err := r.Upsert(ctx, rows)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if stats.Updated != 2 || stats.Inserted != 1 || stats.Failed != 0 {
		t.Fatalf("stats = %+v", stats)
	}

	byRef, _ := st.GetBooking(ctx, "DO-100")
	if byRef.ClientName != "by ref" {
		t.Errorf("DO-100 name = %q", byRef.ClientName)
	}
	byTx, _ := st.GetBooking(ctx, "DO-101")
	if byTx.ClientName != "by tx" {
		t.Errorf("DO-101 name = %q", byTx.ClientName)
	}
	created, _ := st.GetBooking(ctx, "DO-102")
	if created == nil || created.ClientName != "new" {
		t.Fatalf("DO-102 = %+v", created)
	}
	if created.Status != booking.StatusUnconfirmed || !created.CreatedAt.Equal(fixedNow) {
		t.Errorf("new lead defaults = %+v", created)
	}
}

func TestReconciler_SequentialIDsWithinBatch(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory(&booking.Lead{ID: "DO-100"}, &booking.Lead{ID: "DO-101"})
	r := newTestReconciler(st)

	stats, err := r.Upsert(ctx, []booking.Patch{
		{ClientName: booking.String("a")},
		{ClientName: booking.String("b")},
		{ID: booking.String("CUSTOM-1"), ClientName: booking.String("c")},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	want := []string{"DO-102", "DO-103", "CUSTOM-1"}
	if len(stats.LeadIDs) != len(want) {
		t.Fatalf("LeadIDs = %v", stats.LeadIDs)
	}
	for i := range want {
		if stats.LeadIDs[i] != want[i] {
			t.Errorf("LeadIDs[%d] = %s, want %s", i, stats.LeadIDs[i], want[i])
		}
	}
}

func TestReconciler_FailureIsolation(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	boom := errors.New("connection reset by peer")
	st.FailUpsert = func(l *booking.Lead) error {
		if l.ClientName == "row 3" {
			return boom
		}
		return nil
	}
	r := newTestReconciler(st)

	var rows []booking.Patch
	for i := 1; i <= 5; i++ {
		rows = append(rows, booking.Patch{
			ClientName:   booking.String("row " + string(rune('0'+i))),
			BookingRefNo: booking.String("REF-" + string(rune('0'+i))),
			Line:         i + 1,
		})
	}

	stats, err := r.Upsert(ctx, rows)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if stats.Inserted+stats.Updated != 4 || stats.Failed != 1 {
		t.Fatalf("stats = %+v, want 4 ok and 1 failed", stats)
	}
	f := stats.Failures[0]
	if f.Line != 4 || f.Ref != "REF-3" || f.Code != "DB005" {
		t.Errorf("failure = %+v", f)
	}
	if st.Len() != 4 {
		t.Errorf("stored %d leads, want 4", st.Len())
	}
}

func TestReconciler_ValidationFailureCounted(t *testing.T) {
	st := store.NewMemory()
	r := newTestReconciler(st)

	stats, err := r.Upsert(context.Background(), []booking.Patch{
		{PaidAmount: booking.Decimal(decimal.NewFromInt(-5))},
		{ClientName: booking.String("ok")},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if stats.Failed != 1 || stats.Inserted != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Failures[0].Code != "VAL004" {
		t.Errorf("code = %s, want VAL004", stats.Failures[0].Code)
	}
}

// dupOnceStore reports a duplicate id on the first insert, as a racing
// writer in another process would.
type dupOnceStore struct {
	*store.Memory
	tripped bool
}

func (d *dupOnceStore) InsertBooking(ctx context.Context, l *booking.Lead) error {
	if !d.tripped {
		d.tripped = true
		// The racing writer took the id.
		_ = d.Memory.UpsertBooking(ctx, &booking.Lead{ID: l.ID, ClientName: "racer"})
	}
	return d.Memory.InsertBooking(ctx, l)
}

func TestReconciler_RetriesDuplicateID(t *testing.T) {
	ctx := context.Background()
	st := &dupOnceStore{Memory: store.NewMemory(&booking.Lead{ID: "DO-1"})}
	r := newTestReconciler(st)

	stats, err := r.Upsert(ctx, []booking.Patch{{ClientName: booking.String("mine")}})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if stats.Inserted != 1 || stats.LeadIDs[0] != "DO-3" {
		t.Errorf("stats = %+v, want insert as DO-3", stats)
	}
	racer, _ := st.GetBooking(ctx, "DO-2")
	if racer == nil || racer.ClientName != "racer" {
		t.Errorf("DO-2 = %+v", racer)
	}
}

// upsertOnlyStore hides the Memory's InsertBooking.
type upsertOnlyStore struct {
	m *store.Memory
}

func (u upsertOnlyStore) FindBookingByRef(ctx context.Context, ref string) (*booking.Lead, error) {
	return u.m.FindBookingByRef(ctx, ref)
}

func (u upsertOnlyStore) FindBookingByTransID(ctx context.Context, id string) (*booking.Lead, error) {
	return u.m.FindBookingByTransID(ctx, id)
}

func (u upsertOnlyStore) UpsertBooking(ctx context.Context, l *booking.Lead) error {
	return u.m.UpsertBooking(ctx, l)
}

func (u upsertOnlyStore) ListIDs(ctx context.Context, prefix string) ([]string, error) {
	return u.m.ListIDs(ctx, prefix)
}

func TestReconciler_InsertFallsBackToUpsert(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory(&booking.Lead{ID: "DO-4"})
	r := newTestReconciler(upsertOnlyStore{m: m})

	stats, err := r.Upsert(ctx, []booking.Patch{{ClientName: booking.String("new")}})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if stats.Inserted != 1 || stats.LeadIDs[0] != "DO-5" {
		t.Errorf("stats = %+v, want insert as DO-5", stats)
	}
}

func TestReconciler_ExplicitIDNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	r := newTestReconciler(st)

	// Another writer stores DO-9 between matching and inserting.
	st.FailUpsert = func(l *booking.Lead) error {
		if l.ID == "DO-9" && l.ClientName == "mine" {
			st.FailUpsert = nil
			_ = st.UpsertBooking(ctx, &booking.Lead{ID: "DO-9", ClientName: "theirs"})
		}
		return nil
	}

	stats, err := r.Upsert(ctx, []booking.Patch{{ID: booking.String("DO-9"), ClientName: booking.String("mine")}})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if stats.Failed != 1 || stats.Failures[0].Code != "DB001" {
		t.Errorf("stats = %+v, want one DB001 failure", stats)
	}
	got, _ := st.GetBooking(ctx, "DO-9")
	if got == nil || got.ClientName != "theirs" {
		t.Errorf("DO-9 = %+v, want the other writer's lead kept", got)
	}
}

func TestReconciler_NumericInvariant(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	r := newTestReconciler(st)

	rows := []booking.Patch{
		{BookingRefNo: booking.String("R1"), TotalAmount: booking.Decimal(decimal.RequireFromString("1234.56")),
			CommissionPercentage: booking.Decimal(decimal.RequireFromString("12.5")),
			PaidAmount:           booking.Decimal(decimal.RequireFromString("100.10"))},
		{BookingRefNo: booking.String("R2"), TotalAmount: booking.Decimal(decimal.RequireFromString("99.99")),
			CommissionAmount: booking.Decimal(decimal.RequireFromString("9.999"))},
		{BookingRefNo: booking.String("R1"), PaidAmount: booking.Decimal(decimal.RequireFromString("500"))},
	}
	if _, err := r.Upsert(ctx, rows); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	for _, l := range st.All() {
		if !l.InvariantsHold() {
			t.Errorf("%s: total=%s commission=%s net=%s paid=%s balance=%s",
				l.ID, l.TotalAmount, l.CommissionAmount, l.NetAmount, l.PaidAmount, l.BalanceAmount)
		}
	}
}

func TestReconciler_GateBusy(t *testing.T) {
	r := NewReconciler(store.NewMemory(), NewWriteGate(50*time.Millisecond), "DO-", nil)
	if !r.Gate().TryAcquire("other") {
		t.Fatal("TryAcquire failed")
	}
	defer r.Gate().Release()

	_, err := r.Upsert(context.Background(), []booking.Patch{{ClientName: booking.String("x")}})
	if !errors.Is(err, ErrImportBusy) {
		t.Errorf("err = %v, want ErrImportBusy", err)
	}
}

func TestReconciler_CancelledContextStops(t *testing.T) {
	st := store.NewMemory()
	r := newTestReconciler(st)

	ctx, cancel := context.WithCancel(context.Background())
	st.FailUpsert = func(l *booking.Lead) error {
		cancel()
		return nil
	}

	stats, err := r.Upsert(ctx, []booking.Patch{
		{ClientName: booking.String("a")},
		{ClientName: booking.String("b")},
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if stats.Inserted != 1 || st.Len() != 1 {
		t.Errorf("stats = %+v, stored = %d; want first row kept", stats, st.Len())
	}
}
