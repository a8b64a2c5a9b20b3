package store

import (
	"context"
	"errors"
	"testing"

	"github.com/JonMunkholm/charterops/internal/booking"
)

func TestMemory_FindAndUpsert(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(
		&booking.Lead{ID: "DO-002", BookingRefNo: "R1"},
		&booking.Lead{ID: "DO-001", BookingRefNo: "R1", TransactionID: "T9"},
	)

	got, err := m.FindBookingByRef(ctx, "R1")
	if err != nil {
		t.Fatalf("FindBookingByRef: %v", err)
	}
	if got == nil || got.ID != "DO-001" {
		t.Fatalf("FindBookingByRef = %+v, want DO-001", got)
	}

	got, _ = m.FindBookingByTransID(ctx, "T9")
	if got == nil || got.ID != "DO-001" {
		t.Errorf("FindBookingByTransID = %+v, want DO-001", got)
	}

	if got, _ := m.FindBookingByRef(ctx, ""); got != nil {
		t.Errorf("empty ref matched %s", got.ID)
	}
	if got, _ := m.FindBookingByRef(ctx, "nope"); got != nil {
		t.Errorf("unknown ref matched %s", got.ID)
	}

	// Returned leads are copies.
	got.ClientName = "mutated"
	again, _ := m.GetBooking(ctx, "DO-001")
	if again.ClientName != "" {
		t.Errorf("store was mutated through returned lead")
	}

	if err := m.UpsertBooking(ctx, &booking.Lead{ID: "DO-003"}); err != nil {
		t.Fatalf("UpsertBooking: %v", err)
	}
	ids, _ := m.ListIDs(ctx, "DO-")
	if len(ids) != 3 || ids[0] != "DO-001" || ids[2] != "DO-003" {
		t.Errorf("ListIDs = %v", ids)
	}
}

func TestMemory_FailUpsert(t *testing.T) {
	boom := errors.New("boom")
	m := NewMemory()
	m.FailUpsert = func(l *booking.Lead) error {
		if l.ID == "bad" {
			return boom
		}
		return nil
	}

	if err := m.UpsertBooking(context.Background(), &booking.Lead{ID: "bad"}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if err := m.UpsertBooking(context.Background(), &booking.Lead{ID: "good"}); err != nil {
		t.Errorf("err = %v", err)
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
}

func TestMemory_InsertBookingKeepsExisting(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(&booking.Lead{ID: "DO-1", ClientName: "first"})

	err := m.InsertBooking(ctx, &booking.Lead{ID: "DO-1", ClientName: "second"})
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("err = %v, want ErrDuplicateID", err)
	}
	if got, _ := m.GetBooking(ctx, "DO-1"); got.ClientName != "first" {
		t.Errorf("DO-1 overwritten: %+v", got)
	}

	if err := m.InsertBooking(ctx, &booking.Lead{ID: "DO-2"}); err != nil {
		t.Fatalf("InsertBooking(DO-2): %v", err)
	}
	if m.Len() != 2 {
		t.Errorf("Len = %d, want 2", m.Len())
	}
}
