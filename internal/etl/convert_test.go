package etl

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/charterops/internal/booking"
	"github.com/JonMunkholm/charterops/internal/refdata"
)

func converterDirectory() *refdata.Directory {
	return refdata.New(
		map[string]string{"AG-1": "Sara Khan", "AG-2": "Direct"},
		map[string]string{"Y-LR": "Lotus Royale", "Y-OE": "Ocean Empress"},
		map[string]string{"U-1": "admin"},
	)
}

func TestConverter_Numbers(t *testing.T) {
	c := NewConverter(nil)
	tests := []struct {
		raw         string
		want        string
		usedDefault bool
	}{
		{"1234.50", "1234.5", false},
		{"$1,234.50", "1234.5", false},
		{"AED 2,000", "2000", false},
		{"€99", "99", false},
		{"(50.25)", "-50.25", false},
		{"10%", "10", false},
		{"abc", "0", true},
		{"1.2.3", "0", true},
		{"", "0", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := c.Convert(FieldTotalAmount, tt.raw)
			if !got.Decimal().Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Convert(%q) = %s, want %s", tt.raw, got.Decimal(), tt.want)
			}
			if got.UsedDefault != tt.usedDefault {
				t.Errorf("UsedDefault = %v, want %v", got.UsedDefault, tt.usedDefault)
			}
			if got.UsedDefault && got.Reason != ReasonInvalidNumber {
				t.Errorf("Reason = %q", got.Reason)
			}
		})
	}
}

func TestConverter_Quantity(t *testing.T) {
	c := NewConverter(nil)
	tests := []struct {
		raw         string
		want        int
		usedDefault bool
	}{
		{"4", 4, false},
		{"2.0", 2, false},
		{"2.5", 0, true},
		{"-1", 0, true},
		{"four", 0, true},
	}
	for _, tt := range tests {
		got := c.Convert(FieldQuantity, tt.raw)
		if got.Int() != tt.want || got.UsedDefault != tt.usedDefault {
			t.Errorf("Convert(quantity, %q) = %d/%v, want %d/%v", tt.raw, got.Int(), got.UsedDefault, tt.want, tt.usedDefault)
		}
	}
}

func TestConverter_Dates(t *testing.T) {
	c := NewConverter(nil)
	c.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		raw         string
		want        string
		usedDefault bool
	}{
		{"2025-03-14", "2025-03-14T00:00:00Z", false},
		{"2025-03-14T18:30:00+04:00", "2025-03-14T14:30:00Z", false},
		{"14/03/2025", "2025-03-14T00:00:00Z", false},
		{"05/03/2025", "2025-03-05T00:00:00Z", false},
		{"14/03/2025 19:00", "2025-03-14T19:00:00Z", false},
		{"14-03-2025", "2025-03-14T00:00:00Z", false},
		{"14 Mar 2025", "2025-03-14T00:00:00Z", false},
		{"Mar 14, 2025", "2025-03-14T00:00:00Z", false},
		{"March 2025", "2025-03-01T00:00:00Z", false},
		{"Mar 2025", "2025-03-01T00:00:00Z", false},
		{"14/03/25", "2025-03-14T00:00:00Z", false},
		{"14/03/99", "1999-03-14T00:00:00Z", false},
		{"sometime soon", "sometime soon", true},
		{"31/02/2025", "31/02/2025", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := c.Convert(FieldMonth, tt.raw)
			if got.String() != tt.want {
				t.Errorf("Convert(%q) = %q, want %q", tt.raw, got.String(), tt.want)
			}
			if got.UsedDefault != tt.usedDefault {
				t.Errorf("UsedDefault = %v, want %v", got.UsedDefault, tt.usedDefault)
			}
			if tt.usedDefault && got.Reason != ReasonInvalidDate {
				t.Errorf("Reason = %q, want %q", got.Reason, ReasonInvalidDate)
			}
		})
	}
}

func TestConverter_Lookups(t *testing.T) {
	c := NewConverter(converterDirectory())

	tests := []struct {
		field       Field
		raw         string
		want        string
		usedDefault bool
	}{
		{FieldAgent, "sara khan", "AG-1", false},
		{FieldAgent, "AG-2", "AG-2", false},
		{FieldAgent, "Unknown Person", "Unknown Person", true},
		{FieldYacht, "LOTUS ROYALE", "Y-LR", false},
		{FieldOwnerUserID, "Admin", "U-1", false},
	}
	for _, tt := range tests {
		got := c.Convert(tt.field, tt.raw)
		if got.String() != tt.want || got.UsedDefault != tt.usedDefault {
			t.Errorf("Convert(%s, %q) = %q/%v, want %q/%v",
				tt.field, tt.raw, got.String(), got.UsedDefault, tt.want, tt.usedDefault)
		}
	}
}

func TestConverter_Status(t *testing.T) {
	c := NewConverter(nil)

	got := c.Convert(FieldStatus, "Checked In")
	if got.Status() != booking.StatusCheckedIn || got.UsedDefault {
		t.Errorf("exact status = %v/%v", got.Status(), got.UsedDefault)
	}

	got = c.Convert(FieldStatus, "payment pending")
	if got.Status() != booking.StatusUnconfirmed || !got.UsedDefault || got.Reason != ReasonGuessedStatus {
		t.Errorf("guessed status = %+v", got)
	}
}

func TestConverter_OpaqueStrings(t *testing.T) {
	c := NewConverter(nil)
	if got := c.Convert(FieldNotes, `  ="00123"  `); got.String() != "00123" || got.UsedDefault {
		t.Errorf("Convert(notes) = %+v", got)
	}
}
