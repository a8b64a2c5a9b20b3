package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLead_Recalculate(t *testing.T) {
	tests := []struct {
		name           string
		lead           Lead
		wantCommission string
		wantNet        string
		wantBalance    string
	}{
		{
			name:           "explicit commission amount",
			lead:           Lead{TotalAmount: dec("1000"), CommissionAmount: dec("150"), PaidAmount: dec("400")},
			wantCommission: "150",
			wantNet:        "850",
			wantBalance:    "450",
		},
		{
			name:           "commission from percentage",
			lead:           Lead{TotalAmount: dec("1000"), CommissionPercentage: dec("12.5"), PaidAmount: dec("0")},
			wantCommission: "125",
			wantNet:        "875",
			wantBalance:    "875",
		},
		{
			name:           "explicit amount wins over percentage",
			lead:           Lead{TotalAmount: dec("1000"), CommissionPercentage: dec("10"), CommissionAmount: dec("50")},
			wantCommission: "50",
			wantNet:        "950",
			wantBalance:    "950",
		},
		{
			name:           "rounds to cents",
			lead:           Lead{TotalAmount: dec("99.99"), CommissionPercentage: dec("15"), PaidAmount: dec("10.005")},
			wantCommission: "15",
			wantNet:        "84.99",
			wantBalance:    "74.99",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := tt.lead
			l.Recalculate()
			if !l.CommissionAmount.Equal(dec(tt.wantCommission)) {
				t.Errorf("CommissionAmount = %s, want %s", l.CommissionAmount, tt.wantCommission)
			}
			if !l.NetAmount.Equal(dec(tt.wantNet)) {
				t.Errorf("NetAmount = %s, want %s", l.NetAmount, tt.wantNet)
			}
			if !l.BalanceAmount.Equal(dec(tt.wantBalance)) {
				t.Errorf("BalanceAmount = %s, want %s", l.BalanceAmount, tt.wantBalance)
			}
			if !l.InvariantsHold() {
				t.Error("InvariantsHold() = false after Recalculate")
			}
		})
	}
}

func TestLead_Validate(t *testing.T) {
	base := func() *Lead {
		l := &Lead{ID: "DO-1", TotalAmount: dec("500"), PaidAmount: dec("100")}
		l.Recalculate()
		return l
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid lead: Validate() = %v", err)
	}

	noID := base()
	noID.ID = ""
	if err := noID.Validate(); !errors.Is(err, ErrMissingID) {
		t.Errorf("missing id: got %v, want ErrMissingID", err)
	}

	overpaid := base()
	overpaid.PaidAmount = dec("600")
	overpaid.Recalculate()
	if err := overpaid.Validate(); !errors.Is(err, ErrNegativeAmount) {
		t.Errorf("overpaid: got %v, want ErrNegativeAmount", err)
	}

	badLine := base()
	badLine.PackageQuantities = []PackageQuantity{{PackageName: PackageAdult, Quantity: -1}}
	if err := badLine.Validate(); !errors.Is(err, ErrInvalidPackage) {
		t.Errorf("negative quantity: got %v, want ErrInvalidPackage", err)
	}
}

func TestPatch_Apply(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := &Lead{
		ID:                   "DO-7",
		ClientName:           "Old Name",
		Yacht:                "lotus-royale",
		TotalAmount:          dec("1000"),
		CommissionPercentage: dec("10"),
		CreatedAt:            created,
	}
	l.Recalculate()

	p := &Patch{
		ID:                   String("DO-999"),
		ClientName:           String("New Name"),
		CommissionPercentage: Decimal(dec("20")),
	}
	p.Apply(l)
	l.Recalculate()

	if l.ID != "DO-7" {
		t.Errorf("ID changed to %q", l.ID)
	}
	if l.ClientName != "New Name" {
		t.Errorf("ClientName = %q", l.ClientName)
	}
	if l.Yacht != "lotus-royale" {
		t.Errorf("unset field overwritten: Yacht = %q", l.Yacht)
	}
	if !l.CommissionAmount.Equal(dec("200")) {
		t.Errorf("CommissionAmount = %s, want 200 (re-derived from new percentage)", l.CommissionAmount)
	}
	if !l.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt changed")
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		input     string
		want      Status
		wantExact bool
	}{
		{"Confirmed", StatusConfirmed, true},
		{"checked in", StatusCheckedIn, true},
		{"Closed-Won", StatusClosedWon, true},
		{"closed (lost)", StatusClosedLost, true},
		{"UNCONFIRMED", StatusUnconfirmed, true},
		{"cancelled by client", StatusCanceled, false},
		{"confirmed - paid", StatusConfirmed, false},
		{"", StatusUnconfirmed, false},
		{"???", StatusUnconfirmed, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, exact := ParseStatus(tt.input)
			if got != tt.want || exact != tt.wantExact {
				t.Errorf("ParseStatus(%q) = (%q, %v), want (%q, %v)", tt.input, got, exact, tt.want, tt.wantExact)
			}
		})
	}
}
