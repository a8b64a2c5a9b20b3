// Package booking defines the canonical charter booking record (Lead) and the
// rules that keep its money fields consistent.
package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Package names in the fixed vocabulary. Yacht-specific custom packages may
// use any other name.
const (
	PackageAdult      = "ADULT"
	PackageChild      = "CHILD"
	PackageInfant     = "INFANT"
	PackageVIPAdult   = "VIP ADULT"
	PackageVIPChild   = "VIP CHILD"
	PackageRoyalAdult = "ROYAL ADULT"
	PackageRoyalChild = "ROYAL CHILD"
	PackageAdultAlc   = "ADULT ALC"
	PackageVIPAlc     = "VIP ALC"
	PackageRoyalAlc   = "ROYAL ALC"
)

// PackageVocabulary lists the canonical package names.
var PackageVocabulary = []string{
	PackageAdult, PackageChild, PackageInfant,
	PackageVIPAdult, PackageVIPChild,
	PackageRoyalAdult, PackageRoyalChild,
	PackageAdultAlc, PackageVIPAlc, PackageRoyalAlc,
}

// IsVocabularyPackage reports whether name is one of the canonical package names.
func IsVocabularyPackage(name string) bool {
	for _, p := range PackageVocabulary {
		if p == name {
			return true
		}
	}
	return false
}

// Tolerance is the rounding tolerance for money invariants.
var Tolerance = decimal.NewFromFloat(0.01)

var hundred = decimal.NewFromInt(100)

var (
	ErrMissingID      = errors.New("lead id is required")
	ErrNegativeAmount = errors.New("negative amount")
	ErrInvalidPackage = errors.New("invalid package quantity")
)

// PackageQuantity is one ticket line of a booking.
type PackageQuantity struct {
	PackageID   string          `json:"packageId,omitempty"`
	PackageName string          `json:"packageName"`
	Quantity    int             `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
}

// Lead is a yacht trip booking.
type Lead struct {
	ID                   string `json:"id"`
	ClientName           string `json:"clientName"`
	ClientEmail          string `json:"clientEmail,omitempty"`
	ClientPhone          string `json:"clientPhone,omitempty"`
	Agent                string `json:"agent,omitempty"`
	Yacht                string `json:"yacht,omitempty"`
	OwnerUserID          string `json:"ownerUserId,omitempty"`
	LastModifiedByUserID string `json:"lastModifiedByUserId,omitempty"`

	Status                    Status `json:"status"`
	Month                     string `json:"month,omitempty"`
	Type                      string `json:"type,omitempty"`
	BookingRefNo              string `json:"bookingRefNo,omitempty"`
	TransactionID             string `json:"transactionId,omitempty"`
	ModeOfPayment             string `json:"modeOfPayment,omitempty"`
	PaymentConfirmationStatus string `json:"paymentConfirmationStatus,omitempty"`

	PackageQuantities []PackageQuantity `json:"packageQuantities"`
	Addons            []string          `json:"addons,omitempty"`

	TotalAmount          decimal.Decimal `json:"totalAmount"`
	CommissionPercentage decimal.Decimal `json:"commissionPercentage"`
	CommissionAmount     decimal.Decimal `json:"commissionAmount"`
	NetAmount            decimal.Decimal `json:"netAmount"`
	PaidAmount           decimal.Decimal `json:"paidAmount"`
	BalanceAmount        decimal.Decimal `json:"balanceAmount"`
	CollectedAtCheckIn   decimal.Decimal `json:"collectedAtCheckIn"`

	Notes  string `json:"notes,omitempty"`
	Source string `json:"source,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Recalculate derives commission, net and balance from the entered amounts.
// A commission percentage only drives the commission amount when no explicit
// amount was entered.
func (l *Lead) Recalculate() {
	if l.CommissionAmount.IsZero() && l.CommissionPercentage.IsPositive() {
		l.CommissionAmount = l.TotalAmount.Mul(l.CommissionPercentage).Div(hundred).Round(2)
	}
	l.NetAmount = l.TotalAmount.Sub(l.CommissionAmount).Round(2)
	l.BalanceAmount = l.NetAmount.Sub(l.PaidAmount).Round(2)
}

// Validate checks identity and non-negativity. Call Recalculate first.
func (l *Lead) Validate() error {
	if l.ID == "" {
		return ErrMissingID
	}

	amounts := []struct {
		name  string
		value decimal.Decimal
	}{
		{"totalAmount", l.TotalAmount},
		{"commissionPercentage", l.CommissionPercentage},
		{"commissionAmount", l.CommissionAmount},
		{"netAmount", l.NetAmount},
		{"paidAmount", l.PaidAmount},
		{"balanceAmount", l.BalanceAmount},
		{"collectedAtCheckIn", l.CollectedAtCheckIn},
	}
	for _, a := range amounts {
		if a.value.IsNegative() {
			return fmt.Errorf("%w: %s is %s", ErrNegativeAmount, a.name, a.value.String())
		}
	}

	for i, pq := range l.PackageQuantities {
		if pq.Quantity < 0 || pq.Rate.IsNegative() {
			return fmt.Errorf("%w: line %d (%s) quantity %d rate %s",
				ErrInvalidPackage, i+1, pq.PackageName, pq.Quantity, pq.Rate.String())
		}
		if pq.PackageName == "" {
			return fmt.Errorf("%w: line %d has no package name", ErrInvalidPackage, i+1)
		}
	}
	return nil
}

// InvariantsHold reports whether net and balance agree with the entered
// amounts within Tolerance.
func (l *Lead) InvariantsHold() bool {
	net := l.TotalAmount.Sub(l.CommissionAmount)
	if l.NetAmount.Sub(net).Abs().GreaterThan(Tolerance) {
		return false
	}
	balance := l.NetAmount.Sub(l.PaidAmount)
	return !l.BalanceAmount.Sub(balance).Abs().GreaterThan(Tolerance)
}

// Clone returns a deep copy of the lead.
func (l *Lead) Clone() *Lead {
	c := *l
	if l.PackageQuantities != nil {
		c.PackageQuantities = append([]PackageQuantity(nil), l.PackageQuantities...)
	}
	if l.Addons != nil {
		c.Addons = append([]string(nil), l.Addons...)
	}
	return &c
}
