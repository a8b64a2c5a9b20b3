package booking

import (
	"time"

	"github.com/shopspring/decimal"
)

// Patch is a partially populated Lead produced by an import or webhook.
// A nil field was absent from the source and leaves the stored value alone.
type Patch struct {
	ID                   *string `json:"id,omitempty"`
	ClientName           *string `json:"clientName,omitempty"`
	ClientEmail          *string `json:"clientEmail,omitempty"`
	ClientPhone          *string `json:"clientPhone,omitempty"`
	Agent                *string `json:"agent,omitempty"`
	Yacht                *string `json:"yacht,omitempty"`
	OwnerUserID          *string `json:"ownerUserId,omitempty"`
	LastModifiedByUserID *string `json:"lastModifiedByUserId,omitempty"`

	Status                    *Status `json:"status,omitempty"`
	Month                     *string `json:"month,omitempty"`
	Type                      *string `json:"type,omitempty"`
	BookingRefNo              *string `json:"bookingRefNo,omitempty"`
	TransactionID             *string `json:"transactionId,omitempty"`
	ModeOfPayment             *string `json:"modeOfPayment,omitempty"`
	PaymentConfirmationStatus *string `json:"paymentConfirmationStatus,omitempty"`

	PackageQuantities []PackageQuantity `json:"packageQuantities,omitempty"`
	Addons            []string          `json:"addons,omitempty"`

	TotalAmount          *decimal.Decimal `json:"totalAmount,omitempty"`
	CommissionPercentage *decimal.Decimal `json:"commissionPercentage,omitempty"`
	CommissionAmount     *decimal.Decimal `json:"commissionAmount,omitempty"`
	PaidAmount           *decimal.Decimal `json:"paidAmount,omitempty"`
	CollectedAtCheckIn   *decimal.Decimal `json:"collectedAtCheckIn,omitempty"`

	Notes  *string `json:"notes,omitempty"`
	Source string  `json:"source,omitempty"`

	// Line is the 1-based source line, zero for webhook rows.
	Line int `json:"line,omitempty"`
}

// Ref returns the booking reference, or "" when absent.
func (p *Patch) Ref() string { return deref(p.BookingRefNo) }

// TransID returns the transaction id, or "" when absent.
func (p *Patch) TransID() string { return deref(p.TransactionID) }

// NotesText returns the notes, or "" when absent.
func (p *Patch) NotesText() string { return deref(p.Notes) }

// Apply copies every set field of p over l. Notes are copied as-is; callers
// that must preserve accumulated notes merge them before calling Apply.
// ID and CreatedAt are never touched.
func (p *Patch) Apply(l *Lead) {
	setString(&l.ClientName, p.ClientName)
	setString(&l.ClientEmail, p.ClientEmail)
	setString(&l.ClientPhone, p.ClientPhone)
	setString(&l.Agent, p.Agent)
	setString(&l.Yacht, p.Yacht)
	setString(&l.OwnerUserID, p.OwnerUserID)
	setString(&l.LastModifiedByUserID, p.LastModifiedByUserID)
	if p.Status != nil {
		l.Status = *p.Status
	}
	setString(&l.Month, p.Month)
	setString(&l.Type, p.Type)
	setString(&l.BookingRefNo, p.BookingRefNo)
	setString(&l.TransactionID, p.TransactionID)
	setString(&l.ModeOfPayment, p.ModeOfPayment)
	setString(&l.PaymentConfirmationStatus, p.PaymentConfirmationStatus)

	if p.PackageQuantities != nil {
		l.PackageQuantities = append([]PackageQuantity(nil), p.PackageQuantities...)
	}
	if p.Addons != nil {
		l.Addons = append([]string(nil), p.Addons...)
	}

	setDecimal(&l.TotalAmount, p.TotalAmount)
	setDecimal(&l.CommissionPercentage, p.CommissionPercentage)
	if p.CommissionPercentage != nil && p.CommissionAmount == nil {
		// Re-derive from the new percentage.
		l.CommissionAmount = decimal.Zero
	}
	setDecimal(&l.CommissionAmount, p.CommissionAmount)
	setDecimal(&l.PaidAmount, p.PaidAmount)
	setDecimal(&l.CollectedAtCheckIn, p.CollectedAtCheckIn)

	setString(&l.Notes, p.Notes)
	if p.Source != "" {
		l.Source = p.Source
	}
}

// NewLeadFromPatch builds a fresh Lead with the given id. Status defaults to
// Unconfirmed and both timestamps are set to now.
func NewLeadFromPatch(id string, p *Patch, now time.Time) *Lead {
	l := &Lead{
		ID:                id,
		Status:            StatusUnconfirmed,
		PackageQuantities: []PackageQuantity{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	p.Apply(l)
	l.Recalculate()
	return l
}

// String returns a pointer to s. Handy when building patches.
func String(s string) *string { return &s }

// Decimal returns a pointer to d.
func Decimal(d decimal.Decimal) *decimal.Decimal { return &d }

// StatusPtr returns a pointer to s.
func StatusPtr(s Status) *Status { return &s }

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setDecimal(dst *decimal.Decimal, src *decimal.Decimal) {
	if src != nil {
		*dst = *src
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
