package etl

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/charterops/internal/booking"
)

// rowBuilder turns one tokenized row into a Patch.
type rowBuilder struct {
	conv *Converter
	det  *PackageDetector
}

// textFields are copied as converted strings.
var textFields = []Field{
	FieldID, FieldClientName, FieldClientEmail, FieldClientPhone,
	FieldBookingRefNo, FieldTransactionID, FieldModeOfPayment,
	FieldPaymentConfirmationStatus, FieldNotes, FieldType,
}

var moneyFields = []Field{
	FieldTotalAmount, FieldCommissionPercentage, FieldCommissionAmount,
	FieldPaidAmount, FieldCollectedAtCheckIn,
}

func (b *rowBuilder) build(source Source, hm HeaderMap, row []string, line int, q *QualityReport) *booking.Patch {
	p := &booking.Patch{Source: string(source), Line: line}

	for _, f := range textFields {
		raw, ok := hm.Cell(row, f)
		if !ok {
			continue
		}
		v := b.conv.Convert(f, raw).String()
		if v == "" {
			continue
		}
		setText(p, f, v)
	}

	for _, f := range moneyFields {
		raw, ok := hm.Cell(row, f)
		if !ok {
			continue
		}
		conv := b.conv.Convert(f, raw)
		q.Add(line, f, raw, conv)
		setMoney(p, f, conv.Decimal())
	}

	for _, f := range []Field{FieldAgent, FieldOwnerUserID, FieldLastModifiedByUserID} {
		raw, ok := hm.Cell(row, f)
		if !ok {
			continue
		}
		conv := b.conv.Convert(f, raw)
		q.Add(line, f, raw, conv)
		setText(p, f, conv.String())
	}

	if raw, ok := hm.Cell(row, FieldStatus); ok {
		conv := b.conv.Convert(FieldStatus, raw)
		q.Add(line, FieldStatus, raw, conv)
		p.Status = booking.StatusPtr(conv.Status())
	}

	if raw, ok := hm.Cell(row, FieldMonth); ok {
		conv := b.conv.Convert(FieldMonth, raw)
		q.Add(line, FieldMonth, raw, conv)
		p.Month = booking.String(conv.String())
	}

	if raw, ok := hm.Cell(row, FieldAddons); ok {
		p.Addons = splitList(raw)
	}

	pkg := b.detectPackage(source, hm, row, line, p, q)
	b.packageLines(hm, row, line, pkg, p, q)
	return p
}

// detectPackage fills yacht, type and addons and returns the package name
// for this row, or "" when the row names none.
func (b *rowBuilder) detectPackage(source Source, hm HeaderMap, row []string, line int, p *booking.Patch, q *QualityReport) string {
	yachtRaw, hasYacht := hm.Cell(row, FieldYacht)
	pkgRaw, hasPkg := hm.Cell(row, FieldPackage)

	var pkg string
	if hasYacht {
		det := b.det.Detect(source, yachtRaw)
		b.setYacht(line, yachtRaw, det.Yacht, p, q)

		if source != SourceMaster {
			if p.Type == nil && det.Type != "" {
				p.Type = booking.String(det.Type)
			}
			p.Addons = append(p.Addons, det.Addons...)
			if !hasPkg {
				pkg = det.Package
				if det.Reason != "" {
					q.Note(line, FieldPackage, yachtRaw, det.Reason)
				}
			}
		}
	}

	if hasPkg {
		name, matched := b.det.DetectPackage(pkgRaw)
		if !matched {
			q.Note(line, FieldPackage, pkgRaw, ReasonUnknownPackage)
		}
		pkg = name
	}
	return pkg
}

func (b *rowBuilder) setYacht(line int, raw, mapped string, p *booking.Patch, q *QualityReport) {
	conv := b.conv.Convert(FieldYacht, mapped)
	q.Add(line, FieldYacht, raw, conv)
	if v := conv.String(); v != "" {
		p.Yacht = booking.String(v)
	}
}

// packageLines builds ticket lines from quantity columns. Adult/child
// columns produce one line each; a plain quantity column produces one line;
// a detected package with no quantity columns becomes a single ticket
// priced at the rate, or the total when no rate is given.
func (b *rowBuilder) packageLines(hm HeaderMap, row []string, line int, pkg string, p *booking.Patch, q *QualityReport) {
	rate := b.decimalCell(hm, row, line, FieldRate, q)

	if hm.Has(FieldAdults) || hm.Has(FieldChildren) {
		if pkg == "" {
			pkg = booking.PackageAdult
		}
		var lines []booking.PackageQuantity
		if n := b.intCell(hm, row, line, FieldAdults, q); n > 0 {
			lines = append(lines, booking.PackageQuantity{PackageName: pkg, Quantity: n, Rate: rate})
		}
		if n := b.intCell(hm, row, line, FieldChildren, q); n > 0 {
			childRate := rate
			if _, ok := hm.Cell(row, FieldChildRate); ok {
				childRate = b.decimalCell(hm, row, line, FieldChildRate, q)
			}
			lines = append(lines, booking.PackageQuantity{PackageName: ChildVariant(pkg), Quantity: n, Rate: childRate})
		}
		if lines != nil {
			p.PackageQuantities = lines
		}
		return
	}

	if pkg == "" {
		return
	}

	if _, ok := hm.Cell(row, FieldQuantity); ok {
		n := b.intCell(hm, row, line, FieldQuantity, q)
		p.PackageQuantities = []booking.PackageQuantity{{PackageName: pkg, Quantity: n, Rate: rate}}
		return
	}

	if _, ok := hm.Cell(row, FieldRate); !ok && p.TotalAmount != nil {
		rate = *p.TotalAmount
	}
	p.PackageQuantities = []booking.PackageQuantity{{PackageName: pkg, Quantity: 1, Rate: rate}}
}

func (b *rowBuilder) decimalCell(hm HeaderMap, row []string, line int, f Field, q *QualityReport) decimal.Decimal {
	raw, ok := hm.Cell(row, f)
	if !ok {
		return decimal.Zero
	}
	conv := b.conv.Convert(f, raw)
	q.Add(line, f, raw, conv)
	return conv.Decimal()
}

func (b *rowBuilder) intCell(hm HeaderMap, row []string, line int, f Field, q *QualityReport) int {
	raw, ok := hm.Cell(row, f)
	if !ok {
		return 0
	}
	conv := b.conv.Convert(f, raw)
	q.Add(line, f, raw, conv)
	return conv.Int()
}

// ChildVariant maps an adult package to its child ticket.
func ChildVariant(pkg string) string {
	switch pkg {
	case booking.PackageVIPAdult, booking.PackageVIPAlc, booking.PackageVIPChild:
		return booking.PackageVIPChild
	case booking.PackageRoyalAdult, booking.PackageRoyalAlc, booking.PackageRoyalChild:
		return booking.PackageRoyalChild
	}
	return booking.PackageChild
}

func setText(p *booking.Patch, f Field, v string) {
	s := booking.String(v)
	switch f {
	case FieldID:
		p.ID = s
	case FieldClientName:
		p.ClientName = s
	case FieldClientEmail:
		p.ClientEmail = s
	case FieldClientPhone:
		p.ClientPhone = s
	case FieldAgent:
		p.Agent = s
	case FieldOwnerUserID:
		p.OwnerUserID = s
	case FieldLastModifiedByUserID:
		p.LastModifiedByUserID = s
	case FieldBookingRefNo:
		p.BookingRefNo = s
	case FieldTransactionID:
		p.TransactionID = s
	case FieldModeOfPayment:
		p.ModeOfPayment = s
	case FieldPaymentConfirmationStatus:
		p.PaymentConfirmationStatus = s
	case FieldNotes:
		p.Notes = s
	case FieldType:
		p.Type = s
	}
}

func setMoney(p *booking.Patch, f Field, d decimal.Decimal) {
	v := booking.Decimal(d)
	switch f {
	case FieldTotalAmount:
		p.TotalAmount = v
	case FieldCommissionPercentage:
		p.CommissionPercentage = v
	case FieldCommissionAmount:
		p.CommissionAmount = v
	case FieldPaidAmount:
		p.PaidAmount = v
	case FieldCollectedAtCheckIn:
		p.CollectedAtCheckIn = v
	}
}

// splitList splits a free-text list on commas, semicolons, plus signs,
// slashes and pipes.
func splitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '+' || r == '/' || r == '|'
	})
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
