package etl

import (
	"strings"
)

// Field is a canonical Lead field name, or one of the helper columns the
// row builder folds into package lines.
type Field string

const (
	FieldID                        Field = "id"
	FieldClientName                Field = "clientName"
	FieldClientEmail               Field = "clientEmail"
	FieldClientPhone               Field = "clientPhone"
	FieldAgent                     Field = "agent"
	FieldYacht                     Field = "yacht"
	FieldOwnerUserID               Field = "ownerUserId"
	FieldLastModifiedByUserID      Field = "lastModifiedByUserId"
	FieldStatus                    Field = "status"
	FieldMonth                     Field = "month"
	FieldType                      Field = "type"
	FieldBookingRefNo              Field = "bookingRefNo"
	FieldTransactionID             Field = "transactionId"
	FieldModeOfPayment             Field = "modeOfPayment"
	FieldPaymentConfirmationStatus Field = "paymentConfirmationStatus"
	FieldTotalAmount               Field = "totalAmount"
	FieldCommissionPercentage      Field = "commissionPercentage"
	FieldCommissionAmount          Field = "commissionAmount"
	FieldPaidAmount                Field = "paidAmount"
	FieldCollectedAtCheckIn        Field = "collectedAtCheckIn"
	FieldNotes                     Field = "notes"
	FieldAddons                    Field = "addons"

	// Package line helpers.
	FieldPackage   Field = "package"
	FieldQuantity  Field = "quantity"
	FieldRate      Field = "rate"
	FieldAdults    Field = "adults"
	FieldChildren  Field = "children"
	FieldChildRate Field = "childRate"
)

// headerAliases maps normalized header tokens from both spreadsheet
// vocabularies to canonical fields.
var headerAliases = map[string]Field{
	// identity
	"id":      FieldID,
	"lead_id": FieldID,

	// references
	"booking_refno":     FieldBookingRefNo,
	"booking_ref_no":    FieldBookingRefNo,
	"booking_ref":       FieldBookingRefNo,
	"booking_reference": FieldBookingRefNo,
	"ref":               FieldBookingRefNo,
	"ref_no":            FieldBookingRefNo,
	"inv":               FieldBookingRefNo,
	"inv_no":            FieldBookingRefNo,
	"invoice":           FieldBookingRefNo,
	"invoice_no":        FieldBookingRefNo,
	"order_id":          FieldBookingRefNo,
	"transaction":       FieldTransactionID,
	"transaction_id":    FieldTransactionID,
	"trans_id":          FieldTransactionID,
	"txn_id":            FieldTransactionID,

	// client
	"client":        FieldClientName,
	"client_name":   FieldClientName,
	"customer":      FieldClientName,
	"customer_name": FieldClientName,
	"guest_name":    FieldClientName,
	"name":          FieldClientName,
	"email":         FieldClientEmail,
	"client_email":  FieldClientEmail,
	"phone":         FieldClientPhone,
	"mobile":        FieldClientPhone,
	"client_phone":  FieldClientPhone,

	// relationships
	"agent":       FieldAgent,
	"agent_name":  FieldAgent,
	"sales_agent": FieldAgent,
	"yacht":       FieldYacht,
	"yachtname":   FieldYacht,
	"yacht_name":  FieldYacht,
	"owner":       FieldOwnerUserID,
	"created_by":  FieldOwnerUserID,
	"user":        FieldOwnerUserID,
	"modified_by": FieldLastModifiedByUserID,
	"updated_by":  FieldLastModifiedByUserID,

	// booking facts
	"status":                      FieldStatus,
	"booking_status":              FieldStatus,
	"date":                        FieldMonth,
	"month":                       FieldMonth,
	"event":                       FieldMonth,
	"event_date":                  FieldMonth,
	"booking_date":                FieldMonth,
	"trip_date":                   FieldMonth,
	"type":                        FieldType,
	"cruise_type":                 FieldType,
	"category":                    FieldType,
	"payment_method":              FieldModeOfPayment,
	"mode_of_payment":             FieldModeOfPayment,
	"payment_mode":                FieldModeOfPayment,
	"payment_status":              FieldPaymentConfirmationStatus,
	"payment_confirmation_status": FieldPaymentConfirmationStatus,

	// money
	"total":                 FieldTotalAmount,
	"total_amount":          FieldTotalAmount,
	"amount":                FieldTotalAmount,
	"paid":                  FieldPaidAmount,
	"paid_amount":           FieldPaidAmount,
	"amount_paid":           FieldPaidAmount,
	"commission":            FieldCommissionPercentage,
	"commission_%":          FieldCommissionPercentage,
	"commission_percentage": FieldCommissionPercentage,
	"commission_amount":     FieldCommissionAmount,
	"collected":             FieldCollectedAtCheckIn,
	"collected_at_check_in": FieldCollectedAtCheckIn,
	"collected_at_checkin":  FieldCollectedAtCheckIn,

	// free text
	"notes":    FieldNotes,
	"note":     FieldNotes,
	"remarks":  FieldNotes,
	"comment":  FieldNotes,
	"comments": FieldNotes,
	"addons":   FieldAddons,
	"add_ons":  FieldAddons,
	"extras":   FieldAddons,

	// package lines
	"package":      FieldPackage,
	"package_name": FieldPackage,
	"qty":          FieldQuantity,
	"quantity":     FieldQuantity,
	"pax":          FieldQuantity,
	"no_of_pax":    FieldQuantity,
	"tickets":      FieldQuantity,
	"rate":         FieldRate,
	"price":        FieldRate,
	"unit_price":   FieldRate,
	"adults":       FieldAdults,
	"adult":        FieldAdults,
	"children":     FieldChildren,
	"child":        FieldChildren,
	"kids":         FieldChildren,
	"child_rate":   FieldChildRate,
}

// NormalizeHeader lower-cases and trims a header cell and collapses runs of
// whitespace into a single underscore.
func NormalizeHeader(h string) string {
	return strings.Join(strings.Fields(strings.ToLower(StripBOM(h))), "_")
}

// MapHeader resolves one raw header cell to a canonical field.
func MapHeader(h string) (Field, bool) {
	f, ok := headerAliases[NormalizeHeader(h)]
	return f, ok
}

// HeaderMap is the resolved column layout of a file.
type HeaderMap struct {
	Columns map[Field]int
	Ignored []string
}

// MapHeaders resolves a header row. The first column mapping to a field
// wins; unmapped headers are listed in Ignored.
func MapHeaders(header []string) HeaderMap {
	hm := HeaderMap{Columns: make(map[Field]int, len(header))}
	for i, h := range header {
		f, ok := MapHeader(h)
		if !ok {
			if strings.TrimSpace(h) != "" {
				hm.Ignored = append(hm.Ignored, h)
			}
			continue
		}
		if _, seen := hm.Columns[f]; !seen {
			hm.Columns[f] = i
		}
	}
	return hm
}

// Cell returns the trimmed cell for field, or "" with ok=false when the
// column is absent, the row is short or the cell is empty.
func (hm HeaderMap) Cell(row []string, f Field) (string, bool) {
	i, ok := hm.Columns[f]
	if !ok || i >= len(row) {
		return "", false
	}
	v := strings.TrimSpace(row[i])
	return v, v != ""
}

// Has reports whether the file has a column for f.
func (hm HeaderMap) Has(f Field) bool {
	_, ok := hm.Columns[f]
	return ok
}
