package etl

// convert.go turns raw spreadsheet cells into typed Lead values.
//
// Conversion never fails. Unparsable input degrades to a documented default
// (zero for numbers, the raw text for dates and unresolved references,
// Unconfirmed for unknown statuses) and the result is marked UsedDefault so
// the importer can report it.

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/charterops/internal/booking"
	"github.com/JonMunkholm/charterops/internal/refdata"
)

// Reasons recorded on defaulted conversions.
const (
	ReasonInvalidNumber   = "invalid number"
	ReasonInvalidDate     = "invalid date"
	ReasonUnresolvedRef   = "unresolved reference"
	ReasonGuessedStatus   = "guessed status"
	ReasonUnknownPackage  = "unknown package"
	ReasonFallbackPackage = "fallback package"
)

// Converted is the outcome of one cell conversion.
type Converted struct {
	Value       any
	UsedDefault bool
	Reason      string
}

// Decimal returns the value as a decimal, zero for other types.
func (c Converted) Decimal() decimal.Decimal {
	d, _ := c.Value.(decimal.Decimal)
	return d
}

// Int returns the value as an int, zero for other types.
func (c Converted) Int() int {
	n, _ := c.Value.(int)
	return n
}

// String returns the value as a string. Statuses are rendered by name.
func (c Converted) String() string {
	switch v := c.Value.(type) {
	case string:
		return v
	case booking.Status:
		return string(v)
	}
	return ""
}

// Status returns the value as a booking status.
func (c Converted) Status() booking.Status {
	s, _ := c.Value.(booking.Status)
	return s
}

var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

var currencyCleaner = strings.NewReplacer(
	"$", "", "\u20ac", "", "\u00a3", "", "AED", "", "aed", "", "Dhs", "", "DHS", "",
	",", "", "%", "", " ", "", "\u00a0", "",
)

// TwoDigitYearPivot bounds how far into the future a 2-digit year may land
// before it is moved to the previous century.
var TwoDigitYearPivot = 20

// Day-first layouts: spreadsheets in this business are UAE-formatted.
var (
	dateLayouts = []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
		"2006/01/02",
		"02/01/2006 15:04",
		"2/1/2006 15:04",
		"02/01/2006",
		"2/1/2006",
		"02-01-2006",
		"2-1-2006",
		"02.01.2006",
		"2.1.2006",
		"2 Jan 2006",
		"02 Jan 2006",
		"2 January 2006",
		"2-Jan-2006",
		"Jan 2, 2006",
		"January 2, 2006",
		"Jan 2 2006",
		"January 2006",
		"Jan 2006",
		"Jan-2006",
	}
	twoDigitYearLayouts = []string{
		"02/01/06", "2/1/06", "02-01-06", "2-1-06", "2-Jan-06",
	}
)

// Converter coerces raw cells per canonical field. It is safe for
// concurrent use.
type Converter struct {
	dir *refdata.Directory
	now func() time.Time
}

// NewConverter returns a converter resolving names through dir. A nil
// directory resolves nothing.
func NewConverter(dir *refdata.Directory) *Converter {
	if dir == nil {
		dir = refdata.New(nil, nil, nil)
	}
	return &Converter{dir: dir, now: time.Now}
}

// Convert coerces raw for field. Empty input yields a zero value without
// UsedDefault; callers treat empty cells as absent before calling.
func (c *Converter) Convert(field Field, raw string) Converted {
	raw = CleanCell(raw)

	switch field {
	case FieldTotalAmount, FieldCommissionPercentage, FieldCommissionAmount,
		FieldPaidAmount, FieldCollectedAtCheckIn, FieldRate, FieldChildRate:
		return convertDecimal(raw)

	case FieldQuantity, FieldAdults, FieldChildren:
		return convertQuantity(raw)

	case FieldMonth:
		return c.convertDate(raw)

	case FieldAgent:
		return c.lookup(refdata.Agents, raw)
	case FieldYacht:
		return c.lookup(refdata.Yachts, raw)
	case FieldOwnerUserID, FieldLastModifiedByUserID:
		return c.lookup(refdata.Users, raw)

	case FieldStatus:
		st, exact := booking.ParseStatus(raw)
		if raw != "" && !exact {
			return Converted{Value: st, UsedDefault: true, Reason: ReasonGuessedStatus}
		}
		return Converted{Value: st}
	}

	return Converted{Value: raw}
}

func convertDecimal(raw string) Converted {
	if raw == "" {
		return Converted{Value: decimal.Zero}
	}
	s := strings.TrimSpace(raw)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = currencyCleaner.Replace(s)
	if negative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return Converted{Value: decimal.Zero, UsedDefault: true, Reason: ReasonInvalidNumber}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Converted{Value: decimal.Zero, UsedDefault: true, Reason: ReasonInvalidNumber}
	}
	return Converted{Value: d}
}

func convertQuantity(raw string) Converted {
	conv := convertDecimal(raw)
	if conv.UsedDefault {
		return Converted{Value: 0, UsedDefault: true, Reason: conv.Reason}
	}
	d := conv.Decimal()
	if !d.Equal(d.Truncate(0)) || d.IsNegative() {
		return Converted{Value: 0, UsedDefault: true, Reason: ReasonInvalidNumber}
	}
	return Converted{Value: int(d.IntPart())}
}

// convertDate returns an RFC 3339 UTC timestamp, or the raw text flagged
// as invalid.
func (c *Converter) convertDate(raw string) Converted {
	if raw == "" {
		return Converted{Value: ""}
	}
	if t, ok := c.parseDate(raw); ok {
		return Converted{Value: t.UTC().Format(time.RFC3339)}
	}
	return Converted{Value: raw, UsedDefault: true, Reason: ReasonInvalidDate}
}

func (c *Converter) parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivot := c.now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivot {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}
	return time.Time{}, false
}

func (c *Converter) lookup(kind refdata.Kind, raw string) Converted {
	if raw == "" {
		return Converted{Value: ""}
	}
	if id, ok := c.dir.Resolve(kind, raw); ok {
		return Converted{Value: id}
	}
	return Converted{Value: raw, UsedDefault: true, Reason: ReasonUnresolvedRef}
}

// CleanCell removes common spreadsheet artifacts: surrounding whitespace,
// the Excel ="..." text prefix and one layer of stray quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}
