package etl

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/charterops/internal/booking"
	"github.com/JonMunkholm/charterops/internal/logging"
)

// Webhook result statuses.
const (
	WebhookCreated       = "created"
	WebhookAlreadySynced = "already synced"
)

// WebhookResult is returned to the webhook caller.
type WebhookResult struct {
	LeadID  string `json:"leadId"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// flexString accepts a JSON string, number, bool or null.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = flexString(v)
		return nil
	}
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		// Structured meta values carry nothing we map.
		*f = ""
		return nil
	}
	*f = flexString(s)
	return nil
}

func (f flexString) String() string {
	return strings.TrimSpace(string(f))
}

// WooOrder is the subset of a WooCommerce order webhook body used here.
type WooOrder struct {
	ID                 flexString     `json:"id"`
	Number             flexString     `json:"number"`
	Status             string         `json:"status"`
	Currency           string         `json:"currency"`
	Total              flexString     `json:"total"`
	PaymentMethodTitle string         `json:"payment_method_title"`
	TransactionID      flexString     `json:"transaction_id"`
	CustomerNote       string         `json:"customer_note"`
	Billing            WooBilling     `json:"billing"`
	LineItems          []WooLineItem  `json:"line_items"`
	MetaData           []WooMetaEntry `json:"meta_data"`
}

type WooBilling struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type WooLineItem struct {
	Name     string         `json:"name"`
	Quantity flexString     `json:"quantity"`
	Price    flexString     `json:"price"`
	Total    flexString     `json:"total"`
	MetaData []WooMetaEntry `json:"meta_data"`
}

type WooMetaEntry struct {
	Key          string     `json:"key"`
	DisplayKey   string     `json:"display_key"`
	Value        flexString `json:"value"`
	DisplayValue flexString `json:"display_value"`
}

func (e WooMetaEntry) key() string {
	k := e.DisplayKey
	if k == "" {
		k = e.Key
	}
	return strings.ToLower(strings.TrimSpace(k))
}

func (e WooMetaEntry) value() string {
	if v := e.Value.String(); v != "" {
		return v
	}
	return e.DisplayValue.String()
}

// wooStatuses maps WooCommerce order states onto booking statuses.
var wooStatuses = map[string]booking.Status{
	"pending":    booking.StatusUnconfirmed,
	"on-hold":    booking.StatusUnconfirmed,
	"processing": booking.StatusConfirmed,
	"completed":  booking.StatusCompleted,
	"cancelled":  booking.StatusCanceled,
	"refunded":   booking.StatusCanceled,
	"failed":     booking.StatusCanceled,
}

// SyncWooCommerceOrder creates a lead from an order webhook. A replayed
// order (its id already stored as a booking reference) is a no-op that
// reports "already synced".
func (m *Module) SyncWooCommerceOrder(ctx context.Context, body []byte) (WebhookResult, error) {
	var order WooOrder
	if err := json.Unmarshal(body, &order); err != nil {
		m.recorder.WebhookReceived(string(SourceWooCommerce), "invalid")
		return WebhookResult{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	p, err := m.wooPatch(order)
	if err != nil {
		m.recorder.WebhookReceived(string(SourceWooCommerce), "invalid")
		return WebhookResult{}, err
	}
	return m.syncWebhook(ctx, SourceWooCommerce, p)
}

func (m *Module) wooPatch(order WooOrder) (*booking.Patch, error) {
	orderID := order.ID.String()
	if orderID == "" || orderID == "0" {
		return nil, fmt.Errorf("%w: order id missing", ErrInvalidPayload)
	}

	p := &booking.Patch{
		Source:       string(SourceWooCommerce),
		BookingRefNo: booking.String(orderID),
	}

	name := strings.TrimSpace(order.Billing.FirstName + " " + order.Billing.LastName)
	setIfNotEmpty(&p.ClientName, name)
	setIfNotEmpty(&p.ClientEmail, strings.TrimSpace(order.Billing.Email))
	setIfNotEmpty(&p.ClientPhone, strings.TrimSpace(order.Billing.Phone))
	setIfNotEmpty(&p.ModeOfPayment, strings.TrimSpace(order.PaymentMethodTitle))
	setIfNotEmpty(&p.TransactionID, order.TransactionID.String())
	setIfNotEmpty(&p.Notes, strings.TrimSpace(order.CustomerNote))

	if st, ok := wooStatuses[strings.ToLower(strings.TrimSpace(order.Status))]; ok {
		p.Status = booking.StatusPtr(st)
	} else {
		st, _ := booking.ParseStatus(order.Status)
		p.Status = booking.StatusPtr(st)
	}

	if raw := order.Total.String(); raw != "" {
		p.TotalAmount = booking.Decimal(m.conv.Convert(FieldTotalAmount, raw).Decimal())
	}

	for _, e := range order.MetaData {
		m.applyMeta(p, e)
	}

	var lines []booking.PackageQuantity
	var addons []string
	for _, item := range order.LineItems {
		for _, e := range item.MetaData {
			m.applyMeta(p, e)
		}
		det := m.detector.Detect(SourceWooCommerce, item.Name)
		if p.Yacht == nil && det.Yacht != "" {
			setIfNotEmpty(&p.Yacht, m.conv.Convert(FieldYacht, det.Yacht).String())
		}
		if p.Type == nil && det.Type != "" {
			p.Type = booking.String(det.Type)
		}
		addons = append(addons, det.Addons...)

		qty := m.conv.Convert(FieldQuantity, item.Quantity.String()).Int()
		if qty == 0 {
			qty = 1
		}
		rate := m.conv.Convert(FieldRate, item.Price.String()).Decimal()
		if rate.IsZero() {
			if total := m.conv.Convert(FieldTotalAmount, item.Total.String()).Decimal(); total.IsPositive() {
				rate = total.Div(decimal.NewFromInt(int64(qty))).Round(2)
			}
		}
		lines = append(lines, booking.PackageQuantity{PackageName: det.Package, Quantity: qty, Rate: rate})
	}
	if lines != nil {
		p.PackageQuantities = lines
	}
	if addons != nil {
		p.Addons = addons
	}
	return p, nil
}

// applyMeta maps booking-plugin meta entries (date, yacht) onto p.
func (m *Module) applyMeta(p *booking.Patch, e WooMetaEntry) {
	key, val := e.key(), e.value()
	if val == "" {
		return
	}
	switch {
	case strings.Contains(key, "date") && p.Month == nil:
		p.Month = booking.String(m.conv.Convert(FieldMonth, val).String())
	case strings.Contains(key, "yacht") && p.Yacht == nil:
		det := m.detector.Detect(SourceWooCommerce, val)
		setIfNotEmpty(&p.Yacht, m.conv.Convert(FieldYacht, det.Yacht).String())
	}
}

// wpFields lists accepted form field names per value, most common first.
var wpFields = map[Field][]string{
	FieldClientName:  {"your-name", "name", "full-name", "full_name", "client-name"},
	FieldClientEmail: {"your-email", "email", "email-address"},
	FieldClientPhone: {"your-phone", "phone", "tel", "your-tel", "mobile"},
	FieldMonth:       {"cruise-date", "date", "booking-date", "event-date"},
	FieldYacht:       {"yacht", "your-yacht", "yacht-name", "cruise"},
	FieldPackage:     {"package", "your-package"},
	FieldAdults:      {"adults", "adult", "no-of-adults"},
	FieldChildren:    {"children", "kids", "no-of-children"},
	FieldNotes:       {"your-message", "message", "notes", "comments"},
}

// SyncWordPressForm creates an Unconfirmed lead from a marketing-site form
// submission. A name and an email or phone are required. A submission id,
// when sent, makes the call idempotent.
func (m *Module) SyncWordPressForm(ctx context.Context, fields map[string]string) (WebhookResult, error) {
	form := make(map[string]string, len(fields))
	for k, v := range fields {
		form[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	get := func(f Field) string {
		for _, k := range wpFields[f] {
			if v := form[k]; v != "" {
				return v
			}
		}
		return ""
	}

	name := get(FieldClientName)
	email, phone := get(FieldClientEmail), get(FieldClientPhone)
	if name == "" || (email == "" && phone == "") {
		m.recorder.WebhookReceived(string(SourceWordPress), "invalid")
		return WebhookResult{}, fmt.Errorf("%w: name and email or phone are required", ErrInvalidPayload)
	}

	p := &booking.Patch{
		Source:     string(SourceWordPress),
		ClientName: booking.String(name),
		Status:     booking.StatusPtr(booking.StatusUnconfirmed),
	}
	setIfNotEmpty(&p.ClientEmail, email)
	setIfNotEmpty(&p.ClientPhone, phone)
	setIfNotEmpty(&p.Notes, get(FieldNotes))
	if id := firstNonEmpty(form["submission_id"], form["submission-id"], form["entry_id"]); id != "" {
		p.BookingRefNo = booking.String("WP-" + id)
	}
	if raw := get(FieldMonth); raw != "" {
		p.Month = booking.String(m.conv.Convert(FieldMonth, raw).String())
	}

	pkg := ""
	if raw := get(FieldYacht); raw != "" {
		det := m.detector.Detect(SourceWordPress, raw)
		setIfNotEmpty(&p.Yacht, m.conv.Convert(FieldYacht, det.Yacht).String())
		if det.Type != "" {
			p.Type = booking.String(det.Type)
		}
		p.Addons = det.Addons
		pkg = det.Package
	}
	if raw := get(FieldPackage); raw != "" {
		pkg, _ = m.detector.DetectPackage(raw)
	}
	if pkg == "" {
		pkg = booking.PackageAdult
	}

	adults := m.conv.Convert(FieldAdults, get(FieldAdults)).Int()
	children := m.conv.Convert(FieldChildren, get(FieldChildren)).Int()
	var lines []booking.PackageQuantity
	if adults > 0 {
		lines = append(lines, booking.PackageQuantity{PackageName: pkg, Quantity: adults})
	}
	if children > 0 {
		lines = append(lines, booking.PackageQuantity{PackageName: ChildVariant(pkg), Quantity: children})
	}
	if lines != nil {
		p.PackageQuantities = lines
	}

	return m.syncWebhook(ctx, SourceWordPress, p)
}

func (m *Module) syncWebhook(ctx context.Context, source Source, p *booking.Patch) (WebhookResult, error) {
	TransformRow(source, p)

	holder := string(source)
	if ref := p.Ref(); ref != "" {
		holder += ":" + ref
	}
	logger := logging.Enrich(ctx, m.logger).With("source", string(source), "ref", p.Ref())

	id, outcome, err := m.rec.InsertOnce(ctx, holder, p)
	if err != nil {
		m.recorder.WebhookReceived(string(source), "failed")
		logger.Error("webhook sync failed", "error", err, "row", p)
		return WebhookResult{}, err
	}

	if outcome == OutcomeDuplicate {
		m.recorder.WebhookReceived(string(source), "duplicate")
		logger.Info("webhook replay ignored", "lead_id", id)
		return WebhookResult{LeadID: id, Status: WebhookAlreadySynced, Message: "already synced"}, nil
	}

	m.recorder.WebhookReceived(string(source), WebhookCreated)
	logger.Info("webhook synced", "lead_id", id)
	return WebhookResult{LeadID: id, Status: WebhookCreated, Message: "lead " + id + " created"}, nil
}

// FormValues flattens url.Values-like data or a decoded JSON object into
// the string map SyncWordPressForm expects. Arrays are joined with ", ".
func FormValues(in map[string]any) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = formValue(v)
	}
	return out
}

func formValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			if s := formValue(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(x, ", ")
	}
	return fmt.Sprint(v)
}

func setIfNotEmpty(dst **string, v string) {
	if v != "" {
		*dst = booking.String(v)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
