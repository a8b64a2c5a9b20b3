package etl

import (
	"strings"

	"github.com/JonMunkholm/charterops/internal/booking"
)

// Payment confirmation values written for webhook rows.
const (
	PaymentPaid    = "Paid"
	PaymentPending = "Pending"
)

// TransformRow applies business overrides to a mapped row before
// reconciliation. It edits p in place and returns it.
//
// Addons are upper-cased and de-duplicated, with every cake variant folded
// into CAKE. Webhook rows with a paid status and no explicit paid amount are
// marked fully paid.
func TransformRow(source Source, p *booking.Patch) *booking.Patch {
	if p == nil {
		return nil
	}
	if p.Source == "" {
		p.Source = string(source)
	}
	if p.Addons != nil {
		p.Addons = normalizeAddons(p.Addons)
	}
	if source.IsWebhook() {
		applyPaymentDefaults(p)
	}
	return p
}

func normalizeAddons(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, a := range in {
		a = strings.ToUpper(strings.Join(strings.Fields(a), " "))
		if strings.Contains(a, "CAKE") {
			a = "CAKE"
		}
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}

func applyPaymentDefaults(p *booking.Patch) {
	if p.Status == nil {
		return
	}
	paid := *p.Status == booking.StatusConfirmed || *p.Status == booking.StatusCompleted
	if p.PaymentConfirmationStatus == nil {
		if paid {
			p.PaymentConfirmationStatus = booking.String(PaymentPaid)
		} else {
			p.PaymentConfirmationStatus = booking.String(PaymentPending)
		}
	}
	if paid && p.PaidAmount == nil && p.TotalAmount != nil {
		p.PaidAmount = booking.Decimal(*p.TotalAmount)
	}
}
