package booking

import "strings"

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusUnconfirmed Status = "Unconfirmed"
	StatusConfirmed   Status = "Confirmed"
	StatusBalance     Status = "Balance"
	StatusCheckedIn   Status = "Checked In"
	StatusCompleted   Status = "Completed"
	StatusCanceled    Status = "Canceled"
	StatusClosedWon   Status = "Closed (Won)"
	StatusClosedLost  Status = "Closed (Lost)"
)

// Statuses lists every known status in lifecycle order.
var Statuses = []Status{
	StatusUnconfirmed,
	StatusConfirmed,
	StatusBalance,
	StatusCheckedIn,
	StatusCompleted,
	StatusCanceled,
	StatusClosedWon,
	StatusClosedLost,
}

// statusHints maps substrings seen in spreadsheets to a status. Order matters:
// "unconfirmed" must be checked before "confirm", "closed lost" before "lost".
var statusHints = []struct {
	hint   string
	status Status
}{
	{"unconfirm", StatusUnconfirmed},
	{"pending", StatusUnconfirmed},
	{"on-hold", StatusUnconfirmed},
	{"lost", StatusClosedLost},
	{"won", StatusClosedWon},
	{"cancel", StatusCanceled},
	{"refund", StatusCanceled},
	{"check", StatusCheckedIn},
	{"complete", StatusCompleted},
	{"balance", StatusBalance},
	{"confirm", StatusConfirmed},
	{"processing", StatusConfirmed},
}

// ParseStatus maps free text onto a Status. The second return value is false
// when the input did not name a status exactly and the result is a guess
// (including the Unconfirmed fallback for unrecognised text).
func ParseStatus(raw string) (Status, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return StatusUnconfirmed, false
	}

	for _, st := range Statuses {
		if s == strings.ToLower(string(st)) {
			return st, true
		}
	}

	// "closed won", "closed-won", "closed_won"
	compact := strings.NewReplacer("(", "", ")", "", "-", " ", "_", " ").Replace(s)
	for _, st := range Statuses {
		if compact == strings.NewReplacer("(", "", ")", "").Replace(strings.ToLower(string(st))) {
			return st, true
		}
	}

	for _, h := range statusHints {
		if strings.Contains(s, h.hint) {
			return h.status, false
		}
	}
	return StatusUnconfirmed, false
}
