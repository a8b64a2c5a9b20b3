package etl

import (
	"fmt"
	"strings"
)

// Source tags which schema or webhook produced a row.
type Source string

const (
	SourceDefault     Source = "DEFAULT"
	SourceMaster      Source = "MASTER"
	SourceWooCommerce Source = "WOOCOMMERCE"
	SourceWordPress   Source = "WORDPRESS"
)

// ParseSource accepts the spreadsheet source names case-insensitively.
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToUpper(strings.TrimSpace(s))) {
	case SourceDefault, "A", "BOOKINGS":
		return SourceDefault, nil
	case SourceMaster, "B", "OPERATIONS":
		return SourceMaster, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSource, s)
}

// IsWebhook reports whether rows from s arrive one at a time over HTTP.
func (s Source) IsWebhook() bool {
	return s == SourceWooCommerce || s == SourceWordPress
}

// QualityNote records one value that was replaced by a default.
type QualityNote struct {
	Line   int    `json:"line,omitempty"`
	Field  Field  `json:"field"`
	Raw    string `json:"raw"`
	Reason string `json:"reason"`
}

// QualityReport collects every defaulted value of an import.
type QualityReport struct {
	Notes          []QualityNote `json:"notes"`
	IgnoredHeaders []string      `json:"ignoredHeaders,omitempty"`
}

// Add records a note when conv used a default.
func (q *QualityReport) Add(line int, field Field, raw string, conv Converted) {
	if !conv.UsedDefault {
		return
	}
	q.Note(line, field, raw, conv.Reason)
}

// Note records a note unconditionally.
func (q *QualityReport) Note(line int, field Field, raw, reason string) {
	q.Notes = append(q.Notes, QualityNote{Line: line, Field: field, Raw: raw, Reason: reason})
}

// Len returns the number of notes.
func (q *QualityReport) Len() int {
	if q == nil {
		return 0
	}
	return len(q.Notes)
}

// CountByReason groups notes by reason.
func (q *QualityReport) CountByReason() map[string]int {
	out := make(map[string]int)
	if q == nil {
		return out
	}
	for _, n := range q.Notes {
		out[n.Reason]++
	}
	return out
}
