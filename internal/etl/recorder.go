package etl

import "time"

// Recorder receives import and webhook measurements. The metrics package
// provides the Prometheus implementation.
type Recorder interface {
	RowProcessed(source, outcome string)
	ImportCompleted(source string, rows int, elapsed time.Duration)
	WebhookReceived(source, status string)
}

type nopRecorder struct{}

func (nopRecorder) RowProcessed(string, string)                {}
func (nopRecorder) ImportCompleted(string, int, time.Duration) {}
func (nopRecorder) WebhookReceived(string, string)             {}
