package etl

// gate.go serializes writes to the lead store.
//
// Every batch upsert and webhook sync holds the gate while it reads existing
// leads, allocates ids and writes. A second writer waits up to maxWait for
// the slot before failing with ErrImportBusy. WaitForDrain lets shutdown
// block until the current writer finishes.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrImportBusy is returned when another import holds the write gate for
// longer than the configured wait. Clients should retry.
var ErrImportBusy = errors.New("import busy: another import is writing, please try again later")

// DefaultWriteWait is how long a writer waits for the gate before giving up.
const DefaultWriteWait = 30 * time.Second

// WriteGate is a single-slot semaphore guarding the merge-and-write step.
type WriteGate struct {
	slot    chan struct{}
	maxWait time.Duration

	mu      sync.RWMutex
	holder  string
	since   time.Time
	waiting int
}

// NewWriteGate creates a gate whose Acquire waits at most maxWait.
func NewWriteGate(maxWait time.Duration) *WriteGate {
	if maxWait <= 0 {
		maxWait = DefaultWriteWait
	}
	return &WriteGate{
		slot:    make(chan struct{}, 1),
		maxWait: maxWait,
	}
}

// Acquire takes the gate on behalf of holder (a run id or webhook name).
// The caller must call Release when done.
func (g *WriteGate) Acquire(ctx context.Context, holder string) error {
	g.mu.Lock()
	g.waiting++
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.waiting--
		g.mu.Unlock()
	}()

	waitCtx, cancel := context.WithTimeout(ctx, g.maxWait)
	defer cancel()

	select {
	case g.slot <- struct{}{}:
		g.take(holder)
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrImportBusy
	}
}

// TryAcquire takes the gate only if it is free.
func (g *WriteGate) TryAcquire(holder string) bool {
	select {
	case g.slot <- struct{}{}:
		g.take(holder)
		return true
	default:
		return false
	}
}

func (g *WriteGate) take(holder string) {
	g.mu.Lock()
	g.holder = holder
	g.since = time.Now()
	g.mu.Unlock()
}

// Release frees the gate. Must be called exactly once per successful
// Acquire or TryAcquire.
func (g *WriteGate) Release() {
	g.mu.Lock()
	g.holder = ""
	g.since = time.Time{}
	g.mu.Unlock()

	<-g.slot
}

// Busy reports whether a writer currently holds the gate.
func (g *WriteGate) Busy() bool {
	return len(g.slot) == 1
}

// WaitForDrain blocks until no writer holds the gate or ctx is done.
func (g *WriteGate) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if !g.Busy() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// WriteGateStatus is a snapshot of the gate for health reporting.
type WriteGateStatus struct {
	Busy    bool      `json:"busy"`
	Holder  string    `json:"holder,omitempty"`
	Since   time.Time `json:"since,omitempty"`
	Waiting int       `json:"waiting"`
}

// Status returns the current gate state.
func (g *WriteGate) Status() WriteGateStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return WriteGateStatus{
		Busy:    len(g.slot) == 1,
		Holder:  g.holder,
		Since:   g.since,
		Waiting: g.waiting,
	}
}
