package etl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/charterops/internal/booking"
	"github.com/JonMunkholm/charterops/internal/logging"
	"github.com/JonMunkholm/charterops/internal/store"
)

// DefaultIDPrefix is prepended to generated lead ids.
const DefaultIDPrefix = "DO-"

// Outcome is the result of reconciling one row.
type Outcome string

const (
	OutcomeInserted  Outcome = "inserted"
	OutcomeUpdated   Outcome = "updated"
	OutcomeFailed    Outcome = "failed"
	OutcomeDuplicate Outcome = "duplicate"
)

// RowFailure describes a row that could not be written.
type RowFailure struct {
	Line   int    `json:"line,omitempty"`
	Ref    string `json:"ref,omitempty"`
	Reason string `json:"reason"`
	Code   string `json:"code"`
}

// Stats aggregates a batch.
type Stats struct {
	Inserted int          `json:"inserted"`
	Updated  int          `json:"updated"`
	Failed   int          `json:"failed"`
	Failures []RowFailure `json:"failures,omitempty"`
	LeadIDs  []string     `json:"leadIds,omitempty"`
}

// Reconciler matches incoming rows against stored leads and writes them.
// All writes go through the WriteGate.
type Reconciler struct {
	store    store.Store
	gate     *WriteGate
	prefix   string
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
}

// NewReconciler builds a reconciler. A nil gate gets a private one.
func NewReconciler(st store.Store, gate *WriteGate, prefix string, logger *slog.Logger) *Reconciler {
	if gate == nil {
		gate = NewWriteGate(DefaultWriteWait)
	}
	if prefix == "" {
		prefix = DefaultIDPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:    st,
		gate:     gate,
		prefix:   prefix,
		logger:   logger,
		recorder: nopRecorder{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Gate returns the write gate guarding this reconciler.
func (r *Reconciler) Gate() *WriteGate {
	return r.gate
}

// Upsert writes rows one by one. Row failures are counted and logged and
// never abort the batch. The returned error is non-nil only when the gate
// could not be taken or ctx ended mid-batch; rows processed before that
// stay written.
func (r *Reconciler) Upsert(ctx context.Context, rows []booking.Patch) (Stats, error) {
	var stats Stats
	if len(rows) == 0 {
		return stats, nil
	}

	holder := logging.RunID(ctx)
	if holder == "" {
		holder = "batch"
	}
	if err := r.gate.Acquire(ctx, holder); err != nil {
		return stats, err
	}
	defer r.gate.Release()

	logger := logging.Enrich(ctx, r.logger)
	alloc := newIDAllocator(r.store, r.prefix)

	for i := range rows {
		if err := ctx.Err(); err != nil {
			logger.Warn("import interrupted", "processed", i, "remaining", len(rows)-i, "error", err)
			return stats, err
		}

		p := &rows[i]
		outcome, id, err := r.upsertOne(ctx, alloc, p)
		r.recorder.RowProcessed(p.Source, string(outcome))

		switch outcome {
		case OutcomeInserted:
			stats.Inserted++
			stats.LeadIDs = append(stats.LeadIDs, id)
		case OutcomeUpdated:
			stats.Updated++
			stats.LeadIDs = append(stats.LeadIDs, id)
		default:
			msg := MapError(err)
			stats.Failed++
			stats.Failures = append(stats.Failures, RowFailure{
				Line:   p.Line,
				Ref:    p.Ref(),
				Reason: err.Error(),
				Code:   msg.Code,
			})
			logger.Warn("row failed",
				"line", p.Line,
				"code", msg.Code,
				"error", err,
				"row", p,
			)
		}
	}
	return stats, nil
}

// InsertOnce writes p unless a lead already carries its booking reference,
// in which case it returns that lead's id with OutcomeDuplicate.
func (r *Reconciler) InsertOnce(ctx context.Context, holder string, p *booking.Patch) (string, Outcome, error) {
	if err := r.gate.Acquire(ctx, holder); err != nil {
		return "", OutcomeFailed, err
	}
	defer r.gate.Release()

	if ref := p.Ref(); ref != "" {
		existing, err := r.store.FindBookingByRef(ctx, ref)
		if err != nil {
			return "", OutcomeFailed, fmt.Errorf("find by booking ref: %w", err)
		}
		if existing != nil {
			return existing.ID, OutcomeDuplicate, nil
		}
	}

	outcome, id, err := r.insert(ctx, newIDAllocator(r.store, r.prefix), p)
	r.recorder.RowProcessed(p.Source, string(outcome))
	return id, outcome, err
}

func (r *Reconciler) upsertOne(ctx context.Context, alloc *idAllocator, p *booking.Patch) (Outcome, string, error) {
	existing, err := r.match(ctx, p)
	if err != nil {
		return OutcomeFailed, "", err
	}
	if existing == nil {
		return r.insert(ctx, alloc, p)
	}

	merged := MergeLead(existing, p, r.now())
	if err := merged.Validate(); err != nil {
		return OutcomeFailed, "", err
	}
	if err := r.store.UpsertBooking(ctx, merged); err != nil {
		return OutcomeFailed, "", err
	}
	return OutcomeUpdated, merged.ID, nil
}

// match finds the stored lead for p by booking reference, then transaction
// id, then explicit lead id.
func (r *Reconciler) match(ctx context.Context, p *booking.Patch) (*booking.Lead, error) {
	if ref := p.Ref(); ref != "" {
		lead, err := r.store.FindBookingByRef(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("find by booking ref: %w", err)
		}
		if lead != nil {
			return lead, nil
		}
	}
	if tid := p.TransID(); tid != "" {
		lead, err := r.store.FindBookingByTransID(ctx, tid)
		if err != nil {
			return nil, fmt.Errorf("find by transaction id: %w", err)
		}
		if lead != nil {
			return lead, nil
		}
	}
	if p.ID != nil && *p.ID != "" {
		if g, ok := r.store.(store.Getter); ok {
			lead, err := g.GetBooking(ctx, *p.ID)
			if err != nil {
				return nil, fmt.Errorf("find by id: %w", err)
			}
			return lead, nil
		}
	}
	return nil, nil
}

func (r *Reconciler) insert(ctx context.Context, alloc *idAllocator, p *booking.Patch) (Outcome, string, error) {
	id := ""
	if p.ID != nil {
		id = strings.TrimSpace(*p.ID)
	}
	generated := id == ""
	if generated {
		next, err := alloc.Next(ctx)
		if err != nil {
			return OutcomeFailed, "", err
		}
		id = next
	}

	lead := booking.NewLeadFromPatch(id, p, r.now())
	if err := lead.Validate(); err != nil {
		return OutcomeFailed, "", err
	}

	err := r.create(ctx, lead)
	if errors.Is(err, store.ErrDuplicateID) && generated {
		alloc.Reset()
		next, nerr := alloc.Next(ctx)
		if nerr != nil {
			return OutcomeFailed, "", nerr
		}
		lead.ID = next
		err = r.create(ctx, lead)
	}
	if err != nil {
		return OutcomeFailed, "", err
	}
	return OutcomeInserted, lead.ID, nil
}

// create writes a new lead without overwriting one another writer stored
// under the same id. Stores without InsertBooking fall back to upsert.
func (r *Reconciler) create(ctx context.Context, lead *booking.Lead) error {
	if ins, ok := r.store.(store.Inserter); ok {
		return ins.InsertBooking(ctx, lead)
	}
	return r.store.UpsertBooking(ctx, lead)
}

// MergeLead overlays p onto a copy of existing. Notes accumulate, ID and
// CreatedAt are kept, UpdatedAt is set to now and money fields are
// recalculated.
func MergeLead(existing *booking.Lead, p *booking.Patch, now time.Time) *booking.Lead {
	merged := existing.Clone()

	incoming := *p
	notes := MergeNotes(existing.Notes, p.NotesText())
	incoming.Notes = &notes

	// A commission that was derived from the percentage follows a new total.
	if p.TotalAmount != nil && p.CommissionAmount == nil && existing.CommissionPercentage.IsPositive() {
		derived := existing.TotalAmount.Mul(existing.CommissionPercentage).Div(decimal.NewFromInt(100)).Round(2)
		if existing.CommissionAmount.Sub(derived).Abs().LessThanOrEqual(booking.Tolerance) {
			merged.CommissionAmount = decimal.Zero
		}
	}

	incoming.Apply(merged)
	merged.UpdatedAt = now
	merged.Recalculate()
	return merged
}

// MergeNotes appends incoming to existing on a new line. Empty incoming
// notes keep existing.
func MergeNotes(existing, incoming string) string {
	in := strings.TrimSpace(incoming)
	if in == "" {
		return existing
	}
	if strings.TrimSpace(existing) == "" {
		return in
	}
	return existing + "\n" + in
}

// NextID returns prefix followed by the largest numeric suffix among ids
// plus one. The zero-padded width of the widest suffix is kept.
func NextID(prefix string, ids []string) string {
	hi, width := scanIDs(prefix, ids)
	return formatID(prefix, hi+1, width)
}

func scanIDs(prefix string, ids []string) (hi int64, width int) {
	for _, id := range ids {
		suffix, ok := strings.CutPrefix(id, prefix)
		if !ok || suffix == "" || !isDigits(suffix) {
			continue
		}
		n, err := strconv.ParseInt(suffix, 10, 64)
		if err != nil {
			continue
		}
		if n > hi {
			hi = n
		}
		if len(suffix) > width {
			width = len(suffix)
		}
	}
	return hi, width
}

func formatID(prefix string, n int64, width int) string {
	return fmt.Sprintf("%s%0*d", prefix, width, n)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// idAllocator hands out sequential ids for one batch, scanning the store
// once. Stores without an id listing get prefix+UUID ids.
type idAllocator struct {
	lister store.IDLister
	prefix string
	loaded bool
	max    int64
	width  int
}

func newIDAllocator(st store.Store, prefix string) *idAllocator {
	lister, _ := st.(store.IDLister)
	return &idAllocator{lister: lister, prefix: prefix}
}

func (a *idAllocator) Next(ctx context.Context) (string, error) {
	if a.lister == nil {
		return a.prefix + uuid.NewString(), nil
	}
	if !a.loaded {
		ids, err := a.lister.ListIDs(ctx, a.prefix)
		if err != nil {
			return "", fmt.Errorf("list ids for %s: %w", a.prefix, err)
		}
		a.max, a.width = scanIDs(a.prefix, ids)
		a.loaded = true
	}
	a.max++
	return formatID(a.prefix, a.max, a.width), nil
}

// Reset forces the next call to rescan the store.
func (a *idAllocator) Reset() {
	a.loaded = false
}
