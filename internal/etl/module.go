package etl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/charterops/internal/booking"
	"github.com/JonMunkholm/charterops/internal/logging"
	"github.com/JonMunkholm/charterops/internal/refdata"
	"github.com/JonMunkholm/charterops/internal/store"
)

// Options configures a Module.
type Options struct {
	Store     store.Store
	Directory *refdata.Directory
	// Keywords defaults to the embedded tables when nil.
	Keywords  *Keywords
	IDPrefix  string
	WriteWait time.Duration
	Logger    *slog.Logger
	Recorder  Recorder
}

// Module composes tokenizer, header mapper, converter, package detector,
// row transformer and reconciler into the import entry points.
type Module struct {
	conv     *Converter
	detector *PackageDetector
	rows     *rowBuilder
	rec      *Reconciler
	logger   *slog.Logger
	recorder Recorder
}

// New builds a Module.
func New(opts Options) (*Module, error) {
	if opts.Store == nil {
		return nil, errors.New("etl: store is required")
	}
	kw := opts.Keywords
	if kw == nil {
		var err error
		if kw, err = DefaultKeywords(); err != nil {
			return nil, err
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	conv := NewConverter(opts.Directory)
	det := NewPackageDetector(kw)
	rec := NewReconciler(opts.Store, NewWriteGate(opts.WriteWait), opts.IDPrefix, logger)
	rec.recorder = recorder

	return &Module{
		conv:     conv,
		detector: det,
		rows:     &rowBuilder{conv: conv, det: det},
		rec:      rec,
		logger:   logger,
		recorder: recorder,
	}, nil
}

// Gate exposes the write gate for shutdown draining and health checks.
func (m *Module) Gate() *WriteGate {
	return m.rec.Gate()
}

// LoadInputA parses a DEFAULT (booking-file) spreadsheet.
func (m *Module) LoadInputA(text string) ([]booking.Patch, *QualityReport, error) {
	return m.Load(SourceDefault, text)
}

// LoadInputB parses a MASTER (operations-file) spreadsheet.
func (m *Module) LoadInputB(text string) ([]booking.Patch, *QualityReport, error) {
	return m.Load(SourceMaster, text)
}

// Load parses spreadsheet text for source into transformed patches. Only
// input without a header row is an error; row problems become quality
// notes.
func (m *Module) Load(source Source, text string) ([]booking.Patch, *QualityReport, error) {
	if source != SourceDefault && source != SourceMaster {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
	table, err := Tokenize(text)
	if err != nil {
		return nil, nil, err
	}

	hm := MapHeaders(table.Header)
	report := &QualityReport{IgnoredHeaders: hm.Ignored}
	patches := make([]booking.Patch, 0, len(table.Rows))
	for i, row := range table.Rows {
		p := m.rows.build(source, hm, row, table.Lines[i], report)
		patches = append(patches, *m.TransformRow(source, p))
	}
	return patches, report, nil
}

// TransformRow applies business overrides to one row.
func (m *Module) TransformRow(source Source, p *booking.Patch) *booking.Patch {
	return TransformRow(source, p)
}

// UpsertToDB reconciles rows against the store.
func (m *Module) UpsertToDB(ctx context.Context, rows []booking.Patch) (Stats, error) {
	return m.rec.Upsert(ctx, rows)
}

// ImportSummary is the end-of-run report of an import.
type ImportSummary struct {
	RunID      string          `json:"runId"`
	Source     Source          `json:"source"`
	DryRun     bool            `json:"dryRun"`
	Rows       int             `json:"rows"`
	Inserted   int             `json:"inserted"`
	Updated    int             `json:"updated"`
	Failed     int             `json:"failed"`
	Failures   []RowFailure    `json:"failures,omitempty"`
	LeadIDs    []string        `json:"leadIds,omitempty"`
	Quality    *QualityReport  `json:"quality"`
	Patches    []booking.Patch `json:"patches,omitempty"`
	StartedAt  time.Time       `json:"startedAt"`
	DurationMS int64           `json:"durationMs"`
}

// Import parses text and writes it. With dryRun the parsed patches are
// returned without touching the store. The summary is returned alongside
// any error so callers can report partial progress.
func (m *Module) Import(ctx context.Context, source Source, text string, dryRun bool) (*ImportSummary, error) {
	started := time.Now()
	summary := &ImportSummary{
		RunID:     uuid.NewString(),
		Source:    source,
		DryRun:    dryRun,
		StartedAt: started.UTC(),
	}
	ctx = logging.WithRunID(ctx, summary.RunID)
	logger := logging.Enrich(ctx, m.logger).With("source", string(source))

	patches, report, err := m.Load(source, text)
	if err != nil {
		logger.Warn("import rejected", "error", err)
		return summary, err
	}
	summary.Rows = len(patches)
	summary.Quality = report

	if dryRun {
		summary.Patches = patches
		summary.DurationMS = time.Since(started).Milliseconds()
		logger.Info("import previewed", "rows", summary.Rows, "quality_notes", report.Len())
		return summary, nil
	}

	stats, err := m.UpsertToDB(ctx, patches)
	summary.Inserted = stats.Inserted
	summary.Updated = stats.Updated
	summary.Failed = stats.Failed
	summary.Failures = stats.Failures
	summary.LeadIDs = stats.LeadIDs
	summary.DurationMS = time.Since(started).Milliseconds()
	m.recorder.ImportCompleted(string(source), summary.Rows, time.Since(started))

	logger.Info("import finished",
		"rows", summary.Rows,
		"inserted", summary.Inserted,
		"updated", summary.Updated,
		"failed", summary.Failed,
		"quality_notes", report.Len(),
		"duration_ms", summary.DurationMS,
	)
	if err != nil {
		return summary, fmt.Errorf("import %s: %w", summary.RunID, err)
	}
	return summary, nil
}
