// Package etl imports booking spreadsheets and webhook payloads into leads.
//
// The pipeline runs leaf first:
//
//	text -> Tokenize -> MapHeaders -> Converter (+ PackageDetector)
//	     -> TransformRow -> []booking.Patch -> Reconciler -> store
//
// Two spreadsheet schemas are supported. DEFAULT files are booking exports
// whose yacht column carries a free-text product description that the
// PackageDetector splits into yacht, package, cruise type and addons. MASTER
// files are operations sheets with a structured package column.
//
// Rows are reconciled against stored leads by booking reference, then
// transaction id. Matches are merged (incoming fields win, notes
// accumulate); everything else is inserted under a sequential id. A failing
// row is counted and logged and never aborts its batch. Only empty input is
// a file-level error.
//
// All writes are serialized by a single-slot WriteGate so an import and a
// webhook in the same process never interleave their read-merge-write
// steps or id allocation.
package etl
