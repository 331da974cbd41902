// Package domain models Colombian emergency-report records and the
// reference data they reconcile against.
//
// # Data Source
//
// The records originate from 27 yearly emergency-report extracts
// (1998–2024) published by the national disaster-management authority.
// Each year's file was produced independently, so the column layout
// drifts across years: early extracts have no DIVIPOLA code column,
// mid-era extracts add injured/missing counts, and from 2023 on the
// itemized humanitarian-aid columns were replaced by a single monetary
// value. The per-era layouts are declared in the schema registry
// (internal/schema), never inferred at runtime.
//
// # DIVIPOLA Codes
//
// DIVIPOLA is the official territorial coding of Colombia: a fixed-width
// 5-character identifier naming a department+municipality pair, e.g.
// "05001" for Medellín. Codes are identifiers, never numbers — a leading
// zero is significant, so a source cell of 5001 must become "05001". The
// reference directory is a closed snapshot of (code, department,
// municipality) triples with unique codes.
//
// # Name Normalization
//
// Department and municipality names appear with inconsistent accents,
// casing, spacing, and historical designations ("SANTA FE DE BOGOTA",
// "BOGOTA D.C."). Normalization strips diacritics, uppercases, collapses
// whitespace, and collapses known variants through an explicit alias
// table. Variants without an alias entry are passed through and surface
// as unmapped-variant anomalies for manual review instead of being
// fuzzy-matched.
//
// # Missing vs Zero vs Not Applicable
//
// A count of zero is a report; an empty cell is the absence of a report;
// a column an era never carried is structural unavailability. The three
// are distinct states on Value and must never be conflated — "0 deaths"
// and "deaths not reported" compare unequal everywhere, including
// deduplication.
package domain
