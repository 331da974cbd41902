package domain

// AnomalyKind enumerates every non-fatal deviation the pipeline records
// instead of silently correcting.
type AnomalyKind string

const (
	TypeCoercionFailure     AnomalyKind = "type_coercion_failure"
	MissingSchemaField      AnomalyKind = "missing_schema_field"
	UnmappedTextVariant     AnomalyKind = "unmapped_text_variant"
	AmbiguousCodeResolution AnomalyKind = "ambiguous_code_resolution"
	UnresolvedCode          AnomalyKind = "unresolved_code"
	DuplicateDropped        AnomalyKind = "duplicate_dropped"
	ColumnConflictResolved  AnomalyKind = "column_conflict_resolved"
)

// Anomaly is one audit entry: which era and row it happened on, what kind
// of deviation it was, and enough raw detail to correct it manually later.
type Anomaly struct {
	Era     Era
	Ordinal int
	Kind    AnomalyKind
	Field   Field
	Raw     string
	Detail  string
}

// Report accumulates anomalies across a run. It is not safe for concurrent
// use; parallel era tasks keep their own shard and merge at the join point.
type Report struct {
	entries []Anomaly
}

// Append adds entries to the report.
func (r *Report) Append(entries ...Anomaly) {
	r.entries = append(r.entries, entries...)
}

// Merge appends every entry of other.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.entries = append(r.entries, other.entries...)
}

// Entries returns the accumulated anomalies in insertion order.
func (r *Report) Entries() []Anomaly {
	return r.entries
}

// Len returns the number of entries.
func (r *Report) Len() int {
	return len(r.entries)
}

// CountByKind tallies entries per anomaly kind.
func (r *Report) CountByKind() map[AnomalyKind]int {
	counts := make(map[AnomalyKind]int)
	for _, e := range r.entries {
		counts[e.Kind]++
	}
	return counts
}
