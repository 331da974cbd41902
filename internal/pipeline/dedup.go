package pipeline

import (
	"github.com/cifuentesedw/emergencias-etl/internal/domain"
)

// Dropped pairs a removed duplicate with the provenance of the record it
// re-reported, so every drop stays auditable.
type Dropped struct {
	Record      domain.Record
	DuplicateOf domain.Provenance
}

// Dedup removes records that are exact re-reports of the same event: two
// records are duplicates when they agree on every populated non-derived
// field. This is structural equality, not a similarity score — the source
// anomaly is literal duplicate submissions. The first occurrence in
// chronological load order survives; every other occurrence is dropped
// and logged.
func Dedup(records []domain.Record, derived map[domain.Field]bool) ([]domain.Record, []Dropped, []domain.Anomaly) {
	kept := make([]domain.Record, 0, len(records))
	var dropped []Dropped
	var anomalies []domain.Anomaly

	seen := make(map[string]domain.Provenance, len(records))
	for _, rec := range records {
		key := rec.IdentityKey(derived)
		if survivor, dup := seen[key]; dup {
			dropped = append(dropped, Dropped{Record: rec, DuplicateOf: survivor})
			anomalies = append(anomalies, domain.Anomaly{
				Era:     rec.Provenance.Era,
				Ordinal: rec.Provenance.Ordinal,
				Kind:    domain.DuplicateDropped,
				Detail:  "duplicate of " + survivor.String(),
			})
			continue
		}
		seen[key] = rec.Provenance
		kept = append(kept, rec)
	}
	return kept, dropped, anomalies
}
