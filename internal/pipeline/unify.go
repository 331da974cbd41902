package pipeline

import (
	"fmt"

	"github.com/cifuentesedw/emergencias-etl/internal/domain"
	"github.com/cifuentesedw/emergencias-etl/internal/schema"
)

// Unifier merges era-specific source columns into their canonical derived
// columns, per the declarative rule table in the schema registry. It also
// marks source columns that structurally do not exist for a record's era
// as "not applicable", so downstream consumers can tell structural
// unavailability apart from non-reporting.
type Unifier struct {
	rules []schema.UnifyRule
}

// NewUnifier creates a Unifier over the registry's unification rules.
func NewUnifier(rules []schema.UnifyRule) *Unifier {
	return &Unifier{rules: rules}
}

// DerivedFields returns the set of fields the unifier computes. The
// deduplicator ignores these when comparing records.
func (u *Unifier) DerivedFields() map[domain.Field]bool {
	derived := make(map[domain.Field]bool, len(u.rules))
	for _, rule := range u.rules {
		derived[rule.Field] = true
	}
	return derived
}

// Unify returns a new record with every rule's derived field computed and
// era-inapplicable source fields marked not-applicable. When more than one
// source field is populated — which correct era isolation should prevent
// but must be checked — the record's own-era source wins and the conflict
// is logged.
func (u *Unifier) Unify(rec domain.Record) (domain.Record, []domain.Anomaly) {
	out := rec.Clone()
	var anomalies []domain.Anomaly
	era := rec.Provenance.Era

	for _, rule := range u.rules {
		winner, conflict := pickSource(rec, rule, era)
		if conflict != "" {
			anomalies = append(anomalies, domain.Anomaly{
				Era:     era,
				Ordinal: rec.Provenance.Ordinal,
				Kind:    domain.ColumnConflictResolved,
				Field:   rule.Field,
				Detail:  conflict,
			})
		}

		if winner == "" {
			out.Set(rule.Field, domain.Missing(rule.Kind))
		} else {
			out.Set(rule.Field, promote(rec.Get(winner), rule.Kind))
		}

		for _, src := range rule.Sources {
			if !src.Applicable(era) {
				kind := rec.Get(src.Field).Kind
				out.Set(src.Field, domain.NotApplicable(kind))
			}
		}
	}
	return out, anomalies
}

// pickSource selects the populated source that feeds the derived field.
// Returns the winning field (or "" when nothing is populated) and a
// conflict description when multiple sources were populated.
func pickSource(rec domain.Record, rule schema.UnifyRule, era domain.Era) (domain.Field, string) {
	var populated []domain.Field
	var ownEra domain.Field
	for _, src := range rule.Sources {
		if rec.Get(src.Field).State != domain.StatePresent {
			continue
		}
		populated = append(populated, src.Field)
		if src.Applicable(era) {
			ownEra = src.Field
		}
	}

	switch len(populated) {
	case 0:
		return "", ""
	case 1:
		return populated[0], ""
	}

	winner := ownEra
	if winner == "" {
		// No populated source belongs to this era; keep the first declared
		// so the choice stays deterministic, and log it.
		winner = populated[0]
	}
	return winner, fmt.Sprintf("%d source columns populated, kept %s", len(populated), winner)
}

// promote converts a source value to the derived field's kind. Integer
// counts feed decimal aggregates; everything else passes through.
func promote(v domain.Value, kind domain.Kind) domain.Value {
	if v.Kind == domain.KindInteger && kind == domain.KindDecimal {
		return domain.DecimalValue(float64(v.Int))
	}
	return v
}
