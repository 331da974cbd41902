package domain

import (
	"fmt"
	"strings"
)

// ResolutionOutcome classifies one attempt to attach an administrative code
// to a record.
type ResolutionOutcome int

const (
	ResolvedUnique ResolutionOutcome = iota
	ResolvedAmbiguous
	Unresolved
)

func (o ResolutionOutcome) String() string {
	switch o {
	case ResolvedUnique:
		return "resolved-unique"
	case ResolvedAmbiguous:
		return "resolved-ambiguous"
	case Unresolved:
		return "unresolved"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Resolution is the outcome of ResolveCode plus, for ambiguous cases, the
// candidate codes that prevented a unique match.
type Resolution struct {
	Outcome    ResolutionOutcome
	Code       string
	Candidates []string
}

// ResolveCode attaches an administrative code to a record that lacks one,
// or validates and zero-pad normalizes the code it already carries. It
// returns a new record; the input is not mutated. Under ambiguity the code
// is left missing — a visible gap beats a silently wrong join.
func ResolveCode(rec Record, dir *Directory, normalizer *Normalizer) (Record, Resolution, []Anomaly) {
	out := rec.Clone()

	if code := rec.Get(FieldDivipola); code.State == StatePresent {
		return resolvePresent(out, code.Text, dir)
	}

	department := presentText(rec, FieldDepartment)
	municipality := presentText(rec, FieldMunicipality)
	if municipality == "" {
		return out, Resolution{Outcome: Unresolved}, []Anomaly{{
			Era:     rec.Provenance.Era,
			Ordinal: rec.Provenance.Ordinal,
			Kind:    UnresolvedCode,
			Field:   FieldMunicipality,
			Detail:  "no municipality name to resolve against the directory",
		}}
	}

	if department != "" {
		if entry, ok := dir.LookupNamePair(department, municipality); ok {
			out.Set(FieldDivipola, TextValue(entry.Code))
			return out, Resolution{Outcome: ResolvedUnique, Code: entry.Code}, nil
		}
		// The pair missed, so any entry with this municipality name sits
		// under a different department. Attaching one anyway would be a
		// silent wrong join; leave the code missing and log the conflict.
		if candidates := dir.LookupMunicipality(municipality); len(candidates) > 0 {
			codes := make([]string, len(candidates))
			for i, c := range candidates {
				codes[i] = c.Code
			}
			return out, Resolution{Outcome: Unresolved}, []Anomaly{{
				Era:     rec.Provenance.Era,
				Ordinal: rec.Provenance.Ordinal,
				Kind:    UnresolvedCode,
				Field:   FieldMunicipality,
				Raw:     municipality,
				Detail: fmt.Sprintf("no entry for department %s; municipality exists under other departments (codes: %s)",
					department, strings.Join(codes, ",")),
			}}
		}
		// Municipality unknown to the directory altogether: handled below.
	}

	candidates := dir.LookupMunicipality(municipality)
	switch len(candidates) {
	case 1:
		entry := candidates[0]
		out.Set(FieldDivipola, TextValue(entry.Code))
		return out, Resolution{Outcome: ResolvedUnique, Code: entry.Code}, nil
	case 0:
		anomalies := []Anomaly{{
			Era:     rec.Provenance.Era,
			Ordinal: rec.Provenance.Ordinal,
			Kind:    UnresolvedCode,
			Field:   FieldMunicipality,
			Raw:     municipality,
			Detail:  "municipality not found in directory",
		}}
		// The name is unknown to both the alias table and the directory:
		// a novel spelling variant that needs manual review.
		if !normalizer.Known(municipality) {
			anomalies = append(anomalies, Anomaly{
				Era:     rec.Provenance.Era,
				Ordinal: rec.Provenance.Ordinal,
				Kind:    UnmappedTextVariant,
				Field:   FieldMunicipality,
				Raw:     municipality,
				Detail:  "no alias entry for this variant",
			})
		}
		return out, Resolution{Outcome: Unresolved}, anomalies
	default:
		codes := make([]string, len(candidates))
		for i, c := range candidates {
			codes[i] = c.Code
		}
		return out, Resolution{Outcome: ResolvedAmbiguous, Candidates: codes}, []Anomaly{{
			Era:     rec.Provenance.Era,
			Ordinal: rec.Provenance.Ordinal,
			Kind:    AmbiguousCodeResolution,
			Field:   FieldMunicipality,
			Raw:     municipality,
			Detail:  "candidate codes: " + strings.Join(codes, ","),
		}}
	}
}

// resolvePresent handles records that arrived with a code: zero-pad it and
// verify it against the directory. A code the directory has never heard of
// is kept on the record (it may be a directory gap, not a record error)
// but logged as unresolved.
func resolvePresent(out Record, raw string, dir *Directory) (Record, Resolution, []Anomaly) {
	padded := PadCode(raw)
	out.Set(FieldDivipola, TextValue(padded))
	if _, ok := dir.LookupCode(padded); ok {
		return out, Resolution{Outcome: ResolvedUnique, Code: padded}, nil
	}
	return out, Resolution{Outcome: Unresolved, Code: padded}, []Anomaly{{
		Era:     out.Provenance.Era,
		Ordinal: out.Provenance.Ordinal,
		Kind:    UnresolvedCode,
		Field:   FieldDivipola,
		Raw:     raw,
		Detail:  "administrative code not present in directory snapshot",
	}}
}

func presentText(rec Record, f Field) string {
	v := rec.Get(f)
	if v.State != StatePresent {
		return ""
	}
	return v.Text
}
