// Package schema declares the per-era column layouts of the yearly
// extracts and how each maps onto the canonical fields. Schema drift
// across eras is a known, enumerable fact: every layout is hand-curated,
// versioned YAML configuration, never inferred at runtime. Supporting a
// new era means adding one entry here.
package schema

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cifuentesedw/emergencias-etl/internal/domain"
)

// ErrUnknownEra is returned by SchemaFor when no layout is registered for
// the requested era. The consolidator treats it as fatal: a layout cannot
// be guessed.
var ErrUnknownEra = errors.New("no schema registered for era")

// FieldMapping locates one canonical field inside an era's raw row: either
// a positional index, or Absent when the era's layout never carried the
// column.
type FieldMapping struct {
	Index         int
	Absent        bool
	Kind          domain.Kind
	nullSentinels map[string]struct{}
}

// IsNull reports whether a raw cell is one of the era's null sentinels
// (empty string, "SD", "N/D", ...).
func (m FieldMapping) IsNull(raw string) bool {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == "" {
		return true
	}
	_, ok := m.nullSentinels[raw]
	return ok
}

// SchemaMap is one era's complete layout: every non-derived canonical field
// has a mapping, possibly Absent. A silently dropped field is a defect and
// is rejected at load time.
type SchemaMap struct {
	Era     domain.Era
	Columns int
	fields  map[domain.Field]FieldMapping
}

// Mapping returns the mapping for f. The second return is false only for
// fields outside the canonical schema; registry validation guarantees
// every canonical source field is mapped.
func (m SchemaMap) Mapping(f domain.Field) (FieldMapping, bool) {
	fm, ok := m.fields[f]
	return fm, ok
}

// UnifySource scopes one era-specific source field to the inclusive era
// range in which its column structurally exists.
type UnifySource struct {
	Field domain.Field
	From  domain.Era
	To    domain.Era
}

// Applicable reports whether the source column structurally exists for era.
func (s UnifySource) Applicable(era domain.Era) bool {
	return era >= s.From && era <= s.To
}

// UnifyRule declares that a set of era-specific source fields feed one
// derived canonical field.
type UnifyRule struct {
	Field   domain.Field
	Kind    domain.Kind
	Sources []UnifySource
}

// Registry holds the schema map of every supported era plus the column
// unification rules. Built once before a run, read-only afterwards.
type Registry struct {
	eras  map[domain.Era]SchemaMap
	rules []UnifyRule
}

// SchemaFor returns the layout registered for era, or ErrUnknownEra.
func (r *Registry) SchemaFor(era domain.Era) (SchemaMap, error) {
	m, ok := r.eras[era]
	if !ok {
		return SchemaMap{}, fmt.Errorf("%w: %d", ErrUnknownEra, era)
	}
	return m, nil
}

// Eras returns every registered era in chronological order.
func (r *Registry) Eras() []domain.Era {
	eras := make([]domain.Era, 0, len(r.eras))
	for e := range r.eras {
		eras = append(eras, e)
	}
	sort.Slice(eras, func(i, j int) bool { return eras[i] < eras[j] })
	return eras
}

// UnifyRules returns the declared column unification rules.
func (r *Registry) UnifyRules() []UnifyRule {
	return r.rules
}

// --- YAML document shapes ---

type registryDoc struct {
	Version int             `yaml:"version"`
	Null    []string        `yaml:"null_sentinels"`
	Layouts map[string]any  `yaml:"layouts"` // anchor definitions only
	Eras    []eraSpec       `yaml:"eras"`
	Unified []unifyRuleSpec `yaml:"unified"`
}

type eraSpec struct {
	Era     int                  `yaml:"era"`
	Columns int                  `yaml:"columns"`
	Fields  map[string]fieldSpec `yaml:"fields"`
}

type fieldSpec struct {
	Index  *int     `yaml:"index"`
	Absent bool     `yaml:"absent"`
	Kind   string   `yaml:"kind"`
	Null   []string `yaml:"null"`
}

type unifyRuleSpec struct {
	Field   string            `yaml:"field"`
	Kind    string            `yaml:"kind"`
	Sources []unifySourceSpec `yaml:"sources"`
}

type unifySourceSpec struct {
	Field string `yaml:"field"`
	From  int    `yaml:"from"`
	To    int    `yaml:"to"`
}

// LoadRegistry parses and validates a registry document. Every era must map
// every non-derived canonical field, indexes must fit the declared column
// count, and unify rules may only target derived fields.
func LoadRegistry(r io.Reader) (*Registry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	var doc registryDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	if doc.Version < 1 {
		return nil, errors.New("registry: missing version")
	}

	reg := &Registry{eras: make(map[domain.Era]SchemaMap, len(doc.Eras))}
	for _, spec := range doc.Eras {
		m, err := buildSchemaMap(spec, doc.Null)
		if err != nil {
			return nil, err
		}
		if _, dup := reg.eras[m.Era]; dup {
			return nil, fmt.Errorf("registry: era %d declared twice", m.Era)
		}
		reg.eras[m.Era] = m
	}

	for _, spec := range doc.Unified {
		rule, err := buildUnifyRule(spec)
		if err != nil {
			return nil, err
		}
		reg.rules = append(reg.rules, rule)
	}
	return reg, nil
}

func buildSchemaMap(spec eraSpec, globalNull []string) (SchemaMap, error) {
	if spec.Era == 0 {
		return SchemaMap{}, errors.New("registry: era entry without a year")
	}
	if spec.Columns <= 0 {
		return SchemaMap{}, fmt.Errorf("registry: era %d has no column count", spec.Era)
	}
	m := SchemaMap{
		Era:     domain.Era(spec.Era),
		Columns: spec.Columns,
		fields:  make(map[domain.Field]FieldMapping, len(spec.Fields)),
	}
	for name, fs := range spec.Fields {
		kind, err := parseKind(fs.Kind)
		if err != nil {
			return SchemaMap{}, fmt.Errorf("registry: era %d field %s: %w", spec.Era, name, err)
		}
		fm := FieldMapping{Absent: fs.Absent, Kind: kind, nullSentinels: sentinelSet(globalNull, fs.Null)}
		switch {
		case fs.Absent && fs.Index != nil:
			return SchemaMap{}, fmt.Errorf("registry: era %d field %s is absent but has an index", spec.Era, name)
		case fs.Absent:
			fm.Index = -1
		case fs.Index == nil:
			return SchemaMap{}, fmt.Errorf("registry: era %d field %s has neither index nor absent", spec.Era, name)
		case *fs.Index < 0 || *fs.Index >= spec.Columns:
			return SchemaMap{}, fmt.Errorf("registry: era %d field %s index %d outside %d columns", spec.Era, name, *fs.Index, spec.Columns)
		default:
			fm.Index = *fs.Index
		}
		m.fields[domain.Field(name)] = fm
	}

	// Every canonical field used in the final table must be accounted for,
	// even if only as "absent" — a dropped field is a defect, not a default.
	for _, f := range domain.SourceFields() {
		if _, ok := m.fields[f]; !ok {
			return SchemaMap{}, fmt.Errorf("registry: era %d does not map canonical field %s", spec.Era, f)
		}
	}
	for name := range m.fields {
		if !isSourceField(name) {
			return SchemaMap{}, fmt.Errorf("registry: era %d maps unknown field %s", spec.Era, name)
		}
	}
	return m, nil
}

func buildUnifyRule(spec unifyRuleSpec) (UnifyRule, error) {
	kind, err := parseKind(spec.Kind)
	if err != nil {
		return UnifyRule{}, fmt.Errorf("registry: unified field %s: %w", spec.Field, err)
	}
	if isSourceField(domain.Field(spec.Field)) {
		return UnifyRule{}, fmt.Errorf("registry: unified field %s is a source field", spec.Field)
	}
	rule := UnifyRule{Field: domain.Field(spec.Field), Kind: kind}
	if len(spec.Sources) == 0 {
		return UnifyRule{}, fmt.Errorf("registry: unified field %s has no sources", spec.Field)
	}
	for _, src := range spec.Sources {
		if !isSourceField(domain.Field(src.Field)) {
			return UnifyRule{}, fmt.Errorf("registry: unified field %s references unknown source %s", spec.Field, src.Field)
		}
		if src.From == 0 || src.To == 0 || src.From > src.To {
			return UnifyRule{}, fmt.Errorf("registry: unified field %s source %s has invalid era range", spec.Field, src.Field)
		}
		rule.Sources = append(rule.Sources, UnifySource{
			Field: domain.Field(src.Field),
			From:  domain.Era(src.From),
			To:    domain.Era(src.To),
		})
	}
	return rule, nil
}

func parseKind(s string) (domain.Kind, error) {
	switch s {
	case "text":
		return domain.KindText, nil
	case "integer":
		return domain.KindInteger, nil
	case "decimal":
		return domain.KindDecimal, nil
	case "date":
		return domain.KindDate, nil
	default:
		return 0, fmt.Errorf("unknown kind %q", s)
	}
}

func sentinelSet(global, extra []string) map[string]struct{} {
	set := make(map[string]struct{}, len(global)+len(extra))
	for _, s := range global {
		set[strings.ToUpper(strings.TrimSpace(s))] = struct{}{}
	}
	for _, s := range extra {
		set[strings.ToUpper(strings.TrimSpace(s))] = struct{}{}
	}
	return set
}

func isSourceField(f domain.Field) bool {
	for _, s := range domain.SourceFields() {
		if s == f {
			return true
		}
	}
	return false
}
