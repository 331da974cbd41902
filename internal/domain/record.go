package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Era identifies one yearly source extract (1998–2024). Each era may carry
// its own column layout.
type Era int

// Field names a column of the unified output schema, independent of any
// single era's raw layout.
type Field string

// Canonical fields. The aid columns changed reporting scheme in 2023: eras
// up to 2022 itemize delivered food kits, later eras report a single
// monetary aid value. FieldHumanitarianAid is derived by the column unifier
// and is not part of any era's raw layout.
const (
	FieldDate            Field = "date"
	FieldYear            Field = "year"
	FieldMonth           Field = "month"
	FieldDepartment      Field = "department"
	FieldMunicipality    Field = "municipality"
	FieldDivipola        Field = "divipola"
	FieldEvent           Field = "event"
	FieldDeaths          Field = "deaths"
	FieldInjured         Field = "injured"
	FieldMissingPersons  Field = "missing_persons"
	FieldPersons         Field = "persons"
	FieldFamilies        Field = "families"
	FieldHousesDestroyed Field = "houses_destroyed"
	FieldHousesDamaged   Field = "houses_damaged"
	FieldAidMarkets      Field = "aid_markets"
	FieldAidValue        Field = "aid_value"
	FieldHumanitarianAid Field = "humanitarian_aid"
)

// CanonicalFields returns every field of the output schema in table order.
func CanonicalFields() []Field {
	return []Field{
		FieldDate, FieldYear, FieldMonth,
		FieldDepartment, FieldMunicipality, FieldDivipola, FieldEvent,
		FieldDeaths, FieldInjured, FieldMissingPersons,
		FieldPersons, FieldFamilies,
		FieldHousesDestroyed, FieldHousesDamaged,
		FieldAidMarkets, FieldAidValue,
		FieldHumanitarianAid,
	}
}

// SourceFields returns the fields every era's schema map must account for,
// i.e. the canonical schema minus derived fields.
func SourceFields() []Field {
	fields := make([]Field, 0, len(CanonicalFields()))
	for _, f := range CanonicalFields() {
		if f == FieldHumanitarianAid {
			continue
		}
		fields = append(fields, f)
	}
	return fields
}

// Kind is the declared value type of a canonical field.
type Kind int

const (
	KindText Kind = iota
	KindInteger
	KindDecimal
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInteger:
		return "integer"
	case KindDecimal:
		return "decimal"
	case KindDate:
		return "date"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// State distinguishes a reported value from the two ways a value can be
// absent: not reported in an era that had the column (Missing), and
// structurally unavailable because the era's layout never carried the
// column (NotApplicable). The zero State is Missing so lookups of unset
// fields behave.
type State int

const (
	StateMissing State = iota
	StatePresent
	StateNotApplicable
)

// Date is a calendar date without time-of-day or zone. Kept as plain ints
// so Value stays comparable with ==.
type Date struct {
	Year  int
	Month int
	Day   int
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Value is one typed cell of a canonical record. Exactly one of the typed
// slots is meaningful, selected by Kind, and only when State is
// StatePresent.
type Value struct {
	State State
	Kind  Kind
	Text  string
	Int   int64
	Dec   float64
	Date  Date
}

// Missing returns the explicit "not reported" marker for a field of the
// given kind.
func Missing(kind Kind) Value {
	return Value{State: StateMissing, Kind: kind}
}

// NotApplicable returns the explicit "not applicable for this era" marker.
func NotApplicable(kind Kind) Value {
	return Value{State: StateNotApplicable, Kind: kind}
}

func TextValue(s string) Value {
	return Value{State: StatePresent, Kind: KindText, Text: s}
}

func IntValue(v int64) Value {
	return Value{State: StatePresent, Kind: KindInteger, Int: v}
}

func DecimalValue(v float64) Value {
	return Value{State: StatePresent, Kind: KindDecimal, Dec: v}
}

func DateValue(d Date) Value {
	return Value{State: StatePresent, Kind: KindDate, Date: d}
}

// Render returns the cell's table representation: the value when present,
// empty for missing, "NA" for structurally unavailable.
func (v Value) Render() string {
	switch v.State {
	case StateMissing:
		return ""
	case StateNotApplicable:
		return "NA"
	}
	switch v.Kind {
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindDecimal:
		return strconv.FormatFloat(v.Dec, 'f', -1, 64)
	case KindDate:
		return v.Date.String()
	default:
		return v.Text
	}
}

// Provenance records where a canonical record came from: the source era
// and the 1-based row ordinal within that era's extract.
type Provenance struct {
	Era     Era
	Ordinal int
}

func (p Provenance) String() string {
	return fmt.Sprintf("%d:%d", p.Era, p.Ordinal)
}

// Record is a canonical-shaped record: canonical field → typed value, plus
// provenance. Fields never loaded for a record read back as Missing.
type Record struct {
	Provenance Provenance
	Fields     map[Field]Value
}

// NewRecord creates an empty record for the given provenance.
func NewRecord(era Era, ordinal int) Record {
	return Record{
		Provenance: Provenance{Era: era, Ordinal: ordinal},
		Fields:     make(map[Field]Value, len(CanonicalFields())),
	}
}

// Get returns the value for f, or a Missing text value if f was never set.
func (r Record) Get(f Field) Value {
	return r.Fields[f]
}

// Set stores v under f.
func (r Record) Set(f Field, v Value) {
	r.Fields[f] = v
}

// Clone returns a deep copy. Pipeline stages produce new records instead of
// mutating their inputs.
func (r Record) Clone() Record {
	out := Record{Provenance: r.Provenance, Fields: make(map[Field]Value, len(r.Fields))}
	for f, v := range r.Fields {
		out.Fields[f] = v
	}
	return out
}

// IdentityKey renders every present, non-derived field into a stable string
// used for exact-duplicate detection. Missing and not-applicable fields
// contribute nothing, so "reported as zero" and "not reported" never
// collide.
func (r Record) IdentityKey(derived map[Field]bool) string {
	parts := make([]string, 0, len(r.Fields))
	for f, v := range r.Fields {
		if v.State != StatePresent || derived[f] {
			continue
		}
		parts = append(parts, string(f)+"="+v.Render())
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

// PadCode normalizes a DIVIPOLA administrative code to its fixed
// 5-character zero-padded form. Codes are identifiers, never numbers:
// a source value of 5001 must come out as "05001".
func PadCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	for len(code) < 5 {
		code = "0" + code
	}
	return code
}
