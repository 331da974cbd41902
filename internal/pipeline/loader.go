package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cifuentesedw/emergencias-etl/internal/domain"
	"github.com/cifuentesedw/emergencias-etl/internal/schema"
)

// Loader parses one era's raw extract into canonical-shaped records using
// that era's schema map. Bad cells never abort a load: the offending raw
// value is preserved in an anomaly and the field is set to missing.
type Loader struct {
	registry   *schema.Registry
	normalizer *domain.Normalizer
}

// NewLoader creates a Loader over a registry and name normalizer.
func NewLoader(registry *schema.Registry, normalizer *domain.Normalizer) *Loader {
	return &Loader{registry: registry, normalizer: normalizer}
}

// Load converts raw rows of one era into canonical records. The only error
// is an unregistered era; everything else is an anomaly.
func (l *Loader) Load(era domain.Era, rows [][]string) ([]domain.Record, []domain.Anomaly, error) {
	schemaMap, err := l.registry.SchemaFor(era)
	if err != nil {
		return nil, nil, err
	}

	records := make([]domain.Record, 0, len(rows))
	var anomalies []domain.Anomaly
	for i, row := range rows {
		rec, rowAnomalies := l.loadRow(schemaMap, era, i+1, row)
		records = append(records, rec)
		anomalies = append(anomalies, rowAnomalies...)
	}
	return records, anomalies, nil
}

func (l *Loader) loadRow(schemaMap schema.SchemaMap, era domain.Era, ordinal int, row []string) (domain.Record, []domain.Anomaly) {
	rec := domain.NewRecord(era, ordinal)
	var anomalies []domain.Anomaly

	for _, field := range domain.SourceFields() {
		mapping, _ := schemaMap.Mapping(field)
		if mapping.Absent {
			rec.Set(field, domain.Missing(mapping.Kind))
			continue
		}
		if mapping.Index >= len(row) {
			rec.Set(field, domain.Missing(mapping.Kind))
			anomalies = append(anomalies, domain.Anomaly{
				Era: era, Ordinal: ordinal, Kind: domain.MissingSchemaField, Field: field,
				Detail: fmt.Sprintf("row has %d cells, field expects index %d", len(row), mapping.Index),
			})
			continue
		}
		raw := row[mapping.Index]
		if mapping.IsNull(raw) {
			rec.Set(field, domain.Missing(mapping.Kind))
			continue
		}
		value, err := l.coerce(field, mapping.Kind, raw)
		if err != nil {
			rec.Set(field, domain.Missing(mapping.Kind))
			anomalies = append(anomalies, domain.Anomaly{
				Era: era, Ordinal: ordinal, Kind: domain.TypeCoercionFailure, Field: field,
				Raw: raw, Detail: err.Error(),
			})
			continue
		}
		rec.Set(field, value)
	}

	backfillCalendar(rec)
	return rec, anomalies
}

// coerce converts one raw cell to its declared kind. Name and event text
// is normalized here so every later stage sees canonical spelling; the
// DIVIPOLA code is kept verbatim for the resolver to pad and verify.
func (l *Loader) coerce(field domain.Field, kind domain.Kind, raw string) (domain.Value, error) {
	raw = strings.TrimSpace(raw)
	switch kind {
	case domain.KindText:
		if field == domain.FieldDivipola {
			return domain.TextValue(raw), nil
		}
		return domain.TextValue(l.normalizer.Normalize(raw)), nil
	case domain.KindInteger:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domain.Value{}, fmt.Errorf("not an integer")
		}
		return domain.IntValue(v), nil
	case domain.KindDecimal:
		// Source files use the comma decimal separator.
		v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
		if err != nil {
			return domain.Value{}, fmt.Errorf("not a decimal")
		}
		return domain.DecimalValue(v), nil
	case domain.KindDate:
		d, err := parseDate(raw)
		if err != nil {
			return domain.Value{}, err
		}
		return domain.DateValue(d), nil
	default:
		return domain.Value{}, fmt.Errorf("unsupported kind %s", kind)
	}
}

// parseDate accepts the day/month/year format used historically
// ("23/05/2011", "23-05-2011") and ISO ("2011-05-23"). Two-digit years are
// rejected outright: guessing a century silently corrupts the record.
func parseDate(raw string) (domain.Date, error) {
	sep := "/"
	if !strings.Contains(raw, "/") {
		sep = "-"
	}
	parts := strings.Split(raw, sep)
	if len(parts) != 3 {
		return domain.Date{}, fmt.Errorf("not a date")
	}

	var dayStr, monthStr, yearStr string
	if len(parts[0]) == 4 {
		yearStr, monthStr, dayStr = parts[0], parts[1], parts[2]
	} else {
		dayStr, monthStr, yearStr = parts[0], parts[1], parts[2]
	}
	if len(yearStr) < 4 {
		return domain.Date{}, fmt.Errorf("ambiguous two-digit year %q", yearStr)
	}

	year, errY := strconv.Atoi(yearStr)
	month, errM := strconv.Atoi(monthStr)
	day, errD := strconv.Atoi(dayStr)
	if errY != nil || errM != nil || errD != nil {
		return domain.Date{}, fmt.Errorf("not a date")
	}

	// Round-trip through time.Date to reject impossible dates like 31/02.
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return domain.Date{}, fmt.Errorf("impossible calendar date")
	}
	return domain.Date{Year: year, Month: month, Day: day}, nil
}

// backfillCalendar fills the year and month fields from the report date for
// eras whose layout carries the calendar only inside the date column. The
// consolidated table needs year and month on every record.
func backfillCalendar(rec domain.Record) {
	date := rec.Get(domain.FieldDate)
	if date.State != domain.StatePresent {
		return
	}
	if rec.Get(domain.FieldYear).State != domain.StatePresent {
		rec.Set(domain.FieldYear, domain.IntValue(int64(date.Date.Year)))
	}
	if rec.Get(domain.FieldMonth).State != domain.StatePresent {
		rec.Set(domain.FieldMonth, domain.IntValue(int64(date.Date.Month)))
	}
}
