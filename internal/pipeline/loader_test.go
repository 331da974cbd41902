package pipeline

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cifuentesedw/emergencias-etl/internal/domain"
	"github.com/cifuentesedw/emergencias-etl/internal/schema"
)

func testLoader(t *testing.T) *Loader {
	t.Helper()
	registry, err := schema.DefaultRegistry()
	require.NoError(t, err)
	aliases, err := schema.DefaultAliases()
	require.NoError(t, err)
	normalizer, err := domain.NewNormalizer(aliases)
	require.NoError(t, err)
	return NewLoader(registry, normalizer)
}

func TestLoad_UnknownEraIsFatal(t *testing.T) {
	loader := testLoader(t)

	_, _, err := loader.Load(1985, [][]string{{"01/01/1985"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrUnknownEra)
}

func TestLoad_EarlyLayout(t *testing.T) {
	loader := testLoader(t)

	rows := [][]string{
		{"23/05/1999", "Chocó", "Quibdó", "Inundación", "2", "150", "30", "5", "12", "40"},
	}
	records, anomalies, err := loader.Load(1999, rows)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, anomalies)

	want := domain.Record{
		Provenance: domain.Provenance{Era: 1999, Ordinal: 1},
		Fields: map[domain.Field]domain.Value{
			domain.FieldDate:            domain.DateValue(domain.Date{Year: 1999, Month: 5, Day: 23}),
			domain.FieldYear:            domain.IntValue(1999),
			domain.FieldMonth:           domain.IntValue(5),
			domain.FieldDepartment:      domain.TextValue("CHOCO"),
			domain.FieldMunicipality:    domain.TextValue("QUIBDO"),
			domain.FieldEvent:           domain.TextValue("INUNDACION"),
			domain.FieldDeaths:          domain.IntValue(2),
			domain.FieldPersons:         domain.IntValue(150),
			domain.FieldFamilies:        domain.IntValue(30),
			domain.FieldHousesDestroyed: domain.IntValue(5),
			domain.FieldHousesDamaged:   domain.IntValue(12),
			domain.FieldAidMarkets:      domain.IntValue(40),
			// The layout never carried these columns.
			domain.FieldDivipola:       domain.Missing(domain.KindText),
			domain.FieldInjured:        domain.Missing(domain.KindInteger),
			domain.FieldMissingPersons: domain.Missing(domain.KindInteger),
			domain.FieldAidValue:       domain.Missing(domain.KindDecimal),
		},
	}
	if diff := cmp.Diff(want, records[0]); diff != "" {
		t.Errorf("loaded record mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_BackfillsCalendarFromDate(t *testing.T) {
	loader := testLoader(t)

	rows := [][]string{
		{"15/11/2001", "Cauca", "Popayán", "Sismo", "0", "80", "16", "0", "3", "10"},
	}
	records, _, err := loader.Load(2001, rows)
	require.NoError(t, err)

	rec := records[0]
	assert.Equal(t, int64(2001), rec.Get(domain.FieldYear).Int)
	assert.Equal(t, int64(11), rec.Get(domain.FieldMonth).Int)
}

func TestLoad_NullSentinels(t *testing.T) {
	loader := testLoader(t)

	rows := [][]string{
		{"23/05/1999", "Chocó", "Quibdó", "Inundación", "SD", "N/D", "NR", "-", "", "40"},
	}
	records, anomalies, err := loader.Load(1999, rows)
	require.NoError(t, err)
	assert.Empty(t, anomalies, "null sentinels are absence, not errors")

	rec := records[0]
	for _, f := range []domain.Field{
		domain.FieldDeaths, domain.FieldPersons, domain.FieldFamilies,
		domain.FieldHousesDestroyed, domain.FieldHousesDamaged,
	} {
		assert.Equal(t, domain.StateMissing, rec.Get(f).State, "field %s", f)
	}
	assert.Equal(t, int64(40), rec.Get(domain.FieldAidMarkets).Int)
}

func TestLoad_CoercionFailurePreservesRaw(t *testing.T) {
	loader := testLoader(t)

	rows := [][]string{
		{"23/05/1999", "Chocó", "Quibdó", "Inundación", "dos", "150", "30", "5", "12", "40"},
	}
	records, anomalies, err := loader.Load(1999, rows)
	require.NoError(t, err, "a bad cell never aborts the load")
	require.Len(t, records, 1)

	require.Len(t, anomalies, 1)
	a := anomalies[0]
	assert.Equal(t, domain.TypeCoercionFailure, a.Kind)
	assert.Equal(t, domain.FieldDeaths, a.Field)
	assert.Equal(t, "dos", a.Raw)
	assert.Equal(t, 1, a.Ordinal)

	assert.Equal(t, domain.StateMissing, records[0].Get(domain.FieldDeaths).State)
}

func TestLoad_RejectsTwoDigitYears(t *testing.T) {
	loader := testLoader(t)

	rows := [][]string{
		{"23/05/99", "Chocó", "Quibdó", "Inundación", "2", "150", "30", "5", "12", "40"},
	}
	records, anomalies, err := loader.Load(1999, rows)
	require.NoError(t, err)

	require.Len(t, anomalies, 1)
	assert.Equal(t, domain.TypeCoercionFailure, anomalies[0].Kind)
	assert.Contains(t, anomalies[0].Detail, "two-digit year")
	assert.Equal(t, domain.StateMissing, records[0].Get(domain.FieldDate).State)
}

func TestLoad_RaggedRow(t *testing.T) {
	loader := testLoader(t)

	rows := [][]string{
		{"23/05/1999", "Chocó", "Quibdó", "Inundación", "2"},
	}
	records, anomalies, err := loader.Load(1999, rows)
	require.NoError(t, err)
	require.Len(t, records, 1)

	require.NotEmpty(t, anomalies)
	for _, a := range anomalies {
		assert.Equal(t, domain.MissingSchemaField, a.Kind)
	}
	// Short by five cells: persons through aid_markets.
	assert.Len(t, anomalies, 5)
}

func TestLoad_CommaDecimalSeparator(t *testing.T) {
	loader := testLoader(t)

	rows := [][]string{
		{"2024", "3", "12/03/2024", "05001", "Antioquia", "Medellín", "Inundación",
			"0", "1", "0", "25", "6", "0", "2", "1250,75"},
	}
	records, anomalies, err := loader.Load(2024, rows)
	require.NoError(t, err)
	assert.Empty(t, anomalies)

	v := records[0].Get(domain.FieldAidValue)
	assert.Equal(t, domain.StatePresent, v.State)
	assert.Equal(t, 1250.75, v.Dec)
}

func TestLoad_CodeKeptVerbatim(t *testing.T) {
	loader := testLoader(t)

	rows := [][]string{
		{"12/03/2010", "Antioquia", "Medellín", "5001", "Vendaval",
			"0", "1", "0", "25", "6", "0", "2", "1"},
	}
	records, _, err := loader.Load(2010, rows)
	require.NoError(t, err)

	// Padding and verification belong to the resolver, not the loader.
	assert.Equal(t, "5001", records[0].Get(domain.FieldDivipola).Text)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected domain.Date
		wantErr  bool
	}{
		{name: "slash day first", raw: "23/05/2011", expected: domain.Date{Year: 2011, Month: 5, Day: 23}},
		{name: "dash day first", raw: "23-05-2011", expected: domain.Date{Year: 2011, Month: 5, Day: 23}},
		{name: "iso", raw: "2011-05-23", expected: domain.Date{Year: 2011, Month: 5, Day: 23}},
		{name: "impossible date", raw: "31/02/2011", wantErr: true},
		{name: "two digit year", raw: "23/05/11", wantErr: true},
		{name: "not a date", raw: "mayo 23", wantErr: true},
		{name: "too many parts", raw: "23/05/2011/4", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := parseDate(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}
