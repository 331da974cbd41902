package csvfile

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cifuentesedw/emergencias-etl/internal/domain"
)

// tableHeaders maps canonical fields to the consolidated table's column
// names, matching the published dataset's conventions.
var tableHeaders = map[domain.Field]string{
	domain.FieldDate:            "FECHA",
	domain.FieldYear:            "AÑO",
	domain.FieldMonth:           "MES",
	domain.FieldDepartment:      "DEPARTAMENTO",
	domain.FieldMunicipality:    "MUNICIPIO",
	domain.FieldDivipola:        "DIVIPOLA",
	domain.FieldEvent:           "EVENTO",
	domain.FieldDeaths:          "MUERTOS",
	domain.FieldInjured:         "HERIDOS",
	domain.FieldMissingPersons:  "DESAPARECIDOS",
	domain.FieldPersons:         "PERSONAS",
	domain.FieldFamilies:        "FAMILIAS",
	domain.FieldHousesDestroyed: "VIVIENDAS_DESTRUIDAS",
	domain.FieldHousesDamaged:   "VIVIENDAS_AVERIADAS",
	domain.FieldAidMarkets:      "MERCADOS",
	domain.FieldAidValue:        "VALOR_APOYOS",
	domain.FieldHumanitarianAid: "APOYO_HUMANITARIO",
}

// WriteTable writes the consolidated table: semicolon-separated, canonical
// column order, empty cell for missing, "NA" for structurally unavailable.
func WriteTable(path string, records []domain.Record) error {
	w, closeFile, err := createCSV(path)
	if err != nil {
		return err
	}
	defer closeFile()

	fields := domain.CanonicalFields()
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = tableHeaders[f]
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write table header: %w", err)
	}

	row := make([]string, len(fields))
	for _, rec := range records {
		for i, f := range fields {
			row[i] = rec.Get(f).Render()
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write table row %s: %w", rec.Provenance, err)
		}
	}
	w.Flush()
	return w.Error()
}

// WriteReport writes the anomaly report next to the table. The two are one
// deliverable: a table without its report is incomplete evidence of data
// quality.
func WriteReport(path string, report *domain.Report) error {
	w, closeFile, err := createCSV(path)
	if err != nil {
		return err
	}
	defer closeFile()

	if err := w.Write([]string{"ERA", "FILA", "TIPO", "CAMPO", "VALOR_CRUDO", "DETALLE"}); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}
	for _, a := range report.Entries() {
		row := []string{
			strconv.Itoa(int(a.Era)),
			strconv.Itoa(a.Ordinal),
			string(a.Kind),
			string(a.Field),
			a.Raw,
			a.Detail,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write report row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func createCSV(path string) (*csv.Writer, func(), error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	w.Comma = separator
	return w, func() { _ = f.Close() }, nil
}
