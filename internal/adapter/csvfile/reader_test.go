package csvfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cifuentesedw/emergencias-etl/internal/domain"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEraFromFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		expected domain.Era
		wantErr  bool
	}{
		{"plain", "EMERGENCIAS_2011.csv", 2011, false},
		{"nineties", "emergencias_1998.csv", 1998, false},
		{"with path", "/data/extracts/Emergencias 2023.csv", 2023, false},
		{"no year", "emergencias.csv", 0, true},
		{"three digits", "reporte_203.csv", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			era, err := EraFromFilename(tt.filename)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, era)
		})
	}
}

func TestReadExtract(t *testing.T) {
	dir := t.TempDir()

	t.Run("drops the header row", func(t *testing.T) {
		path := writeFile(t, dir, "EMERGENCIAS_1999.csv",
			"FECHA;DEPARTAMENTO;MUNICIPIO\n23/05/1999;CHOCO;QUIBDO\n")
		rows, err := ReadExtract(path)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, []string{"23/05/1999", "CHOCO", "QUIBDO"}, rows[0])
	})

	t.Run("strips the UTF-8 BOM", func(t *testing.T) {
		path := writeFile(t, dir, "EMERGENCIAS_2000.csv",
			"\xEF\xBB\xBFFECHA;DEPARTAMENTO\n01/01/2000;CAUCA\n")
		rows, err := ReadExtract(path)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "01/01/2000", rows[0][0])
	})

	t.Run("keeps ragged rows", func(t *testing.T) {
		path := writeFile(t, dir, "EMERGENCIAS_2001.csv",
			"A;B;C\n1;2;3\n1;2\n")
		rows, err := ReadExtract(path)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Len(t, rows[1], 2)
	})

	t.Run("empty file yields no rows", func(t *testing.T) {
		path := writeFile(t, dir, "EMERGENCIAS_2002.csv", "")
		rows, err := ReadExtract(path)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadExtract(filepath.Join(dir, "nope.csv"))
		require.Error(t, err)
	})
}

func TestScanExtracts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "EMERGENCIAS_2003.csv", "H\nrow2003\n")
	writeFile(t, dir, "EMERGENCIAS_1998.csv", "H\nrow1998\n")
	writeFile(t, dir, "notas.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "EMERGENCIAS_2004.csv"), 0o755))

	extracts, err := ScanExtracts(dir)
	require.NoError(t, err)
	require.Len(t, extracts, 2)

	assert.Equal(t, domain.Era(1998), extracts[0].Era)
	assert.Equal(t, domain.Era(2003), extracts[1].Era)
	assert.Equal(t, [][]string{{"row1998"}}, extracts[0].Rows)
}

func TestScanExtracts_UnparsableFilename(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "emergencias.csv", "H\nrow\n")

	_, err := ScanExtracts(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no era year")
}

func TestReadDirectory(t *testing.T) {
	dir := t.TempDir()

	t.Run("reads entries and keeps leading zeros", func(t *testing.T) {
		path := writeFile(t, dir, "divipola.csv",
			"CODIGO;DEPARTAMENTO;MUNICIPIO\n05001;ANTIOQUIA;MEDELLIN\n27001 ;CHOCO; QUIBDO\n")
		entries, err := ReadDirectory(path)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, domain.DirectoryEntry{Code: "05001", Department: "ANTIOQUIA", Municipality: "MEDELLIN"}, entries[0])
		assert.Equal(t, domain.DirectoryEntry{Code: "27001", Department: "CHOCO", Municipality: "QUIBDO"}, entries[1])
	})

	t.Run("rejects short rows", func(t *testing.T) {
		path := writeFile(t, dir, "corto.csv",
			"CODIGO;DEPARTAMENTO;MUNICIPIO\n05001;ANTIOQUIA\n")
		_, err := ReadDirectory(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "want 3")
	})
}
