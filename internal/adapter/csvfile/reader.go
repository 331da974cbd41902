// Package csvfile implements the file ingestion and publication boundary:
// it extracts raw rows from the yearly source files and writes the
// consolidated table and anomaly report. The core pipeline never touches
// the filesystem.
package csvfile

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cifuentesedw/emergencias-etl/internal/domain"
	"github.com/cifuentesedw/emergencias-etl/internal/pipeline"
)

// Yearly extracts and the directory snapshot use the semicolon separator
// and may start with a UTF-8 BOM, depending on the tool that exported them.
const separator = ';'

var yearRe = regexp.MustCompile(`(19|20)\d{2}`)

// EraFromFilename extracts the era year from an extract filename, e.g.
// "EMERGENCIAS_2011.csv" → 2011.
func EraFromFilename(name string) (domain.Era, error) {
	match := yearRe.FindString(filepath.Base(name))
	if match == "" {
		return 0, fmt.Errorf("no era year in filename %q", name)
	}
	year, err := strconv.Atoi(match)
	if err != nil {
		return 0, err
	}
	return domain.Era(year), nil
}

// ReadExtract reads one era's raw extract: header row discarded, remaining
// rows returned positionally. Ragged rows are allowed — the loader records
// them as anomalies rather than failing the read.
func ReadExtract(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open extract: %w", err)
	}
	defer f.Close()

	rows, err := readAll(f)
	if err != nil {
		return nil, fmt.Errorf("read extract %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[1:], nil
}

// ScanExtracts reads every *.csv extract in dir and pairs it with the era
// parsed from its filename, sorted chronologically.
func ScanExtracts(dir string) ([]pipeline.EraExtract, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan extracts: %w", err)
	}

	var extracts []pipeline.EraExtract
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		era, err := EraFromFilename(entry.Name())
		if err != nil {
			return nil, err
		}
		rows, err := ReadExtract(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		extracts = append(extracts, pipeline.EraExtract{Era: era, Rows: rows})
	}
	sort.Slice(extracts, func(i, j int) bool { return extracts[i].Era < extracts[j].Era })
	return extracts, nil
}

// ReadDirectory reads the DIVIPOLA registry snapshot: code, department,
// municipality per row, header discarded. Codes stay strings so leading
// zeros survive.
func ReadDirectory(path string) ([]domain.DirectoryEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open directory: %w", err)
	}
	defer f.Close()

	rows, err := readAll(f)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", path, err)
	}

	var entries []domain.DirectoryEntry
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if len(row) < 3 {
			return nil, fmt.Errorf("directory row %d has %d columns, want 3", i+1, len(row))
		}
		entries = append(entries, domain.DirectoryEntry{
			Code:         strings.TrimSpace(row[0]),
			Department:   strings.TrimSpace(row[1]),
			Municipality: strings.TrimSpace(row[2]),
		})
	}
	return entries, nil
}

func readAll(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)
	stripBOM(br)

	cr := csv.NewReader(br)
	cr.Comma = separator
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr.ReadAll()
}

func stripBOM(br *bufio.Reader) {
	bom, err := br.Peek(3)
	if err == nil && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		_, _ = br.Discard(3)
	}
}
