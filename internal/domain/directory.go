package domain

import (
	"fmt"
	"sort"
)

// DirectoryEntry is one authoritative DIVIPOLA triple: the fixed-width
// administrative code and the official department and municipality names.
type DirectoryEntry struct {
	Code         string
	Department   string
	Municipality string
}

// Directory is the closed, versioned snapshot of the territorial code
// registry used for validation and backfill. It is built once before a run
// and never mutated, so it is safe for concurrent reads without locking.
type Directory struct {
	byCode         map[string]DirectoryEntry
	byNamePair     map[string]DirectoryEntry
	byMunicipality map[string][]DirectoryEntry
}

// NewDirectory indexes entries by code, by normalized (department,
// municipality) pair, and by normalized municipality alone. Codes are
// zero-pad normalized on the way in. A duplicate code is a broken snapshot
// and an error.
func NewDirectory(entries []DirectoryEntry, normalizer *Normalizer) (*Directory, error) {
	d := &Directory{
		byCode:         make(map[string]DirectoryEntry, len(entries)),
		byNamePair:     make(map[string]DirectoryEntry, len(entries)),
		byMunicipality: make(map[string][]DirectoryEntry),
	}
	for _, e := range entries {
		e.Code = PadCode(e.Code)
		e.Department = normalizer.Normalize(e.Department)
		e.Municipality = normalizer.Normalize(e.Municipality)
		if _, dup := d.byCode[e.Code]; dup {
			return nil, fmt.Errorf("directory: duplicate administrative code %q", e.Code)
		}
		d.byCode[e.Code] = e
		d.byNamePair[namePairKey(e.Department, e.Municipality)] = e
		d.byMunicipality[e.Municipality] = append(d.byMunicipality[e.Municipality], e)
	}
	for _, entries := range d.byMunicipality {
		sort.Slice(entries, func(i, j int) bool { return entries[i].Code < entries[j].Code })
	}
	return d, nil
}

// Len returns the number of directory entries.
func (d *Directory) Len() int {
	return len(d.byCode)
}

// LookupCode returns the entry for a zero-pad normalized code.
func (d *Directory) LookupCode(code string) (DirectoryEntry, bool) {
	e, ok := d.byCode[PadCode(code)]
	return e, ok
}

// LookupNamePair returns the entry whose normalized department and
// municipality both match.
func (d *Directory) LookupNamePair(department, municipality string) (DirectoryEntry, bool) {
	e, ok := d.byNamePair[namePairKey(department, municipality)]
	return e, ok
}

// LookupMunicipality returns every entry with the given normalized
// municipality name, sorted by code. Colliding names across departments
// return multiple entries.
func (d *Directory) LookupMunicipality(municipality string) []DirectoryEntry {
	return d.byMunicipality[municipality]
}

func namePairKey(department, municipality string) string {
	return department + "|" + municipality
}
