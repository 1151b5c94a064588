// Package books resolves book acronyms to canonical book names.
//
// A Map is built explicitly with Load and passed to the stages that need it.
// A configured source that is missing or empty is a ConfigError; raw
// acronyms are never used as a silent fallback for an absent mapping.
package books

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/FocuswithJustin/versealign/core/errors"
	"github.com/FocuswithJustin/versealign/core/verse"
)

// Entry is one book of the mapping, in canonical order.
type Entry struct {
	Acronym string `toml:"acronym" json:"acronym"`
	Name    string `toml:"name" json:"name"`
}

// Map is an immutable acronym → canonical name lookup.
type Map struct {
	source  string
	entries []Entry
	names   map[string]string
	order   map[string]int
}

// tomlFile is the TOML layout of a mapping source:
//
//	[[book]]
//	acronym = "GEN"
//	name = "Genesis"
type tomlFile struct {
	Book []Entry `toml:"book"`
}

// Load reads a mapping source. Supported layouts are TOML ([[book]] tables)
// and delimited text with two columns, acronym then name (.tsv, .csv, .txt).
// An optional header row whose first cell is "acronym" is skipped.
func Load(path string) (*Map, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.NewConfig("", "book map source not configured", nil)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewConfig(path, "cannot open book map", err)
	}
	defer f.Close()

	var entries []Entry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		var raw tomlFile
		if _, err := toml.NewDecoder(f).Decode(&raw); err != nil {
			return nil, errors.NewConfig(path, "invalid TOML book map", err)
		}
		entries = raw.Book
	case ".csv":
		entries, err = readDelimited(f, ',')
	default:
		entries, err = readDelimited(f, '\t')
	}
	if err != nil {
		return nil, errors.NewConfig(path, "invalid book map", err)
	}

	m, err := New(entries)
	if err != nil {
		return nil, errors.NewConfig(path, err.Error(), nil)
	}
	m.source = path
	return m, nil
}

func readDelimited(r io.Reader, comma rune) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	cr.LazyQuotes = true

	var entries []Entry
	for line := 1; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		if len(row) < 2 {
			return nil, fmt.Errorf("line %d: want acronym and name, got %d field(s)", line, len(row))
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "acronym") {
			continue
		}
		entries = append(entries, Entry{Acronym: row[0], Name: row[1]})
	}
	return entries, nil
}

// New builds a Map from entries in canonical order.
func New(entries []Entry) (*Map, error) {
	m := &Map{
		names: make(map[string]string, len(entries)),
		order: make(map[string]int, len(entries)*2),
	}
	for _, e := range entries {
		e.Acronym = strings.TrimSpace(e.Acronym)
		e.Name = strings.TrimSpace(e.Name)
		if e.Acronym == "" || e.Name == "" {
			return nil, fmt.Errorf("book entry %q/%q: acronym and name are required", e.Acronym, e.Name)
		}
		if prev, ok := m.names[e.Acronym]; ok && prev != e.Name {
			return nil, fmt.Errorf("acronym %q maps to both %q and %q", e.Acronym, prev, e.Name)
		}
		m.names[e.Acronym] = e.Name

		pos := len(m.entries)
		if _, ok := m.order[e.Name]; !ok {
			m.order[e.Name] = pos
		}
		if _, ok := m.order[e.Acronym]; !ok {
			m.order[e.Acronym] = pos
		}
		m.entries = append(m.entries, e)
	}
	if len(m.entries) == 0 {
		return nil, fmt.Errorf("book map has no entries")
	}
	return m, nil
}

// Source returns the path the map was loaded from.
func (m *Map) Source() string {
	return m.source
}

// Len returns the number of entries.
func (m *Map) Len() int {
	return len(m.entries)
}

// Entries returns a copy of the entries in canonical order.
func (m *Map) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Canonical returns the canonical name for book. Books that are not
// acronyms in the map (including names that are already canonical) are
// returned unchanged.
func (m *Map) Canonical(book string) string {
	if name, ok := m.names[book]; ok {
		return name
	}
	return book
}

// Known reports whether book is an acronym or canonical name in the map.
func (m *Map) Known(book string) bool {
	_, ok := m.order[book]
	return ok
}

// Order returns the canonical position of book (acronym or name).
func (m *Map) Order(book string) (int, bool) {
	n, ok := m.order[book]
	return n, ok
}

// Apply returns a copy of t with every book resolved to its canonical name
// and the number of rows whose book was not in the map.
func (m *Map) Apply(t *verse.Table) (*verse.Table, int) {
	out := t.Clone()
	unknown := 0
	for i := range out.Records {
		b := out.Records[i].Book
		if !m.Known(b) {
			unknown++
			continue
		}
		out.Records[i].Book = m.Canonical(b)
	}
	return out, unknown
}
