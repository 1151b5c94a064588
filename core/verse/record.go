// Package verse provides the typed verse-table model shared by every stage of
// the corpus builder: records, keys, verse-key parsing and range maps.
//
// A Table is loaded once per language and then treated as immutable. Stages
// that need to change rows work on a Clone.
package verse

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MissingVerse is substituted inside a composite text for a sub-verse that
// could not be resolved.
const MissingVerse = "<missing verse>"

// Record is one row of a per-language verse table.
type Record struct {
	// Book is an opaque book key (acronym or canonical name).
	Book string `json:"book"`

	// Chapter is the chapter number in its canonical text form.
	Chapter string `json:"chapter"`

	// Verse is the verse key: a singleton ("12") or a range ("12-14").
	Verse string `json:"verse"`

	// Text is the verse content.
	Text string `json:"text"`
}

// Key identifies a record within one language.
type Key struct {
	Book    string
	Chapter string
	Verse   string
}

// Group identifies a chapter, the unit within which ranges are reconciled.
type Group struct {
	Book    string
	Chapter string
}

// Key returns the record's (book, chapter, verse) key.
func (r Record) Key() Key {
	return Key{Book: r.Book, Chapter: r.Chapter, Verse: r.Verse}
}

// Group returns the record's (book, chapter) group.
func (r Record) Group() Group {
	return Group{Book: r.Book, Chapter: r.Chapter}
}

// Blank reports whether the record carries no usable text.
func (r Record) Blank() bool {
	return strings.TrimSpace(r.Text) == ""
}

// Normalize performs the single load-time normalization pass: surrounding
// whitespace is trimmed from every field and all fields are converted to
// Unicode NFC so that equal keys compare equal as strings.
func Normalize(r Record) Record {
	return Record{
		Book:    clean(r.Book),
		Chapter: clean(r.Chapter),
		Verse:   clean(r.Verse),
		Text:    clean(r.Text),
	}
}

func clean(s string) string {
	s = strings.TrimSpace(s)
	if !norm.NFC.IsNormalString(s) {
		s = norm.NFC.String(s)
	}
	return s
}

// Table is the verse table of one language.
type Table struct {
	// Language is the display name used for output columns.
	Language string `json:"language"`

	// Records holds the rows in source order.
	Records []Record `json:"records"`
}

// NewTable builds a table from raw rows, normalizing every record.
func NewTable(language string, records []Record) *Table {
	t := &Table{
		Language: strings.TrimSpace(language),
		Records:  make([]Record, 0, len(records)),
	}
	for _, r := range records {
		t.Records = append(t.Records, Normalize(r))
	}
	return t
}

// Len returns the number of records.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := &Table{
		Language: t.Language,
		Records:  make([]Record, len(t.Records)),
	}
	copy(out.Records, t.Records)
	return out
}

// Index maps every key to the position of its first occurrence.
func (t *Table) Index() map[Key]int {
	idx := make(map[Key]int, len(t.Records))
	for i, r := range t.Records {
		k := r.Key()
		if _, ok := idx[k]; !ok {
			idx[k] = i
		}
	}
	return idx
}

// Lookup returns the first record with the given key.
func (t *Table) Lookup(k Key) (Record, bool) {
	for _, r := range t.Records {
		if r.Key() == k {
			return r, true
		}
	}
	return Record{}, false
}

// Duplicates returns every key that occurs more than once, in order of the
// second occurrence.
func (t *Table) Duplicates() []Key {
	seen := make(map[Key]bool, len(t.Records))
	var dups []Key
	for _, r := range t.Records {
		k := r.Key()
		if seen[k] {
			dups = append(dups, k)
			continue
		}
		seen[k] = true
	}
	return dups
}
