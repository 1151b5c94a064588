// Package parallel assembles two aligned verse tables into a parallel corpus.
package parallel

import (
	"fmt"
	"strings"
)

// NoVerse is the text used for a language that has no row for a verse key.
const NoVerse = "<no verse>"

// Pair names the two languages of a parallel corpus. A is the first text
// column, B the second.
type Pair struct {
	A string `json:"a" toml:"a" validate:"required"`
	B string `json:"b" toml:"b" validate:"required,nefield=A"`
}

// ParsePair parses "English:Cebuano" (or "English-Cebuano" when neither name
// contains a dash).
func ParsePair(s string) (Pair, error) {
	sep := ":"
	if !strings.Contains(s, sep) {
		sep = "-"
	}
	parts := strings.Split(s, sep)
	if len(parts) != 2 {
		return Pair{}, fmt.Errorf("invalid pair %q: want LANG1:LANG2", s)
	}
	p := Pair{A: strings.TrimSpace(parts[0]), B: strings.TrimSpace(parts[1])}
	if p.A == "" || p.B == "" {
		return Pair{}, fmt.Errorf("invalid pair %q: empty language", s)
	}
	if p.A == p.B {
		return Pair{}, fmt.Errorf("invalid pair %q: languages must differ", s)
	}
	return p, nil
}

// Label returns "A-B".
func (p Pair) Label() string {
	return p.A + "-" + p.B
}

// FileStem returns the output file name without extension, "A_B_Parallel".
func (p Pair) FileStem() string {
	return p.A + "_" + p.B + "_Parallel"
}

// Swap returns the pair with the languages exchanged.
func (p Pair) Swap() Pair {
	return Pair{A: p.B, B: p.A}
}

// String implements fmt.Stringer.
func (p Pair) String() string {
	return p.Label()
}

// Record is one row of a parallel corpus.
type Record struct {
	Book    string `json:"book"`
	Chapter string `json:"chapter"`
	Verse   string `json:"verse"`
	TextA   string `json:"text_a"`
	TextB   string `json:"text_b"`
}

// Header returns the column names for a pair: Book, Chapter, Verse, A, B.
func Header(p Pair) []string {
	return []string{"Book", "Chapter", "Verse", p.A, p.B}
}

// Row returns the record as a slice in Header order.
func (r Record) Row() []string {
	return []string{r.Book, r.Chapter, r.Verse, r.TextA, r.TextB}
}

// Corpus is a joined, sorted parallel corpus for one pair.
type Corpus struct {
	Pair    Pair     `json:"pair"`
	Records []Record `json:"records"`
}

// Len returns the number of rows.
func (c *Corpus) Len() int {
	return len(c.Records)
}
