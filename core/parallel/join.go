package parallel

import (
	"github.com/FocuswithJustin/versealign/core/errors"
	"github.com/FocuswithJustin/versealign/core/verse"
)

// Join performs a full outer join of a and b on (book, chapter, verse).
//
// Each side must hold at most one row per key; otherwise Join fails with a
// MergeConflictError naming the key instead of duplicating or dropping rows.
// Keys present on one side only get NoVerse for the other language, and so
// do rows whose text is blank.
//
// Rows come out in a's order followed by rows only b has, in b's order.
// Use Sort for the canonical order.
func Join(a, b *verse.Table) ([]Record, error) {
	if a == nil {
		a = &verse.Table{}
	}
	if b == nil {
		b = &verse.Table{}
	}
	if err := checkUnique(a); err != nil {
		return nil, err
	}
	if err := checkUnique(b); err != nil {
		return nil, err
	}

	bIndex := b.Index()
	out := make([]Record, 0, a.Len()+b.Len())
	matched := make(map[verse.Key]bool, b.Len())

	for _, ra := range a.Records {
		rec := Record{
			Book:    ra.Book,
			Chapter: ra.Chapter,
			Verse:   ra.Verse,
			TextA:   textOrSentinel(ra),
			TextB:   NoVerse,
		}
		if i, ok := bIndex[ra.Key()]; ok {
			rec.TextB = textOrSentinel(b.Records[i])
			matched[ra.Key()] = true
		}
		out = append(out, rec)
	}

	for _, rb := range b.Records {
		if matched[rb.Key()] {
			continue
		}
		out = append(out, Record{
			Book:    rb.Book,
			Chapter: rb.Chapter,
			Verse:   rb.Verse,
			TextA:   NoVerse,
			TextB:   textOrSentinel(rb),
		})
	}
	return out, nil
}

func checkUnique(t *verse.Table) error {
	dups := t.Duplicates()
	if len(dups) == 0 {
		return nil
	}
	k := dups[0]
	return &errors.MergeConflictError{
		Language: t.Language,
		Book:     k.Book,
		Chapter:  k.Chapter,
		Verse:    k.Verse,
		Reason:   "duplicate verse key",
	}
}

func textOrSentinel(r verse.Record) string {
	if r.Blank() {
		return NoVerse
	}
	return r.Text
}
