// Package align reconciles verse-numbering granularity between the verse
// tables of two languages.
//
// When one edition records verses 3-5 as a single entry and the other records
// them individually, Align synthesizes a composite "3-5" row on the
// individual side by concatenating the sub-verses, so both tables end up with
// the same keys for that passage and can be joined safely.
//
// Align is a pure function: it never mutates its inputs and returns new
// tables scoped to the pair being built. A language that takes part in many
// pairs is therefore always aligned from its pristine loaded table.
package align

import (
	"strconv"
	"strings"

	"github.com/FocuswithJustin/versealign/core/errors"
	"github.com/FocuswithJustin/versealign/core/verse"
)

// Stats describes what an alignment changed.
type Stats struct {
	// PrimaryComposites is the number of composite rows synthesized in the
	// primary table (pulled by ranges of the secondary).
	PrimaryComposites int `json:"primary_composites"`

	// SecondaryComposites is the number of composite rows synthesized in the
	// secondary table (pulled by ranges of the primary).
	SecondaryComposites int `json:"secondary_composites"`

	// Consumed is the number of singleton rows folded into composites.
	Consumed int `json:"consumed"`

	// Misses is the number of sub-verses replaced by verse.MissingVerse.
	Misses int `json:"misses"`
}

// Changed reports whether the alignment touched either table.
func (s Stats) Changed() bool {
	return s.PrimaryComposites > 0 || s.SecondaryComposites > 0
}

// Align returns granularity-harmonized copies of primary and secondary.
func Align(primary, secondary *verse.Table) (*verse.Table, *verse.Table, error) {
	p, s, _, err := AlignWithStats(primary, secondary)
	return p, s, err
}

// AlignWithStats is Align and also reports what was consolidated.
//
// Ranges of the primary are expanded against the secondary first, then the
// secondary's original ranges against the already-updated primary. Each
// original range key is expanded at most once. Ranges that overlap across
// the two sides without being identical fail with a MergeConflictError.
func AlignWithStats(primary, secondary *verse.Table) (*verse.Table, *verse.Table, Stats, error) {
	var stats Stats

	primaryRanges := verse.BuildRangeMap(primary)
	secondaryRanges := verse.BuildRangeMap(secondary)

	if err := checkOverlaps(primaryRanges, secondaryRanges); err != nil {
		return nil, nil, stats, err
	}

	p := newWorkingTable(primary)
	s := newWorkingTable(secondary)

	stats.SecondaryComposites = s.consolidate(primaryRanges, &stats)
	stats.PrimaryComposites = p.consolidate(secondaryRanges, &stats)

	return p.result(), s.result(), stats, nil
}

// checkOverlaps rejects chapters where the two sides carry different ranges
// covering a common verse, e.g. "1-3" against "2-4".
func checkOverlaps(a, b verse.RangeMap) error {
	for _, g := range a.Groups() {
		if _, ok := b[g]; !ok {
			continue
		}
		for _, ra := range a.Ranges(g) {
			for _, rb := range b.Ranges(g) {
				if ra == rb {
					continue
				}
				if verse.Overlaps(a.Positions(g, ra), b.Positions(g, rb)) {
					return &errors.MergeConflictError{
						Book:    g.Book,
						Chapter: g.Chapter,
						Verse:   ra,
						Other:   rb,
						Reason:  "overlapping ranges",
					}
				}
			}
		}
	}
	return nil
}

// workingTable is a private, mutable copy of one side of a pair.
type workingTable struct {
	language string
	records  []verse.Record
	consumed []bool
	index    map[verse.Key][]int
}

func newWorkingTable(t *verse.Table) *workingTable {
	w := &workingTable{index: make(map[verse.Key][]int)}
	if t == nil {
		return w
	}
	w.language = t.Language
	w.records = make([]verse.Record, len(t.Records))
	copy(w.records, t.Records)
	w.consumed = make([]bool, len(w.records))
	for i, r := range w.records {
		k := r.Key()
		w.index[k] = append(w.index[k], i)
	}
	return w
}

// find returns the first live row with key k.
func (w *workingTable) find(k verse.Key) (int, bool) {
	for _, i := range w.index[k] {
		if !w.consumed[i] {
			return i, true
		}
	}
	return 0, false
}

// consolidate synthesizes one composite row for every range in ranges that
// this table does not already hold. It returns the number of composites.
func (w *workingTable) consolidate(ranges verse.RangeMap, stats *Stats) int {
	created := 0
	for _, g := range ranges.Groups() {
		for _, key := range ranges.Ranges(g) {
			target := verse.Key{Book: g.Book, Chapter: g.Chapter, Verse: key}
			if _, ok := w.find(target); ok {
				continue
			}
			w.compose(target, ranges.Positions(g, key), stats)
			created++
		}
	}
	return created
}

// compose folds the singleton rows at positions into one row keyed target.
// The composite takes the slot of the first consumed singleton, or is
// appended when none of the sub-verses exist.
func (w *workingTable) compose(target verse.Key, positions []int, stats *Stats) {
	parts := make([]string, 0, len(positions))
	slot := -1

	for _, pos := range positions {
		k := verse.Key{Book: target.Book, Chapter: target.Chapter, Verse: strconv.Itoa(pos)}
		i, ok := w.find(k)
		if !ok {
			parts = append(parts, verse.MissingVerse)
			stats.Misses++
			continue
		}

		if w.records[i].Blank() {
			parts = append(parts, verse.MissingVerse)
			stats.Misses++
		} else {
			parts = append(parts, w.records[i].Text)
		}
		w.consumed[i] = true
		stats.Consumed++
		if slot < 0 {
			slot = i
		}
	}

	composite := verse.Record{
		Book:    target.Book,
		Chapter: target.Chapter,
		Verse:   target.Verse,
		Text:    strings.Join(parts, " "),
	}

	if slot < 0 {
		slot = len(w.records)
		w.records = append(w.records, composite)
		w.consumed = append(w.consumed, false)
	} else {
		w.unindex(w.records[slot].Key(), slot)
		w.records[slot] = composite
		w.consumed[slot] = false
	}
	w.index[target] = append(w.index[target], slot)
}

func (w *workingTable) unindex(k verse.Key, slot int) {
	rows := w.index[k]
	for j, i := range rows {
		if i == slot {
			w.index[k] = append(rows[:j:j], rows[j+1:]...)
			return
		}
	}
}

// result returns the live rows as a new table.
func (w *workingTable) result() *verse.Table {
	out := &verse.Table{
		Language: w.language,
		Records:  make([]verse.Record, 0, len(w.records)),
	}
	for i, r := range w.records {
		if !w.consumed[i] {
			out.Records = append(out.Records, r)
		}
	}
	return out
}
