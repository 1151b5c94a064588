package verse

import (
	"sort"
	"strconv"
)

// RangeMap maps each (book, chapter) group to its multi-position verse keys
// and the positions each one covers. It is derived per alignment call and
// never persisted.
type RangeMap map[Group]map[string][]int

// BuildRangeMap collects every range key (cardinality > 1) of t.
//
// Ranges within one group are expected not to overlap; overlapping ranges on
// the same side are not rejected here.
func BuildRangeMap(t *Table) RangeMap {
	rm := make(RangeMap)
	if t == nil {
		return rm
	}
	for _, r := range t.Records {
		positions := ParseKey(r.Verse)
		if len(positions) < 2 {
			continue
		}
		g := r.Group()
		keys, ok := rm[g]
		if !ok {
			keys = make(map[string][]int)
			rm[g] = keys
		}
		keys[r.Verse] = positions
	}
	return rm
}

// Groups returns the groups holding at least one range, ordered by book then
// numeric chapter.
func (rm RangeMap) Groups() []Group {
	groups := make([]Group, 0, len(rm))
	for g := range rm {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return lessGroup(groups[i], groups[j])
	})
	return groups
}

// Ranges returns the range keys of g ordered by first position, then by key.
func (rm RangeMap) Ranges(g Group) []string {
	keys := make([]string, 0, len(rm[g]))
	for k := range rm[g] {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		pi, pj := rm[g][keys[i]], rm[g][keys[j]]
		if pi[0] != pj[0] {
			return pi[0] < pj[0]
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Positions returns the positions covered by key in g, or nil.
func (rm RangeMap) Positions(g Group, key string) []int {
	return rm[g][key]
}

// Has reports whether g holds the exact range key.
func (rm RangeMap) Has(g Group, key string) bool {
	_, ok := rm[g][key]
	return ok
}

// Count returns the total number of range keys.
func (rm RangeMap) Count() int {
	n := 0
	for _, keys := range rm {
		n += len(keys)
	}
	return n
}

// Overlaps reports whether two sorted position lists share any position.
func Overlaps(a, b []int) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			return true
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return false
}

func lessGroup(a, b Group) bool {
	if a.Book != b.Book {
		return a.Book < b.Book
	}
	ca, errA := strconv.Atoi(a.Chapter)
	cb, errB := strconv.Atoi(b.Chapter)
	switch {
	case errA == nil && errB == nil && ca != cb:
		return ca < cb
	case errA == nil && errB != nil:
		return true
	case errA != nil && errB == nil:
		return false
	}
	return a.Chapter < b.Chapter
}

// Summary describes the key structure of a table.
type Summary struct {
	Language string `json:"language"`
	Records  int    `json:"records"`
	Books    int    `json:"books"`
	Chapters int    `json:"chapters"`
	Ranges   int    `json:"ranges"`
	Opaque   int    `json:"opaque"`
	Blank    int    `json:"blank"`
	// Duplicates counts repeated (book, chapter, verse) keys.
	Duplicates int `json:"duplicates"`
}

// Describe summarizes t.
func Describe(t *Table) Summary {
	s := Summary{Language: t.Language, Records: t.Len()}
	books := make(map[string]bool)
	chapters := make(map[Group]bool)
	for _, r := range t.Records {
		books[r.Book] = true
		chapters[r.Group()] = true
		switch n := len(ParseKey(r.Verse)); {
		case n == 0:
			s.Opaque++
		case n > 1:
			s.Ranges++
		}
		if r.Blank() {
			s.Blank++
		}
	}
	s.Books = len(books)
	s.Chapters = len(chapters)
	s.Duplicates = len(t.Duplicates())
	return s
}
