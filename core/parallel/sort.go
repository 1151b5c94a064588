package parallel

import (
	"cmp"
	"sort"
	"strconv"

	"github.com/FocuswithJustin/versealign/core/verse"
)

// BookOrder gives the canonical position of a book. Books without a
// position sort after all known books.
type BookOrder interface {
	Order(book string) (int, bool)
}

// Sort orders records deterministically:
//
//   - book: by order when known, otherwise by name (nil order means by name)
//   - chapter: numerically; non-numeric chapters after numeric ones, by text
//   - verse: by the first number in the key, so "3" and "3-5" sort together;
//     keys without digits come last; ties broken by the key text
func Sort(records []Record, order BookOrder) {
	sort.SliceStable(records, func(i, j int) bool {
		return Less(records[i], records[j], order)
	})
}

// Less reports whether a sorts before b.
func Less(a, b Record, order BookOrder) bool {
	if c := compareBook(a.Book, b.Book, order); c != 0 {
		return c < 0
	}
	if c := compareChapter(a.Chapter, b.Chapter); c != 0 {
		return c < 0
	}
	return compareVerse(a.Verse, b.Verse) < 0
}

func compareBook(a, b string, order BookOrder) int {
	if a == b {
		return 0
	}
	if order != nil {
		oa, okA := order.Order(a)
		ob, okB := order.Order(b)
		switch {
		case okA && okB && oa != ob:
			return cmp.Compare(oa, ob)
		case okA && !okB:
			return -1
		case !okA && okB:
			return 1
		}
	}
	return cmp.Compare(a, b)
}

func compareChapter(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		if na != nb {
			return cmp.Compare(na, nb)
		}
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return cmp.Compare(a, b)
}

func compareVerse(a, b string) int {
	na, okA := verse.FirstNumber(a)
	nb, okB := verse.FirstNumber(b)
	switch {
	case okA && okB:
		if na != nb {
			return cmp.Compare(na, nb)
		}
	case okA:
		return -1
	case okB:
		return 1
	}
	return cmp.Compare(a, b)
}

// Assemble joins two aligned tables and sorts the result.
func Assemble(p Pair, a, b *verse.Table, order BookOrder) (*Corpus, error) {
	records, err := Join(a, b)
	if err != nil {
		return nil, err
	}
	Sort(records, order)
	return &Corpus{Pair: p, Records: records}, nil
}
