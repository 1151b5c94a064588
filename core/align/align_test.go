package align

import (
	"reflect"
	"testing"

	"github.com/FocuswithJustin/versealign/core/errors"
	"github.com/FocuswithJustin/versealign/core/verse"
)

func gen1(lang string, rows ...[2]string) *verse.Table {
	records := make([]verse.Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, verse.Record{Book: "Gen", Chapter: "1", Verse: r[0], Text: r[1]})
	}
	return verse.NewTable(lang, records)
}

func TestAlignConsolidatesSecondary(t *testing.T) {
	a := gen1("A", [2]string{"1-2", "X"}, [2]string{"3", "Y"})
	b := gen1("B", [2]string{"1", "a"}, [2]string{"2", "b"}, [2]string{"3", "c"})

	gotA, gotB, stats, err := AlignWithStats(a, b)
	if err != nil {
		t.Fatalf("AlignWithStats() error = %v", err)
	}

	wantB := []verse.Record{
		{Book: "Gen", Chapter: "1", Verse: "1-2", Text: "a b"},
		{Book: "Gen", Chapter: "1", Verse: "3", Text: "c"},
	}
	if !reflect.DeepEqual(gotB.Records, wantB) {
		t.Errorf("aligned B = %+v, want %+v", gotB.Records, wantB)
	}
	if !reflect.DeepEqual(gotA.Records, a.Records) {
		t.Errorf("aligned A = %+v, want unchanged %+v", gotA.Records, a.Records)
	}
	if gotB.Language != "B" {
		t.Errorf("Language = %q, want %q", gotB.Language, "B")
	}

	want := Stats{SecondaryComposites: 1, Consumed: 2}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
}

func TestAlignMissingSubVerse(t *testing.T) {
	a := gen1("A", [2]string{"1-2", "X"}, [2]string{"3", "Y"})
	b := gen1("B", [2]string{"1", "a"}, [2]string{"3", "c"})

	_, gotB, stats, err := AlignWithStats(a, b)
	if err != nil {
		t.Fatalf("AlignWithStats() error = %v", err)
	}
	r, ok := gotB.Lookup(verse.Key{Book: "Gen", Chapter: "1", Verse: "1-2"})
	if !ok {
		t.Fatal("composite row 1-2 not found")
	}
	if r.Text != "a <missing verse>" {
		t.Errorf("composite text = %q, want %q", r.Text, "a <missing verse>")
	}
	if _, ok := gotB.Lookup(verse.Key{Book: "Gen", Chapter: "1", Verse: "1"}); ok {
		t.Error("singleton 1 should have been consumed")
	}
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
}

func TestAlignBlankSubVerse(t *testing.T) {
	a := gen1("A", [2]string{"4-6", "X"})
	b := gen1("B", [2]string{"4", "d"}, [2]string{"5", "  "}, [2]string{"6", "f"})

	_, gotB, err := Align(a, b)
	if err != nil {
		t.Fatalf("Align() error = %v", err)
	}
	want := []verse.Record{{Book: "Gen", Chapter: "1", Verse: "4-6", Text: "d <missing verse> f"}}
	if !reflect.DeepEqual(gotB.Records, want) {
		t.Errorf("aligned B = %+v, want %+v", gotB.Records, want)
	}
}

func TestAlignIdempotentWhenKeysMatch(t *testing.T) {
	a := gen1("A", [2]string{"1-2", "X"}, [2]string{"3", "Y"})
	b := gen1("B", [2]string{"1-2", "ab"}, [2]string{"3", "c"})

	gotA, gotB, stats, err := AlignWithStats(a, b)
	if err != nil {
		t.Fatalf("AlignWithStats() error = %v", err)
	}
	if !reflect.DeepEqual(gotA, a) {
		t.Errorf("aligned A = %+v, want %+v", gotA, a)
	}
	if !reflect.DeepEqual(gotB, b) {
		t.Errorf("aligned B = %+v, want %+v", gotB, b)
	}
	if stats.Changed() {
		t.Errorf("stats = %+v, want no changes", stats)
	}

	// Aligning the output again is a no-op as well.
	againA, againB, err := Align(gotA, gotB)
	if err != nil {
		t.Fatalf("second Align() error = %v", err)
	}
	if !reflect.DeepEqual(againA, gotA) || !reflect.DeepEqual(againB, gotB) {
		t.Error("second Align() changed already aligned tables")
	}
}

func TestAlignDoesNotMutateInputs(t *testing.T) {
	a := gen1("A", [2]string{"1-2", "X"}, [2]string{"3", "Y"})
	b := gen1("B", [2]string{"1", "a"}, [2]string{"2", "b"}, [2]string{"3", "c"})
	aBefore := a.Clone()
	bBefore := b.Clone()

	for i := 0; i < 3; i++ {
		if _, _, err := Align(a, b); err != nil {
			t.Fatalf("Align() error = %v", err)
		}
	}
	if !reflect.DeepEqual(a, aBefore) {
		t.Errorf("primary mutated: %+v", a.Records)
	}
	if !reflect.DeepEqual(b, bBefore) {
		t.Errorf("secondary mutated: %+v", b.Records)
	}
}

func TestAlignBothDirections(t *testing.T) {
	a := gen1("A",
		[2]string{"1-2", "X"},
		[2]string{"3", "c1"},
		[2]string{"4", "d1"},
	)
	b := gen1("B",
		[2]string{"1", "a"},
		[2]string{"2", "b"},
		[2]string{"3-4", "CD"},
	)

	gotA, gotB, stats, err := AlignWithStats(a, b)
	if err != nil {
		t.Fatalf("AlignWithStats() error = %v", err)
	}

	wantA := []verse.Record{
		{Book: "Gen", Chapter: "1", Verse: "1-2", Text: "X"},
		{Book: "Gen", Chapter: "1", Verse: "3-4", Text: "c1 d1"},
	}
	wantB := []verse.Record{
		{Book: "Gen", Chapter: "1", Verse: "1-2", Text: "a b"},
		{Book: "Gen", Chapter: "1", Verse: "3-4", Text: "CD"},
	}
	if !reflect.DeepEqual(gotA.Records, wantA) {
		t.Errorf("aligned A = %+v, want %+v", gotA.Records, wantA)
	}
	if !reflect.DeepEqual(gotB.Records, wantB) {
		t.Errorf("aligned B = %+v, want %+v", gotB.Records, wantB)
	}
	if stats.PrimaryComposites != 1 || stats.SecondaryComposites != 1 {
		t.Errorf("stats = %+v, want one composite per side", stats)
	}
}

func TestAlignSubVerseMissingEverywhere(t *testing.T) {
	a := verse.NewTable("A", []verse.Record{{Book: "Ps", Chapter: "3", Verse: "1-2", Text: "X"}})
	b := verse.NewTable("B", []verse.Record{{Book: "Gen", Chapter: "1", Verse: "1", Text: "a"}})

	_, gotB, err := Align(a, b)
	if err != nil {
		t.Fatalf("Align() error = %v", err)
	}
	want := []verse.Record{
		{Book: "Gen", Chapter: "1", Verse: "1", Text: "a"},
		{Book: "Ps", Chapter: "3", Verse: "1-2", Text: "<missing verse> <missing verse>"},
	}
	if !reflect.DeepEqual(gotB.Records, want) {
		t.Errorf("aligned B = %+v, want %+v", gotB.Records, want)
	}
}

func TestAlignOverlappingRangesConflict(t *testing.T) {
	a := gen1("A", [2]string{"1-3", "X"})
	b := gen1("B", [2]string{"2-4", "Y"})

	_, _, err := Align(a, b)
	if err == nil {
		t.Fatal("Align() error = nil, want MergeConflictError")
	}
	var mc *errors.MergeConflictError
	if !errors.As(err, &mc) {
		t.Fatalf("Align() error = %T, want *MergeConflictError", err)
	}
	if mc.Verse != "1-3" || mc.Other != "2-4" {
		t.Errorf("conflict = %s vs %s, want 1-3 vs 2-4", mc.Verse, mc.Other)
	}
	if !errors.Is(err, errors.ErrMergeConflict) {
		t.Error("error should match ErrMergeConflict")
	}
}

func TestAlignDisjointRangesInDifferentChaptersDoNotConflict(t *testing.T) {
	a := verse.NewTable("A", []verse.Record{{Book: "Gen", Chapter: "1", Verse: "1-3", Text: "X"}})
	b := verse.NewTable("B", []verse.Record{{Book: "Gen", Chapter: "2", Verse: "2-4", Text: "Y"}})

	if _, _, err := Align(a, b); err != nil {
		t.Errorf("Align() error = %v, want nil", err)
	}
}

func TestAlignOpaqueKeysPreserved(t *testing.T) {
	a := gen1("A", [2]string{"5-3", "reversed"}, [2]string{"[7]", "bracket"})
	b := gen1("B", [2]string{"3", "c"}, [2]string{"4", "d"}, [2]string{"5", "e"})

	gotA, gotB, err := Align(a, b)
	if err != nil {
		t.Fatalf("Align() error = %v", err)
	}
	if !reflect.DeepEqual(gotA.Records, a.Records) {
		t.Errorf("aligned A = %+v, want unchanged", gotA.Records)
	}
	if !reflect.DeepEqual(gotB.Records, b.Records) {
		t.Errorf("aligned B = %+v, want unchanged", gotB.Records)
	}
}

func TestAlignNilTables(t *testing.T) {
	a := gen1("A", [2]string{"1-2", "X"})
	gotA, gotB, err := Align(a, nil)
	if err != nil {
		t.Fatalf("Align() error = %v", err)
	}
	if gotA.Len() != 1 {
		t.Errorf("aligned A Len() = %d, want 1", gotA.Len())
	}
	if gotB.Len() != 1 {
		t.Errorf("aligned B Len() = %d, want 1 synthesized row", gotB.Len())
	}
}
