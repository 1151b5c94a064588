package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/FocuswithJustin/versealign/core/books"
	"github.com/FocuswithJustin/versealign/core/errors"
	"github.com/FocuswithJustin/versealign/core/parallel"
	"github.com/FocuswithJustin/versealign/core/verse"
	"github.com/FocuswithJustin/versealign/internal/config"
	_ "github.com/FocuswithJustin/versealign/internal/formats/tsv"
)

const (
	englishTSV = "Book\tChapter\tVerse\tText\n" +
		"Genesis\t1\t1\tIn the beginning\n" +
		"Genesis\t1\t2\tAnd the earth\n" +
		"Genesis\t1\t3-5\tLight, day and night\n" +
		"Genesis\t2\t1\tThus the heavens\n"

	cebuanoTSV = "Book\tChapter\tVerse\tText\n" +
		"Genesis\t1\t1\tSa sinugdan\n" +
		"Genesis\t1\t3\tKahayag\n" +
		"Genesis\t1\t4\tMaayo\n" +
		"Genesis\t1\t5\tAdlaw\n" +
		"Genesis\t1\t2\tAng yuta\n"

	// Two rows for Genesis 1:1 cannot be joined.
	brokenTSV = "Book\tChapter\tVerse\tText\n" +
		"Genesis\t1\t1\tUna\n" +
		"Genesis\t1\t1\tDos\n"
)

func writeInputs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return dir
}

func testConfig(t *testing.T, inputDir string, pairs ...parallel.Pair) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.InputDir = inputDir
	cfg.OutputDir = filepath.Join(t.TempDir(), "out")
	cfg.Jobs = 2
	cfg.Pairs = pairs
	return cfg
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", path, err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestRunConsolidatesRanges(t *testing.T) {
	in := writeInputs(t, map[string]string{
		"Bible_English.tsv": englishTSV,
		"Bible_Cebuano.tsv": cebuanoTSV,
	})
	pair := parallel.Pair{A: "English", B: "Cebuano"}
	cfg := testConfig(t, in, pair)

	b, err := New(cfg, WithVersion("test"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	report, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(report.Pairs) != 1 {
		t.Fatalf("len(Pairs) = %d, want 1", len(report.Pairs))
	}
	res := report.Pairs[0]
	if res.Status != StatusWritten {
		t.Fatalf("Status = %s, want written (error %q)", res.Status, res.Error)
	}
	if res.Rows != 4 {
		t.Errorf("Rows = %d, want 4", res.Rows)
	}
	if res.Stats == nil || res.Stats.SecondaryComposites != 1 || res.Stats.Consumed != 3 {
		t.Errorf("Stats = %+v, want 1 secondary composite consuming 3 rows", res.Stats)
	}
	if res.HashResult == nil || len(res.SHA256) != 64 {
		t.Errorf("HashResult = %+v, want a sha256", res.HashResult)
	}

	want := []string{
		"Book\tChapter\tVerse\tEnglish\tCebuano",
		"Genesis\t1\t1\tIn the beginning\tSa sinugdan",
		"Genesis\t1\t2\tAnd the earth\tAng yuta",
		"Genesis\t1\t3-5\tLight, day and night\tKahayag Maayo Adlaw",
		"Genesis\t2\t1\tThus the heavens\t<no verse>",
	}
	got := readLines(t, cfg.OutputPath(pair))
	if len(got) != len(want) {
		t.Fatalf("output has %d lines, want %d:\n%s", len(got), len(want), strings.Join(got, "\n"))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRunIsolatesPairs(t *testing.T) {
	in := writeInputs(t, map[string]string{
		"Bible_English.tsv": englishTSV,
		"Bible_Cebuano.tsv": cebuanoTSV,
		"Bible_Spanish.tsv": brokenTSV,
	})
	cfg := testConfig(t, in,
		parallel.Pair{A: "English", B: "Cebuano"},
		parallel.Pair{A: "English", B: "Ilokano"},
		parallel.Pair{A: "English", B: "Spanish"},
	)

	b, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	report, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	written, skipped, failed := report.Counts()
	if written != 1 || skipped != 1 || failed != 1 {
		t.Errorf("Counts() = (%d, %d, %d), want (1, 1, 1)", written, skipped, failed)
	}

	byPair := make(map[string]PairResult)
	for _, r := range report.Pairs {
		byPair[r.Pair] = r
	}

	skip := byPair["English-Ilokano"]
	var missing *errors.MissingLanguageError
	if !errors.As(skip.Err(), &missing) {
		t.Errorf("skipped pair error = %v, want MissingLanguageError", skip.Err())
	} else if len(missing.Languages) != 1 || missing.Languages[0] != "Ilokano" {
		t.Errorf("missing languages = %v, want [Ilokano]", missing.Languages)
	}

	fail := byPair["English-Spanish"]
	var conflict *errors.MergeConflictError
	if !errors.As(fail.Err(), &conflict) {
		t.Errorf("failed pair error = %v, want MergeConflictError", fail.Err())
	}
	if _, err := os.Stat(cfg.OutputPath(parallel.Pair{A: "English", B: "Spanish"})); !os.IsNotExist(err) {
		t.Error("failed pair left an output file")
	}
	if _, err := os.Stat(cfg.OutputPath(parallel.Pair{A: "English", B: "Cebuano"})); err != nil {
		t.Errorf("written pair output missing: %v", err)
	}
}

func TestRunWritesManifest(t *testing.T) {
	in := writeInputs(t, map[string]string{
		"Bible_English.tsv": englishTSV,
		"Bible_Cebuano.tsv": cebuanoTSV,
	})
	pair := parallel.Pair{A: "English", B: "Cebuano"}
	swapped := pair.Swap()
	cfg := testConfig(t, in, pair, swapped)

	b, err := New(cfg, WithVersion("1.2.3"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	first, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	m, err := ReadManifest(cfg.ManifestPath())
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	if m.RunID != first.RunID || m.RunID == "" {
		t.Errorf("manifest RunID = %q, want %q", m.RunID, first.RunID)
	}
	if m.Version != "1.2.3" {
		t.Errorf("manifest Version = %q, want %q", m.Version, "1.2.3")
	}
	if len(m.Pairs) != 2 || len(m.Languages) != 2 {
		t.Fatalf("manifest has %d pairs and %d languages, want 2 and 2", len(m.Pairs), len(m.Languages))
	}
	if m.Pairs[0].SHA256 != first.Pairs[0].SHA256 {
		t.Errorf("manifest sha256 = %q, want %q", m.Pairs[0].SHA256, first.Pairs[0].SHA256)
	}

	// Rebuilding one pair keeps the other's entry.
	second, err := b.RunPairs(context.Background(), []parallel.Pair{swapped})
	if err != nil {
		t.Fatalf("RunPairs() error = %v", err)
	}
	if second.RunID == first.RunID {
		t.Error("RunPairs() reused the run ID")
	}
	m, err = ReadManifest(cfg.ManifestPath())
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	if len(m.Pairs) != 2 {
		t.Errorf("merged manifest has %d pairs, want 2", len(m.Pairs))
	}
}

func TestRunWithoutManifest(t *testing.T) {
	in := writeInputs(t, map[string]string{
		"Bible_English.tsv": englishTSV,
		"Bible_Cebuano.tsv": cebuanoTSV,
	})
	cfg := testConfig(t, in, parallel.Pair{A: "English", B: "Cebuano"})
	cfg.Manifest = false

	b, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, err := os.Stat(cfg.ManifestPath()); !os.IsNotExist(err) {
		t.Error("manifest written with manifest = false")
	}
}

func TestRunCanceled(t *testing.T) {
	in := writeInputs(t, map[string]string{
		"Bible_English.tsv": englishTSV,
		"Bible_Cebuano.tsv": cebuanoTSV,
	})
	pair := parallel.Pair{A: "English", B: "Cebuano"}
	cfg := testConfig(t, in, pair)
	cfg.Manifest = false

	b, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := b.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if _, _, failed := report.Counts(); failed != 0 {
		t.Errorf("failed = %d, want 0", failed)
	}
	if _, err := os.Stat(cfg.OutputPath(pair)); !os.IsNotExist(err) {
		t.Error("canceled run wrote output")
	}
}

func TestNewErrors(t *testing.T) {
	in := t.TempDir()
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"invalid format", func(c *config.Config) { c.Format = "pdf" }},
		{"compressed xlsx", func(c *config.Config) { c.Format = "xlsx"; c.Compress = true }},
		{"no pairs", func(c *config.Config) { c.Pairs = nil }},
		{"missing books", func(c *config.Config) { c.Books = filepath.Join(in, "missing.tsv") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, in, parallel.Pair{A: "English", B: "Cebuano"})
			tt.mutate(&cfg)
			if _, err := New(cfg); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}

func TestBookMapCanonicalizesAndOrders(t *testing.T) {
	in := writeInputs(t, map[string]string{
		"Bible_English.tsv": "Book\tChapter\tVerse\tText\nEXO\t1\t1\tNow these\nGEN\t1\t1\tIn the beginning\n",
		"Bible_Cebuano.tsv": "Book\tChapter\tVerse\tText\nGenesis\t1\t1\tSa sinugdan\nExodus\t1\t1\tKini\n",
	})
	pair := parallel.Pair{A: "English", B: "Cebuano"}
	cfg := testConfig(t, in, pair)

	m, err := books.New([]books.Entry{
		{Acronym: "GEN", Name: "Genesis"},
		{Acronym: "EXO", Name: "Exodus"},
	})
	if err != nil {
		t.Fatalf("books.New() error = %v", err)
	}
	b, err := New(cfg, WithBooks(m))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := readLines(t, cfg.OutputPath(pair))
	want := []string{
		"Book\tChapter\tVerse\tEnglish\tCebuano",
		"Genesis\t1\t1\tIn the beginning\tSa sinugdan",
		"Exodus\t1\t1\tNow these\tKini",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("output =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestAssembleDoesNotMutateTables(t *testing.T) {
	b := &Builder{}
	en := verse.NewTable("English", []verse.Record{
		{Book: "Genesis", Chapter: "1", Verse: "1-2", Text: "a"},
	})
	ceb := verse.NewTable("Cebuano", []verse.Record{
		{Book: "Genesis", Chapter: "1", Verse: "1", Text: "x"},
		{Book: "Genesis", Chapter: "1", Verse: "2", Text: "y"},
	})

	c, stats, err := b.Assemble(parallel.Pair{A: "English", B: "Cebuano"}, en, ceb)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if c.Len() != 1 || c.Records[0].TextB != "x y" {
		t.Errorf("Assemble() records = %+v", c.Records)
	}
	if stats.SecondaryComposites != 1 {
		t.Errorf("SecondaryComposites = %d, want 1", stats.SecondaryComposites)
	}
	if ceb.Len() != 2 {
		t.Errorf("secondary table has %d rows after Assemble, want 2", ceb.Len())
	}
}

func TestAffected(t *testing.T) {
	pairs := config.DefaultPairs()
	tests := map[string]int{
		"English":  4,
		"Cebuano":  4,
		"Ilokano":  2,
		"Tagalog":  0,
		"Bikolano": 2,
	}
	for lang, want := range tests {
		if got := len(Affected(pairs, lang)); got != want {
			t.Errorf("len(Affected(%s)) = %d, want %d", lang, got, want)
		}
	}
}

func TestDiscover(t *testing.T) {
	in := writeInputs(t, map[string]string{
		"Bible_English.tsv": englishTSV,
		"Bible_Cebuano.tsv": cebuanoTSV,
		"notes.txt":         "ignored",
	})
	if err := os.MkdirAll(filepath.Join(in, "extra"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(in, "extra", "Bible_Ilokano.tsv"), []byte(englishTSV), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(t, in)
	override := filepath.Join(t.TempDir(), "english.tsv")
	cfg.Languages = []config.Language{{Name: "English", Path: override}}

	sources, err := Discover(cfg)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	got := make(map[string]string)
	for _, s := range sources {
		got[s.Language] = s.Path
	}
	want := map[string]string{
		"English": override,
		"Cebuano": filepath.Join(in, "Bible_Cebuano.tsv"),
		"Ilokano": filepath.Join(in, "extra", "Bible_Ilokano.tsv"),
	}
	if len(got) != len(want) {
		t.Errorf("Discover() = %v, want %v", got, want)
	}
	for lang, path := range want {
		if got[lang] != path {
			t.Errorf("source[%s] = %q, want %q", lang, got[lang], path)
		}
	}
}

func TestDiscoverMissingDir(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "missing"))
	if _, err := Discover(cfg); err == nil {
		t.Error("Discover() error = nil for missing input directory")
	}

	cfg.Languages = []config.Language{{Name: "English", Path: "english.tsv"}}
	sources, err := Discover(cfg)
	if err != nil {
		t.Fatalf("Discover() with explicit languages error = %v", err)
	}
	if len(sources) != 1 {
		t.Errorf("len(sources) = %d, want 1", len(sources))
	}
}

func TestRebuildAffectedPairs(t *testing.T) {
	in := writeInputs(t, map[string]string{
		"Bible_English.tsv": englishTSV,
		"Bible_Cebuano.tsv": cebuanoTSV,
		"Bible_Ilokano.tsv": cebuanoTSV,
	})
	cfg := testConfig(t, in,
		parallel.Pair{A: "English", B: "Cebuano"},
		parallel.Pair{A: "Cebuano", B: "Ilokano"},
	)
	b, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	report, err := b.Rebuild(context.Background(), []string{filepath.Join(in, "Bible_English.tsv")})
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if report == nil || len(report.Pairs) != 1 || report.Pairs[0].Pair != "English-Cebuano" {
		t.Fatalf("Rebuild() report = %+v, want English-Cebuano only", report)
	}
	if len(report.Languages) != 2 {
		t.Errorf("loaded %d languages, want 2", len(report.Languages))
	}

	report, err = b.Rebuild(context.Background(), []string{filepath.Join(in, "Bible_Tagalog.tsv")})
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if report != nil {
		t.Errorf("Rebuild() for unused language = %+v, want nil", report)
	}
}

func TestWatched(t *testing.T) {
	cfg := testConfig(t, t.TempDir(), parallel.Pair{A: "English", B: "Cebuano"})
	cfg.Languages = []config.Language{{Name: "Latin", Path: "/data/vulgate.tsv"}}
	b := &Builder{cfg: cfg}

	tests := map[string]bool{
		"/in/Bible_English.tsv": true,
		"/in/English.tsv":       false,
		"/data/vulgate.tsv":     true,
		"/in/Bible_English.csv": false,
	}
	for path, want := range tests {
		if got := b.Watched(path); got != want {
			t.Errorf("Watched(%q) = %v, want %v", path, got, want)
		}
	}
	if roots := b.WatchRoots(); len(roots) != 2 {
		t.Errorf("WatchRoots() = %v, want input dir and one language", roots)
	}
}

func TestLoadLanguagesReusesUnchangedTables(t *testing.T) {
	in := writeInputs(t, map[string]string{
		"Bible_English.tsv": englishTSV,
		"Bible_Cebuano.tsv": cebuanoTSV,
	})
	cfg := testConfig(t, in, parallel.Pair{A: "English", B: "Cebuano"})
	b, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	loads := make(map[string]int)
	var mu sync.Mutex
	load := b.loadTable
	b.loadTable = func(path, language string) (*verse.Table, error) {
		mu.Lock()
		loads[language]++
		mu.Unlock()
		return load(path, language)
	}

	sources, err := Discover(cfg)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	ctx := context.Background()
	b.LoadLanguages(ctx, sources)
	b.LoadLanguages(ctx, sources)
	if loads["English"] != 1 || loads["Cebuano"] != 1 {
		t.Errorf("loads = %v, want one load per language", loads)
	}

	// Touching a file invalidates its entry only.
	path := filepath.Join(in, "Bible_English.tsv")
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	tables, results := b.LoadLanguages(ctx, sources)
	if loads["English"] != 2 || loads["Cebuano"] != 1 {
		t.Errorf("loads = %v, want English reloaded", loads)
	}
	if len(tables) != 2 || len(results) != 2 {
		t.Errorf("LoadLanguages() = %d tables, %d results, want 2 and 2", len(tables), len(results))
	}
}

func TestLoadLanguagesReportsBrokenInput(t *testing.T) {
	in := writeInputs(t, map[string]string{
		"Bible_English.tsv": englishTSV,
		"Bible_Cebuano.tsv": "Book\tText\nGenesis\tno chapter column\n",
	})
	cfg := testConfig(t, in, parallel.Pair{A: "English", B: "Cebuano"})
	b, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	report, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var broken LanguageResult
	for _, l := range report.Languages {
		if l.Language == "Cebuano" {
			broken = l
		}
	}
	if broken.Error == "" {
		t.Error("Cebuano load error not reported")
	}
	if report.Pairs[0].Status != StatusSkipped {
		t.Errorf("Status = %s, want skipped", report.Pairs[0].Status)
	}
}
