// Package pipeline builds parallel corpora: it loads every language table
// once, then aligns, joins, sorts and writes each configured pair.
//
// Pairs run concurrently and independently. A pair whose language is
// missing is skipped; a pair that fails is recorded as failed. Neither
// stops the other pairs.
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/FocuswithJustin/versealign/core/align"
	"github.com/FocuswithJustin/versealign/core/books"
	"github.com/FocuswithJustin/versealign/core/cas"
	"github.com/FocuswithJustin/versealign/core/errors"
	"github.com/FocuswithJustin/versealign/core/parallel"
	"github.com/FocuswithJustin/versealign/core/verse"
	"github.com/FocuswithJustin/versealign/internal/archive"
	"github.com/FocuswithJustin/versealign/internal/cache"
	"github.com/FocuswithJustin/versealign/internal/config"
	"github.com/FocuswithJustin/versealign/internal/formats"
	"github.com/FocuswithJustin/versealign/internal/logging"
)

// Builder runs builds for one configuration.
type Builder struct {
	cfg     config.Config
	books   *books.Map
	writer  formats.Writer
	version string

	// loadTable is replaceable in tests.
	loadTable func(path, language string) (*verse.Table, error)

	// tables keeps loaded inputs between runs of the same builder, so a
	// rebuild only re-reads changed files.
	tables *cache.FileCache[loadedTable]
}

type loadedTable struct {
	language string
	table    *verse.Table
	unknown  int
}

// Option configures a Builder.
type Option func(*Builder)

// WithVersion records the tool version in manifests.
func WithVersion(v string) Option {
	return func(b *Builder) { b.version = v }
}

// WithBooks uses m instead of loading cfg.Books.
func WithBooks(m *books.Map) Option {
	return func(b *Builder) { b.books = m }
}

// New validates cfg, loads the book map if one is configured, and prepares
// the output writer. A configured book map that cannot be loaded is fatal.
func New(cfg config.Config, opts ...Option) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewConfig(cfg.Source, "", err)
	}

	b := &Builder{
		cfg:       cfg,
		loadTable: formats.Load,
		tables:    cache.New[loadedTable](),
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.books == nil && cfg.Books != "" {
		m, err := books.Load(cfg.Books)
		if err != nil {
			return nil, err
		}
		b.books = m
	}

	comp := archive.None
	if cfg.Compress {
		comp = archive.XZ
	}
	w, err := formats.NewWriter(cfg.Format, formats.Options{Compression: comp})
	if err != nil {
		return nil, err
	}
	b.writer = w
	return b, nil
}

// Config returns the builder's configuration.
func (b *Builder) Config() config.Config {
	return b.cfg
}

// bookOrder returns the book map as a sort order, or nil when there is none.
func (b *Builder) bookOrder() parallel.BookOrder {
	if b.books == nil {
		return nil
	}
	return b.books
}

// Run builds every configured pair.
func (b *Builder) Run(ctx context.Context) (*Report, error) {
	return b.RunPairs(ctx, b.cfg.Pairs)
}

// RunPairs builds the given pairs. When manifests are enabled the entries
// of pairs not rebuilt are carried over from the existing manifest.
func (b *Builder) RunPairs(ctx context.Context, pairs []parallel.Pair) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Version:   b.version,
		Format:    b.cfg.Format,
		StartedAt: time.Now().UTC(),
	}
	ctx = logging.WithRunID(ctx, report.RunID)

	sources, err := Discover(b.cfg)
	if err != nil {
		return nil, err
	}
	sources = needed(sources, pairs)

	tables, langs := b.LoadLanguages(ctx, sources)
	report.Languages = langs

	report.Pairs = make([]PairResult, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Jobs)
	for i, p := range pairs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				report.Pairs[i] = PairResult{Pair: p.Label(), Status: StatusSkipped, Error: err.Error(), err: err}
				return err
			}
			report.Pairs[i] = b.BuildPair(gctx, p, tables)
			return nil
		})
	}
	runErr := g.Wait()
	if err := ctx.Err(); err != nil {
		runErr = err
	}

	// Pairs never scheduled because of cancellation.
	for i, p := range pairs {
		if report.Pairs[i].Pair == "" {
			report.Pairs[i] = PairResult{Pair: p.Label(), Status: StatusSkipped, Error: context.Canceled.Error(), err: context.Canceled}
		}
	}
	report.FinishedAt = time.Now().UTC()

	if b.cfg.Manifest {
		path := b.cfg.ManifestPath()
		if len(pairs) != len(b.cfg.Pairs) {
			if prev, err := ReadManifest(path); err == nil {
				report.Merge(prev)
			}
		}
		if err := WriteManifest(path, report); err != nil {
			logging.ErrorContext(ctx, "manifest not written", "path", path, "error", err.Error())
			if runErr == nil {
				runErr = errors.NewIO("write", path, err)
			}
		}
	}

	written, skipped, failed := report.Counts()
	logging.InfoContext(ctx, "build_finished",
		"written", written,
		"skipped", skipped,
		"failed", failed,
		"duration_ms", report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	)
	return report, runErr
}

// needed drops sources no pair refers to.
func needed(sources []Source, pairs []parallel.Pair) []Source {
	want := make(map[string]bool, len(pairs)*2)
	for _, p := range pairs {
		want[p.A] = true
		want[p.B] = true
	}
	out := sources[:0:0]
	for _, s := range sources {
		if want[s.Language] {
			out = append(out, s)
		} else {
			logging.Debug("language not used by any pair", "language", s.Language, "path", s.Path)
		}
	}
	return out
}

// LoadLanguages loads the sources concurrently and applies the book map.
// Tables that fail to load are reported and left out of the result map.
func (b *Builder) LoadLanguages(ctx context.Context, sources []Source) (map[string]*verse.Table, []LanguageResult) {
	results := make([]LanguageResult, len(sources))
	loaded := make([]*verse.Table, len(sources))

	var g errgroup.Group
	g.SetLimit(b.cfg.Jobs)
	for i, src := range sources {
		g.Go(func() error {
			results[i], loaded[i] = b.loadOne(ctx, src)
			return nil
		})
	}
	g.Wait()

	tables := make(map[string]*verse.Table, len(sources))
	for i, t := range loaded {
		if t != nil {
			tables[sources[i].Language] = t
		}
	}
	return tables, results
}

func (b *Builder) loadOne(ctx context.Context, src Source) (LanguageResult, *verse.Table) {
	res := LanguageResult{Language: src.Language, Path: src.Path}
	if err := ctx.Err(); err != nil {
		res.Error = err.Error()
		return res, nil
	}

	start := time.Now()
	stamp, err := cache.StatStamp(src.Path)
	if err != nil {
		return b.loadFailed(ctx, res, errors.NewIO("stat", src.Path, err))
	}
	if lt, ok := b.tables.Get(src.Path, stamp); ok && lt.language == src.Language {
		res.Records = lt.table.Len()
		res.Unknown = lt.unknown
		logging.LanguageLoaded(ctx, src.Language, src.Path, lt.table.Len(), time.Since(start), "cached", true)
		return res, lt.table
	}

	t, err := b.loadTable(src.Path, src.Language)
	if err != nil {
		b.tables.Remove(src.Path)
		return b.loadFailed(ctx, res, err)
	}
	if b.books != nil {
		t, res.Unknown = b.books.Apply(t)
		if res.Unknown > 0 {
			logging.WarnContext(ctx, "unmapped books", "language", src.Language, "rows", res.Unknown, "books", b.books.Source())
		}
	}
	if dups := t.Duplicates(); len(dups) > 0 {
		logging.WarnContext(ctx, "duplicate verse keys", "language", src.Language, "count", len(dups))
	}
	b.tables.Put(src.Path, stamp, loadedTable{language: src.Language, table: t, unknown: res.Unknown})

	res.Records = t.Len()
	logging.LanguageLoaded(ctx, src.Language, src.Path, t.Len(), time.Since(start))
	return res, t
}

func (b *Builder) loadFailed(ctx context.Context, res LanguageResult, err error) (LanguageResult, *verse.Table) {
	res.Error = err.Error()
	logging.ErrorContext(ctx, "language_failed", "language", res.Language, "path", res.Path, "error", err.Error())
	return res, nil
}

// BuildPair builds one pair from loaded tables and writes it to the
// configured output path.
func (b *Builder) BuildPair(ctx context.Context, p parallel.Pair, tables map[string]*verse.Table) PairResult {
	var missing []string
	for _, lang := range []string{p.A, p.B} {
		if _, ok := tables[lang]; !ok {
			missing = append(missing, lang)
		}
	}
	if len(missing) > 0 {
		err := &errors.MissingLanguageError{Pair: p.Label(), Languages: missing}
		logging.PairSkipped(ctx, p.Label(), missing)
		return PairResult{Pair: p.Label(), Status: StatusSkipped, Error: err.Error(), err: err}
	}
	return b.WritePair(ctx, p, tables[p.A], tables[p.B], b.cfg.OutputPath(p), b.writer)
}

// Assemble aligns ta and tb and returns the sorted corpus. It does no I/O.
func (b *Builder) Assemble(p parallel.Pair, ta, tb *verse.Table) (*parallel.Corpus, align.Stats, error) {
	a, bb, stats, err := align.AlignWithStats(ta, tb)
	if err != nil {
		return nil, stats, err
	}
	c, err := parallel.Assemble(p, a, bb, b.bookOrder())
	if err != nil {
		return nil, stats, err
	}
	return c, stats, nil
}

// WritePair assembles a pair and writes it to path with w.
func (b *Builder) WritePair(ctx context.Context, p parallel.Pair, ta, tb *verse.Table, path string, w formats.Writer) PairResult {
	start := time.Now()
	res := PairResult{Pair: p.Label()}
	logging.PairStarted(ctx, p.Label(), "path", path)

	fail := func(err error) PairResult {
		res.Status = StatusFailed
		res.Error = err.Error()
		res.err = err
		res.Duration = time.Since(start)
		logging.PairFailed(ctx, p.Label(), err)
		return res
	}

	c, stats, err := b.Assemble(p, ta, tb)
	if err != nil {
		return fail(err)
	}
	res.Stats = &stats
	if stats.Changed() {
		logging.DebugContext(ctx, "alignment",
			"pair", p.Label(),
			"primary_composites", stats.PrimaryComposites,
			"secondary_composites", stats.SecondaryComposites,
			"consumed", stats.Consumed,
			"misses", stats.Misses,
		)
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if err := w.Write(path, c); err != nil {
		return fail(err)
	}

	hash, err := cas.HashFile(path)
	if err != nil {
		return fail(errors.NewIO("hash", path, err))
	}

	res.Status = StatusWritten
	res.Path = path
	res.Rows = c.Len()
	res.HashResult = hash
	res.Duration = time.Since(start)
	logging.PairWritten(ctx, p.Label(), path, c.Len(), res.Duration, "size_bytes", hash.SizeBytes)
	return res
}

// Affected returns the pairs that use language.
func Affected(pairs []parallel.Pair, language string) []parallel.Pair {
	var out []parallel.Pair
	for _, p := range pairs {
		if p.A == language || p.B == language {
			out = append(out, p)
		}
	}
	return out
}

// Watched reports whether a change to path can affect a build: the file is
// an explicit language input or its name matches the input pattern.
func (b *Builder) Watched(path string) bool {
	for _, l := range b.cfg.Languages {
		if filepath.Clean(l.Path) == filepath.Clean(path) {
			return true
		}
	}
	ok, _ := filepath.Match(b.cfg.Pattern, filepath.Base(path))
	return ok
}

// WatchRoots returns the paths to watch for input changes.
func (b *Builder) WatchRoots() []string {
	roots := []string{b.cfg.InputDir}
	for _, l := range b.cfg.Languages {
		roots = append(roots, l.Path)
	}
	return roots
}

// Rebuild rebuilds the pairs that use any language whose input is among
// paths. It returns a nil report when no configured pair is affected.
func (b *Builder) Rebuild(ctx context.Context, paths []string) (*Report, error) {
	sources, err := Discover(b.cfg)
	if err != nil {
		return nil, err
	}
	byPath := make(map[string]string, len(sources))
	for _, s := range sources {
		byPath[filepath.Clean(s.Path)] = s.Language
	}

	var pairs []parallel.Pair
	seen := make(map[parallel.Pair]bool)
	for _, path := range paths {
		lang, ok := byPath[filepath.Clean(path)]
		if !ok {
			// Removed files are no longer discovered.
			lang = formats.LanguageFromPath(path)
		}
		for _, p := range Affected(b.cfg.Pairs, lang) {
			if !seen[p] {
				seen[p] = true
				pairs = append(pairs, p)
			}
		}
	}
	if len(pairs) == 0 {
		logging.DebugContext(ctx, "no pairs affected", "paths", len(paths))
		return nil, nil
	}
	return b.RunPairs(ctx, pairs)
}
