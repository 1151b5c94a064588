// Command versealign builds verse-aligned parallel corpora from per-language
// verse tables.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"

	"github.com/FocuswithJustin/versealign/core/align"
	"github.com/FocuswithJustin/versealign/core/books"
	"github.com/FocuswithJustin/versealign/core/cas"
	"github.com/FocuswithJustin/versealign/core/parallel"
	"github.com/FocuswithJustin/versealign/core/sqlite"
	"github.com/FocuswithJustin/versealign/core/verse"
	"github.com/FocuswithJustin/versealign/internal/config"
	"github.com/FocuswithJustin/versealign/internal/formats"
	"github.com/FocuswithJustin/versealign/internal/logging"
	"github.com/FocuswithJustin/versealign/internal/pipeline"
	"github.com/FocuswithJustin/versealign/internal/validation"
	"github.com/FocuswithJustin/versealign/internal/watcher"

	// Register all loaders and writers.
	_ "github.com/FocuswithJustin/versealign/internal/embedded"
)

const version = "0.4.0"

// stdout receives command output. Logs go to stderr.
var stdout io.Writer = os.Stdout

// CLI defines the command-line interface for versealign.
var CLI struct {
	// Global flags
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)" default:"info" enum:"debug,info,warn,error"`
	LogFormat string `name:"log-format" help:"Log format (text, json)" default:"text" enum:"text,json"`

	Build   BuildCmd   `cmd:"" help:"Build every configured language pair"`
	Align   AlignCmd   `cmd:"" help:"Align two verse tables into one parallel corpus"`
	Ranges  RangesCmd  `cmd:"" help:"Show the verse ranges and key summary of one table"`
	Watch   WatchCmd   `cmd:"" help:"Build, then rebuild affected pairs when inputs change"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// BuildFlags are the configuration overrides shared by build and watch.
type BuildFlags struct {
	Config     string   `short:"c" help:"TOML configuration file" type:"path"`
	InputDir   string   `name:"input-dir" help:"Directory holding Bible_<Language>.tsv files" type:"path"`
	OutputDir  string   `name:"output-dir" short:"o" help:"Directory for parallel corpora" type:"path"`
	Format     string   `short:"f" help:"Output format (tsv, csv, xlsx, sqlite)"`
	Compress   bool     `help:"Compress tsv/csv output with xz"`
	Jobs       int      `short:"j" help:"Pairs and tables processed concurrently"`
	Books      string   `help:"Book map (TSV, CSV or TOML)" type:"path"`
	Pair       []string `short:"p" help:"Language pair as A:B (repeatable; replaces configured pairs)" sep:"none"`
	NoManifest bool     `name:"no-manifest" help:"Do not write manifest.json"`
}

// Load reads the configuration file and applies the flag overrides.
func (f *BuildFlags) Load() (config.Config, error) {
	cfg, err := config.Load(f.Config)
	if err != nil {
		return config.Config{}, err
	}

	if f.InputDir != "" {
		cfg.InputDir = f.InputDir
	}
	if f.OutputDir != "" {
		cfg.OutputDir = f.OutputDir
	}
	if f.Format != "" {
		cfg.Format = strings.ToLower(f.Format)
	}
	if f.Compress {
		cfg.Compress = true
	}
	if f.Jobs > 0 {
		cfg.Jobs = f.Jobs
	}
	if f.Books != "" {
		cfg.Books = f.Books
	}
	if f.NoManifest {
		cfg.Manifest = false
	}
	if len(f.Pair) > 0 {
		pairs := make([]parallel.Pair, 0, len(f.Pair))
		for _, s := range f.Pair {
			p, err := parallel.ParsePair(s)
			if err != nil {
				return config.Config{}, err
			}
			pairs = append(pairs, p)
		}
		cfg.Pairs = pairs
	}
	return cfg, nil
}

// BuildCmd builds every configured pair.
type BuildCmd struct {
	BuildFlags `embed:""`
}

func (c *BuildCmd) Run() error {
	cfg, err := c.Load()
	if err != nil {
		return err
	}
	b, err := pipeline.New(cfg, pipeline.WithVersion(version))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := b.Run(ctx)
	if report != nil {
		printReport(stdout, report)
	}
	if err != nil {
		return err
	}
	return checkReport(report)
}

// checkReport fails when any pair failed. Skipped pairs only warn.
func checkReport(r *pipeline.Report) error {
	_, _, failed := r.Counts()
	if failed > 0 {
		return fmt.Errorf("%d of %d pairs failed", failed, len(r.Pairs))
	}
	return nil
}

// AlignCmd aligns two tables without a configuration file.
type AlignCmd struct {
	A     string `arg:"" help:"First verse table" type:"existingfile"`
	B     string `arg:"" help:"Second verse table" type:"existingfile"`
	Out   string `required:"" short:"o" help:"Output file; the format follows the extension" type:"path"`
	LangA string `name:"lang-a" help:"Language of the first table (default: from file name)"`
	LangB string `name:"lang-b" help:"Language of the second table (default: from file name)"`
	Books string `help:"Book map (TSV, CSV or TOML)" type:"path"`
}

func (c *AlignCmd) Run() error {
	if err := validation.ValidatePath(c.Out); err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}

	p := parallel.Pair{A: c.LangA, B: c.LangB}
	if p.A == "" {
		p.A = formats.LanguageFromPath(c.A)
	}
	if p.B == "" {
		p.B = formats.LanguageFromPath(c.B)
	}
	if p.A == p.B {
		return fmt.Errorf("both tables are %q; set --lang-a and --lang-b", p.A)
	}

	h, comp, err := formats.Detect(c.Out)
	if err != nil {
		return err
	}
	w, err := formats.NewWriter(h.Name, formats.Options{Compression: comp})
	if err != nil {
		return err
	}

	var order parallel.BookOrder
	var bm *books.Map
	if c.Books != "" {
		bm, err = books.Load(c.Books)
		if err != nil {
			return err
		}
		order = bm
	}

	tables := make([]*verse.Table, 2)
	for i, in := range []struct{ path, lang string }{{c.A, p.A}, {c.B, p.B}} {
		t, err := formats.Load(in.path, in.lang)
		if err != nil {
			return err
		}
		if bm != nil {
			t, _ = bm.Apply(t)
		}
		tables[i] = t
	}

	start := time.Now()
	a, b, stats, err := align.AlignWithStats(tables[0], tables[1])
	if err != nil {
		return err
	}
	corpus, err := parallel.Assemble(p, a, b, order)
	if err != nil {
		return err
	}
	if err := w.Write(c.Out, corpus); err != nil {
		return err
	}

	hash, err := cas.HashFile(c.Out)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: %s rows, %s, %d composites, %d missing sub-verses (%s)\n",
		c.Out,
		humanize.Comma(int64(corpus.Len())),
		humanize.Bytes(uint64(hash.SizeBytes)),
		stats.PrimaryComposites+stats.SecondaryComposites,
		stats.Misses,
		time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// RangesCmd prints the key structure of one table.
type RangesCmd struct {
	Path string `arg:"" help:"Verse table" type:"existingfile"`
	Lang string `help:"Language name (default: from file name)"`
}

func (c *RangesCmd) Run() error {
	lang := c.Lang
	if lang == "" {
		lang = formats.LanguageFromPath(c.Path)
	}
	t, err := formats.Load(c.Path, lang)
	if err != nil {
		return err
	}

	s := verse.Describe(t)
	fmt.Fprintf(stdout, "Language:   %s\n", s.Language)
	fmt.Fprintf(stdout, "Records:    %s\n", humanize.Comma(int64(s.Records)))
	fmt.Fprintf(stdout, "Books:      %d\n", s.Books)
	fmt.Fprintf(stdout, "Chapters:   %d\n", s.Chapters)
	fmt.Fprintf(stdout, "Ranges:     %d\n", s.Ranges)
	fmt.Fprintf(stdout, "Opaque:     %d\n", s.Opaque)
	fmt.Fprintf(stdout, "Blank:      %d\n", s.Blank)
	fmt.Fprintf(stdout, "Duplicates: %d\n", s.Duplicates)

	rm := verse.BuildRangeMap(t)
	if rm.Count() == 0 {
		return nil
	}
	fmt.Fprintln(stdout)
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BOOK\tCHAPTER\tRANGE\tVERSES")
	for _, g := range rm.Groups() {
		for _, key := range rm.Ranges(g) {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", g.Book, g.Chapter, key, joinInts(rm.Positions(g, key)))
		}
	}
	return tw.Flush()
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ",")
}

// WatchCmd builds once and then rebuilds pairs whose inputs change.
type WatchCmd struct {
	BuildFlags `embed:""`

	Settle time.Duration `help:"Quiet period before rebuilding" default:"500ms"`
}

func (c *WatchCmd) Run() error {
	cfg, err := c.Load()
	if err != nil {
		return err
	}
	b, err := pipeline.New(cfg, pipeline.WithVersion(version))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := b.Run(ctx)
	if err != nil {
		return err
	}
	printReport(stdout, report)

	w, err := watcher.New(watcher.Options{SettleDelay: c.Settle, Match: b.Watched})
	if err != nil {
		return err
	}
	for _, root := range b.WatchRoots() {
		if err := w.Watch(root); err != nil {
			logging.Warn("not watching", "path", root, "error", err.Error())
		}
	}

	logging.Info("watching for changes", "input_dir", cfg.InputDir)
	return w.Run(ctx, func(ctx context.Context, paths []string) {
		report, err := b.Rebuild(ctx, paths)
		if err != nil {
			logging.Error("rebuild failed", "error", err.Error())
			return
		}
		if report != nil {
			printReport(stdout, report)
		}
	})
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Fprintf(stdout, "versealign version %s\n", version)
	info := sqlite.GetInfo()
	fmt.Fprintf(stdout, "sqlite driver: %s (%s)\n", info.DriverName, info.DriverType)
	fmt.Fprintf(stdout, "formats: %s\n", strings.Join(formats.Names(), ", "))
	return nil
}

// printReport writes one line per pair and a totals line.
func printReport(w io.Writer, r *pipeline.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PAIR\tSTATUS\tROWS\tSIZE\tTIME\tNOTE")
	for _, p := range r.Pairs {
		size := "-"
		if p.HashResult != nil {
			size = humanize.Bytes(uint64(p.SizeBytes))
		}
		rows := "-"
		if p.Status == pipeline.StatusWritten {
			rows = humanize.Comma(int64(p.Rows))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.Pair, p.Status, rows, size, p.Duration.Round(time.Millisecond), p.Error)
	}
	tw.Flush()

	written, skipped, failed := r.Counts()
	fmt.Fprintf(w, "\n%d written, %d skipped, %d failed in %s\n",
		written, skipped, failed, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
}

// setupLogging applies the global log flags.
func setupLogging(level, format string) error {
	l, err := logging.ParseLevel(level)
	if err != nil {
		return err
	}
	f, err := logging.ParseFormat(format)
	if err != nil {
		return err
	}
	logging.InitLogger(l, f)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("versealign"),
		kong.Description("Verse-aligned parallel corpus builder"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	ctx.FatalIfErrorf(setupLogging(CLI.LogLevel, CLI.LogFormat))
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
