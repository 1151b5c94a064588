// Package config loads and validates the build configuration.
//
// Values come from built-in defaults, then a TOML file (only keys present in
// the file override defaults), then command-line flags applied by the caller.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/FocuswithJustin/versealign/core/errors"
	"github.com/FocuswithJustin/versealign/core/parallel"
	"github.com/FocuswithJustin/versealign/internal/validation"
)

// Output formats.
const (
	FormatTSV    = "tsv"
	FormatCSV    = "csv"
	FormatXLSX   = "xlsx"
	FormatSQLite = "sqlite"
)

// Defaults.
const (
	DefaultInputDir  = "Verses"
	DefaultPattern   = "Bible_*.tsv"
	DefaultOutputDir = "Parallel_Corpus"
	DefaultFormat    = FormatTSV
	DefaultJobs      = 4
)

// Language is an explicitly configured input table.
type Language struct {
	Name string `toml:"name" validate:"required"`
	Path string `toml:"path" validate:"required"`
}

// Config is the resolved build configuration.
type Config struct {
	InputDir  string          `toml:"input_dir" validate:"required"`
	Pattern   string          `toml:"pattern" validate:"required"`
	OutputDir string          `toml:"output_dir" validate:"required"`
	Format    string          `toml:"format" validate:"oneof=tsv csv xlsx sqlite"`
	Compress  bool            `toml:"compress"`
	Jobs      int             `toml:"jobs" validate:"gte=1,lte=256"`
	Books     string          `toml:"books"`
	Manifest  bool            `toml:"manifest"`
	Languages []Language      `toml:"language" validate:"dive"`
	Pairs     []parallel.Pair `toml:"pair" validate:"min=1,dive"`

	// Source is the file the configuration was read from, if any.
	Source string `toml:"-"`
}

// DefaultPairs returns the language pairs built when none are configured.
func DefaultPairs() []parallel.Pair {
	return []parallel.Pair{
		{A: "English", B: "Bikolano"},
		{A: "English", B: "Cebuano"},
		{A: "English", B: "Spanish"},
		{A: "English", B: "Ilokano"},
		{A: "Cebuano", B: "Bikolano"},
		{A: "Cebuano", B: "Spanish"},
		{A: "Cebuano", B: "Ilokano"},
	}
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		InputDir:  DefaultInputDir,
		Pattern:   DefaultPattern,
		OutputDir: DefaultOutputDir,
		Format:    DefaultFormat,
		Jobs:      DefaultJobs,
		Manifest:  true,
		Pairs:     DefaultPairs(),
	}
}

type fileConfig struct {
	InputDir  string          `toml:"input_dir"`
	Pattern   string          `toml:"pattern"`
	OutputDir string          `toml:"output_dir"`
	Format    string          `toml:"format"`
	Compress  bool            `toml:"compress"`
	Jobs      int             `toml:"jobs"`
	Books     string          `toml:"books"`
	Manifest  bool            `toml:"manifest"`
	Languages []Language      `toml:"language"`
	Pairs     []parallel.Pair `toml:"pair"`
}

// Load reads path over the defaults. An empty path returns Default().
// Relative input_dir, output_dir, books and language paths are resolved
// against the directory of the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.NewConfig(path, "cannot read config", err)
	}

	var raw fileConfig
	meta, err := toml.Decode(string(data), &raw)
	if err != nil {
		return Config{}, errors.NewConfig(path, "invalid TOML", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, errors.NewConfig(path, "unknown keys: "+strings.Join(keys, ", "), nil)
	}

	base := filepath.Dir(path)

	if meta.IsDefined("input_dir") {
		cfg.InputDir = resolve(base, raw.InputDir)
	}
	if meta.IsDefined("pattern") {
		cfg.Pattern = strings.TrimSpace(raw.Pattern)
	}
	if meta.IsDefined("output_dir") {
		cfg.OutputDir = resolve(base, raw.OutputDir)
	}
	if meta.IsDefined("format") {
		cfg.Format = strings.ToLower(strings.TrimSpace(raw.Format))
	}
	if meta.IsDefined("compress") {
		cfg.Compress = raw.Compress
	}
	if meta.IsDefined("jobs") {
		cfg.Jobs = raw.Jobs
	}
	if meta.IsDefined("books") {
		cfg.Books = resolve(base, raw.Books)
	}
	if meta.IsDefined("manifest") {
		cfg.Manifest = raw.Manifest
	}
	if meta.IsDefined("language") {
		cfg.Languages = make([]Language, 0, len(raw.Languages))
		for _, l := range raw.Languages {
			cfg.Languages = append(cfg.Languages, Language{
				Name: strings.TrimSpace(l.Name),
				Path: resolve(base, l.Path),
			})
		}
	}
	if meta.IsDefined("pair") {
		cfg.Pairs = normalizePairs(raw.Pairs)
	}

	cfg.Source = path
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.NewConfig(path, "", err)
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field rules.
func (c Config) Validate() error {
	if err := validation.New().Validate(c); err != nil {
		return err
	}
	if c.Compress && c.Format != FormatTSV && c.Format != FormatCSV {
		return errors.NewValidation("compress", fmt.Sprintf("compression is only available for tsv and csv, not %s", c.Format))
	}
	if _, err := filepath.Match(c.Pattern, ""); err != nil {
		return errors.NewValidation("pattern", err.Error())
	}
	for _, p := range []struct{ field, path string }{
		{"input_dir", c.InputDir},
		{"output_dir", c.OutputDir},
	} {
		if err := validation.ValidatePath(p.path); err != nil {
			return errors.NewValidation(p.field, err.Error())
		}
	}

	seen := make(map[string]bool, len(c.Languages))
	for _, l := range c.Languages {
		if err := validation.ValidateFilename(l.Name); err != nil {
			return errors.NewValidation("language", fmt.Sprintf("%q: %v", l.Name, err))
		}
		if seen[l.Name] {
			return errors.NewValidation("language", fmt.Sprintf("%q configured twice", l.Name))
		}
		seen[l.Name] = true
	}
	for _, p := range c.Pairs {
		for _, name := range []string{p.A, p.B} {
			if err := validation.ValidateFilename(name); err != nil {
				return errors.NewValidation("pair", fmt.Sprintf("%q: %v", name, err))
			}
		}
	}
	return nil
}

// Extension returns the output file extension for the configured format,
// including ".xz" when compression is on.
func (c Config) Extension() string {
	ext := "." + c.Format
	if c.Compress {
		ext += ".xz"
	}
	return ext
}

// OutputPath returns the artifact path for a pair.
func (c Config) OutputPath(p parallel.Pair) string {
	return filepath.Join(c.OutputDir, p.FileStem()+c.Extension())
}

// ManifestPath returns the path of the run manifest.
func (c Config) ManifestPath() string {
	return filepath.Join(c.OutputDir, "manifest.json")
}

func resolve(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func normalizePairs(in []parallel.Pair) []parallel.Pair {
	out := make([]parallel.Pair, 0, len(in))
	for _, p := range in {
		out = append(out, parallel.Pair{A: strings.TrimSpace(p.A), B: strings.TrimSpace(p.B)})
	}
	return out
}
