// Package formats defines the verse table loaders and corpus writers and a
// registry that selects one by file extension or format name.
//
// Format packages register themselves from init; importing
// internal/embedded pulls in all of them.
package formats

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/FocuswithJustin/versealign/core/errors"
	"github.com/FocuswithJustin/versealign/core/parallel"
	"github.com/FocuswithJustin/versealign/core/verse"
	"github.com/FocuswithJustin/versealign/internal/archive"
	"github.com/FocuswithJustin/versealign/internal/validation"
)

// Loader reads one language's verse table.
type Loader interface {
	Load(path, language string) (*verse.Table, error)
}

// Writer serializes a sorted parallel corpus.
type Writer interface {
	Write(path string, corpus *parallel.Corpus) error
}

// Options configures a writer.
type Options struct {
	// Compression applies to stream formats only.
	Compression archive.Compression
}

// Handler describes one registered format.
type Handler struct {
	// Name is the format name used in configuration, e.g. "tsv".
	Name string
	// Extensions lists the file extensions the format handles, with dot.
	Extensions []string
	// Compressible marks stream formats that may be wrapped in .xz/.gz.
	Compressible bool
	// Loader is nil for output-only formats.
	Loader Loader
	// NewWriter is nil for input-only formats.
	NewWriter func(Options) Writer
}

var (
	mu       sync.RWMutex
	registry = make(map[string]*Handler)
)

// Register adds a format handler. Registering the same name twice replaces
// the earlier handler.
func Register(h *Handler) {
	if h == nil || h.Name == "" {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	registry[h.Name] = h
}

// Get returns the handler registered under name.
func Get(name string) (*Handler, bool) {
	mu.RLock()
	defer mu.RUnlock()
	h, ok := registry[strings.ToLower(name)]
	return h, ok
}

// Names returns the registered format names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Detect selects the handler for path by extension. A trailing .xz or .gz
// is looked through for compressible formats.
func Detect(path string) (*Handler, archive.Compression, error) {
	base, comp := archive.Split(path)
	ext := strings.ToLower(filepath.Ext(base))

	mu.RLock()
	defer mu.RUnlock()
	for _, h := range registry {
		for _, e := range h.Extensions {
			if e != ext {
				continue
			}
			if comp != archive.None && !h.Compressible {
				return nil, comp, errors.NewUnsupported("compression", fmt.Sprintf("%s files cannot be %s compressed", h.Name, comp))
			}
			return h, comp, nil
		}
	}
	return nil, comp, errors.NewUnsupported("format", fmt.Sprintf("no handler for %q", filepath.Base(path)))
}

// Load reads the verse table at path with the handler chosen by Detect.
func Load(path, language string) (*verse.Table, error) {
	h, _, err := Detect(path)
	if err != nil {
		return nil, err
	}
	if h.Loader == nil {
		return nil, errors.NewUnsupported("format", h.Name+" is output only")
	}
	if err := checkContent(h, path); err != nil {
		return nil, err
	}
	return h.Loader.Load(path, language)
}

// checkContent rejects files whose leading bytes contradict their
// extension, such as a spreadsheet saved as .tsv. Unreadable files are
// left to the loader to report.
func checkContent(h *Handler, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	if _, err := validation.ValidateFileType(f, path); err != nil {
		return &errors.ParseError{Format: h.Name, Path: path, Message: err.Error(), Err: err}
	}
	return nil
}

// NewWriter returns a writer for the named format.
func NewWriter(name string, opts Options) (Writer, error) {
	h, ok := Get(name)
	if !ok {
		return nil, errors.NewUnsupported("format", fmt.Sprintf("%q (known: %s)", name, strings.Join(Names(), ", ")))
	}
	if h.NewWriter == nil {
		return nil, errors.NewUnsupported("format", h.Name+" is input only")
	}
	if opts.Compression != archive.None && !h.Compressible {
		return nil, errors.NewUnsupported("compression", h.Name+" output cannot be compressed")
	}
	return h.NewWriter(opts), nil
}

// LanguageFromPath derives a language name from a table file name:
// "Bible_English.tsv.xz" gives "English". Names without the Bible_ prefix
// use the base name without extensions.
func LanguageFromPath(path string) string {
	base, _ := archive.Split(filepath.Base(path))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimPrefix(base, "Bible_")
}
