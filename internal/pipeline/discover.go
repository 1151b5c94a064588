package pipeline

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/FocuswithJustin/versealign/core/errors"
	"github.com/FocuswithJustin/versealign/internal/config"
	"github.com/FocuswithJustin/versealign/internal/formats"
	"github.com/FocuswithJustin/versealign/internal/logging"
)

// Source is one language's input table.
type Source struct {
	Language string `json:"language"`
	Path     string `json:"path"`
}

// Discover lists the input tables for cfg. Explicit [[language]] entries
// win over files found under InputDir. Files are matched by base name
// against Pattern at any depth. When two files yield the same language the
// first in path order is used.
func Discover(cfg config.Config) ([]Source, error) {
	byLang := make(map[string]Source)
	var order []string

	for _, l := range cfg.Languages {
		byLang[l.Name] = Source{Language: l.Name, Path: l.Path}
		order = append(order, l.Name)
	}

	info, err := os.Stat(cfg.InputDir)
	switch {
	case err != nil && len(cfg.Languages) > 0:
		logging.Debug("input directory not scanned", "dir", cfg.InputDir, "error", err.Error())
	case err != nil:
		return nil, errors.NewIO("scan", cfg.InputDir, err)
	case !info.IsDir():
		return nil, errors.NewValidation("input_dir", cfg.InputDir+" is not a directory")
	default:
		var found []string
		err := filepath.WalkDir(cfg.InputDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			ok, err := filepath.Match(cfg.Pattern, d.Name())
			if err != nil {
				return err
			}
			if ok {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.NewIO("scan", cfg.InputDir, err)
		}
		sort.Strings(found)

		for _, path := range found {
			lang := formats.LanguageFromPath(path)
			if prev, ok := byLang[lang]; ok {
				if prev.Path != path {
					logging.Warn("duplicate language input ignored", "language", lang, "path", path, "using", prev.Path)
				}
				continue
			}
			byLang[lang] = Source{Language: lang, Path: path}
			order = append(order, lang)
		}
	}

	out := make([]Source, 0, len(order))
	for _, lang := range order {
		out = append(out, byLang[lang])
	}
	return out, nil
}
