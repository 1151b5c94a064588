package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/FocuswithJustin/versealign/core/align"
	"github.com/FocuswithJustin/versealign/core/cas"
)

// Status is the outcome of one pair.
type Status string

const (
	StatusWritten Status = "written"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// LanguageResult records one loaded (or failed) input table.
type LanguageResult struct {
	Language string `json:"language"`
	Path     string `json:"path"`
	Records  int    `json:"records"`
	Unknown  int    `json:"unknown_books,omitempty"`
	Error    string `json:"error,omitempty"`
}

// PairResult records the outcome of one pair.
type PairResult struct {
	Pair     string        `json:"pair"`
	Status   Status        `json:"status"`
	Path     string        `json:"path,omitempty"`
	Rows     int           `json:"rows,omitempty"`
	Error    string        `json:"error,omitempty"`
	Stats    *align.Stats  `json:"alignment,omitempty"`
	Duration time.Duration `json:"duration_ns,omitempty"`
	*cas.HashResult

	err error
}

// Err returns the error that failed or skipped the pair.
func (r PairResult) Err() error {
	return r.err
}

// Report is the result of a run. It is written as manifest.json.
type Report struct {
	RunID      string           `json:"run_id"`
	Version    string           `json:"version,omitempty"`
	Format     string           `json:"format"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Languages  []LanguageResult `json:"languages"`
	Pairs      []PairResult     `json:"pairs"`
}

// Counts returns the number of written, skipped and failed pairs.
func (r *Report) Counts() (written, skipped, failed int) {
	for _, p := range r.Pairs {
		switch p.Status {
		case StatusWritten:
			written++
		case StatusSkipped:
			skipped++
		case StatusFailed:
			failed++
		}
	}
	return
}

// Merge folds the pairs and languages of an earlier report that this
// report did not rebuild, so a partial rebuild keeps a complete manifest.
func (r *Report) Merge(prev *Report) {
	if prev == nil {
		return
	}
	seen := make(map[string]bool, len(r.Pairs))
	for _, p := range r.Pairs {
		seen[p.Pair] = true
	}
	for _, p := range prev.Pairs {
		if !seen[p.Pair] {
			r.Pairs = append(r.Pairs, p)
		}
	}

	langs := make(map[string]bool, len(r.Languages))
	for _, l := range r.Languages {
		langs[l.Language] = true
	}
	for _, l := range prev.Languages {
		if !langs[l.Language] {
			r.Languages = append(r.Languages, l)
		}
	}
}

// WriteManifest writes r as indented JSON to path atomically.
func WriteManifest(path string, r *Report) error {
	return cas.WriteAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	})
}

// ReadManifest reads a manifest written by WriteManifest.
func ReadManifest(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return &r, nil
}
