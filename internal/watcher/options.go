package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

// DefaultSettleDelay is how long the input tree must stay quiet before a
// batch of changes is handed over.
const DefaultSettleDelay = 500 * time.Millisecond

// Options configures the watcher.
type Options struct {
	// SettleDelay restarts on every accepted event. Zero means
	// DefaultSettleDelay.
	SettleDelay time.Duration

	// Match selects the files that count as changes. Nil accepts all
	// files that are not ignored.
	Match func(path string) bool

	IgnorePatterns []string
	IgnoreHidden   bool
}

func (o *Options) setDefaults() {
	if o.SettleDelay <= 0 {
		o.SettleDelay = DefaultSettleDelay
	}
	if o.IgnorePatterns == nil {
		// Editor swap files and our own atomic-write temporaries.
		o.IgnorePatterns = []string{
			"*.tmp",
			"*.swp",
			"*~",
			".#*",
		}
		o.IgnoreHidden = true
	}
}

func (o *Options) shouldIgnore(path string) bool {
	if o.IgnoreHidden {
		for _, part := range strings.Split(filepath.Clean(path), string(filepath.Separator)) {
			if strings.HasPrefix(part, ".") && part != "." && part != ".." {
				return true
			}
		}
	}

	base := filepath.Base(path)
	for _, pattern := range o.IgnorePatterns {
		if ok, err := filepath.Match(pattern, base); err == nil && ok {
			return true
		}
	}
	return false
}
