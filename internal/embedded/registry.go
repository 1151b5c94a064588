// Package embedded imports all built-in format packages so their init()
// functions register them with internal/formats.
//
// Import this package for side effects from any binary that loads tables
// or writes corpora.
package embedded

import (
	"github.com/FocuswithJustin/versealign/internal/formats"

	_ "github.com/FocuswithJustin/versealign/internal/formats/osis"
	_ "github.com/FocuswithJustin/versealign/internal/formats/sqlite"
	_ "github.com/FocuswithJustin/versealign/internal/formats/tsv"
	_ "github.com/FocuswithJustin/versealign/internal/formats/xlsx"
)

// Expected lists the built-in format names.
var Expected = []string{"csv", "osis", "sqlite", "tsv", "xlsx"}

// IsInitialized reports whether every built-in format is registered.
func IsInitialized() bool {
	for _, name := range Expected {
		if _, ok := formats.Get(name); !ok {
			return false
		}
	}
	return true
}

// FormatCount returns the number of registered formats.
func FormatCount() int {
	return len(formats.Names())
}
