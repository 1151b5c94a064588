package verse

import (
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// MaxRangeSpan bounds how many positions a single range key may expand to.
// Wider ranges are treated as opaque keys.
const MaxRangeSpan = 1000

// keyGrammar is the participle grammar for verse keys.
// Examples: "12", "12-14", "12 - 14"
//
//nolint:govet // participle grammar tags are not standard struct tags
type keyGrammar struct {
	Start int  `@Int`
	End   *int `( "-" @Int )?`
}

// keyLexer only knows digits and the range separator, so decorated keys
// ("3a", "[4]", "3,4") fail to lex and fall through to opaque.
var keyLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Dash", Pattern: `-`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var keyParser = participle.MustBuild[keyGrammar](
	participle.Lexer(keyLexer),
	participle.Elide("Whitespace"),
)

// ParseKey returns the sorted verse positions a key denotes.
//
//   - "12"    → [12]
//   - "12-14" → [12 13 14]
//   - anything else (reversed "5-3", "3a", "1-2-3", "x") → nil
//
// A nil result marks the key as opaque: it is kept verbatim and never
// exploded or matched against sub-positions. ParseKey never fails.
func ParseKey(key string) []int {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	if n, ok := digits(key); ok {
		return []int{n}
	}

	parsed, err := keyParser.ParseString("", key)
	if err != nil {
		return nil
	}
	if parsed.End == nil {
		return []int{parsed.Start}
	}

	start, end := parsed.Start, *parsed.End
	if start > end || end-start >= MaxRangeSpan {
		return nil
	}
	positions := make([]int, 0, end-start+1)
	for v := start; v <= end; v++ {
		positions = append(positions, v)
	}
	return positions
}

// IsRange reports whether key denotes more than one position.
func IsRange(key string) bool {
	return len(ParseKey(key)) > 1
}

// IsOpaque reports whether key cannot be interpreted as verse positions.
func IsOpaque(key string) bool {
	return len(ParseKey(key)) == 0
}

// FirstNumber returns the first run of decimal digits in s.
// "3-5" → 3, "[12]" → 12, "x" → false.
func FirstNumber(s string) (int, bool) {
	start := -1
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= '0' && c <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			return atoi(s[start:i])
		}
	}
	if start < 0 {
		return 0, false
	}
	return atoi(s[start:])
}

// digits parses s when it consists only of ASCII digits.
func digits(s string) (int, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	return atoi(s)
}

func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
