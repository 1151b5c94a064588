// Package tsv reads and writes delimited verse tables and parallel corpora
// (tab- or comma-separated, optionally .xz or .gz compressed).
package tsv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/FocuswithJustin/versealign/core/cas"
	"github.com/FocuswithJustin/versealign/core/errors"
	"github.com/FocuswithJustin/versealign/core/parallel"
	"github.com/FocuswithJustin/versealign/core/verse"
	"github.com/FocuswithJustin/versealign/internal/archive"
	"github.com/FocuswithJustin/versealign/internal/formats"
)

func init() {
	formats.Register(&formats.Handler{
		Name:         "tsv",
		Extensions:   []string{".tsv", ".txt"},
		Compressible: true,
		Loader:       Loader{Comma: '\t'},
		NewWriter: func(o formats.Options) formats.Writer {
			return Writer{Comma: '\t', Compression: o.Compression}
		},
	})
	formats.Register(&formats.Handler{
		Name:         "csv",
		Extensions:   []string{".csv"},
		Compressible: true,
		Loader:       Loader{Comma: ','},
		NewWriter: func(o formats.Options) formats.Writer {
			return Writer{Comma: ',', Compression: o.Compression}
		},
	})
}

// Loader reads a delimited verse table with a header row naming Book,
// Chapter and Verse columns. The text column is "Text" when present,
// otherwise the last column.
type Loader struct {
	Comma rune
}

// Load reads the table at path. An empty language is derived from the file
// name.
func (l Loader) Load(path, language string) (*verse.Table, error) {
	if language == "" {
		language = formats.LanguageFromPath(path)
	}
	r, err := archive.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer r.Close()

	t, err := l.Read(r, language)
	if err != nil {
		var pe *errors.ParseError
		if errors.As(err, &pe) {
			pe.Path = path
			return nil, pe
		}
		return nil, errors.NewIO("read", path, err)
	}
	return t, nil
}

// columns holds header positions.
type columns struct {
	book, chapter, verse, text int
}

// Read parses a delimited table from r. A UTF-8 or UTF-16 byte order mark
// is honoured and stripped.
func (l Loader) Read(r io.Reader, language string) (*verse.Table, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	cr := csv.NewReader(decoded)
	cr.Comma = l.comma()
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &errors.ParseError{Format: l.format(), Message: "empty file, header row required"}
	}
	if err != nil {
		return nil, parseErr(l.format(), err)
	}
	cols, err := findColumns(header)
	if err != nil {
		return nil, &errors.ParseError{Format: l.format(), Message: err.Error()}
	}

	var records []verse.Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, parseErr(l.format(), err)
		}
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		records = append(records, verse.Record{
			Book:    cell(row, cols.book),
			Chapter: cell(row, cols.chapter),
			Verse:   cell(row, cols.verse),
			Text:    cell(row, cols.text),
		})
	}
	return verse.NewTable(language, records), nil
}

func (l Loader) comma() rune {
	if l.Comma == 0 {
		return '\t'
	}
	return l.Comma
}

func (l Loader) format() string {
	if l.comma() == ',' {
		return "CSV"
	}
	return "TSV"
}

func parseErr(format string, err error) error {
	return &errors.ParseError{Format: format, Message: err.Error(), Err: err}
}

func findColumns(header []string) (columns, error) {
	cols := columns{book: -1, chapter: -1, verse: -1, text: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "book":
			cols.book = i
		case "chapter":
			cols.chapter = i
		case "verse":
			cols.verse = i
		case "text":
			cols.text = i
		}
	}

	var missing []string
	if cols.book < 0 {
		missing = append(missing, "Book")
	}
	if cols.chapter < 0 {
		missing = append(missing, "Chapter")
	}
	if cols.verse < 0 {
		missing = append(missing, "Verse")
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("header missing column(s) %s", strings.Join(missing, ", "))
	}

	if cols.text < 0 {
		last := len(header) - 1
		if last == cols.book || last == cols.chapter || last == cols.verse {
			return cols, fmt.Errorf("header has no text column")
		}
		cols.text = last
	}
	return cols, nil
}

// cell returns row[i], or "" for short rows.
func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// Writer writes a corpus as delimited text.
type Writer struct {
	Comma       rune
	Compression archive.Compression
}

// Write writes the corpus to path atomically.
func (w Writer) Write(path string, c *parallel.Corpus) error {
	err := cas.WriteAtomic(path, func(out io.Writer) error {
		return archive.WriteCompressed(out, w.Compression, func(dst io.Writer) error {
			return w.Encode(dst, c)
		})
	})
	if err != nil {
		return errors.NewIO("write", path, err)
	}
	return nil
}

// Encode writes the header and rows of c to dst.
func (w Writer) Encode(dst io.Writer, c *parallel.Corpus) error {
	cw := csv.NewWriter(dst)
	cw.Comma = w.Comma
	if cw.Comma == 0 {
		cw.Comma = '\t'
	}
	if err := cw.Write(parallel.Header(c.Pair)); err != nil {
		return err
	}
	for _, r := range c.Records {
		if err := cw.Write(r.Row()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
