// Package xlsx writes parallel corpora as Excel workbooks.
package xlsx

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/FocuswithJustin/versealign/core/cas"
	"github.com/FocuswithJustin/versealign/core/errors"
	"github.com/FocuswithJustin/versealign/core/parallel"
	"github.com/FocuswithJustin/versealign/internal/formats"
)

// maxSheetName is Excel's limit on worksheet name length.
const maxSheetName = 31

// Column widths in characters: Book, Chapter, Verse, then the two texts.
var widths = []float64{16, 9, 9, 60, 60}

func init() {
	formats.Register(&formats.Handler{
		Name:       "xlsx",
		Extensions: []string{".xlsx"},
		NewWriter:  func(formats.Options) formats.Writer { return Writer{} },
	})
}

// Writer writes one worksheet named after the pair, with a bold header row.
type Writer struct{}

// SheetName returns the worksheet name used for a pair.
func SheetName(p parallel.Pair) string {
	name := []rune(p.Label())
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	return string(name)
}

// Write writes the workbook to path atomically.
func (Writer) Write(path string, c *parallel.Corpus) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := fill(f, c); err != nil {
		return errors.NewIO("write", path, err)
	}
	err := cas.WriteAtomic(path, func(w io.Writer) error {
		return f.Write(w)
	})
	if err != nil {
		return errors.NewIO("write", path, err)
	}
	return nil
}

func fill(f *excelize.File, c *parallel.Corpus) error {
	sheet := SheetName(c.Pair)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("stream writer: %w", err)
	}
	for i, w := range widths {
		if err := sw.SetColWidth(i+1, i+1, w); err != nil {
			return err
		}
	}

	if err := sw.SetRow("A1", toCells(parallel.Header(c.Pair)), excelize.RowOpts{StyleID: bold}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range c.Records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, toCells(r.Row())); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	return sw.Flush()
}

func toCells(row []string) []any {
	cells := make([]any, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return cells
}
