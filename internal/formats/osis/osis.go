// Package osis loads verse tables from OSIS XML.
//
// Both container verses (<verse osisID="Gen.1.1">text</verse>) and
// milestone verses (<verse sID=.../> text <verse eID=.../>) are read.
// Notes are not part of verse text. A verse carrying several osisIDs
// ("Gen.1.3 Gen.1.4 Gen.1.5") becomes one record keyed "3-5".
package osis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/versealign/core/errors"
	"github.com/FocuswithJustin/versealign/core/verse"
	"github.com/FocuswithJustin/versealign/core/xml"
	"github.com/FocuswithJustin/versealign/internal/archive"
	"github.com/FocuswithJustin/versealign/internal/formats"
)

func init() {
	formats.Register(&formats.Handler{
		Name:         "osis",
		Extensions:   []string{".osis", ".xml"},
		Compressible: true,
		Loader:       Loader{},
	})
}

// skipped elements never contribute verse text.
var skipped = map[string]bool{
	"note":  true,
	"title": true,
}

// Loader reads OSIS documents.
type Loader struct{}

// Load reads the OSIS file at path.
func (Loader) Load(path, language string) (*verse.Table, error) {
	if language == "" {
		language = formats.LanguageFromPath(path)
	}
	r, err := archive.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer r.Close()

	doc, err := xml.Parse(r)
	if err != nil {
		return nil, &errors.ParseError{Format: "OSIS", Path: path, Message: err.Error(), Err: err}
	}
	if v, err := doc.XPathFirst("//verse"); err != nil || v == nil {
		return nil, errors.NewParse("OSIS", path, "no verse elements")
	}
	recs, err := Extract(doc)
	if err != nil {
		return nil, &errors.ParseError{Format: "OSIS", Path: path, Message: err.Error()}
	}
	return verse.NewTable(language, recs), nil
}

// milestone is a verse opened by sID and not yet closed.
type milestone struct {
	rec  verse.Record
	text strings.Builder
}

// Extract returns the verse records of doc in document order.
func Extract(doc *xml.Document) ([]verse.Record, error) {
	var (
		recs []verse.Record
		cur  *milestone
		err  error
	)

	closeCurrent := func() {
		if cur != nil {
			cur.rec.Text = collapse(cur.text.String())
			recs = append(recs, cur.rec)
			cur = nil
		}
	}

	doc.Walk(func(n *xml.Node) bool {
		if err != nil {
			return false
		}
		if n.IsText() {
			if cur != nil {
				cur.text.WriteString(n.Text())
			}
			return false
		}
		if !n.IsElement() || skipped[n.Name()] {
			return false
		}
		if n.Name() != "verse" {
			return true
		}

		switch {
		case n.HasAttr("eID"):
			closeCurrent()
		case n.HasAttr("sID"):
			closeCurrent()
			id := n.Attr("osisID")
			if id == "" {
				id = n.Attr("sID")
			}
			var rec verse.Record
			if rec, err = parseIDs(id); err == nil {
				cur = &milestone{rec: rec}
			}
		case n.Attr("osisID") != "":
			var rec verse.Record
			if rec, err = parseIDs(n.Attr("osisID")); err == nil {
				rec.Text = collapse(verseText(n))
				recs = append(recs, rec)
			}
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	closeCurrent()
	return recs, nil
}

// verseText gathers the text of a container verse, leaving out notes.
func verseText(v *xml.Node) string {
	var b strings.Builder
	v.Walk(func(n *xml.Node) bool {
		if n.IsText() {
			b.WriteString(n.Text())
			return false
		}
		return n.IsElement() && !skipped[n.Name()]
	})
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// parseIDs converts an osisID attribute into a record key. Several IDs in
// one chapter with consecutive numbers become a range key; other lists are
// joined with commas and stay opaque.
func parseIDs(attr string) (verse.Record, error) {
	ids := strings.Fields(attr)
	if len(ids) == 0 {
		return verse.Record{}, fmt.Errorf("empty osisID")
	}

	first, err := parseID(ids[0])
	if err != nil {
		return verse.Record{}, err
	}
	if len(ids) == 1 {
		return first, nil
	}

	keys := []string{first.Verse}
	for _, id := range ids[1:] {
		r, err := parseID(id)
		if err != nil {
			return verse.Record{}, err
		}
		if r.Book != first.Book || r.Chapter != first.Chapter {
			return verse.Record{}, fmt.Errorf("osisID %q spans chapters", attr)
		}
		keys = append(keys, r.Verse)
	}

	if start, end, ok := consecutive(keys); ok {
		first.Verse = strconv.Itoa(start) + "-" + strconv.Itoa(end)
	} else {
		first.Verse = strings.Join(keys, ",")
	}
	return first, nil
}

// parseID splits "Gen.1.3" (optionally "KJV:Gen.1.3") into book, chapter
// and verse.
func parseID(id string) (verse.Record, error) {
	if _, ref, ok := strings.Cut(id, ":"); ok {
		id = ref
	}
	parts := strings.Split(id, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return verse.Record{}, fmt.Errorf("osisID %q: want Book.Chapter.Verse", id)
	}
	return verse.Record{Book: parts[0], Chapter: parts[1], Verse: parts[2]}, nil
}

func consecutive(keys []string) (int, int, bool) {
	prev := -1
	start := 0
	for i, k := range keys {
		n, err := strconv.Atoi(k)
		if err != nil || n < 0 {
			return 0, 0, false
		}
		if i == 0 {
			start = n
		} else if n != prev+1 {
			return 0, 0, false
		}
		prev = n
	}
	return start, prev, true
}
