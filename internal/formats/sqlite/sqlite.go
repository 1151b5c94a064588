// Package sqlite loads verse tables from and writes parallel corpora to
// SQLite databases.
//
// Input databases hold a table verses(book, chapter, verse, text). Output
// databases hold a table parallel(seq, book, chapter, verse, <A>, <B>) in
// corpus order, plus a meta table naming the pair.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/FocuswithJustin/versealign/core/cas"
	"github.com/FocuswithJustin/versealign/core/errors"
	"github.com/FocuswithJustin/versealign/core/parallel"
	db "github.com/FocuswithJustin/versealign/core/sqlite"
	"github.com/FocuswithJustin/versealign/core/verse"
	"github.com/FocuswithJustin/versealign/internal/formats"
)

// Table names.
const (
	VersesTable   = "verses"
	ParallelTable = "parallel"
	MetaTable     = "meta"
)

func init() {
	formats.Register(&formats.Handler{
		Name:       "sqlite",
		Extensions: []string{".sqlite", ".db", ".sqlite3"},
		Loader:     Loader{},
		NewWriter:  func(formats.Options) formats.Writer { return Writer{} },
	})
}

// Loader reads the verses table of a database.
type Loader struct{}

// Load reads the database at path in rowid order.
func (Loader) Load(path, language string) (*verse.Table, error) {
	if language == "" {
		language = formats.LanguageFromPath(path)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, errors.NewIO("open", path, err)
	}

	conn, err := db.OpenReadOnly(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer conn.Close()

	ok, err := db.TableExists(conn, VersesTable)
	if err != nil {
		return nil, &errors.ParseError{Format: "SQLite", Path: path, Message: err.Error(), Err: err}
	}
	if !ok {
		return nil, errors.NewParse("SQLite", path, "no verses table")
	}

	rows, err := conn.Query(`SELECT book, chapter, verse, text FROM verses ORDER BY rowid`)
	if err != nil {
		return nil, &errors.ParseError{Format: "SQLite", Path: path, Message: err.Error(), Err: err}
	}
	defer rows.Close()

	var records []verse.Record
	for rows.Next() {
		var book, chapter, v, text sql.NullString
		if err := rows.Scan(&book, &chapter, &v, &text); err != nil {
			return nil, errors.NewIO("read", path, err)
		}
		records = append(records, verse.Record{
			Book:    book.String,
			Chapter: chapter.String,
			Verse:   v.String,
			Text:    text.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	return verse.NewTable(language, records), nil
}

// Writer writes a corpus into a new database.
type Writer struct{}

// Write builds the database in a temp file and renames it into place.
func (Writer) Write(path string, c *parallel.Corpus) error {
	tmp, err := cas.TempPath(path)
	if err != nil {
		return errors.NewIO("write", path, err)
	}
	if err := writeDB(tmp, c); err != nil {
		os.Remove(tmp)
		return errors.NewIO("write", path, err)
	}
	if err := cas.Commit(tmp, path); err != nil {
		return errors.NewIO("write", path, err)
	}
	return nil
}

func writeDB(path string, c *parallel.Corpus) (err error) {
	conn, err := db.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conn.Close(); err == nil {
			err = cerr
		}
	}()

	a, b := db.QuoteIdent(c.Pair.A), db.QuoteIdent(c.Pair.B)
	schema := []string{
		fmt.Sprintf(`CREATE TABLE %s (seq INTEGER PRIMARY KEY, book TEXT NOT NULL, chapter TEXT NOT NULL, verse TEXT NOT NULL, %s TEXT NOT NULL, %s TEXT NOT NULL)`, ParallelTable, a, b),
		fmt.Sprintf(`CREATE TABLE %s (key TEXT PRIMARY KEY, value TEXT NOT NULL)`, MetaTable),
	}
	for _, stmt := range schema {
		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	tx, err := conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	meta := [][2]string{
		{"language_a", c.Pair.A},
		{"language_b", c.Pair.B},
		{"rows", fmt.Sprint(len(c.Records))},
	}
	for _, kv := range meta {
		if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)`, kv[0], kv[1]); err != nil {
			return fmt.Errorf("insert meta: %w", err)
		}
	}

	stmt, err := tx.Prepare(fmt.Sprintf(`INSERT INTO %s (seq, book, chapter, verse, %s, %s) VALUES (?, ?, ?, ?, ?, ?)`, ParallelTable, a, b))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range c.Records {
		if _, err := stmt.Exec(i+1, r.Book, r.Chapter, r.Verse, r.TextA, r.TextB); err != nil {
			return fmt.Errorf("insert row %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}
