// Package store persists a canonical verse index in a SQLite database.
//
// Schema:
//
//	meta(key TEXT PRIMARY KEY, value TEXT)
//	books(name TEXT PRIMARY KEY, book_id INTEGER, osis TEXT, book_order INTEGER)
//	verses(book TEXT, chapter INTEGER, verse INTEGER, text TEXT)
//
// book_id and osis are NULL for books without a registry entry.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/FocuswithJustin/worship-direct/core/errors"
	"github.com/FocuswithJustin/worship-direct/core/ir"
	"github.com/FocuswithJustin/worship-direct/core/sqlite"
)

const schema = `
	CREATE TABLE meta (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	CREATE TABLE books (
		name TEXT PRIMARY KEY,
		book_id INTEGER,
		osis TEXT,
		book_order INTEGER NOT NULL
	);
	CREATE TABLE verses (
		book TEXT NOT NULL,
		chapter INTEGER NOT NULL,
		verse INTEGER NOT NULL,
		text TEXT NOT NULL,
		PRIMARY KEY (book, chapter, verse),
		FOREIGN KEY (book) REFERENCES books(name)
	);
`

// Meta keys written by Save.
const (
	MetaDigest  = "digest"
	MetaSource  = "source"
	MetaCreated = "created_at"
	MetaVerses  = "verses"
)

// Save writes idx to a new database at path, replacing any existing file
// only once the new database is complete. extra is stored in the meta table.
func Save(ctx context.Context, path string, idx *ir.VerseIndex, extra map[string]string) error {
	digest, err := idx.Digest()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*.db")
	if err != nil {
		return errors.NewIO("create", dir, err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	db, err := sqlite.OpenContext(ctx, tmpPath)
	if err != nil {
		return errors.NewIO("open", tmpPath, err)
	}
	if err := write(ctx, db, idx, digest, extra); err != nil {
		db.Close()
		return err
	}
	if err := db.Close(); err != nil {
		return errors.NewIO("close", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.NewIO("rename", path, err)
	}
	return nil
}

func write(ctx context.Context, db *sql.DB, idx *ir.VerseIndex, digest string, extra map[string]string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	meta := map[string]string{
		MetaDigest:  digest,
		MetaCreated: time.Now().UTC().Format(time.RFC3339),
		MetaVerses:  fmt.Sprint(idx.Len()),
	}
	for k, v := range extra {
		meta[k] = v
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("insert meta %s: %w", k, err)
		}
	}

	reg := idx.Registry()
	for order, name := range idx.Books() {
		var bookID, osis any
		if id, ok := reg.IDOf(name); ok {
			b, _ := reg.Book(id)
			bookID, osis = int(id), b.OSIS
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO books (name, book_id, osis, book_order) VALUES (?, ?, ?, ?)`,
			name, bookID, osis, order); err != nil {
			return fmt.Errorf("insert book %s: %w", name, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO verses (book, chapter, verse, text) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare verses: %w", err)
	}
	defer stmt.Close()
	for ref, text := range idx.All() {
		if _, err := stmt.ExecContext(ctx, ref.Book, ref.Chapter, ref.Verse, text); err != nil {
			return fmt.Errorf("insert %s: %w", ref, err)
		}
	}

	return tx.Commit()
}

// Load reads a database written by Save back into a VerseIndex, resolving
// books through reg (the default registry when nil). A stored digest that
// does not match the loaded verses is reported as ErrInputMalformed.
func Load(ctx context.Context, path string, reg *ir.Registry) (*ir.VerseIndex, map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, errors.NewIO("stat", path, err)
	}
	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return nil, nil, errors.NewIO("open", path, err)
	}
	defer db.Close()

	meta, err := readMeta(ctx, db)
	if err != nil {
		return nil, nil, errors.NewMalformed("verse database", err.Error(), err)
	}

	rows, err := db.QueryContext(ctx, `SELECT book, chapter, verse, text FROM verses`)
	if err != nil {
		return nil, nil, errors.NewMalformed("verse database", err.Error(), err)
	}
	defer rows.Close()

	b := ir.NewBuilder(reg)
	for rows.Next() {
		var ref ir.VerseRef
		var text string
		if err := rows.Scan(&ref.Book, &ref.Chapter, &ref.Verse, &text); err != nil {
			return nil, nil, errors.NewMalformed("verse database", err.Error(), err)
		}
		if _, err := b.Insert(ref, text); err != nil {
			return nil, nil, errors.NewMalformed("verse database", err.Error(), err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errors.NewMalformed("verse database", err.Error(), err)
	}

	idx := b.Build()
	if want, ok := meta[MetaDigest]; ok {
		got, err := idx.Digest()
		if err != nil {
			return nil, nil, err
		}
		if got != want {
			return nil, nil, errors.NewMalformed("verse database",
				fmt.Sprintf("digest mismatch: stored %s, computed %s", want, got), nil)
		}
	}
	return idx, meta, nil
}

func readMeta(ctx context.Context, db *sql.DB) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k string
		var v sql.NullString
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		meta[k] = v.String
	}
	return meta, rows.Err()
}

// IsStore reports whether path is a SQLite database holding a verses table.
func IsStore(ctx context.Context, path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return false
	}
	defer db.Close()

	var count int
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='verses'`).Scan(&count)
	return err == nil && count > 0
}
