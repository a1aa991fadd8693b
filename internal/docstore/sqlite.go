package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"stocktalk/internal/util"
)

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store on a single SQLite table holding one JSON
// document per row.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents (collection);
`

// Open opens (or creates) the SQLite database at dbPath and ensures the
// documents table exists. Pragmas ride on the DSN so every connection the
// pool opens gets them: WAL keeps readers from blocking the writer, and
// the busy timeout bounds lock waits instead of failing immediately.
func Open(dbPath string) (*SQLiteStore, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(3000)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Create inserts a new document, failing with ErrExists when the key is
// already occupied.
func (s *SQLiteStore) Create(ctx context.Context, collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	err = s.writeRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)`,
			collection, id, string(data),
		)
		return err
	})
	if isUniqueErr(err) {
		return ErrExists
	}
	return err
}

// Set writes a document unconditionally.
func (s *SQLiteStore) Set(ctx context.Context, collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	return s.writeRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)
			ON CONFLICT (collection, id) DO UPDATE
			SET data = excluded.data,
			    updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')`,
			collection, id, string(data),
		)
		return err
	})
}

// Get unmarshals the document at (collection, id) into out.
func (s *SQLiteStore) Get(ctx context.Context, collection, id string, out any) error {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), out)
}

// Delete removes the document at (collection, id).
func (s *SQLiteStore) Delete(ctx context.Context, collection, id string) error {
	return s.writeRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM documents WHERE collection = ? AND id = ?`,
			collection, id,
		)
		return err
	})
}

// List returns every document in a collection, ordered by id.
func (s *SQLiteStore) List(ctx context.Context, collection string) ([]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM documents WHERE collection = ? ORDER BY id`,
		collection,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDocs(rows)
}

// Query returns documents whose top-level field equals value, ordered by id.
func (s *SQLiteStore) Query(ctx context.Context, collection, field string, value any) ([]json.RawMessage, error) {
	if !validField(field) {
		return nil, fmt.Errorf("invalid field name %q", field)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM documents
		 WHERE collection = ? AND json_extract(data, ?) = ?
		 ORDER BY id`,
		collection, "$."+field, value,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDocs(rows)
}

// Increment atomically adds delta to an integer field inside the document,
// creating {field: delta} when the document is missing. The arithmetic runs
// inside the store, so concurrent increments never lose updates.
func (s *SQLiteStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	if !validField(field) {
		return fmt.Errorf("invalid field name %q", field)
	}
	path := "$." + field

	var n int64
	err := s.writeRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE documents
			SET data = json_set(data, ?, COALESCE(json_extract(data, ?), 0) + ?),
			    updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')
			WHERE collection = ? AND id = ?`,
			path, path, delta, collection, id,
		)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	// Upsert-or-create: seed the counter document on first touch. A racing
	// creator wins the insert and we fold our delta into the existing row.
	err = s.Create(ctx, collection, id, map[string]int64{field: delta})
	if err == ErrExists {
		return s.Increment(ctx, collection, id, field, delta)
	}
	return err
}

// scanDocs drains a data-column result set into raw JSON documents.
func scanDocs(rows *sql.Rows) ([]json.RawMessage, error) {
	var docs []json.RawMessage
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		docs = append(docs, json.RawMessage(data))
	}
	return docs, rows.Err()
}

var fieldRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validField(field string) bool {
	return fieldRe.MatchString(field)
}

// writeRetry runs a write, retrying briefly when another connection held
// the write lock past the connection's busy timeout. Any other error is
// returned without further attempts.
func (s *SQLiteStore) writeRetry(ctx context.Context, fn func() error) error {
	var final error
	util.Retry(ctx, 3, 25*time.Millisecond, func() error {
		final = fn()
		if final != nil && isBusyErr(final) {
			return final
		}
		return nil
	})
	return final
}

// isBusyErr reports whether err is SQLITE_BUSY lock contention.
func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "sqlite_busy") || strings.Contains(msg, "database is locked")
}

// isUniqueErr reports whether err is a SQLite primary-key violation.
func isUniqueErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "constraint failed")
}
