package fragments

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	_ "modernc.org/sqlite"

	"github.com/conneroisu/pagesmith/internal/errors"
)

const fragmentsSchema = `
CREATE TABLE IF NOT EXISTS fragments (
    kind        TEXT     NOT NULL,
    id          TEXT     NOT NULL,
    body        TEXT     NOT NULL,
    updated_at  DATETIME NOT NULL,
    PRIMARY KEY (kind, id)
);`

// SQLStore keeps fragments in a SQLite table. It suits sites that share one
// component library across several working trees.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLStore opens (and if needed creates) the database at dsn.
func OpenSQLStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeStorage, "cannot open fragment database", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(fragmentsSchema); err != nil {
		_ = db.Close()
		return nil, errors.NewIOError(errors.ErrCodeStorage, "cannot create fragment schema", err)
	}
	return &SQLStore{db: db, now: time.Now}, nil
}

// Get reads a record.
func (s *SQLStore) Get(ctx context.Context, kind Kind, id string) (string, bool, error) {
	clean, err := checkID(id)
	if err != nil {
		return "", false, err
	}
	var body string
	err = s.db.QueryRowContext(ctx,
		"SELECT body FROM fragments WHERE kind = ? AND id = ?", string(kind), clean).Scan(&body)
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewIOError(errors.ErrCodeStorage, "cannot read fragment", err)
	}
	return body, true, nil
}

// Put inserts or replaces a record.
func (s *SQLStore) Put(ctx context.Context, kind Kind, id, body string) error {
	clean, err := checkID(id)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO fragments (kind, id, body, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(kind, id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		string(kind), clean, body, s.now().UTC())
	if err != nil {
		return errors.NewIOError(errors.ErrCodeStorage, "cannot write fragment", err)
	}
	return nil
}

// Delete removes a record.
func (s *SQLStore) Delete(ctx context.Context, kind Kind, id string) error {
	clean, err := checkID(id)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM fragments WHERE kind = ? AND id = ?", string(kind), clean); err != nil {
		return errors.NewIOError(errors.ErrCodeStorage, "cannot delete fragment", err)
	}
	return nil
}

// List returns every record of kind sorted by id.
func (s *SQLStore) List(ctx context.Context, kind Kind) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, body, updated_at FROM fragments WHERE kind = ? ORDER BY id", string(kind))
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeStorage, "cannot list fragments", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec := Record{Kind: kind}
		if err := rows.Scan(&rec.ID, &rec.Body, &rec.UpdatedAt); err != nil {
			return nil, errors.NewIOError(errors.ErrCodeStorage, "cannot scan fragment", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewIOError(errors.ErrCodeStorage, "cannot list fragments", err)
	}
	return records, nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
