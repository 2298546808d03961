package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/veesix-networks/cidrd/pkg/opdb"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "create opdb directory")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}

	// A single connection keeps writes serialized inside the driver as well.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "pragma %s", p)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS opdb (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value BLOB NOT NULL,
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
			PRIMARY KEY (namespace, key)
		)
	`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create opdb table")
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_opdb_namespace ON opdb(namespace)`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create opdb index")
	}

	return &Store{db: db}, nil
}

func (s *Store) Put(ctx context.Context, namespace, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO opdb (namespace, key, value, updated_at)
		VALUES (?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT(namespace, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, namespace, key, value)
	return errors.Wrapf(err, "put %s/%s", namespace, key)
}

func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM opdb WHERE namespace = ? AND key = ?
	`, namespace, key)
	return errors.Wrapf(err, "delete %s/%s", namespace, key)
}

func (s *Store) Load(ctx context.Context, namespace string, fn opdb.LoadFunc) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value FROM opdb WHERE namespace = ? ORDER BY key
	`, namespace)
	if err != nil {
		return errors.Wrapf(err, "load %s", namespace)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return errors.Wrapf(err, "scan %s", namespace)
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return errors.Wrapf(rows.Err(), "load %s", namespace)
}

func (s *Store) Clear(ctx context.Context, namespace string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM opdb WHERE namespace = ?
	`, namespace)
	return errors.Wrapf(err, "clear %s", namespace)
}

func (s *Store) Close() error {
	return s.db.Close()
}

var _ opdb.Store = (*Store)(nil)
