package quotestore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// DeletePolicy decides what happens to quotes when their person is deleted.
type DeletePolicy string

const (
	// DeleteRestrict refuses to delete a person that still has quotes.
	DeleteRestrict DeletePolicy = "restrict"
	// DeleteCascade deletes the person's quotes along with them.
	DeleteCascade DeletePolicy = "cascade"
)

func (p DeletePolicy) Valid() bool {
	return p == DeleteRestrict || p == DeleteCascade
}

type Options struct {
	MaxOpenConns       int
	PersonDeletePolicy DeletePolicy
}

// Store persists quotes and persons.
type Store struct {
	db     *sqlx.DB
	driver string
	opts   Options
}

// Open connects to the database and creates the schema if needed.
func Open(driver, dsn string, opts Options) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("must set database_url")
	}
	if opts.PersonDeletePolicy == "" {
		opts.PersonDeletePolicy = DeleteRestrict
	}
	if !opts.PersonDeletePolicy.Valid() {
		return nil, fmt.Errorf("unknown person delete policy %q", opts.PersonDeletePolicy)
	}

	var schema string
	switch driver {
	case DriverPostgres:
		schema = postgresSchema
	case DriverSQLite:
		schema = sqliteSchema
		dsn = sqliteDSN(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q. must be one of 'postgres' or 'sqlite3'", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlx.Connect: %w", err)
	}

	if driver == DriverSQLite {
		// A single connection keeps the foreign_keys pragma and avoids
		// SQLITE_BUSY between writers.
		db.SetMaxOpenConns(1)
	} else if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("db.Exec schema: %w", err)
	}

	return &Store{
		db:     db,
		driver: driver,
		opts:   opts,
	}, nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn in a transaction, committing when fn returns nil.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on"
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS persons (
	id SERIAL PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS quotes (
	id SERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	person_id INTEGER NOT NULL REFERENCES persons(id)
);

CREATE INDEX IF NOT EXISTS quotes_person_id_idx ON quotes(person_id);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS persons (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS quotes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	person_id INTEGER NOT NULL REFERENCES persons(id)
);

CREATE INDEX IF NOT EXISTS quotes_person_id_idx ON quotes(person_id);
`
