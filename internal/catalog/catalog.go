// Package catalog is the relational store backing the archive: nodes,
// blobs, file-links, edges and tags (spec.md §4.4). It is a thin sqlx
// wrapper over SQLite in WAL mode with foreign keys always enforced,
// grounded on database/postgres.go's fail-fast-Ping-on-open shape and
// repository/files/file_repository.go's NamedExecContext query style,
// ported from Postgres to SQLite per spec.md §6's db.sqlite layout.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dlfi/archive/internal/archiveerr"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// Catalog wraps a single-writer SQLite connection. All write operations
// take wmu, matching spec.md §5's single-writer, single-process model;
// reads are allowed to run concurrently alongside it (WAL mode).
type Catalog struct {
	db     *sqlx.DB
	logger *logrus.Logger
	wmu    sync.Mutex

	// generation increments on every mutation that can invalidate the
	// autocomplete cache (ingest, config changes, node creation). See
	// SPEC_FULL.md §5.9.
	generation int64
}

// Open connects to the SQLite database at path, creating it and its
// schema if absent, and fails fast if the connection cannot be
// established.
func Open(path string, logger *logrus.Logger) (*Catalog, error) {
	dsn := path + "?_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL"
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, &archiveerr.IOError{Op: "open catalog", Err: err}
	}
	db.SetMaxOpenConns(1) // single-writer model; WAL still allows readers.

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &archiveerr.IOError{Op: "ping catalog", Err: err}
	}

	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		db.Close()
		return nil, &archiveerr.IOError{Op: "apply catalog schema", Err: err}
	}

	c := &Catalog{db: db, logger: logger}
	if err := c.ensureSchemaVersion(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return c, nil
}

func (c *Catalog) ensureSchemaVersion(ctx context.Context) error {
	var value string
	err := c.db.GetContext(ctx, &value, `SELECT value FROM meta WHERE key = 'schema_version'`)
	switch {
	case err == sql.ErrNoRows:
		_, err := c.db.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES ('schema_version', ?)`, strconv.Itoa(schemaVersion))
		if err != nil {
			return &archiveerr.IOError{Op: "stamp schema version", Err: err}
		}
		return nil
	case err != nil:
		return &archiveerr.IOError{Op: "read schema version", Err: err}
	}

	current, convErr := strconv.Atoi(value)
	if convErr != nil {
		return &archiveerr.ConfigError{Reason: "corrupt schema_version in catalog"}
	}
	if current == schemaVersion {
		return nil
	}
	if current > schemaVersion {
		return &archiveerr.ConfigError{Reason: fmt.Sprintf("catalog schema version %d is newer than supported %d", current, schemaVersion)}
	}
	if current != schemaVersion-1 {
		return &archiveerr.ConfigError{Reason: fmt.Sprintf("cannot migrate catalog from schema version %d (only a single forward bump is supported)", current)}
	}
	// A single forward bump is a no-op on the row shape today; only the
	// version stamp advances.
	_, err = c.db.ExecContext(ctx, `UPDATE meta SET value = ? WHERE key = 'schema_version'`, strconv.Itoa(schemaVersion))
	if err != nil {
		return &archiveerr.IOError{Op: "bump schema version", Err: err}
	}
	c.logger.WithFields(logrus.Fields{"from": current, "to": schemaVersion}).Info("catalog schema migrated forward")
	return nil
}

// Close releases the underlying database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Generation returns the current cache-invalidation counter.
func (c *Catalog) Generation() int64 {
	return atomic.LoadInt64(&c.generation)
}

func (c *Catalog) bumpGeneration() {
	atomic.AddInt64(&c.generation, 1)
}

// txFunc receives a transaction-scoped Catalog-like handle; see
// WithTx below. It holds the write lock for its full duration,
// matching spec.md §5's synchronous, single-writer semantics.
type txFunc func(tx *sqlx.Tx) error

// WithTx runs fn inside one transaction guarded by the catalog's write
// mutex, committing on success and rolling back on error or panic.
// Every archive-level operation that must be atomic (ingest, config
// transactions, node deletion) goes through this.
func (c *Catalog) WithTx(ctx context.Context, fn txFunc) (err error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return &archiveerr.IOError{Op: "begin transaction", Err: err}
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return &archiveerr.IOError{Op: "commit transaction", Err: err}
	}
	c.bumpGeneration()
	return nil
}

// DB exposes the underlying *sqlx.DB for read-only query execution
// (the query engine compiles directly to SQL against it).
func (c *Catalog) DB() *sqlx.DB { return c.db }
