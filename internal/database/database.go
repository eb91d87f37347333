// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/marekvk/fotofable/internal/config"
	"github.com/marekvk/fotofable/internal/logging"
)

// DB wraps the DuckDB connection holding the geographic reference data.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig

	// Prepared statement caching for the hot radius queries.
	stmtCache   map[string]*sql.Stmt
	stmtCacheMu sync.RWMutex

	// Per-country write locks so concurrent imports of different countries
	// can proceed while same-country UPSERT batches stay serialized.
	countryLocks sync.Map
}

// New opens (or creates) the database file and initializes the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "512MB"
	}

	// Ensure the parent directory exists for the database file.
	// 0750 per gosec G301.
	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	// Auto-install/auto-load stay disabled: the schema needs no extensions
	// (distance work goes through the haversine_distance macro) and leaving
	// them on can hang startup in restricted network environments.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, maxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{
		conn:      conn,
		cfg:       cfg,
		stmtCache: make(map[string]*sql.Stmt),
	}

	// DuckDB is an embedded single-writer engine; a small pool avoids
	// starving the import transaction while the resolver reads.
	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(0)

	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return db, nil
}

// Conn returns the underlying SQL connection for packages that need direct
// access (the importer runs its batches on it).
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.cfg.Path
}

// Ping checks whether the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// Close closes prepared statements and the connection. A CHECKPOINT is
// forced first so the WAL is flushed before shutdown.
func (db *DB) Close() error {
	db.stmtCacheMu.Lock()
	for _, stmt := range db.stmtCache {
		if stmt != nil {
			closeWithLog(stmt, "prepared statement")
		}
	}
	db.stmtCache = make(map[string]*sql.Stmt)
	db.stmtCacheMu.Unlock()

	if db.conn != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := db.Checkpoint(ctx); err != nil {
			logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
		}
		cancel()

		return db.conn.Close()
	}
	return nil
}

// Checkpoint forces a WAL checkpoint for a consistent on-disk state.
func (db *DB) Checkpoint(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		return fmt.Errorf("failed to checkpoint: %w", err)
	}
	return nil
}

// initialize creates the macro, tables, and indexes.
func (db *DB) initialize() error {
	if err := db.createMacros(); err != nil {
		return err
	}
	if err := db.createTables(); err != nil {
		return err
	}
	return db.createIndexes()
}

// getStmt returns a cached prepared statement, preparing it on first use.
func (db *DB) getStmt(ctx context.Context, query string) (*sql.Stmt, error) {
	db.stmtCacheMu.RLock()
	stmt, ok := db.stmtCache[query]
	db.stmtCacheMu.RUnlock()
	if ok {
		return stmt, nil
	}

	db.stmtCacheMu.Lock()
	defer db.stmtCacheMu.Unlock()
	if stmt, ok = db.stmtCache[query]; ok {
		return stmt, nil
	}

	stmt, err := db.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	db.stmtCache[query] = stmt
	return stmt, nil
}

// acquireCountryLock serializes writes for one country code.
func (db *DB) acquireCountryLock(code string) *sync.Mutex {
	v, _ := db.countryLocks.LoadOrStore(code, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu
}

// ensureContext returns ctx, or a 30-second default when nil.
func ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx != nil {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}

func closeWithLog(c io.Closer, what string) {
	if err := c.Close(); err != nil {
		logging.Debug().Err(err).Str("resource", what).Msg("Failed to close resource")
	}
}
