package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
)

// DatabaseFile is the SQLite file created inside the data directory.
const DatabaseFile = "learning_profile.db"

// DB represents the database connection with pooling
type DB struct {
	*sql.DB
	pool     *ConnectionPool
	prepared map[string]*sql.Stmt
	mutex    sync.RWMutex
}

// ConnectionPool manages database connection pooling
type ConnectionPool struct {
	db           *sql.DB
	maxOpenConns int
	maxIdleConns int
	maxLifetime  time.Duration
}

// NewConnectionPool applies pool limits to db.
func NewConnectionPool(db *sql.DB, maxOpen, maxIdle int, maxLifetime time.Duration) *ConnectionPool {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	return &ConnectionPool{
		db:           db,
		maxOpenConns: maxOpen,
		maxIdleConns: maxIdle,
		maxLifetime:  maxLifetime,
	}
}

// GetStats returns connection pool statistics
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	stats := cp.db.Stats()

	return map[string]interface{}{
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": cp.maxOpenConns,
		"max_idle_connections": cp.maxIdleConns,
		"max_lifetime_seconds": cp.maxLifetime.Seconds(),
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	}
}

// NewDB opens (creating if needed) the SQLite database under dataDir,
// runs migrations and prepares the repository statements.
func NewDB(ctx context.Context, dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pool := NewConnectionPool(db, 10, 5, 5*time.Minute)

	database := &DB{
		DB:       db,
		pool:     pool,
		prepared: make(map[string]*sql.Stmt),
	}

	if err := database.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := database.initPreparedStatements(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize prepared statements: %w", err)
	}

	slog.Info("Database initialized",
		"path", dbPath,
		"max_open_conns", pool.maxOpenConns,
		"max_idle_conns", pool.maxIdleConns)

	return database, nil
}

// Timestamps are stored as unix nanoseconds so range deletes compare numerically.
func (db *DB) migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS assessments (
			id TEXT PRIMARY KEY,
			child_id TEXT NOT NULL,
			respondent_id TEXT NOT NULL DEFAULT '',
			respondent_type TEXT NOT NULL DEFAULT '',
			quiz_type TEXT NOT NULL DEFAULT '',
			age_group TEXT NOT NULL DEFAULT '',
			responses TEXT NOT NULL, -- JSON object keyed by question id
			scores TEXT NOT NULL, -- JSON score vector
			submitted_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS profile_snapshots (
			id TEXT PRIMARY KEY,
			child_id TEXT NOT NULL,
			scores TEXT NOT NULL,
			insights TEXT NOT NULL,
			report TEXT NOT NULL,
			assessment_count INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_assessments_child ON assessments(child_id, submitted_at)`,
		`CREATE INDEX IF NOT EXISTS idx_assessments_submitted ON assessments(submitted_at)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_child ON profile_snapshots(child_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_created ON profile_snapshots(created_at)`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

const (
	stmtInsertAssessment   = "insert_assessment"
	stmtListAssessments    = "list_assessments"
	stmtInsertSnapshot     = "insert_snapshot"
	stmtLatestSnapshot     = "latest_snapshot"
	stmtDeleteAssessments  = "delete_assessments"
	stmtDeleteSnapshots    = "delete_snapshots"
	stmtPurgeAssessments   = "purge_assessments"
	stmtPurgeSnapshots     = "purge_snapshots"
	stmtCountChildren      = "count_children"
	stmtCountAssessmentAll = "count_assessments"
)

func (db *DB) initPreparedStatements(ctx context.Context) error {
	statements := map[string]string{
		stmtInsertAssessment: `INSERT INTO assessments (
			id, child_id, respondent_id, respondent_type, quiz_type, age_group,
			responses, scores, submitted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,

		stmtListAssessments: `SELECT id, child_id, respondent_id, respondent_type, quiz_type, age_group,
			responses, scores, submitted_at
			FROM assessments WHERE child_id = ? ORDER BY submitted_at ASC, id ASC`,

		stmtInsertSnapshot: `INSERT INTO profile_snapshots (
			id, child_id, scores, insights, report, assessment_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,

		stmtLatestSnapshot: `SELECT id, child_id, scores, insights, report, assessment_count, created_at
			FROM profile_snapshots WHERE child_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`,

		stmtDeleteAssessments: `DELETE FROM assessments WHERE child_id = ?`,
		stmtDeleteSnapshots:   `DELETE FROM profile_snapshots WHERE child_id = ?`,
		stmtPurgeAssessments:  `DELETE FROM assessments WHERE submitted_at < ?`,
		stmtPurgeSnapshots:    `DELETE FROM profile_snapshots WHERE created_at < ?`,

		stmtCountChildren:      `SELECT COUNT(DISTINCT child_id) FROM assessments`,
		stmtCountAssessmentAll: `SELECT COUNT(*) FROM assessments`,
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, query := range statements {
		stmt, err := db.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %w", name, err)
		}
		db.prepared[name] = stmt

		slog.Debug("Prepared statement initialized", "name", name)
	}

	return nil
}

// GetPreparedStatement retrieves a prepared statement
func (db *DB) GetPreparedStatement(name string) (*sql.Stmt, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	stmt, exists := db.prepared[name]
	if !exists {
		return nil, fmt.Errorf("prepared statement %s not found", name)
	}

	return stmt, nil
}

// GetPoolStats returns database connection pool statistics
func (db *DB) GetPoolStats() map[string]interface{} {
	return db.pool.GetStats()
}

// Close closes the prepared statements and the connection.
func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, stmt := range db.prepared {
		if err := stmt.Close(); err != nil {
			slog.Warn("Failed to close prepared statement", "name", name, "error", err)
		}
	}
	db.prepared = make(map[string]*sql.Stmt)

	return db.DB.Close()
}

// IsTransient reports whether err is a lock or busy condition that is
// worth retrying.
func IsTransient(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}
