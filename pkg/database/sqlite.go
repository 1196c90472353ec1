package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/latoulicious/Hokko/pkg/common"
)

// Database is the SQLite store behind the resolve cache
type Database struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDatabase opens the database described by config and creates its tables
func NewDatabase(config *Config, logger *zap.Logger) (*Database, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", buildConnectionString(config))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetMaxIdleConns(config.MaxConnections)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectionTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Initialize the database with required tables
	if err := initDatabase(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logger.Info("Resolve cache opened", zap.String("path", config.DatabasePath))
	return &Database{db: db, logger: logger.Named("database")}, nil
}

func buildConnectionString(config *Config) string {
	connStr := "file:" + config.DatabasePath + "?"

	if config.WALMode {
		connStr += "_journal_mode=WAL&"
	}

	connStr += fmt.Sprintf("_synchronous=%s&", config.SynchronousMode)
	connStr += "_busy_timeout=5000"

	return connStr
}

// initDatabase creates the necessary tables
func initDatabase(ctx context.Context, db *sql.DB) error {
	createResolveTable := `
	CREATE TABLE IF NOT EXISTS resolve_cache (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query TEXT UNIQUE NOT NULL,
		load_type TEXT NOT NULL,
		result_data TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);
	`

	createIndexes := `
	CREATE INDEX IF NOT EXISTS idx_resolve_cache_query ON resolve_cache(query);
	CREATE INDEX IF NOT EXISTS idx_resolve_cache_expires ON resolve_cache(expires_at);
	`

	for _, query := range []string{createResolveTable, createIndexes} {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	if d.db == nil {
		return ErrDatabaseNotConnected
	}
	return d.db.Close()
}

// CacheResolve caches a resolve result for ttl
func (d *Database) CacheResolve(ctx context.Context, query string, result *common.LoadResult, ttl time.Duration) error {
	if result == nil {
		return errors.New("nil resolve result")
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal resolve result: %w", err)
	}

	now := time.Now()
	sqlQuery := `
	INSERT OR REPLACE INTO resolve_cache (query, load_type, result_data, created_at, expires_at)
	VALUES (?, ?, ?, ?, ?)
	`

	_, err = d.db.ExecContext(ctx, sqlQuery, normalizeQuery(query), string(result.Type), string(data),
		now.UnixMilli(), now.Add(ttl).UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to cache resolve result: %w", err)
	}
	return nil
}

// GetCachedResolve retrieves a cached resolve result. A miss returns nil, nil.
func (d *Database) GetCachedResolve(ctx context.Context, query string) (*common.LoadResult, error) {
	sqlQuery := `
	SELECT result_data FROM resolve_cache
	WHERE query = ? AND expires_at > ?
	`

	var data string
	err := d.db.QueryRowContext(ctx, sqlQuery, normalizeQuery(query), time.Now().UnixMilli()).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached resolve result: %w", err)
	}

	var result common.LoadResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached resolve result: %w", err)
	}

	return &result, nil
}

// CleanExpiredCache removes expired entries and returns how many were deleted
func (d *Database) CleanExpiredCache(ctx context.Context) (int64, error) {
	res, err := d.db.ExecContext(ctx, "DELETE FROM resolve_cache WHERE expires_at <= ?", time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to clean expired cache: %w", err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleaned entries: %w", err)
	}

	d.logger.Debug("Cleaned expired resolve cache entries", zap.Int64("removed", removed))
	return removed, nil
}

// GetCacheStats returns cache statistics
func (d *Database) GetCacheStats(ctx context.Context) (*CacheStats, error) {
	query := `
	SELECT
		COALESCE(SUM(CASE WHEN expires_at > ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN expires_at <= ? THEN 1 ELSE 0 END), 0)
	FROM resolve_cache
	`

	now := time.Now().UnixMilli()
	var stats CacheStats
	if err := d.db.QueryRowContext(ctx, query, now, now).Scan(&stats.Live, &stats.Expired); err != nil {
		return nil, fmt.Errorf("failed to get cache stats: %w", err)
	}

	return &stats, nil
}

// Queries are case sensitive since video ids in URLs are
func normalizeQuery(query string) string {
	return strings.TrimSpace(query)
}
