package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/vonshlovens/roomboard/internal/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

// DB wraps the database connection pool
type DB struct {
	Pool   *pgxpool.Pool
	config *config.DatabaseConfig
	Schema string
}

// New creates a new database connection pool
func New(ctx context.Context, cfg *config.DatabaseConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("connected to database",
		"host", cfg.Host,
		"database", cfg.Database,
		"schema", cfg.Schema)

	return &DB{
		Pool:   pool,
		config: cfg,
		Schema: cfg.Schema,
	}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		slog.Info("database connection closed")
	}
}

// EnsureSchema creates the board's schema if it doesn't exist
func (db *DB) EnsureSchema(ctx context.Context) error {
	if db.Schema == "" {
		return nil
	}

	_, err := db.Pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", db.Schema))
	if err != nil {
		return fmt.Errorf("failed to create schema %s: %w", db.Schema, err)
	}

	slog.Info("schema ready", "schema", db.Schema)
	return nil
}

// goose opens a database/sql handle for goose with the embedded migrations
// and a schema-specific version table.
func (db *DB) goose() (*sql.DB, error) {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("failed to set dialect: %w", err)
	}

	stdDB, err := sql.Open("pgx", db.config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open stdlib connection: %w", err)
	}

	if db.Schema != "" {
		goose.SetTableName(db.Schema + ".goose_db_version")
	}
	return stdDB, nil
}

// RunMigrations executes all pending database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}

	stdDB, err := db.goose()
	if err != nil {
		return err
	}
	defer stdDB.Close()

	if err := goose.UpContext(ctx, stdDB, migrationsDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("migrations completed successfully", "schema", db.Schema)
	return nil
}

// MigrationStatus prints the current migration status
func (db *DB) MigrationStatus(ctx context.Context) error {
	stdDB, err := db.goose()
	if err != nil {
		return err
	}
	defer stdDB.Close()

	return goose.StatusContext(ctx, stdDB, migrationsDir)
}

// GetStatus returns counts of the stored board
func (db *DB) GetStatus(ctx context.Context) (*BoardStatus, error) {
	status := &BoardStatus{
		Connected: true,
		ItemsBy:   make(map[string]int),
	}

	rows, err := db.Pool.Query(ctx, "SELECT status, COUNT(*) FROM board_items GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count items: %w", err)
	}
	for rows.Next() {
		var s string
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan item count: %w", err)
		}
		status.ItemsBy[s] = n
		status.TotalItems += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to count items: %w", err)
	}

	err = db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM board_items WHERE type = 'room'").Scan(&status.Rooms)
	if err != nil {
		return nil, fmt.Errorf("failed to count rooms: %w", err)
	}

	err = db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM board_folders").Scan(&status.TotalFolders)
	if err != nil {
		return nil, fmt.Errorf("failed to count folders: %w", err)
	}

	var lastSync *time.Time
	err = db.Pool.QueryRow(ctx, `
		SELECT MAX(synced_at) FROM (
			SELECT synced_at FROM board_items
			UNION ALL
			SELECT synced_at FROM board_folders
		) t
	`).Scan(&lastSync)
	if err != nil {
		slog.Warn("failed to get last sync time", "error", err)
	}
	status.LastSyncTime = lastSync

	return status, nil
}
