package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"

	"studiobook/internal/config"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

// DB wraps the connection pool together with the SQL dialect in use.
type DB struct {
	*sqlx.DB
	driver  string
	path    string
	timeout time.Duration
	logger  *zerolog.Logger
}

// NewDB opens the configured store, checks connectivity and brings the
// schema up to date.
func NewDB(cfg config.DatabaseConfig, queryTimeout time.Duration, logger *zerolog.Logger) (*DB, error) {
	var dsn string
	switch cfg.Driver {
	case DriverSQLite, "":
		cfg.Driver = DriverSQLite
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		// WAL, busy timeout, enforced foreign keys and write-locking transactions.
		dsn = cfg.Path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	case DriverPostgres:
		dsn = cfg.DSN
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	conn, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	conn.SetMaxOpenConns(maxOpen)
	conn.SetMaxIdleConns(maxOpen / 2)
	conn.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: conn, driver: cfg.Driver, path: cfg.Path, timeout: queryTimeout, logger: logger}
	if err := db.Migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info().Str("driver", cfg.Driver).Msg("Database initialized")
	return db, nil
}

// Wrap adopts an existing connection without touching the schema.
func Wrap(conn *sql.DB, driver string, logger *zerolog.Logger) *DB {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &DB{DB: sqlx.NewDb(conn, driver), driver: driver, logger: logger}
}

// Driver returns the SQL dialect name.
func (db *DB) Driver() string {
	return db.driver
}

// Path returns the SQLite file path, empty for other drivers.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if db.timeout <= 0 {
		return parent, func() {}
	}
	return context.WithTimeout(parent, db.timeout)
}

// Migrate applies the schema for the active dialect. Every statement is
// idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	if db.driver == DriverPostgres {
		return db.runMigrations(ctx, postgresMigrations, "migrations/postgres")
	}
	return db.createTables(ctx)
}

func (db *DB) createTables(ctx context.Context) error {
	for _, query := range sqliteSchema {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(query), err)
		}
	}
	return nil
}

// runMigrations executes every *.up.sql file of dir in name order.
func (db *DB) runMigrations(ctx context.Context, fsys fs.FS, dir string) error {
	files, err := fs.Glob(fsys, dir+"/*.up.sql")
	if err != nil {
		return fmt.Errorf("failed to glob migrations: %w", err)
	}
	sort.Strings(files)

	for _, file := range files {
		body, err := fs.ReadFile(fsys, file)
		if err != nil {
			return fmt.Errorf("could not read migration %q: %w", file, err)
		}
		if strings.TrimSpace(string(body)) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("error executing migration %q: %w", file, err)
		}
		db.logger.Debug().Str("file", file).Msg("migration applied")
	}
	return nil
}

func firstLine(query string) string {
	query = strings.TrimSpace(query)
	if i := strings.IndexByte(query, '\n'); i >= 0 {
		return query[:i]
	}
	return query
}
