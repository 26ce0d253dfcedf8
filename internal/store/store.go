package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Driver names a supported database backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// ParseDriver maps common aliases to a Driver.
func ParseDriver(name string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "postgres", "postgresql", "pg", "pgx":
		return DriverPostgres, nil
	}
	return "", fmt.Errorf("unsupported database driver: %s", name)
}

type Store struct {
	db     *sql.DB
	driver Driver
}

// New opens an SQLite database at dbPath.
func New(dbPath string) (*Store, error) {
	return Open(DriverSQLite, dbPath)
}

// Open opens a database with the given driver and ensures the schema exists.
// For SQLite dsn is a file path; for Postgres a connection URL.
func Open(driver Driver, dsn string) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		db, err = sql.Open("sqlite", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
		if err == nil && strings.Contains(dsn, ":memory:") {
			// Every connection to :memory: is a separate database.
			db.SetMaxOpenConns(1)
		}
	case DriverPostgres:
		db, err = sql.Open("pgx", dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the backend in use.
func (s *Store) Driver() Driver { return s.driver }

func (s *Store) migrate() error {
	schema := schemaSQLite
	if s.driver == DriverPostgres {
		schema = schemaPostgres
	}
	_, err := s.db.Exec(schema)
	return err
}

const schemaSQLite = `
	CREATE TABLE IF NOT EXISTS results (
		id TEXT PRIMARY KEY,
		topic TEXT NOT NULL DEFAULT '',
		score INTEGER NOT NULL,
		total INTEGER NOT NULL,
		correct INTEGER NOT NULL,
		is_ai_quiz INTEGER NOT NULL DEFAULT 0,
		summary_json TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_results_topic ON results(topic);

	CREATE TABLE IF NOT EXISTS usage_daily (
		day TEXT PRIMARY KEY,
		requests INTEGER NOT NULL DEFAULT 0,
		tokens INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS generated_sets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		topic_key TEXT NOT NULL,
		topic TEXT NOT NULL,
		difficulty INTEGER NOT NULL,
		generated INTEGER NOT NULL,
		questions_json TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_generated_sets_topic ON generated_sets(topic_key, difficulty);
	`

const schemaPostgres = `
	CREATE TABLE IF NOT EXISTS results (
		id TEXT PRIMARY KEY,
		topic TEXT NOT NULL DEFAULT '',
		score INTEGER NOT NULL,
		total INTEGER NOT NULL,
		correct INTEGER NOT NULL,
		is_ai_quiz INTEGER NOT NULL DEFAULT 0,
		summary_json TEXT NOT NULL,
		created_at BIGINT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_results_topic ON results(topic);

	CREATE TABLE IF NOT EXISTS usage_daily (
		day TEXT PRIMARY KEY,
		requests BIGINT NOT NULL DEFAULT 0,
		tokens BIGINT NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS generated_sets (
		id BIGSERIAL PRIMARY KEY,
		topic_key TEXT NOT NULL,
		topic TEXT NOT NULL,
		difficulty INTEGER NOT NULL,
		generated INTEGER NOT NULL,
		questions_json TEXT NOT NULL,
		created_at BIGINT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_generated_sets_topic ON generated_sets(topic_key, difficulty);
	`

// rebind rewrites ? placeholders to $n for Postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
