// Package data persists scoring runs in sqlite or PostgreSQL.
package data

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DataFileName = "data.db"

	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
	migrationsDir  = "sql/migrations"
)

var (
	//go:embed sql/migrations/*.sql
	f embed.FS

	errDBNotInitialized = errors.New("database not initialized")
)

// IsPostgresDSN reports whether dsn points at a PostgreSQL server rather than a sqlite file.
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Init creates or upgrades the run history schema at dsn, a sqlite file path or a
// postgres:// connection string. It is safe to call on an existing database.
func Init(dsn string) error {
	if dsn == "" {
		return errors.New("database path not specified")
	}

	if !IsPostgresDSN(dsn) {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o700); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := GetDB(dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrate(db); err != nil {
		return fmt.Errorf("migrating database schema: %w", err)
	}
	return nil
}

// GetDB opens the database at dsn.
func GetDB(dsn string) (*sql.DB, error) {
	driver := driverSQLite
	if IsPostgresDSN(dsn) {
		driver = driverPostgres
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}

	// sqlite allows a single writer
	if driver == driverSQLite {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

type migration struct {
	version int
	name    string
}

func listMigrations() ([]migration, error) {
	entries, err := fs.ReadDir(f, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations: %w", err)
	}

	list := make([]migration, 0, len(entries))
	for _, e := range entries {
		prefix, _, ok := strings.Cut(e.Name(), "_")
		if !ok {
			return nil, fmt.Errorf("invalid migration name: %s", e.Name())
		}
		v, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("invalid migration version %s: %w", e.Name(), err)
		}
		list = append(list, migration{version: v, name: e.Name()})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].version < list[j].version })
	return list, nil
}

func migrate(db *sql.DB) error {
	const createVersion = `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at BIGINT NOT NULL
	)`
	if _, err := db.Exec(createVersion); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var current int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	list, err := listMigrations()
	if err != nil {
		return err
	}

	for _, m := range list {
		if m.version <= current {
			continue
		}
		b, err := f.ReadFile(path.Join(migrationsDir, m.name))
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", m.name, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %s: %w", m.name, err)
		}
		if _, err := tx.Exec(string(b)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("applying migration %s: %w", m.name, err)
		}
		insert := rebind(db, "INSERT INTO schema_version (version, applied_at) VALUES (?, ?)")
		if _, err := tx.Exec(insert, m.version, time.Now().UTC().Unix()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", m.name, err)
		}
		slog.Debug("migration applied", "version", m.version, "name", m.name)
	}

	return nil
}

func isPostgres(db *sql.DB) bool {
	_, ok := db.Driver().(*pq.Driver)
	return ok
}

// rebind converts ? placeholders to $n for postgres connections.
func rebind(db *sql.DB, query string) string {
	if !isPostgres(db) {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
