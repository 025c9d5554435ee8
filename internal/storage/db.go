package storage

import (
	"embed"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/huandu/go-sqlbuilder"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB is the reference-data store: recipes, prices, quotes, material mappings
// and already imported remisiones. It only reads during validation.
type DB struct {
	conn   *sqlx.DB
	driver string
	flavor sqlbuilder.Flavor
}

// Open connects with driver "sqlite" (dsn is a file path) or "pgx" (dsn is a
// postgres connection string).
func Open(driver, dsn string) (*DB, error) {
	flavor := sqlbuilder.SQLite
	switch driver {
	case "sqlite":
		if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, err
			}
		}
	case "pgx":
		flavor = sqlbuilder.PostgreSQL
	default:
		return nil, errors.Errorf("unsupported driver: %s", driver)
	}

	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", driver)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, errors.Wrapf(err, "ping %s", driver)
	}

	if driver == "sqlite" {
		if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
			_ = conn.Close()
			return nil, err
		}
		if _, err := conn.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	return &DB{conn: conn, driver: driver, flavor: flavor}, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) Driver() string {
	return d.driver
}

// Migrate applies the bundled reference schema. Only SQLite stores are
// migrated here; a hosted postgres schema is owned elsewhere.
func (d *DB) Migrate() error {
	if d.driver != "sqlite" {
		return errors.Errorf("bundled migrations target sqlite, not %s", d.driver)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return errors.Wrap(err, "load embedded migrations")
	}
	drv, err := sqlitemigrate.WithInstance(d.conn.DB, &sqlitemigrate.Config{})
	if err != nil {
		return errors.Wrap(err, "init migration driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		return errors.Wrap(err, "init migrator")
	}
	// m.Close would close the shared connection pool.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "apply migrations")
	}
	return nil
}

func toArgs(values []string) []interface{} {
	out := make([]interface{}, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}
