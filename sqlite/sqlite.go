// Package sqlite implements the timebox store contracts
package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	txStdLib "github.com/Thiht/transactor/stdlib"
	"github.com/charmbracelet/log"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	sqlitelib "modernc.org/sqlite"

	"timebox"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open opens (and creates if absent) the database at path with foreign key
// enforcement on.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Migrate ensures the schema exists and the default user and settings rows
// are seeded. Safe to call on every startup.
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	drv, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Store bundles the per-entity repos into the timebox.Store contract.
type Store struct {
	*userRepo
	*taskRepo
	*sessionRepo
	*goalRepo
}

func NewStore(dbGetter txStdLib.DBGetter, logger log.Logger) *Store {
	return &Store{
		userRepo:    &userRepo{dbGetter: dbGetter, l: logger},
		taskRepo:    &taskRepo{dbGetter: dbGetter, l: logger},
		sessionRepo: &sessionRepo{dbGetter: dbGetter, l: logger},
		goalRepo:    &goalRepo{dbGetter: dbGetter, l: logger},
	}
}

type scannable interface {
	Scan(dest ...any) error
}

func parameters(n int) string {
	return "(" + strings.TrimSuffix(strings.Repeat("?, ", n), ", ") + ")"
}

// classify surfaces driver constraint failures as timebox.ErrConstraint;
// everything else passes through verbatim.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlitelib.Error
	if errors.As(err, &se) && se.Code()&0xff == 19 { // SQLITE_CONSTRAINT
		return fmt.Errorf("%w: %v", timebox.ErrConstraint, err)
	}
	return err
}
