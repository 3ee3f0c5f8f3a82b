package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Seams over goose's package-level API so the migrator can be exercised
// without a live database.
var (
	gooseUp      = goose.UpContext
	gooseDown    = goose.DownContext
	gooseStatus  = goose.StatusContext
	gooseVersion = goose.GetDBVersionContext
)

// Migrator applies the embedded SQL migrations with goose.
type Migrator struct {
	db  *sql.DB
	fs  fs.FS
	dir string
}

// NewMigrator builds a migrator over migrations stored at the root of fsys.
func NewMigrator(db *sql.DB, fsys fs.FS) *Migrator {
	return &Migrator{db: db, fs: fsys, dir: "."}
}

// OpenSQL opens a database/sql handle through the pgx driver. goose needs
// database/sql; the rest of the service uses pgxpool.
func OpenSQL(databaseURL string) (*sql.DB, error) {
	sqlDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return sqlDB, nil
}

func (m *Migrator) prepare() error {
	goose.SetBaseFS(m.fs)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	return nil
}

// Up applies all pending migrations and returns the resulting version.
func (m *Migrator) Up(ctx context.Context) (int64, error) {
	if err := m.prepare(); err != nil {
		return 0, err
	}
	if err := gooseUp(ctx, m.db, m.dir); err != nil {
		return 0, fmt.Errorf("migrate up: %w", err)
	}
	return gooseVersion(ctx, m.db)
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) (int64, error) {
	if err := m.prepare(); err != nil {
		return 0, err
	}
	if err := gooseDown(ctx, m.db, m.dir); err != nil {
		return 0, fmt.Errorf("migrate down: %w", err)
	}
	return gooseVersion(ctx, m.db)
}

// Status prints the applied/pending state of every migration via goose's logger.
func (m *Migrator) Status(ctx context.Context) error {
	if err := m.prepare(); err != nil {
		return err
	}
	if err := gooseStatus(ctx, m.db, m.dir); err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	return nil
}

// Files lists the migration files shipped in fsys, in apply order.
func Files(fsys fs.FS) ([]string, error) {
	return fs.Glob(fsys, "*.sql")
}
