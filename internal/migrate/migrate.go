// Package migrate applies the embedded SQL migrations of dx-authd.
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/ieazie/doc-extract/migrations"
)

// Migrator runs migrations against one database.
type Migrator struct {
	db *sql.DB
	p  *goose.Provider
}

// Open connects to dsn lazily and loads the embedded migrations.
func Open(dsn string) (*Migrator, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	p, err := NewProvider(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Migrator{db: db, p: p}, nil
}

// NewProvider builds a goose provider over the embedded migrations.
func NewProvider(db *sql.DB) (*goose.Provider, error) {
	p, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	return p, nil
}

// Close releases the connection.
func (m *Migrator) Close() error { return m.db.Close() }

// Up applies all pending migrations and returns the number applied.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	res, err := m.p.Up(ctx)
	if err != nil {
		return len(res), fmt.Errorf("migrate up: %w", err)
	}
	return len(res), nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) error {
	if _, err := m.p.Down(ctx); err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// Version returns the current schema version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	v, err := m.p.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("schema version: %w", err)
	}
	return v, nil
}

// Up runs all pending migrations for dsn.
func Up(ctx context.Context, dsn string) (int, error) {
	m, err := Open(dsn)
	if err != nil {
		return 0, err
	}
	defer m.Close()
	return m.Up(ctx)
}
