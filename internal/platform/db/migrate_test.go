package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"

	"github.com/surgicast/surgicast/migrations"
)

func newMockDB(t *testing.T) *sql.DB {
	t.Helper()
	sqlDB, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return sqlDB
}

func stubGoose(t *testing.T, up func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error, version int64) {
	t.Helper()
	origUp, origVersion := gooseUp, gooseVersion
	gooseUp = up
	gooseVersion = func(ctx context.Context, db *sql.DB) (int64, error) { return version, nil }
	t.Cleanup(func() {
		gooseUp = origUp
		gooseVersion = origVersion
	})
}

func TestMigrator_Up(t *testing.T) {
	sqlDB := newMockDB(t)
	stubGoose(t, func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		return nil
	}, 4)

	version, err := NewMigrator(sqlDB, migrations.FS).Up(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != 4 {
		t.Errorf("expected version 4, got %d", version)
	}
}

func TestMigrator_UpError(t *testing.T) {
	sqlDB := newMockDB(t)
	stubGoose(t, func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}, 0)

	_, err := NewMigrator(sqlDB, migrations.FS).Up(context.Background())
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
}

func TestFiles_EmbeddedMigrations(t *testing.T) {
	files, err := Files(migrations.FS)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		"00001_profiles.sql",
		"00002_health_records.sql",
		"00003_surgical_cases.sql",
		"00004_booking_velocity.sql",
	}
	if len(files) != len(want) {
		t.Fatalf("expected %d migrations, got %v", len(want), files)
	}
	for i, name := range want {
		if files[i] != name {
			t.Errorf("migration %d: expected %s, got %s", i, name, files[i])
		}
	}
}

func TestEmbeddedMigrations_HaveGooseAnnotations(t *testing.T) {
	files, err := Files(migrations.FS)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, name := range files {
		body, err := migrations.FS.ReadFile(name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !strings.Contains(string(body), "-- +goose Up") || !strings.Contains(string(body), "-- +goose Down") {
			t.Errorf("%s is missing goose Up/Down annotations", name)
		}
	}
}
