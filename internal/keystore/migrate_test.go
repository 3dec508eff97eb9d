package keystore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func writeMigration(t *testing.T, dir, name, sql string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(sql), 0o644); err != nil {
		t.Fatalf("failed to write migration file: %v", err)
	}
}

func openMigrationDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	return db
}

func TestMigrator_Apply(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeMigration(t, dir, "001_create_widgets.sql", "CREATE TABLE widgets (id INTEGER PRIMARY KEY);")
	writeMigration(t, dir, "002_create_gadgets.sql", "CREATE TABLE gadgets (id INTEGER PRIMARY KEY);")

	db := openMigrationDB(t)
	migrator := NewMigrator(db, dir)

	count, err := migrator.Apply(ctx)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if count != 2 {
		t.Errorf("want 2 applied migrations, got %d", count)
	}

	// テーブルが実際に作成されていること
	for _, table := range []string{"widgets", "gadgets"} {
		if !db.Migrator().HasTable(table) {
			t.Errorf("want table %s to exist", table)
		}
	}

	// 再実行では何も適用されないこと（冪等）
	count, err = migrator.Apply(ctx)
	if err != nil {
		t.Fatalf("second Apply failed: %v", err)
	}
	if count != 0 {
		t.Errorf("want 0 applied on second run, got %d", count)
	}
}

func TestMigrator_ApplyOrder(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	// 002は001のテーブルに依存する。バージョン順に適用されなければ失敗する。
	writeMigration(t, dir, "002_add_column.sql", "ALTER TABLE widgets ADD COLUMN name TEXT;")
	writeMigration(t, dir, "001_create_widgets.sql", "CREATE TABLE widgets (id INTEGER PRIMARY KEY);")

	migrator := NewMigrator(openMigrationDB(t), dir)
	count, err := migrator.Apply(ctx)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if count != 2 {
		t.Errorf("want 2 applied migrations, got %d", count)
	}
}

func TestMigrator_ApplyInvalidFileName(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "badname.sql", "CREATE TABLE widgets (id INTEGER PRIMARY KEY);")

	migrator := NewMigrator(openMigrationDB(t), dir)
	_, err := migrator.Apply(context.Background())
	if !errors.Is(err, ErrInvalidMigrationFile) {
		t.Errorf("want ErrInvalidMigrationFile, got %v", err)
	}
}

func TestMigrator_ApplyBrokenSQL(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeMigration(t, dir, "001_create_widgets.sql", "CREATE TABLE widgets (id INTEGER PRIMARY KEY);")
	writeMigration(t, dir, "002_broken.sql", "THIS IS NOT SQL;")

	migrator := NewMigrator(openMigrationDB(t), dir)
	count, err := migrator.Apply(ctx)
	if !errors.Is(err, ErrMigrationFailed) {
		t.Fatalf("want ErrMigrationFailed, got %v", err)
	}
	if count != 1 {
		t.Errorf("want 1 migration applied before failure, got %d", count)
	}
}

func TestMigrator_Status(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeMigration(t, dir, "001_create_widgets.sql", "CREATE TABLE widgets (id INTEGER PRIMARY KEY);")
	writeMigration(t, dir, "002_create_gadgets.sql", "CREATE TABLE gadgets (id INTEGER PRIMARY KEY);")

	migrator := NewMigrator(openMigrationDB(t), dir)

	statuses, err := migrator.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	for _, migration := range statuses {
		if migration.Status != MigrationStatusPending {
			t.Errorf("want pending before apply, got %s for %s", migration.Status, migration.Version)
		}
	}

	if _, err := migrator.Apply(ctx); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	statuses, err = migrator.Status(ctx)
	if err != nil {
		t.Fatalf("Status after apply failed: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("want 2 migrations, got %d", len(statuses))
	}
	for _, migration := range statuses {
		if migration.Status != MigrationStatusApplied {
			t.Errorf("want applied, got %s for %s", migration.Status, migration.Version)
		}
		if migration.AppliedAt == nil {
			t.Errorf("want AppliedAt set for %s", migration.Version)
		}
	}
}
