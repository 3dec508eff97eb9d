package keystore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
)

var (
	// ErrMigrationFailed はマイグレーション実行時のエラー。
	ErrMigrationFailed = errors.New("migration failed")
	// ErrInvalidMigrationFile はマイグレーションファイル名の形式が不正な場合のエラー。
	ErrInvalidMigrationFile = errors.New("invalid migration file")
)

// MigrationStatus はマイグレーションの適用状態を表す。
type MigrationStatus string

const (
	MigrationStatusPending MigrationStatus = "pending"
	MigrationStatusApplied MigrationStatus = "applied"
)

// Migration は1つのスキーママイグレーションを表す。
type Migration struct {
	Version   string
	Name      string
	FilePath  string
	AppliedAt *time.Time
	Status    MigrationStatus
}

// schemaMigrationModel はschema_migrationsテーブルのモデル。
type schemaMigrationModel struct {
	Version   string    `gorm:"column:version;primaryKey;type:varchar(14)"`
	AppliedAt time.Time `gorm:"column:applied_at;not null;autoCreateTime"`
}

func (schemaMigrationModel) TableName() string {
	return "schema_migrations"
}

// Migrator は鍵ストアのスキーママイグレーションを適用・照会する。
// マイグレーションは {version}_{name}.sql 形式のファイルとして
// ディレクトリに置かれ、バージョン順にトランザクション内で適用される。
type Migrator struct {
	db  *gorm.DB
	dir string
}

// NewMigrator は新しいMigratorを生成する。
func NewMigrator(db *gorm.DB, dir string) *Migrator {
	return &Migrator{db: db, dir: dir}
}

// scan はディレクトリから.sqlファイルをバージョン順に読み取る。
func (m *Migrator) scan() ([]*Migration, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []*Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, name, ok := strings.Cut(strings.TrimSuffix(entry.Name(), ".sql"), "_")
		if !ok {
			return nil, fmt.Errorf("%w: %s (expected {version}_{name}.sql)", ErrInvalidMigrationFile, entry.Name())
		}
		migrations = append(migrations, &Migration{
			Version:  version,
			Name:     name,
			FilePath: filepath.Join(m.dir, entry.Name()),
			Status:   MigrationStatusPending,
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// applied は適用済みバージョンの集合を返す。schema_migrationsテーブルが
// まだ存在しない場合は作成する。
func (m *Migrator) applied(ctx context.Context) (map[string]time.Time, error) {
	if err := m.db.WithContext(ctx).AutoMigrate(&schemaMigrationModel{}); err != nil {
		return nil, fmt.Errorf("preparing schema_migrations: %w", err)
	}
	var models []schemaMigrationModel
	if err := m.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("fetching applied migrations: %w", err)
	}
	result := make(map[string]time.Time, len(models))
	for _, model := range models {
		result[model.Version] = model.AppliedAt
	}
	return result, nil
}

// Apply は未適用マイグレーションをバージョン順に実行し、適用件数を返す。
// 各マイグレーションはSQL実行と履歴記録を同一トランザクションで行う。
func (m *Migrator) Apply(ctx context.Context) (int, error) {
	migrations, err := m.scan()
	if err != nil {
		return 0, err
	}
	appliedVersions, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, migration := range migrations {
		if _, ok := appliedVersions[migration.Version]; ok {
			continue
		}
		sqlBytes, err := os.ReadFile(migration.FilePath)
		if err != nil {
			return count, fmt.Errorf("reading migration file: %w", err)
		}
		err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(string(sqlBytes)).Error; err != nil {
				return err
			}
			return tx.Create(&schemaMigrationModel{Version: migration.Version}).Error
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to apply migration",
				"operation", "apply_migrations",
				"version", migration.Version,
				"error", err,
			)
			return count, fmt.Errorf("%w: version %s: %v", ErrMigrationFailed, migration.Version, err)
		}
		count++
	}
	return count, nil
}

// Status は全マイグレーションの適用状況を返す。
func (m *Migrator) Status(ctx context.Context) ([]*Migration, error) {
	migrations, err := m.scan()
	if err != nil {
		return nil, err
	}
	appliedVersions, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	for _, migration := range migrations {
		if at, ok := appliedVersions[migration.Version]; ok {
			t := at
			migration.Status = MigrationStatusApplied
			migration.AppliedAt = &t
		}
	}
	return migrations, nil
}
