package keystore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"quantum-key-service/internal/domain"
)

// Wrapper は鍵素材を保存前に包む（暗号化する）インターフェース。
// Cloud KMSによる実装とローカルマスター鍵による実装がinfraにある。
type Wrapper interface {
	Wrap(ctx context.Context, plaintext []byte) ([]byte, error)
	Unwrap(ctx context.Context, wrapped []byte) ([]byte, error)
}

// KeyRecordModel はgorm用のモデル定義。Materialはラップ済みの状態で保存される。
type KeyRecordModel struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	Tier      string    `gorm:"type:varchar(16);not null;index:idx_tier"`
	Algorithm string    `gorm:"type:varchar(32);not null"`
	KeyLength int       `gorm:"not null"`
	Material  []byte    `gorm:"type:blob;not null"`
	CreatedAt time.Time `gorm:"type:datetime(6);not null"`
	ExpiresAt time.Time `gorm:"type:datetime(6);not null;index:idx_expires_at"`
}

// TableName はテーブル名を返す。
func (KeyRecordModel) TableName() string {
	return "key_records"
}

// BeforeCreate はレコード作成前にUUIDを生成する。通常は生成層でIDが
// 採番済みのため、空の場合のみ補完する。
func (m *KeyRecordModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// GormStore はgormによる永続鍵ストア。sqlite/mysqlの両方で動作する。
type GormStore struct {
	db      *gorm.DB
	wrapper Wrapper
}

// NewGormStore は新しいGormStoreを生成する。
func NewGormStore(db *gorm.DB, wrapper Wrapper) *GormStore {
	return &GormStore{db: db, wrapper: wrapper}
}

// Put は鍵レコードを保存する。鍵素材はラップしてから書き込む。
func (s *GormStore) Put(ctx context.Context, record *domain.KeyRecord) error {
	wrapped, err := s.wrapper.Wrap(ctx, record.Material)
	if err != nil {
		slog.ErrorContext(ctx, "failed to wrap key material",
			"operation", "put",
			"key_id", record.ID,
			"error", err,
		)
		return err
	}
	model := &KeyRecordModel{
		ID:        record.ID,
		Tier:      string(record.Tier),
		Algorithm: record.Algorithm,
		KeyLength: record.KeyLength,
		Material:  wrapped,
		CreatedAt: record.CreatedAt,
		ExpiresAt: record.ExpiresAt,
	}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to create key record",
			"operation", "put",
			"key_id", record.ID,
			"tier", record.Tier,
			"error", err,
		)
		return err
	}
	record.ID = model.ID
	return nil
}

// Get は指定されたIDの鍵レコードを取得する。存在しない場合はErrKeyNotFound。
func (s *GormStore) Get(ctx context.Context, id string) (*domain.KeyRecord, error) {
	var model KeyRecordModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrKeyNotFound
		}
		slog.ErrorContext(ctx, "failed to find key record",
			"operation", "get",
			"key_id", id,
			"error", err,
		)
		return nil, err
	}
	return s.toDomain(ctx, &model)
}

// Delete は指定されたIDの鍵レコードを削除する。存在しないIDは何もしない（冪等）。
func (s *GormStore) Delete(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&KeyRecordModel{}).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to delete key record",
			"operation", "delete",
			"key_id", id,
			"error", err,
		)
		return err
	}
	return nil
}

// ListExpired は指定時刻で失効している鍵レコードを列挙する。
func (s *GormStore) ListExpired(ctx context.Context, now time.Time) ([]*domain.KeyRecord, error) {
	var models []KeyRecordModel
	err := s.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Order("expires_at ASC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to list expired key records",
			"operation", "list_expired",
			"error", err,
		)
		return nil, err
	}

	records := make([]*domain.KeyRecord, 0, len(models))
	for i := range models {
		record, err := s.toDomain(ctx, &models[i])
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// AllIDs は保管中の全鍵IDを返す。
func (s *GormStore) AllIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&KeyRecordModel{}).
		Pluck("id", &ids).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to list key ids",
			"operation", "all_ids",
			"error", err,
		)
		return nil, err
	}
	return ids, nil
}

// toDomain はモデルをドメインエンティティに変換する。鍵素材はアンラップして返す。
func (s *GormStore) toDomain(ctx context.Context, model *KeyRecordModel) (*domain.KeyRecord, error) {
	material, err := s.wrapper.Unwrap(ctx, model.Material)
	if err != nil {
		slog.ErrorContext(ctx, "failed to unwrap key material",
			"operation", "unwrap",
			"key_id", model.ID,
			"error", err,
		)
		return nil, err
	}
	return &domain.KeyRecord{
		ID:        model.ID,
		Tier:      domain.Tier(model.Tier),
		Algorithm: model.Algorithm,
		KeyLength: model.KeyLength,
		Material:  material,
		CreatedAt: model.CreatedAt,
		ExpiresAt: model.ExpiresAt,
	}, nil
}
