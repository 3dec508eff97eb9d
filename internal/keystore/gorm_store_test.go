package keystore

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"quantum-key-service/internal/domain"
)

// xorWrapper はテスト用のWrapper実装。ラップ済みかどうかを判別できるよう
// 固定バイトでXORする。
type xorWrapper struct {
	wrapCalls   int
	unwrapCalls int
}

func (w *xorWrapper) Wrap(_ context.Context, plaintext []byte) ([]byte, error) {
	w.wrapCalls++
	return xorBytes(plaintext), nil
}

func (w *xorWrapper) Unwrap(_ context.Context, wrapped []byte) ([]byte, error) {
	w.unwrapCalls++
	return xorBytes(wrapped), nil
}

func xorBytes(in []byte) []byte {
	out := make([]byte, len(in))
	for i, b := range in {
		out[i] = b ^ 0x5a
	}
	return out
}

// failingWrapper は常に失敗するWrapper実装。
type failingWrapper struct{}

func (failingWrapper) Wrap(_ context.Context, _ []byte) ([]byte, error) {
	return nil, errors.New("wrap failed")
}

func (failingWrapper) Unwrap(_ context.Context, _ []byte) ([]byte, error) {
	return nil, errors.New("unwrap failed")
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	err = db.Exec(`CREATE TABLE key_records (
		id CHAR(36) PRIMARY KEY,
		tier VARCHAR(16) NOT NULL,
		algorithm VARCHAR(32) NOT NULL,
		key_length INTEGER NOT NULL,
		material BLOB NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL
	)`).Error
	if err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	return db
}

func TestGormStore_PutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	wrapper := &xorWrapper{}
	store := NewGormStore(setupTestDB(t), wrapper)

	material := []byte("sensitive key material")
	record := &domain.KeyRecord{
		ID:        "00000000-0000-0000-0000-000000000001",
		Tier:      domain.TierQuantumSafe,
		Algorithm: domain.AlgorithmKyber,
		KeyLength: 512,
		Material:  material,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		ExpiresAt: time.Now().UTC().Add(domain.KeyTTL).Truncate(time.Second),
	}
	if err := store.Put(ctx, record); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if wrapper.wrapCalls != 1 {
		t.Errorf("want 1 wrap call, got %d", wrapper.wrapCalls)
	}

	got, err := store.Get(ctx, record.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got.Material, material) {
		t.Errorf("want unwrapped material %q, got %q", material, got.Material)
	}
	if got.Tier != domain.TierQuantumSafe {
		t.Errorf("want tier quantum_safe, got %s", got.Tier)
	}
	if got.Algorithm != domain.AlgorithmKyber {
		t.Errorf("want algorithm %s, got %s", domain.AlgorithmKyber, got.Algorithm)
	}
}

func TestGormStore_MaterialStoredWrapped(t *testing.T) {
	ctx := context.Background()
	store := NewGormStore(setupTestDB(t), &xorWrapper{})

	material := []byte("plaintext material")
	record := &domain.KeyRecord{
		ID:        "00000000-0000-0000-0000-000000000002",
		Tier:      domain.TierStandard,
		Algorithm: domain.AlgorithmAES256,
		KeyLength: 128,
		Material:  material,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(domain.KeyTTL),
	}
	if err := store.Put(ctx, record); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// DB上の素材は平文と一致しないこと
	var model KeyRecordModel
	if err := store.db.Where("id = ?", record.ID).First(&model).Error; err != nil {
		t.Fatalf("raw fetch failed: %v", err)
	}
	if bytes.Equal(model.Material, material) {
		t.Error("material stored in plaintext")
	}
}

func TestGormStore_GetNotFound(t *testing.T) {
	store := NewGormStore(setupTestDB(t), &xorWrapper{})
	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("want ErrKeyNotFound, got %v", err)
	}
}

func TestGormStore_DeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewGormStore(setupTestDB(t), &xorWrapper{})

	record := &domain.KeyRecord{
		ID:        "00000000-0000-0000-0000-000000000003",
		Tier:      domain.TierHigh,
		Algorithm: domain.AlgorithmRSA4096,
		KeyLength: 256,
		Material:  []byte("rsa material"),
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(domain.KeyTTL),
	}
	if err := store.Put(ctx, record); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Delete(ctx, record.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, record.ID); err != nil {
		t.Errorf("want nil for repeated delete, got %v", err)
	}
	if _, err := store.Get(ctx, record.ID); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("want ErrKeyNotFound after delete, got %v", err)
	}
}

func TestGormStore_ListExpired(t *testing.T) {
	ctx := context.Background()
	store := NewGormStore(setupTestDB(t), &xorWrapper{})
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	records := []*domain.KeyRecord{
		{ID: "00000000-0000-0000-0000-00000000000a", Tier: domain.TierStandard, Algorithm: domain.AlgorithmAES256, KeyLength: 128, Material: []byte("m"), CreatedAt: now.Add(-25 * time.Hour), ExpiresAt: now.Add(-time.Hour)},
		{ID: "00000000-0000-0000-0000-00000000000b", Tier: domain.TierStandard, Algorithm: domain.AlgorithmAES256, KeyLength: 128, Material: []byte("m"), CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(23 * time.Hour)},
	}
	for _, record := range records {
		if err := store.Put(ctx, record); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	got, err := store.ListExpired(ctx, now)
	if err != nil {
		t.Fatalf("ListExpired failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 expired record, got %d", len(got))
	}
	if got[0].ID != "00000000-0000-0000-0000-00000000000a" {
		t.Errorf("want expired record id, got %s", got[0].ID)
	}
}

func TestGormStore_PutWrapFailure(t *testing.T) {
	ctx := context.Background()
	store := NewGormStore(setupTestDB(t), failingWrapper{})

	record := &domain.KeyRecord{
		ID:        "00000000-0000-0000-0000-00000000000c",
		Tier:      domain.TierStandard,
		Algorithm: domain.AlgorithmAES256,
		KeyLength: 128,
		Material:  []byte("m"),
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(domain.KeyTTL),
	}
	if err := store.Put(ctx, record); err == nil {
		t.Error("want error when wrapping fails, got nil")
	}

	// ラップに失敗したレコードは保存されないこと
	ids, err := store.AllIDs(ctx)
	if err != nil {
		t.Fatalf("AllIDs failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("want no stored records, got %d", len(ids))
	}
}
