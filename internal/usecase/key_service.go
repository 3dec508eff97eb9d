package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"quantum-key-service/internal/crypto"
	"quantum-key-service/internal/domain"
	"quantum-key-service/internal/metrics"
)

// KeyStore は鍵レコード保管層のインターフェース。
type KeyStore interface {
	Put(ctx context.Context, record *domain.KeyRecord) error
	Get(ctx context.Context, id string) (*domain.KeyRecord, error)
	Delete(ctx context.Context, id string) error
	ListExpired(ctx context.Context, now time.Time) ([]*domain.KeyRecord, error)
	AllIDs(ctx context.Context) ([]string, error)
}

// KeyGenerator は階層を指定して新しい鍵を生成するインターフェース。
type KeyGenerator interface {
	GenerateKey(ctx context.Context, tier domain.Tier) (*domain.KeyRecord, error)
}

// KeyService は鍵の生成と照会のビジネスロジックを提供する。
type KeyService struct {
	store KeyStore
	clock Clock
	ttl   time.Duration
}

// NewKeyService は新しいKeyServiceを生成する。ttlが0の場合は既定の24時間。
func NewKeyService(store KeyStore, clock Clock, ttl time.Duration) *KeyService {
	if ttl <= 0 {
		ttl = domain.KeyTTL
	}
	return &KeyService{
		store: store,
		clock: clock,
		ttl:   ttl,
	}
}

// GenerateKey は指定階層の新しい鍵を生成してストアに保存する。
// 認識されない階層はErrInvalidTierで拒否し、既定階層への置換は行わない。
func (s *KeyService) GenerateKey(ctx context.Context, tier domain.Tier) (*domain.KeyRecord, error) {
	policy, err := domain.PolicyFor(tier)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidTier, tier)
	}

	cipher, ok := crypto.CipherFor(policy.Algorithm)
	if !ok {
		return nil, fmt.Errorf("no cipher registered for algorithm %q", policy.Algorithm)
	}
	material, err := cipher.GenerateMaterial(ctx)
	if err != nil {
		return nil, fmt.Errorf("generating key material: %w", err)
	}

	now := s.clock.Now()
	record := &domain.KeyRecord{
		ID:        uuid.New().String(),
		Tier:      tier,
		Algorithm: policy.Algorithm,
		KeyLength: policy.KeyLength,
		Material:  material,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.Put(ctx, record); err != nil {
		return nil, fmt.Errorf("storing key record: %w", err)
	}

	metrics.KeysGenerated.WithLabelValues(string(tier)).Inc()
	return record, nil
}

// GetKey は指定されたIDの鍵レコードを取得する。
func (s *KeyService) GetKey(ctx context.Context, id string) (*domain.KeyRecord, error) {
	return s.store.Get(ctx, id)
}

// ListKeyIDs は保管中の全鍵IDを返す。
func (s *KeyService) ListKeyIDs(ctx context.Context) ([]string, error) {
	return s.store.AllIDs(ctx)
}

// RevokeKey は鍵を明示的に失効・削除する。存在しないIDは何もしない（冪等）。
func (s *KeyService) RevokeKey(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}
