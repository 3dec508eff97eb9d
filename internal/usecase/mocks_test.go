package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"quantum-key-service/internal/domain"
)

// fakeClock はテスト用の固定時刻Clock。
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// mockKeyStore はKeyStoreのモック。各メソッドの挙動を差し替えられる。
type mockKeyStore struct {
	putFunc         func(ctx context.Context, record *domain.KeyRecord) error
	getFunc         func(ctx context.Context, id string) (*domain.KeyRecord, error)
	deleteFunc      func(ctx context.Context, id string) error
	listExpiredFunc func(ctx context.Context, now time.Time) ([]*domain.KeyRecord, error)
	allIDsFunc      func(ctx context.Context) ([]string, error)
}

func (m *mockKeyStore) Put(ctx context.Context, record *domain.KeyRecord) error {
	if m.putFunc == nil {
		return nil
	}
	return m.putFunc(ctx, record)
}

func (m *mockKeyStore) Get(ctx context.Context, id string) (*domain.KeyRecord, error) {
	if m.getFunc == nil {
		return nil, domain.ErrKeyNotFound
	}
	return m.getFunc(ctx, id)
}

func (m *mockKeyStore) Delete(ctx context.Context, id string) error {
	if m.deleteFunc == nil {
		return nil
	}
	return m.deleteFunc(ctx, id)
}

func (m *mockKeyStore) ListExpired(ctx context.Context, now time.Time) ([]*domain.KeyRecord, error) {
	if m.listExpiredFunc == nil {
		return nil, nil
	}
	return m.listExpiredFunc(ctx, now)
}

func (m *mockKeyStore) AllIDs(ctx context.Context) ([]string, error) {
	if m.allIDsFunc == nil {
		return nil, nil
	}
	return m.allIDsFunc(ctx)
}

// mockGenerator はKeyGeneratorのモック。failAfterが正の場合、その回数の
// 成功後に失敗し始める。
type mockGenerator struct {
	mu        sync.Mutex
	calls     int
	failAfter int
	generated []*domain.KeyRecord
}

func (m *mockGenerator) GenerateKey(_ context.Context, tier domain.Tier) (*domain.KeyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failAfter > 0 && m.calls > m.failAfter {
		return nil, fmt.Errorf("generation failed on call %d", m.calls)
	}
	policy, err := domain.PolicyFor(tier)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	record := &domain.KeyRecord{
		ID:        uuid.New().String(),
		Tier:      tier,
		Algorithm: policy.Algorithm,
		KeyLength: policy.KeyLength,
		Material:  []byte("mock material"),
		CreatedAt: now,
		ExpiresAt: now.Add(domain.KeyTTL),
	}
	m.generated = append(m.generated, record)
	return record, nil
}
