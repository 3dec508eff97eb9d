package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"quantum-key-service/internal/domain"
	"quantum-key-service/internal/keystore"
)

func TestRotationService_SweepNothingExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := keystore.NewMemoryStore()
	keys := NewKeyService(store, clock, 0)
	rotation := NewRotationService(store, keys, clock, 0)

	if _, err := keys.GenerateKey(ctx, domain.TierStandard); err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	result, err := rotation.Sweep(ctx, clock.Now())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if result.Rotated != 0 || result.Failed != 0 {
		t.Errorf("want {0 0}, got {%d %d}", result.Rotated, result.Failed)
	}
}

func TestRotationService_SweepReplacesExpiredKeys(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := keystore.NewMemoryStore()
	keys := NewKeyService(store, clock, 0)
	rotation := NewRotationService(store, keys, clock, 0)

	old, err := keys.GenerateKey(ctx, domain.TierQuantumSafe)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	clock.Advance(domain.KeyTTL + time.Minute)
	result, err := rotation.Sweep(ctx, clock.Now())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if result.Rotated != 1 || result.Failed != 0 {
		t.Fatalf("want {1 0}, got {%d %d}", result.Rotated, result.Failed)
	}

	// 旧鍵は削除され、同一階層の新鍵が存在すること
	if _, err := store.Get(ctx, old.ID); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("want old key removed, got %v", err)
	}
	ids, err := store.AllIDs(ctx)
	if err != nil {
		t.Fatalf("AllIDs failed: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("want 1 replacement key, got %d", len(ids))
	}
	replacement, err := store.Get(ctx, ids[0])
	if err != nil {
		t.Fatalf("Get replacement failed: %v", err)
	}
	if replacement.ID == old.ID {
		t.Error("want a new key id, got the old one")
	}
	if replacement.Tier != domain.TierQuantumSafe {
		t.Errorf("want tier quantum_safe, got %s", replacement.Tier)
	}
	if replacement.Expired(clock.Now()) {
		t.Error("replacement key must not be expired")
	}
}

func TestRotationService_SweepGeneratorFailure(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expired := []*domain.KeyRecord{
		{ID: "expired-1", Tier: domain.TierStandard, Algorithm: domain.AlgorithmAES256, ExpiresAt: now.Add(-time.Hour)},
		{ID: "expired-2", Tier: domain.TierStandard, Algorithm: domain.AlgorithmAES256, ExpiresAt: now.Add(-time.Hour)},
	}
	deleted := map[string]bool{}
	store := &mockKeyStore{
		listExpiredFunc: func(_ context.Context, _ time.Time) ([]*domain.KeyRecord, error) {
			return expired, nil
		},
		deleteFunc: func(_ context.Context, id string) error {
			deleted[id] = true
			return nil
		},
	}
	// 1回成功した後は失敗する生成器
	generator := &mockGenerator{failAfter: 1}
	rotation := NewRotationService(store, generator, newFakeClock(now), 0)

	result, err := rotation.Sweep(ctx, now)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if result.Rotated != 1 || result.Failed != 1 {
		t.Errorf("want {1 1}, got {%d %d}", result.Rotated, result.Failed)
	}
	// 生成に失敗した鍵は削除されず次回スイープに残ること
	if !deleted["expired-1"] {
		t.Error("want first expired key deleted")
	}
	if deleted["expired-2"] {
		t.Error("failed rotation must leave the old key in place")
	}
}

func TestRotationService_SweepCancellation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expired := []*domain.KeyRecord{
		{ID: "expired-1", Tier: domain.TierStandard, Algorithm: domain.AlgorithmAES256, ExpiresAt: now.Add(-time.Hour)},
		{ID: "expired-2", Tier: domain.TierStandard, Algorithm: domain.AlgorithmAES256, ExpiresAt: now.Add(-time.Hour)},
	}
	store := &mockKeyStore{
		listExpiredFunc: func(_ context.Context, _ time.Time) ([]*domain.KeyRecord, error) {
			return expired, nil
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rotation := NewRotationService(store, &mockGenerator{}, newFakeClock(now), 0)
	result, err := rotation.Sweep(ctx, now)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if result.Rotated != 0 {
		t.Errorf("want no rotations after cancel, got %d", result.Rotated)
	}
}
