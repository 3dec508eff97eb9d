package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"quantum-key-service/internal/domain"
)

func TestDistributionService_Distribute(t *testing.T) {
	ctx := context.Background()
	generator := &mockGenerator{}
	service := NewDistributionService(generator, 4)

	nodes := []string{"node-a", "node-b", "node-c"}
	assignments, failed, err := service.Distribute(ctx, nodes)
	if err != nil {
		t.Fatalf("Distribute failed: %v", err)
	}
	if len(failed) != 0 {
		t.Errorf("want no failed nodes, got %v", failed)
	}
	if len(assignments) != 3 {
		t.Fatalf("want 3 assignments, got %d", len(assignments))
	}

	// 各ノードは固有の鍵を受け取ること（鍵の共有はしない）
	seen := make(map[string]bool)
	for _, node := range nodes {
		keyID, ok := assignments[node]
		if !ok || keyID == "" {
			t.Errorf("want assignment for %s", node)
			continue
		}
		if seen[keyID] {
			t.Errorf("key %s assigned to more than one node", keyID)
		}
		seen[keyID] = true
	}

	// 発行される鍵はすべてquantum_safe階層であること
	for _, record := range generator.generated {
		if record.Tier != domain.TierQuantumSafe {
			t.Errorf("want tier quantum_safe, got %s", record.Tier)
		}
	}
}

func TestDistributionService_DistributeConcurrentFanOut(t *testing.T) {
	ctx := context.Background()
	generator := &mockGenerator{}
	service := NewDistributionService(generator, 4)

	// ノード数が並行度を超えても全ノードが固有の鍵を受け取ること
	nodes := make([]string, 16)
	for i := range nodes {
		nodes[i] = fmt.Sprintf("node-%02d", i)
	}
	assignments, failed, err := service.Distribute(ctx, nodes)
	if err != nil {
		t.Fatalf("Distribute failed: %v", err)
	}
	if len(failed) != 0 {
		t.Errorf("want no failed nodes, got %v", failed)
	}
	if len(assignments) != len(nodes) {
		t.Fatalf("want %d assignments, got %d", len(nodes), len(assignments))
	}
	seen := make(map[string]bool, len(nodes))
	for _, node := range nodes {
		keyID := assignments[node]
		if keyID == "" {
			t.Errorf("want assignment for %s", node)
			continue
		}
		if seen[keyID] {
			t.Errorf("key %s assigned to more than one node", keyID)
		}
		seen[keyID] = true
	}
}

func TestDistributionService_DistributeEmpty(t *testing.T) {
	service := NewDistributionService(&mockGenerator{}, 4)
	assignments, failed, err := service.Distribute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Distribute failed: %v", err)
	}
	if len(assignments) != 0 || len(failed) != 0 {
		t.Errorf("want empty result, got %v / %v", assignments, failed)
	}
}

func TestDistributionService_DistributePartialFailure(t *testing.T) {
	ctx := context.Background()
	// 2回成功した後は失敗する生成器。直列実行で失敗位置を決定的にする。
	generator := &mockGenerator{failAfter: 2}
	service := NewDistributionService(generator, 1)

	nodes := []string{"node-a", "node-b", "node-c", "node-d"}
	assignments, failed, err := service.Distribute(ctx, nodes)
	if !errors.Is(err, domain.ErrDistributionPartial) {
		t.Fatalf("want ErrDistributionPartial, got %v", err)
	}

	var partial *domain.DistributionPartialError
	if !errors.As(err, &partial) {
		t.Fatal("want DistributionPartialError")
	}
	if len(partial.FailedNodes) != 2 {
		t.Errorf("want 2 failed nodes in error, got %v", partial.FailedNodes)
	}

	if len(assignments) != 2 {
		t.Errorf("want 2 successful assignments, got %d", len(assignments))
	}
	// 失敗ノードの一覧は入力順を保つこと
	if len(failed) != 2 || failed[0] != "node-c" || failed[1] != "node-d" {
		t.Errorf("want failed nodes [node-c node-d], got %v", failed)
	}
	for _, node := range failed {
		if _, ok := assignments[node]; ok {
			t.Errorf("failed node %s must not appear in assignments", node)
		}
	}
}

func TestDistributionService_DistributeAllFail(t *testing.T) {
	service := NewDistributionService(failingGenerator{}, 2)
	assignments, failed, err := service.Distribute(context.Background(), []string{"node-a", "node-b"})
	if !errors.Is(err, domain.ErrDistributionPartial) {
		t.Fatalf("want ErrDistributionPartial, got %v", err)
	}
	if len(assignments) != 0 {
		t.Errorf("want no assignments, got %v", assignments)
	}
	if len(failed) != 2 {
		t.Errorf("want 2 failed nodes, got %v", failed)
	}
}

// failingGenerator は常に失敗するKeyGenerator。
type failingGenerator struct{}

func (failingGenerator) GenerateKey(_ context.Context, _ domain.Tier) (*domain.KeyRecord, error) {
	return nil, errors.New("hsm unavailable")
}
