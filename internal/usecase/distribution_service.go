package usecase

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"quantum-key-service/internal/domain"
	"quantum-key-service/internal/metrics"
)

// DistributionService は指定された各ノードに新しい耐量子鍵を1つずつ発行する。
// ノード間で鍵を共有しないことが隔離境界であり、1ノードの失敗は他ノードの
// 発行に影響しない。
type DistributionService struct {
	generator   KeyGenerator
	concurrency int
}

// NewDistributionService は新しいDistributionServiceを生成する。
func NewDistributionService(generator KeyGenerator, concurrency int) *DistributionService {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &DistributionService{
		generator:   generator,
		concurrency: concurrency,
	}
}

// Distribute は各ノードに新規quantum_safe鍵を生成して割り当てる。
// 一部のノードで生成に失敗した場合、成功分の割り当てと失敗ノード一覧を
// 両方返し、エラーはErrDistributionPartialとして報告する。呼び出し側は
// 失敗ノードのみ再試行できる。失敗ノードの順序は入力順を保つ。
func (s *DistributionService) Distribute(ctx context.Context, nodeIDs []string) (map[string]string, []string, error) {
	assignments := make(map[string]string, len(nodeIDs))
	if len(nodeIDs) == 0 {
		return assignments, nil, nil
	}

	keyIDs := make([]string, len(nodeIDs))
	errs := make([]error, len(nodeIDs))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i := range nodeIDs {
		g.Go(func() error {
			record, err := s.generator.GenerateKey(ctx, domain.TierQuantumSafe)
			if err != nil {
				errs[i] = err
				return nil
			}
			keyIDs[i] = record.ID
			return nil
		})
	}
	// ワーカーはエラーを添字ごとに記録するためWaitは常にnil
	_ = g.Wait()

	var failed []string
	for i, nodeID := range nodeIDs {
		if errs[i] != nil {
			failed = append(failed, nodeID)
			metrics.DistributionFailures.Inc()
			slog.WarnContext(ctx, "failed to issue key for node",
				"operation", "distribute",
				"node_id", nodeID,
				"error", errs[i],
			)
			continue
		}
		assignments[nodeID] = keyIDs[i]
	}

	if len(failed) > 0 {
		return assignments, failed, &domain.DistributionPartialError{FailedNodes: failed}
	}
	return assignments, nil, nil
}
