package usecase

import (
	"context"
	"log/slog"
	"time"

	"quantum-key-service/internal/metrics"
)

// SweepResult はローテーションスイープの結果集計。
type SweepResult struct {
	Rotated int `json:"rotated"`
	Failed  int `json:"failed"`
}

// RotationService は失効鍵を同一階層の新しい鍵に置換するスイープを提供する。
type RotationService struct {
	store     KeyStore
	generator KeyGenerator
	clock     Clock
	interval  time.Duration
}

// NewRotationService は新しいRotationServiceを生成する。
func NewRotationService(store KeyStore, generator KeyGenerator, clock Clock, interval time.Duration) *RotationService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RotationService{
		store:     store,
		generator: generator,
		clock:     clock,
		interval:  interval,
	}
}

// Sweep は指定時刻で失効している鍵を列挙し、それぞれを同一階層の新しい鍵に
// 置換する。置換は生成・保存・旧鍵削除を1つの論理単位として行い、生成に
// 失敗した鍵は失敗として数え、後継なしで破棄せず次回スイープに残す。
// 1つの鍵の失敗は残りのスイープを止めない。キャンセルは鍵の置換単位で効く。
func (s *RotationService) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult

	expired, err := s.store.ListExpired(ctx, now)
	if err != nil {
		return result, err
	}

	for _, record := range expired {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		replacement, err := s.generator.GenerateKey(ctx, record.Tier)
		if err != nil {
			result.Failed++
			metrics.SweepFailed.Inc()
			slog.WarnContext(ctx, "failed to generate replacement key",
				"operation", "sweep",
				"key_id", record.ID,
				"tier", record.Tier,
				"error", err,
			)
			continue
		}
		if err := s.store.Delete(ctx, record.ID); err != nil {
			// 旧鍵が残っても害はない。次回スイープで再び置換対象になる。
			result.Failed++
			metrics.SweepFailed.Inc()
			slog.WarnContext(ctx, "failed to delete rotated key",
				"operation", "sweep",
				"key_id", record.ID,
				"replacement_id", replacement.ID,
				"error", err,
			)
			continue
		}

		result.Rotated++
		metrics.SweepRotated.Inc()
		slog.InfoContext(ctx, "key rotated",
			"operation", "sweep",
			"key_id", record.ID,
			"replacement_id", replacement.ID,
			"tier", record.Tier,
		)
	}

	return result, nil
}

// Run は固定間隔でスイープを実行し続ける。コンテキストのキャンセルで停止する。
// スイープの失敗はログと集計にのみ現れ、プロセスを停止させることはない。
func (s *RotationService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "rotation sweeper started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "rotation sweeper stopped")
			return
		case <-ticker.C:
			result, err := s.Sweep(ctx, s.clock.Now())
			if err != nil {
				slog.ErrorContext(ctx, "rotation sweep aborted",
					"rotated", result.Rotated,
					"failed", result.Failed,
					"error", err,
				)
				continue
			}
			if result.Rotated > 0 || result.Failed > 0 {
				slog.InfoContext(ctx, "rotation sweep completed",
					"rotated", result.Rotated,
					"failed", result.Failed,
				)
			}
		}
	}
}
