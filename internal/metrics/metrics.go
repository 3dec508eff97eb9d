// Package metrics はPrometheusメトリクスを定義する。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// KeysGenerated は生成された鍵の累計（階層別）。
	KeysGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qkey_keys_generated_total",
		Help: "Total number of keys generated, by tier.",
	}, []string{"tier"})

	// Encryptions は暗号化操作の累計（階層別・結果別）。
	Encryptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qkey_encryptions_total",
		Help: "Total number of encryption operations, by tier and result.",
	}, []string{"tier", "result"})

	// Verifications は検証操作の累計（結果別）。
	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qkey_verifications_total",
		Help: "Total number of transaction verifications, by result.",
	}, []string{"result"})

	// SweepRotated はローテーションスイープで置換された鍵の累計。
	SweepRotated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qkey_sweep_rotated_total",
		Help: "Total number of expired keys replaced by rotation sweeps.",
	})

	// SweepFailed はローテーションスイープで置換に失敗した鍵の累計。
	SweepFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qkey_sweep_failed_total",
		Help: "Total number of expired keys whose replacement failed.",
	})

	// DistributionFailures は配布に失敗したノードの累計。
	DistributionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qkey_distribution_failures_total",
		Help: "Total number of nodes that failed during key distribution.",
	})
)
