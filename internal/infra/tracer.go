// Package infra は外部サービスとの接続を提供する。
package infra

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"quantum-key-service/config"
)

// InitTracer はOTLP gRPCエクスポーターでトレーサープロバイダーを初期化し、
// グローバルに登録する。OTEL_ENABLED=false の場合はnilを返す（トレーシング無効）。
// 鍵操作のスパンはTraceHandlerが監査ログに付与するtrace/spanIdと突き合わせられる。
func InitTracer(ctx context.Context, cfg *config.Config) (*sdktrace.TracerProvider, error) {
	if !cfg.OtelEnabled {
		return nil, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OtelEndpoint),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.OtelServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("describing service resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		// 親スパンのサンプリング判定を優先し、率はルートスパンにのみ適用する
		sdktrace.WithSampler(sdktrace.ParentBased(rootSampler(cfg.OtelSamplingRate))),
	)
	otel.SetTracerProvider(tp)

	// W3C TraceContext伝搬。呼び出し元のトレースに鍵操作のスパンが連なる。
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, nil
}

// rootSampler はルートスパン用のサンプラーを返す。OTEL_SAMPLING_RATEが
// [0, 1] の範囲外の場合は全量サンプリングにフォールバックする。
func rootSampler(rate float64) sdktrace.Sampler {
	if rate < 0 || rate > 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.TraceIDRatioBased(rate)
}
