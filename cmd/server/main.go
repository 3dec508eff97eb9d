// Package main はAPIサーバーのエントリポイント。
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"quantum-key-service/config"
	"quantum-key-service/internal/handler"
	"quantum-key-service/internal/infra"
	"quantum-key-service/internal/keystore"
	"quantum-key-service/internal/usecase"
)

func main() {
	ctx := context.Background()

	// .envファイルを読み込む（存在しない場合は無視）
	// 既存の環境変数は上書きしない
	_ = godotenv.Load()

	// 設定読み込み
	cfg := config.Load()

	// トレーサー初期化（ロガー設定の前に実行）
	tp, err := infra.InitTracer(ctx, cfg)
	if err != nil {
		slog.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	if tp != nil {
		defer func() {
			if err := tp.Shutdown(ctx); err != nil {
				slog.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}

	// トレース情報付きロガーを設定
	infra.SetupLogger(cfg)

	// 暗号プリミティブの自己診断（冪等）
	if err := usecase.Initialize(); err != nil {
		slog.Error("failed to initialize crypto primitives", "error", err)
		os.Exit(1)
	}

	// 鍵ストア初期化
	store, cleanup, err := newStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to init key store", "error", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	// DI
	clock := usecase.SystemClock{}
	keys := usecase.NewKeyService(store, clock, cfg.KeyTTL)
	encryption := usecase.NewEncryptionService(keys, store, clock, cfg.AllowExpiredDecrypt)
	rotation := usecase.NewRotationService(store, keys, clock, cfg.RotationInterval)
	distribution := usecase.NewDistributionService(keys, cfg.DistributionConcurrency)
	verification := usecase.NewVerificationService()
	h := handler.NewKeyHandler(keys, encryption, rotation, distribution, verification, clock)
	router := handler.NewRouter(h, cfg)

	var serverHandler http.Handler = router
	if cfg.OtelEnabled {
		serverHandler = otelhttp.NewHandler(router, "quantum-key-service")
	}

	// バックグラウンドのローテーションスイープを起動
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go rotation.Run(sweepCtx)

	// サーバー起動
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: serverHandler,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		<-sigCh

		slog.Info("shutting down server...")
		stopSweeper()
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("starting server", "port", cfg.Port, "store", cfg.StoreBackend)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// newStore は設定に応じた鍵ストアを構築する。databaseバックエンドでは
// 鍵素材のラップにCloud KMS（KMS_KEY_NAME設定時）またはローカルマスター鍵を使う。
func newStore(ctx context.Context, cfg *config.Config) (usecase.KeyStore, func(), error) {
	if cfg.StoreBackend != "database" {
		return keystore.NewMemoryStore(), nil, nil
	}

	db, err := infra.NewDB(cfg.DatabaseURL, cfg)
	if err != nil {
		return nil, nil, err
	}

	var wrapper keystore.Wrapper
	var cleanup func()
	if cfg.KMSKeyName != "" {
		kmsWrapper, err := infra.NewKMSWrapper(ctx, cfg.KMSKeyName)
		if err != nil {
			return nil, nil, err
		}
		wrapper = kmsWrapper
		cleanup = func() {
			if err := kmsWrapper.Close(); err != nil {
				slog.Error("failed to close KMS client", "error", err)
			}
		}
	} else {
		localWrapper, err := infra.NewLocalWrapper(cfg.MasterKey)
		if err != nil {
			return nil, nil, err
		}
		wrapper = localWrapper
	}

	return keystore.NewGormStore(db, wrapper), cleanup, nil
}
