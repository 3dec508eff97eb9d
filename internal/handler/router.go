package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quantum-key-service/config"
)

// NewRouter はルーターを生成する。
func NewRouter(h *KeyHandler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// ミドルウェア
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	if cfg != nil && cfg.OperationTimeout > 0 {
		// 全操作は有界レイテンシで、期限切れはハングではなくエラーになる
		r.Use(chimiddleware.Timeout(cfg.OperationTimeout))
	}

	// ルート定義
	r.Route("/v1", func(r chi.Router) {
		r.Post("/keys", h.GenerateKey)
		r.Get("/keys", h.ListKeys)
		r.Post("/keys/rotate", h.RotateKeys)
		r.Post("/encrypt", h.Encrypt)
		r.Post("/decrypt", h.Decrypt)
		r.Post("/verify", h.Verify)
		r.Post("/distribute", h.Distribute)
	})
	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
