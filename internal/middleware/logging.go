// Package middleware はHTTPミドルウェアと監査ログを提供する。
package middleware

import (
	"context"
	"log/slog"
	"time"
)

// WriteAuditLog は鍵操作の監査ログを出力する。
func WriteAuditLog(ctx context.Context, operation, tier, keyID, result string) {
	slog.InfoContext(ctx, "key operation completed",
		"operation", operation,
		"tier", tier,
		"key_id", keyID,
		"result", result,
		"timestamp", time.Now().UTC().Format(time.RFC3339),
	)
}
