// Package handler はHTTPハンドラを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"quantum-key-service/internal/domain"
	"quantum-key-service/internal/middleware"
	"quantum-key-service/internal/usecase"
	"quantum-key-service/pkg/httputil"
)

// KeyHandler は鍵ライフサイクルAPIのHTTPハンドラを提供する。
type KeyHandler struct {
	keys         *usecase.KeyService
	encryption   *usecase.EncryptionService
	rotation     *usecase.RotationService
	distribution *usecase.DistributionService
	verification *usecase.VerificationService
	clock        usecase.Clock
}

// NewKeyHandler は新しいKeyHandlerを生成する。
func NewKeyHandler(
	keys *usecase.KeyService,
	encryption *usecase.EncryptionService,
	rotation *usecase.RotationService,
	distribution *usecase.DistributionService,
	verification *usecase.VerificationService,
	clock usecase.Clock,
) *KeyHandler {
	return &KeyHandler{
		keys:         keys,
		encryption:   encryption,
		rotation:     rotation,
		distribution: distribution,
		verification: verification,
		clock:        clock,
	}
}

// KeyMetadataResponse は鍵メタデータのレスポンス形式。鍵素材は含まない。
type KeyMetadataResponse struct {
	KeyID       string `json:"key_id"`
	Tier        string `json:"tier"`
	Algorithm   string `json:"algorithm"`
	KeyLength   int    `json:"key_length"`
	QuantumSafe bool   `json:"quantum_safe"`
	CreatedAt   string `json:"created_at"`
	ExpiresAt   string `json:"expires_at"`
}

func keyMetadata(record *domain.KeyRecord) KeyMetadataResponse {
	return KeyMetadataResponse{
		KeyID:       record.ID,
		Tier:        string(record.Tier),
		Algorithm:   record.Algorithm,
		KeyLength:   record.KeyLength,
		QuantumSafe: record.QuantumSafe(),
		CreatedAt:   record.CreatedAt.Format(time.RFC3339),
		ExpiresAt:   record.ExpiresAt.Format(time.RFC3339),
	}
}

// GenerateKey は新しい鍵を生成する。
func (h *KeyHandler) GenerateKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tier string `json:"tier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	tier, err := domain.ParseTier(req.Tier)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_TIER", "tier must be one of: standard, high, quantum_safe")
		return
	}

	record, err := h.keys.GenerateKey(r.Context(), tier)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "GENERATE_KEY", string(tier), "", "FAILED")
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	middleware.WriteAuditLog(r.Context(), "GENERATE_KEY", string(tier), record.ID, "SUCCESS")
	httputil.JSON(w, http.StatusCreated, keyMetadata(record))
}

// ListKeys は保管中の全鍵IDを返す。
func (h *KeyHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	ids, err := h.keys.ListKeyIDs(r.Context())
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}
	if ids == nil {
		ids = []string{}
	}
	httputil.JSON(w, http.StatusOK, map[string][]string{"key_ids": ids})
}

// RotateKeys は失効鍵のローテーションスイープを即時実行する。
func (h *KeyHandler) RotateKeys(w http.ResponseWriter, r *http.Request) {
	result, err := h.rotation.Sweep(r.Context(), h.clock.Now())
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "ROTATE_KEYS", "", "", "FAILED")
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	middleware.WriteAuditLog(r.Context(), "ROTATE_KEYS", "", "", "SUCCESS")
	httputil.JSON(w, http.StatusOK, result)
}

// Encrypt はペイロードを指定階層で暗号化してエンベロープを返す。
func (h *KeyHandler) Encrypt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tier    string          `json:"tier"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	tier, err := domain.ParseTier(req.Tier)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_TIER", "tier must be one of: standard, high, quantum_safe")
		return
	}
	if len(req.Payload) == 0 {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "payload is required")
		return
	}

	envelope, err := h.encryption.Encrypt(r.Context(), req.Payload, tier)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "ENCRYPT", string(tier), "", "FAILED")
		if errors.Is(err, domain.ErrEncryptionFailure) {
			httputil.Error(w, http.StatusUnprocessableEntity, "ENCRYPTION_FAILURE", "payload could not be encrypted")
			return
		}
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	middleware.WriteAuditLog(r.Context(), "ENCRYPT", string(tier), envelope.KeyID, "SUCCESS")
	httputil.JSON(w, http.StatusOK, map[string]string{"envelope": envelope.String()})
}

// Decrypt はエンベロープを開封して平文ペイロードを返す。
func (h *KeyHandler) Decrypt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Envelope string `json:"envelope"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Envelope == "" {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "envelope is required")
		return
	}

	plaintext, err := h.encryption.Decrypt(r.Context(), req.Envelope)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "DECRYPT", "", "", "FAILED")
		switch {
		case errors.Is(err, domain.ErrMalformedEnvelope):
			httputil.Error(w, http.StatusBadRequest, "MALFORMED_ENVELOPE", "envelope could not be parsed")
		case errors.Is(err, domain.ErrKeyNotFound):
			httputil.Error(w, http.StatusNotFound, "KEY_NOT_FOUND", "key referenced by envelope not found")
		case errors.Is(err, domain.ErrExpiredKeyUsed):
			httputil.Error(w, http.StatusGone, "EXPIRED_KEY", "key referenced by envelope has expired")
		default:
			httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return
	}

	middleware.WriteAuditLog(r.Context(), "DECRYPT", "", "", "SUCCESS")
	httputil.JSON(w, http.StatusOK, map[string]json.RawMessage{"payload": plaintext})
}

// Verify はトランザクションを検証して構造化された結果を返す。
func (h *KeyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var tx domain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}

	result, err := h.verification.Verify(r.Context(), &tx)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "VERIFY", "", tx.KeyID, "FAILED")
		if errors.Is(err, domain.ErrMalformedTransaction) {
			httputil.Error(w, http.StatusBadRequest, "MALFORMED_TRANSACTION", err.Error())
			return
		}
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	outcome := "SUCCESS"
	if !result.Valid {
		outcome = "INVALID"
	}
	middleware.WriteAuditLog(r.Context(), "VERIFY", "", tx.KeyID, outcome)
	httputil.JSON(w, http.StatusOK, result)
}

// DistributeResponse は鍵配布のレスポンス形式。
type DistributeResponse struct {
	Assignments map[string]string `json:"assignments"`
	FailedNodes []string          `json:"failed_nodes"`
}

// Distribute は各ノードに新しい耐量子鍵を発行する。
func (h *KeyHandler) Distribute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NodeIDs []string `json:"node_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}

	assignments, failed, err := h.distribution.Distribute(r.Context(), req.NodeIDs)
	if err != nil && !errors.Is(err, domain.ErrDistributionPartial) {
		middleware.WriteAuditLog(r.Context(), "DISTRIBUTE_KEYS", "", "", "FAILED")
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	resp := DistributeResponse{Assignments: assignments, FailedNodes: failed}
	if resp.FailedNodes == nil {
		resp.FailedNodes = []string{}
	}
	if len(failed) > 0 {
		// 部分的な失敗: 成功分の割り当ては返し、失敗ノードを明示する
		middleware.WriteAuditLog(r.Context(), "DISTRIBUTE_KEYS", "", "", "PARTIAL")
		httputil.JSON(w, http.StatusMultiStatus, resp)
		return
	}

	middleware.WriteAuditLog(r.Context(), "DISTRIBUTE_KEYS", "", "", "SUCCESS")
	httputil.JSON(w, http.StatusOK, resp)
}

// Health はヘルスチェックに応答する。
func (h *KeyHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
