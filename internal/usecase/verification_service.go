package usecase

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"quantum-key-service/internal/crypto"
	"quantum-key-service/internal/domain"
	"quantum-key-service/internal/metrics"
)

// VerificationService はトランザクションの暗号学的検証を提供する。
// 検証は鍵ストアの状態に依存せず、同一入力に対して常に同一の結果を返す。
type VerificationService struct{}

// NewVerificationService は新しいVerificationServiceを生成する。
func NewVerificationService() *VerificationService {
	return &VerificationService{}
}

// validateTransaction は必須フィールドの存在を確認する。欠落は呼び出し側の
// 契約違反であり、検証結果ではなくエラーとして即座に返す。
func validateTransaction(tx *domain.Transaction) error {
	switch {
	case tx == nil:
		return fmt.Errorf("%w: nil transaction", domain.ErrMalformedTransaction)
	case tx.ID == "":
		return fmt.Errorf("%w: missing id", domain.ErrMalformedTransaction)
	case len(tx.Payload) == 0:
		return fmt.Errorf("%w: missing payload", domain.ErrMalformedTransaction)
	case tx.Algorithm == "":
		return fmt.Errorf("%w: missing algorithm", domain.ErrMalformedTransaction)
	case tx.KeyID == "":
		return fmt.Errorf("%w: missing key_id", domain.ErrMalformedTransaction)
	case tx.SignedAt.IsZero():
		return fmt.Errorf("%w: missing signed_at", domain.ErrMalformedTransaction)
	case tx.KeyExpiresAt.IsZero():
		return fmt.Errorf("%w: missing key_expires_at", domain.ErrMalformedTransaction)
	case tx.Signature == "":
		return fmt.Errorf("%w: missing signature", domain.ErrMalformedTransaction)
	case tx.SignerKey == "":
		return fmt.Errorf("%w: missing signer_key", domain.ErrMalformedTransaction)
	}
	return nil
}

// Verify はトランザクションをポリシーに照らして検証し、構造化された結果を
// 返す。整形式だが無効な入力に対してはエラーではなく常に結果を返す。
// 各検査の失敗はエラー種別と実行可能な推奨対応を順序付きで積む。
func (s *VerificationService) Verify(ctx context.Context, tx *domain.Transaction) (*domain.VerificationResult, error) {
	if err := validateTransaction(tx); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &domain.VerificationResult{Algorithm: tx.Algorithm}

	// 検査1: 宣言されたアルゴリズムがポリシーテーブルにあること
	tier, policy, known := domain.PolicyForAlgorithm(tx.Algorithm)
	if known {
		result.KeyStrength = policy.KeyLength
		result.QuantumSafe = tier == domain.TierQuantumSafe
	} else {
		result.AddError(domain.ErrorUnknownAlgorithm,
			"use one of the supported algorithms: AES-256, RSA-4096, CRYSTALS-Kyber")
	}

	// 検査2: 署名時点で鍵が失効していないこと
	if !tx.SignedAt.Before(tx.KeyExpiresAt) {
		result.AddError(domain.ErrorExpiredKeyUsed,
			"regenerate key and re-sign the transaction")
	}

	// 検査3〜5: 署名者鍵の形式、署名の形式、署名の照合。
	// 前段が失敗したら後段は検査できないため、この連鎖内のみ短絡する。
	s.verifySignature(tx, result)

	result.Valid = len(result.Errors) == 0
	if result.Valid {
		metrics.Verifications.WithLabelValues("valid").Inc()
	} else {
		metrics.Verifications.WithLabelValues("invalid").Inc()
	}
	return result, nil
}

func (s *VerificationService) verifySignature(tx *domain.Transaction, result *domain.VerificationResult) {
	sigAlg, pubB64, ok := strings.Cut(tx.SignerKey, ":")
	if !ok {
		result.AddError(domain.ErrorUntrustedSignerKey,
			"provide signer_key as <algorithm>:<base64 public key>")
		return
	}
	verifier, ok := crypto.VerifierFor(sigAlg)
	if !ok {
		result.AddError(domain.ErrorUntrustedSignerKey,
			fmt.Sprintf("unsupported signature algorithm %q; use ed25519 or dilithium3", sigAlg))
		return
	}
	publicKey, err := base64.StdEncoding.DecodeString(pubB64)
	if err != nil || len(publicKey) != verifier.PublicKeySize() {
		result.AddError(domain.ErrorUntrustedSignerKey,
			fmt.Sprintf("signer public key must be %d bytes of valid base64", verifier.PublicKeySize()))
		return
	}

	signature, err := base64.StdEncoding.DecodeString(tx.Signature)
	if err != nil {
		result.AddError(domain.ErrorMalformedSignature,
			"signature must be valid base64")
		return
	}
	if len(signature) != verifier.SignatureSize() {
		result.AddError(domain.ErrorMalformedSignature,
			fmt.Sprintf("%s signature must be exactly %d bytes", verifier.Name(), verifier.SignatureSize()))
		return
	}

	if !verifier.Verify(publicKey, crypto.Digest(tx.Payload), signature) {
		result.AddError(domain.ErrorSignatureMismatch,
			"re-sign payload; content was altered after signing")
	}
}
