package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Transaction は検証対象のトランザクション。署名はSHA3-256(Payload)の
// ダイジェストに対して付与され、SignerKeyは "<署名アルゴリズム>:<base64公開鍵>"
// 形式で検証用公開鍵を運ぶ。
type Transaction struct {
	ID           string          `json:"id"`
	Payload      json.RawMessage `json:"payload"`
	Algorithm    string          `json:"algorithm"`
	KeyID        string          `json:"key_id"`
	SignedAt     time.Time       `json:"signed_at"`
	KeyExpiresAt time.Time       `json:"key_expires_at"`
	Signature    string          `json:"signature"`
	SignerKey    string          `json:"signer_key"`
}

// ErrorKind は検証エラーの種別を表す。
type ErrorKind string

const (
	// ErrorUnknownAlgorithm は宣言されたアルゴリズムが未サポートであることを表す。
	ErrorUnknownAlgorithm ErrorKind = "unknown_algorithm"
	// ErrorExpiredKeyUsed は署名時点で鍵が失効していたことを表す。
	ErrorExpiredKeyUsed ErrorKind = "expired_key_used"
	// ErrorUntrustedSignerKey は署名者公開鍵の形式が不正であることを表す。
	ErrorUntrustedSignerKey ErrorKind = "untrusted_signer_key"
	// ErrorMalformedSignature は署名の形式がアルゴリズムの期待と一致しないことを表す。
	ErrorMalformedSignature ErrorKind = "malformed_signature"
	// ErrorSignatureMismatch は署名がペイロードと照合できなかったことを表す。
	ErrorSignatureMismatch ErrorKind = "signature_mismatch"
)

// VerificationResult は検証の構造化された結果。整形式だが無効な
// トランザクションに対しても、例外ではなく常にこの結果を返す。
type VerificationResult struct {
	Valid           bool        `json:"valid"`
	Algorithm       string      `json:"algorithm"`
	KeyStrength     int         `json:"key_strength"`
	QuantumSafe     bool        `json:"quantum_safe"`
	Errors          []ErrorKind `json:"errors"`
	Recommendations []string    `json:"recommendations"`
}

// AddError は検証エラーと対応する推奨対応を順序を保って追記する。
func (r *VerificationResult) AddError(kind ErrorKind, recommendation string) {
	r.Errors = append(r.Errors, kind)
	r.Recommendations = append(r.Recommendations, recommendation)
}

// Err は検証結果をエラーとして返す。有効な結果はnil、無効な結果は
// エラー種別を添えたErrVerificationFailed。終了コードで成否を伝える
// 呼び出し側（CLIなど）が使用する。
func (r *VerificationResult) Err() error {
	if r.Valid {
		return nil
	}
	kinds := make([]string, len(r.Errors))
	for i, kind := range r.Errors {
		kinds[i] = string(kind)
	}
	return fmt.Errorf("%w: %s", ErrVerificationFailed, strings.Join(kinds, ", "))
}
