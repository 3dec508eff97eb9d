package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidTier は認識されないセキュリティ階層が指定された場合のエラー。
	ErrInvalidTier = errors.New("invalid security tier")

	// ErrKeyNotFound は指定されたIDの鍵が存在しない場合のエラー。
	ErrKeyNotFound = errors.New("key not found")

	// ErrExpiredKeyUsed は失効した鍵を使用しようとした場合のエラー。
	ErrExpiredKeyUsed = errors.New("expired key used")

	// ErrEncryptionFailure はペイロードの直列化または封緘に失敗した場合のエラー。
	ErrEncryptionFailure = errors.New("encryption failure")

	// ErrMalformedEnvelope は暗号化エンベロープのワイヤ形式が不正な場合のエラー。
	ErrMalformedEnvelope = errors.New("malformed encryption envelope")

	// ErrMalformedTransaction は検証対象トランザクションに必須フィールドが
	// 欠けている場合のエラー。境界で即座に失敗させる。
	ErrMalformedTransaction = errors.New("malformed transaction")

	// ErrDistributionPartial は鍵配布が一部のノードで失敗した場合のエラー。
	ErrDistributionPartial = errors.New("distribution partially failed")

	// ErrVerificationFailed は検証が無効な結果で完了したことを表す。
	// VerificationResult.Errが無効な結果をこのエラーに変換する。
	ErrVerificationFailed = errors.New("verification failed")
)

// DistributionPartialError は一部ノードへの鍵配布が失敗したことを表す。
// 成功したノードの割り当ては破棄されず、呼び出し側は失敗ノードのみ再試行できる。
type DistributionPartialError struct {
	FailedNodes []string
}

// Error はエラーメッセージを返す。
func (e *DistributionPartialError) Error() string {
	return fmt.Sprintf("%v: nodes [%s]", ErrDistributionPartial, strings.Join(e.FailedNodes, ", "))
}

// Is はerrors.IsでErrDistributionPartialと照合できるようにする。
func (e *DistributionPartialError) Is(target error) bool {
	return target == ErrDistributionPartial
}
