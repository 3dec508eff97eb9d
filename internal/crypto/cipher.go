// Package crypto は名前で選択・差し替え可能な暗号プリミティブを提供する。
// 階層ポリシーテーブルのアルゴリズム名がそのままレジストリのキーになる。
package crypto

import (
	"context"

	"quantum-key-service/internal/domain"
)

// Cipher はペイロードの封緘・開封を行うプリミティブ。
// 鍵素材の内部形式はプリミティブごとに異なり、外部からは不透明なバイト列として扱う。
type Cipher interface {
	// Name はポリシーテーブル上のアルゴリズム名を返す。
	Name() string
	// GenerateMaterial は新しい鍵素材を生成する。コンテキストの期限切れは
	// エラーとして呼び出し側に返す（ハングさせない）。
	GenerateMaterial(ctx context.Context) ([]byte, error)
	// Seal は鍵素材で平文を封緘する。
	Seal(material, plaintext []byte) ([]byte, error)
	// Open は鍵素材で暗号文を開封する。
	Open(material, ciphertext []byte) ([]byte, error)
}

// ciphers は登録済みプリミティブのレジストリ。初期化後は読み取り専用。
var ciphers = map[string]Cipher{
	domain.AlgorithmAES256:  &aesGCMCipher{},
	domain.AlgorithmRSA4096: &rsaHybridCipher{},
	domain.AlgorithmKyber:   &kyberCipher{},
}

// CipherFor はアルゴリズム名に対応するプリミティブを返す。
func CipherFor(name string) (Cipher, bool) {
	c, ok := ciphers[name]
	return c, ok
}
