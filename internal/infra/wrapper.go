package infra

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const (
	localKeySize   = 32 // AES-256
	localNonceSize = 12
)

// LocalWrapper はローカルのマスター鍵（AES-256-GCM）で鍵素材を保存時ラップする。
// Cloud KMSが使えない環境向けのフォールバック。keystore.Wrapperを実装する。
type LocalWrapper struct {
	masterKey []byte
}

// NewLocalWrapper はbase64エンコードされた32バイトのマスター鍵から
// LocalWrapperを生成する。鍵は `openssl rand -base64 32` などで生成する。
func NewLocalWrapper(masterKeyB64 string) (*LocalWrapper, error) {
	if masterKeyB64 == "" {
		return nil, fmt.Errorf("master key is required; generate one with: openssl rand -base64 32")
	}
	key, err := base64.StdEncoding.DecodeString(masterKeyB64)
	if err != nil {
		return nil, fmt.Errorf("decoding master key: %w", err)
	}
	if len(key) != localKeySize {
		return nil, fmt.Errorf("master key must decode to %d bytes, got %d", localKeySize, len(key))
	}
	return &LocalWrapper{masterKey: key}, nil
}

// Wrap は鍵素材をマスター鍵で暗号化する。出力は nonce || GCM暗号文。
func (w *LocalWrapper) Wrap(ctx context.Context, plaintext []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	gcm, err := w.gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, localNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Unwrap はラップ済み鍵素材をマスター鍵で復号する。
func (w *LocalWrapper) Unwrap(ctx context.Context, wrapped []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	gcm, err := w.gcm()
	if err != nil {
		return nil, err
	}
	if len(wrapped) < localNonceSize {
		return nil, fmt.Errorf("wrapped material shorter than nonce")
	}
	plaintext, err := gcm.Open(nil, wrapped[:localNonceSize], wrapped[localNonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("unwrapping key material: %w", err)
	}
	return plaintext, nil
}

func (w *LocalWrapper) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(w.masterKey)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
