package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"quantum-key-service/internal/domain"
)

const (
	aesKeySize   = 32 // AES-256
	gcmNonceSize = 12
)

// aesGCMCipher はAES-256-GCMによる対称暗号プリミティブ。
// 暗号文は nonce || GCM暗号文 の形式。
type aesGCMCipher struct{}

func (c *aesGCMCipher) Name() string {
	return domain.AlgorithmAES256
}

func (c *aesGCMCipher) GenerateMaterial(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := make([]byte, aesKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating AES key: %w", err)
	}
	return key, nil
}

func (c *aesGCMCipher) Seal(material, plaintext []byte) ([]byte, error) {
	return gcmSeal(material, plaintext)
}

func (c *aesGCMCipher) Open(material, ciphertext []byte) ([]byte, error) {
	return gcmOpen(material, ciphertext)
}

// gcmSeal はAES-GCMで封緘する。RSA/Kyberのハイブリッド構成でも
// セッション鍵による本体の封緘に共用する。
func gcmSeal(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	nonce := make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func gcmOpen(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	if len(ciphertext) < gcmNonceSize {
		return nil, fmt.Errorf("ciphertext shorter than nonce")
	}
	nonce, sealed := ciphertext[:gcmNonceSize], ciphertext[gcmNonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("opening ciphertext: %w", err)
	}
	return plaintext, nil
}
