package crypto

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"fmt"

	"quantum-key-service/internal/domain"
)

const rsaKeyBits = 4096

// rsaHybridCipher はRSA-4096-OAEPでセッション鍵をカプセル化し、本体を
// AES-256-GCMで封緘するハイブリッドプリミティブ。鍵素材はPKCS#8 DER。
// 暗号文は OAEP暗号文(512バイト固定) || nonce || GCM暗号文 の形式。
type rsaHybridCipher struct{}

func (c *rsaHybridCipher) Name() string {
	return domain.AlgorithmRSA4096
}

// GenerateMaterial はRSA-4096鍵対を生成する。鍵生成は遅い操作のため
// 別ゴルーチンで実行し、コンテキストの期限切れを即座にエラーとして返す。
func (c *rsaHybridCipher) GenerateMaterial(ctx context.Context) ([]byte, error) {
	type result struct {
		der []byte
		err error
	}
	ch := make(chan result, 1)
	go func() {
		key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
		if err != nil {
			ch <- result{nil, fmt.Errorf("generating RSA key: %w", err)}
			return
		}
		der, err := x509.MarshalPKCS8PrivateKey(key)
		if err != nil {
			ch <- result{nil, fmt.Errorf("marshaling RSA key: %w", err)}
			return
		}
		ch <- result{der, nil}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("RSA key generation: %w", ctx.Err())
	case r := <-ch:
		return r.der, r.err
	}
}

func (c *rsaHybridCipher) Seal(material, plaintext []byte) ([]byte, error) {
	key, err := parseRSAKey(material)
	if err != nil {
		return nil, err
	}

	// セッション鍵をカプセル化してから本体を封緘する
	session := make([]byte, aesKeySize)
	if _, err := rand.Read(session); err != nil {
		return nil, fmt.Errorf("generating session key: %w", err)
	}
	encapsulated, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, &key.PublicKey, session, nil)
	if err != nil {
		return nil, fmt.Errorf("encapsulating session key: %w", err)
	}
	sealed, err := gcmSeal(session, plaintext)
	if err != nil {
		return nil, err
	}
	return append(encapsulated, sealed...), nil
}

func (c *rsaHybridCipher) Open(material, ciphertext []byte) ([]byte, error) {
	key, err := parseRSAKey(material)
	if err != nil {
		return nil, err
	}

	encSize := key.PublicKey.Size()
	if len(ciphertext) < encSize {
		return nil, fmt.Errorf("ciphertext shorter than encapsulated key")
	}
	session, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, key, ciphertext[:encSize], nil)
	if err != nil {
		return nil, fmt.Errorf("decapsulating session key: %w", err)
	}
	return gcmOpen(session, ciphertext[encSize:])
}

func parseRSAKey(material []byte) (*rsa.PrivateKey, error) {
	parsed, err := x509.ParsePKCS8PrivateKey(material)
	if err != nil {
		return nil, fmt.Errorf("parsing RSA key material: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key material is not an RSA private key")
	}
	return key, nil
}
