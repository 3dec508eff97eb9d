package crypto

import (
	"context"
	"fmt"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/kyber/kyber768"

	"quantum-key-service/internal/domain"
)

// kyberScheme は耐量子階層で使用するKEM。
var kyberScheme kem.Scheme = kyber768.Scheme()

// kyberCipher はCRYSTALS-Kyber (Kyber768) のKEMで共有秘密をカプセル化し、
// 本体をAES-256-GCMで封緘するハイブリッドプリミティブ。鍵素材は秘密鍵の
// バイナリ表現。暗号文は KEM暗号文(固定長) || nonce || GCM暗号文 の形式。
type kyberCipher struct{}

func (c *kyberCipher) Name() string {
	return domain.AlgorithmKyber
}

func (c *kyberCipher) GenerateMaterial(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, priv, err := kyberScheme.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generating Kyber key pair: %w", err)
	}
	material, err := priv.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshaling Kyber key: %w", err)
	}
	return material, nil
}

func (c *kyberCipher) Seal(material, plaintext []byte) ([]byte, error) {
	priv, err := kyberScheme.UnmarshalBinaryPrivateKey(material)
	if err != nil {
		return nil, fmt.Errorf("parsing Kyber key material: %w", err)
	}
	encapsulated, shared, err := kyberScheme.Encapsulate(priv.Public())
	if err != nil {
		return nil, fmt.Errorf("encapsulating shared secret: %w", err)
	}
	sealed, err := gcmSeal(shared, plaintext)
	if err != nil {
		return nil, err
	}
	return append(encapsulated, sealed...), nil
}

func (c *kyberCipher) Open(material, ciphertext []byte) ([]byte, error) {
	priv, err := kyberScheme.UnmarshalBinaryPrivateKey(material)
	if err != nil {
		return nil, fmt.Errorf("parsing Kyber key material: %w", err)
	}
	encSize := kyberScheme.CiphertextSize()
	if len(ciphertext) < encSize {
		return nil, fmt.Errorf("ciphertext shorter than encapsulated secret")
	}
	shared, err := kyberScheme.Decapsulate(priv, ciphertext[:encSize])
	if err != nil {
		return nil, fmt.Errorf("decapsulating shared secret: %w", err)
	}
	return gcmOpen(shared, ciphertext[encSize:])
}
