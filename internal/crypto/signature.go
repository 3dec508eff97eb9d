package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"
)

// 署名アルゴリズム名。SignerKeyの "<alg>:<base64公開鍵>" のalg部分に対応する。
const (
	SignatureEd25519    = "ed25519"
	SignatureDilithium3 = "dilithium3"
)

// Digest は署名対象のダイジェストを計算する。署名は常にこのダイジェストに
// 対して付与・検証される。
func Digest(payload []byte) []byte {
	sum := sha3.Sum256(payload)
	return sum[:]
}

// Verifier は署名検証プリミティブ。
type Verifier interface {
	Name() string
	PublicKeySize() int
	SignatureSize() int
	// Verify は公開鍵でダイジェストに対する署名を検証する。
	// 鍵・署名のサイズ検査は呼び出し側で済んでいる前提。
	Verify(publicKey, digest, signature []byte) bool
}

var verifiers = map[string]Verifier{
	SignatureEd25519:    ed25519Verifier{},
	SignatureDilithium3: dilithium3Verifier{},
}

// VerifierFor は署名アルゴリズム名に対応する検証プリミティブを返す。
func VerifierFor(name string) (Verifier, bool) {
	v, ok := verifiers[name]
	return v, ok
}

type ed25519Verifier struct{}

func (ed25519Verifier) Name() string       { return SignatureEd25519 }
func (ed25519Verifier) PublicKeySize() int { return ed25519.PublicKeySize }
func (ed25519Verifier) SignatureSize() int { return ed25519.SignatureSize }

func (ed25519Verifier) Verify(publicKey, digest, signature []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(publicKey), digest, signature)
}

type dilithium3Verifier struct{}

func (dilithium3Verifier) Name() string       { return SignatureDilithium3 }
func (dilithium3Verifier) PublicKeySize() int { return mode3.PublicKeySize }
func (dilithium3Verifier) SignatureSize() int { return mode3.SignatureSize }

func (dilithium3Verifier) Verify(publicKey, digest, signature []byte) bool {
	var pk mode3.PublicKey
	if err := pk.UnmarshalBinary(publicKey); err != nil {
		return false
	}
	return mode3.Verify(&pk, digest, signature)
}

// SignEd25519 はダイジェストに対するEd25519署名を返す。CLIおよびテストで
// 検証対象トランザクションを構築するために使用する。
func SignEd25519(payload []byte, privateKey ed25519.PrivateKey) []byte {
	return ed25519.Sign(privateKey, Digest(payload))
}

// SignDilithium3 はダイジェストに対するDilithium3署名を返す。
func SignDilithium3(payload []byte, privateKey *mode3.PrivateKey) ([]byte, error) {
	if privateKey == nil {
		return nil, fmt.Errorf("missing private key")
	}
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(privateKey, Digest(payload), sig)
	return sig, nil
}

// GenerateDilithium3Keypair は新しいDilithium3鍵対を返す。
func GenerateDilithium3Keypair(random io.Reader) (*mode3.PublicKey, *mode3.PrivateKey, error) {
	if random == nil {
		random = rand.Reader
	}
	return mode3.GenerateKey(random)
}
