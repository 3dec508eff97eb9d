package crypto

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"time"

	"quantum-key-service/internal/domain"
)

const selfTestTimeout = 30 * time.Second

// SelfTest は登録済みの全プリミティブに対して封緘・開封および署名検証の
// 往復診断を行う。階層ポリシーテーブルの各アルゴリズムにプリミティブが
// 対応していることも確認する。サービス初期化時に一度だけ実行される。
func SelfTest() error {
	ctx, cancel := context.WithTimeout(context.Background(), selfTestTimeout)
	defer cancel()

	probe := []byte(`{"self_test":true}`)

	for _, tier := range domain.AllTiers() {
		policy, err := domain.PolicyFor(tier)
		if err != nil {
			return err
		}
		c, ok := CipherFor(policy.Algorithm)
		if !ok {
			return fmt.Errorf("no cipher registered for algorithm %q (tier %s)", policy.Algorithm, tier)
		}
		material, err := c.GenerateMaterial(ctx)
		if err != nil {
			return fmt.Errorf("self test %s: %w", c.Name(), err)
		}
		sealed, err := c.Seal(material, probe)
		if err != nil {
			return fmt.Errorf("self test %s: %w", c.Name(), err)
		}
		opened, err := c.Open(material, sealed)
		if err != nil {
			return fmt.Errorf("self test %s: %w", c.Name(), err)
		}
		if !bytes.Equal(opened, probe) {
			return fmt.Errorf("self test %s: round trip mismatch", c.Name())
		}
	}

	// Ed25519検証経路
	edPub, edPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("self test ed25519: %w", err)
	}
	if v, _ := VerifierFor(SignatureEd25519); !v.Verify(edPub, Digest(probe), SignEd25519(probe, edPriv)) {
		return fmt.Errorf("self test ed25519: signature did not verify")
	}

	// Dilithium3検証経路
	dPub, dPriv, err := GenerateDilithium3Keypair(rand.Reader)
	if err != nil {
		return fmt.Errorf("self test dilithium3: %w", err)
	}
	dSig, err := SignDilithium3(probe, dPriv)
	if err != nil {
		return fmt.Errorf("self test dilithium3: %w", err)
	}
	dPubBytes, err := dPub.MarshalBinary()
	if err != nil {
		return fmt.Errorf("self test dilithium3: %w", err)
	}
	if v, _ := VerifierFor(SignatureDilithium3); !v.Verify(dPubBytes, Digest(probe), dSig) {
		return fmt.Errorf("self test dilithium3: signature did not verify")
	}

	return nil
}
