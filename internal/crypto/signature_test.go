package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
)

func TestEd25519Verifier_VerifyAndTamper(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating keypair: %v", err)
	}
	payload := []byte(`{"tx":"abc"}`)
	sig := SignEd25519(payload, priv)

	verifier, ok := VerifierFor(SignatureEd25519)
	if !ok {
		t.Fatal("want ed25519 verifier, got none")
	}
	if !verifier.Verify(pub, Digest(payload), sig) {
		t.Error("want signature to verify, got mismatch")
	}

	// 署名の1バイト改ざんで検証に失敗すること
	sig[0] ^= 0xFF
	if verifier.Verify(pub, Digest(payload), sig) {
		t.Error("want tampered signature to fail, got success")
	}
}

func TestDilithium3Verifier_VerifyAndTamper(t *testing.T) {
	pub, priv, err := GenerateDilithium3Keypair(rand.Reader)
	if err != nil {
		t.Fatalf("generating keypair: %v", err)
	}
	payload := []byte(`{"tx":"quantum"}`)
	sig, err := SignDilithium3(payload, priv)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	pubBytes, err := pub.MarshalBinary()
	if err != nil {
		t.Fatalf("marshaling public key: %v", err)
	}

	verifier, ok := VerifierFor(SignatureDilithium3)
	if !ok {
		t.Fatal("want dilithium3 verifier, got none")
	}
	if len(sig) != verifier.SignatureSize() {
		t.Errorf("want signature size %d, got %d", verifier.SignatureSize(), len(sig))
	}
	if !verifier.Verify(pubBytes, Digest(payload), sig) {
		t.Error("want signature to verify, got mismatch")
	}

	// ペイロード改ざんで検証に失敗すること
	if verifier.Verify(pubBytes, Digest([]byte(`{"tx":"altered"}`)), sig) {
		t.Error("want altered payload to fail, got success")
	}
}

func TestVerifierFor_Unknown(t *testing.T) {
	if _, ok := VerifierFor("rsa-pss"); ok {
		t.Error("want no verifier for unknown algorithm")
	}
}

func TestDigest_Deterministic(t *testing.T) {
	a := Digest([]byte("payload"))
	b := Digest([]byte("payload"))
	if string(a) != string(b) {
		t.Error("want identical digests for identical payloads")
	}
	if len(a) != 32 {
		t.Errorf("want 32-byte digest, got %d", len(a))
	}
}

func TestSelfTest(t *testing.T) {
	if err := SelfTest(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
