package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"quantum-key-service/internal/crypto"
	"quantum-key-service/internal/domain"
	"quantum-key-service/internal/metrics"
)

// EncryptionService はペイロードの封緘・開封を提供する。
type EncryptionService struct {
	generator KeyGenerator
	store     KeyStore
	clock     Clock

	// allowExpiredDecrypt は失効鍵による過去の暗号文の復号を許可するか。
	// 新規の暗号化に失効鍵を使うことは設定に関わらず禁止される。
	allowExpiredDecrypt bool
}

// NewEncryptionService は新しいEncryptionServiceを生成する。
func NewEncryptionService(generator KeyGenerator, store KeyStore, clock Clock, allowExpiredDecrypt bool) *EncryptionService {
	return &EncryptionService{
		generator:           generator,
		store:               store,
		clock:               clock,
		allowExpiredDecrypt: allowExpiredDecrypt,
	}
}

// Encrypt はペイロードを指定階層で暗号化し、自己記述エンベロープを返す。
// 前方秘匿性のため暗号化のたびに新しい鍵を生成し、鍵の再利用はしない。
func (s *EncryptionService) Encrypt(ctx context.Context, payload any, tier domain.Tier) (*domain.Envelope, error) {
	canonical, err := json.Marshal(payload)
	if err != nil {
		metrics.Encryptions.WithLabelValues(string(tier), "failure").Inc()
		return nil, fmt.Errorf("%w: serializing payload: %v", domain.ErrEncryptionFailure, err)
	}

	record, err := s.generator.GenerateKey(ctx, tier)
	if err != nil {
		metrics.Encryptions.WithLabelValues(string(tier), "failure").Inc()
		return nil, err
	}
	// 生成直後の鍵だが、失効鍵で新規暗号化しない不変条件はここで守る
	if record.Expired(s.clock.Now()) {
		metrics.Encryptions.WithLabelValues(string(tier), "failure").Inc()
		return nil, fmt.Errorf("%w: key %s", domain.ErrExpiredKeyUsed, record.ID)
	}

	cipher, ok := crypto.CipherFor(record.Algorithm)
	if !ok {
		metrics.Encryptions.WithLabelValues(string(tier), "failure").Inc()
		return nil, fmt.Errorf("no cipher registered for algorithm %q", record.Algorithm)
	}
	ciphertext, err := cipher.Seal(record.Material, canonical)
	if err != nil {
		metrics.Encryptions.WithLabelValues(string(tier), "failure").Inc()
		return nil, fmt.Errorf("%w: %v", domain.ErrEncryptionFailure, err)
	}

	metrics.Encryptions.WithLabelValues(string(tier), "success").Inc()
	return &domain.Envelope{
		Algorithm:  record.Algorithm,
		KeyID:      record.ID,
		Ciphertext: ciphertext,
	}, nil
}

// Decrypt はワイヤ形式のエンベロープを解析して平文（正規化済みJSON）を返す。
func (s *EncryptionService) Decrypt(ctx context.Context, wire string) ([]byte, error) {
	envelope, err := domain.ParseEnvelope(wire)
	if err != nil {
		return nil, err
	}

	record, err := s.store.Get(ctx, envelope.KeyID)
	if err != nil {
		return nil, err
	}
	if record.Algorithm != envelope.Algorithm {
		return nil, fmt.Errorf("%w: algorithm %q does not match key %s", domain.ErrMalformedEnvelope, envelope.Algorithm, record.ID)
	}
	if !s.allowExpiredDecrypt && record.Expired(s.clock.Now()) {
		return nil, fmt.Errorf("%w: key %s", domain.ErrExpiredKeyUsed, record.ID)
	}

	cipher, ok := crypto.CipherFor(record.Algorithm)
	if !ok {
		return nil, fmt.Errorf("no cipher registered for algorithm %q", record.Algorithm)
	}
	plaintext, err := cipher.Open(record.Material, envelope.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("opening envelope: %w", err)
	}
	return plaintext, nil
}
