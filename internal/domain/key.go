// Package domain はドメインモデルとビジネスルールを定義する。
package domain

import "time"

// Tier はセキュリティ階層を表す。認識されない値は拒否され、
// 既定値への暗黙のフォールバックは行わない。
type Tier string

const (
	// TierStandard は標準階層を表す。
	TierStandard Tier = "standard"
	// TierHigh は高セキュリティ階層を表す。
	TierHigh Tier = "high"
	// TierQuantumSafe は耐量子階層を表す。
	TierQuantumSafe Tier = "quantum_safe"
)

// サポートするアルゴリズム名。階層ポリシーテーブルで固定される。
const (
	AlgorithmAES256  = "AES-256"
	AlgorithmRSA4096 = "RSA-4096"
	AlgorithmKyber   = "CRYSTALS-Kyber"
)

// KeyTTL は鍵の有効期間。生成時刻から固定で24時間。
const KeyTTL = 24 * time.Hour

// ParseTier は文字列をTierに変換する。認識されない値はErrInvalidTier。
func ParseTier(s string) (Tier, error) {
	switch t := Tier(s); t {
	case TierStandard, TierHigh, TierQuantumSafe:
		return t, nil
	default:
		return "", ErrInvalidTier
	}
}

// TierPolicy は階層ごとの暗号アルゴリズムと鍵強度を定義する。
type TierPolicy struct {
	Algorithm string
	KeyLength int // ポリシー上の強度表記（ビット）
}

// tierPolicies は階層ポリシーテーブル。固定。
var tierPolicies = map[Tier]TierPolicy{
	TierStandard:    {Algorithm: AlgorithmAES256, KeyLength: 128},
	TierHigh:        {Algorithm: AlgorithmRSA4096, KeyLength: 256},
	TierQuantumSafe: {Algorithm: AlgorithmKyber, KeyLength: 512},
}

// PolicyFor は指定階層のポリシーを返す。未知の階層はErrInvalidTier。
func PolicyFor(tier Tier) (TierPolicy, error) {
	p, ok := tierPolicies[tier]
	if !ok {
		return TierPolicy{}, ErrInvalidTier
	}
	return p, nil
}

// PolicyForAlgorithm はアルゴリズム名から階層とポリシーを逆引きする。
func PolicyForAlgorithm(algorithm string) (Tier, TierPolicy, bool) {
	for tier, p := range tierPolicies {
		if p.Algorithm == algorithm {
			return tier, p, true
		}
	}
	return "", TierPolicy{}, false
}

// AllTiers は定義済みの全階層を返す。
func AllTiers() []Tier {
	return []Tier{TierStandard, TierHigh, TierQuantumSafe}
}

// KeyRecord は暗号鍵エンティティを表す。生成後のフィールドは不変で、
// ローテーションは編集ではなく新レコードへの置換で行う。
type KeyRecord struct {
	ID        string
	Tier      Tier
	Algorithm string
	KeyLength int
	Material  []byte // プリミティブ固有の秘密鍵素材（外部には返さない）
	CreatedAt time.Time
	ExpiresAt time.Time
}

// QuantumSafe は鍵が耐量子階層に属するかを返す。
func (k *KeyRecord) QuantumSafe() bool {
	return k.Tier == TierQuantumSafe
}

// Expired は指定時刻で鍵が失効しているかを返す。ExpiresAtちょうどは失効扱い。
func (k *KeyRecord) Expired(now time.Time) bool {
	return !now.Before(k.ExpiresAt)
}
