package domain

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Envelope は暗号化結果を自己記述形式で保持する。復号側はサイドチャネルの
// メタデータなしでアルゴリズムと鍵を特定できる。
type Envelope struct {
	Algorithm  string
	KeyID      string
	Ciphertext []byte
}

// String はワイヤ形式 "<algorithm>:<keyId>:<base64暗号文>" を返す。
func (e *Envelope) String() string {
	return e.Algorithm + ":" + e.KeyID + ":" + base64.StdEncoding.EncodeToString(e.Ciphertext)
}

// ParseEnvelope はワイヤ形式のエンベロープを解析する。
// 最初の2つの":"のみで分割するため、base64部分に":"が含まれても安全。
func ParseEnvelope(s string) (*Envelope, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected <algorithm>:<keyId>:<ciphertext>", ErrMalformedEnvelope)
	}
	if parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("%w: empty algorithm or key id", ErrMalformedEnvelope)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ciphertext base64", ErrMalformedEnvelope)
	}
	return &Envelope{
		Algorithm:  parts[0],
		KeyID:      parts[1],
		Ciphertext: ciphertext,
	}, nil
}
