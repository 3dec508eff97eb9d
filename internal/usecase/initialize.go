package usecase

import (
	"sync"

	"quantum-key-service/internal/crypto"
)

var (
	initOnce sync.Once
	initErr  error
)

// Initialize は暗号プリミティブの自己診断と階層ポリシーテーブルの整合性
// 確認を行う。冪等であり、複数の経路から繰り返し呼んでも安全。2回目以降は
// 初回の結果をそのまま返す。
func Initialize() error {
	initOnce.Do(func() {
		initErr = crypto.SelfTest()
	})
	return initErr
}
