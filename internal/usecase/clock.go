// Package usecase はアプリケーションのユースケースを実装する。
package usecase

import "time"

// Clock は現在時刻の供給源。失効判定を決定的にテストするため注入可能にする。
type Clock interface {
	Now() time.Time
}

// SystemClock はシステム時刻を返すClock実装。
type SystemClock struct{}

// Now は現在のUTC時刻を返す。
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
