package refresh

import "time"

const (
	// initialBackoff は延長失敗時の初回待機時間（15秒）。
	initialBackoff = 15 * time.Second
	// maxBackoff は待機時間の上限（5分）。
	maxBackoff = 5 * time.Minute
)

// CalculateBackoff は連続失敗回数に基づいて指数バックオフ遅延を計算する。
// 初回15秒、2倍ずつ増加、最大5分。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
