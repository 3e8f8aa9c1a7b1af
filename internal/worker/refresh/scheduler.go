// Package refresh はログイン中セッションの自動延長を行うバックグラウンド処理を提供する。
// 有効期限が近づいたセッションを定期的に延長し、失敗時は指数バックオフで再試行する。
package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/hagwonmatch/internal/model"
)

// SessionRefresher は保存済みセッションの取得と延長のインターフェース。
// auth.Serviceが実装する。
type SessionRefresher interface {
	GetSession(ctx context.Context) (*model.Session, error)
	RefreshSession(ctx context.Context) (*model.Session, error)
}

// Recorder はセッション延長の結果を記録するインターフェース。
type Recorder interface {
	RecordSessionRefresh(success bool, duration time.Duration)
}

// Scheduler は期限の近いセッションを延長する。
// 延長に成功するとTOKEN_REFRESHEDイベントが発行され、同期モジュールに伝わる。
type Scheduler struct {
	refresher SessionRefresher
	recorder  Recorder
	logger    *slog.Logger
	threshold time.Duration
	now       func() time.Time

	consecutiveErrors int
	nextAttemptAt     time.Time
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// 残り有効期間がthreshold以下になったセッションを延長対象とする。
func NewScheduler(refresher SessionRefresher, recorder Recorder, threshold time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		refresher: refresher,
		recorder:  recorder,
		logger:    logger,
		threshold: threshold,
		now:       time.Now,
	}
}

// Start はinterval間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("session refresh scheduler started",
		slog.Duration("interval", interval),
		slog.Duration("threshold", s.threshold),
	)

	// 起動直後に1回実行
	s.runAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session refresh scheduler stopped")
			return
		case <-ticker.C:
			s.runAndLog(ctx)
		}
	}
}

func (s *Scheduler) runAndLog(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("session refresh failed",
			slog.String("error", err.Error()),
			slog.Int("consecutive_errors", s.consecutiveErrors),
			slog.Time("next_attempt_at", s.nextAttemptAt),
		)
	}
}

// RunOnce はセッションを1回確認し、必要なら延長する。
// 延長を実行して成功した場合にtrueを返す。
// 失敗した場合はバックオフ期間が経過するまで次の延長を行わない。
func (s *Scheduler) RunOnce(ctx context.Context) (bool, error) {
	now := s.now()
	if now.Before(s.nextAttemptAt) {
		return false, nil
	}

	session, err := s.refresher.GetSession(ctx)
	if err != nil {
		s.applyFailure(now)
		return false, err
	}
	if session == nil {
		s.consecutiveErrors = 0
		return false, nil
	}
	if session.ExpiresAt.Sub(now) > s.threshold {
		return false, nil
	}

	start := time.Now()
	refreshed, err := s.refresher.RefreshSession(ctx)
	duration := time.Since(start)
	if err != nil {
		s.recorder.RecordSessionRefresh(false, duration)
		s.applyFailure(now)
		return false, err
	}
	s.consecutiveErrors = 0
	s.nextAttemptAt = time.Time{}
	if refreshed == nil {
		// 延長中にサインアウトされた
		return false, nil
	}
	s.recorder.RecordSessionRefresh(true, duration)
	return true, nil
}

func (s *Scheduler) applyFailure(now time.Time) {
	s.nextAttemptAt = now.Add(CalculateBackoff(s.consecutiveErrors))
	s.consecutiveErrors++
}
