// Package authsync はプロセス全体で共有するセッション・ユーザー・プロフィールを
// 認証サービスとプロフィールストアに追従させる。
//
// 状態の更新は単一のループgoroutineが型付きコマンドを順に処理して行い、
// 読み取り側はRWMutex越しにスナップショットを取得する。
package authsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hitoshi/hagwonmatch/internal/model"
)

var (
	// ErrAlreadyStarted はStartが2回以上呼ばれた場合に返される。
	ErrAlreadyStarted = errors.New("synchronizer already started")
	// ErrNotStarted はStart前に状態更新を要求した場合に返される。
	ErrNotStarted = errors.New("synchronizer not started")
	// ErrClosed はClose後に操作した場合に返される。
	ErrClosed = errors.New("synchronizer closed")
)

// AuthService はセッションの取得・変更通知・サインアウトを提供する認証サービス。
type AuthService interface {
	GetSession(ctx context.Context) (*model.Session, error)
	Subscribe(ctx context.Context) (<-chan model.AuthEvent, func(), error)
	SignOut(ctx context.Context) error
}

// ProfileFetcher はユーザーIDでプロフィールを1件取得する。
// 見つからない場合はnil, nilを返す。
type ProfileFetcher interface {
	FindByID(ctx context.Context, userID string) (*model.Profile, error)
}

// Recorder は同期処理の結果を記録するメトリクス出力先。
type Recorder interface {
	ObserveAuthEvent(kind string)
	ObserveProfileFetch(outcome string)
}

// プロフィール取得結果の分類
const (
	FetchApplied  = "applied"
	FetchStale    = "stale"
	FetchError    = "error"
	FetchNotFound = "not_found"
)

type nopRecorder struct{}

func (nopRecorder) ObserveAuthEvent(string)    {}
func (nopRecorder) ObserveProfileFetch(string) {}

// Option はSynchronizerの設定を変更する。
type Option func(*Synchronizer)

// WithLogger はロガーを設定する。
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synchronizer) { s.logger = logger }
}

// WithRecorder はメトリクス出力先を設定する。
func WithRecorder(r Recorder) Option {
	return func(s *Synchronizer) { s.recorder = r }
}

// Synchronizer は{Session, User, Profile}の組とreadyフラグを保持する。
type Synchronizer struct {
	auth     AuthService
	profiles ProfileFetcher
	logger   *slog.Logger
	recorder Recorder

	lifecycle sync.Mutex
	started   atomic.Bool
	closed    bool
	ctx       context.Context
	cancel    context.CancelFunc
	cmds      chan command
	done      chan struct{}
	wg        sync.WaitGroup
	unsubOnce sync.Once
	unsub     func()

	mu          sync.RWMutex
	state       State
	readyCh     chan struct{}
	readyClosed bool
	watchers    map[int]chan State
	nextWatcher int

	// 以下はループgoroutineのみが触る
	epoch            uint64 // ユーザーが切り替わるたびに増える
	seq              uint64 // 発行済みプロフィール取得の通し番号
	appliedSeq       uint64
	autoFetchedFor   string
	autoFetchPending string // 実行中の自動取得のユーザーID
	autoFetchSeq     uint64
	streamApplied    bool
}

// New はSynchronizerを生成する。Startを呼ぶまで状態は更新されない。
func New(auth AuthService, profiles ProfileFetcher, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		auth:     auth,
		profiles: profiles,
		logger:   slog.Default(),
		recorder: nopRecorder{},
		cmds:     make(chan command),
		done:     make(chan struct{}),
		readyCh:  make(chan struct{}),
		watchers: make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start は変更通知の購読と状態更新ループを開始し、現在のセッションの取得を並行して行う。
// 1回だけ呼び出せる。
func (s *Synchronizer) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.started.Load() {
		return ErrAlreadyStarted
	}

	events, unsub, err := s.auth.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to auth events: %w", err)
	}
	s.unsub = unsub
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started.Store(true)

	s.wg.Add(2)
	go s.run(events)
	go s.pullSession()

	s.logger.Debug("session synchronizer started")
	return nil
}

// Close は購読を解除し、ループと実行中の取得処理の終了を待つ。
func (s *Synchronizer) Close() {
	s.lifecycle.Lock()
	if s.closed {
		s.lifecycle.Unlock()
		return
	}
	s.closed = true
	started := s.started.Load()
	s.lifecycle.Unlock()

	if started {
		s.cancel()
		s.wg.Wait()
		s.unsubscribe()
	} else {
		close(s.done)
	}

	s.mu.Lock()
	for id, ch := range s.watchers {
		close(ch)
		delete(s.watchers, id)
	}
	s.mu.Unlock()
}

func (s *Synchronizer) unsubscribe() {
	s.unsubOnce.Do(func() {
		if s.unsub != nil {
			s.unsub()
		}
	})
}

// State は現在の状態のスナップショットを返す。
func (s *Synchronizer) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Phase は現在のフェーズを返す。
func (s *Synchronizer) Phase() Phase {
	if !s.started.Load() {
		return PhaseUninitialized
	}
	st := s.State()
	switch {
	case !st.Ready:
		return PhaseLoading
	case st.User != nil:
		return PhaseAuthenticated
	default:
		return PhaseAnonymous
	}
}

// WaitReady は最初のセッション解決が完了するまで待つ。
func (s *Synchronizer) WaitReady(ctx context.Context) error {
	select {
	case <-s.readyCh:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Watch は状態が変わるたびにスナップショットを受け取るチャネルを返す。
// 受信が追いつかない場合は最新の状態だけが残る。cancelで購読を解除する。
func (s *Synchronizer) Watch() (<-chan State, func()) {
	ch := make(chan State, 1)

	s.mu.Lock()
	if s.isClosed() {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = ch
	ch <- s.state
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if w, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(w)
		}
	}
	return ch, cancel
}

func (s *Synchronizer) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// RefreshProfile は現在のユーザーのプロフィールを取得し直す。
// ユーザーがいない場合はプロフィールを消去する。
// 取得に失敗してもキャッシュは変更せずエラーも返さない。
// 自身の取得結果が反映または破棄されるまで待つ。
func (s *Synchronizer) RefreshProfile(ctx context.Context) error {
	done := make(chan struct{})
	if err := s.send(ctx, refreshRequest{done: done}); err != nil {
		return err
	}
	return s.wait(ctx, done)
}

// SignOut は認証サービスにサインアウトを要求し、結果にかかわらず
// ユーザー・セッション・プロフィールを一度に消去する。リモートのエラーはそのまま返す。
func (s *Synchronizer) SignOut(ctx context.Context) error {
	remoteErr := s.auth.SignOut(ctx)
	if remoteErr != nil {
		s.logger.Warn("remote sign-out failed, clearing local state anyway",
			slog.String("error", remoteErr.Error()),
		)
	}

	done := make(chan struct{})
	// ローカルの消去はリクエストのctxが切れていても行う
	clearCtx := context.WithoutCancel(ctx)
	if err := s.send(clearCtx, signOutRequest{done: done}); err == nil {
		_ = s.wait(clearCtx, done)
	}
	return remoteErr
}

func (s *Synchronizer) send(ctx context.Context, cmd command) error {
	if !s.started.Load() {
		return ErrNotStarted
	}
	select {
	case s.cmds <- cmd:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Synchronizer) wait(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// setState は状態を置き換え、監視者へ通知する。ループからのみ呼ばれる。
func (s *Synchronizer) setState(next State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = next
	if next.Ready && !s.readyClosed {
		s.readyClosed = true
		close(s.readyCh)
	}
	for _, ch := range s.watchers {
		select {
		case ch <- next:
		default:
			// 未受信の古い状態を捨てて最新に置き換える
			select {
			case <-ch:
			default:
			}
			ch <- next
		}
	}
}
