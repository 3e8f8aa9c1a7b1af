package authsync

import (
	"log/slog"

	"github.com/hitoshi/hagwonmatch/internal/model"
)

type command any

// pullResult は起動時のセッション取得結果。
type pullResult struct {
	session *model.Session
	err     error
}

// refreshRequest は明示的なプロフィール再取得の要求。
type refreshRequest struct {
	done chan struct{}
}

// profileResult はプロフィール取得の結果。発行時のユーザーID・epoch・通し番号を持つ。
type profileResult struct {
	userID  string
	epoch   uint64
	seq     uint64
	profile *model.Profile
	err     error
	done    chan struct{}
}

// signOutRequest はローカル状態の一括消去の要求。
type signOutRequest struct {
	done chan struct{}
}

// run は状態更新ループ。変更通知は受信順に適用する。
func (s *Synchronizer) run(events <-chan model.AuthEvent) {
	defer s.wg.Done()
	defer close(s.done)

	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				s.logger.Warn("auth event stream closed")
				events = nil
				continue
			}
			s.handleEvent(ev)
		case cmd := <-s.cmds:
			s.handle(cmd)
		}
	}
}

func (s *Synchronizer) handle(cmd command) {
	switch c := cmd.(type) {
	case pullResult:
		s.handlePull(c)
	case refreshRequest:
		s.handleRefresh(c)
	case profileResult:
		s.handleProfile(c)
	case signOutRequest:
		s.handleSignOut(c)
	}
}

func (s *Synchronizer) pullSession() {
	defer s.wg.Done()
	session, err := s.auth.GetSession(s.ctx)
	s.deliver(pullResult{session: session, err: err})
}

func (s *Synchronizer) deliver(cmd command) {
	select {
	case s.cmds <- cmd:
	case <-s.done:
	}
}

func (s *Synchronizer) handlePull(r pullResult) {
	if s.streamApplied {
		s.logger.Debug("discarding initial session pull, stream event already applied")
		return
	}
	if r.err != nil {
		s.logger.Warn("failed to get current session", slog.String("error", r.err.Error()))
		s.applySession(nil, false)
	} else {
		s.applySession(r.session, false)
	}
	s.maybeAutoRefresh(false)
}

func (s *Synchronizer) handleEvent(ev model.AuthEvent) {
	s.streamApplied = true
	s.recorder.ObserveAuthEvent(string(ev.Kind))
	s.logger.Debug("auth event received",
		slog.String("kind", string(ev.Kind)),
		slog.String("user_id", ev.UserID()),
	)
	s.applySession(ev.Session, ev.Kind == model.AuthEventSignedOut)
	s.maybeAutoRefresh(ev.Kind == model.AuthEventSignedIn)
}

// applySession はセッションとユーザーを置き換える。
// ユーザーが変わった場合は前のユーザーのプロフィールを同時に破棄する。
func (s *Synchronizer) applySession(session *model.Session, clearProfile bool) {
	next := s.state
	next.Session = session
	next.User = nil
	if session != nil {
		next.User = session.User
	}
	next.Ready = true

	if next.UserID() != s.state.UserID() {
		s.epoch++
		s.autoFetchPending = ""
		clearProfile = true
	}
	if clearProfile {
		next.Profile = nil
	}
	if next.User == nil {
		s.autoFetchedFor = ""
	}
	s.setState(next)
}

// maybeAutoRefresh はユーザーが現れた遷移ごと、およびSIGNED_INごとにプロフィールを取得する。
// 同じユーザーの自動取得が実行中の間は新たに発行しない。
func (s *Synchronizer) maybeAutoRefresh(signedIn bool) {
	u := s.state.User
	if !s.state.Ready || u == nil || s.autoFetchPending == u.ID {
		return
	}
	if !signedIn && s.autoFetchedFor == u.ID {
		return
	}
	s.autoFetchedFor = u.ID
	s.autoFetchPending = u.ID
	s.autoFetchSeq = s.issueFetch(u.ID, nil)
}

func (s *Synchronizer) handleRefresh(r refreshRequest) {
	if s.state.User == nil {
		if s.state.Profile != nil {
			next := s.state
			next.Profile = nil
			s.setState(next)
		}
		close(r.done)
		return
	}
	s.issueFetch(s.state.User.ID, r.done)
}

// issueFetch はプロフィール取得をループ外で実行し、発行した通し番号を返す。結果はコマンドとして戻る。
func (s *Synchronizer) issueFetch(userID string, done chan struct{}) uint64 {
	s.seq++
	r := profileResult{userID: userID, epoch: s.epoch, seq: s.seq, done: done}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		r.profile, r.err = s.profiles.FindByID(s.ctx, userID)
		s.deliver(r)
	}()
	return s.seq
}

func (s *Synchronizer) handleProfile(r profileResult) {
	if r.done != nil {
		defer close(r.done)
	}
	if r.seq == s.autoFetchSeq {
		s.autoFetchPending = ""
	}

	log := s.logger.With(slog.String("user_id", r.userID))
	switch {
	case r.epoch != s.epoch || s.state.UserID() != r.userID:
		log.Debug("discarding profile for previous user")
		s.recorder.ObserveProfileFetch(FetchStale)
	case r.err != nil:
		log.Warn("failed to fetch profile", slog.String("error", r.err.Error()))
		s.recorder.ObserveProfileFetch(FetchError)
	case r.profile == nil:
		log.Warn("profile not found")
		s.recorder.ObserveProfileFetch(FetchNotFound)
	case r.profile.ID != r.userID:
		log.Warn("profile id mismatch", slog.String("profile_id", r.profile.ID))
		s.recorder.ObserveProfileFetch(FetchError)
	case r.seq < s.appliedSeq:
		log.Debug("discarding profile older than the cached one")
		s.recorder.ObserveProfileFetch(FetchStale)
	default:
		s.appliedSeq = r.seq
		next := s.state
		next.Profile = r.profile
		s.setState(next)
		s.recorder.ObserveProfileFetch(FetchApplied)
	}
}

func (s *Synchronizer) handleSignOut(r signOutRequest) {
	if s.state.User != nil {
		s.epoch++
	}
	s.autoFetchedFor = ""
	s.autoFetchPending = ""
	s.setState(State{Ready: true})
	close(r.done)
}
