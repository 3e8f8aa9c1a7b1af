package authsync

import "github.com/hitoshi/hagwonmatch/internal/model"

// Phase は同期状態のフェーズを表す。
type Phase string

const (
	PhaseUninitialized Phase = "UNINITIALIZED"
	PhaseLoading       Phase = "LOADING"
	PhaseAuthenticated Phase = "AUTHENTICATED"
	PhaseAnonymous     Phase = "ANONYMOUS"
)

// State は現在のアイデンティティのスナップショット。
// ポインタの参照先は共有されるため、呼び出し側で変更してはならない。
type State struct {
	User    *model.User
	Session *model.Session
	Profile *model.Profile
	// Ready は最初のセッション解決が完了したかどうか。
	Ready bool
}

// UserID は現在のユーザーIDを返す。未ログインの場合は空文字列。
func (s State) UserID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

// Consistent はProfileがUserに属していることを検証する。
func (s State) Consistent() bool {
	if s.Profile == nil {
		return true
	}
	return s.User != nil && s.Profile.ID == s.User.ID
}
