package model

import "time"

// AuthEventKind は認証状態変更イベントの種類を表す。
type AuthEventKind string

const (
	AuthEventInitialSession AuthEventKind = "INITIAL_SESSION"
	AuthEventSignedIn       AuthEventKind = "SIGNED_IN"
	AuthEventSignedOut      AuthEventKind = "SIGNED_OUT"
	AuthEventTokenRefreshed AuthEventKind = "TOKEN_REFRESHED"
	AuthEventUserUpdated    AuthEventKind = "USER_UPDATED"
)

// AuthEvent は認証サービスが発行するセッション変更イベント。
// Sessionはサインアウト時にnilとなる。
type AuthEvent struct {
	Kind    AuthEventKind `json:"kind"`
	Session *Session      `json:"session,omitempty"`
	At      time.Time     `json:"at"`
}

// UserID はイベントに含まれるユーザーIDを返す。ユーザーが存在しない場合は空文字列。
func (e AuthEvent) UserID() string {
	if e.Session == nil || e.Session.User == nil {
		return ""
	}
	return e.Session.User.ID
}
