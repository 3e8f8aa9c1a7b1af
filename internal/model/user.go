// Package model はドメインモデルを定義する。
package model

import "time"

// UserType はマーケットプレイス上のユーザー種別を表す。
type UserType string

const (
	// UserTypeTeacher は英語講師（求職者）を表す。
	UserTypeTeacher UserType = "teacher"
	// UserTypeHagwon は語学学校（求人者）を表す。
	UserTypeHagwon UserType = "hagwon"
)

// Valid はUserTypeが定義済みの値かどうかを返す。
func (t UserType) Valid() bool {
	return t == UserTypeTeacher || t == UserTypeHagwon
}

// UserMetadata はサインアップ時に登録されるユーザーメタデータ。
type UserMetadata struct {
	FullName string   `json:"full_name,omitempty"`
	UserType UserType `json:"user_type,omitempty"`
}

// User は認証サービスが管理するユーザーを表す。
type User struct {
	ID               string       `json:"id"`
	Email            string       `json:"email"`
	Metadata         UserMetadata `json:"user_metadata"`
	EmailConfirmedAt *time.Time   `json:"email_confirmed_at,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// Session はユーザーのログインセッションを表す。
// AccessTokenはセッション発行時に署名されたJWT。
type Session struct {
	ID          string    `json:"id"`
	AccessToken string    `json:"access_token"`
	UserID      string    `json:"user_id"`
	User        *User     `json:"user,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Expired はセッションが指定時刻の時点で期限切れかどうかを返す。
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
