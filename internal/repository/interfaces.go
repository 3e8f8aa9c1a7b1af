// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/hagwonmatch/internal/model"
)

var (
	// ErrNotFound は更新・削除対象の行が存在しない場合に返される。
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate は一意制約違反の場合に返される。
	ErrDuplicate = errors.New("duplicate record")
)

// AuthUser は認証に必要なパスワードハッシュを含むユーザー。
type AuthUser struct {
	model.User
	PasswordHash string
}

// AuthUserRepository は認証ユーザーの永続化インターフェース。
type AuthUserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*AuthUser, error)

	// CreateWithProfile はユーザーとprofilesの行を同一トランザクションで作成する。
	// メールアドレスが登録済みの場合はErrDuplicateを返す。
	CreateWithProfile(ctx context.Context, user *AuthUser, profile *model.Profile) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// Extend はセッションの有効期限を延長する。存在しない場合はErrNotFoundを返す。
	Extend(ctx context.Context, id string, expiresAt time.Time) error
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpiredBefore は指定時刻より前に期限切れとなったセッションを削除し、削除件数を返す。
	DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error)
}

// ProfileRepository はprofilesテーブルの永続化インターフェース。
type ProfileRepository interface {
	// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Profile, error)
	// UpdateFullName は表示名を更新する。存在しない場合はErrNotFoundを返す。
	UpdateFullName(ctx context.Context, id, fullName string) error
}

// TeacherProfileRepository は講師プロフィールの永続化インターフェース。
type TeacherProfileRepository interface {
	// FindByID は指定IDの講師プロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.TeacherProfile, error)
	// Create は講師プロフィールを作成する。作成済みの場合はErrDuplicateを返す。
	Create(ctx context.Context, profile *model.TeacherProfile) error
}

// HagwonProfileRepository は語学学校プロフィールの永続化インターフェース。
type HagwonProfileRepository interface {
	// FindByID は指定IDの語学学校プロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.HagwonProfile, error)
	// Create は語学学校プロフィールを作成する。作成済みの場合はErrDuplicateを返す。
	Create(ctx context.Context, profile *model.HagwonProfile) error
}

// JobRepository は求人の永続化インターフェース。
type JobRepository interface {
	// FindByID は指定IDの求人を学校名付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Job, error)
	// Create は求人を作成する。
	Create(ctx context.Context, job *model.Job) error
	// ListActive は掲載中の求人をcreated_at降順で返す。
	ListActive(ctx context.Context, limit int) ([]*model.Job, error)
	// ListByHagwon は語学学校の全求人をcreated_at降順で返す。
	ListByHagwon(ctx context.Context, hagwonID string) ([]*model.Job, error)
	// SetActive は求人の掲載状態を変更する。
	// hagwonIDが所有者でない場合や求人が存在しない場合はErrNotFoundを返す。
	SetActive(ctx context.Context, id, hagwonID string, active bool) error
}

// ApplicationRepository は応募の永続化インターフェース。
type ApplicationRepository interface {
	// FindByID は指定IDの応募を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Application, error)
	// Create は応募を作成する。同じ求人へ応募済みの場合はErrDuplicateを返す。
	Create(ctx context.Context, app *model.Application) error
	// ListByTeacher は講師の応募一覧をcreated_at降順で返す。
	ListByTeacher(ctx context.Context, teacherID string) ([]*model.Application, error)
	// ListByJob は求人への応募一覧をcreated_at降順で返す。
	ListByJob(ctx context.Context, jobID string) ([]*model.Application, error)
	// UpdateStatus は応募のステータスを更新する。存在しない場合はErrNotFoundを返す。
	UpdateStatus(ctx context.Context, id string, status model.ApplicationStatus) error
	// CountSince は講師が指定時刻以降に送信した応募数を返す。
	CountSince(ctx context.Context, teacherID string, since time.Time) (int, error)
}
