// Package authform はログイン・サインアップフォームの送信処理を提供する。
package authform

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/hagwonmatch/internal/auth"
	"github.com/hitoshi/hagwonmatch/internal/model"
)

// Mode はフォームの動作モードを表す。
type Mode string

const (
	ModeLogin  Mode = "login"
	ModeSignUp Mode = "signup"
)

// 画面に表示するメッセージ
const (
	MessageCheckEmail     = "Check your email for the confirmation link!"
	MessageAccountCreated = "Account created successfully!"
	MessageLoggedIn       = "Logged in successfully!"
	MessageFallbackError  = "An error occurred"
)

// Authenticator はフォームが利用する認証操作のインターフェース。
type Authenticator interface {
	SignUp(ctx context.Context, creds auth.Credentials, meta model.UserMetadata) (*model.Session, *model.User, error)
	SignInWithPassword(ctx context.Context, creds auth.Credentials) (*model.Session, error)
}

// Submission はフォームの入力値。
type Submission struct {
	Mode     Mode           `json:"mode"`
	Email    string         `json:"email"`
	Password string         `json:"password"`
	FullName string         `json:"full_name"`
	UserType model.UserType `json:"user_type"`
}

// Result はフォーム送信の結果。
// MessageとErrorは排他的で、どちらか一方のみが設定される。
// CodeはErrorの原因がAPIErrorの場合のエラーコード。
// Completedはサインイン済みの状態になり、画面遷移してよい場合にtrueとなる。
type Result struct {
	Message   string         `json:"message,omitempty"`
	Error     string         `json:"error,omitempty"`
	Code      string         `json:"code,omitempty"`
	Completed bool           `json:"completed"`
	Session   *model.Session `json:"-"`
}

// SignInRecorder はログイン試行の結果を記録する。
type SignInRecorder interface {
	RecordSignIn(success bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordSignIn(bool) {}

// Form はフォーム送信を処理する。
type Form struct {
	auth     Authenticator
	recorder SignInRecorder
	logger   *slog.Logger
}

// New はFormを生成する。
func New(authenticator Authenticator, logger *slog.Logger) *Form {
	if logger == nil {
		logger = slog.Default()
	}
	return &Form{auth: authenticator, recorder: nopRecorder{}, logger: logger}
}

// WithRecorder はログイン結果の記録先を設定したFormを返す。
func (f *Form) WithRecorder(r SignInRecorder) *Form {
	f.recorder = r
	return f
}

// Submit はモードに応じてサインアップまたはログインを実行する。
// 認証サービスのエラーメッセージはそのままResult.Errorに設定される。
func (f *Form) Submit(ctx context.Context, sub Submission) *Result {
	creds := auth.Credentials{Email: sub.Email, Password: sub.Password}

	switch sub.Mode {
	case ModeSignUp:
		return f.signUp(ctx, creds, sub)
	case ModeLogin, "":
		session, err := f.auth.SignInWithPassword(ctx, creds)
		f.recorder.RecordSignIn(err == nil)
		if err != nil {
			return f.failure("login", err)
		}
		return &Result{Message: MessageLoggedIn, Completed: true, Session: session}
	default:
		return f.failure("submit", model.NewValidationError(fmt.Sprintf("unknown form mode: %s", sub.Mode)))
	}
}

func (f *Form) signUp(ctx context.Context, creds auth.Credentials, sub Submission) *Result {
	userType := sub.UserType
	if userType == "" {
		userType = model.UserTypeTeacher
	}

	session, user, err := f.auth.SignUp(ctx, creds, model.UserMetadata{
		FullName: sub.FullName,
		UserType: userType,
	})
	if err != nil {
		return f.failure("signup", err)
	}

	if user != nil && user.EmailConfirmedAt == nil {
		return &Result{Message: MessageCheckEmail}
	}
	return &Result{Message: MessageAccountCreated, Completed: true, Session: session}
}

func (f *Form) failure(op string, err error) *Result {
	f.logger.Info("auth form submission failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	res := &Result{Error: ErrorMessage(err)}
	if apiErr, ok := model.AsAPIError(err); ok {
		res.Code = apiErr.Code
	}
	return res
}

// ErrorMessage はフォームに表示するエラーメッセージを返す。
// APIErrorはMessageを、それ以外はエラー文字列をそのまま使う。
func ErrorMessage(err error) string {
	if apiErr, ok := model.AsAPIError(err); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	if err == nil || err.Error() == "" {
		return MessageFallbackError
	}
	return err.Error()
}
