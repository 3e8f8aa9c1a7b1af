package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ（フォームにそのまま表示される）
	Category string // カテゴリ: auth, validation, profile, job, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// AsAPIError はerrチェーンからAPIErrorを取り出す。
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeEmailNotConfirmed    = "EMAIL_NOT_CONFIRMED"
	ErrCodeEmailAlreadyUsed     = "EMAIL_ALREADY_REGISTERED"
	ErrCodeValidation           = "VALIDATION_FAILED"
	ErrCodeNotAuthenticated     = "NOT_AUTHENTICATED"
	ErrCodeRoleMismatch         = "ROLE_MISMATCH"
	ErrCodeProfileExists        = "PROFILE_ALREADY_EXISTS"
	ErrCodeJobNotFound          = "JOB_NOT_FOUND"
	ErrCodeApplicationNotFound  = "APPLICATION_NOT_FOUND"
	ErrCodeDuplicateApplication = "DUPLICATE_APPLICATION"
	ErrCodeDailyLimit           = "DAILY_APPLICATION_LIMIT"
)

// ErrNotImplemented は未実装の機能が呼び出された場合に返される。
var ErrNotImplemented = errors.New("not implemented")

// NewInvalidCredentialsError はログイン認証情報の誤りを表すエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid login credentials",
		Category: "auth",
		Action:   "Check your email and password and try again.",
	}
}

// NewEmailNotConfirmedError はメールアドレス未確認のエラーを生成する。
func NewEmailNotConfirmedError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailNotConfirmed,
		Message:  "Email not confirmed",
		Category: "auth",
		Action:   "Open the confirmation link sent to your email.",
	}
}

// NewEmailAlreadyRegisteredError は登録済みメールアドレスでのサインアップエラーを生成する。
func NewEmailAlreadyRegisteredError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailAlreadyUsed,
		Message:  "User already registered",
		Category: "auth",
		Action:   "Sign in instead, or use a different email address.",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "Fix the highlighted field and submit again.",
	}
}

// NewNotAuthenticatedError は未ログイン状態での操作エラーを生成する。
func NewNotAuthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAuthenticated,
		Message:  "You must be signed in",
		Category: "auth",
		Action:   "Sign in and try again.",
	}
}

// NewRoleMismatchError はユーザー種別が操作に合わない場合のエラーを生成する。
func NewRoleMismatchError(want UserType) *APIError {
	return &APIError{
		Code:     ErrCodeRoleMismatch,
		Message:  fmt.Sprintf("This action is only available to %s accounts", want),
		Category: "auth",
		Action:   "Sign in with the correct account type.",
	}
}

// NewProfileExistsError はロールプロフィールが既に作成済みの場合のエラーを生成する。
func NewProfileExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileExists,
		Message:  "Profile has already been completed",
		Category: "profile",
		Action:   "Edit your existing profile instead.",
	}
}

// NewJobNotFoundError は求人が見つからない場合のエラーを生成する。
func NewJobNotFoundError(jobID string) *APIError {
	return &APIError{
		Code:     ErrCodeJobNotFound,
		Message:  fmt.Sprintf("Job not found: %s", jobID),
		Category: "job",
		Action:   "The job may have been closed. Browse the current listings.",
	}
}

// NewApplicationNotFoundError は応募が見つからない場合のエラーを生成する。
func NewApplicationNotFoundError(applicationID string) *APIError {
	return &APIError{
		Code:     ErrCodeApplicationNotFound,
		Message:  fmt.Sprintf("Application not found: %s", applicationID),
		Category: "job",
		Action:   "Check the application ID.",
	}
}

// NewDuplicateApplicationError は同じ求人への重複応募エラーを生成する。
func NewDuplicateApplicationError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateApplication,
		Message:  "You have already applied to this job",
		Category: "job",
		Action:   "Check the status of your existing application.",
	}
}

// NewDailyLimitError は1日の応募上限に達した場合のエラーを生成する。
func NewDailyLimitError(limit int) *APIError {
	return &APIError{
		Code:     ErrCodeDailyLimit,
		Message:  fmt.Sprintf("Daily application limit reached (%d per day)", limit),
		Category: "job",
		Action:   "Try again tomorrow.",
	}
}
