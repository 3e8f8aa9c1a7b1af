// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/hagwonmatch/internal/authform"
	"github.com/hitoshi/hagwonmatch/internal/authsync"
	"github.com/hitoshi/hagwonmatch/internal/middleware"
	"github.com/hitoshi/hagwonmatch/internal/model"
)

// readyWaitTimeout は /auth/me?wait=1 で初期化完了を待つ最大時間。
const readyWaitTimeout = 5 * time.Second

// FormSubmitter はログイン・サインアップフォームの送信処理のインターフェース。
type FormSubmitter interface {
	Submit(ctx context.Context, sub authform.Submission) *authform.Result
}

// SessionController は同期モジュールのインターフェース。
// authsync.Synchronizerが実装する。
type SessionController interface {
	State() authsync.State
	Phase() authsync.Phase
	WaitReady(ctx context.Context) error
	SignOut(ctx context.Context) error
	RefreshProfile(ctx context.Context) error
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	forms   FormSubmitter
	session SessionController
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(forms FormSubmitter, session SessionController) *AuthHandler {
	return &AuthHandler{
		forms:   forms,
		session: session,
	}
}

// SignUp はサインアップフォームを処理する。
// POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, authform.ModeSignUp)
}

// Login はログインフォームを処理する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, authform.ModeLogin)
}

func (h *AuthHandler) submit(w http.ResponseWriter, r *http.Request, mode authform.Mode) {
	var sub authform.Submission
	if err := decodeJSON(w, r, &sub); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	sub.Mode = mode

	res := h.forms.Submit(r.Context(), sub)
	writeJSON(w, resultStatus(res), res)
}

// resultStatus はフォーム送信結果に対応するHTTPステータスを返す。
func resultStatus(res *authform.Result) int {
	if res.Error == "" {
		return http.StatusOK
	}
	if res.Code == "" {
		return http.StatusInternalServerError
	}
	return middleware.StatusForAPIError(&model.APIError{Code: res.Code})
}

// Logout はサインアウトする。
// リモートのサインアウトに失敗しても手元のログイン状態は破棄され、エラーを502で返す。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.session.SignOut(r.Context()); err != nil {
		slog.Warn("remote sign out failed", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusBadGateway, &model.APIError{
			Code:     "SIGN_OUT_FAILED",
			Message:  err.Error(),
			Category: "auth",
			Action:   "You have been signed out on this device. Try again to end the remote session.",
		})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のログイン状態（ユーザー、セッション、プロフィール）を返す。
// クエリにwait=1を指定すると初期化完了まで待機する。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("wait") != "" {
		ctx, cancel := context.WithTimeout(r.Context(), readyWaitTimeout)
		defer cancel()
		if err := h.session.WaitReady(ctx); err != nil {
			slog.Debug("wait ready interrupted", slog.String("error", err.Error()))
		}
	}
	writeJSON(w, http.StatusOK, toIdentityResponse(h.session.State(), h.session.Phase()))
}

// RefreshProfile はプロフィールを再取得し、更新後のログイン状態を返す。
// 取得に失敗しても既存のプロフィールが返される。
// POST /api/profile/refresh
func (h *AuthHandler) RefreshProfile(w http.ResponseWriter, r *http.Request) {
	if err := h.session.RefreshProfile(r.Context()); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toIdentityResponse(h.session.State(), h.session.Phase()))
}
