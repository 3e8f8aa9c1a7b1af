package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/hagwonmatch/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// authformと同じく、Messageはフォームにそのまま表示される。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// statusByCode はAPIErrorのコードとHTTPステータスの対応。
var statusByCode = map[string]int{
	model.ErrCodeInvalidCredentials:   http.StatusUnauthorized,
	model.ErrCodeEmailNotConfirmed:    http.StatusForbidden,
	model.ErrCodeEmailAlreadyUsed:     http.StatusConflict,
	model.ErrCodeValidation:           http.StatusBadRequest,
	model.ErrCodeNotAuthenticated:     http.StatusUnauthorized,
	model.ErrCodeRoleMismatch:         http.StatusForbidden,
	model.ErrCodeProfileExists:        http.StatusConflict,
	model.ErrCodeJobNotFound:          http.StatusNotFound,
	model.ErrCodeApplicationNotFound:  http.StatusNotFound,
	model.ErrCodeDuplicateApplication: http.StatusConflict,
	model.ErrCodeDailyLimit:           http.StatusTooManyRequests,
}

// StatusForAPIError はAPIErrorに対応するHTTPステータスコードを返す。
// 未知のコードは400とする。
func StatusForAPIError(apiErr *model.APIError) int {
	if status, ok := statusByCode[apiErr.Code]; ok {
		return status
	}
	return http.StatusBadRequest
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteError はerrをレスポンスに変換する。
// チェーンにAPIErrorがあればその内容を返し、それ以外は500としてログに記録する。
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	if apiErr, ok := model.AsAPIError(err); ok {
		WriteErrorResponse(w, StatusForAPIError(apiErr), apiErr)
		return
	}
	slog.Error("request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	WriteInternalServerError(w)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "An error occurred",
		Category: "system",
		Action:   "Please wait a moment and try again.",
	})
}
