package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/hitoshi/fieldportal/internal/model"
)

// exposeErrorDetails は内部エラーの原因メッセージをレスポンスへ含めるか。
// 起動時にSetErrorDetailExposureで設定し、本番環境では無効にする。
var exposeErrorDetails atomic.Bool

// SetErrorDetailExposure は内部エラーの詳細メッセージの露出を切り替える。
func SetErrorDetailExposure(expose bool) {
	exposeErrorDetails.Store(expose)
}

// ErrorEntry はレスポンスエンベロープのerrors配列の要素。
// 原因カテゴリと対処方法を含む。
type ErrorEntry struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// errorEnvelope は失敗レスポンスの統一エンベロープ。
type errorEnvelope struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Errors  []ErrorEntry `json:"errors"`
}

// WriteErrorResponse は統一エンベロープでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(errorEnvelope{
		Success: false,
		Message: apiErr.Message,
		Errors: []ErrorEntry{{
			Code:     apiErr.Code,
			Message:  apiErr.Message,
			Category: apiErr.Category,
			Action:   apiErr.Action,
		}},
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 原因は原則ログのみに記録し、ユーザーには一般的なメッセージを返す。
// 開発環境（SetErrorDetailExposure(true)）でのみ原因をメッセージへ含める。
func WriteInternalServerError(w http.ResponseWriter, cause error) {
	message := "内部エラーが発生しました。"
	if exposeErrorDetails.Load() && cause != nil {
		message = fmt.Sprintf("内部エラーが発生しました: %v", cause)
	}
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  message,
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}
