// Package handler はHTTP APIのハンドラーとルーティングを提供する。
//
// すべてのレスポンスは統一エンベロープ（success、message、data、errors、meta）
// で返す。エラーレスポンスの本文にはユーザー向けの情報のみを含め、
// 内部の詳細はログにのみ記録する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/fieldportal/internal/middleware"
	"github.com/hitoshi/fieldportal/internal/model"
)

// successEnvelope は成功レスポンスの統一エンベロープ。
type successEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Meta    any    `json:"meta,omitempty"`
}

// listMeta は一覧レスポンスのメタ情報。
type listMeta struct {
	Count     int  `json:"count"`
	FromCache bool `json:"from_cache"`
}

// writeSuccess は成功エンベロープを書き込む。
func writeSuccess(w http.ResponseWriter, statusCode int, data any, message string) {
	writeSuccessWithMeta(w, statusCode, data, message, nil)
}

// writeSuccessWithMeta はメタ情報付きの成功エンベロープを書き込む。
func writeSuccessWithMeta(w http.ResponseWriter, statusCode int, data any, message string, meta any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(successEnvelope{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    meta,
	})
}

// writeAPIErrorResponse は統一エンベロープでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// writeInvalidRequestBody はリクエストボディの解析失敗レスポンスを書き込む。
func writeInvalidRequestBody(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w, err)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidCredentials, model.ErrCodeTokenExpired:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeBookingNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateIdentity:
		return http.StatusConflict
	case model.ErrCodeValidation, model.ErrCodeMessageEmpty, model.ErrCodeMessageTooLong, model.ErrCodeCompanyUnresolved:
		return http.StatusBadRequest
	case model.ErrCodeUpstreamFailed:
		return http.StatusBadGateway
	case model.ErrCodeUpstreamMalformed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
