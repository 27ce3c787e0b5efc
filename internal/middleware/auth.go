// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/fieldportal/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// customerIDContextKey はリクエストコンテキストに顧客IDを格納するためのキー。
var customerIDContextKey = contextKey("customer_id")

// sessionIDContextKey はリクエストコンテキストにセッションID（トークンのjti）を格納するためのキー。
var sessionIDContextKey = contextKey("session_id")

// Authenticator はトークンの検証とセッションの有効性確認に必要なインターフェース。
// auth.Serviceが実装する。
type Authenticator interface {
	Authenticate(ctx context.Context, tokenString string) (*model.Session, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証する
// ミドルウェアを返す。署名の検証に加えてセッションの存在を確認するため、
// ログアウト済みのトークンは有効期限内でも拒否される。
// 認証済み顧客IDとセッションIDをリクエストコンテキストに注入する。
func NewAuthMiddleware(authenticator Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			session, err := authenticator.Authenticate(r.Context(), token)
			if err != nil {
				var apiErr *model.APIError
				if errors.As(err, &apiErr) {
					WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
					return
				}
				slog.Error("トークンの検証に失敗しました",
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			ctx := context.WithValue(r.Context(), customerIDContextKey, session.CustomerID)
			ctx = context.WithValue(ctx, sessionIDContextKey, session.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// 形式が不正な場合は空文字列を返す。
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// CustomerIDFromContext はリクエストコンテキストから顧客IDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func CustomerIDFromContext(ctx context.Context) (string, error) {
	customerID, ok := ctx.Value(customerIDContextKey).(string)
	if !ok || customerID == "" {
		return "", fmt.Errorf("customer ID not found in context")
	}
	return customerID, nil
}

// SessionIDFromContext はリクエストコンテキストからセッションIDを取得する。
func SessionIDFromContext(ctx context.Context) (string, error) {
	sessionID, ok := ctx.Value(sessionIDContextKey).(string)
	if !ok || sessionID == "" {
		return "", fmt.Errorf("session ID not found in context")
	}
	return sessionID, nil
}

// ContextWithCustomerID はコンテキストに顧客IDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithCustomerID(ctx context.Context, customerID string) context.Context {
	return context.WithValue(ctx, customerIDContextKey, customerID)
}

// ContextWithSessionID はコンテキストにセッションIDを注入する。
func ContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDContextKey, sessionID)
}
