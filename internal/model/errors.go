// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, booking, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeTokenExpired       = "TOKEN_EXPIRED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeBookingNotFound    = "BOOKING_NOT_FOUND"
	ErrCodeDuplicateIdentity  = "DUPLICATE_IDENTITY"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeMessageEmpty       = "MESSAGE_EMPTY"
	ErrCodeMessageTooLong     = "MESSAGE_TOO_LONG"
	ErrCodeCompanyUnresolved  = "COMPANY_UNRESOLVED"
	ErrCodeUpstreamFailed     = "UPSTREAM_FAILED"
	ErrCodeUpstreamMalformed  = "UPSTREAM_MALFORMED"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
// メールアドレスの存在有無を漏らさないよう、メッセージは常に同一にする。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewTokenExpiredError はトークン期限切れエラーを生成する。
func NewTokenExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenExpired,
		Message:  "トークンの有効期限が切れています。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewForbiddenError は所有権不一致エラーを生成する。
// 会社識別子は監査ログにのみ記録し、レスポンスには一切含めない。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この予約へのアクセス権限がありません。",
		Category: "auth",
		Action:   "ご自身の予約のみ閲覧・操作できます。",
	}
}

// NewBookingNotFoundError は予約未検出エラーを生成する。
// 非アクティブなジョブもこのエラーとして扱う（存在自体を秘匿する）。
func NewBookingNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeBookingNotFound,
		Message:  "指定された予約が見つかりません。",
		Category: "booking",
		Action:   "予約IDを確認してください。",
	}
}

// NewDuplicateIdentityError は登録時の識別子重複エラーを生成する。
func NewDuplicateIdentityError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateIdentity,
		Message:  "このメールアドレスまたは電話番号は既に登録されています。",
		Category: "validation",
		Action:   "別の識別子で登録するか、ログインしてください。",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "入力内容を修正して再度お試しください。",
	}
}

// NewMessageEmptyError は空メッセージエラーを生成する。
func NewMessageEmptyError() *APIError {
	return &APIError{
		Code:     ErrCodeMessageEmpty,
		Message:  "メッセージ本文が空です。",
		Category: "validation",
		Action:   "本文を入力してください。",
	}
}

// NewMessageTooLongError はメッセージ長超過エラーを生成する。
func NewMessageTooLongError(length int) *APIError {
	return &APIError{
		Code:     ErrCodeMessageTooLong,
		Message:  fmt.Sprintf("メッセージ本文が上限（%d文字）を超えています: %d文字", MessageMaxLength, length),
		Category: "validation",
		Action:   fmt.Sprintf("本文を%d文字以内に収めてください。", MessageMaxLength),
	}
}

// NewCompanyUnresolvedError は外部会社識別子が未解決のまま
// ジョブ所有を前提とする操作が要求された場合のエラーを生成する。
func NewCompanyUnresolvedError() *APIError {
	return &APIError{
		Code:     ErrCodeCompanyUnresolved,
		Message:  "お客様情報が外部システムとまだ紐付いていません。",
		Category: "booking",
		Action:   "ジョブを作成するか、サポートにお問い合わせください。",
	}
}

// NewUpstreamFailedError は外部システム呼び出し失敗エラーを生成する。
// 詳細は内部ログにのみ記録する。
func NewUpstreamFailedError(operation string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamFailed,
		Message:  fmt.Sprintf("外部システムとの連携に失敗しました: %s", operation),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUpstreamMalformedError は外部システムのレスポンスが
// 期待する形式を満たさない場合のエラーを生成する。
// 識別子欠落は汎用的な失敗とは区別して扱う。
func NewUpstreamMalformedError(operation string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamMalformed,
		Message:  fmt.Sprintf("外部システムのレスポンスが不正です: %s", operation),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。改善しない場合はサポートにお問い合わせください。",
	}
}
