// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService は顧客が投稿するメッセージ本文をサニタイズし、
// XSS攻撃などのセキュリティリスクから保護する。
// メッセージはプレーンテキストとして扱うため、bluemondayの
// StrictPolicyで全てのHTMLタグを除去する。
package security

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はメッセージ本文のサニタイズ機能のインターフェースを定義する。
// メッセージの保存前に使用される。
type ContentSanitizerService interface {
	// Sanitize はメッセージ本文からHTMLタグを全て除去したプレーンテキストを返す。
	// タグ除去後にHTMLエンティティを復元するため、"<" や "&" などの
	// 文字そのものは失われない。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// メッセージはリッチテキストを想定しないため、許可タグを一切持たない
// StrictPolicyを使用する。scriptタグやon*イベント属性を含むあらゆる
// マークアップが除去される。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はメッセージ本文をプレーンテキスト化して返す。
// bluemondayはタグ除去後のテキストをHTMLエスケープして返すため、
// 保存用のプレーンテキストに戻すためエンティティをアンエスケープする。
func (s *contentSanitizer) Sanitize(raw string) string {
	return html.UnescapeString(s.policy.Sanitize(raw))
}
