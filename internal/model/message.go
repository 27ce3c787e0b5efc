// Package model はドメインモデルを定義する。
package model

import "time"

// MessageMaxLength はメッセージ本文の最大文字数。
const MessageMaxLength = 1000

// SenderKind はメッセージの送信者種別を表す。
type SenderKind string

const (
	// SenderCustomer は顧客が送信したメッセージ。
	SenderCustomer SenderKind = "customer"
	// SenderSystem はシステムが内部的に生成した通知メッセージ。
	SenderSystem SenderKind = "system"
)

// Message はジョブに紐づくメッセージを表す。
// 作成後の更新・削除は行わない。一覧は常に古い順で返す。
type Message struct {
	ID         string
	JobUUID    string
	CustomerID string
	Sender     SenderKind
	Content    string
	CreatedAt  time.Time
}
