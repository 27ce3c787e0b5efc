// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"time"
)

// JobStatus はジョブのステータスを表す。
// 外部ジョブ管理システムのステータス文字列をそのまま保持する。
type JobStatus string

const (
	// JobStatusQuote は見積もり段階のジョブ。新規作成時のデフォルト。
	JobStatusQuote JobStatus = "Quote"
	// JobStatusWorkOrder は作業指示が確定したジョブ。
	JobStatusWorkOrder JobStatus = "Work Order"
	// JobStatusScheduled は日程が確定したジョブ。
	JobStatusScheduled JobStatus = "Scheduled"
	// JobStatusInProgress は作業中のジョブ。
	JobStatusInProgress JobStatus = "In Progress"
	// JobStatusComplete は完了したジョブ。
	JobStatusComplete JobStatus = "Complete"
	// JobStatusCancelled はキャンセルされたジョブ。削除操作はこのステータスへの遷移として扱う。
	JobStatusCancelled JobStatus = "Cancelled"
)

// IsValidJobStatus はステータス文字列が定義済みの値かを検証する。
func IsValidJobStatus(s string) bool {
	switch JobStatus(s) {
	case JobStatusQuote, JobStatusWorkOrder, JobStatusScheduled,
		JobStatusInProgress, JobStatusComplete, JobStatusCancelled:
		return true
	}
	return false
}

// Job は外部ジョブ管理システムのジョブをローカルにキャッシュしたレコードを表す。
// JobUUIDをキーとしたUPSERTで同期され、権威を持つのは常に外部システム側。
type Job struct {
	ID           string
	JobUUID      string
	CompanyUUID  string
	Address      string
	Description  string
	Status       JobStatus
	ScheduledAt  *time.Time
	ContactName  string
	ContactEmail string
	ContactPhone string
	// RawData は外部システムのレスポンスボディをそのまま保持する不透明なペイロード。
	// 既知のフィールド以外は解釈しない。
	RawData json.RawMessage
	// SyncedAt は外部システムから最後に同期した時刻。鮮度ウィンドウの判定に使用する。
	SyncedAt  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Attachment はジョブに紐づく外部添付ファイルのメタデータを表す。
// ファイル本体は保存せず、外部システムが提供するURLのみを保持する。
type Attachment struct {
	ID             string
	JobUUID        string
	AttachmentUUID string
	FileName       string
	FileType       string
	URL            string
	CreatedAt      time.Time
}
