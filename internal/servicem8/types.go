// Package servicem8 は外部フィールドサービス基盤のAPIクライアントを提供する。
// ジョブ・会社・添付ファイルの取得と、ジョブ・会社の作成・更新を行う。
package servicem8

import (
	"encoding/json"
	"time"
)

// ScheduledDateLayout は外部APIの日時フォーマット。
const ScheduledDateLayout = "2006-01-02 15:04:05"

// Job は外部システムのジョブレコードを表す。
// Rawにはレスポンスの該当要素がそのまま保持され、既知フィールド以外も失われない。
type Job struct {
	UUID          string `json:"uuid"`
	CompanyUUID   string `json:"company_uuid"`
	Status        string `json:"status"`
	Active        int    `json:"active"`
	Address       string `json:"job_address"`
	Description   string `json:"job_description"`
	ScheduledDate string `json:"scheduled_date"`
	ContactName   string `json:"contact_name"`
	ContactEmail  string `json:"contact_email"`
	ContactPhone  string `json:"contact_phone"`

	Raw json.RawMessage `json:"-"`
}

// IsActive はジョブが有効かを返す。
// 無効（active=0）のジョブは存在しないものとして扱われる。
func (j *Job) IsActive() bool {
	return j.Active != 0
}

// ScheduledTime はscheduled_dateをパースして返す。
// 未設定またはパース不能の場合はnilを返す。
func (j *Job) ScheduledTime() *time.Time {
	if j.ScheduledDate == "" {
		return nil
	}
	t, err := time.Parse(ScheduledDateLayout, j.ScheduledDate)
	if err != nil {
		return nil
	}
	return &t
}

// Company は外部システムの会社レコードを表す。
type Company struct {
	UUID   string `json:"uuid"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Active int    `json:"active"`
}

// Attachment は外部システムの添付ファイルレコードを表す。
// ファイル本体は外部システム側にあり、URLで参照する。
type Attachment struct {
	UUID     string `json:"uuid"`
	JobUUID  string `json:"job_uuid"`
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
	URL      string `json:"url"`
}
