// Package model はドメインモデルを定義する。
package model

import "time"

// Customer はポータルを利用する顧客を表す。
// EmailとPhoneは少なくとも一方が必須で、正規化（小文字化・トリム）された状態で保持する。
type Customer struct {
	ID           string
	Email        string
	Phone        string
	PasswordHash string
	FirstName    string
	LastName     string
	// CompanyUUID は外部ジョブ管理システム上の会社識別子。
	// 登録時に未設定の場合があり、初回のジョブ作成または予約一覧の照合で遅延補完される。
	CompanyUUID string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasCompany は外部会社識別子が解決済みかを返す。
// ジョブの所有にはCompanyUUIDの解決が前提となる。
func (c *Customer) HasCompany() bool {
	return c.CompanyUUID != ""
}

// Session は発行済みトークンと顧客の紐付けを表す。
// IDはトークンのjtiクレームと一致し、ログアウトによる失効判定に使用する。
type Session struct {
	ID         string
	CustomerID string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}
