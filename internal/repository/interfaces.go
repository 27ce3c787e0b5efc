// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/fieldportal/internal/model"
)

// CustomerRepository は顧客データの永続化インターフェース。
type CustomerRepository interface {
	// FindByID は指定IDの顧客を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Customer, error)

	// FindByEmail は正規化済みメールアドレスで顧客を検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Customer, error)

	// FindByPhone は正規化済み電話番号で顧客を検索する。見つからない場合はnilを返す。
	FindByPhone(ctx context.Context, phone string) (*model.Customer, error)

	// Create は顧客を作成する。メールアドレス・電話番号の一意制約違反は
	// IsDuplicateKeyErrorで判別可能なエラーを返す。
	Create(ctx context.Context, customer *model.Customer) error

	// UpdateCompanyUUID は顧客の外部会社識別子を補完する。
	// 登録時に未解決だった識別子の遅延バックフィルに使用する。
	UpdateCompanyUUID(ctx context.Context, id, companyUUID string) error
}

// JobCacheRepository は外部ジョブのローカルキャッシュの永続化インターフェース。
// レコードはjob_uuidをキーとした冪等UPSERTで同期される。
type JobCacheRepository interface {
	// FindByJobUUID は外部ジョブ識別子でキャッシュレコードを取得する。
	// 見つからない場合はnilを返す。
	FindByJobUUID(ctx context.Context, jobUUID string) (*model.Job, error)

	// ListFreshByCompany は指定会社のキャッシュレコードのうち、
	// sinceより後に同期されたものをscheduled_at降順で返す。
	ListFreshByCompany(ctx context.Context, companyUUID string, since time.Time) ([]*model.Job, error)

	// Upsert はjob_uuidをキーに挿入または可変フィールドの全置換更新を行う。
	// 冪等であり、同一データでの再実行はレコードを増やさない（last write wins）。
	Upsert(ctx context.Context, job *model.Job) error

	// DeleteByJobUUID は外部ジョブ識別子でキャッシュレコードを削除する。
	// レコードが存在しない場合もエラーにしない。
	DeleteByJobUUID(ctx context.Context, jobUUID string) error
}

// MessageRepository はメッセージデータの永続化インターフェース。
type MessageRepository interface {
	// Create はメッセージを作成する。メッセージの更新・削除は存在しない。
	Create(ctx context.Context, message *model.Message) error

	// ListByJobUUID はジョブのメッセージ一覧を古い順（created_at昇順、同時刻はid昇順）で返す。
	ListByJobUUID(ctx context.Context, jobUUID string) ([]*model.Message, error)
}

// AttachmentRepository は添付ファイルメタデータの永続化インターフェース。
type AttachmentRepository interface {
	// Upsert はattachment_uuidをキーに挿入または更新を行う。
	Upsert(ctx context.Context, attachment *model.Attachment) error

	// ListByJobUUID はジョブの添付ファイル一覧を返す。
	ListByJobUUID(ctx context.Context, jobUUID string) ([]*model.Attachment, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
// セッションIDはトークンのjtiクレームと一致する。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByCustomerID は指定顧客の全セッションを削除する。
	DeleteByCustomerID(ctx context.Context, customerID string) error
}
