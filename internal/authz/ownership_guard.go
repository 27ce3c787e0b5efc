// Package authz は予約に対するアクセス制御を提供する。
//
// OwnershipGuard は外部システムから取得したジョブと認証済み顧客の
// 会社識別子を突き合わせ、他社のジョブへのアクセスを遮断する。
// 検証の順序は固定されている: 存在確認 → 有効性確認 → 所有権確認。
// 非アクティブなジョブは所有権を確認する前に「存在しない」として扱い、
// ジョブの存在自体を漏らさない。
package authz

import (
	"log/slog"

	"github.com/hitoshi/fieldportal/internal/model"
	"github.com/hitoshi/fieldportal/internal/servicem8"
)

// OwnershipGuardService は予約アクセス制御のインターフェースを定義する。
type OwnershipGuardService interface {
	// Authorize はジョブへのアクセス可否を判定する。
	// ジョブが存在しない・非アクティブの場合はBOOKING_NOT_FOUND、
	// 会社識別子が一致しない場合はFORBIDDENを返す。
	// 許可される場合はnilを返す。
	Authorize(job *servicem8.Job, companyUUID, customerID string) error
}

// ownershipGuard はOwnershipGuardServiceの実装。
type ownershipGuard struct {
	logger *slog.Logger
}

// NewOwnershipGuard はOwnershipGuardServiceの新しいインスタンスを生成する。
func NewOwnershipGuard(logger *slog.Logger) *ownershipGuard {
	return &ownershipGuard{logger: logger}
}

// Authorize はジョブへのアクセス可否を判定する。
//
// 判定順序:
//  1. job == nil（外部システムで404） → BOOKING_NOT_FOUND
//  2. 非アクティブ（active=0） → BOOKING_NOT_FOUND（所有権確認より先）
//  3. 会社識別子の不一致 → FORBIDDEN
//
// 所有権不一致は監査ログに両方の会社識別子を記録するが、
// レスポンスのエラーには一切含めない。
func (g *ownershipGuard) Authorize(job *servicem8.Job, companyUUID, customerID string) error {
	if job == nil {
		return model.NewBookingNotFoundError()
	}

	if !job.IsActive() {
		g.logger.Info("非アクティブなジョブへのアクセスを未検出として処理しました",
			slog.String("customer_id", customerID),
			slog.String("job_uuid", job.UUID),
		)
		return model.NewBookingNotFoundError()
	}

	if companyUUID == "" || job.CompanyUUID != companyUUID {
		g.logger.Warn("所有権不一致のアクセスを拒否しました",
			slog.String("customer_id", customerID),
			slog.String("job_uuid", job.UUID),
			slog.String("job_company_uuid", job.CompanyUUID),
			slog.String("customer_company_uuid", companyUUID),
		)
		return model.NewForbiddenError()
	}

	return nil
}
