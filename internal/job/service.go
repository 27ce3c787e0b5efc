// Package job は予約の作成・変更・キャンセルを提供する。
//
// 書き込みは常に二相で行う: まず権威を持つ外部ジョブ管理システムへ
// 書き込み、成功した場合のみローカルのキャッシュへ反映する。
// 外部システムへの書き込み失敗は操作全体の失敗として扱い、
// ローカルキャッシュの反映失敗は警告ログに留めて応答を妨げない。
package job

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/fieldportal/internal/model"
	"github.com/hitoshi/fieldportal/internal/repository"
	"github.com/hitoshi/fieldportal/internal/servicem8"
)

// UpstreamClient は外部ジョブ管理システムへの書き込みアクセスを抽象化する。
// servicem8.Clientが実装する。
type UpstreamClient interface {
	CreateJob(ctx context.Context, fields map[string]any) (*servicem8.Job, error)
	UpdateJob(ctx context.Context, jobUUID string, fields map[string]any) error
	CreateCompany(ctx context.Context, fields map[string]any) (*servicem8.Company, error)
}

// AccessAuthorizer は所有権確認付きのジョブ取得と会社識別子の解決を抽象化する。
// booking.Serviceが実装する。
type AccessAuthorizer interface {
	AuthorizeAccess(ctx context.Context, customerID, jobUUID string) (*servicem8.Job, error)
	ResolveCompanyUUID(ctx context.Context, customer *model.Customer) (string, error)
}

// Notifier はジョブのライフサイクルイベントをメッセージスレッドに
// システム通知として記録する。message.Serviceが実装する。nilを許容する。
type Notifier interface {
	PostSystemNotice(ctx context.Context, jobUUID, body string)
}

// CreateInput はジョブ作成の入力。
type CreateInput struct {
	Address     string
	Description string
	Status      string // 省略時はQuote
	ScheduledAt *time.Time
}

// UpdateInput はジョブ更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Address     *string
	Description *string
	Status      *string
	ScheduledAt *time.Time
}

// Service はジョブ書き込みのビジネスロジックを提供する。
type Service struct {
	upstream     UpstreamClient
	access       AccessAuthorizer
	customerRepo repository.CustomerRepository
	jobCacheRepo repository.JobCacheRepository
	notifier     Notifier
	logger       *slog.Logger
}

// NewService はServiceを生成する。notifierはnilを許容する。
func NewService(
	upstream UpstreamClient,
	access AccessAuthorizer,
	customerRepo repository.CustomerRepository,
	jobCacheRepo repository.JobCacheRepository,
	notifier Notifier,
	logger *slog.Logger,
) *Service {
	return &Service{
		upstream:     upstream,
		access:       access,
		customerRepo: customerRepo,
		jobCacheRepo: jobCacheRepo,
		notifier:     notifier,
		logger:       logger,
	}
}

// CreateJob は新しいジョブを作成する。
//
// 顧客の会社識別子が未解決の場合は外部システムに会社を作成して補完する。
// 外部システムでのジョブ作成が成功した場合のみ、ローカルキャッシュへ
// ベストエフォートで反映する。ステータス省略時はQuoteで作成する。
func (s *Service) CreateJob(ctx context.Context, customerID string, input CreateInput) (*model.Job, error) {
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, model.NewValidationError("依頼内容を入力してください")
	}

	status := strings.TrimSpace(input.Status)
	if status == "" {
		status = string(model.JobStatusQuote)
	} else if !model.IsValidJobStatus(status) {
		return nil, model.NewValidationError(fmt.Sprintf("不正なステータスです: %s", status))
	}

	customer, err := s.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("顧客の取得に失敗しました: %w", err)
	}
	if customer == nil {
		return nil, model.NewUnauthorizedError()
	}

	companyUUID, err := s.ensureCompany(ctx, customer)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{
		"company_uuid":    companyUUID,
		"job_address":     strings.TrimSpace(input.Address),
		"job_description": description,
		"status":          status,
		"active":          1,
	}
	if input.ScheduledAt != nil {
		fields["scheduled_date"] = input.ScheduledAt.Format(servicem8.ScheduledDateLayout)
	}

	created, err := s.upstream.CreateJob(ctx, fields)
	if err != nil {
		s.logger.Error("外部システムでのジョブ作成に失敗しました",
			slog.String("customer_id", customerID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamFailedError("予約の作成")
	}
	if created == nil || created.UUID == "" {
		s.logger.Error("外部システムが識別子を持たないジョブを返しました",
			slog.String("customer_id", customerID),
		)
		return nil, model.NewUpstreamMalformedError("予約の作成")
	}
	// 作成レスポンスが省略したフィールドは送信した値で補完する
	if created.CompanyUUID == "" {
		created.CompanyUUID = companyUUID
	}
	if created.Status == "" {
		created.Status = status
	}
	if created.Description == "" {
		created.Description = description
	}
	if created.Address == "" {
		created.Address = strings.TrimSpace(input.Address)
	}

	record := s.mirror(ctx, created)

	s.logger.Info("ジョブを作成しました",
		slog.String("customer_id", customerID),
		slog.String("job_uuid", created.UUID),
	)
	if s.notifier != nil {
		s.notifier.PostSystemNotice(ctx, created.UUID, "予約を受け付けました。担当者が内容を確認します。")
	}
	return record, nil
}

// UpdateJob はジョブを部分更新する。
//
// 指定されたフィールドのみ外部システムへ送信し、省略された
// フィールドは変更しない。外部システムの更新が成功した場合のみ
// ローカルキャッシュへベストエフォートで反映する。
func (s *Service) UpdateJob(ctx context.Context, customerID, jobUUID string, input UpdateInput) (*model.Job, error) {
	job, err := s.access.AuthorizeAccess(ctx, customerID, jobUUID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if input.Address != nil {
		job.Address = strings.TrimSpace(*input.Address)
		fields["job_address"] = job.Address
	}
	if input.Description != nil {
		desc := strings.TrimSpace(*input.Description)
		if desc == "" {
			return nil, model.NewValidationError("依頼内容を空にはできません")
		}
		job.Description = desc
		fields["job_description"] = desc
	}
	if input.Status != nil {
		if !model.IsValidJobStatus(*input.Status) {
			return nil, model.NewValidationError(fmt.Sprintf("不正なステータスです: %s", *input.Status))
		}
		job.Status = *input.Status
		fields["status"] = *input.Status
	}
	if input.ScheduledAt != nil {
		job.ScheduledDate = input.ScheduledAt.Format(servicem8.ScheduledDateLayout)
		fields["scheduled_date"] = job.ScheduledDate
	}
	if len(fields) == 0 {
		return nil, model.NewValidationError("更新する項目がありません")
	}

	if err := s.upstream.UpdateJob(ctx, jobUUID, fields); err != nil {
		s.logger.Error("外部システムでのジョブ更新に失敗しました",
			slog.String("job_uuid", jobUUID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamFailedError("予約の変更")
	}

	record := s.mirror(ctx, job)

	s.logger.Info("ジョブを更新しました",
		slog.String("customer_id", customerID),
		slog.String("job_uuid", jobUUID),
	)
	return record, nil
}

// CancelJob はジョブをキャンセルする。
//
// 外部システムではレコードを消さず、ステータスをCancelledへ遷移させ
// 非アクティブ化する。外部システムへの反映はベストエフォートとし、
// 失敗しても顧客側の一覧からは取り除く（ローカルキャッシュの削除が
// 失敗した場合のみ操作全体を失敗させる）。
func (s *Service) CancelJob(ctx context.Context, customerID, jobUUID string) error {
	if _, err := s.access.AuthorizeAccess(ctx, customerID, jobUUID); err != nil {
		return err
	}

	fields := map[string]any{
		"status": string(model.JobStatusCancelled),
		"active": 0,
	}
	if err := s.upstream.UpdateJob(ctx, jobUUID, fields); err != nil {
		s.logger.Warn("外部システムでのジョブキャンセルに失敗しました",
			slog.String("job_uuid", jobUUID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.jobCacheRepo.DeleteByJobUUID(ctx, jobUUID); err != nil {
		return fmt.Errorf("ジョブキャッシュの削除に失敗しました: %w", err)
	}

	s.logger.Info("ジョブをキャンセルしました",
		slog.String("customer_id", customerID),
		slog.String("job_uuid", jobUUID),
	)
	if s.notifier != nil {
		s.notifier.PostSystemNotice(ctx, jobUUID, "予約がキャンセルされました。")
	}
	return nil
}

// ensureCompany は顧客の外部会社識別子を解決し、未解決の場合は
// 外部システムに会社を作成して顧客レコードへ補完する。
func (s *Service) ensureCompany(ctx context.Context, customer *model.Customer) (string, error) {
	companyUUID, err := s.access.ResolveCompanyUUID(ctx, customer)
	if err != nil {
		return "", err
	}
	if companyUUID != "" {
		return companyUUID, nil
	}

	name := strings.TrimSpace(customer.FirstName + " " + customer.LastName)
	if name == "" {
		name = customer.Email
	}
	company, err := s.upstream.CreateCompany(ctx, map[string]any{
		"name":   name,
		"email":  customer.Email,
		"phone":  customer.Phone,
		"active": 1,
	})
	if err != nil {
		s.logger.Error("外部システムでの会社作成に失敗しました",
			slog.String("customer_id", customer.ID),
			slog.String("error", err.Error()),
		)
		return "", model.NewUpstreamFailedError("お客様情報の登録")
	}
	if company == nil || company.UUID == "" {
		return "", model.NewUpstreamMalformedError("お客様情報の登録")
	}

	if err := s.customerRepo.UpdateCompanyUUID(ctx, customer.ID, company.UUID); err != nil {
		return "", fmt.Errorf("会社識別子の補完に失敗しました: %w", err)
	}
	customer.CompanyUUID = company.UUID

	s.logger.Info("外部システムに会社を作成しました",
		slog.String("customer_id", customer.ID),
		slog.String("company_uuid", company.UUID),
	)
	return company.UUID, nil
}

// mirror は外部システムのジョブをローカルキャッシュへベストエフォートで反映する。
func (s *Service) mirror(ctx context.Context, job *servicem8.Job) *model.Job {
	now := time.Now()
	record := &model.Job{
		ID:           uuid.New().String(),
		JobUUID:      job.UUID,
		CompanyUUID:  job.CompanyUUID,
		Address:      job.Address,
		Description:  job.Description,
		Status:       model.JobStatus(job.Status),
		ScheduledAt:  job.ScheduledTime(),
		ContactName:  job.ContactName,
		ContactEmail: job.ContactEmail,
		ContactPhone: job.ContactPhone,
		RawData:      job.Raw,
		SyncedAt:     now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.jobCacheRepo.Upsert(ctx, record); err != nil {
		s.logger.Warn("ジョブキャッシュへの反映に失敗しました",
			slog.String("job_uuid", job.UUID),
			slog.String("error", err.Error()),
		)
	}
	return record
}
