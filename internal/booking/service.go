// Package booking は予約の照会と外部ジョブ管理システムとの同期を提供する。
//
// 予約データの権威は常に外部システム側にあり、ローカルのジョブキャッシュは
// 読み取り高速化のための写しに過ぎない。一覧は鮮度ウィンドウ内のキャッシュを
// 優先し、詳細は常に外部システムから最新を取得する。
package booking

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/fieldportal/internal/authz"
	"github.com/hitoshi/fieldportal/internal/model"
	"github.com/hitoshi/fieldportal/internal/repository"
	"github.com/hitoshi/fieldportal/internal/servicem8"
)

// UpstreamClient は外部ジョブ管理システムへの読み取りアクセスを抽象化する。
// servicem8.Clientが実装する。
type UpstreamClient interface {
	ListJobs(ctx context.Context) ([]servicem8.Job, error)
	GetJob(ctx context.Context, jobUUID string) (*servicem8.Job, error)
	ListJobAttachments(ctx context.Context, jobUUID string) ([]servicem8.Attachment, error)
}

// URLValidator は添付ファイルURLの安全性検証を抽象化する。
// security.SSRFGuardServiceの部分集合。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// MetricsRecorder は同期処理のメトリクス記録に必要なインターフェース。
// metrics.Collectorの部分集合として定義する。nilを許容する。
type MetricsRecorder interface {
	RecordCacheHit()
	RecordCacheMiss()
	RecordJobsReconciled(count int)
}

// ListResult は予約一覧の取得結果。
type ListResult struct {
	Bookings  []*model.Job
	FromCache bool
}

// Detail は予約詳細の取得結果。
type Detail struct {
	Booking     *model.Job
	Attachments []*model.Attachment
}

// Service は予約照会のビジネスロジックを提供する。
type Service struct {
	upstream       UpstreamClient
	customerRepo   repository.CustomerRepository
	jobCacheRepo   repository.JobCacheRepository
	attachmentRepo repository.AttachmentRepository
	guard          authz.OwnershipGuardService
	urlValidator   URLValidator
	metrics        MetricsRecorder
	logger         *slog.Logger
	freshness      time.Duration
}

// NewService はServiceを生成する。metricsはnilを許容する。
func NewService(
	upstream UpstreamClient,
	customerRepo repository.CustomerRepository,
	jobCacheRepo repository.JobCacheRepository,
	attachmentRepo repository.AttachmentRepository,
	guard authz.OwnershipGuardService,
	urlValidator URLValidator,
	metrics MetricsRecorder,
	logger *slog.Logger,
	freshness time.Duration,
) *Service {
	return &Service{
		upstream:       upstream,
		customerRepo:   customerRepo,
		jobCacheRepo:   jobCacheRepo,
		attachmentRepo: attachmentRepo,
		guard:          guard,
		urlValidator:   urlValidator,
		metrics:        metrics,
		logger:         logger,
		freshness:      freshness,
	}
}

// ListBookings は顧客の予約一覧を返す。
//
// 鮮度ウィンドウ内に同期済みのキャッシュがあればそれを返し、
// なければ外部システムから全件を取得して顧客の会社のアクティブな
// ジョブのみを抽出し、キャッシュへ冪等に書き戻してから返す。
// 外部システムの取得に失敗した場合はエラーを返し、部分的な
// キャッシュ更新は行わない。
func (s *Service) ListBookings(ctx context.Context, customerID string) (*ListResult, error) {
	customer, err := s.requireCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	companyUUID, err := s.ResolveCompanyUUID(ctx, customer)
	if err != nil {
		return nil, err
	}
	if companyUUID == "" {
		// 外部システムとの紐付けがまだ無い顧客には空の一覧を返す
		return &ListResult{Bookings: []*model.Job{}, FromCache: false}, nil
	}

	now := time.Now()
	cached, err := s.jobCacheRepo.ListFreshByCompany(ctx, companyUUID, now.Add(-s.freshness))
	if err != nil {
		return nil, fmt.Errorf("ジョブキャッシュの検索に失敗しました: %w", err)
	}
	if len(cached) > 0 {
		if s.metrics != nil {
			s.metrics.RecordCacheHit()
		}
		return &ListResult{Bookings: cached, FromCache: true}, nil
	}

	if s.metrics != nil {
		s.metrics.RecordCacheMiss()
	}

	upstreamJobs, err := s.upstream.ListJobs(ctx)
	if err != nil {
		s.logger.Error("外部システムからのジョブ一覧取得に失敗しました",
			slog.String("customer_id", customerID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamFailedError("予約一覧の取得")
	}

	bookings := make([]*model.Job, 0)
	for i := range upstreamJobs {
		job := &upstreamJobs[i]
		if job.CompanyUUID != companyUUID || !job.IsActive() {
			continue
		}
		record := toCacheRecord(job, now)
		if err := s.jobCacheRepo.Upsert(ctx, record); err != nil {
			// キャッシュへの書き戻し失敗は応答を妨げない
			s.logger.Warn("ジョブキャッシュの更新に失敗しました",
				slog.String("job_uuid", job.UUID),
				slog.String("error", err.Error()),
			)
		}
		bookings = append(bookings, record)
	}

	if s.metrics != nil {
		s.metrics.RecordJobsReconciled(len(bookings))
	}

	sortBookings(bookings)
	return &ListResult{Bookings: bookings, FromCache: false}, nil
}

// GetBookingDetail は予約詳細を返す。
//
// 詳細は鮮度ウィンドウに関わらず常に外部システムから最新を取得し、
// アクセス制御を通過した場合のみキャッシュを更新して返す。
// 添付ファイルのメタデータはキャッシュ優先（cache-aside）で取得する。
func (s *Service) GetBookingDetail(ctx context.Context, customerID, jobUUID string) (*Detail, error) {
	job, err := s.AuthorizeAccess(ctx, customerID, jobUUID)
	if err != nil {
		return nil, err
	}

	record := toCacheRecord(job, time.Now())
	if err := s.jobCacheRepo.Upsert(ctx, record); err != nil {
		s.logger.Warn("ジョブキャッシュの更新に失敗しました",
			slog.String("job_uuid", jobUUID),
			slog.String("error", err.Error()),
		)
	}

	attachments := s.loadAttachments(ctx, jobUUID)
	return &Detail{Booking: record, Attachments: attachments}, nil
}

// AuthorizeAccess はジョブを外部システムから取得し、アクセス制御を適用して返す。
// 予約詳細のほか、メッセージやジョブ更新など所有権を前提とする操作の
// 入り口として共用される。
func (s *Service) AuthorizeAccess(ctx context.Context, customerID, jobUUID string) (*servicem8.Job, error) {
	customer, err := s.requireCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	companyUUID, err := s.ResolveCompanyUUID(ctx, customer)
	if err != nil {
		return nil, err
	}
	if companyUUID == "" {
		return nil, model.NewCompanyUnresolvedError()
	}

	job, err := s.upstream.GetJob(ctx, jobUUID)
	if err != nil {
		s.logger.Error("外部システムからのジョブ取得に失敗しました",
			slog.String("job_uuid", jobUUID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamFailedError("予約の取得")
	}

	if err := s.guard.Authorize(job, companyUUID, customerID); err != nil {
		return nil, err
	}
	return job, nil
}

// ResolveCompanyUUID は顧客の外部会社識別子を解決する。
//
// 既に解決済みであればそれを返す。未解決の場合は外部システムの
// ジョブの連絡先と照合し、メールアドレスの一致または電話番号
// （数字のみ）の一致で候補を探す。候補の会社がちょうど1社の場合のみ
// 顧客レコードへ補完して返す。候補が無い場合は空文字列を返し、
// 複数の会社に跨る場合は安全側に倒して未解決のままにする。
func (s *Service) ResolveCompanyUUID(ctx context.Context, customer *model.Customer) (string, error) {
	if customer.HasCompany() {
		return customer.CompanyUUID, nil
	}

	upstreamJobs, err := s.upstream.ListJobs(ctx)
	if err != nil {
		s.logger.Error("会社識別子の照合のためのジョブ取得に失敗しました",
			slog.String("customer_id", customer.ID),
			slog.String("error", err.Error()),
		)
		return "", model.NewUpstreamFailedError("お客様情報の照合")
	}

	candidates := map[string]bool{}
	for i := range upstreamJobs {
		job := &upstreamJobs[i]
		if !job.IsActive() || job.CompanyUUID == "" {
			continue
		}
		if matchesContact(customer, job) {
			candidates[job.CompanyUUID] = true
		}
	}

	if len(candidates) != 1 {
		if len(candidates) > 1 {
			s.logger.Warn("連絡先が複数の会社に一致したため紐付けを保留しました",
				slog.String("customer_id", customer.ID),
				slog.Int("candidate_count", len(candidates)),
			)
		}
		return "", nil
	}

	var companyUUID string
	for c := range candidates {
		companyUUID = c
	}

	if err := s.customerRepo.UpdateCompanyUUID(ctx, customer.ID, companyUUID); err != nil {
		return "", fmt.Errorf("会社識別子の補完に失敗しました: %w", err)
	}
	customer.CompanyUUID = companyUUID

	s.logger.Info("顧客の会社識別子を補完しました",
		slog.String("customer_id", customer.ID),
		slog.String("company_uuid", companyUUID),
	)
	return companyUUID, nil
}

// requireCustomer は顧客を取得する。不在の場合は未認証として扱う。
func (s *Service) requireCustomer(ctx context.Context, customerID string) (*model.Customer, error) {
	customer, err := s.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("顧客の取得に失敗しました: %w", err)
	}
	if customer == nil {
		return nil, model.NewUnauthorizedError()
	}
	return customer, nil
}

// loadAttachments は添付ファイルメタデータをキャッシュ優先で取得する。
// キャッシュが空の場合のみ外部システムへ問い合わせ、URL検証を
// 通過したものだけをキャッシュして返す。外部システムの失敗は
// 詳細応答全体を失敗させず、空の一覧に退避する。
func (s *Service) loadAttachments(ctx context.Context, jobUUID string) []*model.Attachment {
	cached, err := s.attachmentRepo.ListByJobUUID(ctx, jobUUID)
	if err != nil {
		s.logger.Warn("添付ファイルキャッシュの検索に失敗しました",
			slog.String("job_uuid", jobUUID),
			slog.String("error", err.Error()),
		)
	}
	if len(cached) > 0 {
		return cached
	}

	upstreamAttachments, err := s.upstream.ListJobAttachments(ctx, jobUUID)
	if err != nil {
		s.logger.Warn("外部システムからの添付ファイル取得に失敗しました",
			slog.String("job_uuid", jobUUID),
			slog.String("error", err.Error()),
		)
		return []*model.Attachment{}
	}

	now := time.Now()
	attachments := make([]*model.Attachment, 0, len(upstreamAttachments))
	for _, a := range upstreamAttachments {
		if err := s.urlValidator.ValidateURL(a.URL); err != nil {
			s.logger.Warn("安全でない添付ファイルURLを除外しました",
				slog.String("job_uuid", jobUUID),
				slog.String("attachment_uuid", a.UUID),
				slog.String("error", err.Error()),
			)
			continue
		}
		record := &model.Attachment{
			ID:             uuid.New().String(),
			JobUUID:        jobUUID,
			AttachmentUUID: a.UUID,
			FileName:       a.FileName,
			FileType:       a.FileType,
			URL:            a.URL,
			CreatedAt:      now,
		}
		if err := s.attachmentRepo.Upsert(ctx, record); err != nil {
			s.logger.Warn("添付ファイルキャッシュの更新に失敗しました",
				slog.String("attachment_uuid", a.UUID),
				slog.String("error", err.Error()),
			)
		}
		attachments = append(attachments, record)
	}
	return attachments
}

// toCacheRecord は外部システムのジョブをキャッシュレコードに変換する。
func toCacheRecord(job *servicem8.Job, syncedAt time.Time) *model.Job {
	return &model.Job{
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
		SyncedAt:     syncedAt,
		CreatedAt:    syncedAt,
		UpdatedAt:    syncedAt,
	}
}

// matchesContact は顧客の連絡先とジョブの連絡先が一致するかを判定する。
// メールアドレスは正規化後の完全一致で判定する。電話番号は数字のみに
// 正規化した上で、ジョブ側の番号が顧客の番号を含むかで判定する。
// 国番号や市外局番の付与で桁数が揺れるため完全一致にはしない。
func matchesContact(customer *model.Customer, job *servicem8.Job) bool {
	if customer.Email != "" && strings.EqualFold(strings.TrimSpace(job.ContactEmail), customer.Email) {
		return true
	}
	if customer.Phone != "" && strings.Contains(normalizeDigits(job.ContactPhone), customer.Phone) {
		return true
	}
	return false
}

// normalizeDigits は文字列から数字以外を取り除く。
func normalizeDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// sortBookings は予約を予定日時の降順（未定は末尾）、同時刻は
// ジョブ識別子の昇順で並べ替える。
func sortBookings(bookings []*model.Job) {
	sort.SliceStable(bookings, func(i, j int) bool {
		a, b := bookings[i].ScheduledAt, bookings[j].ScheduledAt
		switch {
		case a == nil && b == nil:
			return bookings[i].JobUUID < bookings[j].JobUUID
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.After(*b)
		default:
			return bookings[i].JobUUID < bookings[j].JobUUID
		}
	})
}
