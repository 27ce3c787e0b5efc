package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/fieldportal/internal/model"
	"github.com/hitoshi/fieldportal/internal/servicem8"
)

// mockUpstream はUpstreamClientのテスト用モック。
type mockUpstream struct {
	createJobFn     func(ctx context.Context, fields map[string]any) (*servicem8.Job, error)
	updateJobFn     func(ctx context.Context, jobUUID string, fields map[string]any) error
	createCompanyFn func(ctx context.Context, fields map[string]any) (*servicem8.Company, error)
}

func (m *mockUpstream) CreateJob(ctx context.Context, fields map[string]any) (*servicem8.Job, error) {
	if m.createJobFn == nil {
		return &servicem8.Job{UUID: "job-new"}, nil
	}
	return m.createJobFn(ctx, fields)
}

func (m *mockUpstream) UpdateJob(ctx context.Context, jobUUID string, fields map[string]any) error {
	if m.updateJobFn == nil {
		return nil
	}
	return m.updateJobFn(ctx, jobUUID, fields)
}

func (m *mockUpstream) CreateCompany(ctx context.Context, fields map[string]any) (*servicem8.Company, error) {
	if m.createCompanyFn == nil {
		return &servicem8.Company{UUID: "company-new"}, nil
	}
	return m.createCompanyFn(ctx, fields)
}

// mockAccess はAccessAuthorizerのテスト用モック。
type mockAccess struct {
	authorizeAccessFn    func(ctx context.Context, customerID, jobUUID string) (*servicem8.Job, error)
	resolveCompanyUUIDFn func(ctx context.Context, customer *model.Customer) (string, error)
}

func (m *mockAccess) AuthorizeAccess(ctx context.Context, customerID, jobUUID string) (*servicem8.Job, error) {
	if m.authorizeAccessFn == nil {
		return &servicem8.Job{UUID: jobUUID, CompanyUUID: "company-1", Active: 1, Status: "Quote"}, nil
	}
	return m.authorizeAccessFn(ctx, customerID, jobUUID)
}

func (m *mockAccess) ResolveCompanyUUID(ctx context.Context, customer *model.Customer) (string, error) {
	if m.resolveCompanyUUIDFn == nil {
		return customer.CompanyUUID, nil
	}
	return m.resolveCompanyUUIDFn(ctx, customer)
}

// mockCustomerRepo はCustomerRepositoryのテスト用モック。
type mockCustomerRepo struct {
	findByIDFn          func(ctx context.Context, id string) (*model.Customer, error)
	updateCompanyUUIDFn func(ctx context.Context, id, companyUUID string) error
}

func (m *mockCustomerRepo) FindByID(ctx context.Context, id string) (*model.Customer, error) {
	if m.findByIDFn == nil {
		return &model.Customer{ID: id, Email: "a@example.com", CompanyUUID: "company-1"}, nil
	}
	return m.findByIDFn(ctx, id)
}

func (m *mockCustomerRepo) FindByEmail(ctx context.Context, email string) (*model.Customer, error) {
	return nil, nil
}

func (m *mockCustomerRepo) FindByPhone(ctx context.Context, phone string) (*model.Customer, error) {
	return nil, nil
}

func (m *mockCustomerRepo) Create(ctx context.Context, customer *model.Customer) error {
	return nil
}

func (m *mockCustomerRepo) UpdateCompanyUUID(ctx context.Context, id, companyUUID string) error {
	if m.updateCompanyUUIDFn == nil {
		return nil
	}
	return m.updateCompanyUUIDFn(ctx, id, companyUUID)
}

// mockJobCacheRepo はJobCacheRepositoryのテスト用モック。
type mockJobCacheRepo struct {
	upsertFn          func(ctx context.Context, job *model.Job) error
	deleteByJobUUIDFn func(ctx context.Context, jobUUID string) error

	upserted []*model.Job
	deleted  []string
}

func (m *mockJobCacheRepo) FindByJobUUID(ctx context.Context, jobUUID string) (*model.Job, error) {
	return nil, nil
}

func (m *mockJobCacheRepo) ListFreshByCompany(ctx context.Context, companyUUID string, since time.Time) ([]*model.Job, error) {
	return nil, nil
}

func (m *mockJobCacheRepo) Upsert(ctx context.Context, job *model.Job) error {
	m.upserted = append(m.upserted, job)
	if m.upsertFn == nil {
		return nil
	}
	return m.upsertFn(ctx, job)
}

func (m *mockJobCacheRepo) DeleteByJobUUID(ctx context.Context, jobUUID string) error {
	m.deleted = append(m.deleted, jobUUID)
	if m.deleteByJobUUIDFn == nil {
		return nil
	}
	return m.deleteByJobUUIDFn(ctx, jobUUID)
}

// mockNotifier はNotifierのテスト用モック。
type mockNotifier struct {
	notices []string
}

func (m *mockNotifier) PostSystemNotice(ctx context.Context, jobUUID, body string) {
	m.notices = append(m.notices, jobUUID+": "+body)
}

// newTestService はテスト用のServiceを組み立てる。
func newTestService(upstream *mockUpstream, access *mockAccess, customers *mockCustomerRepo, cache *mockJobCacheRepo, notifier *mockNotifier) *Service {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	var n Notifier
	if notifier != nil {
		n = notifier
	}
	return NewService(upstream, access, customers, cache, n, logger)
}

// wantAPIErrorCode はエラーコードを検証するヘルパー。
func wantAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T: %v", err, err)
	}
	if apiErr.Code != code {
		t.Errorf("code = %q, want %q", apiErr.Code, code)
	}
}

// 作成が外部システム先行でキャッシュに反映されることを検証
func TestCreateJob_TwoPhaseWrite(t *testing.T) {
	var sentFields map[string]any
	upstream := &mockUpstream{
		createJobFn: func(ctx context.Context, fields map[string]any) (*servicem8.Job, error) {
			sentFields = fields
			return &servicem8.Job{UUID: "job-new", CompanyUUID: "company-1", Status: "Quote"}, nil
		},
	}
	cache := &mockJobCacheRepo{}
	notifier := &mockNotifier{}
	svc := newTestService(upstream, &mockAccess{}, &mockCustomerRepo{}, cache, notifier)

	scheduled := time.Date(2026, 9, 10, 9, 0, 0, 0, time.UTC)
	record, err := svc.CreateJob(context.Background(), "cust-1", CreateInput{
		Address:     "1 Main St",
		Description: "蛇口の水漏れ修理",
		ScheduledAt: &scheduled,
	})
	if err != nil {
		t.Fatalf("CreateJob returned error: %v", err)
	}

	if sentFields["company_uuid"] != "company-1" {
		t.Errorf("company_uuid = %v", sentFields["company_uuid"])
	}
	if sentFields["status"] != "Quote" {
		t.Errorf("status = %v, want Quote", sentFields["status"])
	}
	if sentFields["scheduled_date"] != "2026-09-10 09:00:00" {
		t.Errorf("scheduled_date = %v", sentFields["scheduled_date"])
	}
	if record.JobUUID != "job-new" {
		t.Errorf("record.JobUUID = %q", record.JobUUID)
	}
	if len(cache.upserted) != 1 {
		t.Errorf("cache upserts = %d, want 1", len(cache.upserted))
	}
	if len(notifier.notices) != 1 {
		t.Errorf("system notices = %d, want 1", len(notifier.notices))
	}
}

// 外部システムの作成失敗時にキャッシュへ書き込まないことを検証
func TestCreateJob_UpstreamFailureIsFatal(t *testing.T) {
	upstream := &mockUpstream{
		createJobFn: func(ctx context.Context, fields map[string]any) (*servicem8.Job, error) {
			return nil, fmt.Errorf("timeout")
		},
	}
	cache := &mockJobCacheRepo{}
	svc := newTestService(upstream, &mockAccess{}, &mockCustomerRepo{}, cache, nil)

	_, err := svc.CreateJob(context.Background(), "cust-1", CreateInput{Description: "修理"})
	wantAPIErrorCode(t, err, model.ErrCodeUpstreamFailed)
	if len(cache.upserted) != 0 {
		t.Error("failed upstream write must not reach the local cache")
	}
}

// 識別子を欠いた作成レスポンスがUPSTREAM_MALFORMEDになることを検証
func TestCreateJob_MissingUUIDIsMalformed(t *testing.T) {
	upstream := &mockUpstream{
		createJobFn: func(ctx context.Context, fields map[string]any) (*servicem8.Job, error) {
			return &servicem8.Job{}, nil
		},
	}
	cache := &mockJobCacheRepo{}
	svc := newTestService(upstream, &mockAccess{}, &mockCustomerRepo{}, cache, nil)

	_, err := svc.CreateJob(context.Background(), "cust-1", CreateInput{Description: "修理"})
	wantAPIErrorCode(t, err, model.ErrCodeUpstreamMalformed)
	if len(cache.upserted) != 0 {
		t.Error("malformed response must not reach the local cache")
	}
}

// キャッシュ反映の失敗が作成を失敗させないことを検証
func TestCreateJob_CacheFailureIsBestEffort(t *testing.T) {
	cache := &mockJobCacheRepo{
		upsertFn: func(ctx context.Context, job *model.Job) error {
			return fmt.Errorf("disk full")
		},
	}
	svc := newTestService(&mockUpstream{}, &mockAccess{}, &mockCustomerRepo{}, cache, nil)

	record, err := svc.CreateJob(context.Background(), "cust-1", CreateInput{Description: "修理"})
	if err != nil {
		t.Fatalf("CreateJob returned error: %v (cache failure must be best effort)", err)
	}
	if record.JobUUID != "job-new" {
		t.Errorf("record.JobUUID = %q", record.JobUUID)
	}
}

// 依頼内容が空の作成は拒否されることを検証
func TestCreateJob_EmptyDescriptionRejected(t *testing.T) {
	svc := newTestService(&mockUpstream{}, &mockAccess{}, &mockCustomerRepo{}, &mockJobCacheRepo{}, nil)

	_, err := svc.CreateJob(context.Background(), "cust-1", CreateInput{Description: "   "})
	wantAPIErrorCode(t, err, model.ErrCodeValidation)
}

// 指定されたステータスが外部システムへそのまま送信されることを検証
func TestCreateJob_ExplicitStatus(t *testing.T) {
	var sentFields map[string]any
	upstream := &mockUpstream{
		createJobFn: func(ctx context.Context, fields map[string]any) (*servicem8.Job, error) {
			sentFields = fields
			return &servicem8.Job{UUID: "job-new"}, nil
		},
	}
	svc := newTestService(upstream, &mockAccess{}, &mockCustomerRepo{}, &mockJobCacheRepo{}, nil)

	record, err := svc.CreateJob(context.Background(), "cust-1", CreateInput{
		Description: "修理",
		Status:      string(model.JobStatusWorkOrder),
	})
	if err != nil {
		t.Fatalf("CreateJob returned error: %v", err)
	}
	if sentFields["status"] != "Work Order" {
		t.Errorf("status = %v, want Work Order", sentFields["status"])
	}
	// レスポンスがステータスを省略した場合も送信した値で補完される
	if record.Status != model.JobStatusWorkOrder {
		t.Errorf("record.Status = %q, want Work Order", record.Status)
	}
}

// 未定義のステータス指定は外部システムへ送信せず拒否されることを検証
func TestCreateJob_InvalidStatusRejected(t *testing.T) {
	called := false
	upstream := &mockUpstream{
		createJobFn: func(ctx context.Context, fields map[string]any) (*servicem8.Job, error) {
			called = true
			return &servicem8.Job{UUID: "job-new"}, nil
		},
	}
	svc := newTestService(upstream, &mockAccess{}, &mockCustomerRepo{}, &mockJobCacheRepo{}, nil)

	_, err := svc.CreateJob(context.Background(), "cust-1", CreateInput{
		Description: "修理",
		Status:      "Done",
	})
	wantAPIErrorCode(t, err, model.ErrCodeValidation)
	if called {
		t.Error("invalid status must not reach the external system")
	}
}

// 会社未解決の顧客の作成時に会社が作成され補完されることを検証
func TestCreateJob_CreatesCompanyWhenUnresolved(t *testing.T) {
	var companyFields map[string]any
	var backfilled string
	upstream := &mockUpstream{
		createCompanyFn: func(ctx context.Context, fields map[string]any) (*servicem8.Company, error) {
			companyFields = fields
			return &servicem8.Company{UUID: "company-new"}, nil
		},
		createJobFn: func(ctx context.Context, fields map[string]any) (*servicem8.Job, error) {
			if fields["company_uuid"] != "company-new" {
				t.Errorf("job company_uuid = %v, want company-new", fields["company_uuid"])
			}
			return &servicem8.Job{UUID: "job-new", CompanyUUID: "company-new"}, nil
		},
	}
	access := &mockAccess{
		resolveCompanyUUIDFn: func(ctx context.Context, customer *model.Customer) (string, error) {
			return "", nil
		},
	}
	customers := &mockCustomerRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Customer, error) {
			return &model.Customer{ID: id, Email: "a@example.com", Phone: "09012345678", FirstName: "太郎", LastName: "山田"}, nil
		},
		updateCompanyUUIDFn: func(ctx context.Context, id, companyUUID string) error {
			backfilled = companyUUID
			return nil
		},
	}
	svc := newTestService(upstream, access, customers, &mockJobCacheRepo{}, nil)

	_, err := svc.CreateJob(context.Background(), "cust-1", CreateInput{Description: "修理"})
	if err != nil {
		t.Fatalf("CreateJob returned error: %v", err)
	}
	if companyFields["email"] != "a@example.com" {
		t.Errorf("company email = %v", companyFields["email"])
	}
	if backfilled != "company-new" {
		t.Errorf("backfilled company = %q, want company-new", backfilled)
	}
}

// 更新が指定フィールドのみ送信することを検証
func TestUpdateJob_PartialFields(t *testing.T) {
	var sentFields map[string]any
	upstream := &mockUpstream{
		updateJobFn: func(ctx context.Context, jobUUID string, fields map[string]any) error {
			sentFields = fields
			return nil
		},
	}
	cache := &mockJobCacheRepo{}
	svc := newTestService(upstream, &mockAccess{}, &mockCustomerRepo{}, cache, nil)

	desc := "日程変更をお願いします"
	record, err := svc.UpdateJob(context.Background(), "cust-1", "job-1", UpdateInput{Description: &desc})
	if err != nil {
		t.Fatalf("UpdateJob returned error: %v", err)
	}
	if len(sentFields) != 1 || sentFields["job_description"] != desc {
		t.Errorf("sent fields = %v, want only job_description", sentFields)
	}
	if record.Description != desc {
		t.Errorf("record.Description = %q", record.Description)
	}
	if len(cache.upserted) != 1 {
		t.Errorf("cache upserts = %d, want 1", len(cache.upserted))
	}
}

// フィールド未指定の更新は拒否されることを検証
func TestUpdateJob_NoFieldsRejected(t *testing.T) {
	svc := newTestService(&mockUpstream{}, &mockAccess{}, &mockCustomerRepo{}, &mockJobCacheRepo{}, nil)

	_, err := svc.UpdateJob(context.Background(), "cust-1", "job-1", UpdateInput{})
	wantAPIErrorCode(t, err, model.ErrCodeValidation)
}

// 不正なステータスへの更新は拒否されることを検証
func TestUpdateJob_InvalidStatusRejected(t *testing.T) {
	svc := newTestService(&mockUpstream{}, &mockAccess{}, &mockCustomerRepo{}, &mockJobCacheRepo{}, nil)

	bad := "Nonsense"
	_, err := svc.UpdateJob(context.Background(), "cust-1", "job-1", UpdateInput{Status: &bad})
	wantAPIErrorCode(t, err, model.ErrCodeValidation)
}

// アクセス制御エラーが更新を遮断することを検証
func TestUpdateJob_GuardErrorPropagates(t *testing.T) {
	access := &mockAccess{
		authorizeAccessFn: func(ctx context.Context, customerID, jobUUID string) (*servicem8.Job, error) {
			return nil, model.NewForbiddenError()
		},
	}
	upstreamCalled := false
	upstream := &mockUpstream{
		updateJobFn: func(ctx context.Context, jobUUID string, fields map[string]any) error {
			upstreamCalled = true
			return nil
		},
	}
	svc := newTestService(upstream, access, &mockCustomerRepo{}, &mockJobCacheRepo{}, nil)

	desc := "x"
	_, err := svc.UpdateJob(context.Background(), "cust-1", "job-1", UpdateInput{Description: &desc})
	wantAPIErrorCode(t, err, model.ErrCodeForbidden)
	if upstreamCalled {
		t.Error("guard failure must prevent the upstream write")
	}
}

// キャンセルがステータス遷移とキャッシュ削除を行うことを検証
func TestCancelJob_TransitionsAndRemovesFromCache(t *testing.T) {
	var sentFields map[string]any
	upstream := &mockUpstream{
		updateJobFn: func(ctx context.Context, jobUUID string, fields map[string]any) error {
			sentFields = fields
			return nil
		},
	}
	cache := &mockJobCacheRepo{}
	notifier := &mockNotifier{}
	svc := newTestService(upstream, &mockAccess{}, &mockCustomerRepo{}, cache, notifier)

	if err := svc.CancelJob(context.Background(), "cust-1", "job-1"); err != nil {
		t.Fatalf("CancelJob returned error: %v", err)
	}
	if sentFields["status"] != "Cancelled" || sentFields["active"] != 0 {
		t.Errorf("cancel fields = %v, want status=Cancelled active=0", sentFields)
	}
	if len(cache.deleted) != 1 || cache.deleted[0] != "job-1" {
		t.Errorf("cache deletions = %v, want [job-1]", cache.deleted)
	}
	if len(notifier.notices) != 1 {
		t.Errorf("system notices = %d, want 1", len(notifier.notices))
	}
}

// 外部システムのキャンセル失敗がベストエフォートであることを検証
func TestCancelJob_UpstreamFailureIsBestEffort(t *testing.T) {
	upstream := &mockUpstream{
		updateJobFn: func(ctx context.Context, jobUUID string, fields map[string]any) error {
			return fmt.Errorf("timeout")
		},
	}
	cache := &mockJobCacheRepo{}
	svc := newTestService(upstream, &mockAccess{}, &mockCustomerRepo{}, cache, nil)

	if err := svc.CancelJob(context.Background(), "cust-1", "job-1"); err != nil {
		t.Fatalf("CancelJob returned error: %v (upstream cancel is best effort)", err)
	}
	if len(cache.deleted) != 1 {
		t.Error("local cache removal should still happen")
	}
}

// キャッシュ削除の失敗はキャンセルを失敗させることを検証
func TestCancelJob_CacheDeleteFailureIsFatal(t *testing.T) {
	cache := &mockJobCacheRepo{
		deleteByJobUUIDFn: func(ctx context.Context, jobUUID string) error {
			return fmt.Errorf("deadlock")
		},
	}
	svc := newTestService(&mockUpstream{}, &mockAccess{}, &mockCustomerRepo{}, cache, nil)

	if err := svc.CancelJob(context.Background(), "cust-1", "job-1"); err == nil {
		t.Error("expected error when local removal fails")
	}
}
