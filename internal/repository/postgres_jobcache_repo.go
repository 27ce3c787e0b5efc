package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/fieldportal/internal/model"
)

// PostgresJobCacheRepo はPostgreSQLを使用したジョブキャッシュリポジトリ。
type PostgresJobCacheRepo struct {
	db *sql.DB
}

// NewPostgresJobCacheRepo はPostgresJobCacheRepoを生成する。
func NewPostgresJobCacheRepo(db *sql.DB) *PostgresJobCacheRepo {
	return &PostgresJobCacheRepo{db: db}
}

const jobCacheColumns = `id, job_uuid, company_uuid, address, description, status,
	        scheduled_at, contact_name, contact_email, contact_phone,
	        raw_data, synced_at, created_at, updated_at`

// FindByJobUUID は外部ジョブ識別子でキャッシュレコードを取得する。見つからない場合はnilを返す。
func (r *PostgresJobCacheRepo) FindByJobUUID(ctx context.Context, jobUUID string) (*model.Job, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+jobCacheColumns+` FROM job_cache WHERE job_uuid = $1`,
		jobUUID,
	)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ジョブキャッシュの取得に失敗しました: %w", err)
	}
	return job, nil
}

// ListFreshByCompany は指定会社のキャッシュレコードのうち、
// sinceより後に同期されたものをscheduled_at降順で返す。
func (r *PostgresJobCacheRepo) ListFreshByCompany(ctx context.Context, companyUUID string, since time.Time) ([]*model.Job, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+jobCacheColumns+`
		 FROM job_cache
		 WHERE company_uuid = $1 AND synced_at > $2
		 ORDER BY scheduled_at DESC NULLS LAST, job_uuid`,
		companyUUID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("ジョブキャッシュの一覧取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("ジョブキャッシュの読み取りに失敗しました: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ジョブキャッシュの走査に失敗しました: %w", err)
	}

	return jobs, nil
}

// Upsert はjob_uuidをキーに挿入または可変フィールドの全置換更新を行う。
// 同時実行のUPSERT競合はlast write winsで解決される（バージョンチェックなし）。
func (r *PostgresJobCacheRepo) Upsert(ctx context.Context, job *model.Job) error {
	var scheduledAt sql.NullTime
	if job.ScheduledAt != nil {
		scheduledAt = sql.NullTime{Time: *job.ScheduledAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO job_cache (id, job_uuid, company_uuid, address, description, status,
		                        scheduled_at, contact_name, contact_email, contact_phone,
		                        raw_data, synced_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (job_uuid) DO UPDATE SET
		     company_uuid  = EXCLUDED.company_uuid,
		     address       = EXCLUDED.address,
		     description   = EXCLUDED.description,
		     status        = EXCLUDED.status,
		     scheduled_at  = EXCLUDED.scheduled_at,
		     contact_name  = EXCLUDED.contact_name,
		     contact_email = EXCLUDED.contact_email,
		     contact_phone = EXCLUDED.contact_phone,
		     raw_data      = EXCLUDED.raw_data,
		     synced_at     = EXCLUDED.synced_at,
		     updated_at    = EXCLUDED.updated_at`,
		job.ID, job.JobUUID, job.CompanyUUID, job.Address, job.Description, string(job.Status),
		scheduledAt, job.ContactName, job.ContactEmail, job.ContactPhone,
		nullIfEmptyBytes(job.RawData), job.SyncedAt, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ジョブキャッシュのUPSERTに失敗しました: %w", err)
	}
	return nil
}

// DeleteByJobUUID は外部ジョブ識別子でキャッシュレコードを削除する。
// レコードが存在しない場合もエラーにしない（冪等）。
func (r *PostgresJobCacheRepo) DeleteByJobUUID(ctx context.Context, jobUUID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM job_cache WHERE job_uuid = $1`,
		jobUUID,
	)
	if err != nil {
		return fmt.Errorf("ジョブキャッシュの削除に失敗しました: %w", err)
	}
	return nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanJob は1行をJobにマッピングする。
func scanJob(row rowScanner) (*model.Job, error) {
	job := &model.Job{}
	var status string
	var scheduledAt sql.NullTime
	var rawData []byte

	err := row.Scan(
		&job.ID, &job.JobUUID, &job.CompanyUUID, &job.Address, &job.Description, &status,
		&scheduledAt, &job.ContactName, &job.ContactEmail, &job.ContactPhone,
		&rawData, &job.SyncedAt, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Status = model.JobStatus(status)
	if scheduledAt.Valid {
		t := scheduledAt.Time
		job.ScheduledAt = &t
	}
	if len(rawData) > 0 {
		job.RawData = rawData
	}

	return job, nil
}

// nullIfEmptyBytes は空のバイト列をNULLに変換する。
func nullIfEmptyBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// compile-time interface check
var _ JobCacheRepository = (*PostgresJobCacheRepo)(nil)
