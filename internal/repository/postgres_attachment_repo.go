package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/fieldportal/internal/model"
)

// PostgresAttachmentRepo はPostgreSQLを使用した添付ファイルリポジトリ。
type PostgresAttachmentRepo struct {
	db *sql.DB
}

// NewPostgresAttachmentRepo はPostgresAttachmentRepoを生成する。
func NewPostgresAttachmentRepo(db *sql.DB) *PostgresAttachmentRepo {
	return &PostgresAttachmentRepo{db: db}
}

// Upsert はattachment_uuidをキーに挿入または更新を行う。
func (r *PostgresAttachmentRepo) Upsert(ctx context.Context, attachment *model.Attachment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO attachments (id, job_uuid, attachment_uuid, file_name, file_type, url, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (attachment_uuid) DO UPDATE SET
		     file_name = EXCLUDED.file_name,
		     file_type = EXCLUDED.file_type,
		     url       = EXCLUDED.url`,
		attachment.ID, attachment.JobUUID, attachment.AttachmentUUID,
		attachment.FileName, attachment.FileType, attachment.URL, attachment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("添付ファイルのUPSERTに失敗しました: %w", err)
	}
	return nil
}

// ListByJobUUID はジョブの添付ファイル一覧を返す。
func (r *PostgresAttachmentRepo) ListByJobUUID(ctx context.Context, jobUUID string) ([]*model.Attachment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, job_uuid, attachment_uuid, file_name, file_type, url, created_at
		 FROM attachments
		 WHERE job_uuid = $1
		 ORDER BY created_at ASC, attachment_uuid`,
		jobUUID,
	)
	if err != nil {
		return nil, fmt.Errorf("添付ファイルの一覧取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var attachments []*model.Attachment
	for rows.Next() {
		attachment := &model.Attachment{}
		if err := rows.Scan(
			&attachment.ID, &attachment.JobUUID, &attachment.AttachmentUUID,
			&attachment.FileName, &attachment.FileType, &attachment.URL, &attachment.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("添付ファイルの読み取りに失敗しました: %w", err)
		}
		attachments = append(attachments, attachment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("添付ファイルの走査に失敗しました: %w", err)
	}

	return attachments, nil
}

// compile-time interface check
var _ AttachmentRepository = (*PostgresAttachmentRepo)(nil)
