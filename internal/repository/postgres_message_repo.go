package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/fieldportal/internal/model"
)

// PostgresMessageRepo はPostgreSQLを使用したメッセージリポジトリ。
type PostgresMessageRepo struct {
	db *sql.DB
}

// NewPostgresMessageRepo はPostgresMessageRepoを生成する。
func NewPostgresMessageRepo(db *sql.DB) *PostgresMessageRepo {
	return &PostgresMessageRepo{db: db}
}

// Create はメッセージを作成する。
// システム通知は顧客に紐づかないため、customer_idはNULLとして保存する。
func (r *PostgresMessageRepo) Create(ctx context.Context, message *model.Message) error {
	customerID := sql.NullString{String: message.CustomerID, Valid: message.CustomerID != ""}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (id, job_uuid, customer_id, sender, content, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		message.ID, message.JobUUID, customerID,
		string(message.Sender), message.Content, message.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("メッセージの作成に失敗しました: %w", err)
	}
	return nil
}

// ListByJobUUID はジョブのメッセージ一覧を古い順で返す。
// 同時刻のメッセージはidの昇順で安定ソートする。
func (r *PostgresMessageRepo) ListByJobUUID(ctx context.Context, jobUUID string) ([]*model.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, job_uuid, customer_id, sender, content, created_at
		 FROM messages
		 WHERE job_uuid = $1
		 ORDER BY created_at ASC, id ASC`,
		jobUUID,
	)
	if err != nil {
		return nil, fmt.Errorf("メッセージの一覧取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var messages []*model.Message
	for rows.Next() {
		message := &model.Message{}
		var sender string
		var customerID sql.NullString
		if err := rows.Scan(
			&message.ID, &message.JobUUID, &customerID,
			&sender, &message.Content, &message.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("メッセージの読み取りに失敗しました: %w", err)
		}
		message.CustomerID = customerID.String
		message.Sender = model.SenderKind(sender)
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("メッセージの走査に失敗しました: %w", err)
	}

	return messages, nil
}

// compile-time interface check
var _ MessageRepository = (*PostgresMessageRepo)(nil)
