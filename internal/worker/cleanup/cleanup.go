// Package cleanup はローカルデータの自動削除ジョブを提供する。
// 期限切れのセッションと、保持期間（デフォルト30日）を超えて同期されて
// いないジョブキャッシュおよび添付ファイルメタデータを日次バッチで削除する。
// 権威は常に外部システム側にあるため、キャッシュの削除はデータの喪失には
// あたらない。メッセージはローカルが唯一の保存先のため削除対象外。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CleanupJob は期限切れセッションと古いジョブキャッシュの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	db                 Executor
	logger             *slog.Logger
	CacheRetentionDays int // ジョブキャッシュの保持日数（デフォルト: 30）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトのキャッシュ保持日数は30日。
func NewCleanupJob(db Executor, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:                 db,
		logger:             logger,
		CacheRetentionDays: 30,
	}
}

// Run は期限切れセッションと古いジョブキャッシュを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	sessionCount, err := j.purgeExpiredSessions(ctx)
	if err != nil {
		return err
	}

	cacheCount, attachmentCount, err := j.purgeStaleJobCache(ctx)
	if err != nil {
		return err
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_sessions", sessionCount),
		slog.Int64("deleted_job_cache", cacheCount),
		slog.Int64("deleted_attachments", attachmentCount),
		slog.Int("cache_retention_days", j.CacheRetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// purgeExpiredSessions は有効期限を過ぎたセッションを削除する。
// トークン自体はexpクレームで失効するため、これはストレージの回収であり
// 認可判定には影響しない。
func (j *CleanupJob) purgeExpiredSessions(ctx context.Context) (int64, error) {
	query := `DELETE FROM sessions WHERE expires_at < now()`
	result, err := j.db.ExecContext(ctx, query)
	if err != nil {
		j.logger.Error("セッションクリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	return deleted, nil
}

// purgeStaleJobCache は保持期間を超えて同期されていないジョブキャッシュと、
// それに紐づく添付ファイルメタデータを削除する。添付ファイルを先に削除する
// ことで、キャッシュ削除後に孤児レコードが残らないようにする。
func (j *CleanupJob) purgeStaleJobCache(ctx context.Context) (cacheCount, attachmentCount int64, err error) {
	interval := fmt.Sprintf("%d days", j.CacheRetentionDays)

	attachmentQuery := `DELETE FROM attachments WHERE job_uuid IN (
		SELECT job_uuid FROM job_cache WHERE synced_at < now() - $1::interval
	)`
	result, err := j.db.ExecContext(ctx, attachmentQuery, interval)
	if err != nil {
		j.logger.Error("添付ファイルクリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("cache_retention_days", j.CacheRetentionDays),
		)
		return 0, 0, fmt.Errorf("添付ファイルクリーンアップの実行に失敗: %w", err)
	}
	attachmentCount, err = result.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	cacheQuery := `DELETE FROM job_cache WHERE synced_at < now() - $1::interval`
	result, err = j.db.ExecContext(ctx, cacheQuery, interval)
	if err != nil {
		j.logger.Error("ジョブキャッシュクリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("cache_retention_days", j.CacheRetentionDays),
		)
		return 0, 0, fmt.Errorf("ジョブキャッシュクリーンアップの実行に失敗: %w", err)
	}
	cacheCount, err = result.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	return cacheCount, attachmentCount, nil
}
