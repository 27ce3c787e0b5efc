// Package message はジョブに紐づくメッセージスレッドを提供する。
//
// メッセージの閲覧・送信は、対象ジョブへのアクセス制御を通過した
// 顧客に限定される。本文はプレーンテキストとして保存され、
// 作成後の更新・削除は行わない。
package message

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/fieldportal/internal/model"
	"github.com/hitoshi/fieldportal/internal/repository"
	"github.com/hitoshi/fieldportal/internal/servicem8"
)

// AccessAuthorizer は所有権確認付きのジョブ取得を抽象化する。
// booking.Serviceが実装する。
type AccessAuthorizer interface {
	AuthorizeAccess(ctx context.Context, customerID, jobUUID string) (*servicem8.Job, error)
}

// Sanitizer はメッセージ本文のサニタイズを抽象化する。
// security.ContentSanitizerServiceの部分集合。
type Sanitizer interface {
	Sanitize(raw string) string
}

// MetricsRecorder はメッセージ送信のメトリクス記録に必要なインターフェース。
// nilを許容する。
type MetricsRecorder interface {
	RecordMessageSent()
}

// Service はメッセージのビジネスロジックを提供する。
type Service struct {
	messageRepo repository.MessageRepository
	access      AccessAuthorizer
	sanitizer   Sanitizer
	metrics     MetricsRecorder
	logger      *slog.Logger
}

// NewService はServiceを生成する。metricsはnilを許容する。
func NewService(
	messageRepo repository.MessageRepository,
	access AccessAuthorizer,
	sanitizer Sanitizer,
	metrics MetricsRecorder,
	logger *slog.Logger,
) *Service {
	return &Service{
		messageRepo: messageRepo,
		access:      access,
		sanitizer:   sanitizer,
		metrics:     metrics,
		logger:      logger,
	}
}

// ListMessages はジョブのメッセージ一覧を古い順で返す。
// アクセス制御は一覧取得の前に適用される。
func (s *Service) ListMessages(ctx context.Context, customerID, jobUUID string) ([]*model.Message, error) {
	if _, err := s.access.AuthorizeAccess(ctx, customerID, jobUUID); err != nil {
		return nil, err
	}

	messages, err := s.messageRepo.ListByJobUUID(ctx, jobUUID)
	if err != nil {
		return nil, fmt.Errorf("メッセージ一覧の取得に失敗しました: %w", err)
	}
	return messages, nil
}

// SendMessage はジョブに顧客メッセージを追加する。
//
// 本文はサニタイズとトリムの後に検証され、空のものは拒否、
// 上限文字数を超えるものは拒否される。検証はアクセス制御の後に行う。
func (s *Service) SendMessage(ctx context.Context, customerID, jobUUID, body string) (*model.Message, error) {
	if _, err := s.access.AuthorizeAccess(ctx, customerID, jobUUID); err != nil {
		return nil, err
	}

	content := strings.TrimSpace(s.sanitizer.Sanitize(body))
	if content == "" {
		return nil, model.NewMessageEmptyError()
	}
	if length := utf8.RuneCountInString(content); length > model.MessageMaxLength {
		return nil, model.NewMessageTooLongError(length)
	}

	message := &model.Message{
		ID:         uuid.New().String(),
		JobUUID:    jobUUID,
		CustomerID: customerID,
		Sender:     model.SenderCustomer,
		Content:    content,
		CreatedAt:  time.Now(),
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("メッセージの保存に失敗しました: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordMessageSent()
	}
	s.logger.Info("メッセージを送信しました",
		slog.String("customer_id", customerID),
		slog.String("job_uuid", jobUUID),
	)
	return message, nil
}

// PostSystemNotice はジョブのスレッドにシステム通知を追加する。
// ジョブのライフサイクルイベント（作成・キャンセル）から呼ばれる
// 内部操作であり、アクセス制御は適用しない。保存の失敗は元の操作を
// 妨げず、警告ログに留める。
func (s *Service) PostSystemNotice(ctx context.Context, jobUUID, body string) {
	message := &model.Message{
		ID:        uuid.New().String(),
		JobUUID:   jobUUID,
		Sender:    model.SenderSystem,
		Content:   body,
		CreatedAt: time.Now(),
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		s.logger.Warn("システム通知の保存に失敗しました",
			slog.String("job_uuid", jobUUID),
			slog.String("error", err.Error()),
		)
	}
}
