package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/fieldportal/internal/middleware"
	"github.com/hitoshi/fieldportal/internal/model"
)

// MessageServiceInterface はメッセージハンドラーが必要とするサービスインターフェース。
type MessageServiceInterface interface {
	// ListMessages はジョブのメッセージ一覧を古い順で返す。
	ListMessages(ctx context.Context, customerID, jobUUID string) ([]*model.Message, error)
	// SendMessage はジョブに顧客メッセージを追加する。
	SendMessage(ctx context.Context, customerID, jobUUID, body string) (*model.Message, error)
}

// MessageHandler はメッセージスレッドのHTTPハンドラー。
type MessageHandler struct {
	service MessageServiceInterface
}

// NewMessageHandler はMessageHandlerを生成する。
func NewMessageHandler(service MessageServiceInterface) *MessageHandler {
	return &MessageHandler{service: service}
}

// sendMessageRequest はメッセージ送信リクエストのボディ。
type sendMessageRequest struct {
	Body string `json:"body"`
}

// messageResponse はメッセージのAPIレスポンス。
type messageResponse struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// toMessageResponse はドメインのMessageをレスポンス型に変換する。
func toMessageResponse(m *model.Message) messageResponse {
	return messageResponse{
		ID:        m.ID,
		Sender:    string(m.Sender),
		Body:      m.Content,
		CreatedAt: m.CreatedAt,
	}
}

// ListMessages は予約のメッセージ一覧を返す。
// GET /messages/{jobId}
func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	customerID, err := middleware.CustomerIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	messages, err := h.service.ListMessages(r.Context(), customerID, chi.URLParam(r, "jobId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]messageResponse, len(messages))
	for i, m := range messages {
		responses[i] = toMessageResponse(m)
	}

	writeSuccessWithMeta(w, http.StatusOK, responses, "", listMeta{Count: len(responses)})
}

// SendMessage は予約へのメッセージ送信を処理する。
// POST /messages/{jobId}
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	customerID, err := middleware.CustomerIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	message, err := h.service.SendMessage(r.Context(), customerID, chi.URLParam(r, "jobId"), req.Body)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, toMessageResponse(message), "メッセージを送信しました。")
}
