package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/fieldportal/internal/model"
)

// --- モック定義 ---

type mockMessageService struct {
	listMessagesFn func(ctx context.Context, customerID, jobUUID string) ([]*model.Message, error)
	sendMessageFn  func(ctx context.Context, customerID, jobUUID, body string) (*model.Message, error)
}

func (m *mockMessageService) ListMessages(ctx context.Context, customerID, jobUUID string) ([]*model.Message, error) {
	if m.listMessagesFn != nil {
		return m.listMessagesFn(ctx, customerID, jobUUID)
	}
	return nil, nil
}

func (m *mockMessageService) SendMessage(ctx context.Context, customerID, jobUUID, body string) (*model.Message, error) {
	if m.sendMessageFn != nil {
		return m.sendMessageFn(ctx, customerID, jobUUID, body)
	}
	return nil, nil
}

// --- テスト ---

func TestMessageHandler_ListMessages_Success(t *testing.T) {
	svc := &mockMessageService{
		listMessagesFn: func(ctx context.Context, customerID, jobUUID string) ([]*model.Message, error) {
			return []*model.Message{
				{ID: "msg-1", JobUUID: jobUUID, Sender: model.SenderSystem, Content: "予約を受け付けました", CreatedAt: time.Now().Add(-time.Hour)},
				{ID: "msg-2", JobUUID: jobUUID, CustomerID: customerID, Sender: model.SenderCustomer, Content: "よろしくお願いします", CreatedAt: time.Now()},
			}, nil
		},
	}
	h := NewMessageHandler(svc)

	req := withChiURLParam(authedRequest(http.MethodGet, "/messages/job-1", "cust-1"), "jobId", "job-1")
	w := httptest.NewRecorder()
	h.ListMessages(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	envelope := decodeEnvelope(t, w)
	data, _ := envelope["data"].([]any)
	if len(data) != 2 {
		t.Fatalf("data length = %d, want 2", len(data))
	}
	first, _ := data[0].(map[string]any)
	if first["sender"] != string(model.SenderSystem) {
		t.Errorf("data[0].sender = %v", first["sender"])
	}
	meta, _ := envelope["meta"].(map[string]any)
	if meta["count"] != float64(2) {
		t.Errorf("meta.count = %v", meta["count"])
	}
}

func TestMessageHandler_ListMessages_Forbidden(t *testing.T) {
	svc := &mockMessageService{
		listMessagesFn: func(ctx context.Context, customerID, jobUUID string) ([]*model.Message, error) {
			return nil, model.NewForbiddenError()
		},
	}
	h := NewMessageHandler(svc)

	req := withChiURLParam(authedRequest(http.MethodGet, "/messages/job-other", "cust-1"), "jobId", "job-other")
	w := httptest.NewRecorder()
	h.ListMessages(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestMessageHandler_SendMessage_Success(t *testing.T) {
	svc := &mockMessageService{
		sendMessageFn: func(ctx context.Context, customerID, jobUUID, body string) (*model.Message, error) {
			if body != "作業前に連絡をお願いします" {
				t.Errorf("body = %q", body)
			}
			return &model.Message{
				ID:         "msg-1",
				JobUUID:    jobUUID,
				CustomerID: customerID,
				Sender:     model.SenderCustomer,
				Content:    body,
				CreatedAt:  time.Now(),
			}, nil
		},
	}
	h := NewMessageHandler(svc)

	req := withChiURLParam(
		authedJSONRequest(http.MethodPost, "/messages/job-1", "cust-1", `{"body":"作業前に連絡をお願いします"}`),
		"jobId", "job-1")
	w := httptest.NewRecorder()
	h.SendMessage(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
	envelope := decodeEnvelope(t, w)
	data, _ := envelope["data"].(map[string]any)
	if data["sender"] != string(model.SenderCustomer) {
		t.Errorf("sender = %v", data["sender"])
	}
}

func TestMessageHandler_SendMessage_EmptyBody(t *testing.T) {
	svc := &mockMessageService{
		sendMessageFn: func(ctx context.Context, customerID, jobUUID, body string) (*model.Message, error) {
			return nil, model.NewMessageEmptyError()
		},
	}
	h := NewMessageHandler(svc)

	req := withChiURLParam(
		authedJSONRequest(http.MethodPost, "/messages/job-1", "cust-1", `{"body":"   "}`),
		"jobId", "job-1")
	w := httptest.NewRecorder()
	h.SendMessage(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if code := firstErrorCode(t, decodeEnvelope(t, w)); code != model.ErrCodeMessageEmpty {
		t.Errorf("code = %q", code)
	}
}

func TestMessageHandler_SendMessage_TooLong(t *testing.T) {
	svc := &mockMessageService{
		sendMessageFn: func(ctx context.Context, customerID, jobUUID, body string) (*model.Message, error) {
			return nil, model.NewMessageTooLongError(1001)
		},
	}
	h := NewMessageHandler(svc)

	req := withChiURLParam(
		authedJSONRequest(http.MethodPost, "/messages/job-1", "cust-1", `{"body":"x"}`),
		"jobId", "job-1")
	w := httptest.NewRecorder()
	h.SendMessage(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if code := firstErrorCode(t, decodeEnvelope(t, w)); code != model.ErrCodeMessageTooLong {
		t.Errorf("code = %q", code)
	}
}

func TestMessageHandler_SendMessage_InvalidJSON(t *testing.T) {
	h := NewMessageHandler(&mockMessageService{})

	req := withChiURLParam(
		authedJSONRequest(http.MethodPost, "/messages/job-1", "cust-1", "{broken"),
		"jobId", "job-1")
	w := httptest.NewRecorder()
	h.SendMessage(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
