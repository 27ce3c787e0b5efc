package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/fieldportal/internal/booking"
	"github.com/hitoshi/fieldportal/internal/middleware"
	"github.com/hitoshi/fieldportal/internal/model"
)

// --- モック定義 ---

type mockBookingService struct {
	listBookingsFn     func(ctx context.Context, customerID string) (*booking.ListResult, error)
	getBookingDetailFn func(ctx context.Context, customerID, jobUUID string) (*booking.Detail, error)
}

func (m *mockBookingService) ListBookings(ctx context.Context, customerID string) (*booking.ListResult, error) {
	if m.listBookingsFn != nil {
		return m.listBookingsFn(ctx, customerID)
	}
	return &booking.ListResult{}, nil
}

func (m *mockBookingService) GetBookingDetail(ctx context.Context, customerID, jobUUID string) (*booking.Detail, error) {
	if m.getBookingDetailFn != nil {
		return m.getBookingDetailFn(ctx, customerID, jobUUID)
	}
	return nil, nil
}

func authedRequest(method, target, customerID string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	return req.WithContext(middleware.ContextWithCustomerID(req.Context(), customerID))
}

// --- テスト ---

func TestBookingHandler_ListBookings_Success(t *testing.T) {
	scheduled := time.Date(2026, 9, 10, 9, 0, 0, 0, time.UTC)
	svc := &mockBookingService{
		listBookingsFn: func(ctx context.Context, customerID string) (*booking.ListResult, error) {
			if customerID != "cust-1" {
				t.Errorf("customerID = %q", customerID)
			}
			return &booking.ListResult{
				Bookings: []*model.Job{
					{JobUUID: "job-1", Status: model.JobStatusScheduled, Address: "東京都港区1-2-3", ScheduledAt: &scheduled},
					{JobUUID: "job-2", Status: model.JobStatusQuote},
				},
				FromCache: true,
			}, nil
		},
	}
	h := NewBookingHandler(svc)

	w := httptest.NewRecorder()
	h.ListBookings(w, authedRequest(http.MethodGet, "/bookings", "cust-1"))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	envelope := decodeEnvelope(t, w)
	data, _ := envelope["data"].([]any)
	if len(data) != 2 {
		t.Fatalf("data length = %d, want 2", len(data))
	}
	first, _ := data[0].(map[string]any)
	if first["id"] != "job-1" {
		t.Errorf("data[0].id = %v", first["id"])
	}
	meta, _ := envelope["meta"].(map[string]any)
	if meta["count"] != float64(2) {
		t.Errorf("meta.count = %v, want 2", meta["count"])
	}
	if meta["from_cache"] != true {
		t.Errorf("meta.from_cache = %v, want true", meta["from_cache"])
	}
}

func TestBookingHandler_ListBookings_WithoutAuth(t *testing.T) {
	h := NewBookingHandler(&mockBookingService{})

	w := httptest.NewRecorder()
	h.ListBookings(w, httptest.NewRequest(http.MethodGet, "/bookings", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestBookingHandler_ListBookings_UpstreamFailed(t *testing.T) {
	svc := &mockBookingService{
		listBookingsFn: func(ctx context.Context, customerID string) (*booking.ListResult, error) {
			return nil, model.NewUpstreamFailedError("ジョブ一覧の取得")
		},
	}
	h := NewBookingHandler(svc)

	w := httptest.NewRecorder()
	h.ListBookings(w, authedRequest(http.MethodGet, "/bookings", "cust-1"))

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
	if code := firstErrorCode(t, decodeEnvelope(t, w)); code != model.ErrCodeUpstreamFailed {
		t.Errorf("code = %q", code)
	}
}

func TestBookingHandler_GetBookingDetail_Success(t *testing.T) {
	svc := &mockBookingService{
		getBookingDetailFn: func(ctx context.Context, customerID, jobUUID string) (*booking.Detail, error) {
			if jobUUID != "job-1" {
				t.Errorf("jobUUID = %q", jobUUID)
			}
			return &booking.Detail{
				Booking: &model.Job{JobUUID: "job-1", Status: model.JobStatusScheduled},
				Attachments: []*model.Attachment{
					{AttachmentUUID: "att-1", FileName: "before.jpg", FileType: "jpg", URL: "https://cdn.example.com/att-1"},
				},
			}, nil
		},
	}
	h := NewBookingHandler(svc)

	req := withChiURLParam(authedRequest(http.MethodGet, "/bookings/job-1", "cust-1"), "id", "job-1")
	w := httptest.NewRecorder()
	h.GetBookingDetail(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	envelope := decodeEnvelope(t, w)
	data, _ := envelope["data"].(map[string]any)
	attachments, _ := data["attachments"].([]any)
	if len(attachments) != 1 {
		t.Fatalf("attachments length = %d, want 1", len(attachments))
	}
	att, _ := attachments[0].(map[string]any)
	if att["file_name"] != "before.jpg" {
		t.Errorf("file_name = %v", att["file_name"])
	}
}

func TestBookingHandler_GetBookingDetail_NotFound(t *testing.T) {
	svc := &mockBookingService{
		getBookingDetailFn: func(ctx context.Context, customerID, jobUUID string) (*booking.Detail, error) {
			return nil, model.NewBookingNotFoundError()
		},
	}
	h := NewBookingHandler(svc)

	req := withChiURLParam(authedRequest(http.MethodGet, "/bookings/nonexistent", "cust-1"), "id", "nonexistent")
	w := httptest.NewRecorder()
	h.GetBookingDetail(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if code := firstErrorCode(t, decodeEnvelope(t, w)); code != model.ErrCodeBookingNotFound {
		t.Errorf("code = %q", code)
	}
}

// 他社所有のジョブは403。レスポンスに会社識別子は含めない
func TestBookingHandler_GetBookingDetail_Forbidden(t *testing.T) {
	svc := &mockBookingService{
		getBookingDetailFn: func(ctx context.Context, customerID, jobUUID string) (*booking.Detail, error) {
			return nil, model.NewForbiddenError()
		},
	}
	h := NewBookingHandler(svc)

	req := withChiURLParam(authedRequest(http.MethodGet, "/bookings/job-other", "cust-1"), "id", "job-other")
	w := httptest.NewRecorder()
	h.GetBookingDetail(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
	if strings.Contains(w.Body.String(), "uuid") {
		t.Error("forbidden response must not leak identifiers")
	}
}
