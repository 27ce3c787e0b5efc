package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/fieldportal/internal/booking"
	"github.com/hitoshi/fieldportal/internal/middleware"
	"github.com/hitoshi/fieldportal/internal/model"
)

// BookingServiceInterface は予約ハンドラーが必要とするサービスインターフェース。
type BookingServiceInterface interface {
	// ListBookings は顧客の予約一覧を返す。
	ListBookings(ctx context.Context, customerID string) (*booking.ListResult, error)
	// GetBookingDetail は予約詳細を返す。
	GetBookingDetail(ctx context.Context, customerID, jobUUID string) (*booking.Detail, error)
}

// BookingHandler は予約照会のHTTPハンドラー。
type BookingHandler struct {
	service BookingServiceInterface
}

// NewBookingHandler はBookingHandlerを生成する。
func NewBookingHandler(service BookingServiceInterface) *BookingHandler {
	return &BookingHandler{service: service}
}

// bookingResponse は予約情報のAPIレスポンス。
// IDには外部ジョブ識別子を使用する。
type bookingResponse struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	Address      string     `json:"address"`
	Description  string     `json:"description"`
	ScheduledAt  *time.Time `json:"scheduled_at"`
	ContactName  string     `json:"contact_name"`
	ContactEmail string     `json:"contact_email"`
	ContactPhone string     `json:"contact_phone"`
	SyncedAt     time.Time  `json:"synced_at"`
}

// attachmentResponse は添付ファイル情報のAPIレスポンス。
type attachmentResponse struct {
	ID       string `json:"id"`
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
	URL      string `json:"url"`
}

// bookingDetailResponse は予約詳細のAPIレスポンス。
type bookingDetailResponse struct {
	bookingResponse
	Attachments []attachmentResponse `json:"attachments"`
}

// toBookingResponse はドメインのJobをレスポンス型に変換する。
func toBookingResponse(job *model.Job) bookingResponse {
	return bookingResponse{
		ID:           job.JobUUID,
		Status:       string(job.Status),
		Address:      job.Address,
		Description:  job.Description,
		ScheduledAt:  job.ScheduledAt,
		ContactName:  job.ContactName,
		ContactEmail: job.ContactEmail,
		ContactPhone: job.ContactPhone,
		SyncedAt:     job.SyncedAt,
	}
}

// ListBookings は予約一覧を返す。
// GET /bookings
func (h *BookingHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	customerID, err := middleware.CustomerIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	result, err := h.service.ListBookings(r.Context(), customerID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	bookings := make([]bookingResponse, len(result.Bookings))
	for i, job := range result.Bookings {
		bookings[i] = toBookingResponse(job)
	}

	writeSuccessWithMeta(w, http.StatusOK, bookings, "", listMeta{
		Count:     len(bookings),
		FromCache: result.FromCache,
	})
}

// GetBookingDetail は予約詳細を返す。
// GET /bookings/{id}
func (h *BookingHandler) GetBookingDetail(w http.ResponseWriter, r *http.Request) {
	customerID, err := middleware.CustomerIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	jobUUID := chi.URLParam(r, "id")
	detail, err := h.service.GetBookingDetail(r.Context(), customerID, jobUUID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	attachments := make([]attachmentResponse, len(detail.Attachments))
	for i, a := range detail.Attachments {
		attachments[i] = attachmentResponse{
			ID:       a.AttachmentUUID,
			FileName: a.FileName,
			FileType: a.FileType,
			URL:      a.URL,
		}
	}

	writeSuccess(w, http.StatusOK, bookingDetailResponse{
		bookingResponse: toBookingResponse(detail.Booking),
		Attachments:     attachments,
	}, "")
}
