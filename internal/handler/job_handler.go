package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/fieldportal/internal/job"
	"github.com/hitoshi/fieldportal/internal/middleware"
	"github.com/hitoshi/fieldportal/internal/model"
	"github.com/hitoshi/fieldportal/internal/servicem8"
)

// JobServiceInterface はジョブハンドラーが必要とするサービスインターフェース。
type JobServiceInterface interface {
	// CreateJob は新しいジョブを作成する。
	CreateJob(ctx context.Context, customerID string, input job.CreateInput) (*model.Job, error)
	// UpdateJob はジョブを部分更新する。
	UpdateJob(ctx context.Context, customerID, jobUUID string, input job.UpdateInput) (*model.Job, error)
	// CancelJob はジョブをキャンセルする。
	CancelJob(ctx context.Context, customerID, jobUUID string) error
}

// JobHandler はジョブ書き込みのHTTPハンドラー。
type JobHandler struct {
	service JobServiceInterface
}

// NewJobHandler はJobHandlerを生成する。
func NewJobHandler(service JobServiceInterface) *JobHandler {
	return &JobHandler{service: service}
}

// createJobRequest はジョブ作成リクエストのボディ。
type createJobRequest struct {
	Address     string `json:"address"`
	Description string `json:"description"`
	Status      string `json:"status"`       // 省略時はQuote
	ScheduledAt string `json:"scheduled_at"` // "2006-01-02 15:04:05"形式。省略可
}

// updateJobRequest はジョブ更新リクエストのボディ。
// 省略されたフィールドは変更しない。
type updateJobRequest struct {
	Address     *string `json:"address"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	ScheduledAt *string `json:"scheduled_at"`
}

// parseScheduledAt は日時文字列をパースする。
func parseScheduledAt(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(servicem8.ScheduledDateLayout, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateJob はジョブ作成を処理する。
// POST /jobs
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	customerID, err := middleware.CustomerIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	scheduledAt, err := parseScheduledAt(req.ScheduledAt)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("希望日時の形式が不正です（例: 2026-09-10 09:00:00）"))
		return
	}

	record, err := h.service.CreateJob(r.Context(), customerID, job.CreateInput{
		Address:     req.Address,
		Description: req.Description,
		Status:      req.Status,
		ScheduledAt: scheduledAt,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, toBookingResponse(record), "予約を受け付けました。")
}

// UpdateJob はジョブ更新を処理する。
// PUT /jobs/{id} - 省略されたフィールドは変更しない
func (h *JobHandler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	customerID, err := middleware.CustomerIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req updateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	input := job.UpdateInput{
		Address:     req.Address,
		Description: req.Description,
		Status:      req.Status,
	}
	if req.ScheduledAt != nil {
		scheduledAt, err := parseScheduledAt(*req.ScheduledAt)
		if err != nil || scheduledAt == nil {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewValidationError("希望日時の形式が不正です（例: 2026-09-10 09:00:00）"))
			return
		}
		input.ScheduledAt = scheduledAt
	}

	record, err := h.service.UpdateJob(r.Context(), customerID, chi.URLParam(r, "id"), input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, toBookingResponse(record), "予約を変更しました。")
}

// CancelJob はジョブキャンセルを処理する。
// DELETE /jobs/{id}
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	customerID, err := middleware.CustomerIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.CancelJob(r.Context(), customerID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil, "予約をキャンセルしました。")
}
