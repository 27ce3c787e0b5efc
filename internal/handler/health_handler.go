package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/fieldportal/internal/model"
)

// HealthChecker はヘルスチェックに必要なDB疎通確認のインターフェース。
// *sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	db HealthChecker
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(db HealthChecker) *HealthHandler {
	return &HealthHandler{db: db}
}

// Check はサービスの稼働状態を返す。
// GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		writeAPIErrorResponse(w, http.StatusServiceUnavailable, &model.APIError{
			Code:     "SERVICE_UNAVAILABLE",
			Message:  "サービスが一時的に利用できません。",
			Category: "system",
			Action:   "しばらく待ってから再試行してください。",
		})
		return
	}

	writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"}, "")
}
