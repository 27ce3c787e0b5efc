package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/fieldportal/internal/auth"
	"github.com/hitoshi/fieldportal/internal/middleware"
	"github.com/hitoshi/fieldportal/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Register は顧客を登録する。
	Register(ctx context.Context, input auth.RegisterInput) (*model.Customer, error)
	// Login は認証しトークンとセッションを発行する。
	// 識別子はメールアドレスまたは電話番号を受け付ける。
	Login(ctx context.Context, identity, password string) (*auth.LoginResult, error)
	// Logout はセッションを失効させる。
	Logout(ctx context.Context, jti string) error
	// Me は認証済み顧客のプロフィールを取得する。
	Me(ctx context.Context, customerID string) (*model.Customer, error)
}

// AuthHandler は認証のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// registerRequest は顧客登録リクエストのボディ。
type registerRequest struct {
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// loginRequest はログインリクエストのボディ。
// emailとphoneはいずれか一方を指定する。両方指定された場合はemailを優先する。
type loginRequest struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// customerResponse は顧客情報のAPIレスポンス。
// 外部会社識別子そのものは返さず、紐付け済みかどうかのみ返す。
type customerResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	CompanyLinked bool      `json:"company_linked"`
	CreatedAt     time.Time `json:"created_at"`
}

// loginResponse はログイン成功のAPIレスポンス。
type loginResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Customer  customerResponse `json:"customer"`
}

// toCustomerResponse はドメインのCustomerをレスポンス型に変換する。
func toCustomerResponse(c *model.Customer) customerResponse {
	return customerResponse{
		ID:            c.ID,
		Email:         c.Email,
		Phone:         c.Phone,
		FirstName:     c.FirstName,
		LastName:      c.LastName,
		CompanyLinked: c.HasCompany(),
		CreatedAt:     c.CreatedAt,
	}
}

// Register は顧客登録を処理する。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	customer, err := h.service.Register(r.Context(), auth.RegisterInput{
		Email:     req.Email,
		Phone:     req.Phone,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, toCustomerResponse(customer), "登録が完了しました。")
}

// Login はログインを処理する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	identity := req.Email
	if identity == "" {
		identity = req.Phone
	}
	result, err := h.service.Login(r.Context(), identity, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, loginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		Customer:  toCustomerResponse(result.Customer),
	}, "")
}

// Logout はログアウトを処理する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID, err := middleware.SessionIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Logout(r.Context(), sessionID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil, "ログアウトしました。")
}

// Me は認証済み顧客のプロフィールを返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	customerID, err := middleware.CustomerIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	customer, err := h.service.Me(r.Context(), customerID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, toCustomerResponse(customer), "")
}
