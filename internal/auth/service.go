package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/fieldportal/internal/model"
	"github.com/hitoshi/fieldportal/internal/repository"
)

// passwordMinLength はパスワードの最小文字数。
const passwordMinLength = 8

// RegisterInput は顧客登録の入力。
type RegisterInput struct {
	Email     string
	Phone     string
	Password  string
	FirstName string
	LastName  string
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	Customer  *model.Customer
	Token     string
	ExpiresAt time.Time
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	customerRepo repository.CustomerRepository
	sessionRepo  repository.SessionRepository
	tokens       *TokenManager
	logger       *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	customerRepo repository.CustomerRepository,
	sessionRepo repository.SessionRepository,
	tokens *TokenManager,
	logger *slog.Logger,
) *Service {
	return &Service{
		customerRepo: customerRepo,
		sessionRepo:  sessionRepo,
		tokens:       tokens,
		logger:       logger,
	}
}

// Register は顧客を登録する。
// メールアドレスと電話番号は少なくとも一方が必須で、正規化してから保存する。
// 正規化後の識別子が既存顧客と重複する場合はDUPLICATE_IDENTITYを返す。
// 外部会社識別子の解決はここでは行わず、初回の予約一覧またはジョブ作成まで遅延する。
func (s *Service) Register(ctx context.Context, input RegisterInput) (*model.Customer, error) {
	email := NormalizeEmail(input.Email)
	phone := NormalizePhone(input.Phone)

	if email == "" && phone == "" {
		return nil, model.NewValidationError("メールアドレスまたは電話番号のいずれかが必要です")
	}
	if len(input.Password) < passwordMinLength {
		return nil, model.NewValidationError(fmt.Sprintf("パスワードは%d文字以上で入力してください", passwordMinLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("パスワードハッシュの生成に失敗しました: %w", err)
	}

	now := time.Now()
	customer := &model.Customer{
		ID:           uuid.New().String(),
		Email:        email,
		Phone:        phone,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.customerRepo.Create(ctx, customer); err != nil {
		if repository.IsDuplicateKeyError(err) {
			return nil, model.NewDuplicateIdentityError()
		}
		return nil, fmt.Errorf("顧客の作成に失敗しました: %w", err)
	}

	s.logger.Info("新規顧客を登録しました",
		slog.String("customer_id", customer.ID),
	)
	return customer, nil
}

// Login はメールアドレスまたは電話番号とパスワードで認証し、
// トークンとセッションを発行する。電話番号のみで登録した顧客も
// 同じエンドポイントでログインできる。顧客の不在とパスワード不一致は
// 同一のエラーとして返し、識別子の登録有無を漏らさない。
func (s *Service) Login(ctx context.Context, identity, password string) (*LoginResult, error) {
	customer, err := s.findByIdentity(ctx, identity)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(customer.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("パスワード不一致によりログインを拒否しました",
			slog.String("customer_id", customer.ID),
		)
		return nil, model.NewInvalidCredentialsError()
	}

	token, jti, expiresAt, err := s.tokens.Issue(customer.ID)
	if err != nil {
		return nil, err
	}

	session := &model.Session{
		ID:         jti,
		CustomerID: customer.ID,
		ExpiresAt:  expiresAt,
		CreatedAt:  time.Now(),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}

	s.logger.Info("顧客がログインしました",
		slog.String("customer_id", customer.ID),
	)
	return &LoginResult{Customer: customer, Token: token, ExpiresAt: expiresAt}, nil
}

// findByIdentity はログイン識別子から顧客を解決する。
// まずメールアドレスとして照合し、見つからなければ数字のみに
// 正規化した電話番号として照合する。
func (s *Service) findByIdentity(ctx context.Context, identity string) (*model.Customer, error) {
	customer, err := s.customerRepo.FindByEmail(ctx, NormalizeEmail(identity))
	if err != nil {
		return nil, fmt.Errorf("顧客の検索に失敗しました: %w", err)
	}
	if customer != nil {
		return customer, nil
	}

	digits := NormalizePhone(identity)
	if digits == "" {
		return nil, nil
	}
	customer, err = s.customerRepo.FindByPhone(ctx, digits)
	if err != nil {
		return nil, fmt.Errorf("顧客の検索に失敗しました: %w", err)
	}
	return customer, nil
}

// Authenticate はトークンを検証し、対応するセッションの有効性を確認する。
// ログアウト済み（セッション削除済み）のトークンは署名が有効でも拒否する。
func (s *Service) Authenticate(ctx context.Context, tokenString string) (*model.Session, error) {
	customerID, jti, err := s.tokens.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	session, err := s.sessionRepo.FindByID(ctx, jti)
	if err != nil {
		return nil, fmt.Errorf("セッションの検索に失敗しました: %w", err)
	}
	if session == nil || session.CustomerID != customerID {
		return nil, model.NewUnauthorizedError()
	}

	return session, nil
}

// Logout はセッションを失効させる。
// セッションが既に存在しない場合もエラーにしない（冪等）。
func (s *Service) Logout(ctx context.Context, jti string) error {
	if err := s.sessionRepo.DeleteByID(ctx, jti); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}
	return nil
}

// Me は認証済み顧客のプロフィールを取得する。
func (s *Service) Me(ctx context.Context, customerID string) (*model.Customer, error) {
	customer, err := s.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("顧客の取得に失敗しました: %w", err)
	}
	if customer == nil {
		return nil, model.NewUnauthorizedError()
	}
	return customer, nil
}

// NormalizeEmail はメールアドレスを正規化する（トリム・小文字化）。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone は電話番号を数字のみに正規化する。
// 書式の揺れ（ハイフン、空白、国番号記号）を吸収して照合可能にする。
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
