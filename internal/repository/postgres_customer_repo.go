package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/fieldportal/internal/model"
)

// PostgresCustomerRepo はPostgreSQLを使用した顧客リポジトリ。
type PostgresCustomerRepo struct {
	db *sql.DB
}

// NewPostgresCustomerRepo はPostgresCustomerRepoを生成する。
func NewPostgresCustomerRepo(db *sql.DB) *PostgresCustomerRepo {
	return &PostgresCustomerRepo{db: db}
}

// IsDuplicateKeyError はPostgreSQLの一意制約違反かを判別する。
// 登録時の識別子重複を409に変換するために使用する。
func IsDuplicateKeyError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// FindByID は指定IDの顧客を取得する。見つからない場合はnilを返す。
func (r *PostgresCustomerRepo) FindByID(ctx context.Context, id string) (*model.Customer, error) {
	return r.findOne(ctx,
		`SELECT id, email, phone, password_hash, first_name, last_name, company_uuid, created_at, updated_at
		 FROM customers WHERE id = $1`,
		id,
	)
}

// FindByEmail は正規化済みメールアドレスで顧客を検索する。見つからない場合はnilを返す。
func (r *PostgresCustomerRepo) FindByEmail(ctx context.Context, email string) (*model.Customer, error) {
	return r.findOne(ctx,
		`SELECT id, email, phone, password_hash, first_name, last_name, company_uuid, created_at, updated_at
		 FROM customers WHERE email = $1`,
		email,
	)
}

// FindByPhone は正規化済み電話番号で顧客を検索する。見つからない場合はnilを返す。
func (r *PostgresCustomerRepo) FindByPhone(ctx context.Context, phone string) (*model.Customer, error) {
	return r.findOne(ctx,
		`SELECT id, email, phone, password_hash, first_name, last_name, company_uuid, created_at, updated_at
		 FROM customers WHERE phone = $1`,
		phone,
	)
}

// Create は顧客を作成する。
// 空のメールアドレス・電話番号はNULLとして保存し、部分一意インデックスの対象外にする。
func (r *PostgresCustomerRepo) Create(ctx context.Context, customer *model.Customer) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO customers (id, email, phone, password_hash, first_name, last_name, company_uuid, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		customer.ID,
		nullIfEmpty(customer.Email),
		nullIfEmpty(customer.Phone),
		customer.PasswordHash,
		customer.FirstName,
		customer.LastName,
		customer.CompanyUUID,
		customer.CreatedAt,
		customer.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("顧客の作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateCompanyUUID は顧客の外部会社識別子を補完する。
func (r *PostgresCustomerRepo) UpdateCompanyUUID(ctx context.Context, id, companyUUID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE customers SET company_uuid = $2, updated_at = $3 WHERE id = $1`,
		id, companyUUID, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("会社識別子の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("customer not found: %s", id)
	}
	return nil
}

// findOne は1件のSELECTを実行しCustomerにマッピングする。
func (r *PostgresCustomerRepo) findOne(ctx context.Context, query string, arg any) (*model.Customer, error) {
	customer := &model.Customer{}
	var email, phone sql.NullString

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&customer.ID, &email, &phone, &customer.PasswordHash,
		&customer.FirstName, &customer.LastName, &customer.CompanyUUID,
		&customer.CreatedAt, &customer.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("顧客の取得に失敗しました: %w", err)
	}

	customer.Email = nullStringValue(email)
	customer.Phone = nullStringValue(phone)

	return customer, nil
}

// nullIfEmpty は空文字列をNULLに変換する。
func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullStringValue はsql.NullStringから値を取り出す。NULLの場合は空文字列を返す。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ CustomerRepository = (*PostgresCustomerRepo)(nil)
