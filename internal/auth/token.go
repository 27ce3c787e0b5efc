// Package auth は顧客の登録・ログイン・トークン管理を提供する。
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/fieldportal/internal/model"
)

// TokenManager は署名付きトークンの発行と検証を行う。
// 署名アルゴリズムはHS256に固定し、それ以外のトークンは拒否する。
type TokenManager struct {
	secret []byte
	maxAge time.Duration
}

// NewTokenManager はTokenManagerを生成する。
func NewTokenManager(secret string, maxAge time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		maxAge: maxAge,
	}
}

// Issue は顧客IDに対する新しいトークンを発行する。
// jtiクレームにはセッションIDとして使用する一意な識別子を設定し、
// サーバー側での失効判定を可能にする。
func (m *TokenManager) Issue(customerID string) (token string, jti string, expiresAt time.Time, err error) {
	now := time.Now()
	expiresAt = now.Add(m.maxAge)
	jti = uuid.New().String()

	claims := jwt.MapClaims{
		"sub": customerID,
		"jti": jti,
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("トークンの署名に失敗しました: %w", err)
	}
	return signed, jti, expiresAt, nil
}

// Verify はトークンを検証し、顧客IDとjtiを返す。
// 期限切れはTOKEN_EXPIRED、それ以外の不正はUNAUTHORIZEDとして返す。
// jtiに対応するセッションの存在確認は呼び出し元の責務。
func (m *TokenManager) Verify(tokenString string) (customerID string, jti string, err error) {
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("予期しない署名アルゴリズムです: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", "", model.NewTokenExpiredError()
		}
		return "", "", model.NewUnauthorizedError()
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return "", "", model.NewUnauthorizedError()
	}

	customerID, _ = claims["sub"].(string)
	jti, _ = claims["jti"].(string)
	if customerID == "" || jti == "" {
		return "", "", model.NewUnauthorizedError()
	}

	return customerID, jti, nil
}
