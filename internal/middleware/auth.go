// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hitoshi/melly/internal/model"
	"github.com/hitoshi/melly/internal/token"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// claimsContextKey はリクエストコンテキストに検証済みclaimsを格納するためのキー。
var claimsContextKey = contextKey("claims")

// AccessTokenVerifier はアクセストークンの検証に必要なインターフェース。
// token.Issuerの部分集合として定義する。
type AccessTokenVerifier interface {
	VerifyAccessToken(tokenString string) (*token.Claims, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証する
// ミドルウェアを返す。検証済みclaimsをリクエストコンテキストに注入する。
// トークンが欠落・不正なリクエストには401を返す。
func NewAuthMiddleware(verifier AccessTokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. AuthorizationヘッダーからBearerトークンを取得
			tokenString := bearerToken(r)
			if tokenString == "" {
				WriteAPIError(w, model.NewInvalidTokenError())
				return
			}

			// 2. 署名と有効期限を検証
			claims, err := verifier.VerifyAccessToken(tokenString)
			if err != nil {
				WriteAPIError(w, model.NewInvalidTokenError())
				return
			}

			// 3. 検証済みclaimsをコンテキストに注入
			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken はAuthorizationヘッダーからBearerトークンを抽出する。
// Bearerスキームでない場合は空文字を返す。
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, value, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(value)
}

// ClaimsFromContext はリクエストコンテキストから検証済みclaimsを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func ClaimsFromContext(ctx context.Context) (*token.Claims, error) {
	claims, ok := ctx.Value(claimsContextKey).(*token.Claims)
	if !ok || claims == nil {
		return nil, fmt.Errorf("claims not found in context")
	}
	return claims, nil
}

// UserIDFromContext はリクエストコンテキストから認証済みユーザーの
// 公開識別子を取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	claims, err := ClaimsFromContext(ctx)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// ContextWithClaims はコンテキストに検証済みclaimsを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithClaims(ctx context.Context, claims *token.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}
