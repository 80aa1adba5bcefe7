// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/melly/internal/middleware"
	"github.com/hitoshi/melly/internal/model"
)

const (
	defaultListSkip  = 0
	defaultListLimit = 10
	maxListLimit     = 100
)

// AccountServiceInterface はハンドラーが必要とするアカウントサービスのインターフェース。
type AccountServiceInterface interface {
	// GetByIdentifier は公開識別子でユーザーを取得する。
	GetByIdentifier(ctx context.Context, identifier string) (*model.User, error)
	// UpdateUsername はユーザー名を変更する。
	UpdateUsername(ctx context.Context, identifier, username string) (*model.User, error)
}

// resolveUser は認証ミドルウェアが注入したclaimsからユーザーを解決する。
// claimsが存在しない、またはsubjectが有効なアカウントに解決できない場合は
// APIError(INVALID_TOKEN / INVALID_USER)を返す。
func resolveUser(ctx context.Context, accounts AccountServiceInterface) (*model.User, error) {
	identifier, err := middleware.UserIDFromContext(ctx)
	if err != nil {
		return nil, model.NewInvalidTokenError()
	}
	return accounts.GetByIdentifier(ctx, identifier)
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// decodeJSON はリクエストボディをデコードする。
// 解析に失敗した場合はAPIError(INVALID_REQUEST)を返す。
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return model.NewInvalidRequestError("リクエストボディの解析に失敗しました")
	}
	return nil
}

// parsePagination はクエリパラメータからskip/limitを読み取る。
// 省略時はskip=0、limit=10。不正な値は既定値に丸める。
func parsePagination(r *http.Request) (skip, limit int) {
	skip = defaultListSkip
	limit = defaultListLimit

	if v := r.URL.Query().Get("skip"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			skip = n
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return skip, limit
}

// handleServiceError はサービス層から返されたエラーをHTTPレスポンスに変換する。
// APIErrorはコードから導出したステータスで返し、それ以外は詳細を
// ログのみに記録して500を返す。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteAPIError(w, apiErr)
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}
