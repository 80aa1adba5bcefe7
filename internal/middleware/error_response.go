package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/melly/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// StatusForError はAPIErrorのコードをHTTPステータスコードに変換する。
// PROVIDER_ERRORの場合は認証プロバイダーが返したステータスをそのまま返す。
func StatusForError(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidExtra,
		model.ErrCodeInvalidRequest,
		model.ErrCodeInvalidURL,
		model.ErrCodeDuplicateItem,
		model.ErrCodeSSRFBlocked:
		return http.StatusBadRequest
	case model.ErrCodeInvalidToken,
		model.ErrCodeInvalidUser:
		return http.StatusUnauthorized
	case model.ErrCodeInvalidSession,
		model.ErrCodeUsernameTaken:
		return http.StatusConflict
	case model.ErrCodeUserNotFound,
		model.ErrCodeArticleNotFound,
		model.ErrCodeBookmarkNotFound,
		model.ErrCodeCollectionNotFound:
		return http.StatusNotFound
	case model.ErrCodeFetchFailed,
		model.ErrCodeFeedParseFailed:
		return http.StatusBadGateway
	case model.ErrCodeProviderError:
		if apiErr.Upstream >= 400 && apiErr.Upstream < 600 {
			return apiErr.Upstream
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteAPIError はAPIErrorのコードから導出したステータスでエラーレスポンスを書き込む。
func WriteAPIError(w http.ResponseWriter, apiErr *model.APIError) {
	WriteErrorResponse(w, StatusForError(apiErr), apiErr)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}
