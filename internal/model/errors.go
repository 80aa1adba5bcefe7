package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, session, resource, provider, system
	Action   string // ユーザー向け対処方法

	// Upstream は認証プロバイダー由来のエラーの場合に、
	// 上流のHTTPステータスコードをそのまま保持する（それ以外は0）。
	Upstream int
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidExtra       = "INVALID_EXTRA"
	ErrCodeInvalidSession     = "INVALID_SESSION"
	ErrCodeInvalidToken       = "INVALID_TOKEN"
	ErrCodeInvalidUser        = "INVALID_USER"
	ErrCodeProviderError      = "PROVIDER_ERROR"
	ErrCodeUsernameTaken      = "USERNAME_TAKEN"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeArticleNotFound    = "ARTICLE_NOT_FOUND"
	ErrCodeBookmarkNotFound   = "BOOKMARK_NOT_FOUND"
	ErrCodeCollectionNotFound = "COLLECTION_NOT_FOUND"
	ErrCodeDuplicateItem      = "DUPLICATE_ITEM"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInvalidURL         = "INVALID_URL"
	ErrCodeSSRFBlocked        = "SSRF_BLOCKED"
	ErrCodeFetchFailed        = "FETCH_FAILED"
	ErrCodeFeedParseFailed    = "FEED_PARSE_FAILED"
)

// NewInvalidExtraError はextraパラメータが不正なJSONの場合のエラーを生成する。
func NewInvalidExtraError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidExtra,
		Message:  "extraパラメータが不正です。",
		Category: "validation",
		Action:   "extraには有効なJSON文字列を指定してください。",
	}
}

// NewInvalidSessionError はnonceまたは交換コードが無効な場合のエラーを生成する。
// 偽造・期限切れ・使用済みのいずれも同じエラーとして扱う。
func NewInvalidSessionError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSession,
		Message:  "認証セッションが無効です。",
		Category: "session",
		Action:   "ログインを最初からやり直してください。",
	}
}

// NewInvalidTokenError はトークン検証に失敗した場合のエラーを生成する。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "トークンが無効です。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewInvalidUserError はトークンのsubjectが有効なユーザーに解決できない場合のエラーを生成する。
func NewInvalidUserError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidUser,
		Message:  "ユーザーが無効です。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewProviderError は認証プロバイダーが非2xx応答を返した場合のエラーを生成する。
// 上流のステータスとボディは加工せずそのまま保持する。
func NewProviderError(status int, body string) *APIError {
	return &APIError{
		Code:     ErrCodeProviderError,
		Message:  body,
		Category: "provider",
		Action:   "しばらく待ってから再度お試しください。",
		Upstream: status,
	}
}

// NewUsernameTakenError はユーザー名が既に使用されている場合のエラーを生成する。
func NewUsernameTakenError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUsernameTaken,
		Message:  fmt.Sprintf("ユーザー名は既に使用されています: %s", username),
		Category: "validation",
		Action:   "別のユーザー名を指定してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewArticleNotFoundError は記事が見つからない場合のエラーを生成する。
func NewArticleNotFoundError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeArticleNotFound,
		Message:  fmt.Sprintf("指定された記事が見つかりません: %s", slug),
		Category: "resource",
		Action:   "記事のスラグを確認してください。",
	}
}

// NewBookmarkNotFoundError はブックマークが見つからない場合のエラーを生成する。
func NewBookmarkNotFoundError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeBookmarkNotFound,
		Message:  fmt.Sprintf("指定されたブックマークが見つかりません: %s", slug),
		Category: "resource",
		Action:   "ブックマークのスラグを確認してください。",
	}
}

// NewCollectionNotFoundError はコレクションが見つからない場合のエラーを生成する。
func NewCollectionNotFoundError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeCollectionNotFound,
		Message:  fmt.Sprintf("指定されたコレクションが見つかりません: %s", slug),
		Category: "resource",
		Action:   "コレクションのスラグを確認してください。",
	}
}

// NewDuplicateItemError はブックマークが既にコレクションに含まれている場合のエラーを生成する。
func NewDuplicateItemError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateItem,
		Message:  fmt.Sprintf("ブックマークは既にコレクションに含まれています: %s", slug),
		Category: "validation",
		Action:   "別のブックマークを追加してください。",
	}
}

// NewInvalidRequestError はリクエストボディやパラメータが不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewFetchFailedError はフェッチ失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("URLの取得に失敗しました: %s", reason),
		Category: "resource",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewFeedParseFailedError はインポート対象フィードの解析失敗エラーを生成する。
func NewFeedParseFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeFeedParseFailed,
		Message:  "フィードの解析に失敗しました。",
		Category: "resource",
		Action:   "有効なRSS/AtomフィードのURLかどうか確認してください。",
	}
}
