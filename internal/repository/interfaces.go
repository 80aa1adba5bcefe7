// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/melly/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。username重複はAPIError(USERNAME_TAKEN)を返す。
	Create(ctx context.Context, user *model.User) error

	// FindByEmail はメールアドレスでユーザーを検索する。
	// ソフトデリート済みユーザーも返す（再有効化の判定に使うため）。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindActiveByIdentifier は公開識別子で有効なユーザーを検索する。見つからない場合はnilを返す。
	FindActiveByIdentifier(ctx context.Context, identifier string) (*model.User, error)

	// FindActiveByProviderUserID はプロバイダーのユーザーIDで有効なユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindActiveByProviderUserID(ctx context.Context, providerUserID string) (*model.User, error)

	// Reactivate はソフトデリート済みユーザーを有効状態に戻す。
	Reactivate(ctx context.Context, id string) error

	// UpdateUsername はユーザー名を更新する。username重複はAPIError(USERNAME_TAKEN)を返す。
	UpdateUsername(ctx context.Context, id, username string) error
}

// AuthSessionRepository はOAuthハンドシェイク状態の永続化インターフェース。
type AuthSessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.AuthSession) error

	// FindByNonce は有効（未削除・未期限切れ）なセッションをnonceで検索する。
	// 見つからない場合はnilを返す。
	FindByNonce(ctx context.Context, nonce string) (*model.AuthSession, error)

	// UpdateProviderInfo はプロバイダー交換の結果（アクセストークン、ユーザーID、生プロフィール）を
	// セッションに記録する。後続の処理が失敗しても途中経過は保持される。
	UpdateProviderInfo(ctx context.Context, id, providerUserID, accessToken, profile string) error

	// SetExchangeCode は1回限りの交換コードをセッションに記録する。
	SetExchangeCode(ctx context.Context, id, code string) error

	// ConsumeExchangeCode は交換コードを消費し、対応するセッションを返す。
	// 未使用の場合のみアトミックに使用済みへ更新する。
	// 不明・期限切れ・使用済みのいずれの場合もnilを返す。
	ConsumeExchangeCode(ctx context.Context, code string) (*model.AuthSession, error)
}

// ArticleWithAuthor は記事に著者のプロフィールを結合した型付きプロジェクション。
type ArticleWithAuthor struct {
	model.Article
	AuthorName     string
	AuthorPicture  string
	AuthorUsername string
}

// ArticleRepository は記事データの永続化インターフェース。
type ArticleRepository interface {
	// Create は記事を作成する。
	Create(ctx context.Context, article *model.Article) error

	// FindBySlug は有効な記事を著者情報付きでスラグで検索する。見つからない場合はnilを返す。
	FindBySlug(ctx context.Context, slug string) (*ArticleWithAuthor, error)

	// FindBySlugAndAuthor は指定著者の記事をスラグで検索する。見つからない場合はnilを返す。
	FindBySlugAndAuthor(ctx context.Context, slug, authorID string) (*model.Article, error)

	// ListByAuthor は著者の記事一覧をcreated_at降順で返す。
	ListByAuthor(ctx context.Context, authorID string, skip, limit int) ([]ArticleWithAuthor, error)

	// Update は記事の内容フィールドを更新する。
	Update(ctx context.Context, article *model.Article) error
}

// BookmarkWithOwner はブックマークに所有者のプロフィールを結合した型付きプロジェクション。
type BookmarkWithOwner struct {
	model.Bookmark
	OwnerName    string
	OwnerPicture string
}

// BookmarkRepository はブックマークデータの永続化インターフェース。
type BookmarkRepository interface {
	// Create はブックマークを作成する。
	Create(ctx context.Context, bookmark *model.Bookmark) error

	// FindBySlug は有効なブックマークを所有者情報とメモ付きでスラグで検索する。
	// 見つからない場合はnilを返す。
	FindBySlug(ctx context.Context, slug string) (*BookmarkWithOwner, error)

	// FindBySlugAndOwner は指定所有者のブックマークをスラグで検索する。見つからない場合はnilを返す。
	FindBySlugAndOwner(ctx context.Context, slug, ownerID string) (*model.Bookmark, error)

	// ListByOwner は所有者のブックマーク一覧をcreated_at降順で返す。
	ListByOwner(ctx context.Context, ownerID string, skip, limit int) ([]BookmarkWithOwner, error)

	// Update はブックマークのurl、tags、contentを更新する。
	Update(ctx context.Context, bookmark *model.Bookmark) error

	// AddNote はブックマークにメモを追加する。
	AddNote(ctx context.Context, note *model.BookmarkNote) error
}

// CollectionWithOwner はコレクションに所有者のプロフィールを結合した型付きプロジェクション。
type CollectionWithOwner struct {
	model.Collection
	OwnerName    string
	OwnerPicture string
}

// CollectionRepository はコレクションデータの永続化インターフェース。
type CollectionRepository interface {
	// Create はコレクションを作成する。
	Create(ctx context.Context, collection *model.Collection) error

	// FindBySlug は有効なコレクションを所有者情報付きでスラグで検索する。
	// ownerIDが空でない場合は所有者も一致条件に含める。見つからない場合はnilを返す。
	FindBySlug(ctx context.Context, slug, ownerID string) (*CollectionWithOwner, error)

	// ListByOwner は所有者のコレクション一覧をcreated_at降順で返す。
	ListByOwner(ctx context.Context, ownerID string, skip, limit int) ([]CollectionWithOwner, error)

	// UpdateTitle はコレクションのタイトルを更新する。
	UpdateTitle(ctx context.Context, id, title string) error

	// AddItem はコレクションにブックマークのスラグを追加する。
	AddItem(ctx context.Context, id, bookmarkSlug string) error
}
