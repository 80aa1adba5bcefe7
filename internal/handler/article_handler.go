package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/melly/internal/article"
	"github.com/hitoshi/melly/internal/model"
	"github.com/hitoshi/melly/internal/repository"
)

// ArticleServiceInterface は記事ハンドラーが必要とするサービスインターフェース。
type ArticleServiceInterface interface {
	// Create は記事を作成する。
	Create(ctx context.Context, author *model.User, input article.CreateInput) (*model.Article, error)
	// Get は記事を著者プロフィール付きで取得する。
	Get(ctx context.Context, articleSlug string) (*repository.ArticleWithAuthor, error)
	// List は著者の記事一覧を返す。
	List(ctx context.Context, author *model.User, skip, limit int) ([]repository.ArticleWithAuthor, error)
	// Update は記事の内容を更新する。
	Update(ctx context.Context, author *model.User, articleSlug string, input article.CreateInput) (*model.Article, error)
}

// ArticleHandler は記事管理のHTTPハンドラー。
type ArticleHandler struct {
	service   ArticleServiceInterface
	accounts  AccountServiceInterface
	feBaseURL string
}

// NewArticleHandler はArticleHandlerを生成する。
// feBaseURLは記事のcanonicalUrl生成に使用するフロントエンドのベースURL。
func NewArticleHandler(service ArticleServiceInterface, accounts AccountServiceInterface, feBaseURL string) *ArticleHandler {
	return &ArticleHandler{
		service:   service,
		accounts:  accounts,
		feBaseURL: feBaseURL,
	}
}

// articleRequest は記事作成・更新リクエストのボディ。
type articleRequest struct {
	Title             string `json:"title"`
	Description       string `json:"description"`
	Image             string `json:"image"`
	ContentInMarkdown string `json:"contentInMarkdown"`
}

// articleAuthorResponse は記事レスポンスに埋め込む著者情報。
type articleAuthorResponse struct {
	Name     string `json:"name"`
	Picture  string `json:"picture,omitempty"`
	Username string `json:"username,omitempty"`
}

// articleResponse は記事のAPIレスポンス。
type articleResponse struct {
	Title             string                 `json:"title"`
	Description       string                 `json:"description"`
	Image             string                 `json:"image,omitempty"`
	Slug              string                 `json:"slug"`
	ContentInMarkdown string                 `json:"contentInMarkdown"`
	CanonicalURL      string                 `json:"canonicalUrl"`
	Author            *articleAuthorResponse `json:"author,omitempty"`
	CreatedAt         string                 `json:"createdAt"`
	UpdatedAt         string                 `json:"updatedAt"`
}

// CreateArticle は記事を作成する。
// POST /v1/articles
func (h *ArticleHandler) CreateArticle(w http.ResponseWriter, r *http.Request) {
	user, err := resolveUser(r.Context(), h.accounts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var req articleRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), user, article.CreateInput{
		Title:             req.Title,
		Description:       req.Description,
		Image:             req.Image,
		ContentInMarkdown: req.ContentInMarkdown,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.toArticleResponse(created, user))
}

// GetArticle は記事を取得する。認証不要の公開エンドポイント。
// GET /v1/articles/{slug}
func (h *ArticleHandler) GetArticle(w http.ResponseWriter, r *http.Request) {
	articleSlug := chi.URLParam(r, "slug")

	found, err := h.service.Get(r.Context(), articleSlug)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toArticleWithAuthorResponse(found))
}

// ListArticles は認証済みユーザー自身の記事一覧を返す。
// GET /v1/articles?skip=&limit=
func (h *ArticleHandler) ListArticles(w http.ResponseWriter, r *http.Request) {
	user, err := resolveUser(r.Context(), h.accounts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	skip, limit := parsePagination(r)

	articles, err := h.service.List(r.Context(), user, skip, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]articleResponse, 0, len(articles))
	for i := range articles {
		responses = append(responses, h.toArticleWithAuthorResponse(&articles[i]))
	}
	writeJSON(w, http.StatusOK, responses)
}

// UpdateArticle は記事の内容を更新する。スラグは変更されない。
// PUT /v1/articles/{slug}
func (h *ArticleHandler) UpdateArticle(w http.ResponseWriter, r *http.Request) {
	user, err := resolveUser(r.Context(), h.accounts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	articleSlug := chi.URLParam(r, "slug")

	var req articleRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	updated, err := h.service.Update(r.Context(), user, articleSlug, article.CreateInput{
		Title:             req.Title,
		Description:       req.Description,
		Image:             req.Image,
		ContentInMarkdown: req.ContentInMarkdown,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toArticleResponse(updated, user))
}

// canonicalArticleURL は記事の正規URLを生成する。
func (h *ArticleHandler) canonicalArticleURL(articleSlug string) string {
	return h.feBaseURL + "/articles/" + articleSlug
}

// toArticleResponse はmodel.ArticleからAPIレスポンスに変換する。
func (h *ArticleHandler) toArticleResponse(a *model.Article, author *model.User) articleResponse {
	return articleResponse{
		Title:             a.Title,
		Description:       a.Description,
		Image:             a.Image,
		Slug:              a.Slug,
		ContentInMarkdown: a.ContentInMarkdown,
		CanonicalURL:      h.canonicalArticleURL(a.Slug),
		Author: &articleAuthorResponse{
			Name:     author.Name,
			Picture:  author.Picture,
			Username: author.Username,
		},
		CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// toArticleWithAuthorResponse は著者プロフィール結合済みの記事をAPIレスポンスに変換する。
func (h *ArticleHandler) toArticleWithAuthorResponse(a *repository.ArticleWithAuthor) articleResponse {
	return articleResponse{
		Title:             a.Title,
		Description:       a.Description,
		Image:             a.Image,
		Slug:              a.Slug,
		ContentInMarkdown: a.ContentInMarkdown,
		CanonicalURL:      h.canonicalArticleURL(a.Slug),
		Author: &articleAuthorResponse{
			Name:     a.AuthorName,
			Picture:  a.AuthorPicture,
			Username: a.AuthorUsername,
		},
		CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
