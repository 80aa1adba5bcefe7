package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/melly/internal/collection"
	"github.com/hitoshi/melly/internal/model"
	"github.com/hitoshi/melly/internal/repository"
)

// CollectionServiceInterface はコレクションハンドラーが必要とするサービスインターフェース。
type CollectionServiceInterface interface {
	// Create はコレクションを作成する。
	Create(ctx context.Context, owner *model.User, input collection.CreateInput) (*model.Collection, error)
	// Get は所有者のコレクションをスラグで取得する。
	Get(ctx context.Context, owner *model.User, collectionSlug string) (*repository.CollectionWithOwner, error)
	// GetShared は共有リンク経由でコレクションを取得する。所有者を問わない。
	GetShared(ctx context.Context, collectionSlug string) (*repository.CollectionWithOwner, error)
	// List は所有者のコレクション一覧を返す。
	List(ctx context.Context, owner *model.User, skip, limit int) ([]repository.CollectionWithOwner, error)
	// UpdateTitle はコレクションのタイトルを変更する。
	UpdateTitle(ctx context.Context, owner *model.User, collectionSlug, title string) (*repository.CollectionWithOwner, error)
	// AddItem はコレクションにブックマークを追加する。
	AddItem(ctx context.Context, owner *model.User, collectionSlug, bookmarkSlug string) (*repository.CollectionWithOwner, error)
}

// CollectionHandler はコレクション管理のHTTPハンドラー。
type CollectionHandler struct {
	service  CollectionServiceInterface
	accounts AccountServiceInterface
}

// NewCollectionHandler はCollectionHandlerを生成する。
func NewCollectionHandler(service CollectionServiceInterface, accounts AccountServiceInterface) *CollectionHandler {
	return &CollectionHandler{
		service:  service,
		accounts: accounts,
	}
}

// collectionRequest はコレクション作成リクエストのボディ。
type collectionRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// updateTitleRequest はタイトル変更リクエストのボディ。
type updateTitleRequest struct {
	Title string `json:"title"`
}

// addItemRequest はブックマーク追加リクエストのボディ。
type addItemRequest struct {
	BookmarkSlug string `json:"bookmarkSlug"`
}

// collectionOwnerResponse はコレクションレスポンスに埋め込む所有者情報。
type collectionOwnerResponse struct {
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

// collectionResponse はコレクションのAPIレスポンス。
type collectionResponse struct {
	Title       string                   `json:"title"`
	Description string                   `json:"description"`
	Slug        string                   `json:"slug"`
	Items       []string                 `json:"items"`
	Owner       *collectionOwnerResponse `json:"owner,omitempty"`
	CreatedAt   string                   `json:"createdAt"`
	UpdatedAt   string                   `json:"updatedAt"`
}

// CreateCollection はコレクションを作成する。
// POST /v1/me/collections
func (h *CollectionHandler) CreateCollection(w http.ResponseWriter, r *http.Request) {
	user, err := resolveUser(r.Context(), h.accounts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var req collectionRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), user, collection.CreateInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCollectionResponse(created, nil))
}

// GetCollection は認証済みユーザー自身のコレクションを取得する。
// GET /v1/me/collections/{slug}
func (h *CollectionHandler) GetCollection(w http.ResponseWriter, r *http.Request) {
	user, err := resolveUser(r.Context(), h.accounts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	collectionSlug := chi.URLParam(r, "slug")

	found, err := h.service.Get(r.Context(), user, collectionSlug)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCollectionWithOwnerResponse(found))
}

// GetSharedCollection は共有リンク経由でコレクションを取得する。
// 認証不要の公開エンドポイント。
// GET /v1/collections/{slug}
func (h *CollectionHandler) GetSharedCollection(w http.ResponseWriter, r *http.Request) {
	collectionSlug := chi.URLParam(r, "slug")

	found, err := h.service.GetShared(r.Context(), collectionSlug)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCollectionWithOwnerResponse(found))
}

// ListCollections は認証済みユーザー自身のコレクション一覧を返す。
// GET /v1/me/collections?skip=&limit=
func (h *CollectionHandler) ListCollections(w http.ResponseWriter, r *http.Request) {
	user, err := resolveUser(r.Context(), h.accounts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	skip, limit := parsePagination(r)

	collections, err := h.service.List(r.Context(), user, skip, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]collectionResponse, 0, len(collections))
	for i := range collections {
		responses = append(responses, toCollectionWithOwnerResponse(&collections[i]))
	}
	writeJSON(w, http.StatusOK, responses)
}

// UpdateTitle はコレクションのタイトルを変更する。
// PUT /v1/me/collections/{slug}/title
func (h *CollectionHandler) UpdateTitle(w http.ResponseWriter, r *http.Request) {
	user, err := resolveUser(r.Context(), h.accounts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	collectionSlug := chi.URLParam(r, "slug")

	var req updateTitleRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	updated, err := h.service.UpdateTitle(r.Context(), user, collectionSlug, req.Title)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCollectionWithOwnerResponse(updated))
}

// AddItem はコレクションにブックマークを追加する。
// 既に追加済みのブックマークは400を返す。
// POST /v1/me/collections/{slug}/items
func (h *CollectionHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	user, err := resolveUser(r.Context(), h.accounts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	collectionSlug := chi.URLParam(r, "slug")

	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	updated, err := h.service.AddItem(r.Context(), user, collectionSlug, req.BookmarkSlug)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCollectionWithOwnerResponse(updated))
}

// toCollectionResponse はmodel.CollectionからAPIレスポンスに変換する。
// ownerがnilの場合は所有者情報を省略する。
func toCollectionResponse(c *model.Collection, owner *collectionOwnerResponse) collectionResponse {
	items := c.Items
	if items == nil {
		items = []string{}
	}

	return collectionResponse{
		Title:       c.Title,
		Description: c.Description,
		Slug:        c.Slug,
		Items:       items,
		Owner:       owner,
		CreatedAt:   c.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// toCollectionWithOwnerResponse は所有者プロフィール結合済みのコレクションを
// APIレスポンスに変換する。
func toCollectionWithOwnerResponse(c *repository.CollectionWithOwner) collectionResponse {
	return toCollectionResponse(&c.Collection, &collectionOwnerResponse{
		Name:    c.OwnerName,
		Picture: c.OwnerPicture,
	})
}
