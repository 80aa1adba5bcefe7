package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/melly/internal/bookmark"
	"github.com/hitoshi/melly/internal/model"
	"github.com/hitoshi/melly/internal/preview"
	"github.com/hitoshi/melly/internal/repository"
)

// BookmarkServiceInterface はブックマークハンドラーが必要とするサービスインターフェース。
type BookmarkServiceInterface interface {
	// Create はブックマークを作成する。
	Create(ctx context.Context, owner *model.User, input bookmark.CreateInput) (*model.Bookmark, error)
	// Get はブックマークを所有者プロフィール付きで取得する。
	Get(ctx context.Context, bookmarkSlug string) (*repository.BookmarkWithOwner, error)
	// List は所有者のブックマーク一覧を返す。
	List(ctx context.Context, owner *model.User, skip, limit int) ([]repository.BookmarkWithOwner, error)
	// Update はブックマークの内容を更新する。
	Update(ctx context.Context, owner *model.User, bookmarkSlug string, input bookmark.CreateInput) (*model.Bookmark, error)
	// AddNote はブックマークにメモを追加する。
	AddNote(ctx context.Context, owner *model.User, bookmarkSlug, content string) (*model.BookmarkNote, error)
	// Preview はURLのメタデータを取得する。
	Preview(ctx context.Context, rawURL string) (*preview.Metadata, error)
	// ImportFromFeed はフィードの各エントリをブックマークとして取り込む。
	ImportFromFeed(ctx context.Context, owner *model.User, feedURL string) ([]model.Bookmark, error)
}

// BookmarkMetricsRecorder はプレビューとインポートの計測に必要なインターフェース。
// metrics.MetricsCollectorの部分集合として定義する。nilの場合は計測しない。
type BookmarkMetricsRecorder interface {
	RecordPreviewFetch(result string)
	RecordImportedBookmarks(count int)
}

// BookmarkHandler はブックマーク管理のHTTPハンドラー。
type BookmarkHandler struct {
	service  BookmarkServiceInterface
	accounts AccountServiceInterface
	metrics  BookmarkMetricsRecorder
}

// NewBookmarkHandler はBookmarkHandlerを生成する。
func NewBookmarkHandler(service BookmarkServiceInterface, accounts AccountServiceInterface, metrics BookmarkMetricsRecorder) *BookmarkHandler {
	return &BookmarkHandler{
		service:  service,
		accounts: accounts,
		metrics:  metrics,
	}
}

// bookmarkRequest はブックマーク作成・更新リクエストのボディ。
type bookmarkRequest struct {
	URL     string   `json:"url"`
	Tags    []string `json:"tags"`
	Content string   `json:"content"`
}

// noteRequest はメモ追加リクエストのボディ。
type noteRequest struct {
	Content string `json:"content"`
}

// importRequest はフィードインポートリクエストのボディ。
type importRequest struct {
	FeedURL string `json:"feedUrl"`
}

// noteResponse はメモのAPIレスポンス。
type noteResponse struct {
	Content   string `json:"content"`
	Slug      string `json:"slug"`
	CreatedAt string `json:"createdAt"`
}

// bookmarkOwnerResponse はブックマークレスポンスに埋め込む所有者情報。
type bookmarkOwnerResponse struct {
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

// bookmarkResponse はブックマークのAPIレスポンス。
type bookmarkResponse struct {
	URL       string                 `json:"url"`
	Tags      []string               `json:"tags"`
	Content   string                 `json:"content"`
	Slug      string                 `json:"slug"`
	Notes     []noteResponse         `json:"notes"`
	Owner     *bookmarkOwnerResponse `json:"owner,omitempty"`
	CreatedAt string                 `json:"createdAt"`
	UpdatedAt string                 `json:"updatedAt"`
}

// previewResponse はURLプレビューのAPIレスポンス。
type previewResponse struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Image        string `json:"image,omitempty"`
	CanonicalURL string `json:"canonicalUrl,omitempty"`
}

// CreateBookmark はブックマークを作成する。
// POST /v1/bookmarks
func (h *BookmarkHandler) CreateBookmark(w http.ResponseWriter, r *http.Request) {
	user, err := resolveUser(r.Context(), h.accounts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var req bookmarkRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), user, bookmark.CreateInput{
		URL:     req.URL,
		Tags:    req.Tags,
		Content: req.Content,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toBookmarkResponse(created, nil))
}

// GetBookmark はブックマークを取得する。認証不要の公開エンドポイント。
// GET /v1/bookmarks/{slug}
func (h *BookmarkHandler) GetBookmark(w http.ResponseWriter, r *http.Request) {
	bookmarkSlug := chi.URLParam(r, "slug")

	found, err := h.service.Get(r.Context(), bookmarkSlug)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookmarkResponse(&found.Bookmark, &bookmarkOwnerResponse{
		Name:    found.OwnerName,
		Picture: found.OwnerPicture,
	}))
}

// ListBookmarks は認証済みユーザー自身のブックマーク一覧を返す。
// GET /v1/bookmarks?skip=&limit=
func (h *BookmarkHandler) ListBookmarks(w http.ResponseWriter, r *http.Request) {
	user, err := resolveUser(r.Context(), h.accounts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	skip, limit := parsePagination(r)

	bookmarks, err := h.service.List(r.Context(), user, skip, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]bookmarkResponse, 0, len(bookmarks))
	for i := range bookmarks {
		responses = append(responses, toBookmarkResponse(&bookmarks[i].Bookmark, &bookmarkOwnerResponse{
			Name:    bookmarks[i].OwnerName,
			Picture: bookmarks[i].OwnerPicture,
		}))
	}
	writeJSON(w, http.StatusOK, responses)
}

// UpdateBookmark はブックマークの内容を更新する。スラグは変更されない。
// PUT /v1/bookmarks/{slug}
func (h *BookmarkHandler) UpdateBookmark(w http.ResponseWriter, r *http.Request) {
	user, err := resolveUser(r.Context(), h.accounts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	bookmarkSlug := chi.URLParam(r, "slug")

	var req bookmarkRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	updated, err := h.service.Update(r.Context(), user, bookmarkSlug, bookmark.CreateInput{
		URL:     req.URL,
		Tags:    req.Tags,
		Content: req.Content,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookmarkResponse(updated, nil))
}

// AddNote はブックマークにメモを追加する。
// POST /v1/bookmarks/{slug}/notes
func (h *BookmarkHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	user, err := resolveUser(r.Context(), h.accounts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	bookmarkSlug := chi.URLParam(r, "slug")

	var req noteRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	note, err := h.service.AddNote(r.Context(), user, bookmarkSlug, req.Content)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toNoteResponse(note))
}

// Preview はブックマーク対象URLのメタデータを返す。
// GET /v1/bookmarks/preview?url=
func (h *BookmarkHandler) Preview(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")

	meta, err := h.service.Preview(r.Context(), rawURL)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordPreviewFetch("failure")
		}
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordPreviewFetch("success")
	}
	writeJSON(w, http.StatusOK, previewResponse{
		Title:        meta.Title,
		Description:  meta.Description,
		Image:        meta.Image,
		CanonicalURL: meta.CanonicalURL,
	})
}

// Import はフィードの各エントリをブックマークとして取り込む。
// POST /v1/bookmarks/import
func (h *BookmarkHandler) Import(w http.ResponseWriter, r *http.Request) {
	user, err := resolveUser(r.Context(), h.accounts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var req importRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	imported, err := h.service.ImportFromFeed(r.Context(), user, req.FeedURL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordImportedBookmarks(len(imported))
	}

	responses := make([]bookmarkResponse, 0, len(imported))
	for i := range imported {
		responses = append(responses, toBookmarkResponse(&imported[i], nil))
	}
	writeJSON(w, http.StatusCreated, responses)
}

// toNoteResponse はmodel.BookmarkNoteからAPIレスポンスに変換する。
func toNoteResponse(note *model.BookmarkNote) noteResponse {
	return noteResponse{
		Content:   note.Content,
		Slug:      note.Slug,
		CreatedAt: note.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// toBookmarkResponse はmodel.BookmarkからAPIレスポンスに変換する。
// ownerがnilの場合は所有者情報を省略する。
func toBookmarkResponse(b *model.Bookmark, owner *bookmarkOwnerResponse) bookmarkResponse {
	tags := b.Tags
	if tags == nil {
		tags = []string{}
	}

	notes := make([]noteResponse, 0, len(b.Notes))
	for i := range b.Notes {
		notes = append(notes, toNoteResponse(&b.Notes[i]))
	}

	return bookmarkResponse{
		URL:       b.URL,
		Tags:      tags,
		Content:   b.Content,
		Slug:      b.Slug,
		Notes:     notes,
		Owner:     owner,
		CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: b.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
