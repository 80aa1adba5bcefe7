package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/melly/internal/middleware"
	"github.com/hitoshi/melly/internal/token"
)

// --- モック定義 ---

type mockTokenVerifier struct{}

func (m *mockTokenVerifier) VerifyAccessToken(tokenString string) (*token.Claims, error) {
	if tokenString == "valid-access-token" {
		return &token.Claims{Subject: "ident-123", Email: "taro@example.com", Name: "Taro Yamada"}, nil
	}
	return nil, fmt.Errorf("invalid token")
}

// newTestRouter は全サービスをモックで差し替えたルーターを返す。
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		TokenVerifier:     &mockTokenVerifier{},
		CORSAllowedOrigin: "https://app.example.com",
		RateLimiter:       rl,
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),

		AuthService:       &mockAuthService{},
		AccountService:    &mockAccountService{},
		ArticleService:    &mockArticleService{},
		BookmarkService:   &mockBookmarkService{},
		CollectionService: &mockCollectionService{},

		FEBaseURL: "https://app.example.com",
	})
}

// --- テスト ---

func TestRouter_Healthz(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestRouter_PublicRoutesWithoutToken(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"LoginURL", "/v1/me/auth/google", http.StatusOK},
		{"ExchangeToken", "/v1/me/access/token?code=c", http.StatusOK},
		{"PublicArticle", "/v1/articles/some-slug-1700000000", http.StatusOK},
		{"PublicBookmark", "/v1/bookmarks/a1b2c3d4e5f6-1700000000", http.StatusOK},
		{"SharedCollection", "/v1/collections/f0e1d2c3b4a5-1700000000", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Result().StatusCode != tt.want {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, tt.want)
			}
		})
	}
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"Me", http.MethodGet, "/v1/me"},
		{"ListArticles", http.MethodGet, "/v1/articles"},
		{"ListBookmarks", http.MethodGet, "/v1/bookmarks"},
		{"Preview", http.MethodGet, "/v1/bookmarks/preview?url=https%3A%2F%2Fexample.com"},
		{"ListCollections", http.MethodGet, "/v1/me/collections"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Result().StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
			}
		})
	}
}

func TestRouter_ProtectedRouteWithValidToken(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", "Bearer valid-access-token")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

// プレビューの静的パスが{slug}ワイルドカードより優先されることを確認する。
func TestRouter_PreviewPathTakesPrecedenceOverSlug(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/bookmarks/preview?url=https%3A%2F%2Fexample.com", nil)
	req.Header.Set("Authorization", "Bearer valid-access-token")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	// プレビューレスポンスにはtitleフィールドがある
	if body := w.Body.String(); !strings.Contains(body, `"title"`) {
		t.Errorf("body = %q, should be a preview response", body)
	}
}

func TestRouter_SecurityHeadersApplied(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if got := w.Result().Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := w.Result().Header.Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
