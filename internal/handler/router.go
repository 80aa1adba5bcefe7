package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/melly/internal/middleware"
)

// HealthChecker はヘルスチェックに必要なインターフェース。
// *sql.DBがそのまま満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.AccessTokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	HTTPMetrics       middleware.HTTPMetricsRecorder

	// ヘルスチェック
	HealthChecker HealthChecker

	// サービス
	AuthService       AuthServiceInterface
	AccountService    AccountServiceInterface
	ArticleService    ArticleServiceInterface
	BookmarkService   BookmarkServiceInterface
	CollectionService CollectionServiceInterface

	// メトリクス（nil可）
	AuthMetrics     AuthMetricsRecorder
	BookmarkMetrics BookmarkMetricsRecorder

	// フロントエンドのベースURL（記事のcanonicalUrl生成に使用）
	FEBaseURL string
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Metrics → Logging
//	→（認証が必要なルートのみ）Auth → RateLimit(General) →（書き込み系のみ）RateLimit(Write)
//
// 認証フロー（/v1/me/auth/*、/v1/me/access/*）と公開読み取りルートは
// 認証ミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.HTTPMetrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPMetrics))
	}
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthMetrics)
	meHandler := NewMeHandler(deps.AccountService)
	articleHandler := NewArticleHandler(deps.ArticleService, deps.AccountService, deps.FEBaseURL)
	bookmarkHandler := NewBookmarkHandler(deps.BookmarkService, deps.AccountService, deps.BookmarkMetrics)
	collectionHandler := NewCollectionHandler(deps.CollectionService, deps.AccountService)

	// ヘルスチェック
	r.Get("/healthz", healthHandler(deps.HealthChecker))

	r.Route("/v1", func(r chi.Router) {
		// --- 認証不要のルート ---

		// OAuthハンドシェイク
		r.Get("/me/auth/google", authHandler.Login)
		r.Get("/me/auth/google/callback", authHandler.Callback)
		r.Get("/me/access/token", authHandler.ExchangeToken)
		r.Post("/me/access/token/refresh", authHandler.RefreshToken)

		// 公開読み取り
		r.Get("/articles/{slug}", articleHandler.GetArticle)
		r.Get("/bookmarks/{slug}", bookmarkHandler.GetBookmark)
		r.Get("/collections/{slug}", collectionHandler.GetSharedCollection)

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))
			if deps.RateLimiter != nil {
				r.Use(deps.RateLimiter.GeneralMiddleware())
			}

			writeLimit := func(r chi.Router) chi.Router {
				if deps.RateLimiter != nil {
					return r.With(deps.RateLimiter.WriteMiddleware())
				}
				return r
			}

			// プロフィール
			r.Get("/me", meHandler.Me)
			r.Put("/me/username", meHandler.UpdateUsername)

			// 記事
			r.Get("/articles", articleHandler.ListArticles)
			writeLimit(r).Post("/articles", articleHandler.CreateArticle)
			writeLimit(r).Put("/articles/{slug}", articleHandler.UpdateArticle)

			// ブックマーク
			r.Get("/bookmarks", bookmarkHandler.ListBookmarks)
			r.Get("/bookmarks/preview", bookmarkHandler.Preview)
			writeLimit(r).Post("/bookmarks", bookmarkHandler.CreateBookmark)
			writeLimit(r).Put("/bookmarks/{slug}", bookmarkHandler.UpdateBookmark)
			writeLimit(r).Post("/bookmarks/{slug}/notes", bookmarkHandler.AddNote)
			writeLimit(r).Post("/bookmarks/import", bookmarkHandler.Import)

			// コレクション
			r.Route("/me/collections", func(r chi.Router) {
				r.Get("/", collectionHandler.ListCollections)
				writeLimit(r).Post("/", collectionHandler.CreateCollection)
				r.Get("/{slug}", collectionHandler.GetCollection)
				writeLimit(r).Put("/{slug}/title", collectionHandler.UpdateTitle)
				writeLimit(r).Post("/{slug}/items", collectionHandler.AddItem)
			})
		})
	})

	return r
}

// healthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
