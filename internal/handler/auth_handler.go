package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/melly/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// CreateLoginURL はnonce付きセッションを作成し、プロバイダーの認証URLを返す。
	CreateLoginURL(ctx context.Context, extra, ip, userAgent string) (string, error)
	// HandleCallback はプロバイダーからのコールバックを処理し、FEへのリダイレクトURLを返す。
	HandleCallback(ctx context.Context, state, code string) (string, error)
	// ExchangeCode は交換コードを消費してトークンの組を発行する。
	ExchangeCode(ctx context.Context, code string) (*model.TokenPair, error)
	// RefreshToken はリフレッシュトークンから新しいアクセストークンを発行する。
	RefreshToken(ctx context.Context, refreshToken string) (*model.TokenPair, error)
}

// AuthMetricsRecorder はログインフローの計測に必要なインターフェース。
// metrics.MetricsCollectorの部分集合として定義する。nilの場合は計測しない。
type AuthMetricsRecorder interface {
	RecordLoginStarted()
	RecordLoginCompleted()
	RecordLoginFailed(stage string)
	RecordTokenRefresh()
}

// AuthHandler はOAuth認証フローのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	metrics AuthMetricsRecorder
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, metrics AuthMetricsRecorder) *AuthHandler {
	return &AuthHandler{
		service: service,
		metrics: metrics,
	}
}

// loginURLResponse はログインURL発行のレスポンス。
type loginURLResponse struct {
	URL string `json:"url"`
}

// tokenPairResponse はトークン発行のレスポンス。
type tokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// refreshTokenRequest はトークン再発行リクエストのボディ。
type refreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Login はGoogle OAuthフローを開始し、認証URLを返す。
// GET /v1/me/auth/google?extra=
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	extra := r.URL.Query().Get("extra")

	url, err := h.service.CreateLoginURL(r.Context(), extra, r.RemoteAddr, r.UserAgent())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordLoginStarted()
	}
	writeJSON(w, http.StatusOK, loginURLResponse{URL: url})
}

// Callback はプロバイダーからのコールバックを処理し、フロントエンドへ
// 交換コード付きでリダイレクトする。
// GET /v1/me/auth/google/callback?state=&code=
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")

	redirectURL, err := h.service.HandleCallback(r.Context(), state, code)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordLoginFailed("callback")
		}
		handleServiceError(w, err)
		return
	}

	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// ExchangeToken は交換コードをアクセス/リフレッシュトークンの組と交換する。
// GET /v1/me/access/token?code=
func (h *AuthHandler) ExchangeToken(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")

	pair, err := h.service.ExchangeCode(r.Context(), code)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordLoginFailed("exchange")
		}
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordLoginCompleted()
	}
	writeJSON(w, http.StatusOK, tokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// RefreshToken はリフレッシュトークンから新しいアクセストークンを発行する。
// POST /v1/me/access/token/refresh
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	pair, err := h.service.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordLoginFailed("refresh")
		}
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordTokenRefresh()
	}
	writeJSON(w, http.StatusOK, tokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}
