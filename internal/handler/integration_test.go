package handler

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/melly/internal/account"
	"github.com/hitoshi/melly/internal/auth"
	"github.com/hitoshi/melly/internal/middleware"
	"github.com/hitoshi/melly/internal/model"
	"github.com/hitoshi/melly/internal/token"
)

// --- 統合テスト用のステートフルフェイク ---

// fakeClock はセッションの期限切れをシミュレートするためのテスト用時計。
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeAuthSessionRepo はインメモリのAuthSessionRepository実装。
// 本物のSQLと同じ条件（有効状態・期限内・未使用のみ）で絞り込み、
// 交換コードの消費は未使用の場合のみ成功する。
type fakeAuthSessionRepo struct {
	mu       sync.Mutex
	clock    *fakeClock
	sessions map[string]*model.AuthSession
}

func newFakeAuthSessionRepo(clock *fakeClock) *fakeAuthSessionRepo {
	return &fakeAuthSessionRepo{
		clock:    clock,
		sessions: make(map[string]*model.AuthSession),
	}
}

func (r *fakeAuthSessionRepo) Create(ctx context.Context, session *model.AuthSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *fakeAuthSessionRepo) FindByNonce(ctx context.Context, nonce string) (*model.AuthSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.Nonce == nonce && s.Status == model.StatusActive && s.ExpiresAt.After(r.clock.Now()) {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeAuthSessionRepo) UpdateProviderInfo(ctx context.Context, id, providerUserID, accessToken, profile string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("session %q not found", id)
	}
	s.ProviderUserID = providerUserID
	s.ProviderAccessToken = accessToken
	s.Profile = profile
	return nil
}

func (r *fakeAuthSessionRepo) SetExchangeCode(ctx context.Context, id, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("session %q not found", id)
	}
	s.ExchangeCode = code
	return nil
}

func (r *fakeAuthSessionRepo) ConsumeExchangeCode(ctx context.Context, code string) (*model.AuthSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.ExchangeCode != code {
			continue
		}
		// 使用済み・期限切れ・無効状態のコードは未知のコードと区別しない
		if s.ExchangeCodeUsedAt != nil || s.Status != model.StatusActive || !s.ExpiresAt.After(r.clock.Now()) {
			return nil, nil
		}
		usedAt := r.clock.Now()
		s.ExchangeCodeUsedAt = &usedAt
		copied := *s
		return &copied, nil
	}
	return nil, nil
}

// fakeUserRepo はインメモリのUserRepository実装。
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User // id -> user
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) FindActiveByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Identifier == identifier && u.Status == model.StatusActive {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) FindActiveByProviderUserID(ctx context.Context, providerUserID string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Status != model.StatusActive {
			continue
		}
		for _, id := range u.ProviderUserIDs {
			if id == providerUserID {
				copied := *u
				return &copied, nil
			}
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) Reactivate(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.Status = model.StatusActive
	}
	return nil
}

func (r *fakeUserRepo) UpdateUsername(ctx context.Context, id, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.Username = username
	}
	return nil
}

// fakeOAuthProvider は常に同じGoogleアイデンティティを返すプロバイダー。
type fakeOAuthProvider struct{}

func (p *fakeOAuthProvider) GetLoginURL(state string) string {
	return "https://accounts.google.com/o/oauth2/v2/auth?state=" + url.QueryEscape(state)
}

func (p *fakeOAuthProvider) Authorize(ctx context.Context, code string) (*auth.ProviderIdentity, error) {
	return &auth.ProviderIdentity{
		Provider:       "google",
		ProviderUserID: "google-flow-1",
		Email:          "hanako@example.com",
		Name:           "鈴木花子",
		Picture:        "https://example.com/hanako.png",
		AccessToken:    "provider-access-token",
		RawProfile:     `{"sub":"google-flow-1"}`,
	}, nil
}

// --- 組み立てヘルパー ---

func newHandshakeIssuer(t *testing.T) *token.Issuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}
	privatePEM := string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}))
	publicBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("failed to marshal public key: %v", err)
	}
	publicPEM := string(pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: publicBytes,
	}))

	issuer, err := token.NewIssuer(token.IssuerConfig{
		PrivateKeyPEM: privatePEM,
		PublicKeyPEM:  publicPEM,
		Issuer:        "http://localhost:8080",
		Audience:      "http://localhost:8080",
		AccessTTL:     time.Hour,
		RefreshTTL:    30 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}
	return issuer
}

// newHandshakeRouter は本物の認証サービス・アカウントサービス・トークン発行者を
// インメモリのリポジトリと組み合わせたルーターを構築する。
func newHandshakeRouter(t *testing.T, clock *fakeClock) http.Handler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	issuer := newHandshakeIssuer(t)
	sessionRepo := newFakeAuthSessionRepo(clock)
	userRepo := newFakeUserRepo()
	accountService := account.NewService(userRepo, logger)

	authService := auth.NewService(
		&fakeOAuthProvider{}, sessionRepo, userRepo, accountService, issuer,
		auth.ServiceConfig{
			SessionTTL: 10 * time.Minute,
			FEBaseURL:  "https://app.example.com",
		},
		logger,
	)

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		TokenVerifier:     issuer,
		CORSAllowedOrigin: "https://app.example.com",
		RateLimiter:       rl,
		Logger:            logger,

		AuthService:       authService,
		AccountService:    accountService,
		ArticleService:    &mockArticleService{},
		BookmarkService:   &mockBookmarkService{},
		CollectionService: &mockCollectionService{},

		FEBaseURL: "https://app.example.com",
	})
}

func doRequest(t *testing.T, router http.Handler, method, target, bearer, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// startLogin はログインURLを発行し、stateパラメータ（nonce）を取り出す。
func startLogin(t *testing.T, router http.Handler) string {
	t.Helper()

	w := doRequest(t, router, http.MethodGet, "/v1/me/auth/google", "", "")
	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("login url status = %d, body = %s", w.Result().StatusCode, w.Body.String())
	}
	var res struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(w.Result().Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode login url response: %v", err)
	}
	loginURL, err := url.Parse(res.URL)
	if err != nil {
		t.Fatalf("invalid login url %q: %v", res.URL, err)
	}
	state := loginURL.Query().Get("state")
	if state == "" {
		t.Fatalf("login url %q should carry a state parameter", res.URL)
	}
	return state
}

// completeCallback はコールバックを実行し、リダイレクト先の交換コードを取り出す。
func completeCallback(t *testing.T, router http.Handler, state string) string {
	t.Helper()

	target := "/v1/me/auth/google/callback?state=" + url.QueryEscape(state) + "&code=provider-code"
	w := doRequest(t, router, http.MethodGet, target, "", "")
	if w.Result().StatusCode != http.StatusFound {
		t.Fatalf("callback status = %d, body = %s", w.Result().StatusCode, w.Body.String())
	}
	location := w.Result().Header.Get("Location")
	if !strings.HasPrefix(location, "https://app.example.com/auth/callback?") {
		t.Fatalf("Location = %q, want FE callback URL", location)
	}
	redirect, err := url.Parse(location)
	if err != nil {
		t.Fatalf("invalid Location %q: %v", location, err)
	}
	code := redirect.Query().Get("code")
	if code == "" {
		t.Fatalf("Location %q should carry an exchange code", location)
	}
	return code
}

func decodeTokenPair(t *testing.T, w *httptest.ResponseRecorder) (accessToken, refreshToken string) {
	t.Helper()

	var res struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(w.Result().Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode token pair: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatalf("token pair should not be empty: %+v", res)
	}
	return res.AccessToken, res.RefreshToken
}

func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()

	if w.Result().StatusCode != wantStatus {
		t.Errorf("status = %d, want %d (body: %s)", w.Result().StatusCode, wantStatus, w.Body.String())
	}
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("error response should be JSON: %v", err)
	}
	if body.Code != wantCode {
		t.Errorf("code = %q, want %q", body.Code, wantCode)
	}
}

// --- テスト ---

// TestAuthHandshake_FullFlow はログインURL発行からトークンリフレッシュまでの
// 一連のハンドシェイクを1つのシーケンスとして検証する。
func TestAuthHandshake_FullFlow(t *testing.T) {
	clock := newFakeClock()
	router := newHandshakeRouter(t, clock)

	// 1. ログインURL発行
	state := startLogin(t, router)

	// 2. コールバックでFEへ302リダイレクト、交換コードを受け取る
	code := completeCallback(t, router, state)

	// 3. 交換コードをトークンの組に交換
	w := doRequest(t, router, http.MethodGet, "/v1/me/access/token?code="+url.QueryEscape(code), "", "")
	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("exchange status = %d, body = %s", w.Result().StatusCode, w.Body.String())
	}
	accessToken, refreshToken := decodeTokenPair(t, w)

	// 4. アクセストークンで認証済みエンドポイントにアクセスできる
	w = doRequest(t, router, http.MethodGet, "/v1/me", accessToken, "")
	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("me status = %d, body = %s", w.Result().StatusCode, w.Body.String())
	}
	var profile struct {
		Email    string `json:"email"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(w.Result().Body).Decode(&profile); err != nil {
		t.Fatalf("failed to decode profile: %v", err)
	}
	if profile.Email != "hanako@example.com" {
		t.Errorf("email = %q, want hanako@example.com", profile.Email)
	}
	if profile.Username == "" {
		t.Error("username should be generated at signup")
	}

	// 5. リフレッシュで新しいアクセストークンが発行され、リフレッシュトークンはそのまま
	w = doRequest(t, router, http.MethodPost, "/v1/me/access/token/refresh", "",
		fmt.Sprintf(`{"refreshToken":%q}`, refreshToken))
	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d, body = %s", w.Result().StatusCode, w.Body.String())
	}
	newAccess, newRefresh := decodeTokenPair(t, w)
	if newAccess == accessToken {
		t.Error("refresh should issue a new access token")
	}
	if newRefresh != refreshToken {
		t.Error("refresh token should not be rotated")
	}

	// 6. 新しいアクセストークンも有効
	w = doRequest(t, router, http.MethodGet, "/v1/me", newAccess, "")
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("me with refreshed token status = %d", w.Result().StatusCode)
	}
}

// TestAuthHandshake_ExchangeCodeIsSingleUse は交換コードが1回しか使えないことを検証する。
func TestAuthHandshake_ExchangeCodeIsSingleUse(t *testing.T) {
	clock := newFakeClock()
	router := newHandshakeRouter(t, clock)

	state := startLogin(t, router)
	code := completeCallback(t, router, state)
	target := "/v1/me/access/token?code=" + url.QueryEscape(code)

	// 1回目は成功
	w := doRequest(t, router, http.MethodGet, target, "", "")
	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("first exchange status = %d, body = %s", w.Result().StatusCode, w.Body.String())
	}
	decodeTokenPair(t, w)

	// 同じコードの2回目は409
	w = doRequest(t, router, http.MethodGet, target, "", "")
	assertErrorCode(t, w, http.StatusConflict, "INVALID_SESSION")
}

// TestAuthHandshake_ExpiredNonce はセッションTTLを過ぎたnonceでの
// コールバックが409になることを検証する。
func TestAuthHandshake_ExpiredNonce(t *testing.T) {
	clock := newFakeClock()
	router := newHandshakeRouter(t, clock)

	state := startLogin(t, router)

	// TTL（10分）を超過させる
	clock.Advance(11 * time.Minute)

	target := "/v1/me/auth/google/callback?state=" + url.QueryEscape(state) + "&code=provider-code"
	w := doRequest(t, router, http.MethodGet, target, "", "")
	assertErrorCode(t, w, http.StatusConflict, "INVALID_SESSION")
}

// TestAuthHandshake_ExpiredExchangeCode はコールバック後にセッションが期限切れになった
// 交換コードが未使用でも409になることを検証する。
func TestAuthHandshake_ExpiredExchangeCode(t *testing.T) {
	clock := newFakeClock()
	router := newHandshakeRouter(t, clock)

	state := startLogin(t, router)
	code := completeCallback(t, router, state)

	clock.Advance(11 * time.Minute)

	w := doRequest(t, router, http.MethodGet, "/v1/me/access/token?code="+url.QueryEscape(code), "", "")
	assertErrorCode(t, w, http.StatusConflict, "INVALID_SESSION")
}

// TestAuthHandshake_UnknownExchangeCode は発行されていないコードが409になることを検証する。
func TestAuthHandshake_UnknownExchangeCode(t *testing.T) {
	clock := newFakeClock()
	router := newHandshakeRouter(t, clock)

	w := doRequest(t, router, http.MethodGet, "/v1/me/access/token?code=never-issued", "", "")
	assertErrorCode(t, w, http.StatusConflict, "INVALID_SESSION")
}
