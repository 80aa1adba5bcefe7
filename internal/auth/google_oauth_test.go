package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hitoshi/melly/internal/model"
)

// TestGetLoginURL はGoogle認証URLの生成をテストする。
func TestGetLoginURL(t *testing.T) {
	p := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:    "client-123",
		RedirectURL: "https://api.example.com/v1/me/auth/google/callback",
	})

	loginURL := p.GetLoginURL("nonce-abc")

	parsed, err := url.Parse(loginURL)
	if err != nil {
		t.Fatalf("invalid login URL: %v", err)
	}
	if !strings.HasPrefix(loginURL, defaultGoogleAuthURL) {
		t.Errorf("login URL = %q, want prefix %q", loginURL, defaultGoogleAuthURL)
	}
	q := parsed.Query()
	if q.Get("client_id") != "client-123" {
		t.Errorf("client_id = %q, want %q", q.Get("client_id"), "client-123")
	}
	if q.Get("state") != "nonce-abc" {
		t.Errorf("state = %q, want %q", q.Get("state"), "nonce-abc")
	}
	if q.Get("response_type") != "code" {
		t.Errorf("response_type = %q, want %q", q.Get("response_type"), "code")
	}
	if q.Get("scope") != "openid email profile" {
		t.Errorf("scope = %q, want %q", q.Get("scope"), "openid email profile")
	}
}

// TestAuthorize_Success は認可コード交換とユーザー情報取得の成功パスをテストする。
func TestAuthorize_Success(t *testing.T) {
	rawProfile := `{"sub":"sub-123","email":"taro@example.com","name":"Taro Yamada","picture":"https://example.com/p.png"}`

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		if got := r.PostForm.Get("code"); got != "auth-code" {
			t.Errorf("code = %q, want %q", got, "auth-code")
		}
		if got := r.PostForm.Get("grant_type"); got != "authorization_code" {
			t.Errorf("grant_type = %q, want %q", got, "authorization_code")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"provider-token","token_type":"Bearer","expires_in":3600}`)
	}))
	defer tokenServer.Close()

	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer provider-token" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer provider-token")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, rawProfile)
	}))
	defer userInfoServer.Close()

	p := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:     "client-123",
		ClientSecret: "secret",
		TokenURL:     tokenServer.URL,
		UserInfoURL:  userInfoServer.URL,
	})

	identity, err := p.Authorize(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}

	if identity.Provider != "google" {
		t.Errorf("Provider = %q, want %q", identity.Provider, "google")
	}
	if identity.ProviderUserID != "sub-123" {
		t.Errorf("ProviderUserID = %q, want %q", identity.ProviderUserID, "sub-123")
	}
	if identity.Email != "taro@example.com" {
		t.Errorf("Email = %q, want %q", identity.Email, "taro@example.com")
	}
	if identity.Picture != "https://example.com/p.png" {
		t.Errorf("Picture = %q, want %q", identity.Picture, "https://example.com/p.png")
	}
	if identity.AccessToken != "provider-token" {
		t.Errorf("AccessToken = %q, want %q", identity.AccessToken, "provider-token")
	}
	if identity.RawProfile != rawProfile {
		t.Errorf("RawProfile = %q, want raw response body", identity.RawProfile)
	}
}

// TestAuthorize_TokenEndpointError はトークンエンドポイントの非2xx応答が
// PROVIDER_ERRORとしてステータス・ボディごと伝搬されることをテストする。
func TestAuthorize_TokenEndpointError(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant"}`)
	}))
	defer tokenServer.Close()

	p := NewGoogleOAuthProvider(GoogleOAuthConfig{TokenURL: tokenServer.URL})

	_, err := p.Authorize(context.Background(), "bad-code")
	if err == nil {
		t.Fatal("expected error for token endpoint failure, got nil")
	}
	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeProviderError {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeProviderError)
	}
	if apiErr.Upstream != http.StatusBadRequest {
		t.Errorf("Upstream = %d, want %d", apiErr.Upstream, http.StatusBadRequest)
	}
	if apiErr.Message != `{"error":"invalid_grant"}` {
		t.Errorf("Message = %q, want upstream body verbatim", apiErr.Message)
	}
}

// TestAuthorize_UserInfoEndpointError はユーザー情報エンドポイントの非2xx応答が
// PROVIDER_ERRORとして伝搬されることをテストする。
func TestAuthorize_UserInfoEndpointError(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"provider-token"}`)
	}))
	defer tokenServer.Close()

	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid_token"}`)
	}))
	defer userInfoServer.Close()

	p := NewGoogleOAuthProvider(GoogleOAuthConfig{
		TokenURL:    tokenServer.URL,
		UserInfoURL: userInfoServer.URL,
	})

	_, err := p.Authorize(context.Background(), "auth-code")
	if err == nil {
		t.Fatal("expected error for user info failure, got nil")
	}
	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Upstream != http.StatusUnauthorized {
		t.Errorf("Upstream = %d, want %d", apiErr.Upstream, http.StatusUnauthorized)
	}
}

// TestAuthorize_EmptyAccessToken はアクセストークンが空の場合にエラーを返すことをテストする。
func TestAuthorize_EmptyAccessToken(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"token_type":"Bearer"}`)
	}))
	defer tokenServer.Close()

	p := NewGoogleOAuthProvider(GoogleOAuthConfig{TokenURL: tokenServer.URL})

	_, err := p.Authorize(context.Background(), "auth-code")
	if err == nil {
		t.Fatal("expected error for empty access token, got nil")
	}
}
