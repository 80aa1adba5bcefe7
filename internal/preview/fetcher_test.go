package preview

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/melly/internal/model"
)

// mockSSRFGuard はテスト用のSSRFGuardモック。
type mockSSRFGuard struct {
	blockAll bool
}

func (m *mockSSRFGuard) NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (m *mockSSRFGuard) ValidateURL(rawURL string) error {
	if m.blockAll {
		return fmt.Errorf("blocked by SSRF guard")
	}
	return nil
}

func newTestFetcher(guard *mockSSRFGuard) *Fetcher {
	return NewFetcher(guard, 5*time.Second, 5*1024*1024)
}

// --- ParseMetadataFromHTML のテスト ---

// TestParseMetadataFromHTML_OGPTags はOGPタグからメタデータを抽出することをテストする。
func TestParseMetadataFromHTML_OGPTags(t *testing.T) {
	htmlBody := []byte(`<!DOCTYPE html>
<html>
<head>
<title>フォールバックタイトル</title>
<meta property="og:title" content="OGPタイトル">
<meta property="og:description" content="OGPの説明文">
<meta property="og:image" content="https://example.com/ogp.png">
<meta property="og:url" content="https://example.com/canonical">
</head>
<body><p>本文</p></body>
</html>`)

	meta := ParseMetadataFromHTML(htmlBody)

	if meta.Title != "OGPタイトル" {
		t.Errorf("Title = %q, want %q", meta.Title, "OGPタイトル")
	}
	if meta.Description != "OGPの説明文" {
		t.Errorf("Description = %q, want %q", meta.Description, "OGPの説明文")
	}
	if meta.Image != "https://example.com/ogp.png" {
		t.Errorf("Image = %q, want %q", meta.Image, "https://example.com/ogp.png")
	}
	if meta.CanonicalURL != "https://example.com/canonical" {
		t.Errorf("CanonicalURL = %q, want %q", meta.CanonicalURL, "https://example.com/canonical")
	}
}

// TestParseMetadataFromHTML_Fallback はOGPタグがない場合にtitleタグと
// meta descriptionにフォールバックすることをテストする。
func TestParseMetadataFromHTML_Fallback(t *testing.T) {
	htmlBody := []byte(`<html>
<head>
<title>ページタイトル</title>
<meta name="description" content="メタ説明文">
<link rel="canonical" href="https://example.com/page">
</head>
<body></body>
</html>`)

	meta := ParseMetadataFromHTML(htmlBody)

	if meta.Title != "ページタイトル" {
		t.Errorf("Title = %q, want %q", meta.Title, "ページタイトル")
	}
	if meta.Description != "メタ説明文" {
		t.Errorf("Description = %q, want %q", meta.Description, "メタ説明文")
	}
	if meta.CanonicalURL != "https://example.com/page" {
		t.Errorf("CanonicalURL = %q, want %q", meta.CanonicalURL, "https://example.com/page")
	}
}

// TestParseMetadataFromHTML_OGPOverridesFallback はOGPがフォールバックより優先されることをテストする。
func TestParseMetadataFromHTML_OGPOverridesFallback(t *testing.T) {
	htmlBody := []byte(`<html>
<head>
<meta property="og:title" content="OGP優先">
<title>タイトルタグ</title>
<meta name="description" content="メタ説明">
<meta property="og:description" content="OGP説明優先">
</head>
<body></body>
</html>`)

	meta := ParseMetadataFromHTML(htmlBody)

	if meta.Title != "OGP優先" {
		t.Errorf("Title = %q, want %q", meta.Title, "OGP優先")
	}
	if meta.Description != "OGP説明優先" {
		t.Errorf("Description = %q, want %q", meta.Description, "OGP説明優先")
	}
}

// TestParseMetadataFromHTML_EmptyHTML は空のHTMLを安全に処理できることをテストする。
func TestParseMetadataFromHTML_EmptyHTML(t *testing.T) {
	meta := ParseMetadataFromHTML([]byte(""))
	if meta.Title != "" || meta.Description != "" || meta.Image != "" {
		t.Errorf("empty HTML should yield empty metadata, got %+v", meta)
	}
}

// TestParseMetadataFromHTML_BodyMetaIgnored はbody内のmetaタグが無視されることをテストする。
func TestParseMetadataFromHTML_BodyMetaIgnored(t *testing.T) {
	htmlBody := []byte(`<html>
<head><title>本物</title></head>
<body>
<meta property="og:title" content="偽物">
</body>
</html>`)

	meta := ParseMetadataFromHTML(htmlBody)

	if meta.Title != "本物" {
		t.Errorf("Title = %q, want %q", meta.Title, "本物")
	}
}

// --- Fetch のテスト ---

// TestFetch_HTMLPage はHTMLページからメタデータを取得することをテストする。
func TestFetch_HTMLPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head>
<meta property="og:title" content="記事タイトル">
<meta property="og:image" content="https://example.com/img.png">
</head><body></body></html>`)
	}))
	defer server.Close()

	f := newTestFetcher(&mockSSRFGuard{})
	meta, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if meta.Title != "記事タイトル" {
		t.Errorf("Title = %q, want %q", meta.Title, "記事タイトル")
	}
	if meta.Image != "https://example.com/img.png" {
		t.Errorf("Image = %q, want %q", meta.Image, "https://example.com/img.png")
	}
}

// TestFetch_NonHTML はHTML以外のレスポンスで空メタデータを返すことをテストする。
func TestFetch_NonHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.4")
	}))
	defer server.Close()

	f := newTestFetcher(&mockSSRFGuard{})
	meta, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if meta.Title != "" {
		t.Errorf("non-HTML response should yield empty metadata, got %+v", meta)
	}
}

// TestFetch_EmptyURL は空URLでINVALID_URLエラーを返すことをテストする。
func TestFetch_EmptyURL(t *testing.T) {
	f := newTestFetcher(&mockSSRFGuard{})
	_, err := f.Fetch(context.Background(), "")
	if err == nil {
		t.Fatal("expected error for empty URL, got nil")
	}
	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Code != "INVALID_URL" {
		t.Errorf("Code = %q, want INVALID_URL", apiErr.Code)
	}
}

// TestFetch_SSRFBlocked はSSRF検証失敗でSSRF_BLOCKEDエラーを返すことをテストする。
func TestFetch_SSRFBlocked(t *testing.T) {
	f := newTestFetcher(&mockSSRFGuard{blockAll: true})
	_, err := f.Fetch(context.Background(), "http://169.254.169.254/")
	if err == nil {
		t.Fatal("expected error for blocked URL, got nil")
	}
	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Code != "SSRF_BLOCKED" {
		t.Errorf("Code = %q, want SSRF_BLOCKED", apiErr.Code)
	}
}

// TestFetch_HTTPError はHTTPエラーステータスでFETCH_FAILEDエラーを返すことをテストする。
func TestFetch_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := newTestFetcher(&mockSSRFGuard{})
	_, err := f.Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error for 404 response, got nil")
	}
	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Code != "FETCH_FAILED" {
		t.Errorf("Code = %q, want FETCH_FAILED", apiErr.Code)
	}
}
