// Package preview はブックマーク対象URLのメタデータ取得とフィードインポートの
// ドメインロジックを提供する。
package preview

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/melly/internal/model"
	"golang.org/x/net/html"
)

// Metadata はURLから抽出したページメタデータを表す。
// OGPタグを優先し、無い場合はtitleタグ・meta descriptionにフォールバックする。
type Metadata struct {
	Title        string
	Description  string
	Image        string
	CanonicalURL string
}

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Fetcher はブックマーク保存時のプレビュー用メタデータ取得機能を提供する。
type Fetcher struct {
	ssrfGuard SSRFValidator
	timeout   time.Duration
	maxSize   int64
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(ssrfGuard SSRFValidator, timeout time.Duration, maxSize int64) *Fetcher {
	return &Fetcher{
		ssrfGuard: ssrfGuard,
		timeout:   timeout,
		maxSize:   maxSize,
	}
}

// Fetch はURLからページメタデータを取得する。
// 1. SSRF検証を実行
// 2. URLにHTTPリクエストを送信
// 3. HTMLレスポンスのheadタグからOGP・title・descriptionを抽出
// HTMLでないレスポンスの場合は空のMetadataを返す（エラーにしない）。
func (f *Fetcher) Fetch(ctx context.Context, inputURL string) (*Metadata, error) {
	if inputURL == "" {
		return nil, model.NewInvalidURLError("URLが入力されていません")
	}

	if err := f.ssrfGuard.ValidateURL(inputURL); err != nil {
		return nil, model.NewSSRFBlockedError()
	}

	client := f.getHTTPClient()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, inputURL, nil)
	if err != nil {
		return nil, model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", "Melly/1.0 Bookmark Manager")
	req.Header.Set("Accept", "text/html, application/xhtml+xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, model.NewFetchFailedError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, model.NewFetchFailedError(resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize))
	if err != nil {
		return nil, model.NewFetchFailedError(err.Error())
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if !strings.Contains(strings.ToLower(mediaType), "html") {
		// PDFや画像など、HTML以外のURLもブックマーク自体は可能にする
		return &Metadata{}, nil
	}

	meta := ParseMetadataFromHTML(body)
	return meta, nil
}

// ParseMetadataFromHTML はHTMLのheadタグからページメタデータを解析・抽出する。
// og:title / og:description / og:image を優先し、
// titleタグとmeta descriptionにフォールバックする。
func ParseMetadataFromHTML(htmlBody []byte) *Metadata {
	meta := &Metadata{}
	var fallbackTitle, fallbackDescription string

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	inHead := false
	inTitle := false

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return finalizeMetadata(meta, fallbackTitle, fallbackDescription)

		case html.TextToken:
			if inTitle && fallbackTitle == "" {
				fallbackTitle = strings.TrimSpace(string(tokenizer.Text()))
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			if tagName == "head" {
				inHead = true
				continue
			}

			if tagName == "body" {
				// bodyに入ったらheadの解析を終了
				return finalizeMetadata(meta, fallbackTitle, fallbackDescription)
			}

			if tagName == "title" {
				inTitle = true
				continue
			}

			if !inHead || !hasAttr {
				continue
			}

			switch tagName {
			case "meta":
				var property, name, content string
				for {
					key, val, more := tokenizer.TagAttr()
					k := strings.ToLower(string(key))
					v := string(val)
					switch k {
					case "property":
						property = strings.ToLower(v)
					case "name":
						name = strings.ToLower(v)
					case "content":
						content = v
					}
					if !more {
						break
					}
				}

				switch property {
				case "og:title":
					meta.Title = content
				case "og:description":
					meta.Description = content
				case "og:image":
					meta.Image = content
				case "og:url":
					meta.CanonicalURL = content
				}
				if name == "description" && fallbackDescription == "" {
					fallbackDescription = content
				}

			case "link":
				var rel, href string
				for {
					key, val, more := tokenizer.TagAttr()
					k := strings.ToLower(string(key))
					v := string(val)
					switch k {
					case "rel":
						rel = strings.ToLower(v)
					case "href":
						href = v
					}
					if !more {
						break
					}
				}
				if rel == "canonical" && meta.CanonicalURL == "" {
					meta.CanonicalURL = href
				}
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			tagName := string(tn)
			if tagName == "title" {
				inTitle = false
			}
			if tagName == "head" {
				return finalizeMetadata(meta, fallbackTitle, fallbackDescription)
			}
		}
	}
}

// finalizeMetadata はOGPで取得できなかった項目にフォールバック値を適用する。
func finalizeMetadata(meta *Metadata, fallbackTitle, fallbackDescription string) *Metadata {
	if meta.Title == "" {
		meta.Title = fallbackTitle
	}
	if meta.Description == "" {
		meta.Description = fallbackDescription
	}
	return meta
}

// getHTTPClient はSSRF防止付きHTTPクライアントを取得する。
func (f *Fetcher) getHTTPClient() *http.Client {
	return f.ssrfGuard.NewSafeClient(f.timeout, f.maxSize)
}
