package preview

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/melly/internal/model"
)

// FeedEntry はインポート対象フィードから抽出した1記事を表す。
// ブックマーク一括作成の入力として使用される。
type FeedEntry struct {
	Title   string
	Link    string
	Summary string
}

// FeedImporter はRSS/AtomフィードのURLから記事一覧を取得し、
// ブックマーク一括インポートの候補に変換する。
type FeedImporter struct {
	ssrfGuard SSRFValidator
	timeout   time.Duration
	maxSize   int64
}

// NewFeedImporter はFeedImporterの新しいインスタンスを生成する。
func NewFeedImporter(ssrfGuard SSRFValidator, timeout time.Duration, maxSize int64) *FeedImporter {
	return &FeedImporter{
		ssrfGuard: ssrfGuard,
		timeout:   timeout,
		maxSize:   maxSize,
	}
}

// Import はフィードURLをフェッチ・パースして記事一覧を返す。
// 1. SSRF検証を実行
// 2. URLにHTTPリクエストを送信
// 3. gofeedでRSS/Atomをパース
// リンクを持たない記事はブックマークできないためスキップされる。
func (i *FeedImporter) Import(ctx context.Context, feedURL string) ([]FeedEntry, error) {
	if feedURL == "" {
		return nil, model.NewInvalidURLError("フィードURLが入力されていません")
	}

	if err := i.ssrfGuard.ValidateURL(feedURL); err != nil {
		return nil, model.NewSSRFBlockedError()
	}

	client := i.ssrfGuard.NewSafeClient(i.timeout, i.maxSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", "Melly/1.0 Bookmark Manager")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, model.NewFetchFailedError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, model.NewFetchFailedError(resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, i.maxSize))
	if err != nil {
		return nil, model.NewFetchFailedError(err.Error())
	}

	parser := gofeed.NewParser()
	parsedFeed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, model.NewFeedParseFailedError()
	}

	return convertFeedItems(parsedFeed.Items), nil
}

// convertFeedItems はgofeedの記事をFeedEntryに変換する。
func convertFeedItems(items []*gofeed.Item) []FeedEntry {
	entries := make([]FeedEntry, 0, len(items))

	for _, item := range items {
		if item == nil {
			continue
		}

		entry := FeedEntry{
			Title:   item.Title,
			Link:    item.Link,
			Summary: item.Description,
		}

		// LinkがなくGUIDがURL形式の場合はGUIDをLinkとして使用
		if entry.Link == "" && item.GUID != "" &&
			(strings.HasPrefix(item.GUID, "http://") || strings.HasPrefix(item.GUID, "https://")) {
			entry.Link = item.GUID
		}

		// リンクを持たない記事はブックマークできないためスキップ
		if entry.Link == "" {
			continue
		}

		if entry.Summary == "" && item.Content != "" {
			entry.Summary = item.Content
		}

		entries = append(entries, entry)
	}

	return entries
}
