// Package bookmark はブックマークとメモのドメインロジックを提供する。
package bookmark

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/melly/internal/model"
	"github.com/hitoshi/melly/internal/preview"
	"github.com/hitoshi/melly/internal/repository"
	"github.com/hitoshi/melly/internal/security"
)

// CreateInput はブックマーク作成・更新の入力。
type CreateInput struct {
	URL     string
	Tags    []string
	Content string
}

// PreviewFetcher はブックマーク対象URLのメタデータ取得のインターフェース。
type PreviewFetcher interface {
	Fetch(ctx context.Context, inputURL string) (*preview.Metadata, error)
}

// FeedImporter はフィードURLからの記事一覧取得のインターフェース。
type FeedImporter interface {
	Import(ctx context.Context, feedURL string) ([]preview.FeedEntry, error)
}

// URLValidator は保存前のURL検証のインターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Service はブックマークに関するビジネスロジックを提供する。
type Service struct {
	bookmarkRepo repository.BookmarkRepository
	sanitizer    security.ContentSanitizerService
	urlValidator URLValidator
	fetcher      PreviewFetcher
	importer     FeedImporter
	logger       *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	bookmarkRepo repository.BookmarkRepository,
	sanitizer security.ContentSanitizerService,
	urlValidator URLValidator,
	fetcher PreviewFetcher,
	importer FeedImporter,
	logger *slog.Logger,
) *Service {
	return &Service{
		bookmarkRepo: bookmarkRepo,
		sanitizer:    sanitizer,
		urlValidator: urlValidator,
		fetcher:      fetcher,
		importer:     importer,
		logger:       logger,
	}
}

// Create はブックマークを作成する。
// URLはスキーム・ホスト・IPアドレスの静的検証を通過する必要がある。
// contentは保存前にサニタイズされる。
func (s *Service) Create(ctx context.Context, owner *model.User, input CreateInput) (*model.Bookmark, error) {
	if err := s.urlValidator.ValidateURL(input.URL); err != nil {
		return nil, model.NewInvalidURLError(err.Error())
	}

	bookmarkSlug, err := generateSlug()
	if err != nil {
		return nil, fmt.Errorf("failed to generate slug: %w", err)
	}

	now := time.Now()
	bookmark := &model.Bookmark{
		ID:        uuid.New().String(),
		URL:       input.URL,
		Tags:      input.Tags,
		Content:   s.sanitizer.Sanitize(input.Content),
		Slug:      bookmarkSlug,
		OwnerID:   owner.Username,
		Status:    model.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.bookmarkRepo.Create(ctx, bookmark); err != nil {
		return nil, fmt.Errorf("failed to create bookmark: %w", err)
	}

	s.logger.Info("bookmark created",
		slog.String("bookmark_id", bookmark.ID),
		slog.String("slug", bookmark.Slug),
	)

	return bookmark, nil
}

// Get はブックマークを所有者情報とメモ付きでスラグで取得する。
// 共有コレクション経由の閲覧を想定し、誰でも参照できる。
// 見つからない場合はAPIError(BOOKMARK_NOT_FOUND)を返す。
func (s *Service) Get(ctx context.Context, bookmarkSlug string) (*repository.BookmarkWithOwner, error) {
	bookmark, err := s.bookmarkRepo.FindBySlug(ctx, bookmarkSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookmark: %w", err)
	}
	if bookmark == nil {
		return nil, model.NewBookmarkNotFoundError(bookmarkSlug)
	}
	return bookmark, nil
}

// List は所有者のブックマーク一覧をcreated_at降順で返す。
func (s *Service) List(ctx context.Context, owner *model.User, skip, limit int) ([]repository.BookmarkWithOwner, error) {
	bookmarks, err := s.bookmarkRepo.ListByOwner(ctx, owner.Username, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	return bookmarks, nil
}

// Update は自分のブックマークのurl、tags、contentを更新する。スラグは変更されない。
// 他人のブックマークや存在しないスラグの場合はAPIError(BOOKMARK_NOT_FOUND)を返す。
func (s *Service) Update(ctx context.Context, owner *model.User, bookmarkSlug string, input CreateInput) (*model.Bookmark, error) {
	if err := s.urlValidator.ValidateURL(input.URL); err != nil {
		return nil, model.NewInvalidURLError(err.Error())
	}

	bookmark, err := s.bookmarkRepo.FindBySlugAndOwner(ctx, bookmarkSlug, owner.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookmark: %w", err)
	}
	if bookmark == nil {
		return nil, model.NewBookmarkNotFoundError(bookmarkSlug)
	}

	bookmark.URL = input.URL
	bookmark.Tags = input.Tags
	bookmark.Content = s.sanitizer.Sanitize(input.Content)
	bookmark.UpdatedAt = time.Now()

	if err := s.bookmarkRepo.Update(ctx, bookmark); err != nil {
		return nil, fmt.Errorf("failed to update bookmark: %w", err)
	}

	return bookmark, nil
}

// AddNote は自分のブックマークにメモを追加する。
// メモのcontentは保存前にサニタイズされる。
func (s *Service) AddNote(ctx context.Context, owner *model.User, bookmarkSlug, content string) (*model.BookmarkNote, error) {
	if content == "" {
		return nil, model.NewInvalidRequestError("contentは必須です")
	}

	bookmark, err := s.bookmarkRepo.FindBySlugAndOwner(ctx, bookmarkSlug, owner.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookmark: %w", err)
	}
	if bookmark == nil {
		return nil, model.NewBookmarkNotFoundError(bookmarkSlug)
	}

	noteSlug, err := generateSlug()
	if err != nil {
		return nil, fmt.Errorf("failed to generate slug: %w", err)
	}

	note := &model.BookmarkNote{
		ID:         uuid.New().String(),
		BookmarkID: bookmark.ID,
		Content:    s.sanitizer.Sanitize(content),
		Slug:       noteSlug,
		CreatedAt:  time.Now(),
	}

	if err := s.bookmarkRepo.AddNote(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to add note: %w", err)
	}

	return note, nil
}

// Preview はURLのページメタデータを取得する。保存は行わない。
// ブックマーク作成前のフォーム補完に使用される。
func (s *Service) Preview(ctx context.Context, rawURL string) (*preview.Metadata, error) {
	return s.fetcher.Fetch(ctx, rawURL)
}

// ImportFromFeed はRSS/Atomフィードの記事を一括でブックマークとして取り込む。
// 各記事のタイトルと概要はサニタイズしてcontentに保存する。
// 作成されたブックマークの一覧を返す。
func (s *Service) ImportFromFeed(ctx context.Context, owner *model.User, feedURL string) ([]model.Bookmark, error) {
	entries, err := s.importer.Import(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	created := make([]model.Bookmark, 0, len(entries))
	for _, entry := range entries {
		content := entry.Summary
		if content == "" {
			content = entry.Title
		}

		bookmarkSlug, err := generateSlug()
		if err != nil {
			return nil, fmt.Errorf("failed to generate slug: %w", err)
		}

		now := time.Now()
		bookmark := &model.Bookmark{
			ID:        uuid.New().String(),
			URL:       entry.Link,
			Tags:      []string{"feed-import"},
			Content:   s.sanitizer.Sanitize(content),
			Slug:      bookmarkSlug,
			OwnerID:   owner.Username,
			Status:    model.StatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := s.bookmarkRepo.Create(ctx, bookmark); err != nil {
			return nil, fmt.Errorf("failed to create bookmark: %w", err)
		}
		created = append(created, *bookmark)
	}

	s.logger.Info("feed imported",
		slog.String("owner", owner.Username),
		slog.Int("bookmarks_created", len(created)),
	)

	return created, nil
}

// generateSlug はブックマーク・メモ用のランダムなスラグを生成する。
// ランダムhexと作成時刻のUNIXタイムスタンプを組み合わせる。
func generateSlug() (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d", hex.EncodeToString(b), time.Now().Unix()), nil
}
