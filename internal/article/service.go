// Package article は記事のドメインロジックを提供する。
package article

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/hitoshi/melly/internal/model"
	"github.com/hitoshi/melly/internal/repository"
	"github.com/hitoshi/melly/internal/security"
)

// CreateInput は記事作成の入力。
type CreateInput struct {
	Title             string
	Description       string
	Image             string
	ContentInMarkdown string
}

// Service は記事に関するビジネスロジックを提供する。
type Service struct {
	articleRepo repository.ArticleRepository
	sanitizer   security.ContentSanitizerService
	logger      *slog.Logger
}

// NewService はServiceを生成する。
func NewService(articleRepo repository.ArticleRepository, sanitizer security.ContentSanitizerService, logger *slog.Logger) *Service {
	return &Service{
		articleRepo: articleRepo,
		sanitizer:   sanitizer,
		logger:      logger,
	}
}

// Create は記事を作成する。
// スラグはタイトルのスラグ化 + 作成時刻のUNIXタイムスタンプで一意にする。
func (s *Service) Create(ctx context.Context, author *model.User, input CreateInput) (*model.Article, error) {
	if input.Title == "" {
		return nil, model.NewInvalidRequestError("titleは必須です")
	}

	now := time.Now()
	article := &model.Article{
		ID:                uuid.New().String(),
		Title:             input.Title,
		Description:       s.sanitizer.Sanitize(input.Description),
		Image:             input.Image,
		Slug:              fmt.Sprintf("%s-%d", slug.Make(input.Title), now.Unix()),
		ContentInMarkdown: input.ContentInMarkdown,
		AuthorID:          author.Identifier,
		Status:            model.StatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.articleRepo.Create(ctx, article); err != nil {
		return nil, fmt.Errorf("failed to create article: %w", err)
	}

	s.logger.Info("article created",
		slog.String("article_id", article.ID),
		slog.String("slug", article.Slug),
	)

	return article, nil
}

// Get は記事を著者情報付きでスラグで取得する。誰でも閲覧できる。
// 見つからない場合はAPIError(ARTICLE_NOT_FOUND)を返す。
func (s *Service) Get(ctx context.Context, articleSlug string) (*repository.ArticleWithAuthor, error) {
	article, err := s.articleRepo.FindBySlug(ctx, articleSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to find article: %w", err)
	}
	if article == nil {
		return nil, model.NewArticleNotFoundError(articleSlug)
	}
	return article, nil
}

// List は著者の記事一覧をcreated_at降順で返す。
func (s *Service) List(ctx context.Context, author *model.User, skip, limit int) ([]repository.ArticleWithAuthor, error) {
	articles, err := s.articleRepo.ListByAuthor(ctx, author.Identifier, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	return articles, nil
}

// Update は自分の記事の内容を更新する。スラグは変更されない。
// 他人の記事や存在しないスラグの場合はAPIError(ARTICLE_NOT_FOUND)を返す。
func (s *Service) Update(ctx context.Context, author *model.User, articleSlug string, input CreateInput) (*model.Article, error) {
	if input.Title == "" {
		return nil, model.NewInvalidRequestError("titleは必須です")
	}

	article, err := s.articleRepo.FindBySlugAndAuthor(ctx, articleSlug, author.Identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to find article: %w", err)
	}
	if article == nil {
		return nil, model.NewArticleNotFoundError(articleSlug)
	}

	article.Title = input.Title
	article.Description = s.sanitizer.Sanitize(input.Description)
	article.Image = input.Image
	article.ContentInMarkdown = input.ContentInMarkdown
	article.UpdatedAt = time.Now()

	if err := s.articleRepo.Update(ctx, article); err != nil {
		return nil, fmt.Errorf("failed to update article: %w", err)
	}

	return article, nil
}
