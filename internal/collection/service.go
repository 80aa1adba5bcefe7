// Package collection は共有可能なブックマークコレクションのドメインロジックを提供する。
package collection

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/melly/internal/model"
	"github.com/hitoshi/melly/internal/repository"
)

// CreateInput はコレクション作成の入力。
type CreateInput struct {
	Title       string
	Description string
}

// Service はコレクションに関するビジネスロジックを提供する。
type Service struct {
	collectionRepo repository.CollectionRepository
	bookmarkRepo   repository.BookmarkRepository
	logger         *slog.Logger
}

// NewService はServiceを生成する。
func NewService(collectionRepo repository.CollectionRepository, bookmarkRepo repository.BookmarkRepository, logger *slog.Logger) *Service {
	return &Service{
		collectionRepo: collectionRepo,
		bookmarkRepo:   bookmarkRepo,
		logger:         logger,
	}
}

// Create はコレクションを作成する。
func (s *Service) Create(ctx context.Context, owner *model.User, input CreateInput) (*model.Collection, error) {
	if input.Title == "" {
		return nil, model.NewInvalidRequestError("titleは必須です")
	}

	collectionSlug, err := generateSlug()
	if err != nil {
		return nil, fmt.Errorf("failed to generate slug: %w", err)
	}

	now := time.Now()
	collection := &model.Collection{
		ID:          uuid.New().String(),
		Title:       input.Title,
		Description: input.Description,
		Slug:        collectionSlug,
		OwnerID:     owner.Username,
		Items:       []string{},
		Status:      model.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.collectionRepo.Create(ctx, collection); err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	s.logger.Info("collection created",
		slog.String("collection_id", collection.ID),
		slog.String("slug", collection.Slug),
	)

	return collection, nil
}

// Get は自分のコレクションを所有者情報付きでスラグで取得する。
// 見つからない場合はAPIError(COLLECTION_NOT_FOUND)を返す。
func (s *Service) Get(ctx context.Context, owner *model.User, collectionSlug string) (*repository.CollectionWithOwner, error) {
	collection, err := s.collectionRepo.FindBySlug(ctx, collectionSlug, owner.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to find collection: %w", err)
	}
	if collection == nil {
		return nil, model.NewCollectionNotFoundError(collectionSlug)
	}
	return collection, nil
}

// GetShared は所有者を問わずコレクションをスラグで取得する。
// スラグを知っている人は誰でも閲覧できる（共有リンク）。
func (s *Service) GetShared(ctx context.Context, collectionSlug string) (*repository.CollectionWithOwner, error) {
	collection, err := s.collectionRepo.FindBySlug(ctx, collectionSlug, "")
	if err != nil {
		return nil, fmt.Errorf("failed to find collection: %w", err)
	}
	if collection == nil {
		return nil, model.NewCollectionNotFoundError(collectionSlug)
	}
	return collection, nil
}

// List は所有者のコレクション一覧をcreated_at降順で返す。
func (s *Service) List(ctx context.Context, owner *model.User, skip, limit int) ([]repository.CollectionWithOwner, error) {
	collections, err := s.collectionRepo.ListByOwner(ctx, owner.Username, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return collections, nil
}

// UpdateTitle は自分のコレクションのタイトルを変更する。
func (s *Service) UpdateTitle(ctx context.Context, owner *model.User, collectionSlug, title string) (*repository.CollectionWithOwner, error) {
	if title == "" {
		return nil, model.NewInvalidRequestError("titleは必須です")
	}

	collection, err := s.Get(ctx, owner, collectionSlug)
	if err != nil {
		return nil, err
	}

	if err := s.collectionRepo.UpdateTitle(ctx, collection.ID, title); err != nil {
		return nil, fmt.Errorf("failed to update collection title: %w", err)
	}

	collection.Title = title
	return collection, nil
}

// AddItem は自分のコレクションにブックマークを追加する。
// 存在しないブックマークはAPIError(BOOKMARK_NOT_FOUND)、
// 既に追加済みのブックマークはAPIError(DUPLICATE_ITEM)を返す。
func (s *Service) AddItem(ctx context.Context, owner *model.User, collectionSlug, bookmarkSlug string) (*repository.CollectionWithOwner, error) {
	collection, err := s.Get(ctx, owner, collectionSlug)
	if err != nil {
		return nil, err
	}

	for _, item := range collection.Items {
		if item == bookmarkSlug {
			return nil, model.NewDuplicateItemError(bookmarkSlug)
		}
	}

	bookmark, err := s.bookmarkRepo.FindBySlug(ctx, bookmarkSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookmark: %w", err)
	}
	if bookmark == nil {
		return nil, model.NewBookmarkNotFoundError(bookmarkSlug)
	}

	if err := s.collectionRepo.AddItem(ctx, collection.ID, bookmarkSlug); err != nil {
		return nil, fmt.Errorf("failed to add item: %w", err)
	}

	collection.Items = append(collection.Items, bookmarkSlug)
	return collection, nil
}

// generateSlug はコレクション用のランダムなスラグを生成する。
func generateSlug() (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d", hex.EncodeToString(b), time.Now().Unix()), nil
}
