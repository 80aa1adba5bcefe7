// Package account はユーザーアカウントの解決・作成・更新のドメインロジックを提供する。
package account

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/hitoshi/melly/internal/auth"
	"github.com/hitoshi/melly/internal/model"
	"github.com/hitoshi/melly/internal/repository"
)

// Service はアカウントに関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, logger *slog.Logger) *Service {
	return &Service{
		userRepo: userRepo,
		logger:   logger,
	}
}

// ResolveOrCreate は検証済みの外部アイデンティティをローカルユーザーに解決する。
// メールアドレスが正規の照合キー。
//   - 有効なユーザーが存在する場合: そのまま返す。プロバイダーのプロフィールで
//     ローカルの名前・画像を上書きしない（ユーザーが編集した値を保護する）
//   - ソフトデリート済みユーザーが存在する場合: 再有効化して返す（複製は作らない）
//   - 存在しない場合: プロバイダーのプロフィールから新規作成する
func (s *Service) ResolveOrCreate(ctx context.Context, identity *auth.ProviderIdentity) (*model.User, error) {
	existing, err := s.userRepo.FindByEmail(ctx, identity.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	if existing != nil {
		if existing.IsDeleted() {
			if err := s.userRepo.Reactivate(ctx, existing.ID); err != nil {
				return nil, fmt.Errorf("failed to reactivate user: %w", err)
			}
			existing.Status = model.StatusActive
			s.logger.Info("user reactivated",
				slog.String("user_id", existing.ID),
			)
		}
		return existing, nil
	}

	username, err := generateUsername(identity.Name, identity.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate username: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:              uuid.New().String(),
		Email:           identity.Email,
		Name:            identity.Name,
		Picture:         identity.Picture,
		Username:        username,
		Provider:        identity.Provider,
		ProviderUserIDs: []string{identity.ProviderUserID},
		Identifier:      uuid.New().String(),
		Status:          model.StatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("new user created",
		slog.String("user_id", user.ID),
		slog.String("provider", identity.Provider),
	)

	return user, nil
}

// GetByIdentifier は公開識別子で有効なユーザーを取得する。
// 見つからない場合はAPIError(INVALID_USER)を返す。
func (s *Service) GetByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	user, err := s.userRepo.FindActiveByIdentifier(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidUserError()
	}
	return user, nil
}

// UpdateUsername はユーザー名を変更する。
// 別アカウントが使用中のユーザー名を指定した場合はAPIError(USERNAME_TAKEN)を返し、
// 元のユーザー名は変更されない。
func (s *Service) UpdateUsername(ctx context.Context, identifier, username string) (*model.User, error) {
	if username == "" {
		return nil, model.NewInvalidRequestError("usernameは必須です")
	}

	user, err := s.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if user.Username == username {
		// 自分自身のユーザー名への変更は何もしない
		return user, nil
	}

	if err := s.userRepo.UpdateUsername(ctx, user.ID, username); err != nil {
		return nil, err
	}

	user.Username = username
	s.logger.Info("username updated",
		slog.String("user_id", user.ID),
	)
	return user, nil
}

// generateUsername は表示名とプロバイダーユーザーIDからユニークなユーザー名を生成する。
// 末尾にランダムなhexサフィックスを付けて衝突確率を下げる。
// 最終的な一意性はストレージのユニーク制約が保証する。
func generateUsername(name, providerUserID string) (string, error) {
	b := make([]byte, 5)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	suffix := hex.EncodeToString(b)
	return slug.Make(fmt.Sprintf("%s-%s-%s", name, providerUserID, suffix)), nil
}

// compile-time interface check
var _ auth.AccountResolver = (*Service)(nil)
