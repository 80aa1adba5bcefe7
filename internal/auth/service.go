// Package auth はOAuth認証フローとトークン交換のビジネスロジックを提供する。
//
// ハンドシェイクは3段階で進行する:
//  1. ログインURL発行: nonceを持つセッションを作成し、プロバイダーの認証URLを返す
//  2. コールバック: nonceでセッションを解決し、認可コードをプロバイダーで交換、
//     アカウントを解決して1回限りの交換コードを発行、フロントエンドへリダイレクト
//  3. トークン交換: 交換コードを消費してアクセス/リフレッシュトークンを発行
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/melly/internal/model"
	"github.com/hitoshi/melly/internal/repository"
)

// ProviderIdentity はOAuthプロバイダーから取得した検証済みの外部アイデンティティを表す。
type ProviderIdentity struct {
	Provider       string // "google" 等
	ProviderUserID string
	Email          string
	Name           string
	Picture        string
	AccessToken    string // プロバイダーのアクセストークン
	RawProfile     string // ユーザー情報エンドポイントの生レスポンス（JSON）
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// 将来的に複数IdP（Google, GitHub等）に対応するための抽象化。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// Authorize は認可コードをトークンに交換し、ユーザー情報を取得する。
	Authorize(ctx context.Context, code string) (*ProviderIdentity, error)
}

// AccountResolver は外部アイデンティティをローカルユーザーに解決するインターフェース。
type AccountResolver interface {
	// ResolveOrCreate はメールアドレスで既存ユーザーを検索し、
	// 存在すれば（ソフトデリート済みなら再有効化して）返し、なければ新規作成する。
	ResolveOrCreate(ctx context.Context, identity *ProviderIdentity) (*model.User, error)
}

// TokenIssuer は署名付きトークンの発行・検証のインターフェース。
type TokenIssuer interface {
	// IssueAccessToken はユーザーのアクセストークンを発行する。
	IssueAccessToken(user *model.User) (string, error)
	// IssueRefreshToken はアクセストークンに紐づくリフレッシュトークンを発行する。
	IssueRefreshToken(accessToken string) (string, error)
	// VerifyRefreshToken はリフレッシュトークンを検証し、subjectの識別子を返す。
	VerifyRefreshToken(tokenString string) (string, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	// SessionTTL はハンドシェイクセッションの有効期間。
	// ログインURL発行からこの時間を過ぎたnonce・交換コードは無効になる。
	SessionTTL time.Duration
	// FEBaseURL はコールバック後のリダイレクト先フロントエンドのベースURL。
	FEBaseURL string
}

// Service はOAuthハンドシェイク全体を調整する。
type Service struct {
	oauth       OAuthProvider
	sessionRepo repository.AuthSessionRepository
	userRepo    repository.UserRepository
	accounts    AccountResolver
	issuer      TokenIssuer
	config      ServiceConfig
	logger      *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	sessionRepo repository.AuthSessionRepository,
	userRepo repository.UserRepository,
	accounts AccountResolver,
	issuer TokenIssuer,
	config ServiceConfig,
	logger *slog.Logger,
) *Service {
	return &Service{
		oauth:       oauth,
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
		accounts:    accounts,
		issuer:      issuer,
		config:      config,
		logger:      logger,
	}
}

// CreateLoginURL はnonce付きセッションを作成し、プロバイダーの認証URLを返す。
// extraはクライアント指定の不透明なJSON文字列で、コールバック後のリダイレクトに
// そのまま付与される。JSONとして解釈できない場合はAPIError(INVALID_EXTRA)を返す。
func (s *Service) CreateLoginURL(ctx context.Context, extra, ip, userAgent string) (string, error) {
	if extra != "" && !json.Valid([]byte(extra)) {
		return "", model.NewInvalidExtraError()
	}

	nonce, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := time.Now()
	session := &model.AuthSession{
		ID:        uuid.New().String(),
		Nonce:     nonce,
		Extra:     extra,
		IP:        ip,
		UserAgent: userAgent,
		Provider:  "google",
		ExpiresAt: now.Add(s.config.SessionTTL),
		Status:    model.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return "", fmt.Errorf("failed to create auth session: %w", err)
	}

	s.logger.Info("auth session created",
		slog.String("session_id", session.ID),
		slog.String("provider", session.Provider),
	)

	return s.oauth.GetLoginURL(nonce), nil
}

// HandleCallback はプロバイダーからのコールバックを処理する。
// 1. stateパラメータ（nonce）でセッションを解決する。不明・期限切れの場合はAPIError(INVALID_SESSION)を返す
// 2. 認可コードをプロバイダーで交換する。上流エラーはAPIError(PROVIDER_ERROR)でそのまま伝搬する
// 3. プロバイダー情報をセッションに記録（後続が失敗しても途中経過は保持される）
// 4. アカウントを解決または作成
// 5. 1回限りの交換コードを発行し、フロントエンドへのリダイレクトURLを返す
func (s *Service) HandleCallback(ctx context.Context, state, code string) (string, error) {
	session, err := s.sessionRepo.FindByNonce(ctx, state)
	if err != nil {
		return "", fmt.Errorf("failed to find auth session: %w", err)
	}
	if session == nil {
		return "", model.NewInvalidSessionError()
	}

	identity, err := s.oauth.Authorize(ctx, code)
	if err != nil {
		return "", err
	}

	if err := s.sessionRepo.UpdateProviderInfo(ctx, session.ID, identity.ProviderUserID, identity.AccessToken, identity.RawProfile); err != nil {
		return "", fmt.Errorf("failed to update provider info: %w", err)
	}

	user, err := s.accounts.ResolveOrCreate(ctx, identity)
	if err != nil {
		return "", err
	}

	exchangeCode, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate exchange code: %w", err)
	}
	if err := s.sessionRepo.SetExchangeCode(ctx, session.ID, exchangeCode); err != nil {
		return "", fmt.Errorf("failed to set exchange code: %w", err)
	}

	s.logger.Info("oauth callback completed",
		slog.String("session_id", session.ID),
		slog.String("user_id", user.ID),
		slog.String("provider", identity.Provider),
	)

	return s.buildRedirectURL(exchangeCode, session.Extra), nil
}

// ExchangeCode は交換コードを消費してアクセス/リフレッシュトークンの組を発行する。
// コードが不明・期限切れ・使用済みの場合はAPIError(INVALID_SESSION)、
// セッションのプロバイダーユーザーIDが有効なアカウントに解決できない場合は
// APIError(INVALID_USER)を返す。
func (s *Service) ExchangeCode(ctx context.Context, code string) (*model.TokenPair, error) {
	session, err := s.sessionRepo.ConsumeExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to consume exchange code: %w", err)
	}
	if session == nil {
		return nil, model.NewInvalidSessionError()
	}

	user, err := s.userRepo.FindActiveByProviderUserID(ctx, session.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidUserError()
	}

	pair, err := s.issueTokenPair(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("token pair issued",
		slog.String("session_id", session.ID),
		slog.String("user_id", user.ID),
	)

	return pair, nil
}

// RefreshToken はリフレッシュトークンを検証して新しいアクセストークンを発行する。
// リフレッシュトークンはローテーションせず、元のトークンをそのまま返す。
// 検証失敗はAPIError(INVALID_TOKEN)、subjectが有効なアカウントに
// 解決できない場合はAPIError(INVALID_USER)を返す。
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	identifier, err := s.issuer.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindActiveByIdentifier(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidUserError()
	}

	accessToken, err := s.issuer.IssueAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	return &model.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// issueTokenPair はユーザーのアクセス/リフレッシュトークンの組を発行する。
func (s *Service) issueTokenPair(user *model.User) (*model.TokenPair, error) {
	accessToken, err := s.issuer.IssueAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	refreshToken, err := s.issuer.IssueRefreshToken(accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}
	return &model.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// buildRedirectURL は交換コードとextraを付与したフロントエンドへの
// リダイレクトURLを構築する。
func (s *Service) buildRedirectURL(code, extra string) string {
	params := url.Values{"code": {code}}
	if extra != "" {
		params.Set("extra", extra)
	}
	return s.config.FEBaseURL + "/auth/callback?" + params.Encode()
}

// generateToken はnonce・交換コード用の暗号的に安全な高エントロピートークンを生成する。
func generateToken() (string, error) {
	b := make([]byte, 55)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
