package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/melly/internal/model"
)

// PostgresAuthSessionRepo はPostgreSQLを使用したOAuthセッションリポジトリ。
type PostgresAuthSessionRepo struct {
	db *sql.DB
}

// NewPostgresAuthSessionRepo はPostgresAuthSessionRepoを生成する。
func NewPostgresAuthSessionRepo(db *sql.DB) *PostgresAuthSessionRepo {
	return &PostgresAuthSessionRepo{db: db}
}

const authSessionColumns = `id, nonce, extra, ip, user_agent, provider, provider_user_id,
	provider_access_token, profile, exchange_code, exchange_code_used_at,
	expires_at, status, created_at, updated_at`

// scanAuthSession は1行分のセッションをスキャンする。
func scanAuthSession(row *sql.Row) (*model.AuthSession, error) {
	s := &model.AuthSession{}
	var providerUserID, accessToken, profile, exchangeCode sql.NullString
	var usedAt sql.NullTime
	err := row.Scan(
		&s.ID, &s.Nonce, &s.Extra, &s.IP, &s.UserAgent, &s.Provider,
		&providerUserID, &accessToken, &profile, &exchangeCode, &usedAt,
		&s.ExpiresAt, &s.Status, &s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.ProviderUserID = providerUserID.String
	s.ProviderAccessToken = accessToken.String
	s.Profile = profile.String
	s.ExchangeCode = exchangeCode.String
	if usedAt.Valid {
		t := usedAt.Time
		s.ExchangeCodeUsedAt = &t
	}
	return s, nil
}

// Create はセッションを作成する。
func (r *PostgresAuthSessionRepo) Create(ctx context.Context, session *model.AuthSession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auth_sessions (id, nonce, extra, ip, user_agent, provider, expires_at, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		session.ID, session.Nonce, session.Extra, session.IP, session.UserAgent,
		session.Provider, session.ExpiresAt, session.Status, session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create auth session: %w", err)
	}
	return nil
}

// FindByNonce は有効（未削除・未期限切れ）なセッションをnonceで検索する。
// 見つからない場合はnilを返す。
func (r *PostgresAuthSessionRepo) FindByNonce(ctx context.Context, nonce string) (*model.AuthSession, error) {
	session, err := scanAuthSession(r.db.QueryRowContext(ctx,
		`SELECT `+authSessionColumns+`
		 FROM auth_sessions
		 WHERE nonce = $1 AND status = 'active' AND expires_at > now()`,
		nonce,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find auth session by nonce: %w", err)
	}
	return session, nil
}

// UpdateProviderInfo はプロバイダー交換の結果をセッションに記録する。
// 後続の処理が失敗しても途中経過は保持される。
func (r *PostgresAuthSessionRepo) UpdateProviderInfo(ctx context.Context, id, providerUserID, accessToken, profile string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE auth_sessions
		 SET provider_user_id = $2, provider_access_token = $3, profile = $4, updated_at = now()
		 WHERE id = $1`,
		id, providerUserID, accessToken, profile,
	)
	if err != nil {
		return fmt.Errorf("failed to update provider info: %w", err)
	}
	return nil
}

// SetExchangeCode は1回限りの交換コードをセッションに記録する。
func (r *PostgresAuthSessionRepo) SetExchangeCode(ctx context.Context, id, code string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE auth_sessions SET exchange_code = $2, updated_at = now() WHERE id = $1`,
		id, code,
	)
	if err != nil {
		return fmt.Errorf("failed to set exchange code: %w", err)
	}
	return nil
}

// ConsumeExchangeCode は交換コードを消費し、対応するセッションを返す。
// UPDATE ... RETURNING で未使用の場合のみアトミックに使用済みへ更新するため、
// 同一コードで並行にリクエストされても成功するのは1件のみ。
// 不明・期限切れ・使用済みのいずれの場合もnilを返す。
func (r *PostgresAuthSessionRepo) ConsumeExchangeCode(ctx context.Context, code string) (*model.AuthSession, error) {
	session, err := scanAuthSession(r.db.QueryRowContext(ctx,
		`UPDATE auth_sessions
		 SET exchange_code_used_at = now(), updated_at = now()
		 WHERE exchange_code = $1
		   AND exchange_code_used_at IS NULL
		   AND status = 'active'
		   AND expires_at > now()
		 RETURNING `+authSessionColumns,
		code,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to consume exchange code: %w", err)
	}
	return session, nil
}

// compile-time interface check
var _ AuthSessionRepository = (*PostgresAuthSessionRepo)(nil)
