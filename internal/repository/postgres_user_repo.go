package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/melly/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const uniqueViolation = "23505"

// isUniqueViolation はerrが一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, email, name, picture, username, provider, provider_user_ids, identifier, status, created_at, updated_at`

// scanUser は1行分のユーザーをスキャンする。
func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.Name, &user.Picture, &user.Username,
		&user.Provider, pq.Array(&user.ProviderUserIDs), &user.Identifier,
		&user.Status, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Create はユーザーを作成する。username重複はAPIError(USERNAME_TAKEN)を返す。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, picture, username, provider, provider_user_ids, identifier, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		user.ID, user.Email, user.Name, user.Picture, user.Username,
		user.Provider, pq.Array(user.ProviderUserIDs), user.Identifier,
		user.Status, user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return model.NewUsernameTakenError(user.Username)
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// FindByEmail はメールアドレスでユーザーを検索する。
// ソフトデリート済みユーザーも返す（再有効化の判定に使うため）。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// FindActiveByIdentifier は公開識別子で有効なユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindActiveByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE identifier = $1 AND status = 'active'`,
		identifier,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by identifier: %w", err)
	}
	return user, nil
}

// FindActiveByProviderUserID はプロバイダーのユーザーIDで有効なユーザーを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindActiveByProviderUserID(ctx context.Context, providerUserID string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE $1 = ANY(provider_user_ids) AND status = 'active'`,
		providerUserID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by provider user ID: %w", err)
	}
	return user, nil
}

// Reactivate はソフトデリート済みユーザーを有効状態に戻す。
func (r *PostgresUserRepo) Reactivate(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET status = 'active', updated_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to reactivate user: %w", err)
	}
	return nil
}

// UpdateUsername はユーザー名を更新する。username重複はAPIError(USERNAME_TAKEN)を返す。
func (r *PostgresUserRepo) UpdateUsername(ctx context.Context, id, username string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET username = $2, updated_at = now() WHERE id = $1`,
		id, username,
	)
	if isUniqueViolation(err) {
		return model.NewUsernameTakenError(username)
	}
	if err != nil {
		return fmt.Errorf("failed to update username: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
