package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/melly/internal/model"
)

// PostgresCollectionRepo はPostgreSQLを使用したコレクションリポジトリ。
type PostgresCollectionRepo struct {
	db *sql.DB
}

// NewPostgresCollectionRepo はPostgresCollectionRepoを生成する。
func NewPostgresCollectionRepo(db *sql.DB) *PostgresCollectionRepo {
	return &PostgresCollectionRepo{db: db}
}

// Create はコレクションを作成する。
func (r *PostgresCollectionRepo) Create(ctx context.Context, collection *model.Collection) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO collections (id, title, description, slug, owner_id, items, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		collection.ID, collection.Title, collection.Description, collection.Slug,
		collection.OwnerID, pq.Array(collection.Items), collection.Status,
		collection.CreatedAt, collection.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert collection: %w", err)
	}
	return nil
}

const collectionWithOwnerQuery = `
	SELECT c.id, c.title, c.description, c.slug, c.owner_id, c.items,
	       c.status, c.created_at, c.updated_at,
	       u.name, u.picture
	FROM collections c
	JOIN users u ON u.username = c.owner_id`

// scanCollectionWithOwner は所有者結合済みのコレクション1行をスキャンする。
func scanCollectionWithOwner(scan func(dest ...any) error) (*CollectionWithOwner, error) {
	c := &CollectionWithOwner{}
	err := scan(
		&c.ID, &c.Title, &c.Description, &c.Slug, &c.OwnerID, pq.Array(&c.Items),
		&c.Status, &c.CreatedAt, &c.UpdatedAt,
		&c.OwnerName, &c.OwnerPicture,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// FindBySlug は有効なコレクションを所有者情報付きでスラグで検索する。
// ownerIDが空でない場合は所有者も一致条件に含める。見つからない場合はnilを返す。
func (r *PostgresCollectionRepo) FindBySlug(ctx context.Context, slug, ownerID string) (*CollectionWithOwner, error) {
	row := r.db.QueryRowContext(ctx,
		collectionWithOwnerQuery+`
		 WHERE c.slug = $1 AND c.status = 'active' AND ($2 = '' OR c.owner_id = $2)`,
		slug, ownerID,
	)
	collection, err := scanCollectionWithOwner(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find collection by slug: %w", err)
	}
	return collection, nil
}

// ListByOwner は所有者のコレクション一覧をcreated_at降順で返す。
func (r *PostgresCollectionRepo) ListByOwner(ctx context.Context, ownerID string, skip, limit int) ([]CollectionWithOwner, error) {
	rows, err := r.db.QueryContext(ctx,
		collectionWithOwnerQuery+`
		 WHERE c.owner_id = $1 AND c.status = 'active'
		 ORDER BY c.created_at DESC
		 OFFSET $2 LIMIT $3`,
		ownerID, skip, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var collections []CollectionWithOwner
	for rows.Next() {
		collection, err := scanCollectionWithOwner(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		collections = append(collections, *collection)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate collections: %w", err)
	}
	return collections, nil
}

// UpdateTitle はコレクションのタイトルを更新する。
func (r *PostgresCollectionRepo) UpdateTitle(ctx context.Context, id, title string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE collections SET title = $2, updated_at = now() WHERE id = $1`,
		id, title,
	)
	if err != nil {
		return fmt.Errorf("failed to update collection title: %w", err)
	}
	return nil
}

// AddItem はコレクションにブックマークのスラグを追加する。
// array_appendを使い、読み出しと書き込みの間の競合で要素を失わないようにする。
func (r *PostgresCollectionRepo) AddItem(ctx context.Context, id, bookmarkSlug string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE collections
		 SET items = array_append(items, $2), updated_at = now()
		 WHERE id = $1 AND NOT ($2 = ANY(items))`,
		id, bookmarkSlug,
	)
	if err != nil {
		return fmt.Errorf("failed to add item to collection: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CollectionRepository = (*PostgresCollectionRepo)(nil)
