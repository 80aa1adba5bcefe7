package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/melly/internal/model"
)

// PostgresBookmarkRepo はPostgreSQLを使用したブックマークリポジトリ。
type PostgresBookmarkRepo struct {
	db *sql.DB
}

// NewPostgresBookmarkRepo はPostgresBookmarkRepoを生成する。
func NewPostgresBookmarkRepo(db *sql.DB) *PostgresBookmarkRepo {
	return &PostgresBookmarkRepo{db: db}
}

// Create はブックマークを作成する。
func (r *PostgresBookmarkRepo) Create(ctx context.Context, bookmark *model.Bookmark) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bookmarks (id, url, tags, content, slug, owner_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		bookmark.ID, bookmark.URL, pq.Array(bookmark.Tags), bookmark.Content,
		bookmark.Slug, bookmark.OwnerID, bookmark.Status,
		bookmark.CreatedAt, bookmark.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bookmark: %w", err)
	}
	return nil
}

const bookmarkWithOwnerQuery = `
	SELECT b.id, b.url, b.tags, b.content, b.slug, b.owner_id,
	       b.status, b.created_at, b.updated_at,
	       u.name, u.picture
	FROM bookmarks b
	JOIN users u ON u.username = b.owner_id`

// scanBookmarkWithOwner は所有者結合済みのブックマーク1行をスキャンする。
func scanBookmarkWithOwner(scan func(dest ...any) error) (*BookmarkWithOwner, error) {
	b := &BookmarkWithOwner{}
	err := scan(
		&b.ID, &b.URL, pq.Array(&b.Tags), &b.Content, &b.Slug, &b.OwnerID,
		&b.Status, &b.CreatedAt, &b.UpdatedAt,
		&b.OwnerName, &b.OwnerPicture,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// FindBySlug は有効なブックマークを所有者情報とメモ付きでスラグで検索する。
// 見つからない場合はnilを返す。
func (r *PostgresBookmarkRepo) FindBySlug(ctx context.Context, slug string) (*BookmarkWithOwner, error) {
	row := r.db.QueryRowContext(ctx,
		bookmarkWithOwnerQuery+` WHERE b.slug = $1 AND b.status = 'active'`,
		slug,
	)
	bookmark, err := scanBookmarkWithOwner(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find bookmark by slug: %w", err)
	}

	notes, err := r.listNotes(ctx, bookmark.ID)
	if err != nil {
		return nil, err
	}
	bookmark.Notes = notes
	return bookmark, nil
}

// FindBySlugAndOwner は指定所有者のブックマークをスラグで検索する。見つからない場合はnilを返す。
func (r *PostgresBookmarkRepo) FindBySlugAndOwner(ctx context.Context, slug, ownerID string) (*model.Bookmark, error) {
	b := &model.Bookmark{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, url, tags, content, slug, owner_id, status, created_at, updated_at
		 FROM bookmarks WHERE slug = $1 AND owner_id = $2 AND status = 'active'`,
		slug, ownerID,
	).Scan(
		&b.ID, &b.URL, pq.Array(&b.Tags), &b.Content, &b.Slug, &b.OwnerID,
		&b.Status, &b.CreatedAt, &b.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find bookmark by slug and owner: %w", err)
	}
	return b, nil
}

// ListByOwner は所有者のブックマーク一覧をcreated_at降順で返す。
// 一覧ではメモは取得しない（詳細取得時のみ）。
func (r *PostgresBookmarkRepo) ListByOwner(ctx context.Context, ownerID string, skip, limit int) ([]BookmarkWithOwner, error) {
	rows, err := r.db.QueryContext(ctx,
		bookmarkWithOwnerQuery+`
		 WHERE b.owner_id = $1 AND b.status = 'active'
		 ORDER BY b.created_at DESC
		 OFFSET $2 LIMIT $3`,
		ownerID, skip, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	defer rows.Close()

	var bookmarks []BookmarkWithOwner
	for rows.Next() {
		bookmark, err := scanBookmarkWithOwner(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		bookmarks = append(bookmarks, *bookmark)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookmarks: %w", err)
	}
	return bookmarks, nil
}

// Update はブックマークのurl、tags、contentを更新する。
func (r *PostgresBookmarkRepo) Update(ctx context.Context, bookmark *model.Bookmark) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE bookmarks SET url = $2, tags = $3, content = $4, updated_at = now() WHERE id = $1`,
		bookmark.ID, bookmark.URL, pq.Array(bookmark.Tags), bookmark.Content,
	)
	if err != nil {
		return fmt.Errorf("failed to update bookmark: %w", err)
	}
	return nil
}

// AddNote はブックマークにメモを追加する。
func (r *PostgresBookmarkRepo) AddNote(ctx context.Context, note *model.BookmarkNote) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bookmark_notes (id, bookmark_id, content, slug, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		note.ID, note.BookmarkID, note.Content, note.Slug, note.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bookmark note: %w", err)
	}
	return nil
}

// listNotes はブックマークのメモ一覧を作成日時昇順で返す。
func (r *PostgresBookmarkRepo) listNotes(ctx context.Context, bookmarkID string) ([]model.BookmarkNote, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, bookmark_id, content, slug, created_at
		 FROM bookmark_notes WHERE bookmark_id = $1 ORDER BY created_at ASC`,
		bookmarkID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmark notes: %w", err)
	}
	defer rows.Close()

	var notes []model.BookmarkNote
	for rows.Next() {
		var note model.BookmarkNote
		if err := rows.Scan(&note.ID, &note.BookmarkID, &note.Content, &note.Slug, &note.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bookmark note: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookmark notes: %w", err)
	}
	return notes, nil
}

// compile-time interface check
var _ BookmarkRepository = (*PostgresBookmarkRepo)(nil)
