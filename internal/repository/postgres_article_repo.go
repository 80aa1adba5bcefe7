package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/melly/internal/model"
)

// PostgresArticleRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresArticleRepo struct {
	db *sql.DB
}

// NewPostgresArticleRepo はPostgresArticleRepoを生成する。
func NewPostgresArticleRepo(db *sql.DB) *PostgresArticleRepo {
	return &PostgresArticleRepo{db: db}
}

// Create は記事を作成する。
func (r *PostgresArticleRepo) Create(ctx context.Context, article *model.Article) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO articles (id, title, description, image, slug, content_in_markdown, author_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		article.ID, article.Title, article.Description, article.Image, article.Slug,
		article.ContentInMarkdown, article.AuthorID, article.Status,
		article.CreatedAt, article.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert article: %w", err)
	}
	return nil
}

const articleWithAuthorQuery = `
	SELECT a.id, a.title, a.description, a.image, a.slug, a.content_in_markdown,
	       a.author_id, a.status, a.created_at, a.updated_at,
	       u.name, u.picture, u.username
	FROM articles a
	JOIN users u ON u.identifier = a.author_id`

// scanArticleWithAuthor は著者結合済みの記事1行をスキャンする。
func scanArticleWithAuthor(scan func(dest ...any) error) (*ArticleWithAuthor, error) {
	a := &ArticleWithAuthor{}
	err := scan(
		&a.ID, &a.Title, &a.Description, &a.Image, &a.Slug, &a.ContentInMarkdown,
		&a.AuthorID, &a.Status, &a.CreatedAt, &a.UpdatedAt,
		&a.AuthorName, &a.AuthorPicture, &a.AuthorUsername,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// FindBySlug は有効な記事を著者情報付きでスラグで検索する。見つからない場合はnilを返す。
func (r *PostgresArticleRepo) FindBySlug(ctx context.Context, slug string) (*ArticleWithAuthor, error) {
	row := r.db.QueryRowContext(ctx,
		articleWithAuthorQuery+` WHERE a.slug = $1 AND a.status = 'active'`,
		slug,
	)
	article, err := scanArticleWithAuthor(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find article by slug: %w", err)
	}
	return article, nil
}

// FindBySlugAndAuthor は指定著者の記事をスラグで検索する。見つからない場合はnilを返す。
func (r *PostgresArticleRepo) FindBySlugAndAuthor(ctx context.Context, slug, authorID string) (*model.Article, error) {
	a := &model.Article{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, description, image, slug, content_in_markdown, author_id, status, created_at, updated_at
		 FROM articles WHERE slug = $1 AND author_id = $2 AND status = 'active'`,
		slug, authorID,
	).Scan(
		&a.ID, &a.Title, &a.Description, &a.Image, &a.Slug, &a.ContentInMarkdown,
		&a.AuthorID, &a.Status, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find article by slug and author: %w", err)
	}
	return a, nil
}

// ListByAuthor は著者の記事一覧をcreated_at降順で返す。
func (r *PostgresArticleRepo) ListByAuthor(ctx context.Context, authorID string, skip, limit int) ([]ArticleWithAuthor, error) {
	rows, err := r.db.QueryContext(ctx,
		articleWithAuthorQuery+`
		 WHERE a.author_id = $1 AND a.status = 'active'
		 ORDER BY a.created_at DESC
		 OFFSET $2 LIMIT $3`,
		authorID, skip, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	var articles []ArticleWithAuthor
	for rows.Next() {
		article, err := scanArticleWithAuthor(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, *article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate articles: %w", err)
	}
	return articles, nil
}

// Update は記事の内容フィールドを更新する。
func (r *PostgresArticleRepo) Update(ctx context.Context, article *model.Article) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE articles
		 SET title = $2, description = $3, image = $4, content_in_markdown = $5, updated_at = now()
		 WHERE id = $1`,
		article.ID, article.Title, article.Description, article.Image, article.ContentInMarkdown,
	)
	if err != nil {
		return fmt.Errorf("failed to update article: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ArticleRepository = (*PostgresArticleRepo)(nil)
