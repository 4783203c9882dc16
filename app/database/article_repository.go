package database

import (
	"database/sql"
	"fmt"
)

var _ ArticleRepository = (*ArticleRepo)(nil)

// ArticleRepo handles database operations for persisted articles
type ArticleRepo struct {
	db *DB
}

func NewArticleRepo(db *DB) *ArticleRepo {
	return &ArticleRepo{db: db}
}

const articleColumns = `id, title, content, COALESCE(summary, ''), url, published_at,
	hash, COALESCE(image, ''), created_at, updated_at`

func scanArticle(row *sql.Row) (*Article, error) {
	var a Article
	err := row.Scan(&a.ID, &a.Title, &a.Content, &a.Summary, &a.URL, &a.PublishedAt,
		&a.Hash, &a.Image, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan article row: %w", err)
	}
	return &a, nil
}

// SaveUnique persists a unique article inside one transaction. The hash
// uniqueness constraint is the idempotency guard: re-processing the same
// content never creates a second row, the existing article is reused. The
// link is marked processed, and an embedding reference is recorded when the
// similarity service returned a content identifier and none exists yet.
func (r *ArticleRepo) SaveUnique(article Article, linkID int64, chromaID string, similarity *float64) (int64, bool, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var articleID int64
	created := true
	err = tx.QueryRow(`
		INSERT INTO articles (title, content, summary, url, published_at, hash, image)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, NULLIF($7, ''))
		ON CONFLICT (hash) DO NOTHING
		RETURNING id
	`, article.Title, article.Content, article.Summary, article.URL,
		article.PublishedAt, article.Hash, article.Image).Scan(&articleID)
	if err == sql.ErrNoRows {
		created = false
		err = tx.QueryRow(`SELECT id FROM articles WHERE hash = $1`, article.Hash).Scan(&articleID)
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to save article: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE links
		SET parsed = TRUE, last_error = NULL, updated_at = NOW()
		WHERE id = $1
	`, linkID)
	if err != nil {
		return 0, false, fmt.Errorf("failed to mark link processed: %w", err)
	}

	if chromaID != "" {
		_, err = tx.Exec(`
			INSERT INTO article_embeddings (article_id, chroma_id, similarity)
			VALUES ($1, $2, $3)
			ON CONFLICT (article_id) DO NOTHING
		`, articleID, chromaID, similarity)
		if err != nil {
			return 0, false, fmt.Errorf("failed to save embedding reference: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("failed to commit article transaction: %w", err)
	}

	return articleID, created, nil
}

func (r *ArticleRepo) GetByID(id int64) (*Article, error) {
	row := r.db.QueryRow(`SELECT `+articleColumns+` FROM articles WHERE id = $1`, id)
	return scanArticle(row)
}

func (r *ArticleRepo) GetByHash(hash string) (*Article, error) {
	row := r.db.QueryRow(`SELECT `+articleColumns+` FROM articles WHERE hash = $1`, hash)
	return scanArticle(row)
}

func (r *ArticleRepo) List(limit, offset int) ([]Article, error) {
	rows, err := r.db.Query(`
		SELECT `+articleColumns+`
		FROM articles
		ORDER BY published_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		var a Article
		err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.Summary, &a.URL, &a.PublishedAt,
			&a.Hash, &a.Image, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		articles = append(articles, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}

	return articles, nil
}

func (r *ArticleRepo) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM articles`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return count, nil
}

// Delete removes an article; its embedding reference cascades via the
// foreign key, duplicate links pointing at it fall back to NULL.
func (r *ArticleRepo) Delete(id int64) error {
	_, err := r.db.Exec(`DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete article: %w", err)
	}
	return nil
}

func (r *ArticleRepo) PurgeAll() error {
	_, err := r.db.Exec(`DELETE FROM articles`)
	if err != nil {
		return fmt.Errorf("failed to purge articles: %w", err)
	}
	return nil
}
