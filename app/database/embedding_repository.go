package database

import (
	"database/sql"
	"fmt"
)

var _ EmbeddingRepository = (*EmbeddingRepo)(nil)

// EmbeddingRepo handles database operations for embedding references
type EmbeddingRepo struct {
	db *DB
}

func NewEmbeddingRepo(db *DB) *EmbeddingRepo {
	return &EmbeddingRepo{db: db}
}

// FindArticleIDByChromaID resolves the article that owns a content
// identifier. The caller is expected to pass the base identifier, with any
// chunk suffix already stripped.
func (r *EmbeddingRepo) FindArticleIDByChromaID(chromaID string) (*int64, error) {
	var articleID int64
	err := r.db.QueryRow(`SELECT article_id FROM article_embeddings WHERE chroma_id = $1`, chromaID).Scan(&articleID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find article by chroma id: %w", err)
	}
	return &articleID, nil
}

func (r *EmbeddingRepo) GetByArticleID(articleID int64) (*Embedding, error) {
	var e Embedding
	err := r.db.QueryRow(`
		SELECT id, article_id, chroma_id, similarity, created_at
		FROM article_embeddings
		WHERE article_id = $1
	`, articleID).Scan(&e.ID, &e.ArticleID, &e.ChromaID, &e.Similarity, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get embedding by article id: %w", err)
	}
	return &e, nil
}

func (r *EmbeddingRepo) AllChromaIDs() ([]string, error) {
	rows, err := r.db.Query(`SELECT chroma_id FROM article_embeddings`)
	if err != nil {
		return nil, fmt.Errorf("failed to list chroma ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan chroma id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chroma ids: %w", err)
	}

	return ids, nil
}
