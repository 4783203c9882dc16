package database

import (
	"database/sql"
	"fmt"
)

var _ SourceRepository = (*SourceRepo)(nil)

// SourceRepo handles database operations for crawl sources
type SourceRepo struct {
	db *DB
}

func NewSourceRepo(db *DB) *SourceRepo {
	return &SourceRepo{db: db}
}

const sourceColumns = `id, url, COALESCE(rss_url, ''), full_rss_content, need_browser, is_active, created_at, updated_at`

func (r *SourceRepo) scanSource(row *sql.Row) (*Source, error) {
	var s Source
	err := row.Scan(&s.ID, &s.URL, &s.RSSURL, &s.FullRSSContent, &s.NeedBrowser,
		&s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan source row: %w", err)
	}
	return &s, nil
}

func (r *SourceRepo) GetActive() (*Source, error) {
	row := r.db.QueryRow(`SELECT ` + sourceColumns + ` FROM sources WHERE is_active = TRUE ORDER BY id LIMIT 1`)
	return r.scanSource(row)
}

func (r *SourceRepo) GetFirst() (*Source, error) {
	row := r.db.QueryRow(`SELECT ` + sourceColumns + ` FROM sources ORDER BY id LIMIT 1`)
	return r.scanSource(row)
}

func (r *SourceRepo) GetNextAfter(id int64) (*Source, error) {
	row := r.db.QueryRow(`SELECT `+sourceColumns+` FROM sources WHERE id > $1 ORDER BY id LIMIT 1`, id)
	return r.scanSource(row)
}

func (r *SourceRepo) GetByID(id int64) (*Source, error) {
	row := r.db.QueryRow(`SELECT `+sourceColumns+` FROM sources WHERE id = $1`, id)
	return r.scanSource(row)
}

func (r *SourceRepo) GetByURL(url string) (*Source, error) {
	row := r.db.QueryRow(`SELECT `+sourceColumns+` FROM sources WHERE url = $1 ORDER BY id LIMIT 1`, url)
	return r.scanSource(row)
}

func (r *SourceRepo) List() ([]Source, error) {
	rows, err := r.db.Query(`SELECT ` + sourceColumns + ` FROM sources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var s Source
		err := rows.Scan(&s.ID, &s.URL, &s.RSSURL, &s.FullRSSContent, &s.NeedBrowser,
			&s.IsActive, &s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}

	return sources, nil
}

func (r *SourceRepo) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM sources`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sources: %w", err)
	}
	return count, nil
}

func (r *SourceRepo) Insert(source Source) (int64, error) {
	var id int64
	err := r.db.QueryRow(`
		INSERT INTO sources (url, rss_url, full_rss_content, need_browser, is_active)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5)
		RETURNING id
	`, source.URL, source.RSSURL, source.FullRSSContent, source.NeedBrowser, source.IsActive).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert source: %w", err)
	}
	return id, nil
}

func (r *SourceRepo) Update(source Source) error {
	_, err := r.db.Exec(`
		UPDATE sources
		SET url = $2, rss_url = NULLIF($3, ''), full_rss_content = $4, need_browser = $5, updated_at = NOW()
		WHERE id = $1
	`, source.ID, source.URL, source.RSSURL, source.FullRSSContent, source.NeedBrowser)
	if err != nil {
		return fmt.Errorf("failed to update source: %w", err)
	}
	return nil
}

func (r *SourceRepo) DeactivateAll() error {
	_, err := r.db.Exec(`UPDATE sources SET is_active = FALSE, updated_at = NOW() WHERE is_active = TRUE`)
	if err != nil {
		return fmt.Errorf("failed to deactivate sources: %w", err)
	}
	return nil
}

func (r *SourceRepo) Activate(id int64) error {
	_, err := r.db.Exec(`UPDATE sources SET is_active = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to activate source: %w", err)
	}
	return nil
}

func (r *SourceRepo) Delete(id int64) error {
	_, err := r.db.Exec(`DELETE FROM sources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	return nil
}
