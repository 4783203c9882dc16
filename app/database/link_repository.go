package database

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

var _ LinkRepository = (*LinkRepo)(nil)

// LinkRepo handles database operations for discovered article links
type LinkRepo struct {
	db *DB
}

func NewLinkRepo(db *DB) *LinkRepo {
	return &LinkRepo{db: db}
}

const linkColumns = `id, url, COALESCE(source_url, ''), type, use_browser, parsed, attempts,
	COALESCE(last_error, ''), COALESCE(error_kind, ''), is_duplicate, duplicate_of, created_at, updated_at`

func scanLink(row *sql.Row) (*Link, error) {
	var l Link
	err := row.Scan(&l.ID, &l.URL, &l.SourceURL, &l.Type, &l.UseBrowser, &l.Parsed,
		&l.Attempts, &l.LastError, &l.ErrorKind, &l.IsDuplicate, &l.DuplicateOf,
		&l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan link row: %w", err)
	}
	return &l, nil
}

func scanLinks(rows *sql.Rows) ([]Link, error) {
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var l Link
		err := rows.Scan(&l.ID, &l.URL, &l.SourceURL, &l.Type, &l.UseBrowser, &l.Parsed,
			&l.Attempts, &l.LastError, &l.ErrorKind, &l.IsDuplicate, &l.DuplicateOf,
			&l.CreatedAt, &l.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link row: %w", err)
		}
		links = append(links, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating link rows: %w", err)
	}

	return links, nil
}

// SaveNew inserts links for URLs not previously discovered. Rediscovering a
// known URL is a no-op; the returned count covers inserted rows only.
func (r *LinkRepo) SaveNew(urls []string, source *Source, linkType string) (int, error) {
	if len(urls) == 0 {
		return 0, nil
	}

	rows, err := r.db.Query(`SELECT url FROM links WHERE url = ANY($1)`, pq.Array(urls))
	if err != nil {
		return 0, fmt.Errorf("failed to check existing links: %w", err)
	}
	existing := make(map[string]bool)
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan existing link url: %w", err)
		}
		existing[url] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating existing link urls: %w", err)
	}

	saved := 0
	for _, url := range urls {
		if existing[url] {
			continue
		}

		// ON CONFLICT guards against a concurrent insert between the
		// existence check and this statement.
		res, err := r.db.Exec(`
			INSERT INTO links (url, source_url, type, use_browser)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (url) DO NOTHING
		`, url, source.URL, linkType, source.NeedBrowser)
		if err != nil {
			return saved, fmt.Errorf("failed to insert link %s: %w", url, err)
		}

		if n, err := res.RowsAffected(); err == nil && n > 0 {
			saved++
		}
	}

	return saved, nil
}

// GetOrCreate returns the link for a URL, creating it unparsed when missing.
// The second return value reports whether a new row was created.
func (r *LinkRepo) GetOrCreate(url string, source *Source, linkType string) (*Link, bool, error) {
	link, err := r.GetByURL(url)
	if err != nil {
		return nil, false, err
	}
	if link != nil {
		return link, false, nil
	}

	row := r.db.QueryRow(`
		INSERT INTO links (url, source_url, type, use_browser)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (url) DO UPDATE SET updated_at = links.updated_at
		RETURNING `+linkColumns+`
	`, url, source.URL, linkType, source.NeedBrowser)

	created, err := scanLink(row)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create link: %w", err)
	}

	return created, true, nil
}

func (r *LinkRepo) GetByURL(url string) (*Link, error) {
	row := r.db.QueryRow(`SELECT `+linkColumns+` FROM links WHERE url = $1`, url)
	return scanLink(row)
}

// GetUnprocessedWithinRetryLimit returns unparsed links that have not
// exhausted their retry budget, in insertion order.
func (r *LinkRepo) GetUnprocessedWithinRetryLimit() ([]Link, error) {
	rows, err := r.db.Query(`
		SELECT `+linkColumns+`
		FROM links
		WHERE parsed = FALSE AND attempts < $1
		ORDER BY id
	`, MaxRetryAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to get unprocessed links: %w", err)
	}
	return scanLinks(rows)
}

func (r *LinkRepo) MarkProcessed(linkID int64) error {
	_, err := r.db.Exec(`
		UPDATE links
		SET parsed = TRUE, last_error = NULL, updated_at = NOW()
		WHERE id = $1
	`, linkID)
	if err != nil {
		return fmt.Errorf("failed to mark link processed: %w", err)
	}
	return nil
}

func (r *LinkRepo) MarkDuplicate(linkID int64, originalArticleID *int64) error {
	_, err := r.db.Exec(`
		UPDATE links
		SET parsed = TRUE, is_duplicate = TRUE, duplicate_of = $2, last_error = NULL, updated_at = NOW()
		WHERE id = $1
	`, linkID, originalArticleID)
	if err != nil {
		return fmt.Errorf("failed to mark link duplicate: %w", err)
	}
	return nil
}

// RecordError annotates a failed attempt. The link stays unparsed and remains
// eligible for retry until attempts reaches MaxRetryAttempts.
func (r *LinkRepo) RecordError(linkID int64, message, kind string) error {
	_, err := r.db.Exec(`
		UPDATE links
		SET attempts = attempts + 1, last_error = $2, error_kind = $3, updated_at = NOW()
		WHERE id = $1
	`, linkID, message, kind)
	if err != nil {
		return fmt.Errorf("failed to record link error: %w", err)
	}
	return nil
}

func (r *LinkRepo) GetBySource(sourceURL string) ([]Link, error) {
	rows, err := r.db.Query(`SELECT `+linkColumns+` FROM links WHERE source_url = $1 ORDER BY id`, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get links by source: %w", err)
	}
	return scanLinks(rows)
}

func (r *LinkRepo) GetByType(linkType string) ([]Link, error) {
	rows, err := r.db.Query(`SELECT `+linkColumns+` FROM links WHERE type = $1 ORDER BY id`, linkType)
	if err != nil {
		return nil, fmt.Errorf("failed to get links by type: %w", err)
	}
	return scanLinks(rows)
}

func (r *LinkRepo) GetDuplicates(limit int) ([]Link, error) {
	rows, err := r.db.Query(`SELECT `+linkColumns+` FROM links WHERE is_duplicate = TRUE ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get duplicate links: %w", err)
	}
	return scanLinks(rows)
}

func (r *LinkRepo) GetWithErrors(limit int) ([]Link, error) {
	rows, err := r.db.Query(`SELECT `+linkColumns+` FROM links WHERE last_error IS NOT NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get errored links: %w", err)
	}
	return scanLinks(rows)
}

func (r *LinkRepo) Statistics() (LinkStatistics, error) {
	var stats LinkStatistics
	err := r.db.QueryRow(`
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE parsed = TRUE),
			COUNT(*) FILTER (WHERE parsed = FALSE),
			COUNT(*) FILTER (WHERE is_duplicate = TRUE),
			COUNT(*) FILTER (WHERE last_error IS NOT NULL)
		FROM links
	`).Scan(&stats.Total, &stats.Processed, &stats.Unprocessed, &stats.Duplicates, &stats.WithErrors)
	if err != nil {
		return stats, fmt.Errorf("failed to get link statistics: %w", err)
	}
	return stats, nil
}

func (r *LinkRepo) DeleteByURL(url string) error {
	_, err := r.db.Exec(`DELETE FROM links WHERE url = $1`, url)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	return nil
}

func (r *LinkRepo) PurgeAll() error {
	_, err := r.db.Exec(`DELETE FROM links`)
	if err != nil {
		return fmt.Errorf("failed to purge links: %w", err)
	}
	return nil
}
