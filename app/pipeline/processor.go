// Package pipeline orchestrates the two ingestion stages: link harvesting
// from the rotated source, and content resolution of stored links into
// deduplicated articles.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/lysyi3m/news-comb/app/article"
	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/similarity"
)

// Outcome is the terminal state of one processing attempt for a link.
type Outcome string

const (
	// OutcomeSkipped: the link exhausted its retry budget; nothing changed.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeSaved: the content was unique and committed as an article.
	OutcomeSaved Outcome = "saved"
	// OutcomeDuplicate: the similarity service flagged the content; the link
	// was marked duplicate and no article was created.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeFailed: the attempt aborted; the error was recorded on the link
	// and it stays eligible for retry within the attempts budget.
	OutcomeFailed Outcome = "failed"
)

const (
	quickRetries   = 2
	quickRetryWait = 500 * time.Millisecond
)

// Processor turns an extracted record into either a duplicate mark or a
// persisted unique article, updating the link's processing state. No partial
// commit is ever visible: each attempt ends in exactly one of the outcomes.
type Processor struct {
	links      database.LinkRepository
	articles   database.ArticleRepository
	embeddings database.EmbeddingRepository
	checker    similarity.Checker
}

func NewProcessor(links database.LinkRepository, articles database.ArticleRepository,
	embeddings database.EmbeddingRepository, checker similarity.Checker) *Processor {
	return &Processor{
		links:      links,
		articles:   articles,
		embeddings: embeddings,
		checker:    checker,
	}
}

// Process runs one attempt for a link: admission guard, normalization,
// content identity, duplicate check, then commit. Failures are recorded on
// the link and never propagate; the caller tallies outcomes and moves on.
func (p *Processor) Process(ctx context.Context, link database.Link, rec article.Record, kind string) Outcome {
	if link.Attempts >= database.MaxRetryAttempts {
		slog.Warn("Skipped: retry limit exceeded", "url", link.URL,
			"attempts", link.Attempts, "max_attempts", database.MaxRetryAttempts)
		return OutcomeSkipped
	}

	normalized := article.Normalize(rec)
	normalized.Hash = article.Hash(normalized.Title, normalized.Content)
	normalized.URL = link.URL

	slog.Debug("Article normalized and hashed", "url", link.URL, "hash", normalized.Hash)

	verdict, err := p.checker.Check(ctx, normalized.Content, normalized.Summary)
	if err != nil {
		// An unreachable or failing similarity service is never treated as
		// "unique" — that would feed false negatives into the store.
		slog.Error("Similarity service error", "url", link.URL, "error", err)
		p.recordError(link, err.Error(), database.ErrorServiceUnavailable)
		return OutcomeFailed
	}

	slog.Debug("Duplicate check completed", "url", link.URL,
		"is_duplicate", verdict.Duplicate, "similarity", verdict.Similarity)

	if verdict.Duplicate {
		return p.handleDuplicate(link, verdict)
	}

	return p.saveUnique(link, normalized, verdict, kind)
}

// ProcessWithRetry repeats failed attempts a small fixed number of times with
// a short delay, to smooth over transient errors. The loop count here is
// independent of the link's persistent attempts counter.
func (p *Processor) ProcessWithRetry(ctx context.Context, link database.Link, rec article.Record, kind string) Outcome {
	outcome := p.Process(ctx, link, rec, kind)

	for attempt := 0; outcome == OutcomeFailed && attempt < quickRetries; attempt++ {
		select {
		case <-ctx.Done():
			return outcome
		case <-time.After(quickRetryWait):
		}

		refreshed, err := p.links.GetByURL(link.URL)
		if err != nil || refreshed == nil {
			return outcome
		}
		outcome = p.Process(ctx, *refreshed, rec, kind)
	}

	return outcome
}

// handleDuplicate resolves the original article from the returned content
// identifier and marks the link as a duplicate of it. An unresolvable
// identifier leaves duplicate_of empty; that loses attribution but is not an
// error.
func (p *Processor) handleDuplicate(link database.Link, verdict *similarity.Verdict) Outcome {
	baseID := similarity.ExtractBaseID(verdict.ChromaID)

	var originalID *int64
	if baseID != "" {
		var err error
		originalID, err = p.embeddings.FindArticleIDByChromaID(baseID)
		if err != nil {
			slog.Error("Original article lookup failed", "url", link.URL, "chroma_id", baseID, "error", err)
			p.recordError(link, err.Error(), database.ErrorParsing)
			return OutcomeFailed
		}
	}

	if originalID == nil {
		slog.Warn("Duplicate detected but original article not resolved",
			"url", link.URL, "chroma_id", verdict.ChromaID)
	}

	slog.Info("Duplicate article detected", "url", link.URL,
		"similarity", verdict.Similarity, "duplicate_of", originalID)

	if err := p.links.MarkDuplicate(link.ID, originalID); err != nil {
		slog.Error("Failed to mark link duplicate", "url", link.URL, "error", err)
		p.recordError(link, err.Error(), database.ErrorParsing)
		return OutcomeFailed
	}

	return OutcomeDuplicate
}

func (p *Processor) saveUnique(link database.Link, rec article.Record, verdict *similarity.Verdict, kind string) Outcome {
	articleID, created, err := p.articles.SaveUnique(database.Article{
		Title:       rec.Title,
		Content:     rec.Content,
		Summary:     rec.Summary,
		URL:         rec.URL,
		PublishedAt: rec.PublishedAt,
		Hash:        rec.Hash,
		Image:       rec.Image,
	}, link.ID, verdict.ChromaID, verdict.Similarity)
	if err != nil {
		slog.Error("Failed to save article", "url", link.URL, "error", err)
		p.recordError(link, err.Error(), database.ErrorParsing)
		return OutcomeFailed
	}

	slog.Info("Unique article saved", "article_id", articleID, "url", link.URL,
		"source", kind, "chroma_id", verdict.ChromaID, "created", created)

	return OutcomeSaved
}

func (p *Processor) recordError(link database.Link, message, kind string) {
	if err := p.links.RecordError(link.ID, message, kind); err != nil {
		slog.Error("Failed to record link error", "url", link.URL, "error", err)
	}
}
