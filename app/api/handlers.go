package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/similarity"
	"github.com/lysyi3m/news-comb/app/source"
)

func NewHandler(db *database.DB, sourceRepo database.SourceRepository,
	linkRepo database.LinkRepository, artRepo database.ArticleRepository,
	embRepo database.EmbeddingRepository, sources *source.Service,
	sim SimilarityInterface, scraper RendererHealth) *Handler {
	return &Handler{
		db:         db,
		sourceRepo: sourceRepo,
		linkRepo:   linkRepo,
		artRepo:    artRepo,
		embRepo:    embRepo,
		sources:    sources,
		similarity: sim,
		scraper:    scraper,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"database":  "ok",
	}
	status := http.StatusOK

	if err := h.db.Ping(); err != nil {
		health["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	health["similarity"] = "ok"
	if err := h.similarity.Health(c.Request.Context()); err != nil {
		health["similarity"] = err.Error()
	}

	health["scraper"] = "ok"
	if err := h.scraper.Health(c.Request.Context()); err != nil {
		health["scraper"] = err.Error()
	}

	c.JSON(status, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if linkStats, err := h.linkRepo.Statistics(); err == nil {
		stats["links"] = map[string]int{
			"total":       linkStats.Total,
			"processed":   linkStats.Processed,
			"unprocessed": linkStats.Unprocessed,
			"duplicates":  linkStats.Duplicates,
			"with_errors": linkStats.WithErrors,
		}
	}

	if count, err := h.artRepo.Count(); err == nil {
		stats["articles"] = count
	}

	if count, err := h.sourceRepo.Count(); err == nil {
		stats["sources"] = count
	}

	stats["similarity_threshold"] = h.similarity.Threshold(c.Request.Context())

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APIListSources(c *gin.Context) {
	sources, err := h.sourceRepo.List()
	if err != nil {
		slog.Error("Database error", "operation", "list_sources", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	out := make([]map[string]interface{}, 0, len(sources))
	for _, s := range sources {
		out = append(out, map[string]interface{}{
			"id":               s.ID,
			"url":              s.URL,
			"rss_url":          s.RSSURL,
			"full_rss_content": s.FullRSSContent,
			"need_browser":     s.NeedBrowser,
			"is_active":        s.IsActive,
			"created_at":       s.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"sources": out, "count": len(out)})
}

func (h *Handler) APIAddSource(c *gin.Context) {
	var req struct {
		URL string `json:"url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	src, err := h.sources.Add(c.Request.Context(), req.URL)
	if err != nil {
		slog.Error("Failed to add source", "url", req.URL, "error", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":               src.ID,
		"url":              src.URL,
		"rss_url":          src.RSSURL,
		"full_rss_content": src.FullRSSContent,
		"need_browser":     src.NeedBrowser,
		"is_active":        src.IsActive,
	})
}

func (h *Handler) APIDeleteSource(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source id"})
		return
	}

	if err := h.sources.Delete(id); err != nil {
		slog.Error("Failed to delete source", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// APIListLinks exposes the link-state projections: filter by source, by type,
// or by the duplicates / errors views.
func (h *Handler) APIListLinks(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var links []database.Link
	var err error

	switch {
	case c.Query("source") != "":
		links, err = h.linkRepo.GetBySource(c.Query("source"))
	case c.Query("type") != "":
		links, err = h.linkRepo.GetByType(c.Query("type"))
	case c.Query("filter") == "duplicates":
		links, err = h.linkRepo.GetDuplicates(limit)
	case c.Query("filter") == "errors":
		links, err = h.linkRepo.GetWithErrors(limit)
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "specify one of: source, type, filter=duplicates, filter=errors",
		})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "list_links", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	out := make([]map[string]interface{}, 0, len(links))
	for _, l := range links {
		out = append(out, map[string]interface{}{
			"id":           l.ID,
			"url":          l.URL,
			"source_url":   l.SourceURL,
			"type":         l.Type,
			"parsed":       l.Parsed,
			"attempts":     l.Attempts,
			"last_error":   l.LastError,
			"error_kind":   l.ErrorKind,
			"is_duplicate": l.IsDuplicate,
			"duplicate_of": l.DuplicateOf,
		})
	}

	c.JSON(http.StatusOK, gin.H{"links": out, "count": len(out)})
}

func (h *Handler) APIListArticles(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	articles, err := h.artRepo.List(limit, offset)
	if err != nil {
		slog.Error("Database error", "operation", "list_articles", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	total, err := h.artRepo.Count()
	if err != nil {
		slog.Error("Database error", "operation", "count_articles", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	out := make([]map[string]interface{}, 0, len(articles))
	for _, a := range articles {
		out = append(out, map[string]interface{}{
			"id":           a.ID,
			"title":        a.Title,
			"summary":      a.Summary,
			"url":          a.URL,
			"hash":         a.Hash,
			"image":        a.Image,
			"published_at": a.PublishedAt,
			"created_at":   a.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"articles": out,
		"count":    len(out),
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// APIDeleteArticle removes an article and everything derived from it. The
// similarity index is cleaned first so a failure there leaves the rows in
// place for another attempt; embedding rows go away with the article via FK.
func (h *Handler) APIDeleteArticle(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid article id"})
		return
	}

	art, err := h.artRepo.GetByID(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_article", "id", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if art == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
		return
	}

	if emb, err := h.embRepo.GetByArticleID(id); err == nil && emb != nil {
		baseID := similarity.ExtractBaseID(emb.ChromaID)
		if err := h.similarity.DeleteBatch(c.Request.Context(), []string{baseID}); err != nil {
			slog.Warn("Failed to remove embeddings from similarity service",
				"article_id", id, "chroma_id", baseID, "error", err)
		}
	}

	if err := h.linkRepo.DeleteByURL(art.URL); err != nil {
		slog.Error("Failed to delete links", "url", art.URL, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if err := h.artRepo.Delete(id); err != nil {
		slog.Error("Failed to delete article", "id", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	slog.Info("Article deleted", "id", id, "url", art.URL)
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// APIPurge removes all pipeline data: the similarity index first, then the
// local tables.
func (h *Handler) APIPurge(c *gin.Context) {
	chromaIDs, err := h.embRepo.AllChromaIDs()
	if err != nil {
		slog.Error("Database error", "operation", "all_chroma_ids", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if len(chromaIDs) > 0 {
		if err := h.similarity.DeleteBatch(c.Request.Context(), chromaIDs); err != nil {
			slog.Warn("Failed to purge similarity index", "count", len(chromaIDs), "error", err)
		}
	}

	if err := h.artRepo.PurgeAll(); err != nil {
		slog.Error("Failed to purge articles", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if err := h.linkRepo.PurgeAll(); err != nil {
		slog.Error("Failed to purge links", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	slog.Info("All pipeline data purged", "embeddings", len(chromaIDs))
	c.JSON(http.StatusOK, gin.H{"purged": true, "embeddings": len(chromaIDs)})
}

func (h *Handler) APISimilarityStatus(c *gin.Context) {
	status := map[string]interface{}{"healthy": true}

	if err := h.similarity.Health(c.Request.Context()); err != nil {
		status["healthy"] = false
		status["error"] = err.Error()
		c.JSON(http.StatusOK, status)
		return
	}

	if config, err := h.similarity.Config(c.Request.Context()); err == nil {
		status["threshold"] = config.Threshold
	}

	if debug, err := h.similarity.Debug(c.Request.Context()); err == nil {
		status["debug"] = debug
	}

	c.JSON(http.StatusOK, status)
}

// APISimilarityCheck runs a read-only similarity lookup against the
// embedding service without storing anything.
func (h *Handler) APISimilarityCheck(c *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
		Summary string `json:"summary"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	verdict, err := h.similarity.CheckOnly(c.Request.Context(), req.Content, req.Summary)
	if err != nil {
		slog.Error("Similarity check failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"duplicate":  verdict.Duplicate,
		"similarity": verdict.Similarity,
		"chroma_id":  verdict.ChromaID,
	})
}
