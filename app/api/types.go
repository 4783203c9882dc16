package api

import (
	"context"
	"encoding/json"

	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/similarity"
	"github.com/lysyi3m/news-comb/app/source"
)

// SimilarityInterface is the slice of the similarity client the handlers use.
type SimilarityInterface interface {
	CheckOnly(ctx context.Context, content, summary string) (*similarity.Verdict, error)
	Health(ctx context.Context) error
	Config(ctx context.Context) (*similarity.ServiceConfig, error)
	Threshold(ctx context.Context) float64
	Debug(ctx context.Context) (json.RawMessage, error)
	DeleteBatch(ctx context.Context, parentIDs []string) error
}

var _ SimilarityInterface = (*similarity.Client)(nil)

// RendererHealth reports reachability of the headless browser collaborator.
type RendererHealth interface {
	Health(ctx context.Context) error
}

type Handler struct {
	db         *database.DB
	sourceRepo database.SourceRepository
	linkRepo   database.LinkRepository
	artRepo    database.ArticleRepository
	embRepo    database.EmbeddingRepository
	sources    *source.Service
	similarity SimilarityInterface
	scraper    RendererHealth
}
