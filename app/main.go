package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lysyi3m/news-comb/app/api"
	"github.com/lysyi3m/news-comb/app/cfg"
	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/discover"
	"github.com/lysyi3m/news-comb/app/extract"
	"github.com/lysyi3m/news-comb/app/pipeline"
	"github.com/lysyi3m/news-comb/app/scraper"
	"github.com/lysyi3m/news-comb/app/similarity"
	"github.com/lysyi3m/news-comb/app/source"
)

func main() {
	// Optional .env for local development; real deployments use the
	// environment directly.
	_ = godotenv.Load()

	c, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if c == nil {
		// Help was shown, exit gracefully
		return
	}

	setupLogger(c.Debug)

	slog.Info("Starting News Comb", "version", c.Version, "command", c.Command)

	db, err := database.NewConnection(c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "schema_version", version, "dirty", dirty)

	sourceRepo := database.NewSourceRepo(db)
	linkRepo := database.NewLinkRepo(db)
	articleRepo := database.NewArticleRepo(db)
	embeddingRepo := database.NewEmbeddingRepo(db)

	scraperClient := scraper.NewClient(c.ScraperURL)
	similarityClient := similarity.NewClient(c.SimilarityURL)

	finder := discover.NewFinder(scraperClient, c.UserAgent)
	extractor := extract.NewExtractor(scraperClient, c.UserAgent)
	sources := source.NewService(sourceRepo, scraperClient, c.UserAgent)
	processor := pipeline.NewProcessor(linkRepo, articleRepo, embeddingRepo, similarityClient)
	runner := pipeline.NewRunner(sources, linkRepo, finder, extractor, processor)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch c.Command {
	case "discover":
		runDiscover(ctx, c, runner)
	case "resolve":
		runResolve(ctx, runner)
	case "seed":
		runSeed(c, sources)
	default:
		runServer(ctx, c, db, sourceRepo, linkRepo, articleRepo, embeddingRepo,
			sources, similarityClient, scraperClient)
	}
}

// runDiscover harvests links from the next rotated source. A missing source
// configuration is an operator error and exits non-zero; per-link failures
// inside a run are tallied and do not.
func runDiscover(ctx context.Context, c *cfg.Cfg, runner *pipeline.Runner) {
	pattern := c.LinkRegex
	if len(c.CommandArgs) > 0 && c.CommandArgs[0] != "" {
		pattern = c.CommandArgs[0]
	}

	summary, err := runner.DiscoverLinks(ctx, pattern)
	if err != nil {
		if errors.Is(err, source.ErrNoSources) {
			slog.Error("No sources configured, seed sources first")
		} else {
			slog.Error("Discovery failed", "error", err)
		}
		os.Exit(1)
	}

	slog.Info("Discovery run finished", "source", summary.SourceURL,
		"discovered", summary.Discovered, "new_links", summary.NewLinks,
		"saved", summary.Saved, "duplicates", summary.Duplicates, "errors", summary.Errors)
}

func runResolve(ctx context.Context, runner *pipeline.Runner) {
	summary, err := runner.ResolveArticles(ctx)
	if err != nil {
		slog.Error("Resolve failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Resolve run finished", "pending", summary.Discovered,
		"saved", summary.Saved, "duplicates", summary.Duplicates,
		"skipped", summary.Skipped, "errors", summary.Errors)
}

func runSeed(c *cfg.Cfg, sources *source.Service) {
	path := c.SourcesFile
	if len(c.CommandArgs) > 0 && c.CommandArgs[0] != "" {
		path = c.CommandArgs[0]
	}
	if path == "" {
		slog.Error("No sources file given, set --sources-file or pass a path")
		os.Exit(1)
	}

	count, err := sources.SeedFromFile(path)
	if err != nil {
		slog.Error("Failed to seed sources", "file", path, "error", err)
		os.Exit(1)
	}

	slog.Info("Sources seeded", "file", path, "count", count)
}

func runServer(ctx context.Context, c *cfg.Cfg, db *database.DB,
	sourceRepo database.SourceRepository, linkRepo database.LinkRepository,
	articleRepo database.ArticleRepository, embeddingRepo database.EmbeddingRepository,
	sources *source.Service, similarityClient api.SimilarityInterface,
	scraperClient api.RendererHealth) {

	handler := api.NewHandler(db, sourceRepo, linkRepo, articleRepo, embeddingRepo,
		sources, similarityClient, scraperClient)
	server := api.NewServer(handler, c.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + c.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", c.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}
