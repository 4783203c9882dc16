package cfg

import (
	"cmp"
	"fmt"
	"regexp"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBHost     string `long:"db-host" env:"DB_HOST" default:"localhost" description:"Database host"`
	DBPort     string `long:"db-port" env:"DB_PORT" default:"5432" description:"Database port"`
	DBUser     string `long:"db-user" env:"DB_USER" default:"news_user" description:"Database user"`
	DBPassword string `long:"db-password" env:"DB_PASSWORD" default:"news_password" description:"Database password (required)" required:"true"`
	DBName     string `long:"db-name" env:"DB_NAME" default:"news_comb" description:"Database name"`

	// Pipeline configuration
	LinkRegex     string `long:"link-regex" env:"LINK_REGEX" description:"Regex matched against anchor text (HTML) or item title/description (RSS)"`
	SourcesFile   string `long:"sources-file" env:"SOURCES_FILE" description:"YAML file with sources to seed into the database"`
	ScraperURL    string `long:"scraper-url" env:"SCRAPER_URL" default:"http://127.0.0.1:3000" description:"Base URL of the browser rendering service"`
	SimilarityURL string `long:"similarity-url" env:"SIMILARITY_URL" default:"http://localhost:8000" description:"Base URL of the semantic similarity service"`

	// HTTP server configuration
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.6312.86 Safari/537.36" description:"User agent string for HTTP requests"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

type command struct {
	name string
	args *[]string
}

func (c *command) Execute(args []string) error {
	*c.args = args
	return nil
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var commandArgs []string
	commands := []struct {
		name, short, long string
	}{
		{"discover", "Discover article links", "Rotate the active source and harvest candidate article links from it. Accepts an optional regex override argument."},
		{"resolve", "Resolve discovered links into articles", "Fetch, extract and deduplicate content for every unprocessed link within the retry limit."},
		{"serve", "Run the HTTP status/admin server", "Serve statistics, source management and article administration endpoints."},
		{"seed", "Seed sources from a YAML file", "Upsert the sources listed in --sources-file into the database."},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, &command{name: c.name, args: &commandArgs}); err != nil {
			return nil, fmt.Errorf("failed to register command %s: %w", c.name, err)
		}
	}

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBHost:        raw.DBHost,
		DBPort:        raw.DBPort,
		DBUser:        raw.DBUser,
		DBPassword:    raw.DBPassword,
		DBName:        raw.DBName,
		LinkRegex:     raw.LinkRegex,
		SourcesFile:   raw.SourcesFile,
		ScraperURL:    raw.ScraperURL,
		SimilarityURL: raw.SimilarityURL,
		Port:          raw.Port,
		APIAccessKey:  raw.APIAccessKey,
		UserAgent:     raw.UserAgent,
		Debug:         raw.Debug,
		Version:       GetVersion(),
	}

	if parser.Active != nil {
		cfg.Command = parser.Active.Name
		cfg.CommandArgs = commandArgs
	}

	// A regex that does not compile should fail the run up front, not
	// halfway through a discovery pass.
	if cfg.LinkRegex != "" {
		if _, err := regexp.Compile(cfg.LinkRegex); err != nil {
			return nil, fmt.Errorf("invalid link regex %q: %w", cfg.LinkRegex, err)
		}
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// Set replaces the global configuration. Intended for tests.
func Set(c *Cfg) {
	globalCfg = c
}
