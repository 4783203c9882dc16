package cfg

type Cfg struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Pipeline configuration
	LinkRegex     string
	SourcesFile   string
	ScraperURL    string
	SimilarityURL string

	// HTTP server configuration
	Port         string
	APIAccessKey string

	// Application metadata
	UserAgent string
	Debug     bool
	Version   string

	// Command selected on the command line (discover, resolve, serve, seed)
	Command     string
	CommandArgs []string
}
