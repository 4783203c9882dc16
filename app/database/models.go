package database

import (
	"time"
)

// MaxRetryAttempts bounds how many times a link may fail processing before it
// is permanently excluded from automatic retries.
const MaxRetryAttempts = 3

// Link types
const (
	TypeHTML = "html"
	TypeRSS  = "rss"
)

// Error kinds recorded on links
const (
	ErrorParsing            = "parsing_error"
	ErrorNetwork            = "network_error"
	ErrorTimeout            = "timeout_error"
	ErrorServiceUnavailable = "service_unavailable"
)

type Source struct {
	ID             int64
	URL            string
	RSSURL         string // empty when the source has no feed
	FullRSSContent bool
	NeedBrowser    bool
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Link struct {
	ID          int64
	URL         string
	SourceURL   string
	Type        string // html or rss
	UseBrowser  bool
	Parsed      bool
	Attempts    int
	LastError   string
	ErrorKind   string
	IsDuplicate bool
	DuplicateOf *int64 // original article id, nil when unresolved
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Article struct {
	ID          int64
	Title       string
	Content     string
	Summary     string
	URL         string
	PublishedAt time.Time
	Hash        string
	Image       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Embedding struct {
	ID         int64
	ArticleID  int64
	ChromaID   string
	Similarity *float64
	CreatedAt  time.Time
}

// LinkStatistics is the run-level projection over the links table.
type LinkStatistics struct {
	Total       int
	Processed   int
	Unprocessed int
	Duplicates  int
	WithErrors  int
}
