package database

type SourceRepository interface {
	GetActive() (*Source, error)
	GetFirst() (*Source, error)
	GetNextAfter(id int64) (*Source, error)
	GetByID(id int64) (*Source, error)
	GetByURL(url string) (*Source, error)
	List() ([]Source, error)
	Count() (int, error)

	Insert(source Source) (int64, error)
	Update(source Source) error
	DeactivateAll() error
	Activate(id int64) error
	Delete(id int64) error
}

type LinkRepository interface {
	SaveNew(urls []string, source *Source, linkType string) (int, error)
	GetOrCreate(url string, source *Source, linkType string) (*Link, bool, error)
	GetByURL(url string) (*Link, error)
	GetUnprocessedWithinRetryLimit() ([]Link, error)

	MarkProcessed(linkID int64) error
	MarkDuplicate(linkID int64, originalArticleID *int64) error
	RecordError(linkID int64, message, kind string) error

	GetBySource(sourceURL string) ([]Link, error)
	GetByType(linkType string) ([]Link, error)
	GetDuplicates(limit int) ([]Link, error)
	GetWithErrors(limit int) ([]Link, error)
	Statistics() (LinkStatistics, error)

	DeleteByURL(url string) error
	PurgeAll() error
}

type ArticleRepository interface {
	// SaveUnique commits a unique article in a single transaction: the article
	// row is created only if no row with the same hash exists, the link is
	// marked processed, and an embedding reference is attached when the
	// similarity service returned a content identifier.
	SaveUnique(article Article, linkID int64, chromaID string, similarity *float64) (int64, bool, error)

	GetByID(id int64) (*Article, error)
	GetByHash(hash string) (*Article, error)
	List(limit, offset int) ([]Article, error)
	Count() (int, error)

	Delete(id int64) error
	PurgeAll() error
}

type EmbeddingRepository interface {
	FindArticleIDByChromaID(chromaID string) (*int64, error)
	GetByArticleID(articleID int64) (*Embedding, error)
	AllChromaIDs() ([]string, error)
}
