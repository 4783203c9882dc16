package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/lysyi3m/news-comb/app/article"
	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/similarity"
)

// fakeLinkRepo implements database.LinkRepository with call recording.
type fakeLinkRepo struct {
	links map[string]*database.Link

	markedDuplicate   []int64
	duplicateOriginal *int64
	recordedErrors    []string
	recordedKinds     []string

	recordErrorErr error
}

var _ database.LinkRepository = (*fakeLinkRepo)(nil)

func newFakeLinkRepo(links ...database.Link) *fakeLinkRepo {
	repo := &fakeLinkRepo{links: make(map[string]*database.Link)}
	for i := range links {
		repo.links[links[i].URL] = &links[i]
	}
	return repo
}

func (r *fakeLinkRepo) SaveNew(urls []string, source *database.Source, linkType string) (int, error) {
	saved := 0
	for _, url := range urls {
		if _, ok := r.links[url]; ok {
			continue
		}
		r.links[url] = &database.Link{ID: int64(len(r.links) + 1), URL: url, SourceURL: source.URL, Type: linkType}
		saved++
	}
	return saved, nil
}

func (r *fakeLinkRepo) GetOrCreate(url string, source *database.Source, linkType string) (*database.Link, bool, error) {
	if link, ok := r.links[url]; ok {
		return link, false, nil
	}
	link := &database.Link{ID: int64(len(r.links) + 1), URL: url, SourceURL: source.URL, Type: linkType}
	r.links[url] = link
	return link, true, nil
}

func (r *fakeLinkRepo) GetByURL(url string) (*database.Link, error) {
	return r.links[url], nil
}

func (r *fakeLinkRepo) GetUnprocessedWithinRetryLimit() ([]database.Link, error) {
	var out []database.Link
	for _, link := range r.links {
		if !link.Parsed && link.Attempts < database.MaxRetryAttempts {
			out = append(out, *link)
		}
	}
	return out, nil
}

func (r *fakeLinkRepo) MarkProcessed(linkID int64) error {
	for _, link := range r.links {
		if link.ID == linkID {
			link.Parsed = true
		}
	}
	return nil
}

func (r *fakeLinkRepo) MarkDuplicate(linkID int64, originalArticleID *int64) error {
	r.markedDuplicate = append(r.markedDuplicate, linkID)
	r.duplicateOriginal = originalArticleID
	for _, link := range r.links {
		if link.ID == linkID {
			link.Parsed = true
			link.IsDuplicate = true
			link.DuplicateOf = originalArticleID
		}
	}
	return nil
}

func (r *fakeLinkRepo) RecordError(linkID int64, message, kind string) error {
	if r.recordErrorErr != nil {
		return r.recordErrorErr
	}
	r.recordedErrors = append(r.recordedErrors, message)
	r.recordedKinds = append(r.recordedKinds, kind)
	for _, link := range r.links {
		if link.ID == linkID {
			link.Attempts++
			link.LastError = message
			link.ErrorKind = kind
		}
	}
	return nil
}

func (r *fakeLinkRepo) GetBySource(sourceURL string) ([]database.Link, error) { return nil, nil }
func (r *fakeLinkRepo) GetByType(linkType string) ([]database.Link, error)    { return nil, nil }
func (r *fakeLinkRepo) GetDuplicates(limit int) ([]database.Link, error)      { return nil, nil }
func (r *fakeLinkRepo) GetWithErrors(limit int) ([]database.Link, error)      { return nil, nil }
func (r *fakeLinkRepo) Statistics() (database.LinkStatistics, error) {
	return database.LinkStatistics{}, nil
}
func (r *fakeLinkRepo) DeleteByURL(url string) error { return nil }
func (r *fakeLinkRepo) PurgeAll() error              { return nil }

// fakeArticleRepo implements database.ArticleRepository.
type fakeArticleRepo struct {
	byHash map[string]int64
	nextID int64

	savedChromaID string
	saveErr       error
	saveCalls     int
}

var _ database.ArticleRepository = (*fakeArticleRepo)(nil)

func newFakeArticleRepo() *fakeArticleRepo {
	return &fakeArticleRepo{byHash: make(map[string]int64), nextID: 1}
}

func (r *fakeArticleRepo) SaveUnique(art database.Article, linkID int64, chromaID string, sim *float64) (int64, bool, error) {
	r.saveCalls++
	if r.saveErr != nil {
		return 0, false, r.saveErr
	}
	r.savedChromaID = chromaID
	if id, ok := r.byHash[art.Hash]; ok {
		return id, false, nil
	}
	id := r.nextID
	r.nextID++
	r.byHash[art.Hash] = id
	return id, true, nil
}

func (r *fakeArticleRepo) GetByID(id int64) (*database.Article, error)       { return nil, nil }
func (r *fakeArticleRepo) GetByHash(hash string) (*database.Article, error)  { return nil, nil }
func (r *fakeArticleRepo) List(limit, offset int) ([]database.Article, error) { return nil, nil }
func (r *fakeArticleRepo) Count() (int, error)                               { return len(r.byHash), nil }
func (r *fakeArticleRepo) Delete(id int64) error                             { return nil }
func (r *fakeArticleRepo) PurgeAll() error                                   { return nil }

// fakeEmbeddingRepo implements database.EmbeddingRepository.
type fakeEmbeddingRepo struct {
	byChromaID map[string]int64
	lookupErr  error
}

var _ database.EmbeddingRepository = (*fakeEmbeddingRepo)(nil)

func (r *fakeEmbeddingRepo) FindArticleIDByChromaID(chromaID string) (*int64, error) {
	if r.lookupErr != nil {
		return nil, r.lookupErr
	}
	if id, ok := r.byChromaID[chromaID]; ok {
		return &id, nil
	}
	return nil, nil
}

func (r *fakeEmbeddingRepo) GetByArticleID(articleID int64) (*database.Embedding, error) {
	return nil, nil
}
func (r *fakeEmbeddingRepo) AllChromaIDs() ([]string, error) { return nil, nil }

// fakeChecker implements similarity.Checker.
type fakeChecker struct {
	verdict *similarity.Verdict
	err     error
	calls   int
}

func (c *fakeChecker) Check(ctx context.Context, content, summary string) (*similarity.Verdict, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.verdict, nil
}

func testRecord() article.Record {
	return article.Record{
		Title:   "Markets tumble on rate fears",
		Content: "Stocks fell sharply on Friday as investors weighed rate signals.",
		Summary: "Stocks fell sharply.",
	}
}

func TestProcessor_Process_SkipsExhaustedLink(t *testing.T) {
	links := newFakeLinkRepo(database.Link{ID: 1, URL: "https://example.com/a", Attempts: database.MaxRetryAttempts})
	checker := &fakeChecker{verdict: &similarity.Verdict{}}
	p := NewProcessor(links, newFakeArticleRepo(), &fakeEmbeddingRepo{}, checker)

	outcome := p.Process(context.Background(), *links.links["https://example.com/a"], testRecord(), database.TypeHTML)

	if outcome != OutcomeSkipped {
		t.Errorf("Expected skipped outcome, got %s", outcome)
	}
	if checker.calls != 0 {
		t.Error("Exhausted link should never reach the similarity service")
	}
	if links.links["https://example.com/a"].Attempts != database.MaxRetryAttempts {
		t.Error("A skip must not consume an attempt")
	}
}

func TestProcessor_Process_SavesUniqueArticle(t *testing.T) {
	links := newFakeLinkRepo(database.Link{ID: 1, URL: "https://example.com/a"})
	articles := newFakeArticleRepo()
	sim := 0.12
	checker := &fakeChecker{verdict: &similarity.Verdict{Duplicate: false, Similarity: &sim, ChromaID: "a1b2c3_0"}}
	p := NewProcessor(links, articles, &fakeEmbeddingRepo{}, checker)

	outcome := p.Process(context.Background(), *links.links["https://example.com/a"], testRecord(), database.TypeHTML)

	if outcome != OutcomeSaved {
		t.Errorf("Expected saved outcome, got %s", outcome)
	}
	if articles.saveCalls != 1 {
		t.Errorf("Expected one save, got %d", articles.saveCalls)
	}
	if articles.savedChromaID != "a1b2c3_0" {
		t.Errorf("Expected chroma id to be passed through, got %q", articles.savedChromaID)
	}
}

func TestProcessor_Process_MarksDuplicateWithAttribution(t *testing.T) {
	links := newFakeLinkRepo(database.Link{ID: 1, URL: "https://example.com/a"})
	embeddings := &fakeEmbeddingRepo{byChromaID: map[string]int64{"a1b2c3": 7}}
	sim := 0.96
	checker := &fakeChecker{verdict: &similarity.Verdict{Duplicate: true, Similarity: &sim, ChromaID: "a1b2c3_2"}}
	articles := newFakeArticleRepo()
	p := NewProcessor(links, articles, embeddings, checker)

	outcome := p.Process(context.Background(), *links.links["https://example.com/a"], testRecord(), database.TypeHTML)

	if outcome != OutcomeDuplicate {
		t.Errorf("Expected duplicate outcome, got %s", outcome)
	}
	if articles.saveCalls != 0 {
		t.Error("A duplicate must not create an article")
	}
	if len(links.markedDuplicate) != 1 || links.markedDuplicate[0] != 1 {
		t.Fatalf("Expected link 1 marked duplicate, got %v", links.markedDuplicate)
	}
	// The chunk suffix is stripped before the original lookup.
	if links.duplicateOriginal == nil || *links.duplicateOriginal != 7 {
		t.Errorf("Expected duplicate_of = 7, got %v", links.duplicateOriginal)
	}
}

func TestProcessor_Process_DuplicateWithoutResolvableOriginal(t *testing.T) {
	links := newFakeLinkRepo(database.Link{ID: 1, URL: "https://example.com/a"})
	embeddings := &fakeEmbeddingRepo{byChromaID: map[string]int64{}}
	checker := &fakeChecker{verdict: &similarity.Verdict{Duplicate: true, ChromaID: "unknown_0"}}
	p := NewProcessor(links, newFakeArticleRepo(), embeddings, checker)

	outcome := p.Process(context.Background(), *links.links["https://example.com/a"], testRecord(), database.TypeHTML)

	if outcome != OutcomeDuplicate {
		t.Errorf("Expected duplicate outcome even without attribution, got %s", outcome)
	}
	if links.duplicateOriginal != nil {
		t.Errorf("Expected nil duplicate_of, got %v", *links.duplicateOriginal)
	}
}

func TestProcessor_Process_SimilarityServiceFailure(t *testing.T) {
	links := newFakeLinkRepo(database.Link{ID: 1, URL: "https://example.com/a"})
	checker := &fakeChecker{err: errors.New("connection refused")}
	articles := newFakeArticleRepo()
	p := NewProcessor(links, articles, &fakeEmbeddingRepo{}, checker)

	outcome := p.Process(context.Background(), *links.links["https://example.com/a"], testRecord(), database.TypeHTML)

	if outcome != OutcomeFailed {
		t.Errorf("Expected failed outcome, got %s", outcome)
	}
	if articles.saveCalls != 0 {
		t.Error("A service failure must never be treated as unique")
	}
	if len(links.recordedKinds) != 1 || links.recordedKinds[0] != database.ErrorServiceUnavailable {
		t.Errorf("Expected service_unavailable recorded, got %v", links.recordedKinds)
	}
	if links.links["https://example.com/a"].Attempts != 1 {
		t.Errorf("Expected one attempt consumed, got %d", links.links["https://example.com/a"].Attempts)
	}
}

func TestProcessor_Process_SaveFailureRecordsParsingError(t *testing.T) {
	links := newFakeLinkRepo(database.Link{ID: 1, URL: "https://example.com/a"})
	articles := newFakeArticleRepo()
	articles.saveErr = errors.New("constraint violation")
	checker := &fakeChecker{verdict: &similarity.Verdict{ChromaID: "a1b2c3_0"}}
	p := NewProcessor(links, articles, &fakeEmbeddingRepo{}, checker)

	outcome := p.Process(context.Background(), *links.links["https://example.com/a"], testRecord(), database.TypeHTML)

	if outcome != OutcomeFailed {
		t.Errorf("Expected failed outcome, got %s", outcome)
	}
	if len(links.recordedKinds) != 1 || links.recordedKinds[0] != database.ErrorParsing {
		t.Errorf("Expected parsing_error recorded, got %v", links.recordedKinds)
	}
}

func TestProcessor_Process_SameContentFromSecondLink(t *testing.T) {
	// Two links carrying identical content: the second is NOT a semantic
	// duplicate when the service says unique, and SaveUnique resolves to the
	// existing row by hash.
	links := newFakeLinkRepo(
		database.Link{ID: 1, URL: "https://example.com/a"},
		database.Link{ID: 2, URL: "https://example.com/b"},
	)
	articles := newFakeArticleRepo()
	checker := &fakeChecker{verdict: &similarity.Verdict{Duplicate: false, ChromaID: "a1b2c3_0"}}
	p := NewProcessor(links, articles, &fakeEmbeddingRepo{}, checker)

	first := p.Process(context.Background(), *links.links["https://example.com/a"], testRecord(), database.TypeHTML)
	second := p.Process(context.Background(), *links.links["https://example.com/b"], testRecord(), database.TypeHTML)

	if first != OutcomeSaved || second != OutcomeSaved {
		t.Errorf("Expected both saved, got %s and %s", first, second)
	}
	if len(articles.byHash) != 1 {
		t.Errorf("Expected a single article row for identical content, got %d", len(articles.byHash))
	}
}

func TestProcessor_ProcessWithRetry_RecoversAfterTransientFailure(t *testing.T) {
	links := newFakeLinkRepo(database.Link{ID: 1, URL: "https://example.com/a"})
	articles := newFakeArticleRepo()

	checker := &flakyChecker{failures: 1, verdict: &similarity.Verdict{ChromaID: "a1b2c3_0"}}
	p := NewProcessor(links, articles, &fakeEmbeddingRepo{}, checker)

	outcome := p.ProcessWithRetry(context.Background(), *links.links["https://example.com/a"], testRecord(), database.TypeHTML)

	if outcome != OutcomeSaved {
		t.Errorf("Expected saved after transient failure, got %s", outcome)
	}
	if checker.calls != 2 {
		t.Errorf("Expected 2 check calls, got %d", checker.calls)
	}
	// The transient failure still consumed one persistent attempt.
	if links.links["https://example.com/a"].Attempts != 1 {
		t.Errorf("Expected one recorded attempt, got %d", links.links["https://example.com/a"].Attempts)
	}
}

type flakyChecker struct {
	failures int
	verdict  *similarity.Verdict
	calls    int
}

func (c *flakyChecker) Check(ctx context.Context, content, summary string) (*similarity.Verdict, error) {
	c.calls++
	if c.calls <= c.failures {
		return nil, errors.New("transient failure")
	}
	return c.verdict, nil
}
