package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Verdict statuses used by the post-filter.
const (
	statusKeep = "KEEP"
	statusPass = "PASS"
)

// RawItem is a sanitized article as delivered by the fetcher, before any
// filtering.
type RawItem struct {
	Title       string
	Description string
	Link        string
	PubDate     string
}

// Article is a candidate that survived the pre-filter. ID is its position
// in the post-dedup fetch order and is the correlation key for verdicts.
// Content is what the classifier sees; it starts as the search snippet
// and may be replaced by scraped article text.
type Article struct {
	ID          int
	Title       string
	Description string
	Content     string
	Link        string
	PubDate     string
}

// Verdict is the classifier's per-article decision.
type Verdict struct {
	ID        int
	Status    string
	Sentiment string
	Summary   string
}

// KeptArticle is an article that passed both filters, ready for
// notification.
type KeptArticle struct {
	Title     string
	Summary   string
	Sentiment string
	Link      string
}

// StoredRecord is the durable form of a kept article.
type StoredRecord struct {
	Title       string
	Link        string
	Description string
	PubDate     string
	Summary     string
	Sentiment   string
	CreatedAt   string
}

// Fetcher retrieves raw news items.
type Fetcher interface {
	Search(ctx context.Context, query string, count int) ([]RawItem, error)
}

// Classifier produces one verdict per article in a single call.
type Classifier interface {
	Classify(ctx context.Context, articles []Article) ([]Verdict, error)
}

// Scraper extracts article body text from a URL.
type Scraper interface {
	Scrape(ctx context.Context, url string) (string, error)
}

// Store provides the retention operations.
type Store interface {
	Prune(ctx context.Context, now time.Time, horizonDays int) error
	Exists(ctx context.Context, title string) (bool, error)
	Insert(ctx context.Context, rec *StoredRecord) error
}

// Notifier delivers the assembled run report. Called at most once per run.
type Notifier interface {
	Notify(ctx context.Context, articles []KeptArticle) error
}

// Runner executes one monitoring run: prune, fetch, pre-filter, classify,
// post-filter, store, notify.
type Runner struct {
	fetcher     Fetcher
	classifier  Classifier
	scraper     Scraper
	store       Store
	notifier    Notifier
	query       string
	fetchCount  int
	denylist    []string
	horizonDays int
	now         func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithQuery sets the search query.
func WithQuery(query string) Option {
	return func(r *Runner) {
		r.query = query
	}
}

// WithFetchCount sets how many items to request per run.
func WithFetchCount(count int) Option {
	return func(r *Runner) {
		r.fetchCount = count
	}
}

// WithDenylist sets the title substrings that disqualify an article
// before classification.
func WithDenylist(words []string) Option {
	return func(r *Runner) {
		r.denylist = words
	}
}

// WithScraper enables article-body enrichment before classification.
func WithScraper(s Scraper) Option {
	return func(r *Runner) {
		r.scraper = s
	}
}

// WithRetentionDays sets the prune horizon.
func WithRetentionDays(days int) Option {
	return func(r *Runner) {
		r.horizonDays = days
	}
}

// WithClock replaces the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// NewRunner creates a pipeline runner.
func NewRunner(
	fetcher Fetcher,
	classifier Classifier,
	store Store,
	notifier Notifier,
	opts ...Option,
) *Runner {
	r := &Runner{
		fetcher:     fetcher,
		classifier:  classifier,
		store:       store,
		notifier:    notifier,
		fetchCount:  10,
		horizonDays: 3,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one monitoring run. Only configuration problems surface as
// errors; every collaborator failure degrades to "fewer or no results this
// run" and shows up in the log instead.
func (r *Runner) Run(ctx context.Context) error {
	if r.query == "" {
		return fmt.Errorf("query not set")
	}

	now := r.now()
	slog.Info("starting run", "query", r.query, "fetch_count", r.fetchCount)

	if err := r.store.Prune(ctx, now, r.horizonDays); err != nil {
		slog.Warn("failed to prune store", "error", err)
	}

	raw, err := r.fetcher.Search(ctx, r.query, r.fetchCount)
	if err != nil {
		slog.Warn("fetch failed, treating as no news", "error", err)
		raw = nil
	}
	slog.Info("fetched news", "count", len(raw))

	candidates, err := r.preFilter(ctx, raw)
	if err != nil {
		return err
	}
	slog.Info("pre-filter done", "before", len(raw), "after", len(candidates))

	if len(candidates) == 0 {
		slog.Info("no new news this run")
		return nil
	}

	r.enrich(ctx, candidates)

	// One classification call covers every candidate, no matter how many.
	verdicts, err := r.classifier.Classify(ctx, candidates)
	if err != nil {
		slog.Error("classification failed, nothing kept this run", "error", err)
		return nil
	}
	slog.Info("classified", "submitted", len(candidates), "verdicts", len(verdicts))

	kept, records := r.postFilter(candidates, verdicts, now)
	if len(kept) == 0 {
		slog.Info("no articles kept this run")
		return nil
	}

	// Store commits happen before notification; a failed send never rolls
	// them back.
	for _, rec := range records {
		if err := r.store.Insert(ctx, rec); err != nil {
			slog.Warn("failed to store article", "title", rec.Title, "error", err)
		}
	}

	if err := r.notifier.Notify(ctx, kept); err != nil {
		slog.Warn("notification failed", "error", err)
	}

	slog.Info("run complete", "kept", len(kept))
	return nil
}

// preFilter drops already-seen titles and denylisted titles, in fetch
// order, and assigns run-local IDs to the survivors.
func (r *Runner) preFilter(ctx context.Context, raw []RawItem) ([]Article, error) {
	var candidates []Article
	for _, item := range raw {
		seen, err := r.store.Exists(ctx, item.Title)
		if err != nil {
			return nil, fmt.Errorf("check existing title: %w", err)
		}
		if seen {
			continue
		}
		if matchesDenylist(item.Title, r.denylist) {
			slog.Info("denylisted before classification", "title", item.Title)
			continue
		}
		candidates = append(candidates, Article{
			ID:          len(candidates),
			Title:       item.Title,
			Description: item.Description,
			Content:     item.Description,
			Link:        item.Link,
			PubDate:     item.PubDate,
		})
	}
	return candidates, nil
}

// enrich replaces each candidate's content with scraped article text when
// a scraper is configured. Scrape failures fall back to the snippet.
func (r *Runner) enrich(ctx context.Context, candidates []Article) {
	if r.scraper == nil {
		return
	}
	for i := range candidates {
		text, err := r.scraper.Scrape(ctx, candidates[i].Link)
		if err != nil {
			slog.Warn("scrape failed, using snippet", "link", candidates[i].Link, "error", err)
			continue
		}
		if text != "" {
			candidates[i].Content = text
		}
	}
}

// postFilter pairs each candidate with its verdict by ID and keeps only
// genuine KEEPs. A candidate with no verdict is discarded, not an error.
func (r *Runner) postFilter(candidates []Article, verdicts []Verdict, now time.Time) ([]KeptArticle, []*StoredRecord) {
	byID := make(map[int]Verdict, len(verdicts))
	for _, v := range verdicts {
		byID[v.ID] = v
	}

	today := now.Format("2006-01-02")

	var kept []KeptArticle
	var records []*StoredRecord
	for _, a := range candidates {
		v, ok := byID[a.ID]
		if !ok {
			slog.Info("no verdict for article, discarding", "id", a.ID, "title", a.Title)
			continue
		}
		if v.Status != statusKeep || containsPassMarker(v.Summary) {
			continue
		}
		// The model sometimes echoes rating commentary despite the
		// prompt; re-scan its summary against the same denylist.
		if matchesDenylist(v.Summary, r.denylist) {
			slog.Info("denylisted after classification", "title", a.Title)
			continue
		}

		kept = append(kept, KeptArticle{
			Title:     a.Title,
			Summary:   v.Summary,
			Sentiment: v.Sentiment,
			Link:      a.Link,
		})
		records = append(records, &StoredRecord{
			Title:       a.Title,
			Link:        a.Link,
			Description: a.Description,
			PubDate:     a.PubDate,
			Summary:     v.Summary,
			Sentiment:   v.Sentiment,
			CreatedAt:   today,
		})
	}
	return kept, records
}

func matchesDenylist(text string, denylist []string) bool {
	for _, word := range denylist {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}

func containsPassMarker(text string) bool {
	return strings.Contains(strings.ToUpper(text), statusPass)
}
