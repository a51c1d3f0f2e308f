package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/paper-feed-service/internal/domain"
	"github.com/helixir/paper-feed-service/internal/events"
	"github.com/helixir/paper-feed-service/internal/observability"
	"github.com/helixir/paper-feed-service/internal/papersources"
)

// DefaultFanoutConcurrency bounds the number of concurrent detail fetches made
// by GetBookmarks.
const DefaultFanoutConcurrency = 8

var _ events.Handler = (*PaperRepository)(nil)

// PaperRepository is the façade over the active source, the bookmark set and
// the overview-language preference.
type PaperRepository struct {
	source    papersources.Source
	store     BookmarkStore
	publisher events.Publisher
	logger    zerolog.Logger
	metrics   *observability.Metrics

	fanout     int
	instanceID string

	mu        sync.RWMutex
	bookmarks map[string]struct{}
	language  string
}

// Option configures a PaperRepository.
type Option func(*PaperRepository)

// WithMetrics records repository metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *PaperRepository) {
		r.metrics = m
	}
}

// WithPublisher publishes a bookmark event after every toggle.
func WithPublisher(p events.Publisher) Option {
	return func(r *PaperRepository) {
		if p != nil {
			r.publisher = p
		}
	}
}

// WithFanoutConcurrency bounds concurrent detail fetches in GetBookmarks.
// Values below 1 keep the default.
func WithFanoutConcurrency(n int) Option {
	return func(r *PaperRepository) {
		if n > 0 {
			r.fanout = n
		}
	}
}

// WithInstanceID sets the Source stamped on published events.
func WithInstanceID(id string) Option {
	return func(r *PaperRepository) {
		r.instanceID = id
	}
}

// NewPaperRepository creates a repository over source. A nil store falls back
// to a MemoryStore.
func NewPaperRepository(source papersources.Source, store BookmarkStore, logger zerolog.Logger, opts ...Option) *PaperRepository {
	if store == nil {
		store = NewMemoryStore()
	}
	r := &PaperRepository{
		source:    source,
		store:     store,
		publisher: events.NoopPublisher{},
		logger:    logger.With().Str("component", "paper_repository").Logger(),
		fanout:    DefaultFanoutConcurrency,
		bookmarks: make(map[string]struct{}),
		language:  domain.DefaultLanguage,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SourceName returns the name of the active source.
func (r *PaperRepository) SourceName() string {
	return r.source.Name()
}

// Load hydrates the bookmark set and the overview language from the store.
func (r *PaperRepository) Load(ctx context.Context) error {
	ids, err := r.store.ListBookmarks(ctx)
	if err != nil {
		return fmt.Errorf("loading bookmarks: %w", err)
	}

	lang, err := r.store.GetPreference(ctx, domain.PreferenceOverviewLanguage)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		lang = domain.DefaultLanguage
	case err != nil:
		return fmt.Errorf("loading overview language: %w", err)
	}

	r.mu.Lock()
	r.bookmarks = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		r.bookmarks[id] = struct{}{}
	}
	r.language = domain.NormalizeLanguage(lang)
	total := len(r.bookmarks)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.SetBookmarks(total)
	}
	r.logger.Info().
		Int("bookmarks", total).
		Str("overview_language", r.OverviewLanguage()).
		Msg("repository state loaded")
	return nil
}

// GetFeed returns the feed for sort.
func (r *PaperRepository) GetFeed(ctx context.Context, sort domain.FeedSort) []domain.Paper {
	papers := r.source.FetchFeed(ctx, sort)
	r.recordList(papersources.OperationFeed, papers)
	return papers
}

// GetPaperDetails returns a single paper, or an error placeholder.
func (r *PaperRepository) GetPaperDetails(ctx context.Context, id string) domain.Paper {
	p := r.source.FetchDetails(ctx, id)
	if p.IsErrorPlaceholder() && r.metrics != nil {
		r.metrics.RecordPlaceholderPapers(1)
	}
	return p
}

// SearchPapers returns papers matching query.
func (r *PaperRepository) SearchPapers(ctx context.Context, query string) []domain.Paper {
	papers := r.source.Search(ctx, query)
	r.recordList(papersources.OperationSearch, papers)
	return papers
}

// GetBlog returns the Markdown overview of id. A blank lang uses the stored
// overview language.
func (r *PaperRepository) GetBlog(ctx context.Context, id, lang string) string {
	if strings.TrimSpace(lang) == "" {
		lang = r.OverviewLanguage()
	}
	return r.source.FetchOverview(ctx, id, domain.NormalizeLanguage(lang))
}

// ToggleBookmark flips the bookmark state of id and returns the new state.
// The store is written first; the in-memory set only changes when it succeeds.
func (r *PaperRepository) ToggleBookmark(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, domain.NewValidationError("paper_id", "paper id is required")
	}

	r.mu.Lock()
	_, exists := r.bookmarks[id]
	added := !exists
	if err := r.persist(ctx, id, added); err != nil {
		r.mu.Unlock()
		return exists, err
	}
	r.apply(id, added)
	total := len(r.bookmarks)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RecordBookmarkToggled(added, total)
	}
	r.publish(ctx, events.NewBookmarkEvent(id, added, r.instanceID))

	return added, nil
}

// ApplyBookmarkEvent applies a bookmark change made by another instance.
// Events are idempotent and never republished.
func (r *PaperRepository) ApplyBookmarkEvent(ctx context.Context, event events.Event) error {
	id := strings.TrimSpace(event.PaperID)
	if id == "" {
		return domain.NewValidationError("paper_id", "paper id is required")
	}
	added := event.Added()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bookmarks[id]; exists == added {
		return nil
	}
	if err := r.persist(ctx, id, added); err != nil {
		return err
	}
	r.apply(id, added)

	if r.metrics != nil {
		r.metrics.SetBookmarks(len(r.bookmarks))
	}
	log := observability.WithEventContext(observability.WithPaperContext(r.logger, id), event.ID.String(), string(event.Type))
	log.Debug().
		Str("origin", event.Source).
		Msg("applied remote bookmark change")
	return nil
}

// IsBookmarked reports whether id is bookmarked.
func (r *PaperRepository) IsBookmarked(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bookmarks[strings.TrimSpace(id)]
	return ok
}

// BookmarkIDs returns a sorted snapshot of the bookmark set.
func (r *PaperRepository) BookmarkIDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.bookmarks))
	for id := range r.bookmarks {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// GetBookmarks resolves every bookmarked paper through the source. The result
// has exactly one entry per bookmark, in id order; papers that failed to load
// are error placeholders.
func (r *PaperRepository) GetBookmarks(ctx context.Context) []domain.Paper {
	ids := r.BookmarkIDs()
	papers := make([]domain.Paper, len(ids))
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.fanout)
	for i, id := range ids {
		g.Go(func() error {
			papers[i] = r.source.FetchDetails(gctx, id)
			return nil
		})
	}
	_ = g.Wait()

	if r.metrics != nil {
		r.metrics.RecordBookmarkFanout(time.Since(start).Seconds())
	}
	r.recordList("bookmarks", papers)
	return papers
}

// OverviewLanguage returns the preferred overview language.
func (r *PaperRepository) OverviewLanguage() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.language
}

// SetOverviewLanguage stores the preferred overview language.
func (r *PaperRepository) SetOverviewLanguage(ctx context.Context, lang string) error {
	lang = domain.NormalizeLanguage(lang)
	if err := r.store.SetPreference(ctx, domain.PreferenceOverviewLanguage, lang); err != nil {
		return fmt.Errorf("saving overview language: %w", err)
	}

	r.mu.Lock()
	r.language = lang
	r.mu.Unlock()
	return nil
}

// persist writes the change to the store. Caller holds r.mu.
func (r *PaperRepository) persist(ctx context.Context, id string, added bool) error {
	if added {
		if err := r.store.AddBookmark(ctx, id); err != nil {
			return fmt.Errorf("adding bookmark %s: %w", id, err)
		}
		return nil
	}
	if err := r.store.RemoveBookmark(ctx, id); err != nil {
		return fmt.Errorf("removing bookmark %s: %w", id, err)
	}
	return nil
}

// apply mutates the in-memory set. Caller holds r.mu.
func (r *PaperRepository) apply(id string, added bool) {
	if added {
		r.bookmarks[id] = struct{}{}
	} else {
		delete(r.bookmarks, id)
	}
}

func (r *PaperRepository) publish(ctx context.Context, event events.Event) {
	if _, noop := r.publisher.(events.NoopPublisher); noop {
		return
	}
	err := r.publisher.Publish(ctx, event)
	if err != nil {
		r.logger.Warn().Err(err).
			Str("paper_id", event.PaperID).
			Str("event_type", string(event.Type)).
			Msg("failed to publish bookmark event")
	}
	if r.metrics == nil {
		return
	}
	if err != nil {
		r.metrics.RecordEventPublishFailed(string(event.Type))
	} else {
		r.metrics.RecordEventPublished(string(event.Type))
	}
}

func (r *PaperRepository) recordList(operation string, papers []domain.Paper) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordPapersReturned(operation, len(papers))
	placeholders := 0
	for _, p := range papers {
		if p.IsErrorPlaceholder() {
			placeholders++
		}
	}
	if placeholders > 0 {
		r.metrics.RecordPlaceholderPapers(placeholders)
	}
}
