package state

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/aluiziolira/anime-corsair/models"
)

// QueryState is the listing snapshot read by the rendering layer. An empty
// Query means the top-ranked listing is shown.
type QueryState struct {
	Query        string         `json:"query"`
	Results      []models.Anime `json:"results"`
	Loading      bool           `json:"loading"`
	Error        string         `json:"error,omitempty"`
	CurrentPage  int            `json:"current_page"`
	TotalPages   int            `json:"total_pages"`
	HasNextPage  bool           `json:"has_next_page"`
	TotalResults int            `json:"total_results"`
}

// HasResults reports whether there is anything to render.
func (s QueryState) HasResults() bool {
	return len(s.Results) > 0
}

func initialQueryState() QueryState {
	return QueryState{
		Results:     []models.Anime{},
		CurrentPage: 1,
		TotalPages:  1,
	}
}

// QueryStore owns the listing state. Listing loads are fire-and-forget;
// only the most recently started listing may settle the state.
type QueryStore struct {
	ctx     context.Context
	catalog Catalog
	logger  *slog.Logger

	mu    sync.Mutex
	state QueryState
	epoch uint64

	wg sync.WaitGroup
}

// NewQueryStore builds an empty listing store. Loads run under ctx.
func NewQueryStore(ctx context.Context, catalog Catalog, logger *slog.Logger) *QueryStore {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryStore{
		ctx:     ctx,
		catalog: catalog,
		logger:  logger,
		state:   initialQueryState(),
	}
}

// LoadTextSearch searches for query and records page as the current page.
func (s *QueryStore) LoadTextSearch(query string, page int) {
	s.mu.Lock()
	epoch, page := s.beginLocked(query, page)
	s.mu.Unlock()

	s.run(epoch, "search", MsgSearchFailed, func(ctx context.Context) (*models.SearchResultPage, error) {
		return s.catalog.SearchAnime(ctx, query, page)
	})
}

// LoadTopRanked loads a page of the top-ranked listing and clears the query.
func (s *QueryStore) LoadTopRanked(page int) {
	s.mu.Lock()
	epoch, page := s.beginLocked("", page)
	s.mu.Unlock()

	s.run(epoch, "top", MsgTopFailed, func(ctx context.Context) (*models.SearchResultPage, error) {
		return s.catalog.TopAnime(ctx, page)
	})
}

// SetQuery changes the query. A query change always resets to page 1; a
// blank query falls back to the top-ranked listing.
func (s *QueryStore) SetQuery(query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		s.LoadTopRanked(1)
		return
	}
	s.LoadTextSearch(query, 1)
}

// SetPage reloads the current listing at page.
func (s *QueryStore) SetPage(page int) {
	s.mu.Lock()
	query := s.state.Query
	s.mu.Unlock()

	if strings.TrimSpace(query) == "" {
		s.LoadTopRanked(page)
		return
	}
	s.LoadTextSearch(query, page)
}

// ClearResults resets results and pagination, discarding in-flight loads.
func (s *QueryStore) ClearResults() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	query := s.state.Query
	s.state = initialQueryState()
	s.state.Query = query
}

// Snapshot returns a copy of the current state.
func (s *QueryStore) Snapshot() QueryState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.state
	out.Results = make([]models.Anime, len(s.state.Results))
	copy(out.Results, s.state.Results)
	return out
}

// Wait blocks until every started load has settled.
func (s *QueryStore) Wait() {
	s.wg.Wait()
}

// beginLocked enters Loading for a new listing request and returns its epoch.
func (s *QueryStore) beginLocked(query string, page int) (uint64, int) {
	if page < 1 {
		page = 1
	}
	s.epoch++
	s.state.Query = query
	s.state.CurrentPage = page
	s.state.Loading = true
	s.state.Error = ""
	return s.epoch, page
}

func (s *QueryStore) run(epoch uint64, op, fallback string, fetch func(context.Context) (*models.SearchResultPage, error)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		page, err := fetch(s.ctx)
		s.settle(epoch, op, fallback, page, err)
	}()
}

func (s *QueryStore) settle(epoch uint64, op, fallback string, page *models.SearchResultPage, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		s.logger.Debug("discarding stale listing result",
			slog.String("operation", op),
			slog.Uint64("epoch", epoch),
			slog.Uint64("current", s.epoch),
		)
		return
	}

	s.state.Loading = false
	if err != nil {
		if msg, ok := Message(err, fallback); ok {
			s.state.Error = msg
			s.logger.Warn("listing load failed",
				slog.String("operation", op),
				slog.String("query", s.state.Query),
				slog.Int("page", s.state.CurrentPage),
				slog.Any("error", err),
			)
		}
		return
	}
	if page == nil {
		page = &models.SearchResultPage{}
	}

	items := make([]models.Anime, len(page.Items))
	copy(items, page.Items)
	s.state.Results = items
	s.state.TotalPages = max(page.LastPage, 1)
	s.state.HasNextPage = page.HasNextPage
	s.state.TotalResults = page.TotalItems
	s.state.Error = ""

	s.logger.Debug("listing settled",
		slog.String("operation", op),
		slog.Int("page", s.state.CurrentPage),
		slog.Int("results", len(items)),
	)
}
