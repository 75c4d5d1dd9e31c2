package state

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aluiziolira/anime-corsair/models"
)

// DetailState is the single-item snapshot read by the detail view.
type DetailState struct {
	ID      int           `json:"id,omitempty"`
	Item    *models.Anime `json:"item"`
	Loading bool          `json:"loading"`
	Error   string        `json:"error,omitempty"`
}

// DetailStore owns the detail state.
type DetailStore struct {
	ctx     context.Context
	catalog Catalog
	logger  *slog.Logger

	mu     sync.Mutex
	state  DetailState
	epoch  uint64
	scope  context.Context
	cancel context.CancelFunc

	wg sync.WaitGroup
}

// NewDetailStore builds an empty detail store. Loads run under ctx.
func NewDetailStore(ctx context.Context, catalog Catalog, logger *slog.Logger) *DetailStore {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &DetailStore{
		ctx:     ctx,
		catalog: catalog,
		logger:  logger,
	}
	s.scope, s.cancel = context.WithCancel(ctx)
	return s
}

// LoadByID fetches a single entry. An item for a different id is dropped
// immediately so it is never shown while the new one loads.
func (s *DetailStore) LoadByID(id int) {
	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	scope := s.scope
	if s.state.Item != nil && s.state.Item.ID != id {
		s.state.Item = nil
	}
	s.state.ID = id
	s.state.Loading = true
	s.state.Error = ""
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		anime, err := s.catalog.AnimeByID(scope, id)
		s.settle(epoch, id, anime, err)
	}()
}

// ClearDetail resets the state when the viewer leaves the detail view.
// In-flight loads are cancelled and their late results discarded.
func (s *DetailStore) ClearDetail() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	s.cancel()
	s.scope, s.cancel = context.WithCancel(s.ctx)
	s.state = DetailState{}
}

// Snapshot returns a copy of the current state.
func (s *DetailStore) Snapshot() DetailState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.state
	if s.state.Item != nil {
		item := *s.state.Item
		out.Item = &item
	}
	return out
}

// Wait blocks until every started load has settled.
func (s *DetailStore) Wait() {
	s.wg.Wait()
}

func (s *DetailStore) settle(epoch uint64, id int, anime *models.Anime, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		s.logger.Debug("discarding stale detail result", slog.Int("id", id), slog.Uint64("epoch", epoch))
		return
	}

	s.state.Loading = false
	if err != nil {
		if msg, ok := Message(err, MsgDetailFailed); ok {
			s.state.Error = msg
			s.logger.Warn("detail load failed", slog.Int("id", id), slog.Any("error", err))
		}
		return
	}

	s.state.Item = anime
	s.state.Error = ""
}
