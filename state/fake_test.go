package state

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aluiziolira/anime-corsair/jikan"
	"github.com/aluiziolira/anime-corsair/models"
)

type result struct {
	page  *models.SearchResultPage
	anime *models.Anime
	err   error
}

type call struct {
	kind  string
	query string
	page  int
	id    int
	ctx   context.Context
	reply chan result
}

// fakeCatalog hands every call to the test, which decides when and how it
// settles.
type fakeCatalog struct {
	calls chan *call
	// ignoreCancel makes calls wait for a reply even after cancellation,
	// simulating a response that arrives late.
	ignoreCancel bool
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{calls: make(chan *call, 16)}
}

func (f *fakeCatalog) await(ctx context.Context, c *call) result {
	c.ctx = ctx
	c.reply = make(chan result, 1)
	f.calls <- c
	if f.ignoreCancel {
		return <-c.reply
	}
	select {
	case r := <-c.reply:
		return r
	case <-ctx.Done():
		return result{err: jikan.ErrCancelled{Err: context.Cause(ctx)}}
	}
}

func (f *fakeCatalog) SearchAnime(ctx context.Context, query string, page int) (*models.SearchResultPage, error) {
	r := f.await(ctx, &call{kind: "search", query: query, page: page})
	return r.page, r.err
}

func (f *fakeCatalog) TopAnime(ctx context.Context, page int) (*models.SearchResultPage, error) {
	r := f.await(ctx, &call{kind: "top", page: page})
	return r.page, r.err
}

func (f *fakeCatalog) AnimeByID(ctx context.Context, id int) (*models.Anime, error) {
	r := f.await(ctx, &call{kind: "by_id", id: id})
	return r.anime, r.err
}

func (f *fakeCatalog) next(t *testing.T) *call {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(5 * time.Second):
		t.Fatalf("expected a catalog call")
		return nil
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pageOf(ids []int, lastPage int, hasNext bool, total int) *models.SearchResultPage {
	items := make([]models.Anime, 0, len(ids))
	for _, id := range ids {
		items = append(items, models.Anime{ID: id, Title: "Anime"})
	}
	return &models.SearchResultPage{
		Items:       items,
		CurrentPage: 1,
		LastPage:    lastPage,
		HasNextPage: hasNext,
		TotalItems:  total,
	}
}

func ids(items []models.Anime) []int {
	out := make([]int, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}
