package state

import (
	"context"
	"testing"

	"github.com/aluiziolira/anime-corsair/jikan"
	"github.com/aluiziolira/anime-corsair/models"
)

func TestLoadByID(t *testing.T) {
	catalog := newFakeCatalog()
	store := NewDetailStore(context.Background(), catalog, discardLogger())

	store.LoadByID(20)
	if snap := store.Snapshot(); !snap.Loading || snap.ID != 20 {
		t.Fatalf("state on invocation = %+v", snap)
	}
	c := catalog.next(t)
	if c.kind != "by_id" || c.id != 20 {
		t.Fatalf("call = %+v", c)
	}
	c.reply <- result{anime: &models.Anime{ID: 20, Title: "Naruto"}}
	store.Wait()

	got := store.Snapshot()
	if got.Item == nil || got.Item.ID != 20 || got.Loading || got.Error != "" {
		t.Fatalf("state = %+v", got)
	}
}

func TestClearDetailDiscardsLateResponse(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.ignoreCancel = true
	store := NewDetailStore(context.Background(), catalog, discardLogger())

	store.LoadByID(1)
	c := catalog.next(t)
	store.ClearDetail()

	if c.ctx.Err() == nil {
		t.Fatalf("clear should cancel the in-flight request")
	}

	c.reply <- result{anime: &models.Anime{ID: 1, Title: "Cowboy Bebop"}}
	store.Wait()

	got := store.Snapshot()
	if got.Item != nil || got.Loading || got.Error != "" {
		t.Fatalf("stale response applied after clear: %+v", got)
	}
}

func TestLaterDetailLoadWins(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.ignoreCancel = true
	store := NewDetailStore(context.Background(), catalog, discardLogger())

	store.LoadByID(1)
	first := catalog.next(t)
	store.ClearDetail()
	store.LoadByID(2)
	second := catalog.next(t)

	second.reply <- result{anime: &models.Anime{ID: 2, Title: "B"}}
	first.reply <- result{anime: &models.Anime{ID: 1, Title: "A"}}
	store.Wait()

	got := store.Snapshot()
	if got.Item == nil || got.Item.ID != 2 {
		t.Fatalf("item = %+v, want id 2", got.Item)
	}
}

func TestLoadingDifferentIDDropsPreviousItem(t *testing.T) {
	catalog := newFakeCatalog()
	store := NewDetailStore(context.Background(), catalog, discardLogger())

	store.LoadByID(1)
	catalog.next(t).reply <- result{anime: &models.Anime{ID: 1, Title: "A"}}
	store.Wait()

	store.LoadByID(1)
	if got := store.Snapshot(); got.Item == nil {
		t.Fatalf("reloading the same id should keep the item visible")
	}
	catalog.next(t).reply <- result{anime: &models.Anime{ID: 1, Title: "A"}}
	store.Wait()

	store.LoadByID(2)
	if got := store.Snapshot(); got.Item != nil {
		t.Fatalf("item for id 1 visible while loading id 2")
	}
	catalog.next(t).reply <- result{anime: &models.Anime{ID: 2, Title: "B"}}
	store.Wait()
}

func TestDetailFailureMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "rate limited", err: jikan.ErrRateLimited{Attempts: 4}, want: MsgRateLimited},
		{name: "not found verbatim", err: jikan.ErrTransport{StatusCode: 404}, want: "API error: 404"},
		{name: "blank default", err: blankError{}, want: MsgDetailFailed},
		{name: "cancelled", err: jikan.ErrCancelled{Err: context.Canceled}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := newFakeCatalog()
			store := NewDetailStore(context.Background(), catalog, discardLogger())

			store.LoadByID(5)
			catalog.next(t).reply <- result{err: tt.err}
			store.Wait()

			got := store.Snapshot()
			if got.Error != tt.want || got.Loading {
				t.Fatalf("state = %+v, want error %q", got, tt.want)
			}
		})
	}
}
