// Package state holds the listing and detail stores consumed by the
// rendering layer. Stores are the only translators from client errors to
// user-facing text.
package state

import (
	"context"

	"github.com/aluiziolira/anime-corsair/jikan"
	"github.com/aluiziolira/anime-corsair/models"
)

// User-facing messages.
const (
	MsgRateLimited  = "Too many requests. Please wait a moment before searching again."
	MsgSearchFailed = "Failed to fetch anime"
	MsgTopFailed    = "Failed to fetch top anime"
	MsgDetailFailed = "Failed to fetch anime details"
)

// Catalog is the subset of the client the stores depend on.
type Catalog interface {
	SearchAnime(ctx context.Context, query string, page int) (*models.SearchResultPage, error)
	TopAnime(ctx context.Context, page int) (*models.SearchResultPage, error)
	AnimeByID(ctx context.Context, id int) (*models.Anime, error)
}

// Message maps a load failure to the text shown to the user. The boolean is
// false for cancellations, which settle without an error.
func Message(err error, fallback string) (string, bool) {
	if err == nil {
		return "", false
	}
	if jikan.IsCancelled(err) {
		return "", false
	}
	if jikan.IsRateLimited(err) {
		return MsgRateLimited, true
	}
	if msg := err.Error(); msg != "" {
		return msg, true
	}
	return fallback, true
}
