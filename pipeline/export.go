package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aluiziolira/anime-corsair/jikan"
	"github.com/aluiziolira/anime-corsair/models"
)

// Lister is the listing subset of the catalog client.
type Lister interface {
	SearchAnime(ctx context.Context, query string, page int) (*models.SearchResultPage, error)
	TopAnime(ctx context.Context, page int) (*models.SearchResultPage, error)
}

// Exporter walks listing pages and feeds every entry into a Pipeline.
type Exporter struct {
	lister Lister
	logger *slog.Logger
}

// NewExporter builds an exporter over lister.
func NewExporter(lister Lister, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{lister: lister, logger: logger}
}

// Export fetches up to pages pages starting at page 1, searching for query or
// walking the top-ranked listing when query is blank. The walk stops at the
// first failed page or when upstream reports no next page. The pipeline is
// left open; the caller closes it.
func (e *Exporter) Export(ctx context.Context, p *Pipeline, query string, pages int) (*models.ExportResult, error) {
	if pages < 1 {
		return nil, jikan.ErrInvalidArgument{Field: "pages", Err: fmt.Errorf("must be positive, got %d", pages)}
	}
	query = strings.TrimSpace(query)

	result := &models.ExportResult{
		Source:    "top",
		Errors:    make(map[string]int),
		StartTime: time.Now(),
	}
	if query != "" {
		result.Source = "search:" + query
	}

	fetch := func(ctx context.Context, page int) (*models.SearchResultPage, error) {
		if query != "" {
			return e.lister.SearchAnime(ctx, query, page)
		}
		return e.lister.TopAnime(ctx, page)
	}

	g, gctx := errgroup.WithContext(ctx)
	pageCh := make(chan []models.Anime, 1)

	g.Go(func() error {
		defer close(pageCh)
		for page := 1; page <= pages; page++ {
			listing, err := fetch(gctx, page)
			if err != nil {
				result.FailedPage = page
				result.Errors[jikan.ErrorLabel(err)]++
				return fmt.Errorf("fetch page %d: %w", page, err)
			}
			result.Pages++
			result.LastPage = listing.LastPage
			e.logger.Debug("export page fetched",
				slog.String("source", result.Source),
				slog.Int("page", page),
				slog.Int("items", len(listing.Items)),
			)

			select {
			case pageCh <- listing.Items:
			case <-gctx.Done():
				return gctx.Err()
			}
			if !listing.HasNextPage {
				return nil
			}
		}
		return nil
	})

	g.Go(func() error {
		for items := range pageCh {
			batch := make([]*models.Anime, len(items))
			for i := range items {
				batch[i] = &items[i]
			}
			if err := p.Process(batch...); err != nil {
				return fmt.Errorf("process page: %w", err)
			}
			result.Fetched += len(items)
		}
		return nil
	})

	err := g.Wait()
	result.EndTime = time.Now()
	return result, err
}
