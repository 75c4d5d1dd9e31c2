// Package models defines data structures for the catalog client and stores.
package models

import "time"

// Anime is a single catalog entry as returned by the upstream API.
// Every field other than ID is a point-in-time snapshot and may be absent.
type Anime struct {
	ID           int      `json:"mal_id"`
	URL          string   `json:"url,omitempty"`
	Title        string   `json:"title"`
	TitleEnglish string   `json:"title_english,omitempty"`
	Images       Images   `json:"images"`
	Score        *float64 `json:"score,omitempty"`
	ScoredBy     *int     `json:"scored_by,omitempty"`
	Type         string   `json:"type,omitempty"`
	Episodes     *int     `json:"episodes,omitempty"`
	Year         *int     `json:"year,omitempty"`
	Genres       []Genre  `json:"genres"`
	Synopsis     string   `json:"synopsis,omitempty"`
	Status       string   `json:"status,omitempty"`
	Rating       string   `json:"rating,omitempty"`
	Duration     string   `json:"duration,omitempty"`
	Popularity   *int     `json:"popularity,omitempty"`
	Trailer      Trailer  `json:"trailer"`
	Aired        Aired    `json:"aired"`
}

// Images groups the image variants published for an entry.
type Images struct {
	JPG ImageSet `json:"jpg"`
}

// ImageSet holds the small and large variants of one image format.
type ImageSet struct {
	ImageURL      string `json:"image_url,omitempty"`
	LargeImageURL string `json:"large_image_url,omitempty"`
}

// Genre is a named genre tag; upstream order is meaningful.
type Genre struct {
	ID   int    `json:"mal_id"`
	Name string `json:"name"`
}

// Trailer points at a promotional video.
type Trailer struct {
	URL      string `json:"url,omitempty"`
	EmbedURL string `json:"embed_url,omitempty"`
}

// Aired describes the airing window.
type Aired struct {
	Prop struct {
		From struct {
			Year *int `json:"year,omitempty"`
		} `json:"from"`
	} `json:"prop"`
}

// SearchResultPage is the result of one listing request.
type SearchResultPage struct {
	Items       []Anime `json:"items"`
	CurrentPage int     `json:"current_page"`
	LastPage    int     `json:"last_page"`
	HasNextPage bool    `json:"has_next_page"`
	TotalItems  int     `json:"total_items"`
}

// ListResponse is the upstream envelope for listing endpoints.
type ListResponse struct {
	Data       []Anime    `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Pagination is the upstream pagination object.
type Pagination struct {
	CurrentPage     int  `json:"current_page"`
	LastVisiblePage int  `json:"last_visible_page"`
	HasNextPage     bool `json:"has_next_page"`
	Items           struct {
		Count   int `json:"count"`
		Total   int `json:"total"`
		PerPage int `json:"per_page"`
	} `json:"items"`
}

// DetailResponse is the upstream envelope for the single item endpoint.
type DetailResponse struct {
	Data Anime `json:"data"`
}

// Page converts the listing envelope into a SearchResultPage.
func (r ListResponse) Page() *SearchResultPage {
	items := r.Data
	if items == nil {
		items = []Anime{}
	}
	return &SearchResultPage{
		Items:       items,
		CurrentPage: r.Pagination.CurrentPage,
		LastPage:    r.Pagination.LastVisiblePage,
		HasNextPage: r.Pagination.HasNextPage,
		TotalItems:  r.Pagination.Items.Total,
	}
}

// ExportResult summarises a finished export walk.
type ExportResult struct {
	Source     string         `json:"source"`
	Pages      int            `json:"pages"`
	Fetched    int            `json:"fetched"`
	LastPage   int            `json:"last_page"`
	FailedPage int            `json:"failed_page,omitempty"`
	Errors     map[string]int `json:"errors,omitempty"`
	StartTime  time.Time      `json:"start_time"`
	EndTime    time.Time      `json:"end_time"`
}
