package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aluiziolira/anime-corsair/models"
)

const unknownLabel = "N/A"

// ValidateAnime ensures an entry carries its identity and a title.
func ValidateAnime(a *models.Anime) error {
	if a == nil {
		return fmt.Errorf("anime is nil")
	}
	if a.ID <= 0 {
		return fmt.Errorf("anime missing id for %q", a.Title)
	}
	if strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("anime %d missing title", a.ID)
	}
	if a.Score != nil && (*a.Score < 0 || *a.Score > 10) {
		return fmt.Errorf("anime %d score %.2f out of range", a.ID, *a.Score)
	}
	return nil
}

// NormalizeAnime trims text fields in place.
func NormalizeAnime(a *models.Anime) {
	if a == nil {
		return
	}
	a.Title = NormalizeText(a.Title)
	a.TitleEnglish = NormalizeText(a.TitleEnglish)
	a.Synopsis = strings.TrimSpace(a.Synopsis)
	a.Type = NormalizeText(a.Type)
	a.Status = NormalizeText(a.Status)
}

// NormalizeText collapses runs of whitespace.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// DisplayYear returns the release year, falling back to the airing start year.
func DisplayYear(a *models.Anime) (int, bool) {
	if a == nil {
		return 0, false
	}
	if a.Year != nil && *a.Year > 0 {
		return *a.Year, true
	}
	if from := a.Aired.Prop.From.Year; from != nil && *from > 0 {
		return *from, true
	}
	return 0, false
}

// YearLabel renders DisplayYear, or N/A when unknown.
func YearLabel(a *models.Anime) string {
	if year, ok := DisplayYear(a); ok {
		return strconv.Itoa(year)
	}
	return unknownLabel
}

// PrimaryImage prefers the large image and falls back to the small one.
func PrimaryImage(a *models.Anime) string {
	if a == nil {
		return ""
	}
	if a.Images.JPG.LargeImageURL != "" {
		return a.Images.JPG.LargeImageURL
	}
	return a.Images.JPG.ImageURL
}

// ScoreLabel formats the score with one decimal, or N/A when unscored.
func ScoreLabel(a *models.Anime) string {
	if a == nil || a.Score == nil || *a.Score == 0 {
		return unknownLabel
	}
	return strconv.FormatFloat(*a.Score, 'f', 1, 64)
}

// TypeLabel returns the entry kind, or N/A.
func TypeLabel(a *models.Anime) string {
	if a == nil || a.Type == "" {
		return unknownLabel
	}
	return a.Type
}

// TrailerURL prefers the embeddable trailer link.
func TrailerURL(a *models.Anime) string {
	if a == nil {
		return ""
	}
	if a.Trailer.EmbedURL != "" {
		return a.Trailer.EmbedURL
	}
	return a.Trailer.URL
}

// GenreNames lists genre names in upstream order.
func GenreNames(a *models.Anime) []string {
	if a == nil {
		return nil
	}
	names := make([]string, 0, len(a.Genres))
	for _, g := range a.Genres {
		if name := strings.TrimSpace(g.Name); name != "" {
			names = append(names, name)
		}
	}
	return names
}
