package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aluiziolira/anime-corsair/models"
)

func sampleAnime() *models.Anime {
	score := 8.75
	episodes := 26
	year := 1998
	return &models.Anime{
		ID:           1,
		URL:          "https://myanimelist.net/anime/1/Cowboy_Bebop",
		Title:        "Cowboy Bebop",
		TitleEnglish: "Cowboy Bebop",
		Images: models.Images{JPG: models.ImageSet{
			ImageURL:      "https://cdn.test/1.jpg",
			LargeImageURL: "https://cdn.test/1l.jpg",
		}},
		Score:    &score,
		Type:     "TV",
		Episodes: &episodes,
		Year:     &year,
		Genres:   []models.Genre{{ID: 1, Name: "Action"}, {ID: 24, Name: "Sci-Fi"}},
		Status:   "Finished Airing",
	}
}

func TestCSVWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "anime.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}

	sparse := &models.Anime{ID: 2, Title: "Unknown Show"}
	if err := writer.Write([]*models.Anime{sampleAnime(), sparse}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records=%d, want 3", len(records))
	}
	if records[0][0] != "id" || records[0][1] != "title" {
		t.Fatalf("unexpected header: %v", records[0])
	}

	full := records[1]
	want := []string{"1", "Cowboy Bebop", "Cowboy Bebop", "TV", "26", "8.8", "1998", "Action|Sci-Fi", "Finished Airing", "https://cdn.test/1l.jpg", "https://myanimelist.net/anime/1/Cowboy_Bebop"}
	for i := range want {
		if full[i] != want[i] {
			t.Fatalf("column %s = %q, want %q", csvHeader[i], full[i], want[i])
		}
	}

	empty := records[2]
	if empty[5] != "N/A" || empty[6] != "N/A" || empty[4] != "" {
		t.Fatalf("sparse row = %v", empty)
	}
}

func TestJSONWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "anime.jsonl")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}

	if err := writer.Write([]*models.Anime{sampleAnime()}); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	count := 0
	for scanner.Scan() {
		var decoded models.Anime
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid json line: %v", err)
		}
		if decoded.ID != 1 || decoded.Score == nil || *decoded.Score != 8.75 {
			t.Fatalf("decoded = %+v", decoded)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan json: %v", err)
	}
	if count != 1 {
		t.Fatalf("json lines=%d, want 1", count)
	}
}

func TestJSONWriterValidateEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jsonl")
	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}
	if err := writer.Validate(); err == nil {
		t.Fatalf("expected empty file error")
	}
}

func TestNewWriterDual(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "nested", "anime.csv")
	jsonPath := filepath.Join(dir, "nested", "anime.jsonl")

	writer, err := NewWriter("DUAL", csvPath)
	if err != nil {
		t.Fatalf("create dual writer: %v", err)
	}

	if err := writer.Write([]*models.Anime{sampleAnime()}); err != nil {
		t.Fatalf("write dual: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close dual: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate dual: %v", err)
	}

	if info, err := os.Stat(csvPath); err != nil || info.Size() == 0 {
		t.Fatalf("csv file missing or empty")
	}
	if info, err := os.Stat(jsonPath); err != nil || info.Size() == 0 {
		t.Fatalf("json file missing or empty")
	}
}

func TestNewWriterRejectsUnknownFormat(t *testing.T) {
	if _, err := NewWriter("xml", filepath.Join(t.TempDir(), "anime.xml")); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}
