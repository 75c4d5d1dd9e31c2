package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListing returns the current listing snapshot.
func (s *Server) handleListing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.query.Snapshot())
}

func (s *Server) handleClearListing(w http.ResponseWriter, r *http.Request) {
	s.query.ClearResults()
	writeJSON(w, http.StatusOK, s.query.Snapshot())
}

// handleSearch starts a text search. A blank q falls back to the top-ranked
// listing, the same as typing an empty query.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	switch {
	case q == "":
		s.query.SetQuery("")
	case page == 1:
		s.query.SetQuery(q)
	default:
		s.query.LoadTextSearch(q, page)
	}
	writeJSON(w, http.StatusAccepted, s.query.Snapshot())
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.query.LoadTopRanked(page)
	writeJSON(w, http.StatusAccepted, s.query.Snapshot())
}

// handleListingPage reloads the current listing at another page.
func (s *Server) handleListingPage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("page") == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing query parameter 'page'"))
		return
	}
	page, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.query.SetPage(page)
	writeJSON(w, http.StatusAccepted, s.query.Snapshot())
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.detail.Snapshot())
}

func (s *Server) handleLoadDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid id %q", mux.Vars(r)["id"]))
		return
	}
	s.detail.LoadByID(id)
	writeJSON(w, http.StatusAccepted, s.detail.Snapshot())
}

func (s *Server) handleClearDetail(w http.ResponseWriter, r *http.Request) {
	s.detail.ClearDetail()
	writeJSON(w, http.StatusOK, s.detail.Snapshot())
}

// parsePage reads ?page=, defaulting to 1.
func parsePage(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, fmt.Errorf("invalid page %q", raw)
	}
	return page, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
