package http

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joshdurbin/newsfeed/internal/domain"
	"github.com/joshdurbin/newsfeed/internal/transport/client"
)

// serveFixture answers r from the JSON file named by the fixture URL header.
// It reports false, leaving w untouched, when the request carries no usable
// fixture. A feed fixture is repeated multiply times.
func (h *Handler) serveFixture(w http.ResponseWriter, r *http.Request, multiply int) bool {
	loc := r.Header.Get(client.HeaderFixtureURL)
	if loc == "" || h.fixtureDir == "" {
		return false
	}

	path, ok := h.fixturePath(loc)
	if !ok {
		log.Printf("[WARN] Ignoring fixture outside %s: %s", h.fixtureDir, loc)
		return false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[WARN] Failed to read fixture %s: %v", path, err)
		return false
	}

	if multiply > 1 {
		var page domain.FeedPage
		if err := json.Unmarshal(data, &page); err != nil {
			log.Printf("[ERROR] Fixture %s is not a feed page: %v", path, err)
			http.Error(w, "Invalid fixture", http.StatusInternalServerError)
			return true
		}
		feed := make([]domain.PostPreview, 0, len(page.Feed)*multiply)
		for range multiply {
			feed = append(feed, page.Feed...)
		}
		page.Feed = feed
		writeJSON(w, http.StatusOK, page)
		return true
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(client.HeaderFixture, r.Header.Get(client.HeaderFixture))
	w.Write(data)
	return true
}

// fixturePath maps a file URL to a path inside the fixture directory
func (h *Handler) fixturePath(loc string) (string, bool) {
	u, err := url.Parse(loc)
	if err != nil || u.Scheme != "file" {
		return "", false
	}
	dir, err := filepath.Abs(h.fixtureDir)
	if err != nil {
		return "", false
	}

	path := filepath.Clean(filepath.FromSlash(u.Path))
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return path, true
}
