package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/joshdurbin/newsfeed/internal/domain"
	"github.com/joshdurbin/newsfeed/internal/service"
	"github.com/joshdurbin/newsfeed/internal/transport/client"
)

// Handler holds the HTTP handlers for the feed API
type Handler struct {
	feed       service.FeedService
	fixtureDir string
}

// NewHandler creates a new HTTP handler. Fixture headers are honoured only
// for files under fixtureDir; an empty fixtureDir disables them.
func NewHandler(feed service.FeedService, fixtureDir string) *Handler {
	return &Handler{
		feed:       feed,
		fixtureDir: fixtureDir,
	}
}

// Feed handles GET /feed
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	multiply := fixtureMultiply(r)
	if h.serveFixture(w, r, multiply) {
		return
	}

	page, err := h.feed.Feed(r.Context(), r.URL.Query().Get("pageToken"), multiply)
	if err != nil {
		log.Printf("[ERROR] Failed to load feed page: %v", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// GetPost handles GET /posts/{id}
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "Post ID is required", http.StatusBadRequest)
		return
	}
	if h.serveFixture(w, r, 1) {
		return
	}

	post, err := h.feed.Post(r.Context(), id)
	if err != nil {
		log.Printf("[ERROR] Failed to get post '%s': %v", id, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// CreatePost handles POST /posts
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req domain.NewPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[ERROR] Invalid JSON in create post request: %v", err)
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	post, err := h.feed.CreatePost(r.Context(), req)
	if err != nil {
		log.Printf("[ERROR] Failed to create post '%s': %v", req.ID, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// Interact handles POST /posts/{id}/interact. The path id wins over any
// postId in the body.
func (h *Handler) Interact(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "Post ID is required", http.StatusBadRequest)
		return
	}

	var req domain.InteractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[ERROR] Invalid JSON in interaction request: %v", err)
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	req.PostID = id

	result, err := h.feed.Interact(r.Context(), req)
	if err != nil {
		log.Printf("[ERROR] Failed to %s post '%s': %v", req.Action, id, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Media handles GET /media/{name}
func (h *Handler) Media(w http.ResponseWriter, r *http.Request) {
	data, err := h.feed.Image(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[ERROR] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrPostNotFound), errors.Is(err, service.ErrUnknownMedia):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidAction),
		errors.Is(err, service.ErrInvalidPost),
		errors.Is(err, service.ErrInvalidToken):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrDuplicatePost):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func fixtureMultiply(r *http.Request) int {
	n, err := strconv.Atoi(r.Header.Get(client.HeaderFixtureMultiply))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
