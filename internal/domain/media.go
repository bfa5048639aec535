package domain

import (
	"github.com/google/uuid"
)

// PinnedMediaCount is the number of leading media items shown as pinned
const PinnedMediaCount = 10

// MediaType is the gallery section a media item belongs to
type MediaType string

const (
	MediaPinned  MediaType = "pinned"
	MediaRecents MediaType = "recents"
)

// Media is an image addressed by URL; Data is empty until it has been loaded
type Media struct {
	ID                 string
	URL                string
	Data               []byte
	Type               MediaType
	AccessibilityLabel string
}

// Loaded reports whether the image bytes are present
func (m Media) Loaded() bool { return len(m.Data) > 0 }

// WithData returns a copy of m carrying data
func (m Media) WithData(data []byte) Media {
	m.Data = data
	return m
}

// MediaFromURLs builds unloaded media for urls; the first PinnedMediaCount
// are pinned and the rest are recents.
func MediaFromURLs(urls []string) []Media {
	items := make([]Media, 0, len(urls))
	for i, u := range urls {
		t := MediaRecents
		if i < PinnedMediaCount {
			t = MediaPinned
		}
		items = append(items, Media{ID: uuid.NewString(), URL: u, Type: t})
	}
	return items
}

// MediaGroups holds a media list split by section
type MediaGroups struct {
	Pinned  []Media
	Recents []Media
}

// GroupMedia partitions items by type, preserving order
func GroupMedia(items []Media) MediaGroups {
	var g MediaGroups
	for _, m := range items {
		if m.Type == MediaPinned {
			g.Pinned = append(g.Pinned, m)
		} else {
			g.Recents = append(g.Recents, m)
		}
	}
	return g
}
