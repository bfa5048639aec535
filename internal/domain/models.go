package domain

import (
	"time"
)

// AuthorPreview is the compact author representation embedded in posts
type AuthorPreview struct {
	ID                       string `json:"id"`
	Name                     string `json:"name"`
	ProfileImageThumbnailURL string `json:"profileImageThumbnailURL,omitempty"`
}

// Attachment is a piece of media attached to a post
type Attachment struct {
	ContentURL string `json:"contentUrl"`
	Type       string `json:"type"`
	Caption    string `json:"caption,omitempty"`
}

// PostPreview is the lightweight list representation of a post
type PostPreview struct {
	PostID                    string    `json:"postId"`
	ContentSummary            string    `json:"contentSummary"`
	Author                    string    `json:"author"`
	CreatedAt                 time.Time `json:"createdAt"`
	Liked                     bool      `json:"liked"`
	LikeCount                 int       `json:"likeCount"`
	AttachmentCount           int       `json:"attachmentCount"`
	AttachmentPreviewImageURL string    `json:"attachmentPreviewImageUrl,omitempty"`
}

// PostDetail is the full representation of a post including attachments
type PostDetail struct {
	ID          string        `json:"id"`
	Content     string        `json:"content"`
	Author      AuthorPreview `json:"author"`
	CreatedAt   time.Time     `json:"createdAt"`
	LikesCount  int           `json:"likesCount"`
	Liked       bool          `json:"liked"`
	SharedCount int           `json:"sharedCount"`
	Attachments []Attachment  `json:"attachments"`
}

// Clone returns a copy that shares no slices with d
func (d PostDetail) Clone() PostDetail {
	if d.Attachments != nil {
		d.Attachments = append([]Attachment(nil), d.Attachments...)
	}
	return d
}

// Preview derives the list representation of a detail
func (d PostDetail) Preview() PostPreview {
	p := PostPreview{
		PostID:          d.ID,
		ContentSummary:  summarize(d.Content, 140),
		Author:          d.Author.Name,
		CreatedAt:       d.CreatedAt,
		Liked:           d.Liked,
		LikeCount:       d.LikesCount,
		AttachmentCount: len(d.Attachments),
	}
	if len(d.Attachments) > 0 {
		p.AttachmentPreviewImageURL = d.Attachments[0].ContentURL
	}
	return p
}

func summarize(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

// FeedPage is one page of the feed as returned by GET /feed
type FeedPage struct {
	Feed   []PostPreview `json:"feed"`
	Paging Paging        `json:"paging"`
}

// Paging carries the token for the next page, empty on the last page
type Paging struct {
	Next string `json:"next,omitempty"`
}

// NewPostRequest is the body of POST /posts
type NewPostRequest struct {
	ID          string       `json:"id"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachements,omitempty"`
}

// Detail builds the detail a freshly created post is expected to have
func (r NewPostRequest) Detail(author AuthorPreview, createdAt time.Time) PostDetail {
	return PostDetail{
		ID:          r.ID,
		Content:     r.Content,
		Author:      author,
		CreatedAt:   createdAt,
		Attachments: append([]Attachment(nil), r.Attachments...),
	}
}
