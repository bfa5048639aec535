package service

import (
	"fmt"
	"time"

	"github.com/joshdurbin/newsfeed/internal/domain"
)

var seedAuthors = []domain.AuthorPreview{
	{ID: "a1", Name: "Ada Fernsby"},
	{ID: "a2", Name: "Omar Lindqvist"},
	{ID: "a3", Name: "Priya Castell"},
	{ID: "a4", Name: "Jun Okafor"},
}

var seedContent = []string{
	"Morning ride along the river. The fog finally lifted around the third bridge.",
	"Shipped the new onboarding flow today. Feedback welcome!",
	"Three weeks into learning the cello and my neighbours are being very patient.",
	"Reading list for the long weekend, suggestions in the replies.",
	"Tried the new ramen place on 5th. Broth was excellent, noodles a little soft.",
	"Sunset from the office roof. Not a bad way to end a release day.",
}

// GeneratePosts builds n deterministic posts, newest first, spaced an hour
// apart before now. Every third post carries image attachments served by
// the fixture server under baseURL.
func GeneratePosts(n int, now time.Time, baseURL string) []domain.PostDetail {
	posts := make([]domain.PostDetail, 0, n)
	for i := range n {
		id := fmt.Sprintf("post-%04d", i+1)
		d := domain.PostDetail{
			ID:          id,
			Content:     seedContent[i%len(seedContent)],
			Author:      seedAuthors[i%len(seedAuthors)],
			CreatedAt:   now.Add(-time.Duration(i) * time.Hour).UTC().Truncate(time.Second),
			LikesCount:  (i * 7) % 50,
			Liked:       i%5 == 0,
			SharedCount: i % 4,
		}
		if d.Liked && d.LikesCount == 0 {
			d.LikesCount = 1
		}
		if i%3 == 0 {
			for j := range 1 + i%2 {
				d.Attachments = append(d.Attachments, domain.Attachment{
					ContentURL: fmt.Sprintf("%s/media/%s-%d.png", baseURL, id, j),
					Type:       "image",
				})
			}
		}
		posts = append(posts, d)
	}
	return posts
}
