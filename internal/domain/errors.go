package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrPostNotFound is returned when a post id is unknown to both the
	// local store and the remote API
	ErrPostNotFound = errors.New("post not found")

	// ErrInvalidAction is returned for interaction actions outside the known set
	ErrInvalidAction = errors.New("invalid interaction action")
)

// PostNotFoundError wraps ErrPostNotFound with the offending id
func PostNotFoundError(postID string) error {
	return fmt.Errorf("post with ID %s: %w", postID, ErrPostNotFound)
}
