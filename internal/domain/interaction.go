package domain

import (
	"fmt"
	"strings"
	"time"
)

// Action is a user interaction with a post
type Action string

const (
	ActionLike     Action = "like"
	ActionUnlike   Action = "unlike"
	ActionShare    Action = "shared"
	ActionBookmark Action = "bookmarked"
)

// ParseAction accepts both the verb and the wire form of an action
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "like":
		return ActionLike, nil
	case "unlike":
		return ActionUnlike, nil
	case "share", "shared":
		return ActionShare, nil
	case "bookmark", "bookmarked":
		return ActionBookmark, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
}

// Validate reports whether a is one of the known actions
func (a Action) Validate() error {
	switch a {
	case ActionLike, ActionUnlike, ActionShare, ActionBookmark:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidAction, string(a))
}

// Apply is the pure transition table for optimistic interactions.
// Bookmark has no projection and returns the detail unchanged.
func (a Action) Apply(d PostDetail) PostDetail {
	updated := d.Clone()
	switch a {
	case ActionLike:
		updated.Liked = true
		updated.LikesCount++
	case ActionUnlike:
		updated.Liked = false
		updated.LikesCount = max(0, updated.LikesCount-1)
	case ActionShare:
		updated.SharedCount++
	}
	return updated
}

// ApplyPreview applies the same transition to the list representation
func (a Action) ApplyPreview(p PostPreview) PostPreview {
	switch a {
	case ActionLike:
		p.Liked = true
		p.LikeCount++
	case ActionUnlike:
		p.Liked = false
		p.LikeCount = max(0, p.LikeCount-1)
	}
	return p
}

// OptimisticUpdate holds the value before and after a predicted change
type OptimisticUpdate[T any] struct {
	Original T
	Updated  T
}

// Commit returns the predicted value
func (u OptimisticUpdate[T]) Commit() T { return u.Updated }

// Rollback returns the value before the change
func (u OptimisticUpdate[T]) Rollback() T { return u.Original }

// Project computes the optimistic update for action applied to original
func Project(action Action, original PostDetail) OptimisticUpdate[PostDetail] {
	return OptimisticUpdate[PostDetail]{
		Original: original.Clone(),
		Updated:  action.Apply(original),
	}
}

// InteractionRequest is the body of POST /posts/{id}/interact
type InteractionRequest struct {
	PostID string `json:"postId"`
	Action Action `json:"action"`
}

// InteractionResult is the outcome of an interaction as seen by the caller.
// On remote failure it carries the pre-action fields.
type InteractionResult struct {
	PostID     string `json:"postId"`
	Liked      bool   `json:"liked"`
	LikesCount int    `json:"likesCount"`
}

// ResultFrom extracts the interaction fields of a detail
func ResultFrom(d PostDetail) InteractionResult {
	return InteractionResult{PostID: d.ID, Liked: d.Liked, LikesCount: d.LikesCount}
}

// InteractionChanged is broadcast to observers after every interaction
type InteractionChanged struct {
	PostID    string
	Liked     bool
	LikeCount int
	Err       error
}

// InteractionStatus is the lifecycle state of a recorded interaction
type InteractionStatus string

const (
	InteractionPending   InteractionStatus = "pending"
	InteractionCancelled InteractionStatus = "cancelled"
	InteractionCompleted InteractionStatus = "completed"
	InteractionFailed    InteractionStatus = "failed"
)

// UserInteraction is a locally recorded interaction
type UserInteraction struct {
	ID           string            `json:"id"`
	PostID       string            `json:"postId"`
	UserID       string            `json:"userId"`
	Action       Action            `json:"action"`
	Status       InteractionStatus `json:"status"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
	FailureCount int               `json:"failureCount"`
}
