package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/joshdurbin/newsfeed/internal/cache"
	"github.com/joshdurbin/newsfeed/internal/domain"
	"github.com/joshdurbin/newsfeed/internal/transport/client"
)

// Interact runs one optimistic interaction against post id:
//
//  1. project the action onto the current detail
//  2. write the projection to the detail cache before any I/O
//  3. send it to the remote and record it locally, concurrently
//  4. reconcile: the remote outcome decides whether the projection stays
//
// Every outcome is published to subscribers. Bookmarks are not projected
// and leave the cache untouched.
func (r *PostRepo) Interact(ctx context.Context, id string, action domain.Action) (domain.InteractionResult, error) {
	if err := action.Validate(); err != nil {
		return domain.InteractionResult{}, err
	}

	if r.opts.SerializeInteractions {
		unlock := r.locks.Lock(id)
		defer unlock()
	}

	original, err := r.FetchDetail(ctx, id)
	if err != nil {
		return domain.InteractionResult{}, err
	}

	result, err := r.interact(ctx, *original, action)
	r.changes.Publish(domain.InteractionChanged{
		PostID:    result.PostID,
		Liked:     result.Liked,
		LikeCount: result.LikesCount,
		Err:       err,
	})
	return result, err
}

func (r *PostRepo) interact(ctx context.Context, original domain.PostDetail, action domain.Action) (domain.InteractionResult, error) {
	update := domain.Project(action, original)
	projected := action != domain.ActionBookmark
	if projected {
		r.details.Set(original.ID, cache.Ready(update.Updated))
	}

	req := domain.InteractionRequest{PostID: original.ID, Action: action}

	var (
		wg                  sync.WaitGroup
		remoteErr, localErr error
		recordID            string
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		remoteErr = r.remote.Interact(ctx, req)
	}()
	go func() {
		defer wg.Done()
		recordID, localErr = r.local.RecordInteraction(ctx, req)
	}()
	wg.Wait()

	// follow-up writes run even when ctx is done
	detached := context.WithoutCancel(ctx)

	switch {
	case remoteErr == nil && localErr == nil:
		r.resolve(detached, recordID, domain.InteractionCompleted)
		return domain.ResultFrom(update.Commit()), nil

	case remoteErr == nil:
		log.Printf("[WARN] %s on post %s saved remotely but not locally: %v", action, original.ID, localErr)
		return domain.ResultFrom(update.Commit()), fmt.Errorf("%w: %w", ErrLocalPersistence, localErr)

	case isCancellation(remoteErr):
		// abandoned, not failed: whatever already ran stays
		if localErr == nil {
			r.resolve(detached, recordID, domain.InteractionCancelled)
		}
		return domain.ResultFrom(update.Commit()), remoteErr
	}

	if projected {
		r.details.Set(original.ID, cache.Ready(update.Rollback()))
	}
	if localErr == nil {
		if projected {
			if err := r.local.RestorePost(detached, update.Rollback()); err != nil {
				log.Printf("[WARN] failed to restore stored post %s: %v", original.ID, err)
			}
		}
		r.resolve(detached, recordID, domain.InteractionFailed)
	}
	log.Printf("[ERROR] %s on post %s failed: %v", action, original.ID, remoteErr)
	return domain.ResultFrom(update.Rollback()), fmt.Errorf("%w: %w", ErrInteractionFailed, remoteErr)
}

// resolve records the outcome of a logged interaction; failures are only logged
func (r *PostRepo) resolve(ctx context.Context, id string, status domain.InteractionStatus) {
	if err := r.local.UpdateInteractionStatus(ctx, id, status); err != nil {
		log.Printf("[WARN] failed to mark interaction %s %s: %v", id, status, err)
	}
}

func isCancellation(err error) bool {
	return errors.Is(err, client.ErrCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// keyedMutex hands out one mutex per key, dropping it when unused
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock blocks until key is free and returns its unlock func
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
