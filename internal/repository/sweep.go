package repository

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joshdurbin/newsfeed/internal/store"
)

// Sweep purges records older than ttl from every store concurrently and
// returns the total removed
func Sweep(ctx context.Context, ttl time.Duration, sweepers ...store.Sweeper) (int, error) {
	var total atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	for _, s := range sweepers {
		g.Go(func() error {
			n, err := s.PurgeExpired(ctx, ttl)
			total.Add(int64(n))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return int(total.Load()), fmt.Errorf("failed to sweep expired records: %w", err)
	}
	return int(total.Load()), nil
}

// Janitor sweeps stores on an interval in the background
type Janitor struct {
	ttl      time.Duration
	sweepers []store.Sweeper

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

// NewJanitor creates a Janitor for sweepers
func NewJanitor(ttl time.Duration, sweepers ...store.Sweeper) *Janitor {
	return &Janitor{ttl: ttl, sweepers: sweepers}
}

// Start sweeps once immediately and then every interval until Stop is
// called or ctx is done. Starting a running Janitor does nothing; once ctx
// is done it can be started again.
func (j *Janitor) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid sweep interval %s", interval)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return nil
	}
	j.running = true
	j.stopChan = make(chan struct{})
	j.done = make(chan struct{})

	go j.loop(ctx, interval, j.stopChan, j.done)
	return nil
}

// Stop ends the loop and waits for an in-progress sweep to finish
func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	close(j.stopChan)
	done := j.done
	j.mu.Unlock()

	<-done
}

func (j *Janitor) loop(ctx context.Context, interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer j.exited(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.sweep(ctx)
	for {
		select {
		case <-ticker.C:
			j.sweep(ctx)
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// exited marks the Janitor stopped unless it was already restarted
func (j *Janitor) exited(done chan<- struct{}) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.done == done {
		j.running = false
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	n, err := Sweep(ctx, j.ttl, j.sweepers...)
	if err != nil {
		log.Printf("[ERROR] %v", err)
		return
	}
	if n > 0 {
		log.Printf("[SWEEP] purged %d expired records", n)
	}
}
