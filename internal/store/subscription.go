package store

import (
	"context"
	"sync"
	"time"
)

// Snapshot is the complete result set of a subscribed query at one point in time.
type Snapshot struct {
	Documents []Document
	ReadAt    time.Time
}

// Subscription is a cancellable stream of snapshots. Updates is closed once the
// producer stops, either because Cancel was called or because the backend failed.
type Subscription struct {
	updates chan Snapshot
	cancel  context.CancelFunc
	done    chan struct{}

	mu  sync.Mutex
	err error
}

// produceFunc pushes snapshots through emit until ctx is done. emit returns false
// once the subscriber has gone away.
type produceFunc func(ctx context.Context, emit func(Snapshot) bool) error

func startSubscription(parent context.Context, produce produceFunc) *Subscription {
	ctx, cancel := context.WithCancel(parent)
	sub := &Subscription{
		updates: make(chan Snapshot),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go func() {
		defer close(sub.done)
		defer close(sub.updates)
		err := produce(ctx, func(snap Snapshot) bool {
			select {
			case sub.updates <- snap:
				return true
			case <-ctx.Done():
				return false
			}
		})
		if err != nil && ctx.Err() == nil {
			sub.mu.Lock()
			sub.err = err
			sub.mu.Unlock()
		}
	}()

	return sub
}

// Updates delivers snapshots in the order the backend produced them.
func (s *Subscription) Updates() <-chan Snapshot {
	return s.updates
}

// Cancel stops the stream and waits for the producer to exit. Safe to call twice.
func (s *Subscription) Cancel() {
	s.cancel()
	<-s.done
}

// Done is closed after the producer has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns the backend error that ended the stream, if any.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
