package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/campus-skillshare/backend/internal/conversations"
	"github.com/campus-skillshare/backend/internal/models"
	"github.com/campus-skillshare/backend/internal/repositories"
	"github.com/campus-skillshare/backend/internal/store"
	"go.uber.org/zap"
)

// MessageBatch is one delivery of WatchMessages. The first batch carries the whole
// log with Backlog set; later batches carry only messages not delivered before.
type MessageBatch struct {
	Backlog  bool             `json:"backlog"`
	Messages []models.Message `json:"messages"`
}

// WatchConversations streams my conversation list every time a summary I take part
// in changes. The channel closes when ctx ends, the session closes or stop is called.
func (s *Session) WatchConversations(ctx context.Context) (<-chan []ConversationView, func(), error) {
	ctx, cancel := s.watchContext(ctx)
	sub, err := s.deps.Conversations.SubscribeConversations(ctx, s.id.UID)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("subscribe conversations: %w", err)
	}

	out := make(chan []ConversationView, 1)
	stop := s.pump(ctx, cancel, sub, "conversations", func(snap store.Snapshot) bool {
		views := s.views(ctx, repositories.DecodeConversations(snap.Documents))
		select {
		case out <- views:
			return true
		case <-ctx.Done():
			return false
		}
	}, func() { close(out) })
	return out, stop, nil
}

// WatchMessages streams my conversation with otherUID as it grows.
func (s *Session) WatchMessages(ctx context.Context, otherUID string) (<-chan MessageBatch, func(), error) {
	if otherUID == s.id.UID || otherUID == "" {
		return nil, nil, conversations.ErrNotParticipant
	}
	ctx, cancel := s.watchContext(ctx)
	sub, err := s.deps.Conversations.SubscribeMessages(ctx, models.PairID(s.id.UID, otherUID))
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("subscribe messages: %w", err)
	}

	out := make(chan MessageBatch, 1)
	seen := make(map[string]struct{})
	first := true
	stop := s.pump(ctx, cancel, sub, "messages", func(snap store.Snapshot) bool {
		batch := MessageBatch{Backlog: first, Messages: []models.Message{}}
		for _, m := range repositories.DecodeMessages(snap.Documents) {
			if _, ok := seen[m.ID]; ok {
				continue
			}
			seen[m.ID] = struct{}{}
			batch.Messages = append(batch.Messages, m)
		}
		if !first && len(batch.Messages) == 0 {
			return true
		}
		first = false
		select {
		case out <- batch:
			return true
		case <-ctx.Done():
			return false
		}
	}, func() { close(out) })
	return out, stop, nil
}

// watchContext ends with parent or with the session, whichever goes first.
func (s *Session) watchContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	if s.ctx == nil {
		return ctx, cancel
	}
	detach := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		detach()
		cancel()
	}
}

// pump hands every snapshot of sub to deliver until it returns false or the stream
// ends, then runs finish. The returned stop waits for all of it.
func (s *Session) pump(ctx context.Context, cancel context.CancelFunc, sub *store.Subscription, what string, deliver func(store.Snapshot) bool, finish func()) func() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer finish()
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-sub.Updates():
				if !ok {
					if err := sub.Err(); err != nil {
						s.logger.Warn("watch stopped", zap.String("watch", what), zap.Error(err))
					}
					return
				}
				if !deliver(snap) {
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			sub.Cancel()
			<-done
		})
	}
}
