package presence

import (
	"context"
	"sync"

	"github.com/campus-skillshare/backend/internal/models"
	"github.com/campus-skillshare/backend/internal/store"
	"go.uber.org/zap"
)

// Feed turns snapshots of an owner's invitations into "New invitation from X" toasts.
// Each snapshot is diffed by uid against the pending set of the previous one, so a
// re-delivered pending invitation never notifies twice.
type Feed struct {
	toasts *Toasts
	logger *zap.Logger

	mu      sync.Mutex
	pending []models.Relationship
}

func NewFeed(toasts *Toasts, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{toasts: toasts, logger: logger.Named("feed")}
}

// Apply replaces the pending set with the pending entries of invitations and returns
// the ones that were not pending before. One toast is pushed per new entry.
func (f *Feed) Apply(invitations []models.Relationship) []models.Relationship {
	next := make([]models.Relationship, 0, len(invitations))
	for _, inv := range invitations {
		if inv.Status == models.StatusPending {
			next = append(next, inv)
		}
	}

	f.mu.Lock()
	prev := make(map[string]struct{}, len(f.pending))
	for _, p := range f.pending {
		prev[p.UID] = struct{}{}
	}
	f.pending = next
	f.mu.Unlock()

	var fresh []models.Relationship
	for _, inv := range next {
		if _, seen := prev[inv.UID]; seen {
			continue
		}
		prev[inv.UID] = struct{}{}
		fresh = append(fresh, inv)
		f.toasts.Push("New invitation from "+inv.DisplayName(), 0)
	}
	return fresh
}

// Run applies every snapshot of sub until it ends. Malformed documents are logged
// and skipped.
func (f *Feed) Run(ctx context.Context, sub *store.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-sub.Updates():
			if !ok {
				return sub.Err()
			}
			invitations := make([]models.Relationship, 0, len(snap.Documents))
			for _, doc := range snap.Documents {
				inv, err := models.DecodeRelationship(doc.ID, doc.Data)
				if err != nil {
					f.logger.Warn("skipping invitation", zap.String("path", doc.Path), zap.Error(err))
					continue
				}
				invitations = append(invitations, inv)
			}
			f.Apply(invitations)
		}
	}
}
