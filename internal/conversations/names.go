package conversations

import (
	"context"
	"sync"

	"github.com/campus-skillshare/backend/internal/models"
)

// ProfileLookup is the one read the name cache needs.
type ProfileLookup interface {
	GetUserByID(ctx context.Context, uid string) (*models.Account, error)
}

// NameCache resolves uids to display names, fetching each profile at most once.
// A failed or empty lookup caches the uid itself. It belongs to one session.
type NameCache struct {
	users ProfileLookup

	mu    sync.Mutex
	names map[string]string
}

func NewNameCache(users ProfileLookup) *NameCache {
	return &NameCache{users: users, names: make(map[string]string)}
}

// Resolve returns the cached name for uid, fetching it on first use.
func (c *NameCache) Resolve(ctx context.Context, uid string) string {
	if name, ok := c.Peek(uid); ok {
		return name
	}
	name := uid
	if account, err := c.users.GetUserByID(ctx, uid); err == nil {
		name = account.DisplayName()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.names[uid]; ok {
		return existing
	}
	c.names[uid] = name
	return name
}

// Peek returns the cached name without fetching.
func (c *NameCache) Peek(uid string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name, ok := c.names[uid]
	return name, ok
}

// Put records a name that is already known, such as the owner's own profile.
func (c *NameCache) Put(uid, name string) {
	if name == "" {
		name = uid
	}
	c.mu.Lock()
	c.names[uid] = name
	c.mu.Unlock()
}

// Prefetch resolves the other participant of every conversation.
func (c *NameCache) Prefetch(ctx context.Context, me string, convs []models.Conversation) {
	for _, conv := range convs {
		if other := conv.Other(me); other != "" {
			c.Resolve(ctx, other)
		}
	}
}
