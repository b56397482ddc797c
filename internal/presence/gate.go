package presence

import (
	"context"
	"errors"
	"sync"

	"github.com/campus-skillshare/backend/internal/models"
)

// ErrNothingHeld is returned by Confirm when no prompt is open.
var ErrNothingHeld = errors.New("no action awaiting confirmation")

// ConfirmGate holds the target of a destructive action until the user confirms or
// dismisses it. Only one target is held at a time; opening again replaces it.
type ConfirmGate struct {
	mu   sync.Mutex
	held *models.Relationship
}

func NewConfirmGate() *ConfirmGate {
	return &ConfirmGate{}
}

// Open holds target and opens the prompt.
func (g *ConfirmGate) Open(target models.Relationship) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t := target
	g.held = &t
}

// Held returns the target awaiting confirmation.
func (g *ConfirmGate) Held() (models.Relationship, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held == nil {
		return models.Relationship{}, false
	}
	return *g.held, true
}

// Confirm runs action on the held target. The prompt closes and the target is cleared
// only if action succeeds; on failure the target stays held so the user can retry.
func (g *ConfirmGate) Confirm(ctx context.Context, action func(ctx context.Context, target models.Relationship) error) (models.Relationship, error) {
	target, ok := g.Held()
	if !ok {
		return models.Relationship{}, ErrNothingHeld
	}
	if err := action(ctx, target); err != nil {
		return target, err
	}

	g.mu.Lock()
	if g.held != nil && g.held.UID == target.UID {
		g.held = nil
	}
	g.mu.Unlock()
	return target, nil
}

// Dismiss clears the held target without side effects. It reports whether anything was held.
func (g *ConfirmGate) Dismiss() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	wasHeld := g.held != nil
	g.held = nil
	return wasHeld
}
