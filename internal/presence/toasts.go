// Package presence owns the ephemeral, per-session notification state: the toast
// list, the invitation feed that feeds it, and the confirmation gate.
package presence

import (
	"sync"
	"time"

	"github.com/campus-skillshare/backend/internal/models"
	"github.com/google/uuid"
)

// Timer is the part of *time.Timer the toast list needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it.
type AfterFunc func(d time.Duration, f func()) Timer

type ToastOption func(*Toasts)

// WithAfterFunc replaces the timer source, for tests.
func WithAfterFunc(after AfterFunc) ToastOption {
	return func(t *Toasts) { t.after = after }
}

// WithDefaultTimeout sets the timeout used when Push is given zero.
func WithDefaultTimeout(d time.Duration) ToastOption {
	return func(t *Toasts) {
		if d > 0 {
			t.defaultTimeout = d
		}
	}
}

// Toasts is an ordered list of live notifications. Each toast removes itself when its
// timeout fires; Dismiss removes it early and stops the timer.
type Toasts struct {
	mu             sync.Mutex
	items          []models.Toast
	timers         map[string]Timer
	subs           map[int]chan models.Toast
	nextSub        int
	closed         bool
	after          AfterFunc
	defaultTimeout time.Duration
	now            func() time.Time
}

func NewToasts(opts ...ToastOption) *Toasts {
	t := &Toasts{
		timers:         make(map[string]Timer),
		subs:           make(map[int]chan models.Toast),
		after:          func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) },
		defaultTimeout: models.DefaultToastTimeout,
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Push adds a toast and hands it to every subscriber. A zero timeout uses the default.
func (t *Toasts) Push(message string, timeout time.Duration) models.Toast {
	if timeout <= 0 {
		timeout = t.defaultTimeout
	}
	toast := models.Toast{
		ID:        uuid.NewString(),
		Message:   message,
		TimeoutMs: timeout.Milliseconds(),
		CreatedAt: t.now(),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return toast
	}
	t.items = append(t.items, toast)
	id := toast.ID
	t.timers[id] = t.after(timeout, func() { t.remove(id) })
	for _, ch := range t.subs {
		select {
		case ch <- toast:
		default:
		}
	}
	return toast
}

// Dismiss removes the toast and cancels its expiry. It reports false if the toast
// was already gone.
func (t *Toasts) Dismiss(id string) bool {
	t.mu.Lock()
	timer, ok := t.timers[id]
	t.mu.Unlock()
	if !ok {
		return false
	}
	timer.Stop()
	return t.remove(id)
}

func (t *Toasts) remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.timers[id]; !ok {
		return false
	}
	delete(t.timers, id)
	for i, item := range t.items {
		if item.ID == id {
			t.items = append(t.items[:i], t.items[i+1:]...)
			break
		}
	}
	return true
}

// List returns the live toasts, oldest first.
func (t *Toasts) List() []models.Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.Toast{}, t.items...)
}

// Subscribe delivers every toast pushed from now on. Slow readers miss toasts rather
// than block Push. The channel is closed by cancel or by Close.
func (t *Toasts) Subscribe() (<-chan models.Toast, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan models.Toast, 16)
	if t.closed {
		close(ch)
		return ch, func() {}
	}
	id := t.nextSub
	t.nextSub++
	t.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if sub, ok := t.subs[id]; ok {
				delete(t.subs, id)
				close(sub)
			}
		})
	}
}

// Close stops every pending timer and ends all subscriptions.
func (t *Toasts) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
	t.items = nil
	for id, ch := range t.subs {
		delete(t.subs, id)
		close(ch)
	}
}
