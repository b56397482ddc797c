package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// WriteHook is consulted before every mutation; a non-nil error rejects the write.
type WriteHook func(op, path string) error

type memoryDoc struct {
	data map[string]any
	seq  uint64
}

// MemoryStore keeps documents in process memory. Atomic units hold the store lock
// for their whole duration, so they are serialized against every other write.
type MemoryStore struct {
	mu       sync.Mutex
	docs     map[string]memoryDoc
	seq      uint64
	watchers map[uint64]*memoryWatcher
	nextW    uint64
	hook     WriteHook
	now      func() time.Time
}

type memoryWatcher struct {
	collection string
	notify     chan struct{}
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces the clock used to resolve ServerTimestamp.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		docs:     make(map[string]memoryDoc),
		watchers: make(map[uint64]*memoryWatcher),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetWriteHook installs hook for subsequent writes; nil removes it.
func (s *MemoryStore) SetWriteHook(hook WriteHook) {
	s.mu.Lock()
	s.hook = hook
	s.mu.Unlock()
}

func (s *MemoryStore) Get(_ context.Context, path string) (Document, error) {
	if err := checkPath(path); err != nil {
		return Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(path)
}

func (s *MemoryStore) getLocked(path string) (Document, error) {
	d, ok := s.docs[path]
	if !ok {
		return Document{}, fmt.Errorf("get %s: %w", path, ErrNotFound)
	}
	_, id := Split(path)
	return Document{ID: id, Path: path, Data: copyMap(d.data)}, nil
}

func (s *MemoryStore) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.Get(ctx, path)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

func (s *MemoryStore) Set(_ context.Context, path string, data map[string]any) error {
	return s.write(func(w *memoryWriter) error { return w.Set(path, data) })
}

func (s *MemoryStore) Merge(_ context.Context, path string, data map[string]any) error {
	return s.write(func(w *memoryWriter) error { return w.Merge(path, data) })
}

func (s *MemoryStore) Update(_ context.Context, path string, data map[string]any) error {
	return s.write(func(w *memoryWriter) error { return w.Update(path, data) })
}

func (s *MemoryStore) Delete(_ context.Context, path string) error {
	return s.write(func(w *memoryWriter) error { return w.Delete(path) })
}

func (s *MemoryStore) Add(_ context.Context, collection string, data map[string]any) (string, error) {
	id := uuid.NewString()
	err := s.write(func(w *memoryWriter) error { return w.Set(Join(collection, id), data) })
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *MemoryStore) List(_ context.Context, q Query) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryLocked(q), nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, q Query) (*Subscription, error) {
	s.mu.Lock()
	s.nextW++
	id := s.nextW
	w := &memoryWatcher{collection: q.Collection, notify: make(chan struct{}, 1)}
	s.watchers[id] = w
	s.mu.Unlock()

	// The first snapshot is taken inside the producer, so queue one notification.
	w.notify <- struct{}{}

	return startSubscription(ctx, func(ctx context.Context, emit func(Snapshot) bool) error {
		defer func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-w.notify:
				s.mu.Lock()
				snap := Snapshot{Documents: s.queryLocked(q), ReadAt: time.Now().UTC()}
				s.mu.Unlock()
				if !emit(snap) {
					return nil
				}
			}
		}
	}), nil
}

func (s *MemoryStore) RunAtomic(_ context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	w := &memoryWriter{store: s, staged: make(map[string]*memoryDoc)}
	if err := fn(w); err != nil {
		s.mu.Unlock()
		return err
	}
	touched := w.commitLocked()
	s.mu.Unlock()
	s.notify(touched)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// Len returns the number of stored documents.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

func (s *MemoryStore) write(fn func(w *memoryWriter) error) error {
	return s.RunAtomic(context.Background(), func(tx Tx) error {
		return fn(tx.(*memoryWriter))
	})
}

func (s *MemoryStore) notify(collections map[string]struct{}) {
	if len(collections) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.watchers {
		if _, ok := collections[w.collection]; !ok {
			continue
		}
		select {
		case w.notify <- struct{}{}:
		default:
		}
	}
}

func (s *MemoryStore) queryLocked(q Query) []Document {
	type entry struct {
		doc Document
		seq uint64
	}
	var entries []entry
	prefix := q.Collection + "/"
	for path, d := range s.docs {
		if !strings.HasPrefix(path, prefix) || strings.Contains(path[len(prefix):], "/") {
			continue
		}
		if !matches(d.data, q.Filters) {
			continue
		}
		_, id := Split(path)
		entries = append(entries, entry{doc: Document{ID: id, Path: path, Data: copyMap(d.data)}, seq: d.seq})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if q.OrderBy != "" {
			c := compare(entries[i].doc.Data[q.OrderBy], entries[j].doc.Data[q.OrderBy])
			if c != 0 {
				if q.Descending {
					return c > 0
				}
				return c < 0
			}
		}
		return entries[i].seq < entries[j].seq
	})

	docs := make([]Document, len(entries))
	for i, e := range entries {
		docs[i] = e.doc
	}
	return docs
}

// memoryWriter stages writes during an atomic unit. The store lock is held.
type memoryWriter struct {
	store  *MemoryStore
	staged map[string]*memoryDoc // nil value marks a delete
	order  []string
}

func (w *memoryWriter) Get(path string) (Document, error) {
	if err := checkPath(path); err != nil {
		return Document{}, err
	}
	if d, ok := w.staged[path]; ok {
		if d == nil {
			return Document{}, fmt.Errorf("get %s: %w", path, ErrNotFound)
		}
		_, id := Split(path)
		return Document{ID: id, Path: path, Data: copyMap(d.data)}, nil
	}
	return w.store.getLocked(path)
}

func (w *memoryWriter) current(path string) (map[string]any, bool) {
	if d, ok := w.staged[path]; ok {
		if d == nil {
			return nil, false
		}
		return d.data, true
	}
	d, ok := w.store.docs[path]
	return d.data, ok
}

func (w *memoryWriter) check(op, path string) error {
	if err := checkPath(path); err != nil {
		return err
	}
	if w.store.hook != nil {
		if err := w.store.hook(op, path); err != nil {
			return fmt.Errorf("%s %s: %w", op, path, err)
		}
	}
	return nil
}

func (w *memoryWriter) stage(path string, d *memoryDoc) {
	if _, ok := w.staged[path]; !ok {
		w.order = append(w.order, path)
	}
	w.staged[path] = d
}

func (w *memoryWriter) Set(path string, data map[string]any) error {
	if err := w.check("set", path); err != nil {
		return err
	}
	w.stage(path, &memoryDoc{data: w.resolve(data)})
	return nil
}

func (w *memoryWriter) Merge(path string, data map[string]any) error {
	if err := w.check("merge", path); err != nil {
		return err
	}
	merged := map[string]any{}
	if existing, ok := w.current(path); ok {
		merged = copyMap(existing)
	}
	for k, v := range w.resolve(data) {
		merged[k] = v
	}
	w.stage(path, &memoryDoc{data: merged})
	return nil
}

func (w *memoryWriter) Update(path string, data map[string]any) error {
	if err := w.check("update", path); err != nil {
		return err
	}
	existing, ok := w.current(path)
	if !ok {
		return fmt.Errorf("update %s: %w", path, ErrNotFound)
	}
	updated := copyMap(existing)
	for k, v := range w.resolve(data) {
		updated[k] = v
	}
	w.stage(path, &memoryDoc{data: updated})
	return nil
}

func (w *memoryWriter) Delete(path string) error {
	if err := w.check("delete", path); err != nil {
		return err
	}
	w.stage(path, nil)
	return nil
}

func (w *memoryWriter) resolve(data map[string]any) map[string]any {
	out := copyMap(data)
	now := w.store.now()
	for k, v := range out {
		if IsServerTimestamp(v) {
			out[k] = now
		}
	}
	return out
}

func (w *memoryWriter) commitLocked() map[string]struct{} {
	touched := make(map[string]struct{})
	for _, path := range w.order {
		d := w.staged[path]
		collection, _ := Split(path)
		touched[collection] = struct{}{}
		if d == nil {
			delete(w.store.docs, path)
			continue
		}
		seq := w.store.docs[path].seq
		if _, exists := w.store.docs[path]; !exists {
			w.store.seq++
			seq = w.store.seq
		}
		w.store.docs[path] = memoryDoc{data: d.data, seq: seq}
	}
	return touched
}

func matches(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		v, ok := data[f.Field]
		if !ok {
			return false
		}
		switch f.Op {
		case OpEqual:
			if compare(v, f.Value) != 0 {
				return false
			}
		case OpArrayContains:
			if !containsValue(v, f.Value) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func containsValue(list, want any) bool {
	switch l := list.(type) {
	case []any:
		for _, v := range l {
			if compare(v, want) == 0 {
				return true
			}
		}
	case []string:
		for _, v := range l {
			if compare(v, want) == 0 {
				return true
			}
		}
	}
	return false
}

func compare(a, b any) int {
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case int:
		if bv, ok := b.(int); ok {
			return av - bv
		}
	case int64:
		if bv, ok := b.(int64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case bool:
		if bv, ok := b.(bool); ok && av == bv {
			return 0
		}
	}
	if fmt.Sprint(a) == fmt.Sprint(b) {
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func copyMap(in map[string]any) map[string]any {
	if in == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	default:
		return v
	}
}

func isNotFound(err error) bool {
	return err != nil && errors.Is(err, ErrNotFound)
}
