package store

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned when a document path does not resolve to a stored document.
var ErrNotFound = errors.New("document not found")

// Document is a single stored document addressed by its full slash-separated path.
type Document struct {
	ID   string
	Path string
	Data map[string]any
}

// Op is a filter comparison understood by every backend.
type Op string

const (
	OpEqual         Op = "=="
	OpArrayContains Op = "array-contains"
)

// Filter restricts a query to documents whose field matches Value under Op.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query selects the documents directly under a collection path.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Descending bool
}

// Where returns a copy of q with an additional filter.
func (q Query) Where(field string, op Op, value any) Query {
	next := q
	next.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return next
}

// Order returns a copy of q ordered by field.
func (q Query) Order(field string, descending bool) Query {
	next := q
	next.OrderBy = field
	next.Descending = descending
	return next
}

type serverTimestamp struct{}

// ServerTimestamp is replaced by the backend's commit time when written as a field value.
var ServerTimestamp any = serverTimestamp{}

// IsServerTimestamp reports whether v is the ServerTimestamp sentinel.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// Writer is the set of mutations available both directly and inside an atomic unit.
type Writer interface {
	Set(path string, data map[string]any) error
	Merge(path string, data map[string]any) error
	Update(path string, data map[string]any) error
	Delete(path string) error
}

// Tx is an atomic unit of work. All reads must happen before the first write.
type Tx interface {
	Get(path string) (Document, error)
	Writer
}

// Store is a hierarchical document store with real-time subscriptions.
type Store interface {
	Get(ctx context.Context, path string) (Document, error)
	Exists(ctx context.Context, path string) (bool, error)
	// Set overwrites the document at path.
	Set(ctx context.Context, path string, data map[string]any) error
	// Merge upserts data into the document at path, keeping fields it does not name.
	Merge(ctx context.Context, path string, data map[string]any) error
	// Update changes fields of an existing document and fails with ErrNotFound otherwise.
	Update(ctx context.Context, path string, data map[string]any) error
	// Delete removes the document at path. Deleting a missing document is not an error.
	Delete(ctx context.Context, path string) error
	// Add creates a document with a generated id under collection and returns the id.
	Add(ctx context.Context, collection string, data map[string]any) (string, error)
	List(ctx context.Context, q Query) ([]Document, error)
	// Subscribe streams a full snapshot of q's results now and after every change.
	Subscribe(ctx context.Context, q Query) (*Subscription, error)
	// RunAtomic commits every write issued by fn, or none of them if fn fails.
	RunAtomic(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// Join builds a document or collection path from its segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Split returns the parent collection path and the final id of a document path.
func Split(path string) (collection, id string) {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

// ValidDocumentPath reports whether path has the collection/id/.../collection/id shape.
func ValidDocumentPath(path string) bool {
	segments := strings.Split(path, "/")
	if len(segments)%2 != 0 {
		return false
	}
	for _, s := range segments {
		if s == "" {
			return false
		}
	}
	return true
}

func checkPath(path string) error {
	if !ValidDocumentPath(path) {
		return &PathError{Path: path}
	}
	return nil
}

// PathError reports a malformed document path.
type PathError struct {
	Path string
}

func (e *PathError) Error() string {
	return "invalid document path " + `"` + e.Path + `"`
}
