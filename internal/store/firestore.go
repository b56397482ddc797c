package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore backs Store with Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore wraps an initialized Firestore client.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) doc(path string) (*firestore.DocumentRef, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}
	ref := s.client.Doc(path)
	if ref == nil {
		return nil, &PathError{Path: path}
	}
	return ref, nil
}

func (s *FirestoreStore) Get(ctx context.Context, path string) (Document, error) {
	ref, err := s.doc(path)
	if err != nil {
		return Document{}, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return Document{}, mapFirestoreError("get", path, err)
	}
	return firestoreDocument(snap), nil
}

func (s *FirestoreStore) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.Get(ctx, path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (s *FirestoreStore) Set(ctx context.Context, path string, data map[string]any) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}
	_, err = ref.Set(ctx, toFirestore(data))
	return mapFirestoreError("set", path, err)
}

func (s *FirestoreStore) Merge(ctx context.Context, path string, data map[string]any) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}
	_, err = ref.Set(ctx, toFirestore(data), firestore.MergeAll)
	return mapFirestoreError("merge", path, err)
}

func (s *FirestoreStore) Update(ctx context.Context, path string, data map[string]any) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}
	_, err = ref.Update(ctx, firestoreUpdates(data))
	return mapFirestoreError("update", path, err)
}

func (s *FirestoreStore) Delete(ctx context.Context, path string) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}
	_, err = ref.Delete(ctx)
	return mapFirestoreError("delete", path, err)
}

func (s *FirestoreStore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, toFirestore(data))
	if err != nil {
		return "", mapFirestoreError("add", collection, err)
	}
	return ref.ID, nil
}

func (s *FirestoreStore) query(q Query) firestore.Query {
	fq := s.client.Collection(q.Collection).Query
	for _, f := range q.Filters {
		fq = fq.WhereEntity(firestore.PropertyFilter{Path: f.Field, Operator: string(f.Op), Value: f.Value})
	}
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Descending {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(q.OrderBy, dir)
	}
	return fq
}

func (s *FirestoreStore) List(ctx context.Context, q Query) ([]Document, error) {
	snaps, err := s.query(q).Documents(ctx).GetAll()
	if err != nil {
		return nil, mapFirestoreError("list", q.Collection, err)
	}
	docs := make([]Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, firestoreDocument(snap))
	}
	return docs, nil
}

func (s *FirestoreStore) Subscribe(ctx context.Context, q Query) (*Subscription, error) {
	fq := s.query(q)
	return startSubscription(ctx, func(ctx context.Context, emit func(Snapshot) bool) error {
		it := fq.Snapshots(ctx)
		defer it.Stop()
		for {
			qs, err := it.Next()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled {
					return nil
				}
				return mapFirestoreError("subscribe", q.Collection, err)
			}
			snaps, err := qs.Documents.GetAll()
			if err != nil {
				return mapFirestoreError("subscribe", q.Collection, err)
			}
			docs := make([]Document, 0, len(snaps))
			for _, snap := range snaps {
				docs = append(docs, firestoreDocument(snap))
			}
			if !emit(Snapshot{Documents: docs, ReadAt: qs.ReadTime}) {
				return nil
			}
		}
	}), nil
}

func (s *FirestoreStore) RunAtomic(ctx context.Context, fn func(tx Tx) error) error {
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(&firestoreTx{store: s, tx: tx})
	})
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

type firestoreTx struct {
	store *FirestoreStore
	tx    *firestore.Transaction
}

func (t *firestoreTx) Get(path string) (Document, error) {
	ref, err := t.store.doc(path)
	if err != nil {
		return Document{}, err
	}
	snap, err := t.tx.Get(ref)
	if err != nil {
		return Document{}, mapFirestoreError("get", path, err)
	}
	return firestoreDocument(snap), nil
}

func (t *firestoreTx) Set(path string, data map[string]any) error {
	ref, err := t.store.doc(path)
	if err != nil {
		return err
	}
	return t.tx.Set(ref, toFirestore(data))
}

func (t *firestoreTx) Merge(path string, data map[string]any) error {
	ref, err := t.store.doc(path)
	if err != nil {
		return err
	}
	return t.tx.Set(ref, toFirestore(data), firestore.MergeAll)
}

func (t *firestoreTx) Update(path string, data map[string]any) error {
	ref, err := t.store.doc(path)
	if err != nil {
		return err
	}
	return t.tx.Update(ref, firestoreUpdates(data))
}

func (t *firestoreTx) Delete(path string) error {
	ref, err := t.store.doc(path)
	if err != nil {
		return err
	}
	return t.tx.Delete(ref)
}

func firestoreDocument(snap *firestore.DocumentSnapshot) Document {
	return Document{ID: snap.Ref.ID, Path: relativePath(snap.Ref.Path), Data: fromFirestore(snap.Data())}
}

// relativePath strips the projects/{p}/databases/{d}/documents/ prefix.
func relativePath(full string) string {
	const marker = "/documents/"
	if i := strings.Index(full, marker); i >= 0 {
		return full[i+len(marker):]
	}
	return full
}

func toFirestore(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if IsServerTimestamp(v) {
			out[k] = firestore.ServerTimestamp
			continue
		}
		out[k] = v
	}
	return out
}

func fromFirestore(data map[string]any) map[string]any {
	for k, v := range data {
		if t, ok := v.(time.Time); ok {
			data[k] = t.UTC()
		}
	}
	return data
}

func firestoreUpdates(data map[string]any) []firestore.Update {
	updates := make([]firestore.Update, 0, len(data))
	for k, v := range toFirestore(data) {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	return updates
}

func mapFirestoreError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s %s: %w", op, path, ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, path, err)
}
