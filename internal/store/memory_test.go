package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func tickingClock() func() time.Time {
	base := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "users/alice", map[string]any{"name": "Alice", "skills": []string{"Go"}}))

	doc, err := s.Get(ctx, "users/alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", doc.ID)
	assert.Equal(t, "Alice", doc.Data["name"])
	assert.Equal(t, []any{"Go"}, doc.Data["skills"])

	ok, err := s.Exists(ctx, "users/alice")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Merge(ctx, "users/alice", map[string]any{"university": "NUST"}))
	doc, err = s.Get(ctx, "users/alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", doc.Data["name"])
	assert.Equal(t, "NUST", doc.Data["university"])

	require.NoError(t, s.Set(ctx, "users/alice", map[string]any{"name": "A"}))
	doc, err = s.Get(ctx, "users/alice")
	require.NoError(t, err)
	_, hasUniversity := doc.Data["university"]
	assert.False(t, hasUniversity, "set overwrites")

	require.NoError(t, s.Delete(ctx, "users/alice"))
	_, err = s.Get(ctx, "users/alice")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, s.Delete(ctx, "users/alice"), "deleting twice is fine")
}

func TestMemoryStoreUpdateRequiresDocument(t *testing.T) {
	s := NewMemoryStore()
	err := s.Update(context.Background(), "users/bob/requests/alice", map[string]any{"status": "accepted"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStoreRejectsBadPaths(t *testing.T) {
	s := NewMemoryStore()
	err := s.Set(context.Background(), "users", map[string]any{})
	var pathErr *PathError
	assert.True(t, errors.As(err, &pathErr))
}

func TestMemoryStoreReturnedDataIsACopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "users/a", map[string]any{"name": "A"}))

	doc, err := s.Get(ctx, "users/a")
	require.NoError(t, err)
	doc.Data["name"] = "mutated"

	doc, err = s.Get(ctx, "users/a")
	require.NoError(t, err)
	assert.Equal(t, "A", doc.Data["name"])
}

func TestMemoryStoreQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(WithClock(tickingClock()))

	require.NoError(t, s.Set(ctx, "conversations/a_b", map[string]any{"participants": []string{"a", "b"}, "updatedAt": ServerTimestamp}))
	require.NoError(t, s.Set(ctx, "conversations/a_c", map[string]any{"participants": []string{"a", "c"}, "updatedAt": ServerTimestamp}))
	require.NoError(t, s.Set(ctx, "conversations/b_c", map[string]any{"participants": []string{"b", "c"}, "updatedAt": ServerTimestamp}))
	require.NoError(t, s.Set(ctx, "conversations/a_b/messages/m1", map[string]any{"text": "nested"}))

	q := Query{Collection: "conversations"}.Where("participants", OpArrayContains, "a").Order("updatedAt", true)
	docs, err := s.List(ctx, q)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a_c", docs[0].ID)
	assert.Equal(t, "a_b", docs[1].ID)

	docs, err = s.List(ctx, Query{Collection: "conversations"}.Where("participants", OpEqual, "z"))
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMemoryStoreServerTimestamp(t *testing.T) {
	ctx := context.Background()
	clock := tickingClock()
	s := NewMemoryStore(WithClock(clock))

	require.NoError(t, s.Set(ctx, "conversations/x", map[string]any{"updatedAt": ServerTimestamp}))
	doc, err := s.Get(ctx, "conversations/x")
	require.NoError(t, err)
	ts, ok := doc.Data["updatedAt"].(time.Time)
	require.True(t, ok)
	assert.False(t, ts.IsZero())
}

func TestMemoryStoreAtomicRollback(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "users/b/invitations/a", map[string]any{"status": "pending"}))

	boom := errors.New("boom")
	err := s.RunAtomic(ctx, func(tx Tx) error {
		if err := tx.Set("users/b/connections/a", map[string]any{"status": "accepted"}); err != nil {
			return err
		}
		if err := tx.Update("users/b/invitations/a", map[string]any{"status": "accepted"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	ok, err := s.Exists(ctx, "users/b/connections/a")
	require.NoError(t, err)
	assert.False(t, ok)
	doc, err := s.Get(ctx, "users/b/invitations/a")
	require.NoError(t, err)
	assert.Equal(t, "pending", doc.Data["status"])
}

func TestMemoryStoreAtomicReadsSeeStagedWrites(t *testing.T) {
	s := NewMemoryStore()
	err := s.RunAtomic(context.Background(), func(tx Tx) error {
		require.NoError(t, tx.Set("users/a", map[string]any{"name": "A"}))
		doc, err := tx.Get("users/a")
		require.NoError(t, err)
		assert.Equal(t, "A", doc.Data["name"])
		require.NoError(t, tx.Delete("users/a"))
		_, err = tx.Get("users/a")
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStoreWriteHook(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	denied := errors.New("permission denied")
	s.SetWriteHook(func(op, path string) error {
		if path == "users/a/requests/b" {
			return denied
		}
		return nil
	})

	err := s.RunAtomic(ctx, func(tx Tx) error {
		if err := tx.Set("users/b/invitations/a", map[string]any{"status": "pending"}); err != nil {
			return err
		}
		return tx.Set("users/a/requests/b", map[string]any{"status": "pending"})
	})
	require.ErrorIs(t, err, denied)
	assert.Equal(t, 0, s.Len())

	s.SetWriteHook(nil)
	require.NoError(t, s.Set(ctx, "users/a/requests/b", map[string]any{"status": "pending"}))
}

func TestMemoryStoreSubscribe(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "users/b/invitations/a", map[string]any{"status": "pending"}))

	sub, err := s.Subscribe(ctx, Query{Collection: "users/b/invitations"})
	require.NoError(t, err)

	first := receive(t, sub)
	require.Len(t, first.Documents, 1)
	assert.Equal(t, "a", first.Documents[0].ID)

	require.NoError(t, s.Set(ctx, "users/b/invitations/c", map[string]any{"status": "pending"}))
	second := receive(t, sub)
	assert.Len(t, second.Documents, 2)

	// Writes elsewhere do not wake the subscriber.
	require.NoError(t, s.Set(ctx, "users/c/invitations/a", map[string]any{"status": "pending"}))
	require.NoError(t, s.Delete(ctx, "users/b/invitations/a"))
	third := receive(t, sub)
	require.Len(t, third.Documents, 1)
	assert.Equal(t, "c", third.Documents[0].ID)

	sub.Cancel()
	sub.Cancel()
	_, open := <-sub.Updates()
	assert.False(t, open)
	assert.NoError(t, sub.Err())
}

func TestMemoryStoreSubscribeStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewMemoryStore()
	sub, err := s.Subscribe(ctx, Query{Collection: "users"})
	require.NoError(t, err)
	receive(t, sub)

	cancel()
	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription did not stop")
	}
}

func receive(t *testing.T, sub *Subscription) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Updates():
		require.True(t, ok, "subscription closed")
		return snap
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return Snapshot{}
}

func TestSplitAndJoin(t *testing.T) {
	collection, id := Split(Join("users", "a", "connections", "b"))
	assert.Equal(t, "users/a/connections", collection)
	assert.Equal(t, "b", id)
	assert.True(t, ValidDocumentPath("users/a"))
	assert.False(t, ValidDocumentPath("users/a/connections"))
	assert.False(t, ValidDocumentPath("users//x/y"))
}
