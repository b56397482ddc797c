package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/campus-skillshare/backend/internal/models"
	"github.com/campus-skillshare/backend/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClock() func() time.Time {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Minute)
	}
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentUserRepository(store.NewMemoryStore(store.WithClock(testClock())))

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	alice := &models.Account{UID: "alice", Name: "Alice", Email: "alice@campus.edu", CreatedAt: created}
	require.NoError(t, repo.CreateUser(ctx, alice))
	assert.ErrorIs(t, repo.CreateUser(ctx, alice), ErrConflict)

	require.NoError(t, repo.UpdateProfile(ctx, "alice", map[string]any{
		"university":    "NUST",
		"skillsToTeach": []string{"Photoshop"},
		"skillsToLearn": []string{"C++"},
	}))

	got, err := repo.GetUserByID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, "NUST", got.University)
	assert.Equal(t, []string{"Photoshop"}, got.SkillsToTeach)
	assert.Equal(t, created, got.CreatedAt, "merge keeps createdAt")
	assert.False(t, got.UpdatedAt.IsZero())

	_, err = repo.GetUserByID(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := repo.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUserRepositoryListsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	repo := NewDocumentUserRepository(s)

	for i, uid := range []string{"a", "b", "c"} {
		require.NoError(t, repo.CreateUser(ctx, &models.Account{UID: uid, CreatedAt: time.Date(2024, 1, i+1, 0, 0, 0, 0, time.UTC)}))
	}
	require.NoError(t, s.Set(ctx, UserPath("broken"), map[string]any{"skillsToTeach": 7}))

	users, err := repo.GetUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "c", users[0].UID)
	assert.Equal(t, "a", users[2].UID)
}

func TestRelationshipRepository(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	repo := NewDocumentRelationshipRepository(s)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	alice := models.ProfileSnapshot{UID: "alice", Name: "Alice"}
	require.NoError(t, s.Set(ctx, InvitationPath("bob", "alice"), models.NewPendingRelationship(alice, at).ToMap()))
	require.NoError(t, s.Set(ctx, ConnectionPath("bob", "carol"), models.NewConnection(models.ProfileSnapshot{UID: "carol"}, at).ToMap()))

	invitations, err := repo.ListInvitations(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, invitations, 1)
	assert.Equal(t, models.StatusPending, invitations[0].Status)

	assert.Equal(t, "Alice", invitations[0].Name)

	_, err = repo.GetRequest(ctx, "alice", "bob")
	assert.ErrorIs(t, err, ErrNotFound)

	connections, err := repo.ListConnections(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, connections, 1)
	assert.Equal(t, "carol", connections[0].UID)
}

func TestConversationRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentConversationRepository(store.NewMemoryStore(store.WithClock(testClock())))
	pair := models.PairID("bob", "alice")
	participants := models.SortedPair("bob", "alice")

	require.NoError(t, repo.SetTitle(ctx, pair, participants, "Study group"))
	firstID, err := repo.AppendMessage(ctx, pair, "alice", "hi")
	require.NoError(t, err)
	first, err := repo.GetMessage(ctx, pair, firstID)
	require.NoError(t, err)
	assert.Equal(t, "alice", first.From)
	assert.False(t, first.CreatedAt.IsZero())
	require.NoError(t, repo.UpsertSummary(ctx, pair, participants, "hi"))
	_, err = repo.AppendMessage(ctx, pair, "bob", "hello")
	require.NoError(t, err)
	require.NoError(t, repo.UpsertSummary(ctx, pair, participants, "hello"))

	conv, err := repo.GetConversation(ctx, pair)
	require.NoError(t, err)
	assert.Equal(t, "hello", conv.LastMessage)
	assert.Equal(t, "Study group", conv.Title, "upsert merges around the title")

	messages, err := repo.ListMessages(ctx, pair)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "hi", messages[0].Text)
	assert.Equal(t, "bob", messages[1].From)

	list, err := repo.ListConversations(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, list, 1)
	list, err = repo.ListConversations(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, list)
}
