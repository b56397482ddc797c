package session

import (
	"context"
	"testing"
	"time"

	"github.com/campus-skillshare/backend/internal/conversations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchConversationsFollowsSends(t *testing.T) {
	e := newEnv(t)
	e.account(t, "alice", "Alice", nil, nil)
	e.account(t, "bob", "Bob", nil, nil)
	alice := e.open(t, "alice")
	bob := e.open(t, "bob")

	updates, stop, err := alice.WatchConversations(e.ctx)
	require.NoError(t, err)
	defer stop()

	first := <-updates
	assert.Empty(t, first)

	_, err = bob.SendMessage(e.ctx, "alice", "are you free thursday?")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		select {
		case views := <-updates:
			return len(views) == 1 && views[0].LastMessage == "are you free thursday?" && views[0].DisplayName == "Bob"
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestWatchMessagesSendsOnlyNewMessages(t *testing.T) {
	e := newEnv(t)
	alice := e.open(t, "alice")
	bob := e.open(t, "bob")
	_, err := alice.SendMessage(e.ctx, "bob", "one")
	require.NoError(t, err)

	batches, stop, err := bob.WatchMessages(e.ctx, "alice")
	require.NoError(t, err)
	defer stop()

	backlog := <-batches
	assert.True(t, backlog.Backlog)
	require.Len(t, backlog.Messages, 1)
	assert.Equal(t, "one", backlog.Messages[0].Text)

	_, err = alice.SendMessage(e.ctx, "bob", "two")
	require.NoError(t, err)
	next := <-batches
	assert.False(t, next.Backlog)
	require.Len(t, next.Messages, 1)
	assert.Equal(t, "two", next.Messages[0].Text)
	assert.Equal(t, "alice", next.Messages[0].From)
}

func TestWatchMessagesRejectsSelf(t *testing.T) {
	e := newEnv(t)
	alice := e.open(t, "alice")
	_, _, err := alice.WatchMessages(e.ctx, "alice")
	assert.ErrorIs(t, err, conversations.ErrNotParticipant)
	_, _, err = alice.WatchMessages(e.ctx, "")
	assert.ErrorIs(t, err, conversations.ErrNotParticipant)
}

func TestWatchesEndWithSession(t *testing.T) {
	e := newEnv(t)
	alice := e.open(t, "alice")

	convs, stopConvs, err := alice.WatchConversations(e.ctx)
	require.NoError(t, err)
	defer stopConvs()
	msgs, stopMsgs, err := alice.WatchMessages(e.ctx, "bob")
	require.NoError(t, err)
	defer stopMsgs()

	e.manager.Close("sess-alice")
	for range convs {
	}
	for range msgs {
	}
}

func TestWatchEndsWithCaller(t *testing.T) {
	e := newEnv(t)
	alice := e.open(t, "alice")
	ctx, cancel := context.WithCancel(e.ctx)

	msgs, stop, err := alice.WatchMessages(ctx, "bob")
	require.NoError(t, err)
	<-msgs
	cancel()
	for range msgs {
	}
	stop()
	stop()
}
