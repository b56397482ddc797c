package repositories

import "github.com/campus-skillshare/backend/internal/store"

// Collection names in the document store.
const (
	UsersCollection         = "users"
	ConnectionsCollection   = "connections"
	InvitationsCollection   = "invitations"
	RequestsCollection      = "requests"
	ConversationsCollection = "conversations"
	MessagesCollection      = "messages"
)

func UserPath(uid string) string {
	return store.Join(UsersCollection, uid)
}

// ConnectionPath is owner's connection document for other.
func ConnectionPath(owner, other string) string {
	return store.Join(UsersCollection, owner, ConnectionsCollection, other)
}

// InvitationPath is other's outreach as seen by owner.
func InvitationPath(owner, other string) string {
	return store.Join(UsersCollection, owner, InvitationsCollection, other)
}

// RequestPath is owner's outreach to other as seen by owner.
func RequestPath(owner, other string) string {
	return store.Join(UsersCollection, owner, RequestsCollection, other)
}

func ConnectionsOf(owner string) string {
	return store.Join(UsersCollection, owner, ConnectionsCollection)
}

func InvitationsOf(owner string) string {
	return store.Join(UsersCollection, owner, InvitationsCollection)
}

func RequestsOf(owner string) string {
	return store.Join(UsersCollection, owner, RequestsCollection)
}

func ConversationPath(pairID string) string {
	return store.Join(ConversationsCollection, pairID)
}

func MessagesOf(pairID string) string {
	return store.Join(ConversationsCollection, pairID, MessagesCollection)
}
