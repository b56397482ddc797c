package repositories

import (
	"context"

	"github.com/campus-skillshare/backend/internal/models"
	"github.com/campus-skillshare/backend/internal/store"
)

// ConversationRepository defines the interface for conversation summaries and messages
type ConversationRepository interface {
	AppendMessage(ctx context.Context, pairID, from, text string) (string, error)
	UpsertSummary(ctx context.Context, pairID string, participants []string, lastMessage string) error
	GetConversation(ctx context.Context, pairID string) (models.Conversation, error)
	ListConversations(ctx context.Context, uid string) ([]models.Conversation, error)
	ListMessages(ctx context.Context, pairID string) ([]models.Message, error)
	GetMessage(ctx context.Context, pairID, id string) (models.Message, error)
	SetTitle(ctx context.Context, pairID string, participants []string, title string) error
	SubscribeConversations(ctx context.Context, uid string) (*store.Subscription, error)
	SubscribeMessages(ctx context.Context, pairID string) (*store.Subscription, error)
}

type documentConversationRepository struct {
	store store.Store
}

func NewDocumentConversationRepository(s store.Store) ConversationRepository {
	return &documentConversationRepository{store: s}
}

// AppendMessage adds a message stamped with the server clock and returns its id
func (r *documentConversationRepository) AppendMessage(ctx context.Context, pairID, from, text string) (string, error) {
	return r.store.Add(ctx, MessagesOf(pairID), map[string]any{
		"from":      from,
		"text":      text,
		"createdAt": store.ServerTimestamp,
	})
}

// UpsertSummary merges the latest message into the summary so a title set concurrently survives
func (r *documentConversationRepository) UpsertSummary(ctx context.Context, pairID string, participants []string, lastMessage string) error {
	return r.store.Merge(ctx, ConversationPath(pairID), map[string]any{
		"chatId":       pairID,
		"participants": participants,
		"lastMessage":  lastMessage,
		"updatedAt":    store.ServerTimestamp,
	})
}

func (r *documentConversationRepository) GetConversation(ctx context.Context, pairID string) (models.Conversation, error) {
	doc, err := r.store.Get(ctx, ConversationPath(pairID))
	if err != nil {
		return models.Conversation{}, translate(err)
	}
	return models.DecodeConversation(doc.ID, doc.Data)
}

func conversationsQuery(uid string) store.Query {
	return store.Query{Collection: ConversationsCollection}.
		Where("participants", store.OpArrayContains, uid).
		Order("updatedAt", true)
}

// ListConversations returns the summaries uid takes part in, most recent first
func (r *documentConversationRepository) ListConversations(ctx context.Context, uid string) ([]models.Conversation, error) {
	docs, err := r.store.List(ctx, conversationsQuery(uid))
	if err != nil {
		return nil, err
	}
	return DecodeConversations(docs), nil
}

// ListMessages returns a conversation's messages in send order
func (r *documentConversationRepository) ListMessages(ctx context.Context, pairID string) ([]models.Message, error) {
	docs, err := r.store.List(ctx, store.Query{Collection: MessagesOf(pairID)}.Order("createdAt", false))
	if err != nil {
		return nil, err
	}
	return DecodeMessages(docs), nil
}

// GetMessage reads one message back, server timestamp resolved
func (r *documentConversationRepository) GetMessage(ctx context.Context, pairID, id string) (models.Message, error) {
	doc, err := r.store.Get(ctx, store.Join(MessagesOf(pairID), id))
	if err != nil {
		return models.Message{}, translate(err)
	}
	return models.DecodeMessage(doc.ID, doc.Data)
}

// SetTitle merges a title into the summary, creating the summary if no message was sent yet
func (r *documentConversationRepository) SetTitle(ctx context.Context, pairID string, participants []string, title string) error {
	return r.store.Merge(ctx, ConversationPath(pairID), map[string]any{
		"chatId":       pairID,
		"participants": participants,
		"title":        title,
	})
}

func (r *documentConversationRepository) SubscribeConversations(ctx context.Context, uid string) (*store.Subscription, error) {
	return r.store.Subscribe(ctx, conversationsQuery(uid))
}

func (r *documentConversationRepository) SubscribeMessages(ctx context.Context, pairID string) (*store.Subscription, error) {
	return r.store.Subscribe(ctx, store.Query{Collection: MessagesOf(pairID)}.Order("createdAt", false))
}

// DecodeConversations decodes a snapshot, skipping malformed summaries.
func DecodeConversations(docs []store.Document) []models.Conversation {
	out := make([]models.Conversation, 0, len(docs))
	for _, doc := range docs {
		c, err := models.DecodeConversation(doc.ID, doc.Data)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out
}

// DecodeMessages decodes a snapshot, skipping malformed messages.
func DecodeMessages(docs []store.Document) []models.Message {
	out := make([]models.Message, 0, len(docs))
	for _, doc := range docs {
		m, err := models.DecodeMessage(doc.ID, doc.Data)
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}
