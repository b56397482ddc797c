package repositories

import (
	"context"

	"github.com/campus-skillshare/backend/internal/models"
	"github.com/campus-skillshare/backend/internal/store"
)

// RelationshipRepository reads the invitation, request and connection mirrors of one owner.
// Writes go through the reconciler so that mirrors change together.
type RelationshipRepository interface {
	ListInvitations(ctx context.Context, owner string) ([]models.Relationship, error)
	ListRequests(ctx context.Context, owner string) ([]models.Relationship, error)
	ListConnections(ctx context.Context, owner string) ([]models.Connection, error)
	GetRequest(ctx context.Context, owner, to string) (models.Relationship, error)
	SubscribeInvitations(ctx context.Context, owner string) (*store.Subscription, error)
}

type documentRelationshipRepository struct {
	store store.Store
}

func NewDocumentRelationshipRepository(s store.Store) RelationshipRepository {
	return &documentRelationshipRepository{store: s}
}

func (r *documentRelationshipRepository) ListInvitations(ctx context.Context, owner string) ([]models.Relationship, error) {
	return r.listRelationships(ctx, InvitationsOf(owner))
}

func (r *documentRelationshipRepository) ListRequests(ctx context.Context, owner string) ([]models.Relationship, error) {
	return r.listRelationships(ctx, RequestsOf(owner))
}

func (r *documentRelationshipRepository) listRelationships(ctx context.Context, collection string) ([]models.Relationship, error) {
	docs, err := r.store.List(ctx, store.Query{Collection: collection}.Order("createdAt", true))
	if err != nil {
		return nil, err
	}
	out := make([]models.Relationship, 0, len(docs))
	for _, doc := range docs {
		rel, err := models.DecodeRelationship(doc.ID, doc.Data)
		if err != nil {
			continue
		}
		out = append(out, rel)
	}
	return out, nil
}

func (r *documentRelationshipRepository) ListConnections(ctx context.Context, owner string) ([]models.Connection, error) {
	docs, err := r.store.List(ctx, store.Query{Collection: ConnectionsOf(owner)}.Order("connectedAt", true))
	if err != nil {
		return nil, err
	}
	out := make([]models.Connection, 0, len(docs))
	for _, doc := range docs {
		conn, err := models.DecodeConnection(doc.ID, doc.Data)
		if err != nil {
			continue
		}
		out = append(out, conn)
	}
	return out, nil
}

func (r *documentRelationshipRepository) GetRequest(ctx context.Context, owner, to string) (models.Relationship, error) {
	return r.getRelationship(ctx, RequestPath(owner, to))
}

func (r *documentRelationshipRepository) getRelationship(ctx context.Context, path string) (models.Relationship, error) {
	doc, err := r.store.Get(ctx, path)
	if err != nil {
		return models.Relationship{}, translate(err)
	}
	return models.DecodeRelationship(doc.ID, doc.Data)
}

// SubscribeInvitations streams every invitation owned by owner, answered ones included.
func (r *documentRelationshipRepository) SubscribeInvitations(ctx context.Context, owner string) (*store.Subscription, error) {
	return r.store.Subscribe(ctx, store.Query{Collection: InvitationsOf(owner)})
}
