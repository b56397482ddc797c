package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/campus-skillshare/backend/internal/models"
	"github.com/campus-skillshare/backend/internal/store"
)

// UserRepository defines the interface for profile data operations
type UserRepository interface {
	CreateUser(ctx context.Context, account *models.Account) error
	GetUserByID(ctx context.Context, uid string) (*models.Account, error)
	GetUsers(ctx context.Context) ([]models.Account, error)
	UpdateProfile(ctx context.Context, uid string, fields map[string]any) error
	Exists(ctx context.Context, uid string) (bool, error)
}

// DocumentUserRepository implements UserRepository on the document store
type DocumentUserRepository struct {
	store store.Store
}

// NewDocumentUserRepository creates a new DocumentUserRepository
func NewDocumentUserRepository(s store.Store) *DocumentUserRepository {
	return &DocumentUserRepository{store: s}
}

// CreateUser writes a new profile and fails with ErrConflict if the uid is taken
func (r *DocumentUserRepository) CreateUser(ctx context.Context, account *models.Account) error {
	path := UserPath(account.UID)
	return r.store.RunAtomic(ctx, func(tx store.Tx) error {
		_, err := tx.Get(path)
		if err == nil {
			return fmt.Errorf("create user %s: %w", account.UID, ErrConflict)
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return tx.Set(path, account.ToMap())
	})
}

// GetUserByID retrieves a profile by uid
func (r *DocumentUserRepository) GetUserByID(ctx context.Context, uid string) (*models.Account, error) {
	doc, err := r.store.Get(ctx, UserPath(uid))
	if err != nil {
		return nil, translate(err)
	}
	return models.DecodeAccount(doc.ID, doc.Data)
}

// GetUsers retrieves every profile, newest first. Documents that fail to decode are skipped.
func (r *DocumentUserRepository) GetUsers(ctx context.Context) ([]models.Account, error) {
	docs, err := r.store.List(ctx, store.Query{Collection: UsersCollection}.Order("createdAt", true))
	if err != nil {
		return nil, err
	}
	users := make([]models.Account, 0, len(docs))
	for _, doc := range docs {
		account, err := models.DecodeAccount(doc.ID, doc.Data)
		if err != nil {
			continue
		}
		users = append(users, *account)
	}
	return users, nil
}

// UpdateProfile merges fields into the profile, leaving the ones it does not name intact
func (r *DocumentUserRepository) UpdateProfile(ctx context.Context, uid string, fields map[string]any) error {
	update := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		update[k] = v
	}
	update["updatedAt"] = store.ServerTimestamp
	return r.store.Merge(ctx, UserPath(uid), update)
}

func (r *DocumentUserRepository) Exists(ctx context.Context, uid string) (bool, error) {
	return r.store.Exists(ctx, UserPath(uid))
}

// translate maps store sentinels onto repository sentinels.
func translate(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
