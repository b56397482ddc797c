package repositories

import (
	"errors"
	"fmt"

	"github.com/campus-skillshare/backend/internal/models"
	"gorm.io/gorm"
)

// CredentialRepository defines the interface for sign-in records
type CredentialRepository interface {
	CreateCredential(cred *models.Credential) error
	GetByUID(uid string) (*models.Credential, error)
	GetByEmail(email string) (*models.Credential, error)
	GetByFirebaseUID(firebaseUID string) (*models.Credential, error)
	UpdateCredential(cred *models.Credential) error
}

// PostgresCredentialRepository implements CredentialRepository for PostgreSQL
type PostgresCredentialRepository struct {
	db *gorm.DB
}

// NewPostgresCredentialRepository creates a new PostgresCredentialRepository
func NewPostgresCredentialRepository(db *gorm.DB) *PostgresCredentialRepository {
	return &PostgresCredentialRepository{db: db}
}

// CreateCredential inserts a credential; a duplicate uid or email is ErrConflict
func (r *PostgresCredentialRepository) CreateCredential(cred *models.Credential) error {
	return translateGorm(r.db.Create(cred).Error)
}

func (r *PostgresCredentialRepository) GetByUID(uid string) (*models.Credential, error) {
	return r.first("uid = ?", uid)
}

// GetByEmail looks the email up case-insensitively
func (r *PostgresCredentialRepository) GetByEmail(email string) (*models.Credential, error) {
	return r.first("LOWER(email) = LOWER(?)", email)
}

func (r *PostgresCredentialRepository) GetByFirebaseUID(firebaseUID string) (*models.Credential, error) {
	if firebaseUID == "" {
		return nil, ErrNotFound
	}
	return r.first("firebase_uid = ?", firebaseUID)
}

// UpdateCredential saves every field of an existing credential
func (r *PostgresCredentialRepository) UpdateCredential(cred *models.Credential) error {
	return translateGorm(r.db.Save(cred).Error)
}

func (r *PostgresCredentialRepository) first(query string, arg any) (*models.Credential, error) {
	var cred models.Credential
	if err := r.db.Where(query, arg).First(&cred).Error; err != nil {
		return nil, translateGorm(err)
	}
	return &cred, nil
}

func translateGorm(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return err
	}
}
