package repositories

import (
	"time"

	"github.com/campus-skillshare/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RevocationRepository defines the interface for signed-out session tokens
type RevocationRepository interface {
	Revoke(jti, uid string, expiresAt time.Time) error
	IsRevoked(jti string) (bool, error)
	PruneExpired(now time.Time) (int64, error)
}

// PostgresRevocationRepository implements RevocationRepository for PostgreSQL
type PostgresRevocationRepository struct {
	db *gorm.DB
}

// NewPostgresRevocationRepository creates a new PostgresRevocationRepository
func NewPostgresRevocationRepository(db *gorm.DB) *PostgresRevocationRepository {
	return &PostgresRevocationRepository{db: db}
}

// Revoke records jti; revoking the same token twice is fine
func (r *PostgresRevocationRepository) Revoke(jti, uid string, expiresAt time.Time) error {
	row := &models.RevokedSession{JTI: jti, UID: uid, ExpiresAt: expiresAt.UTC()}
	return translateGorm(r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error)
}

func (r *PostgresRevocationRepository) IsRevoked(jti string) (bool, error) {
	var count int64
	if err := r.db.Model(&models.RevokedSession{}).Where("jti = ?", jti).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// PruneExpired deletes revocations whose token expired before now
func (r *PostgresRevocationRepository) PruneExpired(now time.Time) (int64, error) {
	res := r.db.Where("expires_at < ?", now.UTC()).Delete(&models.RevokedSession{})
	return res.RowsAffected, res.Error
}
