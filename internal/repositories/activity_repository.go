package repositories

import (
	"github.com/campus-skillshare/backend/internal/models"
	"gorm.io/gorm"
)

// ActivityRepository defines the interface for the action journal
type ActivityRepository interface {
	Record(activity *models.Activity) error
	GetByUser(uid string, page, limit int) ([]models.Activity, int64, error)
	GetFailed(uid string, limit int) ([]models.Activity, error)
}

type postgresActivityRepository struct {
	db *gorm.DB
}

func NewPostgresActivityRepository(db *gorm.DB) ActivityRepository {
	return &postgresActivityRepository{db: db}
}

func (r *postgresActivityRepository) Record(activity *models.Activity) error {
	return r.db.Create(activity).Error
}

// GetByUser pages through the actions uid performed or was the target of, newest first
func (r *postgresActivityRepository) GetByUser(uid string, page, limit int) ([]models.Activity, int64, error) {
	var activities []models.Activity
	var total int64

	scope := r.db.Model(&models.Activity{}).Where("actor_id = ? OR target_id = ?", uid, uid)
	if err := scope.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := r.db.Where("actor_id = ? OR target_id = ?", uid, uid).
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&activities).Error

	return activities, total, err
}

// GetFailed returns uid's most recent failed actions
func (r *postgresActivityRepository) GetFailed(uid string, limit int) ([]models.Activity, error) {
	var activities []models.Activity
	err := r.db.Where("actor_id = ? AND outcome = ?", uid, models.OutcomeFailed).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&activities).Error
	return activities, err
}
