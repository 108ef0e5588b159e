package repository

import (
	"time"

	"paygate/internal/models"

	"gorm.io/gorm"
)

type UsageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) GetByID(id uint) (*models.UsageLog, error) {
	var u models.UsageLog
	if err := r.db.First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// Finalize writes the upstream outcome onto the placeholder row. It is the
// second and last write a usage log ever receives.
func (r *UsageRepository) Finalize(id uint, status int, elapsedMs, size int64, success bool, errMsg string) error {
	now := time.Now().UTC()
	return r.db.Model(&models.UsageLog{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"response_status":  status,
			"response_time_ms": elapsedMs,
			"response_size":    size,
			"success":          success,
			"error_message":    errMsg,
			"completed_at":     now,
		}).Error
}

func (r *UsageRepository) ListByApi(apiID uint, limit int) ([]models.UsageLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var logs []models.UsageLog
	err := r.db.Where("api_id = ?", apiID).
		Order("id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
