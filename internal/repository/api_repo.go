package repository

import (
	"paygate/internal/models"

	"gorm.io/gorm"
)

type ApiRepository struct {
	db *gorm.DB
}

func NewApiRepository(db *gorm.DB) *ApiRepository {
	return &ApiRepository{db: db}
}

func (r *ApiRepository) Create(a *models.Api) error {
	return r.db.Create(a).Error
}

func (r *ApiRepository) GetByID(id uint) (*models.Api, error) {
	var a models.Api
	if err := r.db.First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// GetWithProvider loads the API together with its owning provider, the pair
// every gateway operation needs for active-state checks.
func (r *ApiRepository) GetWithProvider(id uint) (*models.Api, error) {
	var a models.Api
	if err := r.db.Preload("Provider").First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *ApiRepository) ListByProvider(providerID uint) ([]models.Api, error) {
	var apis []models.Api
	if err := r.db.Where("provider_id = ?", providerID).Find(&apis).Error; err != nil {
		return nil, err
	}
	return apis, nil
}

// Deactivate soft-disables the API. Rows are never hard-deleted while
// unconsumed tokens may still reference them.
func (r *ApiRepository) Deactivate(id uint, providerID uint) error {
	return r.db.Model(&models.Api{}).
		Where("id = ? AND provider_id = ?", id, providerID).
		Update("active", false).Error
}

func (r *ApiRepository) AddRevenue(id uint, amount string) error {
	return r.db.Model(&models.Api{}).Where("id = ?", id).
		Update("total_revenue", gorm.Expr("total_revenue + ?", amount)).Error
}

// RecordCall folds one call's latency into the rolling average and bumps the
// call counter in a single statement. MySQL evaluates SET clauses left to
// right, so the average must be computed before total_calls is incremented.
func (r *ApiRepository) RecordCall(id uint, elapsedMs int64) error {
	return r.db.Exec(
		"UPDATE apis SET avg_response_time = ROUND((avg_response_time * total_calls + ?) / (total_calls + 1)), total_calls = total_calls + 1 WHERE id = ?",
		elapsedMs, id,
	).Error
}
