package repository

import (
	"paygate/internal/models"

	"gorm.io/gorm"
)

type ProviderRepository struct {
	db *gorm.DB
}

func NewProviderRepository(db *gorm.DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

func (r *ProviderRepository) Create(p *models.Provider) error {
	return r.db.Create(p).Error
}

func (r *ProviderRepository) GetByID(id uint) (*models.Provider, error) {
	var p models.Provider
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProviderRepository) GetByEmail(email string) (*models.Provider, error) {
	var p models.Provider
	if err := r.db.Where("email = ?", email).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// AddEarnings increments the provider's lifetime earnings by a wei-scale
// decimal amount. The arithmetic happens in the database so concurrent
// payments don't lose updates.
func (r *ProviderRepository) AddEarnings(id uint, amount string) error {
	return r.db.Model(&models.Provider{}).Where("id = ?", id).
		Update("total_earnings", gorm.Expr("total_earnings + ?", amount)).Error
}

func (r *ProviderRepository) IncrementCalls(id uint) error {
	return r.db.Model(&models.Provider{}).Where("id = ?", id).
		Update("total_calls", gorm.Expr("total_calls + 1")).Error
}

func (r *ProviderRepository) SetActive(id uint, active bool) error {
	return r.db.Model(&models.Provider{}).Where("id = ?", id).
		Update("active", active).Error
}
