package repository

import (
	"paygate/internal/models"

	"gorm.io/gorm"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(p *models.Payment) error {
	return r.db.Create(p).Error
}

func (r *PaymentRepository) GetByID(id uint) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByTxHash(txHash string) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.Where("tx_hash = ?", txHash).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateWithTokens persists the payment and its token batch atomically:
// either the payment and every token land, or nothing does.
func (r *PaymentRepository) CreateWithTokens(p *models.Payment, tokens []models.Token) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		for i := range tokens {
			tokens[i].PaymentID = p.ID
		}
		if err := tx.Create(&tokens).Error; err != nil {
			return err
		}
		return tx.Model(p).Update("tokens_issued", len(tokens)).Error
	})
}

func (r *PaymentRepository) UpdateSettlement(id uint, status, settlementTxHash string) error {
	return r.db.Model(&models.Payment{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"settlement_status":  status,
			"settlement_tx_hash": settlementTxHash,
		}).Error
}
