package repository

import (
	"errors"
	"time"

	"paygate/internal/models"

	"gorm.io/gorm"
)

// ErrTokenConsumed is returned when the conditional used-flag flip matched no
// row, i.e. another request consumed the token first.
var ErrTokenConsumed = errors.New("token already consumed")

type TokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) GetByHash(hash string) (*models.Token, error) {
	var t models.Token
	if err := r.db.Where("token_hash = ?", hash).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TokenRepository) CountByPayment(paymentID uint) (int64, error) {
	var n int64
	err := r.db.Model(&models.Token{}).Where("payment_id = ?", paymentID).Count(&n).Error
	return n, err
}

func (r *TokenRepository) CountUnused(paymentID uint) (int64, error) {
	var n int64
	err := r.db.Model(&models.Token{}).
		Where("payment_id = ? AND used = ?", paymentID, false).Count(&n).Error
	return n, err
}

// Consume flips used=false→true with a conditional update and creates the
// placeholder usage log in the same transaction. Correctness under concurrent
// instances comes from the WHERE used = false guard, not from any in-process
// lock: the race loser matches zero rows and gets ErrTokenConsumed.
func (r *TokenRepository) Consume(t *models.Token, usage *models.UsageLog) error {
	now := time.Now().UTC()
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Token{}).
			Where("id = ? AND used = ?", t.ID, false).
			Updates(map[string]interface{}{"used": true, "used_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTokenConsumed
		}
		t.Used = true
		t.UsedAt = &now
		usage.TokenID = t.ID
		return tx.Create(usage).Error
	})
}
