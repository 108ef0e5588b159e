package models

import (
	"time"

	"gorm.io/gorm"
)

type Provider struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Name          string         `gorm:"size:255;not null" json:"name"`
	Email         string         `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash  string         `gorm:"size:255;not null" json:"-"`
	WalletAddress string         `gorm:"size:64;not null;index" json:"wallet_address"`
	Active        bool           `gorm:"not null;default:true;index" json:"active"`
	TotalEarnings string         `gorm:"type:decimal(65,0);not null;default:'0'" json:"total_earnings"`
	TotalCalls    int64          `gorm:"not null;default:0" json:"total_calls"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Provider) TableName() string {
	return "providers"
}
