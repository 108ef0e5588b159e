package models

import (
	"time"

	"gorm.io/gorm"
)

// Token is a single-use call credential. The used flag only ever transitions
// false→true, via a conditional update (see TokenRepository.Consume).
type Token struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	PaymentID        uint       `gorm:"not null;index" json:"payment_id"`
	ApiID            uint       `gorm:"not null;index" json:"api_id"`
	ProviderID       uint       `gorm:"not null;index" json:"provider_id"`
	DeveloperAddress string     `gorm:"size:64;not null;index" json:"developer_address"`
	TokenHash        string     `gorm:"size:128;uniqueIndex;not null" json:"token_hash"`
	Used             bool       `gorm:"not null;default:false;index" json:"used"`
	UsedAt           *time.Time `json:"used_at,omitempty"`
	NotBefore        time.Time  `gorm:"not null" json:"not_before"`
	ExpiresAt        time.Time  `gorm:"not null;index" json:"expires_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`

	Payment Payment `gorm:"foreignKey:PaymentID" json:"-"`
}

func (Token) TableName() string {
	return "tokens"
}

func (t *Token) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
