package models

import (
	"math/big"
	"time"

	"gorm.io/gorm"
)

type Payment struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	TxHash       string `gorm:"size:66;uniqueIndex;not null" json:"tx_hash"`
	PayerAddress string `gorm:"size:64;not null;index" json:"payer_address"`
	ApiID        uint   `gorm:"not null;index" json:"api_id"`
	ProviderID   uint   `gorm:"not null;index" json:"provider_id"`
	// Amounts are wei-scale integers stored as decimal strings; MySQL DECIMAL
	// keeps them exact well past uint64.
	Amount        string `gorm:"type:decimal(65,0);not null" json:"amount"`
	Currency      string `gorm:"size:10;not null" json:"currency"`
	Network       string `gorm:"size:32;not null" json:"network"`
	FeeBps        int64  `gorm:"not null" json:"fee_bps"`
	PlatformFee   string `gorm:"type:decimal(65,0);not null" json:"platform_fee"`
	ProviderShare string `gorm:"type:decimal(65,0);not null" json:"provider_share"`
	TokenCount    int    `gorm:"not null" json:"token_count"`
	TokensIssued  int    `gorm:"not null;default:0" json:"tokens_issued"`
	Verified      bool   `gorm:"not null;default:false" json:"verified"`
	BlockNumber   uint64 `gorm:"not null;default:0" json:"block_number"`
	BlockTime     int64  `gorm:"not null;default:0" json:"block_time"`
	// Settlement is asynchronous; a FAILED status never invalidates the
	// payment or its tokens.
	SettlementStatus string         `gorm:"size:20;not null;default:'PENDING'" json:"settlement_status"`
	SettlementTxHash string         `gorm:"size:66" json:"settlement_tx_hash,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`

	Api Api `gorm:"foreignKey:ApiID" json:"-"`
}

func (Payment) TableName() string {
	return "payments"
}

// ParseAmount parses a decimal wei-scale amount. The bool is false for
// anything that is not a plain non-negative integer.
func ParseAmount(s string) (*big.Int, bool) {
	if s == "" {
		return nil, false
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, false
	}
	return n, true
}
