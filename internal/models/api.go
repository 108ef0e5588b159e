package models

import (
	"time"

	"gorm.io/gorm"

	"paygate/internal/domain"
)

type Api struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	ProviderID   uint   `gorm:"not null;index" json:"provider_id"`
	Name         string `gorm:"size:255;not null" json:"name"`
	Description  string `gorm:"type:text" json:"description"`
	PricePerCall string `gorm:"type:decimal(65,0);not null" json:"price_per_call"`
	Currency     string `gorm:"size:10;not null;default:'ETH'" json:"currency"`
	// Endpoint is public; InternalEndpoint is the hidden upstream used in
	// double relay and is never returned to developers.
	Endpoint         string         `gorm:"size:2048;not null" json:"endpoint"`
	InternalEndpoint string         `gorm:"size:2048" json:"-"`
	FallbackEndpoint string         `gorm:"size:2048" json:"-"`
	IsDirectRelay    bool           `gorm:"not null;default:false" json:"is_direct_relay"`
	AvgResponseTime  int64          `gorm:"not null;default:0" json:"avg_response_time_ms"`
	TotalCalls       int64          `gorm:"not null;default:0" json:"total_calls"`
	TotalRevenue     string         `gorm:"type:decimal(65,0);not null;default:'0'" json:"total_revenue"`
	Active           bool           `gorm:"not null;default:true;index" json:"active"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`

	Provider Provider `gorm:"foreignKey:ProviderID" json:"-"`
}

func (Api) TableName() string {
	return "apis"
}

// RelayMode collapses the direct flag and the optional hidden endpoint into a
// single dispatch tag. A double relay without a configured hidden endpoint
// degrades to direct.
func (a *Api) RelayMode() domain.RelayMode {
	if !a.IsDirectRelay && a.InternalEndpoint != "" {
		return domain.RelayModeDouble
	}
	return domain.RelayModeDirect
}
