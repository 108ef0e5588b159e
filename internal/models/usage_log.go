package models

import (
	"time"
)

// UsageLog is written in two phases: a placeholder row when the token is
// consumed, then one update with the upstream outcome. A crash mid-relay
// leaves the placeholder behind as the audit trail.
type UsageLog struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	TokenID          uint       `gorm:"not null;index" json:"token_id"`
	ApiID            uint       `gorm:"not null;index" json:"api_id"`
	ProviderID       uint       `gorm:"not null;index" json:"provider_id"`
	DeveloperAddress string     `gorm:"size:64;not null;index" json:"developer_address"`
	RequestID        string     `gorm:"size:64;index" json:"request_id"`
	Method           string     `gorm:"size:10" json:"method"`
	RequestHeaders   string     `gorm:"type:text" json:"request_headers"`
	RequestParams    string     `gorm:"type:text" json:"request_params"`
	RequestBody      string     `gorm:"type:mediumtext" json:"request_body"`
	ResponseStatus   int        `gorm:"not null;default:0" json:"response_status"`
	ResponseTimeMs   int64      `gorm:"not null;default:0" json:"response_time_ms"`
	ResponseSize     int64      `gorm:"not null;default:0" json:"response_size"`
	Success          bool       `gorm:"not null;default:false" json:"success"`
	ErrorMessage     string     `gorm:"size:1024" json:"error_message,omitempty"`
	ClientIP         string     `gorm:"size:45" json:"client_ip"`
	UserAgent        string     `gorm:"size:512" json:"user_agent"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	Token Token `gorm:"foreignKey:TokenID" json:"-"`
}

func (UsageLog) TableName() string {
	return "usage_logs"
}
