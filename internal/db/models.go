package db

import (
	"time"
)

// RequestRecord is one tracked inbound request. Rows are appended and
// never updated; id and created_at are filled by the database.
type RequestRecord struct {
	ID uint `gorm:"primaryKey"`

	// APIName is the service identifier the row belongs to (e.g. "node").
	APIName string `gorm:"column:api_name;size:64;not null;index"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
}

// TableName pins the schema-qualified table shared with sibling services.
func (RequestRecord) TableName() string {
	return "public.request"
}

// Aggregate is computed on every read and never stored.
type Aggregate struct {
	CurrentTime  time.Time `gorm:"column:current_time"`
	RequestCount int64     `gorm:"column:request_count"`
}
