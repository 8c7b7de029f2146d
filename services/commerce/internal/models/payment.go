package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PaymentRecord is written once per successful charge and never updated.
type PaymentRecord struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey"                  json:"id"`
	OrderID       uuid.UUID      `gorm:"type:uuid;not null;index"              json:"order_id"`
	UserID        uuid.UUID      `gorm:"type:uuid;not null;index"              json:"user_id"`
	PaymentID     string         `gorm:"type:varchar(64);not null;uniqueIndex" json:"payment_id"`
	TransactionID string         `gorm:"type:varchar(128)"                     json:"transaction_id"`
	Amount        int64          `gorm:"not null"                              json:"amount"`
	Method        string         `json:"method"`
	PGProvider    string         `json:"pg_provider"`
	RawPayload    datatypes.JSON `json:"raw_payload"`
	CreatedAt     time.Time      `json:"created_at"`
}

func (p *PaymentRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (PaymentRecord) TableName() string { return "payment_records" }

// All lists every table of the service in migration order.
func All() []any {
	return []any{
		&Product{},
		&CartLine{},
		&Order{},
		&OrderItem{},
		&OrderStatusHistory{},
		&BillingSchedule{},
		&FundingDelta{},
		&PaymentRecord{},
	}
}
