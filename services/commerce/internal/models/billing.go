package models

import (
	"time"

	"github.com/Skotchmaster/fundshop/services/commerce/internal/domain"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BillingSchedule is the deferred charge of exactly one crowdfund order.
type BillingSchedule struct {
	ID                uuid.UUID             `gorm:"type:uuid;primaryKey"             json:"id"`
	OrderID           uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex"   json:"order_id"`
	UserID            uuid.UUID             `gorm:"type:uuid;not null;index"         json:"user_id"`
	BillingKey        string                `gorm:"not null"                         json:"-"`
	PaymentID         string                `gorm:"type:varchar(64);not null;uniqueIndex" json:"payment_id"`
	Amount            int64                 `gorm:"not null"                         json:"amount"`
	Currency          string                `gorm:"type:varchar(8);not null"         json:"currency"`
	ScheduledAt       time.Time             `gorm:"not null"                         json:"scheduled_at"`
	GatewayScheduleID string                `gorm:"type:varchar(128);index"          json:"gateway_schedule_id"`
	Status            domain.ScheduleStatus `gorm:"type:varchar(16);not null;index"  json:"status"`
	FailureReason     string                `json:"failure_reason,omitempty"`
	GatewayResponse   datatypes.JSON        `json:"gateway_response,omitempty"`
	ExecutedAt        *time.Time            `json:"executed_at,omitempty"`

	Deltas []FundingDelta `gorm:"foreignKey:ScheduleID;constraint:OnDelete:CASCADE" json:"deltas"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *BillingSchedule) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (BillingSchedule) TableName() string { return "billing_schedules" }

// FundingDelta is what an executed schedule adds to one product's funding totals.
type FundingDelta struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"     json:"id"`
	ScheduleID         uuid.UUID `gorm:"type:uuid;not null;index" json:"schedule_id"`
	ProductID          uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	Amount             int64     `gorm:"not null"                 json:"amount"`
	SupporterIncrement int64     `gorm:"not null"                 json:"supporter_increment"`
}

func (d *FundingDelta) BeforeCreate(tx *gorm.DB) (err error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

func (FundingDelta) TableName() string { return "billing_schedule_deltas" }
