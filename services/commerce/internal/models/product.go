package models

import (
	"time"

	"github.com/Skotchmaster/fundshop/services/commerce/internal/domain"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/options"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Product struct {
	ID          uuid.UUID          `gorm:"type:uuid;primaryKey"            json:"id"`
	SellerID    uuid.UUID          `gorm:"type:uuid;not null;index"        json:"seller_id"`
	Name        string             `gorm:"not null"                        json:"name"`
	Description string             `json:"description"`
	Type        domain.ProductType `gorm:"type:varchar(16);not null;index" json:"type"`
	IsActive    bool               `gorm:"not null"                        json:"is_active"`
	BasePrice   int64              `gorm:"not null;check:base_price >= 0"  json:"base_price"`
	// always 0 for crowdfund products
	Stock        int64                                `gorm:"not null;check:stock >= 0" json:"stock"`
	OptionSchema datatypes.JSONType[[]options.Option] `json:"option_schema"`

	FundingGoalAmount     *int64     `json:"funding_goal_amount,omitempty"`
	FundingDeadline       *time.Time `json:"funding_deadline,omitempty"`
	FundingCurrentAmount  int64      `gorm:"not null;default:0;check:funding_current_amount >= 0" json:"funding_current_amount"`
	FundingSupporterCount int64      `gorm:"not null;default:0"                                   json:"funding_supporter_count"`

	BillingApproved   bool       `gorm:"not null"   json:"billing_approved"`
	BillingApprovedAt *time.Time `json:"billing_approved_at,omitempty"`
	BillingApprovedBy *uuid.UUID `gorm:"type:uuid"  json:"billing_approved_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (Product) TableName() string { return "products" }

func (p *Product) IsCrowdfund() bool {
	return p.Type == domain.ProductCrowdfund
}

// FundingOpen reports whether the campaign still accepts pledges at now.
func (p *Product) FundingOpen(now time.Time) bool {
	return p.FundingDeadline != nil && now.Before(*p.FundingDeadline)
}
