package models

import (
	"time"

	"github.com/Skotchmaster/fundshop/services/commerce/internal/domain"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/options"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CartLine struct {
	ID              uuid.UUID                              `gorm:"type:uuid;primaryKey"                                          json:"id"`
	UserID          uuid.UUID                              `gorm:"type:uuid;not null;uniqueIndex:idx_cart_line_key,priority:1"   json:"user_id"`
	ProductID       uuid.UUID                              `gorm:"type:uuid;not null;uniqueIndex:idx_cart_line_key,priority:2"   json:"product_id"`
	OptionHash      string                                 `gorm:"type:varchar(64);not null;uniqueIndex:idx_cart_line_key,priority:3" json:"option_hash"`
	ProductType     domain.ProductType                     `gorm:"type:varchar(16);not null"                                      json:"product_type"`
	Quantity        int64                                  `gorm:"not null;check:quantity > 0"                                    json:"quantity"`
	UnitPrice       int64                                  `gorm:"not null"                                                       json:"unit_price"`
	SelectedOptions datatypes.JSONType[[]options.Selected] `json:"selected_options"`
	CreatedAt       time.Time                              `json:"created_at"`
	UpdatedAt       time.Time                              `json:"updated_at"`
}

func (c *CartLine) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (CartLine) TableName() string { return "cart_lines" }

func (c *CartLine) LineTotal() (int64, error) {
	return domain.MulAmount(c.UnitPrice, c.Quantity)
}

func CartTotal(lines []CartLine) (int64, error) {
	var total int64
	for i := range lines {
		lt, err := lines[i].LineTotal()
		if err != nil {
			return 0, err
		}
		if total, err = domain.AddAmount(total, lt); err != nil {
			return 0, err
		}
	}
	return total, nil
}
