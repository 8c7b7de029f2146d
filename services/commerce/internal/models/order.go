package models

import (
	"time"

	"github.com/Skotchmaster/fundshop/services/commerce/internal/domain"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/options"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Order struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"     json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	// buyer snapshot, never updated after checkout
	BuyerName       string `gorm:"not null" json:"buyer_name"`
	BuyerEmail      string `gorm:"not null" json:"buyer_email"`
	BuyerPhone      string `gorm:"not null" json:"buyer_phone"`
	ShippingAddress string `gorm:"not null" json:"shipping_address"`

	ProductType domain.ProductType `gorm:"type:varchar(16);not null" json:"product_type"`
	TotalAmount int64              `gorm:"not null"                  json:"total_amount"`

	Status          domain.OrderStatus   `gorm:"type:varchar(16);not null;index" json:"status"`
	BillingStatus   domain.BillingStatus `gorm:"type:varchar(16);not null"       json:"billing_status"`
	PreorderStatus  *domain.FineStatus   `gorm:"type:varchar(32)"                json:"preorder_status,omitempty"`
	CrowdfundStatus *domain.FineStatus   `gorm:"type:varchar(32)"                json:"crowdfund_status,omitempty"`

	PaymentID         string                          `gorm:"type:varchar(64);uniqueIndex" json:"payment_id"`
	BillingExecutedAt *time.Time                      `json:"billing_executed_at,omitempty"`
	PaymentInfo       datatypes.JSONType[PaymentInfo] `json:"payment_info"`

	CancelReason string     `json:"cancel_reason,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`

	StatusNote      string     `json:"status_note,omitempty"`
	StatusUpdatedAt *time.Time `json:"status_updated_at,omitempty"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) (err error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (Order) TableName() string { return "orders" }

// FineStatus returns the fulfillment status of the given track, or nil when the order has none.
func (o *Order) FineStatus(t domain.ProductType) *domain.FineStatus {
	switch t {
	case domain.ProductPreOrder:
		return o.PreorderStatus
	case domain.ProductCrowdfund:
		return o.CrowdfundStatus
	}
	return nil
}

type OrderItem struct {
	ID              uuid.UUID                              `gorm:"type:uuid;primaryKey"      json:"id"`
	OrderID         uuid.UUID                              `gorm:"type:uuid;not null;index"  json:"order_id"`
	ProductID       uuid.UUID                              `gorm:"type:uuid;not null;index"  json:"product_id"`
	SellerID        uuid.UUID                              `gorm:"type:uuid;not null;index"  json:"seller_id"`
	ProductType     domain.ProductType                     `gorm:"type:varchar(16);not null" json:"product_type"`
	ProductName     string                                 `gorm:"not null"                  json:"product_name"`
	Quantity        int64                                  `gorm:"not null;check:quantity > 0" json:"quantity"`
	UnitPrice       int64                                  `gorm:"not null"                  json:"unit_price"`
	LineTotal       int64                                  `gorm:"not null"                  json:"line_total"`
	SelectedOptions datatypes.JSONType[[]options.Selected] `json:"selected_options"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) (err error) {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (OrderItem) TableName() string { return "order_items" }

// PaymentInfo is the receipt summary stored on the order once a charge succeeds.
type PaymentInfo struct {
	PaymentID     string     `json:"payment_id,omitempty"`
	TransactionID string     `json:"transaction_id,omitempty"`
	Amount        int64      `json:"amount,omitempty"`
	Currency      string     `json:"currency,omitempty"`
	Method        string     `json:"method,omitempty"`
	CardIssuer    string     `json:"card_issuer,omitempty"`
	CardNumber    string     `json:"card_number,omitempty"`
	PGProvider    string     `json:"pg_provider,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	BuyerName     string     `json:"buyer_name,omitempty"`
	BuyerEmail    string     `json:"buyer_email,omitempty"`
	ReceiptURL    string     `json:"receipt_url,omitempty"`
}

const (
	TrackLifecycle = "LIFECYCLE"
	TrackBilling   = "BILLING"
)

// OrderStatusHistory is append-only.
type OrderStatusHistory struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"      json:"id"`
	OrderID    uuid.UUID  `gorm:"type:uuid;not null;index"  json:"order_id"`
	Track      string     `gorm:"type:varchar(16);not null" json:"track"`
	FromStatus string     `gorm:"type:varchar(32)"          json:"from_status"`
	ToStatus   string     `gorm:"type:varchar(32);not null" json:"to_status"`
	Note       string     `json:"note,omitempty"`
	ActorID    *uuid.UUID `gorm:"type:uuid"                 json:"actor_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (h *OrderStatusHistory) BeforeCreate(tx *gorm.DB) (err error) {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

func (OrderStatusHistory) TableName() string { return "order_status_histories" }
