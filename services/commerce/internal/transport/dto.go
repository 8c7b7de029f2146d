package transport

import (
	"time"

	"github.com/Skotchmaster/fundshop/services/commerce/internal/domain"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/models"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/options"
	"github.com/google/uuid"
)

type CreateProductRequest struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Type        domain.ProductType  `json:"type"`
	BasePrice   int64               `json:"base_price"`
	Stock       int64               `json:"stock"`
	Options     []options.RawOption `json:"options"`
	// crowdfund only
	FundingGoalAmount *int64     `json:"funding_goal_amount"`
	FundingDeadline   *time.Time `json:"funding_deadline"`
	Inactive          bool       `json:"inactive"`
}

type AddCartLineRequest struct {
	ProductID uuid.UUID           `json:"product_id"`
	Quantity  int64               `json:"quantity"`
	Options   []options.Selection `json:"options"`
}

type DeleteCartLinesRequest struct {
	LineIDs []uuid.UUID `json:"line_ids"`
}

type CheckoutRequest struct {
	// empty means the whole cart
	LineIDs         []uuid.UUID `json:"line_ids"`
	BuyerName       string      `json:"buyer_name"`
	BuyerEmail      string      `json:"buyer_email"`
	BuyerPhone      string      `json:"buyer_phone"`
	ShippingAddress string      `json:"shipping_address"`
	BillingKey      string      `json:"billing_key"`
}

type ConfirmPaymentRequest struct {
	PaymentToken string `json:"payment_token"`
	TxID         string `json:"tx_id"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

type FulfillmentRequest struct {
	ProductType domain.ProductType `json:"product_type"`
	Status      domain.FineStatus  `json:"status"`
	Note        string             `json:"note"`
}

type WebhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type OrderDetail struct {
	Order    *models.Order               `json:"order"`
	History  []models.OrderStatusHistory `json:"history"`
	Schedule *models.BillingSchedule     `json:"billing_schedule,omitempty"`
	Payments []models.PaymentRecord      `json:"payments"`
}

type FundingStatus struct {
	ProductID      uuid.UUID  `json:"product_id"`
	Goal           int64      `json:"goal"`
	Settled        int64      `json:"settled"`
	Pending        int64      `json:"pending"`
	Committed      int64      `json:"committed"`
	Percentage     string     `json:"percentage"`
	Supporters     int64      `json:"supporters"`
	Deadline       *time.Time `json:"deadline,omitempty"`
	DeadlinePassed bool       `json:"deadline_passed"`
	GoalReached    bool       `json:"goal_reached"`
	Approved       bool       `json:"billing_approved"`
}
