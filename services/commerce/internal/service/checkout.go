package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/Skotchmaster/fundshop/pkg/logging"
	"github.com/Skotchmaster/fundshop/pkg/paymentclient"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/domain"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/models"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/repo"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/transport"
	"github.com/google/uuid"
)

type OrderService struct {
	Repo    *repo.GormRepo
	Gateway Gateway
	Events  Publisher
	Now     Clock
	// added to the latest campaign deadline to get the charge date
	GracePeriod time.Duration
	Currency    string
}

func normalizeBuyer(req *transport.CheckoutRequest) error {
	req.BuyerName = strings.TrimSpace(req.BuyerName)
	req.BuyerEmail = strings.TrimSpace(req.BuyerEmail)
	req.BuyerPhone = strings.TrimSpace(req.BuyerPhone)
	req.ShippingAddress = strings.TrimSpace(req.ShippingAddress)

	switch {
	case req.BuyerName == "":
		return fmt.Errorf("%w: buyer_name is required", ErrValidation)
	case req.BuyerPhone == "":
		return fmt.Errorf("%w: buyer_phone is required", ErrValidation)
	case req.ShippingAddress == "":
		return fmt.Errorf("%w: shipping_address is required", ErrValidation)
	}
	if _, err := mail.ParseAddress(req.BuyerEmail); err != nil {
		return fmt.Errorf("%w: buyer_email is invalid", ErrValidation)
	}
	return nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func orderName(items []models.OrderItem) string {
	if len(items) == 1 {
		return items[0].ProductName
	}
	return fmt.Sprintf("%s and %d more", items[0].ProductName, len(items)-1)
}

// Checkout turns cart lines of a single product type into one order.
func (s *OrderService) Checkout(ctx context.Context, userID uuid.UUID, req transport.CheckoutRequest) (*models.Order, error) {
	if err := normalizeBuyer(&req); err != nil {
		return nil, err
	}

	ids := uniqueIDs(req.LineIDs)
	lines, err := s.Repo.GetCartLines(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", ErrValidation)
	}
	if len(ids) > 0 && len(lines) != len(ids) {
		return nil, fmt.Errorf("%w: some cart lines were not found", ErrValidation)
	}

	typ := lines[0].ProductType
	productIDs := make([]uuid.UUID, 0, len(lines))
	lineIDs := make([]uuid.UUID, 0, len(lines))
	for _, ln := range lines {
		if ln.ProductType != typ {
			return nil, fmt.Errorf("%w: pre-order and crowdfund items must be checked out separately", ErrValidation)
		}
		productIDs = append(productIDs, ln.ProductID)
		lineIDs = append(lineIDs, ln.ID)
	}

	products, err := s.Repo.GetProductsByIDs(ctx, uniqueIDs(productIDs))
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:              uuid.New(),
		UserID:          userID,
		BuyerName:       req.BuyerName,
		BuyerEmail:      req.BuyerEmail,
		BuyerPhone:      req.BuyerPhone,
		ShippingAddress: req.ShippingAddress,
		ProductType:     typ,
		Status:          domain.OrderPending,
		BillingStatus:   domain.BillingNone,
	}
	for _, ln := range lines {
		p, ok := products[ln.ProductID]
		if !ok || !p.IsActive {
			return nil, fmt.Errorf("%w: product %s is not available", ErrValidation, ln.ProductID)
		}
		lineTotal, err := ln.LineTotal()
		if err != nil {
			return nil, fmt.Errorf("%w: line total for %q is out of range", ErrValidation, p.Name)
		}
		item := models.OrderItem{
			ProductID:       p.ID,
			SellerID:        p.SellerID,
			ProductType:     p.Type,
			ProductName:     p.Name,
			Quantity:        ln.Quantity,
			UnitPrice:       ln.UnitPrice,
			LineTotal:       lineTotal,
			SelectedOptions: ln.SelectedOptions,
		}
		order.Items = append(order.Items, item)
		if order.TotalAmount, err = domain.AddAmount(order.TotalAmount, lineTotal); err != nil {
			return nil, fmt.Errorf("%w: order total is out of range", ErrValidation)
		}
	}

	switch typ {
	case domain.ProductPreOrder:
		err = s.checkoutPreorder(ctx, order, lineIDs)
	case domain.ProductCrowdfund:
		err = s.checkoutCrowdfund(ctx, order, lineIDs, products, strings.TrimSpace(req.BillingKey))
	default:
		err = fmt.Errorf("%w: unknown product type %q", ErrValidation, typ)
	}
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("order_created", "order_id", order.ID, "product_type", typ, "total", order.TotalAmount)
	publish(ctx, s.Events, TopicOrder, order.ID.String(), map[string]any{
		"type":         "order_created",
		"order_id":     order.ID,
		"user_id":      userID,
		"product_type": typ,
		"total_amount": order.TotalAmount,
		"payment_id":   order.PaymentID,
	})
	return order, nil
}

func checkoutWriteErr(err error) error {
	switch {
	case errors.Is(err, repo.ErrStockExceeded):
		return fmt.Errorf("%w: insufficient stock", ErrConflict)
	case errors.Is(err, repo.ErrStaleState):
		return fmt.Errorf("%w: cart changed during checkout, please retry", ErrConflict)
	}
	return err
}

func (s *OrderService) checkoutPreorder(ctx context.Context, order *models.Order, lineIDs []uuid.UUID) error {
	fine := domain.PreorderTrack.Initial()
	order.PreorderStatus = &fine
	order.PaymentID = "po-" + order.ID.String()
	order.CreatedAt = s.Now.now()

	decrements := make(map[uuid.UUID]int64, len(order.Items))
	for _, it := range order.Items {
		decrements[it.ProductID] += it.Quantity
	}

	return checkoutWriteErr(s.Repo.CreateOrder(ctx, repo.CheckoutWrite{
		Order:           order,
		StockDecrements: decrements,
		CartLineIDs:     lineIDs,
	}))
}

// checkoutCrowdfund registers the deferred charge at the gateway first and only then writes
// the order. If the write fails the gateway schedule is revoked.
func (s *OrderService) checkoutCrowdfund(ctx context.Context, order *models.Order, lineIDs []uuid.UUID, products map[uuid.UUID]models.Product, billingKey string) error {
	l := logging.FromContext(ctx).With("order_id", order.ID)
	if billingKey == "" {
		return fmt.Errorf("%w: billing_key is required for crowdfund orders", ErrValidation)
	}

	now := s.Now.now()
	var latest time.Time
	deltas := make(map[uuid.UUID]int64)
	var productOrder []uuid.UUID
	for _, it := range order.Items {
		p := products[it.ProductID]
		if !p.FundingOpen(now) || p.FundingGoalAmount == nil {
			return fmt.Errorf("%w: funding for %q is closed", ErrValidation, p.Name)
		}
		if p.FundingDeadline.After(latest) {
			latest = *p.FundingDeadline
		}
		if _, ok := deltas[p.ID]; !ok {
			productOrder = append(productOrder, p.ID)
		}
		sum, err := domain.AddAmount(deltas[p.ID], it.LineTotal)
		if err != nil {
			return fmt.Errorf("%w: pledge for %q is out of range", ErrValidation, p.Name)
		}
		deltas[p.ID] = sum
	}

	info, err := s.Gateway.GetBillingKeyInfo(ctx, billingKey)
	if err != nil {
		if errors.Is(err, paymentclient.ErrUnavailable) {
			return gatewayErr("get billing key", err)
		}
		return fmt.Errorf("%w: billing key is not valid", ErrValidation)
	}
	if !info.Usable() {
		return fmt.Errorf("%w: billing key is %s", ErrValidation, strings.ToLower(info.Status))
	}

	order.PaymentID = "cf-" + order.ID.String()
	scheduledAt := latest.Add(s.GracePeriod)
	sched, err := s.Gateway.CreatePaymentSchedule(ctx, order.PaymentID, paymentclient.ScheduleRequest{
		Payment: paymentclient.BillingKeyPayment{
			BillingKey: billingKey,
			OrderName:  orderName(order.Items),
			Customer: paymentclient.Customer{
				ID:          order.UserID.String(),
				Name:        order.BuyerName,
				Email:       order.BuyerEmail,
				PhoneNumber: order.BuyerPhone,
			},
			Amount:   paymentclient.Amount{Total: order.TotalAmount},
			Currency: s.Currency,
		},
		TimeToPay: scheduledAt,
	})
	if err != nil {
		if errors.Is(err, paymentclient.ErrUnavailable) {
			return gatewayErr("create payment schedule", err)
		}
		return fmt.Errorf("%w: payment schedule rejected: %v", ErrValidation, err)
	}

	fine := domain.CrowdfundTrack.Initial()
	order.CrowdfundStatus = &fine
	order.BillingStatus = domain.BillingScheduled
	order.CreatedAt = now

	schedule := &models.BillingSchedule{
		UserID:            order.UserID,
		BillingKey:        billingKey,
		PaymentID:         order.PaymentID,
		Amount:            order.TotalAmount,
		Currency:          s.Currency,
		ScheduledAt:       scheduledAt,
		GatewayScheduleID: sched.ID,
		Status:            domain.ScheduleScheduled,
	}
	for _, pid := range productOrder {
		schedule.Deltas = append(schedule.Deltas, models.FundingDelta{
			ProductID:          pid,
			Amount:             deltas[pid],
			SupporterIncrement: 1,
		})
	}

	err = s.Repo.CreateOrder(ctx, repo.CheckoutWrite{
		Order:       order,
		Schedule:    schedule,
		CartLineIDs: lineIDs,
	})
	if err != nil {
		s.revokeSchedule(ctx, sched.ID)
		return checkoutWriteErr(err)
	}

	l.Info("billing_scheduled", "schedule_id", schedule.ID, "gateway_schedule_id", sched.ID, "scheduled_at", scheduledAt)
	return nil
}

// revokeSchedule is best effort; a schedule left behind at the gateway settles to a no-op
// because nothing local refers to its payment id.
func (s *OrderService) revokeSchedule(ctx context.Context, gatewayScheduleID string) {
	if gatewayScheduleID == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if _, err := s.Gateway.RevokePaymentSchedules(ctx, paymentclient.RevokeRequest{
		ScheduleIDs: []string{gatewayScheduleID},
	}); err != nil {
		logging.FromContext(ctx).Warn("revoke_schedule_failed", "gateway_schedule_id", gatewayScheduleID, "error", err)
	}
}

func paymentInfo(p *paymentclient.Payment, order *models.Order, currency string) models.PaymentInfo {
	info := models.PaymentInfo{
		PaymentID:     p.ID,
		TransactionID: p.TransactionID,
		Amount:        p.Amount.Total,
		Currency:      p.Currency,
		PaidAt:        p.PaidAt,
		BuyerName:     order.BuyerName,
		BuyerEmail:    order.BuyerEmail,
		ReceiptURL:    p.ReceiptURL,
	}
	if info.Currency == "" {
		info.Currency = currency
	}
	if p.Method != nil {
		info.Method = p.Method.Type
		if p.Method.Card != nil {
			info.CardIssuer = p.Method.Card.Issuer
			info.CardNumber = p.Method.Card.Number
		}
	}
	if p.Channel != nil {
		info.PGProvider = p.Channel.PGProvider
	}
	if p.Customer.Name != "" {
		info.BuyerName = p.Customer.Name
	}
	if p.Customer.Email != "" {
		info.BuyerEmail = p.Customer.Email
	}
	return info
}

func paymentRecord(p *paymentclient.Payment, order *models.Order, info models.PaymentInfo) *models.PaymentRecord {
	return &models.PaymentRecord{
		OrderID:       order.ID,
		UserID:        order.UserID,
		PaymentID:     order.PaymentID,
		TransactionID: p.TransactionID,
		Amount:        p.Amount.Total,
		Method:        info.Method,
		PGProvider:    info.PGProvider,
		RawPayload:    rawJSON(p.Raw),
	}
}

// ConfirmPreorderPayment confirms the buyer's payment with the gateway, then trusts only the
// gateway's own payment record. A repeat call on a confirmed order returns it unchanged.
func (s *OrderService) ConfirmPreorderPayment(ctx context.Context, userID, orderID uuid.UUID, req transport.ConfirmPaymentRequest) (*models.Order, error) {
	l := logging.FromContext(ctx).With("order_id", orderID)

	order, err := s.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "order")
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("%w: not your order", ErrForbidden)
	}
	if order.ProductType != domain.ProductPreOrder {
		return nil, fmt.Errorf("%w: crowdfund orders are charged after the campaign ends", ErrValidation)
	}
	switch order.Status {
	case domain.OrderPending:
	case domain.OrderCancelled:
		return nil, fmt.Errorf("%w: order already cancelled", ErrConflict)
	default:
		return order, nil
	}

	if _, err := s.Gateway.ConfirmPayment(ctx, order.PaymentID, paymentclient.ConfirmRequest{
		PaymentToken: req.PaymentToken,
		TxID:         req.TxID,
		Amount:       order.TotalAmount,
		Currency:     s.Currency,
	}); err != nil {
		if errors.Is(err, paymentclient.ErrUnavailable) {
			return nil, gatewayErr("confirm payment", err)
		}
		return nil, fmt.Errorf("%w: payment could not be confirmed: %v", ErrConflict, err)
	}

	payment, err := s.Gateway.GetPayment(ctx, order.PaymentID)
	if err != nil {
		return nil, gatewayErr("get payment", err)
	}
	if payment.Status != paymentclient.StatusPaid {
		return nil, fmt.Errorf("%w: payment is %s", ErrConflict, strings.ToLower(string(payment.Status)))
	}
	if payment.Amount.Total != order.TotalAmount {
		l.Error("payment_amount_mismatch", "expected", order.TotalAmount, "paid", payment.Amount.Total)
		if err := s.refund(ctx, order.PaymentID, payment.Amount.Total, "amount mismatch"); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: paid amount does not match the order total; payment refunded", ErrConflict)
	}

	info := paymentInfo(payment, order, s.Currency)
	err = s.Repo.ConfirmPreorderPayment(ctx, order.ID, info, paymentRecord(payment, order, info), s.Now.now())
	if errors.Is(err, repo.ErrStaleState) || errors.Is(err, repo.ErrDuplicate) {
		current, gerr := s.Repo.GetOrder(ctx, orderID)
		if gerr != nil {
			return nil, gerr
		}
		if current.Status == domain.OrderCancelled {
			if err := s.refund(ctx, order.PaymentID, payment.Amount.Total, "order cancelled before payment confirmation"); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: order already cancelled; payment refunded", ErrConflict)
		}
		return current, nil
	}
	if err != nil {
		return nil, err
	}

	l.Info("preorder_payment_confirmed", "payment_id", order.PaymentID)
	publish(ctx, s.Events, TopicPayment, order.ID.String(), map[string]any{
		"type":       "preorder_paid",
		"order_id":   order.ID,
		"payment_id": order.PaymentID,
		"amount":     payment.Amount.Total,
	})
	return s.Repo.GetOrder(ctx, orderID)
}

// refund issues a full cancel-payment. A payment the gateway already cancelled counts as done.
func (s *OrderService) refund(ctx context.Context, paymentID string, amount int64, reason string) error {
	return cancelCharge(ctx, s.Gateway, paymentID, amount, reason)
}
