package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Skotchmaster/fundshop/pkg/logging"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/domain"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/models"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/repo"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/transport"
	"github.com/google/uuid"
)

func (s *OrderService) GetOrders(ctx context.Context, caller Caller, offset, limit int) (int64, []models.Order, error) {
	if caller.IsAdmin() {
		return s.Repo.GetOrders(ctx, nil, offset, limit)
	}
	return s.Repo.GetOrders(ctx, &caller.UserID, offset, limit)
}

// GetOrder is visible to the buyer, admins and anyone selling an item in the order.
func (s *OrderService) GetOrder(ctx context.Context, caller Caller, orderID uuid.UUID) (*transport.OrderDetail, error) {
	order, err := s.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "order")
	}
	if order.UserID != caller.UserID && !caller.IsAdmin() {
		ok, err := s.Repo.OrderHasSeller(ctx, orderID, caller.UserID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: not your order", ErrForbidden)
		}
	}

	detail := &transport.OrderDetail{Order: order}
	if detail.History, err = s.Repo.GetOrderHistory(ctx, orderID); err != nil {
		return nil, err
	}
	if detail.Payments, err = s.Repo.GetPaymentRecords(ctx, orderID); err != nil {
		return nil, err
	}
	if order.ProductType == domain.ProductCrowdfund {
		sched, err := s.Repo.GetScheduleByOrderID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		detail.Schedule = sched
	}
	return detail, nil
}

// cancelBlocker explains why a buyer can no longer cancel the order, or returns nil.
func cancelBlocker(o *models.Order) error {
	if o.Status == domain.OrderCancelled {
		return fmt.Errorf("%w: order already cancelled", ErrConflict)
	}
	switch o.ProductType {
	case domain.ProductCrowdfund:
		if o.BillingExecutedAt != nil || o.BillingStatus == domain.BillingExecuted {
			return fmt.Errorf("%w: billing already executed, cannot cancel", ErrConflict)
		}
		fine := o.FineStatus(domain.ProductCrowdfund)
		if o.Status != domain.OrderPending || o.BillingStatus != domain.BillingScheduled || fine == nil || *fine != domain.FineOrdered {
			return fmt.Errorf("%w: order can no longer be cancelled", ErrConflict)
		}
	case domain.ProductPreOrder:
		if o.Status != domain.OrderPending {
			return fmt.Errorf("%w: payment already completed, contact the seller for a refund", ErrConflict)
		}
	}
	return nil
}

// CancelOrder is the buyer's cancellation. Funding totals are never touched: a pledge that
// was not charged was never counted.
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID uuid.UUID, reason string) (*models.Order, error) {
	l := logging.FromContext(ctx).With("order_id", orderID)

	order, err := s.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "order")
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("%w: not your order", ErrForbidden)
	}
	if err := cancelBlocker(order); err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "cancelled by buyer"
	}
	now := s.Now.now()

	switch order.ProductType {
	case domain.ProductCrowdfund:
		sched, err := s.Repo.CancelCrowdfundOrder(ctx, orderID, userID, reason, now)
		if err != nil {
			return nil, s.staleCancel(ctx, orderID, err)
		}
		s.revokeSchedule(ctx, sched.GatewayScheduleID)
	default:
		if err := s.Repo.CancelPreorder(ctx, orderID, userID, reason, now); err != nil {
			return nil, s.staleCancel(ctx, orderID, err)
		}
	}

	l.Info("order_cancelled", "product_type", order.ProductType, "reason", reason)
	publish(ctx, s.Events, TopicOrder, orderID.String(), map[string]any{
		"type":         "order_cancelled",
		"order_id":     orderID,
		"user_id":      userID,
		"product_type": order.ProductType,
		"reason":       reason,
	})
	return s.Repo.GetOrder(ctx, orderID)
}

// staleCancel turns a lost guard race into the message the buyer would have seen had the
// competing change landed first.
func (s *OrderService) staleCancel(ctx context.Context, orderID uuid.UUID, err error) error {
	if !errors.Is(err, repo.ErrStaleState) {
		return err
	}
	current, gerr := s.Repo.GetOrder(ctx, orderID)
	if gerr != nil {
		return gerr
	}
	if blocker := cancelBlocker(current); blocker != nil {
		return blocker
	}
	return fmt.Errorf("%w: order can no longer be cancelled", ErrConflict)
}
