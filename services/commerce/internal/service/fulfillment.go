package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Skotchmaster/fundshop/pkg/logging"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/domain"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/models"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/repo"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/transport"
	"github.com/google/uuid"
)

const maxNoteLength = 500

// UpdateFulfillment advances one product-type track of an order on behalf of a seller.
func (s *OrderService) UpdateFulfillment(ctx context.Context, caller Caller, orderID uuid.UUID, req transport.FulfillmentRequest) (*models.Order, error) {
	track, ok := domain.TrackFor(req.ProductType)
	if !ok {
		return nil, fmt.Errorf("%w: unknown product type %q", ErrValidation, req.ProductType)
	}

	order, err := s.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "order")
	}

	if !caller.IsAdmin() {
		sells, err := s.Repo.OrderHasSellerItem(ctx, orderID, caller.UserID, req.ProductType)
		if err != nil {
			return nil, err
		}
		if !sells {
			return nil, fmt.Errorf("%w: you do not sell %s items in this order", ErrForbidden, strings.ToLower(string(req.ProductType)))
		}
	}

	if !track.Contains(req.Status) {
		return nil, fmt.Errorf("%w: %q is not a %s status", ErrValidation, req.Status, strings.ToLower(string(req.ProductType)))
	}
	note := strings.TrimSpace(req.Note)
	if utf8.RuneCountInString(note) > maxNoteLength {
		return nil, fmt.Errorf("%w: note is longer than %d characters", ErrValidation, maxNoteLength)
	}

	current := order.FineStatus(req.ProductType)
	if current == nil {
		return nil, fmt.Errorf("%w: order has no %s track", ErrConflict, strings.ToLower(string(req.ProductType)))
	}
	if !track.SellerCanSet(req.Status) {
		return nil, fmt.Errorf("%w: %s is set by billing, not by sellers", ErrConflict, req.Status)
	}
	if !track.CanAdvance(*current, req.Status) {
		return nil, fmt.Errorf("%w: cannot move from %s to %s", ErrConflict, *current, req.Status)
	}
	if order.Status != domain.OrderConfirmed && order.Status != domain.OrderShipped {
		return nil, fmt.Errorf("%w: order is %s and cannot be fulfilled", ErrConflict, strings.ToLower(string(order.Status)))
	}

	var path []domain.OrderStatus
	if target, ok := track.LifecycleFor(req.Status); ok {
		path = domain.LifecyclePath(order.Status, target)
	}

	err = s.Repo.UpdateFineStatus(ctx, repo.FineUpdate{
		OrderID:          orderID,
		Track:            req.ProductType,
		From:             *current,
		To:               req.Status,
		CurrentLifecycle: order.Status,
		LifecyclePath:    path,
		Note:             note,
		ActorID:          caller.UserID,
		At:               s.Now.now(),
	})
	if errors.Is(err, repo.ErrStaleState) {
		return nil, fmt.Errorf("%w: order changed concurrently, reload and retry", ErrConflict)
	}
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("fulfillment_updated", "order_id", orderID, "track", req.ProductType, "from", *current, "to", req.Status)
	publish(ctx, s.Events, TopicOrder, orderID.String(), map[string]any{
		"type":         "order_status_updated",
		"order_id":     orderID,
		"product_type": req.ProductType,
		"from":         *current,
		"to":           req.Status,
		"note":         note,
	})
	return s.Repo.GetOrder(ctx, orderID)
}
