package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skotchmaster/fundshop/pkg/logging"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/domain"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/models"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/options"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/repo"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/transport"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type CartService struct {
	Repo   *repo.GormRepo
	Events Publisher
	Now    Clock
}

func (s *CartService) GetCart(ctx context.Context, userID uuid.UUID) ([]models.CartLine, error) {
	return s.Repo.GetCart(ctx, userID)
}

// AddLine prices the selection against the live product and merges it into the cart.
// The unit price is a snapshot; checkout does not re-price it.
func (s *CartService) AddLine(ctx context.Context, userID uuid.UUID, req transport.AddCartLineRequest) (*models.CartLine, error) {
	if req.ProductID == uuid.Nil {
		return nil, fmt.Errorf("%w: product_id is required", ErrValidation)
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}

	product, err := s.Repo.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, notFound(err, "product")
	}
	if !product.IsActive {
		return nil, fmt.Errorf("%w: product is not available", ErrValidation)
	}

	if req.Quantity > domain.MaxLineQuantity {
		return nil, fmt.Errorf("%w: quantity exceeds the per-line limit of %d", ErrValidation, domain.MaxLineQuantity)
	}

	maxQty := domain.MaxLineQuantity
	switch product.Type {
	case domain.ProductPreOrder:
		if product.Stock <= 0 {
			return nil, fmt.Errorf("%w: out of stock", ErrValidation)
		}
		maxQty = min(maxQty, product.Stock)
	case domain.ProductCrowdfund:
		if !product.FundingOpen(s.Now.now()) {
			return nil, fmt.Errorf("%w: funding closed", ErrValidation)
		}
	}

	resolved, err := options.Resolve(product.OptionSchema.Data(), req.Options, product.BasePrice)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if _, err := domain.MulAmount(resolved.UnitPrice, req.Quantity); err != nil {
		return nil, fmt.Errorf("%w: line total is out of range", ErrValidation)
	}

	line := &models.CartLine{
		UserID:          userID,
		ProductID:       product.ID,
		OptionHash:      resolved.Hash,
		ProductType:     product.Type,
		Quantity:        req.Quantity,
		UnitPrice:       resolved.UnitPrice,
		SelectedOptions: datatypes.NewJSONType(resolved.Selected),
	}

	err = s.Repo.AddCartLine(ctx, line, &maxQty)
	if errors.Is(err, repo.ErrDuplicate) {
		// lost an insert race on the line key; the row exists now, so this merges
		line.ID = uuid.Nil
		err = s.Repo.AddCartLine(ctx, line, &maxQty)
	}
	switch {
	case errors.Is(err, repo.ErrStockExceeded) && maxQty < domain.MaxLineQuantity:
		return nil, fmt.Errorf("%w: insufficient stock", ErrValidation)
	case errors.Is(err, repo.ErrStockExceeded):
		return nil, fmt.Errorf("%w: quantity exceeds the per-line limit of %d", ErrValidation, domain.MaxLineQuantity)
	case err != nil:
		return nil, err
	}

	logging.FromContext(ctx).Debug("cart_line_added", "line_id", line.ID, "product_id", product.ID, "quantity", line.Quantity)
	publish(ctx, s.Events, TopicCart, userID.String(), map[string]any{
		"type":        "cart_line_added",
		"user_id":     userID,
		"line_id":     line.ID,
		"product_id":  product.ID,
		"option_hash": line.OptionHash,
		"quantity":    line.Quantity,
	})
	return line, nil
}

func (s *CartService) RemoveLines(ctx context.Context, userID uuid.UUID, lineIDs []uuid.UUID) (int64, error) {
	if len(lineIDs) == 0 {
		return 0, fmt.Errorf("%w: line_ids is required", ErrValidation)
	}
	n, err := s.Repo.DeleteCartLines(ctx, userID, lineIDs)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		publish(ctx, s.Events, TopicCart, userID.String(), map[string]any{
			"type":     "cart_lines_removed",
			"user_id":  userID,
			"line_ids": lineIDs,
			"deleted":  n,
		})
	}
	return n, nil
}
