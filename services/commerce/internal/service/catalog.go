package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Skotchmaster/fundshop/services/commerce/internal/domain"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/models"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/options"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/repo"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/transport"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type CatalogService struct {
	Repo *repo.GormRepo
	Now  Clock
}

func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, err := s.Repo.GetProduct(ctx, id)
	if err != nil {
		return nil, notFound(err, "product")
	}
	return p, nil
}

func (s *CatalogService) GetProducts(ctx context.Context, offset, limit int, typ domain.ProductType) (int64, []models.Product, error) {
	if typ != "" && !typ.Valid() {
		return 0, nil, fmt.Errorf("%w: unknown product type %q", ErrValidation, typ)
	}
	return s.Repo.GetProducts(ctx, offset, limit, typ)
}

func (s *CatalogService) CreateProduct(ctx context.Context, sellerID uuid.UUID, req transport.CreateProductRequest) (*models.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown product type %q", ErrValidation, req.Type)
	}
	if req.BasePrice < 0 {
		return nil, fmt.Errorf("%w: price cannot be negative", ErrValidation)
	}
	if req.Stock < 0 {
		return nil, fmt.Errorf("%w: stock cannot be negative", ErrValidation)
	}

	schema, err := options.NormalizeSchema(req.Options)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	prod := &models.Product{
		SellerID:     sellerID,
		Name:         name,
		Description:  strings.TrimSpace(req.Description),
		Type:         req.Type,
		IsActive:     !req.Inactive,
		BasePrice:    req.BasePrice,
		Stock:        req.Stock,
		OptionSchema: datatypes.NewJSONType(schema),
	}

	switch req.Type {
	case domain.ProductPreOrder:
		if req.FundingGoalAmount != nil || req.FundingDeadline != nil {
			return nil, fmt.Errorf("%w: funding fields are only valid for crowdfund products", ErrValidation)
		}
	case domain.ProductCrowdfund:
		if req.Stock != 0 {
			return nil, fmt.Errorf("%w: crowdfund products do not track stock", ErrValidation)
		}
		if req.FundingGoalAmount == nil || *req.FundingGoalAmount <= 0 {
			return nil, fmt.Errorf("%w: funding goal must be positive", ErrValidation)
		}
		if req.FundingDeadline == nil || !req.FundingDeadline.After(s.Now.now()) {
			return nil, fmt.Errorf("%w: funding deadline must be in the future", ErrValidation)
		}
		goal := *req.FundingGoalAmount
		deadline := req.FundingDeadline.UTC()
		prod.FundingGoalAmount = &goal
		prod.FundingDeadline = &deadline
	}

	if err := s.Repo.CreateProduct(ctx, prod); err != nil {
		return nil, err
	}
	return prod, nil
}
