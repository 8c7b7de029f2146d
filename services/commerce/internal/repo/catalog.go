package repo

import (
	"context"
	"time"

	"github.com/Skotchmaster/fundshop/services/commerce/internal/domain"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (r *GormRepo) CreateProduct(ctx context.Context, prod *models.Product) error {
	return r.DB.WithContext(ctx).Create(prod).Error
}

func (r *GormRepo) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *GormRepo) GetProductsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	var items []models.Product
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]models.Product, len(items))
	for _, p := range items {
		out[p.ID] = p
	}
	return out, nil
}

func (r *GormRepo) GetProducts(ctx context.Context, offset, limit int, typ domain.ProductType) (int64, []models.Product, error) {
	q := r.DB.WithContext(ctx).Model(&models.Product{}).Where("is_active = ?", true)
	if typ != "" {
		q = q.Where("type = ?", typ)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var items []models.Product
	if err := q.Order(newestFirst).Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}

// SetBillingApproval flips the approval flag only if it currently holds the opposite value.
func (r *GormRepo) SetBillingApproval(ctx context.Context, productID uuid.UUID, approved bool, by uuid.UUID, at time.Time) (*models.Product, error) {
	updates := map[string]any{
		"billing_approved":    approved,
		"billing_approved_at": &at,
		"billing_approved_by": &by,
	}
	if !approved {
		updates["billing_approved_at"] = nil
		updates["billing_approved_by"] = nil
	}

	res := r.DB.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND type = ? AND billing_approved = ?", productID, domain.ProductCrowdfund, !approved).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrStaleState
	}
	return r.GetProduct(ctx, productID)
}
