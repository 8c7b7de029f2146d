package repo

import (
	"context"
	"errors"

	"github.com/Skotchmaster/fundshop/services/commerce/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (r *GormRepo) GetCart(ctx context.Context, userID uuid.UUID) ([]models.CartLine, error) {
	var lines []models.CartLine
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Order("created_at ASC").Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

// GetCartLines loads the caller's lines with the given ids, or the whole cart when ids is empty.
func (r *GormRepo) GetCartLines(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]models.CartLine, error) {
	q := r.DB.WithContext(ctx).Where("user_id = ?", userID)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	var lines []models.CartLine
	if err := q.Order("created_at ASC").Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

// AddCartLine merges line into the existing (user, product, option hash) line or inserts it.
// maxQty caps the merged quantity; nil means uncapped.
func (r *GormRepo) AddCartLine(ctx context.Context, line *models.CartLine, maxQty *int64) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		key := tx.Model(&models.CartLine{}).
			Where("user_id = ? AND product_id = ? AND option_hash = ?", line.UserID, line.ProductID, line.OptionHash)
		if maxQty != nil {
			key = key.Where("quantity + ? <= ?", line.Quantity, *maxQty)
		}
		res := key.Updates(map[string]any{"quantity": gorm.Expr("quantity + ?", line.Quantity)})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return tx.Where("user_id = ? AND product_id = ? AND option_hash = ?", line.UserID, line.ProductID, line.OptionHash).
				First(line).Error
		}

		var existing models.CartLine
		err := tx.Where("user_id = ? AND product_id = ? AND option_hash = ?", line.UserID, line.ProductID, line.OptionHash).
			First(&existing).Error
		switch {
		case err == nil:
			return ErrStockExceeded
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		if maxQty != nil && line.Quantity > *maxQty {
			return ErrStockExceeded
		}
		if err := tx.Create(line).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return err
		}
		return nil
	})
}

func (r *GormRepo) DeleteCartLines(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	res := r.DB.WithContext(ctx).Where("user_id = ? AND id IN ?", userID, ids).Delete(&models.CartLine{})
	return res.RowsAffected, res.Error
}
