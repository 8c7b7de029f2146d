package repo

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/Skotchmaster/fundshop/services/commerce/internal/domain"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// applyFundingDeltas is the only code that changes product funding totals. It must run inside
// the transaction that moves a billing schedule to EXECUTED.
func applyFundingDeltas(tx *gorm.DB, deltas []models.FundingDelta) error {
	type agg struct{ amount, supporters int64 }
	byProduct := make(map[uuid.UUID]*agg, len(deltas))
	ids := make([]uuid.UUID, 0, len(deltas))
	for _, d := range deltas {
		a, ok := byProduct[d.ProductID]
		if !ok {
			a = &agg{}
			byProduct[d.ProductID] = a
			ids = append(ids, d.ProductID)
		}
		a.amount += d.Amount
		a.supporters += d.SupporterIncrement
	}
	// fixed order keeps concurrent settlements from deadlocking on postgres row locks
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })

	for _, id := range ids {
		a := byProduct[id]
		res := tx.Model(&models.Product{}).
			Where("id = ? AND type = ?", id, domain.ProductCrowdfund).
			Updates(map[string]any{
				"funding_current_amount":  gorm.Expr("funding_current_amount + ?", a.amount),
				"funding_supporter_count": gorm.Expr("funding_supporter_count + ?", a.supporters),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("apply funding delta: crowdfund product %s not found", id)
		}
	}
	return nil
}

// PendingPledges sums the deltas of still-SCHEDULED schedules per product.
func (r *GormRepo) PendingPledges(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	var rows []struct {
		ProductID uuid.UUID
		Total     int64
	}
	err := r.DB.WithContext(ctx).
		Table("billing_schedule_deltas AS d").
		Select("d.product_id AS product_id, COALESCE(SUM(d.amount), 0) AS total").
		Joins("JOIN billing_schedules s ON s.id = d.schedule_id").
		Where("s.status = ? AND d.product_id IN ?", domain.ScheduleScheduled, productIDs).
		Group("d.product_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		out[row.ProductID] = row.Total
	}
	return out, nil
}
