package repo

import (
	"context"
	"errors"
	"time"

	"github.com/Skotchmaster/fundshop/services/commerce/internal/domain"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var errNotApplied = errors.New("settlement not applied")

func (r *GormRepo) getSchedule(ctx context.Context, query string, arg any) (*models.BillingSchedule, error) {
	var s models.BillingSchedule
	if err := r.DB.WithContext(ctx).Preload("Deltas").Where(query, arg).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormRepo) GetSchedule(ctx context.Context, id uuid.UUID) (*models.BillingSchedule, error) {
	return r.getSchedule(ctx, "id = ?", id)
}

func (r *GormRepo) GetScheduleByPaymentID(ctx context.Context, paymentID string) (*models.BillingSchedule, error) {
	return r.getSchedule(ctx, "payment_id = ?", paymentID)
}

func (r *GormRepo) GetScheduleByGatewayID(ctx context.Context, gatewayScheduleID string) (*models.BillingSchedule, error) {
	return r.getSchedule(ctx, "gateway_schedule_id = ?", gatewayScheduleID)
}

func (r *GormRepo) GetScheduleByOrderID(ctx context.Context, orderID uuid.UUID) (*models.BillingSchedule, error) {
	return r.getSchedule(ctx, "order_id = ?", orderID)
}

type SettlementCommit struct {
	Schedule *models.BillingSchedule
	Response datatypes.JSON
	Info     models.PaymentInfo
	Record   *models.PaymentRecord
	At       time.Time
}

// CommitSettlement applies a successful charge: schedule EXECUTED, order CONFIRMED/EXECUTED,
// payment record, funding increments. It returns false when another delivery already
// moved the schedule out of SCHEDULED.
func (r *GormRepo) CommitSettlement(ctx context.Context, c SettlementCommit) (bool, error) {
	s := c.Schedule
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.BillingSchedule{}).
			Where("id = ? AND status = ?", s.ID, domain.ScheduleScheduled).
			Updates(map[string]any{
				"status":           domain.ScheduleExecuted,
				"gateway_response": c.Response,
				"failure_reason":   "",
				"executed_at":      c.At,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errNotApplied
		}

		res = tx.Model(&models.Order{}).
			Where("id = ? AND status = ? AND billing_status = ? AND billing_executed_at IS NULL",
				s.OrderID, domain.OrderPending, domain.BillingScheduled).
			Updates(map[string]any{
				"status":              domain.OrderConfirmed,
				"billing_status":      domain.BillingExecuted,
				"billing_executed_at": c.At,
				"payment_id":          s.PaymentID,
				"payment_info":        datatypes.NewJSONType(c.Info),
				"crowdfund_status":    domain.FineBillingCompleted,
				"status_updated_at":   c.At,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleState
		}

		if err := tx.Create(c.Record).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return err
		}

		if err := applyFundingDeltas(tx, s.Deltas); err != nil {
			return err
		}

		for _, h := range []struct{ track, from, to string }{
			{models.TrackBilling, string(domain.BillingScheduled), string(domain.BillingExecuted)},
			{models.TrackLifecycle, string(domain.OrderPending), string(domain.OrderConfirmed)},
			{string(domain.ProductCrowdfund), string(domain.FineOrdered), string(domain.FineBillingCompleted)},
		} {
			if err := appendHistory(tx, s.OrderID, h.track, h.from, h.to, "charge settled", nil, c.At); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, errNotApplied) {
		return false, nil
	}
	return err == nil, err
}

// NoteCompensation stores the reason a paid charge is about to be refunded, so a redelivery
// after the refund still records it. The schedule stays SCHEDULED.
func (r *GormRepo) NoteCompensation(ctx context.Context, scheduleID uuid.UUID, reason string) error {
	return r.DB.WithContext(ctx).Model(&models.BillingSchedule{}).
		Where("id = ? AND status = ?", scheduleID, domain.ScheduleScheduled).
		Update("failure_reason", reason).Error
}

// CommitSettlementFailure marks the schedule FAILED and the order CANCELLED/FAILED.
// Funding totals are not touched.
func (r *GormRepo) CommitSettlementFailure(ctx context.Context, s *models.BillingSchedule, reason string, response datatypes.JSON, at time.Time) (bool, error) {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"status":         domain.ScheduleFailed,
			"failure_reason": reason,
		}
		if len(response) > 0 {
			updates["gateway_response"] = response
		}
		res := tx.Model(&models.BillingSchedule{}).
			Where("id = ? AND status = ?", s.ID, domain.ScheduleScheduled).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errNotApplied
		}

		res = tx.Model(&models.Order{}).
			Where("id = ? AND billing_status = ?", s.OrderID, domain.BillingScheduled).
			Updates(map[string]any{
				"status":            domain.OrderCancelled,
				"billing_status":    domain.BillingFailed,
				"cancel_reason":     reason,
				"cancelled_at":      at,
				"status_updated_at": at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleState
		}

		if err := appendHistory(tx, s.OrderID, models.TrackBilling, string(domain.BillingScheduled), string(domain.BillingFailed), reason, nil, at); err != nil {
			return err
		}
		return appendHistory(tx, s.OrderID, models.TrackLifecycle, string(domain.OrderPending), string(domain.OrderCancelled), reason, nil, at)
	})
	if errors.Is(err, errNotApplied) {
		return false, nil
	}
	return err == nil, err
}

func (r *GormRepo) GetPaymentRecords(ctx context.Context, orderID uuid.UUID) ([]models.PaymentRecord, error) {
	var rows []models.PaymentRecord
	if err := r.DB.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
