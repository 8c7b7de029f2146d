package repo

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/Skotchmaster/fundshop/services/commerce/internal/domain"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CheckoutWrite struct {
	Order *models.Order
	// crowdfund orders only
	Schedule *models.BillingSchedule
	// pre-order only: product -> quantity to take out of stock
	StockDecrements map[uuid.UUID]int64
	CartLineIDs     []uuid.UUID
}

func sortedIDs[V any](m map[uuid.UUID]V) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	return ids
}

func appendHistory(tx *gorm.DB, orderID uuid.UUID, track, from, to, note string, actor *uuid.UUID, at time.Time) error {
	return tx.Create(&models.OrderStatusHistory{
		OrderID:    orderID,
		Track:      track,
		FromStatus: from,
		ToStatus:   to,
		Note:       note,
		ActorID:    actor,
		CreatedAt:  at,
	}).Error
}

// CreateOrder writes the order, its schedule and stock changes, and consumes the cart lines
// in one transaction.
func (r *GormRepo) CreateOrder(ctx context.Context, w CheckoutWrite) error {
	o := w.Order
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(w.CartLineIDs) > 0 {
			res := tx.Where("user_id = ? AND id IN ?", o.UserID, w.CartLineIDs).Delete(&models.CartLine{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected != int64(len(w.CartLineIDs)) {
				return ErrStaleState
			}
		}

		for _, pid := range sortedIDs(w.StockDecrements) {
			qty := w.StockDecrements[pid]
			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock >= ?", pid, qty).
				Updates(map[string]any{"stock": gorm.Expr("stock - ?", qty)})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrStockExceeded
			}
		}

		if err := tx.Create(o).Error; err != nil {
			return err
		}
		if w.Schedule != nil {
			w.Schedule.OrderID = o.ID
			if err := tx.Create(w.Schedule).Error; err != nil {
				return err
			}
		}

		actor := o.UserID
		if err := appendHistory(tx, o.ID, models.TrackLifecycle, "", string(o.Status), "", &actor, o.CreatedAt); err != nil {
			return err
		}
		if fine := o.FineStatus(o.ProductType); fine != nil {
			if err := appendHistory(tx, o.ID, string(o.ProductType), "", string(*fine), "", &actor, o.CreatedAt); err != nil {
				return err
			}
		}
		if o.BillingStatus != domain.BillingNone {
			return appendHistory(tx, o.ID, models.TrackBilling, string(domain.BillingNone), string(o.BillingStatus), "", &actor, o.CreatedAt)
		}
		return nil
	})
}

func (r *GormRepo) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.DB.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrders pages through orders, newest first. A nil userID lists every order.
func (r *GormRepo) GetOrders(ctx context.Context, userID *uuid.UUID, offset, limit int) (int64, []models.Order, error) {
	q := r.DB.WithContext(ctx).Model(&models.Order{})
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var orders []models.Order
	if err := q.Preload("Items").Order(newestFirst).Offset(offset).Limit(limit).Find(&orders).Error; err != nil {
		return 0, nil, err
	}
	return total, orders, nil
}

func (r *GormRepo) GetOrderHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	var rows []models.OrderStatusHistory
	if err := r.DB.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *GormRepo) OrderHasSellerItem(ctx context.Context, orderID, sellerID uuid.UUID, typ domain.ProductType) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.OrderItem{}).
		Where("order_id = ? AND seller_id = ? AND product_type = ?", orderID, sellerID, typ).
		Count(&n).Error
	return n > 0, err
}

func (r *GormRepo) OrderHasSeller(ctx context.Context, orderID, sellerID uuid.UUID) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.OrderItem{}).
		Where("order_id = ? AND seller_id = ?", orderID, sellerID).
		Count(&n).Error
	return n > 0, err
}

// CancelCrowdfundOrder cancels a pledge that has not been charged. The schedule is touched
// before the order, the same order settlement uses.
func (r *GormRepo) CancelCrowdfundOrder(ctx context.Context, orderID, userID uuid.UUID, reason string, at time.Time) (*models.BillingSchedule, error) {
	var sched models.BillingSchedule
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.BillingSchedule{}).
			Where("order_id = ? AND status = ?", orderID, domain.ScheduleScheduled).
			Updates(map[string]any{
				"status":         domain.ScheduleCancelled,
				"failure_reason": reason,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleState
		}

		res = tx.Model(&models.Order{}).
			Where("id = ? AND user_id = ? AND product_type = ? AND status = ? AND billing_status = ? AND crowdfund_status = ? AND billing_executed_at IS NULL",
				orderID, userID, domain.ProductCrowdfund, domain.OrderPending, domain.BillingScheduled, domain.FineOrdered).
			Updates(map[string]any{
				"status":            domain.OrderCancelled,
				"billing_status":    domain.BillingCancelled,
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

		if err := appendHistory(tx, orderID, models.TrackLifecycle, string(domain.OrderPending), string(domain.OrderCancelled), reason, &userID, at); err != nil {
			return err
		}
		if err := appendHistory(tx, orderID, models.TrackBilling, string(domain.BillingScheduled), string(domain.BillingCancelled), reason, &userID, at); err != nil {
			return err
		}
		return tx.Where("order_id = ?", orderID).First(&sched).Error
	})
	if err != nil {
		return nil, err
	}
	return &sched, nil
}

// CancelPreorder cancels an unpaid pre-order and puts its quantities back into stock.
func (r *GormRepo) CancelPreorder(ctx context.Context, orderID, userID uuid.UUID, reason string, at time.Time) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND user_id = ? AND product_type = ? AND status = ?", orderID, userID, domain.ProductPreOrder, domain.OrderPending).
			Updates(map[string]any{
				"status":            domain.OrderCancelled,
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

		var items []models.OrderItem
		if err := tx.Where("order_id = ?", orderID).Find(&items).Error; err != nil {
			return err
		}
		restock := make(map[uuid.UUID]int64, len(items))
		for _, it := range items {
			restock[it.ProductID] += it.Quantity
		}
		for _, pid := range sortedIDs(restock) {
			if err := tx.Model(&models.Product{}).Where("id = ?", pid).
				Updates(map[string]any{"stock": gorm.Expr("stock + ?", restock[pid])}).Error; err != nil {
				return err
			}
		}

		return appendHistory(tx, orderID, models.TrackLifecycle, string(domain.OrderPending), string(domain.OrderCancelled), reason, &userID, at)
	})
}

// ConfirmPreorderPayment marks a paid pre-order CONFIRMED and appends its payment record.
func (r *GormRepo) ConfirmPreorderPayment(ctx context.Context, orderID uuid.UUID, info models.PaymentInfo, rec *models.PaymentRecord, at time.Time) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND product_type = ? AND status = ? AND billing_status = ?", orderID, domain.ProductPreOrder, domain.OrderPending, domain.BillingNone).
			Updates(map[string]any{
				"status":            domain.OrderConfirmed,
				"payment_info":      datatypes.NewJSONType(info),
				"status_updated_at": at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleState
		}

		if err := tx.Create(rec).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return err
		}
		return appendHistory(tx, orderID, models.TrackLifecycle, string(domain.OrderPending), string(domain.OrderConfirmed), "payment confirmed", nil, at)
	})
}

type FineUpdate struct {
	OrderID          uuid.UUID
	Track            domain.ProductType
	From, To         domain.FineStatus
	CurrentLifecycle domain.OrderStatus
	// lifecycle steps taken after CurrentLifecycle, in order; empty when it does not move
	LifecyclePath []domain.OrderStatus
	Note          string
	ActorID       uuid.UUID
	At            time.Time
}

func fineColumn(t domain.ProductType) string {
	if t == domain.ProductCrowdfund {
		return "crowdfund_status"
	}
	return "preorder_status"
}

func (r *GormRepo) UpdateFineStatus(ctx context.Context, u FineUpdate) error {
	col := fineColumn(u.Track)
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			col:                 u.To,
			"status_note":       u.Note,
			"status_updated_at": u.At,
		}
		if n := len(u.LifecyclePath); n > 0 {
			updates["status"] = u.LifecyclePath[n-1]
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND "+col+" = ? AND status = ?", u.OrderID, u.From, u.CurrentLifecycle).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleState
		}

		if err := appendHistory(tx, u.OrderID, string(u.Track), string(u.From), string(u.To), u.Note, &u.ActorID, u.At); err != nil {
			return err
		}
		from := u.CurrentLifecycle
		for _, to := range u.LifecyclePath {
			if err := appendHistory(tx, u.OrderID, models.TrackLifecycle, string(from), string(to), u.Note, &u.ActorID, u.At); err != nil {
				return err
			}
			from = to
		}
		return nil
	})
}
