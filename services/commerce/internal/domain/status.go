package domain

import "slices"

type ProductType string

const (
	ProductPreOrder  ProductType = "PRE_ORDER"
	ProductCrowdfund ProductType = "CROWDFUND"
)

func (t ProductType) Valid() bool {
	return t == ProductPreOrder || t == ProductCrowdfund
}

// OrderStatus is the coarse lifecycle of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderShipped   OrderStatus = "SHIPPED"
	OrderDelivered OrderStatus = "DELIVERED"
	OrderCancelled OrderStatus = "CANCELLED"
)

var lifecycleTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderConfirmed, OrderCancelled},
	OrderConfirmed: {OrderShipped, OrderCancelled},
	OrderShipped:   {OrderDelivered},
	OrderDelivered: nil,
	OrderCancelled: nil,
}

func (s OrderStatus) CanTransition(to OrderStatus) bool {
	return slices.Contains(lifecycleTransitions[s], to)
}

func (s OrderStatus) Terminal() bool {
	next, ok := lifecycleTransitions[s]
	return ok && len(next) == 0
}

// BillingStatus tracks the deferred charge of a crowdfund order. Pre-orders stay NONE.
type BillingStatus string

const (
	BillingNone      BillingStatus = "NONE"
	BillingScheduled BillingStatus = "SCHEDULED"
	BillingExecuted  BillingStatus = "EXECUTED"
	BillingFailed    BillingStatus = "FAILED"
	BillingCancelled BillingStatus = "CANCELLED"
)

var billingTransitions = map[BillingStatus][]BillingStatus{
	BillingNone:      {BillingScheduled},
	BillingScheduled: {BillingExecuted, BillingFailed, BillingCancelled},
	BillingExecuted:  nil,
	BillingFailed:    nil,
	BillingCancelled: nil,
}

func (s BillingStatus) CanTransition(to BillingStatus) bool {
	return slices.Contains(billingTransitions[s], to)
}

func (s BillingStatus) Terminal() bool {
	next, ok := billingTransitions[s]
	return ok && len(next) == 0
}

type ScheduleStatus string

const (
	ScheduleScheduled ScheduleStatus = "SCHEDULED"
	ScheduleExecuted  ScheduleStatus = "EXECUTED"
	ScheduleFailed    ScheduleStatus = "FAILED"
	ScheduleCancelled ScheduleStatus = "CANCELLED"
)

var scheduleTransitions = map[ScheduleStatus][]ScheduleStatus{
	ScheduleScheduled: {ScheduleExecuted, ScheduleFailed, ScheduleCancelled},
	ScheduleExecuted:  nil,
	ScheduleFailed:    nil,
	ScheduleCancelled: nil,
}

func (s ScheduleStatus) CanTransition(to ScheduleStatus) bool {
	return slices.Contains(scheduleTransitions[s], to)
}

func (s ScheduleStatus) Terminal() bool {
	next, ok := scheduleTransitions[s]
	return ok && len(next) == 0
}

// LifecyclePath returns the legal steps leading from one lifecycle status to another,
// excluding from. It is empty when to is unreachable.
func LifecyclePath(from, to OrderStatus) []OrderStatus {
	if from == to {
		return nil
	}
	prev := map[OrderStatus]OrderStatus{from: ""}
	queue := []OrderStatus{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range lifecycleTransitions[cur] {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = cur
			if next == to {
				var path []OrderStatus
				for s := to; s != from; s = prev[s] {
					path = append([]OrderStatus{s}, path...)
				}
				return path
			}
			queue = append(queue, next)
		}
	}
	return nil
}
