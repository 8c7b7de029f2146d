package service

import (
	"context"
	"time"

	"github.com/Skotchmaster/fundshop/pkg/paymentclient"
)

// Gateway is the subset of the payment gateway API the service relies on.
type Gateway interface {
	ConfirmPayment(ctx context.Context, paymentID string, req paymentclient.ConfirmRequest) (*paymentclient.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*paymentclient.Payment, error)
	CancelPayment(ctx context.Context, paymentID string, req paymentclient.CancelRequest) (*paymentclient.Cancellation, error)
	CreatePaymentSchedule(ctx context.Context, paymentID string, req paymentclient.ScheduleRequest) (*paymentclient.Schedule, error)
	RevokePaymentSchedules(ctx context.Context, req paymentclient.RevokeRequest) (*paymentclient.RevokeResult, error)
	GetBillingKeyInfo(ctx context.Context, billingKey string) (*paymentclient.BillingKeyInfo, error)
}

type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}
