package service

import (
	"context"
	"time"

	"github.com/Skotchmaster/fundshop/pkg/logging"
)

const (
	TopicCart    = "cart_events"
	TopicOrder   = "order_events"
	TopicPayment = "payment_events"
)

// publish is best effort: the state change it reports is already committed.
func publish(ctx context.Context, p Publisher, topic, key string, event map[string]any) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := p.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(ctx).Error("publish_event_error", "topic", topic, "type", event["type"], "error", err)
	}
}
