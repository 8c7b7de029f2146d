package httpserver

import (
	"errors"
	"io"
	"net/http"

	"github.com/Skotchmaster/fundshop/pkg/logging"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/service"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/transport"
	"github.com/labstack/echo/v4"
)

const maxWebhookBody = 1 << 20

type PaymentHTTP struct {
	Settlement *service.SettlementService
}

// Webhook answers 200 for every business outcome. A 5xx asks the gateway to deliver again.
func (h *PaymentHTTP) Webhook(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.webhook")

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		l.Warn("webhook_error", "status", 400, "reason", "unreadable body", "error", err)
		return c.JSON(http.StatusOK, transport.WebhookResponse{Success: false, Message: "invalid payload"})
	}

	n, err := service.ParseNotification(body)
	if err != nil {
		l.Warn("webhook_error", "status", 200, "reason", "invalid payload", "error", err)
		return c.JSON(http.StatusOK, transport.WebhookResponse{Success: false, Message: "invalid payload"})
	}

	res, err := h.Settlement.HandleNotification(ctx, n)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrGatewayUnavailable) {
			status = http.StatusBadGateway
		}
		l.Error("webhook_error", "status", status, "ref", n.Ref.Value, "error", err)
		return c.JSON(status, transport.WebhookResponse{Success: false, Message: "settlement failed, retry later"})
	}

	l.Info("webhook_success", "ref", n.Ref.Value, "outcome", res.Outcome, "message", res.Message)
	return c.JSON(http.StatusOK, transport.WebhookResponse{Success: res.Success, Message: res.Message})
}
