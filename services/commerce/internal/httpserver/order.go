package httpserver

import (
	"net/http"

	"github.com/Skotchmaster/fundshop/pkg/logging"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/service"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/transport"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/util"
	"github.com/labstack/echo/v4"
)

type OrderHTTP struct {
	Svc *service.OrderService
}

func (h *OrderHTTP) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.checkout")

	userID, err := GetID(c)
	if err != nil {
		l.Warn("checkout_error", "status", 401, "reason", "unauthorized", "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req transport.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("checkout_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	order, err := h.Svc.Checkout(ctx, userID, req)
	if err != nil {
		return fail(c, l, "checkout_error", err)
	}

	l.Info("checkout_success", "order_id", order.ID, "type", order.ProductType, "total", order.TotalAmount)
	return c.JSON(http.StatusCreated, order)
}

func (h *OrderHTTP) GetOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_orders")

	caller, err := GetCaller(c)
	if err != nil {
		l.Warn("get_orders_error", "status", 401, "reason", "unauthorized", "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	page, size := pageParams(c)
	offset, limit := util.Calculate(page, size)

	total, items, err := h.Svc.GetOrders(ctx, caller, offset, limit)
	if err != nil {
		return fail(c, l, "get_orders_error", err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": util.Meta(page, offset, limit, total),
	})
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_order")

	caller, err := GetCaller(c)
	if err != nil {
		l.Warn("get_order_error", "status", 401, "reason", "unauthorized", "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	orderID, err := paramID(c, "id")
	if err != nil {
		l.Warn("get_order_error", "status", 400, "reason", "id is not a uuid", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a uuid")
	}

	detail, err := h.Svc.GetOrder(ctx, caller, orderID)
	if err != nil {
		return fail(c, l, "get_order_error", err)
	}
	return c.JSON(http.StatusOK, detail)
}

func (h *OrderHTTP) CancelOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.cancel_order")

	userID, err := GetID(c)
	if err != nil {
		l.Warn("cancel_order_error", "status", 401, "reason", "unauthorized", "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	orderID, err := paramID(c, "id")
	if err != nil {
		l.Warn("cancel_order_error", "status", 400, "reason", "id is not a uuid", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a uuid")
	}

	// the body is optional
	var req transport.CancelOrderRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			l.Warn("cancel_order_error", "status", 400, "reason", "invalid body", "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
		}
	}

	order, err := h.Svc.CancelOrder(ctx, userID, orderID, req.Reason)
	if err != nil {
		return fail(c, l, "cancel_order_error", err)
	}

	l.Info("cancel_order_success", "order_id", order.ID)
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) ConfirmPayment(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.confirm_payment")

	userID, err := GetID(c)
	if err != nil {
		l.Warn("confirm_payment_error", "status", 401, "reason", "unauthorized", "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	orderID, err := paramID(c, "id")
	if err != nil {
		l.Warn("confirm_payment_error", "status", 400, "reason", "id is not a uuid", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a uuid")
	}

	var req transport.ConfirmPaymentRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("confirm_payment_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	order, err := h.Svc.ConfirmPreorderPayment(ctx, userID, orderID, req)
	if err != nil {
		return fail(c, l, "confirm_payment_error", err)
	}

	l.Info("confirm_payment_success", "order_id", order.ID)
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) UpdateFulfillment(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.update_fulfillment")

	caller, err := GetCaller(c)
	if err != nil {
		l.Warn("update_fulfillment_error", "status", 401, "reason", "unauthorized", "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	orderID, err := paramID(c, "id")
	if err != nil {
		l.Warn("update_fulfillment_error", "status", 400, "reason", "id is not a uuid", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a uuid")
	}

	var req transport.FulfillmentRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_fulfillment_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	order, err := h.Svc.UpdateFulfillment(ctx, caller, orderID, req)
	if err != nil {
		return fail(c, l, "update_fulfillment_error", err)
	}

	l.Info("update_fulfillment_success", "order_id", order.ID, "status", req.Status)
	return c.JSON(http.StatusOK, order)
}
