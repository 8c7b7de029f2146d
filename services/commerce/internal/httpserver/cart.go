package httpserver

import (
	"fmt"
	"net/http"

	"github.com/Skotchmaster/fundshop/pkg/logging"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/models"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/service"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/transport"
	"github.com/labstack/echo/v4"
)

type CartHTTP struct {
	Svc *service.CartService
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get_cart")

	userID, err := GetID(c)
	if err != nil {
		l.Warn("get_cart_error", "status", 401, "reason", "unauthorized", "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	lines, err := h.Svc.GetCart(ctx, userID)
	if err != nil {
		return fail(c, l, "get_cart_error", err)
	}

	total, err := models.CartTotal(lines)
	if err != nil {
		return fail(c, l, "get_cart_error", fmt.Errorf("%w: cart total is out of range", service.ErrValidation))
	}
	return c.JSON(http.StatusOK, map[string]any{
		"lines": lines,
		"total": total,
	})
}

func (h *CartHTTP) AddLine(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add_line")

	userID, err := GetID(c)
	if err != nil {
		l.Warn("add_line_error", "status", 401, "reason", "unauthorized", "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req transport.AddCartLineRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("add_line_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	line, err := h.Svc.AddLine(ctx, userID, req)
	if err != nil {
		return fail(c, l, "add_line_error", err)
	}

	l.Info("add_line_success", "line_id", line.ID)
	return c.JSON(http.StatusCreated, line)
}

func (h *CartHTTP) RemoveLines(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove_lines")

	userID, err := GetID(c)
	if err != nil {
		l.Warn("remove_lines_error", "status", 401, "reason", "unauthorized", "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req transport.DeleteCartLinesRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("remove_lines_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	n, err := h.Svc.RemoveLines(ctx, userID, req.LineIDs)
	if err != nil {
		return fail(c, l, "remove_lines_error", err)
	}

	l.Info("remove_lines_success", "deleted", n)
	return c.JSON(http.StatusOK, map[string]any{"deleted": n})
}
