package httpserver

import (
	"net/http"

	"github.com/Skotchmaster/fundshop/pkg/logging"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/service"
	"github.com/labstack/echo/v4"
)

type AdminHTTP struct {
	Gate       *service.BillingGateService
	Settlement *service.SettlementService
}

func (h *AdminHTTP) ApproveBilling(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.approve_billing")

	adminID, err := GetID(c)
	if err != nil {
		l.Warn("approve_billing_error", "status", 401, "reason", "unauthorized", "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	productID, err := paramID(c, "id")
	if err != nil {
		l.Warn("approve_billing_error", "status", 400, "reason", "id is not a uuid", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a uuid")
	}

	product, err := h.Gate.Approve(ctx, adminID, productID)
	if err != nil {
		return fail(c, l, "approve_billing_error", err)
	}

	l.Info("approve_billing_success", "product_id", product.ID)
	return c.JSON(http.StatusOK, product)
}

func (h *AdminHTTP) RevokeBilling(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.revoke_billing")

	adminID, err := GetID(c)
	if err != nil {
		l.Warn("revoke_billing_error", "status", 401, "reason", "unauthorized", "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	productID, err := paramID(c, "id")
	if err != nil {
		l.Warn("revoke_billing_error", "status", 400, "reason", "id is not a uuid", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a uuid")
	}

	product, err := h.Gate.Unapprove(ctx, adminID, productID)
	if err != nil {
		return fail(c, l, "revoke_billing_error", err)
	}

	l.Info("revoke_billing_success", "product_id", product.ID)
	return c.JSON(http.StatusOK, product)
}

func (h *AdminHTTP) Reconcile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.reconcile")

	scheduleID, err := paramID(c, "id")
	if err != nil {
		l.Warn("reconcile_error", "status", 400, "reason", "id is not a uuid", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a uuid")
	}

	res, err := h.Settlement.Reconcile(ctx, scheduleID)
	if err != nil {
		return fail(c, l, "reconcile_error", err)
	}

	l.Info("reconcile_success", "schedule_id", scheduleID, "outcome", res.Outcome)
	return c.JSON(http.StatusOK, res)
}
