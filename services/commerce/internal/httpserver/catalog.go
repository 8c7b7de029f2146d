package httpserver

import (
	"net/http"

	"github.com/Skotchmaster/fundshop/pkg/logging"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/domain"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/service"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/transport"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/util"
	"github.com/labstack/echo/v4"
)

type CatalogHTTP struct {
	Svc     *service.CatalogService
	Funding *service.FundingService
}

func (h *CatalogHTTP) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.get_product")

	id, err := paramID(c, "id")
	if err != nil {
		l.Warn("get_product_error", "status", 400, "reason", "id is not a uuid", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a uuid")
	}

	product, err := h.Svc.GetProduct(ctx, id)
	if err != nil {
		return fail(c, l, "get_product_error", err)
	}
	return c.JSON(http.StatusOK, product)
}

func (h *CatalogHTTP) GetProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.get_products")

	page, size := pageParams(c)
	offset, limit := util.Calculate(page, size)

	total, items, err := h.Svc.GetProducts(ctx, offset, limit, domain.ProductType(c.QueryParam("type")))
	if err != nil {
		return fail(c, l, "get_products_error", err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": util.Meta(page, offset, limit, total),
	})
}

func (h *CatalogHTTP) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.create_product")

	sellerID, err := GetID(c)
	if err != nil {
		l.Warn("create_product_error", "status", 401, "reason", "unauthorized", "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req transport.CreateProductRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_product_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	product, err := h.Svc.CreateProduct(ctx, sellerID, req)
	if err != nil {
		return fail(c, l, "create_product_error", err)
	}

	l.Info("create_product_success", "product_id", product.ID, "type", product.Type)
	return c.JSON(http.StatusCreated, product)
}

func (h *CatalogHTTP) GetFunding(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.get_funding")

	id, err := paramID(c, "id")
	if err != nil {
		l.Warn("get_funding_error", "status", 400, "reason", "id is not a uuid", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a uuid")
	}

	status, err := h.Funding.Status(ctx, id)
	if err != nil {
		return fail(c, l, "get_funding_error", err)
	}
	return c.JSON(http.StatusOK, status)
}
