package httpserver

import (
	"net/http"

	pkgdb "github.com/Skotchmaster/fundshop/pkg/db"
	middleware "github.com/Skotchmaster/fundshop/pkg/middleware/auth"
	"github.com/Skotchmaster/fundshop/pkg/tokens"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type Deps struct {
	CatalogHandler *CatalogHTTP
	CartHandler    *CartHTTP
	OrderHandler   *OrderHTTP
	PaymentHandler *PaymentHTTP
	AdminHandler   *AdminHTTP
	JWTSecret      []byte
	AuthClient     middleware.Refresher
	DB             *gorm.DB
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.DB != nil {
			if err := pkgdb.Ping(c.Request().Context(), d.DB); err != nil {
				return c.NoContent(http.StatusServiceUnavailable)
			}
		}
		return c.NoContent(http.StatusOK)
	})

	authMW := middleware.NewAutoRefreshMiddleware(d.JWTSecret, d.AuthClient)
	sellerOrAdmin := authMW.RequireRole(tokens.RoleSeller, tokens.RoleAdmin)

	e.POST("/payments/webhook", d.PaymentHandler.Webhook)

	products := e.Group("/products")
	products.GET("", d.CatalogHandler.GetProducts)
	products.GET("/:id", d.CatalogHandler.GetProduct)
	products.GET("/:id/funding", d.CatalogHandler.GetFunding)
	products.POST("", d.CatalogHandler.CreateProduct, sellerOrAdmin)

	cart := e.Group("/cart", authMW.RequireAuth)
	cart.GET("", d.CartHandler.GetCart)
	cart.POST("/lines", d.CartHandler.AddLine)
	cart.DELETE("/lines", d.CartHandler.RemoveLines)

	orders := e.Group("/orders", authMW.RequireAuth)
	orders.POST("/checkout", d.OrderHandler.Checkout)
	orders.GET("", d.OrderHandler.GetOrders)
	orders.GET("/:id", d.OrderHandler.GetOrder)
	orders.POST("/:id/cancel", d.OrderHandler.CancelOrder)
	orders.POST("/:id/payment/confirm", d.OrderHandler.ConfirmPayment)

	seller := e.Group("/seller", sellerOrAdmin)
	seller.PATCH("/orders/:id/fulfillment", d.OrderHandler.UpdateFulfillment)

	admin := e.Group("/admin", authMW.RequireAdmin)
	admin.POST("/products/:id/billing-approval", d.AdminHandler.ApproveBilling)
	admin.DELETE("/products/:id/billing-approval", d.AdminHandler.RevokeBilling)
	admin.POST("/billing-schedules/:id/reconcile", d.AdminHandler.Reconcile)
}
