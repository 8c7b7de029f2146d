package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Skotchmaster/fundshop/pkg/db"
	"github.com/Skotchmaster/fundshop/pkg/paymentclient"
	"github.com/Skotchmaster/fundshop/pkg/tokens"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/domain"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/models"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/repo"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

type stubGateway struct {
	mu       sync.Mutex
	payments map[string]*paymentclient.Payment
	cancels  []string
}

func (g *stubGateway) pay(id string, amount int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[id] = &paymentclient.Payment{
		ID:     id,
		Status: paymentclient.StatusPaid,
		Amount: paymentclient.Amount{Total: amount, Paid: amount},
	}
}

func (g *stubGateway) ConfirmPayment(ctx context.Context, paymentID string, req paymentclient.ConfirmRequest) (*paymentclient.Payment, error) {
	return g.GetPayment(ctx, paymentID)
}

func (g *stubGateway) GetPayment(ctx context.Context, paymentID string) (*paymentclient.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[paymentID]
	if !ok {
		return nil, &paymentclient.APIError{Status: http.StatusNotFound, Type: "PAYMENT_NOT_FOUND"}
	}
	cp := *p
	return &cp, nil
}

func (g *stubGateway) CancelPayment(ctx context.Context, paymentID string, req paymentclient.CancelRequest) (*paymentclient.Cancellation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancels = append(g.cancels, paymentID)
	return &paymentclient.Cancellation{ID: "cancel-" + paymentID, Status: "SUCCEEDED"}, nil
}

func (g *stubGateway) CreatePaymentSchedule(ctx context.Context, paymentID string, req paymentclient.ScheduleRequest) (*paymentclient.Schedule, error) {
	return &paymentclient.Schedule{ID: "gw-" + paymentID}, nil
}

func (g *stubGateway) RevokePaymentSchedules(ctx context.Context, req paymentclient.RevokeRequest) (*paymentclient.RevokeResult, error) {
	return &paymentclient.RevokeResult{RevokedScheduleIDs: req.ScheduleIDs}, nil
}

func (g *stubGateway) GetBillingKeyInfo(ctx context.Context, billingKey string) (*paymentclient.BillingKeyInfo, error) {
	return &paymentclient.BillingKeyInfo{BillingKey: billingKey, Status: "ISSUED"}, nil
}

type server struct {
	e    *echo.Echo
	repo *repo.GormRepo
	gw   *stubGateway
	now  time.Time

	seller uuid.UUID
	admin  uuid.UUID
	buyer  uuid.UUID
}

func newServer(t *testing.T) *server {
	t.Helper()
	ctx := context.Background()

	gdb, err := db.Open(ctx, "sqlite::memory:")
	require.NoError(t, err)
	r := &repo.GormRepo{DB: gdb}
	require.NoError(t, r.Migrate(ctx))

	s := &server{
		e:      echo.New(),
		repo:   r,
		gw:     &stubGateway{payments: map[string]*paymentclient.Payment{}},
		now:    time.Now().UTC(),
		seller: uuid.New(),
		admin:  uuid.New(),
		buyer:  uuid.New(),
	}
	clock := service.Clock(func() time.Time { return s.now })

	funding := &service.FundingService{Repo: r, Now: clock}
	settlement := &service.SettlementService{Repo: r, Gateway: s.gw, Now: clock, Currency: "KRW"}
	Register(s.e, &Deps{
		CatalogHandler: &CatalogHTTP{Svc: &service.CatalogService{Repo: r, Now: clock}, Funding: funding},
		CartHandler:    &CartHTTP{Svc: &service.CartService{Repo: r, Now: clock}},
		OrderHandler: &OrderHTTP{Svc: &service.OrderService{
			Repo: r, Gateway: s.gw, Now: clock, GracePeriod: 72 * time.Hour, Currency: "KRW",
		}},
		PaymentHandler: &PaymentHTTP{Settlement: settlement},
		AdminHandler: &AdminHTTP{
			Gate:       &service.BillingGateService{Repo: r, Funding: funding, Now: clock},
			Settlement: settlement,
		},
		JWTSecret: testSecret,
		DB:        gdb,
	})
	return s
}

func token(t *testing.T, id uuid.UUID, role string) string {
	t.Helper()
	tok, err := tokens.SignAccessToken(id.String(), role, time.Hour, testSecret)
	require.NoError(t, err)
	return tok
}

func (s *server) do(t *testing.T, method, path, tok string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if tok != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func checkoutBody(billingKey string) map[string]any {
	return map[string]any{
		"buyer_name":       "Kim Buyer",
		"buyer_email":      "buyer@example.com",
		"buyer_phone":      "010-0000-0000",
		"shipping_address": "Seoul",
		"billing_key":      billingKey,
	}
}

func TestHealth(t *testing.T) {
	s := newServer(t)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/live", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/ready", "", nil).Code)
}

func TestCreateProductRequiresSellerRole(t *testing.T) {
	s := newServer(t)
	body := map[string]any{"name": "Keyboard", "type": "PRE_ORDER", "base_price": 1000, "stock": 5}

	rec := s.do(t, http.MethodPost, "/products", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/products", token(t, s.buyer, tokens.RoleUser), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/products", token(t, s.seller, tokens.RoleSeller), body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.Product](t, rec)
	assert.Equal(t, s.seller, created.SellerID)

	rec = s.do(t, http.MethodGet, "/products?page=1&size=10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Data []models.Product `json:"data"`
		Meta map[string]any   `json:"meta"`
	}](t, rec)
	require.Len(t, list.Data, 1)
	assert.EqualValues(t, 1, list.Meta["total"])
	assert.Equal(t, false, list.Meta["has_next"])
}

func TestValidationErrorsAreBadRequest(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/products", token(t, s.seller, tokens.RoleSeller),
		map[string]any{"name": "Lamp", "type": "CROWDFUND", "base_price": 1000, "stock": 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/products/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/products/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreorderFlow(t *testing.T) {
	s := newServer(t)
	buyerTok := token(t, s.buyer, tokens.RoleUser)

	p := &models.Product{SellerID: s.seller, Name: "Keyboard", Type: domain.ProductPreOrder, IsActive: true, BasePrice: 1000, Stock: 5}
	require.NoError(t, s.repo.CreateProduct(context.Background(), p))

	rec := s.do(t, http.MethodPost, "/cart/lines", buyerTok, map[string]any{"product_id": p.ID, "quantity": 6})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/cart/lines", buyerTok, map[string]any{"product_id": p.ID, "quantity": 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/cart", buyerTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decode[map[string]any](t, rec)
	assert.EqualValues(t, 2000, cart["total"])

	rec = s.do(t, http.MethodPost, "/orders/checkout", buyerTok, checkoutBody(""))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decode[models.Order](t, rec)
	assert.Equal(t, domain.OrderPending, order.Status)
	assert.EqualValues(t, 2000, order.TotalAmount)

	other := token(t, uuid.New(), tokens.RoleUser)
	rec = s.do(t, http.MethodGet, "/orders/"+order.ID.String(), other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	s.gw.pay(order.PaymentID, 2000)
	rec = s.do(t, http.MethodPost, "/orders/"+order.ID.String()+"/payment/confirm", buyerTok,
		map[string]any{"payment_token": "tok", "tx_id": "tx-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.OrderConfirmed, decode[models.Order](t, rec).Status)

	rec = s.do(t, http.MethodPost, "/orders/"+order.ID.String()+"/cancel", buyerTok, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "payment already completed")

	sellerTok := token(t, s.seller, tokens.RoleSeller)
	rec = s.do(t, http.MethodPatch, "/seller/orders/"+order.ID.String()+"/fulfillment", sellerTok,
		map[string]any{"product_type": "PRE_ORDER", "status": "PRODUCTION_STARTED"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPatch, "/seller/orders/"+order.ID.String()+"/fulfillment", buyerTok,
		map[string]any{"product_type": "PRE_ORDER", "status": "SHIPPED_OUT"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/orders/"+order.ID.String(), sellerTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[map[string]any](t, rec)
	assert.NotEmpty(t, detail["history"])
}

func TestWebhookPayloads(t *testing.T) {
	s := newServer(t)

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[map[string]any](t, rec)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "invalid payload", resp["message"])

	rec = s.do(t, http.MethodPost, "/payments/webhook", "", map[string]any{
		"type": "Transaction.Paid",
		"data": map[string]any{"paymentId": "cf-unknown"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[map[string]any](t, rec)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "unknown payment", resp["message"])
}

func TestCrowdfundSettlementOverHTTP(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	buyerTok := token(t, s.buyer, tokens.RoleUser)
	adminTok := token(t, s.admin, tokens.RoleAdmin)

	goal := int64(3000)
	deadline := s.now.Add(24 * time.Hour)
	p := &models.Product{
		SellerID: s.seller, Name: "Desk Lamp", Type: domain.ProductCrowdfund, IsActive: true,
		BasePrice: 1000, FundingGoalAmount: &goal, FundingDeadline: &deadline,
	}
	require.NoError(t, s.repo.CreateProduct(ctx, p))

	rec := s.do(t, http.MethodPost, "/cart/lines", buyerTok, map[string]any{"product_id": p.ID, "quantity": 3})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/orders/checkout", buyerTok, checkoutBody(""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/orders/checkout", buyerTok, checkoutBody("bk-1"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decode[models.Order](t, rec)

	approvePath := "/admin/products/" + p.ID.String() + "/billing-approval"
	rec = s.do(t, http.MethodPost, approvePath, buyerTok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, approvePath, adminTok, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	gate := decode[map[string]any](t, rec)
	assert.Equal(t, "deadline_not_reached", gate["error"])

	s.now = deadline.Add(time.Hour)
	rec = s.do(t, http.MethodPost, approvePath, adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	s.gw.pay(order.PaymentID, 3000)
	rec = s.do(t, http.MethodPost, "/payments/webhook", "", map[string]any{
		"type": "Transaction.Paid",
		"data": map[string]any{"paymentId": order.PaymentID},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[map[string]any](t, rec)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "payment settled", resp["message"])

	rec = s.do(t, http.MethodGet, "/products/"+p.ID.String()+"/funding", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	funding := decode[map[string]any](t, rec)
	assert.EqualValues(t, 3000, funding["settled"])
	assert.EqualValues(t, 1, funding["supporters"])

	sched, err := s.repo.GetScheduleByOrderID(ctx, order.ID)
	require.NoError(t, err)
	rec = s.do(t, http.MethodPost, "/admin/billing-schedules/"+sched.ID.String()+"/reconcile", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(service.OutcomeAlreadySettled), decode[map[string]any](t, rec)["outcome"])
	assert.Empty(t, s.gw.cancels)
}
