package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Skotchmaster/fundshop/pkg/db"
	"github.com/Skotchmaster/fundshop/pkg/paymentclient"
	"github.com/Skotchmaster/fundshop/pkg/tokens"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/domain"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/models"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/options"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/repo"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/transport"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type fakeGateway struct {
	mu sync.Mutex

	payments    map[string]*paymentclient.Payment
	billingKeys map[string]string
	nextID      int

	getErr      error
	cancelErr   error
	scheduleErr error
	revokeErr   error
	onSchedule  func()
	onCancel    func()

	scheduled map[string]paymentclient.ScheduleRequest
	cancels   []paymentclient.CancelRequest
	cancelIDs []string
	revoked   []string
	getCalls  int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		payments:    map[string]*paymentclient.Payment{},
		billingKeys: map[string]string{"bk-ok": "ISSUED", "bk-deleted": "DELETED"},
		scheduled:   map[string]paymentclient.ScheduleRequest{},
	}
}

func (g *fakeGateway) setPayment(id string, status paymentclient.PaymentStatus, amount int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[id] = &paymentclient.Payment{
		ID:            id,
		TransactionID: "tx-" + id,
		Status:        status,
		Amount:        paymentclient.Amount{Total: amount, Paid: amount},
		Currency:      "KRW",
		Method:        &paymentclient.Method{Type: "PaymentMethodCard", Card: &paymentclient.Card{Issuer: "SHINHAN", Number: "1234-****"}},
		Channel:       &paymentclient.Channel{PGProvider: "TOSSPAYMENTS"},
	}
}

func (g *fakeGateway) setFailure(id, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[id] = &paymentclient.Payment{ID: id, Status: paymentclient.StatusFailed, Failure: &paymentclient.Failure{Reason: reason}}
}

func (g *fakeGateway) ConfirmPayment(ctx context.Context, paymentID string, req paymentclient.ConfirmRequest) (*paymentclient.Payment, error) {
	return g.GetPayment(ctx, paymentID)
}

func (g *fakeGateway) GetPayment(ctx context.Context, paymentID string) (*paymentclient.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.getCalls++
	if g.getErr != nil {
		return nil, g.getErr
	}
	p, ok := g.payments[paymentID]
	if !ok {
		return nil, &paymentclient.APIError{Status: http.StatusNotFound, Type: "PAYMENT_NOT_FOUND"}
	}
	cp := *p
	cp.Raw, _ = json.Marshal(p)
	return &cp, nil
}

func (g *fakeGateway) CancelPayment(ctx context.Context, paymentID string, req paymentclient.CancelRequest) (*paymentclient.Cancellation, error) {
	g.mu.Lock()
	if g.cancelErr != nil {
		g.mu.Unlock()
		return nil, g.cancelErr
	}
	g.cancels = append(g.cancels, req)
	g.cancelIDs = append(g.cancelIDs, paymentID)
	c := paymentclient.Cancellation{ID: "cancel-" + paymentID, Status: "SUCCEEDED", Reason: req.Reason}
	if req.Amount != nil {
		c.TotalAmount = *req.Amount
	}
	if p, ok := g.payments[paymentID]; ok {
		p.Status = paymentclient.StatusCancelled
		p.Cancellations = append(p.Cancellations, c)
	}
	hook := g.onCancel
	g.mu.Unlock()

	if hook != nil {
		hook()
	}
	return &c, nil
}

func (g *fakeGateway) CreatePaymentSchedule(ctx context.Context, paymentID string, req paymentclient.ScheduleRequest) (*paymentclient.Schedule, error) {
	g.mu.Lock()
	if g.scheduleErr != nil {
		g.mu.Unlock()
		return nil, g.scheduleErr
	}
	g.nextID++
	id := fmt.Sprintf("gw-sched-%d", g.nextID)
	g.scheduled[paymentID] = req
	hook := g.onSchedule
	g.mu.Unlock()

	if hook != nil {
		hook()
	}
	return &paymentclient.Schedule{ID: id}, nil
}

func (g *fakeGateway) RevokePaymentSchedules(ctx context.Context, req paymentclient.RevokeRequest) (*paymentclient.RevokeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.revokeErr != nil {
		return nil, g.revokeErr
	}
	g.revoked = append(g.revoked, req.ScheduleIDs...)
	return &paymentclient.RevokeResult{RevokedScheduleIDs: req.ScheduleIDs}, nil
}

func (g *fakeGateway) GetBillingKeyInfo(ctx context.Context, billingKey string) (*paymentclient.BillingKeyInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	status, ok := g.billingKeys[billingKey]
	if !ok {
		return nil, &paymentclient.APIError{Status: http.StatusNotFound, Type: "BILLING_KEY_NOT_FOUND"}
	}
	return &paymentclient.BillingKeyInfo{BillingKey: billingKey, Status: status}, nil
}

func (g *fakeGateway) cancelledIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.cancelIDs...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []map[string]any
}

func (p *recordingPublisher) PublishEvent(ctx context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, _ := event.(map[string]any)
	cp := map[string]any{"topic": topic, "key": key}
	for k, v := range m {
		cp[k] = v
	}
	p.events = append(p.events, cp)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, fmt.Sprint(e["type"]))
	}
	return out
}

type testEnv struct {
	ctx    context.Context
	repo   *repo.GormRepo
	gw     *fakeGateway
	events *recordingPublisher
	now    time.Time

	catalog    *CatalogService
	cart       *CartService
	orders     *OrderService
	settlement *SettlementService
	funding    *FundingService
	gate       *BillingGateService

	seller uuid.UUID
	admin  uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	gdb, err := db.Open(ctx, "sqlite::memory:")
	require.NoError(t, err)
	r := &repo.GormRepo{DB: gdb}
	require.NoError(t, r.Migrate(ctx))

	env := &testEnv{
		ctx:    ctx,
		repo:   r,
		gw:     newFakeGateway(),
		events: &recordingPublisher{},
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		seller: uuid.New(),
		admin:  uuid.New(),
	}
	clock := Clock(func() time.Time { return env.now })

	env.catalog = &CatalogService{Repo: r, Now: clock}
	env.cart = &CartService{Repo: r, Events: env.events, Now: clock}
	env.orders = &OrderService{Repo: r, Gateway: env.gw, Events: env.events, Now: clock, GracePeriod: 72 * time.Hour, Currency: "KRW"}
	env.funding = &FundingService{Repo: r, Now: clock}
	env.settlement = &SettlementService{Repo: r, Gateway: env.gw, Events: env.events, Now: clock, Currency: "KRW"}
	env.gate = &BillingGateService{Repo: r, Funding: env.funding, Now: clock}
	return env
}

func (e *testEnv) sellerCaller() Caller { return Caller{UserID: e.seller, Role: tokens.RoleSeller} }
func (e *testEnv) adminCaller() Caller  { return Caller{UserID: e.admin, Role: tokens.RoleAdmin} }

func (e *testEnv) preorderProduct(t *testing.T, price, stock int64, opts ...options.Option) *models.Product {
	t.Helper()
	p := &models.Product{
		SellerID:     e.seller,
		Name:         "Keyboard",
		Type:         domain.ProductPreOrder,
		IsActive:     true,
		BasePrice:    price,
		Stock:        stock,
		OptionSchema: datatypes.NewJSONType(opts),
	}
	require.NoError(t, e.repo.CreateProduct(e.ctx, p))
	return p
}

func (e *testEnv) crowdfundProduct(t *testing.T, price, goal int64) *models.Product {
	t.Helper()
	deadline := e.now.Add(24 * time.Hour)
	p := &models.Product{
		SellerID:          e.seller,
		Name:              "Desk Lamp",
		Type:              domain.ProductCrowdfund,
		IsActive:          true,
		BasePrice:         price,
		FundingGoalAmount: &goal,
		FundingDeadline:   &deadline,
	}
	require.NoError(t, e.repo.CreateProduct(e.ctx, p))
	return p
}

func checkoutRequest() transport.CheckoutRequest {
	return transport.CheckoutRequest{
		BuyerName:       "Kim Buyer",
		BuyerEmail:      "buyer@example.com",
		BuyerPhone:      "010-0000-0000",
		ShippingAddress: "Seoul",
		BillingKey:      "bk-ok",
	}
}

// pledge puts qty of the product in a fresh buyer's cart and checks it out.
func (e *testEnv) pledge(t *testing.T, p *models.Product, qty int64) (uuid.UUID, *models.Order) {
	t.Helper()
	buyer := uuid.New()
	_, err := e.cart.AddLine(e.ctx, buyer, transport.AddCartLineRequest{ProductID: p.ID, Quantity: qty})
	require.NoError(t, err)
	order, err := e.orders.Checkout(e.ctx, buyer, checkoutRequest())
	require.NoError(t, err)
	return buyer, order
}

func (e *testEnv) passDeadline(p *models.Product) {
	e.now = p.FundingDeadline.Add(time.Hour)
}

func (e *testEnv) setFunding(t *testing.T, productID uuid.UUID, amount, supporters int64) {
	t.Helper()
	require.NoError(t, e.repo.DB.Model(&models.Product{}).Where("id = ?", productID).
		Updates(map[string]any{"funding_current_amount": amount, "funding_supporter_count": supporters}).Error)
}

func (e *testEnv) forceApproval(t *testing.T, productID uuid.UUID) {
	t.Helper()
	require.NoError(t, e.repo.DB.Model(&models.Product{}).Where("id = ?", productID).
		Update("billing_approved", true).Error)
}

func (e *testEnv) product(t *testing.T, id uuid.UUID) *models.Product {
	t.Helper()
	p, err := e.repo.GetProduct(e.ctx, id)
	require.NoError(t, err)
	return p
}

func (e *testEnv) order(t *testing.T, id uuid.UUID) *models.Order {
	t.Helper()
	o, err := e.repo.GetOrder(e.ctx, id)
	require.NoError(t, err)
	return o
}

func (e *testEnv) schedule(t *testing.T, orderID uuid.UUID) *models.BillingSchedule {
	t.Helper()
	s, err := e.repo.GetScheduleByOrderID(e.ctx, orderID)
	require.NoError(t, err)
	return s
}

func (e *testEnv) notify(t *testing.T, paymentID string) Ack {
	t.Helper()
	a, err := e.settlement.HandleNotification(e.ctx, Notification{Ref: PaymentRef{Kind: RefPaymentID, Value: paymentID}})
	require.NoError(t, err)
	return a
}
