package repo

import (
	"context"
	"testing"
	"time"

	"github.com/Skotchmaster/fundshop/pkg/db"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/domain"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) *GormRepo {
	t.Helper()
	gdb, err := db.Open(context.Background(), "sqlite::memory:")
	require.NoError(t, err)
	r := &GormRepo{DB: gdb}
	require.NoError(t, r.Migrate(context.Background()))
	return r
}

func newProduct(t *testing.T, r *GormRepo, typ domain.ProductType) *models.Product {
	t.Helper()
	p := &models.Product{SellerID: uuid.New(), Name: "Item", Type: typ, IsActive: true, BasePrice: 1000}
	if typ == domain.ProductPreOrder {
		p.Stock = 5
	}
	require.NoError(t, r.CreateProduct(context.Background(), p))
	return p
}

func TestAddCartLineMergesAndCaps(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	p := newProduct(t, r, domain.ProductPreOrder)
	user := uuid.New()
	maxQty := int64(5)

	line := func(qty int64) *models.CartLine {
		return &models.CartLine{UserID: user, ProductID: p.ID, OptionHash: "h1", ProductType: p.Type, Quantity: qty, UnitPrice: 1000}
	}

	first := line(2)
	require.NoError(t, r.AddCartLine(ctx, first, &maxQty))

	merged := line(3)
	require.NoError(t, r.AddCartLine(ctx, merged, &maxQty))
	assert.Equal(t, first.ID, merged.ID)
	assert.EqualValues(t, 5, merged.Quantity)

	require.ErrorIs(t, r.AddCartLine(ctx, line(1), &maxQty), ErrStockExceeded)
	require.ErrorIs(t, r.AddCartLine(ctx, &models.CartLine{
		UserID: user, ProductID: p.ID, OptionHash: "h2", ProductType: p.Type, Quantity: 6, UnitPrice: 1000,
	}, &maxQty), ErrStockExceeded)

	lines, err := r.GetCart(ctx, user)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.EqualValues(t, 5, lines[0].Quantity)

	n, err := r.DeleteCartLines(ctx, uuid.New(), []uuid.UUID{first.ID})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGetProductsPagesWithoutOverlap(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		newProduct(t, r, domain.ProductPreOrder)
	}
	newProduct(t, r, domain.ProductCrowdfund)

	total, page1, err := r.GetProducts(ctx, 0, 2, domain.ProductPreOrder)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, page1, 2)

	_, page2, err := r.GetProducts(ctx, 2, 2, domain.ProductPreOrder)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	for _, p := range page1 {
		assert.NotEqual(t, p.ID, page2[0].ID)
	}

	total, _, err = r.GetProducts(ctx, 0, 10, "")
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
}

func TestSetBillingApprovalGuards(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	admin := uuid.New()
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	pre := newProduct(t, r, domain.ProductPreOrder)
	_, err := r.SetBillingApproval(ctx, pre.ID, true, admin, at)
	require.ErrorIs(t, err, ErrStaleState)

	cf := newProduct(t, r, domain.ProductCrowdfund)
	p, err := r.SetBillingApproval(ctx, cf.ID, true, admin, at)
	require.NoError(t, err)
	assert.True(t, p.BillingApproved)
	require.NotNil(t, p.BillingApprovedBy)
	assert.Equal(t, admin, *p.BillingApprovedBy)

	_, err = r.SetBillingApproval(ctx, cf.ID, true, admin, at)
	require.ErrorIs(t, err, ErrStaleState)

	p, err = r.SetBillingApproval(ctx, cf.ID, false, admin, at)
	require.NoError(t, err)
	assert.False(t, p.BillingApproved)
	assert.Nil(t, p.BillingApprovedBy)
}

func TestPendingPledgesEmpty(t *testing.T) {
	r := newRepo(t)
	got, err := r.PendingPledges(context.Background(), []uuid.UUID{uuid.New()})
	require.NoError(t, err)
	assert.Empty(t, got)
}
