package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Skotchmaster/fundshop/services/commerce/internal/domain"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProductNormalizesOptions(t *testing.T) {
	env := newTestEnv(t)

	var req transport.CreateProductRequest
	require.NoError(t, json.Unmarshal([]byte(`{
		"name": " Hoodie ",
		"type": "PRE_ORDER",
		"base_price": 39000,
		"stock": 20,
		"options": [
			{"name": "Color", "values": ["Black", {"label": "Cream", "priceDelta": "2,000"}]}
		]
	}`), &req))

	p, err := env.catalog.CreateProduct(env.ctx, env.seller, req)
	require.NoError(t, err)
	assert.Equal(t, "Hoodie", p.Name)
	assert.True(t, p.IsActive)

	got, err := env.catalog.GetProduct(env.ctx, p.ID)
	require.NoError(t, err)
	schema := got.OptionSchema.Data()
	require.Len(t, schema, 1)
	require.Len(t, schema[0].Values, 2)
	assert.EqualValues(t, 2000, schema[0].Values[1].PriceDelta)

	total, items, err := env.catalog.GetProducts(env.ctx, 0, 10, domain.ProductPreOrder)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, items, 1)

	total, _, err = env.catalog.GetProducts(env.ctx, 0, 10, domain.ProductCrowdfund)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCreateCrowdfundProduct(t *testing.T) {
	env := newTestEnv(t)
	goal := int64(1_000_000)
	deadline := env.now.Add(30 * 24 * time.Hour)

	p, err := env.catalog.CreateProduct(env.ctx, env.seller, transport.CreateProductRequest{
		Name: "Lamp", Type: domain.ProductCrowdfund, BasePrice: 50_000,
		FundingGoalAmount: &goal, FundingDeadline: &deadline,
	})
	require.NoError(t, err)
	assert.False(t, p.BillingApproved)
	assert.Zero(t, p.FundingCurrentAmount)

	past := env.now.Add(-time.Hour)
	zero := int64(0)
	tests := []transport.CreateProductRequest{
		{Name: "", Type: domain.ProductPreOrder},
		{Name: "x", Type: "DIGITAL"},
		{Name: "x", Type: domain.ProductPreOrder, BasePrice: -1},
		{Name: "x", Type: domain.ProductPreOrder, FundingGoalAmount: &goal},
		{Name: "x", Type: domain.ProductCrowdfund, FundingDeadline: &deadline},
		{Name: "x", Type: domain.ProductCrowdfund, FundingGoalAmount: &zero, FundingDeadline: &deadline},
		{Name: "x", Type: domain.ProductCrowdfund, FundingGoalAmount: &goal, FundingDeadline: &past},
		{Name: "x", Type: domain.ProductCrowdfund, Stock: 5, FundingGoalAmount: &goal, FundingDeadline: &deadline},
	}
	for _, req := range tests {
		_, err := env.catalog.CreateProduct(env.ctx, env.seller, req)
		require.ErrorIs(t, err, ErrValidation, req)
	}
}
