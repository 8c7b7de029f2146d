package paymentclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Options{BaseURL: srv.URL + "/", APISecret: "sk", StoreID: "store-1", Timeout: timeout})
}

func TestGetPayment(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /payments/cf-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PortOne sk", r.Header.Get("Authorization"))
		assert.Equal(t, "store-1", r.URL.Query().Get("storeId"))
		_, _ = w.Write([]byte(`{"id":"cf-1","transactionId":"tx-9","status":"PAID","amount":{"total":50000,"paid":50000},
			"method":{"type":"PaymentMethodCard","card":{"issuer":"SHINHAN","number":"1234****"}},
			"channel":{"pgProvider":"TOSSPAYMENTS"},"customer":{"name":"Kim"},"receiptUrl":"https://r/1"}`))
	})
	c := newTestClient(t, mux, time.Second)

	p, err := c.GetPayment(context.Background(), "cf-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, p.Status)
	assert.EqualValues(t, 50000, p.Amount.Total)
	assert.Equal(t, "tx-9", p.TransactionID)
	assert.Equal(t, "SHINHAN", p.Method.Card.Issuer)
	assert.Equal(t, "TOSSPAYMENTS", p.Channel.PGProvider)
	assert.True(t, json.Valid(p.Raw))
}

func TestCancelPaymentSendsBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /payments/cf-2/cancel", func(w http.ResponseWriter, r *http.Request) {
		var req CancelRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "goal not met", req.Reason)
		assert.EqualValues(t, 70000, *req.Amount)
		assert.Equal(t, RequesterAdmin, req.Requester)
		_, _ = w.Write([]byte(`{"cancellation":{"id":"c-1","status":"SUCCEEDED","totalAmount":70000,"reason":"goal not met"}}`))
	})
	c := newTestClient(t, mux, time.Second)

	amount := int64(70000)
	res, err := c.CancelPayment(context.Background(), "cf-2", CancelRequest{Amount: &amount, Reason: "goal not met", Requester: RequesterAdmin})
	require.NoError(t, err)
	assert.Equal(t, "c-1", res.ID)
}

func TestCreateAndRevokeSchedule(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /payments/cf-3/schedule", func(w http.ResponseWriter, r *http.Request) {
		var req ScheduleRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "store-1", req.Payment.StoreID)
		assert.Equal(t, "bk-1", req.Payment.BillingKey)
		_, _ = w.Write([]byte(`{"schedule":{"id":"sch-1"}}`))
	})
	mux.HandleFunc("DELETE /payment-schedules", func(w http.ResponseWriter, r *http.Request) {
		var req RevokeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(RevokeResult{RevokedScheduleIDs: req.ScheduleIDs})
	})
	c := newTestClient(t, mux, time.Second)

	sch, err := c.CreatePaymentSchedule(context.Background(), "cf-3", ScheduleRequest{
		Payment:   BillingKeyPayment{BillingKey: "bk-1", OrderName: "pledge", Amount: Amount{Total: 1000}, Currency: "KRW"},
		TimeToPay: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "sch-1", sch.ID)

	res, err := c.RevokePaymentSchedules(context.Background(), RevokeRequest{ScheduleIDs: []string{"sch-1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"sch-1"}, res.RevokedScheduleIDs)

	_, err = c.RevokePaymentSchedules(context.Background(), RevokeRequest{})
	assert.Error(t, err)
}

func TestBillingKeyInfo(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /billing-keys/bk-9", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"billingKey":"bk-9","status":"ISSUED","methods":[{"type":"BillingKeyPaymentMethodCard","card":{"issuer":"KB"}}]}`))
	})
	c := newTestClient(t, mux, time.Second)

	info, err := c.GetBillingKeyInfo(context.Background(), "bk-9")
	require.NoError(t, err)
	assert.True(t, info.Usable())
	assert.Equal(t, "KB", info.Methods[0].Card.Issuer)
}

func TestErrorClassification(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /payments/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"type":"PAYMENT_NOT_FOUND","message":"no such payment"}`))
	})
	mux.HandleFunc("GET /payments/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("GET /payments/slow", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write([]byte(`{"id":"slow","status":"PAID"}`))
	})
	c := newTestClient(t, mux, 50*time.Millisecond)

	_, err := c.GetPayment(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, errors.Is(err, ErrUnavailable))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "PAYMENT_NOT_FOUND", apiErr.Type)

	_, err = c.GetPayment(context.Background(), "broken")
	assert.True(t, errors.Is(err, ErrUnavailable))

	_, err = c.GetPayment(context.Background(), "slow")
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestStatusSettled(t *testing.T) {
	t.Parallel()
	assert.True(t, StatusPaid.Settled())
	assert.True(t, StatusPartialCancelled.Settled())
	assert.False(t, StatusReady.Settled())
	assert.False(t, StatusVirtualAccountIssued.Settled())
}
