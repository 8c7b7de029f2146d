package paymentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnavailable marks failures worth retrying: transport errors, timeouts and 5xx answers.
var ErrUnavailable = errors.New("payment gateway unavailable")

type APIError struct {
	Status  int    `json:"-"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("payment gateway: %d %s: %s", e.Status, e.Type, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.Status >= 500 {
		return ErrUnavailable
	}
	return nil
}

func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

type Options struct {
	BaseURL   string
	APISecret string
	StoreID   string
	Timeout   time.Duration
}

type Client struct {
	baseURL    string
	secret     string
	storeID    string
	httpClient *http.Client
}

func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		secret:  opts.APISecret,
		storeID: opts.StoreID,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (c *Client) StoreID() string {
	return c.storeID
}

func (c *Client) ConfirmPayment(ctx context.Context, paymentID string, req ConfirmRequest) (*Payment, error) {
	var out struct {
		Payment json.RawMessage `json:"payment"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/payments/"+url.PathEscape(paymentID)+"/confirm", req, &out); err != nil {
		return nil, err
	}
	if len(out.Payment) == 0 {
		return c.GetPayment(ctx, paymentID)
	}
	return decodePayment(out.Payment)
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	path := "/payments/" + url.PathEscape(paymentID)
	if c.storeID != "" {
		path += "?storeId=" + url.QueryEscape(c.storeID)
	}
	raw, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	return decodePayment(raw)
}

func (c *Client) CancelPayment(ctx context.Context, paymentID string, req CancelRequest) (*Cancellation, error) {
	var out struct {
		Cancellation Cancellation `json:"cancellation"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/payments/"+url.PathEscape(paymentID)+"/cancel", req, &out); err != nil {
		return nil, err
	}
	return &out.Cancellation, nil
}

func (c *Client) CreatePaymentSchedule(ctx context.Context, paymentID string, req ScheduleRequest) (*Schedule, error) {
	if req.Payment.StoreID == "" {
		req.Payment.StoreID = c.storeID
	}
	var out struct {
		Schedule Schedule `json:"schedule"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/payments/"+url.PathEscape(paymentID)+"/schedule", req, &out); err != nil {
		return nil, err
	}
	if out.Schedule.ID == "" {
		return nil, errors.New("payment gateway: schedule response has no id")
	}
	return &out.Schedule, nil
}

func (c *Client) RevokePaymentSchedules(ctx context.Context, req RevokeRequest) (*RevokeResult, error) {
	if req.BillingKey == "" && len(req.ScheduleIDs) == 0 {
		return nil, errors.New("payment gateway: billing key or schedule ids required")
	}
	if req.StoreID == "" {
		req.StoreID = c.storeID
	}
	var out RevokeResult
	if _, err := c.do(ctx, http.MethodDelete, "/payment-schedules", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetBillingKeyInfo(ctx context.Context, billingKey string) (*BillingKeyInfo, error) {
	var out BillingKeyInfo
	if _, err := c.do(ctx, http.MethodGet, "/billing-keys/"+url.PathEscape(billingKey), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "PortOne "+c.secret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, apiErr)
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, apiErr
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}
	return raw, nil
}

func decodePayment(raw []byte) (*Payment, error) {
	var p Payment
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode payment: %w", err)
	}
	p.Raw = append(json.RawMessage(nil), raw...)
	return &p, nil
}
