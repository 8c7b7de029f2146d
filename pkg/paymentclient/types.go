package paymentclient

import (
	"encoding/json"
	"time"
)

type PaymentStatus string

const (
	StatusReady                PaymentStatus = "READY"
	StatusPayPending           PaymentStatus = "PAY_PENDING"
	StatusVirtualAccountIssued PaymentStatus = "VIRTUAL_ACCOUNT_ISSUED"
	StatusPaid                 PaymentStatus = "PAID"
	StatusFailed               PaymentStatus = "FAILED"
	StatusCancelled            PaymentStatus = "CANCELLED"
	StatusPartialCancelled     PaymentStatus = "PARTIAL_CANCELLED"
)

// Settled reports whether the gateway has reached a final outcome for the payment.
func (s PaymentStatus) Settled() bool {
	switch s {
	case StatusPaid, StatusFailed, StatusCancelled, StatusPartialCancelled:
		return true
	}
	return false
}

type Amount struct {
	Total     int64 `json:"total"`
	Paid      int64 `json:"paid,omitempty"`
	Cancelled int64 `json:"cancelled,omitempty"`
}

type Customer struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

type Card struct {
	Issuer string `json:"issuer,omitempty"`
	Brand  string `json:"brand,omitempty"`
	Number string `json:"number,omitempty"`
	Name   string `json:"name,omitempty"`
}

type Method struct {
	Type     string `json:"type"`
	Provider string `json:"provider,omitempty"`
	Card     *Card  `json:"card,omitempty"`
}

type Channel struct {
	Key        string `json:"key,omitempty"`
	PGProvider string `json:"pgProvider,omitempty"`
}

type Failure struct {
	Reason    string `json:"reason,omitempty"`
	PGCode    string `json:"pgCode,omitempty"`
	PGMessage string `json:"pgMessage,omitempty"`
}

type Cancellation struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	TotalAmount int64      `json:"totalAmount"`
	Reason      string     `json:"reason,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
}

type Payment struct {
	ID            string         `json:"id"`
	TransactionID string         `json:"transactionId,omitempty"`
	Status        PaymentStatus  `json:"status"`
	OrderName     string         `json:"orderName,omitempty"`
	Amount        Amount         `json:"amount"`
	Currency      string         `json:"currency,omitempty"`
	Method        *Method        `json:"method,omitempty"`
	Channel       *Channel       `json:"channel,omitempty"`
	Customer      Customer       `json:"customer"`
	PaidAt        *time.Time     `json:"paidAt,omitempty"`
	FailedAt      *time.Time     `json:"failedAt,omitempty"`
	Failure       *Failure       `json:"failure,omitempty"`
	Cancellations []Cancellation `json:"cancellations,omitempty"`
	ReceiptURL    string         `json:"receiptUrl,omitempty"`

	// Raw is the untouched response body.
	Raw json.RawMessage `json:"-"`
}

// FailureReason returns the gateway's explanation for a non-paid outcome, or "".
func (p *Payment) FailureReason() string {
	if p.Failure != nil {
		if p.Failure.Reason != "" {
			return p.Failure.Reason
		}
		if p.Failure.PGMessage != "" {
			return p.Failure.PGMessage
		}
	}
	for _, c := range p.Cancellations {
		if c.Reason != "" {
			return c.Reason
		}
	}
	return ""
}

type ConfirmRequest struct {
	PaymentToken string `json:"paymentToken,omitempty"`
	TxID         string `json:"txId,omitempty"`
	Amount       int64  `json:"totalAmount"`
	Currency     string `json:"currency,omitempty"`
}

type CancelRequest struct {
	Amount    *int64 `json:"amount,omitempty"`
	Reason    string `json:"reason"`
	Requester string `json:"requester,omitempty"`
}

const (
	RequesterCustomer = "CUSTOMER"
	RequesterAdmin    = "ADMIN"
)

type BillingKeyPayment struct {
	StoreID    string   `json:"storeId,omitempty"`
	BillingKey string   `json:"billingKey"`
	OrderName  string   `json:"orderName"`
	Customer   Customer `json:"customer"`
	Amount     Amount   `json:"amount"`
	Currency   string   `json:"currency"`
}

type ScheduleRequest struct {
	Payment   BillingKeyPayment `json:"payment"`
	TimeToPay time.Time         `json:"timeToPay"`
}

type Schedule struct {
	ID string `json:"id"`
}

type RevokeRequest struct {
	StoreID     string   `json:"storeId,omitempty"`
	BillingKey  string   `json:"billingKey,omitempty"`
	ScheduleIDs []string `json:"scheduleIds,omitempty"`
}

type RevokeResult struct {
	RevokedScheduleIDs []string   `json:"revokedScheduleIds"`
	RevokedAt          *time.Time `json:"revokedAt,omitempty"`
}

type BillingKeyInfo struct {
	BillingKey string     `json:"billingKey"`
	Status     string     `json:"status"`
	Methods    []Method   `json:"methods,omitempty"`
	Channels   []Channel  `json:"channels,omitempty"`
	Customer   Customer   `json:"customer"`
	IssuedAt   *time.Time `json:"issuedAt,omitempty"`
}

// Usable reports whether the billing key can still be charged.
func (b *BillingKeyInfo) Usable() bool {
	return b.Status == "ISSUED"
}
