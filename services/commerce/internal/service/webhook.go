package service

import (
	"encoding/json"
	"fmt"
	"strings"
)

type RefKind int

const (
	RefNone RefKind = iota
	RefPaymentID
	RefScheduleID
	RefGatewayTxID
)

func (k RefKind) String() string {
	switch k {
	case RefPaymentID:
		return "payment_id"
	case RefScheduleID:
		return "schedule_id"
	case RefGatewayTxID:
		return "gateway_tx_id"
	}
	return "none"
}

// PaymentRef is the one identifier a notification is resolved by.
type PaymentRef struct {
	Kind  RefKind
	Value string
}

// Notification is a gateway webhook reduced to what settlement needs. Status fields in the
// payload are informational only; settlement always asks the gateway.
type Notification struct {
	Type   string
	Status string
	Ref    PaymentRef
}

type webhookData struct {
	PaymentID     string `json:"paymentId"`
	ScheduleID    string `json:"scheduleId"`
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
}

type webhookPayload struct {
	Type   string       `json:"type"`
	Status string       `json:"status"`
	Data   *webhookData `json:"data"`

	PaymentID       string `json:"paymentId"`
	PaymentIDSnake  string `json:"payment_id"`
	MerchantUID     string `json:"merchant_uid"`
	ScheduleID      string `json:"scheduleId"`
	ScheduleIDSnake string `json:"schedule_id"`
	ImpUID          string `json:"imp_uid"`
	TxID            string `json:"tx_id"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// ParseNotification accepts the current nested payload as well as the older flat shapes.
func ParseNotification(body []byte) (Notification, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return Notification{}, fmt.Errorf("%w: malformed webhook payload: %v", ErrValidation, err)
	}
	data := p.Data
	if data == nil {
		data = &webhookData{}
	}

	n := Notification{
		Type:   p.Type,
		Status: firstNonEmpty(data.Status, p.Status),
	}
	switch {
	case firstNonEmpty(data.PaymentID, p.PaymentID, p.PaymentIDSnake, p.MerchantUID) != "":
		n.Ref = PaymentRef{Kind: RefPaymentID, Value: firstNonEmpty(data.PaymentID, p.PaymentID, p.PaymentIDSnake, p.MerchantUID)}
	case firstNonEmpty(data.ScheduleID, p.ScheduleID, p.ScheduleIDSnake) != "":
		n.Ref = PaymentRef{Kind: RefScheduleID, Value: firstNonEmpty(data.ScheduleID, p.ScheduleID, p.ScheduleIDSnake)}
	case firstNonEmpty(p.ImpUID, data.TransactionID, p.TxID) != "":
		n.Ref = PaymentRef{Kind: RefGatewayTxID, Value: firstNonEmpty(p.ImpUID, data.TransactionID, p.TxID)}
	}
	return n, nil
}
