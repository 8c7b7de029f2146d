package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/Skotchmaster/fundshop/pkg/logging"
	"github.com/Skotchmaster/fundshop/pkg/paymentclient"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/domain"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/models"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/repo"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Outcome string

const (
	OutcomeIgnored        Outcome = "ignored"
	OutcomeAlreadySettled Outcome = "already_settled"
	OutcomePending        Outcome = "pending"
	OutcomeExecuted       Outcome = "executed"
	OutcomeFailed         Outcome = "failed"
	OutcomeCompensated    Outcome = "compensated"
)

const (
	ReasonGoalNotMet      = "goal not met"
	ReasonNotApproved     = "campaign not approved"
	ReasonAmountMismatch  = "amount mismatch"
	ReasonPaymentFailed   = "payment failed"
	ReasonCancelledBefore = "order cancelled before settlement"
)

// Ack is what the webhook answers. Every business outcome is a success so the gateway stops
// retrying; only a returned error asks for another delivery.
type Ack struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Outcome Outcome `json:"outcome"`
}

func ack(o Outcome, msg string) Ack {
	return Ack{Success: true, Message: msg, Outcome: o}
}

type SettlementService struct {
	Repo     *repo.GormRepo
	Gateway  Gateway
	Events   Publisher
	Now      Clock
	Currency string
}

func rawJSON(b []byte) datatypes.JSON {
	if len(b) == 0 {
		return nil
	}
	return datatypes.JSON(b)
}

// cancelCharge refunds a captured charge in full. A payment the gateway reports as already
// cancelled counts as refunded.
func cancelCharge(ctx context.Context, gw Gateway, paymentID string, amount int64, reason string) error {
	_, err := gw.CancelPayment(ctx, paymentID, paymentclient.CancelRequest{
		Amount:    &amount,
		Reason:    reason,
		Requester: paymentclient.RequesterAdmin,
	})
	var apiErr *paymentclient.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
		return nil
	}
	if err != nil {
		return gatewayErr("cancel payment", err)
	}
	logging.FromContext(ctx).Info("payment_cancelled", "payment_id", paymentID, "amount", amount, "reason", reason)
	return nil
}

// HandleNotification settles whatever schedule the notification points at.
func (s *SettlementService) HandleNotification(ctx context.Context, n Notification) (Ack, error) {
	l := logging.FromContext(ctx).With("ref_kind", n.Ref.Kind.String(), "ref", n.Ref.Value, "event", n.Type)

	var (
		sched *models.BillingSchedule
		err   error
	)
	switch n.Ref.Kind {
	case RefPaymentID:
		sched, err = s.Repo.GetScheduleByPaymentID(ctx, n.Ref.Value)
	case RefScheduleID:
		sched, err = s.Repo.GetScheduleByGatewayID(ctx, n.Ref.Value)
	case RefGatewayTxID:
		l.Info("webhook_ignored", "reason", "transaction id cannot be resolved to a schedule")
		return ack(OutcomeIgnored, "unknown payment"), nil
	default:
		return ack(OutcomeIgnored, "no payment identifier"), nil
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Info("webhook_ignored", "reason", "no billing schedule")
			return ack(OutcomeIgnored, "unknown payment"), nil
		}
		return Ack{}, err
	}

	return s.settle(logging.IntoContext(ctx, l), sched)
}

// Reconcile runs settlement for one schedule by asking the gateway directly.
func (s *SettlementService) Reconcile(ctx context.Context, scheduleID uuid.UUID) (Ack, error) {
	sched, err := s.Repo.GetSchedule(ctx, scheduleID)
	if err != nil {
		return Ack{}, notFound(err, "billing schedule")
	}
	return s.settle(ctx, sched)
}

func (s *SettlementService) settle(ctx context.Context, sched *models.BillingSchedule) (Ack, error) {
	l := logging.FromContext(ctx).With("schedule_id", sched.ID, "payment_id", sched.PaymentID)
	ctx = logging.IntoContext(ctx, l)

	switch sched.Status {
	case domain.ScheduleExecuted:
		return ack(OutcomeAlreadySettled, "already settled"), nil
	case domain.ScheduleFailed, domain.ScheduleCancelled:
		return s.settleTerminal(ctx, sched), nil
	}

	payment, err := s.Gateway.GetPayment(ctx, sched.PaymentID)
	if err != nil {
		if paymentclient.IsNotFound(err) {
			return ack(OutcomePending, "payment not settled yet"), nil
		}
		l.Error("get_payment_failed", "error", err)
		return Ack{}, gatewayErr("get payment", err)
	}

	switch {
	case payment.Status == paymentclient.StatusPaid:
		return s.settlePaid(ctx, sched, payment)
	case payment.Status.Settled():
		if reason := compensationReason(sched, payment); reason != "" {
			return s.fail(ctx, sched, reason, payment.Raw, OutcomeCompensated)
		}
		reason := payment.FailureReason()
		if reason == "" {
			reason = ReasonPaymentFailed
		}
		return s.fail(ctx, sched, reason, payment.Raw, OutcomeFailed)
	}
	l.Info("payment_not_settled", "gateway_status", payment.Status)
	return ack(OutcomePending, "payment not settled yet"), nil
}

// compensationReason returns the reason of a refund this service already made for the
// schedule, or "" when the charge was cancelled or failed at the gateway on its own.
func compensationReason(sched *models.BillingSchedule, payment *paymentclient.Payment) string {
	if payment.Status != paymentclient.StatusCancelled && payment.Status != paymentclient.StatusPartialCancelled {
		return ""
	}
	if sched.FailureReason != "" {
		return sched.FailureReason
	}
	for _, c := range payment.Cancellations {
		switch c.Reason {
		case ReasonGoalNotMet, ReasonNotApproved, ReasonAmountMismatch:
			return c.Reason
		}
	}
	return ""
}

// settleTerminal acknowledges a schedule that already ended without executing. A charge
// that still went through is refunded.
func (s *SettlementService) settleTerminal(ctx context.Context, sched *models.BillingSchedule) Ack {
	l := logging.FromContext(ctx)

	payment, err := s.Gateway.GetPayment(ctx, sched.PaymentID)
	switch {
	case err != nil && !paymentclient.IsNotFound(err):
		l.Error("terminal_schedule_check_failed", "status", sched.Status, "error", err)
	case err == nil && payment.Status == paymentclient.StatusPaid:
		if err := cancelCharge(ctx, s.Gateway, sched.PaymentID, payment.Amount.Total, ReasonCancelledBefore); err != nil {
			l.Error("compensating_cancel_failed", "status", sched.Status, "error", err)
			break
		}
		return ack(OutcomeCompensated, "payment refunded: "+ReasonCancelledBefore)
	}
	return ack(OutcomeAlreadySettled, "already finalized")
}

// campaignBlocker re-checks every campaign the schedule funds. It returns a failure reason,
// or "" when the charge may be kept.
func (s *SettlementService) campaignBlocker(ctx context.Context, sched *models.BillingSchedule) (string, error) {
	ids := make([]uuid.UUID, 0, len(sched.Deltas))
	for _, d := range sched.Deltas {
		ids = append(ids, d.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	products, err := s.Repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return "", err
	}
	pending, err := s.Repo.PendingPledges(ctx, ids)
	if err != nil {
		return "", err
	}

	for _, id := range ids {
		p, ok := products[id]
		if !ok || p.FundingGoalAmount == nil {
			return "", fmt.Errorf("schedule %s funds unknown campaign %s", sched.ID, id)
		}
		if p.FundingCurrentAmount+pending[id] < *p.FundingGoalAmount {
			return ReasonGoalNotMet, nil
		}
	}
	for _, id := range ids {
		if !products[id].BillingApproved {
			return ReasonNotApproved, nil
		}
	}
	return "", nil
}

func (s *SettlementService) settlePaid(ctx context.Context, sched *models.BillingSchedule, payment *paymentclient.Payment) (Ack, error) {
	l := logging.FromContext(ctx)

	reason := ""
	if payment.Amount.Total != sched.Amount {
		l.Error("payment_amount_mismatch", "expected", sched.Amount, "paid", payment.Amount.Total)
		reason = ReasonAmountMismatch
	} else {
		var err error
		if reason, err = s.campaignBlocker(ctx, sched); err != nil {
			return Ack{}, err
		}
	}
	if reason != "" {
		if err := s.Repo.NoteCompensation(ctx, sched.ID, reason); err != nil {
			return Ack{}, err
		}
		sched.FailureReason = reason
		if err := cancelCharge(ctx, s.Gateway, sched.PaymentID, payment.Amount.Total, reason); err != nil {
			l.Error("compensating_cancel_failed", "reason", reason, "error", err)
			return Ack{}, err
		}
		return s.fail(ctx, sched, reason, payment.Raw, OutcomeCompensated)
	}

	order, err := s.Repo.GetOrder(ctx, sched.OrderID)
	if err != nil {
		return Ack{}, err
	}
	info := paymentInfo(payment, order, s.Currency)
	rec := paymentRecord(payment, order, info)
	rec.PaymentID = sched.PaymentID

	applied, err := s.Repo.CommitSettlement(ctx, repo.SettlementCommit{
		Schedule: sched,
		Response: rawJSON(payment.Raw),
		Info:     info,
		Record:   rec,
		At:       s.Now.now(),
	})
	if errors.Is(err, repo.ErrDuplicate) {
		l.Warn("settlement_duplicate_record", "error", err)
		return ack(OutcomeAlreadySettled, "already settled"), nil
	}
	if err != nil {
		l.Error("settlement_commit_failed", "error", err)
		return Ack{}, err
	}
	if !applied {
		return s.lostRace(ctx, sched.ID)
	}

	l.Info("settlement_executed", "order_id", sched.OrderID, "amount", sched.Amount)
	publish(ctx, s.Events, TopicPayment, sched.OrderID.String(), map[string]any{
		"type":        "settlement_executed",
		"order_id":    sched.OrderID,
		"schedule_id": sched.ID,
		"payment_id":  sched.PaymentID,
		"amount":      sched.Amount,
	})
	return ack(OutcomeExecuted, "payment settled"), nil
}

// lostRace handles a paid charge whose schedule left SCHEDULED while it was being settled:
// either another delivery executed it, or the buyer cancelled and the charge must go back.
func (s *SettlementService) lostRace(ctx context.Context, scheduleID uuid.UUID) (Ack, error) {
	current, err := s.Repo.GetSchedule(ctx, scheduleID)
	if err != nil {
		return Ack{}, err
	}
	if current.Status == domain.ScheduleExecuted {
		return ack(OutcomeAlreadySettled, "already settled"), nil
	}
	return s.settleTerminal(ctx, current), nil
}

func (s *SettlementService) fail(ctx context.Context, sched *models.BillingSchedule, reason string, raw []byte, outcome Outcome) (Ack, error) {
	l := logging.FromContext(ctx)

	applied, err := s.Repo.CommitSettlementFailure(ctx, sched, reason, rawJSON(raw), s.Now.now())
	if err != nil {
		l.Error("settlement_failure_commit_failed", "reason", reason, "error", err)
		return Ack{}, err
	}
	if !applied {
		return ack(OutcomeAlreadySettled, "already finalized"), nil
	}

	l.Warn("settlement_failed", "order_id", sched.OrderID, "reason", reason)
	publish(ctx, s.Events, TopicPayment, sched.OrderID.String(), map[string]any{
		"type":        "settlement_failed",
		"order_id":    sched.OrderID,
		"schedule_id": sched.ID,
		"payment_id":  sched.PaymentID,
		"reason":      reason,
	})
	return ack(outcome, "payment failed: "+reason), nil
}
