package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skotchmaster/fundshop/pkg/logging"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/models"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/repo"
	"github.com/google/uuid"
)

type GateReason string

const (
	GateNotCrowdfund       GateReason = "not_crowdfund"
	GateNoDeadline         GateReason = "no_deadline"
	GateAlreadyApproved    GateReason = "already_approved"
	GateNotApproved        GateReason = "not_approved"
	GateDeadlineNotReached GateReason = "deadline_not_reached"
	GateGoalNotMet         GateReason = "goal_not_met"
)

// GateError explains why an approval request was refused.
type GateError struct {
	Reason     GateReason
	Message    string
	Percentage string
}

func (e *GateError) Error() string {
	return e.Message
}

func (e *GateError) Unwrap() error {
	switch e.Reason {
	case GateNotCrowdfund, GateNoDeadline:
		return ErrValidation
	}
	return ErrConflict
}

// BillingGateService lets an administrator release a campaign for charging once its deadline
// has passed and the committed amount reaches the goal.
type BillingGateService struct {
	Repo    *repo.GormRepo
	Funding *FundingService
	Now     Clock
}

func (s *BillingGateService) Approve(ctx context.Context, adminID, productID uuid.UUID) (*models.Product, error) {
	l := logging.FromContext(ctx).With("product_id", productID, "admin_id", adminID)

	p, err := s.Repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, notFound(err, "product")
	}
	if !p.IsCrowdfund() {
		return nil, &GateError{Reason: GateNotCrowdfund, Message: "product is not a crowdfund product"}
	}
	if p.BillingApproved {
		return nil, &GateError{Reason: GateAlreadyApproved, Message: "billing already approved"}
	}
	if p.FundingDeadline == nil {
		return nil, &GateError{Reason: GateNoDeadline, Message: "funding deadline is not set"}
	}

	now := s.Now.now()
	if now.Before(*p.FundingDeadline) {
		return nil, &GateError{Reason: GateDeadlineNotReached, Message: "deadline not reached"}
	}

	statuses, err := s.Funding.statuses(ctx, []models.Product{*p})
	if err != nil {
		return nil, err
	}
	st := statuses[p.ID]
	if !st.GoalReached {
		return nil, &GateError{
			Reason:     GateGoalNotMet,
			Message:    fmt.Sprintf("goal not met: %s%% of goal raised", st.Percentage),
			Percentage: st.Percentage,
		}
	}

	updated, err := s.Repo.SetBillingApproval(ctx, productID, true, adminID, now)
	if errors.Is(err, repo.ErrStaleState) {
		return nil, &GateError{Reason: GateAlreadyApproved, Message: "billing already approved"}
	}
	if err != nil {
		return nil, err
	}

	l.Info("billing_approved", "committed", st.Committed, "goal", st.Goal)
	return updated, nil
}

func (s *BillingGateService) Unapprove(ctx context.Context, adminID, productID uuid.UUID) (*models.Product, error) {
	p, err := s.Repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, notFound(err, "product")
	}
	if !p.IsCrowdfund() {
		return nil, &GateError{Reason: GateNotCrowdfund, Message: "product is not a crowdfund product"}
	}

	updated, err := s.Repo.SetBillingApproval(ctx, productID, false, adminID, s.Now.now())
	if errors.Is(err, repo.ErrStaleState) {
		return nil, &GateError{Reason: GateNotApproved, Message: "billing is not approved"}
	}
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("billing_unapproved", "product_id", productID, "admin_id", adminID)
	return updated, nil
}
