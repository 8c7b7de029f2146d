package service

import (
	"context"
	"fmt"

	"github.com/Skotchmaster/fundshop/services/commerce/internal/models"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/repo"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/transport"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FundingService reports campaign progress. Settled money lives on the product; pledges whose
// schedules are still SCHEDULED count as pending. Goal checks use settled + pending.
type FundingService struct {
	Repo *repo.GormRepo
	Now  Clock
}

// Percentage is committed/goal*100, truncated to two decimals so 99.999% never reads as 100.00%.
func Percentage(committed, goal int64) decimal.Decimal {
	if goal <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(committed).Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(goal), 8).Truncate(2)
}

func (s *FundingService) Status(ctx context.Context, productID uuid.UUID) (*transport.FundingStatus, error) {
	p, err := s.Repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, notFound(err, "product")
	}
	if !p.IsCrowdfund() {
		return nil, fmt.Errorf("%w: product is not a crowdfund product", ErrValidation)
	}

	statuses, err := s.statuses(ctx, []models.Product{*p})
	if err != nil {
		return nil, err
	}
	st := statuses[p.ID]
	return &st, nil
}

func (s *FundingService) statuses(ctx context.Context, products []models.Product) (map[uuid.UUID]transport.FundingStatus, error) {
	ids := make([]uuid.UUID, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	pending, err := s.Repo.PendingPledges(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := s.Now.now()
	out := make(map[uuid.UUID]transport.FundingStatus, len(products))
	for _, p := range products {
		var goal int64
		if p.FundingGoalAmount != nil {
			goal = *p.FundingGoalAmount
		}
		committed := p.FundingCurrentAmount + pending[p.ID]
		out[p.ID] = transport.FundingStatus{
			ProductID:      p.ID,
			Goal:           goal,
			Settled:        p.FundingCurrentAmount,
			Pending:        pending[p.ID],
			Committed:      committed,
			Percentage:     Percentage(committed, goal).StringFixed(2),
			Supporters:     p.FundingSupporterCount,
			Deadline:       p.FundingDeadline,
			DeadlinePassed: p.FundingDeadline != nil && !now.Before(*p.FundingDeadline),
			GoalReached:    goal > 0 && committed >= goal,
			Approved:       p.BillingApproved,
		}
	}
	return out, nil
}
