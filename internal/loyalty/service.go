// Package loyalty keeps the points ledger and its earn/redeem arithmetic.
// Non-critical to transaction safety: the saga treats every loyalty call as
// best-effort and never fails a checkout over it.
package loyalty

import (
	"context"
	"sync"

	"github.com/matheusmosca/checkout-saga/internal/contract"
)

// PointsPerUnit is the redemption rate: 100 points convert to 1 currency unit.
const PointsPerUnit = 100

// Error codes raised by the service.
const (
	CodeInvalidAmount      = "INVALID_AMOUNT"
	CodeInvalidRedeem      = "INVALID_REDEEM"
	CodeInsufficientPoints = "INSUFFICIENT_POINTS"
)

// CalculateRequest asks what a customer could redeem against an order.
type CalculateRequest struct {
	CustomerID  string
	OrderAmount int64
}

// RedeemRequest converts points into a discount of Amount currency units.
type RedeemRequest struct {
	CustomerID string
	OrderID    string
	Amount     int64
}

// IssueRequest awards points for a completed order.
type IssueRequest struct {
	CustomerID  string
	OrderID     string
	OrderAmount int64
}

// Service owns per-customer point balances. Issue runs inside concurrent
// checkouts, so the balance map sits behind a mutex.
type Service struct {
	mu     sync.Mutex
	points map[string]int64
}

func NewService(balances map[string]int64) *Service {
	s := &Service{points: make(map[string]int64, len(balances))}
	for cid, pts := range balances {
		s.points[cid] = pts
	}
	return s
}

// Calculate reports how much of an order a customer's points could cover,
// with a suggestion capped at 20% of the order amount.
func (s *Service) Calculate(_ context.Context, req CalculateRequest) contract.Outcome {
	if req.OrderAmount <= 0 {
		return invalidAmount()
	}

	s.mu.Lock()
	points := s.points[req.CustomerID]
	s.mu.Unlock()

	maxRedeemable := points / PointsPerUnit
	if maxRedeemable > req.OrderAmount {
		maxRedeemable = req.OrderAmount
	}
	var suggested int64
	if points >= PointsPerUnit {
		suggested = req.OrderAmount * 20 / 100
		if suggested > maxRedeemable {
			suggested = maxRedeemable
		}
	}
	return contract.Success(map[string]any{
		"order_amount":         req.OrderAmount,
		"customer_points":      points,
		"max_redeemable_value": maxRedeemable,
		"suggested_redeem":     suggested,
	})
}

// Redeem burns points for a discount of req.Amount currency units.
func (s *Service) Redeem(_ context.Context, req RedeemRequest) contract.Outcome {
	if req.Amount <= 0 {
		return contract.Failed(contract.ErrorDetail{
			Code:    CodeInvalidRedeem,
			Message: "amount to redeem must be greater than zero",
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	needed := req.Amount * PointsPerUnit
	current := s.points[req.CustomerID]
	if current < needed {
		return contract.Failed(contract.ErrorDetail{
			Code:    CodeInsufficientPoints,
			Message: "not enough points",
			Details: map[string]any{"available_points": current},
		}).WithActions(contract.NextAction{
			Type:    contract.ActionAskCustomer,
			Message: "You don't have enough points. Use a different payment method?",
		})
	}

	s.points[req.CustomerID] = current - needed
	return contract.Success(map[string]any{
		"redeemed_value":   req.Amount,
		"remaining_points": s.points[req.CustomerID],
	})
}

// Issue awards points for a completed order at the demo earn rate of
// PointsPerUnit points per currency unit spent.
func (s *Service) Issue(_ context.Context, req IssueRequest) contract.Outcome {
	if req.OrderAmount <= 0 {
		return invalidAmount()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	earned := req.OrderAmount * PointsPerUnit
	s.points[req.CustomerID] += earned
	return contract.Success(map[string]any{
		"order_id":      req.OrderID,
		"issued_points": earned,
		"new_balance":   s.points[req.CustomerID],
	})
}

// Balance reports a customer's current points.
func (s *Service) Balance(_ context.Context, customerID string) contract.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return contract.Success(map[string]any{"points": s.points[customerID]})
}

func invalidAmount() contract.Outcome {
	return contract.Failed(contract.ErrorDetail{
		Code:    CodeInvalidAmount,
		Message: "order amount must be greater than zero",
	})
}
