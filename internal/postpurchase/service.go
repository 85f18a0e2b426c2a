// Package postpurchase handles the after-sale surface: returns, customer
// feedback and warranty checks. Entirely outside the checkout saga's
// transaction boundary.
package postpurchase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matheusmosca/checkout-saga/internal/contract"
	"github.com/matheusmosca/checkout-saga/internal/inventory"
)

// Error codes raised by the service.
const (
	CodeMissingFields   = "MISSING_FIELDS"
	CodeInvalidReturnID = "INVALID_RETURN_ID"
	CodeInvalidDate     = "INVALID_DATE"
)

const (
	returnProcessDays = 3
	warrantyYears     = 1
)

// Return is one return-merchandise record.
type Return struct {
	ReturnID           string
	OrderID            string
	Items              []inventory.Line
	Reason             string
	Status             string
	CreatedAt          time.Time
	ExpectedCompleteAt time.Time
}

// Feedback is one customer rating for an order.
type Feedback struct {
	OrderID    string
	CustomerID string
	Rating     int
	Comments   string
	CreatedAt  time.Time
}

// ReturnRequest initiates a return for part of an order.
type ReturnRequest struct {
	OrderID string
	Items   []inventory.Line
	Reason  string
}

// FeedbackRequest records a rating and free-form comments.
type FeedbackRequest struct {
	OrderID    string
	CustomerID string
	Rating     int
	Comments   string
}

// Service owns return records and collected feedback.
type Service struct {
	mu       sync.Mutex
	returns  map[string]*Return
	feedback []Feedback
	now      func() time.Time
}

func NewService() *Service {
	return &Service{returns: make(map[string]*Return), now: time.Now}
}

// InitiateReturn opens a return and quotes the processing window.
func (s *Service) InitiateReturn(_ context.Context, req ReturnRequest) contract.Outcome {
	if req.OrderID == "" || len(req.Items) == 0 {
		return contract.Failed(contract.ErrorDetail{
			Code:    CodeMissingFields,
			Message: "order id and items are required",
		})
	}
	reason := req.Reason
	if reason == "" {
		reason = "customer_request"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ret := &Return{
		ReturnID:           "ret_" + uuid.New().String()[:8],
		OrderID:            req.OrderID,
		Items:              append([]inventory.Line(nil), req.Items...),
		Reason:             reason,
		Status:             "INITIATED",
		CreatedAt:          s.now(),
		ExpectedCompleteAt: s.now().AddDate(0, 0, returnProcessDays),
	}
	s.returns[ret.ReturnID] = ret
	return contract.Success(map[string]any{
		"return_id":            ret.ReturnID,
		"status":               ret.Status,
		"expected_complete_at": ret.ExpectedCompleteAt.Format(time.RFC3339),
	}).WithActions(contract.NextAction{
		Type:    contract.ActionNotifyCustomer,
		Message: "Return initiated. We'll process it within 3 days.",
		Data:    map[string]any{"return_id": ret.ReturnID},
	})
}

// ReturnStatus fetches one return record.
func (s *Service) ReturnStatus(_ context.Context, returnID string) contract.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	ret, ok := s.returns[returnID]
	if !ok {
		return contract.Failed(contract.ErrorDetail{
			Code:    CodeInvalidReturnID,
			Message: "return id invalid",
			Details: map[string]any{"return_id": returnID},
		})
	}
	return contract.Success(map[string]any{
		"return_id":            ret.ReturnID,
		"order_id":             ret.OrderID,
		"reason":               ret.Reason,
		"status":               ret.Status,
		"expected_complete_at": ret.ExpectedCompleteAt.Format(time.RFC3339),
	})
}

// SubmitFeedback stores a rating for an order.
func (s *Service) SubmitFeedback(_ context.Context, req FeedbackRequest) contract.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.feedback = append(s.feedback, Feedback{
		OrderID:    req.OrderID,
		CustomerID: req.CustomerID,
		Rating:     req.Rating,
		Comments:   req.Comments,
		CreatedAt:  s.now(),
	})
	return contract.Success(map[string]any{"saved": true})
}

// WarrantyCheck reports whether a purchase is still inside the one-year
// warranty window. purchaseDate is a YYYY-MM-DD string.
func (s *Service) WarrantyCheck(_ context.Context, sku, purchaseDate string) contract.Outcome {
	if sku == "" || purchaseDate == "" {
		return contract.Failed(contract.ErrorDetail{
			Code:    CodeMissingFields,
			Message: "sku and purchase_date are required",
		})
	}
	purchased, err := time.Parse("2006-01-02", purchaseDate)
	if err != nil {
		return contract.Failed(contract.ErrorDetail{
			Code:    CodeInvalidDate,
			Message: "purchase_date must be YYYY-MM-DD",
		})
	}

	expires := purchased.AddDate(warrantyYears, 0, 0)
	return contract.Success(map[string]any{
		"sku":                 sku,
		"warranty_valid":      expires.After(s.now()),
		"warranty_expires_on": expires.Format("2006-01-02"),
	})
}
