package checkout

import (
	"github.com/matheusmosca/checkout-saga/internal/contract"
	"github.com/matheusmosca/checkout-saga/internal/fulfillment"
	"github.com/matheusmosca/checkout-saga/internal/inventory"
	"github.com/matheusmosca/checkout-saga/internal/payment"
)

// Step names the stages of the checkout pipeline.
type Step string

const (
	StepCheckInventory    Step = "check_inventory"
	StepRecommend         Step = "recommend"
	StepLoyaltyCalculate  Step = "loyalty_calculate"
	StepReserve           Step = "reserve"
	StepAuthorizePayment  Step = "authorize_payment"
	StepCapturePayment    Step = "capture_payment"
	StepCreateFulfillment Step = "create_fulfillment"
	StepIssueLoyalty      Step = "issue_loyalty"
)

// Reason is the coarse failure tag of a terminal result. Collaborator error
// details travel alongside it untranslated.
type Reason string

const (
	ReasonInventoryUnavailable Reason = "inventory_unavailable"
	ReasonReserveFailed        Reason = "reserve_failed"
	ReasonPaymentFailed        Reason = "payment_failed"
	ReasonCaptureFailed        Reason = "capture_failed"
	ReasonFulfillmentFailed    Reason = "fulfillment_failed"
)

// CartItem is one line of the customer's cart.
type CartItem struct {
	SKU   string `json:"sku"`
	Qty   int    `json:"qty"`
	Price int64  `json:"price"`
}

// Request carries everything one checkout call needs. The saga holds no
// cross-call state, so a resume after a pending payment supplies it again.
type Request struct {
	CustomerID     string
	Cart           []CartItem
	Payment        payment.Details
	Address        fulfillment.Address
	Mode           fulfillment.Mode
	PreferredStore string
}

func (r Request) lines() []inventory.Line {
	lines := make([]inventory.Line, 0, len(r.Cart))
	for _, item := range r.Cart {
		lines = append(lines, inventory.Line{SKU: item.SKU, Qty: item.Qty})
	}
	return lines
}

func (r Request) amount() int64 {
	var total int64
	for _, item := range r.Cart {
		total += item.Price * int64(item.Qty)
	}
	return total
}

// ResumeRequest re-drives capture and the steps after it for a checkout that
// halted pending an out-of-band payment confirmation. AuthID is the
// transaction reference returned with the pending result.
type ResumeRequest struct {
	OrderID        string
	SessionID      string
	CustomerID     string
	AuthID         string
	Cart           []CartItem
	Address        fulfillment.Address
	Mode           fulfillment.Mode
	PreferredStore string
}

// StepRecord is one entry of the saga log: the task that was issued and how
// the component answered.
type StepRecord struct {
	Step   Step                `json:"step"`
	Result contract.TaskResult `json:"result"`
}

// Result is the single terminal outcome of one checkout (or resume) call.
type Result struct {
	Status          contract.Status        `json:"status"`
	Reason          Reason                 `json:"reason,omitempty"`
	OrderID         string                 `json:"order_id"`
	SessionID       string                 `json:"session_id"`
	ReservationID   string                 `json:"reservation_id,omitempty"`
	Inventory       map[string]any         `json:"inventory,omitempty"`
	Recommendations map[string]any         `json:"recommendations,omitempty"`
	Loyalty         map[string]any         `json:"loyalty,omitempty"`
	Payment         map[string]any         `json:"payment,omitempty"`
	Fulfillment     map[string]any         `json:"fulfillment,omitempty"`
	Detail          []contract.ErrorDetail `json:"detail,omitempty"`
	NextActions     []contract.NextAction  `json:"next_actions,omitempty"`
	Steps           []StepRecord           `json:"steps"`
}
