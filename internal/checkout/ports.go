package checkout

import (
	"context"
	"time"

	"github.com/matheusmosca/checkout-saga/internal/contract"
	"github.com/matheusmosca/checkout-saga/internal/fulfillment"
	"github.com/matheusmosca/checkout-saga/internal/inventory"
	"github.com/matheusmosca/checkout-saga/internal/loyalty"
	"github.com/matheusmosca/checkout-saga/internal/payment"
	"github.com/matheusmosca/checkout-saga/internal/recommendation"
)

// InventoryService is the slice of the reservation ledger the saga drives.
// Satisfied by *inventory.Ledger.
type InventoryService interface {
	Check(lines []inventory.Line, preferredLocation string) []inventory.Availability
	Reserve(orderID string, lines []inventory.Line, hold time.Duration) (*inventory.Reservation, error)
	Release(reservationID string) (*inventory.Reservation, error)
}

// PaymentGateway authorizes and captures funds.
type PaymentGateway interface {
	Authorize(ctx context.Context, req payment.AuthorizeRequest) contract.Outcome
	Capture(ctx context.Context, authID string) contract.Outcome
}

// FulfillmentService turns a paid order into a shipping or pickup record.
type FulfillmentService interface {
	Create(ctx context.Context, req fulfillment.CreateRequest) contract.Outcome
}

// LoyaltyService computes and issues points. Best-effort from the saga's
// point of view: its failures never fail a checkout.
type LoyaltyService interface {
	Calculate(ctx context.Context, req loyalty.CalculateRequest) contract.Outcome
	Issue(ctx context.Context, req loyalty.IssueRequest) contract.Outcome
}

// Recommender suggests products alongside a cart. Best-effort.
type Recommender interface {
	ForCart(ctx context.Context, req recommendation.CartRequest) contract.Outcome
}
