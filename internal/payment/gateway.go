// Package payment implements the payment gateway collaborator: method-specific
// authorization rules, capture, refund and status lookup over an in-memory
// transaction ledger. The checkout saga only ever holds auth_id references
// into this ledger; the transactions themselves belong to the gateway.
package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matheusmosca/checkout-saga/internal/contract"
)

// Method selects the authorization rules applied to a payment.
type Method string

const (
	MethodCard     Method = "card"
	MethodUPI      Method = "upi"
	MethodGiftCard Method = "gift_card"
	MethodPOS      Method = "pos"
)

// TxStatus is the lifecycle state of a transaction.
type TxStatus string

const (
	TxAuthorized TxStatus = "AUTHORIZED"
	TxPending    TxStatus = "PENDING"
	TxCaptured   TxStatus = "CAPTURED"
)

// Error codes raised by the gateway.
const (
	CodeInvalidAmount       = "INVALID_AMOUNT"
	CodeUnsupportedMethod   = "UNSUPPORTED_METHOD"
	CodeInvalidCard         = "INVALID_CARD"
	CodeInsufficientFunds   = "INSUFFICIENT_FUNDS"
	CodeCardDeclined        = "CARD_DECLINED"
	CodeInvalidUPI          = "INVALID_UPI"
	CodeUPIFailure          = "UPI_FAILURE"
	CodeInsufficientBalance = "INSUFFICIENT_GIFT_BALANCE"
	CodeAuthNotFound        = "AUTH_NOT_FOUND"
	CodeTxNotFound          = "TX_NOT_FOUND"
	CodeRefundNotAllowed    = "REFUND_NOT_ALLOWED"
)

// Details is the payment instrument supplied by the customer. Only the fields
// matching Method are consulted.
type Details struct {
	Method      Method `json:"method"`
	CardNumber  string `json:"card_number,omitempty"`
	Token       string `json:"token,omitempty"`
	UPIID       string `json:"upi_id,omitempty"`
	GiftCode    string `json:"gift_code,omitempty"`
	GiftBalance int64  `json:"gift_balance,omitempty"`
	TerminalID  string `json:"terminal_id,omitempty"`
}

// AuthorizeRequest asks the gateway to place a hold for Amount.
type AuthorizeRequest struct {
	Amount     int64
	CustomerID string
	Payment    Details
}

// Refund is one refund issued against a transaction.
type Refund struct {
	RefundID   string
	Amount     int64
	RefundedAt time.Time
}

// Transaction is a gateway-owned payment record.
type Transaction struct {
	TxID       string
	AuthID     string
	Method     Method
	Last4      string
	UPIID      string
	Terminal   string
	Amount     int64
	Status     TxStatus
	CreatedAt  time.Time
	CapturedAt time.Time
	Refunds    []Refund
}

const defaultGiftBalance = 1000

// Gateway is an in-memory payment processor with deterministic demo rules.
type Gateway struct {
	mu  sync.Mutex
	txs map[string]*Transaction
	now func() time.Time
}

func NewGateway() *Gateway {
	return &Gateway{txs: make(map[string]*Transaction), now: time.Now}
}

// Authorize places a hold for the requested amount. Card numbers with an even
// last digit authorize, odd ones are declined by the issuer and last4 "0000"
// declines for insufficient funds. UPI authorizations come back pending: a
// collect request goes out and the caller re-drives capture after approval.
func (g *Gateway) Authorize(_ context.Context, req AuthorizeRequest) contract.Outcome {
	if req.Amount <= 0 {
		return contract.Failed(contract.ErrorDetail{
			Code:    CodeInvalidAmount,
			Message: "amount must be greater than zero",
			Details: map[string]any{"amount": req.Amount},
		})
	}

	switch req.Payment.Method {
	case MethodCard:
		return g.authorizeCard(req)
	case MethodUPI:
		return g.authorizeUPI(req)
	case MethodGiftCard:
		return g.authorizeGiftCard(req)
	case MethodPOS:
		return g.authorizePOS(req)
	}
	return contract.Failed(contract.ErrorDetail{
		Code:    CodeUnsupportedMethod,
		Message: fmt.Sprintf("unsupported payment method: %s", req.Payment.Method),
	}).WithActions(contract.NextAction{
		Type:    contract.ActionAskCustomer,
		Message: "Supported methods: card, upi, gift_card, pos.",
	})
}

func (g *Gateway) authorizeCard(req AuthorizeRequest) contract.Outcome {
	number := req.Payment.CardNumber
	if number != "" && len(number) < 12 {
		return contract.Failed(contract.ErrorDetail{
			Code:    CodeInvalidCard,
			Message: "card number too short",
		}).WithActions(contract.NextAction{
			Type:    contract.ActionAskCustomer,
			Message: "Please re-enter card details.",
		})
	}

	last4 := "0000"
	switch {
	case number != "":
		last4 = number[len(number)-4:]
	case len(req.Payment.Token) >= 4:
		last4 = req.Payment.Token[len(req.Payment.Token)-4:]
	}

	if last4 == "0000" {
		return contract.Failed(contract.ErrorDetail{
			Code:    CodeInsufficientFunds,
			Message: "card declined: insufficient funds",
			Details: map[string]any{"last4": last4},
		}).WithActions(contract.NextAction{
			Type:    contract.ActionAskCustomer,
			Message: "Your card was declined. Would you like to try UPI or another card?",
		})
	}
	if (last4[3]-'0')%2 != 0 {
		return contract.Failed(contract.ErrorDetail{
			Code:    CodeCardDeclined,
			Message: "issuer declined the card",
			Details: map[string]any{"last4": last4},
		}).WithActions(contract.NextAction{
			Type:    contract.ActionAskCustomer,
			Message: "Card was declined. Try another payment method?",
		})
	}

	tx := g.record(&Transaction{Method: MethodCard, Last4: last4, Amount: req.Amount, Status: TxAuthorized})
	return contract.Success(map[string]any{
		"tx_id":   tx.TxID,
		"auth_id": tx.AuthID,
		"method":  string(MethodCard),
		"amount":  tx.Amount,
	})
}

func (g *Gateway) authorizeUPI(req AuthorizeRequest) contract.Outcome {
	upiID := req.Payment.UPIID
	if !validUPI(upiID) {
		return contract.Failed(contract.ErrorDetail{
			Code:    CodeInvalidUPI,
			Message: "upi id looks invalid",
			Details: map[string]any{"upi_id": upiID},
		}).WithActions(contract.NextAction{
			Type:    contract.ActionAskCustomer,
			Message: "Please check the UPI ID.",
		})
	}
	if failingUPI(upiID) {
		return contract.Failed(contract.ErrorDetail{
			Code:    CodeUPIFailure,
			Message: "upi collect failed",
			Details: map[string]any{"upi_id": upiID},
		}).WithActions(contract.NextAction{
			Type:    contract.ActionAskCustomer,
			Message: "UPI failed. Try another method?",
		})
	}

	tx := g.record(&Transaction{Method: MethodUPI, UPIID: upiID, Amount: req.Amount, Status: TxPending})
	return contract.Pending(map[string]any{
		"tx_id":   tx.TxID,
		"auth_id": tx.AuthID,
		"method":  string(MethodUPI),
		"status":  "COLLECT_REQUEST_SENT",
	}).WithActions(contract.NextAction{
		Type:    contract.ActionAskCustomer,
		Message: fmt.Sprintf("UPI collect request sent to %s. Please approve to continue.", upiID),
	})
}

func (g *Gateway) authorizeGiftCard(req AuthorizeRequest) contract.Outcome {
	balance := req.Payment.GiftBalance
	if balance == 0 {
		balance = defaultGiftBalance
	}
	if balance < req.Amount {
		return contract.Failed(contract.ErrorDetail{
			Code:    CodeInsufficientBalance,
			Message: "gift card balance too low",
			Details: map[string]any{"balance": balance},
		}).WithActions(contract.NextAction{
			Type:    contract.ActionAskCustomer,
			Message: "Gift card balance is low. Pay the remainder via another method?",
		})
	}

	tx := g.record(&Transaction{Method: MethodGiftCard, Amount: req.Amount, Status: TxAuthorized})
	return contract.Success(map[string]any{
		"tx_id":   tx.TxID,
		"auth_id": tx.AuthID,
		"method":  string(MethodGiftCard),
		"amount":  tx.Amount,
	})
}

func (g *Gateway) authorizePOS(req AuthorizeRequest) contract.Outcome {
	terminal := req.Payment.TerminalID
	if terminal == "" {
		terminal = "POS_1"
	}
	tx := g.record(&Transaction{Method: MethodPOS, Terminal: terminal, Amount: req.Amount, Status: TxAuthorized})
	return contract.Success(map[string]any{
		"tx_id":   tx.TxID,
		"auth_id": tx.AuthID,
		"method":  string(MethodPOS),
		"amount":  tx.Amount,
	})
}

// Capture settles a previously authorized (or pending, once approved
// out-of-band) transaction. Re-capturing a captured transaction succeeds
// without moving funds again.
func (g *Gateway) Capture(_ context.Context, authID string) contract.Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()

	tx := g.findByAuthLocked(authID)
	if tx == nil {
		return contract.Failed(contract.ErrorDetail{
			Code:    CodeAuthNotFound,
			Message: "authorization not found",
			Details: map[string]any{"auth_id": authID},
		})
	}
	if tx.Status == TxCaptured {
		return contract.Success(map[string]any{
			"message": "already captured",
			"tx_id":   tx.TxID,
			"amount":  tx.Amount,
		})
	}

	tx.Status = TxCaptured
	tx.CapturedAt = g.now()
	return contract.Success(map[string]any{
		"capture_id": "cap_" + tx.TxID,
		"tx_id":      tx.TxID,
		"auth_id":    tx.AuthID,
		"method":     string(tx.Method),
		"amount":     tx.Amount,
		"status":     string(tx.Status),
	})
}

// Refund credits part or all of a captured or authorized transaction back.
// A zero amount refunds the full transaction amount.
func (g *Gateway) Refund(_ context.Context, txID string, amount int64) contract.Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()

	tx, ok := g.txs[txID]
	if !ok {
		return contract.Failed(contract.ErrorDetail{
			Code:    CodeTxNotFound,
			Message: "transaction not found",
			Details: map[string]any{"tx_id": txID},
		})
	}
	if tx.Status != TxCaptured && tx.Status != TxAuthorized {
		return contract.Failed(contract.ErrorDetail{
			Code:    CodeRefundNotAllowed,
			Message: fmt.Sprintf("cannot refund transaction in status %s", tx.Status),
		})
	}
	if amount == 0 {
		amount = tx.Amount
	}

	refund := Refund{RefundID: "ref_" + shortID(), Amount: amount, RefundedAt: g.now()}
	tx.Refunds = append(tx.Refunds, refund)
	return contract.Success(map[string]any{
		"refund_id": refund.RefundID,
		"tx_id":     tx.TxID,
		"amount":    refund.Amount,
	})
}

// Status looks a transaction up by tx id, or by auth id when txID is empty.
func (g *Gateway) Status(_ context.Context, txID, authID string) contract.Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()

	tx := g.txs[txID]
	if tx == nil {
		tx = g.findByAuthLocked(authID)
	}
	if tx == nil {
		return contract.Failed(contract.ErrorDetail{
			Code:    CodeTxNotFound,
			Message: "transaction not found",
		})
	}
	return contract.Success(map[string]any{
		"tx_id":   tx.TxID,
		"auth_id": tx.AuthID,
		"method":  string(tx.Method),
		"amount":  tx.Amount,
		"status":  string(tx.Status),
	})
}

func (g *Gateway) record(tx *Transaction) *Transaction {
	tx.TxID = "tx_" + shortID()
	tx.AuthID = "auth_" + tx.TxID
	tx.CreatedAt = g.now()

	g.mu.Lock()
	defer g.mu.Unlock()
	g.txs[tx.TxID] = tx
	return tx
}

func (g *Gateway) findByAuthLocked(authID string) *Transaction {
	if authID == "" {
		return nil
	}
	for _, tx := range g.txs {
		if tx.AuthID == authID {
			return tx
		}
	}
	return nil
}

func validUPI(id string) bool {
	return strings.Contains(id, "@")
}

// failingUPI simulates a handle whose collect requests always fail.
func failingUPI(id string) bool {
	return strings.Contains(id, "fail")
}

func shortID() string {
	return uuid.New().String()[:8]
}
