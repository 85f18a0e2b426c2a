package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheusmosca/checkout-saga/internal/contract"
)

func authorize(t *testing.T, g *Gateway, details Details, amount int64) contract.Outcome {
	t.Helper()
	return g.Authorize(context.Background(), AuthorizeRequest{
		Amount:     amount,
		CustomerID: "cust_001",
		Payment:    details,
	})
}

func TestAuthorizeCard(t *testing.T) {
	g := NewGateway()

	tests := []struct {
		name   string
		number string
		status contract.Status
		code   string
	}{
		{"even last digit authorizes", "4111111111111112", contract.StatusSuccess, ""},
		{"odd last digit declines", "4111111111111111", contract.StatusFailed, CodeCardDeclined},
		{"0000 means insufficient funds", "4111111111110000", contract.StatusFailed, CodeInsufficientFunds},
		{"too short", "41111111111", contract.StatusFailed, CodeInvalidCard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := authorize(t, g, Details{Method: MethodCard, CardNumber: tt.number}, 998)
			assert.Equal(t, tt.status, out.Status)
			if tt.code != "" {
				require.NotEmpty(t, out.Errors)
				assert.Equal(t, tt.code, out.Errors[0].Code)
				assert.NotEmpty(t, out.NextActions)
			} else {
				assert.NotEmpty(t, out.Payload["auth_id"])
			}
		})
	}
}

func TestAuthorizeInvalidAmount(t *testing.T) {
	g := NewGateway()

	out := authorize(t, g, Details{Method: MethodCard, CardNumber: "4111111111111112"}, 0)
	assert.Equal(t, contract.StatusFailed, out.Status)
	assert.Equal(t, CodeInvalidAmount, out.Errors[0].Code)
}

func TestAuthorizeUnsupportedMethod(t *testing.T) {
	g := NewGateway()

	out := authorize(t, g, Details{Method: "cheque"}, 100)
	assert.Equal(t, contract.StatusFailed, out.Status)
	assert.Equal(t, CodeUnsupportedMethod, out.Errors[0].Code)
}

func TestAuthorizeUPI(t *testing.T) {
	g := NewGateway()

	out := authorize(t, g, Details{Method: MethodUPI, UPIID: "user@okbank"}, 500)
	require.Equal(t, contract.StatusPending, out.Status)
	assert.Equal(t, "COLLECT_REQUEST_SENT", out.Payload["status"])
	assert.NotEmpty(t, out.Payload["auth_id"])
	require.NotEmpty(t, out.NextActions)
	assert.Equal(t, contract.ActionAskCustomer, out.NextActions[0].Type)

	out = authorize(t, g, Details{Method: MethodUPI, UPIID: "not-a-handle"}, 500)
	assert.Equal(t, CodeInvalidUPI, out.Errors[0].Code)

	out = authorize(t, g, Details{Method: MethodUPI, UPIID: "fail@okbank"}, 500)
	assert.Equal(t, CodeUPIFailure, out.Errors[0].Code)
}

func TestAuthorizeGiftCard(t *testing.T) {
	g := NewGateway()

	// Default balance covers small amounts.
	out := authorize(t, g, Details{Method: MethodGiftCard, GiftCode: "GC-1"}, 999)
	assert.Equal(t, contract.StatusSuccess, out.Status)

	out = authorize(t, g, Details{Method: MethodGiftCard, GiftCode: "GC-1"}, 1001)
	require.Equal(t, contract.StatusFailed, out.Status)
	assert.Equal(t, CodeInsufficientBalance, out.Errors[0].Code)

	out = authorize(t, g, Details{Method: MethodGiftCard, GiftBalance: 5000}, 1001)
	assert.Equal(t, contract.StatusSuccess, out.Status)
}

func TestCaptureLifecycle(t *testing.T) {
	g := NewGateway()
	ctx := context.Background()

	auth := authorize(t, g, Details{Method: MethodCard, CardNumber: "4111111111111112"}, 998)
	require.Equal(t, contract.StatusSuccess, auth.Status)
	authID := auth.Payload["auth_id"].(string)

	cap := g.Capture(ctx, authID)
	require.Equal(t, contract.StatusSuccess, cap.Status)
	assert.Equal(t, "cap_"+cap.Payload["tx_id"].(string), cap.Payload["capture_id"])

	// Re-capture succeeds without a second capture id.
	again := g.Capture(ctx, authID)
	require.Equal(t, contract.StatusSuccess, again.Status)
	assert.Equal(t, "already captured", again.Payload["message"])

	missing := g.Capture(ctx, "auth_tx_nope")
	assert.Equal(t, CodeAuthNotFound, missing.Errors[0].Code)
}

func TestCapturePendingUPIAfterApproval(t *testing.T) {
	g := NewGateway()
	ctx := context.Background()

	auth := authorize(t, g, Details{Method: MethodUPI, UPIID: "user@okbank"}, 500)
	require.Equal(t, contract.StatusPending, auth.Status)

	cap := g.Capture(ctx, auth.Payload["auth_id"].(string))
	require.Equal(t, contract.StatusSuccess, cap.Status)
	assert.Equal(t, string(TxCaptured), cap.Payload["status"])
}

func TestRefund(t *testing.T) {
	g := NewGateway()
	ctx := context.Background()

	auth := authorize(t, g, Details{Method: MethodCard, CardNumber: "4111111111111112"}, 998)
	txID := auth.Payload["tx_id"].(string)
	g.Capture(ctx, auth.Payload["auth_id"].(string))

	out := g.Refund(ctx, txID, 0)
	require.Equal(t, contract.StatusSuccess, out.Status)
	assert.Equal(t, int64(998), out.Payload["amount"])

	out = g.Refund(ctx, "tx_missing", 0)
	assert.Equal(t, CodeTxNotFound, out.Errors[0].Code)
}

func TestStatusLookup(t *testing.T) {
	g := NewGateway()
	ctx := context.Background()

	auth := authorize(t, g, Details{Method: MethodPOS}, 250)
	txID := auth.Payload["tx_id"].(string)
	authID := auth.Payload["auth_id"].(string)

	byTx := g.Status(ctx, txID, "")
	require.Equal(t, contract.StatusSuccess, byTx.Status)
	assert.Equal(t, string(TxAuthorized), byTx.Payload["status"])

	byAuth := g.Status(ctx, "", authID)
	assert.Equal(t, txID, byAuth.Payload["tx_id"])

	missing := g.Status(ctx, "", "")
	assert.Equal(t, CodeTxNotFound, missing.Errors[0].Code)
}
