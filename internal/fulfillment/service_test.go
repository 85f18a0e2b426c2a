package fulfillment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheusmosca/checkout-saga/internal/contract"
	"github.com/matheusmosca/checkout-saga/internal/inventory"
)

func newTestService() *Service {
	s := NewService(map[string]Store{
		"STORE_1": {City: "Bangalore", Capacity: 2},
		"STORE_2": {City: "Mumbai", Capacity: 1},
	})
	s.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }
	return s
}

func deliveryRequest() CreateRequest {
	return CreateRequest{
		OrderID:            "order_1",
		Mode:               ModeShipToHome,
		Address:            Address{City: "Bangalore"},
		Items:              []inventory.Line{{SKU: "HAT-BLK", Qty: 1}},
		InventoryConfirmed: true,
	}
}

func TestCreateDeliveryMetroETA(t *testing.T) {
	s := newTestService()

	out := s.Create(context.Background(), deliveryRequest())
	require.Equal(t, contract.StatusSuccess, out.Status)
	assert.Equal(t, "2025-03-12", out.Payload["eta"])
	assert.Equal(t, deliverySlot, out.Payload["slot"])
	assert.Equal(t, string(StatusScheduled), out.Payload["status"])
	require.NotEmpty(t, out.NextActions)
	assert.Equal(t, contract.ActionNotifyCustomer, out.NextActions[0].Type)
}

func TestCreateDeliveryNonMetroETA(t *testing.T) {
	s := newTestService()

	req := deliveryRequest()
	req.Address.City = "Mysore"
	out := s.Create(context.Background(), req)
	require.Equal(t, contract.StatusSuccess, out.Status)
	assert.Equal(t, "2025-03-14", out.Payload["eta"])
}

func TestCreateRequiresInventoryConfirmed(t *testing.T) {
	s := newTestService()

	req := deliveryRequest()
	req.InventoryConfirmed = false
	out := s.Create(context.Background(), req)
	require.Equal(t, contract.StatusFailed, out.Status)
	assert.Equal(t, CodeInventoryNotConfirmed, out.Errors[0].Code)
	require.NotEmpty(t, out.NextActions)
	assert.Equal(t, contract.ActionCallService, out.NextActions[0].Type)
}

func TestCreateValidation(t *testing.T) {
	s := newTestService()

	out := s.Create(context.Background(), CreateRequest{Mode: ModeShipToHome, InventoryConfirmed: true})
	assert.Equal(t, CodeMissingFields, out.Errors[0].Code)

	req := deliveryRequest()
	req.Mode = "drone"
	out = s.Create(context.Background(), req)
	assert.Equal(t, CodeUnsupportedMode, out.Errors[0].Code)
}

func TestCreatePickupConsumesCapacity(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	req := deliveryRequest()
	req.Mode = ModeClickAndCollect
	req.StoreID = "STORE_2"

	out := s.Create(ctx, req)
	require.Equal(t, contract.StatusSuccess, out.Status)
	assert.Equal(t, "STORE_2", out.Payload["store_id"])
	assert.Equal(t, string(StatusReadySoon), out.Payload["status"])
	assert.Equal(t, pickupSlot, out.Payload["slot"])

	// STORE_2 had capacity 1; the second pickup there fails.
	out = s.Create(ctx, req)
	require.Equal(t, contract.StatusFailed, out.Status)
	assert.Equal(t, CodeNoStoreAvailable, out.Errors[0].Code)
}

func TestCreatePickupPicksStoreDeterministically(t *testing.T) {
	s := newTestService()

	req := deliveryRequest()
	req.Mode = ModeClickAndCollect
	req.StoreID = ""

	out := s.Create(context.Background(), req)
	require.Equal(t, contract.StatusSuccess, out.Status)
	assert.Equal(t, "STORE_1", out.Payload["store_id"])
}

func TestCancelRestoresPickupCapacity(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	req := deliveryRequest()
	req.Mode = ModeClickAndCollect
	req.StoreID = "STORE_2"

	out := s.Create(ctx, req)
	require.Equal(t, contract.StatusSuccess, out.Status)
	fulID := out.Payload["fulfillment_id"].(string)

	cancel := s.Cancel(ctx, fulID, "")
	require.Equal(t, contract.StatusSuccess, cancel.Status)
	assert.Equal(t, string(StatusCancelled), cancel.Payload["status"])

	// Capacity came back, so the store accepts a new pickup.
	out = s.Create(ctx, req)
	assert.Equal(t, contract.StatusSuccess, out.Status)
}

func TestUpdateStatusAndGet(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	out := s.Create(ctx, deliveryRequest())
	fulID := out.Payload["fulfillment_id"].(string)

	updated := s.UpdateStatus(ctx, fulID, StatusReadySoon)
	require.Equal(t, contract.StatusSuccess, updated.Status)

	got := s.Get(ctx, fulID)
	require.Equal(t, contract.StatusSuccess, got.Status)
	assert.Equal(t, string(StatusReadySoon), got.Payload["status"])

	missing := s.Get(ctx, "ful_missing")
	assert.Equal(t, CodeNotFound, missing.Errors[0].Code)
}
