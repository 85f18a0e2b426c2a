// Package fulfillment turns paid orders into shipping or pickup records.
// Simple ETA heuristics and store capacity bookkeeping; assumed correct by
// the checkout saga, which only consumes its request/response contract.
package fulfillment

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matheusmosca/checkout-saga/internal/contract"
	"github.com/matheusmosca/checkout-saga/internal/inventory"
)

// Mode is how an order reaches the customer.
type Mode string

const (
	ModeShipToHome      Mode = "ship_to_home"
	ModeClickAndCollect Mode = "click_and_collect"
)

// Status of a fulfillment record.
type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusReadySoon Status = "READY_SOON"
	StatusCancelled Status = "CANCELLED"
)

// Error codes raised by the service.
const (
	CodeMissingFields         = "MISSING_FIELDS"
	CodeInventoryNotConfirmed = "INVENTORY_NOT_CONFIRMED"
	CodeUnsupportedMode       = "UNSUPPORTED_MODE"
	CodeNoStoreAvailable      = "NO_STORE_AVAILABLE"
	CodeNotFound              = "FULFILLMENT_NOT_FOUND"
)

const (
	deliverySlot = "10:00-14:00"
	pickupSlot   = "16:00-21:00"
)

// metroCities get the short delivery ETA.
var metroCities = map[string]struct{}{
	"bengaluru": {}, "bangalore": {}, "mumbai": {}, "delhi": {}, "kolkata": {},
}

// Address is a shipping destination.
type Address struct {
	Line1   string `json:"line1,omitempty"`
	City    string `json:"city,omitempty"`
	Pincode string `json:"pincode,omitempty"`
}

// Store is a pickup point with limited same-day capacity.
type Store struct {
	City     string
	Capacity int
}

// Record is one fulfillment.
type Record struct {
	FulfillmentID string           `json:"fulfillment_id"`
	OrderID       string           `json:"order_id"`
	Mode          Mode             `json:"mode"`
	Status        Status           `json:"status"`
	ETA           string           `json:"eta"`
	Slot          string           `json:"slot"`
	StoreID       string           `json:"store_id,omitempty"`
	Items         []inventory.Line `json:"items"`
	CreatedAt     time.Time        `json:"created_at"`
	CancelReason  string           `json:"cancel_reason,omitempty"`
}

// CreateRequest asks for a fulfillment of a paid order. InventoryConfirmed
// must be set by the caller once stock is reserved.
type CreateRequest struct {
	OrderID            string
	Mode               Mode
	Address            Address
	Items              []inventory.Line
	StoreID            string
	InventoryConfirmed bool
}

// Service owns fulfillment records and store capacities.
type Service struct {
	mu      sync.Mutex
	records map[string]*Record
	stores  map[string]*Store
	now     func() time.Time
}

func NewService(stores map[string]Store) *Service {
	s := &Service{
		records: make(map[string]*Record),
		stores:  make(map[string]*Store, len(stores)),
		now:     time.Now,
	}
	for id, st := range stores {
		cp := st
		s.stores[id] = &cp
	}
	return s
}

// Create schedules delivery or pickup for an order.
func (s *Service) Create(_ context.Context, req CreateRequest) contract.Outcome {
	if req.OrderID == "" || len(req.Items) == 0 {
		return contract.Failed(contract.ErrorDetail{
			Code:    CodeMissingFields,
			Message: "order id and items are required",
		})
	}
	if !req.InventoryConfirmed {
		return contract.Failed(contract.ErrorDetail{
			Code:    CodeInventoryNotConfirmed,
			Message: "inventory must be confirmed before fulfillment",
		}).WithActions(contract.NextAction{
			Type:    contract.ActionCallService,
			Message: "Reserve or confirm stock with the inventory ledger first.",
			Data:    map[string]any{"service": "inventory"},
		})
	}

	switch req.Mode {
	case ModeShipToHome:
		return s.createDelivery(req)
	case ModeClickAndCollect:
		return s.createPickup(req)
	}
	return contract.Failed(contract.ErrorDetail{
		Code:    CodeUnsupportedMode,
		Message: fmt.Sprintf("unsupported mode: %s", req.Mode),
	})
}

func (s *Service) createDelivery(req CreateRequest) contract.Outcome {
	etaDays := 4
	if _, metro := metroCities[strings.ToLower(req.Address.City)]; metro {
		etaDays = 2
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &Record{
		FulfillmentID: "ful_" + uuid.New().String()[:8],
		OrderID:       req.OrderID,
		Mode:          ModeShipToHome,
		Status:        StatusScheduled,
		ETA:           s.now().AddDate(0, 0, etaDays).Format("2006-01-02"),
		Slot:          deliverySlot,
		Items:         append([]inventory.Line(nil), req.Items...),
		CreatedAt:     s.now(),
	}
	s.records[rec.FulfillmentID] = rec
	return contract.Success(rec.payload()).WithActions(contract.NextAction{
		Type:    contract.ActionNotifyCustomer,
		Message: fmt.Sprintf("Your order will be delivered by %s between %s.", rec.ETA, rec.Slot),
	})
}

func (s *Service) createPickup(req CreateRequest) contract.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	storeID := req.StoreID
	if storeID == "" {
		storeID = s.pickStoreLocked()
	}
	store := s.stores[storeID]
	if store == nil || store.Capacity <= 0 {
		return contract.Failed(contract.ErrorDetail{
			Code:    CodeNoStoreAvailable,
			Message: "no store available for pickup",
		})
	}
	store.Capacity--

	rec := &Record{
		FulfillmentID: "ful_" + uuid.New().String()[:8],
		OrderID:       req.OrderID,
		Mode:          ModeClickAndCollect,
		Status:        StatusReadySoon,
		ETA:           s.now().AddDate(0, 0, 1).Format("2006-01-02"),
		Slot:          pickupSlot,
		StoreID:       storeID,
		Items:         append([]inventory.Line(nil), req.Items...),
		CreatedAt:     s.now(),
	}
	s.records[rec.FulfillmentID] = rec
	return contract.Success(rec.payload()).WithActions(contract.NextAction{
		Type:    contract.ActionNotifyCustomer,
		Message: fmt.Sprintf("Your order will be ready for pickup at %s by %s, between %s.", storeID, rec.ETA, rec.Slot),
	})
}

// UpdateStatus moves a fulfillment to a new status.
func (s *Service) UpdateStatus(_ context.Context, fulfillmentID string, status Status) contract.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[fulfillmentID]
	if !ok {
		return notFound(fulfillmentID)
	}
	rec.Status = status
	return contract.Success(rec.payload())
}

// Cancel aborts a fulfillment, restoring pickup capacity when applicable.
func (s *Service) Cancel(_ context.Context, fulfillmentID, reason string) contract.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[fulfillmentID]
	if !ok {
		return notFound(fulfillmentID)
	}
	if reason == "" {
		reason = "customer_request"
	}
	rec.Status = StatusCancelled
	rec.CancelReason = reason
	if rec.Mode == ModeClickAndCollect && rec.StoreID != "" {
		if store := s.stores[rec.StoreID]; store != nil {
			store.Capacity++
		}
	}
	return contract.Success(rec.payload()).WithActions(contract.NextAction{
		Type:    contract.ActionNotifyCustomer,
		Message: "Your delivery has been cancelled.",
	})
}

// Get fetches one fulfillment record.
func (s *Service) Get(_ context.Context, fulfillmentID string) contract.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[fulfillmentID]
	if !ok {
		return notFound(fulfillmentID)
	}
	return contract.Success(rec.payload())
}

// pickStoreLocked returns the first store with spare capacity, in id order so
// repeated runs pick the same one.
func (s *Service) pickStoreLocked() string {
	ids := make([]string, 0, len(s.stores))
	for id := range s.stores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if s.stores[id].Capacity > 0 {
			return id
		}
	}
	return ""
}

func (r *Record) payload() map[string]any {
	items := make([]map[string]any, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, map[string]any{"sku": it.SKU, "qty": it.Qty})
	}
	p := map[string]any{
		"fulfillment_id": r.FulfillmentID,
		"order_id":       r.OrderID,
		"mode":           string(r.Mode),
		"status":         string(r.Status),
		"eta":            r.ETA,
		"slot":           r.Slot,
		"items":          items,
	}
	if r.StoreID != "" {
		p["store_id"] = r.StoreID
	}
	return p
}

func notFound(id string) contract.Outcome {
	return contract.Failed(contract.ErrorDetail{
		Code:    CodeNotFound,
		Message: "fulfillment not found",
		Details: map[string]any{"fulfillment_id": id},
	})
}
