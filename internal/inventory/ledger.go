// Package inventory implements the reservation ledger: authoritative stock
// bookkeeping for concurrent checkouts. It is the only component in the system
// holding shared mutable state, so reserve and release run inside a single
// exclusive critical section and re-validate availability there rather than
// trusting an earlier check.
package inventory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/matheusmosca/checkout-saga/internal/contract"
)

// FallbackLocation receives released quantities: a reservation does not keep
// the per-location breakdown of what it consumed, so restored stock is
// credited to one designated location.
const FallbackLocation = "WAREHOUSE"

// Line is one (sku, quantity) pair of a reservation or availability check.
type Line struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

// StockEntry is the per-SKU record. Invariant: Qty equals the sum of
// Locations at all times, and every quantity stays non-negative.
type StockEntry struct {
	Qty       int            `json:"qty"`
	Locations map[string]int `json:"locations"`
}

// Availability is the per-item answer to a Check. LocationQty is meaningful
// only when a preferred location was given and the SKU stocks it.
type Availability struct {
	SKU          string `json:"sku"`
	Available    bool   `json:"available"`
	AvailableQty int    `json:"available_qty"`
	LocationQty  int    `json:"location_qty,omitempty"`
}

// Reservation is a temporary hold of stock tied to one order. It is consumed
// implicitly by a successful checkout (never released) or destroyed by a
// Release, which restores the quantities.
type Reservation struct {
	ID        string        `json:"reservation_id"`
	OrderID   string        `json:"order_id"`
	Lines     []Line        `json:"lines"`
	Hold      time.Duration `json:"-"`
	CreatedAt time.Time     `json:"created_at"`
}

// Ledger owns the stock map and the reservations held against it. Zero-value
// is not usable; construct with NewLedger so multiple ledgers can coexist in
// tests instead of sharing ambient global state.
type Ledger struct {
	mu           sync.RWMutex
	stock        map[string]*StockEntry
	reservations map[string]*Reservation
	byOrder      map[string]string
	now          func() time.Time
}

// NewLedger seeds a ledger from per-SKU entries. Entries without a location
// breakdown get their whole quantity at the fallback location so the
// qty == sum(locations) invariant holds from the start.
func NewLedger(seed map[string]StockEntry) *Ledger {
	l := &Ledger{
		stock:        make(map[string]*StockEntry, len(seed)),
		reservations: make(map[string]*Reservation),
		byOrder:      make(map[string]string),
		now:          time.Now,
	}
	for sku, e := range seed {
		entry := &StockEntry{Qty: e.Qty, Locations: make(map[string]int, len(e.Locations))}
		for loc, qty := range e.Locations {
			entry.Locations[loc] = qty
		}
		if len(entry.Locations) == 0 && entry.Qty > 0 {
			entry.Locations[FallbackLocation] = entry.Qty
		}
		l.stock[sku] = entry
	}
	return l
}

// Check reports per-item availability. Pure read over a consistent snapshot;
// an unknown SKU is reported unavailable with quantity 0, never as an error.
// When preferredLocation is set, an item also counts as available if that
// location alone can satisfy it.
func (l *Ledger) Check(lines []Line, preferredLocation string) []Availability {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Availability, 0, len(lines))
	for _, ln := range lines {
		entry, ok := l.stock[ln.SKU]
		if !ok {
			out = append(out, Availability{SKU: ln.SKU})
			continue
		}
		av := Availability{
			SKU:          ln.SKU,
			Available:    entry.Qty >= ln.Qty,
			AvailableQty: entry.Qty,
		}
		if preferredLocation != "" {
			if locQty, ok := entry.Locations[preferredLocation]; ok {
				av.LocationQty = locQty
				av.Available = locQty >= ln.Qty || entry.Qty >= ln.Qty
			}
		}
		out = append(out, av)
	}
	return out
}

// Reserve atomically holds the requested quantities for orderID. Validation of
// every line happens inside the critical section; if any line is short the
// whole call fails with INSUFFICIENT_STOCK and nothing is mutated. An order
// may hold at most one active reservation: a replay fails with
// DUPLICATE_RESERVATION instead of double-booking.
func (l *Ledger) Reserve(orderID string, lines []Line, hold time.Duration) (*Reservation, error) {
	if orderID == "" || len(lines) == 0 {
		return nil, &contract.Error{
			Code:    contract.CodeMissingFields,
			Message: "order id and items are required",
		}
	}
	for _, ln := range lines {
		if ln.SKU == "" || ln.Qty <= 0 {
			return nil, &contract.Error{
				Code:    contract.CodeMissingFields,
				Message: "every item needs a sku and a positive quantity",
				Details: map[string]any{"sku": ln.SKU, "qty": ln.Qty},
			}
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if rid, ok := l.byOrder[orderID]; ok {
		return nil, &contract.Error{
			Code:    contract.CodeDuplicateReservation,
			Message: "order already holds an active reservation",
			Details: map[string]any{"order_id": orderID, "reservation_id": rid},
		}
	}
	for _, ln := range lines {
		entry, ok := l.stock[ln.SKU]
		if !ok || entry.Qty < ln.Qty {
			return nil, &contract.Error{
				Code:    contract.CodeInsufficientStock,
				Message: fmt.Sprintf("sku %s has insufficient stock", ln.SKU),
				Details: map[string]any{"sku": ln.SKU},
			}
		}
	}

	created := l.now()
	res := &Reservation{
		ID:        fmt.Sprintf("res_%s_%d", orderID, created.UnixNano()),
		OrderID:   orderID,
		Lines:     append([]Line(nil), lines...),
		Hold:      hold,
		CreatedAt: created,
	}
	for _, ln := range lines {
		entry := l.stock[ln.SKU]
		entry.Qty -= ln.Qty
		deplete(entry.Locations, ln.Qty)
	}
	l.reservations[res.ID] = res
	l.byOrder[orderID] = res.ID
	return res, nil
}

// Release atomically restores the quantities held by a reservation and
// removes the record. One-shot by design: a second release of the same id
// fails with INVALID_RESERVATION rather than crediting stock twice.
func (l *Ledger) Release(reservationID string) (*Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, ok := l.reservations[reservationID]
	if !ok {
		return nil, &contract.Error{
			Code:    contract.CodeInvalidReservation,
			Message: "reservation missing or already released",
			Details: map[string]any{"reservation_id": reservationID},
		}
	}
	delete(l.reservations, reservationID)
	delete(l.byOrder, res.OrderID)

	for _, ln := range res.Lines {
		entry, ok := l.stock[ln.SKU]
		if !ok {
			entry = &StockEntry{Locations: make(map[string]int)}
			l.stock[ln.SKU] = entry
		}
		entry.Qty += ln.Qty
		entry.Locations[FallbackLocation] += ln.Qty
	}
	return res, nil
}

// Entry returns a copy of one SKU's stock record.
func (l *Ledger) Entry(sku string) (StockEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.stock[sku]
	if !ok {
		return StockEntry{}, false
	}
	return copyEntry(entry), true
}

// Snapshot returns a deep copy of the whole stock map.
func (l *Ledger) Snapshot() map[string]StockEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]StockEntry, len(l.stock))
	for sku, entry := range l.stock {
		out[sku] = copyEntry(entry)
	}
	return out
}

// ActiveReservations lists the reservations currently held.
func (l *Ledger) ActiveReservations() []Reservation {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Reservation, 0, len(l.reservations))
	for _, res := range l.reservations {
		cp := *res
		cp.Lines = append([]Line(nil), res.Lines...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// deplete consumes qty from the location buckets in lexicographic order so
// repeated runs against identical state drain the same way.
func deplete(locations map[string]int, qty int) {
	keys := make([]string, 0, len(locations))
	for k := range locations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if qty == 0 {
			return
		}
		take := locations[k]
		if take > qty {
			take = qty
		}
		locations[k] -= take
		qty -= take
	}
}

func copyEntry(entry *StockEntry) StockEntry {
	cp := StockEntry{Qty: entry.Qty, Locations: make(map[string]int, len(entry.Locations))}
	for loc, qty := range entry.Locations {
		cp.Locations[loc] = qty
	}
	return cp
}
