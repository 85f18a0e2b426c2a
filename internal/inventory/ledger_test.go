package inventory

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheusmosca/checkout-saga/internal/contract"
)

func seedLedger() *Ledger {
	return NewLedger(map[string]StockEntry{
		"TSHIRT-RED-XL": {Qty: 10, Locations: map[string]int{"STORE_1": 5, "WAREHOUSE": 5}},
		"TSHIRT-BLUE-M": {Qty: 0},
		"JEANS-BLK-32":  {Qty: 6, Locations: map[string]int{"STORE_2": 6}},
		"HAT-BLK":       {Qty: 15},
	})
}

func TestNewLedgerFallbackLocation(t *testing.T) {
	l := seedLedger()

	entry, ok := l.Entry("HAT-BLK")
	require.True(t, ok)
	assert.Equal(t, 15, entry.Qty)
	assert.Equal(t, map[string]int{FallbackLocation: 15}, entry.Locations)
}

func TestCheck(t *testing.T) {
	l := seedLedger()

	avail := l.Check([]Line{
		{SKU: "TSHIRT-RED-XL", Qty: 3},
		{SKU: "TSHIRT-BLUE-M", Qty: 1},
		{SKU: "NO-SUCH-SKU", Qty: 1},
	}, "")

	require.Len(t, avail, 3)
	assert.True(t, avail[0].Available)
	assert.Equal(t, 10, avail[0].AvailableQty)
	assert.False(t, avail[1].Available)
	assert.False(t, avail[2].Available)
	assert.Equal(t, 0, avail[2].AvailableQty)
}

func TestCheckPreferredLocation(t *testing.T) {
	l := seedLedger()

	// 8 > the 5 at STORE_1, but total stock still covers it.
	avail := l.Check([]Line{{SKU: "TSHIRT-RED-XL", Qty: 8}}, "STORE_1")
	require.Len(t, avail, 1)
	assert.True(t, avail[0].Available)
	assert.Equal(t, 5, avail[0].LocationQty)

	// Preferred location that does not stock the SKU reports no breakdown.
	avail = l.Check([]Line{{SKU: "JEANS-BLK-32", Qty: 2}}, "STORE_1")
	assert.True(t, avail[0].Available)
	assert.Zero(t, avail[0].LocationQty)
}

func TestReserveAllOrNothing(t *testing.T) {
	l := seedLedger()

	_, err := l.Reserve("order_1", []Line{
		{SKU: "TSHIRT-RED-XL", Qty: 2},
		{SKU: "TSHIRT-BLUE-M", Qty: 1},
	}, time.Minute)
	require.Error(t, err)

	var cerr *contract.Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, contract.CodeInsufficientStock, cerr.Code)

	// First line untouched even though it alone was satisfiable.
	entry, _ := l.Entry("TSHIRT-RED-XL")
	assert.Equal(t, 10, entry.Qty)
	assert.Empty(t, l.ActiveReservations())
}

func TestReserveDepletesLocationsInOrder(t *testing.T) {
	l := seedLedger()

	res, err := l.Reserve("order_1", []Line{{SKU: "TSHIRT-RED-XL", Qty: 7}}, time.Minute)
	require.NoError(t, err)
	assert.Contains(t, res.ID, "res_order_1_")

	entry, _ := l.Entry("TSHIRT-RED-XL")
	assert.Equal(t, 3, entry.Qty)
	// STORE_1 sorts before WAREHOUSE, so it drains first.
	assert.Equal(t, 0, entry.Locations["STORE_1"])
	assert.Equal(t, 3, entry.Locations["WAREHOUSE"])
}

func TestReserveValidation(t *testing.T) {
	l := seedLedger()

	_, err := l.Reserve("", []Line{{SKU: "HAT-BLK", Qty: 1}}, time.Minute)
	var cerr *contract.Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, contract.CodeMissingFields, cerr.Code)

	_, err = l.Reserve("order_1", nil, time.Minute)
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, contract.CodeMissingFields, cerr.Code)

	_, err = l.Reserve("order_1", []Line{{SKU: "HAT-BLK", Qty: 0}}, time.Minute)
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, contract.CodeMissingFields, cerr.Code)
}

func TestDuplicateReservation(t *testing.T) {
	l := seedLedger()

	first, err := l.Reserve("order_1", []Line{{SKU: "HAT-BLK", Qty: 1}}, time.Minute)
	require.NoError(t, err)

	_, err = l.Reserve("order_1", []Line{{SKU: "HAT-BLK", Qty: 1}}, time.Minute)
	var cerr *contract.Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, contract.CodeDuplicateReservation, cerr.Code)
	assert.Equal(t, first.ID, cerr.Details["reservation_id"])

	// After a release the order may reserve again.
	_, err = l.Release(first.ID)
	require.NoError(t, err)
	_, err = l.Reserve("order_1", []Line{{SKU: "HAT-BLK", Qty: 1}}, time.Minute)
	assert.NoError(t, err)
}

func TestReleaseOneShot(t *testing.T) {
	l := seedLedger()

	res, err := l.Reserve("order_1", []Line{{SKU: "TSHIRT-RED-XL", Qty: 4}}, time.Minute)
	require.NoError(t, err)

	released, err := l.Release(res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.ID, released.ID)

	// Released stock is credited to the fallback location, not where it
	// came from.
	entry, _ := l.Entry("TSHIRT-RED-XL")
	assert.Equal(t, 10, entry.Qty)
	assert.Equal(t, 1, entry.Locations["STORE_1"])
	assert.Equal(t, 9, entry.Locations["WAREHOUSE"])

	_, err = l.Release(res.ID)
	var cerr *contract.Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, contract.CodeInvalidReservation, cerr.Code)

	// Second release credited nothing.
	entry, _ = l.Entry("TSHIRT-RED-XL")
	assert.Equal(t, 10, entry.Qty)
}

func TestReleaseUnknownID(t *testing.T) {
	l := seedLedger()

	_, err := l.Release("res_missing")
	var cerr *contract.Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, contract.CodeInvalidReservation, cerr.Code)
}

func TestConcurrentReserveNeverOversells(t *testing.T) {
	const (
		stock   = 60
		workers = 100
	)
	l := NewLedger(map[string]StockEntry{
		"HOT-ITEM": {Qty: stock},
	})

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.Reserve(fmt.Sprintf("order_%03d", i), []Line{{SKU: "HOT-ITEM", Qty: 1}}, time.Minute)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var ok, short int
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		var cerr *contract.Error
		require.True(t, errors.As(err, &cerr))
		assert.Equal(t, contract.CodeInsufficientStock, cerr.Code)
		short++
	}
	assert.Equal(t, stock, ok)
	assert.Equal(t, workers-stock, short)

	entry, _ := l.Entry("HOT-ITEM")
	assert.Equal(t, 0, entry.Qty)
	assert.Len(t, l.ActiveReservations(), stock)
}

func TestQuantityConservation(t *testing.T) {
	l := seedLedger()
	total := func() int {
		n := 0
		for _, e := range l.Snapshot() {
			n += e.Qty
		}
		for _, r := range l.ActiveReservations() {
			for _, ln := range r.Lines {
				n += ln.Qty
			}
		}
		return n
	}
	before := total()

	res, err := l.Reserve("order_1", []Line{{SKU: "TSHIRT-RED-XL", Qty: 3}, {SKU: "JEANS-BLK-32", Qty: 2}}, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, before, total())

	_, err = l.Release(res.ID)
	require.NoError(t, err)
	assert.Equal(t, before, total())
}

func TestSnapshotIsACopy(t *testing.T) {
	l := seedLedger()

	snap := l.Snapshot()
	snap["TSHIRT-RED-XL"].Locations["STORE_1"] = 999

	entry, _ := l.Entry("TSHIRT-RED-XL")
	assert.Equal(t, 5, entry.Locations["STORE_1"])
}
