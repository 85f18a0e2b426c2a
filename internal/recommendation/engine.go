// Package recommendation scores related SKUs for a cart and finds
// alternatives for an out-of-stock product. Pure catalog arithmetic with an
// optional read-only port into the inventory ledger; the checkout saga treats
// it as best-effort.
package recommendation

import (
	"context"
	"fmt"
	"sort"

	"github.com/matheusmosca/checkout-saga/internal/contract"
	"github.com/matheusmosca/checkout-saga/internal/inventory"
)

// Error codes raised by the engine.
const (
	CodeMissingSKU      = "MISSING_SKU"
	CodeSKUNotInCatalog = "SKU_NOT_IN_CATALOG"
)

// Product is one catalog entry.
type Product struct {
	Name     string
	Category string
	Price    int64
	Related  []string
}

// Catalog maps SKU to product data.
type Catalog map[string]Product

// StockChecker is the read-only slice of the inventory ledger the engine
// consults for availability. Satisfied by *inventory.Ledger.
type StockChecker interface {
	Check(lines []inventory.Line, preferredLocation string) []inventory.Availability
}

// CartRequest asks for recommendations alongside a cart.
type CartRequest struct {
	Cart               []inventory.Line
	PreferenceCategory string
}

// Engine scores candidates from explicit related-SKU links, boosted by the
// customer's preferred category.
type Engine struct {
	catalog Catalog
	stock   StockChecker
}

// NewEngine builds an engine over catalog. stock may be nil, in which case
// every candidate is assumed available.
func NewEngine(catalog Catalog, stock StockChecker) *Engine {
	return &Engine{catalog: catalog, stock: stock}
}

// ForCart recommends SKUs related to the cart contents. With no related
// candidates it falls back to the first catalog entries in SKU order, so
// repeated runs stay reproducible.
func (e *Engine) ForCart(_ context.Context, req CartRequest) contract.Outcome {
	scores := make(map[string]float64)
	for _, item := range req.Cart {
		product, ok := e.catalog[item.SKU]
		if !ok {
			continue
		}
		for _, rel := range product.Related {
			scores[rel]++
		}
	}
	if req.PreferenceCategory != "" {
		for sku := range scores {
			if e.catalog[sku].Category == req.PreferenceCategory {
				scores[sku] *= 1.2
			}
		}
	}

	candidates := make([]string, 0, len(scores))
	for sku := range scores {
		candidates = append(candidates, sku)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if scores[candidates[i]] != scores[candidates[j]] {
			return scores[candidates[i]] > scores[candidates[j]]
		}
		return candidates[i] < candidates[j]
	})

	results := make([]map[string]any, 0, len(candidates))
	for _, sku := range candidates {
		results = append(results, e.describe(sku, scores[sku]))
	}
	if len(results) == 0 {
		for _, sku := range e.fallbackSKUs(2) {
			results = append(results, e.describe(sku, 0.1))
		}
	}
	return contract.Success(map[string]any{"recommendations": results})
}

// Alternatives suggests replacements for one SKU: its explicit related links
// first, then everything else in the same category.
func (e *Engine) Alternatives(_ context.Context, sku string) contract.Outcome {
	if sku == "" {
		return contract.Failed(contract.ErrorDetail{
			Code:    CodeMissingSKU,
			Message: "sku is required",
		})
	}
	source, ok := e.catalog[sku]
	if !ok {
		return contract.Failed(contract.ErrorDetail{
			Code:    CodeSKUNotInCatalog,
			Message: fmt.Sprintf("%s not found in catalog", sku),
		})
	}

	var candidates []string
	candidates = append(candidates, source.Related...)
	sameCategory := make([]string, 0)
	for other, product := range e.catalog {
		if other != sku && product.Category == source.Category {
			sameCategory = append(sameCategory, other)
		}
	}
	sort.Strings(sameCategory)
	candidates = append(candidates, sameCategory...)

	seen := make(map[string]struct{}, len(candidates))
	alts := make([]map[string]any, 0, len(candidates))
	for _, alt := range candidates {
		if _, dup := seen[alt]; dup {
			continue
		}
		seen[alt] = struct{}{}
		if _, ok := e.catalog[alt]; !ok {
			continue
		}
		alts = append(alts, e.describe(alt, 0))
	}
	return contract.Success(map[string]any{"alternatives": alts})
}

func (e *Engine) describe(sku string, score float64) map[string]any {
	product := e.catalog[sku]
	out := map[string]any{
		"sku":       sku,
		"name":      product.Name,
		"price":     product.Price,
		"available": true,
	}
	if score > 0 {
		out["score"] = score
	}
	if e.stock != nil {
		avail := e.stock.Check([]inventory.Line{{SKU: sku, Qty: 1}}, "")
		out["available"] = avail[0].Available
		out["available_qty"] = avail[0].AvailableQty
	}
	return out
}

func (e *Engine) fallbackSKUs(n int) []string {
	skus := make([]string, 0, len(e.catalog))
	for sku := range e.catalog {
		skus = append(skus, sku)
	}
	sort.Strings(skus)
	if len(skus) > n {
		skus = skus[:n]
	}
	return skus
}
