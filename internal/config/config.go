// Package config loads the runtime configuration for the checkout saga from
// a YAML file, with environment variable overrides for the few knobs that
// change between runs. Seed data defaults to a small demo catalog.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/matheusmosca/checkout-saga/internal/fulfillment"
	"github.com/matheusmosca/checkout-saga/internal/inventory"
	"github.com/matheusmosca/checkout-saga/internal/recommendation"
)

// Config is the YAML shape of the configuration file.
type Config struct {
	HoldMinutes    int    `yaml:"hold_minutes"`
	StepTimeoutMS  int    `yaml:"step_timeout_ms"`
	PreferredStore string `yaml:"preferred_store"`

	Stock         map[string]StockSeed   `yaml:"stock"`
	Catalog       map[string]ProductSeed `yaml:"catalog"`
	Stores        map[string]StoreSeed   `yaml:"stores"`
	LoyaltyPoints map[string]int64       `yaml:"loyalty_points"`
}

// StockSeed seeds one SKU of the inventory ledger.
type StockSeed struct {
	Qty       int            `yaml:"qty"`
	Locations map[string]int `yaml:"locations"`
}

// ProductSeed seeds one catalog product for the recommendation engine.
type ProductSeed struct {
	Name     string   `yaml:"name"`
	Category string   `yaml:"category"`
	Price    int64    `yaml:"price"`
	Related  []string `yaml:"related"`
}

// StoreSeed seeds one pickup store.
type StoreSeed struct {
	City     string `yaml:"city"`
	Capacity int    `yaml:"capacity"`
}

// Default returns the built-in demo configuration, used when no file is
// given.
func Default() Config {
	return Config{
		HoldMinutes:    30,
		StepTimeoutMS:  2000,
		PreferredStore: "STORE_1",
		Stock: map[string]StockSeed{
			"TSHIRT-RED-XL": {Qty: 10, Locations: map[string]int{"STORE_1": 5, "WAREHOUSE": 5}},
			"TSHIRT-BLUE-M": {Qty: 0, Locations: map[string]int{}},
			"JEANS-BLK-32":  {Qty: 6, Locations: map[string]int{"STORE_2": 6}},
			"HAT-BLK":       {Qty: 15, Locations: map[string]int{"WAREHOUSE": 15}},
		},
		Catalog: map[string]ProductSeed{
			"TSHIRT-RED-XL": {Name: "Red T-Shirt XL", Category: "tops", Price: 499, Related: []string{"HAT-BLK", "TSHIRT-BLUE-M"}},
			"TSHIRT-BLUE-M": {Name: "Blue T-Shirt M", Category: "tops", Price: 499, Related: []string{"TSHIRT-RED-XL"}},
			"JEANS-BLK-32":  {Name: "Black Jeans 32", Category: "bottoms", Price: 1299, Related: []string{"BELT-BRN"}},
			"HAT-BLK":       {Name: "Black Hat", Category: "accessories", Price: 299, Related: []string{"TSHIRT-RED-XL"}},
			"BELT-BRN":      {Name: "Brown Belt", Category: "accessories", Price: 399, Related: []string{"JEANS-BLK-32"}},
		},
		Stores: map[string]StoreSeed{
			"STORE_1":   {City: "Bangalore", Capacity: 20},
			"STORE_2":   {City: "Mumbai", Capacity: 10},
			"WAREHOUSE": {City: "Hosur", Capacity: 100},
		},
		LoyaltyPoints: map[string]int64{
			"cust_001": 1200,
			"cust_002": 50,
		},
	}
}

// Load reads the configuration from path, or the defaults when path is
// empty, and then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config: %w", err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CHECKOUT_HOLD_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.HoldMinutes = n
		}
	}
	if v := os.Getenv("CHECKOUT_STEP_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.StepTimeoutMS = n
		}
	}
	if v := os.Getenv("CHECKOUT_PREFERRED_STORE"); v != "" {
		c.PreferredStore = v
	}
}

// Hold is the reservation hold as a duration.
func (c Config) Hold() time.Duration {
	return time.Duration(c.HoldMinutes) * time.Minute
}

// StepTimeout is the per-step guard as a duration; zero disables it.
func (c Config) StepTimeout() time.Duration {
	return time.Duration(c.StepTimeoutMS) * time.Millisecond
}

// StockSeeds converts the stock section into ledger seed entries.
func (c Config) StockSeeds() map[string]inventory.StockEntry {
	seed := make(map[string]inventory.StockEntry, len(c.Stock))
	for sku, s := range c.Stock {
		locs := make(map[string]int, len(s.Locations))
		for loc, qty := range s.Locations {
			locs[loc] = qty
		}
		seed[sku] = inventory.StockEntry{Qty: s.Qty, Locations: locs}
	}
	return seed
}

// CatalogSeeds converts the catalog section for the recommendation engine.
func (c Config) CatalogSeeds() recommendation.Catalog {
	catalog := make(recommendation.Catalog, len(c.Catalog))
	for sku, p := range c.Catalog {
		catalog[sku] = recommendation.Product{
			Name:     p.Name,
			Category: p.Category,
			Price:    p.Price,
			Related:  append([]string(nil), p.Related...),
		}
	}
	return catalog
}

// StoreSeeds converts the stores section for the fulfillment service.
func (c Config) StoreSeeds() map[string]fulfillment.Store {
	stores := make(map[string]fulfillment.Store, len(c.Stores))
	for id, s := range c.Stores {
		stores[id] = fulfillment.Store{City: s.City, Capacity: s.Capacity}
	}
	return stores
}

// LoyaltySeeds copies the initial points balances.
func (c Config) LoyaltySeeds() map[string]int64 {
	balances := make(map[string]int64, len(c.LoyaltyPoints))
	for id, pts := range c.LoyaltyPoints {
		balances[id] = pts
	}
	return balances
}
