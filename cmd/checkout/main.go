// Command checkout runs one checkout saga from the command line and prints
// its result as JSON. Subcommands expose the stock snapshot, pending-payment
// resume and post-purchase flows against the same in-memory components.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matheusmosca/checkout-saga/internal/checkout"
	"github.com/matheusmosca/checkout-saga/internal/config"
	"github.com/matheusmosca/checkout-saga/internal/fulfillment"
	"github.com/matheusmosca/checkout-saga/internal/inventory"
	"github.com/matheusmosca/checkout-saga/internal/loyalty"
	"github.com/matheusmosca/checkout-saga/internal/payment"
	"github.com/matheusmosca/checkout-saga/internal/postpurchase"
	"github.com/matheusmosca/checkout-saga/internal/recommendation"
	"github.com/matheusmosca/checkout-saga/internal/telemetry"
	"github.com/matheusmosca/checkout-saga/pkg/logging"
)

type app struct {
	cfg          config.Config
	ledger       *inventory.Ledger
	gateway      *payment.Gateway
	fulfillment  *fulfillment.Service
	loyalty      *loyalty.Service
	recommender  *recommendation.Engine
	postpurchase *postpurchase.Service
	orchestrator *checkout.Orchestrator
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log := logging.New()
	a := &app{cfg: cfg}
	a.ledger = inventory.NewLedger(cfg.StockSeeds())
	a.gateway = payment.NewGateway()
	a.fulfillment = fulfillment.NewService(cfg.StoreSeeds())
	a.loyalty = loyalty.NewService(cfg.LoyaltySeeds())
	a.recommender = recommendation.NewEngine(cfg.CatalogSeeds(), a.ledger)
	a.postpurchase = postpurchase.NewService()
	a.orchestrator = checkout.New(a.ledger, a.gateway, a.fulfillment, a.loyalty, a.recommender,
		checkout.WithLogger(log),
		checkout.WithStepTimeout(cfg.StepTimeout()),
		checkout.WithHold(cfg.Hold()),
	)
	return a, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		configPath string
		customer   string
		skus       []string
		qtys       []int
		prices     []int64
		method     string
		card       string
		upi        string
		giftCode   string
		store      string
		mode       string
		city       string
	)

	root := &cobra.Command{
		Use:           "checkout",
		Short:         "Run a checkout saga against the in-memory services",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(skus) == 0 {
				return fmt.Errorf("at least one --sku is required")
			}
			if len(qtys) != len(skus) || len(prices) != len(skus) {
				return fmt.Errorf("each --sku needs a matching --qty and --price")
			}

			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			shutdown, err := telemetry.Setup(cmd.Context(), "checkout-saga")
			if err != nil {
				return err
			}
			defer shutdown(context.Background())

			cart := make([]checkout.CartItem, 0, len(skus))
			for i, sku := range skus {
				cart = append(cart, checkout.CartItem{SKU: sku, Qty: qtys[i], Price: prices[i]})
			}
			preferred := store
			if preferred == "" {
				preferred = a.cfg.PreferredStore
			}
			res := a.orchestrator.Checkout(cmd.Context(), checkout.Request{
				CustomerID: customer,
				Cart:       cart,
				Payment: payment.Details{
					Method:     payment.Method(method),
					CardNumber: card,
					UPIID:      upi,
					GiftCode:   giftCode,
				},
				Address:        fulfillment.Address{City: city},
				Mode:           fulfillment.Mode(mode),
				PreferredStore: preferred,
			})
			return printJSON(res)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&customer, "customer", "cust_001", "customer id")

	root.Flags().StringSliceVar(&skus, "sku", nil, "cart SKU (repeatable)")
	root.Flags().IntSliceVar(&qtys, "qty", nil, "quantity per --sku")
	root.Flags().Int64SliceVar(&prices, "price", nil, "unit price per --sku")
	root.Flags().StringVar(&method, "method", "card", "payment method: card, upi, gift_card, pos")
	root.Flags().StringVar(&card, "card", "4111111111111112", "card number for --method card")
	root.Flags().StringVar(&upi, "upi", "", "UPI id for --method upi")
	root.Flags().StringVar(&giftCode, "gift-code", "", "gift card code for --method gift_card")
	root.Flags().StringVar(&store, "store", "", "preferred store for stock and pickup")
	root.Flags().StringVar(&mode, "mode", "ship_to_home", "fulfillment mode: ship_to_home or click_and_collect")
	root.Flags().StringVar(&city, "city", "Bangalore", "delivery city")

	stock := &cobra.Command{
		Use:   "stock",
		Short: "Print the seeded stock snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			return printJSON(a.ledger.Snapshot())
		},
	}

	var (
		returnOrder  string
		returnSKU    string
		returnQty    int
		returnReason string
	)
	ret := &cobra.Command{
		Use:   "return",
		Short: "Open a return for a delivered order",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			out := a.postpurchase.InitiateReturn(cmd.Context(), postpurchase.ReturnRequest{
				OrderID: returnOrder,
				Items:   []inventory.Line{{SKU: returnSKU, Qty: returnQty}},
				Reason:  returnReason,
			})
			return printJSON(out)
		},
	}
	ret.Flags().StringVar(&returnOrder, "order", "", "order id to return against")
	ret.Flags().StringVar(&returnSKU, "sku", "", "SKU to return")
	ret.Flags().IntVar(&returnQty, "qty", 1, "quantity to return")
	ret.Flags().StringVar(&returnReason, "reason", "", "return reason")

	var (
		warrantySKU  string
		purchaseDate string
	)
	warranty := &cobra.Command{
		Use:   "warranty",
		Short: "Check warranty coverage for a purchased SKU",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			return printJSON(a.postpurchase.WarrantyCheck(cmd.Context(), warrantySKU, purchaseDate))
		},
	}
	warranty.Flags().StringVar(&warrantySKU, "sku", "", "SKU to check")
	warranty.Flags().StringVar(&purchaseDate, "purchased", "", "purchase date, YYYY-MM-DD")

	root.AddCommand(stock, ret, warranty)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
