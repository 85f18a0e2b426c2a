// Package checkout drives one purchase end-to-end as an orchestrated saga:
// a fixed pipeline of steps against the inventory ledger and the payment,
// fulfillment, loyalty and recommendation collaborators, with explicit
// compensation when a step fails after stock has been held. Every call
// produces exactly one terminal result; nothing here panics or retries.
package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/matheusmosca/checkout-saga/internal/contract"
	"github.com/matheusmosca/checkout-saga/internal/fulfillment"
	"github.com/matheusmosca/checkout-saga/internal/inventory"
	"github.com/matheusmosca/checkout-saga/internal/loyalty"
	"github.com/matheusmosca/checkout-saga/internal/payment"
	"github.com/matheusmosca/checkout-saga/internal/recommendation"
)

const defaultHold = 30 * time.Minute

// Orchestrator sequences checkout sagas. It owns no cross-call state: each
// Checkout call builds its own saga state and throws it away, so a single
// orchestrator serves any number of concurrent checkouts without locking.
type Orchestrator struct {
	inventory   InventoryService
	payment     PaymentGateway
	fulfillment FulfillmentService
	loyalty     LoyaltyService
	recommender Recommender

	log         *slog.Logger
	tracer      trace.Tracer
	stepTimeout time.Duration
	holdFor     time.Duration

	checkouts     metric.Int64Counter
	duration      metric.Float64Histogram
	compensations metric.Int64Counter
}

// Option tweaks an Orchestrator.
type Option func(*Orchestrator)

// WithLogger replaces the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithStepTimeout bounds each collaborator call. A timed-out step counts as
// that step failing, including the wired compensation.
func WithStepTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.stepTimeout = d }
}

// WithHold sets how long reservations are held.
func WithHold(d time.Duration) Option {
	return func(o *Orchestrator) { o.holdFor = d }
}

// New wires an orchestrator over its collaborators.
func New(inv InventoryService, pay PaymentGateway, ful FulfillmentService, loy LoyaltyService, rec Recommender, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		inventory:   inv,
		payment:     pay,
		fulfillment: ful,
		loyalty:     loy,
		recommender: rec,
		log:         slog.Default(),
		tracer:      otel.Tracer("checkout-saga"),
		holdFor:     defaultHold,
	}
	for _, opt := range opts {
		opt(o)
	}

	meter := otel.Meter("checkout-saga")
	o.checkouts, _ = meter.Int64Counter("checkout.total",
		metric.WithDescription("Terminal checkout results by status and reason."))
	o.duration, _ = meter.Float64Histogram("checkout.duration_ms",
		metric.WithDescription("End-to-end checkout latency in milliseconds."))
	o.compensations, _ = meter.Int64Counter("checkout.compensations.total",
		metric.WithDescription("Compensating actions executed."))
	return o
}

// sagaState lives for exactly one call.
type sagaState struct {
	sessionID  string
	orderID    string
	customerID string

	steps         []StepRecord
	compensations []compensation
}

type compensation struct {
	name string
	run  func() error
}

// Checkout runs the full saga for one cart and returns its single terminal
// result: success, pending (payment awaiting out-of-band approval, with the
// reservation still held) or failed with a coarse reason.
func (o *Orchestrator) Checkout(ctx context.Context, req Request) Result {
	start := time.Now()
	order := uuid.New()
	st := &sagaState{
		sessionID:  uuid.NewString(),
		orderID:    fmt.Sprintf("order_%x", order[:4]),
		customerID: req.CustomerID,
	}

	ctx, span := o.tracer.Start(ctx, "checkout")
	defer span.End()
	span.SetAttributes(
		attribute.String("order_id", st.orderID),
		attribute.String("session_id", st.sessionID),
		attribute.String("customer_id", req.CustomerID),
	)

	res := o.run(ctx, st, req)
	res.OrderID = st.orderID
	res.SessionID = st.sessionID
	res.Steps = st.steps
	o.finish(ctx, span, res, start)
	return res
}

// Resume re-drives capture, fulfillment and loyalty issue for a checkout that
// previously halted in pending state. The reservation taken by the original
// call is still held and is consumed by a successful resume.
func (o *Orchestrator) Resume(ctx context.Context, req ResumeRequest) Result {
	start := time.Now()
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	st := &sagaState{sessionID: sessionID, orderID: req.OrderID, customerID: req.CustomerID}

	ctx, span := o.tracer.Start(ctx, "checkout_resume")
	defer span.End()
	span.SetAttributes(
		attribute.String("order_id", st.orderID),
		attribute.String("session_id", st.sessionID),
	)

	var res Result
	if req.OrderID == "" || req.AuthID == "" {
		res = o.fail(ReasonCaptureFailed, contract.Failed(contract.ErrorDetail{
			Code:    contract.CodeMissingFields,
			Message: "order id and auth id are required to resume",
		}))
	} else {
		checkoutReq := Request{
			CustomerID:     req.CustomerID,
			Cart:           req.Cart,
			Address:        req.Address,
			Mode:           req.Mode,
			PreferredStore: req.PreferredStore,
		}
		res = o.settle(ctx, st, checkoutReq, req.AuthID)
	}
	res.OrderID = st.orderID
	res.SessionID = st.sessionID
	res.Steps = st.steps
	o.finish(ctx, span, res, start)
	return res
}

// run executes the pipeline up to and including payment authorization, then
// hands off to settle.
func (o *Orchestrator) run(ctx context.Context, st *sagaState, req Request) Result {
	lines := req.lines()

	// Availability check. Advisory only: stock seen here can be taken by a
	// concurrent checkout before this saga's own reserve, which then fails
	// normally. The window is accepted, not a bug.
	check := o.runStep(ctx, st, StepCheckInventory, map[string]any{
		"items":              lines,
		"preferred_location": req.PreferredStore,
	}, false, func(context.Context) contract.Outcome {
		return checkOutcome(o.inventory.Check(lines, req.PreferredStore))
	})
	if check.Status != contract.StatusSuccess {
		res := o.fail(ReasonInventoryUnavailable, check)
		res.Inventory = check.Payload
		return res
	}

	var res Result
	res.Inventory = check.Payload

	// Both of these are best-effort: their failures are logged in the saga
	// record and otherwise ignored.
	rec := o.runStep(ctx, st, StepRecommend, map[string]any{"cart": lines}, true,
		func(ctx context.Context) contract.Outcome {
			return o.recommender.ForCart(ctx, recommendation.CartRequest{Cart: lines})
		})
	if rec.Status == contract.StatusSuccess {
		res.Recommendations = rec.Payload
	}
	calc := o.runStep(ctx, st, StepLoyaltyCalculate, map[string]any{"order_amount": req.amount()}, true,
		func(ctx context.Context) contract.Outcome {
			return o.loyalty.Calculate(ctx, loyalty.CalculateRequest{
				CustomerID:  req.CustomerID,
				OrderAmount: req.amount(),
			})
		})
	if calc.Status == contract.StatusSuccess {
		res.Loyalty = calc.Payload
	}

	var reservation *inventory.Reservation
	reserve := o.runStep(ctx, st, StepReserve, map[string]any{
		"order_id": st.orderID,
		"items":    lines,
	}, false, func(context.Context) contract.Outcome {
		r, err := o.inventory.Reserve(st.orderID, lines, o.holdFor)
		if err != nil {
			return contract.Failed(contract.AsDetail(err))
		}
		reservation = r
		return contract.Success(map[string]any{
			"reservation_id": r.ID,
			"reserved_items": lines,
			"hold_minutes":   int(r.Hold.Minutes()),
		})
	})
	if reserve.Status != contract.StatusSuccess {
		failed := o.fail(ReasonReserveFailed, reserve)
		failed.Inventory = res.Inventory
		return failed
	}
	st.compensations = append(st.compensations, compensation{
		name: "release_reservation",
		run: func() error {
			_, err := o.inventory.Release(reservation.ID)
			return err
		},
	})

	auth := o.runStep(ctx, st, StepAuthorizePayment, map[string]any{
		"amount": req.amount(),
		"method": string(req.Payment.Method),
	}, true, func(ctx context.Context) contract.Outcome {
		return o.payment.Authorize(ctx, payment.AuthorizeRequest{
			Amount:     req.amount(),
			CustomerID: req.CustomerID,
			Payment:    req.Payment,
		})
	})
	switch auth.Status {
	case contract.StatusFailed:
		// The single wired compensation: nothing irreversible has happened
		// yet, so the reservation goes back.
		o.compensate(ctx, st)
		failed := o.fail(ReasonPaymentFailed, auth)
		failed.Inventory = res.Inventory
		return failed
	case contract.StatusPending:
		// Halt with the reservation held; the caller re-drives capture via
		// Resume once the customer approves out-of-band.
		res.Status = contract.StatusPending
		res.Payment = auth.Payload
		res.NextActions = auth.NextActions
		res.ReservationID = reservation.ID
		return res
	}

	authID, _ := auth.Payload["auth_id"].(string)
	settled := o.settle(ctx, st, req, authID)
	settled.Inventory = res.Inventory
	settled.Recommendations = res.Recommendations
	if settled.Loyalty == nil {
		settled.Loyalty = res.Loyalty
	}
	return settled
}

// settle captures the payment and completes fulfillment and loyalty issue.
// From capture onward money has moved, so a failure keeps the reservation
// held for manual intervention instead of compensating.
func (o *Orchestrator) settle(ctx context.Context, st *sagaState, req Request, authID string) Result {
	var res Result

	capture := o.runStep(ctx, st, StepCapturePayment, map[string]any{"auth_id": authID}, true,
		func(ctx context.Context) contract.Outcome {
			return o.payment.Capture(ctx, authID)
		})
	if capture.Status != contract.StatusSuccess {
		o.log.Warn("capture failed, reservation retained for manual intervention",
			"order_id", st.orderID, "auth_id", authID)
		return o.fail(ReasonCaptureFailed, capture)
	}
	res.Payment = capture.Payload

	mode := req.Mode
	if mode == "" {
		mode = fulfillment.ModeShipToHome
	}
	ful := o.runStep(ctx, st, StepCreateFulfillment, map[string]any{
		"order_id": st.orderID,
		"mode":     string(mode),
	}, true, func(ctx context.Context) contract.Outcome {
		return o.fulfillment.Create(ctx, fulfillment.CreateRequest{
			OrderID:            st.orderID,
			Mode:               mode,
			Address:            req.Address,
			Items:              req.lines(),
			StoreID:            req.PreferredStore,
			InventoryConfirmed: true,
		})
	})
	if ful.Status != contract.StatusSuccess {
		o.log.Warn("fulfillment failed after capture, reservation retained for manual intervention",
			"order_id", st.orderID)
		failed := o.fail(ReasonFulfillmentFailed, ful)
		failed.Payment = res.Payment
		return failed
	}
	res.Fulfillment = ful.Payload

	issue := o.runStep(ctx, st, StepIssueLoyalty, map[string]any{
		"order_id":     st.orderID,
		"order_amount": req.amount(),
	}, true, func(ctx context.Context) contract.Outcome {
		return o.loyalty.Issue(ctx, loyalty.IssueRequest{
			CustomerID:  req.CustomerID,
			OrderID:     st.orderID,
			OrderAmount: req.amount(),
		})
	})
	if issue.Status == contract.StatusSuccess {
		res.Loyalty = issue.Payload
	}

	res.Status = contract.StatusSuccess
	return res
}

// runStep issues one task to a component, wraps it in a span and files the
// outcome into the saga log. guarded applies the per-step timeout; ledger
// calls are in-process and run unguarded so their side effects are never
// abandoned mid-flight.
func (o *Orchestrator) runStep(ctx context.Context, st *sagaState, step Step, payload map[string]any, guarded bool, fn func(context.Context) contract.Outcome) contract.Outcome {
	task := contract.Task{
		TaskID:     uuid.NewString(),
		Type:       string(step),
		SessionID:  st.sessionID,
		CustomerID: st.customerID,
		Payload:    payload,
	}

	ctx, span := o.tracer.Start(ctx, string(step))
	defer span.End()
	span.SetAttributes(
		attribute.String("task_id", task.TaskID),
		attribute.String("order_id", st.orderID),
	)

	out := o.invoke(ctx, guarded, fn)
	span.SetAttributes(attribute.String("status", string(out.Status)))

	st.steps = append(st.steps, StepRecord{Step: step, Result: contract.TaskResult{
		TaskID:      task.TaskID,
		Status:      out.Status,
		Payload:     out.Payload,
		Errors:      out.Errors,
		NextActions: out.NextActions,
	}})
	o.log.Info("saga step",
		"step", step,
		"status", out.Status,
		"order_id", st.orderID,
		"session_id", st.sessionID,
		"task_id", task.TaskID,
	)
	return out
}

// invoke runs fn, bounding it with the step timeout when guarded. A timeout
// is reported as a failed outcome, never as a panic or a hang.
func (o *Orchestrator) invoke(ctx context.Context, guarded bool, fn func(context.Context) contract.Outcome) contract.Outcome {
	if !guarded || o.stepTimeout <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()
	done := make(chan contract.Outcome, 1)
	go func() { done <- fn(ctx) }()
	select {
	case out := <-done:
		return out
	case <-ctx.Done():
		return contract.Failed(contract.ErrorDetail{
			Code:    contract.CodeStepTimeout,
			Message: "step did not complete in time",
		})
	}
}

// compensate unwinds the registered compensations in reverse order. Failures
// are logged and skipped: a broken compensation must not mask the original
// step failure.
func (o *Orchestrator) compensate(ctx context.Context, st *sagaState) {
	for i := len(st.compensations) - 1; i >= 0; i-- {
		c := st.compensations[i]
		if err := c.run(); err != nil {
			o.log.Error("compensation failed",
				"compensation", c.name, "order_id", st.orderID, "error", err)
			continue
		}
		o.log.Info("compensation applied", "compensation", c.name, "order_id", st.orderID)
		o.compensations.Add(ctx, 1, metric.WithAttributes(attribute.String("compensation", c.name)))
	}
}

func (o *Orchestrator) fail(reason Reason, out contract.Outcome) Result {
	return Result{
		Status:      contract.StatusFailed,
		Reason:      reason,
		Detail:      out.Errors,
		NextActions: out.NextActions,
	}
}

func (o *Orchestrator) finish(ctx context.Context, span trace.Span, res Result, start time.Time) {
	span.SetAttributes(
		attribute.String("status", string(res.Status)),
		attribute.String("reason", string(res.Reason)),
	)
	o.checkouts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", string(res.Status)),
		attribute.String("reason", string(res.Reason)),
	))
	o.duration.Record(ctx, float64(time.Since(start).Milliseconds()))
	o.log.Info("checkout finished",
		"status", res.Status,
		"reason", res.Reason,
		"order_id", res.OrderID,
		"session_id", res.SessionID,
	)
}

// checkOutcome folds per-item availability into one outcome: success only
// when every requested line can be satisfied.
func checkOutcome(avail []inventory.Availability) contract.Outcome {
	items := make([]map[string]any, 0, len(avail))
	all := true
	for _, av := range avail {
		item := map[string]any{
			"sku":           av.SKU,
			"available":     av.Available,
			"available_qty": av.AvailableQty,
		}
		if av.LocationQty > 0 {
			item["location_qty"] = av.LocationQty
		}
		items = append(items, item)
		all = all && av.Available
	}

	payload := map[string]any{"items": items}
	if !all {
		return contract.Outcome{
			Status:  contract.StatusFailed,
			Payload: payload,
			Errors: []contract.ErrorDetail{{
				Code:    contract.CodeInsufficientStock,
				Message: "one or more items are unavailable",
			}},
			NextActions: []contract.NextAction{{
				Type:    contract.ActionCallService,
				Message: "Some items are out of stock. Ask recommendations for alternatives.",
				Data:    map[string]any{"service": "recommendation", "reason": "inventory_low"},
			}},
		}
	}
	return contract.Success(payload)
}
