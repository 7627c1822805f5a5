package duplicator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/minhpham-dev/orderdup/pkg/duplicator/model"
	"github.com/minhpham-dev/orderdup/pkg/duplicator/rule"
)

const defaultDispatchTimeout = 5 * time.Second

// Dispatcher fans one logical operation out to every healthy gateway in
// parallel and collects per-gateway results within a bounded time. One
// stalled gateway never delays the others' results.
type Dispatcher struct {
	registry *Registry
	timeout  time.Duration
	rules    []rule.Rule
}

func NewDispatcher(registry *Registry, timeout time.Duration, rules ...rule.Rule) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	return &Dispatcher{
		registry: registry,
		timeout:  timeout,
		rules:    rules,
	}
}

type legOutcome struct {
	name string
	res  *model.LegResult
}

// Place submits the intent to every healthy gateway. The returned map has
// exactly one entry per attempted gateway. The call succeeds iff at least
// one leg succeeded.
func (d *Dispatcher) Place(ctx context.Context, intent *model.OrderIntent) (map[string]*model.LegResult, error) {
	for _, r := range d.rules {
		if err := r.Check(intent); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidIntent, err)
		}
	}

	snapshot := d.registry.HealthySubset()
	if len(snapshot) == 0 {
		zap.S().Warn("dispatch with no healthy gateways")
		return map[string]*model.LegResult{}, ErrGatewayUnavailable
	}

	started := time.Now()
	results := d.fanOut(ctx, snapshot, func(callCtx context.Context, gw Gateway) *model.LegResult {
		return gw.Place(callCtx, intent)
	})
	zap.S().Infow("place dispatched",
		"symbol", intent.Symbol,
		"gateways", len(results),
		"elapsed", time.Since(started))

	if !anySuccess(results) {
		return results, ErrNoLegsPlaced
	}
	return results, nil
}

// Modify re-prices or re-sizes the order's existing legs. A gateway that
// never received a leg is not asked.
func (d *Dispatcher) Modify(ctx context.Context, order *model.DuplicatedOrder, intent *model.OrderIntent) (map[string]*model.LegResult, error) {
	return d.perLeg(ctx, order, func(callCtx context.Context, gw Gateway, brokerOrderID string) *model.LegResult {
		return gw.Modify(callCtx, brokerOrderID, intent)
	})
}

// Cancel cancels the order's existing legs.
func (d *Dispatcher) Cancel(ctx context.Context, order *model.DuplicatedOrder) (map[string]*model.LegResult, error) {
	return d.perLeg(ctx, order, func(callCtx context.Context, gw Gateway, brokerOrderID string) *model.LegResult {
		return gw.Cancel(callCtx, brokerOrderID)
	})
}

func (d *Dispatcher) perLeg(ctx context.Context, order *model.DuplicatedOrder, op func(context.Context, Gateway, string) *model.LegResult) (map[string]*model.LegResult, error) {
	healthy := d.registry.HealthySubset()

	targets := make(map[string]Gateway, len(order.LegIDs))
	legIDs := make(map[string]string, len(order.LegIDs))
	for name, brokerOrderID := range order.LegIDs {
		gw, ok := healthy[name]
		if !ok {
			continue
		}
		targets[name] = gw
		legIDs[name] = brokerOrderID
	}
	if len(targets) == 0 {
		zap.S().Warnw("no healthy gateways hold a leg", "logical_id", order.LogicalID)
		return map[string]*model.LegResult{}, ErrGatewayUnavailable
	}

	results := d.fanOut(ctx, targets, func(callCtx context.Context, gw Gateway) *model.LegResult {
		return op(callCtx, gw, legIDs[gw.Name()])
	})

	if !anySuccess(results) {
		return results, ErrNoLegsPlaced
	}
	return results, nil
}

// fanOut runs op once per gateway concurrently. Each goroutine writes to
// a channel buffered for the full set, so a result arriving after the
// deadline is discarded instead of leaking the goroutine.
func (d *Dispatcher) fanOut(ctx context.Context, gateways map[string]Gateway, op func(context.Context, Gateway) *model.LegResult) map[string]*model.LegResult {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	outcomes := make(chan legOutcome, len(gateways))
	for name, gw := range gateways {
		go func(name string, gw Gateway) {
			outcomes <- legOutcome{name: name, res: safeCall(callCtx, name, gw, op)}
		}(name, gw)
	}

	results := make(map[string]*model.LegResult, len(gateways))
	timer := time.NewTimer(d.timeout)
	defer timer.Stop()

collect:
	for len(results) < len(gateways) {
		select {
		case out := <-outcomes:
			results[out.name] = out.res
		case <-timer.C:
			break collect
		case <-ctx.Done():
			break collect
		}
	}

	for name := range gateways {
		if _, ok := results[name]; !ok {
			zap.S().Warnw("gateway call abandoned", "gateway", name, "timeout", d.timeout)
			results[name] = model.FailedLeg(name, fmt.Sprintf("timed out after %s", d.timeout))
		}
	}
	return results
}

// safeCall keeps a panicking gateway implementation from taking down the
// dispatch; the contract says fail closed.
func safeCall(ctx context.Context, name string, gw Gateway, op func(context.Context, Gateway) *model.LegResult) (res *model.LegResult) {
	defer func() {
		if r := recover(); r != nil {
			zap.S().Errorw("gateway panicked", "gateway", name, "panic", r)
			res = model.FailedLeg(name, fmt.Sprintf("gateway panic: %v", r))
		}
	}()

	res = op(ctx, gw)
	if res == nil {
		res = model.FailedLeg(name, "gateway returned no result")
	}
	res.GatewayName = name
	return res
}

func anySuccess(results map[string]*model.LegResult) bool {
	for _, r := range results {
		if r.Success {
			return true
		}
	}
	return false
}
