// Package sim provides an in-memory Gateway for paper trading and tests.
// It tracks orders without making external API calls and can emit
// scripted status events to its subscribers.
package sim

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/minhpham-dev/orderdup/pkg/duplicator"
	"github.com/minhpham-dev/orderdup/pkg/duplicator/model"
)

// Compile-time interface check.
var _ duplicator.Gateway = (*Gateway)(nil)

type Config struct {
	Name string
	// Latency is applied to every order call.
	Latency time.Duration
	// FailureRate in [0,1] rejects that share of placements.
	FailureRate float64
	// AutoFill, when set, emits OPEN then COMPLETE events for every
	// accepted order after the given delay.
	AutoFill      bool
	AutoFillDelay time.Duration
}

type Gateway struct {
	cfg     Config
	healthy atomic.Bool
	seq     atomic.Int64

	mu        sync.Mutex
	orders    map[string]*model.OrderIntent
	listeners []duplicator.OrderEventListener
	quotes    []duplicator.QuoteListener
}

func New(cfg Config) *Gateway {
	return &Gateway{
		cfg:    cfg,
		orders: make(map[string]*model.OrderIntent),
	}
}

func (g *Gateway) Name() string { return g.cfg.Name }

func (g *Gateway) Connect(_ context.Context) error {
	g.healthy.Store(true)
	return nil
}

func (g *Gateway) Disconnect() {
	g.healthy.Store(false)
}

func (g *Gateway) IsHealthy() bool { return g.healthy.Load() }

func (g *Gateway) Place(ctx context.Context, intent *model.OrderIntent) *model.LegResult {
	if res := g.gate(ctx); res != nil {
		return res
	}
	if g.cfg.FailureRate > 0 && rand.Float64() < g.cfg.FailureRate {
		return model.FailedLeg(g.cfg.Name, "simulated rejection")
	}

	brokerOrderID := fmt.Sprintf("%s-%d", g.cfg.Name, g.seq.Add(1))
	g.mu.Lock()
	g.orders[brokerOrderID] = intent
	g.mu.Unlock()

	if g.cfg.AutoFill {
		go g.fill(brokerOrderID, intent)
	}

	return &model.LegResult{
		GatewayName:   g.cfg.Name,
		Success:       true,
		BrokerOrderID: brokerOrderID,
	}
}

func (g *Gateway) Modify(ctx context.Context, brokerOrderID string, intent *model.OrderIntent) *model.LegResult {
	if res := g.gate(ctx); res != nil {
		return res
	}

	g.mu.Lock()
	_, ok := g.orders[brokerOrderID]
	if ok {
		g.orders[brokerOrderID] = intent
	}
	g.mu.Unlock()
	if !ok {
		return model.FailedLeg(g.cfg.Name, "unknown order "+brokerOrderID)
	}
	return &model.LegResult{GatewayName: g.cfg.Name, Success: true, BrokerOrderID: brokerOrderID}
}

func (g *Gateway) Cancel(ctx context.Context, brokerOrderID string) *model.LegResult {
	if res := g.gate(ctx); res != nil {
		return res
	}

	g.mu.Lock()
	_, ok := g.orders[brokerOrderID]
	delete(g.orders, brokerOrderID)
	g.mu.Unlock()
	if !ok {
		return model.FailedLeg(g.cfg.Name, "unknown order "+brokerOrderID)
	}

	g.Emit(&model.OrderEvent{
		GatewayName:   g.cfg.Name,
		BrokerOrderID: brokerOrderID,
		Status:        model.OrderStateCancelled,
		Timestamp:     time.Now(),
	})
	return &model.LegResult{GatewayName: g.cfg.Name, Success: true, BrokerOrderID: brokerOrderID}
}

// gate applies health, latency and context cancellation to a call.
func (g *Gateway) gate(ctx context.Context) *model.LegResult {
	if !g.healthy.Load() {
		return model.FailedLeg(g.cfg.Name, "not connected")
	}
	if g.cfg.Latency > 0 {
		select {
		case <-time.After(g.cfg.Latency):
		case <-ctx.Done():
			return model.FailedLeg(g.cfg.Name, ctx.Err().Error())
		}
	}
	return nil
}

func (g *Gateway) SubscribeOrderEvents(l duplicator.OrderEventListener) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, l)
}

func (g *Gateway) SubscribeQuotes(l duplicator.QuoteListener) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.quotes = append(g.quotes, l)
}

// Emit delivers an event to every subscriber. Tests use it to script
// broker-side status sequences.
func (g *Gateway) Emit(ev *model.OrderEvent) {
	g.mu.Lock()
	listeners := make([]duplicator.OrderEventListener, len(g.listeners))
	copy(listeners, g.listeners)
	g.mu.Unlock()
	for _, l := range listeners {
		l(ev)
	}
}

// EmitQuote delivers a quote tick to every quote subscriber.
func (g *Gateway) EmitQuote(ev *model.QuoteEvent) {
	g.mu.Lock()
	quotes := make([]duplicator.QuoteListener, len(g.quotes))
	copy(quotes, g.quotes)
	g.mu.Unlock()
	for _, l := range quotes {
		l(ev)
	}
}

func (g *Gateway) fill(brokerOrderID string, intent *model.OrderIntent) {
	delay := g.cfg.AutoFillDelay
	if delay <= 0 {
		delay = 10 * time.Millisecond
	}

	time.Sleep(delay)
	g.Emit(&model.OrderEvent{
		GatewayName:   g.cfg.Name,
		BrokerOrderID: brokerOrderID,
		Status:        model.OrderStateOpen,
		Timestamp:     time.Now(),
	})

	time.Sleep(delay)
	g.Emit(&model.OrderEvent{
		GatewayName:    g.cfg.Name,
		BrokerOrderID:  brokerOrderID,
		Status:         model.OrderStateComplete,
		FilledQuantity: intent.Quantity,
		AvgPrice:       intent.Price,
		Timestamp:      time.Now(),
	})
}
