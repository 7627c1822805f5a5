package duplicator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/minhpham-dev/orderdup/pkg/duplicator/model"
)

// stubGateway is a scriptable Gateway for tests.
type stubGateway struct {
	name    string
	healthy atomic.Bool
	seq     atomic.Int64

	// knobs
	placeDelay  time.Duration
	placePanics bool
	placeFails  bool
	connectErr  error

	connectCalls atomic.Int64

	mu        sync.Mutex
	listeners []OrderEventListener
}

func newStubGateway(name string) *stubGateway {
	g := &stubGateway{name: name}
	g.healthy.Store(true)
	return g
}

func (g *stubGateway) Name() string { return g.name }

func (g *stubGateway) Connect(_ context.Context) error {
	g.connectCalls.Add(1)
	if g.connectErr != nil {
		return g.connectErr
	}
	g.healthy.Store(true)
	return nil
}

func (g *stubGateway) Disconnect()     { g.healthy.Store(false) }
func (g *stubGateway) IsHealthy() bool { return g.healthy.Load() }

func (g *stubGateway) Place(ctx context.Context, _ *model.OrderIntent) *model.LegResult {
	if g.placePanics {
		panic("stub gateway blew up")
	}
	if g.placeDelay > 0 {
		select {
		case <-time.After(g.placeDelay):
		case <-ctx.Done():
			return model.FailedLeg(g.name, ctx.Err().Error())
		}
	}
	if g.placeFails {
		return model.FailedLeg(g.name, "rejected")
	}
	return &model.LegResult{
		GatewayName:   g.name,
		Success:       true,
		BrokerOrderID: fmt.Sprintf("%s-%d", g.name, g.seq.Add(1)),
	}
}

func (g *stubGateway) Modify(_ context.Context, brokerOrderID string, _ *model.OrderIntent) *model.LegResult {
	if g.placeFails {
		return model.FailedLeg(g.name, "rejected")
	}
	return &model.LegResult{GatewayName: g.name, Success: true, BrokerOrderID: brokerOrderID}
}

func (g *stubGateway) Cancel(_ context.Context, brokerOrderID string) *model.LegResult {
	if g.placeFails {
		return model.FailedLeg(g.name, "rejected")
	}
	return &model.LegResult{GatewayName: g.name, Success: true, BrokerOrderID: brokerOrderID}
}

func (g *stubGateway) SubscribeOrderEvents(l OrderEventListener) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, l)
}

func (g *stubGateway) SubscribeQuotes(QuoteListener) {}

func (g *stubGateway) emit(ev *model.OrderEvent) {
	g.mu.Lock()
	listeners := append([]OrderEventListener(nil), g.listeners...)
	g.mu.Unlock()
	for _, l := range listeners {
		l(ev)
	}
}

var errConnectRefused = errors.New("connection refused")

func testIntent() *model.OrderIntent {
	return &model.OrderIntent{
		Symbol:    "SBIN-EQ",
		Side:      model.OrderSideBuy,
		Quantity:  10,
		PriceType: model.PriceTypeMarket,
		Exchange:  "NSE",
	}
}
