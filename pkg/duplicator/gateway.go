package duplicator

import (
	"context"

	"github.com/minhpham-dev/orderdup/pkg/duplicator/model"
)

// OrderEventListener receives normalized order-status events. It must not
// block: gateways call it from their own read loops.
type OrderEventListener func(*model.OrderEvent)

// QuoteListener receives normalized quote ticks.
type QuoteListener func(*model.QuoteEvent)

// Gateway is one brokerage session. Implementations own all vendor
// authentication and wire formats. Place/Modify/Cancel fail closed: any
// transport error or malformed response becomes a failed LegResult, never
// a panic through the dispatcher.
type Gateway interface {
	Name() string

	Connect(ctx context.Context) error
	Disconnect()

	// IsHealthy returns the cached connectivity flag. It is O(1) and
	// never performs a live probe.
	IsHealthy() bool

	Place(ctx context.Context, intent *model.OrderIntent) *model.LegResult
	Modify(ctx context.Context, brokerOrderID string, intent *model.OrderIntent) *model.LegResult
	Cancel(ctx context.Context, brokerOrderID string) *model.LegResult

	SubscribeOrderEvents(OrderEventListener)

	// SubscribeQuotes is an optional capability. Gateways without a quote
	// stream accept the listener and never invoke it.
	SubscribeQuotes(QuoteListener)
}
