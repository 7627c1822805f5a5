package duplicator

import (
	"context"

	"github.com/minhpham-dev/orderdup/pkg/duplicator/model"
)

// Notifier is the operator channel. The presentation layer decides how a
// notification is surfaced; the engine only emits them.
type Notifier interface {
	// OrderTerminal fires once when a duplicated order reaches a terminal
	// state. The order is a snapshot.
	OrderTerminal(ctx context.Context, order *model.DuplicatedOrder)

	// AllGatewaysDown fires when the healthy set becomes empty.
	AllGatewaysDown(ctx context.Context)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) OrderTerminal(context.Context, *model.DuplicatedOrder) {}
func (NopNotifier) AllGatewaysDown(context.Context)                       {}
