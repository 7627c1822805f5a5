package duplicator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
)

// ConnectPolicy decides how ConnectAll treats individual failures.
type ConnectPolicy string

const (
	// ConnectAllOrNothing aborts startup on the first connect failure.
	ConnectAllOrNothing ConnectPolicy = "all_or_nothing"
	// ConnectBestEffort continues with the healthy subset.
	ConnectBestEffort ConnectPolicy = "best_effort"
)

// Registry holds the named set of configured gateways. The set is fixed
// after startup; only health flags change.
type Registry struct {
	policy ConnectPolicy

	mu       sync.RWMutex
	gateways map[string]Gateway
}

func NewRegistry(policy ConnectPolicy) *Registry {
	if policy == "" {
		policy = ConnectBestEffort
	}
	return &Registry{
		policy:   policy,
		gateways: make(map[string]Gateway),
	}
}

// Register adds a gateway. Call before ConnectAll; a duplicate name
// replaces the previous entry.
func (r *Registry) Register(gw Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[gw.Name()] = gw
}

// ConnectAll attempts every gateway's Connect. Under all_or_nothing the
// first failure aborts; under best_effort failures are logged and the
// healthy subset carries on. Zero healthy gateways is an error either way.
func (r *Registry) ConnectAll(ctx context.Context) error {
	healthy := 0
	for _, name := range r.Names() {
		gw := r.Get(name)
		if err := gw.Connect(ctx); err != nil {
			zap.S().Errorw("gateway connect failed", "gateway", name, "err", err)
			if r.policy == ConnectAllOrNothing {
				return fmt.Errorf("connect %s: %w", name, err)
			}
			continue
		}
		zap.S().Infow("gateway connected", "gateway", name)
		healthy++
	}
	if healthy == 0 {
		return ErrGatewayUnavailable
	}
	return nil
}

func (r *Registry) DisconnectAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, gw := range r.gateways {
		gw.Disconnect()
		zap.S().Infow("gateway disconnected", "gateway", name)
	}
}

func (r *Registry) Get(name string) Gateway {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gateways[name]
}

// Names returns all registered names in stable order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HealthySubset snapshots the gateways whose cached health flag is true.
func (r *Registry) HealthySubset() map[string]Gateway {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Gateway, len(r.gateways))
	for name, gw := range r.gateways {
		if gw.IsHealthy() {
			out[name] = gw
		}
	}
	return out
}

// UnhealthyNames returns the complement of HealthySubset.
func (r *Registry) UnhealthyNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for name, gw := range r.gateways {
		if !gw.IsHealthy() {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Reconnect disconnects then reconnects one named gateway, retrying the
// connect a few times with exponential backoff. Used by the health
// monitor; a failure here is retried on the next tick.
func (r *Registry) Reconnect(ctx context.Context, name string) error {
	gw := r.Get(name)
	if gw == nil {
		return ErrGatewayNotFound
	}

	gw.Disconnect()

	boff := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	err := backoff.Retry(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		return gw.Connect(ctx)
	}, boff)
	if err != nil {
		return fmt.Errorf("reconnect %s: %w", name, err)
	}
	return nil
}
