package duplicator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/minhpham-dev/orderdup/pkg/duplicator/model"
)

type legKey struct {
	gateway       string
	brokerOrderID string
}

type ledgerEntry struct {
	mu    sync.Mutex
	order *model.DuplicatedOrder
}

// Ledger is the authoritative record of duplicated orders. Every mutation
// is persisted through the Store before the in-memory map accepts it, so
// a crash-restart reconstructs the same set of logical orders. Entries
// are mutated only through Ledger methods, each under a per-entry lock.
type Ledger struct {
	store    Store
	notifier Notifier

	mu      sync.RWMutex
	entries map[string]*ledgerEntry
	index   map[legKey]string // (gateway, brokerOrderID) -> logicalID

	seq atomic.Int64
}

// NewLedger builds a ledger and repopulates it from the store. Must
// complete before the reconciliation loop begins ingesting events.
func NewLedger(ctx context.Context, store Store, notifier Notifier) (*Ledger, error) {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	l := &Ledger{
		store:    store,
		notifier: notifier,
		entries:  make(map[string]*ledgerEntry),
		index:    make(map[legKey]string),
	}

	orders, err := store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	for _, order := range orders {
		l.admit(order)
	}
	if len(orders) > 0 {
		zap.S().Infow("ledger repopulated", "orders", len(orders))
	}
	return l, nil
}

func (l *Ledger) admit(order *model.DuplicatedOrder) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[order.LogicalID] = &ledgerEntry{order: order}
	for gateway, brokerOrderID := range order.LegIDs {
		l.index[legKey{gateway, brokerOrderID}] = order.LogicalID
	}
}

// NewLogicalID returns a process-unique, time-ordered id.
func (l *Ledger) NewLogicalID() string {
	return fmt.Sprintf("ORD_%d_%d", time.Now().UnixMilli(), l.seq.Add(1))
}

// Create records a new duplicated order from dispatch results. Requires
// at least one successful leg; only successful legs are stored. The
// snapshot is durably saved before Create returns.
func (l *Ledger) Create(ctx context.Context, intent *model.OrderIntent, legResults map[string]*model.LegResult) (*model.DuplicatedOrder, error) {
	legIDs := make(map[string]string)
	failed := 0
	for name, res := range legResults {
		if res.Success {
			legIDs[name] = res.BrokerOrderID
		} else {
			failed++
		}
	}
	if len(legIDs) == 0 {
		return nil, ErrNoLegsPlaced
	}
	if failed > 0 {
		zap.S().Warnw("partial placement", "succeeded", len(legIDs), "failed", failed)
	}

	now := time.Now()
	order := &model.DuplicatedOrder{
		LogicalID: l.NewLogicalID(),
		Intent:    *intent,
		LegIDs:    legIDs,
		State:     model.OrderStatePending,
		CreatedAt: now,
		UpdatedAt: now,
		Remark:    intent.Remark,
	}

	if err := l.store.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("persist order %s: %w", order.LogicalID, err)
	}
	l.admit(order)

	zap.S().Infow("order created",
		"logical_id", order.LogicalID,
		"symbol", intent.Symbol,
		"legs", len(legIDs))
	return order.Clone(), nil
}

// ApplyEvent maps the event back to its owning order and advances the
// state machine. Returns whether a state transition occurred. Events for
// unknown legs and events against terminal orders are dropped.
func (l *Ledger) ApplyEvent(ctx context.Context, ev *model.OrderEvent) bool {
	l.mu.RLock()
	logicalID, ok := l.index[legKey{ev.GatewayName, ev.BrokerOrderID}]
	var entry *ledgerEntry
	if ok {
		entry = l.entries[logicalID]
	}
	l.mu.RUnlock()

	if entry == nil {
		zap.S().Debugw("event for unknown leg dropped",
			"gateway", ev.GatewayName, "broker_order_id", ev.BrokerOrderID)
		return false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	current := entry.order.State
	if current.IsTerminal() {
		zap.S().Debugw("event for terminal order dropped",
			"logical_id", logicalID, "state", current, "event_status", ev.Status)
		return false
	}

	if !validTransition(current, ev.Status) {
		// Same-state events still carry fill progress.
		if ev.Status == current && ev.FilledQuantity > entry.order.FilledQuantity {
			l.recordFills(ctx, entry, ev)
		}
		return false
	}

	next := entry.order.Clone()
	next.State = ev.Status
	next.UpdatedAt = time.Now()
	if ev.FilledQuantity > next.FilledQuantity {
		next.FilledQuantity = ev.FilledQuantity
		next.AvgPrice = ev.AvgPrice
	}

	if err := l.store.Save(ctx, next); err != nil {
		zap.S().Errorw("persist transition failed, event not applied",
			"logical_id", logicalID, "err", err)
		return false
	}
	entry.order = next

	zap.S().Infow("order transitioned",
		"logical_id", logicalID,
		"from", current, "to", next.State,
		"gateway", ev.GatewayName)

	if next.State.IsTerminal() {
		l.notifier.OrderTerminal(ctx, next.Clone())
	}
	return true
}

func (l *Ledger) recordFills(ctx context.Context, entry *ledgerEntry, ev *model.OrderEvent) {
	next := entry.order.Clone()
	next.FilledQuantity = ev.FilledQuantity
	next.AvgPrice = ev.AvgPrice
	next.UpdatedAt = time.Now()
	if err := l.store.Save(ctx, next); err != nil {
		zap.S().Errorw("persist fill progress failed", "logical_id", next.LogicalID, "err", err)
		return
	}
	entry.order = next
}

func validTransition(from, to model.OrderState) bool {
	switch from {
	case model.OrderStatePending:
		return to == model.OrderStateOpen || to.IsTerminal()
	case model.OrderStateOpen:
		return to.IsTerminal()
	}
	return false
}

// Get returns a snapshot of one logical order.
func (l *Ledger) Get(logicalID string) (*model.DuplicatedOrder, error) {
	l.mu.RLock()
	entry := l.entries[logicalID]
	l.mu.RUnlock()
	if entry == nil {
		return nil, ErrOrderNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.order.Clone(), nil
}

// ListActive returns snapshots of all non-terminal orders, oldest first.
func (l *Ledger) ListActive() []*model.DuplicatedOrder {
	return l.list(func(o *model.DuplicatedOrder) bool { return !o.State.IsTerminal() })
}

// ListAll returns snapshots of every order, oldest first.
func (l *Ledger) ListAll() []*model.DuplicatedOrder {
	return l.list(func(*model.DuplicatedOrder) bool { return true })
}

func (l *Ledger) list(keep func(*model.DuplicatedOrder) bool) []*model.DuplicatedOrder {
	l.mu.RLock()
	entries := make([]*ledgerEntry, 0, len(l.entries))
	for _, e := range l.entries {
		entries = append(entries, e)
	}
	l.mu.RUnlock()

	var out []*model.DuplicatedOrder
	for _, e := range entries {
		e.mu.Lock()
		if keep(e.order) {
			out = append(out, e.order.Clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LogicalID < out[j].LogicalID })
	return out
}

// Cleanup removes terminal orders not updated within maxAge. Non-terminal
// orders are never removed regardless of age. Returns the removed count.
func (l *Ledger) Cleanup(ctx context.Context, maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for logicalID, entry := range l.entries {
		entry.mu.Lock()
		stale := entry.order.State.IsTerminal() && entry.order.UpdatedAt.Before(cutoff)
		legIDs := entry.order.LegIDs
		entry.mu.Unlock()
		if !stale {
			continue
		}

		if err := l.store.Delete(ctx, logicalID); err != nil {
			zap.S().Errorw("cleanup delete failed", "logical_id", logicalID, "err", err)
			continue
		}
		delete(l.entries, logicalID)
		for gateway, brokerOrderID := range legIDs {
			delete(l.index, legKey{gateway, brokerOrderID})
		}
		removed++
	}
	if removed > 0 {
		zap.S().Infow("ledger cleanup", "removed", removed)
	}
	return removed
}

// RunCleaner runs Cleanup on a fixed interval until ctx is cancelled.
func (l *Ledger) RunCleaner(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Cleanup(ctx, maxAge)
		case <-ctx.Done():
			return
		}
	}
}
