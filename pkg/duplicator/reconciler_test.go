package duplicator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/minhpham-dev/orderdup/pkg/duplicator/model"
)

type recordingAudit struct {
	mu     sync.Mutex
	events []*model.OrderEvent
	gate   chan struct{} // when set, Record blocks until the gate closes
	inGate chan struct{}
}

func (a *recordingAudit) Record(_ context.Context, ev *model.OrderEvent) error {
	if a.gate != nil {
		a.inGate <- struct{}{}
		<-a.gate
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
	return nil
}

func (a *recordingAudit) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestReconcilerAppliesGatewayEvents(t *testing.T) {
	registry := NewRegistry(ConnectBestEffort)
	gw := newStubGateway("a")
	registry.Register(gw)

	ledger, _ := newTestLedger(t)
	order := placeOne(t, ledger, map[string]string{"a": "a-1"})

	audit := &recordingAudit{}
	r := NewReconciler(registry, ledger, nil, audit, ReconcilerConfig{})
	r.Start(context.Background())
	defer r.Stop()

	gw.emit(&model.OrderEvent{
		GatewayName:   "a",
		BrokerOrderID: "a-1",
		Status:        model.OrderStateOpen,
		Timestamp:     time.Now(),
	})
	gw.emit(&model.OrderEvent{
		GatewayName:    "a",
		BrokerOrderID:  "a-1",
		Status:         model.OrderStateComplete,
		FilledQuantity: 10,
		Timestamp:      time.Now(),
	})

	waitFor(t, func() bool {
		got, err := ledger.Get(order.LogicalID)
		return err == nil && got.State == model.OrderStateComplete
	})

	// Both events reached the audit trail, in leg order.
	waitFor(t, func() bool { return audit.count() == 2 })
}

func TestReconcilerShardQueueMode(t *testing.T) {
	registry := NewRegistry(ConnectBestEffort)
	gw := newStubGateway("a")
	registry.Register(gw)

	ledger, _ := newTestLedger(t)
	order := placeOne(t, ledger, map[string]string{"a": "a-1"})

	r := NewReconciler(registry, ledger, nil, nil, ReconcilerConfig{
		EnableShardQueue: true,
		NumShards:        4,
	})
	r.Start(context.Background())
	defer r.Stop()

	gw.emit(&model.OrderEvent{
		GatewayName:   "a",
		BrokerOrderID: "a-1",
		Status:        model.OrderStateOpen,
		Timestamp:     time.Now(),
	})

	waitFor(t, func() bool {
		got, err := ledger.Get(order.LogicalID)
		return err == nil && got.State == model.OrderStateOpen
	})
}

// A full ingestion queue sheds events instead of blocking the gateway's
// emit path.
func TestFullQueueDropsInsteadOfBlocking(t *testing.T) {
	registry := NewRegistry(ConnectBestEffort)
	gw := newStubGateway("a")
	registry.Register(gw)

	ledger, _ := newTestLedger(t)
	placeOne(t, ledger, map[string]string{"a": "a-1"})

	// inGate is buffered so late Record calls during shutdown never block.
	audit := &recordingAudit{
		gate:   make(chan struct{}),
		inGate: make(chan struct{}, 4),
	}
	r := NewReconciler(registry, ledger, nil, audit, ReconcilerConfig{QueueSize: 1})
	r.Start(context.Background())

	ev := &model.OrderEvent{
		GatewayName:   "a",
		BrokerOrderID: "a-1",
		Status:        model.OrderStateOpen,
		Timestamp:     time.Now(),
	}

	// First event is in the handler, stalled on the audit gate.
	gw.emit(ev)
	<-audit.inGate

	gw.emit(ev) // sits in the queue
	gw.emit(ev) // queue full, must be shed

	if got := r.DroppedEvents(); got != 1 {
		t.Errorf("expected 1 dropped event, got %d", got)
	}

	close(audit.gate)
	r.Stop()
}

func TestHealthCheckReconnectsUnhealthyGateway(t *testing.T) {
	registry := NewRegistry(ConnectBestEffort)
	up := newStubGateway("up")
	down := newStubGateway("down")
	down.healthy.Store(false)
	registry.Register(up)
	registry.Register(down)

	ledger, _ := newTestLedger(t)
	r := NewReconciler(registry, ledger, nil, nil, ReconcilerConfig{})

	r.checkHealth(context.Background())

	if !down.IsHealthy() {
		t.Error("unhealthy gateway should have been reconnected")
	}
	if down.connectCalls.Load() == 0 {
		t.Error("reconnect should have called Connect")
	}
}

func TestAllGatewaysDownNotifiesOnce(t *testing.T) {
	registry := NewRegistry(ConnectBestEffort)
	gw := newStubGateway("a")
	gw.healthy.Store(false)
	gw.connectErr = errConnectRefused
	registry.Register(gw)

	ledger, _ := newTestLedger(t)
	notifier := &recordingNotifier{}
	r := NewReconciler(registry, ledger, notifier, nil, ReconcilerConfig{})

	// Cancelled context keeps the reconnect backoff from spinning.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r.checkHealth(ctx)
	r.checkHealth(ctx)
	if got := notifier.allDownCount(); got != 1 {
		t.Fatalf("expected one all-down notification, got %d", got)
	}

	// Recovery rearms the notification.
	gw.healthy.Store(true)
	r.checkHealth(ctx)
	gw.healthy.Store(false)
	r.checkHealth(ctx)
	if got := notifier.allDownCount(); got != 2 {
		t.Fatalf("expected rearmed notification, got %d", got)
	}
}
