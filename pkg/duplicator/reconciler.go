package duplicator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joripage/go_util/pkg/shardqueue"
	"go.uber.org/zap"

	"github.com/minhpham-dev/orderdup/pkg/duplicator/model"
)

// AuditSink records every ingested order event, e.g. onto a message bus.
// Failures are logged and never block ingestion.
type AuditSink interface {
	Record(ctx context.Context, ev *model.OrderEvent) error
}

type ReconcilerConfig struct {
	// HealthInterval is how often unhealthy gateways are reconnected.
	HealthInterval time.Duration
	// QueueSize bounds each gateway's ingestion queue. A full queue drops
	// the event rather than stalling the gateway's read loop.
	QueueSize int
	// EnableShardQueue switches ingestion to a sharded queue keyed by
	// (gateway, broker order id), preserving per-leg arrival order across
	// a fixed worker set instead of one goroutine per gateway.
	EnableShardQueue bool
	NumShards        int
}

const (
	defaultHealthInterval = 5 * time.Second
	defaultQueueSize      = 4096
	defaultNumShards      = 16
)

// Reconciler subscribes to every gateway's order-event stream, maps each
// event back to the ledger, and keeps unhealthy gateways reconnecting.
// Event ingestion and health monitoring are independent; a failure in one
// gateway's stream never stops the others.
type Reconciler struct {
	registry *Registry
	ledger   *Ledger
	notifier Notifier
	audit    AuditSink
	cfg      ReconcilerConfig

	shardQueue *shardqueue.Shardqueue
	queues     map[string]chan *model.OrderEvent
	dropped    atomic.Int64
	allDown    atomic.Bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func NewReconciler(registry *Registry, ledger *Ledger, notifier Notifier, audit AuditSink, cfg ReconcilerConfig) *Reconciler {
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = defaultHealthInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.NumShards <= 0 {
		cfg.NumShards = defaultNumShards
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Reconciler{
		registry: registry,
		ledger:   ledger,
		notifier: notifier,
		audit:    audit,
		cfg:      cfg,
		queues:   make(map[string]chan *model.OrderEvent),
	}
}

// Start subscribes to every registered gateway and launches the health
// monitor. It returns immediately; Stop shuts everything down.
func (r *Reconciler) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	if r.cfg.EnableShardQueue {
		r.shardQueue = shardqueue.NewShardQueue(r.cfg.NumShards, r.cfg.QueueSize)
		r.shardQueue.Start(func(msg interface{}) error {
			if ev, ok := msg.(*model.OrderEvent); ok {
				r.handle(ctx, ev)
			}
			return nil
		})
	}

	for _, name := range r.registry.Names() {
		r.subscribe(ctx, r.registry.Get(name))
	}

	r.wg.Add(1)
	go r.monitorHealth(ctx)
}

func (r *Reconciler) subscribe(ctx context.Context, gw Gateway) {
	name := gw.Name()

	if r.cfg.EnableShardQueue {
		gw.SubscribeOrderEvents(func(ev *model.OrderEvent) {
			r.shardQueue.Shard(shardKey(ev), ev)
		})
		return
	}

	queue := make(chan *model.OrderEvent, r.cfg.QueueSize)
	r.queues[name] = queue

	gw.SubscribeOrderEvents(func(ev *model.OrderEvent) {
		select {
		case queue <- ev:
		default:
			// Never block the gateway's read loop.
			r.dropped.Add(1)
			zap.S().Warnw("ingestion queue full, event dropped", "gateway", name)
		}
	})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case ev := <-queue:
				r.handle(ctx, ev)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func shardKey(ev *model.OrderEvent) string {
	return fmt.Sprintf("%s|%s", ev.GatewayName, ev.BrokerOrderID)
}

func (r *Reconciler) handle(ctx context.Context, ev *model.OrderEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.S().Errorw("event handling panicked", "gateway", ev.GatewayName, "panic", rec)
		}
	}()

	r.ledger.ApplyEvent(ctx, ev)

	if r.audit != nil {
		if err := r.audit.Record(ctx, ev); err != nil {
			zap.S().Warnw("audit record failed", "gateway", ev.GatewayName, "err", err)
		}
	}
}

func (r *Reconciler) monitorHealth(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.checkHealth(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Reconciler) checkHealth(ctx context.Context) {
	for _, name := range r.registry.UnhealthyNames() {
		zap.S().Warnw("gateway unhealthy, reconnecting", "gateway", name)
		if err := r.registry.Reconnect(ctx, name); err != nil {
			zap.S().Errorw("reconnect failed", "gateway", name, "err", err)
			continue
		}
		zap.S().Infow("gateway reconnected", "gateway", name)
	}

	if len(r.registry.HealthySubset()) == 0 {
		zap.S().Error("no healthy gateways remain")
		if r.allDown.CompareAndSwap(false, true) {
			r.notifier.AllGatewaysDown(ctx)
		}
		return
	}
	r.allDown.Store(false)
}

// DroppedEvents reports how many events were shed by full queues.
func (r *Reconciler) DroppedEvents() int64 {
	return r.dropped.Load()
}

// Stop cancels ingestion and the health monitor and waits for them.
func (r *Reconciler) Stop() {
	r.once.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
		r.wg.Wait()
	})
}
