// Package fixgateway connects one broker over FIX 4.4 as an initiator
// and exposes it through the duplicator Gateway interface. Each order
// request carries a fresh ClOrdID; execution reports are matched back
// to the ClOrdID of the original NewOrderSingle so cancel/replace
// chains keep reporting against the same broker order id.
package fixgateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/quickfix/log/file"
	"go.uber.org/zap"

	"github.com/minhpham-dev/orderdup/pkg/duplicator"
	"github.com/minhpham-dev/orderdup/pkg/duplicator/model"
)

// Compile-time interface check.
var _ duplicator.Gateway = (*Gateway)(nil)

const defaultAckTimeout = 5 * time.Second

type Config struct {
	Name           string
	ConfigFilepath string
	// AckTimeout bounds the wait for the first execution report after
	// an outbound request. Zero means defaultAckTimeout.
	AckTimeout time.Duration
}

type Gateway struct {
	cfg       Config
	app       *application
	initiator *quickfix.Initiator
	healthy   atomic.Bool

	mu        sync.Mutex
	sessionID quickfix.SessionID
	hasSess   bool
	listeners []duplicator.OrderEventListener
	quotes    []duplicator.QuoteListener

	// rootClOrdID maps every ClOrdID in a cancel/replace chain to the
	// ClOrdID of the original NewOrderSingle, which doubles as the
	// broker order id reported upstream.
	rootClOrdID sync.Map // string -> string
	// intents keeps the last known intent per root ClOrdID so cancel
	// requests can carry the mandatory side/symbol fields.
	intents sync.Map // string -> *model.OrderIntent
	// pending holds one ack channel per in-flight ClOrdID.
	pending sync.Map // string -> chan *execReport
}

func New(cfg Config) *Gateway {
	gw := &Gateway{cfg: cfg}
	gw.app = newApplication(gw)
	return gw
}

func (g *Gateway) Name() string { return g.cfg.Name }

func (g *Gateway) Connect(ctx context.Context) error {
	f, err := os.Open(g.cfg.ConfigFilepath)
	if err != nil {
		return fmt.Errorf("error opening %v, %v", g.cfg.ConfigFilepath, err)
	}
	defer f.Close() // nolint

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("error reading cfg: %s", err)
	}

	settings, err := quickfix.ParseSettings(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("error parsing cfg: %s", err)
	}

	logFactory, err := file.NewLogFactory(settings)
	if err != nil {
		return fmt.Errorf("error creating log factory: %s", err)
	}

	initiator, err := quickfix.NewInitiator(g.app, quickfix.NewMemoryStoreFactory(), settings, logFactory)
	if err != nil {
		return fmt.Errorf("unable to create initiator: %s", err)
	}
	if err := initiator.Start(); err != nil {
		return fmt.Errorf("unable to start FIX initiator: %s", err)
	}
	g.initiator = initiator

	// The session handshake is asynchronous; wait for logon so callers
	// see an honest health state.
	deadline := time.NewTimer(defaultAckTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for !g.healthy.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("fix gateway %s: logon timed out", g.cfg.Name)
		case <-tick.C:
		}
	}
	return nil
}

func (g *Gateway) Disconnect() {
	if g.initiator != nil {
		g.initiator.Stop()
	}
	g.healthy.Store(false)
}

func (g *Gateway) IsHealthy() bool { return g.healthy.Load() }

func (g *Gateway) Place(ctx context.Context, intent *model.OrderIntent) *model.LegResult {
	if !g.healthy.Load() {
		return model.FailedLeg(g.cfg.Name, "session not logged on")
	}

	clOrdID := newClOrdID()
	g.rootClOrdID.Store(clOrdID, clOrdID)
	g.intents.Store(clOrdID, intent)

	rpt, err := g.send(ctx, clOrdID, buildNewOrderSingle(clOrdID, intent))
	if err != nil {
		g.rootClOrdID.Delete(clOrdID)
		g.intents.Delete(clOrdID)
		return model.FailedLeg(g.cfg.Name, err.Error())
	}
	if rpt.OrdStatus == enum.OrdStatus_REJECTED {
		g.rootClOrdID.Delete(clOrdID)
		g.intents.Delete(clOrdID)
		return model.FailedLeg(g.cfg.Name, rejectText(rpt))
	}
	return &model.LegResult{GatewayName: g.cfg.Name, Success: true, BrokerOrderID: clOrdID}
}

func (g *Gateway) Modify(ctx context.Context, brokerOrderID string, intent *model.OrderIntent) *model.LegResult {
	if !g.healthy.Load() {
		return model.FailedLeg(g.cfg.Name, "session not logged on")
	}

	clOrdID := newClOrdID()
	g.rootClOrdID.Store(clOrdID, brokerOrderID)
	g.intents.Store(brokerOrderID, intent)

	rpt, err := g.send(ctx, clOrdID, buildCancelReplaceRequest(clOrdID, brokerOrderID, intent))
	if err != nil {
		g.rootClOrdID.Delete(clOrdID)
		return model.FailedLeg(g.cfg.Name, err.Error())
	}
	if rpt.OrdStatus == enum.OrdStatus_REJECTED {
		return model.FailedLeg(g.cfg.Name, rejectText(rpt))
	}
	return &model.LegResult{GatewayName: g.cfg.Name, Success: true, BrokerOrderID: brokerOrderID}
}

func (g *Gateway) Cancel(ctx context.Context, brokerOrderID string) *model.LegResult {
	if !g.healthy.Load() {
		return model.FailedLeg(g.cfg.Name, "session not logged on")
	}

	intent, ok := g.loadIntent(brokerOrderID)
	if !ok {
		return model.FailedLeg(g.cfg.Name, "unknown order "+brokerOrderID)
	}

	clOrdID := newClOrdID()
	g.rootClOrdID.Store(clOrdID, brokerOrderID)

	rpt, err := g.send(ctx, clOrdID, buildCancelRequest(clOrdID, brokerOrderID, intent))
	if err != nil {
		g.rootClOrdID.Delete(clOrdID)
		return model.FailedLeg(g.cfg.Name, err.Error())
	}
	if rpt.OrdStatus == enum.OrdStatus_REJECTED {
		return model.FailedLeg(g.cfg.Name, rejectText(rpt))
	}
	return &model.LegResult{GatewayName: g.cfg.Name, Success: true, BrokerOrderID: brokerOrderID}
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

// send dispatches an outbound message and waits for the first matching
// execution report or the context deadline.
func (g *Gateway) send(ctx context.Context, clOrdID string, msg *quickfix.Message) (*execReport, error) {
	sessionID, ok := g.session()
	if !ok {
		return nil, fmt.Errorf("no active session")
	}

	ack := make(chan *execReport, 1)
	g.pending.Store(clOrdID, ack)
	defer g.pending.Delete(clOrdID)

	if err := quickfix.SendToTarget(msg, sessionID); err != nil {
		return nil, fmt.Errorf("send err=%v", err)
	}

	timeout := g.cfg.AckTimeout
	if timeout <= 0 {
		timeout = defaultAckTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case rpt := <-ack:
		return rpt, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("no execution report within %s", timeout)
	}
}

func (g *Gateway) onLogon(sessionID quickfix.SessionID) {
	g.mu.Lock()
	g.sessionID = sessionID
	g.hasSess = true
	g.mu.Unlock()
	g.healthy.Store(true)
	zap.S().Infow("fix session logged on", "gateway", g.cfg.Name, "session", sessionID.String())
}

func (g *Gateway) onLogout(sessionID quickfix.SessionID) {
	g.healthy.Store(false)
	zap.S().Warnw("fix session logged out", "gateway", g.cfg.Name, "session", sessionID.String())
}

func (g *Gateway) onExecutionReport(rpt *execReport) {
	// Resolve any waiter first so Place/Modify/Cancel return promptly.
	if isAck(rpt.OrdStatus) {
		if v, ok := g.pending.Load(rpt.ClOrdID); ok {
			select {
			case v.(chan *execReport) <- rpt:
			default:
			}
		}
	}

	brokerOrderID := rpt.ClOrdID
	if root, ok := g.rootClOrdID.Load(rpt.ClOrdID); ok {
		brokerOrderID = root.(string)
	}

	ev := normalizeEvent(g.cfg.Name, brokerOrderID, rpt)
	if ev == nil {
		zap.S().Debugw("dropping execution report with unmapped status",
			"gateway", g.cfg.Name, "cl_ord_id", rpt.ClOrdID, "ord_status", rpt.OrdStatus)
		return
	}

	g.mu.Lock()
	listeners := make([]duplicator.OrderEventListener, len(g.listeners))
	copy(listeners, g.listeners)
	g.mu.Unlock()
	for _, l := range listeners {
		l(ev)
	}
}

func (g *Gateway) session() (quickfix.SessionID, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sessionID, g.hasSess
}

func (g *Gateway) loadIntent(brokerOrderID string) (*model.OrderIntent, bool) {
	v, ok := g.intents.Load(brokerOrderID)
	if !ok {
		return nil, false
	}
	return v.(*model.OrderIntent), true
}

func newClOrdID() string {
	return uuid.NewString()
}

func rejectText(rpt *execReport) string {
	if rpt.Text != "" {
		return rpt.Text
	}
	return "rejected by broker"
}
