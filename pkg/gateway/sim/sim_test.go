package sim

import (
	"context"
	"testing"
	"time"

	"github.com/minhpham-dev/orderdup/pkg/duplicator/model"
)

func buyIntent() *model.OrderIntent {
	return &model.OrderIntent{
		Symbol:    "SBIN-EQ",
		Side:      model.OrderSideBuy,
		Quantity:  10,
		PriceType: model.PriceTypeMarket,
	}
}

func TestPlaceRequiresConnection(t *testing.T) {
	g := New(Config{Name: "paper"})
	res := g.Place(context.Background(), buyIntent())
	if res.Success {
		t.Fatal("place must fail before Connect")
	}

	if err := g.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	res = g.Place(context.Background(), buyIntent())
	if !res.Success || res.BrokerOrderID == "" {
		t.Fatalf("place failed after connect: %+v", res)
	}

	g.Disconnect()
	if g.IsHealthy() {
		t.Error("disconnect must clear health")
	}
}

func TestModifyAndCancelKnownOrder(t *testing.T) {
	g := New(Config{Name: "paper"})
	_ = g.Connect(context.Background())

	res := g.Place(context.Background(), buyIntent())
	if !res.Success {
		t.Fatal(res.ErrorMessage)
	}

	if mod := g.Modify(context.Background(), res.BrokerOrderID, buyIntent()); !mod.Success {
		t.Errorf("modify failed: %s", mod.ErrorMessage)
	}
	if cancel := g.Cancel(context.Background(), res.BrokerOrderID); !cancel.Success {
		t.Errorf("cancel failed: %s", cancel.ErrorMessage)
	}
	if again := g.Cancel(context.Background(), res.BrokerOrderID); again.Success {
		t.Error("cancelling twice must fail")
	}
}

func TestCancelEmitsCancelledEvent(t *testing.T) {
	g := New(Config{Name: "paper"})
	_ = g.Connect(context.Background())

	events := make(chan *model.OrderEvent, 4)
	g.SubscribeOrderEvents(func(ev *model.OrderEvent) { events <- ev })

	res := g.Place(context.Background(), buyIntent())
	g.Cancel(context.Background(), res.BrokerOrderID)

	select {
	case ev := <-events:
		if ev.Status != model.OrderStateCancelled || ev.BrokerOrderID != res.BrokerOrderID {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no cancelled event")
	}
}

func TestAutoFillRunsTheFullLifecycle(t *testing.T) {
	g := New(Config{
		Name:          "paper",
		AutoFill:      true,
		AutoFillDelay: time.Millisecond,
	})
	_ = g.Connect(context.Background())

	events := make(chan *model.OrderEvent, 4)
	g.SubscribeOrderEvents(func(ev *model.OrderEvent) { events <- ev })

	intent := buyIntent()
	res := g.Place(context.Background(), intent)
	if !res.Success {
		t.Fatal(res.ErrorMessage)
	}

	want := []model.OrderState{model.OrderStateOpen, model.OrderStateComplete}
	for _, state := range want {
		select {
		case ev := <-events:
			if ev.Status != state {
				t.Fatalf("expected %s, got %s", state, ev.Status)
			}
			if state == model.OrderStateComplete && ev.FilledQuantity != intent.Quantity {
				t.Errorf("fill quantity = %d", ev.FilledQuantity)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing %s event", state)
		}
	}
}

func TestConfiguredFailureRate(t *testing.T) {
	g := New(Config{Name: "paper", FailureRate: 1})
	_ = g.Connect(context.Background())

	res := g.Place(context.Background(), buyIntent())
	if res.Success {
		t.Fatal("failure rate 1 must reject every placement")
	}
}

func TestLatencyHonorsContext(t *testing.T) {
	g := New(Config{Name: "paper", Latency: time.Second})
	_ = g.Connect(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	started := time.Now()
	res := g.Place(ctx, buyIntent())
	if res.Success {
		t.Fatal("cancelled context must fail the call")
	}
	if elapsed := time.Since(started); elapsed > 500*time.Millisecond {
		t.Errorf("place did not respect the context deadline: %s", elapsed)
	}
}
