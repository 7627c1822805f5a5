package fixgateway

import (
	"testing"
	"time"

	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/tag"
	"github.com/shopspring/decimal"

	"github.com/minhpham-dev/orderdup/pkg/duplicator/model"
)

func limitIntent() *model.OrderIntent {
	return &model.OrderIntent{
		Symbol:    "SBIN-EQ",
		Side:      model.OrderSideBuy,
		Quantity:  10,
		Price:     decimal.NewFromFloat(101.50),
		Exchange:  "NSE",
		PriceType: model.PriceTypeLimit,
	}
}

func TestBuildNewOrderSingle(t *testing.T) {
	msg := buildNewOrderSingle("CL1", limitIntent())

	if got, _ := msg.Body.GetString(tag.ClOrdID); got != "CL1" {
		t.Errorf("ClOrdID = %q", got)
	}
	if got, _ := msg.Body.GetString(tag.Symbol); got != "SBIN-EQ" {
		t.Errorf("Symbol = %q", got)
	}
	if got, _ := msg.Body.GetString(tag.Side); got != string(enum.Side_BUY) {
		t.Errorf("Side = %q", got)
	}
	if got, _ := msg.Body.GetString(tag.OrdType); got != string(enum.OrdType_LIMIT) {
		t.Errorf("OrdType = %q", got)
	}
	if got, _ := msg.Body.GetString(tag.Price); got != "101.50" {
		t.Errorf("Price = %q", got)
	}
	if got, _ := msg.Body.GetString(tag.OrderQty); got != "10" {
		t.Errorf("OrderQty = %q", got)
	}
}

func TestBuildNewOrderSingleMarketOmitsPrice(t *testing.T) {
	intent := limitIntent()
	intent.PriceType = model.PriceTypeMarket
	intent.Price = decimal.Zero

	msg := buildNewOrderSingle("CL2", intent)
	if msg.Body.Has(tag.Price) {
		t.Error("market order must not carry a price")
	}
	if got, _ := msg.Body.GetString(tag.OrdType); got != string(enum.OrdType_MARKET) {
		t.Errorf("OrdType = %q", got)
	}
}

func TestBuildCancelRequestChainsClOrdIDs(t *testing.T) {
	msg := buildCancelRequest("CL3", "CL1", limitIntent())

	if got, _ := msg.Body.GetString(tag.ClOrdID); got != "CL3" {
		t.Errorf("ClOrdID = %q", got)
	}
	if got, _ := msg.Body.GetString(tag.OrigClOrdID); got != "CL1" {
		t.Errorf("OrigClOrdID = %q", got)
	}
}

func TestBuildCancelReplaceCarriesNewTerms(t *testing.T) {
	intent := limitIntent()
	intent.Quantity = 25
	intent.Price = decimal.NewFromInt(99)

	msg := buildCancelReplaceRequest("CL4", "CL1", intent)
	if got, _ := msg.Body.GetString(tag.OrderQty); got != "25" {
		t.Errorf("OrderQty = %q", got)
	}
	if got, _ := msg.Body.GetString(tag.Price); got != "99.00" {
		t.Errorf("Price = %q", got)
	}
}

func TestNormalizeEventStatusMapping(t *testing.T) {
	cases := []struct {
		status enum.OrdStatus
		want   model.OrderState
	}{
		{enum.OrdStatus_NEW, model.OrderStateOpen},
		{enum.OrdStatus_PARTIALLY_FILLED, model.OrderStateOpen},
		{enum.OrdStatus_FILLED, model.OrderStateComplete},
		{enum.OrdStatus_CANCELED, model.OrderStateCancelled},
		{enum.OrdStatus_REJECTED, model.OrderStateRejected},
		{enum.OrdStatus_EXPIRED, model.OrderStateCancelled},
	}
	for _, tc := range cases {
		ev := normalizeEvent("broker_a", "CL1", &execReport{
			ClOrdID:      "CL1",
			OrdStatus:    tc.status,
			CumQty:       decimal.NewFromInt(5),
			AvgPx:        decimal.NewFromFloat(101.5),
			TransactTime: time.Now(),
		})
		if ev == nil {
			t.Fatalf("status %v dropped", tc.status)
		}
		if ev.Status != tc.want {
			t.Errorf("status %v -> %s, want %s", tc.status, ev.Status, tc.want)
		}
		if ev.GatewayName != "broker_a" || ev.BrokerOrderID != "CL1" {
			t.Errorf("unexpected event identity: %+v", ev)
		}
		if ev.FilledQuantity != 5 {
			t.Errorf("FilledQuantity = %d", ev.FilledQuantity)
		}
	}
}

func TestNormalizeEventDropsUnknownStatus(t *testing.T) {
	ev := normalizeEvent("broker_a", "CL1", &execReport{
		ClOrdID:   "CL1",
		OrdStatus: enum.OrdStatus_STOPPED,
	})
	if ev != nil {
		t.Fatalf("unmapped status must be dropped, got %+v", ev)
	}
}
