package rule

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/minhpham-dev/orderdup/pkg/duplicator/model"
)

func validIntent() *model.OrderIntent {
	return &model.OrderIntent{
		Symbol:    "SBIN-EQ",
		Side:      model.OrderSideBuy,
		Quantity:  10,
		Price:     decimal.NewFromInt(100),
		Exchange:  "NSE",
		PriceType: model.PriceTypeLimit,
	}
}

func TestBasicRuleAcceptsValidIntent(t *testing.T) {
	if err := (BasicRule{}).Check(validIntent()); err != nil {
		t.Fatalf("valid intent rejected: %v", err)
	}
}

func TestBasicRuleRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*model.OrderIntent)
	}{
		{"empty symbol", func(i *model.OrderIntent) { i.Symbol = "" }},
		{"bad side", func(i *model.OrderIntent) { i.Side = "HOLD" }},
		{"zero quantity", func(i *model.OrderIntent) { i.Quantity = 0 }},
		{"negative quantity", func(i *model.OrderIntent) { i.Quantity = -5 }},
		{"zero limit price", func(i *model.OrderIntent) { i.Price = decimal.Zero }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			intent := validIntent()
			tc.mutate(intent)
			if err := (BasicRule{}).Check(intent); err == nil {
				t.Error("expected rejection")
			}
		})
	}
}

func TestBasicRuleMarketOrderNeedsNoPrice(t *testing.T) {
	intent := validIntent()
	intent.PriceType = model.PriceTypeMarket
	intent.Price = decimal.Zero
	if err := (BasicRule{}).Check(intent); err != nil {
		t.Fatalf("market order with no price rejected: %v", err)
	}
}

func writeTickConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tick_size.json")
	data := `{
		"HOSE": [
			{"maxPrice": 10000, "step": 10},
			{"maxPrice": 50000, "step": 50},
			{"maxPrice": 0, "step": 100}
		]
	}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTickSizeRule(t *testing.T) {
	r, err := NewTickSizeRuleFromFile(writeTickConfig(t))
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		price  int64
		wantOK bool
	}{
		{9990, true},
		{9995, false},
		{10050, true},
		{10060, false},
		{60000, true},
		{60050, false},
	}
	for _, tc := range cases {
		intent := validIntent()
		intent.Exchange = "HOSE"
		intent.Price = decimal.NewFromInt(tc.price)
		err := r.Check(intent)
		if tc.wantOK && err != nil {
			t.Errorf("price %d: unexpected rejection: %v", tc.price, err)
		}
		if !tc.wantOK && err == nil {
			t.Errorf("price %d: expected rejection", tc.price)
		}
	}
}

func TestTickSizeRuleIgnoresUnknownExchangeAndMarketOrders(t *testing.T) {
	r, err := NewTickSizeRuleFromFile(writeTickConfig(t))
	if err != nil {
		t.Fatal(err)
	}

	intent := validIntent()
	intent.Exchange = "NSE"
	intent.Price = decimal.NewFromInt(9995)
	if err := r.Check(intent); err != nil {
		t.Errorf("exchange without bands must pass: %v", err)
	}

	intent = validIntent()
	intent.Exchange = "HOSE"
	intent.PriceType = model.PriceTypeMarket
	intent.Price = decimal.NewFromInt(9995)
	if err := r.Check(intent); err != nil {
		t.Errorf("market orders must pass: %v", err)
	}
}
