package rule

import (
	"fmt"

	"github.com/minhpham-dev/orderdup/pkg/duplicator/model"
)

// BasicRule rejects intents no broker would accept: non-positive
// quantity, and non-positive price on limit orders.
type BasicRule struct{}

func (BasicRule) Check(intent *model.OrderIntent) error {
	if intent.Symbol == "" {
		return fmt.Errorf("empty symbol")
	}
	if intent.Side != model.OrderSideBuy && intent.Side != model.OrderSideSell {
		return fmt.Errorf("invalid side %q", intent.Side)
	}
	if intent.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", intent.Quantity)
	}
	if intent.PriceType != model.PriceTypeMarket && !intent.Price.IsPositive() {
		return fmt.Errorf("price must be positive for %s orders", intent.PriceType)
	}
	return nil
}
