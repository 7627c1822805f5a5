package rule

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/minhpham-dev/orderdup/pkg/duplicator/model"
)

type tickSizeBand struct {
	MaxPrice int64 `json:"maxPrice"` // 0 = no limit
	Step     int64 `json:"step"`
}

// TickSizeRule validates that a limit price lands on the exchange's tick
// grid. Bands are keyed by exchange.
type TickSizeRule struct {
	Config map[string][]tickSizeBand
}

func NewTickSizeRuleFromFile(path string) (*TickSizeRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg map[string][]tickSizeBand
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &TickSizeRule{Config: cfg}, nil
}

func (r *TickSizeRule) Check(intent *model.OrderIntent) error {
	bands, ok := r.Config[intent.Exchange]
	if !ok { // no config -> no rule
		return nil
	}
	if intent.PriceType == model.PriceTypeMarket {
		return nil
	}

	price := intent.Price.IntPart()
	for _, band := range bands {
		if band.MaxPrice == 0 || price <= band.MaxPrice {
			step := decimal.NewFromInt(band.Step)
			if !intent.Price.Mod(step).IsZero() {
				return fmt.Errorf("invalid tick size for %s on %s", intent.Price, intent.Exchange)
			}
			return nil
		}
	}

	return nil
}
