package rule

import "github.com/minhpham-dev/orderdup/pkg/duplicator/model"

// Rule validates an intent before any gateway is asked to place it.
type Rule interface {
	Check(intent *model.OrderIntent) error
}
