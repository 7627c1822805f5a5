package repo

import (
	"context"

	"github.com/minhpham-dev/orderdup/pkg/duplicator/model"
)

// IOrder persists duplicated-order snapshots, one row per logical id.
type IOrder interface {
	Save(ctx context.Context, order *model.DuplicatedOrder) error
	Delete(ctx context.Context, logicalID string) error
	LoadAll(ctx context.Context) ([]*model.DuplicatedOrder, error)
}

// IOrderEvent appends the normalized event audit trail.
type IOrderEvent interface {
	Create(ctx context.Context, ev *model.OrderEvent) error
	BulkCreate(ctx context.Context, evs []*model.OrderEvent) error
}
