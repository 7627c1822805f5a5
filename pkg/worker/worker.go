// Package worker drains the order-event audit topic into postgres.
package worker

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/minhpham-dev/orderdup/pkg/duplicator/model"
	"github.com/minhpham-dev/orderdup/pkg/duplicator/repo"
	kafkawrapper "github.com/minhpham-dev/orderdup/pkg/kafka_wrapper"
)

type Worker struct {
	orderEvent repo.IOrderEvent
}

func NewWorker(repo repo.IRepo) *Worker {
	return &Worker{
		orderEvent: repo.OrderEvent(),
	}
}

// StartConsumer blocks on the consumer group until ctx is cancelled.
// Each kafka batch becomes one bulk insert; malformed messages are
// skipped so a poison pill cannot wedge the partition.
func (w *Worker) StartConsumer(ctx context.Context, cg *kafkawrapper.ConsumerGroup) error {
	return cg.Run(ctx, func(ctx context.Context, msgs []kafkawrapper.Message) error {
		evs := make([]*model.OrderEvent, 0, len(msgs))
		for _, msg := range msgs {
			var ev model.OrderEvent
			if err := json.Unmarshal(msg.Value, &ev); err != nil {
				zap.S().Warnw("skip malformed order event",
					"topic", msg.Topic, "offset", msg.Offset, "err", err)
				continue
			}
			evs = append(evs, &ev)
		}
		if len(evs) == 0 {
			return nil
		}
		return w.orderEvent.BulkCreate(ctx, evs)
	})
}
