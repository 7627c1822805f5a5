package audit

import (
	"context"
	"fmt"

	kafkawrapper "github.com/minhpham-dev/orderdup/pkg/kafka_wrapper"

	"github.com/minhpham-dev/orderdup/pkg/duplicator/model"
)

const DefaultTopic = "orderdup.order_events"

// KafkaSink publishes every ingested order event to the audit topic.
// Events are keyed by (gateway, broker order id) so one leg's events land
// on one partition in order.
type KafkaSink struct {
	producer *kafkawrapper.Producer
	topic    string
}

func NewKafkaSink(producer *kafkawrapper.Producer, topic string) *KafkaSink {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Record(ctx context.Context, ev *model.OrderEvent) error {
	key := fmt.Sprintf("%s|%s", ev.GatewayName, ev.BrokerOrderID)
	return s.producer.PublishJSON(ctx, s.topic, key, ev, nil)
}
