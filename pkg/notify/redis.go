package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/minhpham-dev/orderdup/pkg/duplicator/model"
)

const defaultChannel = "orderdup.notifications"

// RedisNotifier publishes engine notifications as JSON onto a redis
// channel. The presentation layer (chat bot, UI push) subscribes there.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = defaultChannel
	}
	return &RedisNotifier{client: client, channel: channel}
}

type notification struct {
	Kind      string                 `json:"kind"`
	Timestamp time.Time              `json:"timestamp"`
	Order     *orderPayload          `json:"order,omitempty"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
}

type orderPayload struct {
	LogicalID      string            `json:"logical_id"`
	Symbol         string            `json:"symbol"`
	Side           string            `json:"side"`
	Quantity       int64             `json:"quantity"`
	Price          string            `json:"price"`
	State          string            `json:"state"`
	LegIDs         map[string]string `json:"leg_ids"`
	FilledQuantity int64             `json:"filled_quantity"`
	AvgPrice       string            `json:"avg_price"`
}

func (n *RedisNotifier) OrderTerminal(ctx context.Context, order *model.DuplicatedOrder) {
	n.publish(ctx, &notification{
		Kind:      "order_terminal",
		Timestamp: time.Now(),
		Order: &orderPayload{
			LogicalID:      order.LogicalID,
			Symbol:         order.Intent.Symbol,
			Side:           string(order.Intent.Side),
			Quantity:       order.Intent.Quantity,
			Price:          order.Intent.Price.String(),
			State:          string(order.State),
			LegIDs:         order.LegIDs,
			FilledQuantity: order.FilledQuantity,
			AvgPrice:       order.AvgPrice.String(),
		},
	})
}

func (n *RedisNotifier) AllGatewaysDown(ctx context.Context) {
	n.publish(ctx, &notification{
		Kind:      "all_gateways_down",
		Timestamp: time.Now(),
	})
}

func (n *RedisNotifier) publish(ctx context.Context, msg *notification) {
	payload, err := json.Marshal(msg)
	if err != nil {
		zap.S().Errorw("marshal notification failed", "kind", msg.Kind, "err", err)
		return
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		zap.S().Errorw("publish notification failed", "kind", msg.Kind, "err", err)
	}
}
