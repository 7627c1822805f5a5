package fixgateway

import (
	"time"

	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/field"
	"github.com/quickfixgo/fix44/newordersingle"
	"github.com/quickfixgo/fix44/ordercancelreplacerequest"
	"github.com/quickfixgo/fix44/ordercancelrequest"
	"github.com/quickfixgo/quickfix"
	"github.com/shopspring/decimal"

	"github.com/minhpham-dev/orderdup/pkg/duplicator/model"
)

var (
	sideMapping = map[model.OrderSide]enum.Side{
		model.OrderSideBuy:  enum.Side_BUY,
		model.OrderSideSell: enum.Side_SELL,
	}

	ordTypeMapping = map[model.PriceType]enum.OrdType{
		model.PriceTypeLimit:          enum.OrdType_LIMIT,
		model.PriceTypeMarket:         enum.OrdType_MARKET,
		model.PriceTypeStopLoss:       enum.OrdType_STOP_LIMIT,
		model.PriceTypeStopLossMarket: enum.OrdType_STOP,
	}

	// ordStatusMapping normalizes broker-side statuses to ledger states.
	ordStatusMapping = map[enum.OrdStatus]model.OrderState{
		enum.OrdStatus_PENDING_NEW:      model.OrderStatePending,
		enum.OrdStatus_NEW:              model.OrderStateOpen,
		enum.OrdStatus_PARTIALLY_FILLED: model.OrderStateOpen,
		enum.OrdStatus_FILLED:           model.OrderStateComplete,
		enum.OrdStatus_CANCELED:         model.OrderStateCancelled,
		enum.OrdStatus_REJECTED:         model.OrderStateRejected,
		enum.OrdStatus_EXPIRED:          model.OrderStateCancelled,
	}
)

const qtyScale = 0

func buildNewOrderSingle(clOrdID string, intent *model.OrderIntent) *quickfix.Message {
	msg := newordersingle.New(
		field.NewClOrdID(clOrdID),
		field.NewSide(sideMapping[intent.Side]),
		field.NewTransactTime(time.Now()),
		field.NewOrdType(ordTypeMapping[intent.PriceType]),
	)
	msg.SetSymbol(intent.Symbol)
	msg.SetOrderQty(decimal.NewFromInt(intent.Quantity), qtyScale)
	if intent.PriceType != model.PriceTypeMarket {
		msg.SetPrice(intent.Price, 2)
	}
	msg.SetTimeInForce(enum.TimeInForce_DAY)
	if intent.Exchange != "" {
		msg.SetExDestination(enum.ExDestination(intent.Exchange))
	}
	if intent.Remark != "" {
		msg.SetText(intent.Remark)
	}
	return msg.ToMessage()
}

func buildCancelRequest(clOrdID, origClOrdID string, intent *model.OrderIntent) *quickfix.Message {
	msg := ordercancelrequest.New(
		field.NewOrigClOrdID(origClOrdID),
		field.NewClOrdID(clOrdID),
		field.NewSide(sideMapping[intent.Side]),
		field.NewTransactTime(time.Now()),
	)
	msg.SetSymbol(intent.Symbol)
	msg.SetOrderQty(decimal.NewFromInt(intent.Quantity), qtyScale)
	return msg.ToMessage()
}

func buildCancelReplaceRequest(clOrdID, origClOrdID string, intent *model.OrderIntent) *quickfix.Message {
	msg := ordercancelreplacerequest.New(
		field.NewOrigClOrdID(origClOrdID),
		field.NewClOrdID(clOrdID),
		field.NewSide(sideMapping[intent.Side]),
		field.NewTransactTime(time.Now()),
		field.NewOrdType(ordTypeMapping[intent.PriceType]),
	)
	msg.SetSymbol(intent.Symbol)
	msg.SetOrderQty(decimal.NewFromInt(intent.Quantity), qtyScale)
	if intent.PriceType != model.PriceTypeMarket {
		msg.SetPrice(intent.Price, 2)
	}
	return msg.ToMessage()
}

// normalizeEvent converts an execution report into a gateway-neutral
// order event. Unknown statuses return nil and are dropped upstream.
func normalizeEvent(gatewayName, brokerOrderID string, rpt *execReport) *model.OrderEvent {
	state, ok := ordStatusMapping[rpt.OrdStatus]
	if !ok {
		return nil
	}
	return &model.OrderEvent{
		GatewayName:    gatewayName,
		BrokerOrderID:  brokerOrderID,
		Status:         state,
		FilledQuantity: rpt.CumQty.IntPart(),
		AvgPrice:       rpt.AvgPx,
		Timestamp:      rpt.TransactTime,
	}
}
