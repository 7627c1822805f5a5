package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

type PriceType string

const (
	PriceTypeLimit          PriceType = "LMT"
	PriceTypeMarket         PriceType = "MKT"
	PriceTypeStopLoss       PriceType = "SL"
	PriceTypeStopLossMarket PriceType = "SL-M"
)

type ProductType string

const (
	ProductTypeIntraday ProductType = "I"
	ProductTypeDelivery ProductType = "D"
	ProductTypeMargin   ProductType = "M"
)

// OrderIntent is the caller's request, duplicated onto every healthy
// gateway. Immutable once constructed.
type OrderIntent struct {
	Symbol      string
	Side        OrderSide
	Quantity    int64
	Price       decimal.Decimal
	Exchange    string
	ProductType ProductType
	PriceType   PriceType
	Remark      string
}

// LegResult is the outcome of applying one OrderIntent to one gateway.
type LegResult struct {
	GatewayName   string
	Success       bool
	BrokerOrderID string
	ErrorMessage  string
}

func FailedLeg(gateway, msg string) *LegResult {
	return &LegResult{GatewayName: gateway, ErrorMessage: msg}
}

type OrderState string

const (
	OrderStatePending   OrderState = "PENDING"
	OrderStateOpen      OrderState = "OPEN"
	OrderStateComplete  OrderState = "COMPLETE"
	OrderStateCancelled OrderState = "CANCELLED"
	OrderStateRejected  OrderState = "REJECTED"
)

// IsTerminal reports whether no further transition is permitted.
func (s OrderState) IsTerminal() bool {
	switch s {
	case OrderStateComplete, OrderStateCancelled, OrderStateRejected:
		return true
	}
	return false
}

// DuplicatedOrder is the logical order spanning one leg per gateway that
// accepted it. Owned exclusively by the ledger; callers receive copies.
type DuplicatedOrder struct {
	LogicalID string
	Intent    OrderIntent
	// LegIDs maps gateway name to the broker-assigned order id.
	// Only successful legs appear here.
	LegIDs map[string]string
	State  OrderState

	FilledQuantity int64
	AvgPrice       decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
	Remark    string
}

// Clone returns a snapshot safe to hand outside the ledger.
func (o *DuplicatedOrder) Clone() *DuplicatedOrder {
	cp := *o
	cp.LegIDs = make(map[string]string, len(o.LegIDs))
	for k, v := range o.LegIDs {
		cp.LegIDs[k] = v
	}
	return &cp
}

// OrderEvent is a normalized status event from one gateway's stream.
type OrderEvent struct {
	GatewayName    string
	BrokerOrderID  string
	Status         OrderState
	FilledQuantity int64
	AvgPrice       decimal.Decimal
	Timestamp      time.Time
}

// QuoteEvent is a normalized market-data tick. The engine does not
// consume these itself; they are forwarded to whoever subscribed.
type QuoteEvent struct {
	GatewayName string
	Symbol      string
	Exchange    string
	LastPrice   decimal.Decimal
	Volume      int64
	Timestamp   time.Time
}
