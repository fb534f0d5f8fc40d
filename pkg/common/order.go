package common

import (
	"time"

	"github.com/peter-kozarec/equinox-mt5/pkg/utility"
	"github.com/peter-kozarec/equinox-mt5/pkg/utility/fixed"
)

type OrderCommand int
type OrderType int
type OrderSide int
type OrderStatus int
type TimeInForce int

// OrderId is the broker ticket of a resting or historical order.
type OrderId uint64

const (
	OrderCommandSubmit OrderCommand = iota
	OrderCommandModify
	OrderCommandCancel
)

const (
	OrderTypeMarket OrderType = iota
	OrderTypeLimit
	OrderTypeStop
	OrderTypeStopLimit
)

const (
	OrderSideBuy OrderSide = iota
	OrderSideSell
)

const (
	OrderStatusSubmitted OrderStatus = iota
	OrderStatusAccepted
	OrderStatusRejected
	OrderStatusCanceled
	OrderStatusExpired
	OrderStatusPendingUpdate
	OrderStatusPendingCancel
	OrderStatusPartiallyFilled
	OrderStatusFilled
)

const (
	TimeInForceGoodTillCancel TimeInForce = iota
	TimeInForceImmediateOrCancel
	TimeInForceFillOrKill
	TimeInForceGoodTillDate
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeMarket:
		return "market"
	case OrderTypeLimit:
		return "limit"
	case OrderTypeStop:
		return "stop"
	case OrderTypeStopLimit:
		return "stop_limit"
	}
	return "unknown"
}

func (s OrderSide) String() string {
	if s == OrderSideBuy {
		return "buy"
	}
	return "sell"
}

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusSubmitted:
		return "submitted"
	case OrderStatusAccepted:
		return "accepted"
	case OrderStatusRejected:
		return "rejected"
	case OrderStatusCanceled:
		return "canceled"
	case OrderStatusExpired:
		return "expired"
	case OrderStatusPendingUpdate:
		return "pending_update"
	case OrderStatusPendingCancel:
		return "pending_cancel"
	case OrderStatusPartiallyFilled:
		return "partially_filled"
	case OrderStatusFilled:
		return "filled"
	}
	return "unknown"
}

// Order carries a host order or command. Price is the limit price, TriggerPrice
// the stop trigger. OrderId is required for modify and cancel commands.
type Order struct {
	Command      OrderCommand `json:"command"`
	Type         OrderType    `json:"type"`
	Side         OrderSide    `json:"side"`
	Price        fixed.Point  `json:"price"`
	TriggerPrice fixed.Point  `json:"trigger_price,omitempty"`
	Size         fixed.Point  `json:"size"`
	TimeInForce  TimeInForce  `json:"time_in_force"`
	ExpireTime   time.Time    `json:"expire_time"`
	StopLoss     fixed.Point  `json:"stop_loss,omitempty"`
	TakeProfit   fixed.Point  `json:"take_profit,omitempty"`
	OrderId      OrderId      `json:"order_id,omitempty"`
	Comment      string       `json:"comment,omitempty"`

	Source      string              `json:"src,omitempty"`
	Symbol      string              `json:"symbol,omitempty"`
	ExecutionId utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
}

type OrderAccepted struct {
	OriginalOrder Order   `json:"original_order"`
	OrderId       OrderId `json:"order_id"`
	DealId        uint64  `json:"deal_id,omitempty"`
	RetCode       int     `json:"retcode"`

	Source      string              `json:"src,omitempty"`
	ExecutionId utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
}

type OrderRejected struct {
	OriginalOrder Order  `json:"original_order"`
	RetCode       int    `json:"retcode"`
	Reason        string `json:"reason,omitempty"`

	Source      string              `json:"src,omitempty"`
	ExecutionId utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
}
