package common

import (
	"time"

	"github.com/peter-kozarec/equinox-mt5/pkg/utility"
	"github.com/peter-kozarec/equinox-mt5/pkg/utility/fixed"
)

type PositionSide int

const (
	PositionSideFlat PositionSide = iota
	PositionSideLong
	PositionSideShort
)

func (s PositionSide) String() string {
	switch s {
	case PositionSideLong:
		return "long"
	case PositionSideShort:
		return "short"
	}
	return "flat"
}

type OrderStatusReport struct {
	ReportId     utility.ReportID `json:"report_id"`
	Symbol       string           `json:"symbol"`
	OrderId      OrderId          `json:"order_id"`
	Side         OrderSide        `json:"side"`
	Type         OrderType        `json:"type"`
	Status       OrderStatus      `json:"status"`
	Quantity     fixed.Point      `json:"quantity"`
	FilledQty    fixed.Point      `json:"filled_qty"`
	Price        fixed.Point      `json:"price,omitempty"`
	TriggerPrice fixed.Point      `json:"trigger_price,omitempty"`
	StopLoss     fixed.Point      `json:"stop_loss,omitempty"`
	TakeProfit   fixed.Point      `json:"take_profit,omitempty"`
	Comment      string           `json:"comment,omitempty"`
	AcceptedAt   time.Time        `json:"accepted_at"`
	LastAt       time.Time        `json:"last_at"`
	TimeStamp    time.Time        `json:"ts"`
}

type FillReport struct {
	ReportId    utility.ReportID `json:"report_id"`
	Symbol      string           `json:"symbol"`
	OrderId     OrderId          `json:"order_id"`
	TradeId     string           `json:"trade_id"`
	PositionId  uint64           `json:"position_id,omitempty"`
	Side        OrderSide        `json:"side"`
	LastQty     fixed.Point      `json:"last_qty"`
	LastPx      fixed.Point      `json:"last_px"`
	Commission  fixed.Point      `json:"commission"`
	Swap        fixed.Point      `json:"swap"`
	Fee         fixed.Point      `json:"fee"`
	RealizedPnl fixed.Point      `json:"realized_pnl"`
	FilledAt    time.Time        `json:"filled_at"`
	TimeStamp   time.Time        `json:"ts"`
}

type PositionStatusReport struct {
	ReportId      utility.ReportID `json:"report_id"`
	Symbol        string           `json:"symbol"`
	PositionId    uint64           `json:"position_id"`
	Side          PositionSide     `json:"side"`
	Quantity      fixed.Point      `json:"quantity"`
	OpenPrice     fixed.Point      `json:"open_price"`
	CurrentPrice  fixed.Point      `json:"current_price"`
	StopLoss      fixed.Point      `json:"stop_loss,omitempty"`
	TakeProfit    fixed.Point      `json:"take_profit,omitempty"`
	Swap          fixed.Point      `json:"swap"`
	UnrealizedPnl fixed.Point      `json:"unrealized_pnl"`
	OpenedAt      time.Time        `json:"opened_at"`
	TimeStamp     time.Time        `json:"ts"`
}
