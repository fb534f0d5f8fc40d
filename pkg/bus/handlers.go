package bus

import (
	"context"

	"github.com/peter-kozarec/equinox-mt5/pkg/common"
)

type EventHandler[T any] func(context.Context, T)

type TickEventHandler = EventHandler[common.Tick]
type TradeEventHandler = EventHandler[common.Trade]
type BarEventHandler = EventHandler[common.Bar]
type InstrumentEventHandler = EventHandler[common.Instrument]
type OrderAcceptedEventHandler = EventHandler[common.OrderAccepted]
type OrderRejectedEventHandler = EventHandler[common.OrderRejected]
type OrderStatusReportEventHandler = EventHandler[common.OrderStatusReport]
type FillReportEventHandler = EventHandler[common.FillReport]
type PositionStatusReportEventHandler = EventHandler[common.PositionStatusReport]

func MergeHandlers[T any](handlers ...EventHandler[T]) EventHandler[T] {
	return func(ctx context.Context, event T) {
		for _, handler := range handlers {
			if handler != nil {
				handler(ctx, event)
			}
		}
	}
}
