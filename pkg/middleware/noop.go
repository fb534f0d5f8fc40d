package middleware

import (
	"context"

	"github.com/peter-kozarec/equinox-mt5/pkg/common"
)

//goland:noinspection ALL
var (
	NoopTickHdl       = func(context.Context, common.Tick) {}
	NoopTradeHdl      = func(context.Context, common.Trade) {}
	NoopBarHdl        = func(context.Context, common.Bar) {}
	NoopInstrumentHdl = func(context.Context, common.Instrument) {}
	NoopOrderAccHdl   = func(context.Context, common.OrderAccepted) {}
	NoopOrderRjctHdl  = func(context.Context, common.OrderRejected) {}
	NoopOrderRptHdl   = func(context.Context, common.OrderStatusReport) {}
	NoopFillRptHdl    = func(context.Context, common.FillReport) {}
	NoopPosRptHdl     = func(context.Context, common.PositionStatusReport) {}
)
