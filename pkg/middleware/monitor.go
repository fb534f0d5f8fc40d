package middleware

import (
	"context"

	"go.uber.org/zap"

	"github.com/peter-kozarec/equinox-mt5/pkg/bus"
	"github.com/peter-kozarec/equinox-mt5/pkg/common"
)

type MonitorFlags uint16

//goland:noinspection GoUnusedConst
const (
	MonitorNone MonitorFlags = 1 << iota
	MonitorAll
	MonitorTicks
	MonitorTrades
	MonitorBars
	MonitorInstruments
	MonitorOrdersAccepted
	MonitorOrdersRejected
	MonitorReports
)

var monitorFlagNames = map[string]MonitorFlags{
	"none":            MonitorNone,
	"all":             MonitorAll,
	"ticks":           MonitorTicks,
	"trades":          MonitorTrades,
	"bars":            MonitorBars,
	"instruments":     MonitorInstruments,
	"orders_accepted": MonitorOrdersAccepted,
	"orders_rejected": MonitorOrdersRejected,
	"reports":         MonitorReports,
}

// ParseMonitorFlags combines named flags. Unknown names are returned separately.
func ParseMonitorFlags(names []string) (MonitorFlags, []string) {
	var flags MonitorFlags
	var unknown []string
	for _, name := range names {
		f, ok := monitorFlagNames[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		flags |= f
	}
	return flags, unknown
}

// Monitor logs events selected by flags before passing them on.
type Monitor struct {
	logger *zap.Logger
	flags  MonitorFlags
}

func NewMonitor(logger *zap.Logger, flags MonitorFlags) *Monitor {
	return &Monitor{
		logger: logger,
		flags:  flags,
	}
}

func (m *Monitor) enabled(flag MonitorFlags) bool {
	return m.flags&flag != 0 || m.flags&MonitorAll != 0
}

func (m *Monitor) WithTick(handler bus.TickEventHandler) bus.TickEventHandler {
	return func(ctx context.Context, tick common.Tick) {
		if m.enabled(MonitorTicks) {
			m.logger.Info("tick",
				zap.String("symbol", tick.Symbol),
				zap.Stringer("bid", tick.Bid),
				zap.Stringer("ask", tick.Ask),
				zap.Time("ts", tick.TimeStamp))
		}
		handler(ctx, tick)
	}
}

func (m *Monitor) WithTrade(handler bus.TradeEventHandler) bus.TradeEventHandler {
	return func(ctx context.Context, trade common.Trade) {
		if m.enabled(MonitorTrades) {
			m.logger.Info("trade",
				zap.String("symbol", trade.Symbol),
				zap.Stringer("price", trade.Price),
				zap.Stringer("size", trade.Size),
				zap.Stringer("aggressor", trade.Aggressor),
				zap.Time("ts", trade.TimeStamp))
		}
		handler(ctx, trade)
	}
}

func (m *Monitor) WithBar(handler bus.BarEventHandler) bus.BarEventHandler {
	return func(ctx context.Context, bar common.Bar) {
		if m.enabled(MonitorBars) {
			m.logger.Info("bar",
				zap.String("symbol", bar.Symbol),
				zap.Duration("period", bar.Period),
				zap.Time("open_time", bar.OpenTime),
				zap.Stringer("open", bar.Open),
				zap.Stringer("high", bar.High),
				zap.Stringer("low", bar.Low),
				zap.Stringer("close", bar.Close),
				zap.Stringer("volume", bar.Volume))
		}
		handler(ctx, bar)
	}
}

func (m *Monitor) WithInstrument(handler bus.InstrumentEventHandler) bus.InstrumentEventHandler {
	return func(ctx context.Context, instrument common.Instrument) {
		if m.enabled(MonitorInstruments) {
			m.logger.Info("instrument", instrument.Fields()...)
		}
		handler(ctx, instrument)
	}
}

func (m *Monitor) WithOrderAccepted(handler bus.OrderAcceptedEventHandler) bus.OrderAcceptedEventHandler {
	return func(ctx context.Context, accepted common.OrderAccepted) {
		if m.enabled(MonitorOrdersAccepted) {
			m.logger.Info("order accepted",
				zap.String("symbol", accepted.OriginalOrder.Symbol),
				zap.Uint64("order_id", uint64(accepted.OrderId)),
				zap.Int("retcode", accepted.RetCode))
		}
		handler(ctx, accepted)
	}
}

func (m *Monitor) WithOrderRejected(handler bus.OrderRejectedEventHandler) bus.OrderRejectedEventHandler {
	return func(ctx context.Context, rejected common.OrderRejected) {
		if m.enabled(MonitorOrdersRejected) {
			m.logger.Info("order rejected",
				zap.String("symbol", rejected.OriginalOrder.Symbol),
				zap.Int("retcode", rejected.RetCode),
				zap.String("reason", rejected.Reason))
		}
		handler(ctx, rejected)
	}
}

func (m *Monitor) WithOrderStatusReport(handler bus.OrderStatusReportEventHandler) bus.OrderStatusReportEventHandler {
	return func(ctx context.Context, report common.OrderStatusReport) {
		if m.enabled(MonitorReports) {
			m.logger.Info("order status report",
				zap.String("symbol", report.Symbol),
				zap.Uint64("order_id", uint64(report.OrderId)),
				zap.Stringer("status", report.Status))
		}
		handler(ctx, report)
	}
}

func (m *Monitor) WithFillReport(handler bus.FillReportEventHandler) bus.FillReportEventHandler {
	return func(ctx context.Context, report common.FillReport) {
		if m.enabled(MonitorReports) {
			m.logger.Info("fill report",
				zap.String("symbol", report.Symbol),
				zap.String("trade_id", report.TradeId),
				zap.Stringer("qty", report.LastQty),
				zap.Stringer("px", report.LastPx))
		}
		handler(ctx, report)
	}
}

func (m *Monitor) WithPositionStatusReport(handler bus.PositionStatusReportEventHandler) bus.PositionStatusReportEventHandler {
	return func(ctx context.Context, report common.PositionStatusReport) {
		if m.enabled(MonitorReports) {
			m.logger.Info("position status report",
				zap.String("symbol", report.Symbol),
				zap.Uint64("position_id", report.PositionId),
				zap.Stringer("side", report.Side),
				zap.Stringer("qty", report.Quantity))
		}
		handler(ctx, report)
	}
}
