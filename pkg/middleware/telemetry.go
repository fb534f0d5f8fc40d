package middleware

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"

	"github.com/peter-kozarec/equinox-mt5/pkg/bus"
	"github.com/peter-kozarec/equinox-mt5/pkg/common"
)

// Telemetry counts routed events per event kind.
type Telemetry struct {
	logger *zap.Logger
	events *prometheus.CounterVec
}

func NewTelemetry(logger *zap.Logger, reg prometheus.Registerer) *Telemetry {
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "equinox",
		Name:      "events_total",
		Help:      "Events dispatched through the router by kind.",
	}, []string{"event"})
	if reg != nil {
		reg.MustRegister(events)
	}
	return &Telemetry{
		logger: logger,
		events: events,
	}
}

func count[T any](t *Telemetry, id bus.EventId, handler bus.EventHandler[T]) bus.EventHandler[T] {
	c := t.events.WithLabelValues(id.String())
	return func(ctx context.Context, event T) {
		c.Inc()
		handler(ctx, event)
	}
}

func (t *Telemetry) WithTick(handler bus.TickEventHandler) bus.TickEventHandler {
	return count[common.Tick](t, bus.TickEvent, handler)
}

func (t *Telemetry) WithTrade(handler bus.TradeEventHandler) bus.TradeEventHandler {
	return count[common.Trade](t, bus.TradeEvent, handler)
}

func (t *Telemetry) WithBar(handler bus.BarEventHandler) bus.BarEventHandler {
	return count[common.Bar](t, bus.BarEvent, handler)
}

func (t *Telemetry) WithInstrument(handler bus.InstrumentEventHandler) bus.InstrumentEventHandler {
	return count[common.Instrument](t, bus.InstrumentEvent, handler)
}

func (t *Telemetry) WithOrderAccepted(handler bus.OrderAcceptedEventHandler) bus.OrderAcceptedEventHandler {
	return count[common.OrderAccepted](t, bus.OrderAcceptedEvent, handler)
}

func (t *Telemetry) WithOrderRejected(handler bus.OrderRejectedEventHandler) bus.OrderRejectedEventHandler {
	return count[common.OrderRejected](t, bus.OrderRejectedEvent, handler)
}

func (t *Telemetry) WithOrderStatusReport(handler bus.OrderStatusReportEventHandler) bus.OrderStatusReportEventHandler {
	return count[common.OrderStatusReport](t, bus.OrderStatusReportEvent, handler)
}

func (t *Telemetry) WithFillReport(handler bus.FillReportEventHandler) bus.FillReportEventHandler {
	return count[common.FillReport](t, bus.FillReportEvent, handler)
}

func (t *Telemetry) WithPositionStatusReport(handler bus.PositionStatusReportEventHandler) bus.PositionStatusReportEventHandler {
	return count[common.PositionStatusReport](t, bus.PositionStatusReportEvent, handler)
}

// Counted returns the number of events seen for id.
func (t *Telemetry) Counted(id bus.EventId) float64 {
	m := &dto.Metric{}
	if err := t.events.WithLabelValues(id.String()).Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func (t *Telemetry) PrintStatistics() {
	ids := []bus.EventId{
		bus.TickEvent, bus.TradeEvent, bus.BarEvent, bus.InstrumentEvent,
		bus.OrderAcceptedEvent, bus.OrderRejectedEvent,
		bus.OrderStatusReportEvent, bus.FillReportEvent, bus.PositionStatusReportEvent,
	}
	fields := make([]zap.Field, 0, len(ids))
	for _, id := range ids {
		fields = append(fields, zap.Float64(id.String()+"_events", t.Counted(id)))
	}
	t.logger.Info("event statistics", fields...)
}
