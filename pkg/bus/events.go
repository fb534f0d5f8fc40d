package bus

type EventId uint8

const (
	TickEvent EventId = iota
	TradeEvent
	BarEvent
	InstrumentEvent
	OrderAcceptedEvent
	OrderRejectedEvent
	OrderStatusReportEvent
	FillReportEvent
	PositionStatusReportEvent
)

func (id EventId) String() string {
	switch id {
	case TickEvent:
		return "tick"
	case TradeEvent:
		return "trade"
	case BarEvent:
		return "bar"
	case InstrumentEvent:
		return "instrument"
	case OrderAcceptedEvent:
		return "order_accepted"
	case OrderRejectedEvent:
		return "order_rejected"
	case OrderStatusReportEvent:
		return "order_status_report"
	case FillReportEvent:
		return "fill_report"
	case PositionStatusReportEvent:
		return "position_status_report"
	}
	return "unknown"
}
