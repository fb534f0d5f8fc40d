package mt5

import (
	"strconv"
	"time"

	"github.com/peter-kozarec/equinox-mt5/pkg/common"
	"github.com/peter-kozarec/equinox-mt5/pkg/utility"
)

// ReportQuery filters report generation. A zero window means the last
// ReportLookback. OpenOnly skips the order history.
type ReportQuery struct {
	Symbol   string
	Start    time.Time
	End      time.Time
	OpenOnly bool
}

func (q ReportQuery) window(now time.Time, lookback time.Duration) (time.Time, time.Time) {
	start, end := q.Start, q.End
	if end.IsZero() {
		end = now
	}
	if start.IsZero() {
		start = end.Add(-lookback)
	}
	return start, end
}

func (q ReportQuery) matches(symbol string) bool {
	return q.Symbol == "" || q.Symbol == symbol
}

func requireSymbol(rec Record) (string, error) {
	symbol := rec.str("symbol")
	if symbol == "" {
		return "", &MissingFieldError{Field: "symbol"}
	}
	return symbol, nil
}

// ToOrderStatusReport maps an orders_get or history_orders_get record.
// symbol, ticket, state and type are required.
func ToOrderStatusReport(rec Record, now time.Time) (common.OrderStatusReport, error) {
	fail := func(err error) (common.OrderStatusReport, error) {
		return common.OrderStatusReport{}, &RecordError{Record: "order", Err: err}
	}

	symbol, err := requireSymbol(rec)
	if err != nil {
		return fail(err)
	}
	ticket, err := rec.requireInt64("ticket")
	if err != nil {
		return fail(err)
	}
	state, err := rec.requireInt64("state", "status")
	if err != nil {
		return fail(err)
	}
	typeCode, err := rec.requireInt64("type")
	if err != nil {
		return fail(err)
	}

	status, err := OrderStatusFromCode(OrderStateCode(state))
	if err != nil {
		return fail(err)
	}
	side, kind, err := OrderTypeFromCode(OrderTypeCode(typeCode))
	if err != nil {
		return fail(err)
	}

	quantity := rec.optionalPoint("volume_initial", "volume")
	filled := rec.optionalPoint("volume_done")
	if _, ok := rec.number("volume_current"); ok && !quantity.IsZero() {
		filled = quantity.Sub(rec.optionalPoint("volume_current"))
	}

	report := common.OrderStatusReport{
		ReportId:   utility.NewReportID(),
		Symbol:     symbol,
		OrderId:    common.OrderId(ticket),
		Side:       side,
		Type:       kind,
		Status:     status,
		Quantity:   quantity,
		FilledQty:  filled,
		StopLoss:   rec.optionalPoint("sl"),
		TakeProfit: rec.optionalPoint("tp"),
		Comment:    rec.str("comment"),
		AcceptedAt: rec.timestamp("time_setup"),
		LastAt:     rec.timestamp("time_done"),
		TimeStamp:  now,
	}
	if report.LastAt.IsZero() {
		report.LastAt = report.AcceptedAt
	}

	open := rec.optionalPoint("price_open")
	switch kind {
	case common.OrderTypeStop:
		report.TriggerPrice = open
	case common.OrderTypeStopLimit:
		report.TriggerPrice = open
		report.Price = rec.optionalPoint("price_stoplimit")
	default:
		report.Price = open
	}
	return report, nil
}

// ToFillReport maps a history_deals_get record. ok is false for deals that
// are account operations rather than trades.
func ToFillReport(rec Record, now time.Time) (report common.FillReport, ok bool, err error) {
	fail := func(err error) (common.FillReport, bool, error) {
		return common.FillReport{}, false, &RecordError{Record: "deal", Err: err}
	}

	typeCode, err := rec.requireInt64("type")
	if err != nil {
		return fail(err)
	}
	side, isTrade, err := DealSideFromCode(int(typeCode))
	if err != nil {
		return fail(err)
	}
	if !isTrade {
		return common.FillReport{}, false, nil
	}

	symbol, err := requireSymbol(rec)
	if err != nil {
		return fail(err)
	}
	ticket, err := rec.requireInt64("ticket")
	if err != nil {
		return fail(err)
	}
	order, err := rec.requireInt64("order")
	if err != nil {
		return fail(err)
	}

	return common.FillReport{
		ReportId:    utility.NewReportID(),
		Symbol:      symbol,
		OrderId:     common.OrderId(order),
		TradeId:     strconv.FormatInt(ticket, 10),
		PositionId:  uint64(rec.optionalInt64("position_id")),
		Side:        side,
		LastQty:     rec.optionalPoint("volume"),
		LastPx:      rec.optionalPoint("price"),
		Commission:  rec.optionalPoint("commission"),
		Swap:        rec.optionalPoint("swap"),
		Fee:         rec.optionalPoint("fee"),
		RealizedPnl: rec.optionalPoint("profit"),
		FilledAt:    rec.timestamp("time"),
		TimeStamp:   now,
	}, true, nil
}

// ToPositionStatusReport maps a positions_get record. symbol, ticket and type are required.
func ToPositionStatusReport(rec Record, now time.Time) (common.PositionStatusReport, error) {
	fail := func(err error) (common.PositionStatusReport, error) {
		return common.PositionStatusReport{}, &RecordError{Record: "position", Err: err}
	}

	symbol, err := requireSymbol(rec)
	if err != nil {
		return fail(err)
	}
	ticket, err := rec.requireInt64("ticket", "identifier")
	if err != nil {
		return fail(err)
	}
	typeCode, err := rec.requireInt64("type")
	if err != nil {
		return fail(err)
	}
	side, err := PositionSideFromCode(int(typeCode))
	if err != nil {
		return fail(err)
	}

	return common.PositionStatusReport{
		ReportId:      utility.NewReportID(),
		Symbol:        symbol,
		PositionId:    uint64(ticket),
		Side:          side,
		Quantity:      rec.optionalPoint("volume").Abs(),
		OpenPrice:     rec.optionalPoint("price_open"),
		CurrentPrice:  rec.optionalPoint("price_current"),
		StopLoss:      rec.optionalPoint("sl"),
		TakeProfit:    rec.optionalPoint("tp"),
		Swap:          rec.optionalPoint("swap"),
		UnrealizedPnl: rec.optionalPoint("profit"),
		OpenedAt:      rec.timestamp("time"),
		TimeStamp:     now,
	}, nil
}
