package mt5

import (
	"fmt"
	"strconv"
	"time"
)

// Method is a terminal function exposed by the REST middleware.
type Method string

const (
	MethodLogin            Method = "login"
	MethodAccountInfo      Method = "account_info"
	MethodSymbolInfo       Method = "symbol_info"
	MethodSymbolInfoTick   Method = "symbol_info_tick"
	MethodSymbolsTotal     Method = "symbols_total"
	MethodSymbolsGet       Method = "symbols_get"
	MethodCopyRatesFrom    Method = "copy_rates_from"
	MethodCopyRatesRange   Method = "copy_rates_range"
	MethodCopyTicksFrom    Method = "copy_ticks_from"
	MethodCopyTicksRange   Method = "copy_ticks_range"
	MethodOrderSend        Method = "order_send"
	MethodOrdersGet        Method = "orders_get"
	MethodPositionsGet     Method = "positions_get"
	MethodHistoryOrdersGet Method = "history_orders_get"
	MethodHistoryDealsGet  Method = "history_deals_get"
)

// Methods is the full route table.
var Methods = []Method{
	MethodLogin, MethodAccountInfo, MethodSymbolInfo, MethodSymbolInfoTick,
	MethodSymbolsTotal, MethodSymbolsGet, MethodCopyRatesFrom, MethodCopyRatesRange,
	MethodCopyTicksFrom, MethodCopyTicksRange, MethodOrderSend, MethodOrdersGet,
	MethodPositionsGet, MethodHistoryOrdersGet, MethodHistoryDealsGet,
}

func (m Method) Valid() bool {
	for _, known := range Methods {
		if m == known {
			return true
		}
	}
	return false
}

const (
	RetCodePlaced = 10008
	RetCodeDone   = 10009
)

func retCodeSucceeded(code int) bool {
	return code == RetCodeDone || code == RetCodePlaced
}

type TradeAction int

const (
	TradeActionDeal    TradeAction = 1
	TradeActionModify  TradeAction = 3
	TradeActionPending TradeAction = 5
	TradeActionSLTP    TradeAction = 6
	TradeActionRemove  TradeAction = 8
	TradeActionCloseBy TradeAction = 10
)

type OrderTypeCode int

const (
	OrderTypeBuy OrderTypeCode = iota
	OrderTypeSell
	OrderTypeBuyLimit
	OrderTypeSellLimit
	OrderTypeBuyStop
	OrderTypeSellStop
	OrderTypeBuyStopLimit
	OrderTypeSellStopLimit
	OrderTypeCloseBy
)

type OrderStateCode int

const (
	OrderStateStarted OrderStateCode = iota
	OrderStatePlaced
	OrderStateCanceled
	OrderStatePartial
	OrderStateFilled
	OrderStateRejected
	OrderStateExpired
	OrderStateRequestAdd
	OrderStateRequestModify
	OrderStateRequestCancel
)

const (
	PositionTypeBuy  = 0
	PositionTypeSell = 1
)

const (
	DealTypeBuy  = 0
	DealTypeSell = 1
)

const (
	CopyTicksInfo  = 1
	CopyTicksTrade = 2
)

const (
	TickFlagBuy  = 32
	TickFlagSell = 64
)

var timeframeCodes = map[time.Duration]int{
	time.Minute:        1,
	2 * time.Minute:    2,
	3 * time.Minute:    3,
	4 * time.Minute:    4,
	5 * time.Minute:    5,
	6 * time.Minute:    6,
	10 * time.Minute:   10,
	12 * time.Minute:   12,
	15 * time.Minute:   15,
	20 * time.Minute:   20,
	30 * time.Minute:   30,
	time.Hour:          16385,
	2 * time.Hour:      16386,
	3 * time.Hour:      16387,
	4 * time.Hour:      16388,
	6 * time.Hour:      16390,
	8 * time.Hour:      16392,
	12 * time.Hour:     16396,
	24 * time.Hour:     16408,
	7 * 24 * time.Hour: 32769,
}

// TimeframeCode maps a bar period to the terminal timeframe constant.
func TimeframeCode(period time.Duration) (int, error) {
	code, ok := timeframeCodes[period]
	if !ok {
		return 0, &MappingError{Kind: "timeframe", Value: fmt.Sprint(period)}
	}
	return code, nil
}

// ParseTimeframe accepts terminal style names like "M1", "H4", "D1" or Go durations.
func ParseTimeframe(s string) (time.Duration, error) {
	d, err := parseTimeframe(s)
	if err != nil {
		return 0, &MappingError{Kind: "timeframe", Value: s}
	}
	if _, ok := timeframeCodes[d]; !ok {
		return 0, &MappingError{Kind: "timeframe", Value: s}
	}
	return d, nil
}

func parseTimeframe(s string) (time.Duration, error) {
	if len(s) < 2 {
		return time.ParseDuration(s)
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil || n <= 0 {
		return time.ParseDuration(s)
	}
	switch s[0] {
	case 'M':
		return time.Duration(n) * time.Minute, nil
	case 'H':
		return time.Duration(n) * time.Hour, nil
	case 'D':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'W':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
