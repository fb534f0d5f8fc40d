package mt5

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/peter-kozarec/equinox-mt5/pkg/common"
	"github.com/peter-kozarec/equinox-mt5/pkg/utility/fixed"
)

type orderKey struct {
	side common.OrderSide
	kind common.OrderType
}

var orderTypeCodes = map[orderKey]OrderTypeCode{
	{common.OrderSideBuy, common.OrderTypeMarket}:     OrderTypeBuy,
	{common.OrderSideSell, common.OrderTypeMarket}:    OrderTypeSell,
	{common.OrderSideBuy, common.OrderTypeLimit}:      OrderTypeBuyLimit,
	{common.OrderSideSell, common.OrderTypeLimit}:     OrderTypeSellLimit,
	{common.OrderSideBuy, common.OrderTypeStop}:       OrderTypeBuyStop,
	{common.OrderSideSell, common.OrderTypeStop}:      OrderTypeSellStop,
	{common.OrderSideBuy, common.OrderTypeStopLimit}:  OrderTypeBuyStopLimit,
	{common.OrderSideSell, common.OrderTypeStopLimit}: OrderTypeSellStopLimit,
}

var orderStates = map[OrderStateCode]common.OrderStatus{
	OrderStateStarted:       common.OrderStatusSubmitted,
	OrderStatePlaced:        common.OrderStatusAccepted,
	OrderStateCanceled:      common.OrderStatusCanceled,
	OrderStatePartial:       common.OrderStatusPartiallyFilled,
	OrderStateFilled:        common.OrderStatusFilled,
	OrderStateRejected:      common.OrderStatusRejected,
	OrderStateExpired:       common.OrderStatusExpired,
	OrderStateRequestAdd:    common.OrderStatusSubmitted,
	OrderStateRequestModify: common.OrderStatusPendingUpdate,
	OrderStateRequestCancel: common.OrderStatusPendingCancel,
}

func OrderTypeCodeFor(side common.OrderSide, kind common.OrderType) (OrderTypeCode, error) {
	code, ok := orderTypeCodes[orderKey{side, kind}]
	if !ok {
		return 0, &MappingError{Kind: "order type", Value: fmt.Sprintf("%s %s", side, kind)}
	}
	return code, nil
}

// OrderTypeFromCode is the inverse of OrderTypeCodeFor. Close-by orders have
// no host counterpart.
func OrderTypeFromCode(code OrderTypeCode) (common.OrderSide, common.OrderType, error) {
	for key, c := range orderTypeCodes {
		if c == code {
			return key.side, key.kind, nil
		}
	}
	return 0, 0, &MappingError{Kind: "order type", Value: strconv.Itoa(int(code))}
}

func OrderStatusFromCode(code OrderStateCode) (common.OrderStatus, error) {
	status, ok := orderStates[code]
	if !ok {
		return 0, &MappingError{Kind: "order state", Value: strconv.Itoa(int(code))}
	}
	return status, nil
}

func PositionSideFromCode(code int) (common.PositionSide, error) {
	switch code {
	case PositionTypeBuy:
		return common.PositionSideLong, nil
	case PositionTypeSell:
		return common.PositionSideShort, nil
	}
	return 0, &MappingError{Kind: "position type", Value: strconv.Itoa(code)}
}

// DealSideFromCode maps a deal type. Balance, credit, commission and the other
// account operations report isTrade false.
func DealSideFromCode(code int) (side common.OrderSide, isTrade bool, err error) {
	switch {
	case code == DealTypeBuy:
		return common.OrderSideBuy, true, nil
	case code == DealTypeSell:
		return common.OrderSideSell, true, nil
	case code >= 2 && code <= 20:
		return 0, false, nil
	}
	return 0, false, &MappingError{Kind: "deal type", Value: strconv.Itoa(code)}
}

const (
	orderTimeGTC       = 0
	orderTimeSpecified = 2
	orderFillingFOK    = 0
	orderFillingIOC    = 1
)

// TradeRequest is the order_send body.
type TradeRequest struct {
	Action      TradeAction    `json:"action"`
	Symbol      string         `json:"symbol,omitempty"`
	Volume      json.Number    `json:"volume,omitempty"`
	Type        *OrderTypeCode `json:"type,omitempty"`
	Price       json.Number    `json:"price,omitempty"`
	StopLimit   json.Number    `json:"stoplimit,omitempty"`
	SL          json.Number    `json:"sl,omitempty"`
	TP          json.Number    `json:"tp,omitempty"`
	Order       uint64         `json:"order,omitempty"`
	TypeTime    *int           `json:"type_time,omitempty"`
	TypeFilling *int           `json:"type_filling,omitempty"`
	Expiration  int64          `json:"expiration,omitempty"`
	Comment     string         `json:"comment,omitempty"`
}

func number(p fixed.Point) json.Number {
	if p.IsZero() {
		return ""
	}
	return json.Number(p.String())
}

func intPtr(v int) *int { return &v }

// NewSubmitRequest translates a host order. Market orders are DEAL actions,
// everything else is PENDING. Stop and stop-limit orders carry the trigger in
// price and a stop-limit carries its limit in stoplimit.
func NewSubmitRequest(order common.Order) (TradeRequest, error) {
	code, err := OrderTypeCodeFor(order.Side, order.Type)
	if err != nil {
		return TradeRequest{}, err
	}
	if !order.Size.IsPos() {
		return TradeRequest{}, fmt.Errorf("order size %s must be positive", order.Size)
	}

	req := TradeRequest{
		Action:  TradeActionPending,
		Symbol:  order.Symbol,
		Volume:  json.Number(order.Size.String()),
		Type:    &code,
		SL:      number(order.StopLoss),
		TP:      number(order.TakeProfit),
		Comment: orderComment(order),
	}

	switch order.Type {
	case common.OrderTypeMarket:
		req.Action = TradeActionDeal
		req.Price = number(order.Price)
	case common.OrderTypeLimit:
		if !order.Price.IsPos() {
			return TradeRequest{}, fmt.Errorf("limit order requires a price")
		}
		req.Price = number(order.Price)
	case common.OrderTypeStop:
		if !order.TriggerPrice.IsPos() {
			return TradeRequest{}, fmt.Errorf("stop order requires a trigger price")
		}
		req.Price = number(order.TriggerPrice)
	case common.OrderTypeStopLimit:
		if !order.TriggerPrice.IsPos() || !order.Price.IsPos() {
			return TradeRequest{}, fmt.Errorf("stop limit order requires trigger and limit prices")
		}
		req.Price = number(order.TriggerPrice)
		req.StopLimit = number(order.Price)
	}

	switch order.TimeInForce {
	case common.TimeInForceGoodTillDate:
		if order.ExpireTime.IsZero() {
			return TradeRequest{}, fmt.Errorf("good till date order requires an expire time")
		}
		req.TypeTime = intPtr(orderTimeSpecified)
		req.Expiration = order.ExpireTime.Unix()
	case common.TimeInForceImmediateOrCancel:
		req.TypeFilling = intPtr(orderFillingIOC)
	case common.TimeInForceFillOrKill:
		req.TypeFilling = intPtr(orderFillingFOK)
	default:
		if order.Type != common.OrderTypeMarket {
			req.TypeTime = intPtr(orderTimeGTC)
		}
	}
	return req, nil
}

// NewModifyRequest changes price, trigger and protection levels of a resting order.
func NewModifyRequest(order common.Order) (TradeRequest, error) {
	if order.OrderId == 0 {
		return TradeRequest{}, ErrMissingOrderId
	}
	req := TradeRequest{
		Action: TradeActionModify,
		Order:  uint64(order.OrderId),
		Symbol: order.Symbol,
		SL:     number(order.StopLoss),
		TP:     number(order.TakeProfit),
	}
	switch order.Type {
	case common.OrderTypeStop:
		req.Price = number(order.TriggerPrice)
	case common.OrderTypeStopLimit:
		req.Price = number(order.TriggerPrice)
		req.StopLimit = number(order.Price)
	default:
		req.Price = number(order.Price)
	}
	if order.TimeInForce == common.TimeInForceGoodTillDate && !order.ExpireTime.IsZero() {
		req.TypeTime = intPtr(orderTimeSpecified)
		req.Expiration = order.ExpireTime.Unix()
	}
	return req, nil
}

func NewCancelRequest(id common.OrderId) (TradeRequest, error) {
	if id == 0 {
		return TradeRequest{}, ErrMissingOrderId
	}
	return TradeRequest{Action: TradeActionRemove, Order: uint64(id)}, nil
}

func orderComment(order common.Order) string {
	if order.Comment != "" {
		return order.Comment
	}
	if order.TraceID != 0 {
		return strconv.FormatUint(order.TraceID, 10)
	}
	return ""
}

type SubmitOutcome int

const (
	SubmitAccepted SubmitOutcome = iota
	SubmitRejected
)

// SubmitResult is the outcome of an order_send call. A rejection is a normal
// outcome, not an error.
type SubmitResult struct {
	Outcome SubmitOutcome
	OrderId common.OrderId
	DealId  uint64
	RetCode int
	Comment string
}

func (r SubmitResult) Accepted() bool {
	return r.Outcome == SubmitAccepted
}

type sendResult struct {
	Retcode json.Number `json:"retcode"`
	Order   json.Number `json:"order"`
	Deal    json.Number `json:"deal"`
	Comment string      `json:"comment"`
}

// ParseSendResult maps an order_send response. Only the done and placed
// return codes are accepted.
func ParseSendResult(raw string) (SubmitResult, error) {
	var res sendResult
	found, err := decodeResponse(raw, &res)
	if err != nil {
		return SubmitResult{}, err
	}
	if !found {
		return SubmitResult{Outcome: SubmitRejected, Comment: "no response"}, nil
	}
	if res.Retcode == "" {
		return SubmitResult{}, &ParsingError{Err: &MissingFieldError{Field: "retcode"}}
	}

	code, err := numberToInt64(res.Retcode)
	if err != nil {
		return SubmitResult{}, &ParsingError{Err: err}
	}
	order, _ := numberToInt64(res.Order)
	deal, _ := numberToInt64(res.Deal)

	result := SubmitResult{
		Outcome: SubmitRejected,
		OrderId: common.OrderId(order),
		DealId:  uint64(deal),
		RetCode: int(code),
		Comment: res.Comment,
	}
	if retCodeSucceeded(result.RetCode) {
		result.Outcome = SubmitAccepted
	} else if result.Comment == "" {
		result.Comment = "retcode " + strconv.Itoa(result.RetCode)
	}
	return result, nil
}
