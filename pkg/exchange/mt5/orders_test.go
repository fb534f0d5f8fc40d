package mt5

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peter-kozarec/equinox-mt5/pkg/common"
	"github.com/peter-kozarec/equinox-mt5/pkg/utility/fixed"
)

func TestOrderTypeCodes_RoundTrip(t *testing.T) {
	for key, code := range orderTypeCodes {
		t.Run(key.side.String()+" "+key.kind.String(), func(t *testing.T) {
			got, err := OrderTypeCodeFor(key.side, key.kind)
			require.NoError(t, err)
			assert.Equal(t, code, got)

			side, kind, err := OrderTypeFromCode(code)
			require.NoError(t, err)
			assert.Equal(t, key.side, side)
			assert.Equal(t, key.kind, kind)
		})
	}
}

func TestOrderTypeFromCode_CloseByUnmapped(t *testing.T) {
	_, _, err := OrderTypeFromCode(OrderTypeCloseBy)
	var mapping *MappingError
	assert.ErrorAs(t, err, &mapping)
}

func TestOrderStatusFromCode(t *testing.T) {
	tests := []struct {
		code OrderStateCode
		want common.OrderStatus
	}{
		{OrderStateStarted, common.OrderStatusSubmitted},
		{OrderStatePlaced, common.OrderStatusAccepted},
		{OrderStateCanceled, common.OrderStatusCanceled},
		{OrderStatePartial, common.OrderStatusPartiallyFilled},
		{OrderStateFilled, common.OrderStatusFilled},
		{OrderStateRejected, common.OrderStatusRejected},
		{OrderStateExpired, common.OrderStatusExpired},
		{OrderStateRequestAdd, common.OrderStatusSubmitted},
		{OrderStateRequestModify, common.OrderStatusPendingUpdate},
		{OrderStateRequestCancel, common.OrderStatusPendingCancel},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			got, err := OrderStatusFromCode(tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := OrderStatusFromCode(42)
	var mapping *MappingError
	assert.ErrorAs(t, err, &mapping)
}

func TestDealSideFromCode(t *testing.T) {
	tests := []struct {
		name      string
		code      int
		wantSide  common.OrderSide
		wantTrade bool
		wantErr   bool
	}{
		{name: "buy", code: DealTypeBuy, wantSide: common.OrderSideBuy, wantTrade: true},
		{name: "sell", code: DealTypeSell, wantSide: common.OrderSideSell, wantTrade: true},
		{name: "balance", code: 2},
		{name: "credit", code: 3},
		{name: "commission", code: 7},
		{name: "unknown", code: 99, wantErr: true},
		{name: "negative", code: -1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			side, isTrade, err := DealSideFromCode(tt.code)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTrade, isTrade)
			if tt.wantTrade {
				assert.Equal(t, tt.wantSide, side)
			}
		})
	}
}

func TestPositionSideFromCode(t *testing.T) {
	side, err := PositionSideFromCode(PositionTypeBuy)
	require.NoError(t, err)
	assert.Equal(t, common.PositionSideLong, side)

	side, err = PositionSideFromCode(PositionTypeSell)
	require.NoError(t, err)
	assert.Equal(t, common.PositionSideShort, side)

	_, err = PositionSideFromCode(5)
	assert.Error(t, err)
}

func TestNewSubmitRequest(t *testing.T) {
	expiry := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		order common.Order
		want  string
	}{
		{
			name: "market buy",
			order: common.Order{
				Type: common.OrderTypeMarket, Side: common.OrderSideBuy, Symbol: "EURUSD",
				Size: fixed.MustParse("0.10"), Comment: "entry",
			},
			want: `{"action": 1, "symbol": "EURUSD", "volume": 0.10, "type": 0, "comment": "entry"}`,
		},
		{
			name: "market sell ioc with protection",
			order: common.Order{
				Type: common.OrderTypeMarket, Side: common.OrderSideSell, Symbol: "EURUSD",
				Size: fixed.MustParse("1"), TimeInForce: common.TimeInForceImmediateOrCancel,
				StopLoss: fixed.MustParse("1.2"), TakeProfit: fixed.MustParse("1.0"), TraceID: 77,
			},
			want: `{"action": 1, "symbol": "EURUSD", "volume": 1, "type": 1, "sl": 1.2, "tp": 1.0, "type_filling": 1, "comment": "77"}`,
		},
		{
			name: "limit gtc",
			order: common.Order{
				Type: common.OrderTypeLimit, Side: common.OrderSideBuy, Symbol: "EURUSD",
				Size: fixed.MustParse("0.5"), Price: fixed.MustParse("1.05"),
			},
			want: `{"action": 5, "symbol": "EURUSD", "volume": 0.5, "type": 2, "price": 1.05, "type_time": 0}`,
		},
		{
			name: "stop fok",
			order: common.Order{
				Type: common.OrderTypeStop, Side: common.OrderSideSell, Symbol: "EURUSD",
				Size: fixed.MustParse("0.5"), TriggerPrice: fixed.MustParse("1.04"),
				TimeInForce: common.TimeInForceFillOrKill,
			},
			want: `{"action": 5, "symbol": "EURUSD", "volume": 0.5, "type": 5, "price": 1.04, "type_filling": 0}`,
		},
		{
			name: "stop limit gtd",
			order: common.Order{
				Type: common.OrderTypeStopLimit, Side: common.OrderSideBuy, Symbol: "EURUSD",
				Size: fixed.MustParse("0.5"), TriggerPrice: fixed.MustParse("1.11"), Price: fixed.MustParse("1.10"),
				TimeInForce: common.TimeInForceGoodTillDate, ExpireTime: expiry,
			},
			want: `{"action": 5, "symbol": "EURUSD", "volume": 0.5, "type": 6, "price": 1.11, "stoplimit": 1.10, "type_time": 2, "expiration": 1717243200}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewSubmitRequest(tt.order)
			require.NoError(t, err)

			data, err := json.Marshal(req)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestNewSubmitRequest_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		order common.Order
	}{
		{name: "zero size", order: common.Order{Type: common.OrderTypeMarket}},
		{name: "limit without price", order: common.Order{Type: common.OrderTypeLimit, Size: fixed.One}},
		{name: "stop without trigger", order: common.Order{Type: common.OrderTypeStop, Size: fixed.One}},
		{name: "stop limit without limit", order: common.Order{Type: common.OrderTypeStopLimit, Size: fixed.One, TriggerPrice: fixed.One}},
		{name: "gtd without expiry", order: common.Order{Type: common.OrderTypeLimit, Size: fixed.One, Price: fixed.One, TimeInForce: common.TimeInForceGoodTillDate}},
		{name: "unknown type", order: common.Order{Type: common.OrderType(9), Size: fixed.One}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSubmitRequest(tt.order)
			assert.Error(t, err)
		})
	}
}

func TestNewModifyAndCancelRequest(t *testing.T) {
	_, err := NewModifyRequest(common.Order{Type: common.OrderTypeLimit})
	assert.ErrorIs(t, err, ErrMissingOrderId)

	_, err = NewCancelRequest(0)
	assert.ErrorIs(t, err, ErrMissingOrderId)

	req, err := NewModifyRequest(common.Order{
		Type: common.OrderTypeStopLimit, OrderId: 42, Symbol: "EURUSD",
		TriggerPrice: fixed.MustParse("1.11"), Price: fixed.MustParse("1.10"), StopLoss: fixed.MustParse("1.05"),
	})
	require.NoError(t, err)
	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"action": 3, "order": 42, "symbol": "EURUSD", "price": 1.11, "stoplimit": 1.10, "sl": 1.05}`, string(data))

	req, err = NewCancelRequest(42)
	require.NoError(t, err)
	data, err = json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"action": 8, "order": 42}`, string(data))
}

func TestParseSendResult(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantOutcome SubmitOutcome
		wantOrder   common.OrderId
		wantRetCode int
		wantComment string
		wantErr     bool
	}{
		{
			name:        "done",
			raw:         `{"result": {"retcode": 10009, "order": 123, "deal": 456, "comment": "Request executed"}}`,
			wantOutcome: SubmitAccepted, wantOrder: 123, wantRetCode: 10009, wantComment: "Request executed",
		},
		{
			name:        "placed",
			raw:         `{"result": {"retcode": 10008, "order": 124}}`,
			wantOutcome: SubmitAccepted, wantOrder: 124, wantRetCode: 10008,
		},
		{
			name:        "requote",
			raw:         `{"result": {"retcode": 10004, "comment": "Requote"}}`,
			wantOutcome: SubmitRejected, wantRetCode: 10004, wantComment: "Requote",
		},
		{
			name:        "no money without comment",
			raw:         `{"result": {"retcode": 10019}}`,
			wantOutcome: SubmitRejected, wantRetCode: 10019, wantComment: "retcode 10019",
		},
		{
			name:        "empty",
			raw:         `{"result": null}`,
			wantOutcome: SubmitRejected, wantComment: "no response",
		},
		{name: "missing retcode", raw: `{"result": {"order": 1}}`, wantErr: true},
		{name: "remote error", raw: `{"error": "trade disabled"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseSendResult(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, result.Outcome)
			assert.Equal(t, tt.wantOrder, result.OrderId)
			assert.Equal(t, tt.wantRetCode, result.RetCode)
			assert.Equal(t, tt.wantComment, result.Comment)
		})
	}
}
