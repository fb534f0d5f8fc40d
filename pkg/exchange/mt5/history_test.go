package mt5

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/peter-kozarec/equinox-mt5/pkg/common"
	"github.com/peter-kozarec/equinox-mt5/pkg/utility/fixed"
)

var historyStart = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// minuteRates answers copy_rates_range with one M1 bar per minute of the
// inclusive [from, to] window, the way the terminal does.
func minuteRates(payload any) (string, error) {
	params := payload.([]any)
	from, to := params[2].(int64), params[3].(int64)
	var rows []string
	for ts := from - from%60; ts <= to; ts += 60 {
		rows = append(rows, fmt.Sprintf(`[%d, 1.1, 1.2, 1.0, 1.15, 100, 1, 0]`, ts))
	}
	return `{"result": [` + strings.Join(rows, ",") + `]}`, nil
}

func newTestFetcher(t *testing.T, transport *fakeTransport, cfg Config) *HistoryFetcher {
	t.Helper()
	return NewHistoryFetcher(zap.NewNop(), cfg, transport, loadedProvider(t, transport), NewMetrics(nil))
}

func openTimes(bars []common.Bar) []time.Time {
	out := make([]time.Time, len(bars))
	for i, b := range bars {
		out[i] = b.OpenTime
	}
	return out
}

func TestHistoryFetcher_BarsChunking(t *testing.T) {
	end := historyStart.Add(95 * time.Minute)

	tests := []struct {
		name       string
		span       time.Duration
		wantChunks int
	}{
		{name: "single chunk", span: 2 * time.Hour, wantChunks: 1},
		{name: "exact multiple", span: 95 * time.Minute, wantChunks: 1},
		{name: "thirty minute chunks", span: 30 * time.Minute, wantChunks: 4},
		{name: "one minute chunks", span: time.Minute, wantChunks: 95},
	}

	var reference []time.Time
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := newFakeTransport().on(MethodCopyRatesRange, minuteRates)
			cfg := testConfig()
			cfg.BarChunkSpan = tt.span
			f := newTestFetcher(t, transport, cfg)

			bars, err := f.FetchBars(context.Background(), BarRequest{Symbol: "EURUSD", Period: time.Minute, Start: historyStart, End: end})
			require.NoError(t, err)

			assert.Len(t, transport.callsTo(MethodCopyRatesRange), tt.wantChunks)
			require.Len(t, bars, 95)
			assert.Equal(t, historyStart, bars[0].OpenTime)
			assert.Equal(t, end.Add(-time.Minute), bars[len(bars)-1].OpenTime)

			if reference == nil {
				reference = openTimes(bars)
			}
			assert.Equal(t, reference, openTimes(bars))
		})
	}
}

func TestHistoryFetcher_BarsChunkParams(t *testing.T) {
	transport := newFakeTransport().on(MethodCopyRatesRange, minuteRates)
	cfg := testConfig()
	cfg.BarChunkSpan = time.Hour
	f := newTestFetcher(t, transport, cfg)

	_, err := f.FetchBars(context.Background(), BarRequest{Symbol: "EURUSD", Period: time.Minute, Start: historyStart, End: historyStart.Add(90 * time.Minute)})
	require.NoError(t, err)

	calls := transport.callsTo(MethodCopyRatesRange)
	require.Len(t, calls, 2)
	assert.Equal(t, []any{"EURUSD", 1, historyStart.Unix(), historyStart.Add(time.Hour).Unix()}, calls[0].payload)
	assert.Equal(t, []any{"EURUSD", 1, historyStart.Add(time.Hour).Unix(), historyStart.Add(90 * time.Minute).Unix()}, calls[1].payload)
}

func TestHistoryFetcher_BarsValues(t *testing.T) {
	transport := newFakeTransport().on(MethodCopyRatesRange, minuteRates)
	f := newTestFetcher(t, transport, testConfig())

	bars, err := f.FetchBars(context.Background(), BarRequest{Symbol: "EURUSD", Period: time.Minute, Start: historyStart, End: historyStart.Add(time.Minute)})
	require.NoError(t, err)
	require.Len(t, bars, 1)

	bar := bars[0]
	assert.Equal(t, "EURUSD", bar.Symbol)
	assert.Equal(t, Venue, bar.Source)
	assert.Equal(t, historyStart.Add(time.Minute), bar.CloseTime)
	assert.Equal(t, bar.CloseTime, bar.TimeStamp)
	assert.Equal(t, "1.10000", bar.Open.String())
	assert.Equal(t, "1.20000", bar.High.String())
	assert.Equal(t, "1.00000", bar.Low.String())
	assert.Equal(t, "1.15000", bar.Close.String())
	assert.Equal(t, "100.00", bar.Volume.String())
}

func TestHistoryFetcher_FailedChunkLeavesGap(t *testing.T) {
	transport := newFakeTransport()
	calls := 0
	transport.on(MethodCopyRatesRange, func(payload any) (string, error) {
		calls++
		if calls == 2 {
			return "", errors.New("terminal busy")
		}
		return minuteRates(payload)
	})
	cfg := testConfig()
	cfg.BarChunkSpan = 30 * time.Minute
	f := newTestFetcher(t, transport, cfg)

	bars, err := f.FetchBars(context.Background(), BarRequest{Symbol: "EURUSD", Period: time.Minute, Start: historyStart, End: historyStart.Add(90 * time.Minute)})
	require.NoError(t, err)
	assert.Len(t, bars, 60)

	for _, bar := range bars {
		inGap := !bar.OpenTime.Before(historyStart.Add(30*time.Minute)) && bar.OpenTime.Before(historyStart.Add(time.Hour))
		assert.False(t, inGap, "bar at %s falls in the failed chunk", bar.OpenTime)
	}
}

func TestHistoryFetcher_CancelAbortsWalk(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transport := newFakeTransport()
	transport.on(MethodCopyRatesRange, func(any) (string, error) {
		cancel()
		return "", context.Canceled
	})
	cfg := testConfig()
	cfg.BarChunkSpan = time.Minute
	f := newTestFetcher(t, transport, cfg)

	_, err := f.FetchBars(ctx, BarRequest{Symbol: "EURUSD", Period: time.Minute, Start: historyStart, End: historyStart.Add(time.Hour)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, transport.callsTo(MethodCopyRatesRange), 1)
}

func TestHistoryFetcher_BarsCountMode(t *testing.T) {
	transport := newFakeTransport().reply(MethodCopyRatesFrom, fmt.Sprintf(`{"result": [
		[%d, 1.3, 1.4, 1.2, 1.35, 10],
		[%d, 1.1, 1.2, 1.0, 1.15, 10],
		[%d, 1.1, 1.2, 1.0, 1.15, 10],
		[%d, 1.2],
		[%d, 1.2, 1.3, 1.1, 1.25, 10]
	]}`, historyStart.Add(2*time.Minute).Unix(), historyStart.Unix(), historyStart.Unix(), historyStart.Add(3*time.Minute).Unix(), historyStart.Add(time.Minute).Unix()))
	f := newTestFetcher(t, transport, testConfig())
	now := historyStart.Add(time.Hour)
	f.now = func() time.Time { return now }

	bars, err := f.FetchBars(context.Background(), BarRequest{Symbol: "EURUSD", Period: time.Minute, Count: 10})
	require.NoError(t, err)

	assert.Equal(t, []time.Time{historyStart, historyStart.Add(time.Minute), historyStart.Add(2 * time.Minute)}, openTimes(bars))

	calls := transport.callsTo(MethodCopyRatesFrom)
	require.Len(t, calls, 1)
	assert.Equal(t, []any{"EURUSD", 1, now.Unix(), 10}, calls[0].payload, "an unset start reads back from now")

	_, err = f.FetchBars(context.Background(), BarRequest{Symbol: "EURUSD", Period: time.Minute, Start: historyStart, Count: 10})
	require.NoError(t, err)
	calls = transport.callsTo(MethodCopyRatesFrom)
	require.Len(t, calls, 2)
	assert.Equal(t, []any{"EURUSD", 1, historyStart.Unix(), 10}, calls[1].payload)
}

func TestHistoryFetcher_TicksCountModeDefaultsToNow(t *testing.T) {
	transport := newFakeTransport().reply(MethodCopyTicksFrom, `{"result": []}`)
	f := newTestFetcher(t, transport, testConfig())
	now := historyStart.Add(time.Hour)
	f.now = func() time.Time { return now }

	_, err := f.FetchQuotes(context.Background(), TickRequest{Symbol: "EURUSD", Count: 5})
	require.NoError(t, err)

	calls := transport.callsTo(MethodCopyTicksFrom)
	require.Len(t, calls, 1)
	assert.Equal(t, []any{"EURUSD", now.Unix(), 5, CopyTicksInfo}, calls[0].payload)
}

func TestHistoryFetcher_AllChunksFailed(t *testing.T) {
	transport := newFakeTransport()
	transport.on(MethodCopyRatesRange, func(any) (string, error) {
		return "", errors.New("terminal down")
	})
	cfg := testConfig()
	cfg.BarChunkSpan = 30 * time.Minute
	f := newTestFetcher(t, transport, cfg)

	bars, err := f.FetchBars(context.Background(), BarRequest{Symbol: "EURUSD", Period: time.Minute, Start: historyStart, End: historyStart.Add(90 * time.Minute)})
	assert.Empty(t, bars)
	assert.Len(t, transport.callsTo(MethodCopyRatesRange), 3)

	var dataErr *DataRequestError
	require.ErrorAs(t, err, &dataErr)
	assert.Equal(t, MethodCopyRatesRange, dataErr.Method)
	assert.ErrorContains(t, err, "terminal down")
}

func TestHistoryFetcher_EmptyRangeIsNotAFailure(t *testing.T) {
	transport := newFakeTransport().reply(MethodCopyRatesRange, `{"result": []}`)
	cfg := testConfig()
	cfg.BarChunkSpan = 30 * time.Minute
	f := newTestFetcher(t, transport, cfg)

	bars, err := f.FetchBars(context.Background(), BarRequest{Symbol: "EURUSD", Period: time.Minute, Start: historyStart, End: historyStart.Add(90 * time.Minute)})
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestHistoryFetcher_Errors(t *testing.T) {
	t.Run("unsupported timeframe", func(t *testing.T) {
		f := newTestFetcher(t, newFakeTransport(), testConfig())
		_, err := f.FetchBars(context.Background(), BarRequest{Symbol: "EURUSD", Period: 7 * time.Minute})

		var dataErr *DataRequestError
		require.ErrorAs(t, err, &dataErr)
		var mapping *MappingError
		assert.ErrorAs(t, err, &mapping)
	})

	t.Run("count mode failure", func(t *testing.T) {
		transport := newFakeTransport().reply(MethodCopyRatesFrom, `{"error": "no history"}`)
		f := newTestFetcher(t, transport, testConfig())
		_, err := f.FetchBars(context.Background(), BarRequest{Symbol: "EURUSD", Period: time.Minute})

		var remote *RemoteError
		require.ErrorAs(t, err, &remote)
		assert.Equal(t, "no history", remote.Message)
	})

	t.Run("unknown symbol", func(t *testing.T) {
		f := newTestFetcher(t, newFakeTransport(), testConfig())
		_, err := f.FetchQuotes(context.Background(), TickRequest{Symbol: "NOPE"})
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})
}

func TestHistoryFetcher_Quotes(t *testing.T) {
	ms := historyStart.UnixMilli()
	transport := newFakeTransport()
	transport.on(MethodCopyTicksRange, func(payload any) (string, error) {
		from := payload.([]any)[1].(int64)
		if from != historyStart.Unix() {
			return `{"result": []}`, nil
		}
		return fmt.Sprintf(`{"result": [
			[%d, 1.10002, 1.10012, 0, 0, %d, 6, 0],
			[%d, 1.10001, 1.10011, 0, 0, %d, 6, 0],
			[%d, 1.1]
		]}`, historyStart.Unix(), ms+500, historyStart.Unix(), ms+100, historyStart.Unix()), nil
	})
	cfg := testConfig()
	cfg.TickChunkSpan = 6 * time.Hour
	f := newTestFetcher(t, transport, cfg)

	quotes, err := f.FetchQuotes(context.Background(), TickRequest{Symbol: "EURUSD", Start: historyStart, End: historyStart.Add(12 * time.Hour)})
	require.NoError(t, err)

	calls := transport.callsTo(MethodCopyTicksRange)
	require.Len(t, calls, 2)
	assert.Equal(t, CopyTicksInfo, calls[0].payload.([]any)[3])

	require.Len(t, quotes, 2)
	assert.Equal(t, ms+100, quotes[0].TimeStamp.UnixMilli())
	assert.Equal(t, ms+500, quotes[1].TimeStamp.UnixMilli())
	assert.True(t, quotes[0].Bid.Eq(fixed.MustParse("1.10001")))
	assert.True(t, quotes[0].Ask.Eq(fixed.MustParse("1.10011")))
	assert.True(t, quotes[0].BidVolume.Eq(fixed.One))
	assert.True(t, quotes[0].AskVolume.Eq(fixed.One))
}

func TestHistoryFetcher_Trades(t *testing.T) {
	ms := historyStart.UnixMilli()
	transport := newFakeTransport().reply(MethodCopyTicksFrom, fmt.Sprintf(`{"result": [
		[%d, 1.1, 1.2, 1.15, 3, %d, 32, 2.5],
		[%d, 1.1, 1.2, 0, 0, %d, 64, 0],
		[%d, 1.1, 1.2, 1.16, 0, %d, 96, 0]
	]}`, historyStart.Unix(), ms, historyStart.Unix(), ms, historyStart.Unix(), ms+1))
	f := newTestFetcher(t, transport, testConfig())

	trades, err := f.FetchTrades(context.Background(), TickRequest{Symbol: "EURUSD", Start: historyStart, Count: 3})
	require.NoError(t, err)

	calls := transport.callsTo(MethodCopyTicksFrom)
	require.Len(t, calls, 1)
	assert.Equal(t, []any{"EURUSD", historyStart.Unix(), 3, CopyTicksTrade}, calls[0].payload)

	require.Len(t, trades, 3)

	assert.True(t, trades[0].Price.Eq(fixed.MustParse("1.15")))
	assert.True(t, trades[0].Size.Eq(fixed.MustParse("2.5")))
	assert.Equal(t, common.AggressorSideBuyer, trades[0].Aggressor)
	assert.Equal(t, fmt.Sprintf("%d-0", ms), trades[0].TradeId)

	assert.True(t, trades[1].Price.Eq(fixed.MustParse("1.1")), "falls back to bid")
	assert.True(t, trades[1].Size.Eq(fixed.One))
	assert.Equal(t, common.AggressorSideSeller, trades[1].Aggressor)
	assert.Equal(t, fmt.Sprintf("%d-1", ms), trades[1].TradeId)

	assert.Equal(t, common.AggressorSideNone, trades[2].Aggressor)
	assert.Equal(t, fmt.Sprintf("%d-0", ms+1), trades[2].TradeId)
}
