package mt5

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/equinox-mt5/pkg/common"
	"github.com/peter-kozarec/equinox-mt5/pkg/utility"
	"github.com/peter-kozarec/equinox-mt5/pkg/utility/fixed"
)

const (
	minBarColumns   = 6
	minQuoteColumns = 3
	minTradeColumns = 5
)

// BarRequest selects range mode when both Start and End are set, count mode otherwise.
type BarRequest struct {
	Symbol string
	Period time.Duration
	Start  time.Time
	End    time.Time
	Count  int
}

type TickRequest struct {
	Symbol string
	Start  time.Time
	End    time.Time
	Count  int
}

func (r BarRequest) ranged() bool  { return !r.Start.IsZero() && !r.End.IsZero() }
func (r TickRequest) ranged() bool { return !r.Start.IsZero() && !r.End.IsZero() }

// HistoryFetcher materializes historical bars and ticks. Range requests are
// split into chunks no longer than the configured span and issued in time order.
type HistoryFetcher struct {
	logger      *zap.Logger
	transport   Transport
	instruments *InstrumentProvider
	metrics     *Metrics
	now         func() time.Time

	barSpan      time.Duration
	tickSpan     time.Duration
	pause        time.Duration
	defaultCount int
}

func NewHistoryFetcher(logger *zap.Logger, cfg Config, transport Transport, instruments *InstrumentProvider, metrics *Metrics) *HistoryFetcher {
	return &HistoryFetcher{
		logger:       logger,
		transport:    transport,
		instruments:  instruments,
		metrics:      metrics,
		now:          time.Now,
		barSpan:      cfg.BarChunkSpan,
		tickSpan:     cfg.TickChunkSpan,
		pause:        cfg.ChunkPause,
		defaultCount: cfg.DefaultCount,
	}
}

func (f *HistoryFetcher) FetchBars(ctx context.Context, req BarRequest) ([]common.Bar, error) {
	code, err := TimeframeCode(req.Period)
	if err != nil {
		return nil, &DataRequestError{Method: MethodCopyRatesRange, Symbol: req.Symbol, Err: err}
	}
	instrument, err := f.instruments.Ensure(ctx, req.Symbol)
	if err != nil {
		return nil, &DataRequestError{Method: MethodSymbolInfo, Symbol: req.Symbol, Err: err}
	}

	if !req.ranged() {
		count := req.Count
		if count <= 0 {
			count = f.defaultCount
		}
		params := []any{req.Symbol, code, f.countFrom(req.Start), count}
		rows, err := f.fetch(ctx, MethodCopyRatesFrom, params)
		if err != nil {
			return nil, &DataRequestError{Method: MethodCopyRatesFrom, Symbol: req.Symbol, Err: err}
		}
		bars := barsFromRows(f.logger, instrument, req.Period, rows, time.Time{}, time.Time{})
		f.logger.Info("bars received", zap.String("symbol", req.Symbol), zap.Int("count", len(bars)))
		return orderBars(bars), nil
	}

	var bars []common.Bar
	err = f.chunked(ctx, MethodCopyRatesRange, req.Symbol, req.Start, req.End, f.barSpan,
		func(from, to time.Time) []any {
			return []any{req.Symbol, code, from.Unix(), to.Unix()}
		},
		func(rows []row, from, to time.Time) {
			bars = append(bars, barsFromRows(f.logger, instrument, req.Period, rows, from, to)...)
		})
	if err != nil {
		return nil, &DataRequestError{Method: MethodCopyRatesRange, Symbol: req.Symbol, Err: err}
	}

	bars = orderBars(bars)
	f.logger.Info("paginated bars request finished",
		zap.String("symbol", req.Symbol),
		zap.Time("start", req.Start),
		zap.Time("end", req.End),
		zap.Int("count", len(bars)))
	return bars, nil
}

func (f *HistoryFetcher) FetchQuotes(ctx context.Context, req TickRequest) ([]common.Tick, error) {
	instrument, err := f.instruments.Ensure(ctx, req.Symbol)
	if err != nil {
		return nil, &DataRequestError{Method: MethodSymbolInfo, Symbol: req.Symbol, Err: err}
	}

	var quotes []common.Tick
	collect := func(rows []row, from, to time.Time) {
		quotes = append(quotes, quotesFromRows(f.logger, instrument, rows, from, to)...)
	}
	if err := f.fetchTicks(ctx, req, CopyTicksInfo, collect); err != nil {
		return nil, err
	}

	sort.SliceStable(quotes, func(i, j int) bool { return quotes[i].TimeStamp.Before(quotes[j].TimeStamp) })
	return quotes, nil
}

func (f *HistoryFetcher) FetchTrades(ctx context.Context, req TickRequest) ([]common.Trade, error) {
	instrument, err := f.instruments.Ensure(ctx, req.Symbol)
	if err != nil {
		return nil, &DataRequestError{Method: MethodSymbolInfo, Symbol: req.Symbol, Err: err}
	}

	var trades []common.Trade
	collect := func(rows []row, from, to time.Time) {
		trades = append(trades, tradesFromRows(f.logger, instrument, rows, from, to)...)
	}
	if err := f.fetchTicks(ctx, req, CopyTicksTrade, collect); err != nil {
		return nil, err
	}

	sort.SliceStable(trades, func(i, j int) bool { return trades[i].TimeStamp.Before(trades[j].TimeStamp) })
	return trades, nil
}

func (f *HistoryFetcher) fetchTicks(ctx context.Context, req TickRequest, flags int, collect func([]row, time.Time, time.Time)) error {
	if !req.ranged() {
		count := req.Count
		if count <= 0 {
			count = f.defaultCount
		}
		rows, err := f.fetch(ctx, MethodCopyTicksFrom, []any{req.Symbol, f.countFrom(req.Start), count, flags})
		if err != nil {
			return &DataRequestError{Method: MethodCopyTicksFrom, Symbol: req.Symbol, Err: err}
		}
		collect(rows, time.Time{}, time.Time{})
		return nil
	}

	err := f.chunked(ctx, MethodCopyTicksRange, req.Symbol, req.Start, req.End, f.tickSpan,
		func(from, to time.Time) []any {
			return []any{req.Symbol, from.Unix(), to.Unix(), flags}
		}, collect)
	if err != nil {
		return &DataRequestError{Method: MethodCopyTicksRange, Symbol: req.Symbol, Err: err}
	}
	return nil
}

// countFrom is the from_ts of a count request. The terminal reads backwards
// from it, so an unset start means now.
func (f *HistoryFetcher) countFrom(start time.Time) int64 {
	if start.IsZero() {
		return f.now().Unix()
	}
	return start.Unix()
}

func (f *HistoryFetcher) fetch(ctx context.Context, method Method, params []any) ([]row, error) {
	raw, err := f.transport.Call(ctx, method, params)
	if err != nil {
		return nil, err
	}
	return decodeRows(raw)
}

// chunked walks [start, end) in steps of span. A failed chunk is logged and
// left as a gap. The walk fails on cancellation or when no chunk succeeded.
func (f *HistoryFetcher) chunked(
	ctx context.Context,
	method Method,
	symbol string,
	start, end time.Time,
	span time.Duration,
	params func(from, to time.Time) []any,
	collect func(rows []row, from, to time.Time),
) error {
	if !start.Before(end) {
		return nil
	}

	f.logger.Info("starting paginated request",
		zap.String("method", string(method)),
		zap.String("symbol", symbol),
		zap.Time("start", start),
		zap.Time("end", end),
		zap.Duration("span", span))

	var failed, succeeded int
	var lastErr error
	for cursor := start; cursor.Before(end); {
		chunkEnd := cursor.Add(span)
		if chunkEnd.After(end) {
			chunkEnd = end
		}

		rows, err := f.fetch(ctx, method, params(cursor, chunkEnd))
		if f.metrics != nil {
			f.metrics.observeChunk(err)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			lastErr = err
			f.logger.Warn("chunk request failed",
				zap.String("method", string(method)),
				zap.String("symbol", symbol),
				zap.Time("from", cursor),
				zap.Time("to", chunkEnd),
				zap.Error(err))
		} else {
			succeeded++
			f.logger.Debug("chunk received",
				zap.String("method", string(method)),
				zap.Time("from", cursor),
				zap.Time("to", chunkEnd),
				zap.Int("rows", len(rows)))
			collect(rows, cursor, chunkEnd)
		}

		cursor = chunkEnd
		if cursor.Before(end) {
			if err := pause(ctx, f.pause); err != nil {
				return err
			}
		}
	}

	if succeeded == 0 && lastErr != nil {
		return fmt.Errorf("all %d chunks failed: %w", failed, lastErr)
	}
	return nil
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// within reports from <= t < to. A zero bound is open.
func within(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

func barsFromRows(logger *zap.Logger, instrument common.Instrument, period time.Duration, rows []row, from, to time.Time) []common.Bar {
	bars := make([]common.Bar, 0, len(rows))
	for _, r := range rows {
		if len(r) < minBarColumns {
			continue
		}
		bar, err := barFromRow(instrument, period, r)
		if err != nil {
			logger.Debug("dropping malformed bar row", zap.String("symbol", instrument.Symbol), zap.Error(err))
			continue
		}
		if !within(bar.OpenTime, from, to) {
			continue
		}
		bars = append(bars, bar)
	}
	return bars
}

func barFromRow(instrument common.Instrument, period time.Duration, r row) (common.Bar, error) {
	ts, err := r.int64(0)
	if err != nil {
		return common.Bar{}, err
	}
	var ohlcv [5]fixed.Point
	for i := range ohlcv {
		if ohlcv[i], err = r.point(i + 1); err != nil {
			return common.Bar{}, err
		}
	}

	open := time.Unix(ts, 0).UTC()
	closeTime := open.Add(period)
	return common.Bar{
		Source:    Venue,
		Symbol:    instrument.Symbol,
		TimeStamp: closeTime,
		Period:    period,
		OpenTime:  open,
		CloseTime: closeTime,
		Open:      instrument.Price(ohlcv[0]),
		High:      instrument.Price(ohlcv[1]),
		Low:       instrument.Price(ohlcv[2]),
		Close:     instrument.Price(ohlcv[3]),
		Volume:    instrument.Quantity(ohlcv[4]),
	}, nil
}

// orderBars sorts by open time and keeps the first bar of every open time.
func orderBars(bars []common.Bar) []common.Bar {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].OpenTime.Before(bars[j].OpenTime) })
	out := bars[:0]
	for _, bar := range bars {
		if len(out) > 0 && !bar.OpenTime.After(out[len(out)-1].OpenTime) {
			continue
		}
		out = append(out, bar)
	}
	return out
}

func tickTime(r row) (time.Time, error) {
	seconds, err := r.int64(0)
	if err != nil {
		return time.Time{}, err
	}
	var millis int64
	if len(r) > 5 {
		if millis, err = r.int64(5); err != nil {
			millis = 0
		}
	}
	return utility.TimeFromBroker(seconds, millis), nil
}

func quotesFromRows(logger *zap.Logger, instrument common.Instrument, rows []row, from, to time.Time) []common.Tick {
	unit := instrument.Quantity(fixed.One)
	quotes := make([]common.Tick, 0, len(rows))
	for _, r := range rows {
		if len(r) < minQuoteColumns {
			continue
		}
		ts, err := tickTime(r)
		if err != nil {
			logger.Debug("dropping malformed quote row", zap.String("symbol", instrument.Symbol), zap.Error(err))
			continue
		}
		bid, errBid := r.point(1)
		ask, errAsk := r.point(2)
		if errBid != nil || errAsk != nil {
			logger.Debug("dropping quote row without prices", zap.String("symbol", instrument.Symbol))
			continue
		}
		if !within(ts, from, to) {
			continue
		}
		quotes = append(quotes, common.Tick{
			Source:    Venue,
			Symbol:    instrument.Symbol,
			TimeStamp: ts,
			Bid:       instrument.Price(bid),
			Ask:       instrument.Price(ask),
			BidVolume: unit,
			AskVolume: unit,
		})
	}
	return quotes
}

func tradesFromRows(logger *zap.Logger, instrument common.Instrument, rows []row, from, to time.Time) []common.Trade {
	trades := make([]common.Trade, 0, len(rows))
	var lastMs int64
	seq := 0
	for _, r := range rows {
		if len(r) < minTradeColumns {
			continue
		}
		ts, err := tickTime(r)
		if err != nil {
			logger.Debug("dropping malformed trade row", zap.String("symbol", instrument.Symbol), zap.Error(err))
			continue
		}
		if !within(ts, from, to) {
			continue
		}

		price, err := r.point(3)
		if err != nil || price.IsZero() {
			if price, err = r.point(1); err != nil {
				continue
			}
		}
		size := fixed.Zero
		if len(r) > 7 {
			if v, err := r.point(7); err == nil {
				size = v
			}
		}
		if !size.IsPos() {
			if v, err := r.point(4); err == nil {
				size = v
			}
		}
		if !size.IsPos() {
			size = fixed.One
		}

		var flags int64
		if len(r) > 6 {
			flags, _ = r.int64(6)
		}

		ms := ts.UnixMilli()
		if ms == lastMs {
			seq++
		} else {
			lastMs, seq = ms, 0
		}

		trades = append(trades, common.Trade{
			Source:    Venue,
			Symbol:    instrument.Symbol,
			TimeStamp: ts,
			Price:     instrument.Price(price),
			Size:      instrument.Quantity(size),
			Aggressor: aggressorFromFlags(flags),
			TradeId:   strconv.FormatInt(ms, 10) + "-" + strconv.Itoa(seq),
		})
	}
	return trades
}

func aggressorFromFlags(flags int64) common.AggressorSide {
	switch {
	case flags&TickFlagBuy != 0 && flags&TickFlagSell == 0:
		return common.AggressorSideBuyer
	case flags&TickFlagSell != 0 && flags&TickFlagBuy == 0:
		return common.AggressorSideSeller
	}
	return common.AggressorSideNone
}
