package mt5

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/exp/constraints"

	"github.com/peter-kozarec/equinox-mt5/pkg/bus"
	"github.com/peter-kozarec/equinox-mt5/pkg/common"
	"github.com/peter-kozarec/equinox-mt5/pkg/utility"
	"github.com/peter-kozarec/equinox-mt5/pkg/utility/fixed"
)

type BarKey struct {
	Symbol string
	Period time.Duration
}

func (k BarKey) String() string {
	return fmt.Sprintf("%s-%s", k.Symbol, k.Period)
}

// tickInfo is the symbol_info_tick result.
type tickInfo struct {
	Time       json.Number `json:"time"`
	Bid        json.Number `json:"bid"`
	Ask        json.Number `json:"ask"`
	Last       json.Number `json:"last"`
	Volume     json.Number `json:"volume"`
	TimeMsc    json.Number `json:"time_msc"`
	Flags      json.Number `json:"flags"`
	VolumeReal json.Number `json:"volume_real"`
}

func (t tickInfo) millis() int64 {
	if ms, err := numberToInt64(t.TimeMsc); err == nil && ms > 0 {
		return ms
	}
	if s, err := numberToInt64(t.Time); err == nil {
		return s * 1000
	}
	return 0
}

func pointOrZero(n json.Number) fixed.Point {
	if n == "" {
		return fixed.Zero
	}
	p, err := numberToPoint(n)
	if err != nil {
		return fixed.Zero
	}
	return p
}

// Poller emulates push delivery over symbol_info_tick and copy_rates_range.
// A single goroutine runs while any subscription exists. Every data kind keeps
// its own last seen map so quotes, trades and bars never shadow each other.
type Poller struct {
	logger      *zap.Logger
	transport   Transport
	instruments *InstrumentProvider
	router      bus.Poster
	metrics     *Metrics
	now         func() time.Time

	base, min, max time.Duration
	shrink, grow   float64

	mu        sync.Mutex
	parent    context.Context
	quotes    map[string]struct{}
	trades    map[string]struct{}
	bars      map[BarKey]struct{}
	lastQuote map[string]int64
	lastTrade map[string]int64
	lastBar   map[BarKey]time.Time
	interval  time.Duration
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewPoller(logger *zap.Logger, cfg Config, transport Transport, instruments *InstrumentProvider, router bus.Poster, metrics *Metrics) *Poller {
	p := &Poller{
		logger:      logger,
		transport:   transport,
		instruments: instruments,
		router:      router,
		metrics:     metrics,
		now:         time.Now,
		base:        cfg.PollInterval,
		min:         cfg.MinPollInterval,
		max:         cfg.MaxPollInterval,
		shrink:      cfg.PollShrink,
		grow:        cfg.PollGrow,
		quotes:      make(map[string]struct{}),
		trades:      make(map[string]struct{}),
		bars:        make(map[BarKey]struct{}),
		lastQuote:   make(map[string]int64),
		lastTrade:   make(map[string]int64),
		lastBar:     make(map[BarKey]time.Time),
		interval:    cfg.PollInterval,
	}
	return p
}

// reset clears in place, the maps are shared with a running cycle.
func (p *Poller) reset() {
	clear(p.quotes)
	clear(p.trades)
	clear(p.bars)
	clear(p.lastQuote)
	clear(p.lastTrade)
	clear(p.lastBar)
	p.interval = p.base
}

// Open binds the poller to the lifetime of ctx. Subscriptions made before
// Open are rejected.
func (p *Poller) Open(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.parent = ctx
}

// Close stops the polling goroutine, waits for it and clears every subscription.
func (p *Poller) Close() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.parent = nil
	p.reset()
	p.mu.Unlock()

	p.stop(cancel, done)
}

func (p *Poller) SubscribeQuotes(symbol string) error {
	return p.subscribe(func() { p.quotes[symbol] = struct{}{} })
}

func (p *Poller) UnsubscribeQuotes(symbol string) {
	p.unsubscribe(func() {
		delete(p.quotes, symbol)
		delete(p.lastQuote, symbol)
	})
}

func (p *Poller) SubscribeTrades(symbol string) error {
	return p.subscribe(func() { p.trades[symbol] = struct{}{} })
}

func (p *Poller) UnsubscribeTrades(symbol string) {
	p.unsubscribe(func() {
		delete(p.trades, symbol)
		delete(p.lastTrade, symbol)
	})
}

func (p *Poller) SubscribeBars(key BarKey) error {
	if _, err := TimeframeCode(key.Period); err != nil {
		return err
	}
	return p.subscribe(func() { p.bars[key] = struct{}{} })
}

func (p *Poller) UnsubscribeBars(key BarKey) {
	p.unsubscribe(func() {
		delete(p.bars, key)
		delete(p.lastBar, key)
	})
}

// Running reports whether the polling goroutine is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

func (p *Poller) subscribe(add func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.parent == nil {
		return ErrNotConnected
	}
	add()
	if p.cancel == nil {
		ctx, cancel := context.WithCancel(p.parent)
		p.cancel, p.done = cancel, make(chan struct{})
		p.interval = p.base
		go p.run(ctx, p.done)
		p.logger.Info("polling loop started", zap.Duration("base_interval", p.base))
	}
	return nil
}

func (p *Poller) unsubscribe(remove func()) {
	p.mu.Lock()
	remove()
	var cancel context.CancelFunc
	var done chan struct{}
	if p.idle() {
		cancel, done = p.cancel, p.done
		p.cancel, p.done = nil, nil
	}
	p.mu.Unlock()

	p.stop(cancel, done)
}

func (p *Poller) idle() bool {
	return len(p.quotes) == 0 && len(p.trades) == 0 && len(p.bars) == 0
}

func (p *Poller) stop(cancel context.CancelFunc, done chan struct{}) {
	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.logger.Info("polling loop stopped")
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		got := p.pollOnce(ctx)
		if ctx.Err() != nil {
			return
		}

		p.mu.Lock()
		p.interval = nextInterval(p.interval, got, p.min, p.max, p.shrink, p.grow)
		interval := p.interval
		p.mu.Unlock()

		if p.metrics != nil {
			p.metrics.observePollCycle(interval)
		}
		if err := pause(ctx, interval); err != nil {
			return
		}
	}
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// nextInterval shrinks the interval after a cycle with new data and grows it otherwise.
func nextInterval(current time.Duration, gotData bool, lo, hi time.Duration, shrink, grow float64) time.Duration {
	factor := grow
	if gotData {
		factor = shrink
	}
	return clamp(time.Duration(float64(current)*factor), lo, hi)
}

type pollSnapshot struct {
	quotes []string
	trades []string
	bars   []BarKey
}

func (p *Poller) snapshot() pollSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	var s pollSnapshot
	for symbol := range p.quotes {
		s.quotes = append(s.quotes, symbol)
	}
	for symbol := range p.trades {
		s.trades = append(s.trades, symbol)
	}
	for key := range p.bars {
		s.bars = append(s.bars, key)
	}
	sort.Strings(s.quotes)
	sort.Strings(s.trades)
	sort.Slice(s.bars, func(i, j int) bool { return s.bars[i].String() < s.bars[j].String() })
	return s
}

// pollOnce runs a single cycle over a snapshot of the subscription sets and
// reports whether anything new was emitted. Failures stay scoped to their symbol.
func (p *Poller) pollOnce(ctx context.Context) bool {
	s := p.snapshot()
	got := false

	for _, symbol := range s.quotes {
		emitted, err := p.pollQuote(ctx, symbol)
		if err != nil {
			p.logger.Warn("failed to poll quote", zap.String("symbol", symbol), zap.Error(err))
		}
		got = got || emitted
	}
	for _, symbol := range s.trades {
		emitted, err := p.pollTrade(ctx, symbol)
		if err != nil {
			p.logger.Warn("failed to poll trade", zap.String("symbol", symbol), zap.Error(err))
		}
		got = got || emitted
	}
	for _, key := range s.bars {
		emitted, err := p.pollBar(ctx, key)
		if err != nil {
			p.logger.Warn("failed to poll bar", zap.Stringer("key", key), zap.Error(err))
		}
		got = got || emitted
	}
	return got
}

func (p *Poller) fetchTick(ctx context.Context, symbol string) (tickInfo, bool, error) {
	raw, err := p.transport.Call(ctx, MethodSymbolInfoTick, []any{symbol})
	if err != nil {
		return tickInfo{}, false, err
	}
	var tick tickInfo
	found, err := decodeResponse(raw, &tick)
	return tick, found, err
}

// fresh reports whether ts is newer than the last delivered mark of a
// still subscribed key.
func fresh[K comparable](p *Poller, subscribed map[K]struct{}, last map[K]int64, key K, ts int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := subscribed[key]; !ok {
		return false
	}
	return ts > last[key]
}

// commit moves the last delivered mark of key forward once the router took the event.
func commit[K comparable](p *Poller, subscribed map[K]struct{}, last map[K]int64, key K, ts int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := subscribed[key]; ok && ts > last[key] {
		last[key] = ts
	}
}

func (p *Poller) pollQuote(ctx context.Context, symbol string) (bool, error) {
	tick, found, err := p.fetchTick(ctx, symbol)
	if err != nil || !found {
		return false, err
	}
	instrument, err := p.instruments.Store().Get(symbol)
	if err != nil {
		return false, err
	}

	ms := tick.millis()
	if ctx.Err() != nil || !fresh(p, p.quotes, p.lastQuote, symbol, ms) {
		return false, nil
	}

	unit := instrument.Quantity(fixed.One)
	posted := p.emit(bus.TickEvent, "quote", common.Tick{
		Source:    Venue,
		Symbol:    instrument.Symbol,
		TimeStamp: utility.TimeFromBroker(0, ms),
		Bid:       instrument.Price(pointOrZero(tick.Bid)),
		Ask:       instrument.Price(pointOrZero(tick.Ask)),
		BidVolume: unit,
		AskVolume: unit,
	})
	if posted {
		commit(p, p.quotes, p.lastQuote, symbol, ms)
	}
	return posted, nil
}

func (p *Poller) pollTrade(ctx context.Context, symbol string) (bool, error) {
	tick, found, err := p.fetchTick(ctx, symbol)
	if err != nil || !found {
		return false, err
	}
	instrument, err := p.instruments.Store().Get(symbol)
	if err != nil {
		return false, err
	}

	ms := tick.millis()
	if ctx.Err() != nil || !fresh(p, p.trades, p.lastTrade, symbol, ms) {
		return false, nil
	}

	price := pointOrZero(tick.Last)
	if price.IsZero() {
		price = pointOrZero(tick.Bid)
	}
	size := pointOrZero(tick.VolumeReal)
	if !size.IsPos() {
		size = pointOrZero(tick.Volume)
	}
	if !size.IsPos() {
		size = fixed.One
	}
	flags, _ := numberToInt64(tick.Flags)

	posted := p.emit(bus.TradeEvent, "trade", common.Trade{
		Source:    Venue,
		Symbol:    instrument.Symbol,
		TimeStamp: utility.TimeFromBroker(0, ms),
		Price:     instrument.Price(price),
		Size:      instrument.Quantity(size),
		Aggressor: aggressorFromFlags(flags),
		TradeId:   fmt.Sprintf("%d-0", ms),
	})
	if posted {
		commit(p, p.trades, p.lastTrade, symbol, ms)
	}
	return posted, nil
}

// pollBar emits closed bars newer than the last one delivered for key. The
// first cycle after subscribing only delivers the most recent closed bar.
func (p *Poller) pollBar(ctx context.Context, key BarKey) (bool, error) {
	code, err := TimeframeCode(key.Period)
	if err != nil {
		return false, err
	}
	instrument, err := p.instruments.Store().Get(key.Symbol)
	if err != nil {
		return false, err
	}

	now := p.now().UTC()
	raw, err := p.transport.Call(ctx, MethodCopyRatesRange, []any{key.Symbol, code, now.Add(-2 * key.Period).Unix(), now.Unix()})
	if err != nil {
		return false, err
	}
	rows, err := decodeRows(raw)
	if err != nil {
		return false, err
	}

	var closed []common.Bar
	for _, bar := range orderBars(barsFromRows(p.logger, instrument, key.Period, rows, time.Time{}, time.Time{})) {
		if !bar.CloseTime.After(now) {
			closed = append(closed, bar)
		}
	}
	if len(closed) == 0 {
		return false, nil
	}

	p.mu.Lock()
	_, subscribed := p.bars[key]
	last, seen := p.lastBar[key]
	p.mu.Unlock()
	if !subscribed {
		return false, nil
	}
	if !seen {
		closed = closed[len(closed)-1:]
	}

	emitted := false
	for _, bar := range closed {
		if seen && !bar.OpenTime.After(last) {
			continue
		}
		if ctx.Err() != nil {
			return emitted, nil
		}
		if !p.emit(bus.BarEvent, "bar", bar) {
			break
		}
		p.mu.Lock()
		if _, ok := p.bars[key]; ok {
			p.lastBar[key] = bar.OpenTime
		}
		p.mu.Unlock()
		emitted = true
	}
	return emitted, nil
}

// emit reports whether the router accepted the event. A rejected event is
// not marked as delivered and is retried on the next cycle.
func (p *Poller) emit(id bus.EventId, kind string, data any) bool {
	if err := p.router.Post(id, data); err != nil {
		p.logger.Warn("unable to post market data", zap.String("kind", kind), zap.Error(err))
		return false
	}
	if p.metrics != nil {
		p.metrics.observeEmitted(kind)
	}
	return true
}
