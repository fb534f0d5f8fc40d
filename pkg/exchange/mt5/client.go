package mt5

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/equinox-mt5/pkg/bus"
	"github.com/peter-kozarec/equinox-mt5/pkg/common"
	"github.com/peter-kozarec/equinox-mt5/pkg/tools/store"
	"github.com/peter-kozarec/equinox-mt5/pkg/utility/fixed"
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "disconnected"
}

type AccountInfo struct {
	Login      int64
	Server     string
	Name       string
	Currency   string
	Leverage   int64
	Balance    fixed.Point
	Equity     fixed.Point
	Margin     fixed.Point
	MarginFree fixed.Point
}

// Client adapts the polling only terminal middleware to push style market
// data and synchronous order outcomes posted on the router.
type Client struct {
	cfg       Config
	logger    *zap.Logger
	transport Transport
	router    bus.Poster
	metrics   *Metrics
	store     *store.InstrumentStore
	now       func() time.Time

	instruments *InstrumentProvider
	history     *HistoryFetcher
	poller      *Poller

	mu      sync.Mutex
	state   State
	funding string
	account AccountInfo
	cancel  context.CancelFunc
}

type Option func(*Client)

func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithInstrumentStore(s *store.InstrumentStore) Option {
	return func(c *Client) {
		c.store = s
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

func NewClient(logger *zap.Logger, cfg Config, transport Transport, router bus.Poster, opts ...Option) *Client {
	c := &Client{
		cfg:       cfg,
		logger:    logger,
		transport: transport,
		router:    router,
		now:       time.Now,
		funding:   cfg.FundingCurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	if c.store == nil {
		c.store = store.NewInstrumentStore()
	}

	c.instruments = NewInstrumentProvider(logger.Named("instruments"), transport, c.store, cfg.SymbolsBatchSize, c.FundingCurrency)
	c.history = NewHistoryFetcher(logger.Named("history"), cfg, transport, c.instruments, c.metrics)
	c.poller = NewPoller(logger.Named("poller"), cfg, transport, c.instruments, router, c.metrics)
	c.history.now = c.now
	c.poller.now = c.now
	return c
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) Account() AccountInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.account
}

// FundingCurrency is the account currency once connected, the configured one before.
func (c *Client) FundingCurrency() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.funding
}

func (c *Client) Instruments() *InstrumentProvider {
	return c.instruments
}

func (c *Client) History() *HistoryFetcher {
	return c.history
}

// Connect logs in when credentials are configured, verifies the account and
// preloads instruments. Calling it while connected is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateConnected:
		c.mu.Unlock()
		return nil
	case StateConnecting:
		c.mu.Unlock()
		return &ConnectionError{Op: "connect", Err: ErrConnectInProgress}
	}
	c.state = StateConnecting
	c.mu.Unlock()

	c.logger.Info("connecting", zap.String("base_url", c.cfg.BaseURL))

	if err := c.connect(ctx); err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		c.logger.Error("unable to connect", zap.Error(err))
		return err
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		c.mu.Unlock()
		c.logger.Warn("connect aborted by disconnect")
		return &ConnectionError{Op: "connect", Err: ErrConnectAborted}
	}
	lifetime, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.poller.Open(lifetime)
	c.cancel = cancel
	c.state = StateConnected
	account := c.account
	c.mu.Unlock()

	c.logger.Info("connected",
		zap.Int64("login", account.Login),
		zap.String("server", account.Server),
		zap.String("currency", c.FundingCurrency()),
		zap.Int("instruments", c.store.Len()))
	return nil
}

func (c *Client) connect(ctx context.Context) error {
	if c.cfg.Login != 0 {
		if err := c.login(ctx); err != nil {
			return &ConnectionError{Op: "login", Err: err}
		}
	}

	account, err := c.fetchAccount(ctx)
	if err != nil {
		return &ConnectionError{Op: "account_info", Err: err}
	}

	c.mu.Lock()
	c.account = account
	if account.Currency != "" {
		c.funding = account.Currency
	}
	c.mu.Unlock()

	if c.cfg.LoadAllInstruments {
		if _, err := c.instruments.LoadAll(ctx); err != nil {
			return &ConnectionError{Op: "load instruments", Err: err}
		}
	}
	for _, symbol := range c.cfg.Instruments {
		if _, err := c.instruments.Ensure(ctx, symbol); err != nil {
			return &ConnectionError{Op: "load instrument " + symbol, Err: err}
		}
	}
	return nil
}

func (c *Client) login(ctx context.Context) error {
	raw, err := c.transport.Call(ctx, MethodLogin, map[string]any{
		"login":    c.cfg.Login,
		"password": c.cfg.Password,
		"server":   c.cfg.Server,
	})
	if err != nil {
		return err
	}
	v, err := Parse(raw)
	if err != nil {
		return err
	}
	if ok, isBool := v.(bool); isBool && !ok {
		return errors.New("terminal refused the credentials")
	}
	return nil
}

func (c *Client) fetchAccount(ctx context.Context) (AccountInfo, error) {
	raw, err := c.transport.Call(ctx, MethodAccountInfo, nil)
	if err != nil {
		return AccountInfo{}, err
	}
	var rec Record
	found, err := decodeResponse(raw, &rec)
	if err != nil {
		return AccountInfo{}, err
	}
	if !found || rec == nil {
		return AccountInfo{}, ErrEmptyResponse
	}
	login, err := rec.requireInt64("login")
	if err != nil {
		return AccountInfo{}, err
	}
	return AccountInfo{
		Login:      login,
		Server:     rec.str("server"),
		Name:       rec.str("name"),
		Currency:   rec.str("currency"),
		Leverage:   rec.optionalInt64("leverage"),
		Balance:    rec.optionalPoint("balance"),
		Equity:     rec.optionalPoint("equity"),
		Margin:     rec.optionalPoint("margin"),
		MarginFree: rec.optionalPoint("margin_free"),
	}, nil
}

// Disconnect stops polling, waits for the loop to exit and clears all
// subscriptions. A connect still in progress fails with ErrConnectAborted.
// It is safe to call repeatedly.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	wasConnected := c.state != StateDisconnected
	c.state = StateDisconnected
	c.mu.Unlock()

	c.poller.Close()
	if cancel != nil {
		cancel()
	}
	if wasConnected {
		c.logger.Info("disconnected")
	}
}

func (c *Client) prepareSubscription(ctx context.Context, kind, symbol string) (common.Instrument, error) {
	if c.State() != StateConnected {
		return common.Instrument{}, &SubscriptionError{Kind: kind, Symbol: symbol, Err: ErrNotConnected}
	}
	instrument, err := c.instruments.Ensure(ctx, symbol)
	if err != nil {
		return common.Instrument{}, &SubscriptionError{Kind: kind, Symbol: symbol, Err: err}
	}
	return instrument, nil
}

func (c *Client) SubscribeQuotes(ctx context.Context, symbol string) error {
	instrument, err := c.prepareSubscription(ctx, "quotes", symbol)
	if err != nil {
		return err
	}
	if err := c.poller.SubscribeQuotes(instrument.Symbol); err != nil {
		return &SubscriptionError{Kind: "quotes", Symbol: symbol, Err: err}
	}
	c.logger.Info("subscribed", zap.String("kind", "quotes"), zap.String("symbol", instrument.Symbol))
	return nil
}

func (c *Client) UnsubscribeQuotes(symbol string) {
	c.poller.UnsubscribeQuotes(c.canonical(symbol))
}

func (c *Client) SubscribeTrades(ctx context.Context, symbol string) error {
	instrument, err := c.prepareSubscription(ctx, "trades", symbol)
	if err != nil {
		return err
	}
	if err := c.poller.SubscribeTrades(instrument.Symbol); err != nil {
		return &SubscriptionError{Kind: "trades", Symbol: symbol, Err: err}
	}
	c.logger.Info("subscribed", zap.String("kind", "trades"), zap.String("symbol", instrument.Symbol))
	return nil
}

func (c *Client) UnsubscribeTrades(symbol string) {
	c.poller.UnsubscribeTrades(c.canonical(symbol))
}

func (c *Client) SubscribeBars(ctx context.Context, symbol string, period time.Duration) error {
	instrument, err := c.prepareSubscription(ctx, "bars", symbol)
	if err != nil {
		return err
	}
	if err := c.poller.SubscribeBars(BarKey{Symbol: instrument.Symbol, Period: period}); err != nil {
		return &SubscriptionError{Kind: "bars", Symbol: symbol, Err: err}
	}
	c.logger.Info("subscribed",
		zap.String("kind", "bars"),
		zap.String("symbol", instrument.Symbol),
		zap.Duration("period", period))
	return nil
}

func (c *Client) UnsubscribeBars(symbol string, period time.Duration) {
	c.poller.UnsubscribeBars(BarKey{Symbol: c.canonical(symbol), Period: period})
}

// SubscribeOrderBook always fails: the middleware has no depth data.
func (c *Client) SubscribeOrderBook(_ context.Context, symbol string) error {
	c.logger.Warn("order book deltas are not supported", zap.String("symbol", symbol))
	return &SubscriptionError{Kind: "order_book", Symbol: symbol, Err: fmt.Errorf("order book deltas: %w", errors.ErrUnsupported)}
}

func (c *Client) SubscribeOrderBookSnapshots(_ context.Context, symbol string) error {
	c.logger.Warn("order book snapshots are not supported", zap.String("symbol", symbol))
	return &SubscriptionError{Kind: "order_book_snapshots", Symbol: symbol, Err: fmt.Errorf("order book snapshots: %w", errors.ErrUnsupported)}
}

func (c *Client) canonical(symbol string) string {
	if instrument, err := c.store.Get(symbol); err == nil {
		return instrument.Symbol
	}
	return symbol
}

// RequestInstrument reloads one symbol and posts it to the router.
func (c *Client) RequestInstrument(ctx context.Context, symbol string) (common.Instrument, error) {
	instrument, err := c.instruments.Load(ctx, symbol)
	if err != nil {
		return common.Instrument{}, &DataRequestError{Method: MethodSymbolInfo, Symbol: symbol, Err: err}
	}
	c.post(bus.InstrumentEvent, instrument)
	return instrument, nil
}

// RequestInstruments reloads the whole table and posts every instrument.
func (c *Client) RequestInstruments(ctx context.Context) ([]common.Instrument, error) {
	if _, err := c.instruments.LoadAll(ctx); err != nil {
		return nil, &DataRequestError{Method: MethodSymbolsGet, Err: err}
	}
	var instruments []common.Instrument
	for _, symbol := range c.store.Symbols() {
		instrument, err := c.store.Get(symbol)
		if err != nil {
			continue
		}
		instruments = append(instruments, instrument)
		c.post(bus.InstrumentEvent, instrument)
	}
	return instruments, nil
}

func (c *Client) RequestBars(ctx context.Context, req BarRequest) ([]common.Bar, error) {
	return c.history.FetchBars(ctx, req)
}

func (c *Client) RequestQuotes(ctx context.Context, req TickRequest) ([]common.Tick, error) {
	return c.history.FetchQuotes(ctx, req)
}

func (c *Client) RequestTrades(ctx context.Context, req TickRequest) ([]common.Trade, error) {
	return c.history.FetchTrades(ctx, req)
}

func (c *Client) post(id bus.EventId, data any) {
	if err := c.router.Post(id, data); err != nil {
		c.logger.Warn("unable to post event", zap.Stringer("event", id), zap.Error(err))
	}
}
