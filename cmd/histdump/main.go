package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/equinox-mt5/internal/config"
	"github.com/peter-kozarec/equinox-mt5/internal/dbg"
	"github.com/peter-kozarec/equinox-mt5/pkg/exchange/mt5"
	"github.com/peter-kozarec/equinox-mt5/pkg/tools/store"
)

type options struct {
	configPath string
	kind       string
	symbol     string
	timeframe  string
	from       string
	to         string
	count      int
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "mt5bridge.yaml", "path to the configuration file")
	flag.StringVar(&opts.kind, "kind", "bars", "bars, quotes or trades")
	flag.StringVar(&opts.symbol, "symbol", "", "symbol")
	flag.StringVar(&opts.timeframe, "timeframe", "M1", "bar timeframe")
	flag.StringVar(&opts.from, "from", "", "range start (RFC3339)")
	flag.StringVar(&opts.to, "to", "", "range end (RFC3339), defaults to now")
	flag.IntVar(&opts.count, "count", 0, "bars or ticks to fetch when no range is given")
	flag.Parse()

	if err := run(opts); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(opts options) error {
	if opts.symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	start, end, err := parseRange(opts.from, opts.to, time.Now().UTC())
	if err != nil {
		return err
	}

	cfg, err := config.LoadAndValidate(opts.configPath)
	if err != nil {
		return err
	}
	logger, err := dbg.NewLogger(cfg.Log.Level, cfg.Log.Production)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	metrics := mt5.NewMetrics(nil)
	transport := mt5.NewHTTPTransport(logger, cfg.MT5.BaseURL, mt5.WithTimeout(cfg.MT5.Timeout))
	funding := func() string { return cfg.MT5.FundingCurrency }
	instruments := mt5.NewInstrumentProvider(logger, transport, store.NewInstrumentStore(), cfg.MT5.SymbolsBatchSize, funding)
	history := mt5.NewHistoryFetcher(logger, cfg.MT5, transport, instruments, metrics)

	switch opts.kind {
	case "bars":
		period, err := mt5.ParseTimeframe(opts.timeframe)
		if err != nil {
			return err
		}
		bars, err := history.FetchBars(ctx, barRequest(opts.symbol, period, start, end, opts.count))
		if err != nil {
			return err
		}
		logger.Info("dump finished", zap.String("symbol", opts.symbol), zap.Int("bars", len(bars)))
		return writeBars(os.Stdout, bars)
	case "quotes":
		quotes, err := history.FetchQuotes(ctx, tickRequest(opts.symbol, start, end, opts.count))
		if err != nil {
			return err
		}
		logger.Info("dump finished", zap.String("symbol", opts.symbol), zap.Int("quotes", len(quotes)))
		return writeQuotes(os.Stdout, quotes)
	case "trades":
		trades, err := history.FetchTrades(ctx, tickRequest(opts.symbol, start, end, opts.count))
		if err != nil {
			return err
		}
		logger.Info("dump finished", zap.String("symbol", opts.symbol), zap.Int("trades", len(trades)))
		return writeTrades(os.Stdout, trades)
	}
	return fmt.Errorf("unknown kind %q", opts.kind)
}

// parseRange returns a zero start when from is empty.
func parseRange(from, to string, now time.Time) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error
	if from != "" {
		if start, err = time.Parse(time.RFC3339, from); err != nil {
			return start, end, fmt.Errorf("invalid -from: %w", err)
		}
	}
	end = now
	if to != "" {
		if end, err = time.Parse(time.RFC3339, to); err != nil {
			return start, end, fmt.Errorf("invalid -to: %w", err)
		}
	}
	if !start.IsZero() && !end.After(start) {
		return start, end, fmt.Errorf("-to must be after -from")
	}
	return start, end, nil
}

// barRequest switches to count mode when a count is given or no start is set,
// reading backwards from the range end.
func barRequest(symbol string, period time.Duration, start, end time.Time, count int) mt5.BarRequest {
	if count > 0 || start.IsZero() {
		return mt5.BarRequest{Symbol: symbol, Period: period, Start: end, Count: count}
	}
	return mt5.BarRequest{Symbol: symbol, Period: period, Start: start, End: end}
}

func tickRequest(symbol string, start, end time.Time, count int) mt5.TickRequest {
	if count > 0 || start.IsZero() {
		return mt5.TickRequest{Symbol: symbol, Start: end, Count: count}
	}
	return mt5.TickRequest{Symbol: symbol, Start: start, End: end}
}
