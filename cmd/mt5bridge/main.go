package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/peter-kozarec/equinox-mt5/internal/config"
	"github.com/peter-kozarec/equinox-mt5/internal/dbg"
	"github.com/peter-kozarec/equinox-mt5/pkg/bus"
	"github.com/peter-kozarec/equinox-mt5/pkg/exchange/mt5"
	"github.com/peter-kozarec/equinox-mt5/pkg/middleware"
)

const (
	Version         = "0.1.0"
	shutdownTimeout = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "mt5bridge.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := dbg.NewLogger(cfg.Log.Level, cfg.Log.Production)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("mt5bridge started", zap.String("version", Version), zap.String("base_url", cfg.MT5.BaseURL))
	defer logger.Info("mt5bridge finished")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("bridge terminated", zap.Error(err))
		cancel()
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *zap.Logger, cfg *config.Config) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	metrics := mt5.NewMetrics(reg)
	transport := mt5.NewHTTPTransport(logger, cfg.MT5.BaseURL,
		mt5.WithTimeout(cfg.MT5.Timeout),
		mt5.WithTransportMetrics(metrics))

	router := bus.NewRouter(logger, cfg.Router.Capacity)
	flags, _ := middleware.ParseMonitorFlags(cfg.Monitor)
	monitor := middleware.NewMonitor(logger, flags)
	telemetry := middleware.NewTelemetry(logger, reg)

	router.OnTick = monitor.WithTick(telemetry.WithTick(middleware.NoopTickHdl))
	router.OnTrade = monitor.WithTrade(telemetry.WithTrade(middleware.NoopTradeHdl))
	router.OnBar = monitor.WithBar(telemetry.WithBar(middleware.NoopBarHdl))
	router.OnInstrument = monitor.WithInstrument(telemetry.WithInstrument(middleware.NoopInstrumentHdl))
	router.OnOrderAccepted = monitor.WithOrderAccepted(telemetry.WithOrderAccepted(middleware.NoopOrderAccHdl))
	router.OnOrderRejected = monitor.WithOrderRejected(telemetry.WithOrderRejected(middleware.NoopOrderRjctHdl))
	router.OnOrderStatusReport = monitor.WithOrderStatusReport(telemetry.WithOrderStatusReport(middleware.NoopOrderRptHdl))
	router.OnFillReport = monitor.WithFillReport(telemetry.WithFillReport(middleware.NoopFillRptHdl))
	router.OnPositionStatusReport = monitor.WithPositionStatusReport(telemetry.WithPositionStatusReport(middleware.NoopPosRptHdl))

	defer func() { logger.Info("router statistics", router.Statistics().Fields()...) }()
	defer telemetry.PrintStatistics()

	client := mt5.NewClient(logger, cfg.MT5, transport, router, mt5.WithMetrics(metrics))

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	abort := func(err error) error {
		stop()
		return errors.Join(err, g.Wait())
	}

	g.Go(func() error {
		if err := <-router.Exec(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           newHTTPHandler(reg, cfg.Metrics.Path, client),
			ReadHeaderTimeout: shutdownTimeout,
		}
		g.Go(func() error {
			logger.Info("http server listening", zap.String("addr", cfg.Metrics.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := client.Connect(ctx); err != nil {
		return abort(err)
	}
	defer client.Disconnect()

	if err := subscribe(ctx, client, cfg.Subscriptions); err != nil {
		return abort(err)
	}

	g.Go(func() error {
		return reconcileLoop(ctx, logger, client, cfg.Reconcile)
	})

	return g.Wait()
}

func subscribe(ctx context.Context, client *mt5.Client, subs config.SubscriptionsConfig) error {
	for _, symbol := range subs.Quotes {
		if err := client.SubscribeQuotes(ctx, symbol); err != nil {
			return err
		}
	}
	for _, symbol := range subs.Trades {
		if err := client.SubscribeTrades(ctx, symbol); err != nil {
			return err
		}
	}
	for _, bar := range subs.Bars {
		period, err := mt5.ParseTimeframe(bar.Timeframe)
		if err != nil {
			return err
		}
		if err := client.SubscribeBars(ctx, bar.Symbol, period); err != nil {
			return err
		}
	}
	return nil
}

func reconcileLoop(ctx context.Context, logger *zap.Logger, client *mt5.Client, cfg config.ReconcileConfig) error {
	reconcile := func() {
		if err := client.Reconcile(ctx, mt5.ReportQuery{}); err != nil && ctx.Err() == nil {
			logger.Warn("reconciliation failed", zap.Error(err))
		}
	}

	if cfg.OnConnect {
		reconcile()
	}
	if cfg.Interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			reconcile()
		}
	}
}
