package config

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/peter-kozarec/equinox-mt5/pkg/exchange/mt5"
	"github.com/peter-kozarec/equinox-mt5/pkg/middleware"
)

func (c *Config) Validate() error {
	var errs []error

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Metrics.Addr != "" && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("metrics.path %q must start with /", c.Metrics.Path))
	}
	if c.Router.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("router.capacity (%d) must be positive", c.Router.Capacity))
	}
	if _, unknown := middleware.ParseMonitorFlags(c.Monitor); len(unknown) > 0 {
		errs = append(errs, fmt.Errorf("monitor: unknown flags %s", strings.Join(unknown, ", ")))
	}
	if err := c.MT5.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("mt5: %w", err))
	}
	for i, bar := range c.Subscriptions.Bars {
		if bar.Symbol == "" {
			errs = append(errs, fmt.Errorf("subscriptions.bars[%d].symbol is required", i))
		}
		if _, err := mt5.ParseTimeframe(bar.Timeframe); err != nil {
			errs = append(errs, fmt.Errorf("subscriptions.bars[%d]: %w", i, err))
		}
	}
	if c.Reconcile.Interval < 0 {
		errs = append(errs, errors.New("reconcile.interval must not be negative"))
	}

	return errors.Join(errs...)
}
