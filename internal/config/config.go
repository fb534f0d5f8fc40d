// Package config loads the bridge configuration file.
package config

import (
	"time"

	"github.com/peter-kozarec/equinox-mt5/pkg/exchange/mt5"
)

type Config struct {
	Log           LogConfig           `yaml:"log"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Router        RouterConfig        `yaml:"router"`
	Monitor       []string            `yaml:"monitor"`
	MT5           mt5.Config          `yaml:"mt5"`
	Subscriptions SubscriptionsConfig `yaml:"subscriptions"`
	Reconcile     ReconcileConfig     `yaml:"reconcile"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Production bool   `yaml:"production"`
}

// MetricsConfig controls the HTTP surface. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
}

type RouterConfig struct {
	Capacity int `yaml:"capacity"`
}

type BarSubscription struct {
	Symbol    string `yaml:"symbol"`
	Timeframe string `yaml:"timeframe"`
}

type SubscriptionsConfig struct {
	Quotes []string          `yaml:"quotes"`
	Trades []string          `yaml:"trades"`
	Bars   []BarSubscription `yaml:"bars"`
}

// ReconcileConfig schedules report generation. A zero Interval runs it only on connect.
type ReconcileConfig struct {
	OnConnect bool          `yaml:"on_connect"`
	Interval  time.Duration `yaml:"interval"`
}
