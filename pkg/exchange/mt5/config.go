package mt5

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

const Venue = "MT5"

type Config struct {
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
	Login    int64         `yaml:"login"`
	Password string        `yaml:"password"`
	Server   string        `yaml:"server"`

	// FundingCurrency is used when the account does not report one.
	FundingCurrency string `yaml:"funding_currency"`

	PollInterval    time.Duration `yaml:"poll_interval"`
	MinPollInterval time.Duration `yaml:"min_poll_interval"`
	MaxPollInterval time.Duration `yaml:"max_poll_interval"`
	PollShrink      float64       `yaml:"poll_shrink"`
	PollGrow        float64       `yaml:"poll_grow"`

	BarChunkSpan  time.Duration `yaml:"bar_chunk_span"`
	TickChunkSpan time.Duration `yaml:"tick_chunk_span"`
	ChunkPause    time.Duration `yaml:"chunk_pause"`
	DefaultCount  int           `yaml:"default_count"`

	SymbolsBatchSize   int      `yaml:"symbols_batch_size"`
	LoadAllInstruments bool     `yaml:"load_all_instruments"`
	Instruments        []string `yaml:"instruments"`

	ReportLookback time.Duration `yaml:"report_lookback"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:          "http://localhost:5000",
		Timeout:          30 * time.Second,
		FundingCurrency:  "USD",
		PollInterval:     time.Second,
		MinPollInterval:  100 * time.Millisecond,
		MaxPollInterval:  5 * time.Second,
		PollShrink:       0.8,
		PollGrow:         1.2,
		BarChunkSpan:     30 * 24 * time.Hour,
		TickChunkSpan:    6 * time.Hour,
		ChunkPause:       10 * time.Millisecond,
		DefaultCount:     1000,
		SymbolsBatchSize: 50,
		ReportLookback:   24 * time.Hour,
	}
}

// ApplyDefaults fills zero valued fields from DefaultConfig.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.FundingCurrency == "" {
		c.FundingCurrency = d.FundingCurrency
	}
	if c.PollInterval == 0 {
		c.PollInterval = d.PollInterval
	}
	if c.MinPollInterval == 0 {
		c.MinPollInterval = d.MinPollInterval
	}
	if c.MaxPollInterval == 0 {
		c.MaxPollInterval = d.MaxPollInterval
	}
	if c.PollShrink == 0 {
		c.PollShrink = d.PollShrink
	}
	if c.PollGrow == 0 {
		c.PollGrow = d.PollGrow
	}
	if c.BarChunkSpan == 0 {
		c.BarChunkSpan = d.BarChunkSpan
	}
	if c.TickChunkSpan == 0 {
		c.TickChunkSpan = d.TickChunkSpan
	}
	if c.ChunkPause == 0 {
		c.ChunkPause = d.ChunkPause
	}
	if c.DefaultCount == 0 {
		c.DefaultCount = d.DefaultCount
	}
	if c.SymbolsBatchSize == 0 {
		c.SymbolsBatchSize = d.SymbolsBatchSize
	}
	if c.ReportLookback == 0 {
		c.ReportLookback = d.ReportLookback
	}
}

func (c Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("base_url %q is not an absolute url", c.BaseURL))
	}
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if len(c.FundingCurrency) != 3 {
		errs = append(errs, fmt.Errorf("funding_currency %q must have 3 letters", c.FundingCurrency))
	}
	if c.MinPollInterval <= 0 || c.MinPollInterval > c.MaxPollInterval {
		errs = append(errs, errors.New("min_poll_interval must be positive and not above max_poll_interval"))
	}
	if c.PollInterval < c.MinPollInterval || c.PollInterval > c.MaxPollInterval {
		errs = append(errs, errors.New("poll_interval must lie within min_poll_interval and max_poll_interval"))
	}
	if c.PollShrink <= 0 || c.PollShrink >= 1 {
		errs = append(errs, errors.New("poll_shrink must be in (0, 1)"))
	}
	if c.PollGrow <= 1 {
		errs = append(errs, errors.New("poll_grow must be above 1"))
	}
	if c.BarChunkSpan <= 0 || c.TickChunkSpan <= 0 {
		errs = append(errs, errors.New("chunk spans must be positive"))
	}
	if c.ChunkPause < 0 {
		errs = append(errs, errors.New("chunk_pause must not be negative"))
	}
	if c.DefaultCount <= 0 {
		errs = append(errs, errors.New("default_count must be positive"))
	}
	if c.SymbolsBatchSize <= 0 {
		errs = append(errs, errors.New("symbols_batch_size must be positive"))
	}
	if c.ReportLookback <= 0 {
		errs = append(errs, errors.New("report_lookback must be positive"))
	}

	return errors.Join(errs...)
}
