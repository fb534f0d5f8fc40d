package config

const (
	DefaultLogLevel       = "info"
	DefaultMetricsPath    = "/metrics"
	DefaultRouterCapacity = 1000
)

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Router.Capacity == 0 {
		c.Router.Capacity = DefaultRouterCapacity
	}
	c.MT5.ApplyDefaults()
}
