package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultListenAddr      = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultURLTemplate     = "https://www.tradingview.com/symbols/%s/?exchange=BINANCE"
	DefaultPriceSelector   = ".lastContainer-zoF9r75I"
	DefaultNavTimeout      = 10 * time.Second
	DefaultScrapeTimeout   = 5 * time.Second
	DefaultPollInterval    = 2 * time.Second
	DefaultPollConcurrency = 8
	DefaultPollTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 5 * time.Second
	DefaultPingInterval    = 50 * time.Second
	DefaultPongWait        = 60 * time.Second
	DefaultSendBufferSize  = 256
	DefaultMaxMessageSize  = 4096
	DefaultMetricsPort     = 9090
	DefaultMetricsPath     = "/metrics"
)

func (c *ServerConfig) applyDefaults() {
	// Instance defaults
	if c.Instance.ID == "" {
		c.Instance.ID = "tickerstream-1"
	}

	// Listener defaults
	if c.Listen.Addr == "" {
		c.Listen.Addr = DefaultListenAddr
	}
	if c.Listen.ShutdownTimeout == 0 {
		c.Listen.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Browser defaults
	if c.Browser.URLTemplate == "" {
		c.Browser.URLTemplate = DefaultURLTemplate
	}
	if c.Browser.PriceSelector == "" {
		c.Browser.PriceSelector = DefaultPriceSelector
	}
	if c.Browser.NavTimeout == 0 {
		c.Browser.NavTimeout = DefaultNavTimeout
	}
	if c.Browser.ScrapeTimeout == 0 {
		c.Browser.ScrapeTimeout = DefaultScrapeTimeout
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.Concurrency == 0 {
		c.Poller.Concurrency = DefaultPollConcurrency
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = DefaultPollTimeout
	}

	// Connection defaults
	if c.Connections.WriteTimeout == 0 {
		c.Connections.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connections.PingInterval == 0 {
		c.Connections.PingInterval = DefaultPingInterval
	}
	if c.Connections.PongWait == 0 {
		c.Connections.PongWait = DefaultPongWait
	}
	if c.Connections.SendBufferSize == 0 {
		c.Connections.SendBufferSize = DefaultSendBufferSize
	}
	if c.Connections.MaxMessageSize == 0 {
		c.Connections.MaxMessageSize = DefaultMaxMessageSize
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
