package config

import "time"

// ServerConfig is the root configuration for a server instance.
type ServerConfig struct {
	Instance    InstanceConfig    `yaml:"instance"`
	Listen      ListenConfig      `yaml:"listen"`
	Browser     BrowserConfig     `yaml:"browser"`
	Poller      PollerConfig      `yaml:"poller"`
	Connections ConnectionsConfig `yaml:"connections"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// InstanceConfig identifies this server.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ListenConfig holds the client-facing HTTP/WebSocket listener settings.
type ListenConfig struct {
	Addr            string        `yaml:"addr"`             // host:port for /ws
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // graceful stop deadline
}

// BrowserConfig holds headless browser and scraping settings.
type BrowserConfig struct {
	ExecPath      string        `yaml:"exec_path"`      // optional browser binary path
	Headless      bool          `yaml:"headless"`       // run without a window
	URLTemplate   string        `yaml:"url_template"`   // symbol page, %s = symbol
	PriceSelector string        `yaml:"price_selector"` // CSS selector for the price element
	NavTimeout    time.Duration `yaml:"nav_timeout"`    // page navigation deadline
	ScrapeTimeout time.Duration `yaml:"scrape_timeout"` // price element wait deadline
}

// PollerConfig holds scrape poller settings.
type PollerConfig struct {
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"` // per-scrape deadline, covers wait plus parse
}

// ConnectionsConfig holds per-client WebSocket settings.
type ConnectionsConfig struct {
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	PongWait       time.Duration `yaml:"pong_wait"`
	SendBufferSize int           `yaml:"send_buffer_size"`
	MaxMessageSize int64         `yaml:"max_message_size"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
