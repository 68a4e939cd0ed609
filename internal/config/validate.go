package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *ServerConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Listen.Addr == "" {
		return errors.New("listen.addr is required")
	}
	if c.Listen.ShutdownTimeout <= 0 {
		return errors.New("listen.shutdown_timeout must be positive")
	}

	if !strings.Contains(c.Browser.URLTemplate, "%s") {
		return fmt.Errorf("browser.url_template must contain %%s, got %q", c.Browser.URLTemplate)
	}
	if c.Browser.PriceSelector == "" {
		return errors.New("browser.price_selector is required")
	}
	if c.Browser.NavTimeout <= 0 {
		return errors.New("browser.nav_timeout must be positive")
	}
	if c.Browser.ScrapeTimeout <= 0 {
		return errors.New("browser.scrape_timeout must be positive")
	}

	if c.Poller.Interval <= 0 {
		return errors.New("poller.interval must be positive")
	}
	if c.Poller.Concurrency < 1 {
		return errors.New("poller.concurrency must be >= 1")
	}
	if c.Poller.Timeout <= 0 {
		return errors.New("poller.timeout must be positive")
	}
	if c.Poller.Timeout < c.Browser.ScrapeTimeout {
		return fmt.Errorf("poller.timeout (%s) must not undercut browser.scrape_timeout (%s)",
			c.Poller.Timeout, c.Browser.ScrapeTimeout)
	}

	if c.Connections.WriteTimeout <= 0 {
		return errors.New("connections.write_timeout must be positive")
	}
	if c.Connections.PingInterval <= 0 {
		return errors.New("connections.ping_interval must be positive")
	}
	if c.Connections.PongWait <= c.Connections.PingInterval {
		return fmt.Errorf("connections.pong_wait (%s) must exceed ping_interval (%s)",
			c.Connections.PongWait, c.Connections.PingInterval)
	}
	if c.Connections.SendBufferSize < 1 {
		return errors.New("connections.send_buffer_size must be >= 1")
	}
	if c.Connections.MaxMessageSize < 1 {
		return errors.New("connections.max_message_size must be >= 1")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}
