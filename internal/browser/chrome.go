package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Config holds Chrome launch settings.
type Config struct {
	ExecPath   string        // Optional path to the browser binary
	Headless   bool          // Run without a window
	NavTimeout time.Duration // Deadline for page navigation
}

// Chrome is a Provider backed by a single headless Chrome process.
// Each Open call creates a new tab.
type Chrome struct {
	cfg    Config
	logger *slog.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// Start launches the browser process. A launch failure is fatal to the
// caller; there is no degraded mode without a rendering provider.
func Start(ctx context.Context, cfg Config, logger *slog.Logger) (*Chrome, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)

	// Verify the browser actually starts before reporting success.
	checkCtx, checkCancel := chromedp.NewContext(allocCtx)
	defer checkCancel()

	startCtx, startCancel := context.WithTimeout(checkCtx, cfg.NavTimeout)
	defer startCancel()

	if err := chromedp.Run(startCtx); err != nil {
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	logger.Info("browser launched", "headless", cfg.Headless)

	return &Chrome{
		cfg:         cfg,
		logger:      logger,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Open creates a new tab, navigates it to url, and checks the response
// status. The returned Session owns the tab.
func (c *Chrome) Open(ctx context.Context, url string) (Session, error) {
	tabCtx, tabCancel := chromedp.NewContext(c.allocCtx)

	navCtx, navCancel := context.WithTimeout(tabCtx, c.cfg.NavTimeout)
	defer navCancel()
	stop := context.AfterFunc(ctx, navCancel)
	defer stop()

	resp, err := chromedp.RunResponse(navCtx, chromedp.Navigate(url))
	if err != nil {
		tabCancel()
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	if resp != nil && resp.Status >= 400 {
		tabCancel()
		return nil, fmt.Errorf("%w: %s returned status %d", ErrPageNotFound, url, resp.Status)
	}

	return &tab{ctx: tabCtx, cancel: tabCancel, logger: c.logger}, nil
}

// Stop terminates the browser process.
func (c *Chrome) Stop() {
	c.allocCancel()
	c.logger.Info("browser stopped")
}

// tab implements Session over one Chrome tab.
type tab struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// WaitText waits for the element to become visible and returns its text.
func (t *tab) WaitText(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	runCtx, cancel := context.WithTimeout(t.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var text string
	err := chromedp.Run(runCtx, chromedp.Text(selector, &text, chromedp.ByQuery))
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: selector %q after %s", ErrWaitTimeout, selector, timeout)
		}
		return "", fmt.Errorf("wait for %q: %w", selector, err)
	}
	return text, nil
}

// Close closes the tab. The page.Close action gives Chrome a chance to
// dispose the target cleanly before the context is cancelled.
func (t *tab) Close(ctx context.Context) error {
	defer t.cancel()

	closeCtx, cancel := context.WithTimeout(t.ctx, time.Second)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(closeCtx, page.Close()); err != nil {
		return fmt.Errorf("close tab: %w", err)
	}
	return nil
}
