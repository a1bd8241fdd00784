package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
)

type PlaywrightLauncher struct {
	opts   *Options
	logger *slog.Logger
}

func NewPlaywrightLauncher(opts *Options, logger *slog.Logger) *PlaywrightLauncher {
	return &PlaywrightLauncher{
		opts:   opts,
		logger: logger.With("component", "browser", "engine", EnginePlaywright),
	}
}

// Launch starts a dedicated playwright driver, browser and context for one run.
func (l *PlaywrightLauncher) Launch(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := l.opts

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			fmt.Sprintf("--window-size=%d,%d", opts.ViewportWidth, opts.ViewportHeight),
		},
	}
	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server: opts.ProxyServer,
		}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	headers := make(map[string]string, len(opts.ExtraHeaders)+1)
	for k, v := range opts.ExtraHeaders {
		headers[k] = v
	}
	if opts.AcceptLanguage != "" {
		headers["Accept-Language"] = opts.AcceptLanguage
	}

	contextOpts := playwright.BrowserNewContextOptions{
		UserAgent:         &opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &opts.Locale,
		TimezoneId:        &opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: headers,
	}

	bctx, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}
	page.SetDefaultTimeout(float64(opts.Timeout.Milliseconds()))

	l.logger.Debug("browser session launched", "headless", opts.Headless)

	return &playwrightSession{
		pw:      pw,
		browser: browser,
		context: bctx,
		page:    page,
		opts:    opts,
		logger:  l.logger,
	}, nil
}

type playwrightSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	opts    *Options
	logger  *slog.Logger
}

// timeoutMs converts the per-operation timeout, capped by ctx, to playwright milliseconds.
// Zero means "no timeout" to playwright, so the floor is one millisecond.
func (s *playwrightSession) timeoutMs(ctx context.Context, d time.Duration) *float64 {
	ms := boundedTimeout(ctx, d).Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return playwright.Float(float64(ms))
}

func (s *playwrightSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   s.timeoutMs(ctx, s.opts.Timeout),
	})
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (s *playwrightSession) Settle(ctx context.Context, d time.Duration) error {
	if s.opts.Settle == SettleFixed {
		return sleepCtx(ctx, d)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	err := s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: s.timeoutMs(ctx, d),
	})
	if err != nil {
		// No idle signal within d; spend what is left of the interval as a fixed wait.
		s.logger.Debug("network idle not reached, falling back to fixed wait", "error", err)
		return sleepCtx(ctx, d-time.Since(start))
	}
	return ctx.Err()
}

func (s *playwrightSession) Count(ctx context.Context, selector string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	count, err := s.page.Locator(selector).Count()
	if err != nil {
		return 0, fmt.Errorf("failed to count %q: %w", selector, err)
	}
	return count, nil
}

func (s *playwrightSession) Fill(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.page.Locator(selector).First().Fill(value, playwright.LocatorFillOptions{
		Timeout: s.timeoutMs(ctx, s.opts.Timeout),
	})
	if err != nil {
		return fmt.Errorf("failed to fill %q: %w", selector, err)
	}
	return nil
}

func (s *playwrightSession) SelectOption(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.page.Locator(selector).First().SelectOption(
		playwright.SelectOptionValues{Values: &[]string{value}},
		playwright.LocatorSelectOptionOptions{Timeout: s.timeoutMs(ctx, s.opts.Timeout)},
	)
	if err != nil {
		return fmt.Errorf("failed to select %q in %q: %w", value, selector, err)
	}
	return nil
}

func (s *playwrightSession) Click(ctx context.Context, selector string) error {
	return s.ClickNth(ctx, selector, 0)
}

func (s *playwrightSession) Texts(ctx context.Context, selector string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	texts, err := s.page.Locator(selector).AllInnerTexts()
	if err != nil {
		return nil, fmt.Errorf("failed to read texts of %q: %w", selector, err)
	}
	return texts, nil
}

func (s *playwrightSession) ClickNth(ctx context.Context, selector string, n int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.page.Locator(selector).Nth(n).Click(playwright.LocatorClickOptions{
		Timeout: s.timeoutMs(ctx, s.opts.Timeout),
	})
	if err != nil {
		return fmt.Errorf("failed to click %q[%d]: %w", selector, n, err)
	}
	return nil
}

func (s *playwrightSession) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	html, err := s.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to get page content: %w", err)
	}
	return html, nil
}

func (s *playwrightSession) Close() error {
	var errs []error

	if s.context != nil {
		if err := s.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}
