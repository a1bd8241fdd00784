package browser

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodLauncher drives Chrome over CDP with go-rod. It prefers a system Chrome and falls
// back to rod's managed Chromium download.
type RodLauncher struct {
	opts   *Options
	logger *slog.Logger
}

func NewRodLauncher(opts *Options, logger *slog.Logger) *RodLauncher {
	return &RodLauncher{
		opts:   opts,
		logger: logger.With("component", "browser", "engine", EngineRod),
	}
}

func (l *RodLauncher) Launch(ctx context.Context) (Session, error) {
	opts := l.opts

	// leakless deadlocks on windows, see go-rod/rod#853
	lnch := launcher.New().
		Leakless(runtime.GOOS != "windows").
		Headless(opts.Headless).
		Set("window-size", fmt.Sprintf("%d,%d", opts.ViewportWidth, opts.ViewportHeight))
	if path, ok := launcher.LookPath(); ok {
		lnch = lnch.Bin(path)
	}
	if opts.ProxyServer != "" {
		lnch = lnch.Proxy(opts.ProxyServer)
	}

	controlURL, err := lnch.Context(ctx).Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		lnch.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		browser.Close()
		lnch.Cleanup()
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.ViewportWidth,
		Height:            opts.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		l.logger.Warn("failed to set viewport", "error", err)
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      opts.UserAgent,
		AcceptLanguage: opts.AcceptLanguage,
	}); err != nil {
		l.logger.Warn("failed to set user agent", "error", err)
	}

	l.logger.Debug("browser session launched", "headless", opts.Headless)

	return &rodSession{
		launcher: lnch,
		browser:  browser,
		page:     page,
		opts:     opts,
		logger:   l.logger,
	}, nil
}

type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	opts     *Options
	logger   *slog.Logger
}

// scoped binds the page to ctx and the per-operation timeout. Callers must CancelTimeout.
func (s *rodSession) scoped(ctx context.Context) *rod.Page {
	return s.page.Context(ctx).Timeout(s.opts.Timeout)
}

func (s *rodSession) first(ctx context.Context, selector string, n int) (*rod.Element, error) {
	p := s.page.Context(ctx)
	elements, err := p.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", selector, err)
	}
	if n >= len(elements) {
		return nil, fmt.Errorf("%q[%d]: %w", selector, n, ErrElementNotFound)
	}
	return elements[n].Timeout(s.opts.Timeout), nil
}

func (s *rodSession) Navigate(ctx context.Context, url string) error {
	p := s.scoped(ctx)
	defer p.CancelTimeout()

	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("page failed to load: %w", err)
	}
	return nil
}

func (s *rodSession) Settle(ctx context.Context, d time.Duration) error {
	if s.opts.Settle == SettleFixed {
		return sleepCtx(ctx, d)
	}

	start := time.Now()
	if err := s.page.Context(ctx).WaitIdle(boundedTimeout(ctx, d)); err != nil {
		s.logger.Debug("page idle not reached, falling back to fixed wait", "error", err)
		return sleepCtx(ctx, d-time.Since(start))
	}
	return ctx.Err()
}

func (s *rodSession) Count(ctx context.Context, selector string) (int, error) {
	elements, err := s.page.Context(ctx).Elements(selector)
	if err != nil {
		return 0, fmt.Errorf("failed to count %q: %w", selector, err)
	}
	return len(elements), nil
}

func (s *rodSession) Fill(ctx context.Context, selector, value string) error {
	el, err := s.first(ctx, selector, 0)
	if err != nil {
		return err
	}
	defer el.CancelTimeout()

	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("failed to clear %q: %w", selector, err)
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("failed to fill %q: %w", selector, err)
	}
	return nil
}

func (s *rodSession) SelectOption(ctx context.Context, selector, value string) error {
	el, err := s.first(ctx, selector, 0)
	if err != nil {
		return err
	}
	defer el.CancelTimeout()

	options, err := el.Elements("option")
	if err != nil {
		return fmt.Errorf("failed to list options of %q: %w", selector, err)
	}
	values := make([]string, len(options))
	for i, opt := range options {
		if v, err := opt.Attribute("value"); err == nil && v != nil {
			values[i] = *v
		} else if text, err := opt.Text(); err == nil {
			values[i] = strings.TrimSpace(text)
		}
	}

	index := optionIndex(values, value)
	if index < 0 {
		return fmt.Errorf("option %q in %q: %w", value, selector, ErrElementNotFound)
	}
	_, err = el.Eval(`(i) => {
		this.selectedIndex = i;
		this.dispatchEvent(new Event("input", { bubbles: true }));
		this.dispatchEvent(new Event("change", { bubbles: true }));
	}`, index)
	if err != nil {
		return fmt.Errorf("failed to select %q in %q: %w", value, selector, err)
	}
	return nil
}

// optionIndex compares values in Go so no CSS escaping of value is needed.
func optionIndex(values []string, value string) int {
	for i, v := range values {
		if v == value {
			return i
		}
	}
	return -1
}

func (s *rodSession) Click(ctx context.Context, selector string) error {
	return s.ClickNth(ctx, selector, 0)
}

func (s *rodSession) Texts(ctx context.Context, selector string) ([]string, error) {
	elements, err := s.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", selector, err)
	}

	texts := make([]string, 0, len(elements))
	for _, el := range elements {
		text, err := el.Text()
		if err != nil {
			return nil, fmt.Errorf("failed to read text of %q: %w", selector, err)
		}
		texts = append(texts, text)
	}
	return texts, nil
}

func (s *rodSession) ClickNth(ctx context.Context, selector string, n int) error {
	el, err := s.first(ctx, selector, n)
	if err != nil {
		return err
	}
	defer el.CancelTimeout()

	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to click %q[%d]: %w", selector, n, err)
	}
	return nil
}

func (s *rodSession) Content(ctx context.Context) (string, error) {
	html, err := s.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get page content: %w", err)
	}
	return html, nil
}

func (s *rodSession) Close() error {
	var errs []error

	if s.page != nil {
		if err := s.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close page: %w", err))
		}
	}

	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if s.launcher != nil {
		s.launcher.Cleanup()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}
