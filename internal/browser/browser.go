package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrElementNotFound is returned by element operations when the selector matches nothing.
var ErrElementNotFound = errors.New("element not found")

// Session is one isolated browsing context owned by a single run. Implementations are not
// safe for concurrent use.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// Settle waits for the page to quiesce after an action, never longer than d.
	Settle(ctx context.Context, d time.Duration) error
	Count(ctx context.Context, selector string) (int, error)
	Fill(ctx context.Context, selector, value string) error
	SelectOption(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	Texts(ctx context.Context, selector string) ([]string, error)
	ClickNth(ctx context.Context, selector string, n int) error
	Content(ctx context.Context) (string, error)
	Close() error
}

type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

type Engine string

const (
	EnginePlaywright Engine = "playwright"
	EngineRod        Engine = "rod"
)

// SettleStrategy selects how Session.Settle waits.
type SettleStrategy string

const (
	// SettleIdle waits for network idle, bounded by the settle interval.
	SettleIdle SettleStrategy = "idle"
	// SettleFixed always sleeps the full interval.
	SettleFixed SettleStrategy = "fixed"
)

type Options struct {
	Engine         Engine
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
	ExtraHeaders   map[string]string
	Settle         SettleStrategy
}

func DefaultOptions() *Options {
	return &Options{
		Engine:         EnginePlaywright,
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "de-CH,de;q=0.9,en;q=0.8",
		TimezoneID:     "Europe/Zurich",
		Locale:         "de-CH",
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"DNT":    "1",
		},
		Settle: SettleIdle,
	}
}

func ParseEngine(s string) (Engine, error) {
	switch Engine(strings.ToLower(strings.TrimSpace(s))) {
	case "", EnginePlaywright:
		return EnginePlaywright, nil
	case EngineRod:
		return EngineRod, nil
	default:
		return "", fmt.Errorf("unknown browser engine %q", s)
	}
}

func ParseSettleStrategy(s string) (SettleStrategy, error) {
	switch SettleStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", SettleIdle:
		return SettleIdle, nil
	case SettleFixed:
		return SettleFixed, nil
	default:
		return "", fmt.Errorf("unknown settle strategy %q", s)
	}
}

// NewLauncher returns the launcher for opts.Engine.
func NewLauncher(opts *Options, logger *slog.Logger) (Launcher, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}

	switch opts.Engine {
	case "", EnginePlaywright:
		return NewPlaywrightLauncher(opts, logger), nil
	case EngineRod:
		return NewRodLauncher(opts, logger), nil
	default:
		return nil, fmt.Errorf("unknown browser engine %q", opts.Engine)
	}
}

// sleepCtx pauses for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// boundedTimeout caps d by the time left before the context deadline.
func boundedTimeout(ctx context.Context, d time.Duration) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return d
	}
	remaining := time.Until(deadline)
	if remaining < d {
		if remaining < 0 {
			return 0
		}
		return remaining
	}
	return d
}
