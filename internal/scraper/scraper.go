package scraper

import (
	"context"
	"time"

	"github.com/maltedev/dampfi-automation/internal/models"
)

const (
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultAcceptLanguage = "de-CH,de;q=0.9,en;q=0.8"
	DefaultTimeout        = 10 * time.Second
	DefaultMaxBodyBytes   = 5 << 20
)

// Scraper fetches a product page and returns its snapshot. Failures to retrieve the page are
// returned as *models.FetchError; a page that matches no extractor is not an error.
type Scraper interface {
	Extract(ctx context.Context, url string) (*models.ProductSnapshot, error)
}

type Options struct {
	Timeout        time.Duration
	UserAgent      string
	AcceptLanguage string
	MaxBodyBytes   int64
}

func DefaultOptions() Options {
	return Options{
		Timeout:        DefaultTimeout,
		UserAgent:      DefaultUserAgent,
		AcceptLanguage: DefaultAcceptLanguage,
		MaxBodyBytes:   DefaultMaxBodyBytes,
	}
}
