package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/maltedev/dampfi-automation/internal/models"
	"github.com/maltedev/dampfi-automation/internal/parser"
)

// Extractor is the plain HTTP metadata extractor. It keeps no state between calls beyond the
// pooled connections of its client.
type Extractor struct {
	client  *http.Client
	library *parser.Library
	opts    Options
	logger  *slog.Logger
}

func NewExtractor(library *parser.Library, opts Options, logger *slog.Logger) *Extractor {
	defaults := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaults.UserAgent
	}
	if opts.AcceptLanguage == "" {
		opts.AcceptLanguage = defaults.AcceptLanguage
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if library == nil {
		library = parser.NewDefaultLibrary()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Extractor{
		client:  &http.Client{Timeout: opts.Timeout},
		library: library,
		opts:    opts,
		logger:  logger.With("component", "extractor"),
	}
}

func (e *Extractor) Extract(ctx context.Context, url string) (*models.ProductSnapshot, error) {
	snapshot, err := e.extract(ctx, url)
	if err != nil {
		e.logger.Warn("product extraction failed", "url", url, "error", err)
		return nil, err
	}

	name, price := "", ""
	if snapshot.Name != nil {
		name = *snapshot.Name
	}
	if snapshot.Price != nil {
		price = snapshot.Price.StringFixed(2)
	}
	e.logger.Info("product extracted",
		"url", url,
		"name", name,
		"price", price,
		"stock_status", snapshot.StockStatus,
		"variants", len(snapshot.Variants))
	return snapshot, nil
}

func (e *Extractor) extract(ctx context.Context, url string) (*models.ProductSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &models.FetchError{Kind: models.FetchNetwork, URL: url, Detail: err.Error(), Err: err}
	}
	req.Header.Set("User-Agent", e.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", e.opts.AcceptLanguage)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &models.FetchError{Kind: models.FetchNetwork, URL: url, Detail: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &models.FetchError{
			Kind:       models.FetchHTTPStatus,
			URL:        url,
			StatusCode: resp.StatusCode,
			Detail:     resp.Status,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.opts.MaxBodyBytes))
	if err != nil {
		return nil, &models.FetchError{
			Kind:   models.FetchNetwork,
			URL:    url,
			Detail: fmt.Sprintf("failed to read body: %v", err),
			Err:    err,
		}
	}

	return e.library.ParseProductPage(string(body))
}
