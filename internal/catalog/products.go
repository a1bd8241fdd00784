package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maltedev/dampfi-automation/internal/models"
	"github.com/maltedev/dampfi-automation/internal/ratelimit"
	"github.com/maltedev/dampfi-automation/internal/scraper"
	"github.com/maltedev/dampfi-automation/internal/validate"
	"github.com/shopspring/decimal"
)

const defaultProductName = "Unknown Product"

// feedbackLimiter is implemented by limiters that adapt to extraction outcomes.
type feedbackLimiter interface {
	RecordSuccess()
	RecordError()
}

type ProductService struct {
	store       ProductStore
	scraper     scraper.Scraper
	limiter     ratelimit.Limiter
	validator   *validate.Validator
	maxAttempts int
	logger      *slog.Logger
}

func NewProductService(store ProductStore, s scraper.Scraper, limiter ratelimit.Limiter, validator *validate.Validator, maxAttempts int, logger *slog.Logger) *ProductService {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &ProductService{
		store:       store,
		scraper:     s,
		limiter:     limiter,
		validator:   validator,
		maxAttempts: maxAttempts,
		logger:      logger.With("component", "catalog"),
	}
}

type CreateProductInput struct {
	URL         string
	Name        *string
	Price       *decimal.Decimal
	StockStatus *models.StockStatus
	Variants    []models.Variant
}

// UpdateProductInput carries the fields to change; nil fields are left as stored.
type UpdateProductInput struct {
	URL         *string
	Name        *string
	Price       *decimal.Decimal
	StockStatus *models.StockStatus
	Variants    *[]models.Variant
}

func (s *ProductService) Create(ctx context.Context, in CreateProductInput) (*models.Product, error) {
	url, err := s.validator.ProductURL(in.URL)
	if err != nil {
		return nil, err
	}

	p := &models.Product{
		URL:         url,
		Name:        defaultProductName,
		Price:       in.Price,
		StockStatus: models.StockUnknown,
		Variants:    in.Variants,
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.StockStatus != nil {
		p.StockStatus = models.ParseStockStatus(string(*in.StockStatus))
	}
	if p.Variants == nil {
		p.Variants = make([]models.Variant, 0)
	}

	if err := s.store.CreateProduct(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("product created", "product_id", p.ID, "url", p.URL)
	return p, nil
}

func (s *ProductService) Get(ctx context.Context, id int64) (*models.Product, error) {
	return s.store.GetProduct(ctx, id)
}

func (s *ProductService) List(ctx context.Context) ([]*models.Product, error) {
	return s.store.ListProducts(ctx)
}

func (s *ProductService) Update(ctx context.Context, id int64, in UpdateProductInput) (*models.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.URL != nil {
		url, err := s.validator.ProductURL(*in.URL)
		if err != nil {
			return nil, err
		}
		p.URL = url
	}
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Price != nil {
		p.Price = in.Price
	}
	if in.StockStatus != nil {
		p.StockStatus = models.ParseStockStatus(string(*in.StockStatus))
	}
	if in.Variants != nil {
		p.Variants = append(make([]models.Variant, 0, len(*in.Variants)), *in.Variants...)
	}

	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProductService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.logger.Info("product deleted", "product_id", id)
	return nil
}

type RefreshResult struct {
	Product  *models.Product         `json:"product"`
	Snapshot *models.ProductSnapshot `json:"scraped"`
}

// Refresh extracts the product page again and replaces the stored copy with the result.
func (s *ProductService) Refresh(ctx context.Context, id int64) (*RefreshResult, error) {
	stored, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.extractWithRetry(ctx, stored.URL)
	if err != nil {
		return nil, err
	}

	updated := *stored
	updated.ApplySnapshot(snapshot)
	if err := s.store.SaveSnapshot(ctx, &updated, stored.StockStatus); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	s.logger.Info("product refreshed",
		"product_id", id,
		"stock_status", updated.StockStatus,
		"previous_stock_status", stored.StockStatus)

	return &RefreshResult{Product: &updated, Snapshot: snapshot}, nil
}

func (s *ProductService) extractWithRetry(ctx context.Context, url string) (*models.ProductSnapshot, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if attempt > 1 {
			s.logger.Info("retrying extraction", "url", url, "attempt", attempt)
		}
		if err := s.wait(ctx); err != nil {
			return nil, err
		}

		snapshot, err := s.scraper.Extract(ctx, url)
		if err == nil {
			s.feedback(true)
			return snapshot, nil
		}
		s.feedback(false)
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	if fe, ok := models.AsFetchError(lastErr); ok && fe.IsSiteDown() {
		return nil, fmt.Errorf("%w: %v", ErrSiteDown, lastErr)
	}
	if errors.Is(lastErr, context.Canceled) {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, lastErr)
}

type RefreshSummary struct {
	Total     int `json:"total"`
	Refreshed int `json:"refreshed"`
	Failed    int `json:"failed"`
}

// RefreshAll refreshes every stored product in turn. Individual failures are logged and counted.
func (s *ProductService) RefreshAll(ctx context.Context) (RefreshSummary, error) {
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return RefreshSummary{}, err
	}

	summary := RefreshSummary{Total: len(products)}
	for _, p := range products {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		if _, err := s.Refresh(ctx, p.ID); err != nil {
			summary.Failed++
			s.logger.Warn("refresh failed", "product_id", p.ID, "url", p.URL, "error", err)
			continue
		}
		summary.Refreshed++
	}
	return summary, nil
}

func (s *ProductService) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

func (s *ProductService) feedback(success bool) {
	fl, ok := s.limiter.(feedbackLimiter)
	if !ok {
		return
	}
	if success {
		fl.RecordSuccess()
	} else {
		fl.RecordError()
	}
}
