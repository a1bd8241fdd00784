package catalog

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/maltedev/dampfi-automation/internal/models"
	"github.com/maltedev/dampfi-automation/internal/ratelimit"
	"github.com/maltedev/dampfi-automation/internal/validate"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const mangoURL = "https://www.dampfi.ch/liquids/mango"

func newProductService(store ProductStore, s *scriptedScraper) *ProductService {
	return NewProductService(store, s, ratelimit.NewAdaptiveLimiter(0, 0), validate.New("www.dampfi.ch", 5), 2, slog.Default())
}

func storedMango() *models.Product {
	return &models.Product{
		ID:          1,
		URL:         mangoURL,
		Name:        "Unknown Product",
		StockStatus: models.StockUnknown,
		Variants:    []models.Variant{},
	}
}

func mangoSnapshot() *models.ProductSnapshot {
	price := decimal.RequireFromString("6.90")
	s := models.NewProductSnapshot()
	s.Name = models.StringPtr("Liquid Mango")
	s.Price = &price
	s.Variants = []models.Variant{{Value: "0", Label: "0 mg", InStock: true}, {Value: "3", Label: "3 mg", InStock: false}}
	s.StockStatus = models.StockPartial
	return s
}

func TestProductService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults name and status", func(t *testing.T) {
		store := new(MockProductStore)
		store.On("CreateProduct", ctx, mock.MatchedBy(func(p *models.Product) bool {
			return p.URL == mangoURL &&
				p.Name == "Unknown Product" &&
				p.StockStatus == models.StockUnknown &&
				p.Variants != nil
		})).Return(nil)

		p, err := newProductService(store, nil).Create(ctx, CreateProductInput{URL: "  " + mangoURL + " "})
		require.NoError(t, err)
		assert.Equal(t, mangoURL, p.URL)
		store.AssertExpectations(t)
	})

	t.Run("keeps given fields", func(t *testing.T) {
		store := new(MockProductStore)
		store.On("CreateProduct", ctx, mock.Anything).Return(nil)

		status := models.StockInStock
		p, err := newProductService(store, nil).Create(ctx, CreateProductInput{
			URL:         mangoURL,
			Name:        models.StringPtr("Mango"),
			StockStatus: &status,
		})
		require.NoError(t, err)
		assert.Equal(t, "Mango", p.Name)
		assert.Equal(t, models.StockInStock, p.StockStatus)
	})

	t.Run("rejects foreign url", func(t *testing.T) {
		store := new(MockProductStore)

		_, err := newProductService(store, nil).Create(ctx, CreateProductInput{URL: "https://example.com/mango"})
		assert.ErrorIs(t, err, ErrInvalidProductURL)
		store.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything)
	})

	t.Run("duplicate", func(t *testing.T) {
		store := new(MockProductStore)
		store.On("CreateProduct", ctx, mock.Anything).Return(ErrDuplicateProduct)

		_, err := newProductService(store, nil).Create(ctx, CreateProductInput{URL: mangoURL})
		assert.ErrorIs(t, err, ErrDuplicateProduct)
	})
}

func TestProductService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("only given fields change", func(t *testing.T) {
		store := new(MockProductStore)
		store.On("GetProduct", ctx, int64(1)).Return(storedMango(), nil)
		store.On("UpdateProduct", ctx, mock.Anything).Return(nil)

		price := decimal.RequireFromString("5.50")
		p, err := newProductService(store, nil).Update(ctx, 1, UpdateProductInput{Price: &price})
		require.NoError(t, err)
		assert.Equal(t, "Unknown Product", p.Name)
		assert.Equal(t, mangoURL, p.URL)
		assert.True(t, price.Equal(*p.Price))
	})

	t.Run("invalid url", func(t *testing.T) {
		store := new(MockProductStore)
		store.On("GetProduct", ctx, int64(1)).Return(storedMango(), nil)

		_, err := newProductService(store, nil).Update(ctx, 1, UpdateProductInput{URL: models.StringPtr("https://www.dampfi.ch/")})
		assert.ErrorIs(t, err, ErrInvalidProductURL)
		store.AssertNotCalled(t, "UpdateProduct", mock.Anything, mock.Anything)
	})
}

func TestProductService_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("applies snapshot and records previous status", func(t *testing.T) {
		store := new(MockProductStore)
		store.On("GetProduct", ctx, int64(1)).Return(storedMango(), nil)
		store.On("SaveSnapshot", ctx, mock.MatchedBy(func(p *models.Product) bool {
			return p.Name == "Liquid Mango" &&
				p.Price.StringFixed(2) == "6.90" &&
				p.StockStatus == models.StockPartial &&
				len(p.Variants) == 2
		}), models.StockUnknown).Return(nil)

		s := &scriptedScraper{results: []scrapeResult{{snapshot: mangoSnapshot()}}}
		result, err := newProductService(store, s).Refresh(ctx, 1)
		require.NoError(t, err)

		assert.Equal(t, []string{mangoURL}, s.calls)
		assert.Equal(t, "Liquid Mango", result.Product.Name)
		assert.Equal(t, models.StockPartial, result.Snapshot.StockStatus)
		store.AssertExpectations(t)
	})

	t.Run("empty snapshot keeps stored name", func(t *testing.T) {
		store := new(MockProductStore)
		stored := storedMango()
		stored.Name = "Mango"
		store.On("GetProduct", ctx, int64(1)).Return(stored, nil)
		store.On("SaveSnapshot", ctx, mock.MatchedBy(func(p *models.Product) bool {
			return p.Name == "Mango" && p.StockStatus == models.StockUnknown
		}), models.StockUnknown).Return(nil)

		s := &scriptedScraper{results: []scrapeResult{{snapshot: models.NewProductSnapshot()}}}
		_, err := newProductService(store, s).Refresh(ctx, 1)
		require.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("retries once then succeeds", func(t *testing.T) {
		store := new(MockProductStore)
		store.On("GetProduct", ctx, int64(1)).Return(storedMango(), nil)
		store.On("SaveSnapshot", ctx, mock.Anything, models.StockUnknown).Return(nil)

		s := &scriptedScraper{results: []scrapeResult{
			{err: &models.FetchError{Kind: models.FetchNetwork, URL: mangoURL, Detail: "connection reset"}},
			{snapshot: mangoSnapshot()},
		}}
		_, err := newProductService(store, s).Refresh(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, s.calls, 2)
	})

	t.Run("site down after all attempts", func(t *testing.T) {
		store := new(MockProductStore)
		store.On("GetProduct", ctx, int64(1)).Return(storedMango(), nil)

		s := &scriptedScraper{results: []scrapeResult{
			{err: &models.FetchError{Kind: models.FetchNetwork, URL: mangoURL, Detail: "dial tcp: connection refused"}},
		}}
		_, err := newProductService(store, s).Refresh(ctx, 1)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSiteDown)
		assert.Contains(t, err.Error(), "dampfi.ch appears to be down")
		assert.Len(t, s.calls, 2)
		store.AssertNotCalled(t, "SaveSnapshot", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("http status is an extraction failure", func(t *testing.T) {
		store := new(MockProductStore)
		store.On("GetProduct", ctx, int64(1)).Return(storedMango(), nil)

		s := &scriptedScraper{results: []scrapeResult{
			{err: &models.FetchError{Kind: models.FetchHTTPStatus, URL: mangoURL, StatusCode: 404}},
		}}
		_, err := newProductService(store, s).Refresh(ctx, 1)
		assert.ErrorIs(t, err, ErrExtractionFailed)
		assert.NotErrorIs(t, err, ErrSiteDown)
	})

	t.Run("unknown product", func(t *testing.T) {
		store := new(MockProductStore)
		store.On("GetProduct", ctx, int64(9)).Return(nil, ErrProductNotFound)

		s := &scriptedScraper{results: []scrapeResult{{snapshot: mangoSnapshot()}}}
		_, err := newProductService(store, s).Refresh(ctx, 9)
		assert.ErrorIs(t, err, ErrProductNotFound)
		assert.Empty(t, s.calls)
	})

	t.Run("save failure", func(t *testing.T) {
		store := new(MockProductStore)
		store.On("GetProduct", ctx, int64(1)).Return(storedMango(), nil)
		store.On("SaveSnapshot", ctx, mock.Anything, mock.Anything).Return(errors.New("db down"))

		s := &scriptedScraper{results: []scrapeResult{{snapshot: mangoSnapshot()}}}
		_, err := newProductService(store, s).Refresh(ctx, 1)
		assert.ErrorContains(t, err, "db down")
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		store := new(MockProductStore)
		cctx, cancel := context.WithCancel(context.Background())
		store.On("GetProduct", cctx, int64(1)).Return(storedMango(), nil)
		cancel()

		s := &scriptedScraper{results: []scrapeResult{{snapshot: mangoSnapshot()}}}
		_, err := newProductService(store, s).Refresh(cctx, 1)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, s.calls)
	})
}

func TestProductService_RefreshAll(t *testing.T) {
	ctx := context.Background()
	store := new(MockProductStore)

	other := &models.Product{ID: 2, URL: "https://www.dampfi.ch/coil", Name: "Coil", StockStatus: models.StockInStock}
	store.On("ListProducts", ctx).Return([]*models.Product{storedMango(), other}, nil)
	store.On("GetProduct", ctx, int64(1)).Return(storedMango(), nil)
	store.On("GetProduct", ctx, int64(2)).Return(other, nil)
	store.On("SaveSnapshot", ctx, mock.Anything, mock.Anything).Return(nil)

	s := &scriptedScraper{results: []scrapeResult{
		{snapshot: mangoSnapshot()},
		{err: &models.FetchError{Kind: models.FetchHTTPStatus, URL: other.URL, StatusCode: 500}},
	}}

	summary, err := newProductService(store, s).RefreshAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, RefreshSummary{Total: 2, Refreshed: 1, Failed: 1}, summary)
}
