package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/maltedev/dampfi-automation/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var productRowColumns = []string{
	"id", "product_url", "name", "price", "stock_status", "options", "image_path", "created_at", "updated_at",
}

func TestProductRepository_Create(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("inserts and fills generated fields", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewProductRepository(db)

		price := decimal.RequireFromString("6.90")
		product := &models.Product{
			URL:   "https://www.dampfi.ch/liquid-mango",
			Name:  "Liquid Mango",
			Price: &price,
		}

		mock.ExpectQuery("INSERT INTO products").
			WithArgs(product.URL, "Liquid Mango", "6.9", "unknown", []byte("[]"), "").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(7, now, now))

		require.NoError(t, repo.Create(ctx, product))
		assert.Equal(t, int64(7), product.ID)
		assert.Equal(t, models.StockUnknown, product.StockStatus)
		assert.Equal(t, now, product.CreatedAt)
	})

	t.Run("duplicate url", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewProductRepository(db)

		mock.ExpectQuery("INSERT INTO products").
			WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value"})

		err := repo.Create(ctx, &models.Product{URL: "https://www.dampfi.ch/a", Name: "A"})
		assert.ErrorIs(t, err, ErrDuplicateProduct)
	})

	t.Run("other database error", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewProductRepository(db)

		mock.ExpectQuery("INSERT INTO products").WillReturnError(errors.New("connection reset"))

		err := repo.Create(ctx, &models.Product{URL: "https://www.dampfi.ch/a", Name: "A"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrDuplicateProduct)
	})
}

func TestProductRepository_Get(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("decodes options and price", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewProductRepository(db)

		mock.ExpectQuery("SELECT id, product_url, name").
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows(productRowColumns).AddRow(
				3, "https://www.dampfi.ch/heisenberg", "Heisenberg", "6.90", "partial",
				[]byte(`[{"value":"101","label":"0 mg","in_stock":true},{"value":"103","label":"6 mg","in_stock":false}]`),
				"", now, now,
			))

		p, err := repo.Get(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, "Heisenberg", p.Name)
		require.NotNil(t, p.Price)
		assert.Equal(t, "6.90", p.Price.StringFixed(2))
		assert.Equal(t, models.StockPartial, p.StockStatus)
		assert.Equal(t, []models.Variant{
			{Value: "101", Label: "0 mg", InStock: true},
			{Value: "103", Label: "6 mg", InStock: false},
		}, p.Variants)
	})

	t.Run("null price and unknown status", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewProductRepository(db)

		mock.ExpectQuery("SELECT id, product_url, name").
			WithArgs(int64(4)).
			WillReturnRows(sqlmock.NewRows(productRowColumns).AddRow(
				4, "https://www.dampfi.ch/coil", "Coil", nil, "weird", []byte(`[]`), "", now, now,
			))

		p, err := repo.Get(ctx, 4)
		require.NoError(t, err)
		assert.Nil(t, p.Price)
		assert.Equal(t, models.StockUnknown, p.StockStatus)
		assert.NotNil(t, p.Variants)
		assert.Empty(t, p.Variants)
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewProductRepository(db)

		mock.ExpectQuery("SELECT id, product_url, name").
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows(productRowColumns))

		_, err := repo.Get(ctx, 99)
		assert.ErrorIs(t, err, ErrProductNotFound)
	})
}

func TestProductRepository_GetByURL(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProductRepository(db)

	mock.ExpectQuery("SELECT id, product_url, name .* WHERE product_url = ").
		WithArgs("https://www.dampfi.ch/missing").
		WillReturnRows(sqlmock.NewRows(productRowColumns))

	_, err := repo.GetByURL(context.Background(), "https://www.dampfi.ch/missing")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProductRepository(db)
	now := time.Now()

	mock.ExpectQuery("SELECT id, product_url, name .* ORDER BY created_at DESC").
		WillReturnRows(sqlmock.NewRows(productRowColumns).
			AddRow(2, "https://www.dampfi.ch/b", "B", "12.00", "in_stock", []byte(`[]`), "", now, now).
			AddRow(1, "https://www.dampfi.ch/a", "A", nil, "unknown", nil, "", now, now))

	products, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, int64(2), products[0].ID)
	assert.Equal(t, models.StockInStock, products[0].StockStatus)
	assert.Empty(t, products[1].Variants)
}

func TestProductRepository_ListCorruptOptions(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProductRepository(db)
	now := time.Now()

	mock.ExpectQuery("SELECT id, product_url, name").
		WillReturnRows(sqlmock.NewRows(productRowColumns).
			AddRow(1, "https://www.dampfi.ch/a", "A", nil, "unknown", []byte(`{not json`), "", now, now))

	_, err := repo.List(context.Background())
	assert.ErrorContains(t, err, "failed to decode options")
}

func TestProductRepository_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces stored fields", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewProductRepository(db)
		updated := time.Now()

		product := &models.Product{
			ID:          5,
			URL:         "https://www.dampfi.ch/mango",
			Name:        "Mango",
			StockStatus: models.StockOutOfStock,
			Variants:    []models.Variant{{Value: "1", Label: "1", InStock: false}},
		}

		mock.ExpectQuery("UPDATE products").
			WithArgs("https://www.dampfi.ch/mango", "Mango", nil, "out_of_stock", []byte(`[{"value":"1","label":"1","in_stock":false}]`), "", int64(5)).
			WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(updated))

		require.NoError(t, repo.Update(ctx, product))
		assert.Equal(t, updated, product.UpdatedAt)
	})

	t.Run("url taken by another product", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewProductRepository(db)

		mock.ExpectQuery("UPDATE products").WillReturnError(&pgconn.PgError{Code: "23505"})

		err := repo.Update(ctx, &models.Product{ID: 5, URL: "https://www.dampfi.ch/taken", StockStatus: models.StockUnknown})
		assert.ErrorIs(t, err, ErrDuplicateProduct)
	})

	t.Run("missing product", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewProductRepository(db)

		mock.ExpectQuery("UPDATE products").WillReturnRows(sqlmock.NewRows([]string{"updated_at"}))

		err := repo.Update(ctx, &models.Product{ID: 42, Name: "x", StockStatus: models.StockUnknown})
		assert.ErrorIs(t, err, ErrProductNotFound)
	})
}

func TestProductRepository_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("deleted", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec("DELETE FROM products").WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, NewProductRepository(db).Delete(ctx, 1))
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec("DELETE FROM products").WithArgs(int64(2)).WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, NewProductRepository(db).Delete(ctx, 2), ErrProductNotFound)
	})
}

func TestProductRepository_WithTx(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProductRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM products").WithArgs(int64(8)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := WithTx(context.Background(), db, func(tx *sql.Tx) error {
		return repo.WithTx(tx).Delete(context.Background(), 8)
	})
	require.NoError(t, err)
}
