package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/maltedev/dampfi-automation/internal/models"
	"github.com/shopspring/decimal"
)

const productColumns = `id, product_url, name, price, stock_status, options, image_path, created_at, updated_at`

type ProductRepository struct {
	db querier
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *ProductRepository) WithTx(tx *sql.Tx) *ProductRepository {
	return &ProductRepository{db: tx}
}

func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	options, err := marshalVariants(p.Variants)
	if err != nil {
		return err
	}
	if p.StockStatus == "" {
		p.StockStatus = models.StockUnknown
	}

	query := `
		INSERT INTO products (product_url, name, price, stock_status, options, image_path)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		p.URL, p.Name, nullDecimal(p.Price), string(p.StockStatus), options, p.ImagePath,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateProduct
		}
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

func (r *ProductRepository) Get(ctx context.Context, id int64) (*models.Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

func (r *ProductRepository) GetByURL(ctx context.Context, url string) (*models.Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE product_url = $1`, url)
	return scanProduct(row)
}

func (r *ProductRepository) List(ctx context.Context) ([]*models.Product, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := make([]*models.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return products, nil
}

// Update overwrites every stored field of the product with p.
func (r *ProductRepository) Update(ctx context.Context, p *models.Product) error {
	options, err := marshalVariants(p.Variants)
	if err != nil {
		return err
	}

	query := `
		UPDATE products
		SET product_url = $1, name = $2, price = $3, stock_status = $4, options = $5, image_path = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING updated_at`

	err = r.db.QueryRowContext(ctx, query,
		p.URL, p.Name, nullDecimal(p.Price), string(p.StockStatus), options, p.ImagePath, p.ID,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrProductNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateProduct
		}
		return fmt.Errorf("failed to update product: %w", err)
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if n == 0 {
		return ErrProductNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (*models.Product, error) {
	var (
		p       models.Product
		price   decimal.NullDecimal
		status  string
		options []byte
	)
	err := row.Scan(&p.ID, &p.URL, &p.Name, &price, &status, &options, &p.ImagePath, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}

	if price.Valid {
		p.Price = &price.Decimal
	}
	p.StockStatus = models.ParseStockStatus(status)
	p.Variants = make([]models.Variant, 0)
	if len(options) > 0 {
		if err := json.Unmarshal(options, &p.Variants); err != nil {
			return nil, fmt.Errorf("failed to decode options of product %d: %w", p.ID, err)
		}
	}
	return &p, nil
}

func marshalVariants(variants []models.Variant) ([]byte, error) {
	if variants == nil {
		variants = []models.Variant{}
	}
	data, err := json.Marshal(variants)
	if err != nil {
		return nil, fmt.Errorf("failed to encode options: %w", err)
	}
	return data, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
