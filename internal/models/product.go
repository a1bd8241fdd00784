package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type StockStatus string

const (
	StockInStock    StockStatus = "in_stock"
	StockOutOfStock StockStatus = "out_of_stock"
	StockPartial    StockStatus = "partial"
	StockUnknown    StockStatus = "unknown"
)

func (s StockStatus) IsValid() bool {
	switch s {
	case StockInStock, StockOutOfStock, StockPartial, StockUnknown:
		return true
	}
	return false
}

// ParseStockStatus maps a stored value back to a StockStatus, defaulting to unknown.
func ParseStockStatus(s string) StockStatus {
	status := StockStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.IsValid() {
		return StockUnknown
	}
	return status
}

// Variant is one purchasable option of a product, in page listing order.
type Variant struct {
	Value   string `json:"value"`
	Label   string `json:"label"`
	InStock bool   `json:"in_stock"`
}

// ProductSnapshot is the point-in-time state of a product page. Absent fields are nil.
type ProductSnapshot struct {
	Name        *string          `json:"name"`
	Price       *decimal.Decimal `json:"price"`
	StockStatus StockStatus      `json:"stock_status"`
	Variants    []Variant        `json:"variants"`
}

func NewProductSnapshot() *ProductSnapshot {
	return &ProductSnapshot{
		StockStatus: StockUnknown,
		Variants:    make([]Variant, 0),
	}
}

func (p *ProductSnapshot) IsEmpty() bool {
	return p.Name == nil && p.Price == nil && len(p.Variants) == 0 && p.StockStatus == StockUnknown
}

func (p *ProductSnapshot) String() string {
	name := "<none>"
	if p.Name != nil {
		name = *p.Name
	}
	price := "<none>"
	if p.Price != nil {
		price = p.Price.StringFixed(2)
	}
	return fmt.Sprintf("%s price=%s stock=%s variants=%d", name, price, p.StockStatus, len(p.Variants))
}

// Product is the stored record of a tracked product page.
type Product struct {
	ID          int64            `json:"id"`
	URL         string           `json:"product_url"`
	Name        string           `json:"name"`
	Price       *decimal.Decimal `json:"price"`
	StockStatus StockStatus      `json:"stock_status"`
	Variants    []Variant        `json:"options"`
	ImagePath   string           `json:"image_path,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// ApplySnapshot replaces the product's extracted fields with those present in the snapshot.
func (p *Product) ApplySnapshot(s *ProductSnapshot) {
	if s.Name != nil && *s.Name != "" {
		p.Name = *s.Name
	}
	if s.Price != nil {
		price := *s.Price
		p.Price = &price
	}
	p.StockStatus = s.StockStatus
	p.Variants = append([]Variant(nil), s.Variants...)
}

func StringPtr(s string) *string {
	return &s
}
