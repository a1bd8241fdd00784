package parser

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/dampfi-automation/internal/models"
	"github.com/shopspring/decimal"
)

// Parser turns a product page into a snapshot. *Library is the only implementation.
type Parser interface {
	ParseProductPage(html string) (*models.ProductSnapshot, error)
	ExtractPrice(doc *goquery.Document) *decimal.Decimal
	ExtractTitle(doc *goquery.Document) *string
	ExtractVariants(doc *goquery.Document) []models.Variant
	StockStatus(doc *goquery.Document, variants []models.Variant) models.StockStatus
}

// Cascade is an ordered list of CSS selectors tried until one yields a usable result.
type Cascade []string

// Selectors groups every cascade the library evaluates.
type Selectors struct {
	Price           Cascade `yaml:"price"`
	Title           Cascade `yaml:"title"`
	VariantControls Cascade `yaml:"variant_controls"`
	VariantFallback string  `yaml:"variant_fallback"`
	StockIndicators Cascade `yaml:"stock_indicators"`
	OrderTotal      Cascade `yaml:"order_total"`
	OrderNumber     Cascade `yaml:"order_number"`
}

// Phrases are matched case-insensitively as substrings.
type Phrases struct {
	InStock      []string `yaml:"in_stock"`
	OutOfStock   []string `yaml:"out_of_stock"`
	Confirmation []string `yaml:"confirmation"`
}

func DefaultSelectors() Selectors {
	return Selectors{
		Price: Cascade{
			".product-info-main [data-price-type=\"finalPrice\"] .price",
			".product-info-main .price",
			".price",
			".product-price",
			"[class*=\"price\"]",
			".current-price",
			".special-price",
		},
		Title: Cascade{
			"h1",
			".product-name",
			"[class*=\"product-title\"]",
			".page-title",
		},
		VariantControls: Cascade{
			"select[name*=\"option\"]",
			"select[name*=\"super_attribute\"]",
			"select[name*=\"strength\"]",
			"select[name*=\"nicotine\"]",
			".product-options select",
			"[class*=\"option\"] select",
		},
		VariantFallback: "[data-option], [data-strength], [class*=\"option\"]",
		StockIndicators: Cascade{
			"[class*=\"stock\"]",
			"[class*=\"availability\"]",
		},
		OrderTotal: Cascade{
			".grand.totals .price",
			".order-total .price",
			"[class*=\"total\"] .price",
		},
		OrderNumber: Cascade{
			".order-number",
			"[class*=\"order-id\"]",
			".checkout-success",
		},
	}
}

func DefaultPhrases() Phrases {
	return Phrases{
		InStock: []string{
			"in stock", "available", "auf lager", "lieferbar", "verfügbar",
		},
		OutOfStock: []string{
			"out of stock", "unavailable", "sold out",
			"ausverkauft", "nicht verfügbar", "nicht lieferbar", "nicht auf lager",
		},
		Confirmation: []string{
			"thank you for your purchase",
			"thank you for your order",
			"your order number is",
			"vielen dank für ihre bestellung",
			"ihre bestellnummer",
			"bestellung wurde erfolgreich",
		},
	}
}
