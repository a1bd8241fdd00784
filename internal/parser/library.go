package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/dampfi-automation/internal/models"
	"github.com/shopspring/decimal"
)

var (
	numericToken = regexp.MustCompile(`\d[\d'’.,]*`)
	orderDigits  = regexp.MustCompile(`\d{4,}`)
)

// Library evaluates the extraction cascades against parsed documents. It holds no
// per-call state and is safe for concurrent use.
type Library struct {
	selectors Selectors
	phrases   Phrases
}

func NewLibrary(selectors Selectors, phrases Phrases) *Library {
	return &Library{
		selectors: selectors,
		phrases:   lowerPhrases(phrases),
	}
}

func NewDefaultLibrary() *Library {
	return NewLibrary(DefaultSelectors(), DefaultPhrases())
}

func (l *Library) Selectors() Selectors {
	return l.selectors
}

// ParseDocument parses raw HTML into a queryable document.
func ParseDocument(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

func (l *Library) ParseProductPage(html string) (*models.ProductSnapshot, error) {
	doc, err := ParseDocument(html)
	if err != nil {
		return nil, err
	}
	return l.Snapshot(doc), nil
}

// Snapshot applies the four extractors. A page that matches nothing yields an empty snapshot.
func (l *Library) Snapshot(doc *goquery.Document) *models.ProductSnapshot {
	snapshot := models.NewProductSnapshot()
	snapshot.Name = l.ExtractTitle(doc)
	snapshot.Price = l.ExtractPrice(doc)
	snapshot.Variants = l.ExtractVariants(doc)
	snapshot.StockStatus = l.StockStatus(doc, snapshot.Variants)
	return snapshot
}

func (l *Library) ExtractPrice(doc *goquery.Document) *decimal.Decimal {
	return priceFromCascade(doc, l.selectors.Price)
}

// ExtractOrderTotal reads the grand total on a checkout page, falling back to the product price cascade.
func (l *Library) ExtractOrderTotal(doc *goquery.Document) *decimal.Decimal {
	if total := priceFromCascade(doc, l.selectors.OrderTotal); total != nil {
		return total
	}
	return priceFromCascade(doc, l.selectors.Price)
}

func priceFromCascade(doc *goquery.Document, cascade Cascade) *decimal.Decimal {
	for _, selector := range cascade {
		var found *decimal.Decimal
		doc.Find(selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
			if price, ok := ParsePrice(s.Text()); ok {
				found = &price
				return false
			}
			return true
		})
		if found != nil {
			return found
		}
	}
	return nil
}

func (l *Library) ExtractTitle(doc *goquery.Document) *string {
	for _, selector := range l.selectors.Title {
		var title string
		doc.Find(selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
			title = normalizeText(s.Text())
			return title == ""
		})
		if title != "" {
			return &title
		}
	}
	return nil
}

// ExtractVariants returns purchasable options in page order. An empty slice means the
// product has no variants.
func (l *Library) ExtractVariants(doc *goquery.Document) []models.Variant {
	for _, selector := range l.selectors.VariantControls {
		control := doc.Find(selector).First()
		if control.Length() == 0 {
			continue
		}

		variants := make([]models.Variant, 0)
		control.Find("option").Each(func(i int, opt *goquery.Selection) {
			value, ok := opt.Attr("value")
			value = strings.TrimSpace(value)
			if !ok || value == "" {
				return
			}
			label := normalizeText(opt.Text())
			_, disabled := opt.Attr("disabled")
			variants = append(variants, models.Variant{
				Value:   value,
				Label:   label,
				InStock: !disabled && !containsAny(label, l.phrases.OutOfStock),
			})
		})
		if len(variants) > 0 {
			return variants
		}
	}

	return l.fallbackVariants(doc)
}

func (l *Library) fallbackVariants(doc *goquery.Document) []models.Variant {
	variants := make([]models.Variant, 0)
	if l.selectors.VariantFallback == "" {
		return variants
	}

	doc.Find(l.selectors.VariantFallback).Each(func(i int, s *goquery.Selection) {
		// Only leaf option-like elements; wrappers repeat their children's text.
		if s.Find(l.selectors.VariantFallback).Length() > 0 || goquery.NodeName(s) == "select" {
			return
		}
		label := normalizeText(s.Text())
		if label == "" {
			return
		}
		value := firstAttr(s, "data-value", "data-option")
		if value == "" {
			value = label
		}
		variants = append(variants, models.Variant{
			Value:   value,
			Label:   label,
			InStock: !containsAny(label, l.phrases.OutOfStock) && !isDisabled(s),
		})
	})
	return variants
}

// DeriveStockStatus is the aggregate availability of a non-empty variant list.
func DeriveStockStatus(variants []models.Variant) models.StockStatus {
	if len(variants) == 0 {
		return models.StockUnknown
	}
	inStock := 0
	for _, v := range variants {
		if v.InStock {
			inStock++
		}
	}
	switch inStock {
	case 0:
		return models.StockOutOfStock
	case len(variants):
		return models.StockInStock
	default:
		return models.StockPartial
	}
}

// StockStatus derives availability from variants, or from stock indicators when there are none.
func (l *Library) StockStatus(doc *goquery.Document, variants []models.Variant) models.StockStatus {
	if len(variants) > 0 {
		return DeriveStockStatus(variants)
	}

	if len(l.selectors.StockIndicators) == 0 {
		return models.StockUnknown
	}

	// One grouped selection so the first indicator in document order wins.
	status := models.StockUnknown
	doc.Find(strings.Join(l.selectors.StockIndicators, ", ")).EachWithBreak(func(i int, s *goquery.Selection) bool {
		text := normalizeText(s.Text())
		// Negative phrases first: "unavailable" contains "available".
		if containsAny(text, l.phrases.OutOfStock) {
			status = models.StockOutOfStock
			return false
		}
		if containsAny(text, l.phrases.InStock) {
			status = models.StockInStock
			return false
		}
		return true
	})
	return status
}

// ExtractConfirmation reads the order number and confirmation banner from an order success page.
// It returns nil when neither is present.
func (l *Library) ExtractConfirmation(doc *goquery.Document) *models.Confirmation {
	confirmation := &models.Confirmation{}

	for _, selector := range l.selectors.OrderNumber {
		text := normalizeText(doc.Find(selector).First().Text())
		if text != "" {
			number := text
			if digits := orderDigits.FindString(text); digits != "" {
				number = digits
			}
			confirmation.OrderNumber = &number
			break
		}
	}

	if containsAny(normalizeText(doc.Find("body").Text()), l.phrases.Confirmation) {
		confirmation.StatusText = models.StringPtr(models.ConfirmedStatus)
	}

	if confirmation.OrderNumber == nil && confirmation.StatusText == nil {
		return nil
	}
	return confirmation
}

// ParsePrice extracts the first numeric token of text as a decimal. A single dot or comma
// is the decimal separator, so both "19,90" and "19.90" yield 19.90. Apostrophes, and the
// grouping separator of "1.299,50" or "12.345.678", are dropped.
func ParsePrice(text string) (decimal.Decimal, bool) {
	token := numericToken.FindString(text)
	token = strings.TrimRight(token, ".,")
	if token == "" {
		return decimal.Decimal{}, false
	}

	token = strings.NewReplacer("'", "", "’", "").Replace(token)

	if sep := strings.LastIndexAny(token, ".,"); sep >= 0 {
		intPart := token[:sep]
		fraction := token[sep+1:]
		mixed := strings.Contains(token, ".") && strings.Contains(token, ",")
		repeated := strings.Count(token, token[sep:sep+1]) > 1
		if repeated && !mixed {
			// "12.345.678" is all grouping.
			token = strings.NewReplacer(".", "", ",", "").Replace(token)
		} else {
			token = strings.NewReplacer(".", "", ",", "").Replace(intPart) + "." + fraction
		}
	}

	price, err := decimal.NewFromString(token)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return price, true
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func containsAny(text string, phrases []string) bool {
	text = strings.ToLower(text)
	for _, p := range phrases {
		if p != "" && strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func firstAttr(s *goquery.Selection, names ...string) string {
	for _, name := range names {
		if v, ok := s.Attr(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func isDisabled(s *goquery.Selection) bool {
	if s.HasClass("disabled") {
		return true
	}
	if _, ok := s.Attr("disabled"); ok {
		return true
	}
	return s.AttrOr("aria-disabled", "") == "true"
}

func lowerPhrases(p Phrases) Phrases {
	lower := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, s := range in {
			out = append(out, strings.ToLower(strings.TrimSpace(s)))
		}
		return out
	}
	return Phrases{
		InStock:      lower(p.InStock),
		OutOfStock:   lower(p.OutOfStock),
		Confirmation: lower(p.Confirmation),
	}
}
