package catalog

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"fieldsales/backend/internal/domain"
)

var ErrItemNotFound = errors.New("catalog item not found")

type Provider interface {
	List(ctx context.Context) ([]domain.CatalogItem, error)
	Get(ctx context.Context, id string) (domain.CatalogItem, error)
}

type PriceBand string

const (
	PriceAll      PriceBand = "all"
	PriceUnder100 PriceBand = "under-100"
	Price100To300 PriceBand = "100-300"
	PriceOver300  PriceBand = "over-300"
)

type Filter struct {
	Query     string
	Category  string
	PriceBand PriceBand
}

// Static serves an immutable item list fixed at construction.
type Static struct {
	items []domain.CatalogItem
	byID  map[string]domain.CatalogItem
}

func NewStatic(items []domain.CatalogItem) *Static {
	byID := make(map[string]domain.CatalogItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	return &Static{items: slices.Clone(items), byID: byID}
}

func NewSeeded() *Static {
	price := decimal.RequireFromString
	return NewStatic([]domain.CatalogItem{
		{ID: "1", Name: "Wireless Mouse", Description: "Bluetooth, Black, 1600 DPI", UnitPrice: price("120.00"), Currency: domain.Currency, Category: "Electronics", InStock: true, RecentlyUsed: true},
		{ID: "2", Name: "USB-C Cable", Description: "2m Length, Fast Charging", UnitPrice: price("45.00"), Currency: domain.Currency, Category: "Electronics", InStock: true, RecentlyUsed: true},
		{ID: "3", Name: "Office Chair", Description: "Ergonomic, Adjustable Height", UnitPrice: price("850.00"), Currency: domain.Currency, Category: "Furniture", InStock: true},
		{ID: "4", Name: "Desk Lamp", Description: "LED, Touch Control, White", UnitPrice: price("180.00"), Currency: domain.Currency, Category: "Furniture", InStock: true, RecentlyUsed: true},
		{ID: "5", Name: "Notebook Set", Description: "A4 Size, 3 Pack, Lined", UnitPrice: price("35.00"), Currency: domain.Currency, Category: "Stationery", InStock: true},
		{ID: "6", Name: "Bluetooth Speaker", Description: "Portable, Waterproof, 20W", UnitPrice: price("299.00"), Currency: domain.Currency, Category: "Electronics", InStock: false},
		{ID: "7", Name: "Monitor Stand", Description: "Adjustable, Wooden, Storage", UnitPrice: price("220.00"), Currency: domain.Currency, Category: "Furniture", InStock: true},
		{ID: "8", Name: "Pen Set", Description: "Blue Ink, 12 Pack, Premium", UnitPrice: price("25.00"), Currency: domain.Currency, Category: "Stationery", InStock: true, RecentlyUsed: true},
	})
}

func (s *Static) List(_ context.Context) ([]domain.CatalogItem, error) {
	return slices.Clone(s.items), nil
}

func (s *Static) Get(_ context.Context, id string) (domain.CatalogItem, error) {
	item, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return domain.CatalogItem{}, ErrItemNotFound
	}
	return item, nil
}

// Categories returns the distinct categories in first-seen order.
func Categories(items []domain.CatalogItem) []string {
	seen := make(map[string]struct{}, len(items))
	categories := make([]string, 0, 4)
	for _, item := range items {
		if _, ok := seen[item.Category]; ok {
			continue
		}
		seen[item.Category] = struct{}{}
		categories = append(categories, item.Category)
	}
	return categories
}

// Apply keeps in-stock items matching every criterion of f.
func Apply(items []domain.CatalogItem, f Filter) []domain.CatalogItem {
	query := strings.ToLower(strings.TrimSpace(f.Query))
	category := strings.TrimSpace(f.Category)

	out := make([]domain.CatalogItem, 0, len(items))
	for _, item := range items {
		if !item.InStock {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(item.Name), query) &&
			!strings.Contains(strings.ToLower(item.Description), query) {
			continue
		}
		if category != "" && category != "all" && item.Category != category {
			continue
		}
		if !inBand(item.UnitPrice, f.PriceBand) {
			continue
		}
		out = append(out, item)
	}
	return out
}

var (
	hundred      = decimal.NewFromInt(100)
	threeHundred = decimal.NewFromInt(300)
)

func inBand(price decimal.Decimal, band PriceBand) bool {
	switch band {
	case PriceUnder100:
		return price.LessThan(hundred)
	case Price100To300:
		return price.GreaterThanOrEqual(hundred) && price.LessThanOrEqual(threeHundred)
	case PriceOver300:
		return price.GreaterThan(threeHundred)
	default:
		return true
	}
}
