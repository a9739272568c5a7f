// Package selection holds the working set of catalog items a sales rep has
// picked for an invoice, keyed by item id and kept in selection order.
package selection

import (
	"errors"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"fieldsales/backend/internal/domain"
)

var (
	ErrInvalidPrice = errors.New("unit price must be a number greater than zero")
	ErrNotSelected  = errors.New("item is not in the selection")
	ErrOutOfStock   = errors.New("item is out of stock")
)

type Set struct {
	entries map[string]*domain.SelectionEntry
	order   []string
}

func New() *Set {
	return &Set{entries: make(map[string]*domain.SelectionEntry)}
}

// SetQuantity upserts the entry for item. A quantity of zero or less removes
// it. An existing entry keeps its edited unit price; a new one starts at the
// catalog price.
func (s *Set) SetQuantity(item domain.CatalogItem, qty int) error {
	if qty <= 0 {
		s.remove(item.ID)
		return nil
	}
	if existing, ok := s.entries[item.ID]; ok {
		existing.Quantity = qty
		return nil
	}
	if !item.InStock {
		return ErrOutOfStock
	}

	currency := item.Currency
	if currency == "" {
		currency = domain.Currency
	}
	s.entries[item.ID] = &domain.SelectionEntry{
		ItemID:      item.ID,
		Name:        item.Name,
		Description: item.Description,
		Currency:    currency,
		Quantity:    qty,
		UnitPrice:   item.UnitPrice,
	}
	s.order = append(s.order, item.ID)
	return nil
}

func (s *Set) Increment(item domain.CatalogItem) error {
	return s.SetQuantity(item, s.QuantityOf(item.ID)+1)
}

func (s *Set) Decrement(item domain.CatalogItem) error {
	return s.SetQuantity(item, s.QuantityOf(item.ID)-1)
}

// SetUnitPrice parses input as the new unit price for a selected item. On
// any rejection the previous price stays in place.
func (s *Set) SetUnitPrice(itemID string, input string) error {
	entry, ok := s.entries[itemID]
	if !ok {
		return ErrNotSelected
	}
	price, err := decimal.NewFromString(strings.TrimSpace(input))
	if err != nil || !price.IsPositive() {
		return ErrInvalidPrice
	}
	entry.UnitPrice = price
	return nil
}

// UnitPrice returns the last accepted price for a selected item.
func (s *Set) UnitPrice(itemID string) (decimal.Decimal, bool) {
	entry, ok := s.entries[itemID]
	if !ok {
		return decimal.Zero, false
	}
	return entry.UnitPrice, true
}

func (s *Set) QuantityOf(itemID string) int {
	if entry, ok := s.entries[itemID]; ok {
		return entry.Quantity
	}
	return 0
}

// Lines returns a copy of the entries in selection order.
func (s *Set) Lines() []domain.SelectionEntry {
	lines := make([]domain.SelectionEntry, 0, len(s.order))
	for _, id := range s.order {
		lines = append(lines, *s.entries[id])
	}
	return lines
}

func (s *Set) Len() int {
	return len(s.order)
}

func (s *Set) TotalItems() int {
	total := 0
	for _, entry := range s.entries {
		total += entry.Quantity
	}
	return total
}

func (s *Set) Clone() *Set {
	clone := &Set{
		entries: make(map[string]*domain.SelectionEntry, len(s.entries)),
		order:   slices.Clone(s.order),
	}
	for id, entry := range s.entries {
		copied := *entry
		clone.entries[id] = &copied
	}
	return clone
}

func (s *Set) Reset() {
	s.entries = make(map[string]*domain.SelectionEntry)
	s.order = nil
}

func (s *Set) remove(itemID string) {
	if _, ok := s.entries[itemID]; !ok {
		return
	}
	delete(s.entries, itemID)
	s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == itemID })
}
