package customer

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fieldsales/backend/internal/domain"
	"fieldsales/backend/internal/store"
	"fieldsales/backend/internal/xid"
)

var ErrCustomerNotFound = errors.New("customer not found")

var phonePattern = regexp.MustCompile(`^\+?[\d\s\-()]+$`)

// ValidationError maps each offending form field to its message.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", key, e.Fields[key]))
	}
	return "invalid customer: " + strings.Join(parts, "; ")
}

// Directory serves the seeded customers plus the ones each sales rep adds.
type Directory struct {
	kv    store.KV
	seeds []domain.Customer
	now   func() time.Time
}

func NewDirectory(kv store.KV, seeds []domain.Customer) *Directory {
	return &Directory{kv: kv, seeds: slices.Clone(seeds), now: time.Now}
}

func Seeds() []domain.Customer {
	sales := decimal.NewFromInt
	return []domain.Customer{
		{ID: "1", Name: "Al Rashid Trading Co.", Phone: "+971 50 123 4567", Address: "Dubai Marina, UAE", Status: domain.CustomerVisited, TotalSales: sales(12450)},
		{ID: "2", Name: "Khalid Motors LLC", Phone: "+971 55 987 6543", Address: "Sharjah Industrial, UAE", Status: domain.CustomerPending, TotalSales: sales(8720)},
		{ID: "3", Name: "Emirates Electronics", Phone: "+971 52 456 7890", Address: "Abu Dhabi Mall, UAE", Status: domain.CustomerOverdue, TotalSales: sales(15300)},
		{ID: "4", Name: "Gulf Construction Ltd", Phone: "+971 56 234 5678", Address: "Ajman Free Zone, UAE", Status: domain.CustomerVisited, TotalSales: sales(22100)},
		{ID: "5", Name: "Desert Tech Solutions", Phone: "+971 58 345 6789", Address: "Dubai Silicon Oasis, UAE", Status: domain.CustomerPending, TotalSales: sales(5680)},
	}
}

func (d *Directory) List(ctx context.Context, owner string) ([]domain.Customer, error) {
	added, err := store.LoadList[domain.Customer](ctx, d.kv, store.Key(owner, store.KeyCustomers))
	if err != nil {
		return nil, err
	}
	all := make([]domain.Customer, 0, len(d.seeds)+len(added))
	all = append(all, d.seeds...)
	return append(all, added...), nil
}

// Search matches the name case-insensitively or the phone number verbatim.
func (d *Directory) Search(ctx context.Context, owner string, query string) ([]domain.Customer, error) {
	customers, err := d.List(ctx, owner)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return customers, nil
	}
	lowered := strings.ToLower(query)
	return slices.DeleteFunc(customers, func(c domain.Customer) bool {
		return !strings.Contains(strings.ToLower(c.Name), lowered) && !strings.Contains(c.Phone, query)
	}), nil
}

func (d *Directory) Get(ctx context.Context, owner string, id string) (domain.Customer, error) {
	customers, err := d.List(ctx, owner)
	if err != nil {
		return domain.Customer{}, err
	}
	id = strings.TrimSpace(id)
	for _, c := range customers {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.Customer{}, ErrCustomerNotFound
}

func (d *Directory) Add(ctx context.Context, owner string, req domain.CustomerCreateRequest) (domain.Customer, error) {
	if err := Validate(req); err != nil {
		return domain.Customer{}, err
	}

	created := domain.Customer{
		ID:         xid.New("cust"),
		Name:       strings.TrimSpace(req.Name),
		Phone:      strings.TrimSpace(req.Phone),
		Email:      strings.TrimSpace(req.Email),
		Address:    strings.TrimSpace(req.Address),
		Notes:      strings.TrimSpace(req.Notes),
		Status:     domain.CustomerPending,
		TotalSales: decimal.Zero,
		CreatedAt:  d.now().UTC(),
	}
	if err := store.AppendRecord(ctx, d.kv, store.Key(owner, store.KeyCustomers), created); err != nil {
		return domain.Customer{}, err
	}
	return created, nil
}

// Validate reports every invalid field at once so each can be flagged inline.
func Validate(req domain.CustomerCreateRequest) error {
	fields := map[string]string{}
	if strings.TrimSpace(req.Name) == "" {
		fields["name"] = "Customer name is required"
	}
	phone := strings.TrimSpace(req.Phone)
	switch {
	case phone == "":
		fields["phone"] = "Phone number is required"
	case !phonePattern.MatchString(phone):
		fields["phone"] = "Please enter a valid phone number"
	}
	if strings.TrimSpace(req.Address) == "" {
		fields["address"] = "Address is required"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
