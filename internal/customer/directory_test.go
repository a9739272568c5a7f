package customer

import (
	"context"
	"errors"
	"testing"

	"fieldsales/backend/internal/domain"
	"fieldsales/backend/internal/store/memory"
)

func newDirectory() *Directory {
	return NewDirectory(memory.New(), Seeds())
}

func TestSearchByNameAndPhone(t *testing.T) {
	dir := newDirectory()
	ctx := context.Background()

	byName, err := dir.Search(ctx, "rep", "rashid")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(byName) != 1 || byName[0].Name != "Al Rashid Trading Co." {
		t.Fatalf("unexpected name match %+v", byName)
	}

	byPhone, _ := dir.Search(ctx, "rep", "987 6543")
	if len(byPhone) != 1 || byPhone[0].ID != "2" {
		t.Fatalf("unexpected phone match %+v", byPhone)
	}

	all, _ := dir.Search(ctx, "rep", "  ")
	if len(all) != 5 {
		t.Fatalf("blank query should list all, got %d", len(all))
	}
}

func TestAddPersistsCustomerForOwner(t *testing.T) {
	dir := newDirectory()
	ctx := context.Background()

	created, err := dir.Add(ctx, "rep", domain.CustomerCreateRequest{
		Name:    "  Riyadh Office Supply ",
		Phone:   "+966 (11) 555-0101",
		Address: "Olaya District, Riyadh",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if created.Status != domain.CustomerPending || !created.TotalSales.IsZero() {
		t.Fatalf("new customer should be pending with zero sales, got %+v", created)
	}
	if created.Name != "Riyadh Office Supply" {
		t.Fatalf("expected trimmed name, got %q", created.Name)
	}

	got, err := dir.Get(ctx, "rep", created.ID)
	if err != nil || got.Name != created.Name {
		t.Fatalf("added customer not retrievable: %+v %v", got, err)
	}

	others, _ := dir.List(ctx, "someone-else")
	if len(others) != 5 {
		t.Fatalf("customers added by one rep leaked to another: %d", len(others))
	}
}

func TestValidateReportsEveryField(t *testing.T) {
	err := Validate(domain.CustomerCreateRequest{Phone: "call me"})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"name", "phone", "address"} {
		if verr.Fields[field] == "" {
			t.Fatalf("expected %s to be flagged, got %v", field, verr.Fields)
		}
	}
	if verr.Fields["phone"] != "Please enter a valid phone number" {
		t.Fatalf("unexpected phone message %q", verr.Fields["phone"])
	}
}

func TestValidateMissingPhone(t *testing.T) {
	err := Validate(domain.CustomerCreateRequest{Name: "A", Address: "B"})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Fields["phone"] != "Phone number is required" || len(verr.Fields) != 1 {
		t.Fatalf("expected only the phone field flagged, got %v", err)
	}
}

func TestGetUnknownCustomer(t *testing.T) {
	_, err := newDirectory().Get(context.Background(), "rep", "nope")
	if !errors.Is(err, ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}
