package wizard

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fieldsales/backend/internal/catalog"
	"fieldsales/backend/internal/domain"
	"fieldsales/backend/internal/selection"
)

var (
	mouse = domain.CatalogItem{ID: "1", Name: "Wireless Mouse", UnitPrice: decimal.RequireFromString("120.00"), Currency: domain.Currency, InStock: true}
	cable = domain.CatalogItem{ID: "2", Name: "USB-C Cable", UnitPrice: decimal.RequireFromString("45.00"), Currency: domain.Currency, InStock: true}
	buyer = domain.Customer{ID: "1", Name: "Al Rashid Trading Co.", Phone: "+971 50 123 4567"}
)

func mustReduce(t *testing.T, state State, events ...Event) State {
	t.Helper()
	for _, ev := range events {
		next, err := Reduce(state, ev)
		if err != nil {
			t.Fatalf("reduce %T: %v", ev, err)
		}
		state = next
	}
	return state
}

func reviewState(t *testing.T) State {
	t.Helper()
	return mustReduce(t, Initial(),
		SelectCustomer{Customer: buyer},
		Continue{},
		SetQuantity{Item: mouse, Quantity: 2},
		SetQuantity{Item: cable, Quantity: 1},
		Continue{},
		SetRemarks{Text: "  Deliver before noon  "},
		Continue{},
	)
}

func TestContinueRequiresCustomer(t *testing.T) {
	state, err := Reduce(Initial(), Continue{})
	if !errors.Is(err, ErrCustomerRequired) {
		t.Fatalf("expected ErrCustomerRequired, got %v", err)
	}
	if state.Step != StepCustomerSelection {
		t.Fatalf("expected to stay on customer selection, got %s", state.Step)
	}
}

func TestContinueBlockedWithoutLines(t *testing.T) {
	state := mustReduce(t, Initial(), SelectCustomer{Customer: buyer}, Continue{})

	_, err := Reduce(state, Continue{})
	if !errors.Is(err, ErrNoLines) {
		t.Fatalf("expected ErrNoLines, got %v", err)
	}

	state = mustReduce(t, state, SetQuantity{Item: mouse, Quantity: 1}, SetQuantity{Item: mouse, Quantity: 0})
	if _, err := Reduce(state, Continue{}); !errors.Is(err, ErrNoLines) {
		t.Fatalf("removing the only line should block continue, got %v", err)
	}
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	state := mustReduce(t, Initial(), SelectCustomer{Customer: buyer}, Continue{})
	next := mustReduce(t, state, SetQuantity{Item: mouse, Quantity: 3})

	if state.Selection.Len() != 0 {
		t.Fatalf("input selection mutated: %d entries", state.Selection.Len())
	}
	if next.Selection.QuantityOf(mouse.ID) != 3 {
		t.Fatalf("expected quantity 3, got %d", next.Selection.QuantityOf(mouse.ID))
	}
}

func TestEventsRejectedOutsideTheirStep(t *testing.T) {
	cases := []struct {
		name  string
		state State
		ev    Event
		want  error
	}{
		{"quantity on customer step", Initial(), SetQuantity{Item: mouse, Quantity: 1}, ErrStepMismatch},
		{"remarks on customer step", Initial(), SetRemarks{Text: "x"}, ErrStepMismatch},
		{"back from first step", Initial(), Back{}, ErrNoPreviousStep},
		{"confirm before review", Initial(), Confirm{Number: "INV-2026-0001"}, ErrNotReviewing},
		{"customer without id", Initial(), SelectCustomer{}, ErrCustomerRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Reduce(tc.state, tc.ev); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestInvalidPriceKeepsPrevious(t *testing.T) {
	state := mustReduce(t, Initial(),
		SelectCustomer{Customer: buyer},
		Continue{},
		SetQuantity{Item: mouse, Quantity: 1},
		SetUnitPrice{ItemID: mouse.ID, Input: "99.50"},
	)

	for _, input := range []string{"abc", "0", "-4"} {
		if _, err := Reduce(state, SetUnitPrice{ItemID: mouse.ID, Input: input}); !errors.Is(err, selection.ErrInvalidPrice) {
			t.Fatalf("input %q: expected ErrInvalidPrice, got %v", input, err)
		}
	}
	price, _ := state.Selection.UnitPrice(mouse.ID)
	if !price.Equal(decimal.RequireFromString("99.50")) {
		t.Fatalf("expected retained price 99.50, got %s", price)
	}
}

func TestOutOfStockItemRejected(t *testing.T) {
	items, _ := catalog.NewSeeded().List(context.Background())
	var speaker domain.CatalogItem
	for _, item := range items {
		if !item.InStock {
			speaker = item
		}
	}
	state := mustReduce(t, Initial(), SelectCustomer{Customer: buyer}, Continue{})
	if _, err := Reduce(state, SetQuantity{Item: speaker, Quantity: 1}); !errors.Is(err, selection.ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}
}

func TestQuickRemarkOverflowDropped(t *testing.T) {
	state := mustReduce(t, Initial(),
		SelectCustomer{Customer: buyer},
		Continue{},
		SetQuantity{Item: mouse, Quantity: 1},
		Continue{},
	)

	first := strings.Repeat("a", 300)
	second := strings.Repeat("b", 250)
	state = mustReduce(t, state, QuickRemark{Phrase: first})

	next, err := Reduce(state, QuickRemark{Phrase: second})
	if !errors.Is(err, ErrRemarksOverflow) {
		t.Fatalf("expected ErrRemarksOverflow, got %v", err)
	}
	if next.Remarks != first {
		t.Fatalf("first remark should be intact")
	}

	state = mustReduce(t, state, QuickRemark{Phrase: "Free delivery included"})
	if state.Remarks != first+"\nFree delivery included" {
		t.Fatalf("expected newline-joined remarks, got %q", state.Remarks)
	}
}

func TestRemarksCountCharactersNotBytes(t *testing.T) {
	state := mustReduce(t, Initial(),
		SelectCustomer{Customer: buyer},
		Continue{},
		SetQuantity{Item: mouse, Quantity: 1},
		Continue{},
	)

	arabic := strings.Repeat("ش", RemarksLimit)
	if _, err := Reduce(state, SetRemarks{Text: arabic}); err != nil {
		t.Fatalf("500 characters should be accepted, got %v", err)
	}
	if _, err := Reduce(state, SetRemarks{Text: arabic + "x"}); !errors.Is(err, ErrRemarksTooLong) {
		t.Fatalf("expected ErrRemarksTooLong, got %v", err)
	}
}

func TestBackPreservesCarriedData(t *testing.T) {
	state := reviewState(t)
	if state.Remarks != "Deliver before noon" {
		t.Fatalf("remarks should be trimmed on continue, got %q", state.Remarks)
	}

	state = mustReduce(t, state, Back{}, Back{})
	if state.Step != StepProductSelection {
		t.Fatalf("expected product selection, got %s", state.Step)
	}
	if state.Remarks != "Deliver before noon" {
		t.Fatalf("remarks lost on back navigation")
	}

	state = mustReduce(t, state, SetQuantity{Item: cable, Quantity: 0}, Continue{}, Continue{})
	if state.Step != StepReview || len(state.Lines) != 1 {
		t.Fatalf("expected review with one line, got %s %d", state.Step, len(state.Lines))
	}
}

func TestConfirmFreezesReviewTotals(t *testing.T) {
	state := reviewState(t)
	issued := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	state = mustReduce(t, state, Confirm{InvoiceID: "inv-1", Number: "INV-2026-0042", IssuedAt: issued, SalesRep: "rep", VisitID: "visit-1"})
	if state.Step != StepCommitted || state.Invoice == nil {
		t.Fatalf("expected committed invoice, got %s", state.Step)
	}

	inv := state.Invoice
	if !inv.Subtotal.Equal(decimal.RequireFromString("285")) ||
		!inv.Tax.Equal(decimal.RequireFromString("42.75")) ||
		!inv.Total.Equal(decimal.RequireFromString("327.75")) {
		t.Fatalf("unexpected totals %s %s %s", inv.Subtotal, inv.Tax, inv.Total)
	}
	if !inv.DueAt.Equal(issued.AddDate(0, 0, 30)) {
		t.Fatalf("expected due date 30 days after issue, got %s", inv.DueAt)
	}
	if inv.Lines[0].ItemID != mouse.ID || inv.Lines[1].ItemID != cable.ID {
		t.Fatalf("lines should keep selection order: %+v", inv.Lines)
	}
	if inv.Status != domain.InvoicePending || inv.Remarks != "Deliver before noon" || inv.VisitID != "visit-1" {
		t.Fatalf("unexpected invoice %+v", inv)
	}

	if _, err := Reduce(state, Back{}); !errors.Is(err, ErrCommitted) {
		t.Fatalf("expected ErrCommitted, got %v", err)
	}
}

func TestResetClearsDraft(t *testing.T) {
	state := mustReduce(t, reviewState(t), Reset{})
	if state.Step != StepCustomerSelection || state.Customer != nil || state.Selection.Len() != 0 || state.Remarks != "" || state.Lines != nil {
		t.Fatalf("reset left data behind: %+v", state)
	}
}
