package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fieldsales/backend/internal/catalog"
	"fieldsales/backend/internal/domain"
	"fieldsales/backend/internal/store/memory"
	"fieldsales/backend/internal/visit"
	"fieldsales/backend/internal/wizard"
)

type sequenceNumbers struct {
	next int
}

func (s *sequenceNumbers) Next(_ context.Context, issuedAt time.Time) (string, error) {
	s.next++
	return wizard.FormatNumber(issuedAt.Year(), s.next), nil
}

func newTestService(now *time.Time) *Service {
	return New(memory.New(), catalog.NewSeeded(), nil, nil,
		WithClock(func() time.Time { return *now }),
		WithNumbers(func(string) wizard.NumberGenerator { return &sequenceNumbers{} }),
	)
}

func repContext(username string) context.Context {
	return WithActor(context.Background(), domain.Actor{Username: username, Role: domain.RoleSalesRep})
}

func commitInvoice(t *testing.T, svc *Service, ctx context.Context, customerID string, quantities map[string]int) domain.Invoice {
	t.Helper()
	if _, err := svc.SelectCustomer(ctx, customerID); err != nil {
		t.Fatalf("select customer: %v", err)
	}
	if _, err := svc.ApplyWizard(ctx, wizard.Continue{}); err != nil {
		t.Fatalf("continue: %v", err)
	}
	for itemID, qty := range quantities {
		if _, err := svc.SetQuantity(ctx, itemID, qty); err != nil {
			t.Fatalf("set quantity %s: %v", itemID, err)
		}
	}
	for range 2 {
		if _, err := svc.ApplyWizard(ctx, wizard.Continue{}); err != nil {
			t.Fatalf("continue: %v", err)
		}
	}
	inv, err := svc.CommitInvoice(ctx)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := svc.ApplyWizard(ctx, wizard.Reset{}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	return inv
}

func TestOperationsRequireActor(t *testing.T) {
	now := time.Now()
	svc := newTestService(&now)
	if _, err := svc.WizardSummary(context.Background()); !errors.Is(err, ErrActorRequired) {
		t.Fatalf("expected ErrActorRequired, got %v", err)
	}
	if _, err := svc.ListInvoices(context.Background(), domain.InvoiceFilter{}); !errors.Is(err, ErrActorRequired) {
		t.Fatalf("expected ErrActorRequired, got %v", err)
	}
}

func TestCatalogFiltersAndCategories(t *testing.T) {
	now := time.Now()
	page, err := newTestService(&now).Catalog(context.Background(), catalog.Filter{PriceBand: catalog.PriceOver300})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Name != "Office Chair" {
		t.Fatalf("unexpected items %+v", page.Items)
	}
	if len(page.Categories) != 3 {
		t.Fatalf("expected 3 categories, got %v", page.Categories)
	}
}

func TestWizardSessionsAreIsolatedPerRep(t *testing.T) {
	now := time.Now()
	svc := newTestService(&now)

	if _, err := svc.SelectCustomer(repContext("alice"), "1"); err != nil {
		t.Fatalf("select: %v", err)
	}
	bob, err := svc.WizardSummary(repContext("bob"))
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if bob.Customer != nil {
		t.Fatalf("bob should not see alice's draft")
	}
}

func TestSelectUnknownCustomerKeepsStep(t *testing.T) {
	now := time.Now()
	svc := newTestService(&now)
	summary, err := svc.SelectCustomer(repContext("rep"), "404")
	if err == nil {
		t.Fatalf("expected error for unknown customer")
	}
	if summary.Step != wizard.StepCustomerSelection {
		t.Fatalf("unexpected step %s", summary.Step)
	}
}

func TestCommitLinksCurrentVisit(t *testing.T) {
	now := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	svc := newTestService(&now)
	ctx := repContext("rep")

	lat, lng := 25.0772, 55.1390
	started, err := svc.StartVisit(ctx, domain.VisitStartRequest{Latitude: &lat, Longitude: &lng})
	if err != nil {
		t.Fatalf("start visit: %v", err)
	}
	if started.Visit.Location.Address != "25.0772, 55.1390" || started.Duration != "Ongoing" {
		t.Fatalf("unexpected visit %+v", started)
	}

	inv := commitInvoice(t, svc, ctx, "1", map[string]int{"1": 2, "2": 1})
	if inv.VisitID != started.Visit.ID {
		t.Fatalf("invoice should reference the visit, got %q", inv.VisitID)
	}
	if !inv.Total.Equal(decimal.RequireFromString("327.75")) {
		t.Fatalf("unexpected total %s", inv.Total)
	}

	current, err := svc.CurrentVisit(ctx)
	if err != nil || current == nil {
		t.Fatalf("expected current visit, got %v %v", current, err)
	}
	if current.Visit.InvoiceNumber != inv.Number || current.Visit.CustomerName != "Al Rashid Trading Co." {
		t.Fatalf("visit not linked: %+v", current.Visit)
	}

	reportView, err := svc.InvoiceReport(ctx, strings.ToLower(inv.Number))
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if reportView.Visit == nil || reportView.VisitWarning != "" {
		t.Fatalf("expected linked visit in report, got %+v", reportView)
	}

	now = now.Add(50 * time.Minute)
	done, err := svc.CompleteVisit(ctx, started.Visit.ID)
	if err != nil || done.Duration != "50m" {
		t.Fatalf("complete: %+v %v", done, err)
	}
	if current, _ := svc.CurrentVisit(ctx); current != nil {
		t.Fatalf("no visit should be current after completion")
	}
}

func TestStartVisitCapabilityErrors(t *testing.T) {
	now := time.Now()
	svc := newTestService(&now)
	if _, err := svc.StartVisit(repContext("rep"), domain.VisitStartRequest{Denied: true}); !errors.Is(err, visit.ErrLocationDenied) {
		t.Fatalf("expected ErrLocationDenied, got %v", err)
	}
	if _, err := svc.StartVisit(repContext("rep"), domain.VisitStartRequest{}); !errors.Is(err, visit.ErrLocationUnsupported) {
		t.Fatalf("expected ErrLocationUnsupported, got %v", err)
	}

	visits, err := svc.ListVisits(repContext("rep"), domain.VisitFilter{})
	if err != nil {
		t.Fatalf("list visits: %v", err)
	}
	if len(visits) != 0 {
		t.Fatalf("refused location must not record a visit, got %+v", visits)
	}
	current, err := svc.CurrentVisit(repContext("rep"))
	if err != nil {
		t.Fatalf("current visit: %v", err)
	}
	if current != nil {
		t.Fatalf("refused location must leave no current visit, got %+v", current)
	}
}

func TestInvoiceHistoryNewestFirstWithOverdue(t *testing.T) {
	now := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	svc := newTestService(&now)
	ctx := repContext("rep")

	first := commitInvoice(t, svc, ctx, "2", map[string]int{"8": 2})
	now = now.AddDate(0, 0, 31)
	second := commitInvoice(t, svc, ctx, "3", map[string]int{"4": 1})

	all, err := svc.ListInvoices(ctx, domain.InvoiceFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].Number != second.Number || all[1].Number != first.Number {
		t.Fatalf("expected newest first, got %+v", all)
	}
	if all[1].Status != domain.InvoiceOverdue || all[0].Status != domain.InvoicePending {
		t.Fatalf("unexpected statuses %s %s", all[0].Status, all[1].Status)
	}

	overdue, _ := svc.ListInvoices(ctx, domain.InvoiceFilter{Status: domain.InvoiceOverdue})
	if len(overdue) != 1 || overdue[0].CustomerName != "Khalid Motors LLC" {
		t.Fatalf("unexpected overdue filter result %+v", overdue)
	}
	byCustomer, _ := svc.ListInvoices(ctx, domain.InvoiceFilter{Query: "emirates"})
	if len(byCustomer) != 1 || byCustomer[0].Number != second.Number {
		t.Fatalf("unexpected search result %+v", byCustomer)
	}

	others, _ := svc.ListInvoices(repContext("someone"), domain.InvoiceFilter{})
	if len(others) != 0 {
		t.Fatalf("invoices leaked across reps")
	}
}

func TestInvoiceReportWithoutVisitWarns(t *testing.T) {
	now := time.Now()
	svc := newTestService(&now)
	ctx := repContext("rep")
	inv := commitInvoice(t, svc, ctx, "4", map[string]int{"7": 1})

	view, err := svc.InvoiceReport(ctx, inv.Number)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if view.Visit != nil || view.VisitWarning != "Visit Info: Not Started Properly" {
		t.Fatalf("expected visit warning, got %+v", view)
	}

	if _, err := svc.InvoiceReport(ctx, "INV-1999-0001"); !errors.Is(err, ErrInvoiceNotFound) {
		t.Fatalf("expected ErrInvoiceNotFound, got %v", err)
	}
}

func TestShareInvoiceMessage(t *testing.T) {
	now := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	svc := newTestService(&now)
	ctx := repContext("rep")
	inv := commitInvoice(t, svc, ctx, "5", map[string]int{"2": 2})

	msg, err := svc.ShareInvoice(ctx, inv.Number)
	if err != nil {
		t.Fatalf("share: %v", err)
	}
	want := "Invoice INV-2026-0001\n" +
		"Customer: Desert Tech Solutions\n" +
		"Total: SAR 103.50\n" +
		"Date: 03 Feb 2026\n\n" +
		"Items:\n" +
		"• USB-C Cable x2 = SAR 90.00\n\n" +
		"Thank you for your business!"
	if msg.Text != want {
		t.Fatalf("unexpected share text:\n%s", msg.Text)
	}

	decoded, err := url.QueryUnescape(strings.TrimPrefix(msg.URL, "https://wa.me/?text="))
	if err != nil || decoded != want {
		t.Fatalf("share url does not carry the text: %s", msg.URL)
	}
}

func TestReportSummaryCountsCommittedInvoices(t *testing.T) {
	now := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	svc := newTestService(&now)
	ctx := repContext("rep")
	commitInvoice(t, svc, ctx, "1", map[string]int{"1": 1})
	commitInvoice(t, svc, ctx, "2", map[string]int{"1": 2, "8": 1})

	summary, err := svc.ReportSummary(ctx, "week")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if summary.Metrics[1].Value.IntPart() != 2 {
		t.Fatalf("expected 2 invoices, got %s", summary.Metrics[1].Value)
	}
	if summary.TopProducts[0].Name != "Wireless Mouse" || summary.TopProducts[0].Units != 3 {
		t.Fatalf("unexpected top product %+v", summary.TopProducts[0])
	}

	if _, err := svc.ReportSummary(ctx, "fortnight"); err == nil {
		t.Fatalf("expected error for unknown period")
	}
}

func TestAddedCustomerCanBeInvoiced(t *testing.T) {
	now := time.Now()
	svc := newTestService(&now)
	ctx := repContext("rep")

	created, err := svc.AddCustomer(ctx, domain.CustomerCreateRequest{Name: "Najd Traders", Phone: "+966 11 222 3333", Address: "Riyadh"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	found, _ := svc.SearchCustomers(ctx, "najd")
	if len(found) != 1 || found[0].ID != created.ID {
		t.Fatalf("expected added customer in search, got %+v", found)
	}
	inv := commitInvoice(t, svc, ctx, created.ID, map[string]int{"5": 1})
	if inv.Customer.Name != "Najd Traders" {
		t.Fatalf("unexpected customer on invoice %+v", inv.Customer)
	}
}
