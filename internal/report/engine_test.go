package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fieldsales/backend/internal/domain"
)

type countingCache struct {
	values map[string]domain.ReportSummary
	hits   int
}

func (c *countingCache) Get(_ context.Context, key string) (*domain.ReportSummary, bool, error) {
	v, ok := c.values[key]
	if ok {
		c.hits++
	}
	return &v, ok, nil
}

func (c *countingCache) Set(_ context.Context, key string, value *domain.ReportSummary, _ time.Duration) error {
	c.values[key] = *value
	return nil
}

var reportNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func invoice(number string, customerID string, issued time.Time, total string, lines ...domain.InvoiceLine) domain.Invoice {
	return domain.Invoice{
		Number:   number,
		Customer: domain.Customer{ID: customerID},
		IssuedAt: issued,
		Total:    decimal.RequireFromString(total),
		Lines:    lines,
	}
}

func line(id, name string, qty int, total string) domain.InvoiceLine {
	return domain.InvoiceLine{ItemID: id, Name: name, Quantity: qty, LineTotal: decimal.RequireFromString(total)}
}

func newEngine(c *countingCache) *Engine {
	e := NewEngine(c, time.Minute)
	e.now = func() time.Time { return reportNow }
	return e
}

func TestSummarizeMetricsAgainstPreviousPeriod(t *testing.T) {
	e := newEngine(&countingCache{values: map[string]domain.ReportSummary{}})
	in := Input{
		Owner:  "rep",
		Period: domain.PeriodWeek,
		Invoices: []domain.Invoice{
			invoice("INV-2026-0001", "1", reportNow.AddDate(0, 0, -1), "300.00", line("1", "Wireless Mouse", 2, "240"), line("2", "USB-C Cable", 1, "45")),
			invoice("INV-2026-0002", "2", reportNow.AddDate(0, 0, -3), "100.00", line("8", "Pen Set", 4, "100")),
			invoice("INV-2026-0003", "1", reportNow.AddDate(0, 0, -10), "200.00", line("1", "Wireless Mouse", 1, "120")),
		},
	}

	summary, err := e.Summarize(context.Background(), in)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}

	revenue := summary.Metrics[0]
	if revenue.Title != "Total Revenue" || !revenue.Value.Equal(decimal.RequireFromString("400")) {
		t.Fatalf("unexpected revenue %+v", revenue)
	}
	if !revenue.ChangePercent.Equal(decimal.NewFromInt(100)) || revenue.Trend != "up" {
		t.Fatalf("expected +100%% change, got %s %s", revenue.ChangePercent, revenue.Trend)
	}
	if revenue.Display != "SAR 400.00" {
		t.Fatalf("unexpected display %q", revenue.Display)
	}
	if summary.Metrics[1].Value.IntPart() != 2 || summary.Metrics[2].Value.IntPart() != 2 {
		t.Fatalf("unexpected counts %+v", summary.Metrics)
	}
	if !summary.Metrics[3].Value.Equal(decimal.RequireFromString("200")) {
		t.Fatalf("unexpected average %s", summary.Metrics[3].Value)
	}

	if len(summary.TopProducts) != 3 || summary.TopProducts[0].Name != "Pen Set" || summary.TopProducts[1].Name != "Wireless Mouse" {
		t.Fatalf("unexpected top products %+v", summary.TopProducts)
	}
}

func TestSummarizeCachesUntilHistoryChanges(t *testing.T) {
	c := &countingCache{values: map[string]domain.ReportSummary{}}
	e := newEngine(c)
	in := Input{Owner: "rep", Period: domain.PeriodMonth}

	if _, err := e.Summarize(context.Background(), in); err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if _, err := e.Summarize(context.Background(), in); err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if c.hits != 1 {
		t.Fatalf("expected one cache hit, got %d", c.hits)
	}

	in.Invoices = append(in.Invoices, invoice("INV-2026-0009", "3", reportNow, "50.00"))
	summary, _ := e.Summarize(context.Background(), in)
	if c.hits != 1 || summary.Metrics[1].Value.IntPart() != 1 {
		t.Fatalf("new invoice should bypass the cached summary, hits=%d metrics=%+v", c.hits, summary.Metrics)
	}
}

func TestRecentVisitsCarryInvoiceAmount(t *testing.T) {
	e := newEngine(&countingCache{values: map[string]domain.ReportSummary{}})
	visits := make([]domain.Visit, 0, 7)
	for i := range 7 {
		visits = append(visits, domain.Visit{
			ID:        string(rune('a' + i)),
			StartTime: reportNow.Add(-time.Duration(i) * time.Hour),
			Status:    domain.VisitCompleted,
			Location:  domain.Location{Address: "Dubai"},
		})
	}
	visits[0].CustomerName = "Khalid Motors LLC"
	visits[0].InvoiceNumber = "INV-2026-0005"

	summary, _ := e.Summarize(context.Background(), Input{
		Owner:    "rep",
		Period:   domain.PeriodWeek,
		Visits:   visits,
		Invoices: []domain.Invoice{invoice("INV-2026-0005", "2", reportNow, "575.00")},
	})
	if len(summary.RecentVisits) != 5 {
		t.Fatalf("expected 5 recent visits, got %d", len(summary.RecentVisits))
	}
	first := summary.RecentVisits[0]
	if first.CustomerName != "Khalid Motors LLC" || !first.Amount.Equal(decimal.RequireFromString("575")) {
		t.Fatalf("unexpected first visit %+v", first)
	}
	if summary.RecentVisits[1].CustomerName != "Dubai" {
		t.Fatalf("visits without a customer should show the address")
	}
}

func TestParsePeriod(t *testing.T) {
	if p, err := ParsePeriod(""); err != nil || p != domain.PeriodMonth {
		t.Fatalf("empty period should default to month, got %s %v", p, err)
	}
	if p, err := ParsePeriod("Quarter"); err != nil || p != domain.PeriodQuarter {
		t.Fatalf("unexpected %s %v", p, err)
	}
	if _, err := ParsePeriod("decade"); !errors.Is(err, ErrUnknownPeriod) {
		t.Fatalf("expected ErrUnknownPeriod, got %v", err)
	}
}

func TestChangePercent(t *testing.T) {
	cases := []struct {
		current, previous, want string
	}{
		{"150", "100", "50"},
		{"50", "200", "-75"},
		{"0", "0", "0"},
		{"10", "0", "100"},
		{"100", "300", "-66.7"},
	}
	for _, tc := range cases {
		got := ChangePercent(decimal.RequireFromString(tc.current), decimal.RequireFromString(tc.previous))
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("change %s vs %s: expected %s, got %s", tc.current, tc.previous, tc.want, got)
		}
	}
}
