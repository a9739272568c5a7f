// Package report summarizes a sales rep's invoices and visits over a period.
package report

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fieldsales/backend/internal/cache"
	"fieldsales/backend/internal/domain"
	"fieldsales/backend/internal/totals"
)

var ErrUnknownPeriod = errors.New("period must be one of week, month, quarter, year")

const (
	topProductLimit  = 5
	recentVisitLimit = 5
)

type Engine struct {
	cache    cache.ReportCache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewEngine(cacheStore cache.ReportCache, cacheTTL time.Duration) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopReportCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 60 * time.Second
	}

	return &Engine{
		cache:    cacheStore,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// Input is everything a summary is computed from. Both histories may be in
// any order. A zero Now falls back to the engine clock.
type Input struct {
	Owner    string
	Period   domain.ReportPeriod
	Now      time.Time
	Invoices []domain.Invoice
	Visits   []domain.Visit
}

func ParsePeriod(raw string) (domain.ReportPeriod, error) {
	switch p := domain.ReportPeriod(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return domain.PeriodMonth, nil
	case domain.PeriodWeek, domain.PeriodMonth, domain.PeriodQuarter, domain.PeriodYear:
		return p, nil
	}
	return "", ErrUnknownPeriod
}

// Window returns the start of the period ending at now and the start of the
// equally long period before it.
func Window(period domain.ReportPeriod, now time.Time) (from time.Time, prevFrom time.Time, err error) {
	back := func(t time.Time) time.Time {
		switch period {
		case domain.PeriodWeek:
			return t.AddDate(0, 0, -7)
		case domain.PeriodMonth:
			return t.AddDate(0, -1, 0)
		case domain.PeriodQuarter:
			return t.AddDate(0, -3, 0)
		case domain.PeriodYear:
			return t.AddDate(-1, 0, 0)
		}
		return time.Time{}
	}
	from = back(now)
	if from.IsZero() {
		return time.Time{}, time.Time{}, ErrUnknownPeriod
	}
	return from, back(from), nil
}

func (e *Engine) Summarize(ctx context.Context, in Input) (domain.ReportSummary, error) {
	now := in.Now
	if now.IsZero() {
		now = e.now()
	}
	now = now.UTC()
	from, prevFrom, err := Window(in.Period, now)
	if err != nil {
		return domain.ReportSummary{}, err
	}

	cacheKey := buildCacheKey(in, now)
	if cached, ok, err := e.cache.Get(ctx, cacheKey); err == nil && ok {
		return *cached, nil
	}

	prevTo := from.Add(-time.Nanosecond)
	current := invoicesBetween(in.Invoices, from, now)
	previous := invoicesBetween(in.Invoices, prevFrom, prevTo)
	currentVisits := visitsBetween(in.Visits, from, now)
	previousVisits := visitsBetween(in.Visits, prevFrom, prevTo)

	summary := domain.ReportSummary{
		Owner:        in.Owner,
		Period:       in.Period,
		From:         from,
		To:           now,
		Metrics:      metrics(current, previous, currentVisits, previousVisits),
		TopProducts:  topProducts(current),
		RecentVisits: recentVisits(in.Visits, in.Invoices),
		GeneratedAt:  now,
	}

	_ = e.cache.Set(ctx, cacheKey, &summary, e.cacheTTL)
	return summary, nil
}

func metrics(current, previous []domain.Invoice, currentVisits, previousVisits []domain.Visit) []domain.Metric {
	revenue, prevRevenue := revenueOf(current), revenueOf(previous)
	count, prevCount := decimal.NewFromInt(int64(len(current))), decimal.NewFromInt(int64(len(previous)))
	visited := decimal.NewFromInt(int64(customersVisited(current, currentVisits)))
	prevVisited := decimal.NewFromInt(int64(customersVisited(previous, previousVisits)))
	average, prevAverage := averageOf(revenue, len(current)), averageOf(prevRevenue, len(previous))

	return []domain.Metric{
		metric("Total Revenue", revenue, prevRevenue, totals.Format(revenue, domain.Currency)),
		metric("Invoices Created", count, prevCount, count.String()),
		metric("Customers Visited", visited, prevVisited, visited.String()),
		metric("Average Sale", average, prevAverage, totals.Format(average, domain.Currency)),
	}
}

func metric(title string, value, previous decimal.Decimal, display string) domain.Metric {
	change := ChangePercent(value, previous)
	trend := "flat"
	switch change.Sign() {
	case 1:
		trend = "up"
	case -1:
		trend = "down"
	}
	return domain.Metric{
		Title:         title,
		Value:         value,
		Display:       display,
		ChangePercent: change,
		Trend:         trend,
	}
}

// ChangePercent is the relative change from previous to current, rounded to
// one decimal. Growth from zero counts as 100%.
func ChangePercent(current, previous decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		if current.IsPositive() {
			return decimal.NewFromInt(100)
		}
		return decimal.Zero
	}
	return current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100)).Round(1)
}

func revenueOf(invoices []domain.Invoice) decimal.Decimal {
	sum := decimal.Zero
	for _, inv := range invoices {
		sum = sum.Add(inv.Total)
	}
	return sum
}

func averageOf(revenue decimal.Decimal, count int) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return revenue.Div(decimal.NewFromInt(int64(count))).Round(2)
}

func customersVisited(invoices []domain.Invoice, visits []domain.Visit) int {
	seen := make(map[string]struct{})
	for _, inv := range invoices {
		seen[inv.Customer.ID] = struct{}{}
	}
	for _, v := range visits {
		if v.CustomerID != "" {
			seen[v.CustomerID] = struct{}{}
		}
	}
	return len(seen)
}

func topProducts(invoices []domain.Invoice) []domain.ProductPerformance {
	byItem := make(map[string]*domain.ProductPerformance)
	for _, inv := range invoices {
		for _, line := range inv.Lines {
			perf, ok := byItem[line.ItemID]
			if !ok {
				perf = &domain.ProductPerformance{ItemID: line.ItemID, Name: line.Name, Revenue: decimal.Zero}
				byItem[line.ItemID] = perf
			}
			perf.Units += line.Quantity
			perf.Revenue = perf.Revenue.Add(line.LineTotal)
		}
	}

	result := make([]domain.ProductPerformance, 0, len(byItem))
	for _, perf := range byItem {
		result = append(result, *perf)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Units != result[j].Units {
			return result[i].Units > result[j].Units
		}
		if !result[i].Revenue.Equal(result[j].Revenue) {
			return result[i].Revenue.GreaterThan(result[j].Revenue)
		}
		return result[i].Name < result[j].Name
	})
	if len(result) > topProductLimit {
		result = result[:topProductLimit]
	}
	return result
}

func recentVisits(visits []domain.Visit, invoices []domain.Invoice) []domain.RecentVisit {
	amounts := make(map[string]decimal.Decimal, len(invoices))
	for _, inv := range invoices {
		amounts[inv.Number] = inv.Total
	}

	sorted := append([]domain.Visit(nil), visits...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime.After(sorted[j].StartTime)
	})
	if len(sorted) > recentVisitLimit {
		sorted = sorted[:recentVisitLimit]
	}

	result := make([]domain.RecentVisit, 0, len(sorted))
	for _, v := range sorted {
		amount, ok := amounts[v.InvoiceNumber]
		if !ok {
			amount = decimal.Zero
		}
		name := v.CustomerName
		if name == "" {
			name = v.Location.Address
		}
		result = append(result, domain.RecentVisit{
			CustomerName: name,
			Date:         v.StartTime,
			Status:       v.Status,
			Amount:       amount,
		})
	}
	return result
}

// invoicesBetween keeps invoices issued in [from, to].
func invoicesBetween(invoices []domain.Invoice, from, to time.Time) []domain.Invoice {
	var result []domain.Invoice
	for _, inv := range invoices {
		if !inv.IssuedAt.Before(from) && !inv.IssuedAt.After(to) {
			result = append(result, inv)
		}
	}
	return result
}

func visitsBetween(visits []domain.Visit, from, to time.Time) []domain.Visit {
	var result []domain.Visit
	for _, v := range visits {
		if !v.StartTime.Before(from) && !v.StartTime.After(to) {
			result = append(result, v)
		}
	}
	return result
}

// buildCacheKey changes whenever either history grows or the minute rolls over.
func buildCacheKey(in Input, now time.Time) string {
	parts := []string{
		strings.ToLower(in.Owner),
		string(in.Period),
		fmt.Sprintf("i:%d", len(in.Invoices)),
		fmt.Sprintf("v:%d", len(in.Visits)),
		now.Truncate(time.Minute).Format(time.RFC3339),
	}
	for _, inv := range in.Invoices {
		parts = append(parts, inv.Number)
	}
	for _, v := range in.Visits {
		parts = append(parts, v.ID+":"+string(v.Status))
	}

	hash := sha1.Sum([]byte(strings.Join(parts, "|")))
	return "fieldsales:report:" + hex.EncodeToString(hash[:])
}
