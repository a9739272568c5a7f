package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"fieldsales/backend/internal/domain"
	"fieldsales/backend/internal/store"
	"fieldsales/backend/internal/totals"
	"fieldsales/backend/internal/visit"
)

var ErrInvoiceNotFound = errors.New("invoice not found")

const (
	visitWarning = "Visit Info: Not Started Properly"
	shareBaseURL = "https://wa.me/?text="
)

func (s *Service) invoices(ctx context.Context, owner string) ([]domain.Invoice, error) {
	return store.LoadList[domain.Invoice](ctx, s.kv, store.Key(owner, store.KeyInvoices))
}

func (s *Service) findInvoice(ctx context.Context, owner string, number string) (domain.Invoice, error) {
	invoices, err := s.invoices(ctx, owner)
	if err != nil {
		return domain.Invoice{}, err
	}
	number = strings.ToUpper(strings.TrimSpace(number))
	for _, inv := range invoices {
		if inv.Number == number {
			return inv, nil
		}
	}
	return domain.Invoice{}, ErrInvoiceNotFound
}

// ListInvoices returns the caller's invoices most recent first, matched by
// number or customer name and by effective status.
func (s *Service) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.InvoiceSummary, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	invoices, err := s.invoices(ctx, owner)
	if err != nil {
		return nil, err
	}

	now := s.now()
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	result := make([]domain.InvoiceSummary, 0, len(invoices))
	for _, inv := range invoices {
		status := inv.EffectiveStatus(now)
		if filter.Status != "" && status != filter.Status {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(inv.Number), query) &&
			!strings.Contains(strings.ToLower(inv.Customer.Name), query) {
			continue
		}
		result = append(result, domain.InvoiceSummary{
			Number:       inv.Number,
			CustomerName: inv.Customer.Name,
			Total:        inv.Total,
			Display:      totals.Format(inv.Total, inv.Currency),
			IssuedAt:     inv.IssuedAt,
			Status:       status,
			Items:        inv.ItemCount(),
		})
	}
	return result, nil
}

// InvoiceReport pairs an invoice with the visit it was raised on. A missing
// visit is reported as a warning, not an error.
func (s *Service) InvoiceReport(ctx context.Context, number string) (domain.InvoiceReport, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return domain.InvoiceReport{}, err
	}
	inv, err := s.findInvoice(ctx, owner, number)
	if err != nil {
		return domain.InvoiceReport{}, err
	}
	inv.Status = inv.EffectiveStatus(s.now())

	out := domain.InvoiceReport{Invoice: inv}
	if inv.VisitID == "" {
		out.VisitWarning = visitWarning
		return out, nil
	}
	v, err := s.recorder(owner).Get(ctx, inv.VisitID)
	switch {
	case errors.Is(err, visit.ErrVisitNotFound):
		out.VisitWarning = visitWarning
	case err != nil:
		return domain.InvoiceReport{}, err
	default:
		out.Visit = &v
	}
	return out, nil
}

func (s *Service) ShareInvoice(ctx context.Context, number string) (domain.ShareMessage, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return domain.ShareMessage{}, err
	}
	inv, err := s.findInvoice(ctx, owner, number)
	if err != nil {
		return domain.ShareMessage{}, err
	}
	text := ShareText(inv)
	return domain.ShareMessage{Text: text, URL: shareBaseURL + url.QueryEscape(text)}, nil
}

// ShareText renders the plain-text invoice message sent over chat apps.
func ShareText(inv domain.Invoice) string {
	currency := inv.Currency
	if currency == "" {
		currency = domain.Currency
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Invoice %s\n", inv.Number)
	fmt.Fprintf(&b, "Customer: %s\n", inv.Customer.Name)
	fmt.Fprintf(&b, "Total: %s\n", totals.Format(inv.Total, currency))
	fmt.Fprintf(&b, "Date: %s\n\n", inv.IssuedAt.Format("02 Jan 2006"))
	b.WriteString("Items:\n")
	lines := make([]string, 0, len(inv.Lines))
	for _, line := range inv.Lines {
		lines = append(lines, fmt.Sprintf("• %s x%d = %s", line.Name, line.Quantity, totals.Format(line.LineTotal, currency)))
	}
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\nThank you for your business!")
	return b.String()
}
