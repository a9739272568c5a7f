package wizard

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"fieldsales/backend/internal/domain"
	"fieldsales/backend/internal/totals"
	"fieldsales/backend/internal/xid"
)

type NumberGenerator interface {
	Next(ctx context.Context, issuedAt time.Time) (string, error)
}

// InvoiceSink records committed invoices in the history store.
type InvoiceSink interface {
	SaveInvoice(ctx context.Context, invoice domain.Invoice) error
}

type Option func(*Wizard)

func WithClock(now func() time.Time) Option {
	return func(w *Wizard) {
		w.now = now
	}
}

// Wizard is one sales rep's draft. It is not safe for concurrent use; callers
// serialize access per session.
type Wizard struct {
	state   State
	numbers NumberGenerator
	sink    InvoiceSink
	now     func() time.Time
}

func New(numbers NumberGenerator, sink InvoiceSink, opts ...Option) *Wizard {
	w := &Wizard{
		state:   Initial(),
		numbers: numbers,
		sink:    sink,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Wizard) Apply(ev Event) error {
	next, err := Reduce(w.state, ev)
	if err != nil {
		return err
	}
	w.state = next
	return nil
}

func (w *Wizard) Step() Step {
	return w.state.Step
}

func (w *Wizard) State() State {
	return w.state.clone()
}

// Commit numbers, stamps and persists the reviewed draft. The wizard only
// enters the committed step once the invoice is stored.
func (w *Wizard) Commit(ctx context.Context, salesRep string, visitID string) (domain.Invoice, error) {
	if w.state.Step == StepCommitted {
		return domain.Invoice{}, ErrCommitted
	}
	if w.state.Step != StepReview {
		return domain.Invoice{}, ErrNotReviewing
	}

	issuedAt := w.now().UTC()
	number, err := w.numbers.Next(ctx, issuedAt)
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("generate invoice number: %w", err)
	}

	next, err := Reduce(w.state, Confirm{
		InvoiceID: xid.New("inv"),
		Number:    number,
		IssuedAt:  issuedAt,
		SalesRep:  salesRep,
		VisitID:   visitID,
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	if err := w.sink.SaveInvoice(ctx, *next.Invoice); err != nil {
		return domain.Invoice{}, fmt.Errorf("save invoice: %w", err)
	}
	w.state = next
	return *next.Invoice, nil
}

type SummaryLine struct {
	ItemID      string          `json:"item_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type Summary struct {
	Step           Step             `json:"step"`
	Customer       *domain.Customer `json:"customer,omitempty"`
	Lines          []SummaryLine    `json:"lines"`
	ItemCount      int              `json:"item_count"`
	Remarks        string           `json:"remarks"`
	RemarksLength  int              `json:"remarks_length"`
	RemarksLimit   int              `json:"remarks_limit"`
	Currency       string           `json:"currency"`
	TaxRatePercent decimal.Decimal  `json:"tax_rate_percent"`
	Subtotal       decimal.Decimal  `json:"subtotal"`
	Tax            decimal.Decimal  `json:"tax"`
	Total          decimal.Decimal  `json:"total"`
	DisplayTotal   string           `json:"display_total"`
	CanContinue    bool             `json:"can_continue"`
	Invoice        *domain.Invoice  `json:"invoice,omitempty"`
	QuickRemarks   []string         `json:"quick_remarks,omitempty"`
}

// Summary is the view of the draft for the current step. Before product
// selection is left the live selection is shown; afterwards the snapshot.
func (w *Wizard) Summary() Summary {
	s := w.state
	lines := s.Lines
	if s.Step == StepCustomerSelection || s.Step == StepProductSelection {
		lines = s.Selection.Lines()
	}

	computed := totals.Compute(lines)
	summary := Summary{
		Step:           s.Step,
		Lines:          make([]SummaryLine, 0, len(lines)),
		Remarks:        s.Remarks,
		RemarksLength:  utf8.RuneCountInString(s.Remarks),
		RemarksLimit:   RemarksLimit,
		Currency:       domain.Currency,
		TaxRatePercent: totals.RatePercent(),
		Subtotal:       computed.Subtotal,
		Tax:            computed.Tax,
		Total:          computed.Total,
		DisplayTotal:   totals.Format(computed.Total, domain.Currency),
		CanContinue:    canContinue(s),
	}
	if s.Customer != nil {
		customer := *s.Customer
		summary.Customer = &customer
	}
	for _, entry := range lines {
		summary.ItemCount += entry.Quantity
		summary.Lines = append(summary.Lines, SummaryLine{
			ItemID:      entry.ItemID,
			Name:        entry.Name,
			Description: entry.Description,
			Quantity:    entry.Quantity,
			UnitPrice:   entry.UnitPrice,
			LineTotal:   totals.LineTotal(entry),
		})
	}
	if s.Invoice != nil {
		invoice := *s.Invoice
		summary.Invoice = &invoice
	}
	if s.Step == StepRemarks {
		summary.QuickRemarks = QuickRemarks()
	}
	return summary
}

func canContinue(s State) bool {
	switch s.Step {
	case StepCustomerSelection:
		return s.Customer != nil
	case StepProductSelection:
		return s.Customer != nil && s.Selection.Len() > 0
	case StepRemarks:
		return len(s.Lines) > 0
	}
	return false
}
