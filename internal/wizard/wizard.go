// Package wizard sequences invoice assembly through customer selection,
// product selection, remarks and review before committing an invoice.
package wizard

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"fieldsales/backend/internal/domain"
	"fieldsales/backend/internal/selection"
	"fieldsales/backend/internal/totals"
)

// RemarksLimit caps remarks length, counted in characters.
const RemarksLimit = 500

// PaymentTerm is the gap between issue and due dates.
const PaymentTerm = 30 * 24 * time.Hour

var (
	ErrCustomerRequired = errors.New("a customer must be selected")
	ErrNoLines          = errors.New("at least one product must be selected")
	ErrStepMismatch     = errors.New("action is not available at this step")
	ErrNoPreviousStep   = errors.New("already at the first step")
	ErrCommitted        = errors.New("invoice already committed; reset to start a new one")
	ErrRemarksTooLong   = errors.New("remarks exceed 500 characters")
	ErrRemarksOverflow  = errors.New("quick remark would exceed 500 characters")
	ErrNotReviewing     = errors.New("invoice can only be confirmed from review")
)

type Step string

const (
	StepCustomerSelection Step = "customer-selection"
	StepProductSelection  Step = "product-selection"
	StepRemarks           Step = "remarks"
	StepReview            Step = "review"
	StepCommitted         Step = "committed"
)

// State is the draft invoice plus the step it is on. Lines is the snapshot
// taken when leaving product selection; Selection is the live working set.
type State struct {
	Step            Step
	Customer        *domain.Customer
	Selection       *selection.Set
	Lines           []domain.SelectionEntry
	Remarks         string
	RemarksResolved bool
	Invoice         *domain.Invoice
}

func Initial() State {
	return State{Step: StepCustomerSelection, Selection: selection.New()}
}

// Event is one user action fed to Reduce.
type Event interface {
	event()
}

type SelectCustomer struct {
	Customer domain.Customer
}

type SetQuantity struct {
	Item     domain.CatalogItem
	Quantity int
}

type SetUnitPrice struct {
	ItemID string
	Input  string
}

type SetRemarks struct {
	Text string
}

type QuickRemark struct {
	Phrase string
}

type Continue struct{}

type Back struct{}

type Confirm struct {
	InvoiceID string
	Number    string
	IssuedAt  time.Time
	SalesRep  string
	VisitID   string
}

type Reset struct{}

func (SelectCustomer) event() {}
func (SetQuantity) event()    {}
func (SetUnitPrice) event()   {}
func (SetRemarks) event()     {}
func (QuickRemark) event()    {}
func (Continue) event()       {}
func (Back) event()           {}
func (Confirm) event()        {}
func (Reset) event()          {}

// Reduce applies event to state. The input state is never mutated; on error
// the returned state equals the input.
func Reduce(state State, ev Event) (State, error) {
	if _, ok := ev.(Reset); ok {
		return Initial(), nil
	}
	if state.Step == StepCommitted {
		return state, ErrCommitted
	}

	next := state.clone()
	switch e := ev.(type) {
	case SelectCustomer:
		if next.Step != StepCustomerSelection {
			return state, ErrStepMismatch
		}
		if strings.TrimSpace(e.Customer.ID) == "" {
			return state, ErrCustomerRequired
		}
		customer := e.Customer
		next.Customer = &customer

	case SetQuantity:
		if next.Step != StepProductSelection {
			return state, ErrStepMismatch
		}
		if err := next.Selection.SetQuantity(e.Item, e.Quantity); err != nil {
			return state, err
		}

	case SetUnitPrice:
		if next.Step != StepProductSelection {
			return state, ErrStepMismatch
		}
		if err := next.Selection.SetUnitPrice(e.ItemID, e.Input); err != nil {
			return state, err
		}

	case SetRemarks:
		if next.Step != StepRemarks {
			return state, ErrStepMismatch
		}
		if utf8.RuneCountInString(e.Text) > RemarksLimit {
			return state, ErrRemarksTooLong
		}
		next.Remarks = e.Text

	case QuickRemark:
		if next.Step != StepRemarks {
			return state, ErrStepMismatch
		}
		phrase := strings.TrimSpace(e.Phrase)
		if phrase == "" {
			return state, nil
		}
		joined := phrase
		if next.Remarks != "" {
			joined = next.Remarks + "\n" + phrase
		}
		if utf8.RuneCountInString(joined) > RemarksLimit {
			return state, ErrRemarksOverflow
		}
		next.Remarks = joined

	case Continue:
		if err := next.advance(); err != nil {
			return state, err
		}

	case Back:
		switch next.Step {
		case StepCustomerSelection:
			return state, ErrNoPreviousStep
		case StepProductSelection:
			next.Step = StepCustomerSelection
		case StepRemarks:
			next.Step = StepProductSelection
		case StepReview:
			next.Step = StepRemarks
			next.RemarksResolved = false
		}

	case Confirm:
		if next.Step != StepReview {
			return state, ErrNotReviewing
		}
		if next.Customer == nil {
			return state, ErrCustomerRequired
		}
		if len(next.Lines) == 0 {
			return state, ErrNoLines
		}
		invoice := buildInvoice(next, e)
		next.Invoice = &invoice
		next.Step = StepCommitted

	default:
		return state, ErrStepMismatch
	}
	return next, nil
}

func (s *State) advance() error {
	switch s.Step {
	case StepCustomerSelection:
		if s.Customer == nil {
			return ErrCustomerRequired
		}
		s.Step = StepProductSelection
	case StepProductSelection:
		if s.Customer == nil {
			return ErrCustomerRequired
		}
		if s.Selection.Len() == 0 {
			return ErrNoLines
		}
		s.Lines = s.Selection.Lines()
		s.Step = StepRemarks
	case StepRemarks:
		if len(s.Lines) == 0 {
			return ErrNoLines
		}
		s.Remarks = strings.TrimSpace(s.Remarks)
		s.RemarksResolved = true
		s.Step = StepReview
	default:
		return ErrStepMismatch
	}
	return nil
}

func (s State) clone() State {
	next := s
	if s.Customer != nil {
		customer := *s.Customer
		next.Customer = &customer
	}
	if s.Selection != nil {
		next.Selection = s.Selection.Clone()
	} else {
		next.Selection = selection.New()
	}
	if s.Lines != nil {
		next.Lines = append([]domain.SelectionEntry(nil), s.Lines...)
	}
	if s.Invoice != nil {
		invoice := *s.Invoice
		next.Invoice = &invoice
	}
	return next
}

func buildInvoice(s State, e Confirm) domain.Invoice {
	computed := totals.Compute(s.Lines)
	lines := make([]domain.InvoiceLine, 0, len(s.Lines))
	for _, entry := range s.Lines {
		lines = append(lines, domain.InvoiceLine{
			ItemID:      entry.ItemID,
			Name:        entry.Name,
			Description: entry.Description,
			Quantity:    entry.Quantity,
			UnitPrice:   entry.UnitPrice,
			LineTotal:   totals.LineTotal(entry),
		})
	}

	issued := e.IssuedAt.UTC()
	return domain.Invoice{
		ID:             e.InvoiceID,
		Number:         e.Number,
		Customer:       *s.Customer,
		SalesRep:       e.SalesRep,
		Lines:          lines,
		Remarks:        s.Remarks,
		Currency:       domain.Currency,
		Subtotal:       computed.Subtotal,
		Tax:            computed.Tax,
		Total:          computed.Total,
		TaxRatePercent: totals.RatePercent(),
		IssuedAt:       issued,
		DueAt:          issued.Add(PaymentTerm),
		Status:         domain.InvoicePending,
		VisitID:        e.VisitID,
	}
}
