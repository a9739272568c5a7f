package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"fieldsales/backend/internal/domain"
	"fieldsales/backend/internal/store"
	"fieldsales/backend/internal/wizard"
)

// invoiceSink keeps an owner's invoices most recent first.
type invoiceSink struct {
	kv    store.KV
	owner string
}

func (s invoiceSink) SaveInvoice(ctx context.Context, invoice domain.Invoice) error {
	return store.PrependRecord(ctx, s.kv, store.Key(s.owner, store.KeyInvoices), invoice)
}

func (s *Service) session(owner string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[owner]
	if !ok {
		sess = &session{
			wizard: wizard.New(s.numbers(owner), invoiceSink{kv: s.kv, owner: owner}, wizard.WithClock(s.now)),
		}
		s.sessions[owner] = sess
	}
	return sess
}

// withWizard runs fn against the caller's wizard while holding its session.
func (s *Service) withWizard(ctx context.Context, fn func(owner string, w *wizard.Wizard) error) (wizard.Summary, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return wizard.Summary{}, err
	}
	sess := s.session(owner)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := fn(owner, sess.wizard); err != nil {
		return sess.wizard.Summary(), err
	}
	return sess.wizard.Summary(), nil
}

func (s *Service) WizardSummary(ctx context.Context) (wizard.Summary, error) {
	return s.withWizard(ctx, func(string, *wizard.Wizard) error { return nil })
}

// ApplyWizard feeds an event that needs no lookups to the caller's wizard.
func (s *Service) ApplyWizard(ctx context.Context, ev wizard.Event) (wizard.Summary, error) {
	return s.withWizard(ctx, func(_ string, w *wizard.Wizard) error {
		return w.Apply(ev)
	})
}

func (s *Service) SelectCustomer(ctx context.Context, customerID string) (wizard.Summary, error) {
	return s.withWizard(ctx, func(owner string, w *wizard.Wizard) error {
		selected, err := s.customers.Get(ctx, owner, customerID)
		if err != nil {
			return err
		}
		return w.Apply(wizard.SelectCustomer{Customer: selected})
	})
}

func (s *Service) SetQuantity(ctx context.Context, itemID string, qty int) (wizard.Summary, error) {
	return s.withWizard(ctx, func(_ string, w *wizard.Wizard) error {
		item, err := s.catalog.Get(ctx, itemID)
		if err != nil {
			return err
		}
		return w.Apply(wizard.SetQuantity{Item: item, Quantity: qty})
	})
}

// CommitInvoice stores the reviewed invoice and links it to the visit in
// progress, if any.
func (s *Service) CommitInvoice(ctx context.Context) (domain.Invoice, error) {
	var committed domain.Invoice
	_, err := s.withWizard(ctx, func(owner string, w *wizard.Wizard) error {
		recorder := s.recorder(owner)
		current, hasVisit, err := recorder.CurrentVisit(ctx)
		if err != nil {
			return fmt.Errorf("load current visit: %w", err)
		}
		visitID := ""
		if hasVisit {
			visitID = current.ID
		}

		committed, err = w.Commit(ctx, owner, visitID)
		if err != nil {
			return err
		}

		if hasVisit {
			if _, err := recorder.LinkInvoice(ctx, visitID, committed.Customer, committed.Number); err != nil {
				s.logger.Warn("failed to link invoice to visit",
					zap.String("owner", owner),
					zap.String("visit_id", visitID),
					zap.String("invoice", committed.Number),
					zap.Error(err))
			}
		}
		s.logger.Info("invoice committed",
			zap.String("owner", owner),
			zap.String("invoice", committed.Number),
			zap.String("total", committed.Total.StringFixed(2)),
			zap.Bool("visit_linked", hasVisit))
		return nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	return committed, nil
}
