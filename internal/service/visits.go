package service

import (
	"context"

	"go.uber.org/zap"

	"fieldsales/backend/internal/domain"
	"fieldsales/backend/internal/report"
	"fieldsales/backend/internal/store"
	"fieldsales/backend/internal/visit"
)

// StartVisit resolves the device position and opens a visit there.
func (s *Service) StartVisit(ctx context.Context, req domain.VisitStartRequest) (domain.VisitView, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return domain.VisitView{}, err
	}
	recorder := s.recorder(owner)

	loc, err := recorder.Locate(ctx, visit.FromRequest(req))
	if err != nil {
		s.logger.Info("visit location unavailable", zap.String("owner", owner), zap.Error(err))
		return domain.VisitView{}, err
	}
	started, err := recorder.StartVisit(ctx, loc)
	if err != nil {
		return domain.VisitView{}, err
	}
	s.logger.Info("visit started", zap.String("owner", owner), zap.String("visit_id", started.ID), zap.String("address", loc.Address))
	return visit.View(started), nil
}

func (s *Service) CurrentVisit(ctx context.Context) (*domain.VisitView, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	current, ok, err := s.recorder(owner).CurrentVisit(ctx)
	if err != nil || !ok {
		return nil, err
	}
	view := visit.View(current)
	return &view, nil
}

func (s *Service) ListVisits(ctx context.Context, filter domain.VisitFilter) ([]domain.VisitView, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	history, err := s.recorder(owner).History(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]domain.VisitView, 0, len(history))
	for _, v := range history {
		views = append(views, visit.View(v))
	}
	return views, nil
}

func (s *Service) CompleteVisit(ctx context.Context, visitID string) (domain.VisitView, error) {
	return s.closeVisit(ctx, visitID, (*visit.Recorder).Complete)
}

func (s *Service) CancelVisit(ctx context.Context, visitID string) (domain.VisitView, error) {
	return s.closeVisit(ctx, visitID, (*visit.Recorder).Cancel)
}

func (s *Service) closeVisit(ctx context.Context, visitID string, closeFn func(*visit.Recorder, context.Context, string) (domain.Visit, error)) (domain.VisitView, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return domain.VisitView{}, err
	}
	closed, err := closeFn(s.recorder(owner), ctx, visitID)
	if err != nil {
		return domain.VisitView{}, err
	}
	s.logger.Info("visit closed", zap.String("owner", owner), zap.String("visit_id", closed.ID), zap.String("status", string(closed.Status)))
	return visit.View(closed), nil
}

func (s *Service) ReportSummary(ctx context.Context, rawPeriod string) (domain.ReportSummary, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return domain.ReportSummary{}, err
	}
	period, err := report.ParsePeriod(rawPeriod)
	if err != nil {
		return domain.ReportSummary{}, err
	}

	invoices, err := s.invoices(ctx, owner)
	if err != nil {
		return domain.ReportSummary{}, err
	}
	visits, err := store.LoadList[domain.Visit](ctx, s.kv, store.Key(owner, store.KeyVisitHistory))
	if err != nil {
		return domain.ReportSummary{}, err
	}
	return s.reports.Summarize(ctx, report.Input{
		Owner:    owner,
		Period:   period,
		Now:      s.now(),
		Invoices: invoices,
		Visits:   visits,
	})
}
