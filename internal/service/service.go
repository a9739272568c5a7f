package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"fieldsales/backend/internal/catalog"
	"fieldsales/backend/internal/customer"
	"fieldsales/backend/internal/domain"
	"fieldsales/backend/internal/report"
	"fieldsales/backend/internal/store"
	"fieldsales/backend/internal/visit"
	"fieldsales/backend/internal/wizard"
)

var ErrActorRequired = errors.New("authenticated sales rep required")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithLocateTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		s.locateTimeout = timeout
	}
}

// WithNumbers overrides how invoice numbers are drawn for an owner.
func WithNumbers(factory func(owner string) wizard.NumberGenerator) Option {
	return func(s *Service) {
		s.numbers = factory
	}
}

type Service struct {
	kv            store.KV
	catalog       catalog.Provider
	customers     *customer.Directory
	reports       *report.Engine
	logger        *zap.Logger
	locateTimeout time.Duration
	now           func() time.Time
	numbers       func(owner string) wizard.NumberGenerator

	mu       sync.Mutex
	sessions map[string]*session
}

// session serializes one sales rep's wizard.
type session struct {
	mu     sync.Mutex
	wizard *wizard.Wizard
}

func New(kv store.KV, provider catalog.Provider, reports *report.Engine, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reports == nil {
		reports = report.NewEngine(nil, 0)
	}

	s := &Service{
		kv:            kv,
		catalog:       provider,
		customers:     customer.NewDirectory(kv, customer.Seeds()),
		reports:       reports,
		logger:        logger.Named("service"),
		locateTimeout: visit.DefaultLocateTimeout,
		now:           time.Now,
		sessions:      make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.numbers == nil {
		s.numbers = func(owner string) wizard.NumberGenerator {
			return wizard.NewRandomNumbers(func(ctx context.Context, number string) (bool, error) {
				_, err := s.findInvoice(ctx, owner, number)
				if errors.Is(err, ErrInvoiceNotFound) {
					return false, nil
				}
				return err == nil, err
			})
		}
	}
	return s
}

func (s *Service) owner(ctx context.Context) (string, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Username == "" {
		return "", ErrActorRequired
	}
	return actor.Username, nil
}

func (s *Service) recorder(owner string) *visit.Recorder {
	return visit.NewRecorder(s.kv, owner, visit.WithClock(s.now), visit.WithTimeout(s.locateTimeout))
}

func (s *Service) Catalog(ctx context.Context, filter catalog.Filter) (domain.CatalogPage, error) {
	items, err := s.catalog.List(ctx)
	if err != nil {
		return domain.CatalogPage{}, err
	}
	return domain.CatalogPage{
		Items:      catalog.Apply(items, filter),
		Categories: catalog.Categories(items),
	}, nil
}

func (s *Service) SearchCustomers(ctx context.Context, query string) ([]domain.Customer, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	return s.customers.Search(ctx, owner, query)
}

func (s *Service) AddCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return domain.Customer{}, err
	}
	created, err := s.customers.Add(ctx, owner, req)
	if err != nil {
		return domain.Customer{}, err
	}
	s.logger.Info("customer added", zap.String("owner", owner), zap.String("customer_id", created.ID))
	return created, nil
}
