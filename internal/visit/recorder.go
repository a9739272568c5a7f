// Package visit records geolocated customer visits per sales rep.
package visit

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"fieldsales/backend/internal/domain"
	"fieldsales/backend/internal/store"
	"fieldsales/backend/internal/xid"
)

const DefaultLocateTimeout = 10 * time.Second

var (
	ErrVisitNotFound = errors.New("visit not found")
	ErrVisitClosed   = errors.New("visit is no longer in progress")
)

type Option func(*Recorder)

func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(r *Recorder) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// writeLocks holds one mutex per sales rep. Visit updates rewrite the whole
// history, so every write for a rep goes through that rep's mutex no matter
// which Recorder instance issues it.
var writeLocks sync.Map

func lockOwner(owner string) func() {
	mu, _ := writeLocks.LoadOrStore(owner, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// Recorder keeps one sales rep's visit history and current visit.
type Recorder struct {
	kv      store.KV
	owner   string
	timeout time.Duration
	now     func() time.Time
}

func NewRecorder(kv store.KV, owner string, opts ...Option) *Recorder {
	r := &Recorder{
		kv:      kv,
		owner:   owner,
		timeout: DefaultLocateTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Locate asks locator for a position, giving up after the recorder timeout.
// A missing address is filled from the coordinates.
func (r *Recorder) Locate(ctx context.Context, locator Locator) (domain.Location, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type result struct {
		loc domain.Location
		err error
	}
	done := make(chan result, 1)
	go func() {
		loc, err := locator.Locate(ctx)
		done <- result{loc: loc, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	if errors.Is(res.err, context.DeadlineExceeded) {
		return domain.Location{}, ErrLocationTimeout
	}
	if res.err != nil {
		return domain.Location{}, res.err
	}
	if err := Validate(res.loc); err != nil {
		return domain.Location{}, err
	}
	if strings.TrimSpace(res.loc.Address) == "" {
		res.loc.Address = ReverseGeocode(res.loc.Latitude, res.loc.Longitude)
	}
	return res.loc, nil
}

// StartVisit opens a visit at loc. A visit still in progress is cancelled
// first so at most one visit is open per sales rep.
func (r *Recorder) StartVisit(ctx context.Context, loc domain.Location) (domain.Visit, error) {
	if err := Validate(loc); err != nil {
		return domain.Visit{}, err
	}

	unlock := lockOwner(r.owner)
	defer unlock()

	if current, ok, err := r.CurrentVisit(ctx); err != nil {
		return domain.Visit{}, err
	} else if ok {
		if _, err := r.close(ctx, current.ID, domain.VisitCancelled); err != nil {
			return domain.Visit{}, fmt.Errorf("close previous visit: %w", err)
		}
	}

	visit := domain.Visit{
		ID:        xid.New(""),
		StartTime: r.now().UTC(),
		Location:  loc,
		Status:    domain.VisitInProgress,
	}
	if err := store.AppendRecord(ctx, r.kv, r.key(store.KeyVisitHistory), visit); err != nil {
		return domain.Visit{}, err
	}
	if err := store.SetRecord(ctx, r.kv, r.key(store.KeyCurrentVisit), visit); err != nil {
		return domain.Visit{}, err
	}
	return visit, nil
}

func (r *Recorder) CurrentVisit(ctx context.Context) (domain.Visit, bool, error) {
	visit, ok, err := store.LoadRecord[domain.Visit](ctx, r.kv, r.key(store.KeyCurrentVisit))
	if err != nil || !ok || visit.Status != domain.VisitInProgress {
		return domain.Visit{}, false, err
	}
	return visit, true, nil
}

// LinkInvoice records which customer and invoice a visit produced.
func (r *Recorder) LinkInvoice(ctx context.Context, visitID string, customer domain.Customer, invoiceNumber string) (domain.Visit, error) {
	unlock := lockOwner(r.owner)
	defer unlock()

	return r.update(ctx, visitID, func(v *domain.Visit) error {
		v.CustomerID = customer.ID
		v.CustomerName = customer.Name
		v.InvoiceNumber = invoiceNumber
		return nil
	})
}

func (r *Recorder) Complete(ctx context.Context, visitID string) (domain.Visit, error) {
	unlock := lockOwner(r.owner)
	defer unlock()

	return r.close(ctx, visitID, domain.VisitCompleted)
}

func (r *Recorder) Cancel(ctx context.Context, visitID string) (domain.Visit, error) {
	unlock := lockOwner(r.owner)
	defer unlock()

	return r.close(ctx, visitID, domain.VisitCancelled)
}

// Get looks a visit up in the history by id.
func (r *Recorder) Get(ctx context.Context, visitID string) (domain.Visit, error) {
	history, err := store.LoadList[domain.Visit](ctx, r.kv, r.key(store.KeyVisitHistory))
	if err != nil {
		return domain.Visit{}, err
	}
	for _, v := range history {
		if v.ID == visitID {
			return v, nil
		}
	}
	return domain.Visit{}, ErrVisitNotFound
}

// History lists visits newest first, narrowed by customer name or address
// and by status.
func (r *Recorder) History(ctx context.Context, filter domain.VisitFilter) ([]domain.Visit, error) {
	history, err := store.LoadList[domain.Visit](ctx, r.kv, r.key(store.KeyVisitHistory))
	if err != nil {
		return nil, err
	}
	slices.Reverse(history)

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	return slices.DeleteFunc(history, func(v domain.Visit) bool {
		if filter.Status != "" && v.Status != filter.Status {
			return true
		}
		if query == "" {
			return false
		}
		return !strings.Contains(strings.ToLower(v.CustomerName), query) &&
			!strings.Contains(strings.ToLower(v.Location.Address), query)
	}), nil
}

func (r *Recorder) close(ctx context.Context, visitID string, status domain.VisitStatus) (domain.Visit, error) {
	end := r.now().UTC()
	return r.update(ctx, visitID, func(v *domain.Visit) error {
		if v.Status != domain.VisitInProgress {
			return ErrVisitClosed
		}
		v.Status = status
		v.EndTime = &end
		return nil
	})
}

// update rewrites the history entry for visitID and mirrors the change into
// the current visit record when it is the same visit. Callers hold the
// owner's write lock.
func (r *Recorder) update(ctx context.Context, visitID string, mutate func(*domain.Visit) error) (domain.Visit, error) {
	historyKey := r.key(store.KeyVisitHistory)
	history, err := store.LoadList[domain.Visit](ctx, r.kv, historyKey)
	if err != nil {
		return domain.Visit{}, err
	}
	idx := slices.IndexFunc(history, func(v domain.Visit) bool { return v.ID == visitID })
	if idx < 0 {
		return domain.Visit{}, ErrVisitNotFound
	}
	if err := mutate(&history[idx]); err != nil {
		return domain.Visit{}, err
	}
	if err := store.SetRecord(ctx, r.kv, historyKey, history); err != nil {
		return domain.Visit{}, err
	}

	updated := history[idx]
	currentKey := r.key(store.KeyCurrentVisit)
	current, ok, err := store.LoadRecord[domain.Visit](ctx, r.kv, currentKey)
	if err != nil {
		return domain.Visit{}, err
	}
	if ok && current.ID == visitID {
		if err := store.SetRecord(ctx, r.kv, currentKey, updated); err != nil {
			return domain.Visit{}, err
		}
	}
	return updated, nil
}

func (r *Recorder) key(name string) string {
	return store.Key(r.owner, name)
}

// Duration renders how long a visit lasted: "1h 5m", "40m", or "Ongoing"
// while it has no end time.
func Duration(v domain.Visit) string {
	if v.EndTime == nil {
		return "Ongoing"
	}
	elapsed := v.EndTime.Sub(v.StartTime)
	if elapsed < 0 {
		elapsed = 0
	}
	hours := int(elapsed / time.Hour)
	minutes := int((elapsed % time.Hour) / time.Minute)
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

func View(v domain.Visit) domain.VisitView {
	return domain.VisitView{Visit: v, Duration: Duration(v)}
}
