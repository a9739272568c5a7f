package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"fieldsales/backend/internal/catalog"
	"fieldsales/backend/internal/customer"
	"fieldsales/backend/internal/domain"
	"fieldsales/backend/internal/report"
	"fieldsales/backend/internal/selection"
	"fieldsales/backend/internal/service"
	"fieldsales/backend/internal/store"
	"fieldsales/backend/internal/visit"
	"fieldsales/backend/internal/wizard"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	logger        *zap.Logger
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		logger:        logger.Named("http"),
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/users/reps", a.requireAuth(a.handleSalesReps, domain.RoleAdmin))

	mux.HandleFunc("/api/v1/catalog", a.requireAuth(a.handleCatalog, domain.RoleSalesRep, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/customers", a.requireAuth(a.handleCustomers, domain.RoleSalesRep, domain.RoleAdmin))

	mux.HandleFunc("/api/v1/wizard", a.requireAuth(a.handleWizard, domain.RoleSalesRep, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/wizard/{action}", a.requireAuth(a.handleWizardAction, domain.RoleSalesRep, domain.RoleAdmin))

	mux.HandleFunc("/api/v1/visits", a.requireAuth(a.handleVisits, domain.RoleSalesRep, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/visits/start", a.requireAuth(a.handleVisitStart, domain.RoleSalesRep, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/visits/current", a.requireAuth(a.handleVisitCurrent, domain.RoleSalesRep, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/visits/{id}/{action}", a.requireAuth(a.handleVisitAction, domain.RoleSalesRep, domain.RoleAdmin))

	mux.HandleFunc("/api/v1/invoices", a.requireAuth(a.handleInvoices, domain.RoleSalesRep, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/invoices/{number}", a.requireAuth(a.handleInvoiceReport, domain.RoleSalesRep, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/invoices/{number}/share", a.requireAuth(a.handleInvoiceShare, domain.RoleSalesRep, domain.RoleAdmin))

	mux.HandleFunc("/api/v1/reports/summary", a.requireAuth(a.handleReportSummary, domain.RoleSalesRep, domain.RoleAdmin))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(startedAt)))
	})
}

// fail maps a domain error to its HTTP status and writes it.
func (a *API) fail(w http.ResponseWriter, err error) {
	var invalid *customer.ValidationError
	if errors.As(err, &invalid) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": invalid.Fields,
		})
		return
	}

	if isCapabilityError(err) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": err.Error(),
			"kind":  "capability",
		})
		return
	}

	status := statusFor(err)
	if status >= 500 {
		a.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeError(w, status, err)
}

func isCapabilityError(err error) bool {
	return errors.Is(err, visit.ErrLocationUnsupported) ||
		errors.Is(err, visit.ErrLocationDenied) ||
		errors.Is(err, visit.ErrLocationTimeout)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrActorRequired):
		return http.StatusUnauthorized
	case errors.Is(err, customer.ErrCustomerNotFound),
		errors.Is(err, catalog.ErrItemNotFound),
		errors.Is(err, service.ErrInvoiceNotFound),
		errors.Is(err, visit.ErrVisitNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, wizard.ErrStepMismatch),
		errors.Is(err, wizard.ErrNoPreviousStep),
		errors.Is(err, wizard.ErrCommitted),
		errors.Is(err, wizard.ErrNotReviewing),
		errors.Is(err, visit.ErrVisitClosed),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, ErrAccountExists):
		return http.StatusConflict
	case errors.Is(err, wizard.ErrCustomerRequired),
		errors.Is(err, wizard.ErrNoLines),
		errors.Is(err, wizard.ErrRemarksTooLong),
		errors.Is(err, wizard.ErrRemarksOverflow),
		errors.Is(err, selection.ErrInvalidPrice),
		errors.Is(err, selection.ErrNotSelected),
		errors.Is(err, selection.ErrOutOfStock):
		return http.StatusUnprocessableEntity
	case errors.Is(err, visit.ErrInvalidLocation),
		errors.Is(err, report.ErrUnknownPeriod),
		errors.Is(err, ErrInvalidAccount):
		return http.StatusBadRequest
	case errors.Is(err, wizard.ErrNumberSpaceExhausted):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies never carry the underlying error text.
	msg := err.Error()
	if status >= 500 {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
