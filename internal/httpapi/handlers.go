package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"fieldsales/backend/internal/catalog"
	"fieldsales/backend/internal/domain"
	"fieldsales/backend/internal/wizard"
)

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSalesReps(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"reps": a.auth.ListSalesReps(r.Context())})
	case http.MethodPost:
		var req domain.SalesRepCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		rep, err := a.auth.CreateSalesRep(r.Context(), req)
		if err != nil {
			a.fail(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{"rep": rep})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	query := r.URL.Query()
	page, err := a.service.Catalog(r.Context(), catalog.Filter{
		Query:     query.Get("q"),
		Category:  query.Get("category"),
		PriceBand: catalog.PriceBand(query.Get("price")),
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) handleCustomers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		customers, err := a.service.SearchCustomers(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			a.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
	case http.MethodPost:
		var req domain.CustomerCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		created, err := a.service.AddCustomer(r.Context(), req)
		if err != nil {
			a.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"customer": created})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleWizard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	summary, err := a.service.WizardSummary(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type wizardRequest struct {
	CustomerID string `json:"customer_id,omitempty"`
	ItemID     string `json:"item_id,omitempty"`
	Quantity   *int   `json:"quantity,omitempty"`
	UnitPrice  string `json:"unit_price,omitempty"`
	Text       string `json:"text,omitempty"`
	Phrase     string `json:"phrase,omitempty"`
}

// wizardResponse is the wizard summary plus a notice for a dropped quick
// remark; the remarks and counter are the ones kept before the drop.
type wizardResponse struct {
	wizard.Summary
	Notice string `json:"notice,omitempty"`
}

// bodylessWizardActions need no request body.
var bodylessWizardActions = map[string]wizard.Event{
	"continue": wizard.Continue{},
	"back":     wizard.Back{},
	"reset":    wizard.Reset{},
}

func (a *API) handleWizardAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	action := strings.TrimSpace(r.PathValue("action"))
	ctx := r.Context()

	if action == "commit" {
		invoice, err := a.service.CommitInvoice(ctx)
		if err != nil {
			a.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"invoice": invoice})
		return
	}

	var (
		summary wizard.Summary
		err     error
	)
	if ev, ok := bodylessWizardActions[action]; ok {
		summary, err = a.service.ApplyWizard(ctx, ev)
	} else {
		var req wizardRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		switch action {
		case "customer":
			summary, err = a.service.SelectCustomer(ctx, req.CustomerID)
		case "quantity":
			if req.Quantity == nil {
				writeError(w, http.StatusBadRequest, errors.New("quantity required"))
				return
			}
			summary, err = a.service.SetQuantity(ctx, req.ItemID, *req.Quantity)
		case "price":
			summary, err = a.service.ApplyWizard(ctx, wizard.SetUnitPrice{ItemID: req.ItemID, Input: req.UnitPrice})
		case "remarks":
			summary, err = a.service.ApplyWizard(ctx, wizard.SetRemarks{Text: req.Text})
		case "quick-remark":
			summary, err = a.service.ApplyWizard(ctx, wizard.QuickRemark{Phrase: req.Phrase})
		default:
			writeError(w, http.StatusNotFound, errors.New("unknown wizard action"))
			return
		}
	}
	if errors.Is(err, wizard.ErrRemarksOverflow) {
		writeJSON(w, http.StatusOK, wizardResponse{Summary: summary, Notice: err.Error()})
		return
	}
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleVisitStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.VisitStartRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	started, err := a.service.StartVisit(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"visit": started})
}

func (a *API) handleVisitCurrent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	current, err := a.service.CurrentVisit(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"visit": current})
}

func (a *API) handleVisits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	query := r.URL.Query()
	visits, err := a.service.ListVisits(r.Context(), domain.VisitFilter{
		Query:  query.Get("q"),
		Status: domain.VisitStatus(query.Get("status")),
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"visits": visits})
}

func (a *API) handleVisitAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	visitID := strings.TrimSpace(r.PathValue("id"))
	var (
		view domain.VisitView
		err  error
	)
	switch r.PathValue("action") {
	case "complete":
		view, err = a.service.CompleteVisit(r.Context(), visitID)
	case "cancel":
		view, err = a.service.CancelVisit(r.Context(), visitID)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown visit action"))
		return
	}
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"visit": view})
}

func (a *API) handleInvoices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	query := r.URL.Query()
	invoices, err := a.service.ListInvoices(r.Context(), domain.InvoiceFilter{
		Query:  query.Get("q"),
		Status: domain.InvoiceStatus(query.Get("status")),
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func (a *API) handleInvoiceReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	view, err := a.service.InvoiceReport(r.Context(), r.PathValue("number"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleInvoiceShare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	msg, err := a.service.ShareInvoice(r.Context(), r.PathValue("number"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (a *API) handleReportSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	summary, err := a.service.ReportSummary(r.Context(), r.URL.Query().Get("period"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
