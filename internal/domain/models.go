package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency is the single fixed currency every price and total is expressed in.
const Currency = "SAR"

type CatalogItem struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Currency     string          `json:"currency"`
	Category     string          `json:"category"`
	InStock      bool            `json:"in_stock"`
	RecentlyUsed bool            `json:"recently_used"`
}

type CatalogPage struct {
	Items      []CatalogItem `json:"items"`
	Categories []string      `json:"categories"`
}

type CustomerStatus string

const (
	CustomerVisited CustomerStatus = "visited"
	CustomerPending CustomerStatus = "pending"
	CustomerOverdue CustomerStatus = "overdue"
)

type Customer struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Phone      string          `json:"phone"`
	Email      string          `json:"email,omitempty"`
	Address    string          `json:"address"`
	Notes      string          `json:"notes,omitempty"`
	Status     CustomerStatus  `json:"status"`
	TotalSales decimal.Decimal `json:"total_sales"`
	CreatedAt  time.Time       `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address"`
	Notes   string `json:"notes,omitempty"`
}

// SelectionEntry is one chosen catalog item. Quantity is always >= 1; an
// entry whose quantity drops to zero is removed instead of kept.
type SelectionEntry struct {
	ItemID      string          `json:"item_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Currency    string          `json:"currency"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "pending"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceOverdue InvoiceStatus = "overdue"
)

type InvoiceLine struct {
	ItemID      string          `json:"item_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type Invoice struct {
	ID             string          `json:"id"`
	Number         string          `json:"number"`
	Customer       Customer        `json:"customer"`
	SalesRep       string          `json:"sales_rep"`
	Lines          []InvoiceLine   `json:"lines"`
	Remarks        string          `json:"remarks,omitempty"`
	Currency       string          `json:"currency"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
	TaxRatePercent decimal.Decimal `json:"tax_rate_percent"`
	IssuedAt       time.Time       `json:"issued_at"`
	DueAt          time.Time       `json:"due_at"`
	Status         InvoiceStatus   `json:"status"`
	VisitID        string          `json:"visit_id,omitempty"`
}

// ItemCount is the number of units across all lines.
func (i Invoice) ItemCount() int {
	count := 0
	for _, line := range i.Lines {
		count += line.Quantity
	}
	return count
}

// EffectiveStatus reports overdue for a pending invoice past its due date.
func (i Invoice) EffectiveStatus(now time.Time) InvoiceStatus {
	if i.Status == InvoicePending && now.After(i.DueAt) {
		return InvoiceOverdue
	}
	return i.Status
}

type InvoiceFilter struct {
	Query  string
	Status InvoiceStatus
}

type InvoiceSummary struct {
	Number       string          `json:"number"`
	CustomerName string          `json:"customer_name"`
	Total        decimal.Decimal `json:"total"`
	Display      string          `json:"display_total"`
	IssuedAt     time.Time       `json:"issued_at"`
	Status       InvoiceStatus   `json:"status"`
	Items        int             `json:"items"`
}

type InvoiceReport struct {
	Invoice      Invoice `json:"invoice"`
	Visit        *Visit  `json:"visit,omitempty"`
	VisitWarning string  `json:"visit_warning,omitempty"`
}

type ShareMessage struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

type VisitStatus string

const (
	VisitInProgress VisitStatus = "in-progress"
	VisitCompleted  VisitStatus = "completed"
	VisitCancelled  VisitStatus = "cancelled"
)

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

type Visit struct {
	ID            string      `json:"id"`
	StartTime     time.Time   `json:"start_time"`
	EndTime       *time.Time  `json:"end_time,omitempty"`
	Location      Location    `json:"location"`
	CustomerID    string      `json:"customer_id,omitempty"`
	CustomerName  string      `json:"customer_name,omitempty"`
	InvoiceNumber string      `json:"invoice_number,omitempty"`
	Status        VisitStatus `json:"status"`
}

// InvoiceGenerated reports whether a committed invoice references this visit.
func (v Visit) InvoiceGenerated() bool {
	return v.InvoiceNumber != ""
}

type VisitFilter struct {
	Query  string
	Status VisitStatus
}

type VisitStartRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Address   string   `json:"address,omitempty"`
	Denied    bool     `json:"denied,omitempty"`
}

type VisitView struct {
	Visit    Visit  `json:"visit"`
	Duration string `json:"duration"`
}

type ReportPeriod string

const (
	PeriodWeek    ReportPeriod = "week"
	PeriodMonth   ReportPeriod = "month"
	PeriodQuarter ReportPeriod = "quarter"
	PeriodYear    ReportPeriod = "year"
)

type Metric struct {
	Title         string          `json:"title"`
	Value         decimal.Decimal `json:"value"`
	Display       string          `json:"display"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Trend         string          `json:"trend"`
}

type ProductPerformance struct {
	ItemID  string          `json:"item_id"`
	Name    string          `json:"name"`
	Units   int             `json:"units"`
	Revenue decimal.Decimal `json:"revenue"`
}

type RecentVisit struct {
	CustomerName string          `json:"customer_name"`
	Date         time.Time       `json:"date"`
	Status       VisitStatus     `json:"status"`
	Amount       decimal.Decimal `json:"amount"`
}

type ReportSummary struct {
	Owner        string               `json:"owner"`
	Period       ReportPeriod         `json:"period"`
	From         time.Time            `json:"from"`
	To           time.Time            `json:"to"`
	Metrics      []Metric             `json:"metrics"`
	TopProducts  []ProductPerformance `json:"top_products"`
	RecentVisits []RecentVisit        `json:"recent_visits"`
	GeneratedAt  time.Time            `json:"generated_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

const (
	RoleAdmin    = "admin"
	RoleSalesRep = "rep"
)

type Actor struct {
	Username string
	Role     string
}

type UserAccount struct {
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type SalesRepCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SalesRep struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
