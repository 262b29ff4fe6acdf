package dto

import (
	"time"

	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/usecase"
)

// CreateAccountRequest represents a request to create a ledger account.
type CreateAccountRequest struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Class       string `json:"class"`
	ParentID    string `json:"parent_id,omitempty"`
	Description string `json:"description,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateAccountRequest) ToUseCaseInput(actor usecase.Actor) usecase.CreateAccountInput {
	return usecase.CreateAccountInput{
		Code:        r.Code,
		Name:        r.Name,
		Class:       r.Class,
		ParentID:    r.ParentID,
		Description: r.Description,
		Actor:       actor,
	}
}

// JournalLineRequest is a single line of a journal entry or template.
type JournalLineRequest struct {
	AccountID string `json:"account_id"`
	Debit     int64  `json:"debit,omitempty"`
	Credit    int64  `json:"credit,omitempty"`
	Memo      string `json:"memo,omitempty"`
}

func linesToDomain(lines []JournalLineRequest) []domain.JournalLine {
	out := make([]domain.JournalLine, len(lines))
	for i, l := range lines {
		out[i] = domain.JournalLine{
			AccountID: l.AccountID,
			Debit:     l.Debit,
			Credit:    l.Credit,
			Memo:      l.Memo,
		}
	}
	return out
}

// CreateEntryRequest represents a request to create a journal entry.
type CreateEntryRequest struct {
	Date        time.Time            `json:"date"`
	Description string               `json:"description,omitempty"`
	Reference   string               `json:"reference,omitempty"`
	Currency    string               `json:"currency"`
	Lines       []JournalLineRequest `json:"lines"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateEntryRequest) ToUseCaseInput(actor usecase.Actor) usecase.CreateEntryInput {
	return usecase.CreateEntryInput{
		Date:        r.Date,
		Description: r.Description,
		Reference:   r.Reference,
		Currency:    r.Currency,
		Lines:       linesToDomain(r.Lines),
		Actor:       actor,
	}
}

// ReverseEntryRequest carries the reversal date.
type ReverseEntryRequest struct {
	Date time.Time `json:"date"`
}

// CreateFiscalYearRequest represents a request to open a fiscal year.
type CreateFiscalYearRequest struct {
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateFiscalYearRequest) ToUseCaseInput() usecase.CreateFiscalYearInput {
	return usecase.CreateFiscalYearInput{
		Name:      r.Name,
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
	}
}

// CreatePeriodRequest represents a request to create an accounting period.
type CreatePeriodRequest struct {
	FiscalYearID string    `json:"fiscal_year_id"`
	Ordinal      int       `json:"ordinal"`
	Name         string    `json:"name"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
}

// ToUseCaseInput converts to use case input.
func (r *CreatePeriodRequest) ToUseCaseInput() usecase.CreatePeriodInput {
	return usecase.CreatePeriodInput{
		FiscalYearID: r.FiscalYearID,
		Ordinal:      r.Ordinal,
		Name:         r.Name,
		StartDate:    r.StartDate,
		EndDate:      r.EndDate,
	}
}

// SetPeriodLockRequest changes a period's lock state.
type SetPeriodLockRequest struct {
	Lock string `json:"lock"`
}

// CreateRecurringRequest represents a request to create a recurring journal template.
type CreateRecurringRequest struct {
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Currency    string               `json:"currency"`
	Frequency   string               `json:"frequency"`
	Interval    int                  `json:"interval,omitempty"`
	DayOfMonth  int                  `json:"day_of_month,omitempty"`
	DayOfWeek   int                  `json:"day_of_week,omitempty"`
	AutoPost    bool                 `json:"auto_post,omitempty"`
	FirstRun    time.Time            `json:"first_run"`
	Lines       []JournalLineRequest `json:"lines"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateRecurringRequest) ToUseCaseInput(actor usecase.Actor) usecase.CreateRecurringInput {
	return usecase.CreateRecurringInput{
		Name:        r.Name,
		Description: r.Description,
		Currency:    r.Currency,
		Frequency:   r.Frequency,
		Interval:    r.Interval,
		DayOfMonth:  r.DayOfMonth,
		DayOfWeek:   r.DayOfWeek,
		AutoPost:    r.AutoPost,
		FirstRun:    r.FirstRun,
		Lines:       linesToDomain(r.Lines),
		Actor:       actor,
	}
}

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Class       string    `json:"class"`
	ParentID    string    `json:"parent_id,omitempty"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AccountFromDomain converts a domain account to a response.
func AccountFromDomain(a *domain.Account) AccountResponse {
	return AccountResponse{
		ID:          a.ID,
		Code:        a.Code,
		Name:        a.Name,
		Class:       string(a.Class),
		ParentID:    a.ParentID,
		Description: a.Description,
		Status:      string(a.Status),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// JournalLineResponse represents a journal line in API responses.
type JournalLineResponse struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	Debit     int64  `json:"debit"`
	Credit    int64  `json:"credit"`
	Memo      string `json:"memo,omitempty"`
}

// EntryResponse represents a journal entry in API responses.
type EntryResponse struct {
	ID          string                `json:"id"`
	Number      string                `json:"number"`
	Date        time.Time             `json:"date"`
	Description string                `json:"description,omitempty"`
	Reference   string                `json:"reference,omitempty"`
	Currency    string                `json:"currency"`
	Status      string                `json:"status"`
	ReversalOf  string                `json:"reversal_of,omitempty"`
	Lines       []JournalLineResponse `json:"lines"`
	PostedAt    *time.Time            `json:"posted_at,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// EntryFromDomain converts a domain journal entry to a response.
func EntryFromDomain(e *domain.JournalEntry) EntryResponse {
	lines := make([]JournalLineResponse, len(e.Lines))
	for i, l := range e.Lines {
		lines[i] = JournalLineResponse{
			ID:        l.ID,
			AccountID: l.AccountID,
			Debit:     l.Debit,
			Credit:    l.Credit,
			Memo:      l.Memo,
		}
	}
	return EntryResponse{
		ID:          e.ID,
		Number:      e.Number,
		Date:        e.Date,
		Description: e.Description,
		Reference:   e.Reference,
		Currency:    e.Currency,
		Status:      string(e.Status),
		ReversalOf:  e.ReversalOf,
		Lines:       lines,
		PostedAt:    e.PostedAt,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

// EntriesFromDomain converts a slice of entries.
func EntriesFromDomain(entries []*domain.JournalEntry) []EntryResponse {
	out := make([]EntryResponse, len(entries))
	for i, e := range entries {
		out[i] = EntryFromDomain(e)
	}
	return out
}

// FiscalYearResponse represents a fiscal year in API responses.
type FiscalYearResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// FiscalYearFromDomain converts a domain fiscal year to a response.
func FiscalYearFromDomain(fy *domain.FiscalYear) FiscalYearResponse {
	return FiscalYearResponse{
		ID:        fy.ID,
		Name:      fy.Name,
		StartDate: fy.StartDate,
		EndDate:   fy.EndDate,
		Status:    string(fy.Status),
		CreatedAt: fy.CreatedAt,
	}
}

// PeriodResponse represents an accounting period in API responses.
type PeriodResponse struct {
	ID           string     `json:"id"`
	FiscalYearID string     `json:"fiscal_year_id"`
	Ordinal      int        `json:"ordinal"`
	Name         string     `json:"name"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      time.Time  `json:"end_date"`
	Lock         string     `json:"lock"`
	LockedAt     *time.Time `json:"locked_at,omitempty"`
}

// PeriodFromDomain converts a domain period to a response.
func PeriodFromDomain(p *domain.AccountingPeriod) PeriodResponse {
	return PeriodResponse{
		ID:           p.ID,
		FiscalYearID: p.FiscalYearID,
		Ordinal:      p.Ordinal,
		Name:         p.Name,
		StartDate:    p.StartDate,
		EndDate:      p.EndDate,
		Lock:         string(p.Lock),
		LockedAt:     p.LockedAt,
	}
}

// RecurringResponse represents a recurring journal template in API responses.
type RecurringResponse struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Currency  string                `json:"currency"`
	Frequency string                `json:"frequency"`
	Interval  int                   `json:"interval"`
	AutoPost  bool                  `json:"auto_post"`
	Active    bool                  `json:"active"`
	NextRun   time.Time             `json:"next_run"`
	LastRun   *time.Time            `json:"last_run,omitempty"`
	Lines     []JournalLineResponse `json:"lines"`
	CreatedAt time.Time             `json:"created_at"`
}

// RecurringFromDomain converts a domain recurring journal to a response.
func RecurringFromDomain(rj *domain.RecurringJournal) RecurringResponse {
	lines := make([]JournalLineResponse, len(rj.Lines))
	for i, l := range rj.Lines {
		lines[i] = JournalLineResponse{
			ID:        l.ID,
			AccountID: l.AccountID,
			Debit:     l.Debit,
			Credit:    l.Credit,
			Memo:      l.Memo,
		}
	}
	return RecurringResponse{
		ID:        rj.ID,
		Name:      rj.Name,
		Currency:  rj.Currency,
		Frequency: string(rj.Frequency),
		Interval:  rj.Interval,
		AutoPost:  rj.AutoPost,
		Active:    rj.Active,
		NextRun:   rj.NextRun,
		LastRun:   rj.LastRun,
		Lines:     lines,
		CreatedAt: rj.CreatedAt,
	}
}

// ReportLineResponse is a single account row of a financial report.
type ReportLineResponse struct {
	AccountID   string `json:"account_id"`
	AccountCode string `json:"account_code"`
	AccountName string `json:"account_name"`
	Class       string `json:"class"`
	Debits      int64  `json:"debits"`
	Credits     int64  `json:"credits"`
	Balance     int64  `json:"balance"`
}

// ReportResponse represents a financial report.
type ReportResponse struct {
	AsOf   time.Time            `json:"as_of"`
	From   *time.Time           `json:"from,omitempty"`
	Lines  []ReportLineResponse `json:"lines"`
	Totals map[string]int64     `json:"totals"`
}

// ReportFromUseCase converts a use case report to a response.
func ReportFromUseCase(rep *usecase.Report) ReportResponse {
	lines := make([]ReportLineResponse, len(rep.Lines))
	for i, l := range rep.Lines {
		lines[i] = ReportLineResponse{
			AccountID:   l.AccountID,
			AccountCode: l.AccountCode,
			AccountName: l.AccountName,
			Class:       string(l.Class),
			Debits:      l.Debits,
			Credits:     l.Credits,
			Balance:     l.Balance,
		}
	}
	totals := make(map[string]int64, len(rep.Totals))
	for class, amount := range rep.Totals {
		totals[string(class)] = amount
	}
	resp := ReportResponse{
		AsOf:   rep.AsOf,
		Lines:  lines,
		Totals: totals,
	}
	if !rep.From.IsZero() {
		from := rep.From
		resp.From = &from
	}
	return resp
}
