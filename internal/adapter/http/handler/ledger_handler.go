package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quorvia/erpcore/internal/adapter/http/dto"
	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/usecase"
)

// LedgerHandler handles account, journal, period and report requests.
type LedgerHandler struct {
	ledgerUC *usecase.LedgerUseCase
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerUC *usecase.LedgerUseCase) *LedgerHandler {
	return &LedgerHandler{ledgerUC: ledgerUC}
}

// CreateAccount creates a ledger account.
func (h *LedgerHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	account, err := h.ledgerUC.CreateAccount(r.Context(), req.ToUseCaseInput(requestActor(r)))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.AccountFromDomain(account))
}

// GetAccount returns one account by ID.
func (h *LedgerHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.ledgerUC.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// ListAccounts lists accounts.
func (h *LedgerHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	res, err := h.ledgerUC.ListAccounts(r.Context(), parsePage(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PageFromResult(res, dto.AccountFromDomain))
}

// CreateEntry creates a draft journal entry.
func (h *LedgerHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateEntryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	entry, err := h.ledgerUC.CreateEntry(r.Context(), req.ToUseCaseInput(requestActor(r)))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.EntryFromDomain(entry))
}

// GetEntry returns one journal entry by ID.
func (h *LedgerHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.ledgerUC.GetEntry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntryFromDomain(entry))
}

// ListEntries lists journal entries, newest first.
func (h *LedgerHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	res, err := h.ledgerUC.ListEntries(r.Context(), parsePage(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PageFromResult(res, dto.EntryFromDomain))
}

// PostEntry posts a draft entry.
func (h *LedgerHandler) PostEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.ledgerUC.PostEntry(r.Context(), chi.URLParam(r, "id"), requestActor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntryFromDomain(entry))
}

// ReverseEntry posts a reversing entry for a posted entry.
func (h *LedgerHandler) ReverseEntry(w http.ResponseWriter, r *http.Request) {
	var req dto.ReverseEntryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	entry, err := h.ledgerUC.ReverseEntry(r.Context(), chi.URLParam(r, "id"), req.Date, requestActor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.EntryFromDomain(entry))
}

// CreateFiscalYear opens a fiscal year.
func (h *LedgerHandler) CreateFiscalYear(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateFiscalYearRequest
	if !decodeBody(w, r, &req) {
		return
	}

	fy, err := h.ledgerUC.CreateFiscalYear(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.FiscalYearFromDomain(fy))
}

// CreatePeriod creates an accounting period inside a fiscal year.
func (h *LedgerHandler) CreatePeriod(w http.ResponseWriter, r *http.Request) {
	var req dto.CreatePeriodRequest
	if !decodeBody(w, r, &req) {
		return
	}

	period, err := h.ledgerUC.CreatePeriod(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.PeriodFromDomain(period))
}

// SetPeriodLock tightens a period's lock state.
func (h *LedgerHandler) SetPeriodLock(w http.ResponseWriter, r *http.Request) {
	var req dto.SetPeriodLockRequest
	if !decodeBody(w, r, &req) {
		return
	}

	period, err := h.ledgerUC.SetPeriodLock(r.Context(), chi.URLParam(r, "id"), domain.PeriodLock(req.Lock), requestActor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PeriodFromDomain(period))
}

// CreateRecurring creates a recurring journal template.
func (h *LedgerHandler) CreateRecurring(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateRecurringRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rj, err := h.ledgerUC.CreateRecurring(r.Context(), req.ToUseCaseInput(requestActor(r)))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.RecurringFromDomain(rj))
}

// RunRecurring materializes all due recurring templates.
func (h *LedgerHandler) RunRecurring(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseTimeQuery(r, "as_of", time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_as_of", err.Error())
		return
	}

	entries, err := h.ledgerUC.RunRecurring(r.Context(), asOf, requestActor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntriesFromDomain(entries))
}

// TrialBalance returns the trial balance as of a date.
func (h *LedgerHandler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseTimeQuery(r, "as_of", time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_as_of", err.Error())
		return
	}

	report, err := h.ledgerUC.TrialBalance(r.Context(), asOf)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReportFromUseCase(report))
}

// BalanceSheet returns the balance sheet as of a date.
func (h *LedgerHandler) BalanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseTimeQuery(r, "as_of", time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_as_of", err.Error())
		return
	}

	report, err := h.ledgerUC.BalanceSheet(r.Context(), asOf)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReportFromUseCase(report))
}

// ProfitAndLoss returns the profit and loss report for a window.
func (h *LedgerHandler) ProfitAndLoss(w http.ResponseWriter, r *http.Request) {
	from, err := parseTimeQuery(r, "from", time.Time{})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_from", err.Error())
		return
	}
	to, err := parseTimeQuery(r, "to", time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_to", err.Error())
		return
	}

	report, err := h.ledgerUC.ProfitAndLoss(r.Context(), from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReportFromUseCase(report))
}
