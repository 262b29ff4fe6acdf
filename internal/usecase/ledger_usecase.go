package usecase

import (
	"context"
	"time"

	"github.com/quorvia/erpcore/internal/domain"
)

// LedgerUseCase manages accounts, fiscal calendars and journal entries.
type LedgerUseCase struct {
	txManager     TransactionManager
	accountRepo   AccountRepository
	journalRepo   JournalRepository
	periodRepo    PeriodRepository
	recurringRepo RecurringRepository
	outboxRepo    OutboxRepository
	idGen         IDGenerator
	numGen        NumberGenerator
	clock         Clock
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	journalRepo JournalRepository,
	periodRepo PeriodRepository,
	recurringRepo RecurringRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	numGen NumberGenerator,
	clock Clock,
) *LedgerUseCase {
	return &LedgerUseCase{
		txManager:     txManager,
		accountRepo:   accountRepo,
		journalRepo:   journalRepo,
		periodRepo:    periodRepo,
		recurringRepo: recurringRepo,
		outboxRepo:    outboxRepo,
		idGen:         idGen,
		numGen:        numGen,
		clock:         clock,
	}
}

// CreateAccountInput represents input for creating an account.
type CreateAccountInput struct {
	Code        string
	Name        string
	Class       string
	ParentID    string
	Description string
	Actor       Actor
}

// CreateAccount validates and persists a new Active account.
func (uc *LedgerUseCase) CreateAccount(ctx context.Context, input CreateAccountInput) (*domain.Account, error) {
	class, err := domain.ParseAccountClass(input.Class)
	if err != nil {
		return nil, err
	}

	if existing, err := uc.accountRepo.GetByCode(ctx, input.Code); err == nil && existing != nil {
		return nil, domain.ErrDuplicateAccountCode
	}

	if input.ParentID != "" {
		if err := uc.checkParentChain(ctx, input.ParentID, ""); err != nil {
			return nil, err
		}
	}

	now := uc.clock.Now().UTC()
	account := &domain.Account{
		ID:          uc.idGen.Generate(),
		Code:        input.Code,
		Name:        input.Name,
		Class:       class,
		ParentID:    input.ParentID,
		Description: input.Description,
		Status:      domain.AccountActive,
		CreatedAt:   now,
		UpdatedAt:   now,
		CreatedBy:   input.Actor.ID,
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}

	if err := uc.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// checkParentChain walks up the parent chain rejecting cycles through
// childID and missing parents.
func (uc *LedgerUseCase) checkParentChain(ctx context.Context, parentID, childID string) error {
	seen := map[string]bool{}
	if childID != "" {
		seen[childID] = true
	}
	for id := parentID; id != ""; {
		if seen[id] {
			return domain.ErrCyclicParent
		}
		seen[id] = true
		parent, err := uc.accountRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		id = parent.ParentID
	}
	return nil
}

// GetAccount fetches an account by id.
func (uc *LedgerUseCase) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return uc.accountRepo.GetByID(ctx, id)
}

// ListAccounts pages through accounts.
func (uc *LedgerUseCase) ListAccounts(ctx context.Context, page domain.Page) (domain.PageResult[*domain.Account], error) {
	page = page.Normalize()
	items, total, err := uc.accountRepo.List(ctx, page)
	if err != nil {
		return domain.PageResult[*domain.Account]{}, err
	}
	return domain.NewPageResult(items, total, page), nil
}

// CreateEntryInput represents input for drafting a journal entry.
type CreateEntryInput struct {
	Date        time.Time
	Description string
	Reference   string
	Currency    string
	Lines       []domain.JournalLine
	Actor       Actor
}

// CreateEntry persists a Draft journal entry with a fresh number.
func (uc *LedgerUseCase) CreateEntry(ctx context.Context, input CreateEntryInput) (*domain.JournalEntry, error) {
	now := uc.clock.Now().UTC()
	entry := &domain.JournalEntry{
		ID:          uc.idGen.Generate(),
		Date:        input.Date,
		Description: input.Description,
		Reference:   input.Reference,
		Currency:    input.Currency,
		Status:      domain.EntryDraft,
		Lines:       input.Lines,
		CreatedAt:   now,
		UpdatedAt:   now,
		CreatedBy:   input.Actor.ID,
	}
	for i := range entry.Lines {
		if entry.Lines[i].ID == "" {
			entry.Lines[i].ID = uc.idGen.Generate()
		}
		entry.Lines[i].EntryID = entry.ID
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	seq, err := uc.journalRepo.NextSequence(ctx, tx, input.Date.Year())
	if err != nil {
		return nil, err
	}
	entry.Number = uc.numGen.Format(PrefixJournalEntry, input.Date.Year(), seq)

	if err := uc.journalRepo.Create(ctx, tx, entry); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return entry, nil
}

// GetEntry fetches a journal entry by id.
func (uc *LedgerUseCase) GetEntry(ctx context.Context, id string) (*domain.JournalEntry, error) {
	return uc.journalRepo.GetByID(ctx, id)
}

// ListEntries pages through journal entries.
func (uc *LedgerUseCase) ListEntries(ctx context.Context, page domain.Page) (domain.PageResult[*domain.JournalEntry], error) {
	page = page.Normalize()
	items, total, err := uc.journalRepo.List(ctx, page)
	if err != nil {
		return domain.PageResult[*domain.JournalEntry]{}, err
	}
	return domain.NewPageResult(items, total, page), nil
}

// PostEntry posts a Draft entry: balance check, period-lock check,
// status flip and outbox event, all in one transaction.
func (uc *LedgerUseCase) PostEntry(ctx context.Context, id string, actor Actor) (*domain.JournalEntry, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	entry, err := uc.journalRepo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if entry.Status != domain.EntryDraft {
		return nil, domain.ErrEntryNotDraft
	}
	for i := range entry.Lines {
		if err := entry.Lines[i].Validate(); err != nil {
			return nil, err
		}
	}
	if err := entry.CheckBalanced(); err != nil {
		return nil, err
	}

	// Lock the period row so a concurrent close serializes with us.
	period, err := uc.periodRepo.FindByDate(ctx, tx, entry.Date)
	if err != nil {
		return nil, err
	}
	if err := period.AllowsPosting(actor.Privileged); err != nil {
		return nil, err
	}

	now := uc.clock.Now().UTC()
	if err := uc.journalRepo.MarkPosted(ctx, tx, entry.ID, now); err != nil {
		return nil, err
	}
	entry.Status = domain.EntryPosted
	entry.PostedAt = &now

	debits, _ := entry.Totals()
	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   entry.ID,
		AggregateType: domain.AggregateJournalEntry,
		EventType:     domain.EventEntryPosted,
		Payload: domain.EntryPostedEvent{
			EntryID:     entry.ID,
			EntryNumber: entry.Number,
			Date:        entry.Date.Format("2006-01-02"),
			Currency:    entry.Currency,
			TotalAmount: debits,
		},
		CreatedAt: now,
	}
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return entry, nil
}

// ReverseEntry drafts a new entry with swapped sides referencing the
// original. The original stays Posted.
func (uc *LedgerUseCase) ReverseEntry(ctx context.Context, id string, onDate time.Time, actor Actor) (*domain.JournalEntry, error) {
	original, err := uc.journalRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if original.Status != domain.EntryPosted {
		return nil, domain.ErrEntryNotPosted
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Reversal into a soft-closed period is the privileged correction
	// path; hard close blocks everyone.
	period, err := uc.periodRepo.FindByDate(ctx, tx, onDate)
	if err != nil {
		return nil, err
	}
	if err := period.AllowsPosting(actor.Privileged); err != nil {
		return nil, err
	}

	now := uc.clock.Now().UTC()
	reversal := original.Reversed(onDate)
	reversal.ID = uc.idGen.Generate()
	reversal.CreatedAt = now
	reversal.UpdatedAt = now
	reversal.CreatedBy = actor.ID
	for i := range reversal.Lines {
		reversal.Lines[i].ID = uc.idGen.Generate()
		reversal.Lines[i].EntryID = reversal.ID
	}

	seq, err := uc.journalRepo.NextSequence(ctx, tx, onDate.Year())
	if err != nil {
		return nil, err
	}
	reversal.Number = uc.numGen.Format(PrefixJournalEntry, onDate.Year(), seq)

	if err := uc.journalRepo.Create(ctx, tx, reversal); err != nil {
		return nil, err
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   reversal.ID,
		AggregateType: domain.AggregateJournalEntry,
		EventType:     domain.EventEntryReversed,
		Payload: domain.EntryReversedEvent{
			ReversalEntryID: reversal.ID,
			OriginalEntryID: original.ID,
			Date:            onDate.Format("2006-01-02"),
		},
		CreatedAt: now,
	}
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return reversal, nil
}

// RunRecurring materializes all due recurring journals. Auto-post
// templates are posted immediately; the rest stay Draft.
func (uc *LedgerUseCase) RunRecurring(ctx context.Context, now time.Time, actor Actor) ([]*domain.JournalEntry, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	due, err := uc.recurringRepo.ListDue(ctx, tx, now)
	if err != nil {
		return nil, err
	}

	var created []*domain.JournalEntry
	var toPost []string
	for _, rj := range due {
		entry := rj.Materialize(now)
		entry.ID = uc.idGen.Generate()
		entry.CreatedAt = now
		entry.UpdatedAt = now
		entry.CreatedBy = actor.ID
		for i := range entry.Lines {
			entry.Lines[i].ID = uc.idGen.Generate()
			entry.Lines[i].EntryID = entry.ID
		}

		seq, err := uc.journalRepo.NextSequence(ctx, tx, now.Year())
		if err != nil {
			return nil, err
		}
		entry.Number = uc.numGen.Format(PrefixJournalEntry, now.Year(), seq)

		if err := uc.journalRepo.Create(ctx, tx, entry); err != nil {
			return nil, err
		}
		if err := uc.recurringRepo.UpdateSchedule(ctx, tx, rj.ID, rj.ComputeNextRun(rj.NextRun), now); err != nil {
			return nil, err
		}

		created = append(created, entry)
		if rj.AutoPost {
			toPost = append(toPost, entry.ID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	// Posting runs per entry so one locked period does not sink the
	// whole batch.
	for _, id := range toPost {
		if _, err := uc.PostEntry(ctx, id, actor); err != nil {
			if domain.KindOf(err) == domain.KindDependency {
				return created, err
			}
		}
	}
	return created, nil
}

// CreateFiscalYearInput represents input for creating a fiscal year.
type CreateFiscalYearInput struct {
	Name      string
	StartDate time.Time
	EndDate   time.Time
}

// CreateFiscalYear persists a fiscal year, rejecting overlaps.
func (uc *LedgerUseCase) CreateFiscalYear(ctx context.Context, input CreateFiscalYearInput) (*domain.FiscalYear, error) {
	now := uc.clock.Now().UTC()
	year := &domain.FiscalYear{
		ID:        uc.idGen.Generate(),
		Name:      input.Name,
		StartDate: input.StartDate,
		EndDate:   input.EndDate,
		Status:    domain.FiscalYearActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := year.Validate(); err != nil {
		return nil, err
	}

	existing, err := uc.periodRepo.ListFiscalYears(ctx)
	if err != nil {
		return nil, err
	}
	for _, other := range existing {
		if year.Overlaps(other) {
			return nil, domain.ErrFiscalYearOverlap
		}
	}

	if err := uc.periodRepo.CreateFiscalYear(ctx, year); err != nil {
		return nil, err
	}
	return year, nil
}

// CreatePeriodInput represents input for creating an accounting period.
type CreatePeriodInput struct {
	FiscalYearID string
	Ordinal      int
	Name         string
	StartDate    time.Time
	EndDate      time.Time
}

// CreatePeriod persists an Open accounting period inside a fiscal year.
func (uc *LedgerUseCase) CreatePeriod(ctx context.Context, input CreatePeriodInput) (*domain.AccountingPeriod, error) {
	year, err := uc.periodRepo.GetFiscalYear(ctx, input.FiscalYearID)
	if err != nil {
		return nil, err
	}
	if input.StartDate.Before(year.StartDate) || input.EndDate.After(year.EndDate) {
		return nil, domain.ErrPeriodOutsideYear
	}

	now := uc.clock.Now().UTC()
	period := &domain.AccountingPeriod{
		ID:           uc.idGen.Generate(),
		FiscalYearID: input.FiscalYearID,
		Ordinal:      input.Ordinal,
		Name:         input.Name,
		StartDate:    input.StartDate,
		EndDate:      input.EndDate,
		Lock:         domain.PeriodOpen,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := period.Validate(); err != nil {
		return nil, err
	}
	if err := uc.periodRepo.CreatePeriod(ctx, period); err != nil {
		return nil, err
	}
	return period, nil
}

// SetPeriodLock transitions a period's lock level. Locks only tighten:
// Open → SoftClose → HardClose.
func (uc *LedgerUseCase) SetPeriodLock(ctx context.Context, periodID string, lock domain.PeriodLock, actor Actor) (*domain.AccountingPeriod, error) {
	if !actor.Privileged {
		return nil, domain.ErrPeriodCloseForbidden
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	period, err := uc.periodRepo.GetPeriodForUpdate(ctx, tx, periodID)
	if err != nil {
		return nil, err
	}
	if !period.Lock.CanTransitionTo(lock) {
		return nil, domain.ErrPeriodLockRegression
	}

	now := uc.clock.Now().UTC()
	if err := uc.periodRepo.UpdateLock(ctx, tx, periodID, lock, now); err != nil {
		return nil, err
	}
	period.Lock = lock
	period.UpdatedAt = now

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   period.ID,
		AggregateType: "accounting_period",
		EventType:     domain.EventPeriodClosed,
		Payload: domain.PeriodClosedEvent{
			PeriodID: period.ID,
			Lock:     string(lock),
		},
		CreatedAt: now,
	}
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return period, nil
}

// CreateRecurringInput represents input for a recurring journal.
type CreateRecurringInput struct {
	Name        string
	Description string
	Currency    string
	Frequency   string
	Interval    int
	DayOfMonth  int
	DayOfWeek   int
	AutoPost    bool
	FirstRun    time.Time
	Lines       []domain.JournalLine
	Actor       Actor
}

// CreateRecurring persists an active recurring journal template.
func (uc *LedgerUseCase) CreateRecurring(ctx context.Context, input CreateRecurringInput) (*domain.RecurringJournal, error) {
	freq, err := domain.ParseFrequency(input.Frequency)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateCurrency(input.Currency); err != nil {
		return nil, err
	}
	if len(input.Lines) == 0 {
		return nil, domain.ErrEmptyEntry
	}
	for i := range input.Lines {
		if err := input.Lines[i].Validate(); err != nil {
			return nil, err
		}
	}

	now := uc.clock.Now().UTC()
	rj := &domain.RecurringJournal{
		ID:          uc.idGen.Generate(),
		Name:        input.Name,
		Description: input.Description,
		Currency:    input.Currency,
		Frequency:   freq,
		Interval:    input.Interval,
		DayOfMonth:  input.DayOfMonth,
		DayOfWeek:   input.DayOfWeek,
		AutoPost:    input.AutoPost,
		Active:      true,
		NextRun:     input.FirstRun,
		Lines:       input.Lines,
		CreatedAt:   now,
		UpdatedAt:   now,
		CreatedBy:   input.Actor.ID,
	}
	if err := uc.recurringRepo.Create(ctx, rj); err != nil {
		return nil, err
	}
	return rj, nil
}

// ReportLine is one account's balance on a financial report.
type ReportLine struct {
	AccountID   string
	AccountCode string
	AccountName string
	Class       domain.AccountClass
	Debits      domain.Money
	Credits     domain.Money
	Balance     domain.Money
}

// Report is an aggregated financial statement.
type Report struct {
	AsOf   time.Time
	From   time.Time
	Lines  []ReportLine
	Totals map[domain.AccountClass]domain.Money
}

// TrialBalance aggregates posted activity through a date.
func (uc *LedgerUseCase) TrialBalance(ctx context.Context, asOf time.Time) (*Report, error) {
	if err := uc.rejectHardClosedAsOf(ctx, asOf); err != nil {
		return nil, err
	}
	rows, err := uc.journalRepo.BalancesThrough(ctx, time.Time{}, asOf)
	if err != nil {
		return nil, err
	}
	return buildReport(rows, time.Time{}, asOf, nil), nil
}

// BalanceSheet reports asset, liability and equity balances at a date.
func (uc *LedgerUseCase) BalanceSheet(ctx context.Context, asOf time.Time) (*Report, error) {
	if err := uc.rejectHardClosedAsOf(ctx, asOf); err != nil {
		return nil, err
	}
	rows, err := uc.journalRepo.BalancesThrough(ctx, time.Time{}, asOf)
	if err != nil {
		return nil, err
	}
	keep := map[domain.AccountClass]bool{
		domain.AccountAsset:     true,
		domain.AccountLiability: true,
		domain.AccountEquity:    true,
	}
	return buildReport(rows, time.Time{}, asOf, keep), nil
}

// ProfitAndLoss reports revenue and expense activity over a window.
func (uc *LedgerUseCase) ProfitAndLoss(ctx context.Context, from, to time.Time) (*Report, error) {
	if to.Before(from) {
		return nil, domain.ErrReportWindowInvalid
	}
	if err := uc.rejectHardClosedAsOf(ctx, to); err != nil {
		return nil, err
	}
	rows, err := uc.journalRepo.BalancesThrough(ctx, from, to)
	if err != nil {
		return nil, err
	}
	keep := map[domain.AccountClass]bool{
		domain.AccountRevenue: true,
		domain.AccountExpense: true,
	}
	return buildReport(rows, from, to, keep), nil
}

// rejectHardClosedAsOf blocks reporting dates falling inside a
// hard-closed period where figures may still be restated.
func (uc *LedgerUseCase) rejectHardClosedAsOf(ctx context.Context, asOf time.Time) error {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	period, err := uc.periodRepo.FindByDate(ctx, tx, asOf)
	if err != nil {
		// No calendar configured for the date is fine for reporting.
		if domain.KindOf(err) == domain.KindNotFound {
			return nil
		}
		return err
	}
	_ = tx.Commit(ctx)
	if period.Lock == domain.PeriodHardClose {
		return domain.ErrReportInClosedPeriod
	}
	return nil
}

func buildReport(rows []BalanceRow, from, asOf time.Time, keep map[domain.AccountClass]bool) *Report {
	report := &Report{
		AsOf:   asOf,
		From:   from,
		Totals: make(map[domain.AccountClass]domain.Money),
	}
	for _, row := range rows {
		if keep != nil && !keep[row.Class] {
			continue
		}
		balance := row.Debits - row.Credits
		if !row.Class.DebitNormal() {
			balance = row.Credits - row.Debits
		}
		report.Lines = append(report.Lines, ReportLine{
			AccountID:   row.AccountID,
			AccountCode: row.AccountCode,
			AccountName: row.AccountName,
			Class:       row.Class,
			Debits:      row.Debits,
			Credits:     row.Credits,
			Balance:     balance,
		})
		report.Totals[row.Class] += balance
	}
	return report
}
