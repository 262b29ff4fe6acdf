package usecase

import (
	"context"
	"fmt"

	"github.com/quorvia/erpcore/internal/domain"
)

// CreditUseCase maintains customer credit exposure and holds.
type CreditUseCase struct {
	txManager   TransactionManager
	profileRepo CreditProfileRepository
	ledgerRepo  CreditLedgerRepository
	outboxRepo  OutboxRepository
	idGen       IDGenerator
	clock       Clock
}

// NewCreditUseCase creates a new CreditUseCase.
func NewCreditUseCase(
	txManager TransactionManager,
	profileRepo CreditProfileRepository,
	ledgerRepo CreditLedgerRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	clock Clock,
) *CreditUseCase {
	return &CreditUseCase{
		txManager:   txManager,
		profileRepo: profileRepo,
		ledgerRepo:  ledgerRepo,
		outboxRepo:  outboxRepo,
		idGen:       idGen,
		clock:       clock,
	}
}

// CreateProfileInput represents input for opening a credit profile.
type CreateProfileInput struct {
	CustomerID       string
	Currency         string
	CreditLimit      domain.Money
	AutoHoldEnabled  bool
	HoldThresholdPct int
}

// CreateProfile opens a credit profile for a customer.
func (uc *CreditUseCase) CreateProfile(ctx context.Context, input CreateProfileInput) (*domain.CustomerCreditProfile, error) {
	if err := domain.ValidateCurrency(input.Currency); err != nil {
		return nil, err
	}
	if input.CreditLimit < 0 {
		return nil, domain.Validation("invalid_credit_limit", "credit limit must not be negative")
	}
	threshold := input.HoldThresholdPct
	if threshold <= 0 {
		threshold = 100
	}

	now := uc.clock.Now().UTC()
	p := &domain.CustomerCreditProfile{
		ID:               uc.idGen.Generate(),
		CustomerID:       input.CustomerID,
		Currency:         input.Currency,
		CreditLimit:      input.CreditLimit,
		RiskLevel:        domain.RiskLow,
		AutoHoldEnabled:  input.AutoHoldEnabled,
		HoldThresholdPct: threshold,
		Status:           domain.ProfileActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := uc.profileRepo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ApplyTransactionInput represents one change to credit_used.
type ApplyTransactionInput struct {
	CustomerID    string
	Kind          domain.CreditTxKind
	Delta         domain.Money
	ReferenceID   string
	ReferenceKind string
	Note          string
	Actor         Actor
}

// ApplyTransaction updates credit_used and writes the immutable
// transaction record. Redelivery of the same reference id is a no-op,
// so event consumers can apply at-least-once deliveries safely.
func (uc *CreditUseCase) ApplyTransaction(ctx context.Context, input ApplyTransactionInput) (*domain.CustomerCreditProfile, error) {
	if input.ReferenceID == "" {
		return nil, domain.Validation("reference_required", "credit transaction requires a reference id")
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	p, err := uc.profileRepo.GetByCustomerForUpdate(ctx, tx, input.CustomerID)
	if err != nil {
		return nil, err
	}

	applied, err := uc.ledgerRepo.TransactionExists(ctx, tx, p.ID, input.ReferenceID)
	if err != nil {
		return nil, err
	}
	if applied {
		// Redelivered reference: current state already reflects it.
		return p, tx.Commit(ctx)
	}

	now := uc.clock.Now().UTC()
	previous := p.CreditUsed
	p.CreditUsed += input.Delta
	if p.CreditUsed < 0 {
		p.CreditUsed = 0
	}

	// Record the delta actually applied, not the requested one, so the
	// transaction ledger always sums to credit_used. A payment larger
	// than the outstanding exposure is absorbed at zero.
	ct := &domain.CreditTransaction{
		ID:            uc.idGen.Generate(),
		ProfileID:     p.ID,
		CustomerID:    p.CustomerID,
		Kind:          input.Kind,
		Delta:         p.CreditUsed - previous,
		PreviousUsed:  previous,
		NewUsed:       p.CreditUsed,
		ReferenceID:   input.ReferenceID,
		ReferenceKind: input.ReferenceKind,
		Note:          input.Note,
		CreatedAt:     now,
		CreatedBy:     input.Actor.ID,
	}
	if err := uc.ledgerRepo.CreateTransaction(ctx, tx, ct); err != nil {
		return nil, err
	}

	p.UpdatedAt = now
	if err := uc.profileRepo.Update(ctx, tx, p); err != nil {
		return nil, err
	}

	if err := uc.evaluateHoldLocked(ctx, tx, p); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateLimitInput revises a customer's credit limit.
type UpdateLimitInput struct {
	CustomerID string
	NewLimit   domain.Money
	Reason     string
	Actor      Actor
}

// UpdateCreditLimit revises the limit, writes the audit trail and
// re-evaluates auto hold against the new headroom.
func (uc *CreditUseCase) UpdateCreditLimit(ctx context.Context, input UpdateLimitInput) (*domain.CustomerCreditProfile, error) {
	if input.NewLimit < 0 {
		return nil, domain.Validation("invalid_credit_limit", "credit limit must not be negative")
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	p, err := uc.profileRepo.GetByCustomerForUpdate(ctx, tx, input.CustomerID)
	if err != nil {
		return nil, err
	}

	now := uc.clock.Now().UTC()
	change := &domain.CreditLimitChange{
		ID:            uc.idGen.Generate(),
		ProfileID:     p.ID,
		CustomerID:    p.CustomerID,
		PreviousLimit: p.CreditLimit,
		NewLimit:      input.NewLimit,
		Reason:        input.Reason,
		ChangedBy:     input.Actor.ID,
		CreatedAt:     now,
	}
	if err := uc.ledgerRepo.CreateLimitChange(ctx, tx, change); err != nil {
		return nil, err
	}

	// The limit revision leaves credit_used alone; the zero-delta
	// record keeps the change visible on the ledger timeline.
	ct := &domain.CreditTransaction{
		ID:            uc.idGen.Generate(),
		ProfileID:     p.ID,
		CustomerID:    p.CustomerID,
		Kind:          domain.CreditTxLimitChange,
		Delta:         0,
		PreviousUsed:  p.CreditUsed,
		NewUsed:       p.CreditUsed,
		ReferenceID:   change.ID,
		ReferenceKind: "limit_change",
		Note:          fmt.Sprintf("credit limit changed from %d to %d", p.CreditLimit, input.NewLimit),
		CreatedAt:     now,
		CreatedBy:     input.Actor.ID,
	}
	if err := uc.ledgerRepo.CreateTransaction(ctx, tx, ct); err != nil {
		return nil, err
	}

	p.CreditLimit = input.NewLimit
	p.RiskLevel = p.ComputeRiskLevel()
	p.UpdatedAt = now
	if err := uc.profileRepo.Update(ctx, tx, p); err != nil {
		return nil, err
	}

	if err := uc.evaluateHoldLocked(ctx, tx, p); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// PlaceManualHold blocks a customer by hand, outside any threshold.
func (uc *CreditUseCase) PlaceManualHold(ctx context.Context, customerID, reason string, actor Actor) (*domain.CreditHold, error) {
	if reason == "" {
		return nil, domain.Validation("reason_required", "a manual hold requires a reason")
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	p, err := uc.profileRepo.GetByCustomerForUpdate(ctx, tx, customerID)
	if err != nil {
		return nil, err
	}
	active, err := uc.ledgerRepo.GetActiveHold(ctx, tx, p.ID)
	if err != nil && domain.KindOf(err) != domain.KindNotFound {
		return nil, err
	}
	if active != nil {
		return nil, domain.ErrHoldActive
	}

	now := uc.clock.Now().UTC()
	hold := &domain.CreditHold{
		ID:         uc.idGen.Generate(),
		ProfileID:  p.ID,
		CustomerID: p.CustomerID,
		Type:       domain.HoldManual,
		Reason:     reason,
		Status:     domain.HoldActive,
		PlacedAt:   now,
		PlacedBy:   actor.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := uc.ledgerRepo.CreateHold(ctx, tx, hold); err != nil {
		return nil, err
	}

	ct := &domain.CreditTransaction{
		ID:            uc.idGen.Generate(),
		ProfileID:     p.ID,
		CustomerID:    p.CustomerID,
		Kind:          domain.CreditTxHoldPlaced,
		PreviousUsed:  p.CreditUsed,
		NewUsed:       p.CreditUsed,
		ReferenceID:   hold.ID,
		ReferenceKind: "hold",
		Note:          reason,
		CreatedAt:     now,
		CreatedBy:     actor.ID,
	}
	if err := uc.ledgerRepo.CreateTransaction(ctx, tx, ct); err != nil {
		return nil, err
	}

	alert := &domain.CreditAlert{
		ID:         uc.idGen.Generate(),
		ProfileID:  p.ID,
		CustomerID: p.CustomerID,
		Severity:   domain.SeverityWarning,
		Type:       "hold_placed",
		Message:    reason,
		CreatedAt:  now,
	}
	if err := uc.ledgerRepo.CreateAlert(ctx, tx, alert); err != nil {
		return nil, err
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   p.ID,
		AggregateType: domain.AggregateCreditProfile,
		EventType:     domain.EventHoldPlaced,
		Payload: domain.HoldEvent{
			CustomerID: p.CustomerID,
			HoldID:     hold.ID,
			HoldType:   string(domain.HoldManual),
			Reason:     reason,
		},
		CreatedAt: now,
	}
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return hold, nil
}

// EvaluateHold places an auto hold if the profile breaches its
// threshold and none is active.
func (uc *CreditUseCase) EvaluateHold(ctx context.Context, customerID string) (*domain.CustomerCreditProfile, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	p, err := uc.profileRepo.GetByCustomerForUpdate(ctx, tx, customerID)
	if err != nil {
		return nil, err
	}
	if err := uc.evaluateHoldLocked(ctx, tx, p); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// evaluateHoldLocked runs inside the caller's transaction with the
// profile row locked.
func (uc *CreditUseCase) evaluateHoldLocked(ctx context.Context, tx Transaction, p *domain.CustomerCreditProfile) error {
	ts := uc.clock.Now().UTC()

	if !p.BreachesThreshold() {
		return nil
	}
	active, err := uc.ledgerRepo.GetActiveHold(ctx, tx, p.ID)
	if err != nil && domain.KindOf(err) != domain.KindNotFound {
		return err
	}
	if active != nil {
		return nil
	}

	holdType := domain.HoldOverLimit
	reason := fmt.Sprintf("credit used %d reached %d%% of limit %d", p.CreditUsed, p.UtilizationPct(), p.CreditLimit)
	hold := &domain.CreditHold{
		ID:         uc.idGen.Generate(),
		ProfileID:  p.ID,
		CustomerID: p.CustomerID,
		Type:       holdType,
		Reason:     reason,
		Status:     domain.HoldActive,
		PlacedAt:   ts,
		PlacedBy:   "system",
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
	if err := uc.ledgerRepo.CreateHold(ctx, tx, hold); err != nil {
		return err
	}

	alert := &domain.CreditAlert{
		ID:          uc.idGen.Generate(),
		ProfileID:   p.ID,
		CustomerID:  p.CustomerID,
		Severity:    domain.SeverityHigh,
		Type:        "hold_placed",
		Threshold:   int64(p.HoldThresholdPct),
		ActualValue: int64(p.UtilizationPct()),
		Message:     reason,
		CreatedAt:   ts,
	}
	if err := uc.ledgerRepo.CreateAlert(ctx, tx, alert); err != nil {
		return err
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   p.ID,
		AggregateType: domain.AggregateCreditProfile,
		EventType:     domain.EventHoldPlaced,
		Payload: domain.HoldEvent{
			CustomerID: p.CustomerID,
			HoldID:     hold.ID,
			HoldType:   string(holdType),
			Reason:     reason,
		},
		CreatedAt: ts,
	}
	return uc.outboxRepo.Create(ctx, tx, event)
}

// ReleaseHold releases an active hold with a reason.
func (uc *CreditUseCase) ReleaseHold(ctx context.Context, holdID string, actor Actor, reason string) (*domain.CreditHold, error) {
	hold, err := uc.ledgerRepo.GetHold(ctx, holdID)
	if err != nil {
		return nil, err
	}
	if hold.Status != domain.HoldActive {
		return nil, domain.ErrHoldNotActive
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	now := uc.clock.Now().UTC()
	if err := uc.ledgerRepo.ReleaseHold(ctx, tx, hold.ID, actor.ID, reason, now); err != nil {
		return nil, err
	}
	hold.Status = domain.HoldReleased
	hold.ReleasedAt = &now
	hold.ReleasedBy = actor.ID
	hold.OverrideReason = reason

	p, err := uc.profileRepo.GetByCustomer(ctx, hold.CustomerID)
	if err != nil {
		return nil, err
	}
	ct := &domain.CreditTransaction{
		ID:            uc.idGen.Generate(),
		ProfileID:     hold.ProfileID,
		CustomerID:    hold.CustomerID,
		Kind:          domain.CreditTxHoldReleased,
		PreviousUsed:  p.CreditUsed,
		NewUsed:       p.CreditUsed,
		ReferenceID:   "release:" + hold.ID,
		ReferenceKind: "hold",
		Note:          reason,
		CreatedAt:     now,
		CreatedBy:     actor.ID,
	}
	if err := uc.ledgerRepo.CreateTransaction(ctx, tx, ct); err != nil {
		return nil, err
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   hold.ProfileID,
		AggregateType: domain.AggregateCreditProfile,
		EventType:     domain.EventHoldReleased,
		Payload: domain.HoldEvent{
			CustomerID: hold.CustomerID,
			HoldID:     hold.ID,
			HoldType:   string(hold.Type),
			Reason:     reason,
		},
		CreatedAt: now,
	}
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return hold, nil
}

// RefreshRiskInput carries the receivables aggregates the engine does
// not own.
type RefreshRiskInput struct {
	CustomerID          string
	OutstandingInvoices domain.Money
	PendingOrders       domain.Money
	OverdueAmount       domain.Money
	OverdueDaysAvg      int
}

// RefreshRisk recomputes the risk tier and raises an alert on a
// worsening crossing.
func (uc *CreditUseCase) RefreshRisk(ctx context.Context, input RefreshRiskInput) (*domain.CustomerCreditProfile, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	p, err := uc.profileRepo.GetByCustomerForUpdate(ctx, tx, input.CustomerID)
	if err != nil {
		return nil, err
	}

	now := uc.clock.Now().UTC()
	p.OutstandingInvoices = input.OutstandingInvoices
	p.PendingOrders = input.PendingOrders
	p.OverdueAmount = input.OverdueAmount
	p.OverdueDaysAvg = input.OverdueDaysAvg

	previous := p.RiskLevel
	p.RiskLevel = p.ComputeRiskLevel()
	p.UpdatedAt = now
	if err := uc.profileRepo.Update(ctx, tx, p); err != nil {
		return nil, err
	}

	if riskRank(p.RiskLevel) > riskRank(previous) {
		alert := &domain.CreditAlert{
			ID:          uc.idGen.Generate(),
			ProfileID:   p.ID,
			CustomerID:  p.CustomerID,
			Severity:    severityFor(p.RiskLevel),
			Type:        "risk_increased",
			ActualValue: int64(p.UtilizationPct()),
			Message:     fmt.Sprintf("risk level moved from %s to %s", previous, p.RiskLevel),
			CreatedAt:   now,
		}
		if err := uc.ledgerRepo.CreateAlert(ctx, tx, alert); err != nil {
			return nil, err
		}
		event := &domain.OutboxEvent{
			ID:            uc.idGen.Generate(),
			AggregateID:   p.ID,
			AggregateType: domain.AggregateCreditProfile,
			EventType:     domain.EventCreditAlertRaised,
			Payload: domain.CreditAlertEvent{
				CustomerID:  p.CustomerID,
				AlertID:     alert.ID,
				Severity:    string(alert.Severity),
				AlertType:   alert.Type,
				ActualValue: alert.ActualValue,
			},
			CreatedAt: now,
		}
		if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// GetProfile fetches a credit profile by customer.
func (uc *CreditUseCase) GetProfile(ctx context.Context, customerID string) (*domain.CustomerCreditProfile, error) {
	return uc.profileRepo.GetByCustomer(ctx, customerID)
}

// ListTransactions pages through a profile's credit transactions.
func (uc *CreditUseCase) ListTransactions(ctx context.Context, profileID string, page domain.Page) (domain.PageResult[*domain.CreditTransaction], error) {
	page = page.Normalize()
	items, total, err := uc.ledgerRepo.ListTransactions(ctx, profileID, page)
	if err != nil {
		return domain.PageResult[*domain.CreditTransaction]{}, err
	}
	return domain.NewPageResult(items, total, page), nil
}

// ListOnHold pages through profiles with an active hold.
func (uc *CreditUseCase) ListOnHold(ctx context.Context, page domain.Page) (domain.PageResult[*domain.CustomerCreditProfile], error) {
	page = page.Normalize()
	items, total, err := uc.profileRepo.ListOnHold(ctx, page)
	if err != nil {
		return domain.PageResult[*domain.CustomerCreditProfile]{}, err
	}
	return domain.NewPageResult(items, total, page), nil
}

// ListHighRisk pages through High and Critical risk profiles.
func (uc *CreditUseCase) ListHighRisk(ctx context.Context, page domain.Page) (domain.PageResult[*domain.CustomerCreditProfile], error) {
	page = page.Normalize()
	items, total, err := uc.profileRepo.ListHighRisk(ctx, page)
	if err != nil {
		return domain.PageResult[*domain.CustomerCreditProfile]{}, err
	}
	return domain.NewPageResult(items, total, page), nil
}

// Summary aggregates exposure across every profile.
func (uc *CreditUseCase) Summary(ctx context.Context) (*domain.CreditSummary, error) {
	return uc.profileRepo.Summary(ctx)
}

// AcknowledgeAlert marks an alert as read.
func (uc *CreditUseCase) AcknowledgeAlert(ctx context.Context, alertID string, actor Actor) error {
	return uc.ledgerRepo.AcknowledgeAlert(ctx, alertID, actor.ID, uc.clock.Now().UTC())
}

// ListLimitChanges pages through a profile's limit revision history.
func (uc *CreditUseCase) ListLimitChanges(ctx context.Context, profileID string, page domain.Page) (domain.PageResult[*domain.CreditLimitChange], error) {
	page = page.Normalize()
	items, total, err := uc.ledgerRepo.ListLimitChanges(ctx, profileID, page)
	if err != nil {
		return domain.PageResult[*domain.CreditLimitChange]{}, err
	}
	return domain.NewPageResult(items, total, page), nil
}

func riskRank(r domain.RiskLevel) int {
	switch r {
	case domain.RiskLow:
		return 0
	case domain.RiskMedium:
		return 1
	case domain.RiskHigh:
		return 2
	default:
		return 3
	}
}

func severityFor(r domain.RiskLevel) domain.AlertSeverity {
	switch r {
	case domain.RiskCritical:
		return domain.SeverityCritical
	case domain.RiskHigh:
		return domain.SeverityHigh
	default:
		return domain.SeverityInfo
	}
}
