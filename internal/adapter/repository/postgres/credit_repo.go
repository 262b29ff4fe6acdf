package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/usecase"
)

// CreditProfileRepository implements usecase.CreditProfileRepository.
type CreditProfileRepository struct {
	pool *pgxpool.Pool
}

// NewCreditProfileRepository creates a new CreditProfileRepository.
func NewCreditProfileRepository(pool *pgxpool.Pool) *CreditProfileRepository {
	return &CreditProfileRepository{pool: pool}
}

const profileColumns = `id, customer_id, currency, credit_limit, credit_used, outstanding_invoices, pending_orders, overdue_amount, overdue_days_avg, credit_score, risk_level, auto_hold_enabled, hold_threshold_pct, status, created_at, updated_at`

// Create persists a credit profile.
func (r *CreditProfileRepository) Create(ctx context.Context, p *domain.CustomerCreditProfile) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO credit_profiles (`+profileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		p.ID, p.CustomerID, p.Currency, int64(p.CreditLimit), int64(p.CreditUsed),
		int64(p.OutstandingInvoices), int64(p.PendingOrders), int64(p.OverdueAmount),
		p.OverdueDaysAvg, p.CreditScore, string(p.RiskLevel), p.AutoHoldEnabled,
		p.HoldThresholdPct, string(p.Status), tsz(p.CreatedAt), tsz(p.UpdatedAt),
	)
	return err
}

// GetByCustomer retrieves a customer's credit profile.
func (r *CreditProfileRepository) GetByCustomer(ctx context.Context, customerID string) (*domain.CustomerCreditProfile, error) {
	return r.getProfile(ctx, r.pool, "", customerID)
}

// GetByCustomerForUpdate locks a profile row so exposure updates serialize.
func (r *CreditProfileRepository) GetByCustomerForUpdate(ctx context.Context, tx usecase.Transaction, customerID string) (*domain.CustomerCreditProfile, error) {
	return r.getProfile(ctx, txq(tx), " FOR UPDATE", customerID)
}

func (r *CreditProfileRepository) getProfile(ctx context.Context, q querier, suffix, customerID string) (*domain.CustomerCreditProfile, error) {
	p, err := scanProfile(q.QueryRow(ctx, `
		SELECT `+profileColumns+` FROM credit_profiles WHERE customer_id = $1`+suffix,
		customerID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, err
	}
	return p, nil
}

// Update rewrites a profile's exposure and risk figures.
func (r *CreditProfileRepository) Update(ctx context.Context, tx usecase.Transaction, p *domain.CustomerCreditProfile) error {
	_, err := txq(tx).Exec(ctx, `
		UPDATE credit_profiles
		SET credit_limit = $2, credit_used = $3, outstanding_invoices = $4,
		    pending_orders = $5, overdue_amount = $6, overdue_days_avg = $7,
		    credit_score = $8, risk_level = $9, auto_hold_enabled = $10,
		    hold_threshold_pct = $11, status = $12, updated_at = $13
		WHERE id = $1`,
		p.ID, int64(p.CreditLimit), int64(p.CreditUsed), int64(p.OutstandingInvoices),
		int64(p.PendingOrders), int64(p.OverdueAmount), p.OverdueDaysAvg,
		p.CreditScore, string(p.RiskLevel), p.AutoHoldEnabled, p.HoldThresholdPct,
		string(p.Status), tsz(p.UpdatedAt),
	)
	return err
}

// List lists profiles with pagination.
func (r *CreditProfileRepository) List(ctx context.Context, page domain.Page) ([]*domain.CustomerCreditProfile, int64, error) {
	page = page.Normalize()

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM credit_profiles`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+profileColumns+` FROM credit_profiles
		ORDER BY customer_id
		LIMIT $1 OFFSET $2`,
		page.PerPage, page.Offset(),
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	profiles := make([]*domain.CustomerCreditProfile, 0, page.PerPage)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, 0, err
		}
		profiles = append(profiles, p)
	}
	return profiles, total, rows.Err()
}

// ListOnHold lists profiles that currently carry an active hold,
// most recently updated first.
func (r *CreditProfileRepository) ListOnHold(ctx context.Context, page domain.Page) ([]*domain.CustomerCreditProfile, int64, error) {
	const join = `
		FROM credit_profiles cp
		JOIN credit_holds ch ON ch.profile_id = cp.id AND ch.status = 'Active'`
	return r.listFiltered(ctx, page, join, "cp.updated_at DESC")
}

// ListHighRisk lists High and Critical risk profiles, worst overdue
// exposure first.
func (r *CreditProfileRepository) ListHighRisk(ctx context.Context, page domain.Page) ([]*domain.CustomerCreditProfile, int64, error) {
	const join = `
		FROM credit_profiles cp
		WHERE cp.risk_level IN ('High', 'Critical')`
	return r.listFiltered(ctx, page, join, "cp.overdue_amount DESC")
}

func (r *CreditProfileRepository) listFiltered(ctx context.Context, page domain.Page, join, order string) ([]*domain.CustomerCreditProfile, int64, error) {
	page = page.Normalize()

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*)`+join).Scan(&total); err != nil {
		return nil, 0, err
	}

	cols := "cp." + strings.ReplaceAll(profileColumns, ", ", ", cp.")
	rows, err := r.pool.Query(ctx, `
		SELECT `+cols+join+`
		ORDER BY `+order+`
		LIMIT $1 OFFSET $2`,
		page.PerPage, page.Offset(),
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	profiles := make([]*domain.CustomerCreditProfile, 0, page.PerPage)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, 0, err
		}
		profiles = append(profiles, p)
	}
	return profiles, total, rows.Err()
}

// Summary aggregates exposure across the whole credit book.
func (r *CreditProfileRepository) Summary(ctx context.Context) (*domain.CreditSummary, error) {
	var s domain.CreditSummary
	var limit, used, avail, overdue int64
	err := r.pool.QueryRow(ctx, `
		SELECT
			count(*),
			COALESCE(SUM(credit_limit), 0),
			COALESCE(SUM(credit_used), 0),
			COALESCE(SUM(credit_limit - credit_used), 0),
			COALESCE(SUM(overdue_amount), 0),
			(SELECT count(DISTINCT profile_id) FROM credit_holds WHERE status = 'Active'),
			count(*) FILTER (WHERE risk_level IN ('High', 'Critical'))
		FROM credit_profiles`,
	).Scan(
		&s.TotalCustomers, &limit, &used, &avail, &overdue,
		&s.CustomersOnHold, &s.HighRiskCustomers,
	)
	if err != nil {
		return nil, err
	}
	s.TotalCreditLimit = domain.Money(limit)
	s.TotalCreditUsed = domain.Money(used)
	s.TotalAvailable = domain.Money(avail)
	s.TotalOverdue = domain.Money(overdue)
	if limit > 0 {
		s.AvgUtilizationPct = float64(used) / float64(limit) * 100
	}
	return &s, nil
}

func scanProfile(row pgx.Row) (*domain.CustomerCreditProfile, error) {
	var (
		p                                      domain.CustomerCreditProfile
		risk, status                           string
		limit, used, invoices, orders, overdue int64
	)
	err := row.Scan(
		&p.ID, &p.CustomerID, &p.Currency, &limit, &used, &invoices, &orders,
		&overdue, &p.OverdueDaysAvg, &p.CreditScore, &risk, &p.AutoHoldEnabled,
		&p.HoldThresholdPct, &status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.CreditLimit = domain.Money(limit)
	p.CreditUsed = domain.Money(used)
	p.OutstandingInvoices = domain.Money(invoices)
	p.PendingOrders = domain.Money(orders)
	p.OverdueAmount = domain.Money(overdue)
	p.RiskLevel = domain.RiskLevel(risk)
	p.Status = domain.ProfileStatus(status)
	return &p, nil
}

// CreditLedgerRepository implements usecase.CreditLedgerRepository.
type CreditLedgerRepository struct {
	pool *pgxpool.Pool
}

// NewCreditLedgerRepository creates a new CreditLedgerRepository.
func NewCreditLedgerRepository(pool *pgxpool.Pool) *CreditLedgerRepository {
	return &CreditLedgerRepository{pool: pool}
}

// CreateTransaction records one exposure movement.
func (r *CreditLedgerRepository) CreateTransaction(ctx context.Context, tx usecase.Transaction, ct *domain.CreditTransaction) error {
	_, err := txq(tx).Exec(ctx, `
		INSERT INTO credit_transactions (id, profile_id, customer_id, kind, delta, previous_used, new_used, reference_id, reference_kind, note, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		ct.ID, ct.ProfileID, ct.CustomerID, string(ct.Kind), int64(ct.Delta),
		int64(ct.PreviousUsed), int64(ct.NewUsed), ct.ReferenceID,
		ct.ReferenceKind, ct.Note, tsz(ct.CreatedAt), ct.CreatedBy,
	)
	return err
}

// TransactionExists reports whether a reference was already applied to
// a profile, making redeliveries idempotent.
func (r *CreditLedgerRepository) TransactionExists(ctx context.Context, tx usecase.Transaction, profileID, referenceID string) (bool, error) {
	var exists bool
	err := txq(tx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM credit_transactions
			WHERE profile_id = $1 AND reference_id = $2
		)`,
		profileID, referenceID,
	).Scan(&exists)
	return exists, err
}

// ListTransactions lists a profile's movements newest-first.
func (r *CreditLedgerRepository) ListTransactions(ctx context.Context, profileID string, page domain.Page) ([]*domain.CreditTransaction, int64, error) {
	page = page.Normalize()

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM credit_transactions WHERE profile_id = $1`, profileID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, profile_id, customer_id, kind, delta, previous_used, new_used, reference_id, reference_kind, note, created_at, created_by
		FROM credit_transactions
		WHERE profile_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		profileID, page.PerPage, page.Offset(),
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	transactions := make([]*domain.CreditTransaction, 0, page.PerPage)
	for rows.Next() {
		var (
			ct                  domain.CreditTransaction
			kind                string
			delta, prev, newUse int64
		)
		err := rows.Scan(
			&ct.ID, &ct.ProfileID, &ct.CustomerID, &kind, &delta, &prev,
			&newUse, &ct.ReferenceID, &ct.ReferenceKind, &ct.Note,
			&ct.CreatedAt, &ct.CreatedBy,
		)
		if err != nil {
			return nil, 0, err
		}
		ct.Kind = domain.CreditTxKind(kind)
		ct.Delta = domain.Money(delta)
		ct.PreviousUsed = domain.Money(prev)
		ct.NewUsed = domain.Money(newUse)
		transactions = append(transactions, &ct)
	}
	return transactions, total, rows.Err()
}

const holdColumns = `id, profile_id, customer_id, hold_type, reason, status, placed_at, placed_by, released_at, released_by, override_reason, created_at, updated_at`

// CreateHold places a credit hold.
func (r *CreditLedgerRepository) CreateHold(ctx context.Context, tx usecase.Transaction, hold *domain.CreditHold) error {
	_, err := txq(tx).Exec(ctx, `
		INSERT INTO credit_holds (`+holdColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		hold.ID, hold.ProfileID, hold.CustomerID, string(hold.Type),
		hold.Reason, string(hold.Status), tsz(hold.PlacedAt), hold.PlacedBy,
		tszPtr(hold.ReleasedAt), hold.ReleasedBy, hold.OverrideReason,
		tsz(hold.CreatedAt), tsz(hold.UpdatedAt),
	)
	return err
}

// GetHold retrieves a hold by ID.
func (r *CreditLedgerRepository) GetHold(ctx context.Context, id string) (*domain.CreditHold, error) {
	hold, err := scanHold(r.pool.QueryRow(ctx, `SELECT `+holdColumns+` FROM credit_holds WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrHoldNotFound
		}
		return nil, err
	}
	return hold, nil
}

// GetActiveHold returns a profile's active hold, or ErrHoldNotFound.
func (r *CreditLedgerRepository) GetActiveHold(ctx context.Context, tx usecase.Transaction, profileID string) (*domain.CreditHold, error) {
	hold, err := scanHold(txq(tx).QueryRow(ctx, `
		SELECT `+holdColumns+` FROM credit_holds
		WHERE profile_id = $1 AND status = $2`,
		profileID, string(domain.HoldActive),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrHoldNotFound
		}
		return nil, err
	}
	return hold, nil
}

// ReleaseHold marks a hold released.
func (r *CreditLedgerRepository) ReleaseHold(ctx context.Context, tx usecase.Transaction, id, releasedBy, reason string, releasedAt time.Time) error {
	_, err := txq(tx).Exec(ctx, `
		UPDATE credit_holds
		SET status = $2, released_at = $3, released_by = $4, override_reason = $5, updated_at = $3
		WHERE id = $1`,
		id, string(domain.HoldReleased), tsz(releasedAt), releasedBy, reason,
	)
	return err
}

// CreateAlert records a credit alert.
func (r *CreditLedgerRepository) CreateAlert(ctx context.Context, tx usecase.Transaction, alert *domain.CreditAlert) error {
	_, err := txq(tx).Exec(ctx, `
		INSERT INTO credit_alerts (id, profile_id, customer_id, severity, alert_type, threshold, actual_value, message, acknowledged, acknowledged_by, acknowledged_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		alert.ID, alert.ProfileID, alert.CustomerID, string(alert.Severity),
		alert.Type, alert.Threshold, alert.ActualValue, alert.Message,
		alert.Acknowledged, alert.AcknowledgedBy, tszPtr(alert.AcknowledgedAt),
		tsz(alert.CreatedAt),
	)
	return err
}

// ListAlerts lists a profile's alerts newest-first.
func (r *CreditLedgerRepository) ListAlerts(ctx context.Context, profileID string, page domain.Page) ([]*domain.CreditAlert, int64, error) {
	page = page.Normalize()

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM credit_alerts WHERE profile_id = $1`, profileID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, profile_id, customer_id, severity, alert_type, threshold, actual_value, message, acknowledged, acknowledged_by, acknowledged_at, created_at
		FROM credit_alerts
		WHERE profile_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		profileID, page.PerPage, page.Offset(),
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	alerts := make([]*domain.CreditAlert, 0, page.PerPage)
	for rows.Next() {
		var (
			alert          domain.CreditAlert
			severity       string
			acknowledgedAt *time.Time
		)
		err := rows.Scan(
			&alert.ID, &alert.ProfileID, &alert.CustomerID, &severity,
			&alert.Type, &alert.Threshold, &alert.ActualValue, &alert.Message,
			&alert.Acknowledged, &alert.AcknowledgedBy, &acknowledgedAt,
			&alert.CreatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		alert.Severity = domain.AlertSeverity(severity)
		alert.AcknowledgedAt = acknowledgedAt
		alerts = append(alerts, &alert)
	}
	return alerts, total, rows.Err()
}

// AcknowledgeAlert marks an alert as read by a user.
func (r *CreditLedgerRepository) AcknowledgeAlert(ctx context.Context, alertID, userID string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE credit_alerts
		SET acknowledged = TRUE, acknowledged_by = $2, acknowledged_at = $3
		WHERE id = $1`,
		alertID, userID, tsz(at),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlertNotFound
	}
	return nil
}

// CreateLimitChange records one credit limit revision.
func (r *CreditLedgerRepository) CreateLimitChange(ctx context.Context, tx usecase.Transaction, change *domain.CreditLimitChange) error {
	_, err := txq(tx).Exec(ctx, `
		INSERT INTO credit_limit_changes (id, profile_id, customer_id, previous_limit, new_limit, reason, changed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		change.ID, change.ProfileID, change.CustomerID,
		int64(change.PreviousLimit), int64(change.NewLimit),
		change.Reason, change.ChangedBy, tsz(change.CreatedAt),
	)
	return err
}

// ListLimitChanges lists a profile's limit revisions newest-first.
func (r *CreditLedgerRepository) ListLimitChanges(ctx context.Context, profileID string, page domain.Page) ([]*domain.CreditLimitChange, int64, error) {
	page = page.Normalize()

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM credit_limit_changes WHERE profile_id = $1`, profileID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, profile_id, customer_id, previous_limit, new_limit, reason, changed_by, created_at
		FROM credit_limit_changes
		WHERE profile_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		profileID, page.PerPage, page.Offset(),
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	changes := make([]*domain.CreditLimitChange, 0, page.PerPage)
	for rows.Next() {
		var (
			change          domain.CreditLimitChange
			prevLim, newLim int64
		)
		err := rows.Scan(
			&change.ID, &change.ProfileID, &change.CustomerID, &prevLim,
			&newLim, &change.Reason, &change.ChangedBy, &change.CreatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		change.PreviousLimit = domain.Money(prevLim)
		change.NewLimit = domain.Money(newLim)
		changes = append(changes, &change)
	}
	return changes, total, rows.Err()
}

func scanHold(row pgx.Row) (*domain.CreditHold, error) {
	var (
		hold             domain.CreditHold
		holdType, status string
		releasedAt       *time.Time
	)
	err := row.Scan(
		&hold.ID, &hold.ProfileID, &hold.CustomerID, &holdType, &hold.Reason,
		&status, &hold.PlacedAt, &hold.PlacedBy, &releasedAt, &hold.ReleasedBy,
		&hold.OverrideReason, &hold.CreatedAt, &hold.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	hold.Type = domain.HoldType(holdType)
	hold.Status = domain.HoldStatus(status)
	hold.ReleasedAt = releasedAt
	return &hold, nil
}
