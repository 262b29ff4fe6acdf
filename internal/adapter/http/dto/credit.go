package dto

import (
	"time"

	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/usecase"
)

// CreateProfileRequest represents a request to open a credit profile.
type CreateProfileRequest struct {
	CustomerID       string `json:"customer_id"`
	Currency         string `json:"currency"`
	CreditLimit      int64  `json:"credit_limit"`
	AutoHoldEnabled  bool   `json:"auto_hold_enabled,omitempty"`
	HoldThresholdPct int    `json:"hold_threshold_pct,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateProfileRequest) ToUseCaseInput() usecase.CreateProfileInput {
	return usecase.CreateProfileInput{
		CustomerID:       r.CustomerID,
		Currency:         r.Currency,
		CreditLimit:      r.CreditLimit,
		AutoHoldEnabled:  r.AutoHoldEnabled,
		HoldThresholdPct: r.HoldThresholdPct,
	}
}

// ApplyTransactionRequest moves a customer's credit exposure.
type ApplyTransactionRequest struct {
	CustomerID    string `json:"customer_id"`
	Kind          string `json:"kind"`
	Delta         int64  `json:"delta"`
	ReferenceID   string `json:"reference_id"`
	ReferenceKind string `json:"reference_kind,omitempty"`
	Note          string `json:"note,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *ApplyTransactionRequest) ToUseCaseInput(actor usecase.Actor) usecase.ApplyTransactionInput {
	return usecase.ApplyTransactionInput{
		CustomerID:    r.CustomerID,
		Kind:          domain.CreditTxKind(r.Kind),
		Delta:         r.Delta,
		ReferenceID:   r.ReferenceID,
		ReferenceKind: r.ReferenceKind,
		Note:          r.Note,
		Actor:         actor,
	}
}

// ReleaseHoldRequest releases an active credit hold.
type ReleaseHoldRequest struct {
	Reason string `json:"reason"`
}

// UpdateLimitRequest revises a customer's credit limit.
type UpdateLimitRequest struct {
	NewLimit int64  `json:"new_limit"`
	Reason   string `json:"reason,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *UpdateLimitRequest) ToUseCaseInput(customerID string, actor usecase.Actor) usecase.UpdateLimitInput {
	return usecase.UpdateLimitInput{
		CustomerID: customerID,
		NewLimit:   r.NewLimit,
		Reason:     r.Reason,
		Actor:      actor,
	}
}

// ManualHoldRequest places a credit hold by hand.
type ManualHoldRequest struct {
	Reason string `json:"reason"`
}

// RefreshRiskRequest feeds fresh exposure figures into risk scoring.
type RefreshRiskRequest struct {
	OutstandingInvoices int64 `json:"outstanding_invoices"`
	PendingOrders       int64 `json:"pending_orders"`
	OverdueAmount       int64 `json:"overdue_amount"`
	OverdueDaysAvg      int   `json:"overdue_days_avg"`
}

// ToUseCaseInput converts to use case input.
func (r *RefreshRiskRequest) ToUseCaseInput(customerID string) usecase.RefreshRiskInput {
	return usecase.RefreshRiskInput{
		CustomerID:          customerID,
		OutstandingInvoices: r.OutstandingInvoices,
		PendingOrders:       r.PendingOrders,
		OverdueAmount:       r.OverdueAmount,
		OverdueDaysAvg:      r.OverdueDaysAvg,
	}
}

// ProfileResponse represents a customer credit profile.
type ProfileResponse struct {
	ID                  string    `json:"id"`
	CustomerID          string    `json:"customer_id"`
	Currency            string    `json:"currency"`
	CreditLimit         int64     `json:"credit_limit"`
	CreditUsed          int64     `json:"credit_used"`
	Available           int64     `json:"available"`
	OutstandingInvoices int64     `json:"outstanding_invoices"`
	PendingOrders       int64     `json:"pending_orders"`
	OverdueAmount       int64     `json:"overdue_amount"`
	OverdueDaysAvg      int       `json:"overdue_days_avg"`
	CreditScore         int       `json:"credit_score"`
	RiskLevel           string    `json:"risk_level"`
	AutoHoldEnabled     bool      `json:"auto_hold_enabled"`
	HoldThresholdPct    int       `json:"hold_threshold_pct"`
	Status              string    `json:"status"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// ProfileFromDomain converts a domain profile to a response.
func ProfileFromDomain(p *domain.CustomerCreditProfile) ProfileResponse {
	return ProfileResponse{
		ID:                  p.ID,
		CustomerID:          p.CustomerID,
		Currency:            p.Currency,
		CreditLimit:         p.CreditLimit,
		CreditUsed:          p.CreditUsed,
		Available:           p.CreditLimit - p.CreditUsed,
		OutstandingInvoices: p.OutstandingInvoices,
		PendingOrders:       p.PendingOrders,
		OverdueAmount:       p.OverdueAmount,
		OverdueDaysAvg:      p.OverdueDaysAvg,
		CreditScore:         p.CreditScore,
		RiskLevel:           string(p.RiskLevel),
		AutoHoldEnabled:     p.AutoHoldEnabled,
		HoldThresholdPct:    p.HoldThresholdPct,
		Status:              string(p.Status),
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
}

// CreditTransactionResponse represents one credit ledger movement.
type CreditTransactionResponse struct {
	ID            string    `json:"id"`
	CustomerID    string    `json:"customer_id"`
	Kind          string    `json:"kind"`
	Delta         int64     `json:"delta"`
	PreviousUsed  int64     `json:"previous_used"`
	NewUsed       int64     `json:"new_used"`
	ReferenceID   string    `json:"reference_id"`
	ReferenceKind string    `json:"reference_kind,omitempty"`
	Note          string    `json:"note,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	CreatedBy     string    `json:"created_by,omitempty"`
}

// CreditTransactionFromDomain converts a domain transaction to a response.
func CreditTransactionFromDomain(tx *domain.CreditTransaction) CreditTransactionResponse {
	return CreditTransactionResponse{
		ID:            tx.ID,
		CustomerID:    tx.CustomerID,
		Kind:          string(tx.Kind),
		Delta:         tx.Delta,
		PreviousUsed:  tx.PreviousUsed,
		NewUsed:       tx.NewUsed,
		ReferenceID:   tx.ReferenceID,
		ReferenceKind: tx.ReferenceKind,
		Note:          tx.Note,
		CreatedAt:     tx.CreatedAt,
		CreatedBy:     tx.CreatedBy,
	}
}

// CreditLimitChangeResponse represents one credit limit revision.
type CreditLimitChangeResponse struct {
	ID            string    `json:"id"`
	CustomerID    string    `json:"customer_id"`
	PreviousLimit int64     `json:"previous_limit"`
	NewLimit      int64     `json:"new_limit"`
	Reason        string    `json:"reason,omitempty"`
	ChangedBy     string    `json:"changed_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreditLimitChangeFromDomain converts a domain limit change to a response.
func CreditLimitChangeFromDomain(c *domain.CreditLimitChange) CreditLimitChangeResponse {
	return CreditLimitChangeResponse{
		ID:            c.ID,
		CustomerID:    c.CustomerID,
		PreviousLimit: c.PreviousLimit,
		NewLimit:      c.NewLimit,
		Reason:        c.Reason,
		ChangedBy:     c.ChangedBy,
		CreatedAt:     c.CreatedAt,
	}
}

// CreditSummaryResponse aggregates exposure across the credit book.
type CreditSummaryResponse struct {
	TotalCustomers    int64   `json:"total_customers"`
	TotalCreditLimit  int64   `json:"total_credit_limit"`
	TotalCreditUsed   int64   `json:"total_credit_used"`
	TotalAvailable    int64   `json:"total_available"`
	TotalOverdue      int64   `json:"total_overdue"`
	CustomersOnHold   int64   `json:"customers_on_hold"`
	HighRiskCustomers int64   `json:"high_risk_customers"`
	AvgUtilizationPct float64 `json:"avg_utilization_pct"`
}

// CreditSummaryFromDomain converts a domain summary to a response.
func CreditSummaryFromDomain(s *domain.CreditSummary) CreditSummaryResponse {
	return CreditSummaryResponse{
		TotalCustomers:    s.TotalCustomers,
		TotalCreditLimit:  s.TotalCreditLimit,
		TotalCreditUsed:   s.TotalCreditUsed,
		TotalAvailable:    s.TotalAvailable,
		TotalOverdue:      s.TotalOverdue,
		CustomersOnHold:   s.CustomersOnHold,
		HighRiskCustomers: s.HighRiskCustomers,
		AvgUtilizationPct: s.AvgUtilizationPct,
	}
}

// HoldResponse represents a credit hold.
type HoldResponse struct {
	ID             string     `json:"id"`
	CustomerID     string     `json:"customer_id"`
	Type           string     `json:"type"`
	Reason         string     `json:"reason,omitempty"`
	Status         string     `json:"status"`
	PlacedAt       time.Time  `json:"placed_at"`
	PlacedBy       string     `json:"placed_by,omitempty"`
	ReleasedAt     *time.Time `json:"released_at,omitempty"`
	ReleasedBy     string     `json:"released_by,omitempty"`
	OverrideReason string     `json:"override_reason,omitempty"`
}

// HoldFromDomain converts a domain hold to a response.
func HoldFromDomain(h *domain.CreditHold) HoldResponse {
	return HoldResponse{
		ID:             h.ID,
		CustomerID:     h.CustomerID,
		Type:           string(h.Type),
		Reason:         h.Reason,
		Status:         string(h.Status),
		PlacedAt:       h.PlacedAt,
		PlacedBy:       h.PlacedBy,
		ReleasedAt:     h.ReleasedAt,
		ReleasedBy:     h.ReleasedBy,
		OverrideReason: h.OverrideReason,
	}
}
