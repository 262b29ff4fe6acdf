package domain

import (
	"time"
)

// RiskLevel tiers customer credit risk.
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskMedium   RiskLevel = "Medium"
	RiskHigh     RiskLevel = "High"
	RiskCritical RiskLevel = "Critical"
)

// ProfileStatus is the lifecycle state of a credit profile.
type ProfileStatus string

const (
	ProfileActive    ProfileStatus = "Active"
	ProfileSuspended ProfileStatus = "Suspended"
	ProfileClosed    ProfileStatus = "Closed"
)

// CustomerCreditProfile tracks a customer's credit exposure.
type CustomerCreditProfile struct {
	ID                  string
	CustomerID          string
	Currency            string
	CreditLimit         Money
	CreditUsed          Money
	OutstandingInvoices Money
	PendingOrders       Money
	OverdueAmount       Money
	OverdueDaysAvg      int
	CreditScore         int
	RiskLevel           RiskLevel
	AutoHoldEnabled     bool
	HoldThresholdPct    int
	Status              ProfileStatus
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// AvailableCredit is limit minus used; may be negative when over limit.
func (p *CustomerCreditProfile) AvailableCredit() Money {
	return p.CreditLimit - p.CreditUsed
}

// UtilizationPct returns credit used as a percentage of the limit.
// A zero limit with any usage reads as fully utilized.
func (p *CustomerCreditProfile) UtilizationPct() int {
	if p.CreditLimit <= 0 {
		if p.CreditUsed > 0 {
			return 100
		}
		return 0
	}
	return int(p.CreditUsed * 100 / p.CreditLimit)
}

// BreachesThreshold reports whether auto-hold should engage.
func (p *CustomerCreditProfile) BreachesThreshold() bool {
	if !p.AutoHoldEnabled || p.CreditLimit <= 0 {
		return false
	}
	return p.CreditUsed*100 >= p.CreditLimit*Money(p.HoldThresholdPct)
}

// ComputeRiskLevel derives the tier from utilization and overdue aging.
func (p *CustomerCreditProfile) ComputeRiskLevel() RiskLevel {
	util := p.UtilizationPct()
	switch {
	case util >= 100 || p.OverdueDaysAvg > 60:
		return RiskCritical
	case util >= 70 || p.OverdueDaysAvg > 30:
		return RiskHigh
	case util >= 30 || p.OverdueAmount > 0:
		return RiskMedium
	default:
		return RiskLow
	}
}

// HoldStatus is the lifecycle state of a credit hold.
type HoldStatus string

const (
	HoldActive   HoldStatus = "Active"
	HoldReleased HoldStatus = "Released"
)

// HoldType classifies why a hold was placed.
type HoldType string

const (
	HoldOverLimit HoldType = "OverLimit"
	HoldOverdue   HoldType = "Overdue"
	HoldManual    HoldType = "Manual"
)

// CreditHold blocks new orders for a customer until released.
type CreditHold struct {
	ID             string
	ProfileID      string
	CustomerID     string
	Type           HoldType
	Reason         string
	Status         HoldStatus
	PlacedAt       time.Time
	PlacedBy       string
	ReleasedAt     *time.Time
	ReleasedBy     string
	OverrideReason string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreditTxKind classifies what changed credit_used.
type CreditTxKind string

const (
	CreditTxInvoice      CreditTxKind = "Invoice"
	CreditTxPayment      CreditTxKind = "Payment"
	CreditTxOrder        CreditTxKind = "Order"
	CreditTxManual       CreditTxKind = "Manual"
	CreditTxLimitChange  CreditTxKind = "LimitChange"
	CreditTxHoldPlaced   CreditTxKind = "HoldPlaced"
	CreditTxHoldReleased CreditTxKind = "HoldReleased"
)

// CreditTransaction is the immutable log of credit_used changes.
// ReferenceID is the idempotency key: a reference is applied once.
type CreditTransaction struct {
	ID            string
	ProfileID     string
	CustomerID    string
	Kind          CreditTxKind
	Delta         Money
	PreviousUsed  Money
	NewUsed       Money
	ReferenceID   string
	ReferenceKind string
	Note          string
	CreatedAt     time.Time
	CreatedBy     string
}

// AlertSeverity grades credit alerts.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "Info"
	SeverityWarning  AlertSeverity = "Warning"
	SeverityHigh     AlertSeverity = "High"
	SeverityCritical AlertSeverity = "Critical"
)

// CreditLimitChange is the audit record of one limit revision.
type CreditLimitChange struct {
	ID            string
	ProfileID     string
	CustomerID    string
	PreviousLimit Money
	NewLimit      Money
	Reason        string
	ChangedBy     string
	CreatedAt     time.Time
}

// CreditSummary aggregates exposure across every profile.
type CreditSummary struct {
	TotalCustomers    int64
	TotalCreditLimit  Money
	TotalCreditUsed   Money
	TotalAvailable    Money
	TotalOverdue      Money
	CustomersOnHold   int64
	HighRiskCustomers int64
	AvgUtilizationPct float64
}

// CreditAlert records a threshold crossing on a profile.
type CreditAlert struct {
	ID             string
	ProfileID      string
	CustomerID     string
	Severity       AlertSeverity
	Type           string
	Threshold      int64
	ActualValue    int64
	Message        string
	Acknowledged   bool
	AcknowledgedBy string
	AcknowledgedAt *time.Time
	CreatedAt      time.Time
}
