package domain

import "time"

// FiscalYearStatus is the lifecycle state of a fiscal year.
type FiscalYearStatus string

const (
	FiscalYearActive FiscalYearStatus = "Active"
	FiscalYearClosed FiscalYearStatus = "Closed"
)

// FiscalYear is a non-overlapping accounting year containing ordered
// periods.
type FiscalYear struct {
	ID        string
	Name      string
	StartDate time.Time
	EndDate   time.Time
	Status    FiscalYearStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks date ordering.
func (y *FiscalYear) Validate() error {
	if y.Name == "" {
		return Validation("fiscal_year_name_required", "fiscal year name is required")
	}
	if !y.EndDate.After(y.StartDate) {
		return Validation("fiscal_year_dates", "end date must be after start date")
	}
	return nil
}

// Overlaps reports whether the year's date range intersects another's.
func (y *FiscalYear) Overlaps(other *FiscalYear) bool {
	return !y.EndDate.Before(other.StartDate) && !other.EndDate.Before(y.StartDate)
}

// PeriodLock gates journal posting into a period.
type PeriodLock string

const (
	// PeriodOpen allows all posting.
	PeriodOpen PeriodLock = "Open"
	// PeriodSoftClose allows reversal and correction by privileged callers.
	PeriodSoftClose PeriodLock = "SoftClose"
	// PeriodHardClose forbids all mutation.
	PeriodHardClose PeriodLock = "HardClose"
)

// CanTransitionTo reports whether a lock change is a tightening.
// Locks never loosen: Open → SoftClose → HardClose.
func (l PeriodLock) CanTransitionTo(next PeriodLock) bool {
	rank := map[PeriodLock]int{PeriodOpen: 0, PeriodSoftClose: 1, PeriodHardClose: 2}
	return rank[next] > rank[l]
}

// AccountingPeriod is one slice of a fiscal year.
type AccountingPeriod struct {
	ID           string
	FiscalYearID string
	Ordinal      int
	Name         string
	StartDate    time.Time
	EndDate      time.Time
	Lock         PeriodLock
	LockedAt     *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate checks period shape.
func (p *AccountingPeriod) Validate() error {
	if p.Ordinal < 1 {
		return Validation("period_ordinal_invalid", "period ordinal must be positive")
	}
	if p.EndDate.Before(p.StartDate) {
		return Validation("period_window_invalid", "period end precedes start")
	}
	return nil
}

// Contains reports whether a date falls inside the period. The end
// boundary is inclusive: an entry dated exactly on EndDate posts here.
func (p *AccountingPeriod) Contains(date time.Time) bool {
	d := date.Truncate(24 * time.Hour)
	return !d.Before(p.StartDate) && !d.After(p.EndDate)
}

// AllowsPosting reports whether an entry may post into the period.
// Privileged callers may post into a soft-closed period.
func (p *AccountingPeriod) AllowsPosting(privileged bool) error {
	switch p.Lock {
	case PeriodHardClose:
		return ErrPeriodLocked
	case PeriodSoftClose:
		if !privileged {
			return ErrPeriodSoftClosed
		}
	}
	return nil
}
