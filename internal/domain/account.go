package domain

import (
	"strings"
	"time"
)

// AccountClass is the accounting classification of an account.
type AccountClass string

const (
	AccountAsset     AccountClass = "Asset"
	AccountLiability AccountClass = "Liability"
	AccountEquity    AccountClass = "Equity"
	AccountRevenue   AccountClass = "Revenue"
	AccountExpense   AccountClass = "Expense"
)

// ParseAccountClass validates a textual classification.
func ParseAccountClass(s string) (AccountClass, error) {
	switch AccountClass(s) {
	case AccountAsset, AccountLiability, AccountEquity, AccountRevenue, AccountExpense:
		return AccountClass(s), nil
	}
	return "", Validation("invalid_account_class", "unknown account classification %q", s)
}

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	AccountActive   AccountStatus = "Active"
	AccountInactive AccountStatus = "Inactive"
	AccountDeleted  AccountStatus = "Deleted"
)

// Account is a ledger account in the chart of accounts.
type Account struct {
	ID          string
	Code        string
	Name        string
	Class       AccountClass
	ParentID    string
	Description string
	Status      AccountStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CreatedBy   string
}

// Validate checks the account's own fields; code uniqueness and parent
// cycles are checked by the engine against the store.
func (a *Account) Validate() error {
	if strings.TrimSpace(a.Code) == "" {
		return Validation("account_code_required", "account code is required")
	}
	if strings.TrimSpace(a.Name) == "" {
		return Validation("account_name_required", "account name is required")
	}
	if _, err := ParseAccountClass(string(a.Class)); err != nil {
		return err
	}
	return nil
}

// DebitNormal reports whether debits increase balances of the class.
func (c AccountClass) DebitNormal() bool {
	return c == AccountAsset || c == AccountExpense
}

// DebitNormal reports whether debits increase the account's balance.
func (a *Account) DebitNormal() bool {
	return a.Class.DebitNormal()
}
