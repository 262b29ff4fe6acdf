package domain

import (
	"strings"
	"time"
)

// EntryStatus is the lifecycle state of a journal entry.
type EntryStatus string

const (
	EntryDraft  EntryStatus = "Draft"
	EntryPosted EntryStatus = "Posted"
	EntryVoid   EntryStatus = "Void"
)

// JournalLine is one side of a journal entry. Exactly one of Debit or
// Credit is positive.
type JournalLine struct {
	ID        string
	EntryID   string
	AccountID string
	Debit     Money
	Credit    Money
	Memo      string
}

// Validate checks the single-sided invariant on the line.
func (l *JournalLine) Validate() error {
	if l.Debit < 0 || l.Credit < 0 {
		return Validation("negative_line", "journal line amounts must be non-negative")
	}
	if l.Debit > 0 && l.Credit > 0 {
		return ErrLineBothSides
	}
	if l.Debit == 0 && l.Credit == 0 {
		return Validation("empty_line", "journal line must carry a debit or a credit")
	}
	return nil
}

// JournalEntry is a double-entry journal document. Once posted it is
// immutable; corrections go through a reversing entry.
type JournalEntry struct {
	ID          string
	Number      string
	Date        time.Time
	Description string
	Reference   string
	Currency    string
	Status      EntryStatus
	ReversalOf  string
	Lines       []JournalLine
	PostedAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CreatedBy   string
}

// Totals returns the debit and credit sums over all lines.
func (e *JournalEntry) Totals() (debits, credits Money) {
	for _, l := range e.Lines {
		debits += l.Debit
		credits += l.Credit
	}
	return debits, credits
}

// Validate checks entry shape and the per-line invariants.
func (e *JournalEntry) Validate() error {
	if len(e.Lines) == 0 {
		return Validation("no_lines", "journal entry must have at least one line")
	}
	if strings.TrimSpace(e.Description) == "" {
		return Validation("description_required", "description is required")
	}
	for i := range e.Lines {
		if err := e.Lines[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// CheckBalanced enforces the double-entry invariant.
func (e *JournalEntry) CheckBalanced() error {
	debits, credits := e.Totals()
	if debits != credits {
		return BusinessRule("unbalanced", "journal entry must balance: debits %d, credits %d", debits, credits)
	}
	return nil
}

// Reversed builds a draft entry with debits and credits swapped,
// referencing the original. The original stays posted.
func (e *JournalEntry) Reversed(onDate time.Time) *JournalEntry {
	rev := &JournalEntry{
		Date:        onDate,
		Description: "Reversal of " + e.Number,
		Reference:   e.Number,
		Currency:    e.Currency,
		Status:      EntryDraft,
		ReversalOf:  e.ID,
		Lines:       make([]JournalLine, len(e.Lines)),
	}
	for i, l := range e.Lines {
		rev.Lines[i] = JournalLine{
			AccountID: l.AccountID,
			Debit:     l.Credit,
			Credit:    l.Debit,
			Memo:      l.Memo,
		}
	}
	return rev
}
