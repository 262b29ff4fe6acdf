package domain

import (
	"errors"
	"testing"
	"time"
)

func line(account string, debit, credit Money) JournalLine {
	return JournalLine{AccountID: account, Debit: debit, Credit: credit}
}

func TestJournalEntry_CheckBalanced(t *testing.T) {
	tests := []struct {
		name        string
		lines       []JournalLine
		expectError bool
	}{
		{
			name: "balanced two lines",
			lines: []JournalLine{
				line("a", 10000, 0),
				line("b", 0, 10000),
			},
			expectError: false,
		},
		{
			name: "balanced many lines",
			lines: []JournalLine{
				line("a", 7000, 0),
				line("b", 3000, 0),
				line("c", 0, 4500),
				line("d", 0, 5500),
			},
			expectError: false,
		},
		{
			name: "unbalanced",
			lines: []JournalLine{
				line("a", 10000, 0),
				line("b", 0, 9999),
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &JournalEntry{Lines: tt.lines}
			err := e.CheckBalanced()

			if tt.expectError && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestJournalLine_Validate(t *testing.T) {
	tests := []struct {
		name        string
		line        JournalLine
		expectError bool
	}{
		{"debit only", line("a", 100, 0), false},
		{"credit only", line("a", 0, 100), false},
		{"both sides", line("a", 100, 100), true},
		{"neither side", line("a", 0, 0), true},
		{"negative debit", line("a", -5, 0), true},
		{"missing account", line("", 100, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.line.Validate()

			if tt.expectError && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestJournalEntry_Reversed(t *testing.T) {
	original := &JournalEntry{
		ID:       "e1",
		Number:   "JE-2025-000042",
		Currency: "USD",
		Status:   EntryPosted,
		Lines: []JournalLine{
			line("cash", 25000, 0),
			line("revenue", 0, 25000),
		},
	}

	onDate := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	rev := original.Reversed(onDate)

	if rev.Status != EntryDraft {
		t.Errorf("reversal status = %s, want Draft", rev.Status)
	}
	if rev.ReversalOf != "e1" {
		t.Error("reversal does not reference original entry")
	}
	if rev.Lines[0].Debit != 0 || rev.Lines[0].Credit != 25000 {
		t.Error("first line sides not swapped")
	}
	if rev.Lines[1].Debit != 25000 || rev.Lines[1].Credit != 0 {
		t.Error("second line sides not swapped")
	}
	if err := rev.CheckBalanced(); err != nil {
		t.Errorf("reversal not balanced: %v", err)
	}
}

func TestAccountingPeriod_AllowsPosting(t *testing.T) {
	period := func(lock PeriodLock) *AccountingPeriod {
		return &AccountingPeriod{
			StartDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
			Lock:      lock,
		}
	}

	tests := []struct {
		name       string
		lock       PeriodLock
		privileged bool
		wantErr    error
	}{
		{"open period", PeriodOpen, false, nil},
		{"soft close privileged", PeriodSoftClose, true, nil},
		{"soft close regular", PeriodSoftClose, false, ErrPeriodSoftClosed},
		{"hard close privileged", PeriodHardClose, true, ErrPeriodLocked},
		{"hard close regular", PeriodHardClose, false, ErrPeriodLocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := period(tt.lock).AllowsPosting(tt.privileged)

			if tt.wantErr == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecurringJournal_ComputeNextRun(t *testing.T) {
	from := time.Date(2025, 1, 31, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		rj   RecurringJournal
		want time.Time
	}{
		{
			name: "daily",
			rj:   RecurringJournal{Frequency: FrequencyDaily, Interval: 1},
			want: time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "monthly clamps to month end",
			rj:   RecurringJournal{Frequency: FrequencyMonthly, Interval: 1, DayOfMonth: 31},
			want: time.Date(2025, 2, 28, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "biweekly pinned to monday",
			rj:   RecurringJournal{Frequency: FrequencyBiweekly, Interval: 1, DayOfWeek: 1},
			want: time.Date(2025, 2, 17, 9, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.rj.ComputeNextRun(from)
			if !got.Equal(tt.want) {
				t.Errorf("next run = %v, want %v", got, tt.want)
			}
		})
	}
}
