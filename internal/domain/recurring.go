package domain

import "time"

// Frequency drives recurring journal scheduling.
type Frequency string

const (
	FrequencyDaily     Frequency = "Daily"
	FrequencyWeekly    Frequency = "Weekly"
	FrequencyBiweekly  Frequency = "Biweekly"
	FrequencyMonthly   Frequency = "Monthly"
	FrequencyQuarterly Frequency = "Quarterly"
	FrequencyYearly    Frequency = "Yearly"
)

// ParseFrequency validates a textual frequency.
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(s) {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		return Frequency(s), nil
	}
	return "", Validation("invalid_frequency", "unknown frequency %q", s)
}

// RecurringJournal is a template that materializes journal entries on a
// schedule.
type RecurringJournal struct {
	ID          string
	Name        string
	Description string
	Currency    string
	Frequency   Frequency
	Interval    int
	DayOfMonth  int
	// DayOfWeek uses ISO numbering, 1=Monday..7=Sunday; 0 means unset.
	DayOfWeek int
	AutoPost    bool
	Active      bool
	NextRun     time.Time
	LastRun     *time.Time
	Lines       []JournalLine
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CreatedBy   string
}

// ComputeNextRun advances the schedule from a given run time. Interval
// multiplies the base frequency; DayOfMonth pins monthly-or-longer
// frequencies to a day, clamped to the month's length.
func (r *RecurringJournal) ComputeNextRun(from time.Time) time.Time {
	interval := r.Interval
	if interval <= 0 {
		interval = 1
	}

	var next time.Time
	switch r.Frequency {
	case FrequencyDaily:
		next = from.AddDate(0, 0, interval)
	case FrequencyWeekly:
		next = from.AddDate(0, 0, 7*interval)
	case FrequencyBiweekly:
		next = from.AddDate(0, 0, 14*interval)
	case FrequencyMonthly:
		next = from.AddDate(0, interval, 0)
	case FrequencyQuarterly:
		next = from.AddDate(0, 3*interval, 0)
	case FrequencyYearly:
		next = from.AddDate(interval, 0, 0)
	default:
		next = from.AddDate(0, interval, 0)
	}

	if r.DayOfMonth > 0 && monthlyOrLonger(r.Frequency) {
		next = pinDayOfMonth(next, r.DayOfMonth)
	}
	if (r.Frequency == FrequencyWeekly || r.Frequency == FrequencyBiweekly) && r.DayOfWeek >= 1 && r.DayOfWeek <= 7 {
		want := time.Weekday(r.DayOfWeek % 7)
		for next.Weekday() != want {
			next = next.AddDate(0, 0, 1)
		}
	}
	return next
}

// Materialize builds a draft journal entry from the template lines.
func (r *RecurringJournal) Materialize(runAt time.Time) *JournalEntry {
	entry := &JournalEntry{
		Date:        runAt,
		Description: r.Description,
		Reference:   r.Name,
		Currency:    r.Currency,
		Status:      EntryDraft,
		Lines:       make([]JournalLine, len(r.Lines)),
	}
	for i, l := range r.Lines {
		entry.Lines[i] = JournalLine{
			AccountID: l.AccountID,
			Debit:     l.Debit,
			Credit:    l.Credit,
			Memo:      l.Memo,
		}
	}
	return entry
}

func monthlyOrLonger(f Frequency) bool {
	return f == FrequencyMonthly || f == FrequencyQuarterly || f == FrequencyYearly
}

func pinDayOfMonth(t time.Time, day int) time.Time {
	last := time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
	if day > last {
		day = last
	}
	return time.Date(t.Year(), t.Month(), day, t.Hour(), t.Minute(), t.Second(), 0, t.Location())
}
