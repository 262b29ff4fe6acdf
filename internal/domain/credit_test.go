package domain

import "testing"

func TestCustomerCreditProfile_ComputeRiskLevel(t *testing.T) {
	tests := []struct {
		name    string
		limit   Money
		used    Money
		overdue Money
		avgDays int
		want    RiskLevel
	}{
		{"no exposure", 100000, 0, 0, 0, RiskLow},
		{"low utilization", 100000, 20000, 0, 0, RiskLow},
		{"medium utilization", 100000, 30000, 0, 0, RiskMedium},
		{"minor overdue", 100000, 10000, 500, 5, RiskMedium},
		{"high utilization", 100000, 70000, 0, 0, RiskHigh},
		{"aged overdue", 100000, 10000, 500, 31, RiskHigh},
		{"over limit", 100000, 100000, 0, 0, RiskCritical},
		{"severely aged overdue", 100000, 10000, 500, 61, RiskCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &CustomerCreditProfile{
				CreditLimit:    tt.limit,
				CreditUsed:     tt.used,
				OverdueAmount:  tt.overdue,
				OverdueDaysAvg: tt.avgDays,
			}
			if got := p.ComputeRiskLevel(); got != tt.want {
				t.Errorf("risk = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCustomerCreditProfile_BreachesThreshold(t *testing.T) {
	tests := []struct {
		name    string
		profile CustomerCreditProfile
		want    bool
	}{
		{
			name:    "at threshold",
			profile: CustomerCreditProfile{AutoHoldEnabled: true, CreditLimit: 100000, CreditUsed: 80000, HoldThresholdPct: 80},
			want:    true,
		},
		{
			name:    "below threshold",
			profile: CustomerCreditProfile{AutoHoldEnabled: true, CreditLimit: 100000, CreditUsed: 79999, HoldThresholdPct: 80},
			want:    false,
		},
		{
			name:    "auto-hold disabled",
			profile: CustomerCreditProfile{AutoHoldEnabled: false, CreditLimit: 100000, CreditUsed: 100000, HoldThresholdPct: 80},
			want:    false,
		},
		{
			name:    "zero limit never breaches",
			profile: CustomerCreditProfile{AutoHoldEnabled: true, CreditLimit: 0, CreditUsed: 5000, HoldThresholdPct: 80},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.profile.BreachesThreshold(); got != tt.want {
				t.Errorf("BreachesThreshold() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCustomerCreditProfile_AvailableCredit(t *testing.T) {
	p := &CustomerCreditProfile{CreditLimit: 50000, CreditUsed: 62000}
	if got := p.AvailableCredit(); got != -12000 {
		t.Errorf("available = %d, want -12000", got)
	}
}
