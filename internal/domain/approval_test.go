package domain

import "testing"

func money(v int64) *Money {
	m := Money(v)
	return &m
}

func TestApprovalWorkflow_Matches(t *testing.T) {
	tests := []struct {
		name   string
		wf     ApprovalWorkflow
		amount Money
		want   bool
	}{
		{
			name:   "inside window",
			wf:     ApprovalWorkflow{Status: WorkflowActive, MinAmount: money(1000), MaxAmount: money(50000)},
			amount: 25000,
			want:   true,
		},
		{
			name:   "window is inclusive",
			wf:     ApprovalWorkflow{Status: WorkflowActive, MinAmount: money(1000), MaxAmount: money(50000)},
			amount: 50000,
			want:   true,
		},
		{
			name:   "above window",
			wf:     ApprovalWorkflow{Status: WorkflowActive, MaxAmount: money(50000)},
			amount: 50001,
			want:   false,
		},
		{
			name:   "below window",
			wf:     ApprovalWorkflow{Status: WorkflowActive, MinAmount: money(1000)},
			amount: 999,
			want:   false,
		},
		{
			name:   "open window",
			wf:     ApprovalWorkflow{Status: WorkflowActive},
			amount: 1,
			want:   true,
		},
		{
			name:   "inactive workflow never matches",
			wf:     ApprovalWorkflow{Status: WorkflowInactive},
			amount: 25000,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.wf.Matches(tt.amount); got != tt.want {
				t.Errorf("Matches(%d) = %v, want %v", tt.amount, got, tt.want)
			}
		})
	}
}

func TestApprovalWorkflow_AutoApproves(t *testing.T) {
	wf := ApprovalWorkflow{Status: WorkflowActive, AutoApproveBelow: money(10000)}

	if !wf.AutoApproves(9999) {
		t.Error("amount below threshold should auto-approve")
	}
	if wf.AutoApproves(10000) {
		t.Error("threshold is exclusive, equal amount must not auto-approve")
	}

	none := ApprovalWorkflow{Status: WorkflowActive}
	if none.AutoApproves(1) {
		t.Error("no threshold set, nothing auto-approves")
	}
}

func TestApprovalWorkflow_NextLevel(t *testing.T) {
	wf := ApprovalWorkflow{
		Levels: []ApprovalLevel{
			{Ordinal: 1, Name: "manager"},
			{Ordinal: 2, Name: "director"},
			{Ordinal: 3, Name: "cfo"},
		},
	}

	next := wf.NextLevel(1)
	if next == nil || next.Ordinal != 2 {
		t.Errorf("NextLevel(1) = %v, want ordinal 2", next)
	}
	if wf.NextLevel(3) != nil {
		t.Error("NextLevel past final level should be nil")
	}
}

func TestApprovalRequest_ApprovalsAtLevel(t *testing.T) {
	req := ApprovalRequest{
		Records: []ApprovalRecord{
			{Level: 1, ApproverID: "u1", Action: ActionApproved},
			{Level: 1, ApproverID: "u1", Action: ActionApproved},
			{Level: 1, ApproverID: "u2", Action: ActionApproved},
			{Level: 1, ApproverID: "u3", Action: ActionRejected},
			{Level: 2, ApproverID: "u4", Action: ActionApproved},
		},
	}

	got := req.ApprovalsAtLevel(1)
	if len(got) != 2 {
		t.Fatalf("distinct approvers at level 1 = %d, want 2", len(got))
	}
	if got[0] != "u1" || got[1] != "u2" {
		t.Errorf("approvers = %v, want [u1 u2]", got)
	}
}

func TestApprovalRequest_DelegatesAtLevel(t *testing.T) {
	req := ApprovalRequest{
		Records: []ApprovalRecord{
			{Level: 1, ApproverID: "u1", Action: ActionDelegated, DelegatedTo: "u9"},
			{Level: 2, ApproverID: "u2", Action: ActionDelegated, DelegatedTo: "u8"},
		},
	}

	got := req.DelegatesAtLevel(1)
	if len(got) != 1 || got[0] != "u9" {
		t.Errorf("delegates at level 1 = %v, want [u9]", got)
	}
}

func TestRequestStatus_Terminal(t *testing.T) {
	terminal := []RequestStatus{RequestApproved, RequestRejected, RequestCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []RequestStatus{RequestPending, RequestEscalated} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
