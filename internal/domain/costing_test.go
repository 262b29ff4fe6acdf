package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestProductValuation_Recompute(t *testing.T) {
	tests := []struct {
		name string
		v    ProductValuation
		want string
	}{
		{
			name: "weighted average",
			v: ProductValuation{
				Method:        CostWAvg,
				TotalQuantity: decimal.NewFromInt(40),
				TotalValue:    50000, // 500.00
			},
			want: "12.5",
		},
		{
			name: "fifo follows last receipt",
			v: ProductValuation{
				Method:          CostFIFO,
				LastReceiptCost: decimal.NewFromFloat(13.75),
				CurrentUnitCost: decimal.NewFromInt(10),
			},
			want: "13.75",
		},
		{
			name: "standard pins to standard cost",
			v: ProductValuation{
				Method:          CostStandard,
				StandardCost:    decimal.NewFromInt(9),
				CurrentUnitCost: decimal.NewFromInt(11),
			},
			want: "9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.v.Recompute()
			if tt.v.CurrentUnitCost.String() != tt.want {
				t.Errorf("unit cost = %s, want %s", tt.v.CurrentUnitCost, tt.want)
			}
		})
	}
}

func TestCostAdjustment_TotalDelta(t *testing.T) {
	adj := CostAdjustment{
		Lines: []CostAdjustmentLine{
			{DeltaValue: 1500},
			{DeltaValue: -400},
		},
	}
	if got := adj.TotalDelta(); got != 1100 {
		t.Errorf("total delta = %d, want 1100", got)
	}
}

func TestActionGraph_Steps(t *testing.T) {
	g := &ActionGraph{
		Entry: "a",
		Nodes: []ActionNode{
			{ID: "b", Name: "second"},
			{ID: "a", Name: "first", Next: "b"},
		},
	}

	steps, err := g.Steps()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(steps) != 2 || steps[0].ID != "a" || steps[1].ID != "b" {
		t.Errorf("steps = %v, want [a b]", steps)
	}
}

func TestActionGraph_StepsCycle(t *testing.T) {
	g := &ActionGraph{
		Entry: "a",
		Nodes: []ActionNode{
			{ID: "a", Next: "b"},
			{ID: "b", Next: "a"},
		},
	}

	if _, err := g.Steps(); err == nil {
		t.Error("expected cycle error, got nil")
	}
}
