package models

import "testing"

func TestItemStatus_Valid(t *testing.T) {
	tests := []struct {
		status ItemStatus
		want   bool
	}{
		{ItemUnsatisfied, true},
		{ItemSatisfied, true},
		{ItemBlocked, true},
		{ItemStatus(""), false},
		{ItemStatus("done"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("ItemStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestStrictness_Valid(t *testing.T) {
	if !StrictnessStrict.Valid() || !StrictnessNormal.Valid() {
		t.Error("known strictness values should be valid")
	}
	if Strictness("lenient").Valid() {
		t.Error("lenient should be invalid")
	}
}

func TestChecklistItem_Clone(t *testing.T) {
	step := 2
	item := ChecklistItem{
		ItemID:          "a",
		DependsOn:       []string{"b"},
		EvidenceRefs:    []string{"ref"},
		SatisfiedAtStep: &step,
	}

	clone := item.Clone()
	clone.DependsOn[0] = "changed"
	*clone.SatisfiedAtStep = 9

	if item.DependsOn[0] != "b" {
		t.Errorf("original DependsOn mutated: %v", item.DependsOn)
	}
	if *item.SatisfiedAtStep != 2 {
		t.Errorf("original SatisfiedAtStep mutated: %d", *item.SatisfiedAtStep)
	}
}

func TestChecklistItem_CloneNilSlices(t *testing.T) {
	clone := ChecklistItem{ItemID: "a"}.Clone()
	if clone.DependsOn != nil || clone.SatisfiedAtStep != nil {
		t.Errorf("Clone() of empty item = %+v, want nil fields", clone)
	}
}
