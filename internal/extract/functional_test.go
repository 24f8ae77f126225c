package extract

import "testing"

func TestEstimateKPS(t *testing.T) {
	tests := []struct {
		name string
		exam string
		want int
	}{
		{"independent intact", "Patient is independent with all ADLs, neuro exam intact", 90},
		{"independent only", "Ambulating independently in hallway", 80},
		{"minimal assist", "Ambulating with minimal assistance", 70},
		{"contact guard", "Transfers with contact guard", 70},
		{"moderate assist", "Requires moderate assistance with transfers", 60},
		{"dependent", "Dependent for all care", 50},
		{"total care", "Requires total care", 40},
		{"bedridden", "Patient remains bedridden", 30},
		{"wheelchair", "Mobilizes in wheelchair", 40},
		{"fully functional", "Fully functional, no limitations", 100},
		{"motor full", "Strength 5/5 throughout", 80},
		{"motor partial", "Strength 4/5 left upper extremity", 40},
		{"motor weak", "Strength 2/5 right leg", 50},
		{"no signal", "Incision clean dry intact", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := EstimateKPS(tt.exam); got != tt.want {
				t.Errorf("EstimateKPS(%q) = %d, want %d", tt.exam, got, tt.want)
			}
		})
	}
}

func TestEstimateKPSIndependentNotDependent(t *testing.T) {
	// "independent" contains "dependent"; the dependent tier must not fire.
	if got, _ := EstimateKPS("independent with ADLs, exam intact"); got != 90 {
		t.Errorf("Expected 90, got %d", got)
	}
}

func TestEstimateKPSDescription(t *testing.T) {
	tests := []struct {
		exam string
		want string
	}{
		{"Patient is independent with all ADLs, neuro exam intact", "Independent, neurologically intact"},
		{"Ambulating with minimal assistance", "Requires minimal assistance"},
		{"Requires total care", "Requires total care"},
		{"Patient remains bedridden", "Bedridden"},
		{"Mobilizes in wheelchair", "Wheelchair-level mobility"},
		{"Strength 2/5 right leg", "Significant motor weakness"},
		{"Incision clean dry intact", ""},
	}
	for _, tt := range tests {
		if _, got := EstimateKPS(tt.exam); got != tt.want {
			t.Errorf("EstimateKPS(%q) description = %q, want %q", tt.exam, got, tt.want)
		}
	}
}

func TestConditionTier(t *testing.T) {
	tests := []struct {
		kps  int
		want string
	}{
		{100, "5 - Excellent"},
		{80, "5 - Excellent"},
		{70, "4 - Good"},
		{60, "3 - Fair"},
		{50, "3 - Fair"},
		{30, "2 - Poor"},
		{10, "1 - Critical"},
		{0, ""},
	}
	for _, tt := range tests {
		if got := ConditionTier(tt.kps); got != tt.want {
			t.Errorf("ConditionTier(%d) = %q, want %q", tt.kps, got, tt.want)
		}
	}
}
