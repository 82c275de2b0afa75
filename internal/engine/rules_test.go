package engine

import "testing"

func TestNewRuleSetOrdersByPriority(t *testing.T) {
	set := NewRuleSet([]Rule{
		{ID: 3, Priority: 2},
		{ID: 1, Priority: 5},
		{ID: 2, Priority: 2},
		{ID: 4, Priority: 1},
	}, nil)

	var got []int64
	for _, r := range set.Rules() {
		got = append(got, r.ID)
	}
	want := []int64{4, 2, 3, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("evaluation order = %v, want %v", got, want)
		}
	}
}

func TestRuleMatchesAllConditionsAnd(t *testing.T) {
	set := NewRuleSet(
		[]Rule{{ID: 1, Priority: 1, CategoryID: 10}},
		[]Condition{
			{RuleID: 1, ColumnToCheck: "content", MatchType: MatchContains, Value: "스타벅스"},
			{RuleID: 1, ColumnToCheck: "transaction_amount", MatchType: MatchLessThan, Value: "10000"},
		},
	)
	rule := set.Rules()[0]

	tests := []struct {
		name string
		cols map[string]string
		want bool
	}{
		{"both hold", map[string]string{"content": "스타벅스 강남점", "transaction_amount": "6000"}, true},
		{"first fails", map[string]string{"content": "이디야", "transaction_amount": "6000"}, false},
		{"second fails", map[string]string{"content": "스타벅스 강남점", "transaction_amount": "15000"}, false},
		{"referenced column missing", map[string]string{"content": "스타벅스 강남점"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := rule.Matches(Record{ID: 1, Columns: tc.cols}); got != tc.want {
				t.Errorf("Matches = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRuleWithoutConditionsNeverMatches(t *testing.T) {
	set := NewRuleSet([]Rule{{ID: 1, Priority: 1, CategoryID: 10}}, nil)
	rule := set.Rules()[0]
	if rule.Matches(Record{ID: 1, Columns: map[string]string{"content": "anything"}}) {
		t.Fatal("a rule with no conditions must not act as a catch-all")
	}
}
