package engine

import "testing"

func TestEvaluateCondition(t *testing.T) {
	tests := []struct {
		name      string
		matchType string
		ruleValue string
		column    string
		present   bool
		want      bool
	}{
		{"contains hit", MatchContains, "스타벅스", "스타벅스 강남점", true, true},
		{"contains is case sensitive", MatchContains, "GS25", "gs25 역삼점", true, false},
		{"contains miss", MatchContains, "쿠팡", "배달의민족", true, false},
		{"exact trims column side", MatchExact, "월급", "  월급  ", true, true},
		{"exact does not trim rule side", MatchExact, " 월급 ", "월급", true, false},
		{"regex case insensitive", MatchRegex, "starbucks|coffee", "STARBUCKS SEOUL", true, true},
		{"regex searches substring", MatchRegex, "급여", "3월 급여 입금", true, true},
		{"greater than", MatchGreaterThan, "50000", "60000", true, true},
		{"greater than equal is false", MatchGreaterThan, "50000", "50000", true, false},
		{"less than", MatchLessThan, "10000", "9999", true, true},
		{"equals numeric", MatchEquals, "6000", "6000", true, true},
		{"equals float column", MatchEquals, "6000", "6000.0", true, true},
		{"non numeric column fails closed", MatchGreaterThan, "100", "abc", true, false},
		{"non integer rule value fails closed", MatchEquals, "6,000", "6000", true, false},
		{"empty column numeric fails closed", MatchLessThan, "100", "", true, false},
		{"unknown match type fails closed", "STARTS_WITH", "a", "abc", true, false},
		{"absent column fails closed", MatchContains, "스타벅스", "", false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := Condition{MatchType: tc.matchType, Value: tc.ruleValue}
			c.compile()
			if got := EvaluateCondition(&c, tc.column, tc.present); got != tc.want {
				t.Errorf("EvaluateCondition(%s, %q, %q) = %v, want %v",
					tc.matchType, tc.column, tc.ruleValue, got, tc.want)
			}
		})
	}
}

func TestEvaluateConditionTrimsMatchType(t *testing.T) {
	// match types arrive from a table and have carried stray whitespace before
	c := Condition{MatchType: " CONTAINS ", Value: "커피"}
	c.compile()
	if !EvaluateCondition(&c, "커피빈 선릉점", true) {
		t.Fatal("padded match type should still evaluate")
	}
}

func TestEvaluateConditionInvalidRegex(t *testing.T) {
	c := Condition{MatchType: MatchRegex, Value: "(["}
	c.compile()
	if EvaluateCondition(&c, "anything", true) {
		t.Fatal("invalid regex must fail closed, not match")
	}
}
