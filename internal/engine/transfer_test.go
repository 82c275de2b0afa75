package engine

import "testing"

func TestDetectLinkedAccountsOrSemantics(t *testing.T) {
	set := NewRuleSet(
		[]Rule{
			{ID: 1, Priority: 1, LinkedAccountID: 100},
			{ID: 2, Priority: 2, LinkedAccountID: 200},
		},
		[]Condition{
			{RuleID: 1, ColumnToCheck: "content", MatchType: MatchContains, Value: "내계좌"},
			{RuleID: 2, ColumnToCheck: "content", MatchType: MatchContains, Value: "증권"},
		},
	)
	recs := []Record{
		{ID: 1, Columns: map[string]string{"content": "내계좌 이체"}},
		{ID: 2, Columns: map[string]string{"content": "증권사 입금"}},
		{ID: 3, Columns: map[string]string{"content": "편의점"}},
	}
	linked := DetectLinkedAccounts(recs, set)
	if len(linked) != 2 {
		t.Fatalf("got %d transfers, want 2", len(linked))
	}
	if linked[1] != 100 || linked[2] != 200 {
		t.Fatalf("unexpected linkage %v", linked)
	}
	if _, ok := linked[3]; ok {
		t.Fatal("record matching no rule must not be a transfer")
	}
}

func TestDetectLinkedAccountsPriorityClaims(t *testing.T) {
	// both rules match record 1; the higher-priority rule's account must win
	set := NewRuleSet(
		[]Rule{
			{ID: 1, Priority: 1, LinkedAccountID: 100},
			{ID: 2, Priority: 9, LinkedAccountID: 200},
		},
		[]Condition{
			{RuleID: 1, ColumnToCheck: "content", MatchType: MatchContains, Value: "이체"},
			{RuleID: 2, ColumnToCheck: "content", MatchType: MatchContains, Value: "이체"},
		},
	)
	recs := []Record{{ID: 1, Columns: map[string]string{"content": "계좌 이체"}}}
	linked := DetectLinkedAccounts(recs, set)
	if linked[1] != 100 {
		t.Fatalf("linked to %d, want 100", linked[1])
	}
}

func TestDetectLinkedAccountsEmpty(t *testing.T) {
	if got := DetectLinkedAccounts(nil, NewRuleSet(nil, nil)); len(got) != 0 {
		t.Fatalf("want empty map, got %v", got)
	}
}
