package engine

import "testing"

const defaultCat int64 = 99

func findAssignment(t *testing.T, out []Assignment, txID int64) Assignment {
	t.Helper()
	for _, a := range out {
		if a.TransactionID == txID {
			return a
		}
	}
	t.Fatalf("no assignment for transaction %d", txID)
	return Assignment{}
}

func TestClassifyPriorityWins(t *testing.T) {
	// two rules both match the record; the lower priority number must win
	set := NewRuleSet(
		[]Rule{
			{ID: 1, Priority: 1, CategoryID: 10}, // 커피
			{ID: 2, Priority: 5, CategoryID: 20}, // 외식
		},
		[]Condition{
			{RuleID: 1, ColumnToCheck: "content", MatchType: MatchContains, Value: "스타벅스"},
			{RuleID: 2, ColumnToCheck: "content", MatchType: MatchContains, Value: "스타"},
		},
	)
	recs := []Record{
		{ID: 1, CategoryID: defaultCat, Columns: map[string]string{"content": "스타벅스 강남점"}},
	}
	out := Classify(recs, set, defaultCat)
	a := findAssignment(t, out, 1)
	if a.CategoryID != 10 || a.RuleID != 1 {
		t.Fatalf("got category %d via rule %d, want 10 via 1", a.CategoryID, a.RuleID)
	}
}

func TestClassifyAtMostOneRulePerRecord(t *testing.T) {
	set := NewRuleSet(
		[]Rule{
			{ID: 1, Priority: 1, CategoryID: 10},
			{ID: 2, Priority: 2, CategoryID: 20},
		},
		[]Condition{
			{RuleID: 1, ColumnToCheck: "content", MatchType: MatchContains, Value: "마트"},
			{RuleID: 2, ColumnToCheck: "content", MatchType: MatchContains, Value: "이마트"},
		},
	)
	recs := []Record{
		{ID: 1, CategoryID: defaultCat, Columns: map[string]string{"content": "이마트 성수점"}},
	}
	out := Classify(recs, set, defaultCat)
	a := findAssignment(t, out, 1)
	if a.CategoryID != 10 {
		t.Fatalf("record classified twice: ended at %d, want 10", a.CategoryID)
	}
}

func TestClassifyManualOverrideExcluded(t *testing.T) {
	set := NewRuleSet(
		[]Rule{{ID: 1, Priority: 1, CategoryID: 10}},
		[]Condition{{RuleID: 1, ColumnToCheck: "content", MatchType: MatchContains, Value: "스타벅스"}},
	)
	recs := []Record{
		{ID: 1, CategoryID: 55, ManualCategory: true, Columns: map[string]string{"content": "스타벅스"}},
		{ID: 2, CategoryID: defaultCat, Columns: map[string]string{"content": "스타벅스"}},
	}
	out := Classify(recs, set, defaultCat)
	if len(out) != 1 {
		t.Fatalf("got %d assignments, want 1 (manual record must be untouched)", len(out))
	}
	if out[0].TransactionID != 2 || out[0].CategoryID != 10 {
		t.Fatalf("unexpected assignment %+v", out[0])
	}
}

func TestClassifyUnmatchedKeepsDefault(t *testing.T) {
	set := NewRuleSet(
		[]Rule{{ID: 1, Priority: 1, CategoryID: 10}},
		[]Condition{{RuleID: 1, ColumnToCheck: "content", MatchType: MatchContains, Value: "스타벅스"}},
	)
	recs := []Record{
		{ID: 1, Columns: map[string]string{"content": "알 수 없는 가맹점"}},
	}
	out := Classify(recs, set, defaultCat)
	a := findAssignment(t, out, 1)
	if a.CategoryID != defaultCat || a.RuleID != 0 {
		t.Fatalf("got %+v, want default %d with no rule", a, defaultCat)
	}
}

func TestClassifyAlreadyClassifiedNotRevisited(t *testing.T) {
	set := NewRuleSet(
		[]Rule{{ID: 1, Priority: 1, CategoryID: 10}},
		[]Condition{{RuleID: 1, ColumnToCheck: "content", MatchType: MatchContains, Value: "스타벅스"}},
	)
	recs := []Record{
		{ID: 1, CategoryID: 30, Columns: map[string]string{"content": "스타벅스"}},
	}
	out := Classify(recs, set, defaultCat)
	a := findAssignment(t, out, 1)
	if a.CategoryID != 30 {
		t.Fatalf("classified record was reassigned to %d, want 30 kept", a.CategoryID)
	}
}

func TestClassifyIdempotent(t *testing.T) {
	set := NewRuleSet(
		[]Rule{
			{ID: 1, Priority: 1, CategoryID: 10},
			{ID: 2, Priority: 2, CategoryID: 20},
		},
		[]Condition{
			{RuleID: 1, ColumnToCheck: "content", MatchType: MatchContains, Value: "스타벅스"},
			{RuleID: 2, ColumnToCheck: "transaction_amount", MatchType: MatchGreaterThan, Value: "50000"},
		},
	)
	recs := []Record{
		{ID: 1, Columns: map[string]string{"content": "스타벅스", "transaction_amount": "6000"}},
		{ID: 2, Columns: map[string]string{"content": "백화점", "transaction_amount": "60000"}},
		{ID: 3, Columns: map[string]string{"content": "버스", "transaction_amount": "1500"}},
	}
	first := Classify(recs, set, defaultCat)

	// feed the first pass's output back in as the stored state
	again := make([]Record, len(recs))
	copy(again, recs)
	for i := range again {
		again[i].CategoryID = findAssignment(t, first, again[i].ID).CategoryID
	}
	second := Classify(again, set, defaultCat)

	for _, a := range first {
		b := findAssignment(t, second, a.TransactionID)
		if b.CategoryID != a.CategoryID {
			t.Fatalf("tx %d moved from %d to %d on re-run", a.TransactionID, a.CategoryID, b.CategoryID)
		}
	}
}

func TestClassifyEmptyRuleSet(t *testing.T) {
	recs := []Record{{ID: 1, Columns: map[string]string{"content": "x"}}}
	out := Classify(recs, NewRuleSet(nil, nil), defaultCat)
	if len(out) != 1 || out[0].CategoryID != defaultCat {
		t.Fatalf("got %+v, want single default assignment", out)
	}
}
