package engine

// State tracks a record through one classification pass. A record leaves
// StateUnclassified at most once and never re-enters it within the pass.
type State int

const (
	StateUnclassified State = iota
	StateClassified
	StateManualOverride
)

// Assignment is the outcome of one record in a classification pass.
// RuleID is zero when no rule matched and the default category stands.
type Assignment struct {
	TransactionID int64
	CategoryID    int64
	RuleID        int64
}

// Classify applies the rule set to a batch of records and returns one
// assignment per automatically-classifiable record.
//
// Records flagged as manually categorized are excluded up front and appear in
// no assignment. Every other record starts at defaultCategoryID (records
// already carrying a different category are treated as classified and kept).
// Rules run strictly in priority order against the records still
// unclassified; a match assigns the rule's category and removes the record
// from the candidate set permanently, so at most one rule classifies a record
// per pass and the first matching rule by priority wins. The pass exits early
// once no candidates remain.
//
// For a fixed rule set the pass is idempotent: re-running it over its own
// output changes nothing.
func Classify(recs []Record, rules *RuleSet, defaultCategoryID int64) []Assignment {
	out := make([]Assignment, 0, len(recs))
	states := make([]State, len(recs))
	assigned := make([]Assignment, len(recs))

	unclassified := 0
	for i, rec := range recs {
		if rec.ManualCategory {
			states[i] = StateManualOverride
			continue
		}
		cat := rec.CategoryID
		if cat == 0 {
			cat = defaultCategoryID
		}
		assigned[i] = Assignment{TransactionID: rec.ID, CategoryID: cat}
		if cat == defaultCategoryID {
			states[i] = StateUnclassified
			unclassified++
		} else {
			states[i] = StateClassified
		}
	}

	for _, rule := range rules.Rules() {
		if unclassified == 0 {
			break
		}
		for i := range recs {
			if states[i] != StateUnclassified {
				continue
			}
			if rule.Matches(recs[i]) {
				assigned[i].CategoryID = rule.CategoryID
				assigned[i].RuleID = rule.ID
				states[i] = StateClassified
				unclassified--
			}
		}
	}

	for i := range recs {
		if states[i] != StateManualOverride {
			out = append(out, assigned[i])
		}
	}
	return out
}
