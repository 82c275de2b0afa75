package engine

import "sort"

// Record is the engine's view of one transaction: the id and classification
// state plus the raw column values rules may reference. Columns referenced by
// a rule but absent from the map fail the rule, never error.
type Record struct {
	ID             int64
	CategoryID     int64
	ManualCategory bool
	Columns        map[string]string
}

// Column returns a column value and whether the record carries that column.
func (r Record) Column(name string) (string, bool) {
	v, ok := r.Columns[name]
	return v, ok
}

// Rule is an ordered multi-condition predicate. CategoryID is the target for
// classification rules; LinkedAccountID is the target for transfer rules.
type Rule struct {
	ID              int64
	Priority        int
	CategoryID      int64
	LinkedAccountID int64

	conditions []Condition
}

// Matches reports whether every condition of the rule holds for the record
// (AND semantics, short-circuiting on the first failure). A rule with zero
// conditions never matches; this guards against accidental catch-all rules.
func (r *Rule) Matches(rec Record) bool {
	if len(r.conditions) == 0 {
		return false
	}
	for i := range r.conditions {
		c := &r.conditions[i]
		v, ok := rec.Column(c.ColumnToCheck)
		if !EvaluateCondition(c, v, ok) {
			return false
		}
	}
	return true
}

// Conditions exposes the attached conditions, mainly for diagnostics.
func (r *Rule) Conditions() []Condition {
	return r.conditions
}

// RuleSet is the one-shot, in-memory load of a rule table and its condition
// table: conditions are attached to their rules, REGEX patterns compiled, and
// rules sorted by priority ascending (rule id breaks ties). Building the set
// up front replaces the per-rule condition queries of a naive pass.
type RuleSet struct {
	rules []Rule
}

func NewRuleSet(rules []Rule, conditions []Condition) *RuleSet {
	byRule := make(map[int64][]Condition, len(rules))
	for _, c := range conditions {
		c.compile()
		byRule[c.RuleID] = append(byRule[c.RuleID], c)
	}
	set := &RuleSet{rules: make([]Rule, 0, len(rules))}
	for _, r := range rules {
		r.conditions = byRule[r.ID]
		set.rules = append(set.rules, r)
	}
	sort.SliceStable(set.rules, func(i, j int) bool {
		if set.rules[i].Priority != set.rules[j].Priority {
			return set.rules[i].Priority < set.rules[j].Priority
		}
		return set.rules[i].ID < set.rules[j].ID
	})
	return set
}

// Rules returns the rules in evaluation order.
func (s *RuleSet) Rules() []Rule {
	return s.rules
}

func (s *RuleSet) Len() int {
	return len(s.rules)
}
