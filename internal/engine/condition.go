package engine

import (
	"regexp"
	"strconv"
	"strings"
)

// Match types understood by the rule engine. Anything else fails closed:
// the condition evaluates false and the owning rule simply never matches.
const (
	MatchContains    = "CONTAINS"
	MatchExact       = "EXACT"
	MatchRegex       = "REGEX"
	MatchGreaterThan = "GREATER_THAN"
	MatchLessThan    = "LESS_THAN"
	MatchEquals      = "EQUALS"
)

// Condition is one column test belonging to a rule. All conditions of a rule
// must hold for the rule to apply.
type Condition struct {
	RuleID        int64
	ColumnToCheck string
	MatchType     string
	Value         string

	// compiled by NewRuleSet for REGEX conditions; nil means the pattern
	// was invalid and the condition never matches
	pattern *regexp.Regexp
}

func (c *Condition) compile() {
	if strings.TrimSpace(c.MatchType) == MatchRegex {
		c.pattern, _ = regexp.Compile("(?i)" + c.Value)
	}
}

// EvaluateCondition tests a single column value against one condition.
// present reports whether the record carries the referenced column at all;
// an absent column evaluates false rather than erroring.
//
// Numeric comparisons parse the column side as a float and the rule side as
// an integer; either side failing to parse evaluates false.
func EvaluateCondition(c *Condition, columnValue string, present bool) bool {
	if !present {
		return false
	}
	switch strings.TrimSpace(c.MatchType) {
	case MatchContains:
		return strings.Contains(columnValue, c.Value)
	case MatchExact:
		// whitespace is trimmed on the column side only
		return strings.TrimSpace(columnValue) == c.Value
	case MatchRegex:
		return c.pattern != nil && c.pattern.MatchString(columnValue)
	case MatchGreaterThan, MatchLessThan, MatchEquals:
		col, err := strconv.ParseFloat(strings.TrimSpace(columnValue), 64)
		if err != nil {
			return false
		}
		want, err := strconv.ParseInt(strings.TrimSpace(c.Value), 10, 64)
		if err != nil {
			return false
		}
		switch strings.TrimSpace(c.MatchType) {
		case MatchGreaterThan:
			return col > float64(want)
		case MatchLessThan:
			return col < float64(want)
		default:
			return col == float64(want)
		}
	}
	return false
}
