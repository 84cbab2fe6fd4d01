package filter

import (
	"regexp"
	"strings"
	"time"
)

// Rule is the compiled result of RuleParser.Parse: a field projection, a
// topic to subscribe under, and the compiled WHERE condition.
type Rule struct {
	Fields    []string
	Topic     string
	Condition Condition
	raw       string
}

// Matches evaluates the rule's condition against ctx.
func (r *Rule) Matches(ctx map[string]any) bool {
	if r.Condition == nil {
		return true
	}
	return r.Condition.Evaluate(ctx)
}

var reSelectFrom = regexp.MustCompile(`(?is)^\s*SELECT\s+(.+?)\s+FROM\s+'([^']*)'\s*(?:WHERE\s+(.*))?$`)

// RuleParser parses the full `SELECT field-list FROM 'topic' WHERE
// <condition>` grammar used to build server-side subscription rules.
type RuleParser struct{}

// NewRuleParser returns a RuleParser.
func NewRuleParser() *RuleParser { return &RuleParser{} }

// Parse compiles s into a Rule.
func (p *RuleParser) Parse(s string) (*Rule, error) {
	m := reSelectFrom.FindStringSubmatch(s)
	if m == nil {
		return nil, newParseError("expected 'SELECT <fields> FROM ''<topic>'' [WHERE <condition>]'")
	}

	fieldList := strings.TrimSpace(m[1])
	var fields []string
	if fieldList != "*" {
		for _, f := range strings.Split(fieldList, ",") {
			f = strings.TrimSpace(f)
			if f != "" {
				fields = append(fields, f)
			}
		}
	}

	rule := &Rule{Fields: fields, Topic: m[2], raw: s}

	where := strings.TrimSpace(m[3])
	if where != "" {
		cond, err := parseConditionString(where)
		if err != nil {
			return nil, err
		}
		rule.Condition = cond
	}
	return rule, nil
}

// FilterParser parses only the condition portion of the grammar (no
// SELECT/FROM), first expanding the time macros documented in spec §4.8.
type FilterParser struct {
	now func() time.Time
}

// NewFilterParser returns a FilterParser that resolves time macros
// against the real current time.
func NewFilterParser() *FilterParser {
	return &FilterParser{now: time.Now}
}

// Parse compiles a bare condition expression into a Condition tree.
func (p *FilterParser) Parse(s string) (Condition, error) {
	expanded := expandTimeMacros(s, p.now())
	return parseConditionString(expanded)
}
