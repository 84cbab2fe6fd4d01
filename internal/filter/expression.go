package filter

import (
	"fmt"
	"sync"

	"github.com/shellbridge/shellbridge/internal/result"
)

// Matcher is the common surface StreamingShell's filter state needs,
// satisfied by both FilterExpression (SQL WHERE) and GlobFilter
// (field:glob pairs) so either can be the active client-side filter.
type Matcher interface {
	Matches(result.Message) bool
	String() string
	IsEmpty() bool
}

type combinator int

const (
	combineBase combinator = iota
	combineAnd
	combineOr
	combineAndNot
)

type clause struct {
	raw       string
	condition Condition
	combine   combinator
}

// FilterExpression wraps FilterParser with incremental clause building:
// a base clause plus any number of AND/OR/AND-NOT clauses appended after
// it, recompiled into a single Condition tree lazily and cached until the
// next mutation.
type FilterExpression struct {
	mu      sync.Mutex
	parser  *FilterParser
	clauses []clause
	cached  Condition
}

// NewFilterExpression returns an empty expression (matches everything
// until a base clause is set via Where).
func NewFilterExpression() *FilterExpression {
	return &FilterExpression{parser: NewFilterParser()}
}

// Where replaces the whole filter with a single base clause.
func (f *FilterExpression) Where(expr string) error {
	cond, err := f.parser.Parse(expr)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clauses = []clause{{raw: expr, condition: cond, combine: combineBase}}
	f.cached = nil
	return nil
}

// AddAnd appends a clause ANDed onto the existing filter. Fails if no
// base clause has been set yet.
func (f *FilterExpression) AddAnd(expr string) error {
	return f.addClause(expr, combineAnd)
}

// AddOr appends a clause ORed onto the existing filter.
func (f *FilterExpression) AddOr(expr string) error {
	return f.addClause(expr, combineOr)
}

// AddNot appends a clause ANDed with the negation of expr onto the
// existing filter.
func (f *FilterExpression) AddNot(expr string) error {
	return f.addClause(expr, combineAndNot)
}

func (f *FilterExpression) addClause(expr string, combine combinator) error {
	cond, err := f.parser.Parse(expr)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.clauses) == 0 {
		return newParseError("cannot add a clause before a base clause is set")
	}
	f.clauses = append(f.clauses, clause{raw: expr, condition: cond, combine: combine})
	f.cached = nil
	return nil
}

// Remove deletes the first clause whose original text equals expr. If the
// removed clause was the base, the next clause (if any) is promoted to
// base.
func (f *FilterExpression) Remove(expr string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.clauses {
		if c.raw != expr {
			continue
		}
		f.clauses = append(f.clauses[:i], f.clauses[i+1:]...)
		if i == 0 && len(f.clauses) > 0 {
			f.clauses[0].combine = combineBase
		}
		f.cached = nil
		return true
	}
	return false
}

// Clear removes every clause.
func (f *FilterExpression) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clauses = nil
	f.cached = nil
}

// IsEmpty reports whether no base clause has been set.
func (f *FilterExpression) IsEmpty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clauses) == 0
}

// String renders the compiled clause list for display (e.g. `filter
// show`).
func (f *FilterExpression) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.clauses) == 0 {
		return "(no filter)"
	}
	out := f.clauses[0].raw
	for _, c := range f.clauses[1:] {
		switch c.combine {
		case combineAnd:
			out += fmt.Sprintf(" AND %s", c.raw)
		case combineOr:
			out += fmt.Sprintf(" OR %s", c.raw)
		case combineAndNot:
			out += fmt.Sprintf(" AND NOT %s", c.raw)
		}
	}
	return out
}

// compile folds the clause list into one Condition, left to right.
func (f *FilterExpression) compile() Condition {
	if f.cached != nil {
		return f.cached
	}
	if len(f.clauses) == 0 {
		return nil
	}
	cond := f.clauses[0].condition
	for _, c := range f.clauses[1:] {
		switch c.combine {
		case combineAnd:
			cond = &Logical{Op: LogicalAnd, Left: cond, Right: c.condition}
		case combineOr:
			cond = &Logical{Op: LogicalOr, Left: cond, Right: c.condition}
		case combineAndNot:
			cond = &Logical{Op: LogicalAnd, Left: cond, Right: &Logical{Op: LogicalNot, Left: c.condition}}
		}
	}
	f.cached = cond
	return cond
}

// Matches builds the default {type, payload, source, timestamp, metadata}
// context from msg and evaluates the compiled expression. An empty
// expression matches everything.
func (f *FilterExpression) Matches(msg result.Message) bool {
	f.mu.Lock()
	cond := f.compile()
	f.mu.Unlock()
	if cond == nil {
		return true
	}

	ctx := map[string]any{
		"type":      string(msg.Type),
		"payload":   msg.Payload,
		"source":    msg.Source,
		"timestamp": msg.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
	}
	metadata := make(map[string]any, len(msg.Metadata))
	for k, v := range msg.Metadata {
		metadata[k] = v
	}
	ctx["metadata"] = metadata

	return cond.Evaluate(ctx)
}
