// Package decision provides the decision-table collaborator interface
// used by task handlers, and a unique-hit table evaluator for tables
// defined in code.
package decision

import (
	"context"
	"errors"
	"fmt"

	"github.com/meridianbank/depositflow/process"
)

// ErrUnknownTable is returned when no table is registered under the
// requested name.
var ErrUnknownTable = errors.New("unknown decision table")

// ErrNoMatchingRule is returned when a table has no rule matching the
// input variables.
var ErrNoMatchingRule = errors.New("no matching decision rule")

// Evaluator maps input variables to outputs via a named decision table.
type Evaluator interface {
	Evaluate(ctx context.Context, table string, vars process.Variables) (process.Variables, error)
}

// Rule is a single row of a unique-hit table. The first rule whose
// predicate matches supplies the outputs.
type Rule struct {
	Matches func(process.Variables) bool
	Outputs process.Variables
}

// Table is an in-code decision table evaluated with unique-hit (first
// match) semantics.
type Table struct {
	Name  string
	Rules []Rule
}

// TableEvaluator evaluates registered in-code tables.
type TableEvaluator struct {
	tables map[string]Table
}

// NewTableEvaluator registers the given tables.
func NewTableEvaluator(tables ...Table) *TableEvaluator {
	e := &TableEvaluator{
		tables: make(map[string]Table, len(tables)),
	}
	for _, t := range tables {
		e.tables[t.Name] = t
	}
	return e
}

// Evaluate applies the named table to the input variables.
func (e *TableEvaluator) Evaluate(_ context.Context, table string, vars process.Variables) (process.Variables, error) {
	t, ok := e.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}

	for _, r := range t.Rules {
		if r.Matches == nil || r.Matches(vars) {
			return r.Outputs.Clone(), nil
		}
	}

	return nil, fmt.Errorf("%w in table %q", ErrNoMatchingRule, table)
}
