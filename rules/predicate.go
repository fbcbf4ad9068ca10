package rules

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"
)

// ErrPredicateType is returned when a pass expression does not yield a bool.
var ErrPredicateType = errors.New("pass expression must evaluate to bool")

var predicateEnv = mustPredicateEnv()

func mustPredicateEnv() *cel.Env {
	env, err := cel.NewEnv(
		cel.Variable("rows", cel.ListType(cel.MapType(cel.StringType, cel.DynType))),
		cel.Variable("count", cel.IntType),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create CEL environment: %v", err))
	}

	return env
}

// Predicate is a compiled pass expression. It sees the violation rows as `rows`
// (a list of maps) and their number as `count`.
type Predicate struct {
	expr    string
	program cel.Program
}

// CompilePredicate compiles and type checks a pass expression.
func CompilePredicate(expr string) (*Predicate, error) {
	ast, issues := predicateEnv.Compile(expr)
	if issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile pass expression %q: %w", expr, issues.Err())
	}

	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("%w: %q is %s", ErrPredicateType, expr, ast.OutputType())
	}

	program, err := predicateEnv.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for %q: %w", expr, err)
	}

	return &Predicate{expr: expr, program: program}, nil
}

// Expression returns the source text.
func (p *Predicate) Expression() string { return p.expr }

// Eval runs the expression over plain rows (see warehouse.ResultSet.Plain).
func (p *Predicate) Eval(rows []map[string]any) (bool, error) {
	list := make([]any, len(rows))
	for i, row := range rows {
		list[i] = row
	}

	result, _, err := p.program.Eval(map[string]any{
		"rows":  list,
		"count": int64(len(rows)),
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate pass expression %q: %w", p.expr, err)
	}

	passed, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q returned %T", ErrPredicateType, p.expr, result.Value())
	}

	return passed, nil
}
