// Package query filters cached resources with expr-lang expressions.
//
// An expression sees the resource's plain fields as variables, plus:
//   - key:       the resource key ("" while unbound)
//   - get(name): any field including lazy properties, resolved on demand
//
// Unknown variables evaluate to nil, so "status == 'open'" is simply false
// on a resource without a status.
//
//	f, err := query.Compile(`price > 10 && key startsWith "/items/"`)
//	open := col.Select(f.Predicate())
package query

import (
	"errors"
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/IvanBrykalov/rescache/resource"
)

var (
	// ErrEmpty is returned for an empty expression.
	ErrEmpty = errors.New("query: expression must not be empty")
	// ErrNotBool is returned when an expression yields a non-boolean.
	ErrNotBool = errors.New("query: expression did not yield a bool")
)

// declared fixes the types of the built-in names at compile time; fields stay
// dynamic.
var declared = map[string]any{
	"key": "",
	"get": func(string) any { return nil },
}

// Filter is a compiled expression. It is safe for concurrent use.
type Filter struct {
	expression string
	program    *exprvm.Program
}

// Compile parses and type-checks expression.
func Compile(expression string) (*Filter, error) {
	if expression == "" {
		return nil, ErrEmpty
	}
	program, err := exprlang.Compile(expression,
		exprlang.Env(declared),
		exprlang.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("query: compile %q: %w", expression, err)
	}
	return &Filter{expression: expression, program: program}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(expression string) *Filter {
	f, err := Compile(expression)
	if err != nil {
		panic(err)
	}
	return f
}

// String returns the source expression.
func (f *Filter) String() string { return f.expression }

// Match evaluates the filter against r.
func (f *Filter) Match(r *resource.Resource) (bool, error) {
	out, err := exprlang.Run(f.program, environment(r))
	if err != nil {
		return false, fmt.Errorf("query: run %q: %w", f.expression, err)
	}
	ok, isBool := out.(bool)
	if !isBool {
		return false, fmt.Errorf("%w: %q gave %T", ErrNotBool, f.expression, out)
	}
	return ok, nil
}

// Predicate adapts f for Collection.Select and RemoveFunc. Evaluation errors
// count as no match.
func (f *Filter) Predicate() resource.Predicate {
	return func(r *resource.Resource) bool {
		ok, err := f.Match(r)
		return err == nil && ok
	}
}

// Select returns the members of c matching f, stopping at the first
// evaluation error.
func (f *Filter) Select(c *resource.Collection) ([]*resource.Resource, error) {
	var out []*resource.Resource
	for _, m := range c.Members() {
		ok, err := f.Match(m)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func environment(r *resource.Resource) map[string]any {
	env := r.Fields()
	key, _ := r.Key()
	env["key"] = key
	env["get"] = func(name string) any {
		v, _ := r.Get(name)
		return v
	}
	return env
}
