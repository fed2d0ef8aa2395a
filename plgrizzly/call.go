package plgrizzly

import (
	"github.com/zhukovaskychina/grizzly/errs"
	"github.com/zhukovaskychina/grizzly/exec"
	gexpr "github.com/zhukovaskychina/grizzly/expr"
	"github.com/zhukovaskychina/grizzly/parser"
	"github.com/zhukovaskychina/grizzly/value"
)

// CallAsync evaluates a registered ASYNC user function against args as
// an ordinary function call at execution time: the body is compiled once
// (cached on the UserFunction) using the same expression grammar WHERE
// clauses use, then evaluated against a row binding each parameter name
// to its argument.
func (r *Registry) CallAsync(name string, args []value.Value) (value.Value, error) {
	fn, ok := r.UserFunc(name)
	if !ok {
		return value.Value{}, errs.New(errs.InvalidExpression, "unknown function %q", name)
	}
	if fn.Mode != Async {
		return value.Value{}, errs.New(errs.InvalidExpression, "function %q is SYNC, not callable at execution time", name)
	}
	if len(args) != len(fn.Params) {
		return value.Value{}, errs.New(errs.InvalidExpression, "function %q expects %d argument(s), got %d", name, len(fn.Params), len(args))
	}

	body, err := fn.compiled()
	if err != nil {
		return value.Value{}, errs.Wrap(err, "compiling function %q body", name)
	}

	byName := make(map[string]int, len(fn.Params))
	for i, p := range fn.Params {
		byName[p] = i
	}
	row := exec.NewRow(args, byName, map[string]int{})
	return gexpr.Eval(body, row)
}

// compiled lazily parses Body into an expr.Expr and caches it, since a
// scheduled or repeatedly-called function would otherwise re-tokenize its
// body on every invocation.
func (fn *UserFunction) compiled() (gexpr.Expr, error) {
	fn.compileMu.Lock()
	defer fn.compileMu.Unlock()
	if fn.compiledBody != nil {
		return fn.compiledBody, nil
	}
	e, err := parser.ParseExpr(fn.Body)
	if err != nil {
		return nil, err
	}
	fn.compiledBody = e
	return e, nil
}
