// Package plgrizzly implements PL-Grizzly: the small procedural layer
// for templated SQL and user-defined functions. A function's SYNC/ASYNC
// tag never selects a real async runtime; it only picks between two
// evaluation times -- SYNC bodies are textually expanded into the
// surrounding SQL before parsing, ASYNC bodies are compiled into an
// expr.Expr and evaluated once per call at execution time.
//
// Builtins live in a two-bucket registry (cast vs. misc), populated at
// construction time, plus a UserFunction set CREATE FUNCTION populates.
package plgrizzly

import (
	"strings"
	"sync"

	"github.com/zhukovaskychina/grizzly/errs"
	gexpr "github.com/zhukovaskychina/grizzly/expr"
	"github.com/zhukovaskychina/grizzly/parser"
	"github.com/zhukovaskychina/grizzly/value"
)

// Mode is the SYNC/ASYNC tag the CREATE FUNCTION grammar carries.
type Mode string

const (
	Sync  Mode = "SYNC"
	Async Mode = "ASYNC"
)

// BuiltinFunc is a builtin's evaluator: a plain value-in/value-out call,
// since builtins never need row/column context beyond their arguments.
type BuiltinFunc func(args []value.Value) (value.Value, error)

// UserFunction is one CREATE FUNCTION definition, keyed by lowercase name.
type UserFunction struct {
	Name       string
	Params     []string
	ReturnType string
	Mode       Mode
	Body       string

	// compiledBody caches Body's parsed form for ASYNC calls (CallAsync);
	// compileMu guards first-compile races between concurrent callers.
	compileMu    sync.Mutex
	compiledBody gexpr.Expr
}

// Registry holds Grizzly's builtin function tables (split cast/misc) and
// the user functions CREATE FUNCTION adds. One Registry is owned per
// engine.Database, keeping what would otherwise be global state on the
// database handle.
type Registry struct {
	mu   sync.RWMutex
	cast map[string]BuiltinFunc
	misc map[string]BuiltinFunc
	user map[string]*UserFunction
}

// NewRegistry builds a Registry pre-populated with Grizzly's builtin
// function tables.
func NewRegistry() *Registry {
	r := &Registry{
		cast: map[string]BuiltinFunc{},
		misc: map[string]BuiltinFunc{},
		user: map[string]*UserFunction{},
	}
	registerCastBuiltins(r.cast)
	registerMiscBuiltins(r.misc)
	return r
}

// RegisterUser installs or replaces a CREATE FUNCTION definition,
// matching the overwrite-on-redefine convention engine.RegisterTable
// already uses for CREATE TABLE.
func (r *Registry) RegisterUser(stmt *parser.CreateFunctionStmt) *UserFunction {
	params := make([]string, len(stmt.Params))
	for i, p := range stmt.Params {
		params[i] = p.Name
	}
	fn := &UserFunction{
		Name:       stmt.Name,
		Params:     params,
		ReturnType: stmt.ReturnType.String(),
		Mode:       Mode(strings.ToUpper(stmt.Mode)),
		Body:       stmt.Body,
	}
	r.mu.Lock()
	r.user[strings.ToLower(stmt.Name)] = fn
	r.mu.Unlock()
	return fn
}

// UserFunc looks up a registered user function by name, case-insensitive.
func (r *Registry) UserFunc(name string) (*UserFunction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.user[strings.ToLower(name)]
	return fn, ok
}

// List returns every registered user function name, for SHOW-style
// introspection.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.user))
	for _, fn := range r.user {
		out = append(out, fn.Name)
	}
	return out
}

// CallBuiltin dispatches name against the cast table, then the misc
// table.
func (r *Registry) CallBuiltin(name string, args []value.Value) (value.Value, error) {
	key := strings.ToUpper(name)
	r.mu.RLock()
	fn, ok := r.cast[key]
	if !ok {
		fn, ok = r.misc[key]
	}
	r.mu.RUnlock()
	if !ok {
		return value.Value{}, errs.New(errs.InvalidExpression, "unknown builtin function %q", name)
	}
	return fn(args)
}
