// Package expr implements the WHERE/HAVING expression AST and its
// row-level evaluator: comparisons, short-circuiting boolean logic, LIKE,
// IN, BETWEEN, arithmetic, and the table-level vector_search form.
package expr

import (
	"fmt"
	"strings"

	"github.com/zhukovaskychina/grizzly/errs"
	"github.com/zhukovaskychina/grizzly/value"
)

// CompareOp is one of the six comparison operators.
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNe
	OpLt
	OpGt
	OpLe
	OpGe
)

func (op CompareOp) String() string {
	switch op {
	case OpEq:
		return "="
	case OpNe:
		return "<>"
	case OpLt:
		return "<"
	case OpGt:
		return ">"
	case OpLe:
		return "<="
	case OpGe:
		return ">="
	}
	return "?"
}

// LogicalOp is AND/OR/NOT.
type LogicalOp int

const (
	OpAnd LogicalOp = iota
	OpOr
	OpNot
)

// Expr is the sum type over every node kind: literals, column
// references, comparisons, logical ops, IS [NOT] NULL, LIKE, IN, BETWEEN,
// arithmetic, and vector_search. Binary/unary nodes exclusively own their
// children.
type Expr interface {
	isExpr()
	String() string
}

// Literal is a constant value.Value.
type Literal struct{ Value value.Value }

// ColumnRef names a column, optionally table-qualified ("t.c").
type ColumnRef struct {
	Table string
	Name  string
}

// Comparison is a binary comparison `Left Op Right`.
type Comparison struct {
	Op          CompareOp
	Left, Right Expr
}

// Logical is AND/OR (binary) or NOT (unary, Right is nil).
type Logical struct {
	Op          LogicalOp
	Left, Right Expr
}

// IsNull / IsNotNull are syntactically supported but, because Value has
// no NULL variant, always evaluate to false/true respectively -- a
// documented design limitation, not a bug.
type IsNull struct {
	Operand Expr
	Negate  bool // true => IS NOT NULL
}

// Like is SQL LIKE with % and _ wildcards.
type Like struct {
	Operand Expr
	Pattern string
	Negate  bool
}

// In is set membership by structural Value equality.
type In struct {
	Operand Expr
	Set     []Expr
	Negate  bool
}

// Between is `Operand BETWEEN Low AND High`, inclusive both ends.
type Between struct {
	Operand, Low, High Expr
	Negate             bool
}

// VectorSearch is the distinguished table-level operator: it cannot be
// row-evaluated and must be routed to a vector-index operator upstream.
type VectorSearch struct {
	Column string
	Query  []float32
	K      int
}

// ArithOp is one of the four additive/multiplicative operators
// (`additive < multiplicative` in the precedence table).
type ArithOp int

const (
	OpAdd ArithOp = iota
	OpSub
	OpMul
	OpDiv
)

func (op ArithOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	}
	return "?"
}

// Arithmetic is a binary `+ - * /` expression over numeric operands.
type Arithmetic struct {
	Op          ArithOp
	Left, Right Expr
}

func (*Arithmetic) isExpr() {}
func (a *Arithmetic) String() string {
	return fmt.Sprintf("(%s %s %s)", a.Left, a.Op, a.Right)
}

func (*Literal) isExpr()      {}
func (*ColumnRef) isExpr()    {}
func (*Comparison) isExpr()   {}
func (*Logical) isExpr()      {}
func (*IsNull) isExpr()       {}
func (*Like) isExpr()         {}
func (*In) isExpr()           {}
func (*Between) isExpr()      {}
func (*VectorSearch) isExpr() {}

func (l *Literal) String() string { return l.Value.String() }
func (c *ColumnRef) String() string {
	if c.Table != "" {
		return c.Table + "." + c.Name
	}
	return c.Name
}
func (c *Comparison) String() string {
	return fmt.Sprintf("(%s %s %s)", c.Left, c.Op, c.Right)
}
func (l *Logical) String() string {
	switch l.Op {
	case OpNot:
		return fmt.Sprintf("(NOT %s)", l.Left)
	case OpAnd:
		return fmt.Sprintf("(%s AND %s)", l.Left, l.Right)
	default:
		return fmt.Sprintf("(%s OR %s)", l.Left, l.Right)
	}
}
func (n *IsNull) String() string {
	if n.Negate {
		return fmt.Sprintf("(%s IS NOT NULL)", n.Operand)
	}
	return fmt.Sprintf("(%s IS NULL)", n.Operand)
}
func (p *Like) String() string {
	if p.Negate {
		return fmt.Sprintf("(%s NOT LIKE %q)", p.Operand, p.Pattern)
	}
	return fmt.Sprintf("(%s LIKE %q)", p.Operand, p.Pattern)
}
func (i *In) String() string {
	parts := make([]string, len(i.Set))
	for idx, e := range i.Set {
		parts[idx] = e.String()
	}
	kw := "IN"
	if i.Negate {
		kw = "NOT IN"
	}
	return fmt.Sprintf("(%s %s (%s))", i.Operand, kw, strings.Join(parts, ", "))
}
func (b *Between) String() string {
	kw := "BETWEEN"
	if b.Negate {
		kw = "NOT BETWEEN"
	}
	return fmt.Sprintf("(%s %s %s AND %s)", b.Operand, kw, b.Low, b.High)
}
func (v *VectorSearch) String() string {
	return fmt.Sprintf("vector_search(%s, <query>, %d)", v.Column, v.K)
}

// Row is the minimal row-evaluation context: resolve a column reference to
// its Value. The executor supplies this from a materialized table row.
type Row interface {
	Column(table, name string) (value.Value, error)
}

// Eval evaluates e against row, short-circuiting AND/OR/NOT. A
// VectorSearch anywhere in the tree is rejected here -- it must be lifted
// out by the planner into a dedicated vector-index operator.
func Eval(e Expr, row Row) (value.Value, error) {
	switch n := e.(type) {
	case *Literal:
		return n.Value, nil
	case *ColumnRef:
		return row.Column(n.Table, n.Name)
	case *VectorSearch:
		return value.Value{}, errs.New(errs.VectorSearchRequiresTableContext,
			"vector_search(%s) requires table-level execution", n.Column)
	case *Comparison:
		return evalComparison(n, row)
	case *Logical:
		return evalLogical(n, row)
	case *IsNull:
		// No Value variant represents NULL, so IS NULL is always false
		// and IS NOT NULL always true.
		return value.NewBool(n.Negate), nil
	case *Like:
		return evalLike(n, row)
	case *In:
		return evalIn(n, row)
	case *Between:
		return evalBetween(n, row)
	case *Arithmetic:
		return evalArithmetic(n, row)
	default:
		return value.Value{}, errs.New(errs.InvalidExpression, "unsupported expression %T", e)
	}
}

func evalArithmetic(a *Arithmetic, row Row) (value.Value, error) {
	l, err := Eval(a.Left, row)
	if err != nil {
		return value.Value{}, err
	}
	r, err := Eval(a.Right, row)
	if err != nil {
		return value.Value{}, err
	}
	if !l.IsNumeric() || !r.IsNumeric() {
		return value.Value{}, errs.New(errs.InvalidOperandTypes, "arithmetic %s requires numeric operands, got %s and %s", a.Op, l.Kind(), r.Kind())
	}
	useFloat := l.Kind() == value.Float32 || l.Kind() == value.Float64 ||
		r.Kind() == value.Float32 || r.Kind() == value.Float64
	if a.Op == OpDiv {
		if r.Float() == 0 {
			return value.Value{}, errs.New(errs.DivisionByZero, "division by zero")
		}
		return value.NewFloat64(l.Float() / r.Float()), nil
	}
	if useFloat {
		switch a.Op {
		case OpAdd:
			return value.NewFloat64(l.Float() + r.Float()), nil
		case OpSub:
			return value.NewFloat64(l.Float() - r.Float()), nil
		case OpMul:
			return value.NewFloat64(l.Float() * r.Float()), nil
		}
	}
	switch a.Op {
	case OpAdd:
		return value.NewInt64(l.Int() + r.Int()), nil
	case OpSub:
		return value.NewInt64(l.Int() - r.Int()), nil
	case OpMul:
		return value.NewInt64(l.Int() * r.Int()), nil
	}
	return value.Value{}, errs.New(errs.InvalidExpression, "unreachable arithmetic op %s", a.Op)
}

// EvalBool is Eval plus an unwrap to bool, the shape Filter/HAVING use.
func EvalBool(e Expr, row Row) (bool, error) {
	v, err := Eval(e, row)
	if err != nil {
		return false, err
	}
	return v.Bool(), nil
}

func evalComparison(c *Comparison, row Row) (value.Value, error) {
	l, err := Eval(c.Left, row)
	if err != nil {
		return value.Value{}, err
	}
	r, err := Eval(c.Right, row)
	if err != nil {
		return value.Value{}, err
	}
	cmp := l.Compare(r)
	var result bool
	switch c.Op {
	case OpEq:
		result = cmp == 0
	case OpNe:
		result = cmp != 0
	case OpLt:
		result = cmp < 0
	case OpGt:
		result = cmp > 0
	case OpLe:
		result = cmp <= 0
	case OpGe:
		result = cmp >= 0
	}
	return value.NewBool(result), nil
}

// evalLogical short-circuits: AND stops at the first false, OR at the
// first true.
func evalLogical(l *Logical, row Row) (value.Value, error) {
	if l.Op == OpNot {
		v, err := EvalBool(l.Left, row)
		if err != nil {
			return value.Value{}, err
		}
		return value.NewBool(!v), nil
	}
	left, err := EvalBool(l.Left, row)
	if err != nil {
		return value.Value{}, err
	}
	if l.Op == OpAnd && !left {
		return value.NewBool(false), nil
	}
	if l.Op == OpOr && left {
		return value.NewBool(true), nil
	}
	right, err := EvalBool(l.Right, row)
	if err != nil {
		return value.Value{}, err
	}
	return value.NewBool(right), nil
}

func evalLike(p *Like, row Row) (value.Value, error) {
	v, err := Eval(p.Operand, row)
	if err != nil {
		return value.Value{}, err
	}
	matched := MatchLike(v.String(), p.Pattern)
	if p.Negate {
		matched = !matched
	}
	return value.NewBool(matched), nil
}

// MatchLike implements SQL LIKE semantics: % matches any (possibly empty)
// run of characters, _ matches exactly one character, everything else
// matches literally.
func MatchLike(s, pattern string) bool {
	return likeMatch([]rune(s), []rune(pattern))
}

func likeMatch(s, p []rune) bool {
	// Iterative greedy matcher: on a mismatch it backtracks to the most
	// recent % and lets it absorb one more character, so it needs neither
	// recursion nor a memo table.
	var si, pi, star, match int
	star = -1
	for si < len(s) {
		if pi < len(p) && (p[pi] == '_' || p[pi] == s[si]) {
			si++
			pi++
		} else if pi < len(p) && p[pi] == '%' {
			star = pi
			match = si
			pi++
		} else if star != -1 {
			pi = star + 1
			match++
			si = match
		} else {
			return false
		}
	}
	for pi < len(p) && p[pi] == '%' {
		pi++
	}
	return pi == len(p)
}

func evalIn(in *In, row Row) (value.Value, error) {
	v, err := Eval(in.Operand, row)
	if err != nil {
		return value.Value{}, err
	}
	found := false
	for _, e := range in.Set {
		ev, err := Eval(e, row)
		if err != nil {
			return value.Value{}, err
		}
		if v.Equal(ev) {
			found = true
			break
		}
	}
	if in.Negate {
		found = !found
	}
	return value.NewBool(found), nil
}

func evalBetween(b *Between, row Row) (value.Value, error) {
	v, err := Eval(b.Operand, row)
	if err != nil {
		return value.Value{}, err
	}
	lo, err := Eval(b.Low, row)
	if err != nil {
		return value.Value{}, err
	}
	hi, err := Eval(b.High, row)
	if err != nil {
		return value.Value{}, err
	}
	in := v.Compare(lo) >= 0 && v.Compare(hi) <= 0
	if b.Negate {
		in = !in
	}
	return value.NewBool(in), nil
}

// ColumnRefs collects every ColumnRef reachable from e, used by the
// optimizer's index-selection pass and by SHOW LINEAGE FOR COLUMN's
// shallow identifier scan.
func ColumnRefs(e Expr) []*ColumnRef {
	var out []*ColumnRef
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case *ColumnRef:
			out = append(out, n)
		case *Comparison:
			walk(n.Left)
			walk(n.Right)
		case *Logical:
			walk(n.Left)
			if n.Right != nil {
				walk(n.Right)
			}
		case *IsNull:
			walk(n.Operand)
		case *Like:
			walk(n.Operand)
		case *In:
			walk(n.Operand)
			for _, s := range n.Set {
				walk(s)
			}
		case *Between:
			walk(n.Operand)
			walk(n.Low)
			walk(n.High)
		case *Arithmetic:
			walk(n.Left)
			walk(n.Right)
		}
	}
	walk(e)
	return out
}

// ConjunctiveEqualities flattens a top-level AND-conjunction into its
// column=literal equality terms, used by the optimizer's index-selection
// rule. Non-equality/non-AND terms are ignored; the caller decides
// whether the remaining predicate still needs a Filter.
func ConjunctiveEqualities(e Expr) map[string]value.Value {
	out := make(map[string]value.Value)
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case *Logical:
			if n.Op == OpAnd {
				walk(n.Left)
				walk(n.Right)
			}
		case *Comparison:
			if n.Op != OpEq {
				return
			}
			if col, ok := n.Left.(*ColumnRef); ok {
				if lit, ok := n.Right.(*Literal); ok {
					out[col.Name] = lit.Value
				}
			} else if col, ok := n.Right.(*ColumnRef); ok {
				if lit, ok := n.Left.(*Literal); ok {
					out[col.Name] = lit.Value
				}
			}
		}
	}
	walk(e)
	return out
}
