package query

import (
	"strings"

	"github.com/roach88/emberdb/internal/coerce"
	"github.com/roach88/emberdb/internal/dberr"
	"github.com/roach88/emberdb/internal/schema"
	"github.com/roach88/emberdb/internal/value"
)

// Row exposes the current property values of one object, indexed by
// declared property position.
type Row interface {
	Value(index int) value.Value
}

// LinkResolver maps a query argument to a link, for comparisons against
// object properties. It returns false when the argument is not an object.
type LinkResolver func(arg any) (value.Link, bool)

// Predicate is a query bound to an object type and its arguments.
// Arguments are coerced once, at compile time.
type Predicate struct {
	source string
	match  func(Row) bool
}

// Match reports whether the row satisfies the predicate.
func (p *Predicate) Match(r Row) bool {
	if p == nil || p.match == nil {
		return true
	}
	return p.match(r)
}

// String returns the predicate source.
func (p *Predicate) String() string {
	if p == nil {
		return ""
	}
	return p.source
}

// MatchAll returns a predicate that accepts every row.
func MatchAll() *Predicate {
	return &Predicate{source: "TRUEPREDICATE", match: func(Row) bool { return true }}
}

// And combines two predicates.
func (p *Predicate) And(other *Predicate) *Predicate {
	if p == nil {
		return other
	}
	if other == nil {
		return p
	}
	return &Predicate{
		source: "(" + p.source + ") && (" + other.source + ")",
		match:  func(r Row) bool { return p.Match(r) && other.Match(r) },
	}
}

// Compile parses src and binds it to os and args.
//
// Errors:
//   - QuerySyntax: malformed predicate, unknown property, or an operator
//     that does not apply to the property type
//   - QueryParameter: a $n with no corresponding argument
//   - TypeMismatch: a literal or argument that does not fit the property
func Compile(os *schema.ObjectSchema, src string, args []any, resolve LinkResolver) (*Predicate, error) {
	q, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return Bind(os, q, args, resolve)
}

// Bind binds a parsed query to os and args.
func Bind(os *schema.ObjectSchema, q *Query, args []any, resolve LinkResolver) (*Predicate, error) {
	if q.Params > len(args) {
		return nil, errParam(q.Params-1, len(args))
	}
	c := &compiler{os: os, src: q.Source, args: args, resolve: resolve}
	match, err := c.compile(q.Expr)
	if err != nil {
		return nil, err
	}
	return &Predicate{source: q.Source, match: match}, nil
}

type compiler struct {
	os      *schema.ObjectSchema
	src     string
	args    []any
	resolve LinkResolver
}

func (c *compiler) compile(e Expr) (func(Row) bool, error) {
	switch n := e.(type) {
	case Const:
		b := bool(n)
		return func(Row) bool { return b }, nil
	case Not:
		inner, err := c.compile(n.Inner)
		if err != nil {
			return nil, err
		}
		return func(r Row) bool { return !inner(r) }, nil
	case And:
		l, err := c.compile(n.Left)
		if err != nil {
			return nil, err
		}
		r, err := c.compile(n.Right)
		if err != nil {
			return nil, err
		}
		return func(row Row) bool { return l(row) && r(row) }, nil
	case Or:
		l, err := c.compile(n.Left)
		if err != nil {
			return nil, err
		}
		r, err := c.compile(n.Right)
		if err != nil {
			return nil, err
		}
		return func(row Row) bool { return l(row) || r(row) }, nil
	case Comparison:
		return c.compileComparison(n)
	}
	return nil, syntaxError(c.src, 0, "unsupported expression %T", e)
}

func (c *compiler) compileComparison(n Comparison) (func(Row) bool, error) {
	left, lok := n.Left.(Property)
	right, rok := n.Right.(Property)
	op := n.Op

	switch {
	case !lok && !rok:
		return nil, syntaxError(c.src, n.Pos, "comparison must reference a property")
	case !lok:
		flipped, ok := op.flip()
		if !ok {
			return nil, syntaxError(c.src, n.Pos, "%s requires a property on the left", op)
		}
		op = flipped
		left, n.Left, n.Right = right, n.Right, n.Left
	}

	lp, err := c.property(left)
	if err != nil {
		return nil, err
	}
	if err := c.checkOperator(lp, op, n); err != nil {
		return nil, err
	}

	ci := n.CaseInsensitive
	li := lp.Index

	if rp, ok := n.Right.(Property); ok {
		rprop, err := c.property(rp)
		if err != nil {
			return nil, err
		}
		if !compatible(lp, rprop) {
			return nil, dberr.New(dberr.KindTypeMismatch, "cannot compare %s property %q with %s property %q",
				lp.Type, lp.Name, rprop.Type, rprop.Name).WithType(c.os.Name)
		}
		ri := rprop.Index
		return func(r Row) bool {
			return evalCompare(op, ci, r.Value(li), r.Value(ri))
		}, nil
	}

	rv, err := c.operandValue(lp, op, n.Right)
	if err != nil {
		return nil, err
	}
	return func(r Row) bool {
		return evalCompare(op, ci, r.Value(li), rv)
	}, nil
}

func (c *compiler) property(ref Property) (*schema.Property, error) {
	p, ok := c.os.Property(ref.Name)
	if !ok {
		return nil, syntaxError(c.src, ref.Pos, "no property %q on type %q", ref.Name, c.os.Name)
	}
	return p, nil
}

func (c *compiler) checkOperator(p *schema.Property, op Op, n Comparison) error {
	switch {
	case p.Type == schema.TypeList:
		return syntaxError(c.src, n.Pos, "list property %q cannot be compared", p.Name)
	case op.ordering() && !p.Type.Ordered():
		return syntaxError(c.src, n.Pos, "operator %s is not supported for %s property %q", op, p.Type, p.Name)
	case op.stringOp() && p.Type != schema.TypeString:
		return syntaxError(c.src, n.Pos, "operator %s requires a string property, %q is %s", op, p.Name, p.Type)
	case n.CaseInsensitive && p.Type != schema.TypeString:
		return syntaxError(c.src, n.Pos, "[c] only applies to string properties")
	}
	return nil
}

func compatible(a, b *schema.Property) bool {
	numeric := func(t schema.PropertyType) bool {
		return t == schema.TypeInt || t == schema.TypeFloat || t == schema.TypeDouble
	}
	if numeric(a.Type) && numeric(b.Type) {
		return true
	}
	if a.Type != b.Type {
		return false
	}
	return a.Type != schema.TypeObject || a.ObjectType == b.ObjectType
}

// operandValue resolves a literal or argument and coerces it to the
// property's storage type.
func (c *compiler) operandValue(p *schema.Property, op Op, operand Operand) (value.Value, error) {
	var raw any
	switch o := operand.(type) {
	case Literal:
		raw = o.Value
	case Param:
		raw = c.args[o.Index]
	}

	if coerce.IsNull(raw) {
		if op.stringOp() {
			return nil, dberr.New(dberr.KindTypeMismatch, "%s cannot compare against null", op).WithProperty(c.os.Name, p.Name)
		}
		return value.Null{}, nil
	}

	// Comparisons accept null on any property, so coerce against an
	// optional copy of the descriptor.
	target := *p
	target.Optional = true

	switch p.Type {
	case schema.TypeObject:
		if c.resolve != nil {
			if link, ok := c.resolve(raw); ok {
				if link.Type != p.ObjectType {
					return nil, dberr.New(dberr.KindTypeMismatch, "expected %s object, got %s", p.ObjectType, link.Type).WithProperty(c.os.Name, p.Name)
				}
				return link, nil
			}
		}
		if link, ok := raw.(value.Link); ok && link.Type == p.ObjectType {
			return link, nil
		}
		return nil, dberr.New(dberr.KindTypeMismatch, "%T is not a %s object", raw, p.ObjectType).WithProperty(c.os.Name, p.Name)
	case schema.TypeInt:
		if v, err := coerce.Scalar(c.os.Name, &target, raw, coerce.Strict); err == nil {
			return v, nil
		}
		// age > 10.5 is meaningful; compare as double.
		target.Type = schema.TypeDouble
		return coerce.Scalar(c.os.Name, &target, raw, coerce.Strict)
	case schema.TypeDate, schema.TypeData:
		return coerce.Scalar(c.os.Name, &target, raw, coerce.Loose)
	default:
		return coerce.Scalar(c.os.Name, &target, raw, coerce.Strict)
	}
}

func evalCompare(op Op, caseInsensitive bool, l, r value.Value) bool {
	if value.IsNull(l) || value.IsNull(r) {
		both := value.IsNull(l) && value.IsNull(r)
		switch op {
		case OpEqual:
			return both
		case OpNotEqual:
			return !both
		}
		return false
	}

	if caseInsensitive {
		if ls, ok := l.(value.String); ok {
			l = value.String(strings.ToLower(string(ls)))
		}
		if rs, ok := r.(value.String); ok {
			r = value.String(strings.ToLower(string(rs)))
		}
	}

	switch op {
	case OpEqual:
		return value.Equal(l, r)
	case OpNotEqual:
		return !value.Equal(l, r)
	case OpBeginsWith, OpEndsWith, OpContains:
		ls, lok := l.(value.String)
		rs, rok := r.(value.String)
		if !lok || !rok {
			return false
		}
		switch op {
		case OpBeginsWith:
			return strings.HasPrefix(string(ls), string(rs))
		case OpEndsWith:
			return strings.HasSuffix(string(ls), string(rs))
		default:
			return strings.Contains(string(ls), string(rs))
		}
	}

	cmp, ok := value.Compare(l, r)
	if !ok {
		return false
	}
	switch op {
	case OpLess:
		return cmp < 0
	case OpLessEq:
		return cmp <= 0
	case OpGreater:
		return cmp > 0
	case OpGreaterEq:
		return cmp >= 0
	}
	return false
}
