package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/emberdb/internal/dberr"
	"github.com/roach88/emberdb/internal/schema"
	"github.com/roach88/emberdb/internal/value"
)

type row []value.Value

func (r row) Value(i int) value.Value { return r[i] }

func personSchema(t *testing.T) *schema.ObjectSchema {
	t.Helper()
	s, err := schema.New(
		schema.ObjectSchema{
			Name: "PersonObject",
			Properties: []schema.Property{
				{Name: "name", Type: schema.TypeString},
				{Name: "age", Type: schema.TypeDouble},
				{Name: "married", Type: schema.TypeBool},
				{Name: "nick", Type: schema.TypeString, Optional: true},
				{Name: "born", Type: schema.TypeDate},
				{Name: "best", Type: schema.TypeObject, ObjectType: "PersonObject", Optional: true},
				{Name: "friends", Type: schema.TypeList, ObjectType: "PersonObject"},
				{Name: "photo", Type: schema.TypeData},
				{Name: "rank", Type: schema.TypeInt},
				{Name: "score", Type: schema.TypeFloat},
			},
		},
	)
	require.NoError(t, err)
	os, _ := s.Lookup("PersonObject")
	return os
}

func person(name string, age float64, married bool) row {
	return row{
		value.String(name), value.Double(age), value.Bool(married), value.Null{},
		value.Date(0), value.Null{}, value.LinkList{}, value.Data{}, value.Int(int64(age)), value.Float(float32(age) + 0.1),
	}
}

func people() []row {
	return []row{
		person("Ari", 10, false),
		person("Tim", 11, true),
		person("Bjarne", 12, false),
		person("Alex", 12, true),
	}
}

func count(t *testing.T, src string, args ...any) int {
	t.Helper()
	p, err := Compile(personSchema(t), src, args, nil)
	require.NoError(t, err, src)
	n := 0
	for _, r := range people() {
		if p.Match(r) {
			n++
		}
	}
	return n
}

func TestCompileMatches(t *testing.T) {
	tests := []struct {
		src  string
		args []any
		want int
	}{
		{"", nil, 4},
		{"   ", nil, 4},
		{"truepredicate", nil, 4},
		{"FALSEPREDICATE", nil, 0},
		{"age = 11", nil, 1},
		{"age == 11", nil, 1},
		{"age = $0", []any{11}, 1},
		{"age > $1 && age < $0", []any{13, 10}, 3},
		{"age > $1 AND age < $0", []any{13, 10}, 3},
		{"age < 11 || age > 11", nil, 3},
		{"age <= 11", nil, 2},
		{"age >= 12", nil, 2},
		{"age != 12", nil, 2},
		{"11 < age", nil, 2},
		{"name = 'Tim'", nil, 1},
		{`name = "Tim"`, nil, 1},
		{"name == $0", []any{"Tim"}, 1},
		{"married == TRUE", nil, 2},
		{"married == false", nil, 2},
		{"NOT (married == true)", nil, 2},
		{"!(age > 10) || name BEGINSWITH 'B'", nil, 2},
		{"name BEGINSWITH 'A'", nil, 2},
		{"name ENDSWITH 'm'", nil, 1},
		{"name CONTAINS 'jar'", nil, 1},
		{"name CONTAINS[c] 'JAR'", nil, 1},
		{"name ==[c] 'tim'", nil, 1},
		{"name < 'B'", nil, 2},
		{"nick == null", nil, 4},
		{"nick != nil", nil, 0},
		{"nick > 'a'", nil, 0},
		{"best == null", nil, 4},
		{"rank > 10.5", nil, 3},
		{"rank == age", nil, 4},
		{"score > 11", nil, 3},
		{"age > -1", nil, 4},
		{"(age = 10 || age = 11) && married == true", nil, 1},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, count(t, tt.src, tt.args...))
		})
	}
}

func TestFloatComparesAtSinglePrecision(t *testing.T) {
	os := personSchema(t)
	p, err := Compile(os, "score == 1.1", nil, nil)
	require.NoError(t, err)

	r := person("x", 0, false)
	r[9] = value.Float(float32(1.1))
	assert.True(t, p.Match(r))
}

func TestDateParameters(t *testing.T) {
	os := personSchema(t)
	cutoff := time.UnixMilli(1000)
	p, err := Compile(os, "born > $0", []any{cutoff}, nil)
	require.NoError(t, err)

	early := person("a", 1, false)
	early[4] = value.Date(999)
	late := person("b", 1, false)
	late[4] = value.Date(1001)
	assert.False(t, p.Match(early))
	assert.True(t, p.Match(late))
}

func TestLinkComparison(t *testing.T) {
	os := personSchema(t)
	target := value.Link{Type: "PersonObject", ID: 7}
	resolve := func(arg any) (value.Link, bool) {
		if arg == "seven" {
			return target, true
		}
		return value.Link{}, false
	}

	p, err := Compile(os, "best == $0", []any{"seven"}, resolve)
	require.NoError(t, err)

	r := person("a", 1, false)
	assert.False(t, p.Match(r))
	r[5] = target
	assert.True(t, p.Match(r))

	_, err = Compile(os, "best == $0", []any{42}, resolve)
	assert.ErrorIs(t, err, dberr.ErrTypeMismatch)

	_, err = Compile(os, "best > $0", []any{"seven"}, resolve)
	assert.ErrorIs(t, err, dberr.ErrQuerySyntax)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		src  string
		args []any
		kind dberr.Kind
	}{
		{"age > $1 && age < $0 && age != $2", []any{13, 10}, dberr.KindQueryParameter},
		{"age = $0", nil, dberr.KindQueryParameter},
		{"age =", nil, dberr.KindQuerySyntax},
		{"age", nil, dberr.KindQuerySyntax},
		{"!married", nil, dberr.KindQuerySyntax},
		{"(age = 1", nil, dberr.KindQuerySyntax},
		{"age = 1)", nil, dberr.KindQuerySyntax},
		{"age = 'unterminated", nil, dberr.KindQuerySyntax},
		{"age = 1 &&", nil, dberr.KindQuerySyntax},
		{"age # 1", nil, dberr.KindQuerySyntax},
		{"height = 1", nil, dberr.KindQuerySyntax},
		{"1 = 1", nil, dberr.KindQuerySyntax},
		{"married > true", nil, dberr.KindQuerySyntax},
		{"photo < $0", []any{[]byte{1}}, dberr.KindQuerySyntax},
		{"friends == null", nil, dberr.KindQuerySyntax},
		{"age BEGINSWITH 'a'", nil, dberr.KindQuerySyntax},
		{"'a' BEGINSWITH name", nil, dberr.KindQuerySyntax},
		{"age ==[c] 1", nil, dberr.KindQuerySyntax},
		{"$", nil, dberr.KindQuerySyntax},
		{"age = 'ten'", nil, dberr.KindTypeMismatch},
		{"name = 10", nil, dberr.KindTypeMismatch},
		{"married == $0", []any{"yes"}, dberr.KindTypeMismatch},
		{"name == age", nil, dberr.KindTypeMismatch},
		{"name BEGINSWITH null", nil, dberr.KindTypeMismatch},
	}

	os := personSchema(t)
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := Compile(os, tt.src, tt.args, nil)
			require.Error(t, err)
			assert.Equal(t, tt.kind, dberr.KindOf(err), err.Error())
		})
	}
}

func TestParseParams(t *testing.T) {
	q, err := Parse("age > $1 && age < $0")
	require.NoError(t, err)
	assert.Equal(t, 2, q.Params)

	q, err = Parse("age > 1")
	require.NoError(t, err)
	assert.Equal(t, 0, q.Params)
}

func TestParsePrecedence(t *testing.T) {
	q, err := Parse("a = 1 || b = 2 && c = 3")
	require.NoError(t, err)

	or, ok := q.Expr.(Or)
	require.True(t, ok, "OR binds loosest")
	_, ok = or.Right.(And)
	assert.True(t, ok)
}

func TestParseLiterals(t *testing.T) {
	tests := []struct {
		src  string
		want any
	}{
		{"a = 1", int64(1)},
		{"a = -2", int64(-2)},
		{"a = 1.5", 1.5},
		{"a = 1e3", 1000.0},
		{`a = 'it\'s'`, "it's"},
		{`a = "tab\t"`, "tab\t"},
		{"a = TRUE", true},
		{"a = False", false},
		{"a = nil", nil},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			q, err := Parse(tt.src)
			require.NoError(t, err)
			cmp := q.Expr.(Comparison)
			assert.Equal(t, OpEqual, cmp.Op)
			assert.Equal(t, tt.want, cmp.Right.(Literal).Value)
		})
	}
}

func TestPredicateAnd(t *testing.T) {
	os := personSchema(t)
	a, err := Compile(os, "age > 10", nil, nil)
	require.NoError(t, err)
	b, err := Compile(os, "married == true", nil, nil)
	require.NoError(t, err)

	both := a.And(b)
	n := 0
	for _, r := range people() {
		if both.Match(r) {
			n++
		}
	}
	assert.Equal(t, 2, n)
	assert.Equal(t, "(age > 10) && (married == true)", both.String())

	var none *Predicate
	assert.Same(t, b, none.And(b))
	assert.True(t, MatchAll().Match(people()[0]))
}
