package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validate(t *testing.T, src string) []ValidationError {
	t.Helper()
	return Validate(cuecontext.New().CompileString(src))
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidate_Valid(t *testing.T) {
	assert.Empty(t, validate(t, peopleCUE))
}

func TestValidate_CollectsAll(t *testing.T) {
	errs := validate(t, `
extra: true
types: {
	A: {
		properties: {x: [...int]}
		bogus: 1
	}
	B: primaryKey: "id"
	C: properties: y: {type: "int", default: int}
}
`)
	assert.ElementsMatch(t, []string{
		ErrUnknownField,    // extra
		ErrUnsupportedKind, // A.x
		ErrUnknownField,    // A.bogus
		ErrMissingField,    // B.properties
		ErrInvalidValue,    // C.y default
	}, codes(errs))
	for _, e := range errs {
		assert.Positive(t, e.Line, e.Error())
	}
}

func TestValidate_InvalidCUE(t *testing.T) {
	errs := validate(t, `types: A: properties: x: int & string`)
	require.NotEmpty(t, errs)
	assert.Equal(t, ErrInvalidCUE, errs[0].Code)
}

func TestValidate_SchemaRejected(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"unknown link target", `types: A: properties: b: "Missing"`, "types.A.properties.b"},
		{"bad primary key", `types: A: {primaryKey: "x", properties: x: bool}`, "types.A.properties.x"},
		{"undeclared primary key", `types: A: {primaryKey: "nope", properties: x: int}`, "types.A"},
		{"empty properties", `types: A: properties: {}`, "types.A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := validate(t, tt.src)
			require.Len(t, errs, 1)
			assert.Equal(t, ErrSchemaRejected, errs[0].Code)
			assert.Equal(t, tt.field, errs[0].Field)
		})
	}
}

func TestValidate_RequiredLinkCycle(t *testing.T) {
	errs := validate(t, `types: {
	A: properties: b: {type: "B", optional: false}
	B: properties: a: {type: "A", optional: false}
}`)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrRequiredLinkCycle, errs[0].Code)
	assert.Equal(t, "types.A", errs[0].Field)
}

func TestValidationError_Error(t *testing.T) {
	e := ValidationError{Field: "types.A", Message: "boom", Code: ErrUnknownField, Line: 3}
	assert.Equal(t, "[E101] line 3: types.A: boom", e.Error())
	e.Line = 0
	assert.Equal(t, "[E101] types.A: boom", e.Error())
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	assert.Empty(t, ValidateFile(write("ok.cue", peopleCUE)))
	assert.Empty(t, ValidateFile(write("ok.yaml", "- name: A\n  properties: {x: int}\n")))

	errs := ValidateFile(write("bad.yaml", "- name: A\n  properties: {x: Missing}\n"))
	require.Len(t, errs, 1)
	assert.Equal(t, ErrSchemaRejected, errs[0].Code)
	assert.Equal(t, "types.A.properties.x", errs[0].Field)

	errs = ValidateFile(write("cycle.yaml", "- name: A\n  properties:\n    a: {type: A, optional: false}\n"))
	require.Len(t, errs, 1)
	assert.True(t, IsWarning(errs[0].Code))

	errs = ValidateFile(write("broken.cue", "types: {"))
	require.Len(t, errs, 1)
	assert.Equal(t, ErrInvalidCUE, errs[0].Code)

	errs = ValidateFile(filepath.Join(dir, "missing.cue"))
	require.Len(t, errs, 1)
	assert.Equal(t, ErrInvalidCUE, errs[0].Code)
	assert.False(t, IsWarning(errs[0].Code))
}
