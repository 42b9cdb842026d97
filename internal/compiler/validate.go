package compiler

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/emberdb/internal/dberr"
	"github.com/roach88/emberdb/internal/schema"
)

// Validation error codes (E100-E199)
const (
	ErrInvalidCUE        = "E100" // CUE does not evaluate
	ErrUnknownField      = "E101" // field not part of the schema format
	ErrMissingField      = "E102" // required field absent
	ErrInvalidValue      = "E103" // wrong kind or non-concrete value
	ErrUnsupportedKind   = "E104" // CUE type with no property equivalent
	ErrSchemaRejected    = "E110" // compiled schema failed schema validation
	ErrRequiredLinkCycle = "E120" // objects on the cycle cannot be created
)

// ValidationError is one problem in a schema file.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a schema value and returns every problem found (it does
// not stop at the first one). Schema-level checks, such as unknown link
// targets or bad defaults, run only when the file compiles cleanly.
func Validate(v cue.Value) []ValidationError {
	c := &compiler{}
	f := c.file(v)

	var errs []ValidationError
	for _, ce := range c.errs {
		errs = append(errs, ValidationError{
			Field:   ce.Field,
			Message: ce.Message,
			Code:    codeFor(ce),
			Line:    ce.Pos.Line(),
		})
	}
	if len(errs) > 0 {
		return errs
	}

	sch, err := f.Schema()
	if err != nil {
		return []ValidationError{schemaError(err)}
	}
	return linkWarnings(sch)
}

// ValidateFile validates a schema file of either format (see LoadSchema).
// A file that cannot be read is reported as a single E100 error.
func ValidateFile(path string) []ValidationError {
	switch filepath.Ext(path) {
	case ".yaml", ".yml", ".json":
		sch, err := schema.LoadYAML(path)
		if err != nil {
			return []ValidationError{schemaError(err)}
		}
		return linkWarnings(sch)
	}
	v, err := LoadValue(path)
	if err != nil {
		ve := ValidationError{Field: "cue", Message: err.Error(), Code: ErrInvalidCUE}
		var ce *CompileError
		if errors.As(err, &ce) {
			ve.Message = ce.Message
			ve.Line = ce.Pos.Line()
		}
		return []ValidationError{ve}
	}
	return Validate(v)
}

// IsWarning reports whether a validation code describes a schema that is
// accepted but probably wrong.
func IsWarning(code string) bool {
	return code == ErrRequiredLinkCycle
}

func linkWarnings(sch *schema.Schema) []ValidationError {
	var errs []ValidationError
	for _, w := range AnalyzeLinks(sch) {
		errs = append(errs, ValidationError{
			Field:   "types." + w.Path[0],
			Message: w.Message,
			Code:    ErrRequiredLinkCycle,
		})
	}
	return errs
}

func codeFor(ce *CompileError) string {
	switch {
	case ce.Field == "cue":
		return ErrInvalidCUE
	case strings.HasPrefix(ce.Message, "unknown"):
		return ErrUnknownField
	case strings.HasSuffix(ce.Message, "is required"):
		return ErrMissingField
	case strings.HasPrefix(ce.Message, "unsupported property kind"):
		return ErrUnsupportedKind
	default:
		return ErrInvalidValue
	}
}

func schemaError(err error) ValidationError {
	field := "types"
	var de *dberr.Error
	if errors.As(err, &de) {
		switch {
		case de.Type != "" && de.Property != "":
			field = "types." + de.Type + ".properties." + de.Property
		case de.Type != "":
			field = "types." + de.Type
		}
		return ValidationError{Field: field, Message: de.Message, Code: ErrSchemaRejected}
	}
	return ValidationError{Field: field, Message: err.Error(), Code: ErrSchemaRejected}
}
