// Package dberr defines the error kinds surfaced by EmberDB.
//
// Every failure that callers are expected to branch on is an *Error carrying
// a Kind. Match kinds with errors.Is against the sentinel values:
//
//	if errors.Is(err, dberr.ErrDuplicateKey) { ... }
//
// or extract the kind with KindOf. Errors are always returned synchronously
// to the immediate caller; nothing in EmberDB retries internally.
package dberr

import (
	"errors"
	"fmt"
)

// Kind categorizes an EmberDB error.
type Kind string

const (
	// KindArgument indicates a bad call shape (arity, argument type).
	KindArgument Kind = "ARGUMENT"

	// KindSchemaValidation indicates a malformed schema entry.
	KindSchemaValidation Kind = "SCHEMA_VALIDATION"

	// KindSchemaVersionMismatch indicates an incompatible reopen.
	KindSchemaVersionMismatch Kind = "SCHEMA_VERSION_MISMATCH"

	// KindDuplicateKey indicates a primary-key collision on create.
	KindDuplicateKey Kind = "DUPLICATE_KEY"

	// KindTypeMismatch indicates a value that does not fit its declared type.
	KindTypeMismatch Kind = "TYPE_MISMATCH"

	// KindInvalidNull indicates null or a missing value for a required property.
	KindInvalidNull Kind = "INVALID_NULL"

	// KindTransactionRequired indicates a mutation outside a write transaction.
	KindTransactionRequired Kind = "TRANSACTION_REQUIRED"

	// KindTransactionInProgress indicates a nested write transaction.
	KindTransactionInProgress Kind = "TRANSACTION_IN_PROGRESS"

	// KindQuerySyntax indicates a malformed predicate.
	KindQuerySyntax Kind = "QUERY_SYNTAX"

	// KindQueryParameter indicates a $n placeholder with no bound argument.
	KindQueryParameter Kind = "QUERY_PARAMETER"

	// KindUnknownType indicates an object type that is not in the schema.
	KindUnknownType Kind = "UNKNOWN_TYPE"

	// KindUnknownProperty indicates a property that is not declared on its type.
	KindUnknownProperty Kind = "UNKNOWN_PROPERTY"

	// KindUnsupportedEvent indicates a listener registration for an unknown event.
	KindUnsupportedEvent Kind = "UNSUPPORTED_EVENT"

	// KindInvalidatedObject indicates access through a handle whose object was deleted.
	KindInvalidatedObject Kind = "INVALIDATED_OBJECT"

	// KindClosed indicates use of a closed realm.
	KindClosed Kind = "CLOSED"
)

// Error is a categorized EmberDB error.
type Error struct {
	// Kind identifies the error category.
	Kind Kind

	// Message is a human-readable description.
	Message string

	// Type names the object type involved, if any.
	Type string

	// Property names the property involved, if any.
	Property string

	// Err is an optional underlying cause.
	Err error
}

// Sentinels for errors.Is matching. Only Kind is compared.
var (
	ErrArgument              = &Error{Kind: KindArgument}
	ErrSchemaValidation      = &Error{Kind: KindSchemaValidation}
	ErrSchemaVersionMismatch = &Error{Kind: KindSchemaVersionMismatch}
	ErrDuplicateKey          = &Error{Kind: KindDuplicateKey}
	ErrTypeMismatch          = &Error{Kind: KindTypeMismatch}
	ErrInvalidNull           = &Error{Kind: KindInvalidNull}
	ErrTransactionRequired   = &Error{Kind: KindTransactionRequired}
	ErrTransactionInProgress = &Error{Kind: KindTransactionInProgress}
	ErrQuerySyntax           = &Error{Kind: KindQuerySyntax}
	ErrQueryParameter        = &Error{Kind: KindQueryParameter}
	ErrUnknownType           = &Error{Kind: KindUnknownType}
	ErrUnknownProperty       = &Error{Kind: KindUnknownProperty}
	ErrUnsupportedEvent      = &Error{Kind: KindUnsupportedEvent}
	ErrInvalidatedObject     = &Error{Kind: KindInvalidatedObject}
	ErrClosed                = &Error{Kind: KindClosed}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	switch {
	case e.Type != "" && e.Property != "":
		msg = fmt.Sprintf("%s: %s (type=%s, property=%s)", e.Kind, msg, e.Type, e.Property)
	case e.Type != "":
		msg = fmt.Sprintf("%s: %s (type=%s)", e.Kind, msg, e.Type)
	default:
		msg = fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind around an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithType returns a copy of e annotated with an object type name.
func (e *Error) WithType(typeName string) *Error {
	c := *e
	c.Type = typeName
	return &c
}

// WithProperty returns a copy of e annotated with a type and property name.
func (e *Error) WithProperty(typeName, property string) *Error {
	c := *e
	c.Type = typeName
	c.Property = property
	return &c
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// ParseKind maps a kind name (e.g. "DUPLICATE_KEY") back to a Kind.
// Returns false for unknown names.
func ParseKind(name string) (Kind, bool) {
	k := Kind(name)
	for _, known := range allKinds {
		if known == k {
			return k, true
		}
	}
	return "", false
}

var allKinds = []Kind{
	KindArgument, KindSchemaValidation, KindSchemaVersionMismatch, KindDuplicateKey,
	KindTypeMismatch, KindInvalidNull, KindTransactionRequired, KindTransactionInProgress,
	KindQuerySyntax, KindQueryParameter, KindUnknownType, KindUnknownProperty,
	KindUnsupportedEvent, KindInvalidatedObject, KindClosed,
}
