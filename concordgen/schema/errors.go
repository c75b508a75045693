package schema

import (
	"fmt"
	"strings"
)

// ErrorCode identifies the category of a schema error.
type ErrorCode string

const (
	CodeMissingDefinitions  ErrorCode = "missing_definitions"
	CodeDuplicateDefinition ErrorCode = "duplicate_definition"
	CodeUnknownDefinition   ErrorCode = "unknown_definition"
	CodeEnumType            ErrorCode = "enum_type"
	CodeEnumValue           ErrorCode = "enum_value"
	CodeNamingConflict      ErrorCode = "naming_conflict"
	CodeInvalidItems        ErrorCode = "invalid_items"
	CodeAmbiguousUnion      ErrorCode = "ambiguous_union"
	CodeRootCoercion        ErrorCode = "root_coercion"
	CodeInvalidCoerceDate   ErrorCode = "invalid_coerce_date"
	CodeUnresolvedRef       ErrorCode = "unresolved_ref"
	CodeInvalidPattern      ErrorCode = "invalid_pattern"
)

// Error is a generation-time schema error. It is fatal: it aborts IR
// construction or validator compilation and never reaches a runtime response.
type Error struct {
	Code    ErrorCode
	Message string

	// Names lists the definitions (or locations) the error is about.
	Names []string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Message
}

// Is matches any *Error with the same code, so the sentinels below work
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrMissingDefinitions  = &Error{Code: CodeMissingDefinitions}
	ErrDuplicateDefinition = &Error{Code: CodeDuplicateDefinition}
	ErrUnknownDefinition   = &Error{Code: CodeUnknownDefinition}
	ErrEnumType            = &Error{Code: CodeEnumType}
	ErrEnumValue           = &Error{Code: CodeEnumValue}
	ErrNamingConflict      = &Error{Code: CodeNamingConflict}
	ErrInvalidItems        = &Error{Code: CodeInvalidItems}
	ErrAmbiguousUnion      = &Error{Code: CodeAmbiguousUnion}
	ErrRootCoercion        = &Error{Code: CodeRootCoercion}
	ErrInvalidCoerceDate   = &Error{Code: CodeInvalidCoerceDate}
	ErrUnresolvedRef       = &Error{Code: CodeUnresolvedRef}
	ErrInvalidPattern      = &Error{Code: CodeInvalidPattern}
)

// Errorf creates an error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ListError creates an error naming every offending definition.
func ListError(code ErrorCode, prefix string, names []string) *Error {
	return &Error{
		Code:    code,
		Message: prefix + ": " + strings.Join(names, ", "),
		Names:   names,
	}
}
