package concord

import (
	"errors"
	"maps"
	"runtime/debug"
)

// Wire names of the protocol's built-in errors.
const (
	NameValidationError     = "ValidationError"
	NameInternalServerError = "InternalServerError"
)

// Messages used by the dispatch protocol.
const (
	MessageBadRequest         = "Bad Request"
	MessageMethodNotSupported = "Method not supported"
	MessageCouldNotParseBody  = "Could not parse body"
	MessageInvalidResponse    = "Failed to validate response"
)

// ValidationError reports a request or response that failed its schema.
// Errors holds one entry per failed constraint; on the server these are
// validate.FieldError values, on the client the decoded JSON objects.
type ValidationError struct {
	Message string
	Errors  []any
}

func (e *ValidationError) Error() string {
	return NameValidationError + ": " + e.Message
}

func (e *ValidationError) body() map[string]any {
	errs := e.Errors
	if errs == nil {
		errs = []any{}
	}
	return map[string]any{
		"name":    NameValidationError,
		"message": e.Message,
		"errors":  errs,
	}
}

// Named is implemented by errors that travel over the wire under their own
// exception name. A handler error is reported as that exception when the
// name is among the method's declared throws.
type Named interface {
	error
	ExceptionName() string
}

// Exception is the stock declared exception.
//
// Example:
//
//	return nil, concord.NewException("NotFound", "no such user").WithField("id", id)
type Exception struct {
	Name    string
	Message string

	// Fields are extra serializable members sent next to name and message.
	Fields map[string]any

	// Stack is the creation stack on the server, or the transmitted stack on
	// the client.
	Stack string
}

// NewException creates an exception and records the current stack.
func NewException(name, message string) *Exception {
	return &Exception{Name: name, Message: message, Stack: string(debug.Stack())}
}

func (e *Exception) Error() string {
	return e.Name + ": " + e.Message
}

// ExceptionName returns the wire name.
func (e *Exception) ExceptionName() string { return e.Name }

// ExceptionFields returns the extra members.
func (e *Exception) ExceptionFields() map[string]any { return e.Fields }

// StackTrace returns the recorded stack.
func (e *Exception) StackTrace() string { return e.Stack }

// Is matches any *Exception with the same name.
func (e *Exception) Is(target error) bool {
	t, ok := target.(*Exception)
	return ok && t.Name == e.Name
}

// WithField returns a copy of the exception with key set in Fields.
func (e *Exception) WithField(key string, value any) *Exception {
	fields := make(map[string]any, len(e.Fields)+1)
	maps.Copy(fields, e.Fields)
	fields[key] = value
	return &Exception{Name: e.Name, Message: e.Message, Fields: fields, Stack: e.Stack}
}

// InternalServerError is the catch-all for errors a method did not declare.
// Only the message crosses the wire; the original error type does not.
type InternalServerError struct {
	Message string
	Stack   string
}

func (e *InternalServerError) Error() string {
	return NameInternalServerError + ": " + e.Message
}

// messageOf returns the wire message of err: the bare message of the
// package's own error types, and Error() for anything else.
func messageOf(err error) string {
	var ex *Exception
	if errors.As(err, &ex) {
		return ex.Message
	}
	var ise *InternalServerError
	if errors.As(err, &ise) {
		return ise.Message
	}
	return err.Error()
}

// fieldsOf returns the extra members of err, if it carries any.
func fieldsOf(err error) map[string]any {
	var fielded interface{ ExceptionFields() map[string]any }
	if errors.As(err, &fielded) {
		return fielded.ExceptionFields()
	}
	return nil
}

// stackOf returns the recorded stack of err, or the current stack when err
// did not record one.
func stackOf(err error) string {
	var traced interface{ StackTrace() string }
	if errors.As(err, &traced) && traced.StackTrace() != "" {
		return traced.StackTrace()
	}
	return string(debug.Stack())
}

// errorBody builds a 500 response body. Fields are copied first so name and
// message cannot be overridden by them. An empty stack is omitted.
func errorBody(name, message string, fields map[string]any, stack string) map[string]any {
	body := make(map[string]any, len(fields)+3)
	maps.Copy(body, fields)
	delete(body, "stack")
	if stack != "" {
		body["stack"] = stack
	}
	body["message"] = message
	body["name"] = name
	return body
}
