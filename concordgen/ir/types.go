// Package ir defines the intermediate representation produced by the concord
// compiler. A ServiceSpec is renderer-agnostic: it names classes, methods,
// exceptions, enums and aliases, and carries type expressions as canonical
// strings produced by the type resolver.
//
// A ServiceSpec is built once per schema and never mutated afterwards.
package ir

import "fmt"

// Reserved names shared by the compiler, the validators and the dispatcher.
const (
	// ClientContextName is the pseudo-class describing caller-supplied context.
	ClientContextName = "ClientContext"

	// ServerOnlyContextName is the pseudo-class describing server-injected context.
	ServerOnlyContextName = "ServerOnlyContext"

	// ClientContextProperty is the per-class override of the client context.
	ClientContextProperty = "clientContext"

	// ServerOnlyContextProperty is the per-class override of the server-only context.
	ServerOnlyContextProperty = "serverOnlyContext"

	// ContextParam is the reserved parameter name the context is passed as.
	ContextParam = "ctx"

	// DisabledContext is the literal type that switches a context off for a class.
	DisabledContext = "false"

	// VoidType is the return type of methods that return nothing.
	VoidType = "void"
)

// DefinitionKind classifies a schema definition.
type DefinitionKind int

const (
	KindService   DefinitionKind = iota // Class with at least one method
	KindClass                           // Plain data class
	KindException                       // {name, message, stack} error type
	KindEnum                            // String enum
	KindAlias                           // Union, intersection or other bypass type
	KindContext                         // ClientContext or ServerOnlyContext
)

// String returns the kind name used in JSON output.
func (k DefinitionKind) String() string {
	switch k {
	case KindService:
		return "service"
	case KindClass:
		return "class"
	case KindException:
		return "exception"
	case KindEnum:
		return "enum"
	case KindAlias:
		return "alias"
	case KindContext:
		return "context"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k DefinitionKind) MarshalText() ([]byte, error) {
	s := k.String()
	if s == "unknown" {
		return nil, fmt.Errorf("ir: unknown definition kind %d", int(k))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *DefinitionKind) UnmarshalText(b []byte) error {
	for c := KindService; c <= KindContext; c++ {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("ir: unknown definition kind %q", b)
}

// Definition records how one schema definition was classified.
type Definition struct {
	// Name is the sanitized definition name.
	Name string `json:"name"`

	Kind DefinitionKind `json:"kind"`
}

// Warning represents a non-fatal issue encountered while building the IR.
type Warning struct {
	// Code is a machine-readable warning identifier.
	Code string `json:"code"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// TypeName is the definition that triggered the warning, if known.
	TypeName string `json:"typeName,omitempty"`
}
