package ir

import "encoding/json"

// ServiceSpec is the root of the IR.
type ServiceSpec struct {
	// Schema is the compact JSON of the input document, for renderers that
	// embed it next to generated validators.
	Schema json.RawMessage `json:"schema,omitempty"`

	// Definitions lists every definition with its classification, in
	// declaration order.
	Definitions []Definition `json:"definitions"`

	// Classes holds service classes and plain data classes.
	Classes []*ClassSpec `json:"classes"`

	// Exceptions holds error types that methods may declare in throws.
	Exceptions []*ClassSpec `json:"exceptions"`

	// Contexts holds the ClientContext and ServerOnlyContext pseudo-classes.
	Contexts []*ClassSpec `json:"contexts,omitempty"`

	Enums       []*EnumSpec  `json:"enums"`
	BypassTypes []*AliasSpec `json:"bypassTypes"`
	Globals     Globals      `json:"globals"`

	// Warnings contains non-fatal issues encountered during the build.
	Warnings []Warning `json:"warnings,omitempty"`
}

// Globals describes the schema-wide context declarations.
type Globals struct {
	ClientContext     bool `json:"clientContext"`
	ServerOnlyContext bool `json:"serverOnlyContext"`

	// ServerContext is the type handlers receive as their context, or empty
	// when neither context is declared.
	ServerContext string `json:"serverContext,omitempty"`
}

// ContextRef is a per-class context declaration.
// A nil *ContextRef means the class has no such context.
type ContextRef struct {
	// Type is the context type expression.
	Type string `json:"type,omitempty"`

	// Disabled is set when the class explicitly opts out.
	Disabled bool `json:"disabled,omitempty"`
}

// Enabled reports whether the context is declared and not disabled.
func (c *ContextRef) Enabled() bool {
	return c != nil && !c.Disabled && c.Type != ""
}

// ClassSpec describes a class, an exception or a context pseudo-class.
type ClassSpec struct {
	Name       string         `json:"name"`
	Kind       DefinitionKind `json:"kind"`
	Attributes []Attribute    `json:"attributes"`
	Methods    []*Method      `json:"methods"`

	// Context declarations. Only set on service classes.
	ClientContext     *ContextRef `json:"clientContext,omitempty"`
	ServerOnlyContext *ContextRef `json:"serverOnlyContext,omitempty"`

	// ServerContext is the effective handler context type: the intersection
	// of both contexts, the one enabled context, or empty.
	ServerContext string `json:"serverContext,omitempty"`
}

// Method looks up a method by name. Returns nil if not found.
func (c *ClassSpec) Method(name string) *Method {
	for _, m := range c.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Attribute is a plain data field of a class.
type Attribute struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Optional bool   `json:"optional"`
}

// Method is an RPC method of a service class.
type Method struct {
	Name       string      `json:"name"`
	ClassName  string      `json:"className"`
	Parameters []Parameter `json:"parameters"`
	ReturnType string      `json:"returnType"`

	// Throws lists the declared exception names in first-encountered order.
	Throws []string `json:"throws"`
}

// Parameter is a method parameter.
type Parameter struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Optional bool   `json:"optional"`
}

// EnumSpec describes a string enum.
type EnumSpec struct {
	Name    string       `json:"name"`
	Members []EnumMember `json:"members"`
}

// EnumMember is one enum variant.
type EnumMember struct {
	// Key is the value upper-cased with dashes turned into underscores.
	Key string `json:"key"`

	// Value is the literal string value.
	Value string `json:"value"`
}

// AliasSpec is a named type expression.
type AliasSpec struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// FindClass looks up a class by name. Returns nil if not found.
func (s *ServiceSpec) FindClass(name string) *ClassSpec {
	return findClass(s.Classes, name)
}

// FindException looks up an exception by name. Returns nil if not found.
func (s *ServiceSpec) FindException(name string) *ClassSpec {
	return findClass(s.Exceptions, name)
}

// Kind returns the classification of a definition.
func (s *ServiceSpec) Kind(name string) (DefinitionKind, bool) {
	for _, d := range s.Definitions {
		if d.Name == name {
			return d.Kind, true
		}
	}
	return 0, false
}

// Services returns the classes that carry methods.
func (s *ServiceSpec) Services() []*ClassSpec {
	var out []*ClassSpec
	for _, c := range s.Classes {
		if c.Kind == KindService {
			out = append(out, c)
		}
	}
	return out
}

func findClass(classes []*ClassSpec, name string) *ClassSpec {
	for _, c := range classes {
		if c.Name == name {
			return c
		}
	}
	return nil
}
