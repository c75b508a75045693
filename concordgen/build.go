// Package concordgen compiles a schema document into the concord IR.
//
// Classification happens in a single pass over the definitions, in
// declaration order. Each definition becomes exactly one of: a service class
// (a class with methods), an exception, an enum, an alias or a plain class.
// The context pseudo-classes are recorded separately and switch on the
// schema-wide context flags.
package concordgen

import (
	"errors"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/broady/concord/concordgen/ident"
	"github.com/broady/concord/concordgen/ir"
	"github.com/broady/concord/concordgen/schema"
	"github.com/broady/concord/concordgen/typeexpr"
)

// enumValuePattern restricts enum values to identifier-safe strings.
var enumValuePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// Build compiles doc into a ServiceSpec, logging diagnostics to slog.Default().
func Build(doc *schema.Document) (*ir.ServiceSpec, error) {
	return build(doc, nil)
}

type definition struct {
	name string
	node *schema.Node
	kind ir.DefinitionKind
}

type builder struct {
	resolver *typeexpr.Resolver
	globals  ir.Globals
}

func build(doc *schema.Document, logger *slog.Logger) (*ir.ServiceSpec, error) {
	if doc == nil || doc.Definitions == nil {
		return nil, schema.Errorf(schema.CodeMissingDefinitions, "got schema with empty definitions")
	}

	defs, err := classify(doc.Definitions)
	if err != nil {
		return nil, err
	}

	b := &builder{resolver: typeexpr.New(logger)}
	for _, d := range defs {
		if d.kind != ir.KindContext {
			continue
		}
		switch d.name {
		case ir.ClientContextName:
			b.globals.ClientContext = true
		case ir.ServerOnlyContextName:
			b.globals.ServerOnlyContext = true
		}
	}
	b.globals.ServerContext = serverContext(
		contextIf(b.globals.ClientContext, ir.ClientContextName),
		contextIf(b.globals.ServerOnlyContext, ir.ServerOnlyContextName),
	)

	spec := &ir.ServiceSpec{
		Schema:      doc.Raw,
		Definitions: make([]ir.Definition, 0, len(defs)),
		Classes:     []*ir.ClassSpec{},
		Exceptions:  []*ir.ClassSpec{},
		Enums:       []*ir.EnumSpec{},
		BypassTypes: []*ir.AliasSpec{},
		Globals:     b.globals,
	}
	for _, d := range defs {
		spec.Definitions = append(spec.Definitions, ir.Definition{Name: d.name, Kind: d.kind})
		b.resolver.SetDefinition(d.name)

		switch d.kind {
		case ir.KindAlias:
			t, err := b.resolver.Resolve(d.node)
			if err != nil {
				return nil, err
			}
			spec.BypassTypes = append(spec.BypassTypes, &ir.AliasSpec{Name: d.name, Type: t})
		case ir.KindEnum:
			spec.Enums = append(spec.Enums, enumSpec(d.name, d.node))
		case ir.KindException:
			c, err := b.class(d.name, d.node, ir.KindException)
			if err != nil {
				return nil, err
			}
			spec.Exceptions = append(spec.Exceptions, c)
		case ir.KindContext:
			c, err := b.class(d.name, d.node, ir.KindContext)
			if err != nil {
				return nil, err
			}
			spec.Contexts = append(spec.Contexts, c)
		case ir.KindService, ir.KindClass:
			c, err := b.class(d.name, d.node, d.kind)
			if err != nil {
				return nil, err
			}
			spec.Classes = append(spec.Classes, c)
		}
	}
	spec.Warnings = b.resolver.Warnings()
	return spec, nil
}

// classify assigns a kind to every definition. Enum problems are collected
// across all definitions before failing.
func classify(defs *schema.NodeMap) ([]definition, error) {
	var (
		out        []definition
		duplicates []string
		badTypes   []string
		badValues  []string
	)
	seen := make(map[string]bool, defs.Len())
	for raw, n := range defs.All() {
		name := ident.Sanitize(raw)
		if seen[name] {
			duplicates = append(duplicates, name)
			continue
		}
		seen[name] = true

		kind := ir.KindAlias
		switch {
		case n.AnyOf != nil || n.AllOf != nil:
			kind = ir.KindAlias
		case n.HasEnum:
			kind = ir.KindEnum
			if t, ok := n.SingleType(); !ok || t != "string" {
				badTypes = append(badTypes, name)
			} else if !validEnumValues(n.Enum) {
				badValues = append(badValues, name)
			}
		case n.Properties != nil:
			switch {
			case isException(n):
				kind = ir.KindException
			case name == ir.ClientContextName || name == ir.ServerOnlyContextName:
				kind = ir.KindContext
			case hasMethods(n):
				kind = ir.KindService
			default:
				kind = ir.KindClass
			}
		}
		out = append(out, definition{name: name, node: n, kind: kind})
	}

	var errs []error
	if len(duplicates) > 0 {
		errs = append(errs, schema.ListError(schema.CodeDuplicateDefinition,
			"definition names collide after sanitization", duplicates))
	}
	if len(badTypes) > 0 {
		errs = append(errs, schema.ListError(schema.CodeEnumType,
			"unsupported enum type definitions found (expected string values only)", badTypes))
	}
	if len(badValues) > 0 {
		errs = append(errs, schema.ListError(schema.CodeEnumValue,
			"unsupported enum value found (does not match "+enumValuePattern.String()+")", badValues))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

func validEnumValues(values []any) bool {
	for _, v := range values {
		s, ok := v.(string)
		if !ok || !enumValuePattern.MatchString(s) {
			return false
		}
	}
	return true
}

// isException reports whether n has string-typed name, message and stack
// properties.
func isException(n *schema.Node) bool {
	for _, field := range []string{"name", "message", "stack"} {
		p, ok := n.Properties.Get(field)
		if !ok {
			return false
		}
		if t, ok := p.SingleType(); !ok || t != "string" {
			return false
		}
	}
	return true
}

func hasMethods(n *schema.Node) bool {
	for _, p := range n.Properties.All() {
		if isMethod(p) {
			return true
		}
	}
	return false
}

// isMethod reports whether a property has the method shape
// {params, returns, throws?}.
func isMethod(n *schema.Node) bool {
	if n.Properties == nil {
		return false
	}
	_, hasParams := n.Properties.Get("params")
	_, hasReturns := n.Properties.Get("returns")
	if !hasParams || !hasReturns {
		return false
	}
	for name := range n.Properties.All() {
		switch name {
		case "params", "returns", "throws":
		default:
			return false
		}
	}
	return true
}

func (b *builder) class(name string, n *schema.Node, kind ir.DefinitionKind) (*ir.ClassSpec, error) {
	c := &ir.ClassSpec{
		Name:       name,
		Kind:       kind,
		Attributes: []ir.Attribute{},
		Methods:    []*ir.Method{},
	}
	for prop, p := range n.Properties.All() {
		if kind != ir.KindException && isMethod(p) {
			m, err := b.method(name, prop, p)
			if err != nil {
				return nil, err
			}
			c.Methods = append(c.Methods, m)
			continue
		}
		if prop == ir.ClientContextProperty || prop == ir.ServerOnlyContextProperty {
			continue
		}
		t, err := b.resolver.Resolve(p)
		if err != nil {
			return nil, err
		}
		c.Attributes = append(c.Attributes, ir.Attribute{
			Name:     prop,
			Type:     t,
			Optional: !n.IsRequired(prop),
		})
	}

	if kind == ir.KindService {
		var err error
		if c.ClientContext, err = b.contextRef(n, ir.ClientContextProperty, b.globals.ClientContext, ir.ClientContextName); err != nil {
			return nil, err
		}
		if c.ServerOnlyContext, err = b.contextRef(n, ir.ServerOnlyContextProperty, b.globals.ServerOnlyContext, ir.ServerOnlyContextName); err != nil {
			return nil, err
		}
		c.ServerContext = serverContext(c.ClientContext, c.ServerOnlyContext)
	}
	return c, nil
}

// contextRef resolves a class's own context declaration, falling back to the
// global one.
func (b *builder) contextRef(n *schema.Node, prop string, global bool, globalName string) (*ir.ContextRef, error) {
	if p, ok := n.Properties.Get(prop); ok {
		t, err := b.resolver.Resolve(p)
		if err != nil {
			return nil, err
		}
		if t == ir.DisabledContext {
			return &ir.ContextRef{Disabled: true}, nil
		}
		return &ir.ContextRef{Type: t}, nil
	}
	return contextIf(global, globalName), nil
}

func contextIf(enabled bool, name string) *ir.ContextRef {
	if !enabled {
		return nil
	}
	return &ir.ContextRef{Type: name}
}

// serverContext combines the client and server-only contexts into the type a
// handler receives.
func serverContext(client, serverOnly *ir.ContextRef) string {
	switch {
	case client.Enabled() && serverOnly.Enabled():
		return client.Type + " & " + serverOnly.Type
	case client.Enabled():
		return client.Type
	case serverOnly.Enabled():
		return serverOnly.Type
	}
	return ""
}

func (b *builder) method(className, name string, n *schema.Node) (*ir.Method, error) {
	params, _ := n.Properties.Get("params")
	returns, _ := n.Properties.Get("returns")
	throws, _ := n.Properties.Get("throws")

	m := &ir.Method{
		Name:       name,
		ClassName:  className,
		Parameters: []ir.Parameter{},
		Throws:     []string{},
	}
	for _, pname := range schema.ParamOrder(params) {
		if pname == ir.ContextParam {
			return nil, &schema.Error{
				Code:    schema.CodeNamingConflict,
				Message: "invalid parameter name '" + ir.ContextParam + "' on method '" + name + "' of interface '" + className + "'",
				Names:   []string{className, name},
			}
		}
		p, _ := params.Properties.Get(pname)
		t, err := b.resolver.Resolve(p)
		if err != nil {
			return nil, err
		}
		m.Parameters = append(m.Parameters, ir.Parameter{
			Name:     pname,
			Type:     t,
			Optional: !params.IsRequired(pname),
		})
	}

	rt, err := b.resolver.Resolve(returns)
	if err != nil {
		return nil, err
	}
	if rt == typeexpr.Null {
		rt = ir.VoidType
	}
	m.ReturnType = rt

	for _, ref := range schema.FindRefs(throws) {
		t := ident.FromRef(ref)
		if !slices.Contains(m.Throws, t) {
			m.Throws = append(m.Throws, t)
		}
	}
	return m, nil
}

func enumSpec(name string, n *schema.Node) *ir.EnumSpec {
	e := &ir.EnumSpec{Name: name, Members: make([]ir.EnumMember, 0, len(n.Enum))}
	for _, v := range n.Enum {
		s := v.(string)
		e.Members = append(e.Members, ir.EnumMember{
			Key:   strings.ReplaceAll(strings.ToUpper(s), "-", "_"),
			Value: s,
		})
	}
	return e
}
