// Package typeexpr resolves schema nodes into canonical type expressions.
//
// Expressions use a TypeScript-like notation that renderers consume
// verbatim or translate: any, number, string, boolean, null, Date,
// { a: number; b?: string; }, Array<T>, [A, B], (A) | (B), (A) & (B),
// "x" | "y" and the fallback Object.
package typeexpr

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/broady/concord/concordgen/ident"
	"github.com/broady/concord/concordgen/ir"
	"github.com/broady/concord/concordgen/schema"
)

// Well-known expressions.
const (
	Any      = "any"
	Number   = "number"
	Date     = "Date"
	Null     = "null"
	Fallback = "Object"
)

// Resolver converts schema nodes to type expressions and collects
// diagnostics for nodes it cannot classify.
// A Resolver is not safe for concurrent use.
type Resolver struct {
	logger   *slog.Logger
	warnings []ir.Warning
	current  string
}

// New creates a resolver. If logger is nil, slog.Default() is used.
func New(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger}
}

// Resolve is a convenience wrapper around a fresh Resolver.
func Resolve(n *schema.Node) (string, error) {
	return New(nil).Resolve(n)
}

// Warnings returns the diagnostics collected so far.
func (r *Resolver) Warnings() []ir.Warning {
	return r.warnings
}

// SetDefinition attributes subsequent diagnostics to the named definition.
func (r *Resolver) SetDefinition(name string) {
	r.current = name
}

// Resolve returns the canonical type expression of n.
func (r *Resolver) Resolve(n *schema.Node) (string, error) {
	if n.IsEmpty() {
		return Any, nil
	}
	if n.ConcordType != nil {
		return *n.ConcordType, nil
	}
	if t, ok := n.SingleType(); ok {
		return r.resolveTyped(t, n)
	}
	if n.TypeList {
		parts := make([]string, len(n.Type))
		for i, t := range n.Type {
			s, err := r.resolveTyped(t, &schema.Node{Type: []string{t}, Keywords: []string{"type"}})
			if err != nil {
				return "", err
			}
			parts[i] = "(" + s + ")"
		}
		return strings.Join(parts, " | "), nil
	}
	if n.HasEnum {
		return literalUnion(n.Enum)
	}
	if n.HasConst {
		return literalUnion([]any{n.Const})
	}
	if n.Ref != "" {
		return ident.FromRef(n.Ref), nil
	}
	if n.AnyOf != nil {
		return r.join(n.AnyOf, " | ")
	}
	if n.AllOf != nil {
		return r.join(n.AllOf, " & ")
	}

	msg := fmt.Sprintf("could not determine type of node with keywords %v, defaulting to %s", n.Keywords, Fallback)
	r.logger.Warn("unresolved schema node",
		slog.String("definition", r.current),
		slog.Any("keywords", n.Keywords))
	r.warnings = append(r.warnings, ir.Warning{
		Code:     "unresolved_type",
		Message:  msg,
		TypeName: r.current,
	})
	return Fallback, nil
}

func (r *Resolver) resolveTyped(t string, n *schema.Node) (string, error) {
	if n.HasEnum {
		return literalUnion(n.Enum)
	}
	if n.HasConst {
		return literalUnion([]any{n.Const})
	}
	switch t {
	case "object":
		return r.resolveObject(n)
	case "array":
		return r.resolveArray(n)
	case "integer":
		return Number, nil
	case "string":
		if n.IsDateTime() {
			return Date, nil
		}
	}
	return t, nil
}

func (r *Resolver) resolveObject(n *schema.Node) (string, error) {
	if n.Properties.Len() == 0 {
		return "{}", nil
	}
	var b strings.Builder
	b.WriteString("{ ")
	i := 0
	for name, p := range n.Properties.All() {
		s, err := r.Resolve(p)
		if err != nil {
			return "", err
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(name)
		if !n.IsRequired(name) {
			b.WriteByte('?')
		}
		b.WriteString(": ")
		b.WriteString(s)
		b.WriteByte(';')
		i++
	}
	b.WriteString(" }")
	return b.String(), nil
}

func (r *Resolver) resolveArray(n *schema.Node) (string, error) {
	switch {
	case n.TupleItems != nil:
		parts := make([]string, len(n.TupleItems))
		for i, item := range n.TupleItems {
			s, err := r.Resolve(item)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	case n.Items != nil:
		s, err := r.Resolve(n.Items)
		if err != nil {
			return "", err
		}
		return "Array<" + s + ">", nil
	}
	return "", &schema.Error{
		Code:    schema.CodeInvalidItems,
		Message: "invalid type for array items in " + orUnknown(r.current),
		Names:   []string{r.current},
	}
}

func (r *Resolver) join(nodes []*schema.Node, sep string) (string, error) {
	parts := make([]string, len(nodes))
	for i, c := range nodes {
		s, err := r.Resolve(c)
		if err != nil {
			return "", err
		}
		parts[i] = "(" + s + ")"
	}
	return strings.Join(parts, sep), nil
}

// literalUnion renders enum values as JSON literals joined by " | ".
func literalUnion(values []any) (string, error) {
	parts := make([]string, len(values))
	for i, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		parts[i] = string(b)
	}
	return strings.Join(parts, " | "), nil
}

func orUnknown(name string) string {
	if name == "" {
		return "<anonymous>"
	}
	return name
}
