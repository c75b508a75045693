// Package validate compiles schema definitions into validators that check,
// default and coerce decoded JSON values.
//
// Values are the generic form produced by encoding/json: map[string]any,
// []any, string, float64, bool and nil. Validation may modify maps and slices
// in place; the returned value must be used in place of the input.
package validate

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/broady/concord/concordgen/ident"
	"github.com/broady/concord/concordgen/schema"
)

// Field selects which half of a method a class validator checks.
type Field string

const (
	FieldParams  Field = "params"
	FieldReturns Field = "returns"
)

// Validator checks values against one compiled schema.
// It is safe for concurrent use.
type Validator struct {
	root  *compiled
	strip bool
}

// Validate checks v and returns it with defaults filled in, dates coerced
// and, under the Strip policy, undeclared properties removed. On failure the
// error is an Errors value listing every failed constraint.
func (v *Validator) Validate(value any) (any, error) {
	r := &run{strip: v.strip}
	out := v.root.check(value, "", r)
	if len(r.errs) > 0 {
		return value, Errors(r.errs)
	}
	return out, nil
}

// Factory compiles validators for the definitions of one schema document.
// Every definition is registered under its sanitized name before anything is
// compiled, so references resolve across the whole document.
//
// A Factory is not safe for concurrent use; the Validators it returns are.
type Factory struct {
	doc  *schema.Document
	opts Options
	cc   *compiler
}

// NewFactory compiles every definition of doc.
func NewFactory(doc *schema.Document, opts Options) (*Factory, error) {
	if err := opts.check(); err != nil {
		return nil, err
	}
	if doc == nil || doc.Definitions == nil {
		return nil, schema.Errorf(schema.CodeMissingDefinitions, "got schema with empty definitions")
	}
	cc := &compiler{opts: opts, defs: make(map[string]*compiled, doc.Definitions.Len())}
	for raw := range doc.Definitions.All() {
		cc.defs[ident.Sanitize(raw)] = new(compiled)
	}
	for raw, n := range doc.Definitions.All() {
		name := ident.Sanitize(raw)
		cc.compileInto(cc.defs[name], n, name)
	}
	if err := errors.Join(cc.errs...); err != nil {
		return nil, err
	}
	return &Factory{doc: doc, opts: opts, cc: cc}, nil
}

// Options returns the options the factory was built with.
func (f *Factory) Options() Options { return f.opts }

// Compile builds a validator for an arbitrary node whose references point
// into the factory's document.
func (f *Factory) Compile(n *schema.Node) (*Validator, error) {
	return f.validator(n, "#")
}

func (f *Factory) validator(n *schema.Node, path string) (*Validator, error) {
	before := len(f.cc.errs)
	c := f.cc.compile(n, path)
	errs := f.cc.errs[before:]
	f.cc.errs = f.cc.errs[:before]
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if coercesAtRoot(c, make(map[*compiled]bool)) {
		return nil, &schema.Error{
			Code:    schema.CodeRootCoercion,
			Message: path + ": cannot coerce a date at root level",
			Names:   []string{path},
		}
	}
	return &Validator{root: c, strip: f.opts.Additional == Strip}, nil
}

// InterfaceValidator returns a validator for a whole definition.
func (f *Factory) InterfaceValidator(name string) (*Validator, error) {
	n, ok := f.definition(name)
	if !ok {
		return nil, schema.Errorf(schema.CodeUnknownDefinition, "unknown definition %q", name)
	}
	return f.validator(n, name)
}

// ClassValidators returns one validator per method of class, keyed by method
// name. FieldParams validators check the method's parameter object.
// FieldReturns validators check a {"returns": value} wrapper, so a coerced
// return value always has a parent to be stored in.
func (f *Factory) ClassValidators(class string, field Field) (map[string]*Validator, error) {
	n, ok := f.definition(class)
	if !ok {
		return nil, schema.Errorf(schema.CodeUnknownDefinition, "unknown class %q", class)
	}
	out := make(map[string]*Validator)
	for method, m := range n.Properties.All() {
		part, ok := m.Properties.Get(string(field))
		if !ok || !isMethodShape(m) {
			continue
		}
		target := part
		if field == FieldReturns {
			target = wrapReturns(part)
		}
		v, err := f.validator(target, fmt.Sprintf("%s/%s/%s", class, method, field))
		if err != nil {
			return nil, err
		}
		out[method] = v
	}
	return out, nil
}

// definition looks a definition up by sanitized or raw name.
func (f *Factory) definition(name string) (*schema.Node, bool) {
	if n, ok := f.doc.Definitions.Get(name); ok {
		return n, true
	}
	for raw, n := range f.doc.Definitions.All() {
		if ident.Sanitize(raw) == name {
			return n, true
		}
	}
	return nil, false
}

func isMethodShape(n *schema.Node) bool {
	_, hasParams := n.Properties.Get(string(FieldParams))
	_, hasReturns := n.Properties.Get(string(FieldReturns))
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

func wrapReturns(n *schema.Node) *schema.Node {
	props := schema.NewNodeMap()
	props.Set(string(FieldReturns), n)
	return &schema.Node{
		Type:       []string{"object"},
		Properties: props,
		Keywords:   []string{"type", "properties"},
	}
}

// CheckUnions rejects "additionalProperties": false directly on an
// alternative of an anyOf or oneOf, except in the two-armed "T or null"
// form. Validating such unions depends on branch order, so the schema is
// refused at generation time. Every offending location is reported.
func (f *Factory) CheckUnions() error {
	var paths []string
	for raw, n := range f.doc.Definitions.All() {
		schema.Walk(n, ident.Sanitize(raw), func(path string, c *schema.Node) bool {
			for _, u := range []struct {
				keyword string
				alts    []*schema.Node
			}{{"anyOf", c.AnyOf}, {"oneOf", c.OneOf}} {
				if isNullable(u.alts) {
					continue
				}
				for i, alt := range u.alts {
					if alt.NoAdditional {
						paths = append(paths, path+"/"+u.keyword+"/"+strconv.Itoa(i))
					}
				}
			}
			return true
		})
	}
	if len(paths) == 0 {
		return nil
	}
	return schema.ListError(schema.CodeAmbiguousUnion,
		"additionalProperties: false under a union alternative", paths)
}

func isNullable(alts []*schema.Node) bool {
	if len(alts) != 2 {
		return false
	}
	for _, a := range alts {
		if t, ok := a.SingleType(); ok && t == "null" {
			return true
		}
	}
	return false
}
