package validate

import (
	"fmt"
	"slices"

	"github.com/broady/concord/concordgen"
	"github.com/broady/concord/concordgen/ir"
	"github.com/broady/concord/concordgen/schema"
)

// Table holds the compiled validators of every service class in a schema.
// It is built once and never modified, so it can be shared by any number of
// concurrent calls.
type Table struct {
	spec    *ir.ServiceSpec
	classes map[string]*Class
}

// Class is the compiled view of one service class.
type Class struct {
	Name string

	// ClientContext and ServerOnlyContext report which contexts the class
	// takes, after per-class overrides.
	ClientContext     bool
	ServerOnlyContext bool

	// Context validates the client-supplied context object. It is nil when
	// the class takes no client context.
	Context *Validator

	methods map[string]*Method
	order   []string
}

// Method is the compiled view of one RPC method.
type Method struct {
	Name string

	// Params validates the args object of a request.
	Params *Validator

	// Returns validates a {"returns": value} wrapper.
	Returns *Validator

	// ParamOrder lists parameter names in call order.
	ParamOrder []string

	// Throws lists the declared exception names.
	Throws []string
}

// NewTable builds the IR for doc, checks its unions and compiles validators
// for every method of every service class.
func NewTable(doc *schema.Document, opts Options) (*Table, error) {
	spec, err := concordgen.FromDocument(doc).WithLogger(opts.Logger).Build()
	if err != nil {
		return nil, err
	}
	return NewTableFromSpec(doc, spec, opts)
}

// NewTableFromSpec is NewTable for a ServiceSpec that was already built
// from doc.
func NewTableFromSpec(doc *schema.Document, spec *ir.ServiceSpec, opts Options) (*Table, error) {
	f, err := NewFactory(doc, opts)
	if err != nil {
		return nil, err
	}
	if err := f.CheckUnions(); err != nil {
		return nil, err
	}

	t := &Table{spec: spec, classes: make(map[string]*Class)}
	for _, cs := range spec.Services() {
		c, err := compileClass(f, cs)
		if err != nil {
			return nil, fmt.Errorf("class %s: %w", cs.Name, err)
		}
		t.classes[cs.Name] = c
	}
	return t, nil
}

func compileClass(f *Factory, cs *ir.ClassSpec) (*Class, error) {
	params, err := f.ClassValidators(cs.Name, FieldParams)
	if err != nil {
		return nil, err
	}
	returns, err := f.ClassValidators(cs.Name, FieldReturns)
	if err != nil {
		return nil, err
	}

	c := &Class{
		Name:              cs.Name,
		ClientContext:     cs.ClientContext.Enabled(),
		ServerOnlyContext: cs.ServerOnlyContext.Enabled(),
		methods:           make(map[string]*Method, len(cs.Methods)),
	}
	if c.ClientContext {
		if c.Context, err = contextValidator(f, cs); err != nil {
			return nil, err
		}
	}
	for _, m := range cs.Methods {
		order := make([]string, len(m.Parameters))
		for i, p := range m.Parameters {
			order[i] = p.Name
		}
		c.methods[m.Name] = &Method{
			Name:       m.Name,
			Params:     params[m.Name],
			Returns:    returns[m.Name],
			ParamOrder: order,
			Throws:     slices.Clone(m.Throws),
		}
		c.order = append(c.order, m.Name)
	}
	return c, nil
}

// contextValidator compiles the class's own clientContext declaration when
// it has one, and the shared context interface otherwise.
func contextValidator(f *Factory, cs *ir.ClassSpec) (*Validator, error) {
	if n, ok := f.definition(cs.Name); ok {
		if own, ok := n.Properties.Get(ir.ClientContextProperty); ok {
			return f.validator(own, cs.Name+"/"+ir.ClientContextProperty)
		}
	}
	return f.InterfaceValidator(cs.ClientContext.Type)
}

// Spec returns the IR the table was compiled from. Callers must not modify it.
func (t *Table) Spec() *ir.ServiceSpec { return t.spec }

// Class looks up a service class by name.
func (t *Table) Class(name string) (*Class, bool) {
	c, ok := t.classes[name]
	return c, ok
}

// Classes returns the service class names in declaration order.
func (t *Table) Classes() []string {
	var names []string
	for _, cs := range t.spec.Services() {
		names = append(names, cs.Name)
	}
	return names
}

// Method looks up a method by name.
func (c *Class) Method(name string) (*Method, bool) {
	m, ok := c.methods[name]
	return m, ok
}

// Methods returns the method names in declaration order.
func (c *Class) Methods() []string {
	return slices.Clone(c.order)
}

// Declares reports whether name is one of the method's declared exceptions.
func (m *Method) Declares(name string) bool {
	return slices.Contains(m.Throws, name)
}
